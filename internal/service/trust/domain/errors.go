package domain

import (
	"errors"
	"fmt"
)

// 错误分类。调用方（HTTP 层、定时触发器）依赖这些类型来决定
// 重试策略和状态码映射，所以它们是领域契约的一部分，而不是实现细节。

// ValidationError 表示调用方传入了格式非法的输入，不应重试。
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// InvalidTransitionError 表示状态机前置条件不满足（409 语义），不应重试。
type InvalidTransitionError struct {
	Entity string // "order" / "fraud_event" / "return_request"
	ID     string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition for %s %s: %s -> %s", e.Entity, e.ID, e.From, e.To)
}

// AuthorizationError 表示操作者缺少所需的权限能力。
type AuthorizationError struct {
	ActorID string
	Action  string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("actor %s is not authorized to %s", e.ActorID, e.Action)
}

// ConflictError 表示乐观并发冲突：读到的状态在写入前已被别人改掉。
// 调用方从最新状态重读后整体重试是安全的。
type ConflictError struct {
	Entity string
	ID     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrent modification detected on %s %s", e.Entity, e.ID)
}

// NotFoundError 表示引用的实体不存在。
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// DownstreamFailure 表示外部端口（台账、通知等）超时或失败。
// 核心保证在这条路径上没有部分提交，调用方可带退避重试。
type DownstreamFailure struct {
	Port string
	Err  error
}

func (e *DownstreamFailure) Error() string {
	return fmt.Sprintf("downstream port %s failed: %v", e.Port, e.Err)
}

func (e *DownstreamFailure) Unwrap() error { return e.Err }

// IsConflict 等辅助函数，方便调用方在不关心具体字段时做分类判断。
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsInvalidTransition(err error) bool {
	var target *InvalidTransitionError
	return errors.As(err, &target)
}

func IsDownstreamFailure(err error) bool {
	var target *DownstreamFailure
	return errors.As(err, &target)
}
