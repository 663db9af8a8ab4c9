package domain

import (
	"context"
	"time"
)

// OrderRepository 定义了订单聚合的持久化接口。
// 它位于领域层，但由基础设施层实现。
type OrderRepository interface {
	// FindByID 根据 ID 查找订单，不存在时返回 *NotFoundError。
	FindByID(ctx context.Context, id string) (*Order, error)

	// ListEligibleForAutomation 枚举所有可能命中时间规则的订单
	// （处于 PAID / SHIPPED / DELIVERED 的非终态订单）。
	// 返回的只是候选集，规则的 guard 仍由引擎逐单评估。
	ListEligibleForAutomation(ctx context.Context, now time.Time) ([]*Order, error)

	// ConditionalUpdate 以乐观并发方式落盘一次状态转移：
	// 仅当数据库中的当前状态仍等于 expectedState 时写入，
	// 否则返回 *ConflictError，由调用方决定重读重试还是记录冲突。
	ConditionalUpdate(ctx context.Context, order *Order, expectedState State) error

	// Save 保存订单聚合（用于创建或非状态字段更新）。
	Save(ctx context.Context, order *Order) error
}

// FraudEventRepository 定义了风控事件的持久化接口
type FraudEventRepository interface {
	Save(ctx context.Context, event *FraudEvent) error
	FindByID(ctx context.Context, id string) (*FraudEvent, error)

	// FindOpenByOrderID 查找订单名下未关闭（DETECTED）的事件，
	// 不存在时返回 (nil, nil)。
	FindOpenByOrderID(ctx context.Context, orderID string) (*FraudEvent, error)

	// FindBlockingByOrderID 查找会阻断自动化的事件（DETECTED 或 CONFIRMED），
	// 不存在时返回 (nil, nil)。自动化引擎每趟都重新读取它。
	FindBlockingByOrderID(ctx context.Context, orderID string) (*FraudEvent, error)
}

// ReturnRequestRepository 定义了退货申请的持久化接口
type ReturnRequestRepository interface {
	Save(ctx context.Context, req *ReturnRequest) error
	FindByID(ctx context.Context, id string) (*ReturnRequest, error)

	// FindOpenByOrderID 查找订单名下未到终态的申请，不存在时返回 (nil, nil)。
	FindOpenByOrderID(ctx context.Context, orderID string) (*ReturnRequest, error)

	// ConditionalUpdate 与订单仓储同语义的乐观并发写入。
	ConditionalUpdate(ctx context.Context, req *ReturnRequest, expectedStatus ReturnStatus) error
}
