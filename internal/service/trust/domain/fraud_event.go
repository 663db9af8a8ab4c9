package domain

import (
	"time"

	"github.com/google/uuid"
)

// FraudStatus 定义了风控事件的生命周期状态
type FraudStatus string

const (
	FraudDetected  FraudStatus = "DETECTED"  // 初始态：规则引擎命中，等待人工复核
	FraudConfirmed FraudStatus = "CONFIRMED" // 终态：人工确认为欺诈，冻结订单自动化
	FraudDismissed FraudStatus = "DISMISSED" // 终态：人工排除，订单恢复自动化
)

// RiskLevel 是风控评估器给出的风险等级
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// RiskSignal 是风控评估器对一笔订单输出的分类结果
type RiskSignal struct {
	Level  RiskLevel
	Score  float64
	Reason string
}

// FraudEvent 是风控事件实体。作为审计记录它永远不会被删除。
// 不变量：同一订单同一时刻最多存在一条 DETECTED 状态的事件；
// CONFIRMED 事件会冻结所属订单的自动推进，直到被显式清除。
type FraudEvent struct {
	ID         string
	OrderID    string
	Status     FraudStatus
	Signal     RiskSignal
	ReviewerID string
	ReviewedAt time.Time
	Notes      string
	CreatedAt  time.Time
}

// NewFraudEvent 针对一笔订单创建一条待复核的风控事件
func NewFraudEvent(orderID string, signal RiskSignal) *FraudEvent {
	return &FraudEvent{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		Status:    FraudDetected,
		Signal:    signal,
		CreatedAt: time.Now(),
	}
}

// IsOpen 判断事件是否仍处于待复核状态
func (e *FraudEvent) IsOpen() bool {
	return e.Status == FraudDetected
}

// BlocksAutomation 判断事件是否应阻断所属订单的自动推进。
// DETECTED 和 CONFIRMED 都会阻断；DISMISSED 不会。
func (e *FraudEvent) BlocksAutomation() bool {
	return e.Status == FraudDetected || e.Status == FraudConfirmed
}

// Confirm 将事件置为确认欺诈。只能从 DETECTED 转入。
func (e *FraudEvent) Confirm(reviewerID, notes string) error {
	return e.review(FraudConfirmed, reviewerID, notes)
}

// Dismiss 将事件置为误报排除。只能从 DETECTED 转入。
func (e *FraudEvent) Dismiss(reviewerID, notes string) error {
	return e.review(FraudDismissed, reviewerID, notes)
}

func (e *FraudEvent) review(to FraudStatus, reviewerID, notes string) error {
	if e.Status != FraudDetected {
		return &InvalidTransitionError{Entity: "fraud_event", ID: e.ID, From: string(e.Status), To: string(to)}
	}
	e.Status = to
	e.ReviewerID = reviewerID
	e.ReviewedAt = time.Now()
	e.Notes = notes
	return nil
}
