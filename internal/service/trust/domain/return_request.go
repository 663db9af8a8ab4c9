package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReturnStatus 定义了退货申请的生命周期状态
type ReturnStatus string

const (
	ReturnRequested       ReturnStatus = "REQUESTED"        // 买家已发起申请
	ReturnSellerResponded ReturnStatus = "SELLER_RESPONDED" // 卖家已响应
	ReturnItemReceived    ReturnStatus = "ITEM_RECEIVED"    // 退货实物已签收入库
	ReturnInspected       ReturnStatus = "INSPECTED"        // 质检完成，等待裁决
	ReturnRefunded        ReturnStatus = "REFUNDED"         // 终态：已退款
	ReturnRejected        ReturnStatus = "REJECTED"         // 终态：已驳回
)

// ConditionAcceptable 是质检结论中允许退款的条件值
const ConditionAcceptable = "acceptable"

// SellerResponse 是卖家对退货申请的响应载荷
type SellerResponse struct {
	SellerID    string
	Message     string
	RespondedAt time.Time
}

// Inspection 是退货实物的质检记录
type Inspection struct {
	Condition   string // e.g. "acceptable", "damaged", "not_original"
	InspectorID string
	InspectedAt time.Time
	Notes       string
}

// ReturnRequest 是退货退款申请实体，作为售后审计记录永久保留。
// 不变量：REFUNDED / REJECTED 是终态；到达 REFUNDED 必须先经过 INSPECTED。
type ReturnRequest struct {
	ID               string
	OrderID          string
	BuyerID          string
	Status           ReturnStatus
	Reason           string
	Items            []OrderItem // 可选：仅退部分行项目时填写
	SellerResponse   *SellerResponse
	Inspection       *Inspection
	ResolutionAmount float64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewReturnRequest 由买家针对一笔可退订单发起申请。
// 订单状态校验由应用层完成（需要读取订单聚合）。
func NewReturnRequest(orderID, buyerID, reason string, items []OrderItem) *ReturnRequest {
	now := time.Now()
	return &ReturnRequest{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		BuyerID:   buyerID,
		Status:    ReturnRequested,
		Reason:    reason,
		Items:     items,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsOpen 判断申请是否未到终态
func (r *ReturnRequest) IsOpen() bool {
	return r.Status != ReturnRefunded && r.Status != ReturnRejected
}

func (r *ReturnRequest) transitionTo(from, to ReturnStatus) error {
	if r.Status != from {
		return &InvalidTransitionError{Entity: "return_request", ID: r.ID, From: string(r.Status), To: string(to)}
	}
	r.Status = to
	r.UpdatedAt = time.Now()
	return nil
}

// AcceptSellerResponse 记录卖家响应：REQUESTED -> SELLER_RESPONDED
func (r *ReturnRequest) AcceptSellerResponse(sellerID, message string) error {
	if err := r.transitionTo(ReturnRequested, ReturnSellerResponded); err != nil {
		return err
	}
	r.SellerResponse = &SellerResponse{SellerID: sellerID, Message: message, RespondedAt: time.Now()}
	return nil
}

// MarkItemReceived 记录退货实物签收：SELLER_RESPONDED -> ITEM_RECEIVED
func (r *ReturnRequest) MarkItemReceived() error {
	return r.transitionTo(ReturnSellerResponded, ReturnItemReceived)
}

// RecordInspection 记录质检结论：ITEM_RECEIVED -> INSPECTED
func (r *ReturnRequest) RecordInspection(inspectorID, condition, notes string) error {
	if err := r.transitionTo(ReturnItemReceived, ReturnInspected); err != nil {
		return err
	}
	r.Inspection = &Inspection{
		Condition:   condition,
		InspectorID: inspectorID,
		InspectedAt: time.Now(),
		Notes:       notes,
	}
	return nil
}

// ConditionAcceptable 判断质检结论是否允许退款
func (r *ReturnRequest) ConditionAcceptable() bool {
	return r.Inspection != nil && r.Inspection.Condition == ConditionAcceptable
}

// MarkRefunded 裁决通过：INSPECTED -> REFUNDED。
// 调用方必须先完成外部退款，退款失败时不得调用此方法。
func (r *ReturnRequest) MarkRefunded(amount float64) error {
	if err := r.transitionTo(ReturnInspected, ReturnRefunded); err != nil {
		return err
	}
	r.ResolutionAmount = amount
	return nil
}

// MarkRejected 裁决驳回：INSPECTED -> REJECTED
func (r *ReturnRequest) MarkRejected() error {
	return r.transitionTo(ReturnInspected, ReturnRejected)
}
