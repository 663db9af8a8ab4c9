package domain

import (
	"time"
)

// OrderItem 是订单行项目值对象
type OrderItem struct {
	ProductID string
	Quantity  int
	UnitPrice float64
}

// Order 是订单聚合的根实体。
// 订单在结算时由外部系统创建；本核心只负责推进它的生命周期，
// 订单永远不会被删除，只会进入终态。
type Order struct {
	ID          string
	BuyerID     string
	SellerID    string
	State       State
	Items       []OrderItem
	TotalAmount float64

	// 自动化规则依赖的时间锚点。零值表示对应事件尚未发生。
	PaidAt      time.Time
	ShippedAt   time.Time
	DeliveredAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// transitionTo 是所有状态变更的唯一入口，保证不跳级
func (o *Order) transitionTo(to State) error {
	if !o.State.CanTransition(to) {
		return &InvalidTransitionError{Entity: "order", ID: o.ID, From: string(o.State), To: string(to)}
	}
	o.State = to
	o.UpdatedAt = time.Now()
	return nil
}

// MarkProcessing 将已支付订单推进到仓库处理中
func (o *Order) MarkProcessing() error {
	return o.transitionTo(StateProcessing)
}

// MarkDelivered 将已发货订单标记为已送达。
// 自动化引擎在物流长时间无回执时用它做超时推定送达。
func (o *Order) MarkDelivered(at time.Time) error {
	if err := o.transitionTo(StateDelivered); err != nil {
		return err
	}
	o.DeliveredAt = at
	return nil
}

// MarkCompleted 将已送达且无售后争议的订单关单
func (o *Order) MarkCompleted() error {
	return o.transitionTo(StateCompleted)
}

// CanAcceptReturn 判断订单当前是否允许发起退货申请
func (o *Order) CanAcceptReturn() bool {
	return o.State == StateDelivered || o.State == StateCompleted
}
