package domain

// State 定义了订单的生命周期状态
type State string

const (
	StateCreated        State = "CREATED"         // 订单已在系统中记录，但未经验证
	StatePendingPayment State = "PENDING_PAYMENT" // 等待用户支付
	StatePaid           State = "PAID"            // 已支付，等待仓库处理
	StateProcessing     State = "PROCESSING"      // 仓库处理中
	StateShipped        State = "SHIPPED"         // 已发货
	StateDelivered      State = "DELIVERED"       // 已送达（可能是物流确认，也可能是超时推定）
	StateCompleted      State = "COMPLETED"       // 交易完成（终态）
	StateCancelled      State = "CANCELLED"       // 已取消（终态）
)

// stateGraph 是订单生命周期的封闭转移表。
// 任何不在表中的转移都是非法的，状态只能沿此图单调前进，不允许跳级。
var stateGraph = map[State][]State{
	StateCreated:        {StatePendingPayment, StateCancelled},
	StatePendingPayment: {StatePaid, StateCancelled},
	StatePaid:           {StateProcessing, StateCancelled},
	StateProcessing:     {StateShipped},
	StateShipped:        {StateDelivered},
	StateDelivered:      {StateCompleted},
}

// CanTransition 判断 from -> to 是否是一条合法的转移边
func (s State) CanTransition(to State) bool {
	for _, next := range stateGraph[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal 判断状态是否为终态
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateCancelled
}
