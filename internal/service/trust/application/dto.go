package application

// FailedOrder 记录单个订单在一趟 pass 中的失败原因
type FailedOrder struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

// PassReport 是一趟自动化 pass 的汇总结果。
// 单个订单失败只会进入 Failed 列表，不会升级成整趟失败。
type PassReport struct {
	Advanced int           `json:"advanced"`
	Skipped  int           `json:"skipped"`
	Failed   []FailedOrder `json:"failed"`
}

// 风控复核动作
const (
	ReviewActionConfirm = "confirm"
	ReviewActionDismiss = "dismiss"
)

// 退货裁决动作
const (
	ResolveActionApprove = "approve"
	ResolveActionReject  = "reject"
)
