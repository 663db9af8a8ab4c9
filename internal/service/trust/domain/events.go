package domain

import "time"

// 通知事件类型。通知是 write-only 的外部协作者，
// 投递失败不影响状态机本身的结果。
const (
	EventOrderStateChanged = "ORDER_STATE_CHANGED"
	EventFraudRaised       = "FRAUD_RAISED"
	EventFraudConfirmed    = "FRAUD_CONFIRMED"
	EventReturnUpdated     = "RETURN_UPDATED"
	EventRefundIssued      = "REFUND_ISSUED"
)

// NotificationEvent 是发往通知主题的消息结构
type NotificationEvent struct {
	RecipientID string            `json:"recipientId"`
	EventType   string            `json:"eventType"`
	Payload     map[string]string `json:"payload,omitempty"`
	OccurredAt  time.Time         `json:"occurredAt"`
}
