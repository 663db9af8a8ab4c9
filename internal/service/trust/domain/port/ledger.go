package port

import "context"

// LedgerService 是台账/支付补偿系统的出站端口。
// Refund 必须自己控制超时：失败或超时返回错误，绝不无限阻塞。
// 应用层把任何错误归类为 DownstreamFailure，并保证此路径上无部分提交。
type LedgerService interface {
	Refund(ctx context.Context, orderID string, amount float64) error
}
