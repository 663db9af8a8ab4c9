package port

import (
	"context"

	"sentinel/internal/service/trust/domain"
)

// NotificationProducer 是通知系统的出站端口。
// 通知是尽力投递：失败由实现内部记录，不应阻塞或回滚业务状态转移。
type NotificationProducer interface {
	Send(ctx context.Context, event *domain.NotificationEvent) error
	Close() error
}
