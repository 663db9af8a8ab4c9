package adapter

import (
	"context"
	"time"

	"sentinel/internal/pkg/httpclient"
)

// LedgerHTTPAdapter 是 port.LedgerService 的 HTTP 实现。
// 台账服务对退款按订单去重，重试不会二次打款。
type LedgerHTTPAdapter struct {
	client  *httpclient.Client
	baseURL string
	timeout time.Duration
}

// NewLedgerHTTPAdapter 创建一个台账服务适配器
func NewLedgerHTTPAdapter(client *httpclient.Client, baseURL string) *LedgerHTTPAdapter {
	return &LedgerHTTPAdapter{
		client:  client,
		baseURL: baseURL,
		timeout: 5 * time.Second,
	}
}

type refundRequest struct {
	OrderID string  `json:"orderId"`
	Amount  float64 `json:"amount"`
}

// Refund 发起一笔退款。端口契约要求自行控制超时，
// 失败或超时返回错误而不是无限阻塞。
func (a *LedgerHTTPAdapter) Refund(ctx context.Context, orderID string, amount float64) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	return a.client.PostJSON(ctx, a.baseURL+"/refunds", &refundRequest{
		OrderID: orderID,
		Amount:  amount,
	}, nil)
}
