package adapter

import (
	"context"
	"time"

	"sentinel/internal/pkg/httpclient"
	"sentinel/internal/service/trust/domain/port"
)

// AuthHTTPAdapter 是 port.AuthService 的 HTTP 实现。
// Token 的验签方式（JWT、会话表）是认证服务的内部细节。
type AuthHTTPAdapter struct {
	client  *httpclient.Client
	baseURL string
	timeout time.Duration
}

func NewAuthHTTPAdapter(client *httpclient.Client, baseURL string) *AuthHTTPAdapter {
	return &AuthHTTPAdapter{
		client:  client,
		baseURL: baseURL,
		timeout: 3 * time.Second,
	}
}

type resolveActorRequest struct {
	Token string `json:"token"`
}

type resolveActorResponse struct {
	ID    string   `json:"id"`
	Roles []string `json:"roles"`
}

// ResolveActor 根据请求凭证解析操作者身份
func (a *AuthHTTPAdapter) ResolveActor(ctx context.Context, token string) (port.Actor, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var resp resolveActorResponse
	if err := a.client.PostJSON(ctx, a.baseURL+"/auth/resolve", &resolveActorRequest{Token: token}, &resp); err != nil {
		return port.Actor{}, err
	}
	return port.Actor{ID: resp.ID, Roles: resp.Roles}, nil
}
