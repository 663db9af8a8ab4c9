package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	gatewayKeyPrefix = "session:gateway:" // userID -> 所连网关节点ID
	sessionTTL       = 24 * time.Hour
)

// Manager 维护 userID 到推送网关节点的会话映射。
// 多个网关节点共享同一个 Redis，通知路由时据此找到用户所在节点。
type Manager struct {
	client *redis.Client
}

// NewManager 创建一个会话管理器
func NewManager(redisAddr string) *Manager {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	return &Manager{client: client}
}

// SetUserGateway 记录用户当前连接的网关节点
func (m *Manager) SetUserGateway(ctx context.Context, userID, nodeID string) error {
	return m.client.Set(ctx, gatewayKeyPrefix+userID, nodeID, sessionTTL).Err()
}

// GetUserGateway 查询用户所在的网关节点，离线时返回空串
func (m *Manager) GetUserGateway(ctx context.Context, userID string) (string, error) {
	nodeID, err := m.client.Get(ctx, gatewayKeyPrefix+userID).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query session for user %s: %w", userID, err)
	}
	return nodeID, nil
}

// RemoveUserGateway 清除用户会话（连接断开时调用）
func (m *Manager) RemoveUserGateway(ctx context.Context, userID string) error {
	return m.client.Del(ctx, gatewayKeyPrefix+userID).Err()
}

// Close 关闭底层 Redis 连接
func (m *Manager) Close() error {
	return m.client.Close()
}
