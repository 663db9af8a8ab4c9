package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/segmentio/kafka-go"

	"sentinel/internal/pkg/bootstrap"
	"sentinel/internal/pkg/logger"
	"sentinel/internal/pkg/mq"
	"sentinel/internal/pkg/session"
	"sentinel/internal/service/trust/domain"
)

const (
	serviceName = "push-gateway"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var (
	nodeID   = serviceName + "-" + uuid.New().String()[:8]
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool { // 简化处理，允许所有跨域
			return true
		},
	}
)

// Hub 维护本节点上所有活跃的 WebSocket 连接
type Hub struct {
	clients    map[string]*Client // key 是 UserID
	register   chan *Client
	unregister chan *Client
	lock       sync.RWMutex
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.lock.Lock()
			// 同一用户重复连接时踢掉旧连接
			if old, ok := h.clients[client.userID]; ok {
				close(old.send)
			}
			h.clients[client.userID] = client
			h.lock.Unlock()
			logger.Logger().Info().Str("userId", client.userID).Str("node", nodeID).Msg("client registered")
		case client := <-h.unregister:
			h.lock.Lock()
			if current, ok := h.clients[client.userID]; ok && current == client {
				delete(h.clients, client.userID)
				close(client.send)
			}
			h.lock.Unlock()
			logger.Logger().Info().Str("userId", client.userID).Msg("client unregistered")
		}
	}
}

// pushTo 将一条消息投递给指定用户。用户不在本节点时返回 false。
func (h *Hub) pushTo(userID string, payload []byte) bool {
	h.lock.RLock()
	client, ok := h.clients[userID]
	h.lock.RUnlock()
	if !ok {
		return false
	}
	select {
	case client.send <- payload:
		return true
	default:
		// 发送缓冲已满，视为连接失活
		return false
	}
}

// Client 是一个 WebSocket 连接的代表
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
}

// writePump 将 send channel 中的消息写入 websocket，并维持心跳
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 读取客户端心跳，连接断开时注销会话
func (c *Client) readPump(sessionMgr *session.Manager) {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
		if err := sessionMgr.RemoveUserGateway(context.Background(), c.userID); err != nil {
			logger.Logger().Error().Err(err).Str("userId", c.userID).Msg("failed to remove session")
		}
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func serveWs(hub *Hub, sessionMgr *session.Manager, w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Logger().Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{hub: hub, conn: conn, send: make(chan []byte, 256), userID: userID}
	client.hub.register <- client

	// 在 Redis 中登记该用户归属的网关节点，供路由侧查询
	if err := sessionMgr.SetUserGateway(context.Background(), userID, nodeID); err != nil {
		logger.Logger().Error().Err(err).Str("userId", userID).Msg("failed to set session")
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(sessionMgr)
}

// consumeNotifications 消费通知主题并推送给本节点在线的用户。
// 不在本节点的用户由持有其会话的其它网关实例消费推送。
func consumeNotifications(ctx context.Context, hub *Hub, reader *kafka.Reader) {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Logger().Error().Err(err).Msg("could not read notification message")
			continue
		}

		var event domain.NotificationEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Logger().Error().Err(err).Msg("failed to unmarshal notification event")
			continue
		}

		if hub.pushTo(event.RecipientID, msg.Value) {
			logger.Logger().Debug().
				Str("recipient", event.RecipientID).
				Str("eventType", event.EventType).
				Msg("notification pushed over websocket")
		}
	}
}

func main() {
	bootstrap.Init()
	cfg := bootstrap.GetCurrentConfig()
	logger.Init(serviceName)

	sessionMgr := session.NewManager(cfg.Infra.Redis.Addr)
	defer sessionMgr.Close()

	hub := newHub()
	go hub.run()

	reader := mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.NotificationTopic, nodeID)
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go consumeNotifications(ctx, hub, reader)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(hub, sessionMgr, w, r)
	})

	server := &http.Server{Addr: ":8088", Handler: mux}
	go func() {
		logger.Logger().Info().Str("node", nodeID).Msg("push gateway listening on :8088")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger().Fatal().Err(err).Msg("could not start push gateway")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger().Info().Msg("Shutting down push-gateway...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Logger().Error().Err(err).Msg("error shutting down http server")
	}
}
