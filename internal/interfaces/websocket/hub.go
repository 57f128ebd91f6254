package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nexira/nexira/internal/domain/entity"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // 本地单用户服务, 不限制来源
	},
}

// MessageType 消息类型
type MessageType string

const (
	MessageTypeChat     MessageType = "chat"     // 入站: 一条用户消息
	MessageTypeResponse MessageType = "response" // 出站: 模型回答
	MessageTypeActivity MessageType = "activity" // 出站: 自主行为事件
	MessageTypeThinking MessageType = "thinking" // 出站: 正在生成的提示
	MessageTypeError    MessageType = "error"
	MessageTypePing     MessageType = "ping"
	MessageTypePong     MessageType = "pong"
)

// WSMessage WebSocket 报文
type WSMessage struct {
	Type       MessageType    `json:"type"`
	Content    string         `json:"content,omitempty"`
	AIName     string         `json:"ai_name,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`
	Actions    any            `json:"actions,omitempty"`
	Extra      map[string]any `json:"extra,omitempty"`
	Timestamp  int64          `json:"timestamp"`
}

// Client 一条浏览器连接
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	logger *zap.Logger
}

// Hub 连接中心, 负责注册/注销/广播
type Hub struct {
	clients    map[string]*Client
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	logger     *zap.Logger
	mu         sync.RWMutex

	// 入站聊天回调, 在独立 goroutine 里执行
	onChat func(ctx context.Context, client *Client, content string)
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.With(zap.String("component", "websocket")),
	}
}

// SetChatHandler 注册入站消息处理器
func (h *Hub) SetChatHandler(fn func(ctx context.Context, client *Client, content string)) {
	h.onChat = fn
}

// Run 事件循环, ctx 取消时退出
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.logger.Info("Client connected", zap.String("client_id", client.id))
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("Client disconnected", zap.String("client_id", client.id))
		case message := <-h.broadcast:
			h.mu.Lock()
			for id, client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, id)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast 推送给所有连接
func (h *Hub) Broadcast(msg *WSMessage) {
	msg.Timestamp = time.Now().Unix()
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("Broadcast channel full, dropping message")
	}
}

// BroadcastActivity 把自主行为事件推给前端活动流
func (h *Hub) BroadcastActivity(event *entity.ActivityEvent) {
	h.Broadcast(&WSMessage{
		Type:    MessageTypeActivity,
		Content: event.Label,
		Extra: map[string]any{
			"event_type": event.Type,
			"detail":     event.Detail,
			"at":         event.Timestamp.Format(time.RFC3339),
		},
	})
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS 升级 HTTP 连接并接管读写
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", zap.Error(err))
		return
	}

	client := &Client{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan []byte, 256),
		hub:    h,
		logger: h.logger,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// Send 发送给单个客户端
func (c *Client) Send(msg *WSMessage) {
	msg.Timestamp = time.Now().Unix()
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket read error", zap.Error(err))
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.Send(&WSMessage{Type: MessageTypeError, Content: "invalid message"})
			continue
		}

		switch msg.Type {
		case MessageTypePing:
			c.Send(&WSMessage{Type: MessageTypePong})
		case MessageTypeChat:
			if c.hub.onChat != nil {
				// 生成可能要几十秒, 不阻塞读循环
				go c.hub.onChat(context.Background(), c, msg.Content)
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
