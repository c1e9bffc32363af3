// Package notify 进程内的 SSE 订阅者注册表
package notify

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// 事件类型
const (
	EventNewMessage  = "new_message"
	EventOrderUpdate = "order_update"
	EventTracking    = "tracking_update"
	EventSyncDone    = "sync_done"
	EventBroadcast   = "message"
)

// Event 推送给前端的事件
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
	At   time.Time       `json:"at"`
}

// NewEvent data 无法序列化时以 null 发送
func NewEvent(typ string, data any) Event {
	raw, err := json.Marshal(data)
	if err != nil {
		raw = []byte("null")
	}
	return Event{Type: typ, Data: raw, At: time.Now()}
}

// Client 一个 SSE 连接
type Client struct {
	ID     uint64
	events chan Event
	once   sync.Once
}

// Events 连接注销后通道关闭
func (c *Client) Events() <-chan Event { return c.events }

func (c *Client) close() { c.once.Do(func() { close(c.events) }) }

// Hub 并发安全的连接注册表
type Hub struct {
	mu       sync.RWMutex
	clients  map[uint64]*Client
	nextID   atomic.Uint64
	buffer   int
	onChange func(n int)
}

// NewHub buffer 为每个连接的待发送队列长度
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{clients: make(map[uint64]*Client), buffer: buffer}
}

// OnChange 连接数变化回调（指标用）
func (h *Hub) OnChange(fn func(n int)) {
	h.mu.Lock()
	h.onChange = fn
	h.mu.Unlock()
}

// Register 新连接加入
func (h *Hub) Register() *Client {
	c := &Client{ID: h.nextID.Add(1), events: make(chan Event, h.buffer)}
	h.mu.Lock()
	h.clients[c.ID] = c
	n, fn := len(h.clients), h.onChange
	h.mu.Unlock()
	if fn != nil {
		fn(n)
	}
	return c
}

// Unregister 连接断开时调用，可重复调用
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c.ID]
	delete(h.clients, c.ID)
	n, fn := len(h.clients), h.onChange
	h.mu.Unlock()
	c.close()
	if ok && fn != nil {
		fn(n)
	}
}

// Broadcast 发给所有连接，返回成功入队的数量
// 队列已满的慢连接会被移除，由其读循环感知通道关闭后退出
func (h *Hub) Broadcast(e Event) int {
	var slow []*Client
	delivered := 0

	h.mu.RLock()
	for _, c := range h.clients {
		select {
		case c.events <- e:
			delivered++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.Unregister(c)
	}
	return delivered
}

// Count 当前连接数
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close 关闭全部连接（服务退出时）
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[uint64]*Client)
	h.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}
