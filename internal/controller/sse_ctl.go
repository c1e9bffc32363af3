package controller

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"shopee_admin_v1/internal/notify"
)

// EventHub *notify.Hub 实现
type EventHub interface {
	Register() *notify.Client
	Unregister(c *notify.Client)
	Broadcast(e notify.Event) int
}

// SSEController 前端实时通知
type SSEController struct {
	hub       EventHub
	heartbeat time.Duration
}

func NewSSEController(hub EventHub, heartbeat time.Duration) *SSEController {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &SSEController{hub: hub, heartbeat: heartbeat}
}

// Stream 订阅事件流
// @Summary 订阅实时事件（SSE）
// @Tags SSE
// @Produce text/event-stream
// @Router /api/sse [get]
func (c *SSEController) Stream(ctx *gin.Context) {
	client := c.hub.Register()
	defer c.hub.Unregister(client)

	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("Connection", "keep-alive")
	ctx.Header("X-Accel-Buffering", "no")
	ctx.SSEvent("connected", gin.H{"client_id": client.ID})
	ctx.Writer.Flush()

	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()

	ctx.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Request.Context().Done():
			return false
		case e, open := <-client.Events():
			if !open {
				return false
			}
			ctx.SSEvent(e.Type, e)
			return true
		case <-ticker.C:
			ctx.SSEvent("heartbeat", time.Now().Unix())
			return true
		}
	})
}

// BroadcastReq 手动广播
type BroadcastReq struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Broadcast 向所有连接广播，返回送达数
// @Router /api/sse [post]
func (c *SSEController) Broadcast(ctx *gin.Context) {
	var req BroadcastReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}
	if req.Type == "" {
		req.Type = notify.EventBroadcast
	}
	n := c.hub.Broadcast(notify.NewEvent(req.Type, req.Data))
	ok(ctx, gin.H{"delivered": n})
}
