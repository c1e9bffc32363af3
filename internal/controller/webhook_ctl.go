package controller

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shopee_admin_v1/internal/logger"
)

// maxPushBody 推送体上限
const maxPushBody = 1 << 20

// PushHandler *service.WebhookService 实现
type PushHandler interface {
	Verify(body []byte, authorization string) bool
	Dispatch(body []byte)
}

type WebhookController struct {
	handler PushHandler
}

func NewWebhookController(handler PushHandler) *WebhookController {
	return &WebhookController{handler: handler}
}

// Receive 平台推送入口，验签后立即应答，处理在后台进行
// @Summary 平台推送
// @Tags Webhook
// @Accept json
// @Success 200
// @Failure 401
// @Router /api/webhook [post]
func (c *WebhookController) Receive(ctx *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxPushBody))
	if err != nil {
		fail(ctx, http.StatusBadRequest, "读取推送内容失败")
		return
	}
	if !c.handler.Verify(body, ctx.GetHeader("Authorization")) {
		logger.FromGin(ctx).Warn("[Webhook] 推送签名校验失败", zap.Int("size", len(body)))
		fail(ctx, http.StatusUnauthorized, "签名无效")
		return
	}

	c.handler.Dispatch(body)
	ctx.Status(http.StatusOK)
}
