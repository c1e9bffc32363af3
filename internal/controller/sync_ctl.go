package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shopee_admin_v1/internal/api/dto"
	"shopee_admin_v1/internal/logger"
	"shopee_admin_v1/internal/middleware"
	"shopee_admin_v1/internal/service"
	"shopee_admin_v1/pkg/shopee"
)

// OrderSyncer *service.OrderSyncService 实现
type OrderSyncer interface {
	SyncOrders(ctx context.Context, shopID int64, opts service.SyncOptions) (*dto.SyncResult, error)
	SyncOrdersByOrderSns(ctx context.Context, shopID int64, orderSns []string) (*dto.SyncResult, error)
	AutoSync(ctx context.Context, window time.Duration) (*dto.AutoSyncResponse, error)
}

// SyncController 订单同步入口
type SyncController struct {
	syncer     OrderSyncer
	limiter    *middleware.SyncRateLimiter
	autoWindow time.Duration
}

func NewSyncController(syncer OrderSyncer, limiter *middleware.SyncRateLimiter, autoWindow time.Duration) *SyncController {
	return &SyncController{syncer: syncer, limiter: limiter, autoWindow: autoWindow}
}

// ==================== Handler 实现 ====================

// SyncByOrderSns 按订单号同步
// @Summary 按订单号同步订单
// @Tags Sync
// @Accept json
// @Produce json
// @Param request body dto.SyncByOrderSnsRequest true "shopId + orderSns"
// @Success 200 {object} dto.SyncByOrderSnsResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 429 {object} map[string]interface{} "冷却中"
// @Router /api/sync [post]
func (c *SyncController) SyncByOrderSns(ctx *gin.Context) {
	var req dto.SyncByOrderSnsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, http.StatusBadRequest, "请求体不是合法的 JSON")
		return
	}
	if req.ShopID == nil || *req.ShopID <= 0 {
		fail(ctx, http.StatusBadRequest, "shopId 不能为空")
		return
	}
	var orderSns []string
	raw := bytes.TrimSpace(req.OrderSns)
	if len(raw) == 0 || raw[0] != '[' || json.Unmarshal(raw, &orderSns) != nil {
		fail(ctx, http.StatusBadRequest, "orderSns 必须是字符串数组")
		return
	}

	shopID := *req.ShopID
	if res := c.limiter.CheckShop(shopID, middleware.SyncTypeOrderSns); !res.Allowed {
		middleware.AbortCooldown(ctx, middleware.SyncTypeOrderSns, res.RetryAfter)
		return
	}

	result, err := c.syncer.SyncOrdersByOrderSns(ctx.Request.Context(), shopID, orderSns)
	if err != nil {
		c.limiter.Reset(middleware.ShopSyncKey(shopID, middleware.SyncTypeOrderSns))
		logger.FromGin(ctx).Error("[Sync] 按订单号同步失败", zap.Int64("shop_id", shopID), zap.Error(err))
		fail(ctx, statusOf(err), err.Error())
		return
	}

	ctx.JSON(http.StatusOK, dto.SyncByOrderSnsResponse{
		Success: true,
		Data: dto.SyncCounts{
			Total:   result.Data.Total,
			Success: result.Data.Processed,
			Failed:  result.Data.Total - result.Data.Processed,
		},
	})
}

// SyncStream 时间窗同步，以 NDJSON 逐行返回进度，最后一行为结果
// @Summary 时间窗同步订单（流式）
// @Tags Sync
// @Accept json
// @Produce application/x-ndjson
// @Param request body dto.SyncWindowRequest true "同步参数"
// @Router /api/sync/stream [post]
func (c *SyncController) SyncStream(ctx *gin.Context) {
	var req dto.SyncWindowRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, http.StatusBadRequest, "请求体不是合法的 JSON")
		return
	}
	if req.ShopID == nil || *req.ShopID <= 0 {
		fail(ctx, http.StatusBadRequest, "shopId 不能为空")
		return
	}

	opts := service.SyncOptions{
		TimeRangeField: shopee.TimeRangeField(req.TimeRangeField),
		OrderStatus:    req.OrderStatus,
	}
	if req.StartTime > 0 {
		opts.Start = time.Unix(req.StartTime, 0)
	}
	if req.EndTime > 0 {
		opts.End = time.Unix(req.EndTime, 0)
	}
	if err := service.ValidateSyncOptions(opts); err != nil {
		fail(ctx, http.StatusBadRequest, err.Error())
		return
	}

	shopID := *req.ShopID
	if res := c.limiter.CheckShop(shopID, middleware.SyncTypeOrderStream); !res.Allowed {
		middleware.AbortCooldown(ctx, middleware.SyncTypeOrderStream, res.RetryAfter)
		return
	}

	ctx.Header("Content-Type", "application/x-ndjson")
	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("X-Accel-Buffering", "no")
	ctx.Status(http.StatusOK)

	enc := json.NewEncoder(ctx.Writer)
	write := func(line dto.StreamLine) {
		if err := enc.Encode(line); err == nil {
			ctx.Writer.Flush()
		}
	}
	opts.OnProgress = func(p dto.SyncProgress) {
		write(dto.StreamLine{Type: "progress", Progress: &p})
	}
	opts.OnError = func(orderSN string, err error) {
		write(dto.StreamLine{Type: "error", Error: orderSN + ": " + err.Error()})
	}

	result, err := c.syncer.SyncOrders(ctx.Request.Context(), shopID, opts)
	if err != nil {
		c.limiter.Reset(middleware.ShopSyncKey(shopID, middleware.SyncTypeOrderStream))
		logger.FromGin(ctx).Warn("[Sync] 流式同步失败", zap.Int64("shop_id", shopID), zap.Error(err))
		if result == nil {
			result = &dto.SyncResult{Error: err.Error()}
		}
	}
	write(dto.StreamLine{Type: "result", Result: result})
}

// AutoSync 所有活跃店铺滚动同步
// @Summary 全店铺自动同步（最近 24 小时）
// @Tags Sync
// @Produce json
// @Success 200 {object} dto.AutoSyncResponse
// @Router /api/auto-sync [get]
func (c *SyncController) AutoSync(ctx *gin.Context) {
	resp, err := c.syncer.AutoSync(ctx.Request.Context(), c.autoWindow)
	if err != nil {
		logger.FromGin(ctx).Error("[Sync] 自动同步失败", zap.Error(err))
		fail(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// statusOf 业务错误映射为 HTTP 状态码
func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrShopNotFound), errors.Is(err, service.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrShopRevoked), errors.Is(err, service.ErrShopUnauthorized):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidSyncOptions):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
