package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shopee_admin_v1/internal/controller"
	"shopee_admin_v1/internal/logger"
	"shopee_admin_v1/internal/middleware"
)

// Controllers 路由依赖的全部控制器
type Controllers struct {
	User    *controller.UserController
	Auth    *controller.AuthController
	Shop    *controller.ShopController
	Order   *controller.OrderController
	Sync    *controller.SyncController
	Webhook *controller.WebhookController
	SSE     *controller.SSEController
	Health  *controller.HealthController
}

// Options 路由级依赖
type Options struct {
	Log            *zap.Logger
	Limiter        *middleware.SyncRateLimiter
	MetricsHandler http.Handler
}

// SetupRouter 注册所有路由
func SetupRouter(ctl *Controllers, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(logger.RequestID(), logger.GinMiddleware(opts.Log), logger.Recovery(opts.Log))

	// 1. 运维
	r.GET("/health", ctl.Health.Health)
	if opts.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}

	api := r.Group("/api")

	// 2. 无需登录：管理员登录、平台回调与推送
	{
		api.POST("/auth/login", ctl.User.Login)
		api.POST("/auth/refresh", ctl.User.RefreshToken)

		// GET /api/callback 平台授权完成后跳回
		api.GET("/callback", ctl.Auth.Callback)

		// POST /api/webhook 平台推送，靠签名校验
		api.POST("/webhook", ctl.Webhook.Receive)
	}

	// 3. 需要登录
	authed := api.Group("", middleware.JWTAuth())
	{
		// OAuth
		authed.GET("/generate-auth-url", ctl.Auth.GenerateAuthURL)
		authed.GET("/generate-deauth-url", ctl.Auth.GenerateDeauthURL)

		// shop 店铺管理
		shops := authed.Group("/shops")
		{
			shops.GET("", ctl.Shop.GetShopList)
			shops.POST("/:shop_id/block", ctl.Shop.Block)
			shops.POST("/:shop_id/unblock", ctl.Shop.Unblock)
		}
		authed.POST("/cek-token", ctl.Shop.CheckToken)
		authed.POST("/refresh_token",
			middleware.GlobalSyncRateLimit(opts.Limiter, middleware.SyncTypeTokenAll), ctl.Shop.RefreshAll)

		// order 本地订单
		orders := authed.Group("/orders")
		{
			orders.GET("", ctl.Order.ListOrders)
			orders.GET("/:order_sn", ctl.Order.GetOrder)
		}

		// sync 同步；店铺级冷却在 controller 内校验参数后执行
		authed.POST("/sync", ctl.Sync.SyncByOrderSns)
		authed.POST("/sync/stream", ctl.Sync.SyncStream)
		authed.GET("/auto-sync",
			middleware.GlobalSyncRateLimit(opts.Limiter, middleware.SyncTypeAuto), ctl.Sync.AutoSync)

		// SSE：浏览器 EventSource 无法带 header，JWTAuth 同时接受 ?token=
		authed.GET("/sse", ctl.SSE.Stream)
		authed.POST("/sse", ctl.SSE.Broadcast)
	}

	return r
}
