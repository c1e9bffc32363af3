package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"shopee_admin_v1/internal/config"
	"shopee_admin_v1/internal/controller"
	"shopee_admin_v1/internal/logger"
	"shopee_admin_v1/internal/metrics"
	"shopee_admin_v1/internal/middleware"
	"shopee_admin_v1/internal/model"
	"shopee_admin_v1/internal/notify"
	"shopee_admin_v1/internal/repository"
	"shopee_admin_v1/internal/router"
	"shopee_admin_v1/internal/service"
	"shopee_admin_v1/internal/task"
	"shopee_admin_v1/pkg/cache"
	"shopee_admin_v1/pkg/database"
	appnet "shopee_admin_v1/pkg/net"
	"shopee_admin_v1/pkg/shopee"
)

func main() {
	// 1. 配置与日志
	cfg, err := config.Load(getEnv("CONFIG_FILE", ""))
	if err != nil {
		panic(err)
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatal("配置校验失败", zap.Error(err))
	}
	gin.SetMode(cfg.Server.Mode)

	// 2. 初始化数据库
	db := initDatabase(cfg, log)

	// 3. 初始化依赖
	deps := initDependencies(cfg, db, log)

	// 4. 启动定时任务
	if err := deps.Tasks.Start(); err != nil {
		log.Fatal("定时任务启动失败", zap.Error(err))
	}

	// 5. 初始化路由并启动服务
	r := router.SetupRouter(deps.Controllers, router.Options{
		Log:            log,
		Limiter:        deps.Limiter,
		MetricsHandler: metrics.Handler(deps.Registry),
	})
	startServer(cfg, r, deps, log)
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB          *gorm.DB
	Cache       cache.TokenCache
	Hub         *notify.Hub
	Registry    *prometheus.Registry
	Limiter     *middleware.SyncRateLimiter
	Services    *Services
	Tasks       *task.TaskManager
	Controllers *router.Controllers
}

// Services 服务集合
type Services struct {
	Token   *service.TokenService
	Auth    *service.AuthService
	Shop    *service.ShopService
	Order   *service.OrderService
	Sync    *service.OrderSyncService
	User    *service.UserService
	Webhook *service.WebhookService
}

// ==================== 初始化函数 ====================

// initDatabase 初始化数据库
func initDatabase(cfg *config.Config, log *zap.Logger) *gorm.DB {
	db, err := database.InitDB(database.Options{
		DSN:             cfg.Database.DSN,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		AutoMigrate:     cfg.Database.AutoMigrate,
		Logger:          logger.NewGormLogger(log, logger.GormLevel(cfg.Log.Level), cfg.Database.SlowThreshold),
	}, model.All()...)
	if err != nil {
		log.Fatal("数据库初始化失败", zap.Error(err))
	}
	return db
}

// initTokenCache 未配置 Redis 时使用进程内缓存
func initTokenCache(cfg *config.Config, log *zap.Logger) cache.TokenCache {
	if cfg.Redis.URL == "" {
		log.Info("未配置 Redis，Token 缓存使用进程内存")
		return cache.NewMemoryTokenCache()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := cache.NewRedisClient(ctx, cfg.Redis.URL)
	if err != nil {
		log.Warn("Redis 不可用，Token 缓存退化为进程内存", zap.Error(err))
		return cache.NewMemoryTokenCache()
	}
	return cache.NewRedisTokenCache(client, cfg.Redis.KeyPrefix)
}

// initDependencies 初始化所有依赖
func initDependencies(cfg *config.Config, db *gorm.DB, log *zap.Logger) *Dependencies {
	// -------- 基础设施 --------
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewCollector(registry)

	tokenCache := initTokenCache(cfg, log)

	hub := notify.NewHub(32)
	hub.OnChange(recorder.SetSSEClients)

	client := shopee.NewClient(shopee.Config{
		PartnerID:  cfg.Shopee.PartnerID,
		PartnerKey: cfg.Shopee.PartnerKey,
		Host:       cfg.Shopee.Host,
		Timeout:    cfg.Shopee.Timeout,
		RetryCount: cfg.Shopee.RetryCount,
		RetryWait:  cfg.Shopee.RetryWait,
	},
		shopee.WithThrottle(appnet.NewThrottle(cfg.Shopee.RatePerSecond, cfg.Shopee.Burst)),
		shopee.WithObserver(recorder),
		shopee.WithLogger(log),
	)

	middleware.SetJWTConfig(&middleware.JWTConfig{
		SecretKey:       cfg.Admin.JWTSecret,
		AccessTokenTTL:  cfg.Admin.JWTTTL,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		Issuer:          middleware.DefaultJWTConfig().Issuer,
	})
	limiter := middleware.NewSyncRateLimiter(map[middleware.SyncType]time.Duration{
		middleware.SyncTypeOrderStream: cfg.Sync.ManualCooldown,
		middleware.SyncTypeAuto:        cfg.Sync.AutoSyncCooldown,
	})

	// -------- Repo 层 --------
	shopRepo := repository.NewShopRepository(db)
	orderRepo := repository.NewOrderRepository(db)

	// -------- 业务服务 --------
	tokenCfg := service.DefaultTokenConfig()
	tokenCfg.RefreshSkew = cfg.Token.RefreshSkew
	tokenCfg.RefreshAttempts = cfg.Token.RefreshAttempts
	tokenCfg.RefreshRetryDelay = cfg.Token.RefreshRetryDelay
	tokenCfg.CacheTTL = cfg.Token.CacheTTL

	svc := &Services{}
	svc.Token = service.NewTokenService(shopRepo, client, tokenCache, tokenCfg, log, recorder)
	svc.Auth = service.NewAuthService(client, svc.Token, cfg.Shopee.RedirectURL, log)
	svc.Shop = service.NewShopService(shopRepo, client, svc.Token, log)
	svc.Order = service.NewOrderService(orderRepo)
	svc.Sync = service.NewOrderSyncService(shopRepo, orderRepo, client, svc.Token, service.SyncConfig{
		PageSize:        cfg.Shopee.PageSize,
		DetailBatchSize: cfg.Shopee.DetailBatchSize,
		MaxPages:        cfg.Shopee.MaxPages,
		DefaultWindow:   cfg.Sync.DefaultWindow,
		ShopConcurrency: cfg.Sync.ShopConcurrency,
	}, log, recorder)
	svc.User = service.NewUserService(service.AdminAccount{
		Username:     cfg.Admin.Username,
		PasswordHash: cfg.Admin.PasswordHash,
	}, log)
	svc.Webhook = service.NewWebhookService(svc.Sync, orderRepo, hub, client, service.WebhookConfig{
		VerifySignature: cfg.Webhook.VerifySignature,
		CallbackURL:     cfg.Webhook.CallbackURL,
		HandleTimeout:   2 * time.Minute,
	}, log)

	// -------- 定时任务 --------
	taskCfg := task.DefaultConfig()
	taskCfg.Enabled = cfg.Sync.Enabled
	taskCfg.TokenCron = cfg.Sync.TokenCron
	taskCfg.AutoSyncCron = cfg.Sync.AutoSyncCron
	taskCfg.AutoSyncWindow = cfg.Sync.AutoSyncWindow
	taskCfg.ExpiringWithin = cfg.Token.ExpiringWithin
	tasks := task.NewTaskManager(task.Deps{Tokens: svc.Token, Syncer: svc.Sync, Hub: hub}, taskCfg, log)

	// -------- Controller 层 --------
	controllers := &router.Controllers{
		User:    controller.NewUserController(svc.User),
		Auth:    controller.NewAuthController(svc.Auth, "/shops"),
		Shop:    controller.NewShopController(svc.Shop),
		Order:   controller.NewOrderController(svc.Order),
		Sync:    controller.NewSyncController(svc.Sync, limiter, cfg.Sync.AutoSyncWindow),
		Webhook: controller.NewWebhookController(svc.Webhook),
		SSE:     controller.NewSSEController(hub, 30*time.Second),
		Health: controller.NewHealthController(map[string]controller.Pinger{
			"database": controller.PingFunc(func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			}),
			"cache": tokenCache,
		}),
	}

	return &Dependencies{
		DB:          db,
		Cache:       tokenCache,
		Hub:         hub,
		Registry:    registry,
		Limiter:     limiter,
		Services:    svc,
		Tasks:       tasks,
		Controllers: controllers,
	}
}

// ==================== 服务启动 ====================

// startServer 启动服务并等待退出信号
func startServer(cfg *config.Config, r *gin.Engine, deps *Dependencies, log *zap.Logger) {
	srv := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		// WriteTimeout 为 0：SSE 与流式同步是长连接
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 异步启动服务
	go func() {
		log.Info("服务启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("服务启动失败", zap.Error(err))
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// SSE 连接先断开，否则 Shutdown 会一直等待
	deps.Hub.Close()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("服务强制关闭", zap.Error(err))
	}
	deps.Tasks.Stop()
	deps.Services.Webhook.Wait()

	log.Info("服务已退出")
}

// ==================== 工具函数 ====================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
