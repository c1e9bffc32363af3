package task

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"shopee_admin_v1/internal/api/dto"
)

// ==================== TaskManager 定时任务管理器 ====================

// TaskManager 统一管理 Token 保活与订单自动同步
type TaskManager struct {
	tokenTask *TokenTask
	orderTask *OrderSyncTask
	cfg       Config
	log       *zap.Logger
}

// Deps 任务依赖
type Deps struct {
	Tokens TokenRefresher
	Syncer AutoSyncer
	Hub    Broadcaster
}

// Config 任务配置
type Config struct {
	Enabled        bool
	TokenCron      string
	ExpiringWithin time.Duration
	AutoSyncCron   string
	AutoSyncWindow time.Duration
	RunOnStart     bool
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		TokenCron:      "0 0/40 * * * *",
		ExpiringWithin: 30 * time.Minute,
		AutoSyncCron:   "0 0 * * * *",
		AutoSyncWindow: 24 * time.Hour,
		RunOnStart:     true,
	}
}

// NewTaskManager Token 保活总是启用；订单自动同步受 Enabled 控制
func NewTaskManager(deps Deps, cfg Config, log *zap.Logger) *TaskManager {
	tm := &TaskManager{cfg: cfg, log: log.Named("tasks")}
	if deps.Tokens != nil {
		tm.tokenTask = NewTokenTask(deps.Tokens, cfg.TokenCron, cfg.ExpiringWithin, log)
	}
	if cfg.Enabled && deps.Syncer != nil {
		tm.orderTask = NewOrderSyncTask(deps.Syncer, deps.Hub, cfg.AutoSyncCron, cfg.AutoSyncWindow, log)
	}
	return tm
}

// ==================== 生命周期管理 ====================

// Start 启动所有任务，cron 表达式错误时返回
func (tm *TaskManager) Start() error {
	if tm.tokenTask != nil {
		if err := tm.tokenTask.Start(tm.cfg.RunOnStart); err != nil {
			return err
		}
	}
	if tm.orderTask != nil {
		if err := tm.orderTask.Start(); err != nil {
			return err
		}
	}
	tm.log.Info("[TaskManager] 定时任务已全部启动", zap.Any("status", tm.Status()))
	return nil
}

// Stop 停止所有任务
func (tm *TaskManager) Stop() {
	if tm.orderTask != nil {
		tm.orderTask.Stop()
	}
	if tm.tokenTask != nil {
		tm.tokenTask.Stop()
	}
	tm.log.Info("[TaskManager] 定时任务已全部停止")
}

// ==================== 手动触发接口 ====================

// TriggerAutoSync 立即执行一轮自动同步
func (tm *TaskManager) TriggerAutoSync(ctx context.Context) (*dto.AutoSyncResponse, error) {
	if tm.orderTask == nil {
		return nil, ErrTaskDisabled
	}
	return tm.orderTask.RunOnce(ctx)
}

// TriggerTokenRefresh 立即执行一轮 Token 保活
func (tm *TaskManager) TriggerTokenRefresh(ctx context.Context) (int, int, error) {
	if tm.tokenTask == nil {
		return 0, 0, ErrTaskDisabled
	}
	return tm.tokenTask.RunOnce(ctx)
}

// Status 任务启用情况
func (tm *TaskManager) Status() map[string]bool {
	return map[string]bool{
		"token":      tm.tokenTask != nil,
		"order_sync": tm.orderTask != nil,
	}
}

// newCron 秒级表达式；上一轮未结束时跳过本轮，任务 panic 不影响调度
func newCron(log *zap.Logger) *cron.Cron {
	logger := cronLogger{log.Named("cron")}
	return cron.New(
		cron.WithSeconds(),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
}

// cronLogger 把 cron 的日志接到 zap
type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, zap.Any("kv", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, zap.Error(err), zap.Any("kv", keysAndValues))
}

// ==================== 错误定义 ====================

type TaskError string

func (e TaskError) Error() string { return string(e) }

const (
	ErrTaskDisabled TaskError = "task is disabled"
)
