package task

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// TokenRefresher *service.TokenService 实现
type TokenRefresher interface {
	RefreshExpiring(ctx context.Context, within time.Duration) (success, failed int, err error)
}

// TokenTask 定时为即将过期的店铺续期 access token
type TokenTask struct {
	refresher TokenRefresher
	cron      *cron.Cron
	spec      string
	within    time.Duration
	timeout   time.Duration
	log       *zap.Logger
}

func NewTokenTask(refresher TokenRefresher, spec string, within time.Duration, log *zap.Logger) *TokenTask {
	return &TokenTask{
		refresher: refresher,
		cron:      newCron(log),
		spec:      spec,
		within:    within,
		timeout:   5 * time.Minute,
		log:       log.Named("token_task"),
	}
}

// Start runOnStart 为 true 时立即在后台执行一轮
func (t *TokenTask) Start(runOnStart bool) error {
	if _, err := t.cron.AddFunc(t.spec, t.run); err != nil {
		return fmt.Errorf("注册 Token 定时任务失败 (%s): %w", t.spec, err)
	}
	if runOnStart {
		go t.run()
	}
	t.cron.Start()
	t.log.Info("[Task] Token 保活任务已启动", zap.String("cron", t.spec), zap.Duration("within", t.within))
	return nil
}

// Stop 等待正在执行的一轮结束
func (t *TokenTask) Stop() {
	<-t.cron.Stop().Done()
}

func (t *TokenTask) run() {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()
	_, _, _ = t.RunOnce(ctx)
}

// RunOnce 执行一轮
func (t *TokenTask) RunOnce(ctx context.Context) (int, int, error) {
	start := time.Now()
	success, failed, err := t.refresher.RefreshExpiring(ctx, t.within)
	if err != nil {
		t.log.Error("[Task] Token 刷新任务失败", zap.Error(err))
		return success, failed, err
	}
	t.log.Info("[Task] 本轮 Token 刷新完成",
		zap.Int("success", success), zap.Int("failed", failed), zap.Duration("elapsed", time.Since(start)))
	return success, failed, nil
}
