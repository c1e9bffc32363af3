package task

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"shopee_admin_v1/internal/api/dto"
	"shopee_admin_v1/internal/notify"
)

// ==================== OrderSyncTask 全店铺滚动同步 ====================

// AutoSyncer *service.OrderSyncService 实现
type AutoSyncer interface {
	AutoSync(ctx context.Context, window time.Duration) (*dto.AutoSyncResponse, error)
}

// Broadcaster 同步结束后通知前端
type Broadcaster interface {
	Broadcast(e notify.Event) int
}

// OrderSyncTask 定时对所有活跃店铺做滚动窗口同步
type OrderSyncTask struct {
	syncer  AutoSyncer
	hub     Broadcaster
	cron    *cron.Cron
	spec    string
	window  time.Duration
	timeout time.Duration
	log     *zap.Logger
}

func NewOrderSyncTask(syncer AutoSyncer, hub Broadcaster, spec string, window time.Duration, log *zap.Logger) *OrderSyncTask {
	return &OrderSyncTask{
		syncer:  syncer,
		hub:     hub,
		cron:    newCron(log),
		spec:    spec,
		window:  window,
		timeout: 30 * time.Minute,
		log:     log.Named("order_task"),
	}
}

// Start 注册并启动
func (t *OrderSyncTask) Start() error {
	_, err := t.cron.AddFunc(t.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()
		_, _ = t.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("注册订单同步定时任务失败 (%s): %w", t.spec, err)
	}
	t.cron.Start()
	t.log.Info("[Task] 订单自动同步已启动", zap.String("cron", t.spec), zap.Duration("window", t.window))
	return nil
}

// Stop 停止任务
func (t *OrderSyncTask) Stop() {
	<-t.cron.Stop().Done()
}

// RunOnce 同步一轮并广播结果
func (t *OrderSyncTask) RunOnce(ctx context.Context) (*dto.AutoSyncResponse, error) {
	resp, err := t.syncer.AutoSync(ctx, t.window)
	if err != nil {
		t.log.Error("[Task] 自动同步失败", zap.Error(err))
		return nil, err
	}
	if t.hub != nil {
		t.hub.Broadcast(notify.NewEvent(notify.EventSyncDone, map[string]any{
			"total_orders": resp.TotalOrders,
			"message":      resp.Message,
		}))
	}
	return resp, nil
}
