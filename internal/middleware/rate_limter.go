package middleware

import (
	"fmt"
	"sync"
	"time"
)

// ==================== SyncRateLimiter 同步冷却 ====================

// SyncRateLimiter 手动同步冷却，避免重复点击把店铺的平台配额打满
type SyncRateLimiter struct {
	locks     sync.Map // key -> *lockEntry
	intervals sync.Map // SyncType -> time.Duration
	now       func() time.Time
}

type lockEntry struct {
	lastTime time.Time
	mu       sync.Mutex
}

// NewSyncRateLimiter intervals 覆盖默认冷却
func NewSyncRateLimiter(intervals map[SyncType]time.Duration) *SyncRateLimiter {
	r := &SyncRateLimiter{now: time.Now}
	for t, d := range DefaultIntervals {
		r.intervals.Store(t, d)
	}
	for t, d := range intervals {
		if d > 0 {
			r.intervals.Store(t, d)
		}
	}
	return r
}

// CheckResult 检查结果
type CheckResult struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Check 允许时同时记录本次执行时间
func (r *SyncRateLimiter) Check(key string, interval time.Duration) CheckResult {
	actual, _ := r.locks.LoadOrStore(key, &lockEntry{})
	entry := actual.(*lockEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := r.now()
	if elapsed := now.Sub(entry.lastTime); elapsed < interval {
		return CheckResult{RetryAfter: interval - elapsed}
	}
	entry.lastTime = now
	return CheckResult{Allowed: true}
}

// CheckShop 按店铺 + 类型检查
func (r *SyncRateLimiter) CheckShop(shopID int64, syncType SyncType) CheckResult {
	return r.Check(ShopSyncKey(shopID, syncType), r.Interval(syncType))
}

// Reset 同步失败时释放冷却，允许立即重试
func (r *SyncRateLimiter) Reset(key string) {
	r.locks.Delete(key)
}

// Interval 获取同步类型的冷却间隔
func (r *SyncRateLimiter) Interval(syncType SyncType) time.Duration {
	if d, ok := r.intervals.Load(syncType); ok {
		return d.(time.Duration)
	}
	return 30 * time.Second
}

// ==================== Key 生成工具 ====================

// SyncType 同步类型
type SyncType string

const (
	SyncTypeOrderSns    SyncType = "order_sns"
	SyncTypeOrderStream SyncType = "order_stream"
	SyncTypeAuto        SyncType = "auto_sync"
	SyncTypeTokenAll    SyncType = "token_refresh_all"
)

// ShopSyncKey 店铺级 key
func ShopSyncKey(shopID int64, syncType SyncType) string {
	return fmt.Sprintf("shop:%d:%s", shopID, syncType)
}

// GlobalSyncKey 全局 key
func GlobalSyncKey(syncType SyncType) string {
	return fmt.Sprintf("global:%s", syncType)
}

// DefaultIntervals 默认冷却
var DefaultIntervals = map[SyncType]time.Duration{
	SyncTypeOrderSns:    10 * time.Second, // 推送驱动的补单频率高，冷却短
	SyncTypeOrderStream: 30 * time.Second,
	SyncTypeAuto:        time.Minute,
	SyncTypeTokenAll:    time.Minute,
}
