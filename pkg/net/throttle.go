package net

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Throttle 出站调用节流器 (通用组件)
// 每个业务键 (shopID) 一个令牌桶，另有一个应用级总桶；
// 平台的限流同时按 partner 与 shop 维度计算。
type Throttle struct {
	global   *rate.Limiter
	perKey   rate.Limit
	burst    int
	limiters sync.Map // int64 -> *rate.Limiter
}

// NewThrottle perSecond <= 0 表示不限速
func NewThrottle(perSecond float64, burst int) *Throttle {
	if burst <= 0 {
		burst = 1
	}
	limit, globalLimit := rate.Inf, rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
		// 总桶放宽到单店铺的 4 倍，多店铺并发时仍能互相让路
		globalLimit = limit * 4
	}
	return &Throttle{
		global: rate.NewLimiter(globalLimit, burst*4),
		perKey: limit,
		burst:  burst,
	}
}

// Wait 阻塞到两个令牌桶都放行或 ctx 结束
func (t *Throttle) Wait(ctx context.Context, key int64) error {
	if t == nil {
		return nil
	}
	if err := t.global.Wait(ctx); err != nil {
		return err
	}
	return t.limiter(key).Wait(ctx)
}

func (t *Throttle) limiter(key int64) *rate.Limiter {
	if v, ok := t.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}
	// LoadOrStore 防止并发重复创建
	actual, _ := t.limiters.LoadOrStore(key, rate.NewLimiter(t.perKey, t.burst))
	return actual.(*rate.Limiter)
}
