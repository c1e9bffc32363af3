package cache

import (
	"context"
	"time"
)

// TokenEntry 缓存的 token 对
// RefreshToken 一并缓存：本地落库失败时，下一次刷新仍能拿到平台最新轮换出的值
type TokenEntry struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Valid 在 skew 提前量之外仍未过期
func (e *TokenEntry) Valid(now time.Time, skew time.Duration) bool {
	return e != nil && e.AccessToken != "" && now.Add(skew).Before(e.ExpiresAt)
}

// TokenCache 每店铺一份 token 缓存
type TokenCache interface {
	Get(ctx context.Context, shopID int64) (*TokenEntry, error) // 未命中返回 nil, nil
	Set(ctx context.Context, shopID int64, entry TokenEntry, ttl time.Duration) error
	Delete(ctx context.Context, shopID int64) error
	Ping(ctx context.Context) error
}
