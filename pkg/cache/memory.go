package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryTokenCache 进程内缓存，未配置 Redis 时使用
// 使用 sync.Map 保证并发安全
type MemoryTokenCache struct {
	items sync.Map // int64 -> memoryItem
	now   func() time.Time
}

type memoryItem struct {
	entry      TokenEntry
	expiration time.Time
}

var _ TokenCache = (*MemoryTokenCache)(nil)

func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{now: time.Now}
}

func (m *MemoryTokenCache) Get(_ context.Context, shopID int64) (*TokenEntry, error) {
	val, ok := m.items.Load(shopID)
	if !ok {
		return nil, nil
	}
	item := val.(memoryItem)
	if !item.expiration.IsZero() && m.now().After(item.expiration) {
		m.items.Delete(shopID) // 懒删除
		return nil, nil
	}
	entry := item.entry
	return &entry, nil
}

// Set ttl <= 0 表示不过期
func (m *MemoryTokenCache) Set(_ context.Context, shopID int64, entry TokenEntry, ttl time.Duration) error {
	item := memoryItem{entry: entry}
	if ttl > 0 {
		item.expiration = m.now().Add(ttl)
	}
	m.items.Store(shopID, item)
	return nil
}

func (m *MemoryTokenCache) Delete(_ context.Context, shopID int64) error {
	m.items.Delete(shopID)
	return nil
}

func (m *MemoryTokenCache) Ping(context.Context) error { return nil }
