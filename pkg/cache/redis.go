package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTokenCache 以 hash 存储：{prefix}{shopID} -> access_token / refresh_token / expires_at
type RedisTokenCache struct {
	client    *redis.Client
	keyPrefix string
}

var _ TokenCache = (*RedisTokenCache)(nil)

// NewRedisClient 解析 redis:// URL 并测试连通性
func NewRedisClient(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("解析 Redis URL 失败: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return client, nil
}

func NewRedisTokenCache(client *redis.Client, keyPrefix string) *RedisTokenCache {
	if keyPrefix == "" {
		keyPrefix = "shopee:token:"
	}
	return &RedisTokenCache{client: client, keyPrefix: keyPrefix}
}

func (r *RedisTokenCache) key(shopID int64) string {
	return r.keyPrefix + strconv.FormatInt(shopID, 10)
}

func (r *RedisTokenCache) Get(ctx context.Context, shopID int64) (*TokenEntry, error) {
	vals, err := r.client.HGetAll(ctx, r.key(shopID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("读取 token 缓存失败: %w", err)
	}
	if len(vals) == 0 || vals["access_token"] == "" {
		return nil, nil
	}

	expUnix, err := strconv.ParseInt(vals["expires_at"], 10, 64)
	if err != nil {
		// 损坏的缓存视为未命中
		return nil, nil
	}
	return &TokenEntry{
		AccessToken:  vals["access_token"],
		RefreshToken: vals["refresh_token"],
		ExpiresAt:    time.Unix(expUnix, 0),
	}, nil
}

func (r *RedisTokenCache) Set(ctx context.Context, shopID int64, entry TokenEntry, ttl time.Duration) error {
	key := r.key(shopID)
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"access_token":  entry.AccessToken,
		"refresh_token": entry.RefreshToken,
		"expires_at":    strconv.FormatInt(entry.ExpiresAt.Unix(), 10),
	})
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("写入 token 缓存失败: %w", err)
	}
	return nil
}

func (r *RedisTokenCache) Delete(ctx context.Context, shopID int64) error {
	if err := r.client.Del(ctx, r.key(shopID)).Err(); err != nil {
		return fmt.Errorf("删除 token 缓存失败: %w", err)
	}
	return nil
}

func (r *RedisTokenCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
