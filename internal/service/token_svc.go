package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"shopee_admin_v1/internal/metrics"
	"shopee_admin_v1/internal/model"
	"shopee_admin_v1/internal/repository"
	"shopee_admin_v1/pkg/cache"
	"shopee_admin_v1/pkg/shopee"
)

// ==================== TokenService ====================

// TokenConfig 刷新策略
type TokenConfig struct {
	RefreshSkew       time.Duration // 提前多久视为过期
	RefreshAttempts   int
	RefreshRetryDelay time.Duration
	CacheTTL          time.Duration
	RefreshTokenTTL   time.Duration // 平台 refresh token 有效期 30 天
	AuthorizationTTL  time.Duration // 店铺授权有效期 365 天
	FlightTimeout     time.Duration // 单次合并刷新的最长耗时
}

// DefaultTokenConfig 默认策略
func DefaultTokenConfig() TokenConfig {
	return TokenConfig{
		RefreshSkew:       5 * time.Minute,
		RefreshAttempts:   3,
		RefreshRetryDelay: 2 * time.Second,
		CacheTTL:          24 * time.Hour,
		RefreshTokenTTL:   30 * 24 * time.Hour,
		AuthorizationTTL:  365 * 24 * time.Hour,
		FlightTimeout:     time.Minute,
	}
}

// TokenService 所有 token 读取与刷新的唯一入口
// 同一进程内同一店铺的刷新经 singleflight 合并，flight 内重读最新记录，
// 已被其他调用方轮换过的 token 直接复用，不会用旧 refresh token 覆盖新值。
type TokenService struct {
	shopRepo repository.ShopRepository
	api      AuthAPI
	cache    cache.TokenCache
	metrics  metrics.Recorder
	log      *zap.Logger
	cfg      TokenConfig

	group singleflight.Group
	now   func() time.Time
}

func NewTokenService(shopRepo repository.ShopRepository, api AuthAPI, tokenCache cache.TokenCache,
	cfg TokenConfig, log *zap.Logger, rec metrics.Recorder) *TokenService {

	def := DefaultTokenConfig()
	if cfg.RefreshAttempts <= 0 {
		cfg.RefreshAttempts = def.RefreshAttempts
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = def.RefreshTokenTTL
	}
	if cfg.AuthorizationTTL <= 0 {
		cfg.AuthorizationTTL = def.AuthorizationTTL
	}
	if cfg.FlightTimeout <= 0 {
		cfg.FlightTimeout = def.FlightTimeout
	}
	if tokenCache == nil {
		tokenCache = cache.NewMemoryTokenCache()
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &TokenService{
		shopRepo: shopRepo,
		api:      api,
		cache:    tokenCache,
		metrics:  rec,
		log:      log.Named("token"),
		cfg:      cfg,
		now:      time.Now,
	}
}

// GetValidAccessToken 未过期直接返回，否则刷新后返回新 token
func (s *TokenService) GetValidAccessToken(ctx context.Context, shopID int64) (string, error) {
	now := s.now()
	if entry := s.cacheGet(ctx, shopID); entry.Valid(now, s.cfg.RefreshSkew) {
		return entry.AccessToken, nil
	}

	cur, err := s.current(ctx, shopID)
	if err != nil {
		return "", err
	}
	if cur.Valid(now, s.cfg.RefreshSkew) {
		s.cacheSet(ctx, shopID, *cur)
		return cur.AccessToken, nil
	}

	entry, err := s.refreshShared(ctx, shopID, func(latest *cache.TokenEntry) bool {
		return latest.Valid(s.now(), s.cfg.RefreshSkew)
	})
	if err != nil {
		return "", err
	}
	return entry.AccessToken, nil
}

// RefreshToken 用 refreshToken 向平台换新 token 并持久化
// 若该 refresh token 已被并发调用方轮换掉，直接返回轮换后的结果
func (s *TokenService) RefreshToken(ctx context.Context, shopID int64, refreshToken string) (*shopee.TokenResponse, error) {
	entry, err := s.refreshShared(ctx, shopID, func(latest *cache.TokenEntry) bool {
		return latest.RefreshToken != refreshToken && latest.Valid(s.now(), s.cfg.RefreshSkew)
	})
	if err != nil {
		return nil, err
	}
	return &shopee.TokenResponse{
		AccessToken:  entry.AccessToken,
		RefreshToken: entry.RefreshToken,
		ExpireIn:     int64(entry.ExpiresAt.Sub(s.now()).Seconds()),
	}, nil
}

// ForceRefresh 平台在使用中拒绝了 staleToken 时调用
func (s *TokenService) ForceRefresh(ctx context.Context, shopID int64, staleToken string) (string, error) {
	s.log.Warn("[Token] access token 被平台拒绝，强制刷新", zap.Int64("shop_id", shopID))
	entry, err := s.refreshShared(ctx, shopID, func(latest *cache.TokenEntry) bool {
		return latest.AccessToken != staleToken && latest.Valid(s.now(), s.cfg.RefreshSkew)
	})
	if err != nil {
		return "", err
	}
	return entry.AccessToken, nil
}

// ==================== 授权入库 ====================

// SaveAuthorization OAuth 回调换到 token 后入库；已存在的店铺保留原启停状态
func (s *TokenService) SaveAuthorization(ctx context.Context, shopID int64, tokens *shopee.TokenResponse, info *shopee.ShopInfo) (*model.Shop, error) {
	now := s.now()
	accessExp := now.Add(time.Duration(tokens.ExpireIn) * time.Second)
	refreshExp := now.Add(s.cfg.RefreshTokenTTL)
	authExp := now.Add(s.cfg.AuthorizationTTL)
	if info != nil && info.ExpireTime > 0 {
		authExp = time.Unix(info.ExpireTime, 0)
	}

	name, region := fmt.Sprintf("Shop %d", shopID), ""
	if info != nil && info.ShopName != "" {
		name, region = info.ShopName, info.Region
	}

	shop, err := s.shopRepo.GetByShopID(ctx, shopID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		shop = &model.Shop{
			ShopID:                 shopID,
			ShopName:               name,
			Region:                 region,
			Status:                 model.ShopStatusActive,
			TokenStatus:            model.TokenStatusActive,
			AccessToken:            tokens.AccessToken,
			RefreshToken:           tokens.RefreshToken,
			AccessTokenExpiresAt:   &accessExp,
			RefreshTokenExpiresAt:  &refreshExp,
			AuthorizationExpiresAt: &authExp,
			LastRefreshAt:          &now,
		}
		if err := s.shopRepo.Create(ctx, shop); err != nil {
			return nil, fmt.Errorf("创建店铺失败: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("查询店铺失败: %w", err)
	default:
		status := shop.Status
		if status == model.ShopStatusPending {
			status = model.ShopStatusActive
		}
		fields := map[string]interface{}{
			"status":                   status,
			"token_status":             model.TokenStatusActive,
			"access_token":             tokens.AccessToken,
			"refresh_token":            tokens.RefreshToken,
			"access_token_expires_at":  accessExp,
			"refresh_token_expires_at": refreshExp,
			"authorization_expires_at": authExp,
			"last_refresh_at":          now,
		}
		if info != nil && info.ShopName != "" {
			fields["shop_name"] = name
			fields["region"] = region
		}
		if err := s.shopRepo.UpdateFields(ctx, shopID, fields); err != nil {
			return nil, fmt.Errorf("更新店铺授权失败: %w", err)
		}
		if shop, err = s.shopRepo.GetByShopID(ctx, shopID); err != nil {
			return nil, fmt.Errorf("查询店铺失败: %w", err)
		}
	}

	s.cacheSet(ctx, shopID, cache.TokenEntry{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    accessExp,
	})
	s.log.Info("[Token] 店铺授权已保存", zap.Int64("shop_id", shopID), zap.String("shop_name", name))
	return shop, nil
}

// ==================== 批量刷新 ====================

// RefreshExpiring 刷新 within 内即将过期的活跃店铺，逐店铺独立，返回成功与失败数
func (s *TokenService) RefreshExpiring(ctx context.Context, within time.Duration) (int, int, error) {
	shops, err := s.shopRepo.FindExpiringShops(ctx, s.now().Add(within))
	if err != nil {
		return 0, 0, fmt.Errorf("查询即将过期的店铺失败: %w", err)
	}

	success, failed := 0, 0
	for _, shop := range shops {
		if ctx.Err() != nil {
			return success, failed, ctx.Err()
		}
		if _, err := s.RefreshToken(ctx, shop.ShopID, shop.RefreshToken); err != nil {
			failed++
			s.log.Error("[Token] 店铺刷新失败", zap.Int64("shop_id", shop.ShopID), zap.Error(err))
			continue
		}
		success++
	}
	return success, failed, nil
}

// ==================== 内部实现 ====================

// refreshShared 同店铺并发刷新只发一次请求；reuse 返回 true 表示最新记录已可用，无需再刷新
func (s *TokenService) refreshShared(ctx context.Context, shopID int64, reuse func(latest *cache.TokenEntry) bool) (*cache.TokenEntry, error) {
	ch := s.group.DoChan(strconv.FormatInt(shopID, 10), func() (interface{}, error) {
		// 发起方取消不应拖累同一 flight 上的其他调用方
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.FlightTimeout)
		defer cancel()

		latest, err := s.current(fctx, shopID)
		if err != nil {
			return nil, err
		}
		if reuse(latest) {
			return latest, nil
		}
		return s.doRefresh(fctx, shopID, latest.RefreshToken)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*cache.TokenEntry), nil
	}
}

// doRefresh 调用平台刷新，有限次重试；refresh token 被拒绝时店铺进入 revoked
func (s *TokenService) doRefresh(ctx context.Context, shopID int64, refreshToken string) (*cache.TokenEntry, error) {
	var (
		resp *shopee.TokenResponse
		err  error
	)
	for attempt := 1; attempt <= s.cfg.RefreshAttempts; attempt++ {
		resp, err = s.api.RefreshAccessToken(ctx, shopID, refreshToken)
		if err == nil {
			break
		}
		if errors.Is(err, shopee.ErrRefreshTokenRejected) {
			s.revoke(ctx, shopID, err)
			return nil, fmt.Errorf("%w: %v", ErrShopRevoked, err)
		}
		s.log.Warn("[Token] 刷新失败，准备重试",
			zap.Int64("shop_id", shopID), zap.Int("attempt", attempt), zap.Error(err))
		if attempt < s.cfg.RefreshAttempts {
			if werr := sleepCtx(ctx, s.cfg.RefreshRetryDelay); werr != nil {
				err = werr
				break
			}
		}
	}
	if err != nil {
		s.metrics.RecordTokenRefresh(metrics.RefreshFailure)
		return nil, fmt.Errorf("刷新 token 失败: %w", err)
	}

	now := s.now()
	entry := &cache.TokenEntry{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    now.Add(time.Duration(resp.ExpireIn) * time.Second),
	}

	// 先写缓存：落库失败时缓存里仍有平台最新的 refresh token
	s.cacheSet(ctx, shopID, *entry)

	if err := s.shopRepo.UpdateTokens(ctx, shopID, repository.TokenUpdate{
		AccessToken:           entry.AccessToken,
		RefreshToken:          entry.RefreshToken,
		AccessTokenExpiresAt:  entry.ExpiresAt,
		RefreshTokenExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
		RefreshedAt:           now,
	}); err != nil {
		s.metrics.RecordTokenRefresh(metrics.RefreshPersistError)
		s.log.Error("[Token] 刷新成功但落库失败，下次使用时以缓存为准",
			zap.Int64("shop_id", shopID), zap.Error(err))
		return entry, nil
	}

	s.metrics.RecordTokenRefresh(metrics.RefreshSuccess)
	s.log.Info("[Token] 刷新成功", zap.Int64("shop_id", shopID), zap.Time("expires_at", entry.ExpiresAt))
	return entry, nil
}

// current 当前已知最新的 token：缓存比库新时以缓存为准
func (s *TokenService) current(ctx context.Context, shopID int64) (*cache.TokenEntry, error) {
	shop, err := s.shopRepo.GetByShopID(ctx, shopID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrShopNotFound, shopID)
		}
		return nil, fmt.Errorf("查询店铺失败: %w", err)
	}
	if shop.IsRevoked() {
		return nil, fmt.Errorf("%w: %d", ErrShopRevoked, shopID)
	}

	entry := &cache.TokenEntry{AccessToken: shop.AccessToken, RefreshToken: shop.RefreshToken}
	if shop.AccessTokenExpiresAt != nil {
		entry.ExpiresAt = *shop.AccessTokenExpiresAt
	}
	if cached := s.cacheGet(ctx, shopID); cached != nil && cached.RefreshToken != "" && cached.ExpiresAt.After(entry.ExpiresAt) {
		entry = cached
	}
	if entry.RefreshToken == "" {
		return nil, fmt.Errorf("%w: %d", ErrShopUnauthorized, shopID)
	}
	return entry, nil
}

func (s *TokenService) revoke(ctx context.Context, shopID int64, cause error) {
	s.metrics.RecordTokenRefresh(metrics.RefreshRevoked)
	s.log.Error("[Token] refresh token 被平台拒绝，店铺需重新授权", zap.Int64("shop_id", shopID), zap.Error(cause))
	if err := s.shopRepo.UpdateTokenStatus(ctx, shopID, model.TokenStatusRevoked); err != nil {
		s.log.Error("[Token] 更新授权状态失败", zap.Int64("shop_id", shopID), zap.Error(err))
	}
	if err := s.cache.Delete(ctx, shopID); err != nil {
		s.log.Warn("[Token] 清理缓存失败", zap.Int64("shop_id", shopID), zap.Error(err))
	}
}

// 缓存只是加速层，读写失败都降级到数据库
func (s *TokenService) cacheGet(ctx context.Context, shopID int64) *cache.TokenEntry {
	entry, err := s.cache.Get(ctx, shopID)
	if err != nil {
		s.log.Warn("[Token] 读取缓存失败", zap.Int64("shop_id", shopID), zap.Error(err))
		return nil
	}
	return entry
}

func (s *TokenService) cacheSet(ctx context.Context, shopID int64, entry cache.TokenEntry) {
	if err := s.cache.Set(ctx, shopID, entry, s.cfg.CacheTTL); err != nil {
		s.log.Warn("[Token] 写入缓存失败", zap.Int64("shop_id", shopID), zap.Error(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
