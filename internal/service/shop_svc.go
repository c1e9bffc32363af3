package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"shopee_admin_v1/internal/api/dto"
	"shopee_admin_v1/internal/model"
	"shopee_admin_v1/internal/repository"
	"shopee_admin_v1/pkg/shopee"
)

// ShopService 店铺管理
type ShopService struct {
	shopRepo repository.ShopRepository
	api      AuthAPI
	tokens   *TokenService
	log      *zap.Logger
}

func NewShopService(shopRepo repository.ShopRepository, api AuthAPI, tokens *TokenService, log *zap.Logger) *ShopService {
	return &ShopService{shopRepo: shopRepo, api: api, tokens: tokens, log: log.Named("shop")}
}

// List 分页查询
func (s *ShopService) List(ctx context.Context, req *dto.ShopListReq) (*dto.ShopListResp, error) {
	shops, total, err := s.shopRepo.List(ctx, repository.ShopFilter{
		ShopName:    req.ShopName,
		Status:      req.Status,
		TokenStatus: req.TokenStatus,
		Page:        req.Page,
		PageSize:    req.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("查询店铺列表失败: %w", err)
	}

	list := make([]dto.ShopVO, len(shops))
	for i := range shops {
		list[i] = toShopVO(&shops[i])
	}
	return &dto.ShopListResp{Total: total, Page: req.Page, List: list}, nil
}

// Block 停用：不再参与自动同步与 token 保活，数据保留
func (s *ShopService) Block(ctx context.Context, shopID int64) error {
	return s.setStatus(ctx, shopID, model.ShopStatusInactive)
}

// Unblock 重新启用
func (s *ShopService) Unblock(ctx context.Context, shopID int64) error {
	return s.setStatus(ctx, shopID, model.ShopStatusActive)
}

func (s *ShopService) setStatus(ctx context.Context, shopID int64, status int) error {
	if _, err := s.shopRepo.GetByShopID(ctx, shopID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrShopNotFound
		}
		return err
	}
	if err := s.shopRepo.UpdateStatus(ctx, shopID, status); err != nil {
		return fmt.Errorf("更新店铺状态失败: %w", err)
	}
	s.log.Info("[Shop] 店铺状态已更新", zap.Int64("shop_id", shopID), zap.Int("status", status))
	return nil
}

// CheckTokens 逐店铺调用 get_shop_info 探活
func (s *ShopService) CheckTokens(ctx context.Context, shopIDs []int64) []dto.TokenCheckResult {
	results := make([]dto.TokenCheckResult, 0, len(shopIDs))
	for _, id := range shopIDs {
		res := dto.TokenCheckResult{ShopID: id}
		var info *shopee.ShopInfo
		err := callWithToken(ctx, s.tokens, id, func(token string) error {
			var err error
			info, err = s.api.GetShopInfo(ctx, id, token)
			return err
		})
		if err != nil {
			res.Error = err.Error()
		} else {
			res.Valid = true
			res.ShopName = info.ShopName
		}
		results = append(results, res)
	}
	return results
}

// RefreshAll 强制刷新所有活跃店铺
func (s *ShopService) RefreshAll(ctx context.Context) (*dto.RefreshAllResp, error) {
	shops, err := s.shopRepo.ListActiveShops(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询活跃店铺失败: %w", err)
	}

	resp := &dto.RefreshAllResp{Total: len(shops), Details: make([]dto.TokenCheckResult, 0, len(shops))}
	for _, shop := range shops {
		detail := dto.TokenCheckResult{ShopID: shop.ShopID, ShopName: shop.ShopName}
		if _, err := s.tokens.RefreshToken(ctx, shop.ShopID, shop.RefreshToken); err != nil {
			resp.Failed++
			detail.Error = err.Error()
		} else {
			resp.Success++
			detail.Valid = true
		}
		resp.Details = append(resp.Details, detail)
	}
	return resp, nil
}

func toShopVO(shop *model.Shop) dto.ShopVO {
	return dto.ShopVO{
		ShopID:               shop.ShopID,
		ShopName:             shop.ShopName,
		Region:               shop.Region,
		Status:               shop.Status,
		IsActive:             shop.IsActive(),
		TokenStatus:          shop.TokenStatus,
		AccessTokenExpiresAt: shop.AccessTokenExpiresAt,
		AuthorizationExpires: shop.AuthorizationExpiresAt,
		LastRefreshAt:        shop.LastRefreshAt,
		LastSyncedAt:         shop.LastSyncedAt,
	}
}
