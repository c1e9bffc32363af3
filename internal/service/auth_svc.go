package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"shopee_admin_v1/internal/model"
)

// AuthService 店铺 OAuth 授权
type AuthService struct {
	api         AuthAPI
	tokens      *TokenService
	redirectURL string
	log         *zap.Logger
}

func NewAuthService(api AuthAPI, tokens *TokenService, redirectURL string, log *zap.Logger) *AuthService {
	return &AuthService{api: api, tokens: tokens, redirectURL: redirectURL, log: log.Named("oauth")}
}

// AuthURL 卖家授权链接
func (s *AuthService) AuthURL() string {
	return s.api.AuthURL(s.redirectURL)
}

// DeauthURL 取消授权链接
func (s *AuthService) DeauthURL() string {
	return s.api.CancelAuthURL(s.redirectURL)
}

// HandleCallback 用授权码换 token，取店铺名后入库
// 店铺信息获取失败不影响授权本身
func (s *AuthService) HandleCallback(ctx context.Context, code string, shopID int64) (*model.Shop, error) {
	if code == "" || shopID <= 0 {
		return nil, fmt.Errorf("回调参数缺失: code=%q shop_id=%d", code, shopID)
	}

	tokens, err := s.api.GetAccessToken(ctx, code, shopID)
	if err != nil {
		return nil, fmt.Errorf("换取 token 失败: %w", err)
	}

	info, err := s.api.GetShopInfo(ctx, shopID, tokens.AccessToken)
	if err != nil {
		s.log.Warn("[OAuth] 获取店铺信息失败，使用默认名称", zap.Int64("shop_id", shopID), zap.Error(err))
		info = nil
	}

	shop, err := s.tokens.SaveAuthorization(ctx, shopID, tokens, info)
	if err != nil {
		return nil, err
	}
	s.log.Info("[OAuth] 店铺授权成功", zap.Int64("shop_id", shopID), zap.String("shop_name", shop.ShopName))
	return shop, nil
}
