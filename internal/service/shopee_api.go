package service

import (
	"context"

	"shopee_admin_v1/pkg/shopee"
)

// AuthAPI 鉴权相关的平台调用，*shopee.Client 实现
type AuthAPI interface {
	AuthURL(redirect string) string
	CancelAuthURL(redirect string) string
	GetAccessToken(ctx context.Context, code string, shopID int64) (*shopee.TokenResponse, error)
	RefreshAccessToken(ctx context.Context, shopID int64, refreshToken string) (*shopee.TokenResponse, error)
	GetShopInfo(ctx context.Context, shopID int64, accessToken string) (*shopee.ShopInfo, error)
}

// OrderAPI 订单相关的平台调用，*shopee.Client 实现
type OrderAPI interface {
	GetOrderList(ctx context.Context, shopID int64, accessToken string, p shopee.OrderListParams) (*shopee.OrderListPage, error)
	GetOrderDetail(ctx context.Context, shopID int64, accessToken string, orderSNs []string) ([]shopee.OrderDetail, error)
}

var (
	_ AuthAPI  = (*shopee.Client)(nil)
	_ OrderAPI = (*shopee.Client)(nil)
)

// callWithToken 平台在使用中拒绝 token 时强制刷新并重试一次
func callWithToken(ctx context.Context, tokens TokenSource, shopID int64, fn func(token string) error) error {
	token, err := tokens.GetValidAccessToken(ctx, shopID)
	if err != nil {
		return err
	}
	err = fn(token)
	if !shopee.IsInvalidAccessToken(err) {
		return err
	}

	fresh, rerr := tokens.ForceRefresh(ctx, shopID, token)
	if rerr != nil {
		return rerr
	}
	return fn(fresh)
}
