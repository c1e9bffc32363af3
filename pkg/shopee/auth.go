package shopee

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// AuthURL 店铺授权链接，授权后平台带 code 与 shop_id 回调 redirect
func (c *Client) AuthURL(redirect string) string {
	return c.partnerURL(pathAuthPartner, redirect)
}

// CancelAuthURL 取消授权链接
func (c *Client) CancelAuthURL(redirect string) string {
	return c.partnerURL(pathCancelAuthPartner, redirect)
}

func (c *Client) partnerURL(path, redirect string) string {
	q := c.commonQuery(path, "", 0)
	q.Set("redirect", redirect)
	return c.cfg.Host + path + "?" + q.Encode()
}

// GetAccessToken 用授权 code 换 token
func (c *Client) GetAccessToken(ctx context.Context, code string, shopID int64) (*TokenResponse, error) {
	body := map[string]any{
		"code":       code,
		"shop_id":    shopID,
		"partner_id": c.cfg.PartnerID,
	}
	var out TokenResponse
	if err := c.call(ctx, http.MethodPost, pathTokenGet, 0, "", nil, body, &out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, fmt.Errorf("token/get: %w", ErrEmptyResponse)
	}
	return &out, nil
}

// RefreshAccessToken 刷新 token，平台会同时轮换 refresh token
// 平台明确拒绝时返回的错误满足 errors.Is(err, ErrRefreshTokenRejected)
func (c *Client) RefreshAccessToken(ctx context.Context, shopID int64, refreshToken string) (*TokenResponse, error) {
	body := map[string]any{
		"refresh_token": refreshToken,
		"shop_id":       shopID,
		"partner_id":    c.cfg.PartnerID,
	}
	var out TokenResponse
	if err := c.call(ctx, http.MethodPost, pathAccessTokenGet, 0, "", nil, body, &out); err != nil {
		if isRefreshRejection(err) {
			return nil, fmt.Errorf("%w: %v", ErrRefreshTokenRejected, err)
		}
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, fmt.Errorf("access_token/get: %w", ErrEmptyResponse)
	}
	return &out, nil
}

// GetShopInfo 店铺信息，也用于探测 token 是否可用
func (c *Client) GetShopInfo(ctx context.Context, shopID int64, accessToken string) (*ShopInfo, error) {
	var out ShopInfo
	if err := c.call(ctx, http.MethodGet, pathShopInfo, shopID, accessToken, url.Values{}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
