package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shopee_admin_v1/internal/model"
	"shopee_admin_v1/pkg/shopee"
)

func TestAuthService_HandleCallback(t *testing.T) {
	env := newTestEnv(t)
	env.auth.tokenResp = &shopee.TokenResponse{AccessToken: "a", RefreshToken: "r", ExpireIn: 14400}
	env.auth.shopInfo = &shopee.ShopInfo{ShopName: "Toko Baju", Region: "ID"}
	svc := NewAuthService(env.auth, env.tokens, "https://admin/api/callback", zap.NewNop())

	shop, err := svc.HandleCallback(context.Background(), "code-1", 1001)
	require.NoError(t, err)
	assert.Equal(t, "Toko Baju", shop.ShopName)
	assert.Equal(t, model.TokenStatusActive, shop.TokenStatus)
	assert.True(t, shop.IsActive())
}

func TestAuthService_HandleCallbackShopInfoFails(t *testing.T) {
	env := newTestEnv(t)
	env.auth.tokenResp = &shopee.TokenResponse{AccessToken: "a", RefreshToken: "r", ExpireIn: 14400}
	env.auth.shopInfoErr = &shopee.APIError{HTTPStatus: 500, Code: "error_server"}
	svc := NewAuthService(env.auth, env.tokens, "", zap.NewNop())

	shop, err := svc.HandleCallback(context.Background(), "code-1", 1001)
	require.NoError(t, err)
	assert.Equal(t, "Shop 1001", shop.ShopName)
}

func TestAuthService_HandleCallbackErrors(t *testing.T) {
	env := newTestEnv(t)
	svc := NewAuthService(env.auth, env.tokens, "", zap.NewNop())

	_, err := svc.HandleCallback(context.Background(), "", 1001)
	assert.Error(t, err)

	_, err = svc.HandleCallback(context.Background(), "code", 1001)
	assert.Error(t, err, "换 token 失败")
}

func TestAuthService_URLs(t *testing.T) {
	env := newTestEnv(t)
	svc := NewAuthService(env.auth, env.tokens, "https://admin/api/callback", zap.NewNop())
	assert.Contains(t, svc.AuthURL(), "https://admin/api/callback")
	assert.Contains(t, svc.DeauthURL(), "cancel")
}
