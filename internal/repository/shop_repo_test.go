package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"shopee_admin_v1/internal/model"
	"shopee_admin_v1/internal/testutil"
)

func TestShopRepo_TokensAndExpiring(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewShopRepository(db)
	ctx := context.Background()
	now := time.Now()

	soon := now.Add(10 * time.Minute)
	later := now.Add(3 * time.Hour)
	require.NoError(t, repo.Create(ctx, &model.Shop{ShopID: 1, ShopName: "A", Status: model.ShopStatusActive,
		TokenStatus: model.TokenStatusActive, AccessTokenExpiresAt: &soon}))
	require.NoError(t, repo.Create(ctx, &model.Shop{ShopID: 2, ShopName: "B", Status: model.ShopStatusActive,
		TokenStatus: model.TokenStatusActive, AccessTokenExpiresAt: &later}))
	require.NoError(t, repo.Create(ctx, &model.Shop{ShopID: 3, ShopName: "C", Status: model.ShopStatusInactive,
		TokenStatus: model.TokenStatusActive, AccessTokenExpiresAt: &soon}))

	expiring, err := repo.FindExpiringShops(ctx, now.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, int64(1), expiring[0].ShopID)

	require.NoError(t, repo.UpdateTokens(ctx, 1, TokenUpdate{
		AccessToken: "at2", RefreshToken: "rt2",
		AccessTokenExpiresAt: now.Add(4 * time.Hour), RefreshTokenExpiresAt: now.Add(720 * time.Hour),
		RefreshedAt: now,
	}))
	shop, err := repo.GetByShopID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "at2", shop.AccessToken)
	assert.Equal(t, 1, shop.RefreshCount)

	err = repo.UpdateTokens(ctx, 999, TokenUpdate{AccessToken: "x"})
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestShopRepo_ActiveAndList(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewShopRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &model.Shop{ShopID: 10, ShopName: "Toko A", Status: model.ShopStatusActive}))
	require.NoError(t, repo.Create(ctx, &model.Shop{ShopID: 11, ShopName: "Toko B", Status: model.ShopStatusActive}))
	require.NoError(t, repo.UpdateStatus(ctx, 11, model.ShopStatusInactive))

	active, err := repo.ListActiveShops(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, int64(10), active[0].ShopID)

	list, total, err := repo.List(ctx, ShopFilter{Status: -1, ShopName: "Toko"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)

	shop, err := repo.GetByShopID(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, model.TokenStatusUnauthorized, shop.TokenStatus, "默认未授权")
}
