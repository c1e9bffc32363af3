package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shopee_admin_v1/internal/api/dto"
	"shopee_admin_v1/internal/model"
	"shopee_admin_v1/internal/repository"
	"shopee_admin_v1/pkg/shopee"
)

func countOrders(t *testing.T, env *testEnv) (orders, items int64) {
	t.Helper()
	require.NoError(t, env.db.Model(&model.Order{}).Count(&orders).Error)
	require.NoError(t, env.db.Model(&model.OrderItem{}).Count(&items).Error)
	return orders, items
}

func TestSyncOrders_PagesUntilCursorEmpty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedShop(t, 1001, time.Hour)
	sns := []string{"2412010000001", "2412010000002", "2412010000003", "2412010000004", "2412010000005"}
	env.orders.addOrders(sns...)
	env.orders.pages[1001] = pagesOf(2, sns...)

	var progress []dto.SyncProgress
	res, err := env.sync.SyncOrders(ctx, 1001, SyncOptions{
		OnProgress: func(p dto.SyncProgress) { progress = append(progress, p) },
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 5, res.Data.Total)
	assert.Equal(t, 5, res.Data.Processed)
	assert.ElementsMatch(t, sns, res.Data.OrderSns)
	assert.Equal(t, 3, env.orders.listCalls)

	require.NotEmpty(t, progress)
	last := progress[len(progress)-1]
	assert.Equal(t, 5, last.Current)
	assert.Equal(t, 5, last.Total)

	// 默认参数
	p := env.orders.listParams[0]
	assert.Equal(t, shopee.TimeRangeUpdateTime, p.TimeRangeField)
	assert.Equal(t, model.OrderStatusAll, p.OrderStatus)
	assert.InDelta(t, (7 * 24 * time.Hour).Seconds(), p.TimeTo.Sub(p.TimeFrom).Seconds(), 1)

	orders, items := countOrders(t, env)
	assert.Equal(t, int64(5), orders)
	assert.Equal(t, int64(5), items)

	shop, err := env.shopRepo.GetByShopID(ctx, 1001)
	require.NoError(t, err)
	assert.NotNil(t, shop.LastSyncedAt)
}

func TestSyncOrders_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedShop(t, 1001, time.Hour)
	env.orders.addOrders("A1", "A2")
	env.orders.pages[1001] = pagesOf(50, "A1", "A2")

	for i := 0; i < 2; i++ {
		res, err := env.sync.SyncOrders(ctx, 1001, SyncOptions{})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Data.Processed)
	}

	orders, items := countOrders(t, env)
	assert.Equal(t, int64(2), orders)
	assert.Equal(t, int64(2), items)
}

func TestSyncOrders_MoreWithoutCursorStops(t *testing.T) {
	env := newTestEnv(t)
	env.seedShop(t, 1001, time.Hour)
	env.orders.addOrders("A1")
	env.orders.pages[1001] = []shopee.OrderListPage{{OrderSNs: []string{"A1"}, More: true, NextCursor: ""}}

	res, err := env.sync.SyncOrders(context.Background(), 1001, SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Data.Processed)
	assert.Equal(t, 1, env.orders.listCalls)
}

func TestSyncOrders_MaxPagesGuard(t *testing.T) {
	env := newTestEnv(t)
	env.seedShop(t, 1001, time.Hour)
	sns := make([]string, 30)
	for i := range sns {
		sns[i] = fmt.Sprintf("P%02d", i)
	}
	env.orders.addOrders(sns...)
	env.orders.pages[1001] = pagesOf(1, sns...)

	res, err := env.sync.SyncOrders(context.Background(), 1001, SyncOptions{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Data.Truncated)
	assert.Equal(t, 20, env.orders.listCalls)
	assert.Equal(t, 20, res.Data.Processed)
}

func TestSyncOrders_ListFailure(t *testing.T) {
	env := newTestEnv(t)
	env.seedShop(t, 1001, time.Hour)
	env.orders.listErr[1001] = errBoom

	res, err := env.sync.SyncOrders(context.Background(), 1001, SyncOptions{})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestSyncOrders_MissingDetailIsolated(t *testing.T) {
	env := newTestEnv(t)
	env.seedShop(t, 1001, time.Hour)
	env.orders.addOrders("A1", "A3")
	env.orders.pages[1001] = pagesOf(50, "A1", "A2", "A3")

	var failed []string
	res, err := env.sync.SyncOrders(context.Background(), 1001, SyncOptions{
		OnError: func(sn string, err error) { failed = append(failed, sn) },
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 3, res.Data.Total)
	assert.Equal(t, 2, res.Data.Processed)
	require.Len(t, res.Data.Failures, 1)
	assert.Equal(t, "A2", res.Data.Failures[0].OrderSN)
	assert.Equal(t, []string{"A2"}, failed)
}

func TestSyncOrders_SplitsLongWindow(t *testing.T) {
	env := newTestEnv(t)
	env.seedShop(t, 1001, time.Hour)
	end := time.Unix(1_735_000_000, 0)

	_, err := env.sync.SyncOrders(context.Background(), 1001, SyncOptions{
		TimeRangeField: shopee.TimeRangeCreateTime,
		Start:          end.Add(-20 * 24 * time.Hour),
		End:            end,
	})
	require.NoError(t, err)
	require.Len(t, env.orders.listParams, 2)
	assert.Equal(t, 15*24*time.Hour, env.orders.listParams[0].TimeTo.Sub(env.orders.listParams[0].TimeFrom))
	assert.Equal(t, end, env.orders.listParams[1].TimeTo)
	assert.Equal(t, shopee.TimeRangeCreateTime, env.orders.listParams[1].TimeRangeField)
}

func TestSyncOrders_InvalidOptions(t *testing.T) {
	env := newTestEnv(t)
	env.seedShop(t, 1001, time.Hour)
	now := time.Now()

	cases := []SyncOptions{
		{TimeRangeField: "pay_time"},
		{Start: now, End: now.Add(-time.Hour)},
		{OrderStatus: "LOST"},
	}
	for _, opts := range cases {
		res, err := env.sync.SyncOrders(context.Background(), 1001, opts)
		assert.ErrorIs(t, err, ErrInvalidSyncOptions)
		assert.False(t, res.Success)
	}
	assert.Zero(t, env.orders.listCalls)
}

func TestSyncOrders_StaleTokenRetriedOnce(t *testing.T) {
	env := newTestEnv(t)
	env.seedShop(t, 1001, time.Hour)
	env.orders.staleTokens["access-old"] = true
	env.orders.addOrders("A1")
	env.orders.pages[1001] = pagesOf(50, "A1")

	res, err := env.sync.SyncOrders(context.Background(), 1001, SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Data.Processed)
	assert.Equal(t, int32(1), env.auth.refreshCalls.Load())
	assert.Equal(t, []string{"access-old", "access-1", "access-1"}, env.orders.tokensSeen)
}

func TestSyncOrders_StaleTokenRetryFailsOnlyOnce(t *testing.T) {
	env := newTestEnv(t)
	env.seedShop(t, 1001, time.Hour)
	env.orders.staleTokens["access-old"] = true
	env.orders.staleTokens["access-1"] = true

	res, err := env.sync.SyncOrders(context.Background(), 1001, SyncOptions{})
	require.Error(t, err)
	assert.True(t, shopee.IsInvalidAccessToken(err))
	assert.False(t, res.Success)
	assert.Equal(t, 2, env.orders.listCalls)
}

func TestSyncOrdersByOrderSns(t *testing.T) {
	env := newTestEnv(t)
	env.seedShop(t, 1001, time.Hour)
	env.orders.addOrders("A1", "A2")

	res, err := env.sync.SyncOrdersByOrderSns(context.Background(), 1001, []string{"A1", "A2", "MISSING", " "})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 4, res.Data.Total)
	assert.Equal(t, 2, res.Data.Processed)
	assert.Len(t, res.Data.Failures, 2)
	assert.LessOrEqual(t, res.Data.Processed, res.Data.Total)
	assert.Zero(t, env.orders.listCalls)
}

func TestSyncOrdersByOrderSns_Batches(t *testing.T) {
	env := newTestEnv(t)
	env.seedShop(t, 1001, time.Hour)
	sns := make([]string, 120)
	for i := range sns {
		sns[i] = fmt.Sprintf("B%03d", i)
	}
	env.orders.addOrders(sns...)

	res, err := env.sync.SyncOrdersByOrderSns(context.Background(), 1001, sns)
	require.NoError(t, err)
	assert.Equal(t, 120, res.Data.Processed)
	assert.Equal(t, 3, env.orders.detailCalls)
}

func TestSyncOrdersByOrderSns_DetailFailure(t *testing.T) {
	env := newTestEnv(t)
	env.seedShop(t, 1001, time.Hour)
	env.orders.detailErr = errBoom

	res, err := env.sync.SyncOrdersByOrderSns(context.Background(), 1001, []string{"A1", "A2"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Data.Total)
	assert.Zero(t, res.Data.Processed)
	assert.Len(t, res.Data.Failures, 2)
}

func TestSyncOrdersByOrderSns_ShopLevelErrors(t *testing.T) {
	t.Run("授权失效", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedShop(t, 1001, -time.Minute)
		env.auth.refreshErr = fmt.Errorf("%w: error_param", shopee.ErrRefreshTokenRejected)

		res, err := env.sync.SyncOrdersByOrderSns(context.Background(), 1001, []string{"A1", "A2"})
		require.ErrorIs(t, err, ErrShopRevoked)
		assert.False(t, res.Success)
		assert.NotEmpty(t, res.Error)
		assert.Zero(t, res.Data.Processed)
		assert.Empty(t, res.Data.Failures, "店铺级错误不记为单订单失败")
		assert.Zero(t, env.orders.detailCalls)
	})

	t.Run("店铺不存在", func(t *testing.T) {
		env := newTestEnv(t)

		res, err := env.sync.SyncOrdersByOrderSns(context.Background(), 9999, []string{"A1"})
		require.ErrorIs(t, err, ErrShopNotFound)
		assert.False(t, res.Success)
		assert.Zero(t, env.orders.detailCalls)
	})
}

func TestSyncOrders_StartEqualsEnd(t *testing.T) {
	env := newTestEnv(t)
	env.seedShop(t, 1001, time.Hour)
	env.orders.addOrders("A1")
	env.orders.pages[1001] = pagesOf(50, "A1")
	at := time.Now().Add(-time.Hour)

	res, err := env.sync.SyncOrders(context.Background(), 1001, SyncOptions{Start: at, End: at})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, env.orders.listCalls)
	assert.NoError(t, ValidateSyncOptions(SyncOptions{Start: at, End: at}))
}

func TestSyncOrdersByOrderSns_Empty(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.sync.SyncOrdersByOrderSns(context.Background(), 1001, nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Zero(t, res.Data.Total)
	assert.Zero(t, env.orders.detailCalls)
}

func TestAutoSync_OneShopRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedShop(t, 1, time.Hour)
	env.seedShop(t, 2, time.Hour)
	env.seedShop(t, 3, time.Hour)
	require.NoError(t, env.shopRepo.UpdateStatus(ctx, 3, model.ShopStatusInactive))

	env.orders.addOrders("S1-A", "S1-B")
	env.orders.pages[1] = pagesOf(50, "S1-A", "S1-B")
	env.orders.listErr[2] = errBoom

	resp, err := env.sync.AutoSync(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.TotalOrders)
	require.Len(t, resp.Summary, 2, "停用店铺不参与")
	assert.Equal(t, dto.SettleFulfilled, resp.Summary["1"].Status)
	assert.Equal(t, dto.SettleRejected, resp.Summary["2"].Status)
	assert.NotEmpty(t, resp.Summary["2"].Error)
	assert.Equal(t, 24*time.Hour, resp.WindowEnd.Sub(resp.WindowStart))

	for _, p := range env.orders.listParams {
		assert.Equal(t, shopee.TimeRangeCreateTime, p.TimeRangeField)
	}
}

func TestAutoSync_NoShops(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.sync.AutoSync(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Zero(t, resp.TotalOrders)
	assert.Empty(t, resp.Summary)
}

// failingOrderRepo 指定订单写库失败
type failingOrderRepo struct {
	repository.OrderRepository
	bad string
}

func (r failingOrderRepo) UpsertWithItems(ctx context.Context, o *model.Order) error {
	if o.OrderSN == r.bad {
		return fmt.Errorf("constraint failed")
	}
	return r.OrderRepository.UpsertWithItems(ctx, o)
}

func TestSyncOrders_UpsertFailureIsolated(t *testing.T) {
	env := newTestEnv(t)
	env.seedShop(t, 1001, time.Hour)
	env.orders.addOrders("A1", "A2")
	env.orders.pages[1001] = pagesOf(50, "A1", "A2")
	svc := NewOrderSyncService(env.shopRepo, failingOrderRepo{env.orderRepo, "A1"}, env.orders, env.tokens,
		SyncConfig{}, zap.NewNop(), nil)

	res, err := svc.SyncOrders(context.Background(), 1001, SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Data.Total)
	assert.Equal(t, 1, res.Data.Processed)
	assert.Equal(t, []string{"A2"}, res.Data.OrderSns)
}

func TestDetailToOrder(t *testing.T) {
	d := sampleDetail("X1", model.OrderStatusShipped)
	d.PayTime = 1_733_000_050
	d.PackageList = append(d.PackageList, shopee.Package{})

	o := detailToOrder(7, &d, time.Unix(1_733_001_000, 0))
	assert.Equal(t, int64(7), o.ShopID)
	assert.Equal(t, model.OrderStatusShipped, o.OrderStatus)
	require.NotNil(t, o.PaidAt)
	assert.Nil(t, o.ShipByDate)
	assert.Len(t, o.Items, 1)
	assert.Len(t, o.Packages, 1, "空包裹号被忽略")
	assert.Equal(t, `{"order_sn":"X1"}`, o.RawData)
}

func TestSplitWindow(t *testing.T) {
	start := time.Unix(0, 0)
	assert.Len(t, splitWindow(start, start.Add(30*24*time.Hour), maxListWindow), 2)
	assert.Len(t, splitWindow(start, start.Add(31*24*time.Hour), maxListWindow), 3)
	assert.Equal(t, [][2]time.Time{{start, start}}, splitWindow(start, start, maxListWindow), "起止相同按一个零长度窗口查询")
}
