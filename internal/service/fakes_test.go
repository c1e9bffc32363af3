package service

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"shopee_admin_v1/internal/model"
	"shopee_admin_v1/internal/repository"
	"shopee_admin_v1/internal/testutil"
	"shopee_admin_v1/pkg/cache"
	"shopee_admin_v1/pkg/shopee"
)

// ==================== 假平台 ====================

type fakeAuthAPI struct {
	mu           sync.Mutex
	refreshCalls atomic.Int32
	lastRefresh  atomic.Value // string
	refreshDelay time.Duration
	refreshErr   error
	seq          int
	shopInfoErr  error
	shopInfo     *shopee.ShopInfo
	tokenResp    *shopee.TokenResponse
}

func (f *fakeAuthAPI) AuthURL(redirect string) string { return "https://auth?redirect=" + redirect }
func (f *fakeAuthAPI) CancelAuthURL(redirect string) string {
	return "https://cancel?redirect=" + redirect
}

func (f *fakeAuthAPI) GetAccessToken(ctx context.Context, code string, shopID int64) (*shopee.TokenResponse, error) {
	if f.tokenResp == nil {
		return nil, &shopee.APIError{Endpoint: "token/get", HTTPStatus: 400, Code: "error_param"}
	}
	return f.tokenResp, nil
}

func (f *fakeAuthAPI) RefreshAccessToken(ctx context.Context, shopID int64, refreshToken string) (*shopee.TokenResponse, error) {
	f.refreshCalls.Add(1)
	f.lastRefresh.Store(refreshToken)
	if f.refreshDelay > 0 {
		time.Sleep(f.refreshDelay)
	}
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	f.mu.Lock()
	f.seq++
	n := f.seq
	f.mu.Unlock()
	return &shopee.TokenResponse{
		AccessToken:  fmt.Sprintf("access-%d", n),
		RefreshToken: fmt.Sprintf("refresh-%d", n),
		ExpireIn:     14400,
	}, nil
}

func (f *fakeAuthAPI) GetShopInfo(ctx context.Context, shopID int64, accessToken string) (*shopee.ShopInfo, error) {
	if f.shopInfoErr != nil {
		return nil, f.shopInfoErr
	}
	if f.shopInfo != nil {
		return f.shopInfo, nil
	}
	return &shopee.ShopInfo{ShopName: fmt.Sprintf("shop-%d", shopID), Region: "ID"}, nil
}

// fakeOrderAPI 订单列表按页返回，详情按订单号查表
type fakeOrderAPI struct {
	mu          sync.Mutex
	pages       map[int64][]shopee.OrderListPage // shopID -> 页
	listErr     map[int64]error
	details     map[string]shopee.OrderDetail
	detailErr   error
	staleTokens map[string]bool // 这些 token 返回 invalid_access_token
	listCalls   int
	detailCalls int
	listParams  []shopee.OrderListParams
	tokensSeen  []string
}

func newFakeOrderAPI() *fakeOrderAPI {
	return &fakeOrderAPI{
		pages:       map[int64][]shopee.OrderListPage{},
		listErr:     map[int64]error{},
		details:     map[string]shopee.OrderDetail{},
		staleTokens: map[string]bool{},
	}
}

func (f *fakeOrderAPI) addOrders(sns ...string) {
	for _, sn := range sns {
		f.details[sn] = sampleDetail(sn, model.OrderStatusReadyToShip)
	}
}

func (f *fakeOrderAPI) GetOrderList(ctx context.Context, shopID int64, token string, p shopee.OrderListParams) (*shopee.OrderListPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	f.listParams = append(f.listParams, p)
	f.tokensSeen = append(f.tokensSeen, token)
	if f.staleTokens[token] {
		return nil, &shopee.APIError{Endpoint: "order/get_order_list", HTTPStatus: 403, Code: "invalid_access_token"}
	}
	if err := f.listErr[shopID]; err != nil {
		return nil, err
	}

	pages := f.pages[shopID]
	idx := 0
	if p.Cursor != "" {
		fmt.Sscanf(p.Cursor, "c%d", &idx)
	}
	if idx >= len(pages) {
		return &shopee.OrderListPage{}, nil
	}
	page := pages[idx]
	return &page, nil
}

func (f *fakeOrderAPI) GetOrderDetail(ctx context.Context, shopID int64, token string, sns []string) ([]shopee.OrderDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls++
	f.tokensSeen = append(f.tokensSeen, token)
	if f.staleTokens[token] {
		return nil, &shopee.APIError{Endpoint: "order/get_order_detail", HTTPStatus: 403, Code: "invalid_access_token"}
	}
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	if len(sns) > shopee.MaxDetailBatch {
		return nil, fmt.Errorf("batch too large: %d", len(sns))
	}
	out := make([]shopee.OrderDetail, 0, len(sns))
	for _, sn := range sns {
		if d, ok := f.details[sn]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// pagesOf 把订单号切成连续页，最后一页 next_cursor 为空
func pagesOf(size int, sns ...string) []shopee.OrderListPage {
	var pages []shopee.OrderListPage
	for i := 0; i < len(sns); i += size {
		end := min(i+size, len(sns))
		page := shopee.OrderListPage{OrderSNs: sns[i:end]}
		if end < len(sns) {
			page.More = true
			page.NextCursor = fmt.Sprintf("c%d", len(pages)+1)
		}
		pages = append(pages, page)
	}
	return pages
}

func sampleDetail(sn, status string) shopee.OrderDetail {
	return shopee.OrderDetail{
		OrderSN:     sn,
		OrderStatus: status,
		Currency:    "IDR",
		CreateTime:  1_733_000_000,
		UpdateTime:  1_733_000_100,
		ItemList: []shopee.OrderItem{
			{ItemID: 10, ItemName: "Kaos", OrderItemID: 1, ModelID: 100, ModelQuantityPurchased: 2},
		},
		PackageList: []shopee.Package{{PackageNumber: "PKG-" + sn, LogisticsStatus: "LOGISTICS_READY"}},
		Raw:         []byte(`{"order_sn":"` + sn + `"}`),
	}
}

// ==================== 测试环境 ====================

type testEnv struct {
	db        *gorm.DB
	shopRepo  repository.ShopRepository
	orderRepo repository.OrderRepository
	cache     *cache.MemoryTokenCache
	auth      *fakeAuthAPI
	orders    *fakeOrderAPI
	tokens    *TokenService
	sync      *OrderSyncService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	env := &testEnv{
		db:        db,
		shopRepo:  repository.NewShopRepository(db),
		orderRepo: repository.NewOrderRepository(db),
		cache:     cache.NewMemoryTokenCache(),
		auth:      &fakeAuthAPI{},
		orders:    newFakeOrderAPI(),
	}
	cfg := DefaultTokenConfig()
	cfg.RefreshRetryDelay = time.Millisecond
	env.tokens = NewTokenService(env.shopRepo, env.auth, env.cache, cfg, zap.NewNop(), nil)
	env.sync = NewOrderSyncService(env.shopRepo, env.orderRepo, env.orders, env.tokens,
		SyncConfig{PageSize: 50, DetailBatchSize: 50, MaxPages: 20}, zap.NewNop(), nil)
	return env
}

// seedShop expiresIn 为负表示 access token 已过期
func (e *testEnv) seedShop(t *testing.T, shopID int64, expiresIn time.Duration) *model.Shop {
	t.Helper()
	exp := time.Now().Add(expiresIn)
	shop := &model.Shop{
		ShopID:               shopID,
		ShopName:             fmt.Sprintf("shop-%d", shopID),
		Status:               model.ShopStatusActive,
		TokenStatus:          model.TokenStatusActive,
		AccessToken:          "access-old",
		RefreshToken:         "refresh-old",
		AccessTokenExpiresAt: &exp,
	}
	require.NoError(t, e.shopRepo.Create(context.Background(), shop))
	return shop
}

var errBoom = &shopee.APIError{Endpoint: "order/get_order_list", HTTPStatus: http.StatusInternalServerError, Code: "error_server"}
