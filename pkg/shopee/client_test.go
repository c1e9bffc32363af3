package shopee

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==================== 测试辅助 ====================

const (
	testPartnerID  = 2001234
	testPartnerKey = "test-partner-key"
)

var fixedNow = time.Unix(1733011200, 0) // 2024-12-01

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		PartnerID:  testPartnerID,
		PartnerKey: testPartnerKey,
		Host:       srv.URL,
		Timeout:    5 * time.Second,
		RetryCount: 2,
		RetryWait:  time.Millisecond,
	}, WithClock(func() time.Time { return fixedNow }))
}

func expectedSign(base string) string {
	mac := hmac.New(sha256.New, []byte(testPartnerKey))
	mac.Write([]byte(base))
	return hex.EncodeToString(mac.Sum(nil))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ==================== 签名 ====================

func TestSign(t *testing.T) {
	c := NewClient(Config{PartnerID: testPartnerID, PartnerKey: testPartnerKey})

	got := c.Sign(pathTokenGet, 1700000000, "", 0)
	assert.Equal(t, expectedSign("2001234/api/v2/auth/token/get1700000000"), got)

	got = c.Sign(pathOrderList, 1700000000, "tok", 88)
	assert.Equal(t, expectedSign("2001234/api/v2/order/get_order_list1700000000tok88"), got)
}

func TestAuthURL(t *testing.T) {
	c := NewClient(Config{PartnerID: testPartnerID, PartnerKey: testPartnerKey, Host: "https://example.test"},
		WithClock(func() time.Time { return fixedNow }))

	raw := c.AuthURL("https://admin.example/api/callback")
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, pathAuthPartner, u.Path)
	assert.Equal(t, "https://admin.example/api/callback", u.Query().Get("redirect"))
	assert.Equal(t, strconv.FormatInt(fixedNow.Unix(), 10), u.Query().Get("timestamp"))
	assert.Equal(t, c.Sign(pathAuthPartner, fixedNow.Unix(), "", 0), u.Query().Get("sign"))
}

// ==================== 鉴权 ====================

func TestRefreshAccessToken_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathAccessTokenGet, r.URL.Path)
		assert.Empty(t, r.URL.Query().Get("access_token"), "刷新属于 partner 级调用")
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "rt-old", req["refresh_token"])
		assert.EqualValues(t, 55, req["shop_id"])

		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "at-new", "refresh_token": "rt-new", "expire_in": 14400, "request_id": "r1",
		})
	})

	out, err := c.RefreshAccessToken(context.Background(), 55, "rt-old")
	require.NoError(t, err)
	assert.Equal(t, "at-new", out.AccessToken)
	assert.Equal(t, "rt-new", out.RefreshToken)
	assert.EqualValues(t, 14400, out.ExpireIn)
}

func TestRefreshAccessToken_Rejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error": "error_auth", "message": "Invalid refresh_token", "request_id": "r2",
		})
	})

	_, err := c.RefreshAccessToken(context.Background(), 55, "rt-bad")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRefreshTokenRejected))
}

func TestRefreshAccessToken_ServerErrorNotRejection(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": "error_server", "message": "busy"})
	})

	_, err := c.RefreshAccessToken(context.Background(), 55, "rt")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrRefreshTokenRejected), "5xx 不应判定为 refresh token 失效")
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls), "5xx 应重试 RetryCount 次")
}

// ==================== 订单 ====================

func TestGetOrderList(t *testing.T) {
	var c *Client
	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, pathOrderList, r.URL.Path)
		assert.Equal(t, "tok", q.Get("access_token"))
		assert.Equal(t, "88", q.Get("shop_id"))
		assert.Equal(t, "create_time", q.Get("time_range_field"))
		assert.Equal(t, "50", q.Get("page_size"))
		assert.Equal(t, "c1", q.Get("cursor"))
		assert.False(t, q.Has("order_status"), "ALL 不应传 order_status")
		assert.Equal(t, c.Sign(pathOrderList, fixedNow.Unix(), "tok", 88), q.Get("sign"))

		writeJSON(w, http.StatusOK, map[string]any{
			"request_id": "r",
			"response": map[string]any{
				"more":        true,
				"next_cursor": "c2",
				"order_list":  []map[string]any{{"order_sn": "2412010000001"}, {"order_sn": "2412010000002"}},
			},
		})
	})

	page, err := c.GetOrderList(context.Background(), 88, "tok", OrderListParams{
		TimeRangeField: TimeRangeCreateTime,
		TimeFrom:       fixedNow.Add(-time.Hour),
		TimeTo:         fixedNow,
		PageSize:       50,
		Cursor:         "c1",
		OrderStatus:    "ALL",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2412010000001", "2412010000002"}, page.OrderSNs)
	assert.False(t, page.Done())
	assert.Equal(t, "c2", page.NextCursor)
}

func TestOrderListPage_Done(t *testing.T) {
	assert.True(t, (&OrderListPage{More: true, NextCursor: ""}).Done(), "游标为空即结束")
	assert.True(t, (&OrderListPage{More: false, NextCursor: "x"}).Done())
	assert.False(t, (&OrderListPage{More: true, NextCursor: "x"}).Done())
}

func TestGetOrderDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "A,B", r.URL.Query().Get("order_sn_list"))
		assert.Contains(t, r.URL.Query().Get("response_optional_fields"), "item_list")
		_, _ = io.WriteString(w, `{"request_id":"x","response":{"order_list":[
			{"order_sn":"A","order_status":"READY_TO_SHIP","total_amount":125000.5,"currency":"IDR",
			 "create_time":1733011200,"update_time":1733014800,
			 "item_list":[{"item_id":1,"item_name":"Kaos","model_id":2,"order_item_id":3,
			   "model_quantity_purchased":2,"model_original_price":70000,"model_discounted_price":62500.25,
			   "image_info":{"image_url":"https://img/1.jpg"}}],
			 "package_list":[{"package_number":"P1","logistics_status":"LOGISTICS_READY"}]}
		]}}`)
	})

	details, err := c.GetOrderDetail(context.Background(), 88, "tok", []string{"A", "B"})
	require.NoError(t, err)
	require.Len(t, details, 1, "平台对不存在的订单不返回")

	d := details[0]
	assert.Equal(t, "A", d.OrderSN)
	assert.Equal(t, "125000.5", d.TotalAmount.String())
	require.Len(t, d.ItemList, 1)
	assert.Equal(t, "62500.25", d.ItemList[0].ModelDiscountedPrice.String())
	assert.Equal(t, "https://img/1.jpg", d.ItemList[0].ImageInfo.ImageURL)
	assert.Equal(t, "P1", d.PackageList[0].PackageNumber)
	assert.True(t, strings.Contains(string(d.Raw), `"order_sn":"A"`))
}

func TestGetOrderDetail_SkipsUndecodableEntry(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"request_id":"x","response":{"order_list":[
			{"order_sn":"A1","order_status":"SHIPPED"},
			{"order_sn":"A2","item_list":"oops"}
		]}}`)
	})

	details, err := c.GetOrderDetail(context.Background(), 88, "tok", []string{"A1", "A2"})
	require.NoError(t, err, "单条解析失败不影响同批其他订单")
	require.Len(t, details, 1)
	assert.Equal(t, "A1", details[0].OrderSN)
	assert.Equal(t, "SHIPPED", details[0].OrderStatus)
}

func TestGetOrderDetail_BatchLimit(t *testing.T) {
	c := NewClient(Config{PartnerID: 1, PartnerKey: "k"})
	sns := make([]string, MaxDetailBatch+1)
	_, err := c.GetOrderDetail(context.Background(), 1, "tok", sns)
	assert.Error(t, err)
}

func TestBusinessErrorInvalidAccessToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error": "invalid_acceess_token", "message": "Invalid access_token.", "request_id": "z",
		})
	})

	_, err := c.GetShopInfo(context.Background(), 88, "stale")
	require.Error(t, err)
	assert.True(t, IsInvalidAccessToken(err))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.HTTPStatus)
	assert.Equal(t, "z", apiErr.RequestID)
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, IsRateLimited(&APIError{HTTPStatus: http.StatusTooManyRequests}))
	assert.False(t, IsRateLimited(errors.New("x")))
}

// ==================== 推送签名 ====================

func TestVerifyPush(t *testing.T) {
	c := NewClient(Config{PartnerID: testPartnerID, PartnerKey: testPartnerKey})
	body := []byte(`{"code":3,"shop_id":88}`)
	sign := expectedSign("https://admin.example/api/webhook|" + string(body))

	assert.True(t, c.VerifyPush("https://admin.example/api/webhook", body, sign))
	assert.False(t, c.VerifyPush("https://admin.example/api/webhook", body, "bad"))
}
