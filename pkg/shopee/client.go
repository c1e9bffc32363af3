package shopee

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	appnet "shopee_admin_v1/pkg/net"
)

const (
	DefaultHost = "https://partner.shopeemobile.com"

	pathAuthPartner       = "/api/v2/shop/auth_partner"
	pathCancelAuthPartner = "/api/v2/shop/cancel_auth_partner"
	pathTokenGet          = "/api/v2/auth/token/get"
	pathAccessTokenGet    = "/api/v2/auth/access_token/get"
	pathShopInfo          = "/api/v2/shop/get_shop_info"
	pathOrderList         = "/api/v2/order/get_order_list"
	pathOrderDetail       = "/api/v2/order/get_order_detail"

	// MaxDetailBatch get_order_detail 单次最多 50 个订单号
	MaxDetailBatch = 50
	// MaxPageSize get_order_list 单页上限
	MaxPageSize = 100
)

// Config 客户端参数
type Config struct {
	PartnerID  int64
	PartnerKey string
	Host       string
	Timeout    time.Duration
	RetryCount int
	RetryWait  time.Duration
}

// Observer 每次出站请求结束后回调，用于指标
type Observer interface {
	ObserveRequest(endpoint string, status int, elapsed time.Duration)
}

// Client Shopee Open Platform v2 客户端
type Client struct {
	cfg      Config
	http     *resty.Client
	throttle *appnet.Throttle
	observer Observer
	log      *zap.Logger
	now      func() time.Time
}

// Option 可选项
type Option func(*Client)

// WithThrottle 按店铺节流
func WithThrottle(t *appnet.Throttle) Option {
	return func(c *Client) { c.throttle = t }
}

// WithObserver 请求指标回调
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithLogger 默认不输出
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log.Named("shopee") }
}

// WithClock 测试用
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	rc := resty.New().
		SetBaseURL(cfg.Host).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryWait * 8).
		AddRetryCondition(retryable)

	c := &Client{cfg: cfg, http: rc, log: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryable 网络错误、429、5xx 重试；ctx 取消不重试
func retryable(r *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
}

// ==================== 签名 ====================

// Sign partner 级调用：partner_id + path + timestamp
// shop 级调用再拼接 access_token + shop_id
func (c *Client) Sign(path string, timestamp int64, accessToken string, shopID int64) string {
	base := strconv.FormatInt(c.cfg.PartnerID, 10) + path + strconv.FormatInt(timestamp, 10)
	if accessToken != "" {
		base += accessToken + strconv.FormatInt(shopID, 10)
	}
	mac := hmac.New(sha256.New, []byte(c.cfg.PartnerKey))
	mac.Write([]byte(base))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) commonQuery(path string, accessToken string, shopID int64) url.Values {
	ts := c.now().Unix()
	q := url.Values{}
	q.Set("partner_id", strconv.FormatInt(c.cfg.PartnerID, 10))
	q.Set("timestamp", strconv.FormatInt(ts, 10))
	q.Set("sign", c.Sign(path, ts, accessToken, shopID))
	if accessToken != "" {
		q.Set("shop_id", strconv.FormatInt(shopID, 10))
		q.Set("access_token", accessToken)
	}
	return q
}

// ==================== 请求 ====================

type envelope struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

// call 发送请求并把响应体解到 out；业务错误统一转成 *APIError
func (c *Client) call(ctx context.Context, method, path string, shopID int64, accessToken string,
	params url.Values, body any, out any) error {

	if shopID > 0 {
		if err := c.throttle.Wait(ctx, shopID); err != nil {
			return fmt.Errorf("等待限流令牌: %w", err)
		}
	}

	q := c.commonQuery(path, accessToken, shopID)
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}

	req := c.http.R().SetContext(ctx).SetQueryParamsFromValues(q)
	if body != nil {
		req.SetBody(body)
	}

	start := time.Now()
	resp, err := req.Execute(method, path)
	if c.observer != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode()
		}
		c.observer.ObserveRequest(path, status, time.Since(start))
	}
	if err != nil {
		return fmt.Errorf("请求 %s 失败: %w", path, err)
	}

	var env envelope
	_ = json.Unmarshal(resp.Body(), &env)
	if env.Error != "" || resp.StatusCode() >= 400 {
		msg := env.Message
		if msg == "" && env.Error == "" {
			msg = truncate(string(resp.Body()), 256)
		}
		return &APIError{
			Endpoint:   path,
			HTTPStatus: resp.StatusCode(),
			Code:       env.Error,
			Message:    msg,
			RequestID:  env.RequestID,
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("解析 %s 响应失败: %w", path, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
