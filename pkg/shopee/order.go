package shopee

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// OrderListParams get_order_list 参数
type OrderListParams struct {
	TimeRangeField TimeRangeField
	TimeFrom       time.Time
	TimeTo         time.Time
	PageSize       int
	Cursor         string
	OrderStatus    string // 为空或 ALL 时不传
}

// GetOrderList 拉取一页订单号
func (c *Client) GetOrderList(ctx context.Context, shopID int64, accessToken string, p OrderListParams) (*OrderListPage, error) {
	pageSize := p.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	field := p.TimeRangeField
	if field == "" {
		field = TimeRangeUpdateTime
	}

	q := url.Values{}
	q.Set("time_range_field", string(field))
	q.Set("time_from", strconv.FormatInt(p.TimeFrom.Unix(), 10))
	q.Set("time_to", strconv.FormatInt(p.TimeTo.Unix(), 10))
	q.Set("page_size", strconv.Itoa(pageSize))
	q.Set("cursor", p.Cursor)
	q.Set("response_optional_fields", "order_status")
	if p.OrderStatus != "" && p.OrderStatus != "ALL" {
		q.Set("order_status", p.OrderStatus)
	}

	var out orderListResponse
	if err := c.call(ctx, http.MethodGet, pathOrderList, shopID, accessToken, q, nil, &out); err != nil {
		return nil, err
	}

	page := &OrderListPage{
		More:       out.Response.More,
		NextCursor: out.Response.NextCursor,
		OrderSNs:   make([]string, 0, len(out.Response.OrderList)),
	}
	for _, o := range out.Response.OrderList {
		if o.OrderSN != "" {
			page.OrderSNs = append(page.OrderSNs, o.OrderSN)
		}
	}
	return page, nil
}

// GetOrderDetail 批量取详情，最多 MaxDetailBatch 个
// 平台不会对不存在的订单号报错，返回结果可能少于请求数量
func (c *Client) GetOrderDetail(ctx context.Context, shopID int64, accessToken string, orderSNs []string) ([]OrderDetail, error) {
	if len(orderSNs) == 0 {
		return nil, nil
	}
	if len(orderSNs) > MaxDetailBatch {
		return nil, fmt.Errorf("单次最多查询 %d 个订单，当前 %d", MaxDetailBatch, len(orderSNs))
	}

	q := url.Values{}
	q.Set("order_sn_list", strings.Join(orderSNs, ","))
	q.Set("response_optional_fields", detailOptionalFields)

	var out orderDetailResponse
	if err := c.call(ctx, http.MethodGet, pathOrderDetail, shopID, accessToken, q, nil, &out); err != nil {
		return nil, err
	}

	details := make([]OrderDetail, 0, len(out.Response.OrderList))
	for _, raw := range out.Response.OrderList {
		var d OrderDetail
		if err := json.Unmarshal(raw, &d); err != nil {
			// 单条解析失败只丢弃该条，调用方按缺失订单计入失败
			c.log.Warn("[Shopee] 订单详情解析失败，已跳过",
				zap.Int64("shop_id", shopID), zap.ByteString("raw", raw), zap.Error(err))
			continue
		}
		d.Raw = raw
		details = append(details, d)
	}
	return details, nil
}
