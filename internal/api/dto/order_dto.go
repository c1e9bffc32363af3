package dto

import "time"

// ==================== 订单查询 ====================

// ListOrdersRequest 订单列表请求
type ListOrdersRequest struct {
	ShopID      int64  `form:"shop_id"`
	OrderStatus string `form:"order_status"`
	OrderSN     string `form:"order_sn"`
	StartDate   int64  `form:"start_date"` // unix 秒
	EndDate     int64  `form:"end_date"`
	Page        int    `form:"page,default=1"`
	PageSize    int    `form:"page_size,default=20"`
}

// StartTime 零值表示不筛选
func (r *ListOrdersRequest) StartTime() *time.Time {
	if r.StartDate <= 0 {
		return nil
	}
	t := time.Unix(r.StartDate, 0)
	return &t
}

// EndTime 零值表示不筛选
func (r *ListOrdersRequest) EndTime() *time.Time {
	if r.EndDate <= 0 {
		return nil
	}
	t := time.Unix(r.EndDate, 0)
	return &t
}

// ListOrdersResponse 订单列表响应
type ListOrdersResponse struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	List  any   `json:"list"`
}
