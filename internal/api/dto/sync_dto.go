package dto

import (
	"encoding/json"
	"time"
)

// ==================== 同步结果 ====================

// SyncProgress 每页/每批之后回调
type SyncProgress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// OrderFailure 单订单失败
type OrderFailure struct {
	OrderSN string `json:"order_sn"`
	Error   string `json:"error"`
}

// SyncData 同步统计，Processed <= Total
type SyncData struct {
	Total     int            `json:"total"`
	Processed int            `json:"processed"`
	OrderSns  []string       `json:"orderSns"`
	Failures  []OrderFailure `json:"failures,omitempty"`
	Truncated bool           `json:"truncated,omitempty"` // 触达页数安全上限
}

// SyncResult 同步结果；列表调用失败时 Success=false 且 Error 非空
type SyncResult struct {
	Success bool     `json:"success"`
	Data    SyncData `json:"data"`
	Error   string   `json:"error,omitempty"`
}

// ==================== POST /api/sync ====================

// SyncByOrderSnsRequest orderSns 先按原始 JSON 接收，以区分“缺失”和“不是数组”
type SyncByOrderSnsRequest struct {
	ShopID   *int64          `json:"shopId"`
	OrderSns json.RawMessage `json:"orderSns"`
}

// SyncCounts POST /api/sync 的 data
type SyncCounts struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// SyncByOrderSnsResponse POST /api/sync 响应
type SyncByOrderSnsResponse struct {
	Success bool       `json:"success"`
	Data    SyncCounts `json:"data"`
}

// ==================== POST /api/sync/stream ====================

// SyncWindowRequest 时间窗同步；时间为 unix 秒，缺省由服务端补齐
type SyncWindowRequest struct {
	ShopID         *int64 `json:"shopId"`
	TimeRangeField string `json:"timeRangeField"`
	StartTime      int64  `json:"startTime"`
	EndTime        int64  `json:"endTime"`
	OrderStatus    string `json:"orderStatus"`
}

// StreamLine NDJSON 的一行
type StreamLine struct {
	Type     string        `json:"type"` // progress | error | result
	Progress *SyncProgress `json:"progress,omitempty"`
	Error    string        `json:"error,omitempty"`
	Result   *SyncResult   `json:"result,omitempty"`
}

// ==================== GET /api/auto-sync ====================

// 店铺结果状态
const (
	SettleFulfilled = "fulfilled"
	SettleRejected  = "rejected"
)

// ShopSyncSummary 单店铺汇总
type ShopSyncSummary struct {
	ShopID      int64  `json:"shop_id"`
	ShopName    string `json:"shop_name"`
	Status      string `json:"status"`
	TotalOrders int    `json:"total_orders"`
	Processed   int    `json:"processed"`
	Error       string `json:"error,omitempty"`
}

// AutoSyncResponse 全店铺滚动同步结果；单店铺失败不影响整体 success
type AutoSyncResponse struct {
	Success     bool                       `json:"success"`
	Message     string                     `json:"message"`
	TotalOrders int                        `json:"total_orders"`
	WindowStart time.Time                  `json:"window_start"`
	WindowEnd   time.Time                  `json:"window_end"`
	Summary     map[string]ShopSyncSummary `json:"summary"`
}
