package dto

import "time"

// ================== Shop DTO ==================

// ShopListReq 店铺列表请求
type ShopListReq struct {
	Page        int    `form:"page,default=1"`
	PageSize    int    `form:"page_size,default=20"`
	ShopName    string `form:"shop_name"`
	Status      int    `form:"status,default=-1"`
	TokenStatus string `form:"token_status"`
}

// ShopVO 店铺展示，不含 token 明文
type ShopVO struct {
	ShopID               int64      `json:"shop_id"`
	ShopName             string     `json:"shop_name"`
	Region               string     `json:"region"`
	Status               int        `json:"status"`
	IsActive             bool       `json:"is_active"`
	TokenStatus          string     `json:"token_status"`
	AccessTokenExpiresAt *time.Time `json:"access_token_expires_at"`
	AuthorizationExpires *time.Time `json:"authorization_expires_at"`
	LastRefreshAt        *time.Time `json:"last_refresh_at"`
	LastSyncedAt         *time.Time `json:"last_synced_at"`
}

// ShopListResp 分页结果
type ShopListResp struct {
	Total int64    `json:"total"`
	Page  int      `json:"page"`
	List  []ShopVO `json:"list"`
}

// ================== Token ==================

// CheckTokenReq 批量探活
type CheckTokenReq struct {
	ShopIDs []int64 `json:"shop_ids"`
}

// TokenCheckResult 单店铺探活结果
type TokenCheckResult struct {
	ShopID   int64  `json:"shop_id"`
	Valid    bool   `json:"valid"`
	ShopName string `json:"shop_name,omitempty"`
	Error    string `json:"error,omitempty"`
}

// RefreshAllResp 批量刷新结果
type RefreshAllResp struct {
	Total   int                `json:"total"`
	Success int                `json:"success"`
	Failed  int                `json:"failed"`
	Details []TokenCheckResult `json:"details"`
}

// AuthURLResp 授权链接
type AuthURLResp struct {
	URL string `json:"url"`
}
