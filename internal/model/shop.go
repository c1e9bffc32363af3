package model

import (
	"time"
)

// Shop 店铺状态常量
const (
	ShopStatusPending  = 0 // 待授权
	ShopStatusActive   = 1 // 正常
	ShopStatusInactive = 2 // 已停用
)

// Token 授权状态
// unauthorized -> active -> (过期后自动刷新) -> active ... ; refresh token 被平台拒绝 -> revoked
const (
	TokenStatusUnauthorized = "unauthorized" // 未授权
	TokenStatusActive       = "active"       // 正常，access token 过期会自动刷新
	TokenStatusRevoked      = "revoked"      // refresh token 失效，需重新走 OAuth
)

// Shop Shopee 店铺，OAuth 回调时创建，停用只改状态不删除
type Shop struct {
	BaseModel
	ShopID   int64  `gorm:"uniqueIndex;not null;comment:Shopee 平台 shop_id" json:"shop_id"`
	ShopName string `gorm:"size:255" json:"shop_name"`
	Region   string `gorm:"size:10" json:"region"`
	Status   int    `gorm:"default:0;index;comment:状态 0-待授权 1-正常 2-已停用" json:"status"`

	// Token
	TokenStatus            string     `gorm:"size:20;default:'unauthorized'" json:"token_status"`
	AccessToken            string     `gorm:"type:text" json:"-"`
	RefreshToken           string     `gorm:"type:text" json:"-"`
	AccessTokenExpiresAt   *time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt  *time.Time `json:"refresh_token_expires_at"`
	AuthorizationExpiresAt *time.Time `json:"authorization_expires_at"`
	LastRefreshAt          *time.Time `json:"last_refresh_at"`
	RefreshCount           int        `gorm:"default:0" json:"refresh_count"`

	LastSyncedAt *time.Time `gorm:"comment:最后一次订单同步时间" json:"last_synced_at"`
}

func (Shop) TableName() string {
	return "shops"
}

// IsActive 停用的店铺不参与自动同步与 Token 保活
func (s *Shop) IsActive() bool {
	return s.Status == ShopStatusActive
}

// IsRevoked refresh token 已被平台拒绝
func (s *Shop) IsRevoked() bool {
	return s.TokenStatus == TokenStatusRevoked
}

// DisplayName 汇总结果里用的标识
func (s *Shop) DisplayName() string {
	if s.ShopName == "" {
		return "Shop"
	}
	return s.ShopName
}
