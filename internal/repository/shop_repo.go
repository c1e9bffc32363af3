package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"shopee_admin_v1/internal/model"
)

// ==================== 接口定义 ====================

// ShopRepository 店铺仓储接口
type ShopRepository interface {
	Create(ctx context.Context, shop *model.Shop) error
	GetByShopID(ctx context.Context, shopID int64) (*model.Shop, error)
	UpdateFields(ctx context.Context, shopID int64, fields map[string]interface{}) error

	// 列表查询
	List(ctx context.Context, filter ShopFilter) ([]model.Shop, int64, error)
	ListActiveShops(ctx context.Context) ([]model.Shop, error)

	// 状态相关
	UpdateStatus(ctx context.Context, shopID int64, status int) error
	UpdateTokenStatus(ctx context.Context, shopID int64, tokenStatus string) error
	UpdateTokens(ctx context.Context, shopID int64, tokens TokenUpdate) error
	FindExpiringShops(ctx context.Context, before time.Time) ([]model.Shop, error)
	MarkSynced(ctx context.Context, shopID int64, at time.Time) error
}

// TokenUpdate 刷新成功后一次性替换的字段
type TokenUpdate struct {
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
	RefreshedAt           time.Time
}

// ==================== 过滤条件 ====================

// ShopFilter 店铺过滤条件
type ShopFilter struct {
	ShopName    string
	Status      int // -1 表示不筛选
	TokenStatus string
	Page        int
	PageSize    int
}

// ==================== 仓储实现 ====================

type shopRepo struct {
	db *gorm.DB
}

// NewShopRepository 创建店铺仓储
func NewShopRepository(db *gorm.DB) ShopRepository {
	return &shopRepo{db: db}
}

func (r *shopRepo) Create(ctx context.Context, shop *model.Shop) error {
	return r.db.WithContext(ctx).Create(shop).Error
}

func (r *shopRepo) GetByShopID(ctx context.Context, shopID int64) (*model.Shop, error) {
	var shop model.Shop
	if err := r.db.WithContext(ctx).Where("shop_id = ?", shopID).First(&shop).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

func (r *shopRepo) UpdateFields(ctx context.Context, shopID int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Shop{}).
		Where("shop_id = ?", shopID).
		Updates(fields).Error
}

func (r *shopRepo) List(ctx context.Context, filter ShopFilter) ([]model.Shop, int64, error) {
	var shops []model.Shop
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Shop{})
	if filter.ShopName != "" {
		db = db.Where("shop_name LIKE ?", "%"+filter.ShopName+"%")
	}
	if filter.Status >= 0 {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.TokenStatus != "" {
		db = db.Where("token_status = ?", filter.TokenStatus)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	err := db.Order("id ASC").
		Limit(filter.PageSize).
		Offset((filter.Page - 1) * filter.PageSize).
		Find(&shops).Error
	return shops, total, err
}

func (r *shopRepo) ListActiveShops(ctx context.Context) ([]model.Shop, error) {
	var shops []model.Shop
	err := r.db.WithContext(ctx).
		Where("status = ?", model.ShopStatusActive).
		Order("id ASC").
		Find(&shops).Error
	return shops, err
}

func (r *shopRepo) UpdateStatus(ctx context.Context, shopID int64, status int) error {
	return r.UpdateFields(ctx, shopID, map[string]interface{}{"status": status})
}

func (r *shopRepo) UpdateTokenStatus(ctx context.Context, shopID int64, tokenStatus string) error {
	return r.UpdateFields(ctx, shopID, map[string]interface{}{"token_status": tokenStatus})
}

// UpdateTokens access/refresh 一起替换，同时恢复为 active
func (r *shopRepo) UpdateTokens(ctx context.Context, shopID int64, t TokenUpdate) error {
	res := r.db.WithContext(ctx).Model(&model.Shop{}).
		Where("shop_id = ?", shopID).
		Updates(map[string]interface{}{
			"access_token":             t.AccessToken,
			"refresh_token":            t.RefreshToken,
			"access_token_expires_at":  t.AccessTokenExpiresAt,
			"refresh_token_expires_at": t.RefreshTokenExpiresAt,
			"last_refresh_at":          t.RefreshedAt,
			"token_status":             model.TokenStatusActive,
			"refresh_count":            gorm.Expr("refresh_count + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindExpiringShops 活跃且 access token 在 before 之前过期的店铺
func (r *shopRepo) FindExpiringShops(ctx context.Context, before time.Time) ([]model.Shop, error) {
	var shops []model.Shop
	err := r.db.WithContext(ctx).
		Where("status = ?", model.ShopStatusActive).
		Where("token_status = ?", model.TokenStatusActive).
		Where("access_token_expires_at IS NULL OR access_token_expires_at < ?", before).
		Find(&shops).Error
	return shops, err
}

func (r *shopRepo) MarkSynced(ctx context.Context, shopID int64, at time.Time) error {
	return r.UpdateFields(ctx, shopID, map[string]interface{}{"last_synced_at": at})
}
