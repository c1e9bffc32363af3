package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shopee_admin_v1/internal/model"
)

// ==================== 接口定义 ====================

// OrderRepository 订单仓储接口
type OrderRepository interface {
	// UpsertWithItems 订单、明细、包裹在同一事务内写入
	UpsertWithItems(ctx context.Context, order *model.Order) error
	GetByOrderSN(ctx context.Context, orderSN string) (*model.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]model.Order, int64, error)
	CountByShop(ctx context.Context, shopID int64) (int64, error)
	UpdateStatus(ctx context.Context, orderSN, status string, updatedAt time.Time) (bool, error)
	UpsertTrackingNumber(ctx context.Context, orderSN, packageNumber, trackingNo string) error
}

// OrderFilter 订单过滤条件
type OrderFilter struct {
	ShopID      int64
	OrderStatus string
	OrderSN     string
	StartDate   *time.Time // 平台创建时间
	EndDate     *time.Time
	Page        int
	PageSize    int
}

// ==================== 仓储实现 ====================

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) UpsertWithItems(ctx context.Context, order *model.Order) error {
	items := order.Items
	packages := order.Packages

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 订单主表：order_sn 冲突时覆盖全部字段
		if err := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "order_sn"}},
				UpdateAll: true,
			}).
			Create(order).Error; err != nil {
			return err
		}

		// 2. 明细整体替换
		if err := tx.Where("order_sn = ?", order.OrderSN).Delete(&model.OrderItem{}).Error; err != nil {
			return err
		}
		if len(items) > 0 {
			for i := range items {
				items[i].ID = 0
				items[i].OrderSN = order.OrderSN
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "order_sn"}, {Name: "order_item_id"}, {Name: "model_id"}},
				UpdateAll: true,
			}).Create(&items).Error; err != nil {
				return err
			}
		}

		// 3. 包裹：保留推送写入的运单号，只更新物流状态，并移除已不存在的包裹
		numbers := make([]string, 0, len(packages))
		for i := range packages {
			packages[i].ID = 0
			packages[i].OrderSN = order.OrderSN
			numbers = append(numbers, packages[i].PackageNumber)
		}
		stale := tx.Where("order_sn = ?", order.OrderSN)
		if len(numbers) > 0 {
			stale = stale.Where("package_number NOT IN ?", numbers)
		}
		if err := stale.Delete(&model.OrderPackage{}).Error; err != nil {
			return err
		}
		if len(packages) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "order_sn"}, {Name: "package_number"}},
				DoUpdates: clause.AssignmentColumns([]string{"logistics_status", "shipping_carrier", "updated_at"}),
			}).Create(&packages).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *orderRepository) GetByOrderSN(ctx context.Context, orderSN string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Packages").
		Where("order_sn = ?", orderSN).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) List(ctx context.Context, filter OrderFilter) ([]model.Order, int64, error) {
	var orders []model.Order
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Order{})

	// 应用过滤条件
	if filter.ShopID > 0 {
		db = db.Where("shop_id = ?", filter.ShopID)
	}
	if filter.OrderStatus != "" && filter.OrderStatus != model.OrderStatusAll {
		db = db.Where("order_status = ?", filter.OrderStatus)
	}
	if filter.OrderSN != "" {
		db = db.Where("order_sn LIKE ?", filter.OrderSN+"%")
	}
	if filter.StartDate != nil {
		db = db.Where("shopee_created_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		db = db.Where("shopee_created_at <= ?", *filter.EndDate)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 分页
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize

	err := db.
		Preload("Items").
		Order("shopee_created_at DESC").
		Limit(filter.PageSize).
		Offset(offset).
		Find(&orders).Error

	return orders, total, err
}

func (r *orderRepository) CountByShop(ctx context.Context, shopID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).Where("shop_id = ?", shopID).Count(&count).Error
	return count, err
}

// UpdateStatus 只在推送时间不早于本地记录时更新，返回是否命中
func (r *orderRepository) UpdateStatus(ctx context.Context, orderSN, status string, updatedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("order_sn = ? AND shopee_updated_at <= ?", orderSN, updatedAt).
		Updates(map[string]interface{}{
			"order_status":      status,
			"shopee_updated_at": updatedAt,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *orderRepository) UpsertTrackingNumber(ctx context.Context, orderSN, packageNumber, trackingNo string) error {
	pkg := model.OrderPackage{
		OrderSN:        orderSN,
		PackageNumber:  packageNumber,
		TrackingNumber: trackingNo,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_sn"}, {Name: "package_number"}},
		DoUpdates: clause.AssignmentColumns([]string{"tracking_number", "updated_at"}),
	}).Create(&pkg).Error
}
