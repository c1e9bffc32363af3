package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ==================== 订单状态常量 ====================

// Shopee 订单生命周期
const (
	OrderStatusUnpaid      = "UNPAID"
	OrderStatusReadyToShip = "READY_TO_SHIP"
	OrderStatusProcessed   = "PROCESSED"
	OrderStatusShipped     = "SHIPPED"
	OrderStatusCompleted   = "COMPLETED"
	OrderStatusInCancel    = "IN_CANCEL"
	OrderStatusCancelled   = "CANCELLED"
	OrderStatusToReturn    = "TO_RETURN"
	OrderStatusInvoicePend = "INVOICE_PENDING"

	// OrderStatusAll 仅用于列表过滤，表示不限状态
	OrderStatusAll = "ALL"
)

// ValidOrderStatus 过滤条件是否合法
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusAll, OrderStatusUnpaid, OrderStatusReadyToShip, OrderStatusProcessed,
		OrderStatusShipped, OrderStatusCompleted, OrderStatusInCancel, OrderStatusCancelled,
		OrderStatusToReturn, OrderStatusInvoicePend:
		return true
	}
	return false
}

// ==================== Order 订单主表 ====================

// Order 以 order_sn 为业务键幂等写入
type Order struct {
	ID      int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderSN string `gorm:"size:64;uniqueIndex;not null" json:"order_sn"`
	ShopID  int64  `gorm:"index;not null" json:"shop_id"`

	OrderStatus string `gorm:"size:32;index" json:"order_status"`

	// 买家
	BuyerUserID     int64  `json:"buyer_user_id"`
	BuyerUsername   string `gorm:"size:255" json:"buyer_username"`
	MessageToSeller string `gorm:"type:text" json:"message_to_seller"`
	Note            string `gorm:"type:text" json:"note"`

	// 金额
	Currency             string          `gorm:"size:10" json:"currency"`
	TotalAmount          decimal.Decimal `gorm:"type:decimal(15,2)" json:"total_amount"`
	EstimatedShippingFee decimal.Decimal `gorm:"type:decimal(15,2)" json:"estimated_shipping_fee"`
	PaymentMethod        string          `gorm:"size:64" json:"payment_method"`
	COD                  bool            `json:"cod"`

	// 物流
	ShippingCarrier string     `gorm:"size:128" json:"shipping_carrier"`
	DaysToShip      int        `json:"days_to_ship"`
	ShipByDate      *time.Time `json:"ship_by_date"`

	// 收件人
	RecipientName        string `gorm:"size:255" json:"recipient_name"`
	RecipientPhone       string `gorm:"size:64" json:"recipient_phone"`
	RecipientCity        string `gorm:"size:128" json:"recipient_city"`
	RecipientRegion      string `gorm:"size:64" json:"recipient_region"`
	RecipientFullAddress string `gorm:"type:text" json:"recipient_full_address"`

	// 取消
	CancelBy     string `gorm:"size:32" json:"cancel_by"`
	CancelReason string `gorm:"type:text" json:"cancel_reason"`

	// 平台时间
	ShopeeCreatedAt time.Time  `gorm:"index" json:"create_time"`
	ShopeeUpdatedAt time.Time  `gorm:"index" json:"update_time"`
	PaidAt          *time.Time `json:"pay_time"`

	// 原始详情 JSON
	RawData string `gorm:"type:text" json:"-"`

	SyncedAt  time.Time `json:"synced_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Items    []OrderItem    `gorm:"foreignKey:OrderSN;references:OrderSN" json:"items,omitempty"`
	Packages []OrderPackage `gorm:"foreignKey:OrderSN;references:OrderSN" json:"packages,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

// ==================== OrderItem 订单明细 ====================

// OrderItem 明细集合随订单整体替换
type OrderItem struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderSN     string `gorm:"size:64;not null;uniqueIndex:idx_order_item_key,priority:1" json:"order_sn"`
	OrderItemID int64  `gorm:"not null;uniqueIndex:idx_order_item_key,priority:2" json:"order_item_id"`
	ModelID     int64  `gorm:"not null;uniqueIndex:idx_order_item_key,priority:3" json:"model_id"`
	ItemID      int64  `gorm:"index" json:"item_id"`

	ItemName  string `gorm:"size:512" json:"item_name"`
	ItemSKU   string `gorm:"size:128" json:"item_sku"`
	ModelName string `gorm:"size:255" json:"model_name"`
	ModelSKU  string `gorm:"size:128" json:"model_sku"`
	ImageURL  string `gorm:"size:512" json:"image_url"`

	Quantity        int             `json:"quantity"`
	OriginalPrice   decimal.Decimal `gorm:"type:decimal(15,2)" json:"original_price"`
	DiscountedPrice decimal.Decimal `gorm:"type:decimal(15,2)" json:"discounted_price"`

	CreatedAt time.Time `json:"created_at"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

// ==================== OrderPackage 包裹 ====================

// OrderPackage 包裹与运单号，运单号也可能由推送单独更新
type OrderPackage struct {
	ID              int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderSN         string `gorm:"size:64;not null;uniqueIndex:idx_order_package_key,priority:1" json:"order_sn"`
	PackageNumber   string `gorm:"size:64;not null;uniqueIndex:idx_order_package_key,priority:2" json:"package_number"`
	LogisticsStatus string `gorm:"size:64" json:"logistics_status"`
	ShippingCarrier string `gorm:"size:128" json:"shipping_carrier"`
	TrackingNumber  string `gorm:"size:128" json:"tracking_number"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (OrderPackage) TableName() string {
	return "order_packages"
}
