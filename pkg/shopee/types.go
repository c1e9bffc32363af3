package shopee

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ==================== 鉴权 ====================

// TokenResponse token/get 与 access_token/get 的返回
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpireIn     int64  `json:"expire_in"` // 秒
	RequestID    string `json:"request_id"`
}

// ShopInfo get_shop_info 的返回（只取需要的字段）
type ShopInfo struct {
	ShopName   string `json:"shop_name"`
	Region     string `json:"region"`
	Status     string `json:"status"`
	AuthTime   int64  `json:"auth_time"`
	ExpireTime int64  `json:"expire_time"`
}

// ==================== 订单列表 ====================

// TimeRangeField 列表时间过滤字段
type TimeRangeField string

const (
	TimeRangeCreateTime TimeRangeField = "create_time"
	TimeRangeUpdateTime TimeRangeField = "update_time"
)

// Valid 只接受平台支持的两个字段
func (f TimeRangeField) Valid() bool {
	return f == TimeRangeCreateTime || f == TimeRangeUpdateTime
}

type orderListResponse struct {
	Response struct {
		More       bool   `json:"more"`
		NextCursor string `json:"next_cursor"`
		OrderList  []struct {
			OrderSN     string `json:"order_sn"`
			OrderStatus string `json:"order_status"`
		} `json:"order_list"`
	} `json:"response"`
}

// OrderListPage 一页订单号
type OrderListPage struct {
	OrderSNs   []string
	More       bool
	NextCursor string
}

// Done 游标为空或平台表示没有更多数据
func (p *OrderListPage) Done() bool {
	return !p.More || p.NextCursor == ""
}

// ==================== 订单详情 ====================

type orderDetailResponse struct {
	Response struct {
		OrderList []json.RawMessage `json:"order_list"`
	} `json:"response"`
}

// RecipientAddress 收件人
type RecipientAddress struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Town        string `json:"town"`
	District    string `json:"district"`
	City        string `json:"city"`
	State       string `json:"state"`
	Region      string `json:"region"`
	Zipcode     string `json:"zipcode"`
	FullAddress string `json:"full_address"`
}

// OrderItem 明细行
type OrderItem struct {
	ItemID                 int64           `json:"item_id"`
	ItemName               string          `json:"item_name"`
	ItemSKU                string          `json:"item_sku"`
	ModelID                int64           `json:"model_id"`
	ModelName              string          `json:"model_name"`
	ModelSKU               string          `json:"model_sku"`
	ModelQuantityPurchased int             `json:"model_quantity_purchased"`
	ModelOriginalPrice     decimal.Decimal `json:"model_original_price"`
	ModelDiscountedPrice   decimal.Decimal `json:"model_discounted_price"`
	OrderItemID            int64           `json:"order_item_id"`
	ImageInfo              struct {
		ImageURL string `json:"image_url"`
	} `json:"image_info"`
}

// Package 包裹
type Package struct {
	PackageNumber   string `json:"package_number"`
	LogisticsStatus string `json:"logistics_status"`
	ShippingCarrier string `json:"shipping_carrier"`
}

// OrderDetail get_order_detail 中的单个订单
type OrderDetail struct {
	OrderSN              string           `json:"order_sn"`
	Region               string           `json:"region"`
	Currency             string           `json:"currency"`
	COD                  bool             `json:"cod"`
	TotalAmount          decimal.Decimal  `json:"total_amount"`
	OrderStatus          string           `json:"order_status"`
	ShippingCarrier      string           `json:"shipping_carrier"`
	PaymentMethod        string           `json:"payment_method"`
	EstimatedShippingFee decimal.Decimal  `json:"estimated_shipping_fee"`
	MessageToSeller      string           `json:"message_to_seller"`
	CreateTime           int64            `json:"create_time"`
	UpdateTime           int64            `json:"update_time"`
	PayTime              int64            `json:"pay_time"`
	DaysToShip           int              `json:"days_to_ship"`
	ShipByDate           int64            `json:"ship_by_date"`
	BuyerUserID          int64            `json:"buyer_user_id"`
	BuyerUsername        string           `json:"buyer_username"`
	RecipientAddress     RecipientAddress `json:"recipient_address"`
	Note                 string           `json:"note"`
	CancelBy             string           `json:"cancel_by"`
	CancelReason         string           `json:"cancel_reason"`
	ItemList             []OrderItem      `json:"item_list"`
	PackageList          []Package        `json:"package_list"`

	// Raw 平台返回的原始 JSON
	Raw json.RawMessage `json:"-"`
}

// detailOptionalFields 详情默认只返回基础字段，其余需要显式声明
const detailOptionalFields = "buyer_user_id,buyer_username,estimated_shipping_fee,recipient_address," +
	"actual_shipping_fee,goods_to_declare,note,note_update_time,item_list,pay_time,dropshipper," +
	"dropshipper_phone,split_up,buyer_cancel_reason,cancel_by,cancel_reason,actual_shipping_fee_confirmed," +
	"buyer_cpf_id,fulfillment_flag,pickup_done_time,package_list,shipping_carrier,payment_method," +
	"total_amount,invoice_data,checkout_shipping_carrier,reverse_shipping_fee"
