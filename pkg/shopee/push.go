package shopee

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// 推送类型
const (
	PushCodeOrderStatus = 3
	PushCodeTrackingNo  = 4
	PushCodeWebchat     = 10
)

// PushMessage 平台推送的统一外层
type PushMessage struct {
	Code      int             `json:"code"`
	ShopID    int64           `json:"shop_id"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// OrderStatusPush code=3
type OrderStatusPush struct {
	OrderSN    string `json:"ordersn"`
	Status     string `json:"status"`
	UpdateTime int64  `json:"update_time"`
}

// TrackingNoPush code=4
type TrackingNoPush struct {
	OrderSN       string `json:"ordersn"`
	PackageNumber string `json:"package_number"`
	TrackingNo    string `json:"tracking_no"`
}

// WebchatPush code=10，只解析转发需要的字段
type WebchatPush struct {
	Type    string `json:"type"`
	Content struct {
		MessageID      string `json:"message_id"`
		ConversationID string `json:"conversation_id"`
		MessageType    string `json:"message_type"`
		FromID         int64  `json:"from_id"`
		FromUserName   string `json:"from_user_name"`
		Content        struct {
			Text string `json:"text"`
		} `json:"content"`
		CreatedTimestamp int64 `json:"created_timestamp"`
	} `json:"content"`
}

// VerifyPush 校验推送签名：HMAC-SHA256(partner_key, callbackURL + "|" + body)
func (c *Client) VerifyPush(callbackURL string, body []byte, authorization string) bool {
	mac := hmac.New(sha256.New, []byte(c.cfg.PartnerKey))
	mac.Write([]byte(callbackURL + "|"))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(authorization))
}
