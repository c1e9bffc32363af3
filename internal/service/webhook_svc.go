package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"shopee_admin_v1/internal/api/dto"
	"shopee_admin_v1/internal/notify"
	"shopee_admin_v1/internal/repository"
	"shopee_admin_v1/pkg/shopee"
)

// ==================== 依赖接口 ====================

// OrderSyncer 推送触发的单订单补同步
type OrderSyncer interface {
	SyncOrdersByOrderSns(ctx context.Context, shopID int64, orderSns []string) (*dto.SyncResult, error)
}

// Broadcaster 事件广播
type Broadcaster interface {
	Broadcast(e notify.Event) int
}

// PushVerifier 推送签名校验，*shopee.Client 实现
type PushVerifier interface {
	VerifyPush(callbackURL string, body []byte, authorization string) bool
}

// WebhookConfig 推送处理
type WebhookConfig struct {
	VerifySignature bool
	CallbackURL     string
	HandleTimeout   time.Duration
}

// ==================== WebhookService ====================

// WebhookService 处理平台推送：先应答，后台处理
type WebhookService struct {
	syncer    OrderSyncer
	orderRepo repository.OrderRepository
	hub       Broadcaster
	verifier  PushVerifier
	cfg       WebhookConfig
	log       *zap.Logger

	wg conc.WaitGroup
}

func NewWebhookService(syncer OrderSyncer, orderRepo repository.OrderRepository, hub Broadcaster,
	verifier PushVerifier, cfg WebhookConfig, log *zap.Logger) *WebhookService {
	if cfg.HandleTimeout <= 0 {
		cfg.HandleTimeout = 2 * time.Minute
	}
	return &WebhookService{
		syncer:    syncer,
		orderRepo: orderRepo,
		hub:       hub,
		verifier:  verifier,
		cfg:       cfg,
		log:       log.Named("webhook"),
	}
}

// Verify 未开启校验时总是通过
func (s *WebhookService) Verify(body []byte, authorization string) bool {
	if !s.cfg.VerifySignature {
		return true
	}
	return s.verifier.VerifyPush(s.cfg.CallbackURL, body, authorization)
}

// Dispatch 后台处理，不阻塞应答
func (s *WebhookService) Dispatch(body []byte) {
	s.wg.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.HandleTimeout)
		defer cancel()
		if err := s.Handle(ctx, body); err != nil {
			s.log.Error("[Webhook] 推送处理失败", zap.Error(err), zap.ByteString("body", body))
		}
	})
}

// Wait 退出前等待处理中的推送
func (s *WebhookService) Wait() {
	if r := s.wg.WaitAndRecover(); r != nil {
		s.log.Error("[Webhook] 推送处理 panic", zap.String("panic", r.String()))
	}
}

// Handle 按推送类型分发
func (s *WebhookService) Handle(ctx context.Context, body []byte) error {
	var msg shopee.PushMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("解析推送失败: %w", err)
	}

	switch msg.Code {
	case shopee.PushCodeOrderStatus:
		var p shopee.OrderStatusPush
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return fmt.Errorf("解析订单状态推送失败: %w", err)
		}
		return s.handleOrderStatus(ctx, msg.ShopID, &p)
	case shopee.PushCodeTrackingNo:
		var p shopee.TrackingNoPush
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return fmt.Errorf("解析运单号推送失败: %w", err)
		}
		return s.handleTracking(ctx, msg.ShopID, &p)
	case shopee.PushCodeWebchat:
		var p shopee.WebchatPush
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return fmt.Errorf("解析聊天推送失败: %w", err)
		}
		s.handleWebchat(msg.ShopID, &p)
		return nil
	default:
		s.log.Debug("[Webhook] 忽略的推送类型", zap.Int("code", msg.Code), zap.Int64("shop_id", msg.ShopID))
		return nil
	}
}

// handleOrderStatus 拉取最新详情写库；拉取失败时至少更新状态
func (s *WebhookService) handleOrderStatus(ctx context.Context, shopID int64, p *shopee.OrderStatusPush) error {
	if p.OrderSN == "" {
		return fmt.Errorf("订单状态推送缺少 ordersn")
	}

	res, err := s.syncer.SyncOrdersByOrderSns(ctx, shopID, []string{p.OrderSN})
	if err != nil || res.Data.Processed == 0 {
		s.log.Warn("[Webhook] 订单详情同步失败，仅更新状态",
			zap.String("order_sn", p.OrderSN), zap.String("status", p.Status), zap.Error(err))
		if _, uerr := s.orderRepo.UpdateStatus(ctx, p.OrderSN, p.Status, time.Unix(p.UpdateTime, 0)); uerr != nil {
			return fmt.Errorf("更新订单状态失败: %w", uerr)
		}
	}

	s.hub.Broadcast(notify.NewEvent(notify.EventOrderUpdate, map[string]any{
		"shop_id":     shopID,
		"order_sn":    p.OrderSN,
		"status":      p.Status,
		"update_time": p.UpdateTime,
	}))
	return nil
}

func (s *WebhookService) handleTracking(ctx context.Context, shopID int64, p *shopee.TrackingNoPush) error {
	if p.OrderSN == "" || p.PackageNumber == "" {
		return fmt.Errorf("运单号推送缺少 ordersn 或 package_number")
	}
	if err := s.orderRepo.UpsertTrackingNumber(ctx, p.OrderSN, p.PackageNumber, p.TrackingNo); err != nil {
		return fmt.Errorf("更新运单号失败: %w", err)
	}

	s.hub.Broadcast(notify.NewEvent(notify.EventTracking, map[string]any{
		"shop_id":        shopID,
		"order_sn":       p.OrderSN,
		"package_number": p.PackageNumber,
		"tracking_no":    p.TrackingNo,
	}))
	return nil
}

// handleWebchat 只转发文本消息
func (s *WebhookService) handleWebchat(shopID int64, p *shopee.WebchatPush) {
	if p.Type != "message" || p.Content.MessageType != "text" {
		return
	}
	s.hub.Broadcast(notify.NewEvent(notify.EventNewMessage, map[string]any{
		"shop_id":         shopID,
		"conversation_id": p.Content.ConversationID,
		"message_id":      p.Content.MessageID,
		"from_id":         p.Content.FromID,
		"from_user_name":  p.Content.FromUserName,
		"text":            p.Content.Content.Text,
		"created":         p.Content.CreatedTimestamp,
	}))
}
