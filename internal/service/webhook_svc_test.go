package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shopee_admin_v1/internal/model"
	"shopee_admin_v1/internal/notify"
)

type recordingHub struct {
	mu     sync.Mutex
	events []notify.Event
}

func (h *recordingHub) Broadcast(e notify.Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
	return 1
}

func (h *recordingHub) types() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.events))
	for i, e := range h.events {
		out[i] = e.Type
	}
	return out
}

type staticVerifier bool

func (v staticVerifier) VerifyPush(string, []byte, string) bool { return bool(v) }

func newWebhookEnv(t *testing.T) (*testEnv, *recordingHub, *WebhookService) {
	env := newTestEnv(t)
	hub := &recordingHub{}
	svc := NewWebhookService(env.sync, env.orderRepo, hub, staticVerifier(false), WebhookConfig{}, zap.NewNop())
	return env, hub, svc
}

func TestWebhook_OrderStatusSyncsDetail(t *testing.T) {
	env, hub, svc := newWebhookEnv(t)
	ctx := context.Background()
	env.seedShop(t, 1001, time.Hour)
	env.orders.addOrders("2412010000001")

	body := `{"code":3,"shop_id":1001,"timestamp":1733000200,"data":{"ordersn":"2412010000001","status":"READY_TO_SHIP","update_time":1733000200}}`
	require.NoError(t, svc.Handle(ctx, []byte(body)))

	order, err := env.orderRepo.GetByOrderSN(ctx, "2412010000001")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusReadyToShip, order.OrderStatus)
	assert.Len(t, order.Items, 1)
	assert.Equal(t, []string{notify.EventOrderUpdate}, hub.types())
}

func TestWebhook_OrderStatusFallsBackToStatusUpdate(t *testing.T) {
	env, hub, svc := newWebhookEnv(t)
	ctx := context.Background()
	env.seedShop(t, 1001, time.Hour)
	env.orders.addOrders("A1")
	_, err := env.sync.SyncOrdersByOrderSns(ctx, 1001, []string{"A1"})
	require.NoError(t, err)

	env.orders.detailErr = errBoom
	body := `{"code":3,"shop_id":1001,"data":{"ordersn":"A1","status":"SHIPPED","update_time":1733009999}}`
	require.NoError(t, svc.Handle(ctx, []byte(body)))

	order, err := env.orderRepo.GetByOrderSN(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusShipped, order.OrderStatus)
	assert.Equal(t, []string{notify.EventOrderUpdate}, hub.types())
}

func TestWebhook_TrackingNumber(t *testing.T) {
	env, hub, svc := newWebhookEnv(t)
	ctx := context.Background()

	body := `{"code":4,"shop_id":1001,"data":{"ordersn":"A1","package_number":"PKG-1","tracking_no":"JNE123"}}`
	require.NoError(t, svc.Handle(ctx, []byte(body)))

	var pkg model.OrderPackage
	require.NoError(t, env.db.Where("order_sn = ?", "A1").First(&pkg).Error)
	assert.Equal(t, "JNE123", pkg.TrackingNumber)
	assert.Equal(t, []string{notify.EventTracking}, hub.types())
}

func TestWebhook_WebchatTextOnly(t *testing.T) {
	_, hub, svc := newWebhookEnv(t)
	ctx := context.Background()

	text := `{"code":10,"shop_id":1001,"data":{"type":"message","content":{"message_id":"m1","conversation_id":"c1","message_type":"text","from_id":9,"from_user_name":"buyer","content":{"text":"halo"},"created_timestamp":1733000000}}}`
	sticker := `{"code":10,"shop_id":1001,"data":{"type":"message","content":{"message_type":"sticker"}}}`
	require.NoError(t, svc.Handle(ctx, []byte(text)))
	require.NoError(t, svc.Handle(ctx, []byte(sticker)))

	require.Equal(t, []string{notify.EventNewMessage}, hub.types())
	assert.Contains(t, string(hub.events[0].Data), `"text":"halo"`)
}

func TestWebhook_UnknownAndMalformed(t *testing.T) {
	_, hub, svc := newWebhookEnv(t)
	ctx := context.Background()

	assert.NoError(t, svc.Handle(ctx, []byte(`{"code":99,"shop_id":1,"data":{}}`)))
	assert.Error(t, svc.Handle(ctx, []byte(`not json`)))
	assert.Error(t, svc.Handle(ctx, []byte(`{"code":3,"shop_id":1,"data":{}}`)))
	assert.Empty(t, hub.types())
}

func TestWebhook_DispatchAndWait(t *testing.T) {
	_, hub, svc := newWebhookEnv(t)

	svc.Dispatch([]byte(`{"code":4,"shop_id":1,"data":{"ordersn":"A1","package_number":"P1","tracking_no":"T1"}}`))
	svc.Wait()
	assert.Equal(t, []string{notify.EventTracking}, hub.types())
}

func TestWebhook_Verify(t *testing.T) {
	env := newTestEnv(t)
	off := NewWebhookService(env.sync, env.orderRepo, &recordingHub{}, staticVerifier(false), WebhookConfig{}, zap.NewNop())
	assert.True(t, off.Verify([]byte("{}"), ""))

	on := NewWebhookService(env.sync, env.orderRepo, &recordingHub{}, staticVerifier(false),
		WebhookConfig{VerifySignature: true, CallbackURL: "https://x/api/webhook"}, zap.NewNop())
	assert.False(t, on.Verify([]byte("{}"), "bad"))
}
