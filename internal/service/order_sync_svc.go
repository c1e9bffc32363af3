package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"shopee_admin_v1/internal/api/dto"
	"shopee_admin_v1/internal/metrics"
	"shopee_admin_v1/internal/model"
	"shopee_admin_v1/internal/repository"
	"shopee_admin_v1/pkg/async"
	"shopee_admin_v1/pkg/shopee"
)

// 平台 get_order_list 单次时间窗上限
const maxListWindow = 15 * 24 * time.Hour

// 同步类型，用于指标
const (
	SyncKindWindow   = "window"
	SyncKindOrderSns = "order_sns"
	SyncKindAuto     = "auto"
)

// ==================== 依赖接口 ====================

// TokenSource 同步只关心拿到可用 token 与被拒后的强制刷新
type TokenSource interface {
	GetValidAccessToken(ctx context.Context, shopID int64) (string, error)
	ForceRefresh(ctx context.Context, shopID int64, staleToken string) (string, error)
}

// ==================== 配置与参数 ====================

// SyncConfig 同步参数
type SyncConfig struct {
	PageSize        int
	DetailBatchSize int
	MaxPages        int // 单次同步的列表页数安全上限
	DefaultWindow   time.Duration
	ShopConcurrency int
}

// SyncOptions 单店铺时间窗同步参数，零值字段取默认
type SyncOptions struct {
	TimeRangeField shopee.TimeRangeField
	Start          time.Time
	End            time.Time
	OrderStatus    string
	OnProgress     func(dto.SyncProgress)
	OnError        func(orderSN string, err error)
}

// ==================== OrderSyncService ====================

// OrderSyncService 从平台拉取订单并幂等写入本地
type OrderSyncService struct {
	shopRepo  repository.ShopRepository
	orderRepo repository.OrderRepository
	api       OrderAPI
	tokens    TokenSource
	metrics   metrics.Recorder
	log       *zap.Logger
	cfg       SyncConfig
	now       func() time.Time
}

func NewOrderSyncService(shopRepo repository.ShopRepository, orderRepo repository.OrderRepository,
	api OrderAPI, tokens TokenSource, cfg SyncConfig, log *zap.Logger, rec metrics.Recorder) *OrderSyncService {

	if cfg.PageSize <= 0 || cfg.PageSize > shopee.MaxPageSize {
		cfg.PageSize = 50
	}
	if cfg.DetailBatchSize <= 0 || cfg.DetailBatchSize > shopee.MaxDetailBatch {
		cfg.DetailBatchSize = shopee.MaxDetailBatch
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 200
	}
	if cfg.DefaultWindow <= 0 {
		cfg.DefaultWindow = 7 * 24 * time.Hour
	}
	if cfg.ShopConcurrency <= 0 {
		cfg.ShopConcurrency = 5
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &OrderSyncService{
		shopRepo:  shopRepo,
		orderRepo: orderRepo,
		api:       api,
		tokens:    tokens,
		metrics:   rec,
		log:       log.Named("sync"),
		cfg:       cfg,
		now:       time.Now,
	}
}

// SyncOrders 按时间窗同步单店铺
// 列表调用失败时整体失败（Success=false 并返回 error）；单订单失败只计入 Failures
func (s *OrderSyncService) SyncOrders(ctx context.Context, shopID int64, opts SyncOptions) (*dto.SyncResult, error) {
	started := s.now()
	if err := s.normalize(&opts); err != nil {
		return &dto.SyncResult{Error: err.Error(), Data: dto.SyncData{OrderSns: []string{}}}, err
	}

	log := s.log.With(zap.Int64("shop_id", shopID))
	log.Info("[Sync] 开始同步订单",
		zap.String("time_range_field", string(opts.TimeRangeField)),
		zap.Time("start", opts.Start), zap.Time("end", opts.End),
		zap.String("order_status", opts.OrderStatus))

	result := &dto.SyncResult{Data: dto.SyncData{OrderSns: []string{}}}
	seen := make(map[string]struct{})
	pages := 0

windows:
	for _, w := range splitWindow(opts.Start, opts.End, maxListWindow) {
		cursor := ""
		for {
			if pages >= s.cfg.MaxPages {
				result.Data.Truncated = true
				log.Warn("[Sync] 达到列表页数上限，提前结束", zap.Int("max_pages", s.cfg.MaxPages))
				break windows
			}

			var page *shopee.OrderListPage
			err := s.withToken(ctx, shopID, func(token string) error {
				var err error
				page, err = s.api.GetOrderList(ctx, shopID, token, shopee.OrderListParams{
					TimeRangeField: opts.TimeRangeField,
					TimeFrom:       w[0],
					TimeTo:         w[1],
					PageSize:       s.cfg.PageSize,
					Cursor:         cursor,
					OrderStatus:    opts.OrderStatus,
				})
				return err
			})
			if err != nil {
				log.Error("[Sync] 拉取订单列表失败", zap.Int("page", pages+1), zap.Error(err))
				s.metrics.RecordSync(SyncKindWindow, false, s.now().Sub(started))
				result.Success = false
				result.Error = err.Error()
				return result, fmt.Errorf("拉取订单列表失败: %w", err)
			}
			pages++

			fresh := make([]string, 0, len(page.OrderSNs))
			for _, sn := range page.OrderSNs {
				if _, ok := seen[sn]; ok {
					continue
				}
				seen[sn] = struct{}{}
				fresh = append(fresh, sn)
			}
			result.Data.Total += len(fresh)
			if err := s.process(ctx, shopID, fresh, &result.Data, opts); err != nil {
				log.Error("[Sync] 店铺授权不可用，终止同步", zap.Error(err))
				s.metrics.RecordSync(SyncKindWindow, false, s.now().Sub(started))
				result.Error = err.Error()
				return result, err
			}

			if page.Done() {
				break
			}
			cursor = page.NextCursor
		}
	}

	result.Success = true
	s.finish(ctx, shopID, SyncKindWindow, started, &result.Data)
	return result, nil
}

// SyncOrdersByOrderSns 按订单号同步，跳过列表；Total 恒等于 len(orderSns)
func (s *OrderSyncService) SyncOrdersByOrderSns(ctx context.Context, shopID int64, orderSns []string) (*dto.SyncResult, error) {
	started := s.now()
	result := &dto.SyncResult{Data: dto.SyncData{Total: len(orderSns), OrderSns: []string{}}}
	if len(orderSns) == 0 {
		result.Success = true
		return result, nil
	}

	valid := make([]string, 0, len(orderSns))
	for _, sn := range orderSns {
		if strings.TrimSpace(sn) == "" {
			result.Data.Failures = append(result.Data.Failures, dto.OrderFailure{OrderSN: sn, Error: "order_sn 为空"})
			continue
		}
		valid = append(valid, strings.TrimSpace(sn))
	}

	if err := s.process(ctx, shopID, valid, &result.Data, SyncOptions{}); err != nil {
		s.log.Error("[Sync] 店铺授权不可用，终止同步", zap.Int64("shop_id", shopID), zap.Error(err))
		s.metrics.RecordSync(SyncKindOrderSns, false, s.now().Sub(started))
		result.Error = err.Error()
		return result, err
	}
	result.Success = true
	s.finish(ctx, shopID, SyncKindOrderSns, started, &result.Data)
	return result, nil
}

// AutoSync 所有活跃店铺按创建时间滚动同步最近 window，店铺之间互不影响
func (s *OrderSyncService) AutoSync(ctx context.Context, window time.Duration) (*dto.AutoSyncResponse, error) {
	started := s.now()
	shops, err := s.shopRepo.ListActiveShops(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询活跃店铺失败: %w", err)
	}

	end := s.now()
	start := end.Add(-window)
	resp := &dto.AutoSyncResponse{
		Success:     true,
		WindowStart: start,
		WindowEnd:   end,
		Summary:     make(map[string]dto.ShopSyncSummary, len(shops)),
	}
	if len(shops) == 0 {
		resp.Message = "没有需要同步的店铺"
		return resp, nil
	}

	tasks := make([]async.Task[*dto.SyncResult], len(shops))
	for i := range shops {
		shopID := shops[i].ShopID
		tasks[i] = func(ctx context.Context) (*dto.SyncResult, error) {
			return s.SyncOrders(ctx, shopID, SyncOptions{
				TimeRangeField: shopee.TimeRangeCreateTime,
				Start:          start,
				End:            end,
				OrderStatus:    model.OrderStatusAll,
			})
		}
	}

	outcomes := async.SettleAll(ctx, s.cfg.ShopConcurrency, tasks)
	rejected := 0
	for _, o := range outcomes {
		shop := shops[o.Index]
		summary := dto.ShopSyncSummary{ShopID: shop.ShopID, ShopName: shop.DisplayName()}
		if o.Value != nil {
			summary.TotalOrders = o.Value.Data.Total
			summary.Processed = o.Value.Data.Processed
		}
		if o.Fulfilled() {
			summary.Status = dto.SettleFulfilled
			resp.TotalOrders += summary.TotalOrders
		} else {
			rejected++
			summary.Status = dto.SettleRejected
			summary.Error = o.Err.Error()
		}
		resp.Summary[strconv.FormatInt(shop.ShopID, 10)] = summary
	}

	resp.Message = fmt.Sprintf("自动同步完成：%d 个店铺成功，%d 个失败", len(shops)-rejected, rejected)
	s.metrics.RecordSync(SyncKindAuto, rejected == 0, s.now().Sub(started))
	s.log.Info("[Sync] "+resp.Message, zap.Int("total_orders", resp.TotalOrders))
	return resp, nil
}

// ==================== 内部实现 ====================

// process 分批取详情并逐单写入；失败只影响对应订单
// 店铺级错误（不存在、未授权、授权失效）直接返回，后续批次不再请求
func (s *OrderSyncService) process(ctx context.Context, shopID int64, orderSns []string, data *dto.SyncData, opts SyncOptions) error {
	fail := func(sn string, err error) {
		data.Failures = append(data.Failures, dto.OrderFailure{OrderSN: sn, Error: err.Error()})
		if opts.OnError != nil {
			opts.OnError(sn, err)
		}
	}

	for start := 0; start < len(orderSns); start += s.cfg.DetailBatchSize {
		end := min(start+s.cfg.DetailBatchSize, len(orderSns))
		batch := orderSns[start:end]

		var details []shopee.OrderDetail
		err := s.withToken(ctx, shopID, func(token string) error {
			var err error
			details, err = s.api.GetOrderDetail(ctx, shopID, token, batch)
			return err
		})
		if isShopFatal(err) {
			return err
		}
		if err != nil {
			s.log.Error("[Sync] 拉取订单详情失败",
				zap.Int64("shop_id", shopID), zap.Int("batch_size", len(batch)), zap.Error(err))
			for _, sn := range batch {
				fail(sn, err)
			}
			s.progress(data, opts)
			continue
		}

		bySN := make(map[string]*shopee.OrderDetail, len(details))
		for i := range details {
			bySN[details[i].OrderSN] = &details[i]
		}

		for _, sn := range batch {
			d, ok := bySN[sn]
			if !ok {
				fail(sn, errors.New("平台未返回订单详情"))
				continue
			}
			if err := s.orderRepo.UpsertWithItems(ctx, detailToOrder(shopID, d, s.now())); err != nil {
				s.log.Error("[Sync] 写入订单失败", zap.String("order_sn", sn), zap.Error(err))
				fail(sn, fmt.Errorf("写入订单失败: %w", err))
				continue
			}
			data.Processed++
			data.OrderSns = append(data.OrderSns, sn)
		}
		s.progress(data, opts)
	}
	return nil
}

// isShopFatal 该店铺的任何平台调用都不会成功
func isShopFatal(err error) bool {
	return errors.Is(err, ErrShopNotFound) || errors.Is(err, ErrShopUnauthorized) || errors.Is(err, ErrShopRevoked)
}

func (s *OrderSyncService) progress(data *dto.SyncData, opts SyncOptions) {
	if opts.OnProgress != nil {
		opts.OnProgress(dto.SyncProgress{Current: data.Processed + len(data.Failures), Total: data.Total})
	}
}

func (s *OrderSyncService) finish(ctx context.Context, shopID int64, kind string, started time.Time, data *dto.SyncData) {
	s.metrics.RecordOrdersUpserted(data.Processed)
	s.metrics.RecordOrderFailures(len(data.Failures))
	s.metrics.RecordSync(kind, true, s.now().Sub(started))
	if err := s.shopRepo.MarkSynced(ctx, shopID, s.now()); err != nil {
		s.log.Warn("[Sync] 更新同步时间失败", zap.Int64("shop_id", shopID), zap.Error(err))
	}
	s.log.Info("[Sync] 同步完成",
		zap.Int64("shop_id", shopID), zap.String("kind", kind),
		zap.Int("total", data.Total), zap.Int("processed", data.Processed),
		zap.Int("failed", len(data.Failures)), zap.Duration("elapsed", s.now().Sub(started)))
}

func (s *OrderSyncService) withToken(ctx context.Context, shopID int64, fn func(token string) error) error {
	return callWithToken(ctx, s.tokens, shopID, fn)
}

func (s *OrderSyncService) normalize(opts *SyncOptions) error {
	if opts.TimeRangeField == "" {
		opts.TimeRangeField = shopee.TimeRangeUpdateTime
	}
	if opts.End.IsZero() {
		opts.End = s.now()
	}
	if opts.Start.IsZero() {
		opts.Start = opts.End.Add(-s.cfg.DefaultWindow)
	}
	if opts.OrderStatus == "" {
		opts.OrderStatus = model.OrderStatusAll
	}
	return ValidateSyncOptions(*opts)
}

// ValidateSyncOptions 零值字段表示取默认值，不做校验
func ValidateSyncOptions(opts SyncOptions) error {
	if opts.TimeRangeField != "" && !opts.TimeRangeField.Valid() {
		return fmt.Errorf("%w: timeRangeField=%s", ErrInvalidSyncOptions, opts.TimeRangeField)
	}
	if !opts.Start.IsZero() && !opts.End.IsZero() && opts.Start.After(opts.End) {
		return fmt.Errorf("%w: startTime 不能晚于 endTime", ErrInvalidSyncOptions)
	}
	if opts.OrderStatus != "" && !model.ValidOrderStatus(opts.OrderStatus) {
		return fmt.Errorf("%w: orderStatus=%s", ErrInvalidSyncOptions, opts.OrderStatus)
	}
	return nil
}

// splitWindow 将 [start, end) 切成不超过 size 的连续片段；start == end 时返回一个零长度片段
func splitWindow(start, end time.Time, size time.Duration) [][2]time.Time {
	if start.Equal(end) {
		return [][2]time.Time{{start, end}}
	}
	var out [][2]time.Time
	for cur := start; cur.Before(end); cur = cur.Add(size) {
		next := cur.Add(size)
		if next.After(end) {
			next = end
		}
		out = append(out, [2]time.Time{cur, next})
	}
	return out
}

// ==================== 模型转换 ====================

func detailToOrder(shopID int64, d *shopee.OrderDetail, now time.Time) *model.Order {
	order := &model.Order{
		OrderSN:              d.OrderSN,
		ShopID:               shopID,
		OrderStatus:          d.OrderStatus,
		BuyerUserID:          d.BuyerUserID,
		BuyerUsername:        d.BuyerUsername,
		MessageToSeller:      d.MessageToSeller,
		Note:                 d.Note,
		Currency:             d.Currency,
		TotalAmount:          d.TotalAmount,
		EstimatedShippingFee: d.EstimatedShippingFee,
		PaymentMethod:        d.PaymentMethod,
		COD:                  d.COD,
		ShippingCarrier:      d.ShippingCarrier,
		DaysToShip:           d.DaysToShip,
		ShipByDate:           unixPtr(d.ShipByDate),
		RecipientName:        d.RecipientAddress.Name,
		RecipientPhone:       d.RecipientAddress.Phone,
		RecipientCity:        d.RecipientAddress.City,
		RecipientRegion:      d.RecipientAddress.Region,
		RecipientFullAddress: d.RecipientAddress.FullAddress,
		CancelBy:             d.CancelBy,
		CancelReason:         d.CancelReason,
		ShopeeCreatedAt:      time.Unix(d.CreateTime, 0),
		ShopeeUpdatedAt:      time.Unix(d.UpdateTime, 0),
		PaidAt:               unixPtr(d.PayTime),
		RawData:              string(d.Raw),
		SyncedAt:             now,
	}

	order.Items = make([]model.OrderItem, 0, len(d.ItemList))
	for _, it := range d.ItemList {
		order.Items = append(order.Items, model.OrderItem{
			OrderSN:         d.OrderSN,
			OrderItemID:     it.OrderItemID,
			ModelID:         it.ModelID,
			ItemID:          it.ItemID,
			ItemName:        it.ItemName,
			ItemSKU:         it.ItemSKU,
			ModelName:       it.ModelName,
			ModelSKU:        it.ModelSKU,
			ImageURL:        it.ImageInfo.ImageURL,
			Quantity:        it.ModelQuantityPurchased,
			OriginalPrice:   it.ModelOriginalPrice,
			DiscountedPrice: it.ModelDiscountedPrice,
		})
	}

	order.Packages = make([]model.OrderPackage, 0, len(d.PackageList))
	for _, p := range d.PackageList {
		if p.PackageNumber == "" {
			continue
		}
		order.Packages = append(order.Packages, model.OrderPackage{
			OrderSN:         d.OrderSN,
			PackageNumber:   p.PackageNumber,
			LogisticsStatus: p.LogisticsStatus,
			ShippingCarrier: p.ShippingCarrier,
		})
	}
	return order
}

func unixPtr(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0)
	return &t
}
