package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"shopee_admin_v1/internal/api/dto"
	"shopee_admin_v1/internal/model"
	"shopee_admin_v1/internal/repository"
)

// OrderService 本地订单查询
type OrderService struct {
	orderRepo repository.OrderRepository
}

func NewOrderService(orderRepo repository.OrderRepository) *OrderService {
	return &OrderService{orderRepo: orderRepo}
}

// ListOrders 过滤 + 分页
func (s *OrderService) ListOrders(ctx context.Context, req *dto.ListOrdersRequest) (*dto.ListOrdersResponse, error) {
	if req.OrderStatus != "" && !model.ValidOrderStatus(req.OrderStatus) {
		return nil, fmt.Errorf("%w: order_status=%s", ErrInvalidSyncOptions, req.OrderStatus)
	}

	orders, total, err := s.orderRepo.List(ctx, repository.OrderFilter{
		ShopID:      req.ShopID,
		OrderStatus: req.OrderStatus,
		OrderSN:     req.OrderSN,
		StartDate:   req.StartTime(),
		EndDate:     req.EndTime(),
		Page:        req.Page,
		PageSize:    req.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("查询订单列表失败: %w", err)
	}
	return &dto.ListOrdersResponse{Total: total, Page: req.Page, List: orders}, nil
}

// GetOrder 含明细与包裹
func (s *OrderService) GetOrder(ctx context.Context, orderSN string) (*model.Order, error) {
	order, err := s.orderRepo.GetByOrderSN(ctx, orderSN)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("查询订单失败: %w", err)
	}
	return order, nil
}
