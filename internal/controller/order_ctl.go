package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shopee_admin_v1/internal/api/dto"
	"shopee_admin_v1/internal/service"
)

// OrderController 本地订单查询
type OrderController struct {
	orderSvc *service.OrderService
}

func NewOrderController(orderSvc *service.OrderService) *OrderController {
	return &OrderController{orderSvc: orderSvc}
}

// ListOrders 订单列表
// @Summary 订单列表
// @Tags Order
// @Produce json
// @Param shop_id query int false "店铺 ID"
// @Param order_status query string false "订单状态"
// @Param order_sn query string false "订单号前缀"
// @Param start_date query int false "创建时间起（unix 秒）"
// @Param end_date query int false "创建时间止（unix 秒）"
// @Success 200 {object} dto.ListOrdersResponse
// @Router /api/orders [get]
func (c *OrderController) ListOrders(ctx *gin.Context) {
	var req dto.ListOrdersRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		fail(ctx, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	resp, err := c.orderSvc.ListOrders(ctx.Request.Context(), &req)
	if err != nil {
		fail(ctx, statusOf(err), err.Error())
		return
	}
	ok(ctx, resp)
}

// GetOrder 订单详情
// @Router /api/orders/{order_sn} [get]
func (c *OrderController) GetOrder(ctx *gin.Context) {
	order, err := c.orderSvc.GetOrder(ctx.Request.Context(), ctx.Param("order_sn"))
	if err != nil {
		fail(ctx, statusOf(err), err.Error())
		return
	}
	ok(ctx, order)
}
