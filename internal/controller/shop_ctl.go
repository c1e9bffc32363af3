package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shopee_admin_v1/internal/api/dto"
	"shopee_admin_v1/internal/service"
)

type ShopController struct {
	shopSvc *service.ShopService
}

func NewShopController(shopSvc *service.ShopService) *ShopController {
	return &ShopController{shopSvc: shopSvc}
}

// GetShopList 获取店铺列表
// @Summary 获取店铺列表
// @Description 分页查询店铺，支持按名称、状态筛选；status=-1 表示全部
// @Tags Shop
// @Produce json
// @Param shop_name query string false "店铺名称关键词"
// @Param status query int false "状态筛选"
// @Param token_status query string false "授权状态"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} dto.ShopListResp
// @Router /api/shops [get]
func (c *ShopController) GetShopList(ctx *gin.Context) {
	var req dto.ShopListReq
	if err := ctx.ShouldBindQuery(&req); err != nil {
		fail(ctx, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 || req.PageSize > 100 {
		req.PageSize = 20
	}

	resp, err := c.shopSvc.List(ctx.Request.Context(), &req)
	if err != nil {
		fail(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	ok(ctx, resp)
}

// Block 停用店铺
// @Summary 停用店铺
// @Description 停止 Token 保活和自动同步，数据保留
// @Tags Shop
// @Param shop_id path int true "店铺ID"
// @Router /api/shops/{shop_id}/block [post]
func (c *ShopController) Block(ctx *gin.Context) {
	shopID, valid := parseID(ctx, "shop_id")
	if !valid {
		return
	}
	if err := c.shopSvc.Block(ctx.Request.Context(), shopID); err != nil {
		fail(ctx, statusOf(err), err.Error())
		return
	}
	ok(ctx, gin.H{"shop_id": shopID, "is_active": false})
}

// Unblock 启用店铺
// @Router /api/shops/{shop_id}/unblock [post]
func (c *ShopController) Unblock(ctx *gin.Context) {
	shopID, valid := parseID(ctx, "shop_id")
	if !valid {
		return
	}
	if err := c.shopSvc.Unblock(ctx.Request.Context(), shopID); err != nil {
		fail(ctx, statusOf(err), err.Error())
		return
	}
	ok(ctx, gin.H{"shop_id": shopID, "is_active": true})
}

// CheckToken 批量探活
// @Summary 检查店铺 Token 是否可用
// @Tags Shop
// @Accept json
// @Param request body dto.CheckTokenReq true "店铺 ID 列表"
// @Success 200 {array} dto.TokenCheckResult
// @Router /api/cek-token [post]
func (c *ShopController) CheckToken(ctx *gin.Context) {
	var req dto.CheckTokenReq
	if err := ctx.ShouldBindJSON(&req); err != nil || len(req.ShopIDs) == 0 {
		fail(ctx, http.StatusBadRequest, "shop_ids 不能为空")
		return
	}
	ok(ctx, c.shopSvc.CheckTokens(ctx.Request.Context(), req.ShopIDs))
}

// RefreshAll 强制刷新所有活跃店铺的 Token
// @Router /api/refresh_token [post]
func (c *ShopController) RefreshAll(ctx *gin.Context) {
	resp, err := c.shopSvc.RefreshAll(ctx.Request.Context())
	if err != nil {
		fail(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	ok(ctx, resp)
}
