package controller

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shopee_admin_v1/internal/api/dto"
	"shopee_admin_v1/internal/logger"
	"shopee_admin_v1/internal/service"
)

// AuthController 店铺 OAuth 授权
type AuthController struct {
	authSvc     *service.AuthService
	successPage string
}

// NewAuthController successPage 为授权成功后的跳转地址
func NewAuthController(authSvc *service.AuthService, successPage string) *AuthController {
	if successPage == "" {
		successPage = "/shops"
	}
	return &AuthController{authSvc: authSvc, successPage: successPage}
}

// GenerateAuthURL 卖家授权链接
// @Summary 生成店铺授权链接
// @Tags Auth
// @Produce json
// @Success 200 {object} dto.AuthURLResp
// @Router /api/generate-auth-url [get]
func (c *AuthController) GenerateAuthURL(ctx *gin.Context) {
	ok(ctx, dto.AuthURLResp{URL: c.authSvc.AuthURL()})
}

// GenerateDeauthURL 取消授权链接
func (c *AuthController) GenerateDeauthURL(ctx *gin.Context) {
	ok(ctx, dto.AuthURLResp{URL: c.authSvc.DeauthURL()})
}

// Callback 平台授权回调：换 token 入库后跳回店铺页
// @Summary OAuth 回调
// @Tags Auth
// @Param code query string true "授权码"
// @Param shop_id query int true "店铺 ID"
// @Success 302
// @Router /api/callback [get]
func (c *AuthController) Callback(ctx *gin.Context) {
	code := ctx.Query("code")
	shopID, err := strconv.ParseInt(ctx.Query("shop_id"), 10, 64)
	if code == "" || err != nil || shopID <= 0 {
		fail(ctx, http.StatusBadRequest, "缺少 code 或 shop_id")
		return
	}

	shop, err := c.authSvc.HandleCallback(ctx.Request.Context(), code, shopID)
	if err != nil {
		logger.FromGin(ctx).Error("[OAuth] 授权回调失败", zap.Int64("shop_id", shopID), zap.Error(err))
		fail(ctx, http.StatusBadGateway, err.Error())
		return
	}
	ctx.Redirect(http.StatusFound, fmt.Sprintf("%s?authorized=%d", c.successPage, shop.ShopID))
}
