package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"shopee_admin_v1/internal/api/dto"
	"shopee_admin_v1/internal/service"
)

// ==================== UserController 管理员登录 ====================

// UserController 管理员登录
type UserController struct {
	userService *service.UserService
}

// NewUserController 创建用户控制器
func NewUserController(userService *service.UserService) *UserController {
	return &UserController{userService: userService}
}

// Login 管理员登录
// @Summary 管理员登录
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "登录信息"
// @Success 200 {object} dto.LoginResponse
// @Failure 401 {object} map[string]interface{}
// @Router /api/auth/login [post]
func (c *UserController) Login(ctx *gin.Context) {
	var req dto.LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}

	resp, err := c.userService.Login(ctx.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			fail(ctx, http.StatusUnauthorized, err.Error())
			return
		}
		fail(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	ok(ctx, resp)
}

// RefreshToken 刷新登录凭证
// @Router /api/auth/refresh [post]
func (c *UserController) RefreshToken(ctx *gin.Context) {
	var req dto.RefreshTokenRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}

	resp, err := c.userService.RefreshToken(ctx.Request.Context(), &req)
	if err != nil {
		fail(ctx, http.StatusUnauthorized, err.Error())
		return
	}
	ok(ctx, resp)
}
