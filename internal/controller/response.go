package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ok 统一成功响应
func ok(ctx *gin.Context, data any) {
	ctx.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// fail 统一失败响应
func fail(ctx *gin.Context, status int, msg string) {
	ctx.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}

// parseID 失败时已写入 400
func parseID(ctx *gin.Context, key string) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param(key), 10, 64)
	if err != nil || id <= 0 {
		fail(ctx, http.StatusBadRequest, "无效的 "+key)
		return 0, false
	}
	return id, true
}
