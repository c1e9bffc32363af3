package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ==================== 冷却中间件 ====================

// GlobalSyncRateLimit 全局操作冷却，例如全店铺自动同步
//
//	api.GET("/auto-sync", middleware.GlobalSyncRateLimit(limiter, middleware.SyncTypeAuto), ctl.AutoSync)
func GlobalSyncRateLimit(limiter *SyncRateLimiter, syncType SyncType) gin.HandlerFunc {
	return func(c *gin.Context) {
		res := limiter.Check(GlobalSyncKey(syncType), limiter.Interval(syncType))
		if !res.Allowed {
			AbortCooldown(c, syncType, res.RetryAfter)
			return
		}
		c.Next()
	}
}

// AbortCooldown 店铺 ID 在请求体里的接口由 controller 校验后自行调用
func AbortCooldown(c *gin.Context, syncType SyncType, retryAfter time.Duration) {
	seconds := int(retryAfter.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", fmt.Sprint(seconds))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"success": false,
		"error":   formatRetryMessage(retryAfter),
		"data": gin.H{
			"retry_after": seconds,
			"sync_type":   syncType,
		},
	})
}

func formatRetryMessage(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	if seconds < 60 {
		return fmt.Sprintf("同步冷却中，请 %d 秒后重试", seconds)
	}

	minutes, rest := seconds/60, seconds%60
	if rest == 0 {
		return fmt.Sprintf("同步冷却中，请 %d 分钟后重试", minutes)
	}
	return fmt.Sprintf("同步冷却中，请 %d 分 %d 秒后重试", minutes, rest)
}
