package logger

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	HeaderRequestID = "X-Request-ID"
	ContextKeyLog   = "logger"
	ContextKeyReqID = "request_id"
)

// ==================== 请求 ID ====================

// RequestID 透传或生成请求 ID，并写入响应头
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ContextKeyReqID, id)
		c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), id))
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// ==================== 访问日志 ====================

// GinMiddleware 按状态码分级记录访问日志
func GinMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		reqLog := log.With(
			zap.String("request_id", c.GetString(ContextKeyReqID)),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
		)
		c.Set(ContextKeyLog, reqLog)

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if q := c.Request.URL.RawQuery; q != "" {
			fields = append(fields, zap.String("query", q))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		switch {
		case status >= 500:
			reqLog.Error("HTTP 请求", fields...)
		case status >= 400:
			reqLog.Warn("HTTP 请求", fields...)
		default:
			reqLog.Info("HTTP 请求", fields...)
		}
	}
}

// Recovery panic 兜底，返回带说明的 JSON 而不是空 500
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("[Recovery] 请求处理 panic",
					zap.String("request_id", c.GetString(ContextKeyReqID)),
					zap.String("path", c.Request.URL.Path),
					zap.Any("panic", r),
					zap.Stack("stacktrace"),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"error":   "internal server error",
					"message": "服务内部错误",
				})
			}
		}()
		c.Next()
	}
}

// FromGin 取请求级 logger，没有则返回 Nop
func FromGin(c *gin.Context) *zap.Logger {
	if v, ok := c.Get(ContextKeyLog); ok {
		if l, ok := v.(*zap.Logger); ok {
			return l
		}
	}
	return zap.NewNop()
}
