package logger

import "context"

type ctxKey struct{}

// WithRequestID 把请求 ID 放进 context，供 gorm 日志与下游服务关联
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, requestID)
}

// GetRequestID 取不到时返回空串
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return id
	}
	return ""
}
