package shopee

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrRefreshTokenRejected 平台明确拒绝 refresh token，只能重新授权
	ErrRefreshTokenRejected = errors.New("shopee: refresh token rejected")
	// ErrEmptyResponse 成功响应但缺少业务数据
	ErrEmptyResponse = errors.New("shopee: empty response")
)

// APIError 平台返回的业务错误或非 2xx 响应
type APIError struct {
	Endpoint   string
	HTTPStatus int
	Code       string
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("shopee %s: status=%d error=%s message=%s request_id=%s",
		e.Endpoint, e.HTTPStatus, e.Code, e.Message, e.RequestID)
}

// 平台对失效 access token 的几种报错写法（含历史拼写错误）
var invalidAccessTokenCodes = map[string]struct{}{
	"invalid_access_token":       {},
	"invalid_acceess_token":      {},
	"error_invalid_access_token": {},
}

// IsInvalidAccessToken access token 在使用中被平台拒绝，调用方应强制刷新并重试一次
func IsInvalidAccessToken(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if _, ok := invalidAccessTokenCodes[apiErr.Code]; ok {
		return true
	}
	msg := strings.ToLower(apiErr.Message)
	return apiErr.Code == "error_auth" && strings.Contains(msg, "access_token")
}

// IsRateLimited 触发平台限流
func IsRateLimited(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.HTTPStatus == http.StatusTooManyRequests || strings.Contains(apiErr.Code, "rate_limit")
}

// isRefreshRejection 刷新接口的 4xx（429 除外）或业务错误都视为 refresh token 不可用
func isRefreshRejection(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.HTTPStatus == http.StatusTooManyRequests || apiErr.HTTPStatus >= 500 {
		return false
	}
	return apiErr.Code != "" || apiErr.HTTPStatus >= 400
}
