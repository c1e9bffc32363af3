package service

import "errors"

// ==================== 错误定义 ====================

var (
	ErrShopNotFound       = errors.New("店铺不存在")
	ErrShopUnauthorized   = errors.New("店铺尚未完成授权")
	ErrShopRevoked        = errors.New("店铺授权已失效，需要重新授权")
	ErrInvalidSyncOptions = errors.New("同步参数不合法")
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	ErrInvalidToken       = errors.New("登录凭证无效")
)

var ErrOrderNotFound = errors.New("订单不存在")
