package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ==================== JWT 配置 ====================

// JWTConfig 管理后台登录凭证
type JWTConfig struct {
	SecretKey       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Issuer          string
}

// DefaultJWTConfig 未设置密钥时签发的 token 无法通过校验
func DefaultJWTConfig() *JWTConfig {
	return &JWTConfig{
		AccessTokenTTL:  12 * time.Hour,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		Issuer:          "shopee-admin",
	}
}

var jwtConfig = DefaultJWTConfig()

// SetJWTConfig 启动时设置一次
func SetJWTConfig(cfg *JWTConfig) {
	jwtConfig = cfg
}

// GetJWTConfig 获取 JWT 配置
func GetJWTConfig() *JWTConfig {
	return jwtConfig
}

// ==================== Claims 定义 ====================

const (
	subjectAccess  = "access"
	subjectRefresh = "refresh"
)

// AdminClaims 管理员声明
type AdminClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// ==================== Token 生成 ====================

func generate(username, subject string, ttl time.Duration) (string, error) {
	if jwtConfig.SecretKey == "" {
		return "", errors.New("jwt secret 未配置")
	}
	now := time.Now()
	claims := &AdminClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    jwtConfig.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtConfig.SecretKey))
}

// GenerateTokenPair 生成 Token 对
func GenerateTokenPair(username string) (accessToken, refreshToken string, err error) {
	if accessToken, err = generate(username, subjectAccess, jwtConfig.AccessTokenTTL); err != nil {
		return "", "", err
	}
	if refreshToken, err = generate(username, subjectRefresh, jwtConfig.RefreshTokenTTL); err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// ==================== Token 解析 ====================

// ParseToken 解析 Token
func ParseToken(tokenString string) (*AdminClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(jwtConfig.SecretKey), nil
	}, jwt.WithIssuer(jwtConfig.Issuer))
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*AdminClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// ParseRefreshToken 只接受 refresh 类型
func ParseRefreshToken(tokenString string) (*AdminClaims, error) {
	claims, err := ParseToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Subject != subjectRefresh {
		return nil, errors.New("token 类型错误")
	}
	return claims, nil
}

// ==================== Gin 中间件 ====================

// ContextKeyUsername 管理员用户名
const ContextKeyUsername = "username"

// JWTAuth 认证中间件
// EventSource 无法设置请求头，SSE 订阅可以用 ?token= 传递
func JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("Authorization")
		if raw == "" {
			if q := c.Query("token"); q != "" {
				raw = "Bearer " + q
			}
		}
		if raw == "" {
			unauthorized(c, "未提供认证信息")
			return
		}

		parts := strings.SplitN(raw, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			unauthorized(c, "认证格式错误，应为 Bearer {token}")
			return
		}

		claims, err := ParseToken(parts[1])
		if err != nil {
			unauthorized(c, "Token 无效或已过期")
			return
		}
		if claims.Subject != subjectAccess {
			unauthorized(c, "Token 类型错误")
			return
		}

		c.Set(ContextKeyUsername, claims.Username)
		c.Next()
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   msg,
	})
}

// GetUsername 从 Context 获取用户名
func GetUsername(c *gin.Context) string {
	return c.GetString(ContextKeyUsername)
}
