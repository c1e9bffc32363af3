package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"shopee_admin_v1/internal/api/dto"
	"shopee_admin_v1/internal/middleware"
)

// ==================== UserService 管理员登录 ====================

// AdminAccount 唯一管理员，密码只保存 bcrypt 哈希
type AdminAccount struct {
	Username     string
	PasswordHash string
}

// UserService 后台登录
type UserService struct {
	admin AdminAccount
	log   *zap.Logger
}

func NewUserService(admin AdminAccount, log *zap.Logger) *UserService {
	if admin.PasswordHash == "" {
		log.Warn("[Auth] 未配置管理员密码哈希，后台登录不可用")
	}
	return &UserService{admin: admin, log: log.Named("auth")}
}

// Login 校验账号密码并签发 token 对
func (s *UserService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	if s.admin.PasswordHash == "" || req.Username != s.admin.Username {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.admin.PasswordHash), []byte(req.Password)); err != nil {
		s.log.Warn("[Auth] 密码错误", zap.String("username", req.Username))
		return nil, ErrInvalidCredentials
	}
	return s.issue(req.Username)
}

// RefreshToken 用 refresh token 换新的 token 对
func (s *UserService) RefreshToken(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.LoginResponse, error) {
	claims, err := middleware.ParseRefreshToken(req.RefreshToken)
	if err != nil || claims.Username != s.admin.Username {
		return nil, ErrInvalidToken
	}
	return s.issue(claims.Username)
}

func (s *UserService) issue(username string) (*dto.LoginResponse, error) {
	access, refresh, err := middleware.GenerateTokenPair(username)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    time.Now().Add(middleware.GetJWTConfig().AccessTokenTTL),
		Username:     username,
	}, nil
}
