package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/repository"
	"github.com/jionychiow/CMSS-SOFT/internal/config"
	"github.com/jionychiow/CMSS-SOFT/internal/middleware"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	refreshKeyPrefix = "token:refresh:"
	revokedKeyPrefix = "token:revoked:"
)

// AuthService 本地账号认证，rdb 为空时不缓存令牌状态
type AuthService struct {
	userRepo     *repository.UserRepository
	tokenRepo    *repository.TokenRepository
	activityRepo *repository.ActivityRepository
	rdb          *redis.Client
	cfg          config.JWTConfig
}

func NewAuthService(
	userRepo *repository.UserRepository,
	tokenRepo *repository.TokenRepository,
	activityRepo *repository.ActivityRepository,
	rdb *redis.Client,
	cfg config.JWTConfig,
) *AuthService {
	if cfg.AccessTokenExpire == 0 {
		cfg.AccessTokenExpire = 2 * time.Hour
	}
	if cfg.RefreshTokenExpire == 0 {
		cfg.RefreshTokenExpire = 7 * 24 * time.Hour
	}
	return &AuthService{
		userRepo:     userRepo,
		tokenRepo:    tokenRepo,
		activityRepo: activityRepo,
		rdb:          rdb,
		cfg:          cfg,
	}
}

// TokenPair Token对
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResult 登录结果
type LoginResult struct {
	*TokenPair
	User *entity.User `json:"user"`
}

// HashPassword bcrypt 加密密码
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Login 校验用户名密码并签发令牌
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResult, error) {
	user, err := s.userRepo.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(ErrInvalidCredentials, "用户名或密码错误")
		}
		return nil, err
	}
	if user.Status != "active" {
		return nil, newError(ErrInvalidCredentials, "账号已停用")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, newError(ErrInvalidCredentials, "用户名或密码错误")
	}

	pair, err := s.generateTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	s.userRepo.TouchLogin(ctx, user.ID, now)
	user.LastLoginAt = &now
	s.activityRepo.LogActivity(ctx, user.ID, entity.ActivityLogin, "用户登录", nil)

	return &LoginResult{TokenPair: pair, User: user}, nil
}

func (s *AuthService) claimsFor(user *entity.User, typ, jti string, now time.Time, ttl time.Duration) *middleware.JWTClaims {
	claims := &middleware.JWTClaims{
		UserID:    user.ID,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   user.ID,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if typ == middleware.TokenTypeAccess {
		claims.Name = user.Name
		claims.OrgID = user.OrganizationID
		claims.Roles = []string{user.Type}
		claims.Permissions = user.PermissionCodes()
	}
	return claims
}

// generateTokenPair 生成Token对，Refresh Token 记入 Redis
func (s *AuthService) generateTokenPair(ctx context.Context, user *entity.User) (*TokenPair, error) {
	now := time.Now()

	access := jwt.NewWithClaims(jwt.SigningMethodHS256,
		s.claimsFor(user, middleware.TokenTypeAccess, uuid.New().String(), now, s.cfg.AccessTokenExpire))
	accessString, err := access.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshJti := uuid.New().String()
	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256,
		s.claimsFor(user, middleware.TokenTypeRefresh, refreshJti, now, s.cfg.RefreshTokenExpire))
	refreshString, err := refresh.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	if s.rdb != nil {
		if err := s.rdb.Set(ctx, refreshKeyPrefix+refreshJti, user.ID, s.cfg.RefreshTokenExpire).Err(); err != nil {
			return nil, fmt.Errorf("store refresh token: %w", err)
		}
	}

	return &TokenPair{
		AccessToken:  accessString,
		RefreshToken: refreshString,
		ExpiresIn:    int64(s.cfg.AccessTokenExpire.Seconds()),
	}, nil
}

func (s *AuthService) parse(tokenString string) (*middleware.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &middleware.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, newError(ErrInvalidCredentials, "令牌无效或已过期")
	}
	claims, ok := token.Claims.(*middleware.JWTClaims)
	if !ok || !token.Valid {
		return nil, newError(ErrInvalidCredentials, "令牌无效")
	}
	return claims, nil
}

// Refresh 用 Refresh Token 换新的Token对，旧 Refresh Token 作废
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.parse(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != middleware.TokenTypeRefresh {
		return nil, newError(ErrInvalidCredentials, "令牌类型错误")
	}
	revoked, err := s.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, newError(ErrInvalidCredentials, "令牌已注销")
	}

	userID := claims.UserID
	if s.rdb != nil {
		stored, err := s.rdb.GetDel(ctx, refreshKeyPrefix+claims.ID).Result()
		if err != nil {
			return nil, newError(ErrInvalidCredentials, "令牌已失效")
		}
		userID = stored
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(ErrInvalidCredentials, "用户不存在")
		}
		return nil, err
	}
	if user.Status != "active" {
		return nil, newError(ErrInvalidCredentials, "账号已停用")
	}
	return s.generateTokenPair(ctx, user)
}

// Logout 注销访问令牌，可同时作废 Refresh Token
func (s *AuthService) Logout(ctx context.Context, claims *middleware.JWTClaims, refreshToken string) error {
	if err := s.revoke(ctx, claims); err != nil {
		return err
	}
	if refreshToken != "" {
		if rc, err := s.parse(refreshToken); err == nil && rc.UserID == claims.UserID {
			if err := s.revoke(ctx, rc); err != nil {
				return err
			}
			if s.rdb != nil {
				s.rdb.Del(ctx, refreshKeyPrefix+rc.ID)
			}
		}
	}
	s.activityRepo.LogActivity(ctx, claims.UserID, entity.ActivityLogout, "用户登出", nil)
	return nil
}

func (s *AuthService) revoke(ctx context.Context, claims *middleware.JWTClaims) error {
	if claims.ID == "" {
		return nil
	}
	expiresAt := time.Now().Add(s.cfg.AccessTokenExpire)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	err := s.tokenRepo.Revoke(ctx, &entity.RevokedToken{
		ID:        newID(),
		JTI:       claims.ID,
		UserID:    claims.UserID,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return fmt.Errorf("注销令牌失败: %w", err)
	}
	if s.rdb != nil {
		if ttl := time.Until(expiresAt); ttl > 0 {
			s.rdb.Set(ctx, revokedKeyPrefix+claims.ID, 1, ttl)
		}
	}
	return nil
}

// IsRevoked 先查 Redis，未命中再查数据库
func (s *AuthService) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if s.rdb != nil {
		n, err := s.rdb.Exists(ctx, revokedKeyPrefix+jti).Result()
		if err == nil && n > 0 {
			return true, nil
		}
	}
	revoked, err := s.tokenRepo.IsRevoked(ctx, jti)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// Me 当前用户档案
func (s *AuthService) Me(ctx context.Context, userID string) (*entity.User, error) {
	return s.userRepo.FindByID(ctx, userID)
}
