package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/service"
)

// AuthHandler 登录认证处理器
type AuthHandler struct {
	svc *service.AuthService
}

func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Login 用户名密码登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.svc.Login(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	Success(c, result)
}

// Refresh 刷新令牌
// POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}
	pair, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		handleError(c, err)
		return
	}
	Success(c, pair)
}

// Me 当前用户
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.svc.Me(c.Request.Context(), GetUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	claims := GetClaims(c)
	data := gin.H{"user": user}
	if claims != nil {
		data["roles"] = claims.Roles
		data["permissions"] = claims.Permissions
	}
	Success(c, data)
}

// Logout 注销当前令牌，请求体可带 refresh_token 一并作废
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req logoutRequest
	// 请求体可以为空
	_ = c.ShouldBindJSON(&req)

	claims := GetClaims(c)
	if claims == nil {
		Unauthorized(c, "未登录")
		return
	}
	if err := h.svc.Logout(c.Request.Context(), claims, req.RefreshToken); err != nil {
		handleError(c, err)
		return
	}
	Success(c, gin.H{"logged_out": true})
}
