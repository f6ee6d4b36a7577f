package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RoleAdmin 管理员角色，拥有组织内全部数据的访问权
const RoleAdmin = "Admin"

// TokenTypeAccess / TokenTypeRefresh 令牌类型
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Logger 日志中间件
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.String("user-agent", c.Request.UserAgent()),
			zap.Duration("latency", latency),
			zap.String("request_id", c.GetString("request_id")),
		}

		if userID := c.GetString("user_id"); userID != "" {
			fields = append(fields, zap.String("user_id", userID))
		}

		if status >= 500 {
			logger.Error("Server error", fields...)
		} else if status >= 400 {
			logger.Warn("Client error", fields...)
		} else {
			logger.Info("Request", fields...)
		}
	}
}

// CORS 跨域中间件
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestID 请求ID中间件
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.Request.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)
		c.Next()
	}
}

// JWTClaims JWT claims
type JWTClaims struct {
	UserID      string   `json:"uid"`
	Name        string   `json:"name"`
	OrgID       string   `json:"org"`
	TokenType   string   `json:"typ"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"perms"`
	jwt.RegisteredClaims
}

// RevocationChecker 查询 jti 是否已注销
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// JWTAuth JWT认证中间件，checker 为空时不做注销检查
func JWTAuth(secret string, checker RevocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}

		// 回退到 query param（文件下载等场景使用）
		if tokenString == "" {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			abortJSON(c, http.StatusUnauthorized, 40100, "Authorization is required")
			return
		}

		token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			abortJSON(c, http.StatusUnauthorized, 40102, "Invalid or expired token")
			return
		}

		claims, ok := token.Claims.(*JWTClaims)
		if !ok || !token.Valid || claims.TokenType != TokenTypeAccess {
			abortJSON(c, http.StatusUnauthorized, 40103, "Invalid token claims")
			return
		}

		if checker != nil && claims.ID != "" {
			revoked, err := checker.IsRevoked(c.Request.Context(), claims.ID)
			if err != nil {
				abortJSON(c, http.StatusInternalServerError, 50000, "Token check failed")
				return
			}
			if revoked {
				abortJSON(c, http.StatusUnauthorized, 40104, "Token has been revoked")
				return
			}
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_name", claims.Name)
		c.Set("org_id", claims.OrgID)
		c.Set("roles", claims.Roles)
		c.Set("permissions", claims.Permissions)
		c.Set("claims", claims)
		c.Next()
	}
}

// RequirePermission 权限检查中间件
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		permissions, exists := c.Get("permissions")
		if !exists {
			abortJSON(c, http.StatusForbidden, 40300, "No permissions found")
			return
		}

		perms, ok := permissions.([]string)
		if !ok {
			abortJSON(c, http.StatusForbidden, 40301, "Invalid permissions format")
			return
		}

		for _, p := range perms {
			if p == permission || p == "*" {
				c.Next()
				return
			}
		}

		abortJSON(c, http.StatusForbidden, 40302, "Permission denied: "+permission)
	}
}

// RequireRole 角色检查中间件
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roles, exists := c.Get("roles")
		if !exists {
			abortJSON(c, http.StatusForbidden, 40310, "No roles found")
			return
		}

		userRoles, ok := roles.([]string)
		if !ok {
			abortJSON(c, http.StatusForbidden, 40311, "Invalid roles format")
			return
		}

		for _, r := range userRoles {
			if r == role || r == RoleAdmin {
				c.Next()
				return
			}
		}

		abortJSON(c, http.StatusForbidden, 40312, "Role required: "+role)
	}
}

// VisitRecorder 记录访问量
type VisitRecorder interface {
	RecordVisit(ctx context.Context, userID string, at time.Time) error
}

// ActivityTracker 已认证请求计入当日访问趋势，失败只记日志
func ActivityTracker(recorder VisitRecorder, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		userID := c.GetString("user_id")
		if userID == "" || c.Writer.Status() >= 500 {
			return
		}
		if err := recorder.RecordVisit(c.Request.Context(), userID, time.Now()); err != nil {
			logger.Warn("Record visit failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
}

func abortJSON(c *gin.Context, status, code int, message string) {
	c.JSON(status, gin.H{
		"code":    code,
		"message": message,
	})
	c.Abort()
}
