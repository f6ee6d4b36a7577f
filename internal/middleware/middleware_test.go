package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/testutil"
	"github.com/jionychiow/CMSS-SOFT/internal/middleware"
	"go.uber.org/zap"
)

type revokedSet map[string]bool

func (s revokedSet) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "broken" {
		return false, errors.New("redis down")
	}
	return s[jti], nil
}

type visitCounter struct {
	mu    sync.Mutex
	users []string
}

func (v *visitCounter) RecordVisit(ctx context.Context, userID string, at time.Time) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.users = append(v.users, userID)
	return nil
}

func signToken(t *testing.T, claims *middleware.JWTClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testutil.JWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func claimsWith(jti, typ string) *middleware.JWTClaims {
	now := time.Now()
	return &middleware.JWTClaims{
		UserID:    "u1",
		OrgID:     "org1",
		TokenType: typ,
		Roles:     []string{"Operator"},
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func TestJWTAuth(t *testing.T) {
	r := testutil.SetupRouter()
	api := testutil.AuthGroup(r, "/api", revokedSet{"revoked": true})
	api.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("user_id"), "org_id": c.GetString("org_id")})
	})

	cases := []struct {
		name     string
		token    string
		status   int
		wantCode int
	}{
		{"missing", "", http.StatusUnauthorized, 40100},
		{"garbage", "not-a-jwt", http.StatusUnauthorized, 40102},
		{"refresh token", signToken(t, claimsWith("r1", middleware.TokenTypeRefresh)), http.StatusUnauthorized, 40103},
		{"revoked", signToken(t, claimsWith("revoked", middleware.TokenTypeAccess)), http.StatusUnauthorized, 40104},
		{"checker error", signToken(t, claimsWith("broken", middleware.TokenTypeAccess)), http.StatusInternalServerError, 50000},
		{"valid", signToken(t, claimsWith("ok", middleware.TokenTypeAccess)), http.StatusOK, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := testutil.DoRequest(r, "GET", "/api/ping", nil, tc.token)
			if w.Code != tc.status {
				t.Fatalf("Expected %d, got %d: %s", tc.status, w.Code, w.Body.String())
			}
			if tc.wantCode != 0 {
				if code := testutil.ResponseCode(w); code != tc.wantCode {
					t.Errorf("Expected code %d, got %d", tc.wantCode, code)
				}
				return
			}
			resp := testutil.ParseResponse(w)
			if resp["user_id"] != "u1" || resp["org_id"] != "org1" {
				t.Errorf("Unexpected context values: %v", resp)
			}
		})
	}
}

func TestJWTAuthQueryToken(t *testing.T) {
	r := testutil.SetupRouter()
	api := testutil.AuthGroup(r, "/api", nil)
	api.GET("/file", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	token := signToken(t, claimsWith("q1", middleware.TokenTypeAccess))
	w := testutil.DoRequest(r, "GET", "/api/file?token="+token, nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 with query token, got %d", w.Code)
	}
}

func TestRequirePermissionAndRole(t *testing.T) {
	r := testutil.SetupRouter()
	api := testutil.AuthGroup(r, "/api", nil)
	ok := func(c *gin.Context) { c.String(http.StatusOK, "ok") }
	api.POST("/assets", middleware.RequirePermission("asset:create"), ok)
	api.GET("/admin", middleware.RequireRole(middleware.RoleAdmin), ok)

	cases := []struct {
		name   string
		token  string
		path   string
		method string
		status int
	}{
		{"permission granted", testutil.OperatorToken("u1", "org1", "asset:create"), "/api/assets", "POST", http.StatusOK},
		{"wildcard", testutil.OperatorToken("u1", "org1", "*"), "/api/assets", "POST", http.StatusOK},
		{"permission missing", testutil.OperatorToken("u1", "org1", "record:create"), "/api/assets", "POST", http.StatusForbidden},
		{"admin role", testutil.AdminToken("u2", "org1"), "/api/admin", "GET", http.StatusOK},
		{"operator role", testutil.OperatorToken("u1", "org1", "*"), "/api/admin", "GET", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := testutil.DoRequest(r, tc.method, tc.path, nil, tc.token)
			if w.Code != tc.status {
				t.Errorf("Expected %d, got %d: %s", tc.status, w.Code, w.Body.String())
			}
		})
	}
}

func TestActivityTracker(t *testing.T) {
	visits := &visitCounter{}
	r := testutil.SetupRouter()
	r.Use(middleware.RequestID())
	api := testutil.AuthGroup(r, "/api", nil)
	api.Use(middleware.ActivityTracker(visits, zap.NewNop()))
	api.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	api.GET("/fail", func(c *gin.Context) { c.String(http.StatusInternalServerError, "boom") })

	token := testutil.OperatorToken("u1", "org1")
	w := testutil.DoRequest(r, "GET", "/api/ok", nil, token)
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID header")
	}
	testutil.DoRequest(r, "GET", "/api/fail", nil, token)
	testutil.DoRequest(r, "GET", "/api/ok", nil, "")

	if len(visits.users) != 1 || visits.users[0] != "u1" {
		t.Errorf("Expected exactly one visit by u1, got %v", visits.users)
	}
}

func TestCORSPreflight(t *testing.T) {
	r := testutil.SetupRouter()
	r.Use(middleware.CORS())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.OPTIONS("/x", func(c *gin.Context) {})

	w := testutil.DoRequest(r, "OPTIONS", "/x", nil, "")
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Expose-Headers") == "" {
		t.Error("Expected exposed headers for downloads")
	}
}
