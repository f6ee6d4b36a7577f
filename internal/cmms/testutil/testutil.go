package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"github.com/jionychiow/CMSS-SOFT/internal/middleware"
	"github.com/jionychiow/CMSS-SOFT/internal/shared/storage"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const JWTSecret = "cmms-test-jwt-secret"

var dbSeq int64

// SetupTestDB 每个测试独立的内存 SQLite 库，已迁移全部表
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := fmt.Sprintf("cmms_test_%d_%d", time.Now().UnixNano(), atomic.AddInt64(&dbSeq, 1))
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1&_loc=UTC", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(entity.AllModels()...); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

// SetupRedis 启动 miniredis 并返回连接好的客户端
func SetupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
	})
	return mr, rdb
}

// SetupRouter gin 测试路由
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup 带 JWT 认证的路由组
func AuthGroup(r *gin.Engine, path string, checker middleware.RevocationChecker) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret, checker))
}

// GenerateTestToken 生成测试用访问令牌
func GenerateTestToken(userID, orgID string, roles, permissions []string) string {
	if roles == nil {
		roles = []string{}
	}
	if permissions == nil {
		permissions = []string{}
	}
	now := time.Now()
	claims := &middleware.JWTClaims{
		UserID:      userID,
		Name:        "Test " + userID,
		OrgID:       orgID,
		TokenType:   middleware.TokenTypeAccess,
		Roles:       roles,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   userID,
			Issuer:    "cmms",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(JWTSecret))
	return token
}

// AdminToken 管理员令牌，拥有全部权限
func AdminToken(userID, orgID string) string {
	return GenerateTestToken(userID, orgID, []string{entity.UserTypeAdmin}, []string{"*"})
}

// OperatorToken 操作员令牌
func OperatorToken(userID, orgID string, permissions ...string) string {
	return GenerateTestToken(userID, orgID, []string{entity.UserTypeOperator}, permissions)
}

// DoRequest 发送 JSON 请求
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// DoUpload 以 multipart 上传文件，fields 为附加表单字段
func DoUpload(r *gin.Engine, path, field, fileName string, content []byte, fields map[string]string, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	part, _ := mw.CreateFormFile(field, fileName)
	part.Write(content)
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse 解析 {code,message,data} 响应
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// ResponseCode 响应中的业务码
func ResponseCode(w *httptest.ResponseRecorder) int {
	if code, ok := ParseResponse(w)["code"].(float64); ok {
		return int(code)
	}
	return -1
}

// ============================================================
// 对象存储
// ============================================================

// MemoryStore 内存对象存储
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[string]memoryObject{}}
}

func (s *MemoryStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memoryObject{data: data, contentType: contentType}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) (io.ReadCloser, *storage.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, nil, fmt.Errorf("object %s not found", key)
	}
	info := &storage.ObjectInfo{Key: key, Size: int64(len(obj.data)), ContentType: obj.contentType}
	return io.NopCloser(bytes.NewReader(obj.data)), info, nil
}

func (s *MemoryStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// Keys 当前保存的对象名
func (s *MemoryStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}

// ============================================================
// 测试数据
// ============================================================

func newID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// SeedOrganization 创建组织
func SeedOrganization(t *testing.T, db *gorm.DB, subdomain string) *entity.Organization {
	t.Helper()
	org := &entity.Organization{ID: newID(), Name: subdomain, Subdomain: subdomain}
	if err := db.Create(org).Error; err != nil {
		t.Fatalf("Failed to seed organization: %v", err)
	}
	return org
}

// SeedUser 创建用户，密码哈希为占位值
func SeedUser(t *testing.T, db *gorm.DB, orgID, username, userType string) *entity.User {
	t.Helper()
	user := &entity.User{
		ID:             newID(),
		Username:       username,
		PasswordHash:   "-",
		Name:           username,
		OrganizationID: orgID,
		Type:           userType,
		Status:         "active",
	}
	if err := db.Omit("Organization", "Phase", "ShiftType").Create(user).Error; err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
	return user
}

// SeedPhase 创建期数
func SeedPhase(t *testing.T, db *gorm.DB, code, name string) *entity.PlantPhase {
	t.Helper()
	phase := &entity.PlantPhase{ID: newID(), Code: code, Name: name, IsActive: true}
	if err := db.Create(phase).Error; err != nil {
		t.Fatalf("Failed to seed phase: %v", err)
	}
	return phase
}

// SeedShiftType 创建班次类型
func SeedShiftType(t *testing.T, db *gorm.DB, code, name string) *entity.ShiftType {
	t.Helper()
	st := &entity.ShiftType{ID: newID(), Code: code, Name: name, IsActive: true}
	if err := db.Create(st).Error; err != nil {
		t.Fatalf("Failed to seed shift type: %v", err)
	}
	return st
}

// SeedProcess 创建工序
func SeedProcess(t *testing.T, db *gorm.DB, code, name string) *entity.Process {
	t.Helper()
	p := &entity.Process{ID: newID(), Code: code, Name: name, IsActive: true}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("Failed to seed process: %v", err)
	}
	return p
}

// SeedLine 创建产线
func SeedLine(t *testing.T, db *gorm.DB, phaseID, code, name string) *entity.ProductionLine {
	t.Helper()
	l := &entity.ProductionLine{ID: newID(), Code: code, Name: name, PhaseID: phaseID, IsActive: true}
	if err := db.Omit("Phase").Create(l).Error; err != nil {
		t.Fatalf("Failed to seed production line: %v", err)
	}
	return l
}

// SeedSerials 按给定序号直接写入维护记录
func SeedSerials(t *testing.T, db *gorm.DB, orgID, phaseID, shiftTypeID string, serials ...string) {
	t.Helper()
	recs := make([]entity.ShiftMaintenanceRecord, 0, len(serials))
	for _, sn := range serials {
		recs = append(recs, entity.ShiftMaintenanceRecord{
			ID: newID(), SerialNumber: sn, OrganizationID: orgID,
			PhaseID: phaseID, ShiftTypeID: shiftTypeID, EquipmentName: sn,
		})
	}
	if err := db.Omit("Phase", "ShiftType").CreateInBatches(recs, 50).Error; err != nil {
		t.Fatalf("Failed to seed records: %v", err)
	}
}

// Plant 标准工厂配置：两期、两种班次
type Plant struct {
	Org      *entity.Organization
	Admin    *entity.User
	Operator *entity.User
	Phase1   *entity.PlantPhase
	Phase2   *entity.PlantPhase
	LongDay  *entity.ShiftType
	Rotating *entity.ShiftType
}

// SeedPlant 创建组织、管理员、操作员和标准配置
func SeedPlant(t *testing.T, db *gorm.DB) *Plant {
	t.Helper()
	org := SeedOrganization(t, db, "plant")
	return &Plant{
		Org:      org,
		Admin:    SeedUser(t, db, org.ID, "admin", entity.UserTypeAdmin),
		Operator: SeedUser(t, db, org.ID, "operator", entity.UserTypeOperator),
		Phase1:   SeedPhase(t, db, entity.PhaseOneCode, "一期"),
		Phase2:   SeedPhase(t, db, entity.PhaseTwoCode, "二期"),
		LongDay:  SeedShiftType(t, db, entity.ShiftLongDay, "长白班"),
		Rotating: SeedShiftType(t, db, entity.ShiftRotating, "倒班"),
	}
}
