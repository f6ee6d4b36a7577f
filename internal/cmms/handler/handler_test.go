package handler

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/repository"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/service"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/testutil"
	"github.com/jionychiow/CMSS-SOFT/internal/config"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	Router *gin.Engine
	DB     *gorm.DB
	Svc    *service.Services
	Plant  *testutil.Plant
	Store  *testutil.MemoryStore
}

func (e *testEnv) adminToken() string {
	return testutil.AdminToken(e.Plant.Admin.ID, e.Plant.Org.ID)
}

func (e *testEnv) operatorToken(perms ...string) string {
	return testutil.OperatorToken(e.Plant.Operator.ID, e.Plant.Org.ID, perms...)
}

func setupHandlerTest(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	plant := testutil.SeedPlant(t, db)
	_, rdb := testutil.SetupRedis(t)
	store := testutil.NewMemoryStore()

	cfg := &config.Config{
		JWT: config.JWTConfig{
			Secret:             testutil.JWTSecret,
			AccessTokenExpire:  time.Hour,
			RefreshTokenExpire: 24 * time.Hour,
			Issuer:             "cmms-test",
		},
		Maintenance: config.MaintenanceConfig{Timezone: "UTC", SerialMaxAttempts: 10},
	}
	svc := service.NewServices(repository.NewRepositories(db), rdb, store, cfg, zap.NewNop())

	router := testutil.SetupRouter()
	RegisterRoutes(router, NewHandlers(svc, zap.NewNop()), RouteOptions{
		JWTSecret:  testutil.JWTSecret,
		Version:    "test",
		Revocation: svc.Auth,
		Visits:     svc.Activity,
	})

	return &testEnv{Router: router, DB: db, Svc: svc, Plant: plant, Store: store}
}

func dataOf(t *testing.T, resp map[string]interface{}) map[string]interface{} {
	t.Helper()
	data, ok := resp["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected object data, got %v", resp["data"])
	}
	return data
}

func createRecord(t *testing.T, env *testEnv, token string, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	w := testutil.DoRequest(env.Router, "POST", "/api/v1/shift-records", body, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	return dataOf(t, testutil.ParseResponse(w))
}

func TestHealthAndVersion(t *testing.T) {
	env := setupHandlerTest(t)

	w := testutil.DoRequest(env.Router, "GET", "/health/live", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	w = testutil.DoRequest(env.Router, "GET", "/version", nil, "")
	if !strings.Contains(w.Body.String(), `"version":"test"`) {
		t.Errorf("Unexpected version body: %s", w.Body.String())
	}
	w = testutil.DoRequest(env.Router, "GET", "/api/v1/nothing-here", nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestLoginMeLogout(t *testing.T) {
	env := setupHandlerTest(t)
	w := testutil.DoRequest(env.Router, "POST", "/api/v1/users", map[string]string{
		"username": "zhangsan", "password": "secret123", "name": "张三",
	}, env.adminToken())
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/auth/login", map[string]string{
		"username": "zhangsan", "password": "wrong-pass",
	}, "")
	if code := testutil.ResponseCode(w); code != 40100 {
		t.Fatalf("Expected code 40100, got %d: %s", code, w.Body.String())
	}

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/auth/login", map[string]string{
		"username": "zhangsan", "password": "secret123",
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	login := dataOf(t, testutil.ParseResponse(w))
	access := login["access_token"].(string)
	refresh := login["refresh_token"].(string)

	w = testutil.DoRequest(env.Router, "GET", "/api/v1/auth/me", nil, access)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	me := dataOf(t, testutil.ParseResponse(w))
	user := me["user"].(map[string]interface{})
	if user["username"] != "zhangsan" {
		t.Errorf("Expected username zhangsan, got %v", user["username"])
	}

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/auth/logout", map[string]string{"refresh_token": refresh}, access)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.Router, "GET", "/api/v1/auth/me", nil, access)
	if code := testutil.ResponseCode(w); code != 40104 {
		t.Errorf("Expected revoked token code 40104, got %d", code)
	}
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/auth/refresh", map[string]string{"refresh_token": refresh}, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for revoked refresh token, got %d", w.Code)
	}
}

func TestAuthAndPermissionChecks(t *testing.T) {
	env := setupHandlerTest(t)

	w := testutil.DoRequest(env.Router, "GET", "/api/v1/assets", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", w.Code)
	}

	// 无 asset:create 权限
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/assets", map[string]string{"name": "泵"}, env.operatorToken())
	if code := testutil.ResponseCode(w); code != 40302 {
		t.Errorf("Expected code 40302, got %d", code)
	}

	// 非管理员不能修改配置
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/config/phases",
		map[string]string{"code": "phase_3", "name": "三期"}, env.operatorToken("*"))
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", w.Code)
	}

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/assets", map[string]string{"name": "泵"},
		env.operatorToken(entity.PermAssetCreate))
	if w.Code != http.StatusCreated {
		t.Errorf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
}

func TestShiftRecordLifecycle(t *testing.T) {
	env := setupHandlerTest(t)
	token := env.adminToken()

	rec := createRecord(t, env, token, map[string]interface{}{
		"phase_code":      entity.PhaseOneCode,
		"shift_type_code": entity.ShiftLongDay,
		"equipment_name":  "空压机",
		"start_datetime":  "2024-01-10T08:00:00Z",
		"end_datetime":    "2024-01-10T09:30:00Z",
	})
	if rec["serial_number"] != "1CB-000001" {
		t.Errorf("Expected serial 1CB-000001, got %v", rec["serial_number"])
	}
	if rec["duration"] != 1.5 {
		t.Errorf("Expected duration 1.5, got %v", rec["duration"])
	}
	id := rec["id"].(string)

	w := testutil.DoRequest(env.Router, "PUT", "/api/v1/shift-records/"+id,
		map[string]interface{}{"end_datetime": "2024-01-10T10:00:00Z"}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if d := dataOf(t, testutil.ParseResponse(w))["duration"]; d != 2.0 {
		t.Errorf("Expected duration 2.0 after update, got %v", d)
	}

	// 重复序号
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/shift-records", map[string]interface{}{
		"phase_code": entity.PhaseOneCode, "shift_type_code": entity.ShiftLongDay,
		"equipment_name": "空压机", "serial_number": "1CB-000001",
	}, token)
	if code := testutil.ResponseCode(w); code != 40901 {
		t.Errorf("Expected code 40901, got %d: %s", code, w.Body.String())
	}

	w = testutil.DoRequest(env.Router, "GET", "/api/v1/shift-records?month=2024-01", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	pagination := dataOf(t, testutil.ParseResponse(w))["pagination"].(map[string]interface{})
	if pagination["total"] != float64(1) {
		t.Errorf("Expected 1 record in January, got %v", pagination["total"])
	}

	w = testutil.DoRequest(env.Router, "GET", "/api/v1/shift-records/stats", nil, token)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for stats, got %d", w.Code)
	}

	w = testutil.DoRequest(env.Router, "DELETE", "/api/v1/shift-records/"+id, nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w = testutil.DoRequest(env.Router, "GET", "/api/v1/shift-records/"+id, nil, token)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", w.Code)
	}
}

func TestShiftRecordSerialExhausted(t *testing.T) {
	env := setupHandlerTest(t)
	serials := []string{"1CB-legacy"}
	for n := 1; n <= 100; n++ {
		serials = append(serials, service.FormatSerial("1CB-", n))
	}
	testutil.SeedSerials(t, env.DB, env.Plant.Org.ID, env.Plant.Phase1.ID, env.Plant.LongDay.ID, serials...)

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/shift-records", map[string]interface{}{
		"phase_code": "phase_1", "shift_type_code": "long_day_shift", "equipment_name": "泵",
	}, env.adminToken())
	if w.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d: %s", w.Code, w.Body.String())
	}
	if code := testutil.ResponseCode(w); code != 40900 {
		t.Errorf("Expected code 40900, got %d", code)
	}
}

func TestOperatorSeesOnlyOwnRecords(t *testing.T) {
	env := setupHandlerTest(t)
	body := map[string]interface{}{
		"phase_code": entity.PhaseOneCode, "shift_type_code": entity.ShiftLongDay, "equipment_name": "风机",
	}
	adminRec := createRecord(t, env, env.adminToken(), body)
	opToken := env.operatorToken(entity.PermRecordCreate, entity.PermRecordUpdate)
	createRecord(t, env, opToken, body)

	w := testutil.DoRequest(env.Router, "GET", "/api/v1/shift-records", nil, opToken)
	pagination := dataOf(t, testutil.ParseResponse(w))["pagination"].(map[string]interface{})
	if pagination["total"] != float64(1) {
		t.Errorf("Expected operator to see 1 record, got %v", pagination["total"])
	}

	w = testutil.DoRequest(env.Router, "PUT", "/api/v1/shift-records/"+adminRec["id"].(string),
		map[string]interface{}{"remarks": "x"}, opToken)
	if w.Code == http.StatusOK {
		t.Errorf("Expected operator update of admin record to fail, got 200")
	}
}

func TestShiftRecordExportAndTemplate(t *testing.T) {
	env := setupHandlerTest(t)
	token := env.adminToken()
	createRecord(t, env, token, map[string]interface{}{
		"phase_code": entity.PhaseOneCode, "shift_type_code": entity.ShiftLongDay, "equipment_name": "空压机",
	})

	w := testutil.DoRequest(env.Router, "GET", "/api/v1/shift-records/export?phase=phase_1", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("Unexpected content type %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "filename*=UTF-8''") {
		t.Errorf("Expected RFC 5987 filename, got %q", cd)
	}

	w = testutil.DoRequest(env.Router, "GET", "/api/v1/shift-records/export?phase=phase_9", nil, token)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown phase, got %d", w.Code)
	}
	w = testutil.DoRequest(env.Router, "GET", "/api/v1/shift-records/export?month=2024-13", nil, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad month, got %d", w.Code)
	}

	w = testutil.DoRequest(env.Router, "GET", "/api/v1/shift-records/template", nil, token)
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Errorf("Expected template workbook, got %d", w.Code)
	}
}

func TestShiftRecordImportCSV(t *testing.T) {
	env := setupHandlerTest(t)
	csv := strings.Join([]string{
		"设备名称,期数,班次类型,开始日期及时间,结束日期及时间,变更原因",
		"空压机,一期,长白班,2024-01-02 08:00,2024-01-02 09:00,维修",
		"冷却塔,,,2024-01-03 08:00,2024-01-03 08:30,保养",
		"风机,三期,长白班,,,",
	}, "\n")

	w := testutil.DoUpload(env.Router, "/api/v1/shift-records/import", "file", "records.csv", []byte(csv),
		map[string]string{"phase": "phase_2", "shift_type": "rotating_shift"}, env.adminToken())
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["message"] != "成功导入 2 条记录" {
		t.Errorf("Unexpected import message %v", resp["message"])
	}
	data := dataOf(t, resp)
	if data["imported_count"] != float64(2) {
		t.Errorf("Expected 2 imported, got %v", data["imported_count"])
	}
	errs := data["errors"].([]interface{})
	if len(errs) != 1 || !strings.Contains(errs[0].(string), "第4行") {
		t.Errorf("Expected one error on 第4行, got %v", errs)
	}

	// 第二行使用默认的二期倒班
	w = testutil.DoRequest(env.Router, "GET", "/api/v1/shift-records?phase=phase_2&shift_type=rotating_shift", nil, env.adminToken())
	pagination := dataOf(t, testutil.ParseResponse(w))["pagination"].(map[string]interface{})
	if pagination["total"] != float64(1) {
		t.Errorf("Expected 1 record in phase_2 rotating, got %v", pagination["total"])
	}
}

func TestDeleteReferencedPhaseConflict(t *testing.T) {
	env := setupHandlerTest(t)
	token := env.adminToken()
	testutil.SeedLine(t, env.DB, env.Plant.Phase1.ID, "L1", "一号线")

	w := testutil.DoRequest(env.Router, "DELETE", "/api/v1/config/phases/"+env.Plant.Phase1.ID, nil, token)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/config/phases",
		map[string]string{"code": "phase_1", "name": "重复"}, token)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate code, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.Router, "GET", "/api/v1/config/phases", nil, env.operatorToken())
	items := dataOf(t, testutil.ParseResponse(w))["items"].([]interface{})
	if len(items) != 2 {
		t.Errorf("Expected 2 phases, got %d", len(items))
	}
}

func TestPlanStatusSyncsAsset(t *testing.T) {
	env := setupHandlerTest(t)
	token := env.adminToken()

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/assets", map[string]string{"name": "空压机", "status": entity.AssetStatusActive}, token)
	asset := dataOf(t, testutil.ParseResponse(w))
	assetID := asset["id"].(string)

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/maintenance-plans", map[string]interface{}{
		"name": "季度保养", "asset_id": assetID,
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	planID := dataOf(t, testutil.ParseResponse(w))["id"].(string)

	w = testutil.DoRequest(env.Router, "PUT", "/api/v1/maintenance-plans/"+planID+"/status",
		map[string]string{"status": entity.PlanStatusInProgress}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.Router, "GET", "/api/v1/assets/"+assetID, nil, token)
	if status := dataOf(t, testutil.ParseResponse(w))["status"]; status != entity.AssetStatusUnderMaintenance {
		t.Errorf("Expected asset under maintenance, got %v", status)
	}

	w = testutil.DoRequest(env.Router, "PUT", "/api/v1/maintenance-plans/"+planID+"/status",
		map[string]string{"status": "Paused"}, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unmapped status, got %d", w.Code)
	}
}

func TestManualStepMediaRoundTrip(t *testing.T) {
	env := setupHandlerTest(t)
	token := env.adminToken()

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/manuals", map[string]string{"title": "空压机保养"}, token)
	manualID := dataOf(t, testutil.ParseResponse(w))["id"].(string)

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/manuals/"+manualID+"/steps", map[string]string{"title": "断电"}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	stepID := dataOf(t, testutil.ParseResponse(w))["id"].(string)

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/manuals/"+manualID+"/steps",
		map[string]interface{}{"title": "重复", "step_number": 1}, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for duplicate step number, got %d", w.Code)
	}

	content := []byte("\x89PNG image")
	w = testutil.DoUpload(env.Router, fmt.Sprintf("/api/v1/manuals/%s/steps/%s/media", manualID, stepID),
		"file", "step.png", content, map[string]string{"kind": "image"}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	key := dataOf(t, testutil.ParseResponse(w))["image_key"].(string)
	if !strings.HasPrefix(key, "manuals/") {
		t.Fatalf("Expected manuals/ key, got %q", key)
	}

	// <img> 通过 query token 访问
	w = testutil.DoRequest(env.Router, "GET", "/api/v1/media/"+key+"?token="+token, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != string(content) {
		t.Errorf("Unexpected media body %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Expected image/png, got %q", ct)
	}

	w = testutil.DoRequest(env.Router, "GET", "/api/v1/media/configs/x.yaml", nil, token)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for non-media key, got %d", w.Code)
	}
}

func TestDashboardEndpoints(t *testing.T) {
	env := setupHandlerTest(t)
	token := env.adminToken()
	createRecord(t, env, token, map[string]interface{}{
		"phase_code": entity.PhaseOneCode, "shift_type_code": entity.ShiftLongDay, "equipment_name": "空压机",
	})

	for _, path := range []string{"overview", "active-users", "task-status", "recent-activities", "weekly-trends"} {
		w := testutil.DoRequest(env.Router, "GET", "/api/v1/dashboard/"+path, nil, token)
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d: %s", path, w.Code, w.Body.String())
		}
	}

	w := testutil.DoRequest(env.Router, "GET", "/api/v1/dashboard/maintenance-rate?period=quarter", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	rate := dataOf(t, testutil.ParseResponse(w))
	if rate["period"] != "quarter" {
		t.Errorf("Expected quarter, got %v", rate["period"])
	}
	if rate["total_maintenance_count"] != float64(1) {
		t.Errorf("Expected 1 record, got %v", rate["total_maintenance_count"])
	}
}

func TestUserAdminOnly(t *testing.T) {
	env := setupHandlerTest(t)

	w := testutil.DoRequest(env.Router, "GET", "/api/v1/users", nil, env.operatorToken("*"))
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", w.Code)
	}

	w = testutil.DoRequest(env.Router, "GET", "/api/v1/users?search=oper", nil, env.adminToken())
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	pagination := dataOf(t, testutil.ParseResponse(w))["pagination"].(map[string]interface{})
	if pagination["total"] != float64(1) {
		t.Errorf("Expected 1 user matching 'oper', got %v", pagination["total"])
	}

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/users", map[string]string{
		"username": "operator", "password": "secret123",
	}, env.adminToken())
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate username, got %d", w.Code)
	}

	w = testutil.DoRequest(env.Router, "GET", "/api/v1/activities", nil, env.adminToken())
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestCaseFilterByProcessAndPinyin(t *testing.T) {
	env := setupHandlerTest(t)
	token := env.adminToken()
	process := testutil.SeedProcess(t, env.DB, "forming", "成型")

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/cases", map[string]interface{}{
		"equipment_name": "空压机", "fault_phenomenon": "压力不足", "process_id": process.ID,
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	testutil.DoRequest(env.Router, "POST", "/api/v1/cases", map[string]string{"equipment_name": "冷却塔"}, token)

	w = testutil.DoRequest(env.Router, "GET", "/api/v1/cases?process_id="+process.ID, nil, token)
	pagination := dataOf(t, testutil.ParseResponse(w))["pagination"].(map[string]interface{})
	if pagination["total"] != float64(1) {
		t.Errorf("Expected 1 case for process, got %v", pagination["total"])
	}

	// 拼音首字母检索
	w = testutil.DoRequest(env.Router, "GET", "/api/v1/cases?search=kyj", nil, token)
	pagination = dataOf(t, testutil.ParseResponse(w))["pagination"].(map[string]interface{})
	if pagination["total"] != float64(1) {
		t.Errorf("Expected 1 case matching kyj, got %v", pagination["total"])
	}

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/cases", map[string]string{"fault_reason": "缺名称"}, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without equipment name, got %d", w.Code)
	}
}
