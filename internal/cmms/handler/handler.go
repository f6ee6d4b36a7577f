package handler

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/repository"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/service"
	"github.com/jionychiow/CMSS-SOFT/internal/middleware"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Handlers 处理器集合
type Handlers struct {
	Auth        *AuthHandler
	User        *UserHandler
	Activity    *ActivityHandler
	Config      *ConfigHandler
	Asset       *AssetHandler
	Plan        *PlanHandler
	ShiftRecord *ShiftRecordHandler
	TaskPlan    *TaskPlanHandler
	Manual      *ManualHandler
	Case        *CaseHandler
	Media       *MediaHandler
	Dashboard   *DashboardHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services, logger *zap.Logger) *Handlers {
	return &Handlers{
		Auth:        NewAuthHandler(svc.Auth),
		User:        NewUserHandler(svc.User),
		Activity:    NewActivityHandler(svc.Activity),
		Config:      NewConfigHandler(svc.Config),
		Asset:       NewAssetHandler(svc.Asset, svc.AssetExcel),
		Plan:        NewPlanHandler(svc.Plan),
		ShiftRecord: NewShiftRecordHandler(svc.ShiftRecord, svc.RecordExcel, logger),
		TaskPlan:    NewTaskPlanHandler(svc.TaskPlan, svc.TaskPlanExcel),
		Manual:      NewManualHandler(svc.Manual),
		Case:        NewCaseHandler(svc.Case),
		Media:       NewMediaHandler(svc.Media),
		Dashboard:   NewDashboardHandler(svc.Dashboard),
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListResponse 列表响应结构
type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

// Pagination 分页信息
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Imported 导入结果，行级错误随结果一起返回
func Imported(c *gin.Context, result *service.ImportResult) {
	c.JSON(200, Response{
		Code:    0,
		Message: fmt.Sprintf("成功导入 %d 条记录", result.ImportedCount),
		Data:    result,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// List 分页列表响应
func List(c *gin.Context, items interface{}, total int64, page, pageSize int) {
	pages := total / int64(pageSize)
	if total%int64(pageSize) != 0 {
		pages++
	}
	Success(c, ListResponse{
		Items: items,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: pages,
		},
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// Unauthorized 未授权响应
func Unauthorized(c *gin.Context, message string) {
	Error(c, 40100, message)
}

// Forbidden 禁止访问响应
func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// Conflict 资源冲突响应
func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// errorCodes 业务错误到响应码的映射，按顺序匹配
var errorCodes = []struct {
	err  error
	code int
}{
	{service.ErrNotFound, 40400},
	{service.ErrInvalidCredentials, 40100},
	{service.ErrQuotaExceeded, 40302},
	{service.ErrForbidden, 40300},
	{service.ErrDuplicateSerial, 40901},
	{service.ErrSerialExhausted, 40900},
	{service.ErrInUse, 40900},
	{service.ErrConflict, 40900},
	{service.ErrInvalidMonth, 40000},
	{service.ErrUnmappedPlanStatus, 40000},
	{service.ErrInvalidInput, 40000},
	{service.ErrStorageUnavailable, 50300},
	{service.ErrExportRender, 50000},
}

// handleError 把服务层错误映射为响应，未知错误按 50000 处理
func handleError(c *gin.Context, err error) {
	for _, m := range errorCodes {
		if errors.Is(err, m.err) {
			msg := err.Error()
			if errors.Is(err, service.ErrNotFound) && msg == service.ErrNotFound.Error() {
				msg = "资源不存在"
			}
			Error(c, m.code, msg)
			return
		}
	}
	_ = c.Error(err)
	InternalError(c, err.Error())
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) string {
	return c.GetString("user_id")
}

// GetClaims 从上下文获取 JWT claims
func GetClaims(c *gin.Context) *middleware.JWTClaims {
	v, ok := c.Get("claims")
	if !ok {
		return nil
	}
	claims, _ := v.(*middleware.JWTClaims)
	return claims
}

// scopeFrom 当前请求的数据范围
func scopeFrom(c *gin.Context) repository.Scope {
	scope := repository.Scope{
		OrgID:  c.GetString("org_id"),
		UserID: GetUserID(c),
	}
	if roles, ok := c.Get("roles"); ok {
		if list, ok := roles.([]string); ok {
			for _, r := range list {
				if r == middleware.RoleAdmin {
					scope.Admin = true
				}
			}
		}
	}
	return scope
}

// GetPagination 从请求获取分页参数
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

// queryFilters 取出非空的查询参数
func queryFilters(c *gin.Context, keys ...string) map[string]string {
	filters := make(map[string]string, len(keys))
	for _, k := range keys {
		if v := strings.TrimSpace(c.Query(k)); v != "" {
			filters[k] = v
		}
	}
	return filters
}

// bindJSON 绑定失败时已写入 400 响应
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return false
	}
	return true
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// sendWorkbook 以附件形式下载表格，文件名按 RFC 5987 编码
func sendWorkbook(c *gin.Context, f *excelize.File, filename string) {
	defer f.Close()

	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s",
		asciiFilename(filename), url.PathEscape(filename)))
	c.Header("Content-Transfer-Encoding", "binary")

	if err := f.Write(c.Writer); err != nil {
		_ = c.Error(err)
	}
}

// asciiFilename 非 ASCII 字符替换为下划线，供不支持 filename* 的客户端使用
func asciiFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// readSheet 读取上传的 xlsx 或 csv
func readSheet(c *gin.Context) ([][]string, bool) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		BadRequest(c, "请上传Excel文件")
		return nil, false
	}
	defer file.Close()

	rows, err := service.ReadSheetRows(header.Filename, file)
	if err != nil {
		BadRequest(c, "无法解析上传文件: "+err.Error())
		return nil, false
	}
	return rows, true
}
