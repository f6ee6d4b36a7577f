package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/service"
	"go.uber.org/zap"
)

// ShiftRecordHandler 班次维护记录
type ShiftRecordHandler struct {
	svc    *service.ShiftRecordService
	excel  *service.RecordExcelService
	logger *zap.Logger
}

func NewShiftRecordHandler(svc *service.ShiftRecordService, excel *service.RecordExcelService, logger *zap.Logger) *ShiftRecordHandler {
	return &ShiftRecordHandler{svc: svc, excel: excel, logger: logger}
}

// List GET /api/v1/shift-records?phase=&shift_type=&month=&change_reason=&search=
// phase_id/shift_type_id 按ID过滤，phase/shift_type 按代码过滤
func (h *ShiftRecordHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	q := service.RecordQuery{
		PhaseID:      c.Query("phase_id"),
		PhaseCode:    c.Query("phase"),
		ShiftTypeID:  c.Query("shift_type_id"),
		ShiftCode:    c.Query("shift_type"),
		Month:        c.Query("month"),
		ChangeReason: c.Query("change_reason"),
		Search:       c.Query("search"),
	}
	items, total, err := h.svc.List(c.Request.Context(), scopeFrom(c), page, pageSize, q)
	if err != nil {
		handleError(c, err)
		return
	}
	List(c, items, total, page, pageSize)
}

func (h *ShiftRecordHandler) Get(c *gin.Context) {
	rec, err := h.svc.Get(c.Request.Context(), scopeFrom(c), c.Param("id"))
	reply(c, rec, err)
}

func (h *ShiftRecordHandler) Create(c *gin.Context) {
	var req service.CreateRecordRequest
	if !bindJSON(c, &req) {
		return
	}
	rec, err := h.svc.Create(c.Request.Context(), scopeFrom(c), &req)
	replyCreated(c, rec, err)
}

func (h *ShiftRecordHandler) Update(c *gin.Context) {
	var req service.UpdateRecordRequest
	if !bindJSON(c, &req) {
		return
	}
	rec, err := h.svc.Update(c.Request.Context(), scopeFrom(c), c.Param("id"), &req)
	reply(c, rec, err)
}

func (h *ShiftRecordHandler) Delete(c *gin.Context) {
	replyDeleted(c, h.svc.Delete(c.Request.Context(), scopeFrom(c), c.Param("id")))
}

// Stats GET /api/v1/shift-records/stats
func (h *ShiftRecordHandler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context(), scopeFrom(c))
	reply(c, gin.H{"items": stats}, err)
}

// Template GET /api/v1/shift-records/template
func (h *ShiftRecordHandler) Template(c *gin.Context) {
	f, err := h.excel.TemplateRecords()
	if err != nil {
		handleError(c, err)
		return
	}
	sendWorkbook(c, f, "维修记录导入模板.xlsx")
}

// Export GET /api/v1/shift-records/export?phase=&shift_type=&month=
func (h *ShiftRecordHandler) Export(c *gin.Context) {
	var filter service.ExportFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	f, filename, err := h.excel.ExportRecords(c.Request.Context(), scopeFrom(c), filter)
	if err != nil {
		handleError(c, err)
		return
	}
	sendWorkbook(c, f, filename)
}

// Import POST /api/v1/shift-records/import
// 表单字段 phase/shift_type 为表格未填写时的默认值
func (h *ShiftRecordHandler) Import(c *gin.Context) {
	var defaults service.ImportDefaults
	if err := c.ShouldBind(&defaults); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	rows, ok := readSheet(c)
	if !ok {
		return
	}
	result, err := h.excel.ImportRecords(c.Request.Context(), scopeFrom(c), rows, defaults)
	if err != nil {
		handleError(c, err)
		return
	}
	h.logger.Info("Shift records imported",
		zap.String("user_id", GetUserID(c)),
		zap.Int("imported", result.ImportedCount),
		zap.Int("errors", len(result.Errors)),
	)
	Imported(c, result)
}
