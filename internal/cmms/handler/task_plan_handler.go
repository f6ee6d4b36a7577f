package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/service"
)

// TaskPlanHandler 每日任务计划
type TaskPlanHandler struct {
	svc   *service.TaskPlanService
	excel *service.TaskPlanExcelService
}

func NewTaskPlanHandler(svc *service.TaskPlanService, excel *service.TaskPlanExcelService) *TaskPlanHandler {
	return &TaskPlanHandler{svc: svc, excel: excel}
}

// List GET /api/v1/task-plans?status=&phase_id=&date=&month=
func (h *TaskPlanHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	q := service.TaskPlanQuery{
		Status:  c.Query("status"),
		PhaseID: c.Query("phase_id"),
		Date:    c.Query("date"),
		Month:   c.Query("month"),
	}
	items, total, err := h.svc.List(c.Request.Context(), scopeFrom(c), page, pageSize, q)
	if err != nil {
		handleError(c, err)
		return
	}
	List(c, items, total, page, pageSize)
}

func (h *TaskPlanHandler) Get(c *gin.Context) {
	tp, err := h.svc.Get(c.Request.Context(), scopeFrom(c), c.Param("id"))
	reply(c, tp, err)
}

func (h *TaskPlanHandler) Create(c *gin.Context) {
	var req service.TaskPlanRequest
	if !bindJSON(c, &req) {
		return
	}
	tp, err := h.svc.Create(c.Request.Context(), scopeFrom(c), &req)
	replyCreated(c, tp, err)
}

func (h *TaskPlanHandler) Update(c *gin.Context) {
	var req service.TaskPlanRequest
	if !bindJSON(c, &req) {
		return
	}
	tp, err := h.svc.Update(c.Request.Context(), scopeFrom(c), c.Param("id"), &req)
	reply(c, tp, err)
}

func (h *TaskPlanHandler) Delete(c *gin.Context) {
	replyDeleted(c, h.svc.Delete(c.Request.Context(), scopeFrom(c), c.Param("id")))
}

func (h *TaskPlanHandler) Template(c *gin.Context) {
	f, err := h.excel.TemplateTaskPlans()
	if err != nil {
		handleError(c, err)
		return
	}
	sendWorkbook(c, f, "任务计划导入模板.xlsx")
}

// Export GET /api/v1/task-plans/export?month=2024-06
func (h *TaskPlanHandler) Export(c *gin.Context) {
	f, filename, err := h.excel.ExportTaskPlans(c.Request.Context(), scopeFrom(c), c.Query("month"))
	if err != nil {
		handleError(c, err)
		return
	}
	sendWorkbook(c, f, filename)
}

func (h *TaskPlanHandler) Import(c *gin.Context) {
	rows, ok := readSheet(c)
	if !ok {
		return
	}
	result, err := h.excel.ImportTaskPlans(c.Request.Context(), scopeFrom(c), rows)
	if err != nil {
		handleError(c, err)
		return
	}
	Imported(c, result)
}
