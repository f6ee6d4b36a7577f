package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/service"
)

// AssetHandler 资产台账
type AssetHandler struct {
	svc   *service.AssetService
	excel *service.AssetExcelService
}

func NewAssetHandler(svc *service.AssetService, excel *service.AssetExcelService) *AssetHandler {
	return &AssetHandler{svc: svc, excel: excel}
}

// List GET /api/v1/assets?search=&status=&phase_id=&asset_type=
func (h *AssetHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := queryFilters(c, "search", "status", "phase_id", "asset_type")
	items, total, err := h.svc.List(c.Request.Context(), scopeFrom(c), page, pageSize, filters)
	if err != nil {
		handleError(c, err)
		return
	}
	List(c, items, total, page, pageSize)
}

func (h *AssetHandler) Get(c *gin.Context) {
	asset, err := h.svc.Get(c.Request.Context(), scopeFrom(c), c.Param("id"))
	reply(c, asset, err)
}

func (h *AssetHandler) Create(c *gin.Context) {
	var req service.CreateAssetRequest
	if !bindJSON(c, &req) {
		return
	}
	asset, err := h.svc.Create(c.Request.Context(), scopeFrom(c), &req)
	replyCreated(c, asset, err)
}

func (h *AssetHandler) Update(c *gin.Context) {
	var req service.UpdateAssetRequest
	if !bindJSON(c, &req) {
		return
	}
	asset, err := h.svc.Update(c.Request.Context(), scopeFrom(c), c.Param("id"), &req)
	reply(c, asset, err)
}

func (h *AssetHandler) Delete(c *gin.Context) {
	replyDeleted(c, h.svc.Delete(c.Request.Context(), scopeFrom(c), c.Param("id")))
}

// Template GET /api/v1/assets/template
func (h *AssetHandler) Template(c *gin.Context) {
	f, err := h.excel.TemplateAssets()
	if err != nil {
		handleError(c, err)
		return
	}
	sendWorkbook(c, f, "资产导入模板.xlsx")
}

// Export GET /api/v1/assets/export?phase=
func (h *AssetHandler) Export(c *gin.Context) {
	f, filename, err := h.excel.ExportAssets(c.Request.Context(), scopeFrom(c), c.Query("phase"))
	if err != nil {
		handleError(c, err)
		return
	}
	sendWorkbook(c, f, filename)
}

// Import POST /api/v1/assets/import
func (h *AssetHandler) Import(c *gin.Context) {
	rows, ok := readSheet(c)
	if !ok {
		return
	}
	result, err := h.excel.ImportAssets(c.Request.Context(), scopeFrom(c), rows)
	if err != nil {
		handleError(c, err)
		return
	}
	Imported(c, result)
}

// PlanHandler 维护计划
type PlanHandler struct {
	svc *service.MaintenancePlanService
}

func NewPlanHandler(svc *service.MaintenancePlanService) *PlanHandler {
	return &PlanHandler{svc: svc}
}

type planStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// List GET /api/v1/maintenance-plans?search=&status=&priority=&asset_id=
func (h *PlanHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := queryFilters(c, "search", "status", "priority", "asset_id")
	items, total, err := h.svc.List(c.Request.Context(), scopeFrom(c), page, pageSize, filters)
	if err != nil {
		handleError(c, err)
		return
	}
	List(c, items, total, page, pageSize)
}

func (h *PlanHandler) Get(c *gin.Context) {
	plan, err := h.svc.Get(c.Request.Context(), scopeFrom(c), c.Param("id"))
	reply(c, plan, err)
}

func (h *PlanHandler) Create(c *gin.Context) {
	var req service.CreatePlanRequest
	if !bindJSON(c, &req) {
		return
	}
	plan, err := h.svc.Create(c.Request.Context(), scopeFrom(c), &req)
	replyCreated(c, plan, err)
}

func (h *PlanHandler) Update(c *gin.Context) {
	var req service.UpdatePlanRequest
	if !bindJSON(c, &req) {
		return
	}
	plan, err := h.svc.Update(c.Request.Context(), scopeFrom(c), c.Param("id"), &req)
	reply(c, plan, err)
}

// UpdateStatus PUT /api/v1/maintenance-plans/:id/status
func (h *PlanHandler) UpdateStatus(c *gin.Context) {
	var req planStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	plan, err := h.svc.UpdateStatus(c.Request.Context(), scopeFrom(c), c.Param("id"), req.Status)
	reply(c, plan, err)
}

func (h *PlanHandler) Delete(c *gin.Context) {
	replyDeleted(c, h.svc.Delete(c.Request.Context(), scopeFrom(c), c.Param("id")))
}
