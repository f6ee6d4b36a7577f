package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/service"
)

// ConfigHandler 期数、产线、工序、班次类型配置
type ConfigHandler struct {
	svc *service.ConfigService
}

func NewConfigHandler(svc *service.ConfigService) *ConfigHandler {
	return &ConfigHandler{svc: svc}
}

// activeOnly ?active=true 时只返回启用项
func activeOnly(c *gin.Context) bool {
	return c.Query("active") == "true" || c.Query("active") == "1"
}

func reply[T any](c *gin.Context, v T, err error) {
	if err != nil {
		handleError(c, err)
		return
	}
	Success(c, v)
}

func replyCreated[T any](c *gin.Context, v T, err error) {
	if err != nil {
		handleError(c, err)
		return
	}
	Created(c, v)
}

func replyDeleted(c *gin.Context, err error) {
	if err != nil {
		handleError(c, err)
		return
	}
	Success(c, gin.H{"deleted": true})
}

// ==================== 期数 ====================

func (h *ConfigHandler) ListPhases(c *gin.Context) {
	items, err := h.svc.ListPhases(c.Request.Context(), activeOnly(c))
	reply(c, gin.H{"items": items}, err)
}

func (h *ConfigHandler) GetPhase(c *gin.Context) {
	phase, err := h.svc.GetPhase(c.Request.Context(), c.Param("id"))
	reply(c, phase, err)
}

func (h *ConfigHandler) CreatePhase(c *gin.Context) {
	var req service.ConfigItemRequest
	if !bindJSON(c, &req) {
		return
	}
	phase, err := h.svc.CreatePhase(c.Request.Context(), &req)
	replyCreated(c, phase, err)
}

func (h *ConfigHandler) UpdatePhase(c *gin.Context) {
	var req service.ConfigItemRequest
	if !bindJSON(c, &req) {
		return
	}
	phase, err := h.svc.UpdatePhase(c.Request.Context(), c.Param("id"), &req)
	reply(c, phase, err)
}

func (h *ConfigHandler) DeletePhase(c *gin.Context) {
	replyDeleted(c, h.svc.DeletePhase(c.Request.Context(), c.Param("id")))
}

// ==================== 产线 ====================

// ListLines GET /api/v1/config/production-lines?phase_id=
func (h *ConfigHandler) ListLines(c *gin.Context) {
	items, err := h.svc.ListLines(c.Request.Context(), c.Query("phase_id"), activeOnly(c))
	reply(c, gin.H{"items": items}, err)
}

func (h *ConfigHandler) GetLine(c *gin.Context) {
	line, err := h.svc.GetLine(c.Request.Context(), c.Param("id"))
	reply(c, line, err)
}

func (h *ConfigHandler) CreateLine(c *gin.Context) {
	var req service.LineRequest
	if !bindJSON(c, &req) {
		return
	}
	line, err := h.svc.CreateLine(c.Request.Context(), &req)
	replyCreated(c, line, err)
}

func (h *ConfigHandler) UpdateLine(c *gin.Context) {
	var req service.LineRequest
	if !bindJSON(c, &req) {
		return
	}
	line, err := h.svc.UpdateLine(c.Request.Context(), c.Param("id"), &req)
	reply(c, line, err)
}

func (h *ConfigHandler) DeleteLine(c *gin.Context) {
	replyDeleted(c, h.svc.DeleteLine(c.Request.Context(), c.Param("id")))
}

// ==================== 工序 ====================

func (h *ConfigHandler) ListProcesses(c *gin.Context) {
	items, err := h.svc.ListProcesses(c.Request.Context(), activeOnly(c))
	reply(c, gin.H{"items": items}, err)
}

func (h *ConfigHandler) GetProcess(c *gin.Context) {
	p, err := h.svc.GetProcess(c.Request.Context(), c.Param("id"))
	reply(c, p, err)
}

func (h *ConfigHandler) CreateProcess(c *gin.Context) {
	var req service.ConfigItemRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.svc.CreateProcess(c.Request.Context(), &req)
	replyCreated(c, p, err)
}

func (h *ConfigHandler) UpdateProcess(c *gin.Context) {
	var req service.ConfigItemRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.svc.UpdateProcess(c.Request.Context(), c.Param("id"), &req)
	reply(c, p, err)
}

func (h *ConfigHandler) DeleteProcess(c *gin.Context) {
	replyDeleted(c, h.svc.DeleteProcess(c.Request.Context(), c.Param("id")))
}

// ==================== 班次类型 ====================

func (h *ConfigHandler) ListShiftTypes(c *gin.Context) {
	items, err := h.svc.ListShiftTypes(c.Request.Context(), activeOnly(c))
	reply(c, gin.H{"items": items}, err)
}

func (h *ConfigHandler) GetShiftType(c *gin.Context) {
	st, err := h.svc.GetShiftType(c.Request.Context(), c.Param("id"))
	reply(c, st, err)
}

func (h *ConfigHandler) CreateShiftType(c *gin.Context) {
	var req service.ConfigItemRequest
	if !bindJSON(c, &req) {
		return
	}
	st, err := h.svc.CreateShiftType(c.Request.Context(), &req)
	replyCreated(c, st, err)
}

func (h *ConfigHandler) UpdateShiftType(c *gin.Context) {
	var req service.ConfigItemRequest
	if !bindJSON(c, &req) {
		return
	}
	st, err := h.svc.UpdateShiftType(c.Request.Context(), c.Param("id"), &req)
	reply(c, st, err)
}

func (h *ConfigHandler) DeleteShiftType(c *gin.Context) {
	replyDeleted(c, h.svc.DeleteShiftType(c.Request.Context(), c.Param("id")))
}
