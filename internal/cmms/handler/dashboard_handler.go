package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/service"
)

// DashboardHandler 首页看板，每项单独一个接口
type DashboardHandler struct {
	svc *service.DashboardService
}

func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{svc: svc}
}

func (h *DashboardHandler) Overview(c *gin.Context) {
	ov, err := h.svc.Overview(c.Request.Context(), c.GetString("org_id"))
	reply(c, ov, err)
}

func (h *DashboardHandler) ActiveUsers(c *gin.Context) {
	n, err := h.svc.ActiveUsers(c.Request.Context(), c.GetString("org_id"))
	reply(c, gin.H{"active_users": n}, err)
}

func (h *DashboardHandler) TaskStatus(c *gin.Context) {
	buckets, err := h.svc.TaskStatus(c.Request.Context(), c.GetString("org_id"))
	reply(c, gin.H{"items": buckets}, err)
}

func (h *DashboardHandler) RecentActivities(c *gin.Context) {
	items, err := h.svc.RecentActivities(c.Request.Context(), c.GetString("org_id"))
	reply(c, gin.H{"items": items}, err)
}

func (h *DashboardHandler) WeeklyTrends(c *gin.Context) {
	days, err := h.svc.WeeklyTrends(c.Request.Context())
	reply(c, gin.H{"items": days}, err)
}

// MaintenanceRate GET /api/v1/dashboard/maintenance-rate?period=month|quarter|year&phase_id=phase_1&process_id=&production_line_id=
func (h *DashboardHandler) MaintenanceRate(c *gin.Context) {
	var q service.RateQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	rate, err := h.svc.MaintenanceRate(c.Request.Context(), scopeFrom(c), q)
	reply(c, rate, err)
}
