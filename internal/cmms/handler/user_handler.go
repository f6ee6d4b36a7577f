package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/service"
)

// UserHandler 组织内用户管理，仅管理员可用
type UserHandler struct {
	svc *service.UserService
}

func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// List GET /api/v1/users?search=
func (h *UserHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.List(c.Request.Context(), c.GetString("org_id"), page, pageSize, c.Query("search"))
	if err != nil {
		handleError(c, err)
		return
	}
	List(c, items, total, page, pageSize)
}

// Create POST /api/v1/users
func (h *UserHandler) Create(c *gin.Context) {
	var req service.CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.svc.Create(c.Request.Context(), c.GetString("org_id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	Created(c, user)
}

// Update PUT /api/v1/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	var req service.UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.svc.Update(c.Request.Context(), c.GetString("org_id"), c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	Success(c, user)
}

// ActivityHandler 活动日志
type ActivityHandler struct {
	svc *service.ActivityService
}

func NewActivityHandler(svc *service.ActivityService) *ActivityHandler {
	return &ActivityHandler{svc: svc}
}

// List GET /api/v1/activities?user_id=&activity_type=
func (h *ActivityHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := queryFilters(c, "user_id", "activity_type")
	items, total, err := h.svc.List(c.Request.Context(), c.GetString("org_id"), page, pageSize, filters)
	if err != nil {
		handleError(c, err)
		return
	}
	List(c, items, total, page, pageSize)
}
