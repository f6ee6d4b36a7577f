package handler

import (
	"io"

	"github.com/gin-gonic/gin"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/service"
)

// mediaFromForm 读取 multipart 中的 file 和 kind（image/video）。
// 返回的 closer 需由调用方关闭
func mediaFromForm(c *gin.Context) (*service.MediaUpload, io.Closer, bool) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		BadRequest(c, "没有上传文件")
		return nil, nil, false
	}
	kind := c.PostForm("kind")
	if kind == "" {
		kind = service.MediaImage
	}
	return &service.MediaUpload{
		Kind:        kind,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Reader:      file,
	}, file, true
}

// ManualHandler 维护手册及步骤
type ManualHandler struct {
	svc *service.ManualService
}

func NewManualHandler(svc *service.ManualService) *ManualHandler {
	return &ManualHandler{svc: svc}
}

// List GET /api/v1/manuals?search=&phase_id=&process_id=&production_line_id=
func (h *ManualHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := queryFilters(c, "search", "phase_id", "process_id", "production_line_id")
	items, total, err := h.svc.List(c.Request.Context(), scopeFrom(c), page, pageSize, filters)
	if err != nil {
		handleError(c, err)
		return
	}
	List(c, items, total, page, pageSize)
}

func (h *ManualHandler) Get(c *gin.Context) {
	m, err := h.svc.Get(c.Request.Context(), scopeFrom(c), c.Param("id"))
	reply(c, m, err)
}

func (h *ManualHandler) Create(c *gin.Context) {
	var req service.ManualRequest
	if !bindJSON(c, &req) {
		return
	}
	m, err := h.svc.Create(c.Request.Context(), scopeFrom(c), &req)
	replyCreated(c, m, err)
}

func (h *ManualHandler) Update(c *gin.Context) {
	var req service.ManualRequest
	if !bindJSON(c, &req) {
		return
	}
	m, err := h.svc.Update(c.Request.Context(), scopeFrom(c), c.Param("id"), &req)
	reply(c, m, err)
}

func (h *ManualHandler) Delete(c *gin.Context) {
	replyDeleted(c, h.svc.Delete(c.Request.Context(), scopeFrom(c), c.Param("id")))
}

// ListSteps GET /api/v1/manuals/:id/steps
func (h *ManualHandler) ListSteps(c *gin.Context) {
	steps, err := h.svc.ListSteps(c.Request.Context(), scopeFrom(c), c.Param("id"))
	reply(c, gin.H{"items": steps}, err)
}

func (h *ManualHandler) CreateStep(c *gin.Context) {
	var req service.StepRequest
	if !bindJSON(c, &req) {
		return
	}
	step, err := h.svc.CreateStep(c.Request.Context(), scopeFrom(c), c.Param("id"), &req)
	replyCreated(c, step, err)
}

func (h *ManualHandler) UpdateStep(c *gin.Context) {
	var req service.StepRequest
	if !bindJSON(c, &req) {
		return
	}
	step, err := h.svc.UpdateStep(c.Request.Context(), scopeFrom(c), c.Param("id"), c.Param("stepId"), &req)
	reply(c, step, err)
}

func (h *ManualHandler) DeleteStep(c *gin.Context) {
	replyDeleted(c, h.svc.DeleteStep(c.Request.Context(), scopeFrom(c), c.Param("id"), c.Param("stepId")))
}

// UploadStepMedia POST /api/v1/manuals/:id/steps/:stepId/media
func (h *ManualHandler) UploadStepMedia(c *gin.Context) {
	upload, closer, ok := mediaFromForm(c)
	if !ok {
		return
	}
	defer closer.Close()

	step, err := h.svc.AttachStepMedia(c.Request.Context(), scopeFrom(c), c.Param("id"), c.Param("stepId"), upload)
	reply(c, step, err)
}

// CaseHandler 故障案例
type CaseHandler struct {
	svc *service.CaseService
}

func NewCaseHandler(svc *service.CaseService) *CaseHandler {
	return &CaseHandler{svc: svc}
}

// List GET /api/v1/cases?search=&process_id=
func (h *CaseHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := queryFilters(c, "search", "process_id")
	items, total, err := h.svc.List(c.Request.Context(), scopeFrom(c), page, pageSize, filters)
	if err != nil {
		handleError(c, err)
		return
	}
	List(c, items, total, page, pageSize)
}

func (h *CaseHandler) Get(c *gin.Context) {
	mc, err := h.svc.Get(c.Request.Context(), scopeFrom(c), c.Param("id"))
	reply(c, mc, err)
}

func (h *CaseHandler) Create(c *gin.Context) {
	var req service.CaseRequest
	if !bindJSON(c, &req) {
		return
	}
	mc, err := h.svc.Create(c.Request.Context(), scopeFrom(c), &req)
	replyCreated(c, mc, err)
}

func (h *CaseHandler) Update(c *gin.Context) {
	var req service.CaseRequest
	if !bindJSON(c, &req) {
		return
	}
	mc, err := h.svc.Update(c.Request.Context(), scopeFrom(c), c.Param("id"), &req)
	reply(c, mc, err)
}

func (h *CaseHandler) Delete(c *gin.Context) {
	replyDeleted(c, h.svc.Delete(c.Request.Context(), scopeFrom(c), c.Param("id")))
}

// UploadMedia POST /api/v1/cases/:id/media
func (h *CaseHandler) UploadMedia(c *gin.Context) {
	upload, closer, ok := mediaFromForm(c)
	if !ok {
		return
	}
	defer closer.Close()

	mc, err := h.svc.AttachMedia(c.Request.Context(), scopeFrom(c), c.Param("id"), upload)
	reply(c, mc, err)
}

// MediaHandler 手册与案例媒体下载
type MediaHandler struct {
	svc *service.MediaService
}

func NewMediaHandler(svc *service.MediaService) *MediaHandler {
	return &MediaHandler{svc: svc}
}

// Download GET /api/v1/media/*key
func (h *MediaHandler) Download(c *gin.Context) {
	rc, info, err := h.svc.Open(c.Request.Context(), c.Param("key"))
	if err != nil {
		handleError(c, err)
		return
	}
	defer rc.Close()

	size := info.Size
	if size <= 0 {
		size = -1
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.DataFromReader(200, size, info.ContentType, rc, nil)
}
