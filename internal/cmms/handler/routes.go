package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"github.com/jionychiow/CMSS-SOFT/internal/middleware"
	"go.uber.org/zap"
)

// RouteOptions 路由注册依赖
type RouteOptions struct {
	JWTSecret string
	Version   string
	BuildTime string
	// Revocation 为空时不检查令牌注销
	Revocation middleware.RevocationChecker
	// Visits 为空时不统计访问量
	Visits middleware.VisitRecorder
	Logger *zap.Logger
}

// RegisterRoutes 注册全部 HTTP 路由
func RegisterRoutes(r *gin.Engine, h *Handlers, opts RouteOptions) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    opts.Version,
			"build_time": opts.BuildTime,
		})
	})

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": 40400, "message": "Not found"})
	})

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	v1 := r.Group("/api/v1")
	{
		// 认证 (无需登录)
		auth := v1.Group("/auth")
		{
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
		}

		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(opts.JWTSecret, opts.Revocation))
		if opts.Visits != nil {
			authorized.Use(middleware.ActivityTracker(opts.Visits, logger))
		}
		{
			authorized.GET("/auth/me", h.Auth.Me)
			authorized.POST("/auth/logout", h.Auth.Logout)

			admin := middleware.RequireRole(middleware.RoleAdmin)

			// 用户与活动日志
			users := authorized.Group("/users", admin)
			{
				users.GET("", h.User.List)
				users.POST("", h.User.Create)
				users.PUT("/:id", h.User.Update)
			}
			authorized.GET("/activities", admin, h.Activity.List)

			// 工厂配置，写操作仅管理员
			cfg := authorized.Group("/config")
			{
				cfg.GET("/phases", h.Config.ListPhases)
				cfg.GET("/phases/:id", h.Config.GetPhase)
				cfg.POST("/phases", admin, h.Config.CreatePhase)
				cfg.PUT("/phases/:id", admin, h.Config.UpdatePhase)
				cfg.DELETE("/phases/:id", admin, h.Config.DeletePhase)

				cfg.GET("/production-lines", h.Config.ListLines)
				cfg.GET("/production-lines/:id", h.Config.GetLine)
				cfg.POST("/production-lines", admin, h.Config.CreateLine)
				cfg.PUT("/production-lines/:id", admin, h.Config.UpdateLine)
				cfg.DELETE("/production-lines/:id", admin, h.Config.DeleteLine)

				cfg.GET("/processes", h.Config.ListProcesses)
				cfg.GET("/processes/:id", h.Config.GetProcess)
				cfg.POST("/processes", admin, h.Config.CreateProcess)
				cfg.PUT("/processes/:id", admin, h.Config.UpdateProcess)
				cfg.DELETE("/processes/:id", admin, h.Config.DeleteProcess)

				cfg.GET("/shift-types", h.Config.ListShiftTypes)
				cfg.GET("/shift-types/:id", h.Config.GetShiftType)
				cfg.POST("/shift-types", admin, h.Config.CreateShiftType)
				cfg.PUT("/shift-types/:id", admin, h.Config.UpdateShiftType)
				cfg.DELETE("/shift-types/:id", admin, h.Config.DeleteShiftType)
			}

			// 资产
			assets := authorized.Group("/assets")
			{
				assets.GET("", h.Asset.List)
				assets.GET("/template", h.Asset.Template)
				assets.GET("/export", h.Asset.Export)
				assets.POST("/import", middleware.RequirePermission(entity.PermAssetCreate), h.Asset.Import)
				assets.POST("", middleware.RequirePermission(entity.PermAssetCreate), h.Asset.Create)
				assets.GET("/:id", h.Asset.Get)
				assets.PUT("/:id", middleware.RequirePermission(entity.PermAssetUpdate), h.Asset.Update)
				assets.DELETE("/:id", middleware.RequirePermission(entity.PermAssetDelete), h.Asset.Delete)
			}

			// 维护计划随资产权限
			plans := authorized.Group("/maintenance-plans")
			{
				plans.GET("", h.Plan.List)
				plans.POST("", middleware.RequirePermission(entity.PermAssetUpdate), h.Plan.Create)
				plans.GET("/:id", h.Plan.Get)
				plans.PUT("/:id", middleware.RequirePermission(entity.PermAssetUpdate), h.Plan.Update)
				plans.PUT("/:id/status", middleware.RequirePermission(entity.PermAssetUpdate), h.Plan.UpdateStatus)
				plans.DELETE("/:id", middleware.RequirePermission(entity.PermAssetUpdate), h.Plan.Delete)
			}

			// 班次维护记录
			records := authorized.Group("/shift-records")
			{
				records.GET("", h.ShiftRecord.List)
				records.GET("/stats", h.ShiftRecord.Stats)
				records.GET("/template", h.ShiftRecord.Template)
				records.GET("/export", h.ShiftRecord.Export)
				records.POST("/import", middleware.RequirePermission(entity.PermRecordCreate), h.ShiftRecord.Import)
				records.POST("", middleware.RequirePermission(entity.PermRecordCreate), h.ShiftRecord.Create)
				records.GET("/:id", h.ShiftRecord.Get)
				records.PUT("/:id", middleware.RequirePermission(entity.PermRecordUpdate), h.ShiftRecord.Update)
				records.DELETE("/:id", middleware.RequirePermission(entity.PermRecordDelete), h.ShiftRecord.Delete)
			}

			// 任务计划，实施人权限由服务层判断
			tasks := authorized.Group("/task-plans")
			{
				tasks.GET("", h.TaskPlan.List)
				tasks.GET("/template", h.TaskPlan.Template)
				tasks.GET("/export", h.TaskPlan.Export)
				tasks.POST("/import", admin, h.TaskPlan.Import)
				tasks.POST("", h.TaskPlan.Create)
				tasks.GET("/:id", h.TaskPlan.Get)
				tasks.PUT("/:id", h.TaskPlan.Update)
				tasks.DELETE("/:id", h.TaskPlan.Delete)
			}

			// 维护手册
			manuals := authorized.Group("/manuals")
			{
				manuals.GET("", h.Manual.List)
				manuals.POST("", middleware.RequirePermission(entity.PermManualCreate), h.Manual.Create)
				manuals.GET("/:id", h.Manual.Get)
				manuals.PUT("/:id", middleware.RequirePermission(entity.PermManualUpdate), h.Manual.Update)
				manuals.DELETE("/:id", middleware.RequirePermission(entity.PermManualDelete), h.Manual.Delete)

				manuals.GET("/:id/steps", h.Manual.ListSteps)
				manuals.POST("/:id/steps", middleware.RequirePermission(entity.PermManualUpdate), h.Manual.CreateStep)
				manuals.PUT("/:id/steps/:stepId", middleware.RequirePermission(entity.PermManualUpdate), h.Manual.UpdateStep)
				manuals.DELETE("/:id/steps/:stepId", middleware.RequirePermission(entity.PermManualUpdate), h.Manual.DeleteStep)
				manuals.POST("/:id/steps/:stepId/media", middleware.RequirePermission(entity.PermManualUpdate), h.Manual.UploadStepMedia)
			}

			// 故障案例
			cases := authorized.Group("/cases")
			{
				cases.GET("", h.Case.List)
				cases.POST("", middleware.RequirePermission(entity.PermCaseCreate), h.Case.Create)
				cases.GET("/:id", h.Case.Get)
				cases.PUT("/:id", middleware.RequirePermission(entity.PermCaseUpdate), h.Case.Update)
				cases.DELETE("/:id", middleware.RequirePermission(entity.PermCaseDelete), h.Case.Delete)
				cases.POST("/:id/media", middleware.RequirePermission(entity.PermCaseUpdate), h.Case.UploadMedia)
			}

			// 媒体下载，支持 ?token= 以便 <img>/<video> 直接引用
			authorized.GET("/media/*key", h.Media.Download)

			// 看板
			dashboard := authorized.Group("/dashboard")
			{
				dashboard.GET("/overview", h.Dashboard.Overview)
				dashboard.GET("/active-users", h.Dashboard.ActiveUsers)
				dashboard.GET("/task-status", h.Dashboard.TaskStatus)
				dashboard.GET("/recent-activities", h.Dashboard.RecentActivities)
				dashboard.GET("/weekly-trends", h.Dashboard.WeeklyTrends)
				dashboard.GET("/maintenance-rate", h.Dashboard.MaintenanceRate)
			}
		}
	}
}
