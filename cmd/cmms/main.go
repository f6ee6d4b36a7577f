package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/handler"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/repository"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/service"
	"github.com/jionychiow/CMSS-SOFT/internal/config"
	"github.com/jionychiow/CMSS-SOFT/internal/middleware"
	"github.com/jionychiow/CMSS-SOFT/internal/shared/scheduler"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

var (
	configPath string

	cfg       *config.Config
	zapLogger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "cmms",
	Short:         "工厂设备维护管理系统",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 加载 .env 文件
		if err := godotenv.Load(); err != nil {
			log.Printf("Warning: .env file not found, using environment variables")
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		zapLogger, err = initLogger(cfg.Log)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if zapLogger != nil {
			_ = zapLogger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP 服务",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径，默认查找 configs/config.yaml")
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd, cleanupCmd, importRecordsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe() error {
	zapLogger.Info("Starting cmms service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		return err
	}
	if err := migrate(db); err != nil {
		return err
	}

	rdb := initRedis(cfg.Redis, zapLogger)
	store := initStorage(cfg.MinIO, zapLogger)

	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, rdb, store, cfg, zapLogger)
	handlers := handler.NewHandlers(services, zapLogger)

	// 定时清理过期的注销令牌和活动日志
	sched := scheduler.New(zapLogger, 10*time.Minute)
	if cfg.Scheduler.Enabled {
		if err := sched.Register("cleanup", cfg.Scheduler.CleanupSpec, services.Cleanup.Job(cfg.Scheduler.RetentionDays)); err != nil {
			return fmt.Errorf("register cleanup job: %w", err)
		}
		sched.Start()
	}

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{"^/api/v1/media/"})))

	handler.RegisterRoutes(router, handlers, handler.RouteOptions{
		JWTSecret:  cfg.JWT.Secret,
		Version:    Version,
		BuildTime:  BuildTime,
		Revocation: services.Auth,
		Visits:     services.Activity,
		Logger:     zapLogger,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	errCh := make(chan error, 1)
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("start server: %w", err)
	}

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	sched.Stop(ctx)
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	zapLogger.Info("Server exited")
	return nil
}
