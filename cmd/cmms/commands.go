package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jionychiow/CMSS-SOFT/internal/cmms/repository"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	seedFile    string
	cleanupDays int
	importFile  string
	importOrg   string
	importUser  string
	importPhase string
	importShift string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "创建或更新数据库表结构",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openMigrated()
		if err != nil {
			return err
		}
		defer closeDB(db)
		zapLogger.Info("Database migration completed")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "导入初始数据（组织、期数、工序、班次、产线、用户），可重复执行",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := service.LoadSeedFile(seedFile)
		if err != nil {
			return err
		}
		db, err := openMigrated()
		if err != nil {
			return err
		}
		defer closeDB(db)

		result, err := service.Seed(cmd.Context(), repository.NewRepositories(db), data)
		if err != nil {
			return err
		}
		zapLogger.Info("Seed completed",
			zap.Int("organizations", result.Organizations),
			zap.Int("phases", result.Phases),
			zap.Int("processes", result.Processes),
			zap.Int("shift_types", result.ShiftTypes),
			zap.Int("lines", result.Lines),
			zap.Int("users", result.Users),
		)
		return nil
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "删除过期的注销令牌和活动日志",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := initDatabase(cfg.Database)
		if err != nil {
			return err
		}
		defer closeDB(db)

		days := cleanupDays
		if !cmd.Flags().Changed("days") && cfg.Scheduler.RetentionDays > 0 {
			days = cfg.Scheduler.RetentionDays
		}
		repos := repository.NewRepositories(db)
		result, err := service.NewCleanupService(repos.Token, repos.Activity, zapLogger).Run(cmd.Context(), days)
		if err != nil {
			return err
		}
		fmt.Printf("removed %d revoked tokens, %d activities\n", result.RevokedTokens, result.Activities)
		return nil
	},
}

var importRecordsCmd = &cobra.Command{
	Use:   "import-records",
	Short: "离线导入维护记录表格（xlsx 或 csv）",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImportRecords(cmd.Context())
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "configs/seed.yaml", "初始数据 YAML 文件")

	cleanupCmd.Flags().IntVar(&cleanupDays, "days", 7, "保留天数，默认取 scheduler.retention_days")

	importRecordsCmd.Flags().StringVar(&importFile, "file", "", "表格文件路径")
	importRecordsCmd.Flags().StringVar(&importOrg, "org", "", "组织ID")
	importRecordsCmd.Flags().StringVar(&importUser, "user", "", "记录创建人用户ID")
	importRecordsCmd.Flags().StringVar(&importPhase, "phase", "", "表格未填写期数时的默认期数代码")
	importRecordsCmd.Flags().StringVar(&importShift, "shift", "", "表格未填写班次时的默认班次代码")
	_ = importRecordsCmd.MarkFlagRequired("file")
	_ = importRecordsCmd.MarkFlagRequired("user")
}

func runImportRecords(ctx context.Context) error {
	f, err := os.Open(importFile)
	if err != nil {
		return fmt.Errorf("open %s: %w", importFile, err)
	}
	defer f.Close()

	rows, err := service.ReadSheetRows(filepath.Base(importFile), f)
	if err != nil {
		return err
	}

	db, err := openMigrated()
	if err != nil {
		return err
	}
	defer closeDB(db)

	svc := service.NewServices(repository.NewRepositories(db), nil, nil, cfg, zapLogger)
	scope := repository.Scope{OrgID: importOrg, UserID: importUser, Admin: true}
	result, err := svc.RecordExcel.ImportRecords(ctx, scope, rows, service.ImportDefaults{
		PhaseCode: importPhase,
		ShiftCode: importShift,
	})
	if err != nil {
		return err
	}

	fmt.Printf("imported %d records\n", result.ImportedCount)
	for _, msg := range result.Errors {
		fmt.Println("  " + msg)
	}
	return nil
}

func openMigrated() (*gorm.DB, error) {
	db, err := initDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		closeDB(db)
		return nil, err
	}
	return db, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
