package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/repository"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var assetHeaders = []string{
	"设备名称", "设备编号", "期别", "工序", "产线", "设备类型", "位置",
	"购买日期", "保修到期日", "成本", "当前价值", "状态", "状态详情",
}

var assetWidths = []float64{20, 14, 8, 12, 12, 12, 14, 12, 12, 12, 12, 18, 14}

// 资产状态中文别名
var assetStatusAliases = map[string]string{
	"在用":  entity.AssetStatusActive,
	"正常":  entity.AssetStatusActive,
	"停用":  entity.AssetStatusInactive,
	"维护中": entity.AssetStatusUnderMaintenance,
	"保养中": entity.AssetStatusUnderMaintenance,
	"报废":  entity.AssetStatusRetired,
}

// AssetExcelService 资产导入导出
type AssetExcelService struct {
	assets     *AssetService
	repo       *repository.AssetRepository
	configRepo *repository.ConfigRepository
	loc        *time.Location
}

func NewAssetExcelService(assets *AssetService, repo *repository.AssetRepository, configRepo *repository.ConfigRepository, loc *time.Location) *AssetExcelService {
	if loc == nil {
		loc = time.Local
	}
	return &AssetExcelService{assets: assets, repo: repo, configRepo: configRepo, loc: loc}
}

// TemplateAssets 资产导入模板
func (s *AssetExcelService) TemplateAssets() (*excelize.File, error) {
	sheet := "资产数据模板"
	f, err := newSheet(sheet, assetHeaders, assetWidths)
	if err != nil {
		return nil, err
	}
	samples := [][]interface{}{
		{"示例设备1", "EQP001", "一期", "PL", "1#", "Equipment", "车间A", "2023-01-01", "2025-01-01", "50000.00", "45000.00", "Active", "run"},
		{"示例设备2", "EQP002", "二期", "N1", "2-1#", "Equipment", "车间B", "2023-05-15", "2025-05-15", "75000.00", "70000.00", "Under Maintenance", "stop"},
	}
	for i, row := range samples {
		if err := writeRow(f, sheet, i+2, row); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

// ExportAssets 导出资产，phaseCode 为空时导出全部
func (s *AssetExcelService) ExportAssets(ctx context.Context, scope repository.Scope, phaseCode string) (*excelize.File, string, error) {
	phaseID := ""
	if phaseCode != "" {
		phase, err := s.configRepo.FindPhaseByCode(ctx, phaseCode)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, "", newError(ErrNotFound, "找不到对应的期数: %s", phaseCode)
			}
			return nil, "", err
		}
		phaseID = phase.ID
	}

	assets, err := s.repo.ListForExport(ctx, scope, phaseID)
	if err != nil {
		return nil, "", fmt.Errorf("查询资产失败: %w", err)
	}

	sheet := "资产数据"
	f, err := newSheet(sheet, assetHeaders, assetWidths)
	if err != nil {
		return nil, "", err
	}
	for i := range assets {
		a := &assets[i]
		var phase, process, line string
		if a.Phase != nil {
			phase = a.Phase.Name
		}
		if a.Process != nil {
			process = a.Process.Name
		}
		if a.ProductionLine != nil {
			line = a.ProductionLine.Name
		}
		cost, _ := a.Cost.Float64()
		value, _ := a.CurrentValue.Float64()
		row := []interface{}{
			a.Name, a.Ref, phase, process, line, a.AssetType, a.Location,
			formatDate(a.PurchaseDate, s.loc), formatDate(a.WarrantyExpirationDate, s.loc),
			cost, value, a.Status, a.State,
		}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			f.Close()
			return nil, "", fmt.Errorf("%w: %v", ErrExportRender, err)
		}
	}
	return f, attachmentName("资产数据", time.Now().In(s.loc)), nil
}

// ImportAssets 逐行导入资产，设备编号在组织内已存在时更新
func (s *AssetExcelService) ImportAssets(ctx context.Context, scope repository.Scope, rows [][]string) (*ImportResult, error) {
	if len(rows) == 0 {
		return nil, newError(ErrInvalidInput, "文件为空")
	}
	cols := newSheetColumns(rows[0])
	result := &ImportResult{Errors: []string{}}

	for i, row := range rows[1:] {
		rowNum := i + 2
		if isBlankRow(row) {
			continue
		}
		if err := s.importRow(ctx, scope, cols, row); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("第%d行处理失败: %v", rowNum, err))
			continue
		}
		result.ImportedCount++
	}
	return result, nil
}

func (s *AssetExcelService) importRow(ctx context.Context, scope repository.Scope, cols sheetColumns, row []string) error {
	name := cols.get(row, "设备名称")
	if name == "" {
		return errors.New("设备名称不能为空")
	}

	phaseID, err := s.lookup().phase(ctx, cols.get(row, "期数"))
	if err != nil {
		return err
	}
	processID, err := s.lookup().process(ctx, cols.get(row, "工序"))
	if err != nil {
		return err
	}
	lineID, err := s.lookup().line(ctx, phaseID, cols.get(row, "产线"))
	if err != nil {
		return err
	}

	status := cols.get(row, "状态")
	if alias, ok := assetStatusAliases[status]; ok {
		status = alias
	}

	var asset *entity.Asset
	ref := cols.get(row, "设备编号")
	if ref != "" {
		existing, err := s.repo.FindByRef(ctx, scope.OrgID, ref)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		asset = existing
	}
	isNew := asset == nil
	if isNew {
		asset = &entity.Asset{}
	}

	asset.Name = name
	asset.Ref = ref
	asset.AssetType = defaultString(cols.get(row, "设备类型"), "Equipment")
	asset.Location = cols.get(row, "位置")
	asset.PurchaseDate = parseDate(cols.get(row, "购买日期"), s.loc)
	asset.WarrantyExpirationDate = parseDate(cols.get(row, "保修到期日"), s.loc)
	asset.PhaseID = phaseID
	asset.ProcessID = processID
	asset.ProductionLineID = lineID
	asset.Cost = cellDecimal(cols.get(row, "成本"))
	asset.CurrentValue = cellDecimal(cols.get(row, "当前价值"))
	asset.Status = defaultString(status, entity.AssetStatusActive)
	asset.State = cols.get(row, "状态详情")

	if isNew {
		return s.assets.create(ctx, scope, asset)
	}
	if err := checkAccess(scope, asset.OrganizationID, asset.CreatedBy); err != nil {
		return err
	}
	return s.assets.save(ctx, scope, asset)
}

func (s *AssetExcelService) lookup() configLookup {
	return configLookup{repo: s.configRepo}
}

// cellDecimal 金额单元格，无法解析时为0
func cellDecimal(s string) decimal.Decimal {
	v, ok := parseNumber(s)
	if !ok {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v).Round(2)
}
