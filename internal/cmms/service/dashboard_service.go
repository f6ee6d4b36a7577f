package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/repository"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	overviewCacheTTL   = 30 * time.Second
	activeUsersWindow  = 15 * time.Minute
	recentActivitySize = 20
)

// 维修率统计周期对应的天数
var ratePeriodDays = map[string]int{
	"month":   30,
	"quarter": 90,
	"year":    365,
}

// DashboardService 仪表板统计
type DashboardService struct {
	repos *repository.Repositories
	rdb   *redis.Client
	loc   *time.Location
	now   func() time.Time
}

func NewDashboardService(repos *repository.Repositories, rdb *redis.Client, loc *time.Location) *DashboardService {
	if loc == nil {
		loc = time.Local
	}
	return &DashboardService{repos: repos, rdb: rdb, loc: loc, now: time.Now}
}

// Overview 首页汇总数字
type Overview struct {
	TotalAssets      int64 `json:"total_assets"`
	TotalRecords     int64 `json:"total_records"`
	Phase1Records    int64 `json:"phase_1_records"`
	Phase2Records    int64 `json:"phase_2_records"`
	TotalManuals     int64 `json:"total_manuals"`
	TodayTasks       int64 `json:"today_tasks"`
	IncompleteTasks  int64 `json:"incomplete_tasks"`
	InProgressTasks  int64 `json:"in_progress_tasks"`
	CompletedToday   int64 `json:"completed_today"`
	PendingPlanCount int64 `json:"pending_plan_count"`
}

func (s *DashboardService) overviewKey(orgID string) string {
	return "dashboard:overview:" + orgID
}

// Overview 并发统计各项数量，结果在 Redis 缓存30秒
func (s *DashboardService) Overview(ctx context.Context, orgID string) (*Overview, error) {
	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, s.overviewKey(orgID)).Bytes(); err == nil {
			var ov Overview
			if json.Unmarshal(cached, &ov) == nil {
				return &ov, nil
			}
		}
	}

	today := startOfDay(s.now(), s.loc)
	tomorrow := today.AddDate(0, 0, 1)
	todayFilter := repository.TaskPlanFilter{From: &today, To: &tomorrow}

	var ov Overview
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		ov.TotalAssets, err = s.repos.Asset.CountByOrg(gctx, orgID)
		return err
	})
	g.Go(func() (err error) {
		ov.TotalRecords, err = s.repos.ShiftRecord.CountByOrg(gctx, orgID, "")
		return err
	})
	g.Go(func() (err error) {
		ov.Phase1Records, err = s.recordsInPhase(gctx, orgID, "phase_1")
		return err
	})
	g.Go(func() (err error) {
		ov.Phase2Records, err = s.recordsInPhase(gctx, orgID, "phase_2")
		return err
	})
	g.Go(func() (err error) {
		ov.TotalManuals, err = s.repos.Manual.CountByOrg(gctx, orgID)
		return err
	})
	g.Go(func() (err error) {
		ov.TodayTasks, err = s.repos.TaskPlan.CountWhere(gctx, orgID, todayFilter)
		return err
	})
	g.Go(func() (err error) {
		ov.CompletedToday, err = s.repos.TaskPlan.CountWhere(gctx, orgID, todayFilter, entity.TaskStatusCompleted)
		return err
	})
	g.Go(func() (err error) {
		ov.IncompleteTasks, err = s.repos.TaskPlan.CountWhere(gctx, orgID, repository.TaskPlanFilter{},
			entity.TaskStatusPending, entity.TaskStatusInProgress)
		return err
	})
	g.Go(func() (err error) {
		ov.InProgressTasks, err = s.repos.TaskPlan.CountWhere(gctx, orgID, repository.TaskPlanFilter{}, entity.TaskStatusInProgress)
		return err
	})
	g.Go(func() (err error) {
		ov.PendingPlanCount, err = s.repos.Plan.CountOpenByOrg(gctx, orgID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("统计概览失败: %w", err)
	}

	if s.rdb != nil {
		if data, err := json.Marshal(&ov); err == nil {
			s.rdb.Set(ctx, s.overviewKey(orgID), data, overviewCacheTTL)
		}
	}
	return &ov, nil
}

func (s *DashboardService) recordsInPhase(ctx context.Context, orgID, code string) (int64, error) {
	phase, err := s.repos.Config.FindPhaseByCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return s.repos.ShiftRecord.CountByOrg(ctx, orgID, phase.ID)
}

// ActiveUsers 最近15分钟有活动的用户数
func (s *DashboardService) ActiveUsers(ctx context.Context, orgID string) (int64, error) {
	n, err := s.repos.Activity.CountActiveUsers(ctx, orgID, s.now().Add(-activeUsersWindow))
	if err != nil {
		return 0, fmt.Errorf("统计活跃用户失败: %w", err)
	}
	return n, nil
}

// StatusBucket 任务状态分布中的一项
type StatusBucket struct {
	Status string `json:"status"`
	Label  string `json:"label"`
	Count  int64  `json:"count"`
}

// TaskStatus 今日任务状态分布，另加逾期未开始的任务
func (s *DashboardService) TaskStatus(ctx context.Context, orgID string) ([]StatusBucket, error) {
	today := startOfDay(s.now(), s.loc)
	rows, err := s.repos.TaskPlan.CountByStatusOn(ctx, orgID, today)
	if err != nil {
		return nil, fmt.Errorf("统计任务状态失败: %w", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	overdue, err := s.repos.TaskPlan.CountOverdue(ctx, orgID, today)
	if err != nil {
		return nil, fmt.Errorf("统计逾期任务失败: %w", err)
	}

	buckets := make([]StatusBucket, 0, len(taskStatuses)+1)
	for _, status := range taskStatuses {
		buckets = append(buckets, StatusBucket{
			Status: status,
			Label:  entity.TaskStatusLabels[status],
			Count:  counts[status],
		})
	}
	buckets = append(buckets, StatusBucket{Status: "overdue", Label: "已逾期", Count: overdue})
	return buckets, nil
}

// RecentActivities 最近20条活动
func (s *DashboardService) RecentActivities(ctx context.Context, orgID string) ([]entity.UserActivity, error) {
	items, err := s.repos.Activity.Recent(ctx, orgID, recentActivitySize)
	if err != nil {
		return nil, fmt.Errorf("查询最近活动失败: %w", err)
	}
	return items, nil
}

// DayVisits 某日访问量
type DayVisits struct {
	Date           string `json:"date"`
	Weekday        string `json:"weekday"`
	VisitCount     int    `json:"visit_count"`
	UniqueVisitors int    `json:"unique_visitors"`
}

var weekdayLabels = [...]string{"周日", "周一", "周二", "周三", "周四", "周五", "周六"}

// WeeklyTrends 本周一到周日的访问趋势，无数据的日期为0
func (s *DashboardService) WeeklyTrends(ctx context.Context) ([]DayVisits, error) {
	today := startOfDay(s.now(), s.loc)
	offset := (int(today.Weekday()) + 6) % 7
	monday := today.AddDate(0, 0, -offset)
	sunday := monday.AddDate(0, 0, 6)

	rows, err := s.repos.Activity.VisitsBetween(ctx, monday.Format(xlsxDateLayout), sunday.Format(xlsxDateLayout))
	if err != nil {
		return nil, fmt.Errorf("查询访问趋势失败: %w", err)
	}
	byDate := make(map[string]entity.VisitTrend, len(rows))
	for _, r := range rows {
		byDate[r.Date] = r
	}

	days := make([]DayVisits, 0, 7)
	for i := 0; i < 7; i++ {
		day := monday.AddDate(0, 0, i)
		date := day.Format(xlsxDateLayout)
		row := byDate[date]
		days = append(days, DayVisits{
			Date:           date,
			Weekday:        weekdayLabels[day.Weekday()],
			VisitCount:     row.VisitCount,
			UniqueVisitors: row.UniqueVisitors,
		})
	}
	return days, nil
}

// RateQuery 维修率查询条件，工序和产线按ID传入
type RateQuery struct {
	Period           string `form:"period"`
	PhaseCode        string `form:"phase_id"`
	ProcessID        string `form:"process_id"`
	ProductionLineID string `form:"production_line_id"`
}

// DailyCount 每日维修数量
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// RateBucket 按工序、产线、期别分组的维修数量
type RateBucket struct {
	Process        string `json:"process"`
	ProductionLine string `json:"production_line"`
	Phase          string `json:"phase"`
	Count          int64  `json:"count"`
}

// MaintenanceRate 维修率统计结果
type MaintenanceRate struct {
	Period     string       `json:"period"`
	TotalCount int64        `json:"total_maintenance_count"`
	Daily      []DailyCount `json:"line_chart_data"`
	Breakdown  []RateBucket `json:"bar_chart_data"`
}

// MaintenanceRate 最近一个周期内按创建时间统计的维修记录。
// 未知的周期按月处理；找不到的工序或产线不参与过滤
func (s *DashboardService) MaintenanceRate(ctx context.Context, scope repository.Scope, q RateQuery) (*MaintenanceRate, error) {
	days, ok := ratePeriodDays[q.Period]
	if !ok {
		q.Period, days = "month", ratePeriodDays["month"]
	}
	end := s.now()
	result := &MaintenanceRate{Period: q.Period, Daily: []DailyCount{}, Breakdown: []RateBucket{}}
	f := repository.RateFilter{From: end.AddDate(0, 0, -days), To: end}

	if q.PhaseCode != "" {
		phase, err := s.repos.Config.FindPhaseByCode(ctx, q.PhaseCode)
		if errors.Is(err, repository.ErrNotFound) {
			return result, nil
		}
		if err != nil {
			return nil, err
		}
		f.PhaseID = phase.ID
	}
	if q.ProcessID != "" {
		if p, err := s.repos.Config.FindProcess(ctx, q.ProcessID); err == nil {
			f.Process = p.Name
		}
	}
	if q.ProductionLineID != "" {
		if l, err := s.repos.Config.FindLine(ctx, q.ProductionLineID); err == nil {
			f.ProductionLine = l.Name
		}
	}

	records, err := s.repos.ShiftRecord.ListForRate(ctx, scope, f)
	if err != nil {
		return nil, fmt.Errorf("统计维修率失败: %w", err)
	}
	phases, err := s.repos.Config.ListPhases(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("查询期数失败: %w", err)
	}
	phaseNames := make(map[string]string, len(phases))
	for _, p := range phases {
		phaseNames[p.ID] = p.Name
	}

	daily := map[string]int64{}
	buckets := map[RateBucket]int64{}
	for i := range records {
		rec := &records[i]
		daily[rec.CreatedAt.In(s.loc).Format(xlsxDateLayout)]++
		key := RateBucket{
			Process:        defaultString(rec.Process, "未知工段"),
			ProductionLine: defaultString(rec.ProductionLine, "未知产线"),
			Phase:          defaultString(phaseNames[rec.PhaseID], "未知期别"),
		}
		buckets[key]++
	}

	result.TotalCount = int64(len(records))
	for date, n := range daily {
		result.Daily = append(result.Daily, DailyCount{Date: date, Count: n})
	}
	sort.Slice(result.Daily, func(i, j int) bool { return result.Daily[i].Date < result.Daily[j].Date })
	for key, n := range buckets {
		key.Count = n
		result.Breakdown = append(result.Breakdown, key)
	}
	sort.Slice(result.Breakdown, func(i, j int) bool {
		a, b := result.Breakdown[i], result.Breakdown[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.Phase != b.Phase {
			return a.Phase < b.Phase
		}
		if a.Process != b.Process {
			return a.Process < b.Process
		}
		return a.ProductionLine < b.ProductionLine
	})
	return result, nil
}

