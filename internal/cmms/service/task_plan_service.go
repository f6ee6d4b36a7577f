package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/repository"
)

var taskStatuses = []string{
	entity.TaskStatusPending, entity.TaskStatusInProgress, entity.TaskStatusCompleted, entity.TaskStatusCancelled,
}

// TaskPlanService 每日任务计划服务
type TaskPlanService struct {
	repo         *repository.TaskPlanRepository
	userRepo     *repository.UserRepository
	activityRepo *repository.ActivityRepository
	loc          *time.Location
}

func NewTaskPlanService(repo *repository.TaskPlanRepository, userRepo *repository.UserRepository, activityRepo *repository.ActivityRepository, loc *time.Location) *TaskPlanService {
	if loc == nil {
		loc = time.Local
	}
	return &TaskPlanService{repo: repo, userRepo: userRepo, activityRepo: activityRepo, loc: loc}
}

// TaskPlanRequest 创建/更新任务计划请求。
// 实施人可按用户ID或用户名指定，两者都为 nil 时更新不改变实施人
type TaskPlanRequest struct {
	Date              string   `json:"date"`
	TaskDescription   string   `json:"task_description"`
	AssignedUserIDs   []string `json:"assigned_user_ids"`
	AssignedUsernames []string `json:"assigned_usernames"`
	Status            string   `json:"status"`
	Progress          *float64 `json:"progress"`
	PhaseID           *string  `json:"phase_id"`
	ProcessID         *string  `json:"process_id"`
	ProductionLineID  *string  `json:"production_line_id"`
}

// progressOnly 只修改状态和进度
func (r *TaskPlanRequest) progressOnly() bool {
	return r.Date == "" && r.TaskDescription == "" &&
		r.AssignedUserIDs == nil && r.AssignedUsernames == nil &&
		r.PhaseID == nil && r.ProcessID == nil && r.ProductionLineID == nil
}

// TaskPlanQuery 列表过滤，Date 为 YYYY-MM-DD，Month 为 YYYY-MM
type TaskPlanQuery struct {
	Status  string
	PhaseID string
	Date    string
	Month   string
}

func (s *TaskPlanService) buildFilter(q TaskPlanQuery) (repository.TaskPlanFilter, error) {
	f := repository.TaskPlanFilter{Status: q.Status, PhaseID: q.PhaseID}
	if q.Date != "" {
		day, err := time.ParseInLocation(xlsxDateLayout, q.Date, s.loc)
		if err != nil {
			return f, newError(ErrInvalidInput, "日期格式不正确，请使用 YYYY-MM-DD 格式")
		}
		next := day.AddDate(0, 0, 1)
		f.From, f.To = &day, &next
		return f, nil
	}
	from, to, err := ParseMonth(q.Month, s.loc)
	if err != nil {
		return f, err
	}
	f.From, f.To = from, to
	return f, nil
}

func (s *TaskPlanService) List(ctx context.Context, scope repository.Scope, page, pageSize int, q TaskPlanQuery) ([]entity.TaskPlan, int64, error) {
	f, err := s.buildFilter(q)
	if err != nil {
		return nil, 0, err
	}
	items, total, err := s.repo.FindAll(ctx, scope, page, pageSize, f)
	if err != nil {
		return nil, 0, fmt.Errorf("查询任务计划失败: %w", err)
	}
	return items, total, nil
}

func (s *TaskPlanService) Get(ctx context.Context, scope repository.Scope, id string) (*entity.TaskPlan, error) {
	tp, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkAccess(scope, tp); err != nil {
		return nil, ErrNotFound
	}
	return tp, nil
}

// checkAccess 管理员、创建人和实施人可以操作
func (s *TaskPlanService) checkAccess(scope repository.Scope, tp *entity.TaskPlan) error {
	if scope.OrgID != "" && tp.OrganizationID != scope.OrgID {
		return ErrNotFound
	}
	if scope.Admin || tp.CreatedBy == scope.UserID {
		return nil
	}
	for _, u := range tp.AssignedUsers {
		if u.ID == scope.UserID {
			return nil
		}
	}
	return newError(ErrForbidden, "无权操作他人的任务计划")
}

// Create 创建任务计划，计划人数等于实施人数量
func (s *TaskPlanService) Create(ctx context.Context, scope repository.Scope, req *TaskPlanRequest) (*entity.TaskPlan, error) {
	if strings.TrimSpace(req.TaskDescription) == "" {
		return nil, newError(ErrInvalidInput, "任务计划不能为空")
	}
	day, err := s.parseDay(req.Date)
	if err != nil {
		return nil, err
	}
	tp := &entity.TaskPlan{
		ID:               newID(),
		OrganizationID:   scope.OrgID,
		CreatedBy:        scope.UserID,
		Date:             day,
		TaskDescription:  req.TaskDescription,
		Status:           defaultString(req.Status, entity.TaskStatusPending),
		PhaseID:          nilIfEmpty(req.PhaseID),
		ProcessID:        nilIfEmpty(req.ProcessID),
		ProductionLineID: nilIfEmpty(req.ProductionLineID),
	}
	if req.Progress != nil {
		tp.Progress = *req.Progress
	}
	users, err := s.resolveAssignees(ctx, scope.OrgID, req.AssignedUserIDs, req.AssignedUsernames)
	if err != nil {
		return nil, err
	}
	tp.AssignedUsers = users

	if err := s.validate(tp); err != nil {
		return nil, err
	}
	tp.Prepare(time.Now())
	if err := s.repo.Create(ctx, tp); err != nil {
		return nil, fmt.Errorf("创建任务计划失败: %w", err)
	}

	s.activityRepo.LogActivity(ctx, scope.UserID, entity.ActivityCreateTaskPlan,
		fmt.Sprintf("创建任务计划 %s", day.Format(xlsxDateLayout)),
		map[string]interface{}{"task_plan_id": tp.ID})
	return s.repo.FindByID(ctx, tp.ID)
}

// Update 更新任务计划，每次保存重算计划人数和完成时间
func (s *TaskPlanService) Update(ctx context.Context, scope repository.Scope, id string, req *TaskPlanRequest) (*entity.TaskPlan, error) {
	tp, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkAccess(scope, tp); err != nil {
		return nil, err
	}
	if !scope.Admin && tp.CreatedBy != scope.UserID && !req.progressOnly() {
		return nil, newError(ErrForbidden, "实施人只能更新状态和进度")
	}

	if req.Date != "" {
		day, err := s.parseDay(req.Date)
		if err != nil {
			return nil, err
		}
		tp.Date = day
	}
	if req.TaskDescription != "" {
		tp.TaskDescription = req.TaskDescription
	}
	if req.Status != "" {
		tp.Status = req.Status
	}
	if req.Progress != nil {
		tp.Progress = *req.Progress
	}
	if req.PhaseID != nil {
		tp.PhaseID = nilIfEmpty(req.PhaseID)
	}
	if req.ProcessID != nil {
		tp.ProcessID = nilIfEmpty(req.ProcessID)
	}
	if req.ProductionLineID != nil {
		tp.ProductionLineID = nilIfEmpty(req.ProductionLineID)
	}
	if req.AssignedUserIDs != nil || req.AssignedUsernames != nil {
		users, err := s.resolveAssignees(ctx, tp.OrganizationID, req.AssignedUserIDs, req.AssignedUsernames)
		if err != nil {
			return nil, err
		}
		tp.AssignedUsers = users
	}

	if err := s.validate(tp); err != nil {
		return nil, err
	}
	tp.Phase, tp.Process, tp.ProductionLine = nil, nil, nil
	tp.Prepare(time.Now())
	if err := s.repo.Update(ctx, tp); err != nil {
		return nil, fmt.Errorf("更新任务计划失败: %w", err)
	}

	s.activityRepo.LogActivity(ctx, scope.UserID, entity.ActivityEditTaskPlan,
		fmt.Sprintf("编辑任务计划 %s", tp.Date.Format(xlsxDateLayout)),
		map[string]interface{}{"task_plan_id": tp.ID, "status": tp.Status})
	return s.repo.FindByID(ctx, tp.ID)
}

func (s *TaskPlanService) Delete(ctx context.Context, scope repository.Scope, id string) error {
	tp, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	// 删除仅限创建人和管理员
	if err := checkAccess(scope, tp.OrganizationID, tp.CreatedBy); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("删除任务计划失败: %w", err)
	}
	return nil
}

func (s *TaskPlanService) validate(tp *entity.TaskPlan) error {
	if !inList(tp.Status, taskStatuses) {
		return newError(ErrInvalidInput, "任务状态无效: %s", tp.Status)
	}
	if tp.Progress < 0 || tp.Progress > 100 {
		return newError(ErrInvalidInput, "进度必须在0到100之间")
	}
	return nil
}

func (s *TaskPlanService) parseDay(v string) (time.Time, error) {
	if v == "" {
		return startOfDay(time.Now(), s.loc), nil
	}
	t := parseDate(v, s.loc)
	if t == nil {
		return time.Time{}, newError(ErrInvalidInput, "日期格式不正确: %s", v)
	}
	return *t, nil
}

// resolveAssignees 按ID和用户名查找组织内用户，任一不存在即报错
func (s *TaskPlanService) resolveAssignees(ctx context.Context, orgID string, ids, usernames []string) ([]entity.User, error) {
	seen := map[string]bool{}
	var users []entity.User

	ids = compact(ids)
	if len(ids) > 0 {
		found, err := s.userRepo.FindByIDs(ctx, orgID, ids)
		if err != nil {
			return nil, fmt.Errorf("查询实施人失败: %w", err)
		}
		if len(found) != len(ids) {
			return nil, newError(ErrInvalidInput, "部分实施人不存在")
		}
		for _, u := range found {
			if !seen[u.ID] {
				seen[u.ID] = true
				users = append(users, u)
			}
		}
	}

	usernames = compact(usernames)
	if len(usernames) > 0 {
		found, err := s.userRepo.FindByUsernames(ctx, orgID, usernames)
		if err != nil {
			return nil, fmt.Errorf("查询实施人失败: %w", err)
		}
		byName := make(map[string]entity.User, len(found))
		for _, u := range found {
			byName[u.Username] = u
		}
		for _, name := range usernames {
			u, ok := byName[name]
			if !ok {
				return nil, newError(ErrInvalidInput, "实施人不存在: %s", name)
			}
			if !seen[u.ID] {
				seen[u.ID] = true
				users = append(users, u)
			}
		}
	}
	return users, nil
}

// compact 去空白、去重
func compact(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
