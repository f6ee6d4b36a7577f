package service

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"github.com/jionychiow/CMSS-SOFT/internal/cmms/repository"
	"gopkg.in/yaml.v3"
)

// SeedItem 期数、工序、班次类型等配置项
type SeedItem struct {
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// SeedLine 产线，按期数代码归属
type SeedLine struct {
	SeedItem `yaml:",inline"`
	Phase    string `yaml:"phase"`
}

// SeedOrganization 组织及配额
type SeedOrganization struct {
	Name            string `yaml:"name"`
	Subdomain       string `yaml:"subdomain"`
	MaxAssets       int    `yaml:"max_assets"`
	MaxUsers        int    `yaml:"max_users"`
	MaxActiveOrders int    `yaml:"max_active_orders"`
}

// SeedUser 用户，password 为明文
type SeedUser struct {
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	Name         string `yaml:"name"`
	Type         string `yaml:"type"`
	Organization string `yaml:"organization"`
	Phase        string `yaml:"phase"`
	Shift        string `yaml:"shift"`
}

// SeedData 初始化数据文件
type SeedData struct {
	Organizations []SeedOrganization `yaml:"organizations"`
	Phases        []SeedItem         `yaml:"phases"`
	Processes     []SeedItem         `yaml:"processes"`
	ShiftTypes    []SeedItem         `yaml:"shift_types"`
	Lines         []SeedLine         `yaml:"production_lines"`
	Users         []SeedUser         `yaml:"users"`
}

// SeedResult 各类新建的数量，已存在的跳过
type SeedResult struct {
	Organizations int `json:"organizations"`
	Phases        int `json:"phases"`
	Processes     int `json:"processes"`
	ShiftTypes    int `json:"shift_types"`
	Lines         int `json:"production_lines"`
	Users         int `json:"users"`
}

// LoadSeedFile 读取 YAML 初始化数据
func LoadSeedFile(path string) (*SeedData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(raw)
}

func ParseSeed(raw []byte) (*SeedData, error) {
	var data SeedData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &data, nil
}

// Seed 写入初始化数据，可重复执行
func Seed(ctx context.Context, repos *repository.Repositories, data *SeedData) (*SeedResult, error) {
	result := &SeedResult{}
	cfg := repos.Config

	orgs := map[string]string{}
	for _, o := range data.Organizations {
		org, err := repos.User.FindOrganizationBySubdomain(ctx, o.Subdomain)
		if errors.Is(err, repository.ErrNotFound) {
			org = &entity.Organization{
				ID:              newID(),
				Name:            o.Name,
				Subdomain:       o.Subdomain,
				MaxAssets:       o.MaxAssets,
				MaxUsers:        o.MaxUsers,
				MaxActiveOrders: o.MaxActiveOrders,
			}
			err = repos.User.CreateOrganization(ctx, org)
			result.Organizations++
		}
		if err != nil {
			return nil, fmt.Errorf("seed organization %s: %w", o.Subdomain, err)
		}
		orgs[o.Subdomain] = org.ID
	}

	phases := map[string]string{}
	for _, p := range data.Phases {
		phase, err := cfg.FindPhaseByCode(ctx, p.Code)
		if errors.Is(err, repository.ErrNotFound) {
			phase = &entity.PlantPhase{ID: newID(), Code: p.Code, Name: p.Name, Description: p.Description, IsActive: true}
			err = cfg.CreatePhase(ctx, phase)
			result.Phases++
		}
		if err != nil {
			return nil, fmt.Errorf("seed phase %s: %w", p.Code, err)
		}
		phases[p.Code] = phase.ID
	}

	for _, p := range data.Processes {
		_, err := cfg.FindProcessByNameOrCode(ctx, p.Code)
		if errors.Is(err, repository.ErrNotFound) {
			err = cfg.CreateProcess(ctx, &entity.Process{ID: newID(), Code: p.Code, Name: p.Name, Description: p.Description, IsActive: true})
			result.Processes++
		}
		if err != nil {
			return nil, fmt.Errorf("seed process %s: %w", p.Code, err)
		}
	}

	shifts := map[string]string{}
	for _, st := range data.ShiftTypes {
		shift, err := cfg.FindShiftTypeByCode(ctx, st.Code)
		if errors.Is(err, repository.ErrNotFound) {
			shift = &entity.ShiftType{ID: newID(), Code: st.Code, Name: st.Name, Description: st.Description, IsActive: true}
			err = cfg.CreateShiftType(ctx, shift)
			result.ShiftTypes++
		}
		if err != nil {
			return nil, fmt.Errorf("seed shift type %s: %w", st.Code, err)
		}
		shifts[st.Code] = shift.ID
	}

	for _, l := range data.Lines {
		phaseID, ok := phases[l.Phase]
		if !ok {
			return nil, fmt.Errorf("seed line %s: unknown phase %s", l.Code, l.Phase)
		}
		_, err := cfg.FindLineByNameOrCode(ctx, phaseID, l.Code)
		if errors.Is(err, repository.ErrNotFound) {
			err = cfg.CreateLine(ctx, &entity.ProductionLine{
				ID: newID(), Code: l.Code, Name: l.Name, PhaseID: phaseID, Description: l.Description, IsActive: true,
			})
			result.Lines++
		}
		if err != nil {
			return nil, fmt.Errorf("seed line %s: %w", l.Code, err)
		}
	}

	for _, u := range data.Users {
		if _, err := repos.User.FindByUsername(ctx, u.Username); err == nil {
			continue
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("seed user %s: %w", u.Username, err)
		}
		orgID, ok := orgs[u.Organization]
		if !ok {
			return nil, fmt.Errorf("seed user %s: unknown organization %s", u.Username, u.Organization)
		}
		hash, err := HashPassword(u.Password)
		if err != nil {
			return nil, err
		}
		user := &entity.User{
			ID:             newID(),
			Username:       u.Username,
			PasswordHash:   hash,
			Name:           u.Name,
			OrganizationID: orgID,
			Type:           defaultString(u.Type, entity.UserTypeOperator),
			Status:         "active",

			CanAddMaintenanceRecords:  true,
			CanEditMaintenanceRecords: true,
			CanAddCases:               true,
		}
		if id, ok := phases[u.Phase]; ok {
			user.PhaseID = &id
		}
		if id, ok := shifts[u.Shift]; ok {
			user.ShiftTypeID = &id
		}
		if err := repos.User.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("seed user %s: %w", u.Username, err)
		}
		result.Users++
	}
	return result, nil
}
