package builder

import (
	"context"
	"fmt"
	"time"

	"github.com/quanhr/hr-workflow/internal/application/port"
	"github.com/quanhr/hr-workflow/internal/application/workflow"
	"github.com/quanhr/hr-workflow/internal/domain/entity"
	domainwf "github.com/quanhr/hr-workflow/internal/domain/workflow"
	"go.uber.org/zap"
)

// Config carries the business thresholds the builders branch on. Amounts are
// in points.
type Config struct {
	// DeptHeadThreshold is the amount above which a department-head approval
	// step is appended.
	DeptHeadThreshold int64
	// HRThreshold is the amount above which an HR approval step is appended.
	// Must be greater than DeptHeadThreshold.
	HRThreshold int64
}

// Validate checks threshold ordering
func (c Config) Validate() error {
	if c.DeptHeadThreshold <= 0 || c.HRThreshold <= 0 {
		return fmt.Errorf("thresholds must be positive")
	}
	if c.HRThreshold <= c.DeptHeadThreshold {
		return fmt.Errorf("hr threshold %d must exceed department head threshold %d",
			c.HRThreshold, c.DeptHeadThreshold)
	}
	return nil
}

// Builder constructs workflow instances for each business process kind. Each
// build method is the only place the per-kind step policy lives: it resolves
// the business entities needed for assignment, decides the step list, and
// hands the result to the engine. Builders never mutate an instance after
// creation.
type Builder struct {
	engine    workflow.Engine
	employees port.EmployeeRepository
	cfg       Config
	logger    *zap.Logger
}

// New creates a workflow builder
func New(engine workflow.Engine, employees port.EmployeeRepository, cfg Config, logger *zap.Logger) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid builder config: %w", err)
	}
	return &Builder{
		engine:    engine,
		employees: employees,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// resolveEmployee loads the subject of a workflow
func (b *Builder) resolveEmployee(ctx context.Context, companyID, employeeID string) (*entity.Employee, error) {
	emp, err := b.employees.GetByID(ctx, companyID, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve employee %s: %w", employeeID, err)
	}
	if emp == nil {
		return nil, fmt.Errorf("%w: employee %s not found in company %s", domainwf.ErrInvalidSpec, employeeID, companyID)
	}
	return emp, nil
}

// managerAssignee assigns to the subject's direct manager when known,
// falling back to the department-manager role pool.
func managerAssignee(emp *entity.Employee) entity.Assignee {
	if emp.ManagerID != "" {
		return entity.AssignUser(emp.ManagerID, emp.ManagerName)
	}
	return entity.AssignRole(entity.RoleDepartmentManager)
}

// start marks the first step in_progress. Callers pass either the computed
// default chain or a caller-supplied customSteps override; an override fully
// replaces the defaults, never merges with them.
func start(steps []entity.WorkflowStep) []entity.WorkflowStep {
	now := time.Now()
	steps[0].Status = entity.StepStatusInProgress
	steps[0].StartTime = &now
	return steps
}

// priorityForAmount derives display priority from business magnitude
func (b *Builder) priorityForAmount(amount int64) string {
	switch {
	case amount > b.cfg.HRThreshold:
		return entity.PriorityHigh
	case amount > b.cfg.DeptHeadThreshold:
		return entity.PriorityMedium
	default:
		return entity.PriorityLow
	}
}

func employeeSnapshot(emp *entity.Employee) map[string]interface{} {
	return map[string]interface{}{
		"id":         emp.ID,
		"name":       emp.Name,
		"department": emp.Department,
		"position":   emp.Position,
	}
}
