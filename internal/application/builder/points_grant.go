package builder

import (
	"context"
	"fmt"

	"github.com/quanhr/hr-workflow/internal/domain/entity"
	domainwf "github.com/quanhr/hr-workflow/internal/domain/workflow"
	"go.uber.org/zap"
)

// PointsGrantRequest carries the business inputs of a points award.
type PointsGrantRequest struct {
	CompanyID  string
	EmployeeID string
	Amount     int64
	Reason     string
	Category   string
	// RelatedEntityID links back to the points request record. At most one
	// active points_approval workflow may exist per request.
	RelatedEntityID string
	InitiatorID     string
	InitiatorName   string
	// CustomSteps, when supplied, fully replaces the computed chain.
	CustomSteps []entity.WorkflowStep
}

// BuildPointsGrant creates the approval workflow for awarding points. The
// base chain is direct-manager approval; amounts above the department-head
// threshold add a department-head step, amounts above the HR threshold add
// an HR step, and a system task granting the points always closes the chain.
func (b *Builder) BuildPointsGrant(ctx context.Context, req PointsGrantRequest) (*entity.WorkflowInstance, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: points amount must be positive, got %d", domainwf.ErrInvalidSpec, req.Amount)
	}

	emp, err := b.resolveEmployee(ctx, req.CompanyID, req.EmployeeID)
	if err != nil {
		return nil, err
	}

	steps := req.CustomSteps
	if steps == nil {
		steps = []entity.WorkflowStep{
			entity.NewPendingStep("Manager approval", entity.StepKindApproval, managerAssignee(emp)),
		}
		if req.Amount > b.cfg.DeptHeadThreshold {
			steps = append(steps, entity.NewPendingStep("Department head approval", entity.StepKindApproval,
				entity.AssignRole(entity.RoleDepartmentHead)))
		}
		if req.Amount > b.cfg.HRThreshold {
			steps = append(steps, entity.NewPendingStep("HR approval", entity.StepKindApproval,
				entity.AssignRole(entity.RoleHR)))
		}
		steps = append(steps, entity.NewPendingStep("Grant points", entity.StepKindTask,
			entity.AssignRole(entity.RoleSystem)))
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: step list is empty", domainwf.ErrInvalidSpec)
	}

	inst := &entity.WorkflowInstance{
		CompanyID:         req.CompanyID,
		TemplateName:      "Points grant approval",
		Type:              entity.WorkflowTypePointsGrant,
		Name:              fmt.Sprintf("Points grant for %s (%d pts)", emp.Name, req.Amount),
		InitiatorID:       req.InitiatorID,
		InitiatorName:     req.InitiatorName,
		RelatedEntityType: "points_request",
		RelatedEntityID:   req.RelatedEntityID,
		RelatedEntityName: fmt.Sprintf("%d points for %s", req.Amount, emp.Name),
		Priority:          b.priorityForAmount(req.Amount),
		Steps:             start(steps),
		FormData: map[string]interface{}{
			"amount":   req.Amount,
			"reason":   req.Reason,
			"category": req.Category,
			"employee": employeeSnapshot(emp),
		},
	}

	b.logger.Info("Building points grant workflow",
		zap.String("company_id", req.CompanyID),
		zap.String("employee_id", req.EmployeeID),
		zap.Int64("amount", req.Amount),
		zap.Int("steps", len(inst.Steps)))

	return b.engine.CreateInstance(ctx, inst)
}
