package builder

import (
	"context"
	"fmt"

	"github.com/quanhr/hr-workflow/internal/domain/entity"
	domainwf "github.com/quanhr/hr-workflow/internal/domain/workflow"
	"go.uber.org/zap"
)

// OffboardingRequest carries the business inputs of an offboarding.
type OffboardingRequest struct {
	CompanyID      string
	EmployeeID     string
	LastWorkingDay string
	Reason         string
	InitiatorID    string
	InitiatorName  string
	CustomSteps    []entity.WorkflowStep
}

// BuildOffboarding creates the offboarding workflow: manager and HR
// approvals, then IT access revocation and the final settlement task.
func (b *Builder) BuildOffboarding(ctx context.Context, req OffboardingRequest) (*entity.WorkflowInstance, error) {
	if req.LastWorkingDay == "" {
		return nil, fmt.Errorf("%w: last working day is required", domainwf.ErrInvalidSpec)
	}

	emp, err := b.resolveEmployee(ctx, req.CompanyID, req.EmployeeID)
	if err != nil {
		return nil, err
	}

	steps := req.CustomSteps
	if steps == nil {
		steps = []entity.WorkflowStep{
			entity.NewPendingStep("Manager approval", entity.StepKindApproval, managerAssignee(emp)),
			entity.NewPendingStep("HR approval", entity.StepKindApproval, entity.AssignRole(entity.RoleHR)),
			entity.NewPendingStep("Revoke system access", entity.StepKindTask, entity.AssignRole(entity.RoleIT)),
			entity.NewPendingStep("Final settlement", entity.StepKindTask, entity.AssignRole(entity.RoleSystem)),
		}
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: step list is empty", domainwf.ErrInvalidSpec)
	}

	inst := &entity.WorkflowInstance{
		CompanyID:         req.CompanyID,
		TemplateName:      "Offboarding",
		Type:              entity.WorkflowTypeOffboarding,
		Name:              fmt.Sprintf("Offboarding of %s", emp.Name),
		Description:       req.Reason,
		InitiatorID:       req.InitiatorID,
		InitiatorName:     req.InitiatorName,
		RelatedEntityType: "employee",
		RelatedEntityID:   emp.ID,
		RelatedEntityName: emp.Name,
		Priority:          entity.PriorityHigh,
		Steps:             start(steps),
		FormData: map[string]interface{}{
			"last_working_day": req.LastWorkingDay,
			"reason":           req.Reason,
			"employee":         employeeSnapshot(emp),
		},
	}

	b.logger.Info("Building offboarding workflow",
		zap.String("company_id", req.CompanyID),
		zap.String("employee_id", req.EmployeeID))

	return b.engine.CreateInstance(ctx, inst)
}
