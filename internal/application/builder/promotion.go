package builder

import (
	"context"
	"fmt"

	"github.com/quanhr/hr-workflow/internal/domain/entity"
	domainwf "github.com/quanhr/hr-workflow/internal/domain/workflow"
	"go.uber.org/zap"
)

// PromotionRequest carries the business inputs of a promotion.
type PromotionRequest struct {
	CompanyID     string
	EmployeeID    string
	ToPosition    string
	EffectiveDate string
	Justification string
	InitiatorID   string
	InitiatorName string
	CustomSteps   []entity.WorkflowStep
}

// BuildPromotion creates the promotion workflow: direct-manager approval, HR
// approval, then a system task making the new position effective.
func (b *Builder) BuildPromotion(ctx context.Context, req PromotionRequest) (*entity.WorkflowInstance, error) {
	if req.ToPosition == "" {
		return nil, fmt.Errorf("%w: target position is required", domainwf.ErrInvalidSpec)
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
			entity.NewPendingStep("Apply promotion", entity.StepKindTask, entity.AssignRole(entity.RoleSystem)),
		}
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: step list is empty", domainwf.ErrInvalidSpec)
	}

	inst := &entity.WorkflowInstance{
		CompanyID:         req.CompanyID,
		TemplateName:      "Promotion approval",
		Type:              entity.WorkflowTypePromotion,
		Name:              fmt.Sprintf("Promotion of %s to %s", emp.Name, req.ToPosition),
		Description:       req.Justification,
		InitiatorID:       req.InitiatorID,
		InitiatorName:     req.InitiatorName,
		RelatedEntityType: "employee",
		RelatedEntityID:   emp.ID,
		RelatedEntityName: emp.Name,
		Priority:          entity.PriorityHigh,
		Steps:             start(steps),
		FormData: map[string]interface{}{
			"from_position":  emp.Position,
			"to_position":    req.ToPosition,
			"effective_date": req.EffectiveDate,
			"justification":  req.Justification,
			"employee":       employeeSnapshot(emp),
		},
	}

	b.logger.Info("Building promotion workflow",
		zap.String("company_id", req.CompanyID),
		zap.String("employee_id", req.EmployeeID),
		zap.String("to_position", req.ToPosition))

	return b.engine.CreateInstance(ctx, inst)
}
