package builder

import (
	"context"
	"fmt"

	"github.com/quanhr/hr-workflow/internal/domain/entity"
	domainwf "github.com/quanhr/hr-workflow/internal/domain/workflow"
	"go.uber.org/zap"
)

// PointsRedemptionRequest carries the business inputs of a points redemption.
type PointsRedemptionRequest struct {
	CompanyID       string
	EmployeeID      string
	Amount          int64
	RewardName      string
	RelatedEntityID string
	InitiatorID     string
	InitiatorName   string
	CustomSteps     []entity.WorkflowStep
}

// BuildPointsRedemption creates the redemption workflow. There is no
// approval gate; the chain is purely sequential task steps: the employee
// submits, the system deducts the balance, HR fulfils the reward, and the
// system closes the request.
func (b *Builder) BuildPointsRedemption(ctx context.Context, req PointsRedemptionRequest) (*entity.WorkflowInstance, error) {
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
			entity.NewPendingStep("Submit redemption", entity.StepKindTask, entity.AssignUser(emp.ID, emp.Name)),
			entity.NewPendingStep("Deduct points", entity.StepKindTask, entity.AssignRole(entity.RoleSystem)),
			entity.NewPendingStep("Fulfil reward", entity.StepKindTask, entity.AssignRole(entity.RoleHR)),
			entity.NewPendingStep("Close redemption", entity.StepKindTask, entity.AssignRole(entity.RoleSystem)),
		}
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: step list is empty", domainwf.ErrInvalidSpec)
	}

	inst := &entity.WorkflowInstance{
		CompanyID:         req.CompanyID,
		TemplateName:      "Points redemption",
		Type:              entity.WorkflowTypePointsRedemption,
		Name:              fmt.Sprintf("Redemption of %d pts by %s", req.Amount, emp.Name),
		InitiatorID:       req.InitiatorID,
		InitiatorName:     req.InitiatorName,
		RelatedEntityType: "redemption_request",
		RelatedEntityID:   req.RelatedEntityID,
		RelatedEntityName: req.RewardName,
		Priority:          b.priorityForAmount(req.Amount),
		Steps:             start(steps),
		FormData: map[string]interface{}{
			"amount":      req.Amount,
			"reward_name": req.RewardName,
			"employee":    employeeSnapshot(emp),
		},
	}

	b.logger.Info("Building points redemption workflow",
		zap.String("company_id", req.CompanyID),
		zap.String("employee_id", req.EmployeeID),
		zap.Int64("amount", req.Amount))

	return b.engine.CreateInstance(ctx, inst)
}
