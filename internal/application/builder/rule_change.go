package builder

import (
	"context"
	"fmt"

	"github.com/quanhr/hr-workflow/internal/domain/entity"
	domainwf "github.com/quanhr/hr-workflow/internal/domain/workflow"
	"go.uber.org/zap"
)

// RuleChangeRequest carries a proposed change to a points rule.
type RuleChangeRequest struct {
	CompanyID     string
	RuleID        string
	RuleName      string
	ChangeSummary string
	InitiatorID   string
	InitiatorName string
	CustomSteps   []entity.WorkflowStep
}

// BuildRuleChange creates the workflow governing a points rule change: HR
// review, management approval, then system activation and notification.
func (b *Builder) BuildRuleChange(ctx context.Context, req RuleChangeRequest) (*entity.WorkflowInstance, error) {
	if req.RuleID == "" {
		return nil, fmt.Errorf("%w: rule id is required", domainwf.ErrInvalidSpec)
	}

	steps := req.CustomSteps
	if steps == nil {
		steps = []entity.WorkflowStep{
			entity.NewPendingStep("HR review", entity.StepKindApproval, entity.AssignRole(entity.RoleHR)),
			entity.NewPendingStep("Management approval", entity.StepKindApproval, entity.AssignRole(entity.RoleManagement)),
			entity.NewPendingStep("Activate rule", entity.StepKindTask, entity.AssignRole(entity.RoleSystem)),
			entity.NewPendingStep("Notify employees", entity.StepKindTask, entity.AssignRole(entity.RoleSystem)),
		}
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: step list is empty", domainwf.ErrInvalidSpec)
	}

	inst := &entity.WorkflowInstance{
		CompanyID:         req.CompanyID,
		TemplateName:      "Points rule change",
		Type:              entity.WorkflowTypeRuleChange,
		Name:              fmt.Sprintf("Rule change: %s", req.RuleName),
		Description:       req.ChangeSummary,
		InitiatorID:       req.InitiatorID,
		InitiatorName:     req.InitiatorName,
		RelatedEntityType: "points_rule",
		RelatedEntityID:   req.RuleID,
		RelatedEntityName: req.RuleName,
		Priority:          entity.PriorityMedium,
		Steps:             start(steps),
		FormData: map[string]interface{}{
			"rule_id":        req.RuleID,
			"rule_name":      req.RuleName,
			"change_summary": req.ChangeSummary,
		},
	}

	b.logger.Info("Building rule change workflow",
		zap.String("company_id", req.CompanyID),
		zap.String("rule_id", req.RuleID))

	return b.engine.CreateInstance(ctx, inst)
}
