package port

import (
	"context"

	"github.com/quanhr/hr-workflow/internal/domain/entity"
)

// Notifier delivers step assignment and terminal notices to actors. Delivery
// is an external concern; the engine only hands over the facts.
type Notifier interface {
	NotifyStepAssigned(ctx context.Context, inst *entity.WorkflowInstance, step *entity.WorkflowStep) error
	NotifyInstanceFinished(ctx context.Context, inst *entity.WorkflowInstance) error
}

// ReportWriter synthesizes a human-readable narrative of an instance from
// its audit trail.
type ReportWriter interface {
	WriteSummary(ctx context.Context, inst *entity.WorkflowInstance, history []*entity.WorkflowHistory) (string, error)
}

// AutomationFunc performs the business effect behind a system-assigned task
// step (grant points, activate a rule, revoke access). It returns the form
// data to record on the completed step.
type AutomationFunc func(ctx context.Context, inst *entity.WorkflowInstance, step *entity.WorkflowStep) (map[string]interface{}, error)
