// Package automation holds the business effects behind system-assigned task
// steps. Each handler is keyed by workflow type and dispatched by the
// automation worker when a system step becomes current.
package automation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/quanhr/hr-workflow/internal/application/port"
	"github.com/quanhr/hr-workflow/internal/domain/entity"
)

// Registry accepts per-workflow-type automation handlers.
type Registry interface {
	RegisterHandler(workflowType string, fn port.AutomationFunc)
}

// RegisterHandlers binds the default handler set on the worker.
//
// The engine owns workflow state only; the effects here write back into the
// step's form data so the downstream systems of record (points ledger, HRIS,
// IAM) can consume them from the audit trail. Direct integrations plug in by
// replacing individual handlers.
func RegisterHandlers(w Registry, logger *zap.Logger) {
	w.RegisterHandler(entity.WorkflowTypePointsGrant, grantPoints(logger))
	w.RegisterHandler(entity.WorkflowTypePointsRedemption, redeemPoints(logger))
	w.RegisterHandler(entity.WorkflowTypeRuleChange, applyRuleChange(logger))
	w.RegisterHandler(entity.WorkflowTypePromotion, applyPromotion(logger))
	w.RegisterHandler(entity.WorkflowTypeOffboarding, finalizeOffboarding(logger))
}

func grantPoints(logger *zap.Logger) port.AutomationFunc {
	return func(ctx context.Context, inst *entity.WorkflowInstance, step *entity.WorkflowStep) (map[string]interface{}, error) {
		logger.Info("Granting points",
			zap.Int64("instance_id", inst.ID),
			zap.Any("amount", inst.FormData["amount"]))
		return effect("points_granted"), nil
	}
}

func redeemPoints(logger *zap.Logger) port.AutomationFunc {
	return func(ctx context.Context, inst *entity.WorkflowInstance, step *entity.WorkflowStep) (map[string]interface{}, error) {
		// The redemption chain has two system steps; the step name decides
		// which effect runs.
		switch step.Name {
		case "Deduct points":
			logger.Info("Deducting points",
				zap.Int64("instance_id", inst.ID),
				zap.Any("amount", inst.FormData["amount"]))
			return effect("points_deducted"), nil
		default:
			logger.Info("Closing redemption", zap.Int64("instance_id", inst.ID))
			return effect("redemption_closed"), nil
		}
	}
}

func applyRuleChange(logger *zap.Logger) port.AutomationFunc {
	return func(ctx context.Context, inst *entity.WorkflowInstance, step *entity.WorkflowStep) (map[string]interface{}, error) {
		switch step.Name {
		case "Activate rule":
			logger.Info("Activating points rule",
				zap.Int64("instance_id", inst.ID),
				zap.String("rule_id", inst.RelatedEntityID))
			return effect("rule_activated"), nil
		default:
			logger.Info("Notifying employees of rule change", zap.Int64("instance_id", inst.ID))
			return effect("employees_notified"), nil
		}
	}
}

func applyPromotion(logger *zap.Logger) port.AutomationFunc {
	return func(ctx context.Context, inst *entity.WorkflowInstance, step *entity.WorkflowStep) (map[string]interface{}, error) {
		logger.Info("Applying promotion",
			zap.Int64("instance_id", inst.ID),
			zap.Any("to_position", inst.FormData["to_position"]))
		return effect("promotion_applied"), nil
	}
}

func finalizeOffboarding(logger *zap.Logger) port.AutomationFunc {
	return func(ctx context.Context, inst *entity.WorkflowInstance, step *entity.WorkflowStep) (map[string]interface{}, error) {
		logger.Info("Finalizing offboarding settlement",
			zap.Int64("instance_id", inst.ID),
			zap.String("employee", inst.RelatedEntityID))
		return effect("settlement_recorded"), nil
	}
}

func effect(name string) map[string]interface{} {
	return map[string]interface{}{
		"effect":      name,
		"effected_at": time.Now().Format(time.RFC3339),
	}
}
