package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/quanhr/hr-workflow/internal/application/dispatcher"
	"github.com/quanhr/hr-workflow/internal/application/port"
	"github.com/quanhr/hr-workflow/internal/domain/entity"
	"github.com/quanhr/hr-workflow/internal/domain/event"
	domainwf "github.com/quanhr/hr-workflow/internal/domain/workflow"
	"go.uber.org/zap"
)

// engineImpl is the concrete implementation of Engine
type engineImpl struct {
	instanceRepo port.InstanceRepository
	historyRepo  port.HistoryRepository
	txManager    port.TransactionManager
	dispatcher   dispatcher.Dispatcher
	logger       *zap.Logger
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting transition events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	instanceRepo port.InstanceRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	logger *zap.Logger,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		instanceRepo: instanceRepo,
		historyRepo:  historyRepo,
		txManager:    txManager,
		logger:       logger,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// CreateInstance validates and persists a builder-produced instance
func (e *engineImpl) CreateInstance(ctx context.Context, inst *entity.WorkflowInstance) (*entity.WorkflowInstance, error) {
	if inst == nil {
		return nil, fmt.Errorf("%w: instance is nil", domainwf.ErrInvalidSpec)
	}

	now := time.Now()
	if inst.Status == "" {
		inst.Status = entity.InstanceStatusActive
	}
	if inst.Status != entity.InstanceStatusActive {
		return nil, fmt.Errorf("%w: new instance must be active, got %q", domainwf.ErrInvalidSpec, inst.Status)
	}
	if inst.Priority == "" {
		inst.Priority = entity.PriorityMedium
	}
	if inst.StartDate.IsZero() {
		inst.StartDate = now
	}

	if err := domainwf.ValidateNewInstance(inst); err != nil {
		return nil, err
	}

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if inst.RelatedEntityID != "" {
			existing, err := e.instanceRepo.FindActiveByEntity(txCtx, inst.CompanyID, inst.RelatedEntityID, inst.Type)
			if err != nil {
				return fmt.Errorf("failed to check for active workflow: %w", err)
			}
			if existing != nil {
				return fmt.Errorf("%w: instance %d is active for entity %s",
					domainwf.ErrDuplicateActiveWorkflow, existing.ID, inst.RelatedEntityID)
			}
		}

		if err := e.instanceRepo.Create(txCtx, inst); err != nil {
			return fmt.Errorf("failed to create instance: %w", err)
		}

		history := &entity.WorkflowHistory{
			InstanceID:   inst.ID,
			CompanyID:    inst.CompanyID,
			WorkflowType: inst.Type,
			Action:       entity.HistoryActionCreated,
			ActorID:      inst.InitiatorID,
			ActorName:    inst.InitiatorName,
			Description:  fmt.Sprintf("workflow %q created with %d steps", inst.Name, len(inst.Steps)),
			Metadata: map[string]interface{}{
				"type":         inst.Type,
				"step_count":   len(inst.Steps),
				"current_step": inst.CurrentStep().Name,
				"priority":     inst.Priority,
			},
		}
		if err := e.historyRepo.Create(txCtx, history); err != nil {
			return fmt.Errorf("failed to create history record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Workflow instance created",
		zap.Int64("instance_id", inst.ID),
		zap.String("company_id", inst.CompanyID),
		zap.String("type", inst.Type),
		zap.Int("steps", len(inst.Steps)))

	e.emit(ctx, event.NewEvent(event.TypeInstanceCreated, inst.ID, inst.CompanyID, map[string]interface{}{
		"type":         inst.Type,
		"current_step": inst.CurrentStep().Name,
	}))

	return inst, nil
}

// GetInstance fetches one instance, tenant scoped
func (e *engineImpl) GetInstance(ctx context.Context, companyID string, instanceID int64) (*entity.WorkflowInstance, error) {
	inst, err := e.instanceRepo.GetByID(ctx, companyID, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}
	if inst == nil {
		return nil, fmt.Errorf("%w: id %d", domainwf.ErrInstanceNotFound, instanceID)
	}
	return inst, nil
}

// ListInstances returns instances matching the filter, newest first
func (e *engineImpl) ListInstances(ctx context.Context, filter port.InstanceFilter) ([]*entity.WorkflowInstance, error) {
	return e.instanceRepo.List(ctx, filter)
}

// FindActiveByEntity returns the one active instance for an entity, or nil
func (e *engineImpl) FindActiveByEntity(ctx context.Context, companyID, relatedEntityID, workflowType string) (*entity.WorkflowInstance, error) {
	return e.instanceRepo.FindActiveByEntity(ctx, companyID, relatedEntityID, workflowType)
}

// AdvanceStep completes the current step of an instance
func (e *engineImpl) AdvanceStep(ctx context.Context, req AdvanceStepRequest) (*entity.WorkflowInstance, error) {
	result := req.Result
	if result == "" {
		result = entity.StepResultCompleted
	}

	var updated *entity.WorkflowInstance
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		inst, err := e.loadActive(txCtx, req.CompanyID, req.InstanceID)
		if err != nil {
			return err
		}

		cur := inst.CurrentStep()
		if cur == nil || cur.ID != req.StepID || cur.Status != entity.StepStatusInProgress {
			return fmt.Errorf("%w: step %s", domainwf.ErrStepMismatch, req.StepID)
		}

		now := time.Now()
		expectedVersion := inst.Version

		cur.Status = entity.StepStatusCompleted
		cur.EndTime = &now
		cur.Result = result
		cur.Comments = req.Comments
		if req.FormData != nil {
			cur.FormData = req.FormData
		}

		if req.AdvanceToNext {
			if inst.CurrentStepIndex == len(inst.Steps)-1 {
				inst.Status = entity.InstanceStatusCompleted
				inst.EndDate = &now
			} else {
				inst.CurrentStepIndex++
				next := inst.CurrentStep()
				next.Status = entity.StepStatusInProgress
				next.StartTime = &now
			}
		}

		if err := e.instanceRepo.UpdateTransition(txCtx, inst, expectedVersion); err != nil {
			return err
		}

		history := &entity.WorkflowHistory{
			InstanceID:   inst.ID,
			CompanyID:    inst.CompanyID,
			WorkflowType: inst.Type,
			Action:       entity.HistoryActionStepCompleted,
			ActorID:      req.Actor.ID,
			ActorName:    req.Actor.Name,
			ActorRole:    req.Actor.Role,
			Description:  fmt.Sprintf("step %q completed with result %q", cur.Name, result),
			Metadata: map[string]interface{}{
				"step_id":         cur.ID,
				"step_name":       cur.Name,
				"result":          result,
				"advance_to_next": req.AdvanceToNext,
				"instance_status": inst.Status,
			},
		}
		if err := e.historyRepo.Create(txCtx, history); err != nil {
			return fmt.Errorf("failed to create history record: %w", err)
		}

		updated = inst
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Workflow step advanced",
		zap.Int64("instance_id", updated.ID),
		zap.String("step_id", req.StepID),
		zap.String("result", result),
		zap.String("instance_status", updated.Status))

	e.emit(ctx, event.NewEvent(event.TypeStepAdvanced, updated.ID, updated.CompanyID, map[string]interface{}{
		"step_id": req.StepID,
		"result":  result,
	}))
	if updated.Status == entity.InstanceStatusCompleted {
		e.emit(ctx, event.NewEvent(event.TypeInstanceCompleted, updated.ID, updated.CompanyID, nil))
	}

	return updated, nil
}

// ApproveStep approves the current approval step
func (e *engineImpl) ApproveStep(ctx context.Context, req ApproveStepRequest) (*entity.WorkflowInstance, error) {
	inst, err := e.GetInstance(ctx, req.CompanyID, req.InstanceID)
	if err != nil {
		return nil, err
	}
	if inst.IsTerminal() {
		return nil, fmt.Errorf("%w: status %s", domainwf.ErrInstanceTerminal, inst.Status)
	}
	cur := inst.CurrentStep()
	if cur == nil || cur.ID != req.StepID {
		return nil, fmt.Errorf("%w: step %s", domainwf.ErrStepMismatch, req.StepID)
	}
	if cur.Kind != entity.StepKindApproval {
		return nil, fmt.Errorf("%w: step %q is a %s step", domainwf.ErrNotApprovalStep, cur.Name, cur.Kind)
	}

	// AdvanceStep re-validates under the optimistic guard, so this pre-check
	// racing another writer still resolves to exactly one winner.
	return e.AdvanceStep(ctx, AdvanceStepRequest{
		CompanyID:     req.CompanyID,
		InstanceID:    req.InstanceID,
		StepID:        req.StepID,
		Actor:         req.Actor,
		Result:        entity.StepResultApproved,
		Comments:      req.Comments,
		AdvanceToNext: true,
	})
}

// RejectStep cancels the instance, leaving the in-flight step untouched
func (e *engineImpl) RejectStep(ctx context.Context, req RejectStepRequest) (*entity.WorkflowInstance, error) {
	var updated *entity.WorkflowInstance
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		inst, err := e.loadActive(txCtx, req.CompanyID, req.InstanceID)
		if err != nil {
			return err
		}

		cur := inst.CurrentStep()
		if cur == nil || cur.Status != entity.StepStatusInProgress {
			return fmt.Errorf("%w: no step awaiting decision", domainwf.ErrStepMismatch)
		}
		if cur.Kind != entity.StepKindApproval {
			return fmt.Errorf("%w: step %q is a %s step", domainwf.ErrNotApprovalStep, cur.Name, cur.Kind)
		}

		now := time.Now()
		expectedVersion := inst.Version

		// The step itself is never marked completed on rejection; the
		// instance-level cancelled status is authoritative.
		inst.Status = entity.InstanceStatusCancelled
		inst.EndDate = &now

		if err := e.instanceRepo.UpdateTransition(txCtx, inst, expectedVersion); err != nil {
			return err
		}

		history := &entity.WorkflowHistory{
			InstanceID:   inst.ID,
			CompanyID:    inst.CompanyID,
			WorkflowType: inst.Type,
			Action:       entity.HistoryActionRejected,
			ActorID:      req.Actor.ID,
			ActorName:    req.Actor.Name,
			ActorRole:    req.Actor.Role,
			Description:  fmt.Sprintf("workflow rejected at step %q: %s", cur.Name, req.Reason),
			Metadata: map[string]interface{}{
				"step_id":   cur.ID,
				"step_name": cur.Name,
				"reason":    req.Reason,
			},
		}
		if err := e.historyRepo.Create(txCtx, history); err != nil {
			return fmt.Errorf("failed to create history record: %w", err)
		}

		updated = inst
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Workflow instance rejected",
		zap.Int64("instance_id", updated.ID),
		zap.String("actor_id", req.Actor.ID))

	e.emit(ctx, event.NewEvent(event.TypeInstanceCancelled, updated.ID, updated.CompanyID, map[string]interface{}{
		"reason": req.Reason,
	}))

	return updated, nil
}

// ResumeInstance starts the next pending step of a paused instance
func (e *engineImpl) ResumeInstance(ctx context.Context, req ResumeRequest) (*entity.WorkflowInstance, error) {
	var updated *entity.WorkflowInstance
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		inst, err := e.loadActive(txCtx, req.CompanyID, req.InstanceID)
		if err != nil {
			return err
		}

		cur := inst.CurrentStep()
		if cur == nil || cur.Status != entity.StepStatusCompleted {
			return fmt.Errorf("%w: instance is not paused", domainwf.ErrStepMismatch)
		}

		now := time.Now()
		expectedVersion := inst.Version
		description := ""

		if inst.CurrentStepIndex == len(inst.Steps)-1 {
			inst.Status = entity.InstanceStatusCompleted
			inst.EndDate = &now
			description = "workflow resumed past final step and completed"
		} else {
			inst.CurrentStepIndex++
			next := inst.CurrentStep()
			next.Status = entity.StepStatusInProgress
			next.StartTime = &now
			description = fmt.Sprintf("workflow resumed, step %q started", next.Name)
		}

		if err := e.instanceRepo.UpdateTransition(txCtx, inst, expectedVersion); err != nil {
			return err
		}

		history := &entity.WorkflowHistory{
			InstanceID:   inst.ID,
			CompanyID:    inst.CompanyID,
			WorkflowType: inst.Type,
			Action:       entity.HistoryActionResumed,
			ActorID:      req.Actor.ID,
			ActorName:    req.Actor.Name,
			ActorRole:    req.Actor.Role,
			Description:  description,
			Metadata: map[string]interface{}{
				"current_step_index": inst.CurrentStepIndex,
				"instance_status":    inst.Status,
			},
		}
		if err := e.historyRepo.Create(txCtx, history); err != nil {
			return fmt.Errorf("failed to create history record: %w", err)
		}

		updated = inst
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.emit(ctx, event.NewEvent(event.TypeStepAdvanced, updated.ID, updated.CompanyID, map[string]interface{}{
		"resumed": true,
	}))
	if updated.Status == entity.InstanceStatusCompleted {
		e.emit(ctx, event.NewEvent(event.TypeInstanceCompleted, updated.ID, updated.CompanyID, nil))
	}

	return updated, nil
}

// UpdateInstance changes descriptive fields of an active instance
func (e *engineImpl) UpdateInstance(ctx context.Context, req UpdateRequest) (*entity.WorkflowInstance, error) {
	var updated *entity.WorkflowInstance
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		inst, err := e.loadActive(txCtx, req.CompanyID, req.InstanceID)
		if err != nil {
			return err
		}

		changed := map[string]interface{}{}
		if req.Name != nil && *req.Name != inst.Name {
			inst.Name = *req.Name
			changed["name"] = *req.Name
		}
		if req.Description != nil && *req.Description != inst.Description {
			inst.Description = *req.Description
			changed["description"] = *req.Description
		}
		if req.Priority != nil && *req.Priority != inst.Priority {
			switch *req.Priority {
			case entity.PriorityLow, entity.PriorityMedium, entity.PriorityHigh:
			default:
				return fmt.Errorf("%w: unknown priority %q", domainwf.ErrInvalidSpec, *req.Priority)
			}
			inst.Priority = *req.Priority
			changed["priority"] = *req.Priority
		}

		if len(changed) == 0 {
			updated = inst
			return nil
		}

		if err := e.instanceRepo.UpdateMeta(txCtx, inst); err != nil {
			return fmt.Errorf("failed to update instance: %w", err)
		}

		history := &entity.WorkflowHistory{
			InstanceID:   inst.ID,
			CompanyID:    inst.CompanyID,
			WorkflowType: inst.Type,
			Action:       entity.HistoryActionUpdated,
			ActorID:      req.Actor.ID,
			ActorName:    req.Actor.Name,
			ActorRole:    req.Actor.Role,
			Description:  "workflow details updated",
			Metadata:     changed,
		}
		if err := e.historyRepo.Create(txCtx, history); err != nil {
			return fmt.Errorf("failed to create history record: %w", err)
		}

		updated = inst
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetHistory returns the audit trail, oldest first
func (e *engineImpl) GetHistory(ctx context.Context, companyID string, instanceID int64) ([]*entity.WorkflowHistory, error) {
	if _, err := e.GetInstance(ctx, companyID, instanceID); err != nil {
		return nil, err
	}
	return e.historyRepo.GetByInstanceID(ctx, companyID, instanceID)
}

// loadActive fetches an instance and rejects terminal ones
func (e *engineImpl) loadActive(ctx context.Context, companyID string, instanceID int64) (*entity.WorkflowInstance, error) {
	inst, err := e.instanceRepo.GetByID(ctx, companyID, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}
	if inst == nil {
		return nil, fmt.Errorf("%w: id %d", domainwf.ErrInstanceNotFound, instanceID)
	}
	if inst.IsTerminal() {
		return nil, fmt.Errorf("%w: status %s", domainwf.ErrInstanceTerminal, inst.Status)
	}
	return inst, nil
}

// emit dispatches an event asynchronously if a dispatcher is configured
func (e *engineImpl) emit(ctx context.Context, evt *event.Event) {
	if e.dispatcher != nil {
		e.dispatcher.DispatchAsync(ctx, evt)
	}
}

// Verify interface compliance
var _ Engine = (*engineImpl)(nil)
