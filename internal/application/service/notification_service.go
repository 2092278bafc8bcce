package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/quanhr/hr-workflow/internal/application/dispatcher"
	"github.com/quanhr/hr-workflow/internal/application/port"
	"github.com/quanhr/hr-workflow/internal/domain/entity"
	"github.com/quanhr/hr-workflow/internal/domain/event"
)

// NotificationService listens for workflow transition events and pushes
// notices to the affected actors. It is best-effort: a failed delivery is
// logged, never blocks the workflow.
type NotificationService struct {
	instanceRepo port.InstanceRepository
	notifier     port.Notifier
	logger       *zap.Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	instanceRepo port.InstanceRepository,
	notifier port.Notifier,
	logger *zap.Logger,
) *NotificationService {
	return &NotificationService{
		instanceRepo: instanceRepo,
		notifier:     notifier,
		logger:       logger,
	}
}

// Register subscribes the service's handlers on the dispatcher
func (s *NotificationService) Register(d dispatcher.Dispatcher) {
	d.Subscribe(event.TypeInstanceCreated, "notify-assignee", s.handleAssignment)
	d.Subscribe(event.TypeStepAdvanced, "notify-assignee", s.handleAssignment)
	d.Subscribe(event.TypeInstanceCompleted, "notify-finished", s.handleFinished)
	d.Subscribe(event.TypeInstanceCancelled, "notify-finished", s.handleFinished)
}

// handleAssignment notifies the assignee of the newly in-progress step
func (s *NotificationService) handleAssignment(ctx context.Context, evt *event.Event) error {
	inst, err := s.load(ctx, evt)
	if err != nil {
		return err
	}
	if inst.IsTerminal() {
		// Advancing the final step completes the instance; the finished
		// handler covers that case.
		return nil
	}

	step := inst.CurrentStep()
	if step == nil || step.Status != entity.StepStatusInProgress {
		return nil
	}

	if err := s.notifier.NotifyStepAssigned(ctx, inst, step); err != nil {
		s.logger.Warn("Failed to notify step assignee",
			zap.Int64("instance_id", inst.ID),
			zap.String("step_id", step.ID),
			zap.Error(err))
	}
	return nil
}

// handleFinished notifies the initiator that the instance reached a terminal
// state
func (s *NotificationService) handleFinished(ctx context.Context, evt *event.Event) error {
	inst, err := s.load(ctx, evt)
	if err != nil {
		return err
	}

	if err := s.notifier.NotifyInstanceFinished(ctx, inst); err != nil {
		s.logger.Warn("Failed to notify instance finished",
			zap.Int64("instance_id", inst.ID),
			zap.String("status", inst.Status),
			zap.Error(err))
	}
	return nil
}

func (s *NotificationService) load(ctx context.Context, evt *event.Event) (*entity.WorkflowInstance, error) {
	inst, err := s.instanceRepo.GetByID(ctx, evt.CompanyID, evt.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("get instance %d: %w", evt.InstanceID, err)
	}
	if inst == nil {
		return nil, fmt.Errorf("instance %d not found for event %s", evt.InstanceID, evt.ID)
	}
	return inst, nil
}
