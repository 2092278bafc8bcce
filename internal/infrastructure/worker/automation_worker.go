package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/quanhr/hr-workflow/internal/application/port"
	"github.com/quanhr/hr-workflow/internal/application/workflow"
	"github.com/quanhr/hr-workflow/internal/domain/entity"
	domainwf "github.com/quanhr/hr-workflow/internal/domain/workflow"
	"go.uber.org/zap"
)

// systemActor reports automation completions to the engine. The engine
// treats it like any other actor; the audit trail shows the automation ran.
var systemActor = workflow.Actor{ID: "system", Name: "Automation", Role: entity.RoleSystem}

// AutomationWorker polls for active instances whose current step is assigned
// to the system role, performs the registered business effect, and reports
// completion through the engine. The engine's optimistic guard makes a
// double pickup harmless: the second completion fails with a step mismatch.
type AutomationWorker struct {
	engine       workflow.Engine
	instances    port.InstanceRepository
	pollInterval time.Duration
	batchLimit   int
	logger       *zap.Logger

	mu       sync.RWMutex
	handlers map[string]port.AutomationFunc

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewAutomationWorker creates a new automation worker
func NewAutomationWorker(
	engine workflow.Engine,
	instances port.InstanceRepository,
	pollInterval time.Duration,
	batchLimit int,
	logger *zap.Logger,
) *AutomationWorker {
	return &AutomationWorker{
		engine:       engine,
		instances:    instances,
		pollInterval: pollInterval,
		batchLimit:   batchLimit,
		logger:       logger,
		handlers:     make(map[string]port.AutomationFunc),
	}
}

// RegisterHandler binds the business effect for one workflow type. Types
// without a handler get a completion record with no side effect.
func (w *AutomationWorker) RegisterHandler(workflowType string, fn port.AutomationFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[workflowType] = fn
}

// Name implements Worker
func (w *AutomationWorker) Name() string {
	return "automation-worker"
}

// Start implements Worker
func (w *AutomationWorker) Start(ctx context.Context) error {
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	go w.run(ctx)
	return nil
}

// Stop implements Worker
func (w *AutomationWorker) Stop() error {
	close(w.stopCh)
	<-w.doneCh
	return nil
}

func (w *AutomationWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *AutomationWorker) poll(ctx context.Context) {
	pending, err := w.instances.ListActiveByAssigneeRole(ctx, entity.RoleSystem, w.batchLimit)
	if err != nil {
		w.logger.Error("Automation poll failed", zap.Error(err))
		return
	}

	for _, inst := range pending {
		w.process(ctx, inst)
	}
}

func (w *AutomationWorker) process(ctx context.Context, inst *entity.WorkflowInstance) {
	step := inst.CurrentStep()
	if step == nil {
		return
	}

	w.mu.RLock()
	fn := w.handlers[inst.Type]
	w.mu.RUnlock()

	formData := map[string]interface{}{"automated": true}
	if fn != nil {
		result, err := fn(ctx, inst, step)
		if err != nil {
			w.logger.Error("Automation handler failed",
				zap.Int64("instance_id", inst.ID),
				zap.String("type", inst.Type),
				zap.String("step", step.Name),
				zap.Error(err))
			return
		}
		for k, v := range result {
			formData[k] = v
		}
	}

	_, err := w.engine.AdvanceStep(ctx, workflow.AdvanceStepRequest{
		CompanyID:     inst.CompanyID,
		InstanceID:    inst.ID,
		StepID:        step.ID,
		Actor:         systemActor,
		Result:        entity.StepResultCompleted,
		FormData:      formData,
		AdvanceToNext: true,
	})
	if err != nil {
		if errors.Is(err, domainwf.ErrStepMismatch) || errors.Is(err, domainwf.ErrInstanceTerminal) {
			w.logger.Debug("Automation step already handled",
				zap.Int64("instance_id", inst.ID),
				zap.String("step", step.Name))
			return
		}
		w.logger.Error("Failed to complete automation step",
			zap.Int64("instance_id", inst.ID),
			zap.String("step", step.Name),
			zap.Error(err))
		return
	}

	w.logger.Info("Automation step completed",
		zap.Int64("instance_id", inst.ID),
		zap.String("type", inst.Type),
		zap.String("step", step.Name))
}

// Verify interface compliance
var _ Worker = (*AutomationWorker)(nil)
