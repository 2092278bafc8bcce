package worker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quanhr/hr-workflow/internal/application/port"
	"github.com/quanhr/hr-workflow/internal/application/workflow"
	"github.com/quanhr/hr-workflow/internal/domain/entity"
	domainwf "github.com/quanhr/hr-workflow/internal/domain/workflow"
)

type advanceOnlyEngine struct {
	workflow.Engine

	mu       sync.Mutex
	requests []workflow.AdvanceStepRequest
	err      error
}

func (e *advanceOnlyEngine) AdvanceStep(ctx context.Context, req workflow.AdvanceStepRequest) (*entity.WorkflowInstance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = append(e.requests, req)
	return nil, e.err
}

func (e *advanceOnlyEngine) calls() []workflow.AdvanceStepRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]workflow.AdvanceStepRequest(nil), e.requests...)
}

type roleListRepo struct {
	port.InstanceRepository

	mu        sync.Mutex
	pending   []*entity.WorkflowInstance
	lastRole  string
	lastLimit int
	listCount int
}

func (r *roleListRepo) ListActiveByAssigneeRole(ctx context.Context, role string, limit int) ([]*entity.WorkflowInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastRole = role
	r.lastLimit = limit
	r.listCount++
	return r.pending, nil
}

func (r *roleListRepo) polls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listCount
}

func systemStepInstance(id int64, workflowType string) *entity.WorkflowInstance {
	step := entity.NewPendingStep("Credit points", entity.StepKindTask, entity.AssignRole(entity.RoleSystem))
	step.Status = entity.StepStatusInProgress
	return &entity.WorkflowInstance{
		ID:        id,
		CompanyID: "acme",
		Type:      workflowType,
		Status:    entity.InstanceStatusActive,
		Steps:     []entity.WorkflowStep{step},
	}
}

func TestProcessRunsHandlerAndAdvances(t *testing.T) {
	engine := &advanceOnlyEngine{}
	w := NewAutomationWorker(engine, &roleListRepo{}, time.Minute, 10, zap.NewNop())

	var gotStep string
	w.RegisterHandler(entity.WorkflowTypePointsGrant, func(ctx context.Context, inst *entity.WorkflowInstance, step *entity.WorkflowStep) (map[string]interface{}, error) {
		gotStep = step.Name
		return map[string]interface{}{"effect": "points_granted"}, nil
	})

	inst := systemStepInstance(1, entity.WorkflowTypePointsGrant)
	w.process(context.Background(), inst)

	assert.Equal(t, "Credit points", gotStep)
	calls := engine.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "acme", calls[0].CompanyID)
	assert.Equal(t, inst.Steps[0].ID, calls[0].StepID)
	assert.Equal(t, "system", calls[0].Actor.ID)
	assert.Equal(t, entity.StepResultCompleted, calls[0].Result)
	assert.True(t, calls[0].AdvanceToNext)
	assert.Equal(t, "points_granted", calls[0].FormData["effect"])
	assert.Equal(t, true, calls[0].FormData["automated"])
}

func TestProcessWithoutHandlerStillCompletes(t *testing.T) {
	engine := &advanceOnlyEngine{}
	w := NewAutomationWorker(engine, &roleListRepo{}, time.Minute, 10, zap.NewNop())

	w.process(context.Background(), systemStepInstance(2, entity.WorkflowTypeOffboarding))

	calls := engine.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]interface{}{"automated": true}, calls[0].FormData)
}

func TestProcessHandlerErrorSkipsAdvance(t *testing.T) {
	engine := &advanceOnlyEngine{}
	w := NewAutomationWorker(engine, &roleListRepo{}, time.Minute, 10, zap.NewNop())

	w.RegisterHandler(entity.WorkflowTypePointsGrant, func(ctx context.Context, inst *entity.WorkflowInstance, step *entity.WorkflowStep) (map[string]interface{}, error) {
		return nil, fmt.Errorf("ledger unavailable")
	})

	w.process(context.Background(), systemStepInstance(3, entity.WorkflowTypePointsGrant))
	assert.Empty(t, engine.calls())
}

func TestProcessToleratesLostRace(t *testing.T) {
	engine := &advanceOnlyEngine{err: fmt.Errorf("%w: completed elsewhere", domainwf.ErrStepMismatch)}
	w := NewAutomationWorker(engine, &roleListRepo{}, time.Minute, 10, zap.NewNop())

	// losing the optimistic race is normal; the worker just moves on
	w.process(context.Background(), systemStepInstance(4, entity.WorkflowTypePointsGrant))
	assert.Len(t, engine.calls(), 1)
}

func TestProcessSkipsInstanceWithoutCurrentStep(t *testing.T) {
	engine := &advanceOnlyEngine{}
	w := NewAutomationWorker(engine, &roleListRepo{}, time.Minute, 10, zap.NewNop())

	inst := systemStepInstance(5, entity.WorkflowTypePointsGrant)
	inst.CurrentStepIndex = 3
	w.process(context.Background(), inst)
	assert.Empty(t, engine.calls())
}

func TestPollQueriesSystemRoleWithBatchLimit(t *testing.T) {
	engine := &advanceOnlyEngine{}
	repo := &roleListRepo{pending: []*entity.WorkflowInstance{
		systemStepInstance(6, entity.WorkflowTypePointsGrant),
		systemStepInstance(7, entity.WorkflowTypeOffboarding),
	}}
	w := NewAutomationWorker(engine, repo, time.Minute, 25, zap.NewNop())

	w.poll(context.Background())

	assert.Equal(t, entity.RoleSystem, repo.lastRole)
	assert.Equal(t, 25, repo.lastLimit)
	assert.Len(t, engine.calls(), 2)
}

func TestWorkerLifecycle(t *testing.T) {
	engine := &advanceOnlyEngine{}
	repo := &roleListRepo{}
	w := NewAutomationWorker(engine, repo, 5*time.Millisecond, 10, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))

	assert.Eventually(t, func() bool { return repo.polls() > 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, w.Stop())

	polled := repo.polls()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, polled, repo.polls())
}

type fakeWorker struct {
	name    string
	started bool
	stopped bool
}

func (f *fakeWorker) Start(ctx context.Context) error { f.started = true; return nil }
func (f *fakeWorker) Stop() error                     { f.stopped = true; return nil }
func (f *fakeWorker) Name() string                    { return f.name }

func TestManagerStartStop(t *testing.T) {
	m := NewManager(zap.NewNop())
	a := &fakeWorker{name: "a"}
	b := &fakeWorker{name: "b"}
	m.Register(a)
	m.Register(b)

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, a.started)
	assert.True(t, b.started)

	// starting twice is refused
	assert.Error(t, m.StartAll(context.Background()))

	require.NoError(t, m.StopAll())
	assert.True(t, a.stopped)
	assert.True(t, b.stopped)

	// stopping an idle manager is a no-op
	assert.NoError(t, m.StopAll())
}
