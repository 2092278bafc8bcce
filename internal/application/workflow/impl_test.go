package workflow

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quanhr/hr-workflow/internal/application/port"
	"github.com/quanhr/hr-workflow/internal/domain/entity"
	domainwf "github.com/quanhr/hr-workflow/internal/domain/workflow"
)

// memInstanceRepo is an in-memory InstanceRepository with the same
// compare-and-swap semantics as the SQLite implementation. Reads return deep
// copies so callers cannot mutate stored state outside UpdateTransition.
type memInstanceRepo struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*entity.WorkflowInstance
}

func newMemInstanceRepo() *memInstanceRepo {
	return &memInstanceRepo{byID: make(map[int64]*entity.WorkflowInstance)}
}

func clone(inst *entity.WorkflowInstance) *entity.WorkflowInstance {
	raw, _ := json.Marshal(inst)
	var out entity.WorkflowInstance
	_ = json.Unmarshal(raw, &out)
	return &out
}

func (r *memInstanceRepo) Create(ctx context.Context, inst *entity.WorkflowInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	inst.ID = r.nextID
	inst.CreatedAt = time.Now()
	inst.UpdatedAt = inst.CreatedAt
	r.byID[inst.ID] = clone(inst)
	return nil
}

func (r *memInstanceRepo) GetByID(ctx context.Context, companyID string, id int64) (*entity.WorkflowInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.byID[id]
	if !ok || inst.CompanyID != companyID {
		return nil, nil
	}
	return clone(inst), nil
}

func (r *memInstanceRepo) List(ctx context.Context, filter port.InstanceFilter) ([]*entity.WorkflowInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.WorkflowInstance
	for _, inst := range r.byID {
		if inst.CompanyID != filter.CompanyID {
			continue
		}
		if filter.Type != "" && inst.Type != filter.Type {
			continue
		}
		if filter.Status != "" && inst.Status != filter.Status {
			continue
		}
		if filter.RelatedEntityID != "" && inst.RelatedEntityID != filter.RelatedEntityID {
			continue
		}
		out = append(out, clone(inst))
	}
	return out, nil
}

func (r *memInstanceRepo) FindActiveByEntity(ctx context.Context, companyID, relatedEntityID, workflowType string) (*entity.WorkflowInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inst := range r.byID {
		if inst.CompanyID == companyID &&
			inst.RelatedEntityID == relatedEntityID &&
			inst.Type == workflowType &&
			inst.Status == entity.InstanceStatusActive {
			return clone(inst), nil
		}
	}
	return nil, nil
}

func (r *memInstanceRepo) UpdateTransition(ctx context.Context, inst *entity.WorkflowInstance, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[inst.ID]
	if !ok || stored.Version != expectedVersion {
		return domainwf.ErrStepMismatch
	}
	inst.Version = expectedVersion + 1
	inst.UpdatedAt = time.Now()
	r.byID[inst.ID] = clone(inst)
	return nil
}

func (r *memInstanceRepo) UpdateMeta(ctx context.Context, inst *entity.WorkflowInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[inst.ID]
	if !ok {
		return domainwf.ErrInstanceNotFound
	}
	stored.Name = inst.Name
	stored.Description = inst.Description
	stored.Priority = inst.Priority
	stored.UpdatedAt = time.Now()
	return nil
}

func (r *memInstanceRepo) ListActiveByAssigneeRole(ctx context.Context, role string, limit int) ([]*entity.WorkflowInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.WorkflowInstance
	for _, inst := range r.byID {
		if inst.Status != entity.InstanceStatusActive {
			continue
		}
		cur := inst.CurrentStep()
		if cur == nil || cur.Status != entity.StepStatusInProgress {
			continue
		}
		if cur.Assignee.UserID == "" && cur.Assignee.Role == role {
			out = append(out, clone(inst))
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// memHistoryRepo is an append-only in-memory HistoryRepository
type memHistoryRepo struct {
	mu      sync.Mutex
	nextID  int64
	entries []*entity.WorkflowHistory
}

func (r *memHistoryRepo) Create(ctx context.Context, h *entity.WorkflowHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	h.ID = r.nextID
	if h.Timestamp.IsZero() {
		h.Timestamp = time.Now()
	}
	cp := *h
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *memHistoryRepo) GetByInstanceID(ctx context.Context, companyID string, instanceID int64) ([]*entity.WorkflowHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.WorkflowHistory
	for _, h := range r.entries {
		if h.CompanyID == companyID && h.InstanceID == instanceID {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out, nil
}

// passthroughTx runs the function without a real transaction
type passthroughTx struct{}

func (passthroughTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestEngine(t *testing.T) (Engine, *memInstanceRepo, *memHistoryRepo) {
	t.Helper()
	instances := newMemInstanceRepo()
	history := &memHistoryRepo{}
	engine := NewEngine(instances, history, passthroughTx{}, zap.NewNop())
	return engine, instances, history
}

func approvalChain(companyID, entityID string, names ...string) *entity.WorkflowInstance {
	now := time.Now()
	steps := make([]entity.WorkflowStep, 0, len(names))
	for _, name := range names {
		steps = append(steps, entity.NewPendingStep(name, entity.StepKindApproval,
			entity.AssignUser("mgr-1", "Manager")))
	}
	steps[0].Status = entity.StepStatusInProgress
	steps[0].StartTime = &now

	return &entity.WorkflowInstance{
		CompanyID:       companyID,
		Type:            entity.WorkflowTypePointsGrant,
		Name:            "test workflow",
		InitiatorID:     "emp-1",
		InitiatorName:   "Initiator",
		RelatedEntityID: entityID,
		Steps:           steps,
	}
}

func TestCreateInstanceDefaults(t *testing.T) {
	engine, _, history := newTestEngine(t)

	inst, err := engine.CreateInstance(context.Background(), approvalChain("acme", "req-1", "Manager approval"))
	require.NoError(t, err)

	assert.NotZero(t, inst.ID)
	assert.Equal(t, entity.InstanceStatusActive, inst.Status)
	assert.Equal(t, entity.PriorityMedium, inst.Priority)
	assert.False(t, inst.StartDate.IsZero())
	assert.Equal(t, 0, inst.CurrentStepIndex)

	entries, err := history.GetByInstanceID(context.Background(), "acme", inst.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entity.HistoryActionCreated, entries[0].Action)
}

func TestCreateInstanceInvalidSpec(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*entity.WorkflowInstance)
	}{
		{
			name:   "empty steps",
			mutate: func(i *entity.WorkflowInstance) { i.Steps = nil },
		},
		{
			name:   "no in-progress step",
			mutate: func(i *entity.WorkflowInstance) { i.Steps[0].Status = entity.StepStatusPending; i.Steps[0].StartTime = nil },
		},
		{
			name: "two in-progress steps",
			mutate: func(i *entity.WorkflowInstance) {
				now := time.Now()
				i.Steps[1].Status = entity.StepStatusInProgress
				i.Steps[1].StartTime = &now
			},
		},
		{
			name:   "missing company",
			mutate: func(i *entity.WorkflowInstance) { i.CompanyID = "" },
		},
		{
			name:   "step without assignee",
			mutate: func(i *entity.WorkflowInstance) { i.Steps[0].Assignee = entity.Assignee{} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := approvalChain("acme", "", "First", "Second")
			tt.mutate(inst)
			_, err := engine.CreateInstance(ctx, inst)
			assert.ErrorIs(t, err, domainwf.ErrInvalidSpec)
		})
	}
}

func TestCreateInstanceDuplicateActive(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := engine.CreateInstance(ctx, approvalChain("acme", "req-9", "Manager approval"))
	require.NoError(t, err)

	_, err = engine.CreateInstance(ctx, approvalChain("acme", "req-9", "Manager approval"))
	assert.ErrorIs(t, err, domainwf.ErrDuplicateActiveWorkflow)

	// Completing the first frees the entity for a new instance.
	_, err = engine.ApproveStep(ctx, ApproveStepRequest{
		CompanyID:  "acme",
		InstanceID: first.ID,
		StepID:     first.Steps[0].ID,
		Actor:      Actor{ID: "mgr-1", Name: "Manager"},
	})
	require.NoError(t, err)

	_, err = engine.CreateInstance(ctx, approvalChain("acme", "req-9", "Manager approval"))
	assert.NoError(t, err)
}

func TestCreateInstanceNoEntityLinkSkipsDuplicateCheck(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.CreateInstance(ctx, approvalChain("acme", "", "Manager approval"))
	require.NoError(t, err)
	_, err = engine.CreateInstance(ctx, approvalChain("acme", "", "Manager approval"))
	assert.NoError(t, err)
}

func TestAdvanceStepMovesToNext(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	inst, err := engine.CreateInstance(ctx, approvalChain("acme", "req-1", "First", "Second"))
	require.NoError(t, err)

	updated, err := engine.AdvanceStep(ctx, AdvanceStepRequest{
		CompanyID:     "acme",
		InstanceID:    inst.ID,
		StepID:        inst.Steps[0].ID,
		Actor:         Actor{ID: "mgr-1", Name: "Manager"},
		Comments:      "looks fine",
		AdvanceToNext: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, updated.CurrentStepIndex)
	assert.Equal(t, entity.StepStatusCompleted, updated.Steps[0].Status)
	assert.Equal(t, entity.StepResultCompleted, updated.Steps[0].Result)
	assert.Equal(t, "looks fine", updated.Steps[0].Comments)
	assert.NotNil(t, updated.Steps[0].EndTime)
	assert.Equal(t, entity.StepStatusInProgress, updated.Steps[1].Status)
	assert.NotNil(t, updated.Steps[1].StartTime)
	assert.Equal(t, entity.InstanceStatusActive, updated.Status)
}

func TestAdvanceStepStaleIDFails(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	inst, err := engine.CreateInstance(ctx, approvalChain("acme", "req-1", "First", "Second"))
	require.NoError(t, err)

	// A step that is not the current one, and a made-up id, both mismatch.
	for _, stepID := range []string{inst.Steps[1].ID, "step-bogus"} {
		_, err = engine.AdvanceStep(ctx, AdvanceStepRequest{
			CompanyID:     "acme",
			InstanceID:    inst.ID,
			StepID:        stepID,
			Actor:         Actor{ID: "mgr-1"},
			AdvanceToNext: true,
		})
		assert.ErrorIs(t, err, domainwf.ErrStepMismatch)
	}
}

func TestAdvanceFinalStepCompletesInstance(t *testing.T) {
	engine, _, history := newTestEngine(t)
	ctx := context.Background()

	inst, err := engine.CreateInstance(ctx, approvalChain("acme", "req-1", "Only step"))
	require.NoError(t, err)

	updated, err := engine.AdvanceStep(ctx, AdvanceStepRequest{
		CompanyID:     "acme",
		InstanceID:    inst.ID,
		StepID:        inst.Steps[0].ID,
		Actor:         Actor{ID: "mgr-1"},
		AdvanceToNext: true,
	})
	require.NoError(t, err)

	// The index stays on the final step; only status and end date change.
	assert.Equal(t, entity.InstanceStatusCompleted, updated.Status)
	assert.Equal(t, 0, updated.CurrentStepIndex)
	assert.NotNil(t, updated.EndDate)

	// Terminal instances refuse further transitions.
	_, err = engine.AdvanceStep(ctx, AdvanceStepRequest{
		CompanyID:     "acme",
		InstanceID:    inst.ID,
		StepID:        inst.Steps[0].ID,
		Actor:         Actor{ID: "mgr-1"},
		AdvanceToNext: true,
	})
	assert.ErrorIs(t, err, domainwf.ErrInstanceTerminal)

	entries, err := history.GetByInstanceID(ctx, "acme", inst.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestAdvanceStepPauseAndResume(t *testing.T) {
	engine, _, history := newTestEngine(t)
	ctx := context.Background()

	inst, err := engine.CreateInstance(ctx, approvalChain("acme", "req-1", "First", "Second"))
	require.NoError(t, err)

	paused, err := engine.AdvanceStep(ctx, AdvanceStepRequest{
		CompanyID:     "acme",
		InstanceID:    inst.ID,
		StepID:        inst.Steps[0].ID,
		Actor:         Actor{ID: "mgr-1"},
		AdvanceToNext: false,
	})
	require.NoError(t, err)

	// Paused: current step completed, nothing in progress, still active.
	assert.Equal(t, 0, paused.CurrentStepIndex)
	assert.Equal(t, entity.StepStatusCompleted, paused.Steps[0].Status)
	assert.Equal(t, entity.StepStatusPending, paused.Steps[1].Status)
	assert.Equal(t, entity.InstanceStatusActive, paused.Status)

	// Advancing again while paused mismatches; resume is the only way on.
	_, err = engine.AdvanceStep(ctx, AdvanceStepRequest{
		CompanyID:     "acme",
		InstanceID:    inst.ID,
		StepID:        inst.Steps[0].ID,
		Actor:         Actor{ID: "mgr-1"},
		AdvanceToNext: true,
	})
	assert.ErrorIs(t, err, domainwf.ErrStepMismatch)

	resumed, err := engine.ResumeInstance(ctx, ResumeRequest{
		CompanyID:  "acme",
		InstanceID: inst.ID,
		Actor:      Actor{ID: "system", Role: entity.RoleSystem},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resumed.CurrentStepIndex)
	assert.Equal(t, entity.StepStatusInProgress, resumed.Steps[1].Status)

	entries, err := history.GetByInstanceID(ctx, "acme", inst.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 3) // created, step_completed, resumed
}

func TestResumeFinalStepCompletes(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	inst, err := engine.CreateInstance(ctx, approvalChain("acme", "req-1", "Only step"))
	require.NoError(t, err)

	_, err = engine.AdvanceStep(ctx, AdvanceStepRequest{
		CompanyID:  "acme",
		InstanceID: inst.ID,
		StepID:     inst.Steps[0].ID,
		Actor:      Actor{ID: "mgr-1"},
	})
	require.NoError(t, err)

	resumed, err := engine.ResumeInstance(ctx, ResumeRequest{
		CompanyID:  "acme",
		InstanceID: inst.ID,
		Actor:      Actor{ID: "system"},
	})
	require.NoError(t, err)
	assert.Equal(t, entity.InstanceStatusCompleted, resumed.Status)
	assert.NotNil(t, resumed.EndDate)
}

func TestResumeNotPausedFails(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	inst, err := engine.CreateInstance(ctx, approvalChain("acme", "req-1", "First", "Second"))
	require.NoError(t, err)

	_, err = engine.ResumeInstance(ctx, ResumeRequest{
		CompanyID:  "acme",
		InstanceID: inst.ID,
		Actor:      Actor{ID: "system"},
	})
	assert.ErrorIs(t, err, domainwf.ErrStepMismatch)
}

func TestApproveStepOnTaskStepFails(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	now := time.Now()
	steps := []entity.WorkflowStep{
		entity.NewPendingStep("Deduct points", entity.StepKindTask, entity.AssignRole(entity.RoleSystem)),
	}
	steps[0].Status = entity.StepStatusInProgress
	steps[0].StartTime = &now

	inst, err := engine.CreateInstance(ctx, &entity.WorkflowInstance{
		CompanyID:     "acme",
		Type:          entity.WorkflowTypePointsRedemption,
		Name:          "redemption",
		InitiatorID:   "emp-1",
		InitiatorName: "Initiator",
		Steps:         steps,
	})
	require.NoError(t, err)

	_, err = engine.ApproveStep(ctx, ApproveStepRequest{
		CompanyID:  "acme",
		InstanceID: inst.ID,
		StepID:     inst.Steps[0].ID,
		Actor:      Actor{ID: "mgr-1"},
	})
	assert.ErrorIs(t, err, domainwf.ErrNotApprovalStep)
}

func TestRejectStepCancelsInstance(t *testing.T) {
	engine, _, history := newTestEngine(t)
	ctx := context.Background()

	inst, err := engine.CreateInstance(ctx, approvalChain("acme", "req-1", "First", "Second"))
	require.NoError(t, err)

	rejected, err := engine.RejectStep(ctx, RejectStepRequest{
		CompanyID:  "acme",
		InstanceID: inst.ID,
		Actor:      Actor{ID: "mgr-1", Name: "Manager", Role: entity.RoleDepartmentManager},
		Reason:     "insufficient justification",
	})
	require.NoError(t, err)

	assert.Equal(t, entity.InstanceStatusCancelled, rejected.Status)
	assert.NotNil(t, rejected.EndDate)
	// The in-flight step keeps its state; cancellation is instance level.
	assert.Equal(t, entity.StepStatusInProgress, rejected.Steps[0].Status)
	assert.Equal(t, 0, rejected.CurrentStepIndex)

	entries, err := history.GetByInstanceID(ctx, "acme", inst.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entity.HistoryActionRejected, entries[1].Action)

	_, err = engine.RejectStep(ctx, RejectStepRequest{
		CompanyID:  "acme",
		InstanceID: inst.ID,
		Actor:      Actor{ID: "mgr-1"},
		Reason:     "again",
	})
	assert.ErrorIs(t, err, domainwf.ErrInstanceTerminal)
}

func TestUpdateInstanceDescriptiveFields(t *testing.T) {
	engine, _, history := newTestEngine(t)
	ctx := context.Background()

	inst, err := engine.CreateInstance(ctx, approvalChain("acme", "req-1", "First"))
	require.NoError(t, err)

	name := "renamed workflow"
	priority := entity.PriorityHigh
	updated, err := engine.UpdateInstance(ctx, UpdateRequest{
		CompanyID:  "acme",
		InstanceID: inst.ID,
		Actor:      Actor{ID: "emp-1"},
		Name:       &name,
		Priority:   &priority,
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed workflow", updated.Name)
	assert.Equal(t, entity.PriorityHigh, updated.Priority)

	bad := "urgent"
	_, err = engine.UpdateInstance(ctx, UpdateRequest{
		CompanyID:  "acme",
		InstanceID: inst.ID,
		Actor:      Actor{ID: "emp-1"},
		Priority:   &bad,
	})
	assert.ErrorIs(t, err, domainwf.ErrInvalidSpec)

	// No-op update writes no history.
	same := "renamed workflow"
	_, err = engine.UpdateInstance(ctx, UpdateRequest{
		CompanyID:  "acme",
		InstanceID: inst.ID,
		Actor:      Actor{ID: "emp-1"},
		Name:       &same,
	})
	require.NoError(t, err)

	entries, err := history.GetByInstanceID(ctx, "acme", inst.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2) // created, updated
}

func TestGetInstanceTenantScoped(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	inst, err := engine.CreateInstance(ctx, approvalChain("acme", "req-1", "First"))
	require.NoError(t, err)

	_, err = engine.GetInstance(ctx, "other-co", inst.ID)
	assert.ErrorIs(t, err, domainwf.ErrInstanceNotFound)

	_, err = engine.GetHistory(ctx, "other-co", inst.ID)
	assert.ErrorIs(t, err, domainwf.ErrInstanceNotFound)
}

func TestConcurrentApproveSingleWinner(t *testing.T) {
	engine, _, history := newTestEngine(t)
	ctx := context.Background()

	inst, err := engine.CreateInstance(ctx, approvalChain("acme", "req-1", "First", "Second"))
	require.NoError(t, err)

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.ApproveStep(ctx, ApproveStepRequest{
				CompanyID:  "acme",
				InstanceID: inst.ID,
				StepID:     inst.Steps[0].ID,
				Actor:      Actor{ID: "mgr-1", Name: "Manager"},
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, domainwf.ErrStepMismatch)
		}
	}
	assert.Equal(t, 1, wins)

	entries, err := history.GetByInstanceID(ctx, "acme", inst.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2) // created + exactly one step_completed
}
