package workflow

import (
	"context"

	"github.com/quanhr/hr-workflow/internal/application/port"
	"github.com/quanhr/hr-workflow/internal/domain/entity"
)

// Actor identifies who performs a transition. Role resolution (which person
// currently holds "hr") happens before the engine is called.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// Engine owns the workflow instance lifecycle. Domain builders create
// instances through it and actor actions transition them; nothing else may
// mutate instance or step state.
type Engine interface {
	// CreateInstance validates and persists a builder-produced instance and
	// appends the created history entry atomically.
	CreateInstance(ctx context.Context, inst *entity.WorkflowInstance) (*entity.WorkflowInstance, error)

	// GetInstance fetches one instance, tenant scoped.
	GetInstance(ctx context.Context, companyID string, instanceID int64) (*entity.WorkflowInstance, error)

	// ListInstances returns instances matching the filter, newest first.
	ListInstances(ctx context.Context, filter port.InstanceFilter) ([]*entity.WorkflowInstance, error)

	// FindActiveByEntity returns the one active instance governing a
	// business entity, or nil when there is none.
	FindActiveByEntity(ctx context.Context, companyID, relatedEntityID, workflowType string) (*entity.WorkflowInstance, error)

	// AdvanceStep completes the current step and, unless told otherwise,
	// starts the next one or finishes the instance.
	AdvanceStep(ctx context.Context, req AdvanceStepRequest) (*entity.WorkflowInstance, error)

	// ApproveStep is AdvanceStep with result "approved", permitted only on
	// approval steps.
	ApproveStep(ctx context.Context, req ApproveStepRequest) (*entity.WorkflowInstance, error)

	// RejectStep cancels the whole instance. The in-flight step is left
	// untouched; a rejected request must be resubmitted as a new instance.
	RejectStep(ctx context.Context, req RejectStepRequest) (*entity.WorkflowInstance, error)

	// ResumeInstance starts the next pending step of an instance paused by
	// AdvanceStep with AdvanceToNext=false, or finishes the instance when no
	// step remains.
	ResumeInstance(ctx context.Context, req ResumeRequest) (*entity.WorkflowInstance, error)

	// UpdateInstance changes descriptive fields of an active instance.
	UpdateInstance(ctx context.Context, req UpdateRequest) (*entity.WorkflowInstance, error)

	// GetHistory returns the append-only audit trail, oldest first.
	GetHistory(ctx context.Context, companyID string, instanceID int64) ([]*entity.WorkflowHistory, error)
}

// AdvanceStepRequest carries one step completion.
type AdvanceStepRequest struct {
	CompanyID  string
	InstanceID int64
	// StepID must equal the id of the current step; a stale id fails with
	// ErrStepMismatch.
	StepID   string
	Actor    Actor
	Result   string
	Comments string
	FormData map[string]interface{}
	// AdvanceToNext false leaves the instance active with no step in
	// progress until ResumeInstance is called, for effects that must finish
	// out of band first.
	AdvanceToNext bool
}

// ApproveStepRequest approves the current approval step.
type ApproveStepRequest struct {
	CompanyID  string
	InstanceID int64
	StepID     string
	Actor      Actor
	Comments   string
}

// RejectStepRequest rejects the current approval step, cancelling the instance.
type RejectStepRequest struct {
	CompanyID  string
	InstanceID int64
	Actor      Actor
	Reason     string
}

// ResumeRequest restarts a paused instance.
type ResumeRequest struct {
	CompanyID  string
	InstanceID int64
	Actor      Actor
}

// UpdateRequest changes descriptive fields; nil means unchanged.
type UpdateRequest struct {
	CompanyID   string
	InstanceID  int64
	Actor       Actor
	Name        *string
	Description *string
	Priority    *string
}
