package port

import (
	"context"

	"github.com/quanhr/hr-workflow/internal/domain/entity"
)

// InstanceFilter narrows a listing. CompanyID is mandatory; every query is
// tenant scoped. Zero values for the other fields mean "any".
type InstanceFilter struct {
	CompanyID       string
	Type            string
	RelatedEntityID string
	Status          string
	Limit           int
}

// InstanceRepository defines persistence operations for WorkflowInstance
type InstanceRepository interface {
	Create(ctx context.Context, inst *entity.WorkflowInstance) error
	GetByID(ctx context.Context, companyID string, id int64) (*entity.WorkflowInstance, error)
	List(ctx context.Context, filter InstanceFilter) ([]*entity.WorkflowInstance, error)
	FindActiveByEntity(ctx context.Context, companyID, relatedEntityID, workflowType string) (*entity.WorkflowInstance, error)

	// UpdateTransition persists a step transition conditioned on the stored
	// version still being expectedVersion. A conflicting writer makes the
	// update match zero rows; implementations report that as
	// workflow.ErrStepMismatch.
	UpdateTransition(ctx context.Context, inst *entity.WorkflowInstance, expectedVersion int64) error

	// UpdateMeta persists changes to descriptive fields only (name,
	// description, priority). Steps and status are untouchable here.
	UpdateMeta(ctx context.Context, inst *entity.WorkflowInstance) error

	// ListActiveByAssigneeRole scans across tenants for active instances
	// whose current step is in progress and assigned to the given role.
	// Used by the automation worker to pick up system steps.
	ListActiveByAssigneeRole(ctx context.Context, role string, limit int) ([]*entity.WorkflowInstance, error)
}

// HistoryRepository defines persistence operations for WorkflowHistory.
// History is append-only: there is deliberately no update or delete.
type HistoryRepository interface {
	Create(ctx context.Context, h *entity.WorkflowHistory) error
	GetByInstanceID(ctx context.Context, companyID string, instanceID int64) ([]*entity.WorkflowHistory, error)
}

// EmployeeRepository resolves the staff records domain builders need to
// assign steps.
type EmployeeRepository interface {
	Create(ctx context.Context, emp *entity.Employee) error
	GetByID(ctx context.Context, companyID, id string) (*entity.Employee, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
