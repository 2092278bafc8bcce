package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/quanhr/hr-workflow/internal/application/port"
	"github.com/quanhr/hr-workflow/internal/domain/entity"
	domainwf "github.com/quanhr/hr-workflow/internal/domain/workflow"
	"github.com/quanhr/hr-workflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// InstanceRepository implements port.InstanceRepository over SQLite. Steps
// and form data are stored as JSON alongside the scalar columns; the version
// column backs the optimistic concurrency guard.
type InstanceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInstanceRepository creates a new instance repository
func NewInstanceRepository(db *sql.DB, logger *zap.Logger) port.InstanceRepository {
	return &InstanceRepository{
		db:     db,
		logger: logger,
	}
}

const instanceColumns = `
	id, company_id, template_id, template_name, type, name, description,
	initiator_id, initiator_name,
	related_entity_type, related_entity_id, related_entity_name,
	form_data, steps, current_step_index, status, priority, version,
	start_date, end_date, created_at, updated_at
`

// Create persists a new workflow instance
func (r *InstanceRepository) Create(ctx context.Context, inst *entity.WorkflowInstance) error {
	stepsJSON, err := json.Marshal(inst.Steps)
	if err != nil {
		return fmt.Errorf("failed to encode steps: %w", err)
	}
	formJSON, err := marshalMap(inst.FormData)
	if err != nil {
		return fmt.Errorf("failed to encode form data: %w", err)
	}

	query := `
		INSERT INTO workflow_instances (
			company_id, template_id, template_name, type, name, description,
			initiator_id, initiator_name,
			related_entity_type, related_entity_id, related_entity_name,
			form_data, steps, current_step_index, status, priority, version,
			start_date, end_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		inst.CompanyID,
		inst.TemplateID,
		inst.TemplateName,
		inst.Type,
		inst.Name,
		inst.Description,
		inst.InitiatorID,
		inst.InitiatorName,
		inst.RelatedEntityType,
		inst.RelatedEntityID,
		inst.RelatedEntityName,
		string(formJSON),
		string(stepsJSON),
		inst.CurrentStepIndex,
		inst.Status,
		inst.Priority,
		inst.Version,
		inst.StartDate,
		inst.EndDate,
	)
	if err != nil {
		r.logger.Error("Failed to create workflow instance", zap.Error(err))
		return fmt.Errorf("failed to create instance: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	inst.ID = id
	return nil
}

// GetByID retrieves a workflow instance by ID, tenant scoped
func (r *InstanceRepository) GetByID(ctx context.Context, companyID string, id int64) (*entity.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE company_id = ? AND id = ?`

	inst, err := scanInstance(r.getExecutor(ctx).QueryRowContext(ctx, query, companyID, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get instance by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}
	return inst, nil
}

// List retrieves workflow instances matching the filter, newest first
func (r *InstanceRepository) List(ctx context.Context, filter port.InstanceFilter) ([]*entity.WorkflowInstance, error) {
	if filter.CompanyID == "" {
		return nil, fmt.Errorf("company id is required for listing")
	}

	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE company_id = ?`
	args := []interface{}{filter.CompanyID}

	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, filter.Type)
	}
	if filter.RelatedEntityID != "" {
		query += ` AND related_entity_id = ?`
		args = append(args, filter.RelatedEntityID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}

	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list instances", zap.Error(err))
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	defer rows.Close()

	var instances []*entity.WorkflowInstance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}

// FindActiveByEntity returns the active instance for an entity/type pair, or nil
func (r *InstanceRepository) FindActiveByEntity(ctx context.Context, companyID, relatedEntityID, workflowType string) (*entity.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances
		WHERE company_id = ? AND related_entity_id = ? AND type = ? AND status = ?
		LIMIT 1`

	inst, err := scanInstance(r.getExecutor(ctx).QueryRowContext(ctx, query,
		companyID, relatedEntityID, workflowType, entity.InstanceStatusActive))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to find active instance",
			zap.String("related_entity_id", relatedEntityID), zap.Error(err))
		return nil, fmt.Errorf("failed to find active instance: %w", err)
	}
	return inst, nil
}

// ListActiveByAssigneeRole scans across tenants for active instances whose
// current step is in progress and assigned to the given role. The JSON path
// into the steps column is built from current_step_index per row.
func (r *InstanceRepository) ListActiveByAssigneeRole(ctx context.Context, role string, limit int) ([]*entity.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances
		WHERE status = ?
		AND json_extract(steps, '$[' || current_step_index || '].status') = ?
		AND json_extract(steps, '$[' || current_step_index || '].assignee.role') = ?
		AND json_extract(steps, '$[' || current_step_index || '].assignee.user_id') IS NULL
		ORDER BY id ASC
		LIMIT ?`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query,
		entity.InstanceStatusActive, entity.StepStatusInProgress, role, limit)
	if err != nil {
		r.logger.Error("Failed to list instances by assignee role", zap.String("role", role), zap.Error(err))
		return nil, fmt.Errorf("failed to list instances by role: %w", err)
	}
	defer rows.Close()

	var instances []*entity.WorkflowInstance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}

// UpdateTransition persists a step transition conditioned on the version
// still matching. A lost race makes the update match zero rows, reported as
// ErrStepMismatch.
func (r *InstanceRepository) UpdateTransition(ctx context.Context, inst *entity.WorkflowInstance, expectedVersion int64) error {
	stepsJSON, err := json.Marshal(inst.Steps)
	if err != nil {
		return fmt.Errorf("failed to encode steps: %w", err)
	}

	query := `
		UPDATE workflow_instances
		SET steps = ?, current_step_index = ?, status = ?, end_date = ?,
			version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE company_id = ? AND id = ? AND version = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		string(stepsJSON),
		inst.CurrentStepIndex,
		inst.Status,
		inst.EndDate,
		inst.CompanyID,
		inst.ID,
		expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to update transition", zap.Int64("id", inst.ID), zap.Error(err))
		return fmt.Errorf("failed to update instance: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: instance %d changed concurrently", domainwf.ErrStepMismatch, inst.ID)
	}

	inst.Version = expectedVersion + 1
	return nil
}

// UpdateMeta persists descriptive fields only
func (r *InstanceRepository) UpdateMeta(ctx context.Context, inst *entity.WorkflowInstance) error {
	query := `
		UPDATE workflow_instances
		SET name = ?, description = ?, priority = ?, updated_at = CURRENT_TIMESTAMP
		WHERE company_id = ? AND id = ?
	`
	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		inst.Name, inst.Description, inst.Priority, inst.CompanyID, inst.ID)
	if err != nil {
		r.logger.Error("Failed to update instance meta", zap.Int64("id", inst.ID), zap.Error(err))
		return fmt.Errorf("failed to update instance: %w", err)
	}
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInstance(row rowScanner) (*entity.WorkflowInstance, error) {
	var inst entity.WorkflowInstance
	var formJSON, stepsJSON string
	var endDate sql.NullTime

	err := row.Scan(
		&inst.ID,
		&inst.CompanyID,
		&inst.TemplateID,
		&inst.TemplateName,
		&inst.Type,
		&inst.Name,
		&inst.Description,
		&inst.InitiatorID,
		&inst.InitiatorName,
		&inst.RelatedEntityType,
		&inst.RelatedEntityID,
		&inst.RelatedEntityName,
		&formJSON,
		&stepsJSON,
		&inst.CurrentStepIndex,
		&inst.Status,
		&inst.Priority,
		&inst.Version,
		&inst.StartDate,
		&endDate,
		&inst.CreatedAt,
		&inst.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if endDate.Valid {
		inst.EndDate = &endDate.Time
	}
	if err := json.Unmarshal([]byte(stepsJSON), &inst.Steps); err != nil {
		return nil, fmt.Errorf("failed to decode steps: %w", err)
	}
	if formJSON != "" && formJSON != "null" {
		if err := json.Unmarshal([]byte(formJSON), &inst.FormData); err != nil {
			return nil, fmt.Errorf("failed to decode form data: %w", err)
		}
	}
	return &inst, nil
}

func marshalMap(m map[string]interface{}) ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	return json.Marshal(m)
}

// getExecutor returns appropriate executor based on context
func (r *InstanceRepository) getExecutor(ctx context.Context) executor {
	if tx := sqlite.ExtractTx(ctx); tx != nil {
		return tx
	}
	return r.db
}

// executor interface covers both *sql.DB and *sql.Tx
type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Verify interface compliance
var _ port.InstanceRepository = (*InstanceRepository)(nil)
