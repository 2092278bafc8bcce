package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/quanhr/hr-workflow/internal/application/port"
	"github.com/quanhr/hr-workflow/internal/domain/entity"
	"github.com/quanhr/hr-workflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// HistoryRepository implements port.HistoryRepository. The table is
// append-only; there is no update or delete statement in this file on
// purpose.
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a new history record
func (r *HistoryRepository) Create(ctx context.Context, h *entity.WorkflowHistory) error {
	metaJSON, err := marshalMap(h.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	query := `
		INSERT INTO workflow_history (
			instance_id, company_id, workflow_type, action,
			actor_id, actor_name, actor_role, description, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		h.InstanceID,
		h.CompanyID,
		h.WorkflowType,
		h.Action,
		h.ActorID,
		h.ActorName,
		h.ActorRole,
		h.Description,
		string(metaJSON),
	)
	if err != nil {
		r.logger.Error("Failed to create history record", zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	h.ID = id
	return nil
}

// GetByInstanceID retrieves all history records for an instance, oldest first
func (r *HistoryRepository) GetByInstanceID(ctx context.Context, companyID string, instanceID int64) ([]*entity.WorkflowHistory, error) {
	query := `
		SELECT id, instance_id, company_id, workflow_type, action,
			actor_id, actor_name, actor_role, description, metadata, created_at
		FROM workflow_history
		WHERE company_id = ? AND instance_id = ?
		ORDER BY id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, companyID, instanceID)
	if err != nil {
		r.logger.Error("Failed to get history", zap.Int64("instance_id", instanceID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var records []*entity.WorkflowHistory
	for rows.Next() {
		var record entity.WorkflowHistory
		var metaJSON string
		err := rows.Scan(
			&record.ID,
			&record.InstanceID,
			&record.CompanyID,
			&record.WorkflowType,
			&record.Action,
			&record.ActorID,
			&record.ActorName,
			&record.ActorRole,
			&record.Description,
			&metaJSON,
			&record.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		if metaJSON != "" && metaJSON != "null" {
			if err := json.Unmarshal([]byte(metaJSON), &record.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata: %w", err)
			}
		}
		records = append(records, &record)
	}

	return records, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *HistoryRepository) getExecutor(ctx context.Context) executor {
	if tx := sqlite.ExtractTx(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
