package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/quanhr/hr-workflow/internal/application/port"
	"github.com/quanhr/hr-workflow/internal/domain/entity"
	"github.com/quanhr/hr-workflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// EmployeeRepository implements port.EmployeeRepository
type EmployeeRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEmployeeRepository creates a new employee repository
func NewEmployeeRepository(db *sql.DB, logger *zap.Logger) port.EmployeeRepository {
	return &EmployeeRepository{
		db:     db,
		logger: logger,
	}
}

// Create persists a new employee record
func (r *EmployeeRepository) Create(ctx context.Context, emp *entity.Employee) error {
	query := `
		INSERT INTO employees (
			id, company_id, name, department, position,
			manager_id, manager_name, lark_open_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		emp.ID,
		emp.CompanyID,
		emp.Name,
		emp.Department,
		emp.Position,
		emp.ManagerID,
		emp.ManagerName,
		emp.LarkOpenID,
	)
	if err != nil {
		r.logger.Error("Failed to create employee", zap.String("id", emp.ID), zap.Error(err))
		return fmt.Errorf("failed to create employee: %w", err)
	}
	return nil
}

// GetByID retrieves an employee by ID, tenant scoped
func (r *EmployeeRepository) GetByID(ctx context.Context, companyID, id string) (*entity.Employee, error) {
	query := `
		SELECT id, company_id, name, department, position,
			manager_id, manager_name, lark_open_id, created_at
		FROM employees
		WHERE company_id = ? AND id = ?
	`

	var emp entity.Employee
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, companyID, id).Scan(
		&emp.ID,
		&emp.CompanyID,
		&emp.Name,
		&emp.Department,
		&emp.Position,
		&emp.ManagerID,
		&emp.ManagerName,
		&emp.LarkOpenID,
		&emp.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get employee", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return &emp, nil
}

// getExecutor returns appropriate executor based on context
func (r *EmployeeRepository) getExecutor(ctx context.Context) executor {
	if tx := sqlite.ExtractTx(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.EmployeeRepository = (*EmployeeRepository)(nil)
