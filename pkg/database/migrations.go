package database

import (
	"fmt"

	"go.uber.org/zap"
)

// Migration represents one schema migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered schema history. Entries are append-only; never
// edit an applied migration.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_workflow_instances",
		SQL: `
			CREATE TABLE IF NOT EXISTS workflow_instances (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				company_id TEXT NOT NULL,
				template_id TEXT NOT NULL DEFAULT '',
				template_name TEXT NOT NULL DEFAULT '',
				type TEXT NOT NULL,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				initiator_id TEXT NOT NULL,
				initiator_name TEXT NOT NULL DEFAULT '',
				related_entity_type TEXT NOT NULL DEFAULT '',
				related_entity_id TEXT NOT NULL DEFAULT '',
				related_entity_name TEXT NOT NULL DEFAULT '',
				form_data TEXT NOT NULL DEFAULT 'null',
				steps TEXT NOT NULL,
				current_step_index INTEGER NOT NULL DEFAULT 0,
				status TEXT NOT NULL DEFAULT 'active',
				priority TEXT NOT NULL DEFAULT 'medium',
				version INTEGER NOT NULL DEFAULT 0,
				start_date DATETIME NOT NULL,
				end_date DATETIME,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_instances_company_created
				ON workflow_instances(company_id, created_at DESC);
			CREATE INDEX IF NOT EXISTS idx_instances_company_type
				ON workflow_instances(company_id, type);
			CREATE UNIQUE INDEX IF NOT EXISTS ux_instances_active_entity
				ON workflow_instances(company_id, related_entity_id, type)
				WHERE status = 'active' AND related_entity_id <> '';
		`,
	},
	{
		Version: 2,
		Name:    "create_workflow_history",
		SQL: `
			CREATE TABLE IF NOT EXISTS workflow_history (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				instance_id INTEGER NOT NULL,
				company_id TEXT NOT NULL,
				workflow_type TEXT NOT NULL DEFAULT '',
				action TEXT NOT NULL,
				actor_id TEXT NOT NULL,
				actor_name TEXT NOT NULL DEFAULT '',
				actor_role TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				metadata TEXT NOT NULL DEFAULT 'null',
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (instance_id) REFERENCES workflow_instances(id)
			);
			CREATE INDEX IF NOT EXISTS idx_history_instance
				ON workflow_history(company_id, instance_id);
		`,
	},
	{
		Version: 3,
		Name:    "create_employees",
		SQL: `
			CREATE TABLE IF NOT EXISTS employees (
				id TEXT NOT NULL,
				company_id TEXT NOT NULL,
				name TEXT NOT NULL,
				department TEXT NOT NULL DEFAULT '',
				position TEXT NOT NULL DEFAULT '',
				manager_id TEXT NOT NULL DEFAULT '',
				manager_name TEXT NOT NULL DEFAULT '',
				lark_open_id TEXT NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (company_id, id)
			);
		`,
	},
}

// Migrator applies pending schema migrations
type Migrator struct {
	db     *DB
	logger *zap.Logger
}

// NewMigrator creates a new migrator
func NewMigrator(db *DB, logger *zap.Logger) *Migrator {
	return &Migrator{
		db:     db,
		logger: logger,
	}
}

// Run applies all pending migrations in version order
func (m *Migrator) Run() error {
	if err := m.createMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.appliedVersions()
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	for _, mig := range migrations {
		if applied[mig.Version] {
			continue
		}

		tx, err := m.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", mig.Version, err)
		}
		if _, err := tx.Exec(mig.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", mig.Version, mig.Name, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			mig.Version, mig.Name,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", mig.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", mig.Version, err)
		}

		m.logger.Info("Applied migration",
			zap.Int("version", mig.Version),
			zap.String("name", mig.Name))
	}

	return nil
}

func (m *Migrator) createMigrationsTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`
	_, err := m.db.Exec(query)
	return err
}

func (m *Migrator) appliedVersions() (map[int]bool, error) {
	rows, err := m.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
