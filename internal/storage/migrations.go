package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kyleking/hr-insight/internal/logging"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

// MigrationManager creates the HR schema in a writable local store. The
// analytics path never uses it; it only opens stores read-only.
type MigrationManager struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewMigrationManager creates a new migration manager
func NewMigrationManager(db *sql.DB, logger *logging.Logger) *MigrationManager {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &MigrationManager{db: db, logger: logger}
}

// GetMigrations returns all available migrations in order
func (m *MigrationManager) GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Core HR tables",
			Up: `
				CREATE TABLE IF NOT EXISTS departments (
					department_id INTEGER PRIMARY KEY,
					name VARCHAR NOT NULL,
					division VARCHAR,
					location VARCHAR,
					budget DOUBLE
				);

				CREATE TABLE IF NOT EXISTS employees (
					employee_id INTEGER PRIMARY KEY,
					first_name VARCHAR NOT NULL,
					last_name VARCHAR NOT NULL,
					department_id INTEGER,
					job_title VARCHAR,
					job_level INTEGER,
					manager_id INTEGER,
					hire_date DATE,
					employment_status VARCHAR,
					employment_type VARCHAR,
					gender VARCHAR,
					birth_date DATE,
					location VARCHAR,
					salary DOUBLE
				);

				CREATE TABLE IF NOT EXISTS terminations (
					termination_id INTEGER PRIMARY KEY,
					employee_id INTEGER NOT NULL,
					termination_date DATE NOT NULL,
					reason VARCHAR,
					voluntary BOOLEAN,
					regrettable BOOLEAN
				);

				CREATE INDEX IF NOT EXISTS idx_employees_department ON employees(department_id);
				CREATE INDEX IF NOT EXISTS idx_terminations_date ON terminations(termination_date)
			`,
			Down: `
				DROP INDEX IF EXISTS idx_terminations_date;
				DROP INDEX IF EXISTS idx_employees_department;
				DROP TABLE IF EXISTS terminations;
				DROP TABLE IF EXISTS employees;
				DROP TABLE IF EXISTS departments
			`,
		},
		{
			Version:     2,
			Description: "Performance, compensation and engagement",
			Up: `
				CREATE TABLE IF NOT EXISTS performance_reviews (
					review_id INTEGER PRIMARY KEY,
					employee_id INTEGER NOT NULL,
					review_date DATE NOT NULL,
					rating INTEGER,
					reviewer_id INTEGER,
					goals_met_pct DOUBLE
				);

				CREATE TABLE IF NOT EXISTS compensation_history (
					change_id INTEGER PRIMARY KEY,
					employee_id INTEGER NOT NULL,
					effective_date DATE NOT NULL,
					base_salary DOUBLE,
					bonus DOUBLE,
					change_reason VARCHAR
				);

				CREATE TABLE IF NOT EXISTS engagement_surveys (
					response_id INTEGER PRIMARY KEY,
					employee_id INTEGER NOT NULL,
					survey_date DATE NOT NULL,
					engagement_score DOUBLE,
					would_recommend INTEGER
				)
			`,
			Down: `
				DROP TABLE IF EXISTS engagement_surveys;
				DROP TABLE IF EXISTS compensation_history;
				DROP TABLE IF EXISTS performance_reviews
			`,
		},
	}
}

// InitializeMigrationTable creates the migration tracking table
func (m *MigrationManager) InitializeMigrationTable(ctx context.Context) error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		description VARCHAR NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	if _, err := m.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	return nil
}

// GetAppliedMigrations returns a list of applied migration versions
func (m *MigrationManager) GetAppliedMigrations(ctx context.Context) ([]int, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	var versions []int

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}

		versions = append(versions, version)
	}

	return versions, rows.Err()
}

// ApplyMigration applies a single migration inside a transaction
func (m *MigrationManager) ApplyMigration(ctx context.Context, migration Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	if err := execScript(ctx, tx, migration.Up); err != nil {
		return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
		migration.Version, migration.Description)
	if err != nil {
		return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
	}

	return tx.Commit()
}

// RollbackMigration rolls back a single migration
func (m *MigrationManager) RollbackMigration(ctx context.Context, migration Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	if err := execScript(ctx, tx, migration.Down); err != nil {
		return fmt.Errorf("failed to rollback migration %d: %w", migration.Version, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = ?", migration.Version); err != nil {
		return fmt.Errorf("failed to remove migration record %d: %w", migration.Version, err)
	}

	return tx.Commit()
}

// MigrateUp applies all pending migrations and returns how many ran
func (m *MigrationManager) MigrateUp(ctx context.Context) (int, error) {
	if err := m.InitializeMigrationTable(ctx); err != nil {
		return 0, err
	}

	appliedVersions, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return 0, err
	}

	appliedMap := make(map[int]bool, len(appliedVersions))
	for _, version := range appliedVersions {
		appliedMap[version] = true
	}

	migrations := m.GetMigrations()
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	applied := 0

	for _, migration := range migrations {
		if appliedMap[migration.Version] {
			continue
		}

		m.logger.WithField("version", migration.Version).Infof("Applying migration: %s", migration.Description)

		if err := m.ApplyMigration(ctx, migration); err != nil {
			return applied, fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}

		applied++
	}

	return applied, nil
}

// MigrateDown rolls back migrations above targetVersion
func (m *MigrationManager) MigrateDown(ctx context.Context, targetVersion int) error {
	appliedVersions, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	migrationMap := make(map[int]Migration)
	for _, migration := range m.GetMigrations() {
		migrationMap[migration.Version] = migration
	}

	sort.Sort(sort.Reverse(sort.IntSlice(appliedVersions)))

	for _, version := range appliedVersions {
		if version <= targetVersion {
			break
		}

		migration, exists := migrationMap[version]
		if !exists {
			return fmt.Errorf("migration %d not found", version)
		}

		m.logger.WithField("version", version).Infof("Rolling back migration: %s", migration.Description)

		if err := m.RollbackMigration(ctx, migration); err != nil {
			return err
		}
	}

	return nil
}

// MigrationStatus represents the status of a migration
type MigrationStatus struct {
	Version     int       `json:"version"`
	Description string    `json:"description"`
	Applied     bool      `json:"applied"`
	AppliedAt   time.Time `json:"applied_at,omitempty"`
}

// GetMigrationStatus returns every known migration with its applied flag
func (m *MigrationManager) GetMigrationStatus(ctx context.Context) ([]MigrationStatus, error) {
	if err := m.InitializeMigrationTable(ctx); err != nil {
		return nil, err
	}

	appliedVersions, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	appliedMap := make(map[int]bool, len(appliedVersions))
	for _, version := range appliedVersions {
		appliedMap[version] = true
	}

	var status []MigrationStatus
	for _, migration := range m.GetMigrations() {
		status = append(status, MigrationStatus{
			Version:     migration.Version,
			Description: migration.Description,
			Applied:     appliedMap[migration.Version],
		})
	}

	return status, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// execScript runs semicolon-separated DDL one statement at a time. Scripts
// here never contain semicolons inside literals.
func execScript(ctx context.Context, db execer, script string) error {
	for _, stmt := range strings.Split(script, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}

		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}
