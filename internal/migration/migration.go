package migration

import (
	"context"
	"fmt"

	"floodcv/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner creates the study store schema. Statements stick to types
// both sqlite3 and postgres accept.
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	steps := []struct {
		name string
		run  func(context.Context, *sqlx.DB) error
	}{
		{"schema_migrations", r.createMigrationsTable},
		{"studies", r.createStudiesTable},
		{"trials", r.createTrialsTable},
		{"fold_summaries", r.createFoldSummariesTable},
		{"indexes", r.createIndexes},
	}
	for _, step := range steps {
		if err := step.run(ctx, db); err != nil {
			return errors.Wrap(err, fmt.Sprintf("failed to create %s", step.name))
		}
	}
	return r.recordVersion(ctx, db)
}

func (r *MigrationRunner) createMigrationsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(32) PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func (r *MigrationRunner) createStudiesTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS studies (
			id VARCHAR(36) PRIMARY KEY,
			objective VARCHAR(32) NOT NULL,
			n_trials INTEGER NOT NULL,
			best_params TEXT,
			best_score DOUBLE PRECISION,
			created_at TIMESTAMP NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createTrialsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS trials (
			study_id VARCHAR(36) NOT NULL REFERENCES studies(id) ON DELETE CASCADE,
			number INTEGER NOT NULL,
			params TEXT NOT NULL,
			score DOUBLE PRECISION NOT NULL,
			state VARCHAR(16) NOT NULL,
			error_message TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMP NOT NULL,
			duration_ms BIGINT NOT NULL,
			PRIMARY KEY (study_id, number)
		)
	`)
	return err
}

func (r *MigrationRunner) createFoldSummariesTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS fold_summaries (
			study_id VARCHAR(36) NOT NULL REFERENCES studies(id) ON DELETE CASCADE,
			fold_index INTEGER NOT NULL,
			test_group VARCHAR(255) NOT NULL,
			train_rows INTEGER NOT NULL,
			test_rows INTEGER NOT NULL,
			train_positives INTEGER NOT NULL,
			test_positives INTEGER NOT NULL,
			PRIMARY KEY (study_id, fold_index)
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_studies_objective ON studies(objective)`,
		`CREATE INDEX IF NOT EXISTS idx_studies_created_at ON studies(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_trials_state ON trials(study_id, state)`,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *MigrationRunner) recordVersion(ctx context.Context, db *sqlx.DB) error {
	var count int
	if err := db.GetContext(ctx, &count, db.Rebind(`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`), r.version); err != nil {
		return errors.Wrap(err, "failed to read schema version")
	}
	if count > 0 {
		return nil
	}
	_, err := db.ExecContext(ctx, db.Rebind(`INSERT INTO schema_migrations (version) VALUES (?)`), r.version)
	return errors.Wrap(err, "failed to record schema version")
}
