package migration

import (
	"context"

	"peakmotif/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner creates the run and result schema. Statements are portable
// between postgres and sqlite and safe to repeat.
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

// Run executes all database migrations in order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createRunsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create enrichment_runs table")
	}

	if err := r.createResultsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create motif_results table")
	}

	if err := r.createFailuresTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create motif_failures table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS enrichment_runs (
			id TEXT PRIMARY KEY,
			created_at TIMESTAMP NOT NULL,
			config_hash TEXT NOT NULL,
			population_hash TEXT NOT NULL DEFAULT '',
			params TEXT NOT NULL,
			status TEXT NOT NULL,
			total_peaks INTEGER NOT NULL DEFAULT 0,
			admitted_peaks INTEGER NOT NULL DEFAULT 0,
			regression_peaks INTEGER NOT NULL DEFAULT 0,
			motifs_scanned INTEGER NOT NULL DEFAULT 0,
			motifs_tested INTEGER NOT NULL DEFAULT 0,
			min_set_size INTEGER NOT NULL DEFAULT 0,
			max_set_size INTEGER NOT NULL DEFAULT 0,
			significant INTEGER NOT NULL DEFAULT 0,
			error_message TEXT NOT NULL DEFAULT ''
		)
	`)
	return err
}

func (r *MigrationRunner) createResultsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS motif_results (
			run_id TEXT NOT NULL REFERENCES enrichment_runs(id) ON DELETE CASCADE,
			result_rank INTEGER NOT NULL,
			motif_id TEXT NOT NULL,
			coef DOUBLE PRECISION NOT NULL,
			std_err DOUBLE PRECISION NOT NULL,
			ci_lower DOUBLE PRECISION NOT NULL,
			ci_upper DOUBLE PRECISION NOT NULL,
			pval DOUBLE PRECISION NOT NULL,
			auc DOUBLE PRECISION NOT NULL,
			padj DOUBLE PRECISION NOT NULL,
			padj_sig INTEGER NOT NULL,
			abs_coef DOUBLE PRECISION NOT NULL,
			num_peaks INTEGER NOT NULL,
			percent_peaks DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (run_id, motif_id)
		)
	`)
	return err
}

func (r *MigrationRunner) createFailuresTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS motif_failures (
			run_id TEXT NOT NULL REFERENCES enrichment_runs(id) ON DELETE CASCADE,
			motif_id TEXT NOT NULL,
			motif_index INTEGER NOT NULL,
			reason TEXT NOT NULL,
			detail TEXT NOT NULL,
			PRIMARY KEY (run_id, motif_id)
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_enrichment_runs_created_at ON enrichment_runs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_motif_results_run_rank ON motif_results(run_id, result_rank)`,
		`CREATE INDEX IF NOT EXISTS idx_motif_results_motif ON motif_results(motif_id)`,
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
