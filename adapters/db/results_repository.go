// Package db persists enrichment runs through sqlx. Queries use ? placeholders
// rebound for the connected driver, so the same repository serves postgres
// and sqlite.
package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"peakmotif/domain/core"
	"peakmotif/domain/enrichment"
	"peakmotif/internal/errors"
	"peakmotif/ports"
)

// ResultRepositoryImpl implements ports.ResultRepository
type ResultRepositoryImpl struct {
	db *sqlx.DB
}

// NewResultRepository creates a repository over an open, migrated database
func NewResultRepository(db *sqlx.DB) ports.ResultRepository {
	return &ResultRepositoryImpl{db: db}
}

type runRow struct {
	enrichment.Run
	CreatedAt time.Time `db:"created_at"`
}

type resultRow struct {
	RunID string `db:"run_id"`
	Rank  int    `db:"result_rank"`
	enrichment.MotifResult
}

type failureRow struct {
	RunID string `db:"run_id"`
	enrichment.MotifFailure
}

const runColumns = `id, created_at, config_hash, population_hash, params, status, total_peaks, admitted_peaks,
	regression_peaks, motifs_scanned, motifs_tested, min_set_size, max_set_size, significant, error_message`

// SaveRun stores the run and its rows in one transaction. Results keep their
// ranked order.
func (r *ResultRepositoryImpl) SaveRun(ctx context.Context, run *enrichment.Run, results []enrichment.MotifResult, failures []enrichment.MotifFailure) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = core.Now()
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	row := runRow{Run: *run, CreatedAt: run.CreatedAt.Time().UTC()}
	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO enrichment_runs (`+runColumns+`)
		VALUES (:id, :created_at, :config_hash, :population_hash, :params, :status, :total_peaks, :admitted_peaks,
			:regression_peaks, :motifs_scanned, :motifs_tested, :min_set_size, :max_set_size, :significant, :error_message)
	`, row); err != nil {
		return errors.WithCode(errors.CodeDatabaseError, fmt.Errorf("failed to insert run %s: %w", run.ID, err))
	}

	for i, res := range results {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO motif_results (run_id, result_rank, motif_id, coef, std_err, ci_lower, ci_upper,
				pval, auc, padj, padj_sig, abs_coef, num_peaks, percent_peaks)
			VALUES (:run_id, :result_rank, :motif_id, :coef, :std_err, :ci_lower, :ci_upper,
				:pval, :auc, :padj, :padj_sig, :abs_coef, :num_peaks, :percent_peaks)
		`, resultRow{RunID: run.ID.String(), Rank: i + 1, MotifResult: res}); err != nil {
			return errors.WithCode(errors.CodeDatabaseError, fmt.Errorf("failed to insert result %s: %w", res.MotifID, err))
		}
	}

	for _, f := range failures {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO motif_failures (run_id, motif_id, motif_index, reason, detail)
			VALUES (:run_id, :motif_id, :motif_index, :reason, :detail)
		`, failureRow{RunID: run.ID.String(), MotifFailure: f}); err != nil {
			return errors.WithCode(errors.CodeDatabaseError, fmt.Errorf("failed to insert failure %s: %w", f.MotifID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.WithCode(errors.CodeDatabaseError, err)
	}
	return nil
}

// GetRun retrieves a run by ID
func (r *ResultRepositoryImpl) GetRun(ctx context.Context, id core.RunID) (*enrichment.Run, error) {
	var row runRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT `+runColumns+` FROM enrichment_runs WHERE id = ?`), id.String())
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound(fmt.Sprintf("run %s", id))
	}
	if err != nil {
		return nil, errors.WithCode(errors.CodeDatabaseError, err)
	}
	return row.toRun(), nil
}

// ListRuns returns the most recent runs first, optionally limited
func (r *ResultRepositoryImpl) ListRuns(ctx context.Context, limit int) ([]*enrichment.Run, error) {
	query := `SELECT ` + runColumns + ` FROM enrichment_runs ORDER BY created_at DESC, id`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []runRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, errors.WithCode(errors.CodeDatabaseError, err)
	}
	runs := make([]*enrichment.Run, len(rows))
	for i := range rows {
		runs[i] = rows[i].toRun()
	}
	return runs, nil
}

// GetResults returns a run's results in ranked order
func (r *ResultRepositoryImpl) GetResults(ctx context.Context, id core.RunID) ([]enrichment.MotifResult, error) {
	var rows []resultRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT run_id, result_rank, motif_id, coef, std_err, ci_lower, ci_upper, pval, auc,
			padj, padj_sig, abs_coef, num_peaks, percent_peaks
		FROM motif_results
		WHERE run_id = ?
		ORDER BY result_rank
	`), id.String())
	if err != nil {
		return nil, errors.WithCode(errors.CodeDatabaseError, err)
	}
	results := make([]enrichment.MotifResult, len(rows))
	for i, row := range rows {
		results[i] = row.MotifResult
	}
	return results, nil
}

// GetFailures returns a run's failed motifs in motif order
func (r *ResultRepositoryImpl) GetFailures(ctx context.Context, id core.RunID) ([]enrichment.MotifFailure, error) {
	var rows []failureRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT run_id, motif_id, motif_index, reason, detail
		FROM motif_failures
		WHERE run_id = ?
		ORDER BY motif_index
	`), id.String())
	if err != nil {
		return nil, errors.WithCode(errors.CodeDatabaseError, err)
	}
	failures := make([]enrichment.MotifFailure, len(rows))
	for i, row := range rows {
		failures[i] = row.MotifFailure
	}
	return failures, nil
}

func (row runRow) toRun() *enrichment.Run {
	run := row.Run
	run.CreatedAt = core.NewTimestamp(row.CreatedAt)
	return &run
}
