package db

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peakmotif/domain/core"
	"peakmotif/domain/enrichment"
	"peakmotif/internal/errors"
	"peakmotif/internal/migration"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	runner := migration.NewRunner()
	require.NoError(t, runner.Run(context.Background(), db))
	// repeated migrations are no-ops
	require.NoError(t, runner.Run(context.Background(), db))
	return db
}

func sampleRun(id string, at time.Time) *enrichment.Run {
	return &enrichment.Run{
		ID:              core.RunID(id),
		CreatedAt:       core.NewTimestamp(at),
		ConfigHash:      "abc123",
		PopulationHash:  "def456",
		Params:          `{"max_k":2}`,
		Status:          enrichment.RunStatusComplete,
		TotalPeaks:      120,
		AdmittedPeaks:   110,
		RegressionPeaks: 100,
		MotifsScanned:   4,
		MotifsTested:    3,
		MinSetSize:      3,
		MaxSetSize:      107,
		Significant:     1,
	}
}

func TestResultRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewResultRepository(openTestDB(t))

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run := sampleRun("run-1", at)
	results := []enrichment.MotifResult{
		{MotifID: "zeta", Coef: 2.5, StdErr: 0.3, CILower: 1.9, CIUpper: 3.1, PValue: 1e-8, AUC: 0.9, PAdj: 2e-8, PAdjSig: 1, AbsCoef: 2.5, NumPeaks: 40, PercentPeaks: 33.3},
		{MotifID: "alpha", Coef: -0.1, StdErr: 0.2, CILower: -0.5, CIUpper: 0.3, PValue: 0.6, AUC: 0.52, PAdj: 0.6, AbsCoef: 0.1, NumPeaks: 12, PercentPeaks: 10},
	}
	failures := []enrichment.MotifFailure{
		{MotifID: "omega", Index: 2, Reason: core.ReasonDegenerateLabel, Detail: "every peak hit"},
	}
	require.NoError(t, repo.SaveRun(ctx, run, results, failures))

	got, err := repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run.ConfigHash, got.ConfigHash)
	assert.Equal(t, "def456", got.PopulationHash)
	assert.Equal(t, run.Status, got.Status)
	assert.Equal(t, 110, got.AdmittedPeaks)
	assert.Equal(t, 107, got.MaxSetSize)
	assert.WithinDuration(t, at, got.CreatedAt.Time(), time.Second)

	gotResults, err := repo.GetResults(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, results, gotResults)

	gotFailures, err := repo.GetFailures(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, gotFailures, 1)
	assert.Equal(t, core.MotifID("omega"), gotFailures[0].MotifID)
	assert.Equal(t, core.ReasonDegenerateLabel, gotFailures[0].Reason)
	assert.Equal(t, 2, gotFailures[0].Index)
}

func TestResultRepository_NotFound(t *testing.T) {
	repo := NewResultRepository(openTestDB(t))
	_, err := repo.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}

func TestResultRepository_ListRuns(t *testing.T) {
	ctx := context.Background()
	repo := NewResultRepository(openTestDB(t))

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, repo.SaveRun(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Hour)), nil, nil))
	}

	runs, err := repo.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, core.RunID("r3"), runs[0].ID)

	runs, err = repo.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestResultRepository_DuplicateRunRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := NewResultRepository(openTestDB(t))

	require.NoError(t, repo.SaveRun(ctx, sampleRun("dup", time.Now()), nil, nil))
	err := repo.SaveRun(ctx, sampleRun("dup", time.Now()), []enrichment.MotifResult{{MotifID: "m"}}, nil)
	require.Error(t, err)
	assert.Equal(t, errors.CodeDatabaseError, errors.GetCode(err))

	results, err := repo.GetResults(ctx, "dup")
	require.NoError(t, err)
	assert.Empty(t, results)
}
