package ports

import (
	"context"
	"time"

	"peakmotif/domain/core"
	"peakmotif/domain/enrichment"
)

// MotifScanner finds motif occurrences in admitted peaks. The returned slice
// is indexed like motifs.
type MotifScanner interface {
	Scan(ctx context.Context, motifs []enrichment.Motif, peaks []enrichment.Peak, bg enrichment.Background) ([][]enrichment.ScanHit, error)
}

// SequenceCharacterizer derives the background model and composition
// covariates from admitted peaks
type SequenceCharacterizer interface {
	Background(peaks []enrichment.Peak) enrichment.Background
	KmerRatios(ctx context.Context, peaks []enrichment.Peak, maxK int) (*enrichment.Table, error)
	Lengths(peaks []enrichment.Peak) *enrichment.Table
	GC(ctx context.Context, peaks []enrichment.Peak) (*enrichment.Table, error)
}

// Stage names a pipeline step reported to a ProgressObserver
type Stage string

const (
	StageAdmit       Stage = "admit"
	StageScan        Stage = "scan"
	StageCovariates  Stage = "covariates"
	StagePreprocess  Stage = "preprocess"
	StageRegression  Stage = "regression"
	StageAggregation Stage = "aggregation"
)

// ProgressObserver receives pipeline events. Methods may be called from
// several goroutines at once.
type ProgressObserver interface {
	StageStarted(runID core.RunID, stage Stage)
	StageFinished(runID core.RunID, stage Stage, elapsed time.Duration, fields map[string]interface{})
	MotifProgress(runID core.RunID, stage Stage, done, total int)
}

// ResultRepository persists runs with their ranked results and failures
type ResultRepository interface {
	SaveRun(ctx context.Context, run *enrichment.Run, results []enrichment.MotifResult, failures []enrichment.MotifFailure) error
	GetRun(ctx context.Context, id core.RunID) (*enrichment.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*enrichment.Run, error)
	GetResults(ctx context.Context, id core.RunID) ([]enrichment.MotifResult, error)
	GetFailures(ctx context.Context, id core.RunID) ([]enrichment.MotifFailure, error)
}
