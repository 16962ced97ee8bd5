// Package engine fits one covariate-adjusted logistic regression per motif
// and aggregates the results into a ranked, multiplicity-corrected table.
package engine

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"peakmotif/adapters/stats/logit"
	"peakmotif/domain/core"
	"peakmotif/domain/enrichment"
)

// ciAlpha gives 95% Wald intervals
const ciAlpha = 0.05

// Engine runs per-motif regressions over a shared read-only design
type Engine struct {
	nJobs int
	opts  logit.Options
}

// NewEngine creates an engine running at most nJobs fits at once
func NewEngine(nJobs int) *Engine {
	if nJobs < 1 {
		nJobs = 1
	}
	return &Engine{nJobs: nJobs, opts: logit.DefaultOptions()}
}

// WithOptions overrides the solver limits
func (e *Engine) WithOptions(opts logit.Options) *Engine {
	e.opts = opts
	return e
}

// Request is one batch of motifs to test
type Request struct {
	Input      *enrichment.RegressionInput
	HitSets    enrichment.HitSets
	MinSetSize int
	MaxSetSize int
	// Progress, if set, is called from workers after each fit
	Progress func(done, total int)
}

// Outcome holds the fits of every qualifying motif. Results and Failures are
// both in motif order; a motif appears in exactly one of them.
type Outcome struct {
	Results  []enrichment.MotifResult
	Failures []enrichment.MotifFailure
	Tested   int
	Skipped  []core.MotifID
}

type slot struct {
	result  *enrichment.MotifResult
	failure *enrichment.MotifFailure
}

// Run tests every motif whose hit-set size lies within [MinSetSize, MaxSetSize].
// Motif-local failures are recorded; any other error aborts the batch.
func (e *Engine) Run(ctx context.Context, req Request) (*Outcome, error) {
	if req.Input == nil || req.Input.Len() == 0 {
		return nil, core.ErrEmptyPopulation
	}
	scoreIdx := -1
	for j, c := range req.Input.Columns {
		if c == req.Input.ScoreColumn {
			scoreIdx = j
			break
		}
	}
	if scoreIdx < 0 {
		return nil, fmt.Errorf("score column %q not in design", req.Input.ScoreColumn)
	}

	out := &Outcome{}
	var qualifying []core.MotifID
	for _, id := range req.HitSets.MotifIDs() {
		size := req.HitSets[id].Len()
		if size < req.MinSetSize || size > req.MaxSetSize {
			out.Skipped = append(out.Skipped, id)
			continue
		}
		qualifying = append(qualifying, id)
	}
	out.Tested = len(qualifying)

	design := mat.NewDense(req.Input.Len(), req.Input.Width(), req.Input.Flat())
	slots := make([]slot, len(qualifying))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.nJobs)
	for i, id := range qualifying {
		i, id := i, id
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := e.FitMotif(design, req.Input.IDs, scoreIdx, id, req.HitSets[id])
			switch {
			case err == nil:
				slots[i].result = &res
			case core.IsMotifLocal(err):
				slots[i].failure = &enrichment.MotifFailure{
					MotifID: id,
					Index:   i,
					Reason:  core.ClassifyFailure(err),
					Detail:  err.Error(),
					Err:     err,
				}
			default:
				return fmt.Errorf("motif %s: %w", id, err)
			}
			if req.Progress != nil {
				req.Progress(int(done.Add(1)), len(qualifying))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, s := range slots {
		if s.result != nil {
			out.Results = append(out.Results, *s.result)
		} else if s.failure != nil {
			out.Failures = append(out.Failures, *s.failure)
		}
	}
	return out, nil
}

// FitMotif regresses membership in set on the design and reports the score term
func (e *Engine) FitMotif(design mat.Matrix, ids []core.PeakID, scoreIdx int, motifID core.MotifID, set enrichment.PeakSet) (enrichment.MotifResult, error) {
	y := make([]float64, len(ids))
	classes := make([]bool, len(ids))
	hits := 0
	for i, id := range ids {
		if set.Contains(id) {
			y[i] = 1
			classes[i] = true
			hits++
		}
	}
	if hits == 0 || hits == len(ids) {
		return enrichment.MotifResult{}, core.NewDegenerateLabelError(motifID, hits, len(ids))
	}

	fit, err := logit.FitLogistic(design, y, e.opts)
	if err != nil {
		return enrichment.MotifResult{}, fmt.Errorf("motif %s: %w", motifID, err)
	}
	w := fit.WaldTest(scoreIdx, ciAlpha)
	auc, err := logit.AUC(fit.Predicted, classes)
	if err != nil {
		return enrichment.MotifResult{}, fmt.Errorf("motif %s: %w", motifID, err)
	}

	return enrichment.MotifResult{
		MotifID: motifID,
		Coef:    w.Coef,
		StdErr:  w.StdErr,
		CILower: w.CILower,
		CIUpper: w.CIUpper,
		PValue:  w.PValue,
		AUC:     auc,
	}, nil
}
