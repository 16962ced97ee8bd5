package app

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"peakmotif/adapters/scan"
	"peakmotif/adapters/sequence"
	"peakmotif/adapters/stats/covariates"
	"peakmotif/adapters/stats/engine"
	"peakmotif/adapters/stats/preprocess"
	"peakmotif/domain/core"
	"peakmotif/domain/enrichment"
	"peakmotif/internal/config"
	"peakmotif/internal/errors"
	"peakmotif/internal/profiling"
	"peakmotif/ports"
)

// EnrichmentService runs the motif enrichment pipeline: degeneracy filter,
// scan, covariates, preprocessing, per-motif regression and aggregation
type EnrichmentService struct {
	scanner       ports.MotifScanner
	characterizer ports.SequenceCharacterizer
	observer      ports.ProgressObserver
	repo          ports.ResultRepository
}

// AnalyzeRequest defines the inputs of one run
type AnalyzeRequest struct {
	RunID          core.RunID // optional, generated if empty
	Records        []sequence.Record
	Scores         map[core.PeakID]float64
	Motifs         []enrichment.Motif
	UserCovariates *enrichment.Table // optional; first column already the key
	Config         config.RunConfig
}

// AnalysisResult contains every artifact of a completed run
type AnalysisResult struct {
	RunID        core.RunID                  `json:"run_id"`
	Run          *enrichment.Run             `json:"run"`
	Results      []enrichment.MotifResult    `json:"results"`
	Failures     []enrichment.MotifFailure   `json:"failures"`
	Skipped      []core.MotifID              `json:"skipped"`
	Input        *enrichment.RegressionInput `json:"-"`
	HitSets      enrichment.HitSets          `json:"-"`
	ScanHits     []enrichment.ScanHit        `json:"-"`
	Report       *preprocess.Report          `json:"preprocessing"`
	MinSetSize   int                         `json:"min_set_size"`
	MaxSetSize   int                         `json:"max_set_size"`
	ScoreSummary *profiling.ScoreSummary     `json:"score_summary,omitempty"`
	RuntimeMs    int64                       `json:"runtime_ms"`
}

// NewEnrichmentService creates the pipeline. observer may be nil.
func NewEnrichmentService(scanner ports.MotifScanner, characterizer ports.SequenceCharacterizer, observer ports.ProgressObserver) *EnrichmentService {
	if observer == nil {
		observer = NopObserver{}
	}
	return &EnrichmentService{
		scanner:       scanner,
		characterizer: characterizer,
		observer:      observer,
	}
}

// WithRepository stores every run, complete or failed, in repo
func (s *EnrichmentService) WithRepository(repo ports.ResultRepository) *EnrichmentService {
	s.repo = repo
	return s
}

// Analyze executes one run. Per-motif fitting problems are reported in
// Failures; shared preprocessing problems abort the run.
func (s *EnrichmentService) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalysisResult, error) {
	startTime := time.Now()
	cfg := req.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(req.Motifs) == 0 {
		return nil, errors.InvalidInput("no motifs supplied")
	}
	for _, m := range req.Motifs {
		if err := m.Validate(len(cfg.Alphabet)); err != nil {
			return nil, errors.WithCode(errors.CodeInvalidInput, err)
		}
	}

	runID := req.RunID
	if runID == "" {
		runID = core.NewRunID()
	}
	run, err := newRun(runID, cfg, len(req.Records), len(req.Motifs))
	if err != nil {
		return nil, err
	}

	res := &AnalysisResult{RunID: runID, Run: run}
	if err := s.analyze(ctx, req, res); err != nil {
		run.Status = enrichment.RunStatusFailed
		run.ErrorMessage = err.Error()
		if s.repo != nil && ctx.Err() == nil {
			// the analysis error is the one worth returning
			_ = s.repo.SaveRun(ctx, run, nil, nil)
		}
		return nil, err
	}
	res.RuntimeMs = time.Since(startTime).Milliseconds()

	run.Status = enrichment.RunStatusComplete
	run.Significant = enrichment.CountSignificant(res.Results)
	if s.repo != nil {
		if err := s.repo.SaveRun(ctx, run, res.Results, res.Failures); err != nil {
			return nil, errors.WithCode(errors.CodeDatabaseError, fmt.Errorf("failed to persist run %s: %w", runID, err))
		}
	}
	return res, nil
}

func (s *EnrichmentService) analyze(ctx context.Context, req AnalyzeRequest, res *AnalysisResult) error {
	cfg := req.Config
	runID := res.RunID

	var adm *sequence.Admission
	err := s.stage(runID, ports.StageAdmit, func() (map[string]interface{}, error) {
		var err error
		adm, err = sequence.Admit(req.Records, req.Scores, cfg.Alphabet, cfg.MaxPctDegenerate)
		if err != nil {
			return nil, errors.WithCode(errors.CodeInvalidInput, err)
		}
		if len(adm.Peaks) == 0 {
			return nil, errors.InputPopulation(fmt.Errorf("%w: all %d records rejected by the degeneracy filter", core.ErrEmptyPopulation, adm.Total))
		}
		return map[string]interface{}{"total": adm.Total, "admitted": len(adm.Peaks), "rejected": len(adm.Rejected)}, nil
	})
	if err != nil {
		return err
	}
	res.Run.AdmittedPeaks = len(adm.Peaks)

	scores := make([]float64, len(adm.Peaks))
	for i, p := range adm.Peaks {
		scores[i] = p.Score
	}
	if summary, err := profiling.Summarize(scores); err == nil {
		res.ScoreSummary = &summary
	}

	err = s.stage(runID, ports.StageScan, func() (map[string]interface{}, error) {
		bg := s.characterizer.Background(adm.Peaks)
		perMotif, err := s.scanner.Scan(ctx, req.Motifs, adm.Peaks, bg)
		if err != nil {
			return nil, errors.Preprocessing("motif scan", err)
		}
		res.ScanHits, res.HitSets = scan.Format(perMotif)
		return map[string]interface{}{"motifs": len(req.Motifs), "hits": len(res.ScanHits), "motifs_with_hits": len(res.HitSets)}, nil
	})
	if err != nil {
		return err
	}

	var cov *enrichment.Table
	err = s.stage(runID, ports.StageCovariates, func() (map[string]interface{}, error) {
		sources, err := s.covariateSources(ctx, adm.Peaks, req.UserCovariates, cfg)
		if err != nil {
			return nil, err
		}
		cov, err = covariates.Assemble(sources...)
		if err != nil {
			return nil, errors.Preprocessing("covariate assembly", err)
		}
		fields := map[string]interface{}{"sources": len(sources)}
		if cov != nil {
			fields["columns"] = len(cov.Columns)
			fields["peaks"] = cov.Len()
		}
		return fields, nil
	})
	if err != nil {
		return err
	}

	err = s.stage(runID, ports.StagePreprocess, func() (map[string]interface{}, error) {
		input, report, err := preprocess.Build(adm.ScoreTable(), cov, cfg.PCAVarianceTarget)
		if err != nil {
			if stderrors.Is(err, core.ErrEmptyPopulation) {
				return nil, errors.InputPopulation(err)
			}
			return nil, errors.Preprocessing("preprocessing", err)
		}
		res.Input, res.Report = input, report

		lo, hi, err := engine.ResolveBounds(len(adm.Peaks), cfg.MinSetSize, cfg.MaxSetSize)
		if err != nil {
			return nil, errors.WithCode(errors.CodeConfigInvalid, err)
		}
		res.MinSetSize, res.MaxSetSize = lo, hi
		return map[string]interface{}{
			"population":   input.Len(),
			"columns":      len(input.Columns),
			"pca":          report.PCAApplied,
			"components":   report.Components,
			"min_set_size": lo,
			"max_set_size": hi,
		}, nil
	})
	if err != nil {
		return err
	}
	res.Run.RegressionPeaks = res.Input.Len()
	res.Run.PopulationHash = core.ComputeCohortHash(res.Input.IDs).String()
	res.Run.MinSetSize, res.Run.MaxSetSize = res.MinSetSize, res.MaxSetSize

	var outcome *engine.Outcome
	err = s.stage(runID, ports.StageRegression, func() (map[string]interface{}, error) {
		var err error
		outcome, err = engine.NewEngine(cfg.NJobs).Run(ctx, engine.Request{
			Input:      res.Input,
			HitSets:    res.HitSets,
			MinSetSize: res.MinSetSize,
			MaxSetSize: res.MaxSetSize,
			Progress: func(done, total int) {
				s.observer.MotifProgress(runID, ports.StageRegression, done, total)
			},
		})
		if err != nil {
			return nil, errors.Wrap(err, "regression failed")
		}
		return map[string]interface{}{
			"tested":  outcome.Tested,
			"fitted":  len(outcome.Results),
			"failed":  len(outcome.Failures),
			"skipped": len(outcome.Skipped),
		}, nil
	})
	if err != nil {
		return err
	}
	res.Failures = outcome.Failures
	res.Skipped = outcome.Skipped
	res.Run.MotifsTested = outcome.Tested

	return s.stage(runID, ports.StageAggregation, func() (map[string]interface{}, error) {
		ranked, err := engine.Aggregate(outcome.Results, cfg.PAdjMethod, cfg.PAdjThresh)
		if err != nil {
			return nil, errors.WithCode(errors.CodeConfigInvalid, err)
		}
		engine.Annotate(ranked, res.HitSets, len(req.Records))
		res.Results = ranked
		return map[string]interface{}{"results": len(ranked), "significant": enrichment.CountSignificant(ranked)}, nil
	})
}

// covariateSources derives the enabled covariate tables in a fixed order:
// k-mer ratios, length, GC, then user covariates
func (s *EnrichmentService) covariateSources(ctx context.Context, peaks []enrichment.Peak, user *enrichment.Table, cfg config.RunConfig) ([]*enrichment.Table, error) {
	var sources []*enrichment.Table
	if cfg.MaxK > 0 {
		kmers, err := s.characterizer.KmerRatios(ctx, peaks, cfg.MaxK)
		if err != nil {
			return nil, errors.Preprocessing("k-mer covariates", err)
		}
		sources = append(sources, kmers)
	}
	if cfg.UseLength {
		sources = append(sources, s.characterizer.Lengths(peaks))
	}
	if cfg.UseGC {
		gc, err := s.characterizer.GC(ctx, peaks)
		if err != nil {
			return nil, errors.Preprocessing("gc covariate", err)
		}
		sources = append(sources, gc)
	}
	if user != nil {
		sources = append(sources, covariates.PrefixColumns(user, covariates.UserCovariatePrefix))
	}
	return sources, nil
}

// stage brackets fn with observer events
func (s *EnrichmentService) stage(runID core.RunID, stage ports.Stage, fn func() (map[string]interface{}, error)) error {
	s.observer.StageStarted(runID, stage)
	start := time.Now()
	fields, err := fn()
	if err != nil {
		if fields == nil {
			fields = map[string]interface{}{}
		}
		fields["error"] = err.Error()
	}
	s.observer.StageFinished(runID, stage, time.Since(start), fields)
	return err
}

func newRun(id core.RunID, cfg config.RunConfig, totalPeaks, motifs int) (*enrichment.Run, error) {
	params, err := json.Marshal(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode run parameters")
	}
	return &enrichment.Run{
		ID:            id,
		CreatedAt:     core.Now(),
		ConfigHash:    core.ComputeConfigHash(cfg.Params()).String(),
		Params:        string(params),
		TotalPeaks:    totalPeaks,
		MotifsScanned: motifs,
	}, nil
}
