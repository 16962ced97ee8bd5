package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peakmotif/adapters/scan"
	"peakmotif/adapters/sequence"
	"peakmotif/domain/core"
	"peakmotif/domain/enrichment"
	"peakmotif/internal/config"
	"peakmotif/internal/errors"
	"peakmotif/internal/testkit"
	"peakmotif/ports"
)

// fixedScanner reports predetermined hit peaks for each motif
type fixedScanner struct {
	hits map[core.MotifID][]core.PeakID
}

func (f fixedScanner) Scan(ctx context.Context, motifs []enrichment.Motif, peaks []enrichment.Peak, bg enrichment.Background) ([][]enrichment.ScanHit, error) {
	out := make([][]enrichment.ScanHit, len(motifs))
	for i, m := range motifs {
		for _, id := range f.hits[m.ID] {
			out[i] = append(out[i], enrichment.ScanHit{MotifID: m.ID, PeakID: id, Start: 0, End: m.Width(), Strand: enrichment.StrandForward})
		}
	}
	return out, nil
}

type recordingObserver struct {
	mu       sync.Mutex
	started  []ports.Stage
	finished map[ports.Stage]map[string]interface{}
	progress int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{finished: make(map[ports.Stage]map[string]interface{})}
}

func (o *recordingObserver) StageStarted(_ core.RunID, stage ports.Stage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, stage)
}

func (o *recordingObserver) StageFinished(_ core.RunID, stage ports.Stage, _ time.Duration, fields map[string]interface{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished[stage] = fields
}

func (o *recordingObserver) MotifProgress(core.RunID, ports.Stage, int, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.progress++
}

type memoryRepository struct {
	runs     []*enrichment.Run
	results  map[core.RunID][]enrichment.MotifResult
	failures map[core.RunID][]enrichment.MotifFailure
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		results:  make(map[core.RunID][]enrichment.MotifResult),
		failures: make(map[core.RunID][]enrichment.MotifFailure),
	}
}

func (m *memoryRepository) SaveRun(_ context.Context, run *enrichment.Run, results []enrichment.MotifResult, failures []enrichment.MotifFailure) error {
	m.runs = append(m.runs, run)
	m.results[run.ID] = results
	m.failures[run.ID] = failures
	return nil
}

func (m *memoryRepository) GetRun(_ context.Context, id core.RunID) (*enrichment.Run, error) {
	for _, r := range m.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, errors.NotFound("run")
}

func (m *memoryRepository) ListRuns(context.Context, int) ([]*enrichment.Run, error) {
	return m.runs, nil
}

func (m *memoryRepository) GetResults(_ context.Context, id core.RunID) ([]enrichment.MotifResult, error) {
	return m.results[id], nil
}

func (m *memoryRepository) GetFailures(_ context.Context, id core.RunID) ([]enrichment.MotifFailure, error) {
	return m.failures[id], nil
}

func peakID(i int) core.PeakID {
	return core.PeakID(fmt.Sprintf("peak_%03d", i))
}

func ids(idx ...int) []core.PeakID {
	out := make([]core.PeakID, len(idx))
	for i, j := range idx {
		out[i] = peakID(j)
	}
	return out
}

func span(from, to int) []int {
	var out []int
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}

// rankedPeaks returns n random sequences scored by their index
func rankedPeaks(n int) ([]sequence.Record, map[core.PeakID]float64) {
	rng := rand.New(rand.NewSource(7))
	records := make([]sequence.Record, n)
	scores := make(map[core.PeakID]float64, n)
	for i := 0; i < n; i++ {
		seq := make([]byte, 40+rng.Intn(21))
		for j := range seq {
			seq[j] = "ACGT"[rng.Intn(4)]
		}
		records[i] = sequence.Record{ID: peakID(i), Sequence: string(seq)}
		scores[peakID(i)] = float64(i)
	}
	return records, scores
}

func motifsFor(names ...string) []enrichment.Motif {
	out := make([]enrichment.Motif, len(names))
	for i, n := range names {
		out[i] = testkit.ConsensusMotif(n, "ACGTAC", 0.9)
	}
	return out
}

// noCovariates disables every derived covariate
func noCovariates() config.RunConfig {
	cfg := config.DefaultRunConfig()
	cfg.MaxK = 0
	return cfg
}

func newService(hits map[core.MotifID][]core.PeakID, obs ports.ProgressObserver) *EnrichmentService {
	return NewEnrichmentService(fixedScanner{hits: hits}, sequence.NewCharacterizer("ACGT", 1), obs)
}

// mostlyTop marks the upper half as hits with a band of label swaps in the middle
func mostlyTop() []int {
	var out []int
	for _, i := range span(50, 100) {
		switch i {
		case 54, 59, 64, 69:
			continue
		}
		out = append(out, i)
	}
	return append(out, 30, 35, 40, 45)
}

func TestAnalyze_StrongAssociationRanksFirst(t *testing.T) {
	records, scores := rankedPeaks(100)
	rng := rand.New(rand.NewSource(3))
	var random []int
	for _, i := range rng.Perm(100)[:40] {
		random = append(random, i)
	}
	hits := map[core.MotifID][]core.PeakID{
		"MA0001.1": ids(mostlyTop()...),
		"MA0002.1": ids(random...),
	}

	res, err := newService(hits, nil).Analyze(context.Background(), AnalyzeRequest{
		Records: records, Scores: scores, Motifs: motifsFor("MA0001.1", "MA0002.1"), Config: noCovariates(),
	})
	require.NoError(t, err)
	require.Len(t, res.Results, 2)

	top := res.Results[0]
	assert.Equal(t, core.MotifID("MA0001.1"), top.MotifID)
	assert.Greater(t, top.Coef, 2.0)
	assert.Less(t, top.PValue, 1e-3)
	assert.Greater(t, top.AUC, 0.9)
	assert.Equal(t, 1, top.PAdjSig)
	assert.Equal(t, 50, top.NumPeaks)
	assert.InDelta(t, 50.0, top.PercentPeaks, 1e-9)
	assert.Equal(t, enrichment.RunStatusComplete, res.Run.Status)
	assert.Equal(t, 2, res.Run.MotifsTested)
}

func TestAnalyze_PerfectSeparationIsRecordedAsFailure(t *testing.T) {
	records, scores := rankedPeaks(100)
	hits := map[core.MotifID][]core.PeakID{"MA0001.1": ids(span(50, 100)...)}

	res, err := newService(hits, nil).Analyze(context.Background(), AnalyzeRequest{
		Records: records, Scores: scores, Motifs: motifsFor("MA0001.1"), Config: noCovariates(),
	})
	require.NoError(t, err)
	assert.Empty(t, res.Results)
	require.Len(t, res.Failures, 1)
	assert.Contains(t, []core.FailureReason{core.ReasonNonConvergence, core.ReasonSingularDesign}, res.Failures[0].Reason)
}

func TestAnalyze_SmallHitSetIsNotTested(t *testing.T) {
	records, scores := rankedPeaks(100)
	hits := map[core.MotifID][]core.PeakID{
		"MA0001.1": ids(mostlyTop()...),
		"MA0003.1": ids(17),
	}

	res, err := newService(hits, nil).Analyze(context.Background(), AnalyzeRequest{
		Records: records, Scores: scores, Motifs: motifsFor("MA0001.1", "MA0003.1"), Config: noCovariates(),
	})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, core.MotifID("MA0001.1"), res.Results[0].MotifID)
	assert.Empty(t, res.Failures)
	assert.Equal(t, []core.MotifID{"MA0003.1"}, res.Skipped)
	assert.Equal(t, 3, res.MinSetSize)
	assert.Equal(t, 97, res.MaxSetSize)
}

func TestAnalyze_NoCovariatesSkipsPCA(t *testing.T) {
	records, scores := rankedPeaks(100)
	hits := map[core.MotifID][]core.PeakID{"MA0001.1": ids(mostlyTop()...)}

	cfg := noCovariates()
	cfg.UseLength, cfg.UseGC = false, false
	res, err := newService(hits, nil).Analyze(context.Background(), AnalyzeRequest{
		Records: records, Scores: scores, Motifs: motifsFor("MA0001.1"), Config: cfg,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"peak_score", enrichment.InterceptColumn}, res.Input.Columns)
	assert.Empty(t, res.Input.CovariateColumns)
	assert.False(t, res.Report.PCAApplied)
	assert.Equal(t, 100, res.Input.Len())
}

func TestAnalyze_FullPopulationHitSetIsDegenerate(t *testing.T) {
	records, scores := rankedPeaks(100)
	hits := map[core.MotifID][]core.PeakID{
		"MA0001.1": ids(mostlyTop()...),
		"MA0004.1": ids(span(0, 100)...),
	}

	cfg := noCovariates()
	cfg.MaxSetSize = 100
	res, err := newService(hits, nil).Analyze(context.Background(), AnalyzeRequest{
		Records: records, Scores: scores, Motifs: motifsFor("MA0001.1", "MA0004.1"), Config: cfg,
	})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, core.MotifID("MA0004.1"), res.Failures[0].MotifID)
	assert.Equal(t, core.ReasonDegenerateLabel, res.Failures[0].Reason)
}

func TestAnalyze_DerivedCovariatesAreReduced(t *testing.T) {
	records, scores := rankedPeaks(100)
	hits := map[core.MotifID][]core.PeakID{"MA0001.1": ids(mostlyTop()...)}

	cfg := config.DefaultRunConfig()
	cfg.UseLength, cfg.UseGC = true, true
	res, err := newService(hits, nil).Analyze(context.Background(), AnalyzeRequest{
		Records: records, Scores: scores, Motifs: motifsFor("MA0001.1"), Config: cfg,
	})
	require.NoError(t, err)
	require.True(t, res.Report.PCAApplied)
	assert.Contains(t, res.Report.CovariateColumns, "kmer_ratio_A")
	assert.Contains(t, res.Report.CovariateColumns, "peak_length")
	assert.Contains(t, res.Report.CovariateColumns, "ratio_gc")

	cols := res.Input.Columns
	assert.Equal(t, "peak_score", cols[0])
	assert.Equal(t, "pc_0", cols[1])
	assert.Equal(t, enrichment.InterceptColumn, cols[len(cols)-1])
	assert.Equal(t, len(cols)-2, res.Report.Components)
}

func TestAnalyze_UserCovariatesArePrefixed(t *testing.T) {
	records, scores := rankedPeaks(100)
	hits := map[core.MotifID][]core.PeakID{"MA0001.1": ids(mostlyTop()...)}

	user := enrichment.NewTable("peak_id", "batch")
	for i := 0; i < 90; i++ {
		require.NoError(t, user.Append(peakID(i), float64(i%3)))
	}

	res, err := newService(hits, nil).Analyze(context.Background(), AnalyzeRequest{
		Records: records, Scores: scores, Motifs: motifsFor("MA0001.1"), Config: noCovariates(), UserCovariates: user,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"peak_score", "user_covariate_batch", enrichment.InterceptColumn}, res.Input.Columns)
	assert.Equal(t, 90, res.Input.Len())
	// percentages stay relative to every record offered
	require.Len(t, res.Results, 1)
	assert.Equal(t, 50, res.Results[0].NumPeaks)
	assert.InDelta(t, 50.0, res.Results[0].PercentPeaks, 1e-9)
}

func TestAnalyze_PercentPeaksUsesUnfilteredCount(t *testing.T) {
	records, scores := rankedPeaks(100)
	for i := 0; i < 25; i++ {
		id := core.PeakID(fmt.Sprintf("masked_%02d", i))
		records = append(records, sequence.Record{ID: id, Sequence: "NNNNNNNNNNACGT"})
	}
	hits := map[core.MotifID][]core.PeakID{"MA0001.1": ids(mostlyTop()...)}

	res, err := newService(hits, nil).Analyze(context.Background(), AnalyzeRequest{
		Records: records, Scores: scores, Motifs: motifsFor("MA0001.1"), Config: noCovariates(),
	})
	require.NoError(t, err)
	assert.Equal(t, 125, res.Run.TotalPeaks)
	assert.Equal(t, 100, res.Run.AdmittedPeaks)
	require.Len(t, res.Results, 1)
	assert.InDelta(t, 40.0, res.Results[0].PercentPeaks, 1e-9)
}

func TestAnalyze_ObserverSeesEveryStage(t *testing.T) {
	records, scores := rankedPeaks(100)
	hits := map[core.MotifID][]core.PeakID{"MA0001.1": ids(mostlyTop()...), "MA0002.1": ids(span(0, 30)...)}
	obs := newRecordingObserver()

	_, err := newService(hits, obs).Analyze(context.Background(), AnalyzeRequest{
		Records: records, Scores: scores, Motifs: motifsFor("MA0001.1", "MA0002.1"), Config: noCovariates(),
	})
	require.NoError(t, err)
	assert.Equal(t, []ports.Stage{
		ports.StageAdmit, ports.StageScan, ports.StageCovariates,
		ports.StagePreprocess, ports.StageRegression, ports.StageAggregation,
	}, obs.started)
	assert.Equal(t, 100, obs.finished[ports.StageAdmit]["admitted"])
	assert.Equal(t, 2, obs.finished[ports.StageRegression]["tested"])
	assert.Equal(t, 2, obs.progress)
}

func TestAnalyze_AllRecordsRejected(t *testing.T) {
	records := []sequence.Record{{ID: "a", Sequence: "NNNN"}, {ID: "b", Sequence: "NNNA"}}
	scores := map[core.PeakID]float64{"a": 1, "b": 2}
	repo := newMemoryRepository()
	obs := newRecordingObserver()

	_, err := newService(nil, obs).WithRepository(repo).Analyze(context.Background(), AnalyzeRequest{
		Records: records, Scores: scores, Motifs: motifsFor("MA0001.1"), Config: noCovariates(),
	})
	require.Error(t, err)
	assert.Equal(t, errors.CodeInputPopulation, errors.GetCode(err))
	assert.ErrorIs(t, err, core.ErrEmptyPopulation)
	assert.Contains(t, obs.finished[ports.StageAdmit], "error")

	require.Len(t, repo.runs, 1)
	assert.Equal(t, enrichment.RunStatusFailed, repo.runs[0].Status)
	assert.NotEmpty(t, repo.runs[0].ErrorMessage)
}

func TestAnalyze_RejectsBadRequests(t *testing.T) {
	records, scores := rankedPeaks(10)
	svc := newService(nil, nil)

	cfg := noCovariates()
	cfg.NJobs = 0
	_, err := svc.Analyze(context.Background(), AnalyzeRequest{Records: records, Scores: scores, Motifs: motifsFor("M"), Config: cfg})
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))

	_, err = svc.Analyze(context.Background(), AnalyzeRequest{Records: records, Scores: scores, Config: noCovariates()})
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	delete(scores, peakID(3))
	_, err = svc.Analyze(context.Background(), AnalyzeRequest{Records: records, Scores: scores, Motifs: motifsFor("M"), Config: noCovariates()})
	assert.ErrorIs(t, err, core.ErrMissingScore)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestAnalyze_TooFewPeaksForBounds(t *testing.T) {
	records, scores := rankedPeaks(5)
	_, err := newService(nil, nil).Analyze(context.Background(), AnalyzeRequest{
		Records: records, Scores: scores, Motifs: motifsFor("MA0001.1"), Config: noCovariates(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidSetSizeBounds)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestAnalyze_PersistsCompletedRun(t *testing.T) {
	records, scores := rankedPeaks(100)
	hits := map[core.MotifID][]core.PeakID{"MA0001.1": ids(mostlyTop()...), "MA0004.1": ids(span(0, 100)...)}
	repo := newMemoryRepository()

	cfg := noCovariates()
	cfg.MaxSetSize = 100
	res, err := newService(hits, nil).WithRepository(repo).Analyze(context.Background(), AnalyzeRequest{
		RunID: "run-1", Records: records, Scores: scores, Motifs: motifsFor("MA0001.1", "MA0004.1"), Config: cfg,
	})
	require.NoError(t, err)
	assert.Equal(t, core.RunID("run-1"), res.RunID)

	run, err := repo.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, enrichment.RunStatusComplete, run.Status)
	assert.Equal(t, 1, run.Significant)
	assert.NotEmpty(t, run.ConfigHash)
	assert.Len(t, run.PopulationHash, 64)
	assert.Len(t, repo.results["run-1"], 1)
	assert.Len(t, repo.failures["run-1"], 1)
}

func TestAnalyze_PlantedMotifWithRealScanner(t *testing.T) {
	ds := testkit.NewPeakDataGenerator(testkit.DefaultPeakConfig()).Generate()
	cfg := config.DefaultRunConfig()
	cfg.NJobs = 4

	svc := NewEnrichmentService(
		scan.NewScanner(cfg.PValThreshold, cfg.Pseudocount, cfg.Revcomp, cfg.NJobs),
		sequence.NewCharacterizer(cfg.Alphabet, cfg.NJobs),
		nil,
	)
	res, err := svc.Analyze(context.Background(), AnalyzeRequest{
		Records: ds.Records, Scores: ds.Scores, Motifs: ds.Motifs, Config: cfg,
	})
	require.NoError(t, err)
	assert.Less(t, res.Run.AdmittedPeaks, len(ds.Records))

	var planted *enrichment.MotifResult
	for i := range res.Results {
		if res.Results[i].MotifID == "PLANTED.1" {
			planted = &res.Results[i]
		}
	}
	require.NotNil(t, planted)
	assert.Greater(t, planted.Coef, 0.0)
	assert.Equal(t, 1, planted.PAdjSig)
	assert.GreaterOrEqual(t, planted.NumPeaks, ds.Planted.Len())

	for _, h := range res.ScanHits {
		assert.True(t, res.HitSets[h.MotifID].Contains(h.PeakID))
	}
}
