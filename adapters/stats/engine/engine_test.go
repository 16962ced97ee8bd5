package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peakmotif/adapters/stats/preprocess"
	"peakmotif/domain/core"
	"peakmotif/domain/enrichment"
)

func peakID(i int) core.PeakID {
	return core.PeakID(fmt.Sprintf("peak_%03d", i))
}

// rankedInput builds a design over n peaks whose score is their index
func rankedInput(t *testing.T, n int) *enrichment.RegressionInput {
	t.Helper()
	score := enrichment.NewTable("peak_id", "peak_score")
	for i := 0; i < n; i++ {
		require.NoError(t, score.Append(peakID(i), float64(i)))
	}
	input, _, err := preprocess.Build(score, nil, 0.99)
	require.NoError(t, err)
	return input
}

func peakSet(idx ...int) enrichment.PeakSet {
	s := enrichment.NewPeakSet()
	for _, i := range idx {
		s.Add(peakID(i))
	}
	return s
}

func rangeSet(from, to int) enrichment.PeakSet {
	s := enrichment.NewPeakSet()
	for i := from; i < to; i++ {
		s.Add(peakID(i))
	}
	return s
}

// mostlyTop marks the upper half as hits with a band of label swaps in the middle
func mostlyTop() enrichment.PeakSet {
	s := rangeSet(50, 100)
	for _, i := range []int{54, 59, 64, 69} {
		delete(s, peakID(i))
	}
	for _, i := range []int{30, 35, 40, 45} {
		s.Add(peakID(i))
	}
	return s
}

func TestRun_StrongPositiveAssociation(t *testing.T) {
	input := rankedInput(t, 100)
	hits := enrichment.HitSets{"MA0001.1": mostlyTop()}
	require.Equal(t, 50, hits["MA0001.1"].Len())

	out, err := NewEngine(1).Run(context.Background(), Request{
		Input: input, HitSets: hits, MinSetSize: 3, MaxSetSize: 97,
	})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	require.Empty(t, out.Failures)

	r := out.Results[0]
	assert.Equal(t, core.MotifID("MA0001.1"), r.MotifID)
	assert.Greater(t, r.Coef, 2.0)
	assert.Less(t, r.PValue, 1e-3)
	assert.Greater(t, r.AUC, 0.9)
	assert.Less(t, r.CILower, r.Coef)
	assert.Greater(t, r.CIUpper, r.Coef)
	assert.Greater(t, r.CILower, 0.0)
}

func TestRun_NegativeAssociation(t *testing.T) {
	input := rankedInput(t, 100)
	flipped := enrichment.NewPeakSet()
	for id := range mostlyTop() {
		var i int
		_, err := fmt.Sscanf(string(id), "peak_%03d", &i)
		require.NoError(t, err)
		flipped.Add(peakID(99 - i))
	}

	out, err := NewEngine(1).Run(context.Background(), Request{
		Input: input, HitSets: enrichment.HitSets{"neg": flipped}, MinSetSize: 3, MaxSetSize: 97,
	})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Less(t, out.Results[0].Coef, -2.0)
	assert.Greater(t, out.Results[0].AUC, 0.9)
}

func TestRun_PerfectSeparationRecordedAsFailure(t *testing.T) {
	input := rankedInput(t, 100)

	out, err := NewEngine(1).Run(context.Background(), Request{
		Input: input, HitSets: enrichment.HitSets{"sep": rangeSet(50, 100)}, MinSetSize: 3, MaxSetSize: 97,
	})
	require.NoError(t, err)
	assert.Empty(t, out.Results)
	require.Len(t, out.Failures, 1)
	assert.Contains(t, []core.FailureReason{core.ReasonNonConvergence, core.ReasonSingularDesign}, out.Failures[0].Reason)
}

func TestRun_SmallHitSetExcluded(t *testing.T) {
	input := rankedInput(t, 100)
	lo, hi, err := SetSizeBounds(100)
	require.NoError(t, err)

	hits := enrichment.HitSets{
		"single": peakSet(7),
		"strong": mostlyTop(),
	}
	out, err := NewEngine(2).Run(context.Background(), Request{
		Input: input, HitSets: hits, MinSetSize: lo, MaxSetSize: hi,
	})
	require.NoError(t, err)
	assert.Equal(t, []core.MotifID{"single"}, out.Skipped)
	assert.Equal(t, 1, out.Tested)
	require.Len(t, out.Results, 1)
	assert.Equal(t, core.MotifID("strong"), out.Results[0].MotifID)
	assert.Empty(t, out.Failures)
}

func TestRun_DegenerateLabel(t *testing.T) {
	input := rankedInput(t, 100)
	// covers the whole regression population plus peaks that were dropped upstream
	all := rangeSet(0, 100)
	all.Add("peak_extra_1")
	all.Add("peak_extra_2")

	out, err := NewEngine(1).Run(context.Background(), Request{
		Input:      input,
		HitSets:    enrichment.HitSets{"everywhere": all, "strong": mostlyTop()},
		MinSetSize: 3,
		MaxSetSize: 997,
	})
	require.NoError(t, err)
	require.Len(t, out.Failures, 1)
	f := out.Failures[0]
	assert.Equal(t, core.MotifID("everywhere"), f.MotifID)
	assert.Equal(t, core.ReasonDegenerateLabel, f.Reason)
	assert.ErrorIs(t, f.Err, core.ErrDegenerateLabel)
	assert.Equal(t, 0, f.Index)

	require.Len(t, out.Results, 1)
	assert.Equal(t, core.MotifID("strong"), out.Results[0].MotifID)
}

func randomHitSets(n, motifs int, seed int64) enrichment.HitSets {
	rng := rand.New(rand.NewSource(seed))
	hits := make(enrichment.HitSets, motifs)
	for m := 0; m < motifs; m++ {
		s := enrichment.NewPeakSet()
		p := 0.1 + 0.6*rng.Float64()
		for i := 0; i < n; i++ {
			// bias hits toward high scores for half of the motifs
			q := p
			if m%2 == 0 {
				q = p * float64(i) / float64(n) * 1.5
			}
			if rng.Float64() < q {
				s.Add(peakID(i))
			}
		}
		hits[core.MotifID(fmt.Sprintf("M%02d", m))] = s
	}
	return hits
}

func TestRun_ParallelMatchesSequential(t *testing.T) {
	input := rankedInput(t, 200)
	hits := randomHitSets(200, 24, 42)

	seq, err := NewEngine(1).Run(context.Background(), Request{Input: input, HitSets: hits, MinSetSize: 3, MaxSetSize: 197})
	require.NoError(t, err)

	var mu sync.Mutex
	var calls []int
	par, err := NewEngine(8).Run(context.Background(), Request{
		Input: input, HitSets: hits, MinSetSize: 3, MaxSetSize: 197,
		Progress: func(done, total int) {
			mu.Lock()
			calls = append(calls, done)
			mu.Unlock()
			assert.Equal(t, seq.Tested, total)
		},
	})
	require.NoError(t, err)

	assert.Equal(t, seq.Results, par.Results)
	assert.Len(t, calls, seq.Tested)
	assert.NotEmpty(t, seq.Results)

	for i := 1; i < len(par.Results); i++ {
		assert.Less(t, string(par.Results[i-1].MotifID), string(par.Results[i].MotifID))
	}
}

func TestRun_Cancelled(t *testing.T) {
	input := rankedInput(t, 100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine(2).Run(ctx, Request{Input: input, HitSets: randomHitSets(100, 4, 1), MinSetSize: 3, MaxSetSize: 97})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_EmptyInput(t *testing.T) {
	_, err := NewEngine(1).Run(context.Background(), Request{Input: &enrichment.RegressionInput{}})
	assert.ErrorIs(t, err, core.ErrEmptyPopulation)
}
