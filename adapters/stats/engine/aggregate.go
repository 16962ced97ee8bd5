package engine

import (
	"math"
	"sort"

	"peakmotif/adapters/stats/multitest"
	"peakmotif/domain/enrichment"
)

// Aggregate corrects p-values across results (in their given order), flags
// significance and ranks by |coef| then significance, both descending. Ties
// keep their input order. The input slice is not modified.
func Aggregate(results []enrichment.MotifResult, method string, thresh float64) ([]enrichment.MotifResult, error) {
	m, err := multitest.ParseMethod(method)
	if err != nil {
		return nil, err
	}
	out := make([]enrichment.MotifResult, len(results))
	copy(out, results)

	pvals := make([]float64, len(out))
	for i, r := range out {
		pvals[i] = r.PValue
	}
	padj, err := multitest.Adjust(m, pvals)
	if err != nil {
		return nil, err
	}
	reject := multitest.Reject(padj, thresh)
	for i := range out {
		out[i].PAdj = padj[i]
		out[i].PAdjSig = 0
		if reject[i] {
			out[i].PAdjSig = 1
		}
		out[i].AbsCoef = math.Abs(out[i].Coef)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AbsCoef != out[j].AbsCoef {
			return out[i].AbsCoef > out[j].AbsCoef
		}
		return out[i].PAdjSig > out[j].PAdjSig
	})
	return out, nil
}

// Annotate fills num_peaks (distinct hits) and percent_peaks relative to
// totalPeaks, the number of input sequences before any filtering.
func Annotate(results []enrichment.MotifResult, hitSets enrichment.HitSets, totalPeaks int) {
	for i := range results {
		n := hitSets[results[i].MotifID].Len()
		results[i].NumPeaks = n
		if totalPeaks > 0 {
			results[i].PercentPeaks = 100 * float64(n) / float64(totalPeaks)
		}
	}
}
