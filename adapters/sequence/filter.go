package sequence

import (
	"fmt"
	"sort"
	"strings"

	"peakmotif/domain/core"
	"peakmotif/domain/enrichment"
)

// Admission is the outcome of the degeneracy filter
type Admission struct {
	Peaks    []enrichment.Peak
	Rejected []core.PeakID
	// Total counts every record offered, admitted or not
	Total int
}

// DegenerateFraction returns the fraction of symbols in seq outside alphabet.
// seq is compared as given; callers upper-case first.
func DegenerateFraction(seq, alphabet string) float64 {
	if len(seq) == 0 {
		return 1
	}
	bad := 0
	for i := 0; i < len(seq); i++ {
		if strings.IndexByte(alphabet, seq[i]) < 0 {
			bad++
		}
	}
	return float64(bad) / float64(len(seq))
}

// Admit upper-cases every record and keeps those whose degenerate fraction is
// strictly below maxPctDegenerate percent. Every admitted peak must have a
// score. Peaks are returned sorted by identifier.
func Admit(records []Record, scores map[core.PeakID]float64, alphabet string, maxPctDegenerate float64) (*Admission, error) {
	adm := &Admission{Total: len(records)}
	limit := maxPctDegenerate / 100
	for _, rec := range records {
		seq := strings.ToUpper(rec.Sequence)
		if DegenerateFraction(seq, alphabet) >= limit {
			adm.Rejected = append(adm.Rejected, rec.ID)
			continue
		}
		score, ok := scores[rec.ID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", core.ErrMissingScore, rec.ID)
		}
		adm.Peaks = append(adm.Peaks, enrichment.Peak{ID: rec.ID, Sequence: seq, Score: score})
	}
	sort.Slice(adm.Peaks, func(i, j int) bool { return adm.Peaks[i].ID < adm.Peaks[j].ID })
	return adm, nil
}

// ScoreTable returns the single-column score table of the admitted peaks
func (a *Admission) ScoreTable() *enrichment.Table {
	tbl := enrichment.NewTable("peak_id", "peak_score")
	for _, p := range a.Peaks {
		tbl.IDs = append(tbl.IDs, p.ID)
		tbl.Values = append(tbl.Values, []float64{p.Score})
	}
	return tbl
}
