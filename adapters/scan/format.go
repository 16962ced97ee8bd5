package scan

import (
	"sort"

	"peakmotif/domain/enrichment"
)

// Format flattens per-motif hits into one table ordered by motif, peak,
// start and strand, and collects each motif's distinct hit peaks. Motifs
// without hits have no hit-set.
func Format(perMotif [][]enrichment.ScanHit) ([]enrichment.ScanHit, enrichment.HitSets) {
	var table []enrichment.ScanHit
	sets := make(enrichment.HitSets)
	for _, hits := range perMotif {
		for _, h := range hits {
			table = append(table, h)
			set, ok := sets[h.MotifID]
			if !ok {
				set = enrichment.NewPeakSet()
				sets[h.MotifID] = set
			}
			set.Add(h.PeakID)
		}
	}
	sort.SliceStable(table, func(i, j int) bool {
		a, b := table[i], table[j]
		if a.MotifID != b.MotifID {
			return a.MotifID < b.MotifID
		}
		if a.PeakID != b.PeakID {
			return a.PeakID < b.PeakID
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.Strand < b.Strand
	})
	return table, sets
}
