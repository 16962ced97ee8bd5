package motifs

import (
	"fmt"

	"github.com/tidwall/gjson"

	"peakmotif/domain/core"
	"peakmotif/domain/enrichment"
)

// ParseJSON reads motifs from a JSON array. Each element carries "id", an
// optional "name" and either "counts" (one array per position, in alphabet
// order) or "matrix" (an object of per-symbol arrays indexed by position).
func ParseJSON(data []byte, alphabet string) ([]enrichment.Motif, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid motif JSON")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsArray() {
		return nil, fmt.Errorf("motif JSON must be an array")
	}

	var motifs []enrichment.Motif
	for i, item := range doc.Array() {
		id := item.Get("id").String()
		if id == "" {
			return nil, fmt.Errorf("motif %d has no id", i)
		}
		m := enrichment.Motif{ID: core.MotifID(id), Name: item.Get("name").String()}

		switch {
		case item.Get("counts").IsArray():
			for _, pos := range item.Get("counts").Array() {
				var row []float64
				for _, v := range pos.Array() {
					row = append(row, v.Float())
				}
				m.Counts = append(m.Counts, row)
			}
		case item.Get("matrix").IsObject():
			matrix := item.Get("matrix")
			width := -1
			for a := 0; a < len(alphabet); a++ {
				vals := matrix.Get(alphabet[a : a+1]).Array()
				if width < 0 {
					width = len(vals)
					m.Counts = make([][]float64, width)
					for p := range m.Counts {
						m.Counts[p] = make([]float64, len(alphabet))
					}
				}
				if len(vals) != width {
					return nil, fmt.Errorf("motif %s symbol %c has %d positions, want %d", id, alphabet[a], len(vals), width)
				}
				for p, v := range vals {
					m.Counts[p][a] = v.Float()
				}
			}
		default:
			return nil, fmt.Errorf("motif %s has neither counts nor matrix", id)
		}

		if err := m.Validate(len(alphabet)); err != nil {
			return nil, err
		}
		motifs = append(motifs, m)
	}
	return motifs, nil
}
