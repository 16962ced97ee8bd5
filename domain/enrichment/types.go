package enrichment

import (
	"fmt"
	"sort"

	"peakmotif/domain/core"
)

// Peak is an admitted sequence record. Immutable once admitted.
type Peak struct {
	ID       core.PeakID `json:"id"`
	Sequence string      `json:"sequence"`
	Score    float64     `json:"score"`
}

// PeakSet is a deduplicated, unordered set of peak identifiers
type PeakSet map[core.PeakID]struct{}

// NewPeakSet builds a set from ids, dropping duplicates
func NewPeakSet(ids ...core.PeakID) PeakSet {
	s := make(PeakSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts id into the set
func (s PeakSet) Add(id core.PeakID) {
	s[id] = struct{}{}
}

// Contains reports whether id is in the set
func (s PeakSet) Contains(id core.PeakID) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of distinct peaks
func (s PeakSet) Len() int {
	return len(s)
}

// Sorted returns the members in lexical order
func (s PeakSet) Sorted() []core.PeakID {
	ids := make([]core.PeakID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// HitSets maps each motif to the peaks where it was detected
type HitSets map[core.MotifID]PeakSet

// MotifIDs returns motif identifiers in lexical order, the iteration order
// used for testing and multiple-testing correction
func (h HitSets) MotifIDs() []core.MotifID {
	ids := make([]core.MotifID, 0, len(h))
	for id := range h {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Background is a symbol frequency model over an alphabet
type Background struct {
	Alphabet string    `json:"alphabet"`
	Freqs    []float64 `json:"freqs"`
}

// Freq returns the background frequency of symbol, or 0 if it is not in the alphabet
func (b Background) Freq(symbol byte) float64 {
	for i := 0; i < len(b.Alphabet); i++ {
		if b.Alphabet[i] == symbol {
			return b.Freqs[i]
		}
	}
	return 0
}

// Motif is a position count (or probability) matrix, one row per position and
// one column per alphabet symbol
type Motif struct {
	ID     core.MotifID `json:"id"`
	Name   string       `json:"name"`
	Counts [][]float64  `json:"counts"`
}

// Width returns the motif length in positions
func (m Motif) Width() int {
	return len(m.Counts)
}

// Validate checks the matrix is non-empty and rectangular with the given alphabet size
func (m Motif) Validate(alphabetSize int) error {
	if m.ID.String() == "" {
		return fmt.Errorf("motif has empty id")
	}
	if len(m.Counts) == 0 {
		return fmt.Errorf("motif %s has no positions", m.ID)
	}
	for i, row := range m.Counts {
		if len(row) != alphabetSize {
			return fmt.Errorf("motif %s position %d has %d columns, want %d", m.ID, i, len(row), alphabetSize)
		}
		for _, v := range row {
			if v < 0 {
				return fmt.Errorf("motif %s position %d has negative count", m.ID, i)
			}
		}
	}
	return nil
}

// Strand of a scan hit
type Strand string

const (
	StrandForward Strand = "+"
	StrandReverse Strand = "-"
)

// ScanHit is one motif occurrence in one peak
type ScanHit struct {
	MotifID core.MotifID `json:"motif_id" db:"motif_id"`
	PeakID  core.PeakID  `json:"peak_id" db:"peak_id"`
	Start   int          `json:"start" db:"start_pos"`
	End     int          `json:"end" db:"end_pos"`
	Strand  Strand       `json:"strand" db:"strand"`
	Score   float64      `json:"score" db:"score"`
	Matched string       `json:"matched" db:"matched"`
}

// MotifResult is the per-motif regression record. Ephemeral: computed,
// aggregated and returned.
type MotifResult struct {
	MotifID      core.MotifID `json:"motif_id" db:"motif_id"`
	Coef         float64      `json:"coef" db:"coef"`
	StdErr       float64      `json:"std_err" db:"std_err"`
	CILower      float64      `json:"ci_95_pct_lower" db:"ci_lower"`
	CIUpper      float64      `json:"ci_95_pct_upper" db:"ci_upper"`
	PValue       float64      `json:"pval" db:"pval"`
	AUC          float64      `json:"auc" db:"auc"`
	PAdj         float64      `json:"padj" db:"padj"`
	PAdjSig      int          `json:"padj_sig" db:"padj_sig"`
	AbsCoef      float64      `json:"abs_coef" db:"abs_coef"`
	NumPeaks     int          `json:"num_peaks" db:"num_peaks"`
	PercentPeaks float64      `json:"percent_peaks" db:"percent_peaks"`
}

// MotifFailure records a motif that qualified for testing but could not be fit
type MotifFailure struct {
	MotifID core.MotifID       `json:"motif_id" db:"motif_id"`
	Index   int                `json:"index" db:"motif_index"`
	Reason  core.FailureReason `json:"reason" db:"reason"`
	Detail  string             `json:"detail" db:"detail"`
	Err     error              `json:"-" db:"-"`
}
