package sequence

import (
	"context"

	"peakmotif/domain/enrichment"
)

// Characterizer computes background and composition covariates over an
// alphabet using a bounded number of workers
type Characterizer struct {
	Alphabet string
	NJobs    int
}

// NewCharacterizer creates a characterizer for alphabet
func NewCharacterizer(alphabet string, nJobs int) *Characterizer {
	return &Characterizer{Alphabet: alphabet, NJobs: nJobs}
}

// Background returns symbol frequencies over all peaks
func (c *Characterizer) Background(peaks []enrichment.Peak) enrichment.Background {
	return Background(peaks, c.Alphabet)
}

// KmerRatios returns reverse-complement-merged k-mer ratios for k = 1..maxK
func (c *Characterizer) KmerRatios(ctx context.Context, peaks []enrichment.Peak, maxK int) (*enrichment.Table, error) {
	return FrequencyRatios(ctx, peaks, c.Alphabet, maxK, true, c.NJobs)
}

// Lengths returns the peak length covariate
func (c *Characterizer) Lengths(peaks []enrichment.Peak) *enrichment.Table {
	return LengthTable(peaks)
}

// GC returns the GC ratio covariate
func (c *Characterizer) GC(ctx context.Context, peaks []enrichment.Peak) (*enrichment.Table, error) {
	return GCTable(ctx, peaks, c.Alphabet, c.NJobs)
}
