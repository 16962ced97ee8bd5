package sequence

import (
	"context"
	"fmt"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"

	"peakmotif/domain/enrichment"
)

// Covariate column names
const (
	KmerRatioPrefix = "kmer_ratio_"
	LengthColumn    = "peak_length"
	GCColumn        = "ratio_gc"
)

// Kmers enumerates every word of length k over alphabet in alphabet order
func Kmers(alphabet string, k int) []string {
	if k <= 0 {
		return nil
	}
	words := []string{""}
	for i := 0; i < k; i++ {
		next := make([]string, 0, len(words)*len(alphabet))
		for _, w := range words {
			for j := 0; j < len(alphabet); j++ {
				next = append(next, w+alphabet[j:j+1])
			}
		}
		words = next
	}
	return words
}

// kmerLayout maps every k-mer to the column it is counted under
type kmerLayout struct {
	k       int
	columns []string // canonical k-mers in enumeration order
	target  []int    // k-mer code -> column
}

func newKmerLayout(alphabet string, k int, removeRedundant bool) kmerLayout {
	words := Kmers(alphabet, k)
	code := make(map[string]int, len(words))
	for i, w := range words {
		code[w] = i
	}
	lay := kmerLayout{k: k, target: make([]int, len(words))}
	column := make(map[string]int)
	for i, w := range words {
		canon := w
		if removeRedundant {
			if rc := ReverseComplement(w); rc < w {
				if _, ok := code[rc]; ok {
					canon = rc
				}
			}
		}
		col, ok := column[canon]
		if !ok {
			col = len(lay.columns)
			column[canon] = col
			lay.columns = append(lay.columns, canon)
		}
		lay.target[i] = col
	}
	return lay
}

// ratios returns per-column k-mer counts divided by the number of k-length
// windows made only of alphabet symbols
func (l kmerLayout) ratios(seq string, index *[256]int, base int) []float64 {
	out := make([]float64, len(l.columns))
	if len(seq) < l.k {
		return out
	}
	mod := int(math.Pow(float64(base), float64(l.k-1)))
	windows := 0
	code, valid := 0, 0
	for i := 0; i < len(seq); i++ {
		j := index[seq[i]]
		if j < 0 {
			code, valid = 0, 0
			continue
		}
		if valid == l.k {
			code %= mod
			valid--
		}
		code = code*base + j
		valid++
		if valid == l.k {
			out[l.target[code]]++
			windows++
		}
	}
	if windows > 0 {
		for c := range out {
			out[c] /= float64(windows)
		}
	}
	return out
}

// FrequencyRatios computes k-mer frequency ratios for k = 1..maxK, one column
// per k-mer named kmer_ratio_<kmer>. With removeRedundant a k-mer and its
// reverse complement share the column of the lexically smaller one. Rows are
// computed by at most nJobs workers.
func FrequencyRatios(ctx context.Context, peaks []enrichment.Peak, alphabet string, maxK int, removeRedundant bool, nJobs int) (*enrichment.Table, error) {
	if maxK < 1 {
		return nil, fmt.Errorf("max k must be at least 1, got %d", maxK)
	}
	index := symbolIndex(alphabet)
	layouts := make([]kmerLayout, 0, maxK)
	var columns []string
	for k := 1; k <= maxK; k++ {
		lay := newKmerLayout(alphabet, k, removeRedundant)
		layouts = append(layouts, lay)
		for _, c := range lay.columns {
			columns = append(columns, KmerRatioPrefix+c)
		}
	}

	rows := make([][]float64, len(peaks))
	if nJobs < 1 {
		nJobs = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(nJobs)
	for i, p := range peaks {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			row := make([]float64, 0, len(columns))
			for _, lay := range layouts {
				row = append(row, lay.ratios(p.Sequence, &index, len(alphabet))...)
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tbl := enrichment.NewTable("peak_id", columns...)
	for i, p := range peaks {
		if err := tbl.Append(p.ID, rows[i]...); err != nil {
			return nil, err
		}
	}
	tbl.SortByID()
	return tbl, nil
}

// LengthTable returns each peak's sequence length
func LengthTable(peaks []enrichment.Peak) *enrichment.Table {
	tbl := enrichment.NewTable("peak_id", LengthColumn)
	for _, p := range peaks {
		tbl.IDs = append(tbl.IDs, p.ID)
		tbl.Values = append(tbl.Values, []float64{float64(len(p.Sequence))})
	}
	tbl.SortByID()
	return tbl
}

// GCTable returns the combined G and C mononucleotide ratio of each peak
func GCTable(ctx context.Context, peaks []enrichment.Peak, alphabet string, nJobs int) (*enrichment.Table, error) {
	if !strings.ContainsRune(alphabet, 'G') || !strings.ContainsRune(alphabet, 'C') {
		return nil, fmt.Errorf("alphabet %q lacks G or C", alphabet)
	}
	mono, err := FrequencyRatios(ctx, peaks, alphabet, 1, false, nJobs)
	if err != nil {
		return nil, err
	}
	g := mono.ColumnIndex(KmerRatioPrefix + "G")
	c := mono.ColumnIndex(KmerRatioPrefix + "C")

	tbl := enrichment.NewTable("peak_id", GCColumn)
	for i, id := range mono.IDs {
		tbl.IDs = append(tbl.IDs, id)
		tbl.Values = append(tbl.Values, []float64{mono.Values[i][g] + mono.Values[i][c]})
	}
	return tbl, nil
}
