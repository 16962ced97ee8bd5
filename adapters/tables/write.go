package tables

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"peakmotif/domain/enrichment"
)

// ResultHeader is the column order of the results table
var ResultHeader = []string{
	"motif_id", "coef", "std_err", "ci_95_pct_lower", "ci_95_pct_upper",
	"pval", "auc", "padj", "padj_sig", "abs_coef", "num_peaks", "percent_peaks",
}

func newTSV(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	return cw
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteResults writes ranked motif results
func WriteResults(w io.Writer, results []enrichment.MotifResult) error {
	cw := newTSV(w)
	if err := cw.Write(ResultHeader); err != nil {
		return err
	}
	for _, r := range results {
		rec := []string{
			r.MotifID.String(), ftoa(r.Coef), ftoa(r.StdErr), ftoa(r.CILower), ftoa(r.CIUpper),
			ftoa(r.PValue), ftoa(r.AUC), ftoa(r.PAdj), strconv.Itoa(r.PAdjSig), ftoa(r.AbsCoef),
			strconv.Itoa(r.NumPeaks), ftoa(r.PercentPeaks),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRegressionInput writes the design table with its identifier column
func WriteRegressionInput(w io.Writer, input *enrichment.RegressionInput) error {
	cw := newTSV(w)
	header := append([]string{input.Key}, input.Columns...)
	if err := cw.Write(header); err != nil {
		return err
	}
	rec := make([]string, len(header))
	for i, id := range input.IDs {
		rec[0] = id.String()
		for j, v := range input.Rows[i] {
			rec[j+1] = ftoa(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteScanHits writes the motif occurrence table
func WriteScanHits(w io.Writer, hits []enrichment.ScanHit) error {
	cw := newTSV(w)
	if err := cw.Write([]string{"motif_id", "peak_id", "start", "end", "strand", "score", "matched"}); err != nil {
		return err
	}
	for _, h := range hits {
		rec := []string{
			h.MotifID.String(), h.PeakID.String(), strconv.Itoa(h.Start), strconv.Itoa(h.End),
			string(h.Strand), ftoa(h.Score), h.Matched,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteHitSets writes one row per motif and hit peak
func WriteHitSets(w io.Writer, sets enrichment.HitSets) error {
	cw := newTSV(w)
	if err := cw.Write([]string{"motif_id", "peak_id"}); err != nil {
		return err
	}
	for _, id := range sets.MotifIDs() {
		for _, p := range sets[id].Sorted() {
			if err := cw.Write([]string{id.String(), p.String()}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFailures writes motifs excluded after qualifying for testing
func WriteFailures(w io.Writer, failures []enrichment.MotifFailure) error {
	cw := newTSV(w)
	if err := cw.Write([]string{"motif_id", "reason", "detail"}); err != nil {
		return err
	}
	for _, f := range failures {
		if err := cw.Write([]string{f.MotifID.String(), string(f.Reason), f.Detail}); err != nil {
			return fmt.Errorf("failed to write failure for %s: %w", f.MotifID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
