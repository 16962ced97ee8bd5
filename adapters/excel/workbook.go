// Package excel reads covariate sheets and exports run results as xlsx
// workbooks.
package excel

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"peakmotif/domain/enrichment"
)

// Sheet names of an exported workbook
const (
	SummarySheet  = "Summary"
	ResultsSheet  = "Results"
	FailuresSheet = "Failures"
)

var resultHeader = []interface{}{
	"motif_id", "coef", "std_err", "ci_95_pct_lower", "ci_95_pct_upper",
	"pval", "auc", "padj", "padj_sig", "abs_coef", "num_peaks", "percent_peaks",
}

// Workbook is everything an export needs
type Workbook struct {
	Run      *enrichment.Run
	Results  []enrichment.MotifResult
	Failures []enrichment.MotifFailure
}

// Write saves the workbook to path with summary, results and failures sheets
func Write(path string, wb Workbook) error {
	f, err := build(wb)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}

// WriteTo streams the workbook to w
func WriteTo(w io.Writer, wb Workbook) error {
	f, err := build(wb)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func build(wb Workbook) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSummary(f, wb.Run); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing summary: %w", err)
	}
	if err := writeResults(f, wb.Results); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing results: %w", err)
	}
	if err := writeFailures(f, wb.Failures); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing failures: %w", err)
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeSummary(f *excelize.File, run *enrichment.Run) error {
	if run == nil {
		return nil
	}
	rows := [][]interface{}{
		{"run_id", run.ID.String()},
		{"created_at", run.CreatedAt.String()},
		{"status", string(run.Status)},
		{"config_hash", run.ConfigHash},
		{"total_peaks", run.TotalPeaks},
		{"admitted_peaks", run.AdmittedPeaks},
		{"regression_peaks", run.RegressionPeaks},
		{"motifs_scanned", run.MotifsScanned},
		{"motifs_tested", run.MotifsTested},
		{"min_set_size", run.MinSetSize},
		{"max_set_size", run.MaxSetSize},
		{"significant", run.Significant},
		{"params", run.Params},
	}
	return setRows(f, SummarySheet, rows)
}

func writeResults(f *excelize.File, results []enrichment.MotifResult) error {
	if _, err := f.NewSheet(ResultsSheet); err != nil {
		return err
	}
	rows := [][]interface{}{resultHeader}
	for _, r := range results {
		rows = append(rows, []interface{}{
			r.MotifID.String(), r.Coef, r.StdErr, r.CILower, r.CIUpper,
			r.PValue, r.AUC, r.PAdj, r.PAdjSig, r.AbsCoef, r.NumPeaks, r.PercentPeaks,
		})
	}
	if err := setRows(f, ResultsSheet, rows); err != nil {
		return err
	}
	return f.SetPanes(ResultsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeFailures(f *excelize.File, failures []enrichment.MotifFailure) error {
	if _, err := f.NewSheet(FailuresSheet); err != nil {
		return err
	}
	rows := [][]interface{}{{"motif_id", "index", "reason", "detail"}}
	for _, fl := range failures {
		rows = append(rows, []interface{}{fl.MotifID.String(), fl.Index, string(fl.Reason), fl.Detail})
	}
	return setRows(f, FailuresSheet, rows)
}

func setRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
