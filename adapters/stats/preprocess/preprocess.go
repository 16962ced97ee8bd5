// Package preprocess turns a score table and optional covariates into the
// regression input shared by every motif fit.
package preprocess

import (
	"fmt"

	"peakmotif/adapters/stats/covariates"
	"peakmotif/domain/core"
	"peakmotif/domain/enrichment"
)

// Report describes what preprocessing did, for observability
type Report struct {
	Population        int      `json:"population"`
	CovariateColumns  []string `json:"covariate_columns"`
	PCAApplied        bool     `json:"pca_applied"`
	Components        int      `json:"components"`
	VarianceTarget    float64  `json:"variance_target"`
	ExplainedVariance float64  `json:"explained_variance"`
}

// Build merges score and covariates on peak identifier, standardizes the score
// and covariate columns, reduces more than one covariate column to principal
// components retaining varianceTarget of their variance, re-standardizes the
// components and appends a constant intercept. cov may be nil.
func Build(score *enrichment.Table, cov *enrichment.Table, varianceTarget float64) (*enrichment.RegressionInput, *Report, error) {
	if score == nil || len(score.Columns) != 1 {
		return nil, nil, fmt.Errorf("score table must have exactly one value column")
	}

	merged := score
	var covNames []string
	if cov != nil {
		covNames = append(covNames, cov.Columns...)
		var err error
		merged, err = covariates.Assemble(score, cov)
		if err != nil {
			return nil, nil, err
		}
	} else {
		if err := score.Validate(); err != nil {
			return nil, nil, err
		}
		merged = copyTable(score)
		merged.SortByID()
	}

	if merged.Len() == 0 {
		return nil, nil, fmt.Errorf("%w: score table has %d peaks", core.ErrEmptyPopulation, score.Len())
	}

	cols := columnsOf(merged)
	if _, ok := constantColumn(cols[:1]); ok {
		return nil, nil, fmt.Errorf("score column %s has zero variance", score.Columns[0])
	}
	std, err := Standardize(cols)
	if err != nil {
		return nil, nil, fmt.Errorf("standardizing: %w", err)
	}

	report := &Report{
		Population:       merged.Len(),
		CovariateColumns: covNames,
		VarianceTarget:   varianceTarget,
	}

	scoreCol := std[0]
	covCols := std[1:]
	if len(covCols) > 1 {
		pca, err := ReduceByVariance(covCols, varianceTarget)
		if err != nil {
			return nil, nil, fmt.Errorf("reducing covariates: %w", err)
		}
		restd, err := Standardize(pca.Scores)
		if err != nil {
			return nil, nil, fmt.Errorf("standardizing components: %w", err)
		}
		covCols = restd
		covNames = make([]string, pca.Components)
		for c := range covNames {
			covNames[c] = fmt.Sprintf("pc_%d", c)
		}
		report.PCAApplied = true
		report.Components = pca.Components
		report.ExplainedVariance = pca.ExplainedVariance
	}

	columns := append([]string{score.Columns[0]}, covNames...)
	columns = append(columns, enrichment.InterceptColumn)

	input := &enrichment.RegressionInput{
		Key:              score.Key,
		ScoreColumn:      score.Columns[0],
		CovariateColumns: covNames,
		Columns:          columns,
		IDs:              append([]core.PeakID(nil), merged.IDs...),
		Rows:             make([][]float64, merged.Len()),
	}
	for i := range input.Rows {
		row := make([]float64, 0, len(columns))
		row = append(row, scoreCol[i])
		for _, c := range covCols {
			row = append(row, c[i])
		}
		row = append(row, 1.0)
		input.Rows[i] = row
	}
	return input, report, nil
}

func columnsOf(t *enrichment.Table) [][]float64 {
	cols := make([][]float64, len(t.Columns))
	for j := range cols {
		cols[j] = make([]float64, t.Len())
		for i, row := range t.Values {
			cols[j][i] = row[j]
		}
	}
	return cols
}

func constantColumn(cols [][]float64) (int, bool) {
	for j, col := range cols {
		constant := true
		for _, v := range col[1:] {
			if v != col[0] {
				constant = false
				break
			}
		}
		if constant {
			return j, true
		}
	}
	return -1, false
}

func copyTable(t *enrichment.Table) *enrichment.Table {
	out := enrichment.NewTable(t.Key, t.Columns...)
	out.IDs = append([]core.PeakID(nil), t.IDs...)
	out.Values = make([][]float64, len(t.Values))
	for i, row := range t.Values {
		out.Values[i] = append([]float64(nil), row...)
	}
	return out
}
