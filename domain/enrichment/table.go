package enrichment

import (
	"fmt"
	"sort"

	"peakmotif/domain/core"
)

// Table is a numeric table keyed by peak identifier. Values is row-major:
// Values[i][j] is column j of row IDs[i].
type Table struct {
	Key     string        `json:"key"`
	Columns []string      `json:"columns"`
	IDs     []core.PeakID `json:"ids"`
	Values  [][]float64   `json:"values"`
}

// NewTable creates an empty table with the given key and column names
func NewTable(key string, columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Key: key, Columns: cols}
}

// Append adds a row; row must have one value per column
func (t *Table) Append(id core.PeakID, row ...float64) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("row %s has %d values, table has %d columns", id, len(row), len(t.Columns))
	}
	values := make([]float64, len(row))
	copy(values, row)
	t.IDs = append(t.IDs, id)
	t.Values = append(t.Values, values)
	return nil
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.IDs)
}

// Column returns a copy of the named column
func (t *Table) Column(name string) ([]float64, bool) {
	j := t.ColumnIndex(name)
	if j < 0 {
		return nil, false
	}
	col := make([]float64, len(t.Values))
	for i, row := range t.Values {
		col[i] = row[j]
	}
	return col, true
}

// ColumnIndex returns the position of name among the columns, or -1
func (t *Table) ColumnIndex(name string) int {
	for j, c := range t.Columns {
		if c == name {
			return j
		}
	}
	return -1
}

// Index maps each identifier to its row
func (t *Table) Index() map[core.PeakID]int {
	idx := make(map[core.PeakID]int, len(t.IDs))
	for i, id := range t.IDs {
		idx[id] = i
	}
	return idx
}

// Validate checks row widths and identifier uniqueness
func (t *Table) Validate() error {
	if len(t.IDs) != len(t.Values) {
		return fmt.Errorf("table %s has %d ids and %d rows", t.Key, len(t.IDs), len(t.Values))
	}
	seen := make(map[core.PeakID]struct{}, len(t.IDs))
	for i, id := range t.IDs {
		if _, dup := seen[id]; dup {
			return core.NewDuplicateIDError(t.Key, id)
		}
		seen[id] = struct{}{}
		if len(t.Values[i]) != len(t.Columns) {
			return fmt.Errorf("table %s row %s has %d values, want %d", t.Key, id, len(t.Values[i]), len(t.Columns))
		}
	}
	return nil
}

// SortByID reorders rows by identifier in place
func (t *Table) SortByID() {
	order := make([]int, len(t.IDs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return t.IDs[order[a]] < t.IDs[order[b]] })

	ids := make([]core.PeakID, len(t.IDs))
	values := make([][]float64, len(t.Values))
	for i, o := range order {
		ids[i] = t.IDs[o]
		values[i] = t.Values[o]
	}
	t.IDs = ids
	t.Values = values
}

// RegressionInput is the preprocessed design shared read-only by every motif
// fit. Columns is [score, covariates..., intercept] and Rows is row-major in the
// same order.
type RegressionInput struct {
	Key              string        `json:"key"`
	ScoreColumn      string        `json:"score_column"`
	CovariateColumns []string      `json:"covariate_columns"`
	Columns          []string      `json:"columns"`
	IDs              []core.PeakID `json:"ids"`
	Rows             [][]float64   `json:"rows"`
}

// InterceptColumn is the name of the constant design column
const InterceptColumn = "intercept"

// Len returns the regression population size
func (r *RegressionInput) Len() int {
	return len(r.IDs)
}

// Width returns the number of design columns including the intercept
func (r *RegressionInput) Width() int {
	return len(r.Columns)
}

// Column returns a copy of the named design column
func (r *RegressionInput) Column(name string) ([]float64, bool) {
	j := -1
	for k, c := range r.Columns {
		if c == name {
			j = k
			break
		}
	}
	if j < 0 {
		return nil, false
	}
	col := make([]float64, len(r.Rows))
	for i, row := range r.Rows {
		col[i] = row[j]
	}
	return col, true
}

// Flat returns the design in row-major order
func (r *RegressionInput) Flat() []float64 {
	data := make([]float64, 0, len(r.Rows)*len(r.Columns))
	for _, row := range r.Rows {
		data = append(data, row...)
	}
	return data
}
