package excel

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"peakmotif/domain/core"
	"peakmotif/domain/enrichment"
)

// DefaultSheet is read when no sheet name is given
const DefaultSheet = "Sheet1"

// ReadTable reads a covariate table from an xlsx sheet. The first row holds
// headers, the first column the peak identifier and the rest numeric values.
func ReadTable(path, sheet string) (*enrichment.Table, error) {
	if sheet == "" {
		sheet = DefaultSheet
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sheet, err)
	}
	return processRows(rows)
}

// processRows converts raw string rows into a table
func processRows(rows [][]string) (*enrichment.Table, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("sheet must have at least a header row and one data row")
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("sheet needs an identifier column and at least one value column")
	}

	tbl := enrichment.NewTable(header[0], header[1:]...)
	for i, row := range rows[1:] {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		values := make([]float64, len(header)-1)
		for j := range values {
			if j+1 >= len(row) {
				return nil, fmt.Errorf("row %d: missing value for %s", i+2, header[j+1])
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(row[j+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i+2, header[j+1], err)
			}
			values[j] = v
		}
		if err := tbl.Append(core.PeakID(strings.TrimSpace(row[0])), values...); err != nil {
			return nil, err
		}
	}
	if err := tbl.Validate(); err != nil {
		return nil, err
	}
	return tbl, nil
}
