// Package tables reads peak score and user covariate tables and writes
// result tables as tab-separated text.
package tables

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/shenwei356/xopen"

	"peakmotif/domain/core"
	"peakmotif/domain/enrichment"
)

// readFrame loads a headered tab-separated table with every cell as text
func readFrame(r io.Reader) (dataframe.DataFrame, error) {
	df := dataframe.ReadCSV(r,
		dataframe.WithDelimiter('\t'),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return df, df.Err
	}
	if df.Ncol() < 2 {
		return df, fmt.Errorf("table needs an identifier column and at least one value column, has %d columns", df.Ncol())
	}
	return df, nil
}

func parseCell(df dataframe.DataFrame, i, j int) (float64, error) {
	s := strings.TrimSpace(df.Elem(i, j).String())
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("row %d column %s: bad number %q", i+1, df.Names()[j], s)
	}
	return v, nil
}

// ReadScores reads a two-column table of peak identifier and score. Extra
// columns are ignored.
func ReadScores(r io.Reader) (map[core.PeakID]float64, error) {
	df, err := readFrame(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read scores: %w", err)
	}
	scores := make(map[core.PeakID]float64, df.Nrow())
	for i := 0; i < df.Nrow(); i++ {
		id := core.PeakID(strings.TrimSpace(df.Elem(i, 0).String()))
		if _, dup := scores[id]; dup {
			return nil, core.NewDuplicateIDError("scores", id)
		}
		v, err := parseCell(df, i, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to read scores: %w", err)
		}
		scores[id] = v
	}
	return scores, nil
}

// ReadCovariates reads a user covariate table. The first column holds peak
// identifiers and names the table key; every other column must be numeric.
func ReadCovariates(r io.Reader) (*enrichment.Table, error) {
	df, err := readFrame(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read covariates: %w", err)
	}
	names := df.Names()
	tbl := enrichment.NewTable(names[0], names[1:]...)
	row := make([]float64, len(names)-1)
	for i := 0; i < df.Nrow(); i++ {
		for j := 1; j < len(names); j++ {
			v, err := parseCell(df, i, j)
			if err != nil {
				return nil, fmt.Errorf("failed to read covariates: %w", err)
			}
			row[j-1] = v
		}
		id := core.PeakID(strings.TrimSpace(df.Elem(i, 0).String()))
		if err := tbl.Append(id, row...); err != nil {
			return nil, err
		}
	}
	if err := tbl.Validate(); err != nil {
		return nil, err
	}
	return tbl, nil
}

// ReadScoresFile reads a plain or compressed score table
func ReadScoresFile(path string) (map[core.PeakID]float64, error) {
	fh, err := xopen.Ropen(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer fh.Close()
	return ReadScores(fh)
}

// ReadCovariatesFile reads a plain or compressed covariate table
func ReadCovariatesFile(path string) (*enrichment.Table, error) {
	fh, err := xopen.Ropen(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer fh.Close()
	return ReadCovariates(fh)
}
