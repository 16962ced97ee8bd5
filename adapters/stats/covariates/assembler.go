// Package covariates merges covariate sources into one table aligned on peak
// identifier.
package covariates

import (
	"fmt"
	"sort"

	"peakmotif/domain/core"
	"peakmotif/domain/enrichment"
)

// UserCovariatePrefix is prepended to user-supplied covariate names so they
// cannot collide with derived covariates
const UserCovariatePrefix = "user_covariate_"

// Assemble inner-joins the tables on peak identifier. Only peaks present in
// every table survive, rows are sorted by identifier, and columns keep their
// names and the argument order. Assemble returns nil when no tables are given.
func Assemble(tables ...*enrichment.Table) (*enrichment.Table, error) {
	if len(tables) == 0 {
		return nil, nil
	}

	columnOwner := make(map[string]int)
	var columns []string
	for t, tbl := range tables {
		if tbl == nil {
			return nil, fmt.Errorf("covariate table %d is nil", t)
		}
		if err := tbl.Validate(); err != nil {
			return nil, err
		}
		for _, c := range tbl.Columns {
			if _, dup := columnOwner[c]; dup {
				return nil, core.NewColumnCollisionError(c)
			}
			columnOwner[c] = t
			columns = append(columns, c)
		}
	}

	indexes := make([]map[core.PeakID]int, len(tables))
	for t, tbl := range tables {
		indexes[t] = tbl.Index()
	}

	var shared []core.PeakID
	for _, id := range tables[0].IDs {
		inAll := true
		for t := 1; t < len(tables); t++ {
			if _, ok := indexes[t][id]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			shared = append(shared, id)
		}
	}
	sort.Slice(shared, func(i, j int) bool { return shared[i] < shared[j] })

	out := enrichment.NewTable(tables[0].Key, columns...)
	for _, id := range shared {
		row := make([]float64, 0, len(columns))
		for t, tbl := range tables {
			row = append(row, tbl.Values[indexes[t][id]]...)
		}
		if err := out.Append(id, row...); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// PrefixColumns returns a copy of tbl with every column renamed to prefix+name
func PrefixColumns(tbl *enrichment.Table, prefix string) *enrichment.Table {
	out := &enrichment.Table{
		Key:     tbl.Key,
		Columns: make([]string, len(tbl.Columns)),
		IDs:     append([]core.PeakID(nil), tbl.IDs...),
		Values:  make([][]float64, len(tbl.Values)),
	}
	for j, c := range tbl.Columns {
		out.Columns[j] = prefix + c
	}
	for i, row := range tbl.Values {
		out.Values[i] = append([]float64(nil), row...)
	}
	return out
}
