// Package motifs reads motif count matrices from JASPAR and JSON files.
package motifs

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"peakmotif/domain/core"
	"peakmotif/domain/enrichment"
)

// ReadJASPAR parses JASPAR-format matrices: a ">ID name" header followed by
// one row per alphabet symbol, each listing counts by position. Rows may be
// labelled ("A [ 1 2 3 ]") or bare, in which case they follow alphabet order.
func ReadJASPAR(r io.Reader, alphabet string) ([]enrichment.Motif, error) {
	var (
		motifs []enrichment.Motif
		cur    *enrichment.Motif
		rows   map[byte][]float64
		order  []byte
		lineNo int
	)

	flush := func() error {
		if cur == nil {
			return nil
		}
		m, err := assemble(*cur, rows, order, alphabet)
		if err != nil {
			return err
		}
		motifs = append(motifs, m)
		cur = nil
		return nil
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, ">") {
			if err := flush(); err != nil {
				return nil, err
			}
			fields := strings.Fields(line[1:])
			if len(fields) == 0 {
				return nil, fmt.Errorf("line %d: motif header without identifier", lineNo)
			}
			cur = &enrichment.Motif{ID: core.MotifID(fields[0])}
			if len(fields) > 1 {
				cur.Name = strings.Join(fields[1:], " ")
			}
			rows = make(map[byte][]float64)
			order = order[:0]
			continue
		}
		if cur == nil {
			return nil, fmt.Errorf("line %d: counts before any motif header", lineNo)
		}

		symbol, values, err := parseRow(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if symbol == 0 {
			if len(order) >= len(alphabet) {
				return nil, fmt.Errorf("line %d: motif %s has more rows than alphabet symbols", lineNo, cur.ID)
			}
			symbol = alphabet[len(order)]
		}
		if _, dup := rows[symbol]; dup {
			return nil, fmt.Errorf("line %d: motif %s repeats row %c", lineNo, cur.ID, symbol)
		}
		rows[symbol] = values
		order = append(order, symbol)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return motifs, nil
}

// parseRow splits an optional symbol label from the numeric counts
func parseRow(line string) (byte, []float64, error) {
	var symbol byte
	fields := strings.Fields(strings.NewReplacer("[", " ", "]", " ").Replace(line))
	if len(fields) == 0 {
		return 0, nil, fmt.Errorf("empty count row")
	}
	if _, err := strconv.ParseFloat(fields[0], 64); err != nil {
		if len(fields[0]) != 1 {
			return 0, nil, fmt.Errorf("bad row label %q", fields[0])
		}
		symbol = strings.ToUpper(fields[0])[0]
		fields = fields[1:]
	}
	values := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return 0, nil, fmt.Errorf("bad count %q", f)
		}
		values[i] = v
	}
	return symbol, values, nil
}

// assemble transposes symbol rows into position rows in alphabet order
func assemble(m enrichment.Motif, rows map[byte][]float64, order []byte, alphabet string) (enrichment.Motif, error) {
	if len(rows) != len(alphabet) {
		return m, fmt.Errorf("motif %s has %d rows, want %d", m.ID, len(rows), len(alphabet))
	}
	width := -1
	for _, sym := range order {
		if width >= 0 && len(rows[sym]) != width {
			return m, fmt.Errorf("motif %s rows differ in length", m.ID)
		}
		width = len(rows[sym])
	}
	m.Counts = make([][]float64, width)
	for pos := 0; pos < width; pos++ {
		m.Counts[pos] = make([]float64, len(alphabet))
		for a := 0; a < len(alphabet); a++ {
			row, ok := rows[alphabet[a]]
			if !ok {
				return m, fmt.Errorf("motif %s lacks row %c", m.ID, alphabet[a])
			}
			m.Counts[pos][a] = row[pos]
		}
	}
	return m, m.Validate(len(alphabet))
}
