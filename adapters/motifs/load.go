package motifs

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/shenwei356/xopen"

	"peakmotif/domain/enrichment"
)

// Load reads a motif file, plain or compressed. Files named *.json (optionally
// followed by a compression suffix) are parsed as JSON, anything else as
// JASPAR. Motif identifiers must be unique.
func Load(path, alphabet string) ([]enrichment.Motif, error) {
	fh, err := xopen.Ropen(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer fh.Close()

	var motifs []enrichment.Motif
	if isJSON(path) {
		data, err := io.ReadAll(fh)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		motifs, err = ParseJSON(bytes.TrimSpace(data), alphabet)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	} else {
		motifs, err = ReadJASPAR(fh, alphabet)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	seen := make(map[string]bool, len(motifs))
	for _, m := range motifs {
		if seen[m.ID.String()] {
			return nil, fmt.Errorf("%s: duplicate motif id %s", path, m.ID)
		}
		seen[m.ID.String()] = true
	}
	return motifs, nil
}

func isJSON(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	for _, ext := range []string{".gz", ".xz", ".zst", ".bz2"} {
		name = strings.TrimSuffix(name, ext)
	}
	return strings.HasSuffix(name, ".json")
}
