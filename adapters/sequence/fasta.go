// Package sequence reads peak sequences and derives the composition
// covariates used to adjust motif regressions.
package sequence

import (
	"fmt"
	"io"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
	"github.com/shenwei356/xopen"

	"peakmotif/domain/core"
)

// Record is a named sequence as read from FASTA, before admission
type Record struct {
	ID       core.PeakID
	Sequence string
}

// ReadFasta reads every record from r. Record identifiers are the first
// whitespace-delimited word of each header and must be unique.
func ReadFasta(r io.Reader) ([]Record, error) {
	in := fasta.NewReader(r, linear.NewSeq("", nil, alphabet.DNA))
	seen := make(map[core.PeakID]bool)
	var records []Record
	for {
		s, err := in.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to read fasta record %d: %w", len(records)+1, err)
		}
		ls, ok := s.(*linear.Seq)
		if !ok {
			return nil, fmt.Errorf("unexpected sequence type %T", s)
		}
		id := core.PeakID(s.Name())
		if id == "" {
			return nil, fmt.Errorf("fasta record %d has no identifier", len(records)+1)
		}
		if seen[id] {
			return nil, core.NewDuplicateIDError("fasta", id)
		}
		seen[id] = true
		records = append(records, Record{ID: id, Sequence: letters(ls.Seq)})
	}
	return records, nil
}

// ReadFastaFile reads a plain or compressed FASTA file
func ReadFastaFile(path string) ([]Record, error) {
	fh, err := xopen.Ropen(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer fh.Close()

	records, err := ReadFasta(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

func letters(ls alphabet.Letters) string {
	var b strings.Builder
	b.Grow(len(ls))
	for _, l := range ls {
		b.WriteByte(byte(l))
	}
	return b.String()
}
