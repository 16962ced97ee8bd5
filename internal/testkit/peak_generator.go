package testkit

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"peakmotif/adapters/sequence"
	"peakmotif/domain/core"
	"peakmotif/domain/enrichment"
)

// PeakGeneratorConfig configures the synthetic peak generator
type PeakGeneratorConfig struct {
	PeakCount      int     `json:"peak_count"`
	MinLength      int     `json:"min_length"`
	MaxLength      int     `json:"max_length"`
	GCContent      float64 `json:"gc_content"`
	PlantedWord    string  `json:"planted_word"`
	PlantFraction  float64 `json:"plant_fraction"`
	ScoreShift     float64 `json:"score_shift"`
	DegenerateRate float64 `json:"degenerate_rate"` // fraction of peaks made mostly of N
	Seed           int64   `json:"seed"`
}

// DefaultPeakConfig returns a dataset where a planted motif raises scores
func DefaultPeakConfig() PeakGeneratorConfig {
	return PeakGeneratorConfig{
		PeakCount:      300,
		MinLength:      80,
		MaxLength:      160,
		GCContent:      0.45,
		PlantedWord:    "TGACGTCA",
		PlantFraction:  0.3,
		ScoreShift:     2.5,
		DegenerateRate: 0.02,
		Seed:           42,
	}
}

// PeakDataset is a generated set of peaks with the motifs to scan for
type PeakDataset struct {
	Records []sequence.Record
	Scores  map[core.PeakID]float64
	Motifs  []enrichment.Motif
	Planted enrichment.PeakSet
}

// PeakDataGenerator generates random peaks with a planted motif
type PeakDataGenerator struct {
	config PeakGeneratorConfig
	rng    *rand.Rand
}

// NewPeakDataGenerator creates a generator seeded from config
func NewPeakDataGenerator(config PeakGeneratorConfig) *PeakDataGenerator {
	return &PeakDataGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate produces the dataset. Planted peaks receive a score shift so the
// planted motif is positively associated with score.
func (g *PeakDataGenerator) Generate() *PeakDataset {
	c := g.config
	ds := &PeakDataset{
		Scores:  make(map[core.PeakID]float64, c.PeakCount),
		Planted: enrichment.NewPeakSet(),
	}
	for i := 0; i < c.PeakCount; i++ {
		id := core.PeakID(fmt.Sprintf("peak_%05d", i))
		length := c.MinLength
		if c.MaxLength > c.MinLength {
			length += g.rng.Intn(c.MaxLength - c.MinLength + 1)
		}

		var seq []byte
		if g.rng.Float64() < c.DegenerateRate {
			seq = []byte(strings.Repeat("N", length))
		} else {
			seq = g.randomSequence(length)
		}
		score := g.rng.NormFloat64()

		if c.PlantedWord != "" && len(c.PlantedWord) <= length && seq[0] != 'N' && g.rng.Float64() < c.PlantFraction {
			at := g.rng.Intn(length - len(c.PlantedWord) + 1)
			copy(seq[at:], c.PlantedWord)
			ds.Planted.Add(id)
			score += c.ScoreShift
		}

		ds.Records = append(ds.Records, sequence.Record{ID: id, Sequence: string(seq)})
		ds.Scores[id] = score
	}

	ds.Motifs = []enrichment.Motif{
		ConsensusMotif("PLANTED.1", c.PlantedWord, 0.94),
		ConsensusMotif("DECOY.1", "CCATTAGG", 0.94),
		ConsensusMotif("RARE.1", "GTACGTACGTAC", 0.97),
	}
	return ds
}

func (g *PeakDataGenerator) randomSequence(n int) []byte {
	seq := make([]byte, n)
	for i := range seq {
		r := g.rng.Float64()
		switch {
		case r < g.config.GCContent/2:
			seq[i] = 'G'
		case r < g.config.GCContent:
			seq[i] = 'C'
		case r < g.config.GCContent+(1-g.config.GCContent)/2:
			seq[i] = 'A'
		default:
			seq[i] = 'T'
		}
	}
	return seq
}

// ConsensusMotif builds an ACGT count matrix favouring word with the given
// per-position specificity
func ConsensusMotif(id, word string, specificity float64) enrichment.Motif {
	m := enrichment.Motif{ID: core.MotifID(id), Name: word}
	other := (1 - specificity) / 3 * 100
	for i := 0; i < len(word); i++ {
		row := []float64{other, other, other, other}
		row[strings.IndexByte("ACGT", word[i])] = specificity * 100
		m.Counts = append(m.Counts, row)
	}
	return m
}

// WriteFiles writes the dataset as FASTA, a score table and a JASPAR motif
// file under dir, returning their paths
func (ds *PeakDataset) WriteFiles(dir string) (fastaPath, scoresPath, motifsPath string, err error) {
	var fa, sc, mo strings.Builder
	sc.WriteString("peak_id\tpeak_score\n")
	for _, r := range ds.Records {
		fmt.Fprintf(&fa, ">%s\n%s\n", r.ID, r.Sequence)
		fmt.Fprintf(&sc, "%s\t%g\n", r.ID, ds.Scores[r.ID])
	}
	for _, m := range ds.Motifs {
		fmt.Fprintf(&mo, ">%s %s\n", m.ID, m.Name)
		for a, sym := range "ACGT" {
			fmt.Fprintf(&mo, "%c [", sym)
			for _, row := range m.Counts {
				fmt.Fprintf(&mo, " %g", row[a])
			}
			mo.WriteString(" ]\n")
		}
	}

	fastaPath = filepath.Join(dir, "peaks.fa")
	scoresPath = filepath.Join(dir, "scores.tsv")
	motifsPath = filepath.Join(dir, "motifs.jaspar")
	for path, body := range map[string]string{fastaPath: fa.String(), scoresPath: sc.String(), motifsPath: mo.String()} {
		if err = os.WriteFile(path, []byte(body), 0o644); err != nil {
			return "", "", "", err
		}
	}
	return fastaPath, scoresPath, motifsPath, nil
}
