// Package scan finds motif occurrences in peak sequences with log-odds
// position weight matrices and a p-value derived score threshold.
package scan

import (
	"fmt"
	"math"

	"peakmotif/domain/core"
	"peakmotif/domain/enrichment"
)

// scoreScale discretizes log-odds scores to 0.01 nats for the exact
// threshold computation
const scoreScale = 100

// minBackground floors background frequencies of absent symbols
const minBackground = 1e-9

// PWM is a log-odds weight matrix scored against a background model
type PWM struct {
	MotifID  core.MotifID
	Alphabet string
	// Weights[pos][sym] is the log-odds score in nats
	Weights [][]float64
	// Discrete holds Weights scaled and rounded, used for thresholding
	Discrete [][]int
	bg       []float64
}

// NewPWM converts motif counts into log-odds weights. Each position becomes
// (count + pseudocount*bg) / (total + pseudocount), scored as a log ratio
// against the background frequency.
func NewPWM(m enrichment.Motif, bg enrichment.Background, pseudocount float64) (*PWM, error) {
	if err := m.Validate(len(bg.Alphabet)); err != nil {
		return nil, err
	}
	if len(bg.Freqs) != len(bg.Alphabet) {
		return nil, fmt.Errorf("background has %d frequencies for %d symbols", len(bg.Freqs), len(bg.Alphabet))
	}
	freqs := make([]float64, len(bg.Freqs))
	for a, f := range bg.Freqs {
		freqs[a] = math.Max(f, minBackground)
	}

	p := &PWM{
		MotifID:  m.ID,
		Alphabet: bg.Alphabet,
		Weights:  make([][]float64, m.Width()),
		Discrete: make([][]int, m.Width()),
		bg:       freqs,
	}
	for i, row := range m.Counts {
		total := pseudocount
		for _, c := range row {
			total += c
		}
		if total <= 0 {
			return nil, fmt.Errorf("motif %s position %d has no counts and no pseudocount", m.ID, i)
		}
		p.Weights[i] = make([]float64, len(row))
		p.Discrete[i] = make([]int, len(row))
		for a, c := range row {
			prob := (c + pseudocount*freqs[a]) / total
			w := math.Log(math.Max(prob, minBackground)) - math.Log(freqs[a])
			p.Weights[i][a] = w
			p.Discrete[i][a] = int(math.Round(w * scoreScale))
		}
	}
	return p, nil
}

// Width returns the number of positions
func (p *PWM) Width() int {
	return len(p.Weights)
}

// Threshold returns the smallest reachable discrete score whose upper-tail
// probability under the background is at most pval. When even the best
// possible score is more likely than pval the returned threshold is
// unreachable.
func (p *PWM) Threshold(pval float64) int {
	lo, hi := 0, 0
	for _, row := range p.Discrete {
		rlo, rhi := row[0], row[0]
		for _, v := range row[1:] {
			rlo = min(rlo, v)
			rhi = max(rhi, v)
		}
		lo += rlo
		hi += rhi
	}

	// dist[s-lo] is the probability of total discrete score s
	dist := make([]float64, hi-lo+1)
	next := make([]float64, hi-lo+1)
	dist[0] = 1
	span := 0 // highest reachable offset so far
	base := 0 // running sum of row minima
	for _, row := range p.Discrete {
		rlo, rhi := row[0], row[0]
		for _, v := range row[1:] {
			rlo = min(rlo, v)
			rhi = max(rhi, v)
		}
		for s := range next[:span+rhi-rlo+1] {
			next[s] = 0
		}
		for s := 0; s <= span; s++ {
			if dist[s] == 0 {
				continue
			}
			for a, v := range row {
				next[s+v-rlo] += dist[s] * p.bg[a]
			}
		}
		span += rhi - rlo
		base += rlo
		dist, next = next, dist
	}

	tail := 0.0
	threshold := hi + 1
	for s := span; s >= 0; s-- {
		tail += dist[s]
		if tail > pval {
			break
		}
		if dist[s] > 0 {
			threshold = s + base
		}
	}
	return threshold
}

// score returns the discrete and continuous scores of the window starting at
// i, or ok=false when the window holds a symbol outside the alphabet
func (p *PWM) score(seq string, i int, index *[256]int) (discrete int, weight float64, ok bool) {
	for pos := range p.Weights {
		a := index[seq[i+pos]]
		if a < 0 {
			return 0, 0, false
		}
		discrete += p.Discrete[pos][a]
		weight += p.Weights[pos][a]
	}
	return discrete, weight, true
}
