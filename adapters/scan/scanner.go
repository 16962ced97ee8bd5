package scan

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"peakmotif/adapters/sequence"
	"peakmotif/domain/enrichment"
)

// Scanner searches peaks for motif occurrences
type Scanner struct {
	PValue      float64
	Pseudocount float64
	Revcomp     bool
	NJobs       int
	// Progress, if set, is called after each motif completes
	Progress func(done, total int)
}

// NewScanner creates a scanner with the given hit threshold and options
func NewScanner(pval, pseudocount float64, revcomp bool, nJobs int) *Scanner {
	return &Scanner{PValue: pval, Pseudocount: pseudocount, Revcomp: revcomp, NJobs: nJobs}
}

// Scan returns the hits of each motif, indexed like motifs. Motifs are
// scanned concurrently by at most NJobs workers.
func (s *Scanner) Scan(ctx context.Context, motifs []enrichment.Motif, peaks []enrichment.Peak, bg enrichment.Background) ([][]enrichment.ScanHit, error) {
	pwms := make([]*PWM, len(motifs))
	for i, m := range motifs {
		p, err := NewPWM(m, bg, s.Pseudocount)
		if err != nil {
			return nil, err
		}
		pwms[i] = p
	}

	var reverse []string
	if s.Revcomp {
		reverse = make([]string, len(peaks))
		for i, p := range peaks {
			reverse[i] = sequence.ReverseComplement(p.Sequence)
		}
	}
	index := symbolIndex(bg.Alphabet)

	jobs := int64(s.NJobs)
	if jobs < 1 {
		jobs = 1
	}
	sem := semaphore.NewWeighted(jobs)
	out := make([][]enrichment.ScanHit, len(motifs))

	var (
		mu       sync.Mutex
		firstErr error
		done     atomic.Int64
	)
	for i, p := range pwms {
		i, p := i, p
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			break
		}
		go func() {
			defer sem.Release(1)
			hits, err := s.scanOne(ctx, p, peaks, reverse, &index)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("motif %s: %w", p.MotifID, err)
				}
				mu.Unlock()
				return
			}
			out[i] = hits
			if s.Progress != nil {
				s.Progress(int(done.Add(1)), len(pwms))
			}
		}()
	}

	// wait for in-flight workers
	if err := sem.Acquire(context.Background(), jobs); err != nil {
		return nil, err
	}
	sem.Release(jobs)

	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func (s *Scanner) scanOne(ctx context.Context, p *PWM, peaks []enrichment.Peak, reverse []string, index *[256]int) ([]enrichment.ScanHit, error) {
	threshold := p.Threshold(s.PValue)
	w := p.Width()
	var hits []enrichment.ScanHit
	for k, peak := range peaks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seq := peak.Sequence
		for i := 0; i+w <= len(seq); i++ {
			d, score, ok := p.score(seq, i, index)
			if ok && d >= threshold {
				hits = append(hits, enrichment.ScanHit{
					MotifID: p.MotifID,
					PeakID:  peak.ID,
					Start:   i,
					End:     i + w,
					Strand:  enrichment.StrandForward,
					Score:   score,
					Matched: seq[i : i+w],
				})
			}
		}
		if reverse == nil {
			continue
		}
		rc := reverse[k]
		for i := 0; i+w <= len(rc); i++ {
			d, score, ok := p.score(rc, i, index)
			if ok && d >= threshold {
				start := len(rc) - i - w
				hits = append(hits, enrichment.ScanHit{
					MotifID: p.MotifID,
					PeakID:  peak.ID,
					Start:   start,
					End:     start + w,
					Strand:  enrichment.StrandReverse,
					Score:   score,
					Matched: rc[i : i+w],
				})
			}
		}
	}
	return hits, nil
}

func symbolIndex(alphabet string) [256]int {
	var idx [256]int
	for i := range idx {
		idx[i] = -1
	}
	for j := 0; j < len(alphabet); j++ {
		idx[alphabet[j]] = j
	}
	return idx
}
