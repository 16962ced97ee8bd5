package sequence

import (
	"peakmotif/domain/enrichment"
)

// Background returns symbol frequencies over the concatenation of all peak
// sequences. Symbols outside the alphabet are ignored; an empty corpus yields
// a uniform model.
func Background(peaks []enrichment.Peak, alphabet string) enrichment.Background {
	counts := make([]float64, len(alphabet))
	index := symbolIndex(alphabet)
	total := 0.0
	for _, p := range peaks {
		for i := 0; i < len(p.Sequence); i++ {
			if j := index[p.Sequence[i]]; j >= 0 {
				counts[j]++
				total++
			}
		}
	}
	freqs := make([]float64, len(alphabet))
	for j := range freqs {
		if total == 0 {
			freqs[j] = 1 / float64(len(alphabet))
		} else {
			freqs[j] = counts[j] / total
		}
	}
	return enrichment.Background{Alphabet: alphabet, Freqs: freqs}
}

// symbolIndex maps each byte to its alphabet position or -1
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
