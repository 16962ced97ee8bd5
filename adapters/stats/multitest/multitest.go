// Package multitest adjusts families of p-values for multiple comparisons.
package multitest

import (
	"fmt"
	"math"
	"sort"
)

// Method names a correction procedure
type Method string

const (
	BenjaminiHochberg  Method = "fdr_bh"
	BenjaminiYekutieli Method = "fdr_by"
	Bonferroni         Method = "bonferroni"
	Sidak              Method = "sidak"
	Holm               Method = "holm"
	HolmSidak          Method = "holm-sidak"
	SimesHochberg      Method = "simes-hochberg"
)

// Methods lists every supported procedure
func Methods() []Method {
	return []Method{BenjaminiHochberg, BenjaminiYekutieli, Bonferroni, Sidak, Holm, HolmSidak, SimesHochberg}
}

// ParseMethod resolves a method name
func ParseMethod(name string) (Method, error) {
	for _, m := range Methods() {
		if string(m) == name {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown correction method %q", name)
}

// Adjust returns adjusted p-values aligned with pvals. The input is not
// modified.
func Adjust(method Method, pvals []float64) ([]float64, error) {
	for i, p := range pvals {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return nil, fmt.Errorf("p-value %d out of range: %v", i, p)
		}
	}
	n := len(pvals)
	out := make([]float64, n)
	if n == 0 {
		return out, nil
	}
	nf := float64(n)

	switch method {
	case Bonferroni:
		for i, p := range pvals {
			out[i] = math.Min(p*nf, 1)
		}
		return out, nil
	case Sidak:
		for i, p := range pvals {
			out[i] = sidak(p, nf)
		}
		return out, nil
	}

	order := ascending(pvals)
	sorted := make([]float64, n)
	for rank, idx := range order {
		sorted[rank] = pvals[idx]
	}
	adj := make([]float64, n)

	switch method {
	case Holm:
		for r := range sorted {
			adj[r] = math.Min((nf-float64(r))*sorted[r], 1)
		}
		stepDown(adj)
	case HolmSidak:
		for r := range sorted {
			adj[r] = sidak(sorted[r], nf-float64(r))
		}
		stepDown(adj)
	case SimesHochberg:
		for r := range sorted {
			adj[r] = (nf - float64(r)) * sorted[r]
		}
		stepUp(adj)
	case BenjaminiHochberg, BenjaminiYekutieli:
		scale := 1.0
		if method == BenjaminiYekutieli {
			scale = 0
			for k := 1; k <= n; k++ {
				scale += 1 / float64(k)
			}
		}
		for r := range sorted {
			adj[r] = sorted[r] * nf / float64(r+1) * scale
		}
		stepUp(adj)
	default:
		return nil, fmt.Errorf("unknown correction method %q", method)
	}

	for rank, idx := range order {
		out[idx] = math.Min(adj[rank], 1)
	}
	return out, nil
}

// Reject reports which adjusted p-values fall strictly below alpha
func Reject(padj []float64, alpha float64) []bool {
	out := make([]bool, len(padj))
	for i, p := range padj {
		out[i] = p < alpha
	}
	return out
}

func sidak(p, m float64) float64 {
	return -math.Expm1(m * math.Log1p(-p))
}

// ascending returns indices of pvals in ascending order, ties by position
func ascending(pvals []float64) []int {
	idx := make([]int, len(pvals))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return pvals[idx[a]] < pvals[idx[b]] })
	return idx
}

// stepDown enforces a running maximum from the smallest p-value upward
func stepDown(adj []float64) {
	for r := 1; r < len(adj); r++ {
		if adj[r] < adj[r-1] {
			adj[r] = adj[r-1]
		}
	}
}

// stepUp enforces a running minimum from the largest p-value downward
func stepUp(adj []float64) {
	for r := len(adj) - 2; r >= 0; r-- {
		if adj[r] > adj[r+1] {
			adj[r] = adj[r+1]
		}
	}
}
