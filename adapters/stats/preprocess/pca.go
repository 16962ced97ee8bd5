package preprocess

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PCAResult holds the retained principal-component scores
type PCAResult struct {
	Components        int
	VarianceTarget    float64
	ExplainedRatio    []float64 // per retained component
	ExplainedVariance float64   // cumulative over retained components
	Scores            [][]float64
}

// ReduceByVariance projects the column-major block cols onto the fewest principal
// components whose cumulative explained-variance ratio exceeds target. A target
// of 1 keeps every component. Each component's sign is fixed so its largest
// absolute loading is positive, which makes repeated runs return identical scores.
func ReduceByVariance(cols [][]float64, target float64) (*PCAResult, error) {
	if target <= 0 || target > 1 {
		return nil, fmt.Errorf("variance target %v outside (0, 1]", target)
	}
	d := len(cols)
	if d == 0 {
		return nil, fmt.Errorf("no columns to reduce")
	}
	n := len(cols[0])
	if n < 2 {
		return nil, fmt.Errorf("need at least 2 rows for PCA, have %d", n)
	}

	x := mat.NewDense(n, d, nil)
	for j, col := range cols {
		if len(col) != n {
			return nil, fmt.Errorf("column %d has %d rows, want %d", j, len(col), n)
		}
		for i, v := range col {
			x.Set(i, j, v)
		}
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return nil, fmt.Errorf("principal component decomposition failed")
	}
	vars := pc.VarsTo(nil)
	total := 0.0
	for _, v := range vars {
		total += v
	}
	if total <= 0 || math.IsNaN(total) {
		return nil, fmt.Errorf("covariates have no variance")
	}

	k := len(vars)
	if target < 1 {
		cum := 0.0
		for i, v := range vars {
			cum += v / total
			if cum > target {
				k = i + 1
				break
			}
		}
	}

	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	// centre with the column means before projecting
	centred := mat.NewDense(n, d, nil)
	for j := 0; j < d; j++ {
		mean := stat.Mean(cols[j], nil)
		for i := 0; i < n; i++ {
			centred.Set(i, j, x.At(i, j)-mean)
		}
	}

	var proj mat.Dense
	proj.Mul(centred, vecs.Slice(0, d, 0, k))

	res := &PCAResult{
		Components:     k,
		VarianceTarget: target,
		ExplainedRatio: make([]float64, k),
		Scores:         make([][]float64, k),
	}
	for c := 0; c < k; c++ {
		sign := loadingSign(&vecs, c)
		scores := make([]float64, n)
		for i := 0; i < n; i++ {
			scores[i] = sign * proj.At(i, c)
		}
		res.Scores[c] = scores
		res.ExplainedRatio[c] = vars[c] / total
		res.ExplainedVariance += vars[c] / total
	}
	return res, nil
}

// loadingSign returns -1 when the largest-magnitude loading of component c is negative
func loadingSign(vecs *mat.Dense, c int) float64 {
	rows, _ := vecs.Dims()
	best, bestAbs := 0.0, -1.0
	for r := 0; r < rows; r++ {
		v := vecs.At(r, c)
		if math.Abs(v) > bestAbs {
			best, bestAbs = v, math.Abs(v)
		}
	}
	if best < 0 {
		return -1
	}
	return 1
}
