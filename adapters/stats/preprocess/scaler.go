package preprocess

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

// minScale is the smallest standard deviation treated as non-zero; columns
// below it are centred but not rescaled
const minScale = 10 * 2.220446049250313e-16

// Scaler centres columns to zero mean and scales them to unit population
// standard deviation. Parameters are fit on the same data they transform.
type Scaler struct {
	Mean  []float64
	Scale []float64
}

// FitScaler computes per-column mean and population standard deviation.
// cols is column-major.
func FitScaler(cols [][]float64) (*Scaler, error) {
	s := &Scaler{
		Mean:  make([]float64, len(cols)),
		Scale: make([]float64, len(cols)),
	}
	for j, col := range cols {
		mean, err := stats.Mean(col)
		if err != nil {
			return nil, fmt.Errorf("column %d mean: %w", j, err)
		}
		sd, err := stats.StandardDeviationPopulation(col)
		if err != nil {
			return nil, fmt.Errorf("column %d standard deviation: %w", j, err)
		}
		if math.IsNaN(mean) || math.IsNaN(sd) {
			return nil, fmt.Errorf("column %d contains NaN", j)
		}
		s.Mean[j] = mean
		if sd < minScale {
			sd = 1
		}
		s.Scale[j] = sd
	}
	return s, nil
}

// Transform returns standardized copies of cols
func (s *Scaler) Transform(cols [][]float64) [][]float64 {
	out := make([][]float64, len(cols))
	for j, col := range cols {
		out[j] = make([]float64, len(col))
		for i, v := range col {
			out[j][i] = (v - s.Mean[j]) / s.Scale[j]
		}
	}
	return out
}

// Standardize fits a scaler on cols and transforms them
func Standardize(cols [][]float64) ([][]float64, error) {
	s, err := FitScaler(cols)
	if err != nil {
		return nil, err
	}
	return s.Transform(cols), nil
}
