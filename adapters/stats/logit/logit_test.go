package logit

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"peakmotif/domain/core"
)

// simulate draws n rows of [score, intercept] with labels from a logistic
// model with the given slope and intercept
func simulate(n int, slope, icept float64, seed int64) (*mat.Dense, []float64) {
	rng := rand.New(rand.NewSource(seed))
	x := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		s := rng.NormFloat64()
		x.Set(i, 0, s)
		x.Set(i, 1, 1)
		if rng.Float64() < sigmoid(slope*s+icept) {
			y[i] = 1
		}
	}
	return x, y
}

func TestFitLogistic_RecoversCoefficients(t *testing.T) {
	x, y := simulate(5000, 1.5, -0.5, 7)

	fit, err := FitLogistic(x, y, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, fit.Converged)
	assert.LessOrEqual(t, fit.Iterations, 35)
	assert.InDelta(t, 1.5, fit.Params[0], 0.15)
	assert.InDelta(t, -0.5, fit.Params[1], 0.15)
	assert.Greater(t, fit.StdErr[0], 0.0)
	assert.Less(t, fit.LogLik, 0.0)
}

func TestFitLogistic_ScoreEquationsVanish(t *testing.T) {
	x, y := simulate(400, 0.8, 0.2, 11)

	fit, err := FitLogistic(x, y, DefaultOptions())
	require.NoError(t, err)

	// X'(y - p) = 0 at the maximum
	n, p := x.Dims()
	for j := 0; j < p; j++ {
		var g float64
		for i := 0; i < n; i++ {
			g += x.At(i, j) * (y[i] - fit.Predicted[i])
		}
		assert.InDelta(t, 0, g, 1e-6)
	}
}

func TestFitLogistic_NullEffect(t *testing.T) {
	x, y := simulate(2000, 0, 0, 3)

	fit, err := FitLogistic(x, y, DefaultOptions())
	require.NoError(t, err)

	w := fit.WaldTest(0, 0.05)
	assert.Less(t, math.Abs(w.Coef), 0.2)
	assert.Greater(t, w.PValue, 0.001)
	assert.Less(t, w.CILower, w.Coef)
	assert.Greater(t, w.CIUpper, w.Coef)
}

func TestFitLogistic_PerfectSeparationFails(t *testing.T) {
	n := 40
	x := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x.Set(i, 0, float64(i))
		x.Set(i, 1, 1)
		if i >= n/2 {
			y[i] = 1
		}
	}

	_, err := FitLogistic(x, y, DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNonConvergence) || errors.Is(err, core.ErrSingularDesign))
	assert.True(t, core.IsMotifLocal(err))
}

func TestFitLogistic_SingularDesign(t *testing.T) {
	x, y := simulate(100, 1, 0, 5)
	// duplicate the score column
	dup := mat.NewDense(100, 3, nil)
	for i := 0; i < 100; i++ {
		dup.Set(i, 0, x.At(i, 0))
		dup.Set(i, 1, x.At(i, 0))
		dup.Set(i, 2, 1)
	}

	_, err := FitLogistic(dup, y, DefaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrSingularDesign)
}

func TestFitLogistic_LengthMismatch(t *testing.T) {
	x := mat.NewDense(3, 1, []float64{1, 1, 1})
	_, err := FitLogistic(x, []float64{0, 1}, DefaultOptions())
	assert.Error(t, err)
}

func TestWaldTest_KnownValues(t *testing.T) {
	f := &Fit{Params: []float64{1.96}, StdErr: []float64{1}}
	w := f.WaldTest(0, 0.05)
	assert.InDelta(t, 0.05, w.PValue, 1e-3)
	assert.InDelta(t, 0, w.CILower, 1e-3)
	assert.InDelta(t, 3.92, w.CIUpper, 1e-3)
	assert.InDelta(t, 1.96, w.Z, 1e-12)
}

func TestAUC(t *testing.T) {
	scores := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}

	auc, err := AUC(scores, []bool{false, false, false, true, true, true})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, auc, 1e-12)

	auc, err = AUC(scores, []bool{true, true, true, false, false, false})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, auc, 1e-12)

	auc, err = AUC([]float64{1, 1, 1, 1}, []bool{true, false, true, false})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, auc, 1e-12)
}

func TestAUC_DoesNotReorderInput(t *testing.T) {
	scores := []float64{0.9, 0.1, 0.5}
	classes := []bool{true, false, false}

	_, err := AUC(scores, classes)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.9, 0.1, 0.5}, scores)
	assert.Equal(t, []bool{true, false, false}, classes)
}

func TestAUC_SingleClass(t *testing.T) {
	_, err := AUC([]float64{1, 2}, []bool{true, true})
	assert.Error(t, err)
}
