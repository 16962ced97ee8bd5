// Package logit fits binomial logistic regressions by maximum likelihood and
// derives Wald inference and discrimination for a single coefficient.
package logit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"peakmotif/domain/core"
)

// information matrices conditioned worse than this are treated as rank deficient
const maxCond = 1e13

// Options bound the Newton-Raphson solver
type Options struct {
	MaxIter int
	Tol     float64
}

// DefaultOptions caps the solver at 35 iterations and requires every parameter
// step to fall below 1e-8
func DefaultOptions() Options {
	return Options{MaxIter: 35, Tol: 1e-8}
}

// Fit is a fitted logistic model
type Fit struct {
	Params     []float64
	StdErr     []float64
	Predicted  []float64
	LogLik     float64
	Iterations int
	Converged  bool
}

// FitLogistic maximizes the binomial likelihood of y (0/1) on the design x by
// iteratively reweighted least squares. x must already contain any intercept
// column. A fit that exhausts MaxIter is returned together with an error
// wrapping core.ErrNonConvergence; a singular information matrix yields
// core.ErrSingularDesign.
func FitLogistic(x mat.Matrix, y []float64, opts Options) (*Fit, error) {
	n, p := x.Dims()
	if len(y) != n {
		return nil, fmt.Errorf("label length %d does not match %d design rows", len(y), n)
	}
	if opts.MaxIter <= 0 {
		opts = DefaultOptions()
	}

	beta := mat.NewVecDense(p, nil)
	eta := mat.NewVecDense(n, nil)
	resid := mat.NewVecDense(n, nil)
	grad := mat.NewVecDense(p, nil)
	step := mat.NewVecDense(p, nil)
	prob := make([]float64, n)

	fit := &Fit{}
	var chol mat.Cholesky
	for iter := 1; iter <= opts.MaxIter; iter++ {
		eta.MulVec(x, beta)
		weights := make([]float64, n)
		for i := 0; i < n; i++ {
			prob[i] = sigmoid(eta.AtVec(i))
			weights[i] = prob[i] * (1 - prob[i])
			resid.SetVec(i, y[i]-prob[i])
		}
		grad.MulVec(x.T(), resid)

		info := information(x, weights)
		if ok := chol.Factorize(info); !ok || chol.Cond() > maxCond {
			return nil, fmt.Errorf("%w at iteration %d", core.ErrSingularDesign, iter)
		}
		if err := chol.SolveVecTo(step, grad); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrSingularDesign, err)
		}
		beta.AddVec(beta, step)
		fit.Iterations = iter

		maxStep := 0.0
		for j := 0; j < p; j++ {
			s := math.Abs(step.AtVec(j))
			if math.IsNaN(s) || math.IsInf(s, 0) {
				return nil, fmt.Errorf("%w: non-finite step at iteration %d", core.ErrNonConvergence, iter)
			}
			if s > maxStep {
				maxStep = s
			}
		}
		if maxStep < opts.Tol {
			fit.Converged = true
			break
		}
	}

	// inference at the final estimate
	eta.MulVec(x, beta)
	weights := make([]float64, n)
	fit.Predicted = make([]float64, n)
	for i := 0; i < n; i++ {
		pi := sigmoid(eta.AtVec(i))
		fit.Predicted[i] = pi
		weights[i] = pi * (1 - pi)
		fit.LogLik += y[i]*logClamp(pi) + (1-y[i])*logClamp(1-pi)
	}
	if ok := chol.Factorize(information(x, weights)); !ok || chol.Cond() > maxCond {
		return nil, fmt.Errorf("%w at final estimate", core.ErrSingularDesign)
	}
	var cov mat.SymDense
	if err := chol.InverseTo(&cov); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSingularDesign, err)
	}

	fit.Params = make([]float64, p)
	fit.StdErr = make([]float64, p)
	for j := 0; j < p; j++ {
		fit.Params[j] = beta.AtVec(j)
		fit.StdErr[j] = math.Sqrt(cov.At(j, j))
	}

	if !fit.Converged {
		return fit, fmt.Errorf("%w after %d iterations", core.ErrNonConvergence, fit.Iterations)
	}
	return fit, nil
}

// Wald holds inference for one coefficient
type Wald struct {
	Coef    float64
	StdErr  float64
	Z       float64
	PValue  float64
	CILower float64
	CIUpper float64
}

// WaldTest returns the coefficient j with its two-sided p-value and a
// (1-alpha) confidence interval from the asymptotic normal approximation
func (f *Fit) WaldTest(j int, alpha float64) Wald {
	coef, se := f.Params[j], f.StdErr[j]
	z := coef / se
	q := distuv.UnitNormal.Quantile(1 - alpha/2)
	return Wald{
		Coef:    coef,
		StdErr:  se,
		Z:       z,
		PValue:  2 * distuv.UnitNormal.Survival(math.Abs(z)),
		CILower: coef - q*se,
		CIUpper: coef + q*se,
	}
}

// information returns X' W X
func information(x mat.Matrix, w []float64) *mat.SymDense {
	n, p := x.Dims()
	data := make([]float64, p*p)
	row := make([]float64, p)
	for i := 0; i < n; i++ {
		if w[i] == 0 {
			continue
		}
		for j := 0; j < p; j++ {
			row[j] = x.At(i, j)
		}
		for a := 0; a < p; a++ {
			wa := w[i] * row[a]
			for b := a; b < p; b++ {
				data[a*p+b] += wa * row[b]
			}
		}
	}
	for a := 0; a < p; a++ {
		for b := 0; b < a; b++ {
			data[a*p+b] = data[b*p+a]
		}
	}
	return mat.NewSymDense(p, data)
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func logClamp(p float64) float64 {
	const eps = 1e-300
	if p < eps {
		p = eps
	}
	return math.Log(p)
}
