// Package fit minimizes a model's residual against observed data and reports
// best-fit parameter values with goodness-of-fit and uncertainty estimates.
package fit

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"holofit/internal/model"
	"holofit/internal/optics"
	"holofit/internal/scatterer"
)

var ErrFit = errors.New("fit error")

const defaultMaxEvaluations = 5000

// Fitter searches the model's free-parameter space for the values that
// minimize the sum of squared residuals. The zero value uses Nelder-Mead
// with a default evaluation budget.
type Fitter struct {
	Method         optimize.Method
	MaxEvaluations int
}

func New() *Fitter { return &Fitter{} }

// Result is the outcome of a fit.
type Result struct {
	// Params lists the free-parameter names in optimization order.
	Params []string
	// Values maps each free parameter to its best-fit value.
	Values map[string]float64
	// Chisq is the sum of squared residuals at the optimum; RedChisq is
	// Chisq over the degrees of freedom.
	Chisq    float64
	RedChisq float64
	// Covariance is the estimated parameter covariance matrix in Params
	// order, nil when the Jacobian is degenerate at the optimum.
	Covariance  [][]float64
	Evaluations int
	Converged   bool
	// Scatterer is the concrete scatterer rebuilt from the best-fit values.
	Scatterer scatterer.Scatterer
}

// Fit minimizes the model residual against the observed frame starting from
// the model's guess.
func (f *Fitter) Fit(ctx context.Context, m *model.Model, frame *optics.Frame) (*Result, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil model", ErrFit)
	}
	if frame == nil || frame.Schema == nil {
		return nil, fmt.Errorf("%w: nil data frame", ErrFit)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	priors := m.Parameters()
	names := make([]string, len(priors))
	lo := make([]float64, len(priors))
	hi := make([]float64, len(priors))
	for i, p := range priors {
		names[i] = p.Name()
		lo[i], hi[i] = p.Bounds()
	}

	// Evaluate at the guess first so specification-level errors surface as
	// errors instead of a silent non-convergence.
	guess := m.Guess()
	if _, err := m.Residual(pack(names, guess), frame); err != nil {
		return nil, err
	}

	var evalErr error
	objective := func(x []float64) float64 {
		if ctx.Err() != nil {
			return math.Inf(1)
		}
		for i := range x {
			if x[i] < lo[i] || x[i] > hi[i] {
				return math.Inf(1)
			}
		}
		res, err := m.Residual(pack(names, x), frame)
		if err != nil {
			if evalErr == nil {
				evalErr = err
			}
			return math.Inf(1)
		}
		return 0.5 * sumSquares(res)
	}

	method := f.Method
	if method == nil {
		method = &optimize.NelderMead{}
	}
	maxEvals := f.MaxEvaluations
	if maxEvals <= 0 {
		maxEvals = defaultMaxEvaluations
	}
	settings := &optimize.Settings{FuncEvaluations: maxEvals}

	opt, err := optimize.Minimize(optimize.Problem{Func: objective}, guess, settings, method)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if evalErr != nil {
		return nil, evalErr
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFit, err)
	}
	status := opt.Status

	values := pack(names, opt.X)
	res, err := m.Residual(pack(names, opt.X), frame)
	if err != nil {
		return nil, err
	}
	chisq := sumSquares(res)
	dof := float64(len(res) - len(names))
	redChisq := chisq
	if dof > 0 {
		redChisq = chisq / dof
	}

	best, err := m.Scatterer().MakeFrom(pack(names, opt.X))
	if err != nil {
		return nil, err
	}

	result := &Result{
		Params:      names,
		Values:      values,
		Chisq:       chisq,
		RedChisq:    redChisq,
		Evaluations: opt.Stats.FuncEvaluations,
		Converged:   status == optimize.GradientThreshold || status == optimize.FunctionConvergence || status == optimize.FunctionThreshold || status == optimize.Success,
		Scatterer:   best,
	}
	if isFinite(res) {
		result.Covariance = covariance(m, frame, names, opt.X, redChisq)
	}
	return result, nil
}

// covariance estimates the parameter covariance from a forward-difference
// Jacobian of the residual at the optimum: redChisq * (J^T J)^-1. Returns
// nil when the normal matrix is singular or a probe point fails.
func covariance(m *model.Model, frame *optics.Frame, names []string, x []float64, redChisq float64) [][]float64 {
	base, err := m.Residual(pack(names, x), frame)
	if err != nil || !isFinite(base) {
		return nil
	}
	nData, nPar := len(base), len(x)
	jac := mat.NewDense(nData, nPar, nil)
	for j := 0; j < nPar; j++ {
		h := 1e-6 * math.Abs(x[j])
		if h == 0 {
			h = 1e-9
		}
		probe := append([]float64(nil), x...)
		probe[j] += h
		res, err := m.Residual(pack(names, probe), frame)
		if err != nil || !isFinite(res) {
			return nil
		}
		for i := 0; i < nData; i++ {
			jac.Set(i, j, (res[i]-base[i])/h)
		}
	}

	var normal mat.Dense
	normal.Mul(jac.T(), jac)
	var inv mat.Dense
	if err := inv.Inverse(&normal); err != nil {
		return nil
	}
	out := make([][]float64, nPar)
	for i := range out {
		out[i] = make([]float64, nPar)
		for j := range out[i] {
			out[i][j] = redChisq * inv.At(i, j)
		}
	}
	return out
}

func pack(names []string, x []float64) map[string]float64 {
	out := make(map[string]float64, len(names))
	for i, name := range names {
		out[name] = x[i]
	}
	return out
}

func sumSquares(res []float64) float64 {
	total := 0.0
	for _, r := range res {
		total += r * r
	}
	return total
}

func isFinite(res []float64) bool {
	for _, r := range res {
		if math.IsInf(r, 0) || math.IsNaN(r) {
			return false
		}
	}
	return true
}
