package starfit

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	solverMaxIter = 10
	// Convergence test on the step: |dx_i| <= xtolAbs + xtolRel*|x_i|
	// for every parameter.
	xtolAbs = 1e-4
	xtolRel = 1e-4

	lambdaInit = 1e-3
	lambdaUp   = 10.0
	lambdaDown = 10.0
	lambdaMax  = 1e12
)

// fitOutcome is the raw solver result before canonicalization.
type fitOutcome struct {
	params []float64
	relErr []float64
	rmse   float64
}

// lmSolve runs a Levenberg-Marquardt damped Gauss-Newton iteration of the
// Gaussian model over the window, starting from p0. Residuals are
// (model - observed), unweighted. The iteration stops on the relative step
// test or after solverMaxIter iterations, whichever comes first; an
// internal step failure aborts with ErrDiverged. p0 is not modified.
func lmSolve(w *Window, p0 []float64) (*fitOutcome, error) {
	np := len(p0)
	rotated := np == nParamsRot
	n := w.Width * w.Height
	if n <= np {
		return nil, ErrInfeasible
	}

	x := make([]float64, np)
	copy(x, p0)

	res := mat.NewVecDense(n, nil)
	jac := mat.NewDense(n, np, nil)
	jtj := mat.NewDense(np, np, nil)
	g := mat.NewVecDense(np, nil)
	damped := mat.NewDense(np, np, nil)
	var step mat.VecDense

	evalResiduals(w, x, rotated, res)
	cost := mat.Dot(res, res)
	lambda := lambdaInit

	for iter := 0; iter < solverMaxIter; iter++ {
		evalJacobian(w, x, rotated, jac)
		jtj.Mul(jac.T(), jac)
		g.MulVec(jac.T(), res)

		accepted := false
		for lambda <= lambdaMax {
			damped.Copy(jtj)
			for i := 0; i < np; i++ {
				// Marquardt scaling: damp along the diagonal of JtJ.
				damped.Set(i, i, jtj.At(i, i)*(1+lambda))
			}
			if err := step.SolveVec(damped, g); err != nil {
				lambda *= lambdaUp
				continue
			}

			trial := make([]float64, np)
			for i := range trial {
				trial[i] = x[i] - step.AtVec(i)
			}
			trialRes := mat.NewVecDense(n, nil)
			evalResiduals(w, trial, rotated, trialRes)
			trialCost := mat.Dot(trialRes, trialRes)

			if math.IsNaN(trialCost) || trialCost >= cost {
				lambda *= lambdaUp
				continue
			}

			copy(x, trial)
			res.CopyVec(trialRes)
			cost = trialCost
			lambda = math.Max(lambda/lambdaDown, 1e-15)
			accepted = true
			break
		}
		if !accepted {
			return nil, ErrDiverged
		}

		if stepConverged(&step, x) {
			break
		}
	}

	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, ErrDiverged
		}
	}

	out := &fitOutcome{
		params: x,
		relErr: make([]float64, np),
		rmse:   math.Sqrt(cost / float64(n)),
	}
	paramErrors(w, x, rotated, cost, out.relErr)
	return out, nil
}

func stepConverged(step *mat.VecDense, x []float64) bool {
	for i := range x {
		if math.Abs(step.AtVec(i)) > xtolAbs+xtolRel*math.Abs(x[i]) {
			return false
		}
	}
	return true
}

// evalResiduals fills res with (model - observed) at every pixel center
// (1-indexed window coordinates).
func evalResiduals(w *Window, p []float64, rotated bool, res *mat.VecDense) {
	i := 0
	for y := 0; y < w.Height; y++ {
		fy := float64(y) + 1
		for x := 0; x < w.Width; x++ {
			res.SetVec(i, gaussEval(p, float64(x)+1, fy, rotated)-w.Data[i])
			i++
		}
	}
}

func evalJacobian(w *Window, p []float64, rotated bool, jac *mat.Dense) {
	np := nParamsPlain
	if rotated {
		np = nParamsRot
	}
	row := make([]float64, np)
	i := 0
	for y := 0; y < w.Height; y++ {
		fy := float64(y) + 1
		for x := 0; x < w.Width; x++ {
			gaussJacobian(p, float64(x)+1, fy, row)
			jac.SetRow(i, row)
			i++
		}
	}
}

// paramErrors fills relErr with the relative per-parameter uncertainty:
// sqrt of the covariance diagonal, scaled by max(1, sqrt(RSS/dof)) and
// divided by the fitted value. A singular information matrix leaves the
// uncertainties at +Inf rather than failing the fit.
func paramErrors(w *Window, p []float64, rotated bool, rss float64, relErr []float64) {
	np := len(p)
	n := w.Width * w.Height
	jac := mat.NewDense(n, np, nil)
	evalJacobian(w, p, rotated, jac)

	jtj := mat.NewDense(np, np, nil)
	jtj.Mul(jac.T(), jac)

	var cov mat.Dense
	if err := cov.Inverse(jtj); err != nil {
		for i := range relErr {
			relErr[i] = math.Inf(1)
		}
		return
	}

	dof := float64(n - np)
	c := math.Max(1, math.Sqrt(rss/dof))
	for i := range relErr {
		absErr := c * math.Sqrt(math.Abs(cov.At(i, i)))
		if p[i] != 0 {
			relErr[i] = math.Abs(absErr / p[i])
		} else {
			relErr[i] = absErr
		}
	}
}
