// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package legendre

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/curioloop/symcap/numdiff"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Method selects how ∇H(x) = y is solved.
type Method int

const (
	// Newton uses the analytic Hessian ∇²H as the Jacobian of the residual.
	Newton Method = iota
	// Broyden starts from a finite difference Jacobian and keeps it current with rank-one updates.
	// The Jacobian is recomputed when the updated one stops producing descent.
	Broyden
	// Minimize solves 𝚖𝚒𝚗ₓ H(x) - ⟨x,y⟩ with BFGS.
	Minimize
)

func (m Method) String() string {
	switch m {
	case Newton:
		return "newton"
	case Broyden:
		return "broyden"
	case Minimize:
		return "minimize"
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod returns the method named s.
func ParseMethod(s string) (Method, error) {
	for m := Newton; m <= Minimize; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("legendre: unknown method %q", s)
}

const (
	defaultTolerance  = 1e-10
	defaultIterations = 100

	searchDecrease = 1e-4
	searchHalving  = 40
	regularizeTry  = 20

	shiftDecrease = 0.1
	shiftIncrease = 10
	shiftFloor    = 1e-300
)

// roundoff scales |H(x)| + |⟨x,y⟩| to the rounding error of φ(x).
var roundoff = 64 * (math.Nextafter(1, 2) - 1)

// Settings controls the root solve behind ∇G.
type Settings struct {
	// Initial guess shared by every solve. When nil, pairs implementing Guesser
	// pick the start per target, and other pairs start from (0.1, ..., 0.1).
	Start []float64
	// The solve succeeds when ‖∇H(x) - y‖∞ ≤ 𝚝𝚘𝚕 × 𝚖𝚊𝚡(1, ‖y‖∞).
	Tolerance float64
	// The solve fails when the number of iteration exceeds limit.
	MaxIterations int
	// Finite difference scheme of the Broyden initial Jacobian.
	Jacobian numdiff.Method
}

// Inverter evaluates ∇G and G for a Pair.
// The dual target is bound per call, so an Inverter may be shared by goroutines.
type Inverter struct {
	pair   Pair
	method Method
	Settings
}

// NewInverter validates settings and fills in defaults.
func NewInverter(pair Pair, method Method, settings Settings) (inv *Inverter, err error) {

	switch {
	case pair == nil:
		err = errors.New("legendre: pair is required")
	case method < Newton || method > Minimize:
		err = errors.New("legendre: unknown method")
	case settings.Tolerance < 0 || math.IsNaN(settings.Tolerance):
		err = errors.New("legendre: tolerance must not less than 0")
	case settings.MaxIterations < 0:
		err = errors.New("legendre: max iteration must not less than 0")
	case settings.Start != nil && len(settings.Start) != pair.Dim():
		err = errors.New("legendre: start dimension must equal to pair dimension")
	}
	if err != nil {
		return
	}

	if settings.Start != nil {
		settings.Start = slices.Clone(settings.Start)
	}
	if settings.Tolerance == 0 {
		settings.Tolerance = defaultTolerance
	}
	if settings.MaxIterations == 0 {
		settings.MaxIterations = defaultIterations
	}

	inv = &Inverter{pair: pair, method: method, Settings: settings}
	return
}

// Pair returns the function being inverted.
func (v *Inverter) Pair() Pair { return v.pair }

// Method returns the solve method.
func (v *Inverter) Method() Method { return v.method }

// G returns the Legendre transform ⟨y,x⟩ - H(x) with x = ∇G(y).
func (v *Inverter) G(y []float64) (float64, error) {
	x, err := v.DG(y)
	if err != nil {
		return math.NaN(), err
	}
	return floats.Dot(y, x) - v.pair.Value(x), nil
}

// DG returns x = ∇G(y), the solution of ∇H(x) = y.
func (v *Inverter) DG(y []float64) ([]float64, error) {

	if len(y) != v.pair.Dim() {
		return nil, ErrDimension
	}
	for _, e := range y {
		if math.IsNaN(e) || math.IsInf(e, 0) {
			return nil, fmt.Errorf("%w: non-finite target %v", ErrNonConvergence, y)
		}
	}

	tg := target{pair: v.pair, y: y}
	tol := v.Tolerance * math.Max(1, floats.Norm(y, math.Inf(1)))

	x := v.start(y)
	switch v.method {
	case Newton:
		x = v.newton(tg, x, tol)
	case Broyden:
		x = v.broyden(tg, x, tol)
	case Minimize:
		x = v.minimize(tg, x, tol)
	}

	r := make([]float64, len(y))
	tg.residual(x, r)
	if nrm := floats.Norm(r, math.Inf(1)); !(nrm <= tol) {
		return x, fmt.Errorf("%w: %v solve of target %v stopped with residual %.3e", ErrNonConvergence, v.method, y, nrm)
	}
	return x, nil
}

// start returns a fresh copy of the initial guess for target y.
func (v *Inverter) start(y []float64) []float64 {
	x := make([]float64, len(y))
	switch g, ok := v.pair.(Guesser); {
	case v.Start != nil:
		copy(x, v.Start)
	case ok:
		g.Guess(x, y)
	default:
		for i := range x {
			x[i] = 0.1
		}
	}
	return x
}

// Residual stores ∇H(x) - y in r.
func (v *Inverter) Residual(r, x, y []float64) {
	target{pair: v.pair, y: y}.residual(x, r)
}

// target binds the dual vector y of a single solve.
type target struct {
	pair Pair
	y    []float64
}

// residual stores r = ∇H(x) - y.
func (t target) residual(x, r []float64) {
	t.pair.Grad(r, x)
	floats.Sub(r, t.y)
}

// merit returns φ(x) = H(x) - ⟨x,y⟩, whose gradient is the residual.
func (t target) merit(x []float64) float64 {
	return t.pair.Value(x) - floats.Dot(x, t.y)
}

// decrease holds the reference values of the acceptance test at x.
type decrease struct {
	phi, noise, slope, rr float64
}

func (t target) decrease(x, r, d []float64) decrease {
	h, xy := t.pair.Value(x), floats.Dot(x, t.y)
	return decrease{
		phi:   h - xy,
		noise: roundoff * (math.Abs(h) + math.Abs(xy)),
		slope: floats.Dot(r, d),
		rr:    floats.Dot(r, r),
	}
}

// accepts reports whether the trial x - λd, with merit phi and residual r, is taken:
//
//	φ(x - λd) ≤ φ(x) - ɑλ rᵀd                                     (when rᵀd > 0)
//	φ(x - λd) ≤ φ(x) + δ  and  ‖r(x - λd)‖² ≤ (1 - 2ɑλ)‖r(x)‖²   (ɑ = 10⁻⁴)
//
// with δ the rounding error of φ(x). The first condition drives the solve far
// from the root, the second once φ is flat to rounding.
func (dc decrease) accepts(lambda, phi float64, r []float64) bool {
	if dc.slope > 0 && phi <= dc.phi-searchDecrease*lambda*dc.slope {
		return true
	}
	return phi <= dc.phi+dc.noise && floats.Dot(r, r) <= (1-2*searchDecrease*lambda)*dc.rr
}

// searchStep performs a backtracking line search along -d. The step is first
// shortened to ‖d‖∞ ≤ 𝚖𝚊𝚡(1, ‖x‖∞), then halved until the trial is accepted.
// It returns false when no trial is accepted.
func searchStep(tg target, x, r, d, xt, rt []float64) bool {

	if dn, bnd := floats.Norm(d, math.Inf(1)), math.Max(1, floats.Norm(x, math.Inf(1))); dn > bnd {
		floats.Scale(bnd/dn, d)
	}

	dc := tg.decrease(x, r, d)
	lambda := 1.0
	for k := 0; k < searchHalving; k++ {
		floats.AddScaledTo(xt, x, -lambda, d)
		tg.residual(xt, rt)
		if dc.accepts(lambda, tg.merit(xt), rt) {
			return true
		}
		lambda /= 2
	}
	return false
}

// newton solves (∇²H(x) + μI)d = r and moves to x - d when the trial is
// accepted. The shift starts at μ = ‖r(x₀)‖, is divided by 10 after an
// accepted trial and multiplied by 10 after a rejected one, so the solve
// turns into pure Newton near the root. Every trial counts as an iteration.
func (v *Inverter) newton(tg target, x []float64, tol float64) []float64 {

	n := v.pair.Dim()
	r := make([]float64, n)
	xt, rt, d := make([]float64, n), make([]float64, n), make([]float64, n)
	h := mat.NewSymDense(n, nil)

	var chol mat.Cholesky
	tg.residual(x, r)
	mu := floats.Norm(r, 2)
	for iter := 0; iter < v.MaxIterations; iter++ {
		if floats.Norm(r, math.Inf(1)) <= tol {
			break
		}

		v.pair.Hess(h, x)
		for i := 0; i < n; i++ {
			h.SetSym(i, i, h.At(i, i)+mu)
		}
		if !factorize(&chol, h) {
			break
		}
		if err := chol.SolveVecTo(mat.NewVecDense(n, d), mat.NewVecDense(n, r)); err != nil {
			break
		}

		floats.SubTo(xt, x, d)
		tg.residual(xt, rt)
		if tg.decrease(x, r, d).accepts(1, tg.merit(xt), rt) {
			x, xt = xt, x
			r, rt = rt, r
			mu *= shiftDecrease
		} else {
			mu = math.Max(mu, shiftFloor) * shiftIncrease
		}
	}
	return x
}

// factorize computes the Cholesky factor of h, shifting the diagonal by μI
// when h is numerically singular far from the origin.
func factorize(chol *mat.Cholesky, h *mat.SymDense) bool {
	if chol.Factorize(h) {
		return true
	}
	n := h.SymmetricDim()
	mu := math.Max(mat.Trace(h), 1) * math.Sqrt(math.Nextafter(1, 2)-1)
	shifted := mat.NewSymDense(n, nil)
	for k := 0; k < regularizeTry; k++ {
		shifted.CopySym(h)
		for i := 0; i < n; i++ {
			shifted.SetSym(i, i, h.At(i, i)+mu)
		}
		if chol.Factorize(shifted) {
			return true
		}
		mu *= 10
	}
	return false
}

func (v *Inverter) broyden(tg target, x []float64, tol float64) []float64 {

	n := v.pair.Dim()
	r := make([]float64, n)
	xt, rt, d := make([]float64, n), make([]float64, n), make([]float64, n)
	s, u := make([]float64, n), make([]float64, n)

	approx := numdiff.Jacobian{Method: v.Jacobian}
	jac := mat.NewDense(n, n, nil)
	refresh := func() bool {
		return approx.Diff(tg.residual, x, jac) == nil
	}

	tg.residual(x, r)
	if !refresh() {
		return x
	}
	fresh := true

	dv := mat.NewVecDense(n, d)
	for iter := 0; iter < v.MaxIterations; iter++ {
		if floats.Norm(r, math.Inf(1)) <= tol {
			break
		}

		ok := dv.SolveVec(jac, mat.NewVecDense(n, r)) == nil && searchStep(tg, x, r, d, xt, rt)
		if !ok {
			if fresh || !refresh() {
				break
			}
			fresh = true
			continue
		}

		// J ← J + (Δr - JΔx)Δxᵀ / ΔxᵀΔx
		floats.SubTo(s, xt, x)
		floats.SubTo(u, rt, r)
		if ss := floats.Dot(s, s); ss > 0 {
			var js mat.VecDense
			sv := mat.NewVecDense(n, s)
			js.MulVec(jac, sv)
			floats.Sub(u, js.RawVector().Data)
			jac.RankOne(jac, 1/ss, mat.NewVecDense(n, u), sv)
		}
		fresh = false

		x, xt = xt, x
		r, rt = rt, r
	}
	return x
}

// minimize runs BFGS on φ and polishes the BFGS point with newton.
func (v *Inverter) minimize(tg target, x []float64, tol float64) []float64 {

	problem := optimize.Problem{
		Func: tg.merit,
		Grad: func(grad, x []float64) { tg.residual(x, grad) },
	}
	settings := &optimize.Settings{
		GradientThreshold: tol,
		MajorIterations:   v.MaxIterations,
		Converger:         optimize.NeverTerminate{},
	}

	res, _ := optimize.Minimize(problem, slices.Clone(x), settings, &optimize.BFGS{})
	if res != nil && res.X != nil && !floats.HasNaN(res.X) {
		x = res.X
	}
	return v.newton(tg, x, tol)
}
