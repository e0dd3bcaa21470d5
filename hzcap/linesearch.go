// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hzcap

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// initialStep picks the trial step L₀ along ŷ.
//
// The radius Lₘₐₓ = (m/2)√(3/|⟨ŷ,A₂ₙŷ⟩|) keeps f(Lŷ) + 2 within [¼, 7/4] for every L ≤ Lₘₐₓ.
// With h(L) = ⟨ŷ, -∇F(x + Lŷ)⟩ the directional slope, h(0) = ⟨ŷ,ŷ⟩ and
//   - L₀ = Lₘₐₓ                          if h(Lₘₐₓ) ≥ 0
//   - L₀ = Lₘₐₓ h(0) / (h(0) - h(Lₘₐₓ))  otherwise (secant root of h)
func (d *descent) initialStep(yHat *mat.Dense, yy float64) (float64, error) {
	e := d.est

	q := Inner(yHat, e.A2n(yHat))
	if q == zero || math.IsNaN(q) {
		return 0, fmt.Errorf("%w: ⟨ŷ,A₂ₙŷ⟩ = %v at iteration %d", ErrDegenerateDirection, q, d.iter)
	}
	lMax := float64(e.m) * math.Sqrt(3/math.Abs(q)) / two

	g, err := d.gradient(scaled(lMax, yHat, d.x))
	if err != nil {
		return 0, err
	}
	hMax := -Inner(yHat, g)
	h0 := yy

	step := lMax
	if hMax < zero {
		step = lMax * h0 / (h0 - hMax)
	}

	if log := &e.logger; log.enable(LogTrace) {
		log.log("  L_max = %.6e, h(0) = %.6e, h(L_max) = %.6e, L_0 = %.6e\n", lMax, h0, hMax, step)
	}
	return step, nil
}

// retract halves L until the retracted step
//
//	x' = (x + Lŷ) / √(f(Lŷ) + 2)
//
// does not increase F and keeps at least a quarter of the decrease of the raw step:
//
//	F(x') ≤ F(x),  4(F(x) - F(x')) > F(x) - F(x + Lŷ)
//
// and moves the iterate to x'. For small L the retraction is x + Lŷ + O(L²),
// so F(x') = F(x) - L⟨ŷ,ŷ⟩ + O(L²) and halving terminates.
func (d *descent) retract(yHat *mat.Dense, step float64) error {
	e := d.est
	log := &e.logger

	for k := 0; ; k++ {
		if k > d.stop.MaxBacktracks {
			return fmt.Errorf("%w: %d halvings at iteration %d", ErrLineSearch, k-1, d.iter)
		}

		dir := scaled(step, yHat, nil)
		c := e.Constraint(dir) + two
		if !(c > zero) || math.IsInf(c, 0) {
			return fmt.Errorf("%w: f(Lŷ) + 2 = %v at L = %v", ErrInfeasibleRescale, c, step)
		}

		raw := scaled(one, dir, d.x)
		next := new(mat.Dense)
		next.Scale(one/math.Sqrt(c), raw)

		fRaw, err := d.objective(raw)
		if err != nil {
			return err
		}
		fNext, err := d.objective(next)
		if err != nil {
			return err
		}

		del1, del2 := d.f-fRaw, d.f-fNext
		if log.enable(LogTrace) {
			log.log("  L = %.6e, raw decrease = %.6e, retracted decrease = %.6e\n", step, del1, del2)
		}
		if del2 >= zero && four*del2 > del1 {
			d.x, d.f = next, fNext
			return nil
		}

		step *= half
		d.backtrack++
	}
}
