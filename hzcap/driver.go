// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hzcap

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// descent holds the state of one Estimate call.
type descent struct {
	est  *Estimator
	stop Termination

	x     *mat.Dense // current iterate on the manifold
	f     float64    // F(x)
	trace []float64

	status    Status
	iter      int
	backtrack int
	inverse   int
}

func (d *descent) objective(x mat.Matrix) (float64, error) {
	d.inverse += d.est.m
	return d.est.Objective(x)
}

func (d *descent) gradient(x mat.Matrix) (*mat.Dense, error) {
	d.inverse += d.est.m
	return d.est.Gradient(x)
}

// tangent returns the steepest descent direction restricted to the tangent space at x:
//
//	ŷ = 𝚙𝚛𝚘𝚓 y - a ⟨a,y⟩/⟨a,a⟩,  y = -∇F(x), a = 𝚙𝚛𝚘𝚓 ∇f(x)
func (d *descent) tangent() (*mat.Dense, error) {
	e, x := d.est, d.x

	g, err := d.gradient(x)
	if err != nil {
		return nil, err
	}
	y := Proj(g)
	y.Scale(-one, y)

	a := Proj(e.ConstraintGrad(x))
	aa := Inner(a, a)
	if !(aa > zero) || math.IsInf(aa, 0) {
		return nil, fmt.Errorf("%w: ⟨a,a⟩ = %v at iteration %d", ErrDegenerateDirection, aa, d.iter)
	}

	y.Sub(y, scaled(Inner(a, y)/aa, a, nil))
	return y, nil
}

// mainLoop iterates until ⟨ŷ,ŷ⟩ < ε or the iteration budget is exhausted.
func (d *descent) mainLoop() (err error) {

	e, stop := d.est, d.stop
	log := &e.logger

	if d.f, err = d.objective(d.x); err != nil {
		return
	}
	d.trace = append(d.trace, d.f)

	if log.enable(LogEval) {
		log.out("%5s %22s %22s %22s\n", "k", "F(x)", "f(x)", "<y,y>")
	}

	for d.iter < stop.MaxIterations {
		d.iter++

		if log.enable(LogEval) {
			log.log("At k = %d, F(x) = %v, f(x) = %v\n", d.iter, d.f, e.Constraint(d.x))
		}

		var yHat *mat.Dense
		if yHat, err = d.tangent(); err != nil {
			return
		}

		yy := Inner(yHat, yHat)
		if log.enable(LogEval) {
			log.out("%5d %22.15e %22.15e %22.15e\n", d.iter, d.f, e.Constraint(d.x), yy)
		}
		if yy < stop.Epsilon {
			if log.enable(LogLast) {
				log.log("Early stop at iteration %d\n", d.iter)
			}
			d.status = ConvStationary
			return
		}

		var step float64
		if step, err = d.initialStep(yHat, yy); err != nil {
			return
		}
		if err = d.retract(yHat, step); err != nil {
			return
		}
		d.trace = append(d.trace, d.f)
	}

	d.status = OverIterLimit
	return
}

// scaled returns x + λy, or λy when x is nil.
func scaled(lambda float64, y, x mat.Matrix) *mat.Dense {
	r, c := y.Dims()
	s := mat.NewDense(r, c, nil)
	s.Scale(lambda, y)
	if x != nil {
		s.Add(s, x)
	}
	return s
}
