// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hzcap

import (
	"fmt"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Objective returns the action functional
//
//	F(x) = 1/m Σₖ G((-Jx)ₖ)
//
// Any failed column inversion fails the whole evaluation.
func (e *Estimator) Objective(x mat.Matrix) (float64, error) {
	var a mat.Dense
	e.dual(&a, x)

	g := make([]float64, e.m)
	err := e.columns(&a, func(k int, y []float64) (err error) {
		g[k], err = e.inv.G(y)
		return
	})
	if err != nil {
		return 0, err
	}

	// reduce in column order so the value does not depend on Workers
	sum := zero
	for _, v := range g {
		sum += v
	}
	return sum / float64(e.m), nil
}

// Gradient returns ∇F(x), whose k-th column is J·∇G((-Jx)ₖ) / m.
func (e *Estimator) Gradient(x mat.Matrix) (*mat.Dense, error) {
	var a mat.Dense
	e.dual(&a, x)

	r, _ := a.Dims()
	d := mat.NewDense(r, e.m, nil)
	err := e.columns(&a, func(k int, y []float64) error {
		z, err := e.inv.DG(y)
		if err != nil {
			return err
		}
		d.SetCol(k, z)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// the columns of d are disjoint, so J is applied to the whole matrix after the fan-out
	g := mat.NewDense(r, e.m, nil)
	g.Mul(e.j, d)
	g.Scale(one/float64(e.m), g)
	return g, nil
}

// columns calls fn on every column of a, concurrently when Workers > 1.
func (e *Estimator) columns(a *mat.Dense, fn func(k int, y []float64) error) error {
	_, c := a.Dims()
	call := func(k int) error {
		if err := fn(k, mat.Col(nil, k, a)); err != nil {
			return fmt.Errorf("column %d: %w", k, err)
		}
		return nil
	}

	if e.workers <= 1 {
		for k := 0; k < c; k++ {
			if err := call(k); err != nil {
				return err
			}
		}
		return nil
	}

	var group errgroup.Group
	group.SetLimit(e.workers)
	for k := 0; k < c; k++ {
		group.Go(func() error { return call(k) })
	}
	return group.Wait()
}
