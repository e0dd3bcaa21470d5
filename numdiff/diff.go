// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package numdiff estimates derivatives of vector functions by finite differences.
//
// # Reference:
//
//   - https://en.wikipedia.org/wiki/Finite_difference
//   - https://github.com/scipy/scipy/blob/main/scipy/optimize/_numdiff.py
package numdiff

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

var sqrtEps = math.Sqrt(math.Nextafter(1, 2) - 1)
var cubeEps = math.Pow(math.Nextafter(1, 2)-1, float64(1)/3)

var (
	// ErrDimension is returned when x0, the object output or the Jacobian shape disagree.
	ErrDimension = errors.New("numdiff: dimension mismatch")
	// ErrMethod is returned for an unknown finite difference scheme.
	ErrMethod = errors.New("numdiff: unknown method")
	// ErrObject is returned when no object function is supplied.
	ErrObject = errors.New("numdiff: object function is required")
)

type Method int

const (
	// Forward use the first order accuracy forward difference.
	Forward Method = iota
	// Central use the second order accuracy central difference.
	Central
)

// Object maps an n-vector x into an m-vector y.
// It may modify neither x nor the length of y.
type Object func(x, y []float64)

// Jacobian estimates the m×n matrix ∂yᵢ/∂xⱼ of an Object.
//
// A Jacobian keeps scratch buffers between calls and must not be shared by goroutines.
type Jacobian struct {
	// Finite difference method to use.
	Method Method
	// Relative step size used to compute absolute step size.
	// The default absolute step size is computed as h = ε * sign(x0) * max(1, abs(x0)) with ε being selected by Method.
	// Otherwise, absolute step size is computed as h = RelStep * sign(x0) * abs(x0) when RelStep is provided.
	RelStep float64
	// Absolute step size to use, RelStep is used when AbsStep is not provide.
	AbsStep float64

	f0, f1, f2 []float64
	h          []float64
	x          []float64
}

// Diff writes the finite difference approximation of fn at x0 into jac,
// which must be an m×len(x0) matrix. x0 is left untouched.
func (j *Jacobian) Diff(fn Object, x0 []float64, jac *mat.Dense) error {

	m, n := jac.Dims()
	switch {
	case fn == nil:
		return ErrObject
	case j.Method != Forward && j.Method != Central:
		return ErrMethod
	case n != len(x0) || n == 0 || m == 0:
		return ErrDimension
	}

	j.grow(n, m)
	j.step(x0)
	copy(j.x, x0)

	if j.Method == Central {
		j.central(fn, jac)
	} else {
		j.forward(fn, jac)
	}
	return nil
}

// Gradient approximates ∇f(x0) for a scalar function and stores it in g.
func (j *Jacobian) Gradient(fn func(x []float64) float64, x0, g []float64) error {
	if len(g) != len(x0) || len(x0) == 0 {
		return ErrDimension
	}
	if fn == nil {
		return ErrObject
	}
	jac := mat.NewDense(1, len(x0), g)
	return j.Diff(func(x, y []float64) { y[0] = fn(x) }, x0, jac)
}

func (j *Jacobian) grow(n, m int) {
	if len(j.f0) != m {
		j.f0 = make([]float64, m)
		j.f1 = make([]float64, m)
		j.f2 = make([]float64, m)
	}
	if len(j.h) != n {
		j.h = make([]float64, n)
		j.x = make([]float64, n)
	}
}

func (j *Jacobian) step(x0 []float64) {
	var eps float64
	if j.Method == Central {
		eps = cubeEps
	} else {
		eps = sqrtEps
	}

	abs, rel := j.AbsStep, j.RelStep
	for i, v := range x0 {
		s := abs
		if s == 0 && rel != 0 {
			s = math.Copysign(rel, v) * math.Abs(v)
		}
		// a step lost in rounding falls back to the automatic one
		if s == 0 || (v+s)-v == 0 {
			s = math.Copysign(eps, v) * math.Max(1.0, math.Abs(v))
		}
		if j.Method == Central {
			s = math.Abs(s)
		}
		j.h[i] = s
	}
}

func (j *Jacobian) forward(fn Object, jac *mat.Dense) {
	x, f0, f1 := j.x, j.f0, j.f1
	fn(x, f0)
	for i, s := range j.h {
		t := x[i]
		x[i] = t + s
		fn(x, f1)
		d := 1.0 / s
		for k := range f0 {
			jac.Set(k, i, (f1[k]-f0[k])*d)
		}
		x[i] = t
	}
}

func (j *Jacobian) central(fn Object, jac *mat.Dense) {
	x, f1, f2 := j.x, j.f1, j.f2
	for i, s := range j.h {
		t := x[i]
		x[i] = t - s
		fn(x, f1)
		x[i] = t + s
		fn(x, f2)
		d := 1.0 / (2 * s)
		for k := range f1 {
			jac.Set(k, i, (f2[k]-f1[k])*d)
		}
		x[i] = t
	}
}
