// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hzcap

import "gonum.org/v1/gonum/mat"

// The feasible set of the estimator is the manifold
//
//	𝓜 = { x ∈ ℝ²ⁿˣᵐ : Σₖ xₖ = 0, f(x) = 0 }
//
// where xₖ is the k-th column and f is the quadratic form
//
//	f(x) = ⟨x, A₂ₙx⟩ / m² - 1,   (A₂ₙx)ₖ = Σ_{j>k} -Jxⱼ
//
// with ⟨·,·⟩ the Frobenius inner product.

// Proj returns the orthogonal projection of x onto the subspace of zero column sum.
func Proj(x mat.Matrix) *mat.Dense {
	r, c := x.Dims()
	p := mat.DenseCopyOf(x)
	for i := 0; i < r; i++ {
		row := p.RawRowView(i)
		mean := zero
		for _, v := range row {
			mean += v
		}
		mean /= float64(c)
		for k := range row {
			row[k] -= mean
		}
	}
	return p
}

// Flip returns x with its columns in reverse order.
func Flip(x mat.Matrix) *mat.Dense {
	r, c := x.Dims()
	f := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for k := 0; k < c; k++ {
			f.Set(i, c-1-k, x.At(i, k))
		}
	}
	return f
}

// Inner returns the Frobenius inner product ⟨a,b⟩ = Σᵢⱼ aᵢⱼbᵢⱼ.
func Inner(a, b mat.Matrix) float64 {
	var p mat.Dense
	p.MulElem(a, b)
	return mat.Sum(&p)
}

// A2n applies the operator A₂ₙ without forming it: column k of the
// result accumulates the dual columns -Jxⱼ for every j > k.
func (e *Estimator) A2n(x mat.Matrix) *mat.Dense {
	var a mat.Dense
	e.dual(&a, x)
	r, c := a.Dims()
	b := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		src, dst := a.RawRowView(i), b.RawRowView(i)
		acc := zero
		for k := c - 1; k >= 0; k-- {
			dst[k] = acc
			acc += src[k]
		}
	}
	return b
}

// Constraint returns f(x) = ⟨x, A₂ₙx⟩ / m² - 1.
func (e *Estimator) Constraint(x mat.Matrix) float64 {
	m2 := float64(e.m * e.m)
	return Inner(x, e.A2n(x))/m2 - one
}

// ConstraintGrad returns ∇f(x) = (A₂ₙ + A₂ₙᵀ)x / m².
// Reversing the columns turns A₂ₙ into its transpose up to sign, so
// A₂ₙᵀx = -𝚏𝚕𝚒𝚙(A₂ₙ 𝚏𝚕𝚒𝚙(x)).
func (e *Estimator) ConstraintGrad(x mat.Matrix) *mat.Dense {
	m2 := float64(e.m * e.m)
	g := e.A2n(x)
	g.Sub(g, Flip(e.A2n(Flip(x))))
	g.Scale(one/m2, g)
	return g
}
