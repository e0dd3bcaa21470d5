// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package legendre evaluates smooth strictly convex functions H : ℝ²ⁿ → ℝ
// together with their Legendre conjugate
//
//	G(y) = 𝚜𝚞𝚙ₓ ⟨x,y⟩ - H(x) = ⟨y,∇G(y)⟩ - H(∇G(y))
//
// where ∇G = (∇H)⁻¹ is obtained by solving ∇H(x) = y numerically.
package legendre

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// DefaultSharpness is the smoothing parameter t used when none is given.
const DefaultSharpness = 4.0

// Pair is a smooth strictly convex function H whose conjugate is evaluated by an Inverter.
// Implementations must be safe for concurrent use.
type Pair interface {
	// Dim returns the dimension of the argument of H.
	Dim() int
	// Value returns H(x).
	Value(x []float64) float64
	// Grad stores ∇H(x) in g.
	Grad(g, x []float64)
	// Hess stores ∇²H(x) in h.
	Hess(h *mat.SymDense, x []float64)
}

// Guesser is implemented by pairs that know a starting point for the solve of ∇H(x) = y.
type Guesser interface {
	// Guess stores an approximation of ∇G(y) in x.
	Guess(x, y []float64)
}

// Tropical smooths the squared support function of the triangle
//
//	h(x) = 𝚖𝚊𝚡(x₀+x₁, -x₀, -x₁)
//
// by replacing the maximum with a log-sum-exp of sharpness T:
//
//	H(x) = (𝙻𝚂𝙴(t(x₀+x₁), -tx₀, -tx₁) / t)²
//
// As t → ∞ the sublevel set {H ≤ 1} tends to the triangle of area 4.5.
type Tropical struct {
	T float64
}

func (p Tropical) Dim() int { return 2 }

// terms returns s = 𝙻𝚂𝙴(u)/t and the softmax weights of u = t·(x₀+x₁, -x₀, -x₁).
func (p Tropical) terms(x []float64) (s float64, w [3]float64) {
	t := p.T
	u := [3]float64{t * (x[0] + x[1]), -t * x[0], -t * x[1]}
	top := math.Max(u[0], math.Max(u[1], u[2]))
	z := 0.0
	for i, v := range u {
		w[i] = math.Exp(v - top)
		z += w[i]
	}
	for i := range w {
		w[i] /= z
	}
	s = (top + math.Log(z)) / t
	return
}

func (p Tropical) Value(x []float64) float64 {
	s, _ := p.terms(x)
	return s * s
}

// Grad stores ∇H = 2s·(w₀-w₁, w₀-w₂) in g.
func (p Tropical) Grad(g, x []float64) {
	s, w := p.terms(x)
	g[0] = 2 * s * (w[0] - w[1])
	g[1] = 2 * s * (w[0] - w[2])
}

// Hess stores ∇²H = 2ggᵀ + 2st(K - ggᵀ) in h, where g = ∇s and K = Cᵀ𝚍𝚒𝚊𝚐(w)C
// for the map C : x ↦ (x₀+x₁, -x₀, -x₁).
func (p Tropical) Hess(h *mat.SymDense, x []float64) {
	s, w := p.terms(x)
	g0, g1 := w[0]-w[1], w[0]-w[2]
	k00, k01, k11 := w[0]+w[1], w[0], w[0]+w[2]
	c := 2 * s * p.T
	h.SetSym(0, 0, 2*g0*g0+c*(k00-g0*g0))
	h.SetSym(0, 1, 2*g0*g1+c*(k01-g0*g1))
	h.SetSym(1, 1, 2*g1*g1+c*(k11-g1*g1))
}

// Guess stores the exact inverse of the unsmoothed support.
// With v₀ = (1,1), v₁ = (-1,0), v₂ = (0,-1) the vertices of ∂h, y lies in the cone of
// two adjacent vertices, y = ɑvₐ + βv_b with ɑ, β ≥ 0, and ∇h² = y at the point of
// the crease uₐ = u_b where h = (ɑ+β)/2. The largest of the three candidate values
// of h picks the cone.
func (p Tropical) Guess(x, y []float64) {
	h, e0, e1 := (2*y[1]-y[0])/2, -1.0, 2.0
	if c := (2*y[0] - y[1]) / 2; c > h {
		h, e0, e1 = c, 2, -1
	}
	if c := -(y[0] + y[1]) / 2; c > h {
		h, e0, e1 = c, -1, -1
	}
	x[0], x[1] = h*e0, h*e1
}
