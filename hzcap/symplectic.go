// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hzcap

import "gonum.org/v1/gonum/mat"

// Symplectic returns the 2n×2n standard symplectic matrix
//
//	J = ⎡ 0  I ⎤
//	    ⎣-I  0 ⎦
//
// which satisfies Jᵀ = -J and J² = -I.
func Symplectic(n int) *mat.Dense {
	j := mat.NewDense(2*n, 2*n, nil)
	for i := 0; i < n; i++ {
		j.Set(i, n+i, one)
		j.Set(n+i, i, -one)
	}
	return j
}

// dual stores -J·x in a, mapping every column of x to the dual space.
func (e *Estimator) dual(a *mat.Dense, x mat.Matrix) {
	a.Mul(e.j, x)
	a.Scale(-one, a)
}
