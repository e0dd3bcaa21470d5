// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package legendre

import "errors"

var (
	// ErrNonConvergence is returned when ∇H(x) = y could not be solved within tolerance.
	// There is no retry with another seed.
	ErrNonConvergence = errors.New("legendre: root solve did not converge")
	// ErrDimension is returned when a dual vector does not match the pair dimension.
	ErrDimension = errors.New("legendre: dimension mismatch")
)
