// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hzcap

import (
	"errors"
	"fmt"
	"io"

	"github.com/curioloop/symcap/legendre"
)

const (
	zero = 0.0
	one  = 1.0
	two  = 2.0
	four = 4.0
	half = 0.5
)

const (
	minDirections = 3
	dimension     = 1

	defaultIterations = 100
	defaultEpsilon    = 1e-12
	defaultBacktracks = 64
	startDraws        = 1000
)

// SkipIterations as Termination.MaxIterations runs no descent step.
const SkipIterations = -1

var (
	// ErrNonConvergence is returned when a Legendre inversion fails inside F or ∇F.
	ErrNonConvergence = legendre.ErrNonConvergence
	// ErrDegenerateDirection is returned when the constraint normal or the search direction vanishes.
	ErrDegenerateDirection = errors.New("hzcap: degenerate direction")
	// ErrInfeasibleRescale is returned when f(Lŷ) + 2 ≤ 0 and the step cannot be retracted.
	ErrInfeasibleRescale = errors.New("hzcap: infeasible rescale")
	// ErrLineSearch is returned when backtracking exceeds its halving budget.
	ErrLineSearch = errors.New("hzcap: line search exceeds backtracking limit")
	// ErrInfeasibleStart is returned when no random draw lands off the null cone of f + 1.
	ErrInfeasibleStart = errors.New("hzcap: no feasible starting point")
	// ErrNotImplemented marks the visualisation stub.
	ErrNotImplemented = errors.New("hzcap: not implemented")
)

// Status is the final state of an estimate.
type Status int

const (
	// ConvStationary the projected gradient ⟨ŷ,ŷ⟩ fell below ε.
	ConvStationary Status = iota + 1
	// OverIterLimit the iteration budget was exhausted.
	OverIterLimit
)

func (s Status) String() string {
	switch s {
	case ConvStationary:
		return "CONVERGENCE: STATIONARY_POINT"
	case OverIterLimit:
		return "STOP: TOTAL NO. of ITERATIONS REACHED LIMIT"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// LogLevel controls the frequency and type of logger output
type LogLevel int

const (
	// LogNoop no output is generated (level < 0)
	LogNoop LogLevel = -1
	// LogLast print configuration notices and the final estimate only
	LogLast LogLevel = 0
	// LogEval print also F(x) and f(x) at every iteration
	LogEval LogLevel = 1
	// LogTrace print also step sizes and backtracking details
	LogTrace LogLevel = 99
)

// Logger handles logging output for the estimator.
// Note the writers must be thread-safe.
type Logger struct {
	Level LogLevel
	Msg   io.Writer // Writer to output log messages.
	Out   io.Writer // Writer for the iteration table.
}

func (l *Logger) enable(level LogLevel) bool {
	return l.Level >= level
}

func (l *Logger) log(format string, a ...any) {
	if len(a) > 0 {
		_, _ = fmt.Fprintf(l.Msg, format, a...)
	} else {
		_, _ = fmt.Fprint(l.Msg, format)
	}
}

func (l *Logger) out(format string, a ...any) {
	if len(a) > 0 {
		_, _ = fmt.Fprintf(l.Out, format, a...)
	} else {
		_, _ = fmt.Fprint(l.Out, format)
	}
}
