// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hzcap estimates the Hofer–Zehnder capacity of the convex body whose
// support function is smoothed by a legendre.Pair.
//
// The capacity is the minimum of the action functional F over the constraint
// manifold of closed polygonal loops (see manifold.go); it is approached by
// projected gradient descent with a retraction line search.
package hzcap

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"os"

	"github.com/curioloop/symcap/legendre"
	"gonum.org/v1/gonum/mat"
)

// Problem specifies the estimator configuration.
type Problem struct {
	M       int               // Number of sampled directions (columns), clamped to 3 from below
	T       float64           // Smoothing sharpness of the default pair, non-positive means 4
	N       int               // Half dimension, only n = 1 is supported
	Pair    legendre.Pair     // Optional smooth support, defaults to legendre.Tropical{T}
	Method  legendre.Method   // Root solve behind ∇G
	Inverse legendre.Settings // Root solve options
	Workers int               // Concurrent column inversions, 1 when ≤ 1
}

// Termination specifies the stopping criteria of an estimate.
type Termination struct {
	// The iteration stop when the number of iteration exceeds limit. Defaults to 100.
	// SkipIterations evaluates the random start only.
	MaxIterations int
	// The iteration stop when ⟨ŷ,ŷ⟩ < ε for the projected gradient ŷ.
	// Also the smallest accepted |f(x) + 1| of a random start. Defaults to 1e-12.
	Epsilon float64
	// The line search fails when the step is halved more than limit. Defaults to 64.
	MaxBacktracks int
}

// New creates an estimator for the given problem.
func (p *Problem) New(logger *Logger) (est *Estimator, err error) {

	if logger == nil {
		logger = new(Logger)
		logger.Level = LogNoop
	}
	log := *logger
	if log.Msg == nil {
		log.Msg = os.Stdout
	}
	if log.Out == nil {
		log.Out = os.Stderr
	}

	m, t, n := p.M, p.T, p.N
	if m < minDirections {
		if log.enable(LogLast) {
			log.log("M = %d is less than %d, clamped to %d.\n", m, minDirections, minDirections)
		}
		m = minDirections
	}
	if !(t > zero) || math.IsInf(t, 1) {
		if log.enable(LogLast) && t != zero {
			log.log("T = %v is not a positive real, using %v.\n", t, legendre.DefaultSharpness)
		}
		t = legendre.DefaultSharpness
	}
	if n != dimension {
		if log.enable(LogLast) && n != 0 {
			log.log("N = %d is not supported, using %d.\n", n, dimension)
		}
		n = dimension
	}

	pair := p.Pair
	if pair == nil {
		pair = legendre.Tropical{T: t}
	}

	switch {
	case pair.Dim() != 2*n:
		err = errors.New("hzcap: pair dimension must equal to 2n")
	case p.Workers < 0:
		err = errors.New("hzcap: workers must not less than 0")
	}
	if err != nil {
		return
	}

	inv, err := legendre.NewInverter(pair, p.Method, p.Inverse)
	if err != nil {
		return nil, fmt.Errorf("hzcap: %w", err)
	}

	est = &Estimator{
		n: n, m: m, t: t,
		j:       Symplectic(n),
		inv:     inv,
		workers: max(p.Workers, 1),
		logger:  log,
	}
	return
}

// New returns an estimator with m sampled directions and smoothing sharpness t.
// It never fails: m < 3 is clamped to 3 and non-positive t falls back to 4.
func New(m int, t float64) *Estimator {
	est, err := (&Problem{M: m, T: t}).New(nil)
	if err != nil {
		panic(err)
	}
	return est
}

// Estimator evaluates the capacity functional and runs the descent.
// Its methods are safe for concurrent use; every Estimate owns its random stream.
type Estimator struct {
	n, m    int
	t       float64
	j       *mat.Dense
	inv     *legendre.Inverter
	workers int
	logger  Logger
}

// Directions returns the number of sampled directions m.
func (e *Estimator) Directions() int { return e.m }

// Sharpness returns the smoothing parameter t.
func (e *Estimator) Sharpness() float64 { return e.t }

// J returns a copy of the symplectic matrix.
func (e *Estimator) J() *mat.Dense { return mat.DenseCopyOf(e.j) }

// Result contains the final result of an estimate.
type Result struct {
	OK       bool       // Whether a stationary point was reached before the iteration limit.
	Capacity float64    // The estimate 2F(x).
	F        float64    // Final objective value.
	Residual float64    // Final constraint value f(x).
	X        *mat.Dense // Final iterate.
	Trace    []float64  // Objective value of the start and of every accepted iterate.
	Summary             // Estimate summary.
}

// Summary contains a summary of the descent.
type Summary struct {
	Status       Status // Final status.
	NumIter      int    // Number of iterations performed.
	NumBacktrack int    // Number of step halvings over all line searches.
	NumInverse   int    // Number of Legendre inversions.
}

// Capacity runs Estimate with seed 0 and returns the capacity only.
// Unlike Termination, zero iterations means no descent step: 2F of the start is returned.
func (e *Estimator) Capacity(iterations int, epsilon float64) (float64, error) {
	if iterations < 0 {
		return math.NaN(), errors.New("hzcap: iterations must not less than 0")
	}
	if iterations == 0 {
		iterations = SkipIterations
	}
	res, err := e.Estimate(Termination{MaxIterations: iterations, Epsilon: epsilon}, 0)
	if err != nil {
		return math.NaN(), err
	}
	return res.Capacity, nil
}

// Estimate runs projected gradient descent from a random start drawn with seed.
// The same estimator, termination and seed always give the same result.
func (e *Estimator) Estimate(stop Termination, seed uint64) (*Result, error) {

	switch {
	case stop.MaxIterations < SkipIterations:
		return nil, errors.New("hzcap: max iteration must not less than SkipIterations")
	case stop.Epsilon < zero || math.IsNaN(stop.Epsilon):
		return nil, errors.New("hzcap: epsilon must not less than 0")
	case stop.MaxBacktracks < 0:
		return nil, errors.New("hzcap: max backtracks must not less than 0")
	}
	if stop.MaxIterations == 0 {
		stop.MaxIterations = defaultIterations
	}
	if stop.Epsilon == zero {
		stop.Epsilon = defaultEpsilon
	}
	if stop.MaxBacktracks == 0 {
		stop.MaxBacktracks = defaultBacktracks
	}

	rnd := rand.New(rand.NewPCG(seed, seed^pcgStream))
	x, err := e.RandomStart(rnd, stop.Epsilon)
	if err != nil {
		return nil, err
	}

	d := descent{est: e, stop: stop, x: x}
	if err = d.mainLoop(); err != nil {
		return nil, err
	}

	res := &Result{
		OK:       d.status == ConvStationary,
		Capacity: two * d.f,
		F:        d.f,
		Residual: e.Constraint(d.x),
		X:        d.x,
		Trace:    d.trace,
		Summary: Summary{
			Status:       d.status,
			NumIter:      d.iter,
			NumBacktrack: d.backtrack,
			NumInverse:   d.inverse,
		},
	}

	if log := &e.logger; log.enable(LogLast) {
		log.log("%v\n", res.Status)
		log.log("The estimated Hofer-Zehnder capacity is %v\n", res.Capacity)
	}
	return res, nil
}

const pcgStream = 0x9e3779b97f4a7c15

// RandomStart draws a point of the constraint manifold.
// Entries are drawn from (-½,½], projected to zero column sum and rescaled
// by 1/√|f(x)+1|. When f(x)+1 < 0 the columns are reversed first, which
// negates f(x)+1. Draws with |f(x)+1| < ε are rejected.
func (e *Estimator) RandomStart(rnd *rand.Rand, epsilon float64) (*mat.Dense, error) {
	r := 2 * e.n
	for draw := 0; draw < startDraws; draw++ {
		x := mat.NewDense(r, e.m, nil)
		for i := 0; i < r; i++ {
			for k := 0; k < e.m; k++ {
				x.Set(i, k, half-rnd.Float64())
			}
		}
		x = Proj(x)

		c := e.Constraint(x) + one
		if math.Abs(c) < epsilon || math.IsNaN(c) {
			continue
		}
		if c < zero {
			x = Flip(x)
			c = -c
		}
		x.Scale(one/math.Sqrt(c), x)
		return x, nil
	}
	return nil, ErrInfeasibleStart
}

// Plot renders an iterate. Visualisation is not supported.
func (e *Estimator) Plot(x mat.Matrix) error {
	return ErrNotImplemented
}
