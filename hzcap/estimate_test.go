// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hzcap

import (
	"bytes"
	"math"
	"testing"

	"github.com/curioloop/symcap/legendre"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestProblemNew(t *testing.T) {
	var buf bytes.Buffer
	logger := &Logger{Level: LogLast, Msg: &buf, Out: &buf}

	e, err := (&Problem{M: 2, T: -1, N: 3}).New(logger)
	require.NoError(t, err)
	require.Equal(t, 3, e.Directions())
	require.Equal(t, legendre.DefaultSharpness, e.Sharpness())
	require.Contains(t, buf.String(), "M = 2 is less than 3")
	require.Contains(t, buf.String(), "T = -1 is not a positive real")
	require.Contains(t, buf.String(), "N = 3 is not supported")

	buf.Reset()
	e, err = (&Problem{M: 5, T: 2}).New(logger)
	require.NoError(t, err)
	require.Equal(t, 5, e.Directions())
	require.Equal(t, 2.0, e.Sharpness())
	require.Empty(t, buf.String())

	e = New(0, math.NaN())
	require.Equal(t, 3, e.Directions())
	require.Equal(t, 4.0, e.Sharpness())

	_, err = (&Problem{M: 3, Workers: -1}).New(nil)
	require.Error(t, err)
	_, err = (&Problem{M: 3, Method: legendre.Method(7)}).New(nil)
	require.Error(t, err)
	_, err = (&Problem{M: 3, Inverse: legendre.Settings{Start: []float64{0, 0, 0}}}).New(nil)
	require.Error(t, err)
}

func TestEstimateBaseline(t *testing.T) {
	res, err := New(3, 4).Estimate(Termination{MaxIterations: 100, Epsilon: 1e-12}, 0)
	require.NoError(t, err)

	require.True(t, res.OK)
	require.Equal(t, ConvStationary, res.Status)
	require.Less(t, res.NumIter, 100)
	require.InDelta(t, 4.4996302945, res.Capacity, 1e-7)
	require.Equal(t, 2*res.F, res.Capacity)
	require.InDelta(t, 0, res.Residual, 1e-9)
	require.InDeltaSlice(t, []float64{0, 0}, columnSum(res.X), 1e-12)
	require.Len(t, res.Trace, res.NumIter)
	require.Equal(t, res.F, res.Trace[len(res.Trace)-1])
	require.Equal(t, 3*(4*res.NumIter-2+2*res.NumBacktrack), res.NumInverse)

	c, err := New(3, 4).Capacity(100, 1e-12)
	require.NoError(t, err)
	require.Equal(t, res.Capacity, c)
}

func TestEstimateMethods(t *testing.T) {
	for _, method := range []legendre.Method{legendre.Newton, legendre.Broyden, legendre.Minimize} {
		e, err := (&Problem{M: 3, T: 4, Method: method}).New(nil)
		require.NoError(t, err)
		res, err := e.Estimate(Termination{}, 0)
		require.NoError(t, err, "%v", method)
		require.True(t, res.OK, "%v", method)
		require.InDelta(t, 4.4996302945, res.Capacity, 1e-7, "%v", method)
		require.InDelta(t, 0, res.Residual, 1e-9, "%v", method)
	}
}

func TestEstimateMonotone(t *testing.T) {
	for _, m := range []int{3, 4, 5, 6, 8} {
		e := New(m, 4)
		for seed := uint64(0); seed < 20; seed++ {
			res, err := e.Estimate(Termination{}, seed)
			require.NoError(t, err, "m=%d seed %d", m, seed)
			require.InDelta(t, 0, res.Residual, 1e-8, "m=%d seed %d", m, seed)
			for k := 1; k < len(res.Trace); k++ {
				require.LessOrEqual(t, res.Trace[k], res.Trace[k-1], "m=%d seed %d step %d", m, seed, k)
			}
		}
	}
}

func TestEstimateSaturatedColumns(t *testing.T) {
	// these runs drive columns far out where the smoothed maximum is nearly flat
	for _, c := range []struct {
		m    int
		seed uint64
	}{{6, 1}, {8, 3}} {
		res, err := New(c.m, 4).Estimate(Termination{}, c.seed)
		require.NoError(t, err, "m=%d seed %d", c.m, c.seed)
		require.False(t, math.IsNaN(res.Capacity) || math.IsInf(res.Capacity, 0))
		require.Greater(t, res.Capacity, 0.0)
		require.InDelta(t, 0, res.Residual, 1e-8)
		require.InDeltaSlice(t, []float64{0, 0}, columnSum(res.X), 1e-10)
	}
}

func TestEstimateReproducible(t *testing.T) {
	e := New(4, 4)
	a, err := e.Estimate(Termination{MaxIterations: 20}, 42)
	require.NoError(t, err)
	b, err := e.Estimate(Termination{MaxIterations: 20}, 42)
	require.NoError(t, err)
	require.Equal(t, a.Capacity, b.Capacity)
	require.Equal(t, a.Trace, b.Trace)
	require.True(t, mat.Equal(a.X, b.X))

	// clamped m runs the very same problem
	c, err := New(2, 4).Estimate(Termination{MaxIterations: 20}, 5)
	require.NoError(t, err)
	d, err := New(3, 4).Estimate(Termination{MaxIterations: 20}, 5)
	require.NoError(t, err)
	require.Equal(t, d.Capacity, c.Capacity)

	parallel, err := (&Problem{M: 4, T: 4, Workers: 3}).New(nil)
	require.NoError(t, err)
	p, err := parallel.Estimate(Termination{MaxIterations: 20}, 42)
	require.NoError(t, err)
	require.Equal(t, a.Trace, p.Trace)
}

func TestEstimateSweep(t *testing.T) {
	for _, m := range []int{3, 4, 5} {
		for _, sharp := range []float64{2, 4} {
			res, err := New(m, sharp).Estimate(Termination{MaxIterations: 30}, uint64(m))
			require.NoError(t, err, "m=%d t=%v", m, sharp)
			require.False(t, math.IsNaN(res.Capacity) || math.IsInf(res.Capacity, 0))
			require.GreaterOrEqual(t, res.Capacity, 0.0)
			require.InDelta(t, 0, res.Residual, 1e-8)
			require.LessOrEqual(t, res.NumIter, 30)
		}
	}
}

func TestEstimateEarlyStop(t *testing.T) {
	res, err := New(3, 4).Estimate(Termination{Epsilon: 1e-6}, 0)
	require.NoError(t, err)
	require.True(t, res.OK)
	require.InDelta(t, 4.4996302976, res.Capacity, 1e-7)

	full, err := New(3, 4).Estimate(Termination{}, 0)
	require.NoError(t, err)
	require.Less(t, res.NumIter, full.NumIter)

	res, err = New(3, 4).Estimate(Termination{MaxIterations: 2}, 0)
	require.NoError(t, err)
	require.False(t, res.OK)
	require.Equal(t, OverIterLimit, res.Status)
	require.Equal(t, 2, res.NumIter)
	require.Len(t, res.Trace, 3)

	res, err = New(3, 4).Estimate(Termination{MaxIterations: SkipIterations}, 0)
	require.NoError(t, err)
	require.False(t, res.OK)
	require.Equal(t, OverIterLimit, res.Status)
	require.Zero(t, res.NumIter)
	require.Equal(t, 3, res.NumInverse)
	require.Equal(t, []float64{res.F}, res.Trace)
	require.Equal(t, 2*res.F, res.Capacity)
	require.Greater(t, res.Capacity, full.Capacity)

	c, err := New(3, 4).Capacity(0, 1e-12)
	require.NoError(t, err)
	require.Equal(t, res.Capacity, c)
	_, err = New(3, 4).Capacity(-1, 1e-12)
	require.Error(t, err)
}

func TestEstimateArguments(t *testing.T) {
	e := New(3, 4)
	for _, stop := range []Termination{
		{MaxIterations: SkipIterations - 1},
		{Epsilon: -1},
		{Epsilon: math.NaN()},
		{MaxBacktracks: -1},
	} {
		_, err := e.Estimate(stop, 0)
		require.Error(t, err, "%+v", stop)
	}
}

func TestEstimateNonConvergence(t *testing.T) {
	e, err := (&Problem{M: 3, Pair: singular{legendre.Tropical{T: 4}}}).New(nil)
	require.NoError(t, err)
	_, err = e.Estimate(Termination{}, 0)
	require.ErrorIs(t, err, ErrNonConvergence)

	c, err := e.Capacity(10, 1e-12)
	require.ErrorIs(t, err, ErrNonConvergence)
	require.True(t, math.IsNaN(c))
}

func TestEstimateLogging(t *testing.T) {
	var msg, out bytes.Buffer
	e, err := (&Problem{M: 3, T: 4}).New(&Logger{Level: LogEval, Msg: &msg, Out: &out})
	require.NoError(t, err)

	res, err := e.Estimate(Termination{MaxIterations: 3}, 0)
	require.NoError(t, err)

	require.Contains(t, msg.String(), "At k = 1, F(x) = ")
	require.Contains(t, msg.String(), "At k = 3, F(x) = ")
	require.Contains(t, msg.String(), res.Status.String())
	require.Contains(t, msg.String(), "The estimated Hofer-Zehnder capacity is")
	require.NotContains(t, msg.String(), "L_max")
	require.Contains(t, out.String(), "F(x)")

	msg.Reset()
	e, err = (&Problem{M: 3, T: 4}).New(&Logger{Level: LogTrace, Msg: &msg, Out: &out})
	require.NoError(t, err)
	_, err = e.Estimate(Termination{MaxIterations: 1}, 0)
	require.NoError(t, err)
	require.Contains(t, msg.String(), "L_max = ")
	require.Contains(t, msg.String(), "retracted decrease = ")
}

func TestPlot(t *testing.T) {
	require.ErrorIs(t, New(3, 4).Plot(mat.NewDense(2, 3, nil)), ErrNotImplemented)
}
