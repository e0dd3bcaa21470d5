// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command hzcap estimates the Hofer–Zehnder capacity of the smoothed triangle.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/curioloop/symcap/hzcap"
	"github.com/curioloop/symcap/legendre"
	"github.com/spf13/cobra"
)

type options struct {
	m          int
	t          float64
	iterations int
	epsilon    float64
	backtracks int
	seed       uint64
	method     string
	tolerance  float64
	workers    int
	verbose    bool
	trace      bool
	table      bool
}

func newRootCmd() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:          "hzcap",
		Short:        "Estimate the Hofer-Zehnder capacity of the smoothed triangle",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.OutOrStdout(), cmd.ErrOrStderr(), o)
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&o.m, "directions", "m", 3, "Number of sampled directions (at least 3)")
	flags.Float64VarP(&o.t, "sharpness", "t", legendre.DefaultSharpness, "Smoothing sharpness of the support function")
	flags.IntVar(&o.iterations, "iterations", 100, "Maximum number of descent iterations (0=evaluate the start only)")
	flags.Float64Var(&o.epsilon, "epsilon", 1e-12, "Stationarity threshold on the projected gradient")
	flags.IntVar(&o.backtracks, "backtracks", 64, "Maximum number of step halvings per line search")
	flags.Uint64Var(&o.seed, "seed", 0, "Seed of the random start")
	flags.StringVar(&o.method, "method", legendre.Newton.String(), "Legendre inversion: newton, broyden or minimize")
	flags.Float64Var(&o.tolerance, "tolerance", 0, "Residual tolerance of the Legendre inversion (0=default)")
	flags.IntVar(&o.workers, "workers", 1, "Concurrent column inversions")
	flags.BoolVarP(&o.verbose, "verbose", "v", true, "Print F(x) and f(x) at every iteration")
	flags.BoolVar(&o.trace, "trace", false, "Print step sizes and backtracking details")
	flags.BoolVar(&o.table, "table", false, "Write the iteration table to stderr")
	return cmd
}

func run(stdout, stderr io.Writer, o options) error {
	method, err := legendre.ParseMethod(o.method)
	if err != nil {
		return err
	}
	switch {
	case o.iterations < 0:
		return errors.New("iterations must not less than 0")
	case o.iterations == 0:
		o.iterations = hzcap.SkipIterations
	}

	logger := &hzcap.Logger{Level: hzcap.LogLast, Msg: stderr, Out: io.Discard}
	switch {
	case o.trace:
		logger.Level = hzcap.LogTrace
	case o.verbose:
		logger.Level = hzcap.LogEval
	}
	if o.table {
		logger.Out = stderr
	}

	problem := hzcap.Problem{
		M:       o.m,
		T:       o.t,
		Method:  method,
		Inverse: legendre.Settings{Tolerance: o.tolerance},
		Workers: o.workers,
	}
	est, err := problem.New(logger)
	if err != nil {
		return err
	}

	res, err := est.Estimate(hzcap.Termination{
		MaxIterations: o.iterations,
		Epsilon:       o.epsilon,
		MaxBacktracks: o.backtracks,
	}, o.seed)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(stdout, res.Capacity)
	return err
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
