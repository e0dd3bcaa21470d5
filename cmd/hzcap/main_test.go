// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRootCmd(t *testing.T) {
	stdout, stderr, err := execute(t, "-m", "3", "--seed", "0")
	require.NoError(t, err)

	capacity, err := strconv.ParseFloat(strings.TrimSpace(stdout), 64)
	require.NoError(t, err)
	require.InDelta(t, 4.4996302945, capacity, 1e-7)
	require.Contains(t, stderr, "At k = 1, F(x) = ")
	require.Contains(t, stderr, "The estimated Hofer-Zehnder capacity is")
}

func TestRootCmdQuiet(t *testing.T) {
	stdout, stderr, err := execute(t, "-m", "2", "--iterations", "3", "--verbose=false", "--workers", "2")
	require.NoError(t, err)
	require.NotEmpty(t, strings.TrimSpace(stdout))
	require.Contains(t, stderr, "M = 2 is less than 3")
	require.NotContains(t, stderr, "At k =")
}

func TestRootCmdTable(t *testing.T) {
	_, stderr, err := execute(t, "-m", "3", "--iterations", "2", "--table", "--trace")
	require.NoError(t, err)
	require.Contains(t, stderr, "<y,y>")
	require.Contains(t, stderr, "L_max = ")
}

func TestRootCmdMethods(t *testing.T) {
	for _, method := range []string{"newton", "broyden", "minimize"} {
		stdout, _, err := execute(t, "--method", method, "--verbose=false")
		require.NoError(t, err, method)
		capacity, err := strconv.ParseFloat(strings.TrimSpace(stdout), 64)
		require.NoError(t, err)
		require.InDelta(t, 4.4996302945, capacity, 1e-7, method)
	}
}

func TestRootCmdZeroIterations(t *testing.T) {
	stdout, stderr, err := execute(t, "--iterations", "0")
	require.NoError(t, err)
	require.NotContains(t, stderr, "At k =")

	capacity, err := strconv.ParseFloat(strings.TrimSpace(stdout), 64)
	require.NoError(t, err)
	require.InDelta(t, 148.0388357201, capacity, 1e-6)
}

func TestRootCmdErrors(t *testing.T) {
	_, _, err := execute(t, "--method", "secant")
	require.ErrorContains(t, err, "unknown method")

	_, _, err = execute(t, "--workers", "-1")
	require.Error(t, err)

	_, _, err = execute(t, "--iterations", "-1")
	require.Error(t, err)

	_, _, err = execute(t, "extra")
	require.Error(t, err)
}
