// Arcellite Storage
// Copyright (c) 2026 The Arcellite Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Arcellite Storage.
//
// Arcellite Storage is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Arcellite Storage is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Arcellite Storage.  If not, see <http://www.gnu.org/licenses/>.

// Package command provides an abstraction over exec.Command for testability.
package command

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
)

// ExitError carries a failed command's captured stderr so callers can
// classify the failure without depending on *exec.ExitError directly.
type ExitError struct {
	Err    error
	Stderr []byte
}

func (e *ExitError) Error() string {
	msg := e.Err.Error()
	if len(e.Stderr) > 0 {
		msg += ": " + strings.TrimSpace(string(e.Stderr))
	}
	return msg
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Stderrf returns the captured stderr of err if it carries any.
func Stderrf(err error) string {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return string(exitErr.Stderr)
	}
	return ""
}

// Executor provides an abstraction over exec.Command for testability.
// This allows commands to be mocked in tests without executing real system commands.
type Executor interface {
	// Run executes a command and waits for it to complete.
	// Returns an error if the command fails to start or exits with non-zero status.
	Run(ctx context.Context, name string, args ...string) error

	// Output runs a command and returns its standard output.
	// A non-zero exit is returned as an *ExitError carrying stderr.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)

	// OutputWithInput runs a command with the given string on its standard
	// input and returns its standard output. Used for tools that read
	// credentials from stdin (sudo -S).
	OutputWithInput(ctx context.Context, input, name string, args ...string) ([]byte, error)

	// StreamOutput starts a command and returns a reader over its standard
	// output. Closing the reader reaps the process. Cancelling ctx kills it.
	StreamOutput(ctx context.Context, input, name string, args ...string) (io.ReadCloser, error)
}

// RealExecutor uses actual exec.Command to execute system commands.
// This is the production implementation used in normal operation.
type RealExecutor struct{}

// Run executes a system command using exec.CommandContext.
func (*RealExecutor) Run(ctx context.Context, name string, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &ExitError{Err: err, Stderr: stderr.Bytes()}
	}
	return nil
}

// Output runs a command and returns its standard output.
func (*RealExecutor) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return out, wrapExitError(err)
	}
	return out, nil
}

// OutputWithInput runs a command with input on stdin and returns its standard output.
func (*RealExecutor) OutputWithInput(
	ctx context.Context,
	input, name string,
	args ...string,
) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = strings.NewReader(input)
	out, err := cmd.Output()
	if err != nil {
		return out, wrapExitError(err)
	}
	return out, nil
}

// StreamOutput starts a command and returns a reader over its stdout.
func (*RealExecutor) StreamOutput(
	ctx context.Context,
	input, name string,
	args ...string,
) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if input != "" {
		cmd.Stdin = strings.NewReader(input)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, wrapExitError(err)
	}
	if err := cmd.Start(); err != nil {
		return nil, wrapExitError(err)
	}

	return &processReader{cmd: cmd, stdout: stdout, stderr: &stderr}, nil
}

// processReader reads a running command's stdout and reaps the process on Close.
type processReader struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *bytes.Buffer
}

func (r *processReader) Read(p []byte) (int, error) {
	return r.stdout.Read(p) //nolint:wrapcheck // pass pipe errors through unchanged
}

// Close drains the process. It must always be called or the child is leaked
// until its context is cancelled.
func (r *processReader) Close() error {
	_ = r.stdout.Close()
	if err := r.cmd.Wait(); err != nil {
		return &ExitError{Err: err, Stderr: r.stderr.Bytes()}
	}
	return nil
}

func wrapExitError(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Err: err, Stderr: exitErr.Stderr}
	}
	return err
}
