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

// Package privileged wraps sudo invocations behind small, classifiable
// operations. Interactive calls feed the user's password on stdin
// (sudo -S -k); read-path fallbacks run non-interactively (sudo -n) because
// listing and streaming requests carry no credentials.
package privileged

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ArcelliteProject/arcellite-storage/pkg/helpers/command"
	"github.com/rs/zerolog/log"
)

var (
	// ErrIncorrectPassword means sudo rejected the supplied password.
	ErrIncorrectPassword = errors.New("incorrect password")

	// ErrPasswordRequired means an interactive operation was attempted with
	// an empty password. Nothing is executed in that case.
	ErrPasswordRequired = errors.New("password required")

	// ErrUnsupportedOption means mount rejected the ownership-mapping
	// options, which native Linux filesystems do.
	ErrUnsupportedOption = errors.New("unsupported mount option")
)

// Runner executes commands under sudo.
type Runner struct {
	exec command.Executor
}

func NewRunner(exec command.Executor) *Runner {
	return &Runner{exec: exec}
}

// Run executes argv under interactive sudo, feeding password on stdin.
// The -k flag forces re-authentication so a cached timestamp can never make
// an empty or wrong password silently succeed.
func (r *Runner) Run(ctx context.Context, password string, argv ...string) ([]byte, error) {
	if password == "" {
		return nil, ErrPasswordRequired
	}

	args := append([]string{"-S", "-k", "-p", ""}, argv...)
	out, err := r.exec.OutputWithInput(ctx, password+"\n", "sudo", args...)
	if err != nil {
		return out, classify(err)
	}
	return out, nil
}

// RunQuiet executes argv under non-interactive sudo (sudo -n). It fails
// immediately when passwordless escalation is not configured for the
// service user.
func (r *Runner) RunQuiet(ctx context.Context, argv ...string) ([]byte, error) {
	args := append([]string{"-n"}, argv...)
	out, err := r.exec.Output(ctx, "sudo", args...)
	if err != nil {
		return out, classify(err)
	}
	return out, nil
}

// Stream starts argv under non-interactive sudo and returns its stdout as a
// reader. Cancelling ctx kills the child; the caller must Close the reader.
func (r *Runner) Stream(ctx context.Context, argv ...string) (io.ReadCloser, error) {
	args := append([]string{"-n"}, argv...)
	rc, err := r.exec.StreamOutput(ctx, "", "sudo", args...)
	if err != nil {
		return nil, classify(err)
	}
	return rc, nil
}

// classify maps the known sudo/mount stderr shapes onto sentinel errors.
// Anything unrecognized is logged in full server-side and passed through
// wrapped, so handlers surface only an opaque message.
func classify(err error) error {
	stderr := strings.ToLower(command.Stderrf(err))
	switch {
	case strings.Contains(stderr, "incorrect password"),
		strings.Contains(stderr, "sorry, try again"),
		strings.Contains(stderr, "a password is required"):
		return fmt.Errorf("%w: %w", ErrIncorrectPassword, err)
	case strings.Contains(stderr, "unknown option"),
		strings.Contains(stderr, "bad option"),
		strings.Contains(stderr, "unsupported option"),
		strings.Contains(stderr, "bad superblock"):
		return fmt.Errorf("%w: %w", ErrUnsupportedOption, err)
	default:
		log.Debug().Err(err).Msg("unclassified privileged command failure")
		return err
	}
}

// IsAlreadyMounted reports whether a mount failure actually means the
// partition is mounted already, which callers treat as success.
func IsAlreadyMounted(err error) bool {
	stderr := strings.ToLower(command.Stderrf(err))
	return strings.Contains(stderr, "already mounted")
}
