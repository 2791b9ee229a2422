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

package extfs

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
)

// Target is a resolved, streamable file. Computed per request and never
// cached.
type Target struct {
	Path        string
	ContentType string
	SizeBytes   int64
	IsDir       bool
	// Direct is true when the file is readable without privilege
	// escalation and will be streamed by a plain file read.
	Direct bool
}

// Stat resolves a path into a stream target. Direct stat first; a
// permission failure retries with a privileged stat. At the final fallback
// "truly absent" and "inaccessible even with elevation" collapse into
// ErrNotFound.
func (s *Service) Stat(ctx context.Context, rawPath string) (Target, error) {
	p, err := s.resolveAllowed(rawPath)
	if err != nil {
		return Target{}, err
	}

	fi, err := s.fs.Stat(p)
	if err == nil {
		t := Target{
			Path:        p,
			ContentType: ContentTypeFor(p),
			SizeBytes:   fi.Size(),
			IsDir:       fi.IsDir(),
			Direct:      s.access(p) == nil,
		}
		return t, nil
	}

	if os.IsNotExist(err) {
		return Target{}, ErrNotFound
	}

	log.Debug().Err(err).Str("path", p).Msg("direct stat failed, trying privileged stat")

	probeCtx, cancel := s.probeCtx(ctx)
	defer cancel()

	out, sudoErr := s.sudo.RunQuiet(probeCtx, "stat", "-c", "%s;%F", p)
	if sudoErr != nil {
		return Target{}, ErrNotFound
	}

	size, isDir, parseErr := parseStatOutput(string(out))
	if parseErr != nil {
		return Target{}, fmt.Errorf("parsing stat output for %s: %w", p, parseErr)
	}

	return Target{
		Path:        p,
		ContentType: ContentTypeFor(p),
		SizeBytes:   size,
		IsDir:       isDir,
		Direct:      false,
	}, nil
}

// Open returns the byte stream for a resolved target: a plain file for
// direct targets, a privileged cat pipe otherwise. The caller must Close
// the reader; cancelling ctx kills the helper process, so a client
// disconnect cannot orphan a cat.
func (s *Service) Open(ctx context.Context, t Target) (io.ReadCloser, error) {
	if t.IsDir {
		return nil, ErrIsDirectory
	}

	if t.Direct {
		f, err := s.fs.Open(t.Path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", t.Path, err)
		}
		return f, nil
	}

	rc, err := s.sudo.Stream(ctx, "cat", t.Path)
	if err != nil {
		return nil, fmt.Errorf("starting privileged read of %s: %w", t.Path, err)
	}
	return rc, nil
}
