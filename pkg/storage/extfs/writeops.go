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
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Delete removes a file or directory tree. Direct removal first, privileged
// rm as the permission fallback. Deleting a path that is itself an allowed
// root is refused.
func (s *Service) Delete(ctx context.Context, rawPath string) error {
	p, err := s.resolveAllowed(rawPath)
	if err != nil {
		return err
	}
	for _, root := range s.allowedRoots {
		if p+"/" == root {
			return ErrInvalidPath
		}
	}

	err = s.fs.RemoveAll(p)
	if err == nil {
		return nil
	}
	log.Debug().Err(err).Str("path", p).Msg("direct delete failed, trying privileged rm")

	probeCtx, cancel := s.probeCtx(ctx)
	defer cancel()

	if _, sudoErr := s.sudo.RunQuiet(probeCtx, "rm", "-rf", p); sudoErr != nil {
		return fmt.Errorf("deleting %s: %w", p, sudoErr)
	}
	return nil
}

// Rename renames a file or directory in place. newName must be a bare name:
// renaming is not moving. Returns the new absolute path.
func (s *Service) Rename(ctx context.Context, rawPath, newName string) (string, error) {
	p, err := s.resolveAllowed(rawPath)
	if err != nil {
		return "", err
	}
	if newName == "" || newName == "." || newName == ".." ||
		strings.ContainsAny(newName, "/\x00") {
		return "", ErrInvalidName
	}

	newPath := filepath.Join(filepath.Dir(p), newName)

	err = s.fs.Rename(p, newPath)
	if err == nil {
		return newPath, nil
	}
	if os.IsNotExist(err) {
		return "", ErrNotFound
	}
	log.Debug().Err(err).Str("path", p).Msg("direct rename failed, trying privileged mv")

	probeCtx, cancel := s.probeCtx(ctx)
	defer cancel()

	if _, sudoErr := s.sudo.RunQuiet(probeCtx, "mv", p, newPath); sudoErr != nil {
		return "", fmt.Errorf("renaming %s: %w", p, sudoErr)
	}
	return newPath, nil
}

// Mkdir creates a directory (and parents). Direct first, privileged
// fallback.
func (s *Service) Mkdir(ctx context.Context, rawPath string) error {
	p, err := s.resolveAllowed(rawPath)
	if err != nil {
		return err
	}

	err = s.fs.MkdirAll(p, 0o755)
	if err == nil {
		return nil
	}
	log.Debug().Err(err).Str("path", p).Msg("direct mkdir failed, trying privileged mkdir")

	probeCtx, cancel := s.probeCtx(ctx)
	defer cancel()

	if _, sudoErr := s.sudo.RunQuiet(probeCtx, "mkdir", "-p", p); sudoErr != nil {
		return fmt.Errorf("creating %s: %w", p, sudoErr)
	}
	return nil
}
