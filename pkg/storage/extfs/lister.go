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
	"sort"

	"github.com/rs/zerolog/log"
)

// List returns the folders and files under path using a three-tier read
// strategy: direct readdir, privileged ls, plain ls. A path that does not
// exist under a valid root is an empty listing, not an error — "nothing
// there yet" is a normal state for a mount directory.
func (s *Service) List(ctx context.Context, rawPath string) (Listing, error) {
	p, err := s.resolveAllowed(rawPath)
	if err != nil {
		return Listing{}, err
	}

	listing, err := s.listDirect(p)
	if err == nil {
		return listing, nil
	}
	if os.IsNotExist(err) {
		return emptyListing(), nil
	}
	log.Debug().Err(err).Str("path", p).Msg("direct listing failed, trying privileged ls")

	probeCtx, cancel := s.probeCtx(ctx)
	defer cancel()

	if out, sudoErr := s.sudo.RunQuiet(probeCtx, "ls", "-la", "--time-style=+%s", p); sudoErr == nil {
		if listing, ok := listingFromLs(string(out)); ok {
			return listing, nil
		}
	} else {
		log.Debug().Err(sudoErr).Str("path", p).Msg("privileged ls failed, trying plain ls")
	}

	// Last resort for hosts without passwordless sudo where the directory
	// is world-readable after all.
	out, lsErr := s.exec.Output(probeCtx, "ls", "-la", "--time-style=+%s", p)
	if lsErr != nil {
		return Listing{}, fmt.Errorf("listing %s: %w", p, lsErr)
	}
	listing, _ = listingFromLs(string(out))
	return listing, nil
}

// listDirect reads the directory with per-entry stat. A single entry whose
// stat fails degrades to a name-only file entry instead of failing the
// whole listing.
func (s *Service) listDirect(p string) (Listing, error) {
	f, err := s.fs.Open(p)
	if err != nil {
		return Listing{}, err //nolint:wrapcheck // callers classify the raw fs error
	}
	defer func() { _ = f.Close() }()

	names, err := f.Readdirnames(-1)
	if err != nil {
		return Listing{}, err //nolint:wrapcheck // callers classify the raw fs error
	}

	listing := emptyListing()
	for _, name := range names {
		fi, statErr := s.fs.Stat(filepath.Join(p, name))
		if statErr != nil {
			log.Debug().Err(statErr).Str("entry", name).Msg("entry stat failed, minimal entry")
			listing.Files = append(listing.Files, DirEntry{Name: name})
			continue
		}

		entry := DirEntry{
			Name:     name,
			IsFolder: fi.IsDir(),
			MTimeMs:  fi.ModTime().UnixMilli(),
		}
		if fi.IsDir() {
			listing.Folders = append(listing.Folders, entry)
		} else {
			size := fi.Size()
			entry.SizeBytes = &size
			listing.Files = append(listing.Files, entry)
		}
	}

	sortListing(&listing)
	return listing, nil
}

// listingFromLs converts parsed ls output into a Listing. ok is false when
// the output produced no entries at all, which sends the caller to the next
// tier.
func listingFromLs(out string) (Listing, bool) {
	entries := parseLsOutput(out)
	listing := emptyListing()
	for _, e := range entries {
		if e.IsFolder {
			listing.Folders = append(listing.Folders, e)
		} else {
			listing.Files = append(listing.Files, e)
		}
	}
	sortListing(&listing)
	return listing, len(entries) > 0
}

func emptyListing() Listing {
	return Listing{Folders: []DirEntry{}, Files: []DirEntry{}}
}

func sortListing(l *Listing) {
	sort.Slice(l.Folders, func(i, j int) bool { return l.Folders[i].Name < l.Folders[j].Name })
	sort.Slice(l.Files, func(i, j int) bool { return l.Files[i].Name < l.Files[j].Name })
}
