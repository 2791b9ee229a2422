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

// Text parsers for the privileged-helper fallback tiers. These are the only
// place the service reads another tool's human-oriented output, so they are
// kept small and covered directly by tests.

package extfs

import (
	"errors"
	"strconv"
	"strings"
)

var errUnparsableLine = errors.New("unparsable ls line")

// parseLsOutput parses `ls -la --time-style=+%s` output into entries.
// The "total" header, ".", ".." and any line that does not parse are
// skipped; one bad line never aborts the batch.
func parseLsOutput(out string) []DirEntry {
	var entries []DirEntry
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "total ") || line == "total" {
			continue
		}
		entry, err := parseLsLine(line)
		if err != nil {
			continue
		}
		if entry.Name == "." || entry.Name == ".." {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// parseLsLine parses one line of the form:
//
//	drwxr-xr-x 2 root root 4096 1714586923 My Photos
//
// Names may contain spaces; symlink targets ("name -> target") are trimmed
// to the link name.
func parseLsLine(line string) (DirEntry, error) {
	fields := strings.Fields(line)
	if len(fields) < 7 {
		return DirEntry{}, errUnparsableLine
	}

	perms := fields[0]
	size, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return DirEntry{}, errUnparsableLine
	}
	epoch, err := strconv.ParseInt(fields[5], 10, 64)
	if err != nil {
		return DirEntry{}, errUnparsableLine
	}

	name := strings.Join(fields[6:], " ")
	if idx := strings.Index(name, " -> "); idx >= 0 {
		name = name[:idx]
	}
	if name == "" {
		return DirEntry{}, errUnparsableLine
	}

	entry := DirEntry{
		Name:     name,
		IsFolder: perms[0] == 'd',
		MTimeMs:  epoch * 1000,
	}
	if !entry.IsFolder {
		entry.SizeBytes = &size
	}
	return entry, nil
}

// parseStatOutput parses `stat -c %s;%F` output: size, then the file type
// description ("regular file", "directory").
func parseStatOutput(out string) (size int64, isDir bool, err error) {
	parts := strings.SplitN(strings.TrimSpace(out), ";", 2)
	if len(parts) != 2 {
		return 0, false, errors.New("unexpected stat output")
	}
	size, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, false, errors.New("unexpected stat size")
	}
	return size, strings.Contains(parts[1], "directory"), nil
}
