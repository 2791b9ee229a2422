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

package mount

import (
	"strings"

	"github.com/ArcelliteProject/arcellite-storage/pkg/storage/devices"
)

// labelCharset matches the characters a volume label may contribute to a
// mount directory name. Spaces are mapped to underscores first; anything
// else disqualifies the label entirely.
func labelAllowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_', r == '-', r == '.':
		return true
	default:
		return false
	}
}

// sanitizeLabel converts a volume label into a mount directory name.
// Returns "" when the label cannot be used safely.
func sanitizeLabel(label string) string {
	name := strings.ReplaceAll(strings.TrimSpace(label), " ", "_")
	if name == "" || name == "." || name == ".." {
		return ""
	}
	for _, r := range name {
		if !labelAllowed(r) {
			return ""
		}
	}
	return name
}

// mountDirName derives the directory name for a partition: sanitized label,
// else filesystem UUID, else the raw partition name. First match wins.
func mountDirName(part devices.Partition) string {
	if name := sanitizeLabel(part.Label); name != "" {
		return name
	}
	if part.UUID != "" {
		return part.UUID
	}
	return part.Name
}
