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
	"testing"

	"github.com/ArcelliteProject/arcellite-storage/pkg/storage/devices"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestSanitizeLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label string
		want  string
	}{
		{"BACKUP", "BACKUP"},
		{"My Photos", "My_Photos"},
		{"  padded  ", "padded"},
		{"disk-1.0_b", "disk-1.0_b"},
		{"", ""},
		{".", ""},
		{"..", ""},
		{"bad/label", ""},
		{"semi;colon", ""},
		{"null\x00byte", ""},
		{"ünïcode", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeLabel(tt.label), "label %q", tt.label)
	}
}

func TestMountDirNamePrecedence(t *testing.T) {
	t.Parallel()

	// Label wins, then UUID, then the raw partition name.
	assert.Equal(t, "BACKUP", mountDirName(devices.Partition{
		Name: "sdb1", Label: "BACKUP", UUID: "cccc-dddd",
	}))
	assert.Equal(t, "cccc-dddd", mountDirName(devices.Partition{
		Name: "sdb1", Label: "bad/label", UUID: "cccc-dddd",
	}))
	assert.Equal(t, "sdb1", mountDirName(devices.Partition{Name: "sdb1"}))
}

func TestSanitizeLabelNeverEscapesMountRoot(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		label := rapid.String().Draw(t, "label")
		name := sanitizeLabel(label)
		if name == "" {
			return
		}
		if strings.ContainsAny(name, "/\x00") {
			t.Fatalf("sanitized name %q contains path separator or NUL", name)
		}
		if name == "." || name == ".." {
			t.Fatalf("sanitized name %q is a relative path component", name)
		}
		if strings.ContainsAny(name, " \t\n") {
			t.Fatalf("sanitized name %q contains whitespace", name)
		}
	})
}
