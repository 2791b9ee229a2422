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

package helpers

import (
	"os"
	"strings"
	"syscall"

	"github.com/spf13/afero"
)

// NewMemoryFS creates a new in-memory filesystem for testing.
func NewMemoryFS() afero.Fs {
	return afero.NewMemMapFs()
}

// WriteFiles populates fs with the given path -> content map, creating
// parent directories as needed.
func WriteFiles(fs afero.Fs, files map[string]string) error {
	for path, content := range files {
		if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
			return err //nolint:wrapcheck // test helper passes afero errors through
		}
	}
	return nil
}

// DenyingFs wraps an afero filesystem and fails Open, Stat and all write
// operations under Prefix with EACCES. It simulates paths only readable by
// root, which MemMapFs cannot express.
type DenyingFs struct {
	afero.Fs
	Prefix string
}

func (d *DenyingFs) denied(path string) bool {
	return strings.HasPrefix(path, d.Prefix)
}

func accessErr(op, path string) error {
	return &os.PathError{Op: op, Path: path, Err: syscall.EACCES}
}

func (d *DenyingFs) Open(name string) (afero.File, error) {
	if d.denied(name) {
		return nil, accessErr("open", name)
	}
	return d.Fs.Open(name) //nolint:wrapcheck // passthrough
}

func (d *DenyingFs) Stat(name string) (os.FileInfo, error) {
	if d.denied(name) {
		return nil, accessErr("stat", name)
	}
	return d.Fs.Stat(name) //nolint:wrapcheck // passthrough
}

func (d *DenyingFs) RemoveAll(path string) error {
	if d.denied(path) {
		return accessErr("removeall", path)
	}
	return d.Fs.RemoveAll(path) //nolint:wrapcheck // passthrough
}

func (d *DenyingFs) Rename(oldname, newname string) error {
	if d.denied(oldname) || d.denied(newname) {
		return accessErr("rename", oldname)
	}
	return d.Fs.Rename(oldname, newname) //nolint:wrapcheck // passthrough
}

func (d *DenyingFs) MkdirAll(path string, perm os.FileMode) error {
	if d.denied(path) {
		return accessErr("mkdir", path)
	}
	return d.Fs.MkdirAll(path, perm) //nolint:wrapcheck // passthrough
}
