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

// Package extfs lists, streams and manipulates files on mounted external
// filesystems that the service user may not own.
//
// Every operation runs a direct filesystem attempt first and falls back to a
// privileged helper process only when permissions demand it. All paths are
// validated against a fixed allow-list of mount roots before anything
// touches the disk — including streaming, which the upstream product left
// unrestricted.
package extfs

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ArcelliteProject/arcellite-storage/pkg/helpers/command"
	"github.com/ArcelliteProject/arcellite-storage/pkg/storage/privileged"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

// DirEntry is one entry of a directory listing. SizeBytes is omitted for
// folders and for entries whose stat failed.
type DirEntry struct {
	SizeBytes *int64 `json:"sizeBytes,omitempty"`
	Name      string `json:"name"`
	MTimeMs   int64  `json:"mtimeMs"`
	IsFolder  bool   `json:"isFolder"`
}

// Listing is the result of listing one directory.
type Listing struct {
	Folders []DirEntry `json:"folders"`
	Files   []DirEntry `json:"files"`
}

var (
	// ErrPathNotAllowed means the path falls outside the allow-listed
	// mount roots.
	ErrPathNotAllowed = errors.New("path not allowed")

	// ErrInvalidPath means the path is empty, relative, or contains a
	// traversal segment.
	ErrInvalidPath = errors.New("invalid path")

	// ErrInvalidName means a rename target is not a bare file name.
	ErrInvalidName = errors.New("invalid name")

	// ErrNotFound means the target does not exist, or is inaccessible even
	// with elevation (the two collapse at the final fallback).
	ErrNotFound = errors.New("file not found")

	// ErrIsDirectory means a directory was given where a file is required.
	ErrIsDirectory = errors.New("path is a directory")
)

// Service performs external filesystem operations.
type Service struct {
	fs           afero.Fs
	exec         command.Executor
	sudo         *privileged.Runner
	access       func(path string) error
	allowedRoots []string
	probeTimeout time.Duration
}

// NewService builds a Service over the real filesystem. allowedRoots entries
// must end with a path separator (e.g. "/media/").
func NewService(
	fs afero.Fs,
	exec command.Executor,
	sudo *privileged.Runner,
	allowedRoots []string,
	probeTimeout time.Duration,
) *Service {
	return &Service{
		fs:           fs,
		exec:         exec,
		sudo:         sudo,
		allowedRoots: allowedRoots,
		probeTimeout: probeTimeout,
		access: func(path string) error {
			return unix.Access(path, unix.R_OK)
		},
	}
}

// resolveAllowed validates and normalizes a client-supplied path. The raw
// input is checked for traversal segments before cleaning, so "a/../../b"
// cannot smuggle itself under an allowed root.
func (s *Service) resolveAllowed(raw string) (string, error) {
	if raw == "" || !strings.HasPrefix(raw, "/") {
		return "", ErrInvalidPath
	}
	for _, seg := range strings.Split(raw, "/") {
		if seg == ".." {
			return "", ErrInvalidPath
		}
	}

	p := cleanPath(raw)
	for _, root := range s.allowedRoots {
		if strings.HasPrefix(p+"/", root) {
			return p, nil
		}
	}
	return "", ErrPathNotAllowed
}

func cleanPath(p string) string {
	cleaned := strings.TrimRight(p, "/")
	if cleaned == "" {
		return "/"
	}
	// Collapse duplicate separators and "." segments without resolving
	// "..", which resolveAllowed has already rejected.
	parts := strings.Split(cleaned, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" || part == "." {
			continue
		}
		out = append(out, part)
	}
	return "/" + strings.Join(out, "/")
}

func (s *Service) probeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.probeTimeout)
}
