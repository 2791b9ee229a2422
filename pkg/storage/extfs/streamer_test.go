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
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/ArcelliteProject/arcellite-storage/pkg/helpers/command"
	"github.com/ArcelliteProject/arcellite-storage/pkg/testing/helpers"
	"github.com/ArcelliteProject/arcellite-storage/pkg/testing/mocks"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestStatDirectReadableFile(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, helpers.WriteFiles(fs, map[string]string{
		"/media/arcellite/BACKUP/movie.mp4": "0123456789",
	}))

	exec := &mocks.MockCommandExecutor{}
	svc := newTestService(fs, exec)
	svc.access = func(string) error { return nil }

	target, err := svc.Stat(t.Context(), "/media/arcellite/BACKUP/movie.mp4")
	require.NoError(t, err)
	assert.Equal(t, "/media/arcellite/BACKUP/movie.mp4", target.Path)
	assert.Equal(t, "video/mp4", target.ContentType)
	assert.Equal(t, int64(10), target.SizeBytes)
	assert.False(t, target.IsDir)
	assert.True(t, target.Direct)
	exec.AssertExpectations(t)
}

func TestStatUnreadableFileGoesPrivileged(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, helpers.WriteFiles(fs, map[string]string{
		"/media/arcellite/BACKUP/secret.pdf": "secret",
	}))

	exec := &mocks.MockCommandExecutor{}
	svc := newTestService(fs, exec)
	// Statable but not readable by the service user.
	svc.access = func(string) error { return errors.New("EACCES") }

	target, err := svc.Stat(t.Context(), "/media/arcellite/BACKUP/secret.pdf")
	require.NoError(t, err)
	assert.False(t, target.Direct)
	assert.Equal(t, "application/pdf", target.ContentType)
}

func TestStatInvisibleFileUsesPrivilegedStat(t *testing.T) {
	t.Parallel()

	base := afero.NewMemMapFs()
	require.NoError(t, helpers.WriteFiles(base, map[string]string{
		"/media/root-only/dump.bin": "x",
	}))
	fs := &helpers.DenyingFs{Fs: base, Prefix: "/media/root-only"}

	exec := &mocks.MockCommandExecutor{}
	exec.On("Output", mock.Anything, "sudo",
		[]string{"-n", "stat", "-c", "%s;%F", "/media/root-only/dump.bin"}).
		Return([]byte("524288;regular file\n"), nil).Once()

	svc := newTestService(fs, exec)

	target, err := svc.Stat(t.Context(), "/media/root-only/dump.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(524288), target.SizeBytes)
	assert.False(t, target.Direct)
	assert.False(t, target.IsDir)
	exec.AssertExpectations(t)
}

func TestStatMissingFile(t *testing.T) {
	t.Parallel()

	exec := &mocks.MockCommandExecutor{}
	svc := newTestService(afero.NewMemMapFs(), exec)

	_, err := svc.Stat(t.Context(), "/media/arcellite/BACKUP/gone.txt")
	require.ErrorIs(t, err, ErrNotFound)
	exec.AssertExpectations(t)
}

func TestStatInaccessibleEvenWithElevation(t *testing.T) {
	t.Parallel()

	base := afero.NewMemMapFs()
	require.NoError(t, helpers.WriteFiles(base, map[string]string{
		"/media/root-only/x": "x",
	}))
	fs := &helpers.DenyingFs{Fs: base, Prefix: "/media/root-only"}

	exec := &mocks.MockCommandExecutor{}
	exec.On("Output", mock.Anything, "sudo", mock.Anything).
		Return([]byte(nil), &command.ExitError{
			Err:    errors.New("exit status 1"),
			Stderr: []byte("stat: cannot statx: Permission denied"),
		}).Once()

	svc := newTestService(fs, exec)

	_, err := svc.Stat(t.Context(), "/media/root-only/x")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStatDisallowedPath(t *testing.T) {
	t.Parallel()

	svc := newTestService(afero.NewMemMapFs(), &mocks.MockCommandExecutor{})

	_, err := svc.Stat(t.Context(), "/etc/shadow")
	require.ErrorIs(t, err, ErrPathNotAllowed)
}

func TestOpenDirectTarget(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, helpers.WriteFiles(fs, map[string]string{
		"/media/arcellite/BACKUP/notes.txt": "direct content",
	}))

	svc := newTestService(fs, &mocks.MockCommandExecutor{})

	rc, err := svc.Open(t.Context(), Target{
		Path:   "/media/arcellite/BACKUP/notes.txt",
		Direct: true,
	})
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "direct content", string(data))
}

func TestOpenPrivilegedTargetStreamsThroughCat(t *testing.T) {
	t.Parallel()

	exec := &mocks.MockCommandExecutor{}
	exec.On("StreamOutput", mock.Anything, "", "sudo",
		[]string{"-n", "cat", "/media/root-only/dump.bin"}).
		Return(io.NopCloser(strings.NewReader("piped content")), nil).Once()

	svc := newTestService(afero.NewMemMapFs(), exec)

	rc, err := svc.Open(t.Context(), Target{
		Path:   "/media/root-only/dump.bin",
		Direct: false,
	})
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "piped content", string(data))
	exec.AssertExpectations(t)
}

func TestOpenDirectoryRefused(t *testing.T) {
	t.Parallel()

	svc := newTestService(afero.NewMemMapFs(), &mocks.MockCommandExecutor{})

	_, err := svc.Open(t.Context(), Target{Path: "/media/x", IsDir: true})
	require.ErrorIs(t, err, ErrIsDirectory)
}

func TestContentTypeFor(t *testing.T) {
	t.Parallel()

	tests := []struct{ path, want string }{
		{"/media/x/movie.mp4", "video/mp4"},
		{"/media/x/doc.PDF", "application/pdf"},
		{"/media/x/page.html", "text/html; charset=utf-8"},
		{"/media/x/archive.tar.gz", "application/gzip"},
		{"/media/x/unknown.xyz", "application/octet-stream"},
		{"/media/x/no_extension", "application/octet-stream"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ContentTypeFor(tt.path), tt.path)
	}
}
