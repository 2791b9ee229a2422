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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ArcelliteProject/arcellite-storage/pkg/helpers/command"
	"github.com/ArcelliteProject/arcellite-storage/pkg/storage/devices"
	"github.com/ArcelliteProject/arcellite-storage/pkg/storage/privileged"
	"github.com/ArcelliteProject/arcellite-storage/pkg/testing/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// stubResolver satisfies PartitionResolver with canned answers.
type stubResolver struct {
	part    devices.Partition
	partErr error
	mp      string
	mpErr   error
}

func (s *stubResolver) FirstPartition(_ context.Context, _ string) (devices.Partition, error) {
	return s.part, s.partErr
}

func (s *stubResolver) Mountpoint(_ context.Context, _ string) (string, error) {
	return s.mp, s.mpErr
}

func newTestController(resolver PartitionResolver, exec *mocks.MockCommandExecutor) *Controller {
	return NewController(resolver, privileged.NewRunner(exec), Options{
		MountRoot:    "/media/arcellite",
		UID:          1000,
		GID:          1000,
		MountTimeout: 60 * time.Second,
		ProbeTimeout: 10 * time.Second,
	})
}

func sudoArgs(argv ...string) []string {
	return append([]string{"-S", "-k", "-p", ""}, argv...)
}

func exitErr(stderr string) error {
	return &command.ExitError{
		Err:    errors.New("exit status 1"),
		Stderr: []byte(stderr),
	}
}

func TestMountRejectsInvalidDeviceWithoutSubprocess(t *testing.T) {
	t.Parallel()

	exec := &mocks.MockCommandExecutor{}
	ctrl := newTestController(&stubResolver{}, exec)

	for _, name := range []string{"", "sdb; rm -rf /", "../sdb", "/dev/sdb", "SDB"} {
		_, err := ctrl.Mount(t.Context(), name, "hunter2")
		require.ErrorIs(t, err, devices.ErrInvalidDevice, name)
	}
	exec.AssertExpectations(t)
}

func TestMountRejectsEmptyPassword(t *testing.T) {
	t.Parallel()

	exec := &mocks.MockCommandExecutor{}
	ctrl := newTestController(&stubResolver{}, exec)

	_, err := ctrl.Mount(t.Context(), "sdb", "")
	require.ErrorIs(t, err, privileged.ErrPasswordRequired)
	exec.AssertExpectations(t)
}

func TestMountAlreadyMountedReturnsExistingMountpoint(t *testing.T) {
	t.Parallel()

	// No exec expectations: a mounted device must not trigger sudo at all.
	exec := &mocks.MockCommandExecutor{}
	resolver := &stubResolver{
		part: devices.Partition{Name: "sdb1", Label: "BACKUP"},
		mp:   "/media/arcellite/BACKUP",
	}

	mp, err := newTestController(resolver, exec).Mount(t.Context(), "sdb", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "/media/arcellite/BACKUP", mp)
	exec.AssertExpectations(t)
}

func TestMountHappyPath(t *testing.T) {
	t.Parallel()

	exec := &mocks.MockCommandExecutor{}
	exec.On("OutputWithInput", mock.Anything, "hunter2\n", "sudo",
		sudoArgs("chmod", "755", "/media/arcellite")).
		Return([]byte{}, nil).Once()
	exec.On("OutputWithInput", mock.Anything, "hunter2\n", "sudo",
		sudoArgs("mkdir", "-p", "/media/arcellite/BACKUP")).
		Return([]byte{}, nil).Once()
	exec.On("OutputWithInput", mock.Anything, "hunter2\n", "sudo",
		sudoArgs("mount", "-o", "uid=1000,gid=1000,dmask=022,fmask=133",
			"/dev/sdb1", "/media/arcellite/BACKUP")).
		Return([]byte{}, nil).Once()

	resolver := &stubResolver{part: devices.Partition{Name: "sdb1", Label: "BACKUP"}}

	mp, err := newTestController(resolver, exec).Mount(t.Context(), "sdb", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "/media/arcellite/BACKUP", mp)
	exec.AssertExpectations(t)
}

func TestMountFallsBackToUUIDDirName(t *testing.T) {
	t.Parallel()

	exec := &mocks.MockCommandExecutor{}
	exec.On("OutputWithInput", mock.Anything, mock.Anything, "sudo", mock.Anything).
		Return([]byte{}, nil)

	resolver := &stubResolver{
		part: devices.Partition{Name: "sdb1", Label: "bad/label", UUID: "cccc-dddd"},
	}

	mp, err := newTestController(resolver, exec).Mount(t.Context(), "sdb", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "/media/arcellite/cccc-dddd", mp)
}

func TestMountPlainFallbackOnUnsupportedOptions(t *testing.T) {
	t.Parallel()

	exec := &mocks.MockCommandExecutor{}
	exec.On("OutputWithInput", mock.Anything, "hunter2\n", "sudo",
		sudoArgs("chmod", "755", "/media/arcellite")).
		Return([]byte{}, nil).Once()
	exec.On("OutputWithInput", mock.Anything, "hunter2\n", "sudo",
		sudoArgs("mkdir", "-p", "/media/arcellite/BACKUP")).
		Return([]byte{}, nil).Once()
	// ext4 rejects the ownership-mapping options.
	exec.On("OutputWithInput", mock.Anything, "hunter2\n", "sudo",
		sudoArgs("mount", "-o", "uid=1000,gid=1000,dmask=022,fmask=133",
			"/dev/sdb1", "/media/arcellite/BACKUP")).
		Return([]byte(nil), exitErr("mount: wrong fs type, bad option, bad superblock")).Once()
	exec.On("OutputWithInput", mock.Anything, "hunter2\n", "sudo",
		sudoArgs("mount", "/dev/sdb1", "/media/arcellite/BACKUP")).
		Return([]byte{}, nil).Once()
	exec.On("OutputWithInput", mock.Anything, "hunter2\n", "sudo",
		sudoArgs("chown", "-R", "1000:1000", "/media/arcellite/BACKUP")).
		Return([]byte{}, nil).Once()

	resolver := &stubResolver{part: devices.Partition{Name: "sdb1", Label: "BACKUP"}}

	mp, err := newTestController(resolver, exec).Mount(t.Context(), "sdb", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "/media/arcellite/BACKUP", mp)
	exec.AssertExpectations(t)
}

func TestMountAlreadyMountedRaceIsSuccess(t *testing.T) {
	t.Parallel()

	exec := &mocks.MockCommandExecutor{}
	exec.On("OutputWithInput", mock.Anything, mock.Anything, "sudo",
		sudoArgs("chmod", "755", "/media/arcellite")).
		Return([]byte{}, nil).Once()
	exec.On("OutputWithInput", mock.Anything, mock.Anything, "sudo",
		sudoArgs("mkdir", "-p", "/media/arcellite/BACKUP")).
		Return([]byte{}, nil).Once()
	exec.On("OutputWithInput", mock.Anything, mock.Anything, "sudo",
		mock.MatchedBy(func(args []string) bool { return args[4] == "mount" })).
		Return([]byte(nil),
			exitErr("mount: /media/arcellite/BACKUP: /dev/sdb1 already mounted")).Once()

	resolver := &stubResolver{part: devices.Partition{Name: "sdb1", Label: "BACKUP"}}

	_, err := newTestController(resolver, exec).Mount(t.Context(), "sdb", "hunter2")
	require.NoError(t, err)
}

func TestMountSurfacesIncorrectPassword(t *testing.T) {
	t.Parallel()

	exec := &mocks.MockCommandExecutor{}
	exec.On("OutputWithInput", mock.Anything, mock.Anything, "sudo", mock.Anything).
		Return([]byte(nil), exitErr("sudo: 1 incorrect password attempt"))

	resolver := &stubResolver{part: devices.Partition{Name: "sdb1", Label: "BACKUP"}}

	_, err := newTestController(resolver, exec).Mount(t.Context(), "sdb", "wrong")
	require.ErrorIs(t, err, privileged.ErrIncorrectPassword)
}

func TestMountNoPartition(t *testing.T) {
	t.Parallel()

	exec := &mocks.MockCommandExecutor{}
	resolver := &stubResolver{partErr: devices.ErrNoPartition}

	_, err := newTestController(resolver, exec).Mount(t.Context(), "sdb", "hunter2")
	require.ErrorIs(t, err, devices.ErrNoPartition)
	exec.AssertExpectations(t)
}

func TestUnmountNotMountedIsSuccess(t *testing.T) {
	t.Parallel()

	// No exec expectations: nothing to unmount means no sudo.
	exec := &mocks.MockCommandExecutor{}
	resolver := &stubResolver{part: devices.Partition{Name: "sdb1"}, mp: ""}

	err := newTestController(resolver, exec).Unmount(t.Context(), "sdb", "hunter2")
	require.NoError(t, err)
	exec.AssertExpectations(t)
}

func TestUnmountRemovesOwnedMountDir(t *testing.T) {
	t.Parallel()

	exec := &mocks.MockCommandExecutor{}
	exec.On("OutputWithInput", mock.Anything, "hunter2\n", "sudo",
		sudoArgs("umount", "/media/arcellite/BACKUP")).
		Return([]byte{}, nil).Once()
	exec.On("OutputWithInput", mock.Anything, "hunter2\n", "sudo",
		sudoArgs("rmdir", "/media/arcellite/BACKUP")).
		Return([]byte{}, nil).Once()

	resolver := &stubResolver{
		part: devices.Partition{Name: "sdb1"},
		mp:   "/media/arcellite/BACKUP",
	}

	err := newTestController(resolver, exec).Unmount(t.Context(), "sdb", "hunter2")
	require.NoError(t, err)
	exec.AssertExpectations(t)
}

func TestUnmountLeavesForeignMountDirs(t *testing.T) {
	t.Parallel()

	// A device mounted by the desktop session lives outside our mount root;
	// unmount it but do not remove its directory.
	exec := &mocks.MockCommandExecutor{}
	exec.On("OutputWithInput", mock.Anything, "hunter2\n", "sudo",
		sudoArgs("umount", "/run/media/user/BACKUP")).
		Return([]byte{}, nil).Once()

	resolver := &stubResolver{
		part: devices.Partition{Name: "sdb1"},
		mp:   "/run/media/user/BACKUP",
	}

	err := newTestController(resolver, exec).Unmount(t.Context(), "sdb", "hunter2")
	require.NoError(t, err)
	exec.AssertExpectations(t)
}

func TestUnmountRejectsInvalidDevice(t *testing.T) {
	t.Parallel()

	exec := &mocks.MockCommandExecutor{}
	err := newTestController(&stubResolver{}, exec).Unmount(t.Context(), "sdb&&true", "hunter2")
	require.ErrorIs(t, err, devices.ErrInvalidDevice)
	exec.AssertExpectations(t)
}
