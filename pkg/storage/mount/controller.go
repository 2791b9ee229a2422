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

// Package mount performs privileged mount and unmount of removable devices.
//
// The controller holds no mount-state of its own: every operation re-queries
// the host mount table through the enumerator, so state can never go stale.
// Attempts against the same device are serialized with a per-device lock;
// the kernel does not protect concurrent mount/unmount of one partition.
package mount

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ArcelliteProject/arcellite-storage/pkg/storage/devices"
	"github.com/ArcelliteProject/arcellite-storage/pkg/storage/privileged"
	"github.com/rs/zerolog/log"
)

// PartitionResolver is the slice of the device enumerator the controller
// needs. Satisfied by *devices.Enumerator.
type PartitionResolver interface {
	FirstPartition(ctx context.Context, device string) (devices.Partition, error)
	Mountpoint(ctx context.Context, partition string) (string, error)
}

// Controller mounts and unmounts removable devices under a single mount root.
type Controller struct {
	resolver     PartitionResolver
	sudo         *privileged.Runner
	mountRoot    string
	uid          int
	gid          int
	mountTimeout time.Duration
	probeTimeout time.Duration
	locks        *deviceLocks
}

// Options configures a Controller.
type Options struct {
	MountRoot    string
	UID          int
	GID          int
	MountTimeout time.Duration
	ProbeTimeout time.Duration
}

func NewController(resolver PartitionResolver, sudo *privileged.Runner, opts Options) *Controller {
	return &Controller{
		resolver:     resolver,
		sudo:         sudo,
		mountRoot:    opts.MountRoot,
		uid:          opts.UID,
		gid:          opts.GID,
		mountTimeout: opts.MountTimeout,
		probeTimeout: opts.ProbeTimeout,
		locks:        newDeviceLocks(),
	}
}

// Mount mounts the first partition of the named device and returns the
// mountpoint. Mounting an already-mounted device returns its existing
// mountpoint without running any subprocess. A recursive chown on the
// fallback path can take tens of seconds on large volumes; callers should
// treat this as long-running.
func (c *Controller) Mount(ctx context.Context, device, password string) (string, error) {
	if !devices.ValidName(device) {
		return "", devices.ErrInvalidDevice
	}
	if password == "" {
		return "", privileged.ErrPasswordRequired
	}

	unlock := c.locks.acquire(device)
	defer unlock()

	probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	part, err := c.resolver.FirstPartition(probeCtx, device)
	if err != nil {
		return "", fmt.Errorf("resolving partition of %s: %w", device, err)
	}

	if mp, err := c.resolver.Mountpoint(probeCtx, part.Name); err != nil {
		return "", fmt.Errorf("querying mount table: %w", err)
	} else if mp != "" {
		log.Debug().Str("device", device).Str("mountpoint", mp).Msg("already mounted")
		return mp, nil
	}

	mountDir := filepath.Join(c.mountRoot, mountDirName(part))

	mountCtx, cancel := context.WithTimeout(ctx, c.mountTimeout)
	defer cancel()

	// The mount root may have been created by a package manager as
	// root-only; the service user must be able to traverse into it.
	if _, err := c.sudo.Run(mountCtx, password, "chmod", "755", c.mountRoot); err != nil {
		return "", fmt.Errorf("fixing mount root permissions: %w", err)
	}

	if _, err := c.sudo.Run(mountCtx, password, "mkdir", "-p", mountDir); err != nil {
		return "", fmt.Errorf("creating mount directory: %w", err)
	}

	if err := c.doMount(mountCtx, password, part.Name, mountDir); err != nil {
		return "", err
	}

	log.Info().
		Str("device", device).
		Str("partition", part.Name).
		Str("mountpoint", mountDir).
		Msg("mounted removable device")

	return mountDir, nil
}

// doMount tries an ownership-mapped mount first, then falls back to a plain
// mount plus recursive chown for filesystems that carry native ownership
// (ext4 and friends reject uid=/gid= options).
func (c *Controller) doMount(ctx context.Context, password, partition, mountDir string) error {
	dev := "/dev/" + partition
	opts := fmt.Sprintf("uid=%d,gid=%d,dmask=022,fmask=133", c.uid, c.gid)

	_, err := c.sudo.Run(ctx, password, "mount", "-o", opts, dev, mountDir)
	if err == nil || privileged.IsAlreadyMounted(err) {
		return nil
	}

	if !errors.Is(err, privileged.ErrUnsupportedOption) {
		return fmt.Errorf("mounting %s: %w", dev, err)
	}

	log.Debug().Str("partition", partition).Msg("ownership options rejected, plain mount fallback")

	_, err = c.sudo.Run(ctx, password, "mount", dev, mountDir)
	if err != nil && !privileged.IsAlreadyMounted(err) {
		return fmt.Errorf("mounting %s without options: %w", dev, err)
	}

	owner := strconv.Itoa(c.uid) + ":" + strconv.Itoa(c.gid)
	if _, err := c.sudo.Run(ctx, password, "chown", "-R", owner, mountDir); err != nil {
		return fmt.Errorf("chowning %s: %w", mountDir, err)
	}
	return nil
}

// Unmount unmounts the named device. A device with no live mountpoint is
// already-unmounted success. The emptied mount directory is removed
// best-effort.
func (c *Controller) Unmount(ctx context.Context, device, password string) error {
	if !devices.ValidName(device) {
		return devices.ErrInvalidDevice
	}
	if password == "" {
		return privileged.ErrPasswordRequired
	}

	unlock := c.locks.acquire(device)
	defer unlock()

	probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	part, err := c.resolver.FirstPartition(probeCtx, device)
	if err != nil {
		return fmt.Errorf("resolving partition of %s: %w", device, err)
	}

	mp, err := c.resolver.Mountpoint(probeCtx, part.Name)
	if err != nil {
		return fmt.Errorf("querying mount table: %w", err)
	}
	if mp == "" {
		log.Debug().Str("device", device).Msg("not mounted, nothing to do")
		return nil
	}

	umountCtx, cancel := context.WithTimeout(ctx, c.mountTimeout)
	defer cancel()

	if _, err := c.sudo.Run(umountCtx, password, "umount", mp); err != nil {
		return fmt.Errorf("unmounting %s: %w", mp, err)
	}

	// Only clean directories we would have created. Removal failure leaves
	// an empty directory behind, which is harmless.
	if filepath.Dir(mp) == filepath.Clean(c.mountRoot) {
		if _, err := c.sudo.Run(umountCtx, password, "rmdir", mp); err != nil {
			log.Warn().Err(err).Str("dir", mp).Msg("could not remove mount directory")
		}
	}

	log.Info().Str("device", device).Str("mountpoint", mp).Msg("unmounted removable device")
	return nil
}
