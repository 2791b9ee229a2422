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

package devices

import (
	"context"
	"fmt"
	"strings"

	"github.com/ArcelliteProject/arcellite-storage/pkg/helpers/command"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/disk"
)

// lsblkFields is the column set requested from lsblk for full enumeration.
const lsblkFields = "NAME,MODEL,LABEL,UUID,SIZE,TYPE,RM,TRAN,MOUNTPOINT"

// Enumerator lists block devices and resolves partitions via lsblk.
type Enumerator struct {
	exec  command.Executor
	usage func(path string) (*disk.UsageStat, error)
}

// NewEnumerator returns an Enumerator backed by the given command executor.
func NewEnumerator(exec command.Executor) *Enumerator {
	return &Enumerator{
		exec:  exec,
		usage: disk.Usage,
	}
}

// List returns the root filesystem info and all removable devices currently
// attached. Safe to call at sub-second frequency; every call is a fresh
// lsblk query.
func (e *Enumerator) List(ctx context.Context) (RootInfo, []Device, error) {
	tree, err := e.queryTree(ctx, nil)
	if err != nil {
		return RootInfo{}, nil, err
	}

	root := RootInfo{}
	rootFound := false
	removable := make([]Device, 0, len(tree.BlockDevices))

	for i := range tree.BlockDevices {
		dev := &tree.BlockDevices[i]
		if dev.Type != "disk" {
			continue
		}

		if !rootFound && dev.hasMountpoint("/") {
			root.Model = strings.TrimSpace(dev.Model)
			rootFound = true
			continue
		}

		if dev.removable() {
			removable = append(removable, Device{
				Name:       dev.Name,
				Model:      strings.TrimSpace(dev.Model),
				Label:      dev.firstLabel(),
				SizeHuman:  humanize.Bytes(uint64(dev.Size)), //nolint:gosec // lsblk sizes are non-negative
				DeviceType: TypeRemovable,
			})
		}
	}

	if !rootFound {
		log.Warn().Msg("root filesystem device not found in lsblk output")
	}

	if usage, err := e.usage("/"); err == nil {
		root.SizeHuman = humanize.Bytes(usage.Total)
		root.UsedHuman = humanize.Bytes(usage.Used)
		root.FreeHuman = humanize.Bytes(usage.Free)
		root.UsedPercent = usage.UsedPercent
	} else {
		log.Error().Err(err).Msg("querying root filesystem usage")
	}

	return root, removable, nil
}

// FirstPartition resolves the first partition of the named device.
func (e *Enumerator) FirstPartition(ctx context.Context, device string) (Partition, error) {
	if !ValidName(device) {
		return Partition{}, ErrInvalidDevice
	}

	tree, err := e.queryTree(ctx, []string{"/dev/" + device})
	if err != nil {
		return Partition{}, err
	}

	for i := range tree.BlockDevices {
		for _, child := range tree.BlockDevices[i].Children {
			if child.Type == "part" {
				return Partition{
					Name:  child.Name,
					Label: child.Label,
					UUID:  child.UUID,
				}, nil
			}
		}
	}

	return Partition{}, ErrNoPartition
}

// Mountpoint returns the live mountpoint of a partition, or "" when the
// partition is not mounted. The mount table is re-queried on every call;
// the service keeps no mount-state cache of its own.
func (e *Enumerator) Mountpoint(ctx context.Context, partition string) (string, error) {
	if !ValidName(partition) {
		return "", ErrInvalidDevice
	}

	out, err := e.exec.Output(ctx, "lsblk", "-no", "MOUNTPOINT", "/dev/"+partition)
	if err != nil {
		return "", fmt.Errorf("querying mountpoint of %s: %w", partition, err)
	}

	for _, line := range strings.Split(string(out), "\n") {
		if mp := strings.TrimSpace(line); mp != "" {
			return mp, nil
		}
	}
	return "", nil
}

func (e *Enumerator) queryTree(ctx context.Context, extra []string) (*lsblkTree, error) {
	args := []string{"-J", "-b", "-o", lsblkFields}
	args = append(args, extra...)

	out, err := e.exec.Output(ctx, "lsblk", args...)
	if err != nil {
		return nil, fmt.Errorf("running lsblk: %w", err)
	}

	tree, err := parseLsblk(out)
	if err != nil {
		return nil, fmt.Errorf("parsing lsblk output: %w", err)
	}
	return tree, nil
}
