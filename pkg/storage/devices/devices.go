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

// Package devices queries the host's block-device topology via lsblk.
//
// Everything here is read-only and recomputed on every call: the enumerator
// never caches, so it cannot go stale between hotplug polls.
package devices

import (
	"errors"
	"regexp"
)

// Device is a removable or fixed block device attached to the host.
type Device struct {
	Name       string `json:"name"`
	Model      string `json:"model"`
	Label      string `json:"label"`
	SizeHuman  string `json:"size"`
	DeviceType string `json:"deviceType"`
}

// Device type values.
const (
	TypeRemovable = "removable"
	TypeFixed     = "fixed"
)

// RootInfo describes the root filesystem's device and usage.
type RootInfo struct {
	Model       string  `json:"model"`
	SizeHuman   string  `json:"size"`
	UsedHuman   string  `json:"used"`
	FreeHuman   string  `json:"free"`
	UsedPercent float64 `json:"usedPercent"`
}

// Partition is the first partition of a device, resolved lazily by the mount
// controllers. Not a stored entity.
type Partition struct {
	Name  string
	Label string
	UUID  string
}

// namePattern is the only shape of kernel device name accepted anywhere in
// the service. Names are interpolated into subprocess argv, so nothing else
// may pass.
var namePattern = regexp.MustCompile(`^[a-z0-9]+$`)

// ValidName reports whether name is a safe kernel block-device name (sdb,
// mmcblk0, nvme0n1).
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

var (
	// ErrNoPartition is returned when a device has no partitions to mount.
	ErrNoPartition = errors.New("device has no partitions")

	// ErrInvalidDevice is returned for device names that fail ValidName.
	ErrInvalidDevice = errors.New("invalid device name")

	// ErrNoRootDevice is returned when the root filesystem's backing disk
	// cannot be identified.
	ErrNoRootDevice = errors.New("root device not found")
)
