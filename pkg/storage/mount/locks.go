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
	"sync"

	"github.com/ArcelliteProject/arcellite-storage/pkg/helpers/syncutil"
)

// deviceLocks serializes mount/unmount attempts per device name. Concurrent
// requests against the same device queue; requests against different devices
// proceed independently.
type deviceLocks struct {
	locks map[string]*sync.Mutex
	mu    syncutil.Mutex
}

func newDeviceLocks() *deviceLocks {
	return &deviceLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the named device and returns the unlock func. Entries are
// never removed: the set of device names a host ever sees is tiny.
func (d *deviceLocks) acquire(device string) func() {
	d.mu.Lock()
	l, ok := d.locks[device]
	if !ok {
		l = &sync.Mutex{}
		d.locks[device] = l
	}
	d.mu.Unlock()

	l.Lock()
	return l.Unlock
}
