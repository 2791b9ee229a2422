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

package hotplug

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ArcelliteProject/arcellite-storage/pkg/storage/devices"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// fakeLister serves a mutable device set.
type fakeLister struct {
	mu   sync.Mutex
	devs []devices.Device
	err  error
}

func (f *fakeLister) List(_ context.Context) (devices.RootInfo, []devices.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return devices.RootInfo{}, nil, f.err
	}
	out := make([]devices.Device, len(f.devs))
	copy(out, f.devs)
	return devices.RootInfo{}, out, nil
}

func (f *fakeLister) set(devs ...devices.Device) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devs = devs
}

func dev(name string) devices.Device {
	return devices.Device{Name: name, DeviceType: devices.TypeRemovable}
}

func recvEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for hotplug event")
		return Event{}
	}
}

func TestSubscribeReturnsInitialSnapshot(t *testing.T) {
	t.Parallel()
	defer goleak.VerifyNone(t,
		// Sibling parallel tests park in the testing framework; those
		// goroutines are not leaks from the code under test.
		goleak.IgnoreTopFunction("testing.(*testState).waitParallel"),
		goleak.IgnoreTopFunction("testing.tRunner.func1"),
	)

	lister := &fakeLister{}
	lister.set(dev("sdb"))
	n := NewNotifier(lister, clockwork.NewFakeClock(), 3*time.Second)

	id, snapshot, _, err := n.Subscribe(t.Context())
	require.NoError(t, err)
	defer n.Unsubscribe(id)

	require.Len(t, snapshot, 1)
	assert.Equal(t, "sdb", snapshot[0].Name)
	assert.Equal(t, 1, n.Subscribers())
}

func TestSubscribeFailsWhenInitialListFails(t *testing.T) {
	t.Parallel()
	defer goleak.VerifyNone(t,
		// Sibling parallel tests park in the testing framework; those
		// goroutines are not leaks from the code under test.
		goleak.IgnoreTopFunction("testing.(*testState).waitParallel"),
		goleak.IgnoreTopFunction("testing.tRunner.func1"),
	)

	lister := &fakeLister{err: errors.New("lsblk not found")}
	n := NewNotifier(lister, clockwork.NewFakeClock(), 3*time.Second)

	_, _, _, err := n.Subscribe(t.Context())
	require.Error(t, err)
	assert.Zero(t, n.Subscribers())
}

func TestChangeEventsCarryDiffAndFullSet(t *testing.T) {
	t.Parallel()
	defer goleak.VerifyNone(t,
		// Sibling parallel tests park in the testing framework; those
		// goroutines are not leaks from the code under test.
		goleak.IgnoreTopFunction("testing.(*testState).waitParallel"),
		goleak.IgnoreTopFunction("testing.tRunner.func1"),
	)

	clock := clockwork.NewFakeClock()
	lister := &fakeLister{}
	lister.set(dev("sdb"))
	n := NewNotifier(lister, clock, 3*time.Second)

	id, _, events, err := n.Subscribe(t.Context())
	require.NoError(t, err)
	defer n.Unsubscribe(id)

	// Insertion.
	lister.set(dev("sdb"), dev("sdc"))
	clock.BlockUntil(1)
	clock.Advance(3 * time.Second)

	ev := recvEvent(t, events)
	assert.Equal(t, EventChange, ev.Type)
	require.Len(t, ev.Added, 1)
	assert.Equal(t, "sdc", ev.Added[0].Name)
	assert.Empty(t, ev.Removed)
	assert.Len(t, ev.Devices, 2)

	// Removal.
	lister.set(dev("sdb"))
	clock.Advance(3 * time.Second)

	ev = recvEvent(t, events)
	assert.Equal(t, EventChange, ev.Type)
	assert.Empty(t, ev.Added)
	assert.Equal(t, []string{"sdc"}, ev.Removed)
	assert.Len(t, ev.Devices, 1)
}

func TestIdenticalSnapshotEmitsNothing(t *testing.T) {
	t.Parallel()
	defer goleak.VerifyNone(t,
		// Sibling parallel tests park in the testing framework; those
		// goroutines are not leaks from the code under test.
		goleak.IgnoreTopFunction("testing.(*testState).waitParallel"),
		goleak.IgnoreTopFunction("testing.tRunner.func1"),
	)

	clock := clockwork.NewFakeClock()
	lister := &fakeLister{}
	lister.set(dev("sdb"))
	n := NewNotifier(lister, clock, 3*time.Second)

	id, _, events, err := n.Subscribe(t.Context())
	require.NoError(t, err)
	defer n.Unsubscribe(id)

	// Several ticks over an unchanged device set.
	clock.BlockUntil(1)
	clock.Advance(3 * time.Second)
	clock.Advance(3 * time.Second)

	// Then a real change: the first and only event delivered must be it.
	lister.set(dev("sdb"), dev("sdd"))
	clock.Advance(3 * time.Second)

	ev := recvEvent(t, events)
	require.Len(t, ev.Added, 1)
	assert.Equal(t, "sdd", ev.Added[0].Name)
}

func TestPollFailureKeepsPreviousSnapshot(t *testing.T) {
	t.Parallel()
	defer goleak.VerifyNone(t,
		// Sibling parallel tests park in the testing framework; those
		// goroutines are not leaks from the code under test.
		goleak.IgnoreTopFunction("testing.(*testState).waitParallel"),
		goleak.IgnoreTopFunction("testing.tRunner.func1"),
	)

	clock := clockwork.NewFakeClock()
	lister := &fakeLister{}
	lister.set(dev("sdb"))
	n := NewNotifier(lister, clock, 3*time.Second)

	id, _, events, err := n.Subscribe(t.Context())
	require.NoError(t, err)
	defer n.Unsubscribe(id)

	// A failing poll must not produce a "removed everything" event.
	lister.mu.Lock()
	lister.err = errors.New("transient lsblk failure")
	lister.mu.Unlock()
	clock.BlockUntil(1)
	clock.Advance(3 * time.Second)

	lister.mu.Lock()
	lister.err = nil
	lister.mu.Unlock()
	lister.set(dev("sdb"), dev("sdc"))
	clock.Advance(3 * time.Second)

	ev := recvEvent(t, events)
	require.Len(t, ev.Added, 1)
	assert.Equal(t, "sdc", ev.Added[0].Name)
	assert.Empty(t, ev.Removed)
}

func TestLastUnsubscribeStopsPoller(t *testing.T) {
	t.Parallel()
	defer goleak.VerifyNone(t,
		// Sibling parallel tests park in the testing framework; those
		// goroutines are not leaks from the code under test.
		goleak.IgnoreTopFunction("testing.(*testState).waitParallel"),
		goleak.IgnoreTopFunction("testing.tRunner.func1"),
	)

	lister := &fakeLister{}
	n := NewNotifier(lister, clockwork.NewFakeClock(), 3*time.Second)

	id1, _, _, err := n.Subscribe(t.Context())
	require.NoError(t, err)
	id2, _, _, err := n.Subscribe(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, n.Subscribers())

	n.Unsubscribe(id1)
	assert.Equal(t, 1, n.Subscribers())

	// Unsubscribe blocks until the poll goroutine has exited, so goleak
	// verifies the shutdown.
	n.Unsubscribe(id2)
	assert.Zero(t, n.Subscribers())

	// Idempotent.
	n.Unsubscribe(id2)
}

func TestDiffSnapshots(t *testing.T) {
	t.Parallel()

	added, removed := diffSnapshots(
		[]devices.Device{dev("sdb"), dev("sdc")},
		[]devices.Device{dev("sdc"), dev("sdd")},
	)
	require.Len(t, added, 1)
	assert.Equal(t, "sdd", added[0].Name)
	assert.Equal(t, []string{"sdb"}, removed)

	added, removed = diffSnapshots(nil, nil)
	assert.Empty(t, added)
	assert.Empty(t, removed)
}
