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

// Package hotplug detects device arrival and removal by polling the block
// device enumerator and diffing successive snapshots.
//
// One shared poller serves all subscribers. It starts when the first
// subscriber connects and stops when the last one leaves, so an idle service
// runs no device queries at all.
package hotplug

import (
	"context"
	"slices"
	"time"

	"github.com/ArcelliteProject/arcellite-storage/pkg/helpers/syncutil"
	"github.com/ArcelliteProject/arcellite-storage/pkg/storage/devices"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Event types pushed to subscribers.
const (
	EventInit   = "init"
	EventChange = "change"
)

// Event is a device-set change pushed to subscribers.
type Event struct {
	Type    string           `json:"type"`
	Added   []devices.Device `json:"added,omitempty"`
	Removed []string         `json:"removed,omitempty"`
	Devices []devices.Device `json:"devices"`
}

// DeviceLister is the slice of the enumerator the notifier polls.
// Satisfied by *devices.Enumerator.
type DeviceLister interface {
	List(ctx context.Context) (devices.RootInfo, []devices.Device, error)
}

const subscriberBuffer = 8

// Notifier polls for device changes and fans events out to subscribers.
type Notifier struct {
	lister   DeviceLister
	clock    clockwork.Clock
	interval time.Duration

	mu       syncutil.Mutex
	subs     map[uuid.UUID]chan Event
	snapshot []devices.Device
	running  bool
	stop     chan struct{}
	done     chan struct{}
}

func NewNotifier(lister DeviceLister, clock clockwork.Clock, interval time.Duration) *Notifier {
	return &Notifier{
		lister:   lister,
		clock:    clock,
		interval: interval,
		subs:     make(map[uuid.UUID]chan Event),
	}
}

// Subscribe registers a new subscriber and returns its id, the current
// device snapshot (for the init event) and the event channel. The channel is
// buffered; a subscriber that falls behind loses events rather than stalling
// the poller. The first subscriber starts the shared poll loop.
func (n *Notifier) Subscribe(ctx context.Context) (uuid.UUID, []devices.Device, <-chan Event, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.running {
		// Take the initial snapshot synchronously so the init event
		// reflects the state at connect time, not the next tick.
		_, devs, err := n.lister.List(ctx)
		if err != nil {
			return uuid.Nil, nil, nil, err
		}
		n.snapshot = devs
		n.stop = make(chan struct{})
		n.done = make(chan struct{})
		n.running = true
		go n.poll(n.stop, n.done)
		log.Debug().Dur("interval", n.interval).Msg("hotplug poller started")
	}

	id := uuid.New()
	ch := make(chan Event, subscriberBuffer)
	n.subs[id] = ch

	return id, slices.Clone(n.snapshot), ch, nil
}

// Unsubscribe removes a subscriber and closes its channel. Idempotent. The
// last departure stops the poll loop and waits for it to exit, so no timer
// or goroutine can outlive the subscriber set.
func (n *Notifier) Unsubscribe(id uuid.UUID) {
	n.mu.Lock()
	ch, ok := n.subs[id]
	if !ok {
		n.mu.Unlock()
		return
	}
	delete(n.subs, id)

	var stop, done chan struct{}
	if len(n.subs) == 0 && n.running {
		n.running = false
		stop, done = n.stop, n.done
	}
	n.mu.Unlock()

	close(ch)
	if stop != nil {
		close(stop)
		<-done
		log.Debug().Msg("hotplug poller stopped, no subscribers left")
	}
}

// Subscribers returns the current subscriber count.
func (n *Notifier) Subscribers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

func (n *Notifier) poll(stop, done chan struct{}) {
	defer close(done)

	ticker := n.clock.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			n.pollOnce()
		}
	}
}

func (n *Notifier) pollOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), n.interval)
	defer cancel()

	_, devs, err := n.lister.List(ctx)
	if err != nil {
		// Transient enumeration failures keep the previous snapshot; the
		// next tick retries naturally.
		log.Error().Err(err).Msg("hotplug poll failed")
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	added, removed := diffSnapshots(n.snapshot, devs)
	if len(added) == 0 && len(removed) == 0 {
		return
	}

	n.snapshot = devs
	ev := Event{Type: EventChange, Added: added, Removed: removed, Devices: devs}

	for id, ch := range n.subs {
		// Sends happen under mu so Unsubscribe can never close a channel
		// mid-send.
		select {
		case ch <- ev:
		default:
			log.Warn().Str("subscriber", id.String()).Msg("dropping hotplug event, subscriber too slow")
		}
	}

	log.Info().
		Int("added", len(added)).
		Int("removed", len(removed)).
		Msg("device set changed")
}

// diffSnapshots compares device sets by name. Added entries carry the full
// enriched Device; removed entries are names only, the device is gone.
func diffSnapshots(prev, curr []devices.Device) (added []devices.Device, removed []string) {
	prevNames := make(map[string]struct{}, len(prev))
	for _, d := range prev {
		prevNames[d.Name] = struct{}{}
	}
	currNames := make(map[string]struct{}, len(curr))
	for _, d := range curr {
		currNames[d.Name] = struct{}{}
	}

	for _, d := range curr {
		if _, ok := prevNames[d.Name]; !ok {
			added = append(added, d)
		}
	}
	for _, d := range prev {
		if _, ok := currNames[d.Name]; !ok {
			removed = append(removed, d.Name)
		}
	}
	return added, removed
}
