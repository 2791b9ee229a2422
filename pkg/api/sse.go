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

package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ArcelliteProject/arcellite-storage/pkg/storage/devices"
	"github.com/ArcelliteProject/arcellite-storage/pkg/storage/hotplug"
	"github.com/rs/zerolog/log"
)

func writeSSEEvent(w io.Writer, ev hotplug.Event) error {
	if ev.Devices == nil {
		ev.Devices = []devices.Device{}
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("error marshalling event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("error writing event: %w", err)
	}
	return nil
}

// handleUSBEvents streams device hotplug events as server-sent events. The
// first frame is always an init event with the current device set; comment
// frames keep idle connections alive through proxies.
func (s *Server) handleUSBEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	id, initial, events, err := s.notifier.Subscribe(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("error subscribing to hotplug events")
		writeError(w, http.StatusInternalServerError, "error reading storage devices")
		return
	}
	defer s.notifier.Unsubscribe(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	initEvent := hotplug.Event{Type: hotplug.EventInit, Devices: initial}
	if err := writeSSEEvent(w, initEvent); err != nil {
		log.Debug().Err(err).Msg("sse client gone before init event")
		return
	}
	flusher.Flush()

	keepAlive := s.clock.NewTicker(s.cfg.KeepAliveInterval())
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			if err := writeSSEEvent(w, ev); err != nil {
				log.Debug().Err(err).Msg("sse client disconnected")
				return
			}
			flusher.Flush()
		case <-keepAlive.Chan():
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				log.Debug().Err(err).Msg("sse client disconnected")
				return
			}
			flusher.Flush()
		}
	}
}
