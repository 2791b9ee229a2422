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

package config

import (
	"errors"
	"strconv"
	"time"
)

var ErrNoConfigPath = errors.New("no config file path set")

const (
	DefaultAPIPort      = 7421
	DefaultPollInterval = 3 * time.Second
	DefaultKeepAlive    = 30 * time.Second
	DefaultMountTimeout = 60 * time.Second
	DefaultProbeTimeout = 10 * time.Second
	APIRequestTimeout   = 30 * time.Second
)

func (c *Instance) APIPort() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiPortLocked()
}

// apiPortLocked returns the API port. Caller must hold mu (read or write).
func (c *Instance) apiPortLocked() int {
	if c.vals.Service.APIPort == nil {
		return DefaultAPIPort
	}
	return *c.vals.Service.APIPort
}

func (c *Instance) SetAPIPort(port int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Service.APIPort = &port
}

func (c *Instance) APIListen() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Service.APIListen == "" {
		return ":" + strconv.Itoa(c.apiPortLocked())
	}
	return c.vals.Service.APIListen
}

func (c *Instance) MountRoot() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Storage.MountRoot == "" {
		return c.defaults.Storage.MountRoot
	}
	return c.vals.Storage.MountRoot
}

// AllowedRoots returns the list of mount-root prefixes that external file
// operations may touch. Always non-empty.
func (c *Instance) AllowedRoots() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.vals.Storage.AllowedRoots) == 0 {
		return c.defaults.Storage.AllowedRoots
	}
	return c.vals.Storage.AllowedRoots
}

func (c *Instance) PollInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return secsOr(c.vals.Storage.PollIntervalSecs, DefaultPollInterval)
}

func (c *Instance) KeepAliveInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return secsOr(c.vals.Storage.KeepAliveSecs, DefaultKeepAlive)
}

func (c *Instance) MountTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return secsOr(c.vals.Storage.MountTimeoutSecs, DefaultMountTimeout)
}

func (c *Instance) ProbeTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return secsOr(c.vals.Storage.ProbeTimeoutSecs, DefaultProbeTimeout)
}

func secsOr(v *int, fallback time.Duration) time.Duration {
	if v == nil || *v <= 0 {
		return fallback
	}
	return time.Duration(*v) * time.Second
}
