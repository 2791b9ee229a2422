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

// Package config loads and persists the storage service configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ArcelliteProject/arcellite-storage/pkg/helpers/syncutil"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

const (
	SchemaVersion = 1
	CfgEnv        = "ARCELLITE_CFG"
	CfgFile       = "storage.toml"
	LogFile       = "arcellite-storage.log"
)

type Values struct {
	Service      Service `toml:"service,omitempty"`
	Storage      Storage `toml:"storage,omitempty"`
	ConfigSchema int     `toml:"config_schema"`
	DebugLogging bool    `toml:"debug_logging"`
}

type Service struct {
	APIPort   *int   `toml:"api_port,omitempty"`
	APIListen string `toml:"api_listen,omitempty"`
}

type Storage struct {
	MountRoot        string   `toml:"mount_root,omitempty"`
	AllowedRoots     []string `toml:"allowed_roots,omitempty,multiline"`
	PollIntervalSecs *int     `toml:"poll_interval_secs,omitempty"`
	KeepAliveSecs    *int     `toml:"keep_alive_secs,omitempty"`
	MountTimeoutSecs *int     `toml:"mount_timeout_secs,omitempty"`
	ProbeTimeoutSecs *int     `toml:"probe_timeout_secs,omitempty"`
}

// BaseDefaults are the values a fresh install starts from.
var BaseDefaults = Values{
	ConfigSchema: SchemaVersion,
	Storage: Storage{
		MountRoot:    "/media/arcellite",
		AllowedRoots: []string{"/media/", "/run/media/", "/mnt/"},
	},
}

type Instance struct {
	cfgPath  string
	vals     Values
	defaults Values
	mu       syncutil.RWMutex
}

//nolint:gocritic // config struct copied for immutability
func NewConfig(configDir string, defaults Values) (*Instance, error) {
	cfgPath := os.Getenv(CfgEnv)
	log.Debug().Msgf("env config path: %s", cfgPath)

	if cfgPath == "" {
		cfgPath = filepath.Join(configDir, CfgFile)
	}

	cfg := Instance{
		mu:       syncutil.RWMutex{},
		cfgPath:  cfgPath,
		vals:     defaults,
		defaults: defaults,
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		log.Info().Msg("saving new default config to disk")
		if err := cfg.Save(); err != nil {
			return nil, fmt.Errorf("saving default config: %w", err)
		}
		return &cfg, nil
	}

	if err := cfg.Load(); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return &cfg, nil
}

func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return ErrNoConfigPath
	}

	data, err := os.ReadFile(c.cfgPath)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	vals := c.defaults
	if err := toml.Unmarshal(data, &vals); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	c.vals = vals
	return nil
}

func (c *Instance) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.cfgPath == "" {
		return ErrNoConfigPath
	}

	if err := os.MkdirAll(filepath.Dir(c.cfgPath), 0o750); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := toml.Marshal(&c.vals)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	if err := os.WriteFile(c.cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

func (c *Instance) Path() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfgPath
}

func (c *Instance) DebugLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DebugLogging
}

// NewTestConfig returns an in-memory Instance seeded with defaults, for tests
// that need accessor behavior without touching disk.
//
//nolint:gocritic // config struct copied for immutability
func NewTestConfig(defaults Values) *Instance {
	return &Instance{
		mu:       syncutil.RWMutex{},
		vals:     defaults,
		defaults: defaults,
	}
}
