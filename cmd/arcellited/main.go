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

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ArcelliteProject/arcellite-storage/pkg/api"
	"github.com/ArcelliteProject/arcellite-storage/pkg/config"
	"github.com/ArcelliteProject/arcellite-storage/pkg/helpers"
	"github.com/ArcelliteProject/arcellite-storage/pkg/helpers/command"
	"github.com/ArcelliteProject/arcellite-storage/pkg/storage/devices"
	"github.com/ArcelliteProject/arcellite-storage/pkg/storage/extfs"
	"github.com/ArcelliteProject/arcellite-storage/pkg/storage/hotplug"
	"github.com/ArcelliteProject/arcellite-storage/pkg/storage/mount"
	"github.com/ArcelliteProject/arcellite-storage/pkg/storage/privileged"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

func defaultConfigDir() string {
	if env := os.Getenv(config.CfgEnv); env != "" {
		return filepath.Dir(env)
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "/etc/arcellite"
	}
	return filepath.Join(dir, "arcellite")
}

func run(configDir string, port int, console bool) error {
	cfg, err := config.NewConfig(configDir, config.BaseDefaults)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if port > 0 {
		cfg.SetAPIPort(port)
	}

	var extraWriters []io.Writer
	if console {
		extraWriters = append(extraWriters, zerolog.ConsoleWriter{Out: os.Stderr})
	}
	if err := helpers.InitLogging(configDir, extraWriters); err != nil {
		return fmt.Errorf("error initializing logging: %w", err)
	}
	if cfg.DebugLogging() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	exec := &command.RealExecutor{}
	clock := clockwork.NewRealClock()

	enum := devices.NewEnumerator(exec)
	sudo := privileged.NewRunner(exec)
	mounts := mount.NewController(enum, sudo, mount.Options{
		MountRoot:    cfg.MountRoot(),
		UID:          os.Getuid(),
		GID:          os.Getgid(),
		MountTimeout: cfg.MountTimeout(),
		ProbeTimeout: cfg.ProbeTimeout(),
	})
	notifier := hotplug.NewNotifier(enum, clock, cfg.PollInterval())
	files := extfs.NewService(afero.NewOsFs(), exec, sudo, cfg.AllowedRoots(), cfg.ProbeTimeout())

	srv := api.NewServer(cfg, enum, mounts, notifier, files, clock)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	log.Info().
		Str("config", cfg.Path()).
		Str("mountRoot", cfg.MountRoot()).
		Msg("arcellite storage service starting")

	return api.Start(ctx, cfg, srv)
}

func main() {
	configDir := flag.String("config-dir", defaultConfigDir(), "directory for config and logs")
	port := flag.Int("port", 0, "override API listen port")
	console := flag.Bool("console", false, "also log to stderr")
	flag.Parse()

	if err := run(*configDir, *port, *console); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
