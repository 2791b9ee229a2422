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

// Package api exposes the storage service over HTTP: device enumeration,
// privileged mount/unmount, hotplug events over SSE, and external file
// operations.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ArcelliteProject/arcellite-storage/pkg/api/middleware"
	"github.com/ArcelliteProject/arcellite-storage/pkg/config"
	"github.com/ArcelliteProject/arcellite-storage/pkg/storage/extfs"
	"github.com/ArcelliteProject/arcellite-storage/pkg/storage/hotplug"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Mounter performs privileged mount and unmount operations.
// Satisfied by *mount.Controller.
type Mounter interface {
	Mount(ctx context.Context, device, password string) (string, error)
	Unmount(ctx context.Context, device, password string) error
}

// Server holds the API's collaborators and builds its router.
type Server struct {
	cfg      *config.Instance
	lister   hotplug.DeviceLister
	mounter  Mounter
	notifier *hotplug.Notifier
	files    *extfs.Service
	validate *validator.Validate
	clock    clockwork.Clock
	limiter  *middleware.IPRateLimiter
}

func NewServer(
	cfg *config.Instance,
	lister hotplug.DeviceLister,
	mounter Mounter,
	notifier *hotplug.Notifier,
	files *extfs.Service,
	clock clockwork.Clock,
) *Server {
	return &Server{
		cfg:      cfg,
		lister:   lister,
		mounter:  mounter,
		notifier: notifier,
		files:    files,
		validate: newValidator(),
		clock:    clock,
		limiter:  middleware.NewIPRateLimiter(),
	}
}

// Routes builds the chi router. Streaming routes (SSE, serve-external)
// bypass the request timeout and cache-busting middleware; everything else
// gets both.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	jsonWrap := func(h http.HandlerFunc) http.Handler {
		return chimiddleware.NoCache(chimiddleware.Timeout(config.APIRequestTimeout)(h))
	}

	r.Route("/api/system", func(r chi.Router) {
		r.Method(http.MethodGet, "/storage", jsonWrap(s.handleStorage))
		r.Get("/usb-events", s.handleUSBEvents)

		// Mount operations run up to the full mount timeout (recursive
		// chown on a large volume), so no request timeout here; the
		// controller owns the budget.
		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.NoCache)
			r.Use(middleware.RateLimit(s.limiter))
			r.Post("/mount", s.handleMount)
			r.Post("/unmount", s.handleUnmount)
		})
	})

	r.Route("/api/files", func(r chi.Router) {
		r.Method(http.MethodGet, "/list-external", jsonWrap(s.handleListExternal))
		r.Get("/serve-external", s.handleServeExternal)
		r.Method(http.MethodPost, "/delete-external", jsonWrap(s.handleDeleteExternal))
		r.Method(http.MethodPost, "/rename-external", jsonWrap(s.handleRenameExternal))
		r.Method(http.MethodPost, "/mkdir-external", jsonWrap(s.handleMkdirExternal))
	})

	return r
}

// Start runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func Start(ctx context.Context, cfg *config.Instance, srv *Server) error {
	httpSrv := &http.Server{
		Addr:              cfg.APIListen(),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srv.limiter.StartCleanup(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("listen", httpSrv.Addr).Msg("starting http server")
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx) //nolint:wrapcheck // shutdown error is terminal
	})

	return g.Wait() //nolint:wrapcheck // first error is the reason the service stopped
}
