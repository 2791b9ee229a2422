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
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/ArcelliteProject/arcellite-storage/pkg/api/models"
	"github.com/ArcelliteProject/arcellite-storage/pkg/storage/devices"
	"github.com/ArcelliteProject/arcellite-storage/pkg/storage/extfs"
	"github.com/ArcelliteProject/arcellite-storage/pkg/storage/privileged"
	"github.com/rs/zerolog/log"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("error encoding response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}

func writeAuthError(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{
		Error:        msg,
		RequiresAuth: true,
	})
}

// mountError maps errors from the mount controller to HTTP responses.
// Unrecognized subprocess failures are logged in full but surfaced as an
// opaque message so raw sudo/mount stderr never reaches clients.
func mountError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, devices.ErrInvalidDevice),
		errors.Is(err, devices.ErrNoPartition):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, privileged.ErrPasswordRequired):
		writeAuthError(w, "Password required")
	case errors.Is(err, privileged.ErrIncorrectPassword):
		writeAuthError(w, "Incorrect password")
	default:
		log.Error().Err(err).Str("op", op).Msg("privileged operation failed")
		writeError(w, http.StatusInternalServerError, op+" failed")
	}
}

func (s *Server) handleStorage(w http.ResponseWriter, r *http.Request) {
	root, removable, err := s.lister.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("error enumerating storage devices")
		writeError(w, http.StatusInternalServerError, "error reading storage devices")
		return
	}
	if removable == nil {
		removable = []devices.Device{}
	}
	writeJSON(w, http.StatusOK, models.StorageResponse{
		RootStorage: root,
		Removable:   removable,
	})
}

func (s *Server) handleMount(w http.ResponseWriter, r *http.Request) {
	var req models.MountRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Password == "" {
		writeAuthError(w, "Password required")
		return
	}

	mp, err := s.mounter.Mount(r.Context(), req.Device, req.Password)
	if err != nil {
		mountError(w, "mount", err)
		return
	}
	writeJSON(w, http.StatusOK, models.MountResponse{OK: true, Mountpoint: mp})
}

func (s *Server) handleUnmount(w http.ResponseWriter, r *http.Request) {
	var req models.UnmountRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Password == "" {
		writeAuthError(w, "Password required")
		return
	}

	if err := s.mounter.Unmount(r.Context(), req.Device, req.Password); err != nil {
		mountError(w, "unmount", err)
		return
	}
	writeJSON(w, http.StatusOK, models.OKResponse{OK: true})
}

func (s *Server) handleListExternal(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	listing, err := s.files.List(r.Context(), path)
	if err != nil {
		if errors.Is(err, extfs.ErrPathNotAllowed) || errors.Is(err, extfs.ErrInvalidPath) {
			writeError(w, http.StatusForbidden, "path not allowed")
			return
		}
		log.Error().Err(err).Str("path", path).Msg("error listing external directory")
		writeError(w, http.StatusInternalServerError, "error listing directory")
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleServeExternal(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")

	target, err := s.files.Stat(r.Context(), path)
	if err != nil {
		switch {
		case errors.Is(err, extfs.ErrPathNotAllowed), errors.Is(err, extfs.ErrInvalidPath):
			writeError(w, http.StatusForbidden, "path not allowed")
		case errors.Is(err, extfs.ErrNotFound):
			writeError(w, http.StatusNotFound, "file not found")
		default:
			log.Error().Err(err).Str("path", path).Msg("error statting external file")
			writeError(w, http.StatusInternalServerError, "error reading file")
		}
		return
	}
	if target.IsDir {
		writeError(w, http.StatusBadRequest, "path is a directory")
		return
	}

	rc, err := s.files.Open(r.Context(), target)
	if err != nil {
		log.Error().Err(err).Str("path", target.Path).Msg("error opening external file")
		writeError(w, http.StatusInternalServerError, "error reading file")
		return
	}
	defer func(c io.Closer) {
		if closeErr := c.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Str("path", target.Path).Msg("error closing file stream")
		}
	}(rc)

	w.Header().Set("Content-Type", target.ContentType)
	if target.SizeBytes >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(target.SizeBytes, 10))
	}
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		// Headers are already written, nothing to send back.
		log.Debug().Err(err).Str("path", target.Path).Msg("file stream interrupted")
	}
}

// fileOpError maps errors from external write operations. These endpoints
// only distinguish client mistakes from server failures, so disallowed
// paths land in the 400 bucket.
func fileOpError(w http.ResponseWriter, op, path string, err error) {
	switch {
	case errors.Is(err, extfs.ErrPathNotAllowed),
		errors.Is(err, extfs.ErrInvalidPath),
		errors.Is(err, extfs.ErrInvalidName):
		writeError(w, http.StatusBadRequest, "invalid path")
	case errors.Is(err, extfs.ErrNotFound):
		writeError(w, http.StatusNotFound, "file not found")
	default:
		log.Error().Err(err).Str("path", path).Str("op", op).Msg("external file operation failed")
		writeError(w, http.StatusInternalServerError, op+" failed")
	}
}

func (s *Server) handleDeleteExternal(w http.ResponseWriter, r *http.Request) {
	var req models.DeleteRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if err := s.files.Delete(r.Context(), req.Path); err != nil {
		fileOpError(w, "delete", req.Path, err)
		return
	}
	writeJSON(w, http.StatusOK, models.OKResponse{OK: true})
}

func (s *Server) handleRenameExternal(w http.ResponseWriter, r *http.Request) {
	var req models.RenameRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	newPath, err := s.files.Rename(r.Context(), req.Path, req.NewName)
	if err != nil {
		fileOpError(w, "rename", req.Path, err)
		return
	}
	writeJSON(w, http.StatusOK, models.RenameResponse{OK: true, NewPath: newPath})
}

func (s *Server) handleMkdirExternal(w http.ResponseWriter, r *http.Request) {
	var req models.MkdirRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if err := s.files.Mkdir(r.Context(), req.Path); err != nil {
		fileOpError(w, "mkdir", req.Path, err)
		return
	}
	writeJSON(w, http.StatusOK, models.OKResponse{OK: true})
}
