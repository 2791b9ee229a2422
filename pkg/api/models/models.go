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

// Package models holds the JSON request and response shapes of the HTTP API.
package models

import "github.com/ArcelliteProject/arcellite-storage/pkg/storage/devices"

// MountRequest mounts a removable device.
type MountRequest struct {
	Device   string `json:"device"   validate:"required,blockdev"`
	Password string `json:"password"`
}

// UnmountRequest unmounts a removable device.
type UnmountRequest struct {
	Device   string `json:"device"   validate:"required,blockdev"`
	Password string `json:"password"`
}

// DeleteRequest deletes an external file or directory.
type DeleteRequest struct {
	Path string `json:"path" validate:"required"`
}

// RenameRequest renames an external file or directory in place.
type RenameRequest struct {
	Path    string `json:"path"    validate:"required"`
	NewName string `json:"newName" validate:"required"`
}

// MkdirRequest creates an external directory.
type MkdirRequest struct {
	Path string `json:"path" validate:"required"`
}

// StorageResponse is the GET /api/system/storage body.
type StorageResponse struct {
	RootStorage devices.RootInfo `json:"rootStorage"`
	Removable   []devices.Device `json:"removable"`
}

// MountResponse is the successful mount body.
type MountResponse struct {
	OK         bool   `json:"ok"`
	Mountpoint string `json:"mountpoint"`
}

// OKResponse is the generic success body.
type OKResponse struct {
	OK bool `json:"ok"`
}

// RenameResponse is the successful rename body.
type RenameResponse struct {
	OK      bool   `json:"ok"`
	NewPath string `json:"newPath"`
}

// ErrorResponse is the generic failure body. RequiresAuth tells the caller
// to re-prompt for a password.
type ErrorResponse struct {
	Error        string `json:"error"`
	RequiresAuth bool   `json:"requiresAuth,omitempty"`
}
