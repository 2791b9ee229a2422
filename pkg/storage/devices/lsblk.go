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

package devices

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// lsblkTree is the top-level shape of `lsblk -J` output.
type lsblkTree struct {
	BlockDevices []lsblkDevice `json:"blockdevices"`
}

type lsblkDevice struct {
	Name       string        `json:"name"`
	Model      string        `json:"model"`
	Label      string        `json:"label"`
	UUID       string        `json:"uuid"`
	Type       string        `json:"type"`
	Tran       string        `json:"tran"`
	Mountpoint string        `json:"mountpoint"`
	Size       flexInt64     `json:"size"`
	RM         flexBool      `json:"rm"`
	Children   []lsblkDevice `json:"children"`
}

func (d *lsblkDevice) removable() bool {
	return bool(d.RM) || d.Tran == "usb"
}

func (d *lsblkDevice) hasMountpoint(mp string) bool {
	if d.Mountpoint == mp {
		return true
	}
	for i := range d.Children {
		if d.Children[i].hasMountpoint(mp) {
			return true
		}
	}
	return false
}

// firstLabel returns the device's own label, or the first labelled
// partition's label when the disk itself carries none.
func (d *lsblkDevice) firstLabel() string {
	if d.Label != "" {
		return d.Label
	}
	for i := range d.Children {
		if l := d.Children[i].Label; l != "" {
			return l
		}
	}
	return ""
}

func parseLsblk(out []byte) (*lsblkTree, error) {
	var tree lsblkTree
	if err := json.Unmarshal(out, &tree); err != nil {
		return nil, fmt.Errorf("unmarshalling lsblk JSON: %w", err)
	}
	return &tree, nil
}

// flexBool accepts both modern lsblk booleans and the "0"/"1" strings
// emitted by util-linux before 2.37.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("true")), bytes.Equal(data, []byte(`"1"`)):
		*b = true
	case bytes.Equal(data, []byte("false")), bytes.Equal(data, []byte(`"0"`)),
		bytes.Equal(data, []byte("null")), bytes.Equal(data, []byte(`""`)):
		*b = false
	default:
		return fmt.Errorf("unexpected lsblk boolean: %s", data)
	}
	return nil
}

// flexInt64 accepts both numeric and quoted lsblk size fields.
type flexInt64 int64

func (n *flexInt64) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("unexpected lsblk size %q: %w", s, err)
	}
	*n = flexInt64(v)
	return nil
}
