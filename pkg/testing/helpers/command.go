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

package helpers

import (
	"github.com/ArcelliteProject/arcellite-storage/pkg/testing/mocks"
	"github.com/stretchr/testify/mock"
)

// NewMockCommandExecutor creates a MockCommandExecutor that succeeds by
// default. All Run(), Output(), OutputWithInput() and StreamOutput() calls
// return success unless explicitly overridden with On().
//
// Override specific commands in tests that need to verify exact behavior:
//
//	cmd := helpers.NewMockCommandExecutor()
//	// Clear defaults first
//	cmd.ExpectedCalls = nil
//	// Set specific expectations (note: args is []string not variadic in mock)
//	cmd.On("Output", mock.Anything, "lsblk", []string{"-J", "-b"}).Return([]byte("{}"), nil)
func NewMockCommandExecutor() *mocks.MockCommandExecutor {
	cmd := &mocks.MockCommandExecutor{}
	cmd.On("Run", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(nil).Maybe()
	cmd.On("Output", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return([]byte{}, nil).Maybe()
	cmd.On("OutputWithInput",
		mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("string"), mock.Anything).
		Return([]byte{}, nil).Maybe()
	cmd.On("StreamOutput",
		mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("string"), mock.Anything).
		Return(nil, nil).Maybe()
	return cmd
}
