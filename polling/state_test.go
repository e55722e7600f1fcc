// yhy523u
// Copyright (c) 2025 The yhy523u Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of yhy523u.
//
// yhy523u is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// yhy523u is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with yhy523u; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package polling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCardState_Transitions(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	var cs CardState

	assert.False(t, cs.RemovalDue(now, 0), "idle state has nothing to remove")

	cs.TransitionToPresent(now)
	assert.Equal(t, StateCardPresent, cs.DetectionState)
	assert.True(t, cs.Present)
	assert.False(t, cs.RemovalDue(now.Add(time.Second), 2*time.Second))
	assert.True(t, cs.RemovalDue(now.Add(2*time.Second), 2*time.Second))

	cs.TransitionToReading(now.Add(time.Minute))
	assert.Equal(t, StateReading, cs.DetectionState)
	assert.False(t, cs.RemovalDue(now.Add(time.Hour), time.Second), "never removed while reading")

	cs.LastUID = "12345678"
	cs.TransitionToIdle()
	assert.Equal(t, CardState{}, cs)
}

func TestStringers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "present", StateCardPresent.String())
	assert.Equal(t, "reading", StateReading.String())
	assert.Equal(t, "detected", EventDetected.String())
	assert.Equal(t, "changed", EventChanged.String())
	assert.Equal(t, "removed", EventRemoved.String())
	assert.Equal(t, "none", EventNone.String())
}
