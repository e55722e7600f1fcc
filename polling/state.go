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
	"time"
)

// CardDetectionState represents the finite state machine for card detection
type CardDetectionState int

const (
	// StateIdle means no card is known to be in the field
	StateIdle CardDetectionState = iota
	// StateCardPresent means the last poll found a card
	StateCardPresent
	// StateReading means a detection callback is running against the card
	StateReading
)

func (s CardDetectionState) String() string {
	switch s {
	case StateCardPresent:
		return "present"
	case StateReading:
		return "reading"
	default:
		return "idle"
	}
}

// CardState tracks the card in the field
type CardState struct {
	LastSeenTime   time.Time
	ReadStartTime  time.Time
	LastUID        string
	LastType       string
	DetectionState CardDetectionState
	Present        bool
}

// TransitionToReading marks the card as busy; removal is not reported
// while reading
func (cs *CardState) TransitionToReading(now time.Time) {
	cs.DetectionState = StateReading
	cs.ReadStartTime = now
}

// TransitionToPresent records a sighting of the card
func (cs *CardState) TransitionToPresent(now time.Time) {
	cs.DetectionState = StateCardPresent
	cs.Present = true
	cs.LastSeenTime = now
}

// TransitionToIdle resets to idle state
func (cs *CardState) TransitionToIdle() {
	*cs = CardState{}
}

// RemovalDue reports whether a present card has gone unseen for timeout
func (cs *CardState) RemovalDue(now time.Time, timeout time.Duration) bool {
	if !cs.Present || cs.DetectionState == StateReading {
		return false
	}
	return now.Sub(cs.LastSeenTime) >= timeout
}
