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

// Package polling watches the reader's field and reports cards as they
// arrive, change and leave.
package polling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mdeverdelhan/yhy523u"
)

// Event is the outcome of one poll
type Event int

const (
	// EventNone means nothing changed
	EventNone Event = iota
	// EventDetected means a card entered an empty field
	EventDetected
	// EventChanged means a different card replaced the previous one
	EventChanged
	// EventRemoved means the card left the field
	EventRemoved
)

func (e Event) String() string {
	switch e {
	case EventDetected:
		return "detected"
	case EventChanged:
		return "changed"
	case EventRemoved:
		return "removed"
	default:
		return "none"
	}
}

// Monitor polls for cards by selecting them. An empty field is a normal
// poll result, not an error.
//
// Callbacks run on the polling goroutine. While OnCardDetected or
// OnCardChanged runs, the card is selected and the callback may use
// Session() to talk to it. Callbacks must not call Pause.
type Monitor struct {
	session        *yhy523u.MIFARESession
	config         *Config
	now            func() time.Time
	OnCardDetected func(card *yhy523u.Card) error
	OnCardRemoved  func()
	OnCardChanged  func(card *yhy523u.Card) error
	state          CardState
	stateMu        sync.RWMutex
	pollMu         sync.Mutex
	isPaused       atomic.Bool
}

// NewMonitor creates a new card monitor
func NewMonitor(device *yhy523u.Device, config *Config) (*Monitor, error) {
	if device == nil {
		return nil, fmt.Errorf("%w: nil device", yhy523u.ErrInvalidParameter)
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Monitor{
		session: yhy523u.NewMIFARESession(device),
		config:  config,
		now:     time.Now,
	}, nil
}

// Session returns the card session used for polling
func (m *Monitor) Session() *yhy523u.MIFARESession {
	return m.session
}

// GetState returns the current card state
func (m *Monitor) GetState() CardState {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.state
}

// Pause stops polling. It returns once any poll in flight has finished, so
// the caller may use the device until Resume.
func (m *Monitor) Pause() {
	m.isPaused.Store(true)
	m.pollMu.Lock()
	defer m.pollMu.Unlock()
}

// Resume restarts polling after Pause
func (m *Monitor) Resume() {
	m.isPaused.Store(false)
}

// Start polls until ctx is done and returns ctx.Err(). Poll failures are
// reported through debug output and polling continues.
func (m *Monitor) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !m.isPaused.Load() {
			if _, err := m.Poll(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				yhy523u.Debugf("polling: %v", err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.config.PollInterval):
		}
	}
}

// Poll runs one detection cycle and returns what changed
func (m *Monitor) Poll(ctx context.Context) (Event, error) {
	m.pollMu.Lock()
	defer m.pollMu.Unlock()

	pollCtx := ctx
	if m.config.PollTimeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, m.config.PollTimeout)
		defer cancel()
	}

	card, err := m.session.SelectContext(pollCtx)
	if err != nil {
		if errors.Is(err, yhy523u.ErrNoCard) || isCardError(err) {
			// A card leaving the field mid-select fails anticollision or
			// select; the removal timeout decides
			return m.handleEmptyPoll(), nil
		}
		if ctx.Err() != nil {
			return EventNone, ctx.Err()
		}
		// The reader itself failed: the card state can no longer be trusted
		return m.handleCardRemoval(), fmt.Errorf("card poll failed: %w", err)
	}

	return m.processCard(card), nil
}

func isCardError(err error) bool {
	var statusErr *yhy523u.StatusError
	return errors.As(err, &statusErr)
}

func (m *Monitor) handleEmptyPoll() Event {
	m.stateMu.RLock()
	due := m.state.RemovalDue(m.now(), m.config.CardRemovalTimeout)
	m.stateMu.RUnlock()
	if !due {
		return EventNone
	}
	return m.handleCardRemoval()
}

// handleCardRemoval reports a present card as removed
func (m *Monitor) handleCardRemoval() Event {
	m.stateMu.Lock()
	present := m.state.Present
	m.state.TransitionToIdle()
	m.stateMu.Unlock()

	if !present {
		return EventNone
	}
	if m.OnCardRemoved != nil {
		m.OnCardRemoved()
	}
	return EventRemoved
}

// processCard updates the state for a card found by the poll and runs the
// matching callback
func (m *Monitor) processCard(card *yhy523u.Card) Event {
	now := m.now()
	uid := card.UID()

	m.stateMu.Lock()
	event := EventNone
	switch {
	case !m.state.Present:
		event = EventDetected
	case m.state.LastUID != uid:
		event = EventChanged
	}
	m.state.TransitionToPresent(now)
	m.state.LastUID = uid
	m.state.LastType = card.Type.String()

	callback := m.callbackFor(event)
	if callback != nil {
		m.state.TransitionToReading(now)
	}
	m.stateMu.Unlock()

	if callback == nil {
		return event
	}

	if err := callback(card); err != nil {
		yhy523u.Debugf("polling: %s callback for %s: %v", event, uid, err)
	}

	m.stateMu.Lock()
	m.state.TransitionToPresent(m.now())
	m.stateMu.Unlock()
	return event
}

func (m *Monitor) callbackFor(event Event) func(*yhy523u.Card) error {
	switch event {
	case EventDetected:
		return m.OnCardDetected
	case EventChanged:
		return m.OnCardChanged
	default:
		return nil
	}
}

// Close closes the underlying device
func (m *Monitor) Close() error {
	if err := m.session.Device().Close(); err != nil {
		return fmt.Errorf("failed to close device: %w", err)
	}
	return nil
}
