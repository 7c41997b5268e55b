// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package nfcmanager

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ZaparooProject/go-nfcmanager/internal/syncutil"
)

// SessionState is the lifecycle state of a TagSession.
type SessionState int

const (
	StateIdle SessionState = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// TagSession negotiates one technology on one tag and owns the resulting
// handle. A session connects at most once; a closed session is never
// reused.
type TagSession struct {
	catalog *Catalog
	handle  Handle
	raw     *RawTag
	log     zerolog.Logger
	id      string
	tech    Technology
	prefs   []Technology
	gen     uint64
	state   SessionState
	mu      syncutil.Mutex
}

// NewTagSession creates an idle session that will try prefs in order.
func NewTagSession(catalog *Catalog, prefs []Technology, log zerolog.Logger) *TagSession {
	id := uuid.New().String()
	return &TagSession{
		catalog: catalog,
		prefs:   slices.Clone(prefs),
		id:      id,
		log:     log.With().Str("session", id[:8]).Logger(),
		state:   StateIdle,
	}
}

// ID returns the session identifier used in logs.
func (s *TagSession) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *TagSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Technology returns the connected technology, or "" when not connected.
func (s *TagSession) Technology() Technology {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tech
}

// Preferences returns the ordered technology preferences.
func (s *TagSession) Preferences() []Technology {
	return slices.Clone(s.prefs)
}

// Raw returns the tag the session last tried to connect to.
func (s *TagSession) Raw() *RawTag {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw
}

// Connect tries each preferred technology in caller order and keeps the
// first one that both derives and connects. Failed candidates are skipped
// without retry. If none succeeds the session returns to idle holding no
// handle. Closing the session while Connect runs makes it return
// ErrCancelled and discard any handle it opened.
func (s *TagSession) Connect(ctx context.Context, raw *RawTag) (Technology, error) {
	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return "", ErrCancelled
	case StateConnecting, StateConnected:
		state := s.state
		s.mu.Unlock()
		return "", fmt.Errorf("session is %s", state)
	case StateIdle:
	}
	s.state = StateConnecting
	s.raw = raw
	gen := s.gen
	s.mu.Unlock()

	var errs []error
	for _, tech := range s.prefs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		h, err := s.catalog.Derive(raw, tech)
		if err != nil {
			s.log.Debug().Err(err).Str("tech", tech.String()).Msg("skipping technology")
			errs = append(errs, err)
			continue
		}
		if s.stale(gen) {
			return "", ErrCancelled
		}
		s.log.Debug().Str("tech", tech.String()).Msg("connecting")
		if err := h.tag().Connect(ctx); err != nil {
			s.log.Debug().Err(err).Str("tech", tech.String()).Msg("connect failed")
			errs = append(errs, fmt.Errorf("connect %s: %w", tech, err))
			continue
		}

		s.mu.Lock()
		if s.gen != gen || s.state != StateConnecting {
			s.mu.Unlock()
			_ = h.tag().Close()
			s.log.Debug().Str("tech", tech.String()).Msg("discarding handle connected after close")
			return "", ErrCancelled
		}
		s.handle = h
		s.tech = tech
		s.state = StateConnected
		s.mu.Unlock()

		s.log.Info().Str("tech", tech.String()).Str("uid", UIDHex(raw.UID)).Msg("technology connected")
		return tech, nil
	}

	s.mu.Lock()
	if s.gen != gen || s.state == StateClosed {
		s.mu.Unlock()
		return "", ErrCancelled
	}
	s.state = StateIdle
	s.mu.Unlock()

	cause := errors.Join(errs...)
	if cause == nil {
		return "", ErrNoTechnologyConnected
	}
	return "", fmt.Errorf("%w: %w", ErrNoTechnologyConnected, cause)
}

func (s *TagSession) stale(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen != gen || s.state == StateClosed
}

// Close moves the session to closed from any state and drops the handle.
// It is safe to call more than once.
func (s *TagSession) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	s.gen++
	h := s.handle
	s.handle = nil
	s.tech = ""
	s.mu.Unlock()

	if h == nil {
		return nil
	}
	if err := h.tag().Close(); err != nil {
		s.log.Debug().Err(err).Msg("platform close failed")
		return NewOperationError("close", h.Technology(), err)
	}
	return nil
}

// active returns the connected handle or ErrNoActiveSession.
func (s *TagSession) active() (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected || s.handle == nil {
		return nil, ErrNoActiveSession
	}
	return s.handle, nil
}

func wrongTechnology(op string, tech Technology) error {
	return fmt.Errorf("%w: %s on %s", ErrWrongTechnology, op, tech)
}

func (s *TagSession) transceiver(op string) (Transceiver, Technology, error) {
	h, err := s.active()
	if err != nil {
		return nil, "", err
	}
	tr, ok := h.(Transceiver)
	if !ok {
		return nil, "", wrongTechnology(op, h.Technology())
	}
	return tr, h.Technology(), nil
}

// Transceive sends raw bytes to the tag and returns its response. An
// empty response is reported as an error.
func (s *TagSession) Transceive(ctx context.Context, data []byte) ([]byte, error) {
	tr, tech, err := s.transceiver("transceive")
	if err != nil {
		return nil, err
	}
	resp, err := tr.Transmit(ctx, data)
	if err != nil {
		return nil, NewOperationError("transceive", tech, err)
	}
	if len(resp) == 0 {
		return nil, NewOperationError("transceive", tech, ErrEmptyResponse)
	}
	return resp, nil
}

// SetTimeout sets the platform transceive timeout of the connected handle.
func (s *TagSession) SetTimeout(timeout time.Duration) error {
	tr, tech, err := s.transceiver("setTimeout")
	if err != nil {
		return err
	}
	if timeout < 0 {
		return validationError("setTimeout", "negative timeout %s", timeout)
	}
	return NewOperationError("setTimeout", tech, tr.SetTimeout(timeout))
}

// MaxTransceiveLength returns the largest frame the handle can send.
func (s *TagSession) MaxTransceiveLength() (int, error) {
	tr, tech, err := s.transceiver("getMaxTransceiveLength")
	if err != nil {
		return 0, err
	}
	n, err := tr.MaxTransmitSize()
	if err != nil {
		return 0, NewOperationError("getMaxTransceiveLength", tech, err)
	}
	return n, nil
}
