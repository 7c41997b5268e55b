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
	"time"

	"github.com/rs/zerolog"

	"github.com/ZaparooProject/go-nfcmanager/internal/syncutil"
)

// Registration reports the discovery state the gate routes by.
// DispatchController implements it.
type Registration interface {
	IsRegistered() bool
	IsForeground() bool
}

// TechnologyRequest is an outstanding request for a technology: the
// session that will connect it and the completion its caller waits on.
type TechnologyRequest struct {
	session    *TagSession
	completion *Completion
}

// Session returns the session serving the request.
func (r *TechnologyRequest) Session() *TagSession {
	return r.session
}

// Completion returns the fire-once result of the request.
func (r *TechnologyRequest) Completion() *Completion {
	return r.completion
}

// RequestGate holds at most one outstanding TechnologyRequest and routes
// each discovered tag either to that request or to the notification
// channel.
type RequestGate struct {
	catalog    *Catalog
	translator *Translator
	reg        Registration
	emitter    Emitter
	pending    *TechnologyRequest
	bgTag      *TagEvent
	log        zerolog.Logger
	// streamMu serialises discovery deliveries so one tag is fully routed
	// before the next is looked at.
	streamMu syncutil.Mutex
	mu       syncutil.Mutex
}

// NewRequestGate creates a gate with no pending request.
func NewRequestGate(
	catalog *Catalog, translator *Translator, reg Registration, emitter Emitter, log zerolog.Logger,
) *RequestGate {
	return &RequestGate{
		catalog:    catalog,
		translator: translator,
		reg:        reg,
		emitter:    emitter,
		log:        log,
	}
}

// Submit arms a new request for prefs, tried in the given order. It fails
// with ErrNotRegistered without a tag event registration and with
// ErrAlreadyPending while another request is outstanding; requests are
// never queued.
func (g *RequestGate) Submit(prefs []Technology) (*TechnologyRequest, error) {
	if len(prefs) == 0 {
		return nil, validationError("requestTechnology", "no technologies requested")
	}
	for _, t := range prefs {
		if !t.Valid() {
			return nil, validationError("requestTechnology", "unknown technology %q", string(t))
		}
	}
	if !g.reg.IsRegistered() {
		return nil, ErrNotRegistered
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending != nil {
		return nil, ErrAlreadyPending
	}
	req := &TechnologyRequest{
		session:    NewTagSession(g.catalog, prefs, g.log),
		completion: NewCompletion(),
	}
	g.pending = req
	g.log.Debug().
		Str("session", req.session.ID()).
		Strs("prefs", techStrings(prefs)).
		Msg("technology request armed")
	return req, nil
}

// Pending returns the outstanding request, or nil.
func (g *RequestGate) Pending() *TechnologyRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending
}

// Session returns the session of the outstanding request, or nil.
func (g *RequestGate) Session() *TagSession {
	if req := g.Pending(); req != nil {
		return req.session
	}
	return nil
}

// OnTagDiscovered routes one delivery from the platform discovery stream.
// An idle pending request gets the tag; otherwise the tag is translated
// and announced.
func (g *RequestGate) OnTagDiscovered(ctx context.Context, raw *RawTag, err error) {
	if err != nil {
		g.log.Debug().Err(err).Msg("discovery callback reported an error")
		return
	}
	if raw == nil {
		return
	}

	g.streamMu.Lock()
	defer g.streamMu.Unlock()

	if g.connectPending(ctx, raw) {
		return
	}
	g.announce(g.translator.ToTagEvent(raw))
}

// OnLaunchTag handles a tag delivered with an application reactivation.
// It is routed like a discovered tag.
func (g *RequestGate) OnLaunchTag(ctx context.Context, raw *RawTag) {
	g.OnTagDiscovered(ctx, raw, nil)
}

// SeedLaunchTag handles the tag that launched the application. A pending
// request still gets the tag; otherwise it is placed in the background
// cache without a notification.
func (g *RequestGate) SeedLaunchTag(ctx context.Context, raw *RawTag) {
	if raw == nil {
		return
	}
	g.streamMu.Lock()
	defer g.streamMu.Unlock()

	if g.connectPending(ctx, raw) {
		return
	}
	event := g.translator.ToTagEvent(raw)
	g.mu.Lock()
	g.bgTag = event
	g.mu.Unlock()
	g.log.Debug().Str("uid", event.ID).Msg("background tag seeded from launch")
}

// connectPending hands raw to an idle pending request and fires its
// completion. It reports whether the tag was consumed.
func (g *RequestGate) connectPending(ctx context.Context, raw *RawTag) bool {
	req := g.Pending()
	if req == nil || req.session.State() != StateIdle {
		return false
	}

	tech, err := req.session.Connect(ctx, raw)
	switch {
	case err == nil:
		if !req.completion.Resolve(tech) {
			g.log.Debug().Str("session", req.session.ID()).Msg("request already completed")
		}
	case errors.Is(err, ErrCancelled):
		g.log.Debug().Str("session", req.session.ID()).Msg("discarding tag for cancelled request")
	default:
		g.log.Info().Err(err).Str("uid", UIDHex(raw.UID)).Msg("no requested technology could be connected")
		req.completion.Reject(err)
		g.release(req)
	}
	return true
}

// announce emits a tag event. With an active foreground registration the
// event goes to the listener; otherwise it is a background tag and
// replaces the cached one.
func (g *RequestGate) announce(event *TagEvent) {
	if event == nil {
		return
	}
	if g.reg.IsRegistered() && g.reg.IsForeground() {
		g.emit(Event{Name: EventDiscoverTag, Tag: event})
		return
	}
	g.mu.Lock()
	g.bgTag = event
	g.mu.Unlock()
	g.emit(Event{Name: EventDiscoverBackgroundTag, Tag: event})
}

func (g *RequestGate) emit(event Event) {
	if g.emitter == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now()
	}
	g.emitter.Emit(event)
}

// Cancel closes the pending session, rejects its completion with
// ErrCancelled and clears it. Without a pending request it does nothing.
func (g *RequestGate) Cancel() error {
	g.mu.Lock()
	req := g.pending
	g.pending = nil
	g.mu.Unlock()
	if req == nil {
		return nil
	}
	return g.cancel(req)
}

// CancelRequest cancels req if it is still the pending request.
func (g *RequestGate) CancelRequest(req *TechnologyRequest) error {
	g.mu.Lock()
	if g.pending != req {
		g.mu.Unlock()
		return nil
	}
	g.pending = nil
	g.mu.Unlock()
	return g.cancel(req)
}

func (g *RequestGate) cancel(req *TechnologyRequest) error {
	err := req.session.Close()
	if req.completion.Reject(ErrCancelled) {
		g.log.Debug().Str("session", req.session.ID()).Msg("technology request cancelled")
	}
	return err
}

// release closes and clears req after a failed connect.
func (g *RequestGate) release(req *TechnologyRequest) {
	g.mu.Lock()
	if g.pending == req {
		g.pending = nil
	}
	g.mu.Unlock()
	if err := req.session.Close(); err != nil {
		g.log.Debug().Err(err).Msg("closing failed session")
	}
}

// BackgroundTag returns the cached background tag, or nil.
func (g *RequestGate) BackgroundTag() *TagEvent {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.bgTag
}

// ClearBackgroundTag empties the background cache.
func (g *RequestGate) ClearBackgroundTag() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bgTag = nil
}
