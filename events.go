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
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// EventName identifies a notification sent to the application.
type EventName string

// Notification names.
const (
	EventDiscoverTag           EventName = "NfcManagerDiscoverTag"
	EventDiscoverBackgroundTag EventName = "NfcManagerDiscoverBackgroundTag"
	EventStateChanged          EventName = "NfcManagerStateChanged"
)

// Event is one notification. Tag is set for discovery events and State
// for radio state changes.
type Event struct {
	At    time.Time  `json:"at"`
	Tag   *TagEvent  `json:"tag,omitempty"`
	Name  EventName  `json:"name"`
	State RadioState `json:"state,omitempty"`
}

// Emitter delivers notifications to the application.
type Emitter interface {
	Emit(event Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(event Event)

// Emit calls f.
func (f EmitterFunc) Emit(event Event) {
	f(event)
}

// EventBus fans notifications out to any number of subscribers. Handlers
// run on the emitting goroutine and must not block.
type EventBus struct {
	subs *xsync.MapOf[string, func(Event)]
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: xsync.NewMapOf[string, func(Event)]()}
}

// Emit delivers event to every subscriber.
func (b *EventBus) Emit(event Event) {
	b.subs.Range(func(_ string, fn func(Event)) bool {
		fn(event)
		return true
	})
}

// Subscribe registers fn and returns the function that removes it.
func (b *EventBus) Subscribe(fn func(Event)) (unsubscribe func()) {
	id := uuid.NewString()
	b.subs.Store(id, fn)
	return func() { b.subs.Delete(id) }
}

// Channel subscribes a buffered channel. Events that do not fit in the
// buffer are dropped. The channel is closed by the returned function.
func (b *EventBus) Channel(buffer int) (events <-chan Event, unsubscribe func()) {
	ch := make(chan Event, buffer)
	var (
		mu     sync.Mutex
		closed bool
	)
	remove := b.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- e:
		default:
		}
	})
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			remove()
			mu.Lock()
			closed = true
			close(ch)
			mu.Unlock()
		})
	}
}

// Len returns the number of subscribers.
func (b *EventBus) Len() int {
	return b.subs.Size()
}
