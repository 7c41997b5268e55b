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
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var errFake = errors.New("fake platform failure")

// fakeTech implements every technology view so one value can stand in for
// any of them.
type fakeTech struct {
	blocks         map[int][]byte
	onConnect      func()
	transmit       func(data []byte) ([]byte, error)
	msg            *NdefMessage
	cached         *NdefMessage
	formatted      *NdefMessage
	connectErr     error
	authErr        error
	readErr        error
	writeErr       error
	lockErr        error
	reconnectErr   error
	formatErr      error
	lastSent       []byte
	lastKey        []byte
	tech           Technology
	timeout        time.Duration
	sectors        int
	forumType      int
	maxSize        int
	maxTransmit    int
	closes         int
	reconnects     int
	classicType    MifareClassicType
	ultralightType UltralightType
	mu             sync.Mutex
	connected      bool
	writable       bool
	canLock        bool
	formatLocked   bool
	lastKeyA       bool
}

func newFakeTech(tech Technology) *fakeTech {
	return &fakeTech{
		tech:        tech,
		blocks:      make(map[int][]byte),
		sectors:     16,
		forumType:   2,
		maxSize:     137,
		maxTransmit: 253,
		writable:    true,
		classicType: MifareClassicTypeClassic,
		transmit: func(data []byte) ([]byte, error) {
			return []byte{0x90, 0x00}, nil
		},
	}
}

func (f *fakeTech) Connect(context.Context) error {
	if f.onConnect != nil {
		f.onConnect()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeTech) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTech) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.closes++
	return nil
}

func (f *fakeTech) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

func (f *fakeTech) MaxTransmitSize() (int, error) { return f.maxTransmit, nil }

func (f *fakeTech) SetTimeout(timeout time.Duration) error {
	f.timeout = timeout
	return nil
}

func (f *fakeTech) Transmit(_ context.Context, data []byte) ([]byte, error) {
	f.lastSent = append([]byte(nil), data...)
	return f.transmit(data)
}

func (*fakeTech) SAK() byte                        { return 0x08 }
func (*fakeTech) ATQA() []byte                     { return []byte{0x04, 0x00} }
func (*fakeTech) ApplicationData() []byte          { return []byte{0, 0, 0, 0} }
func (*fakeTech) ProtocolInfo() []byte             { return []byte{0x00, 0x81, 0x71} }
func (*fakeTech) SystemCode() []byte               { return []byte{0x12, 0xFC} }
func (*fakeTech) Manufacturer() []byte             { return []byte{1, 2, 3, 4, 5, 6, 7, 8} }
func (*fakeTech) ResponseFlags() byte              { return 0 }
func (*fakeTech) DSFID() byte                      { return 0 }
func (*fakeTech) HistoricalBytes() []byte          { return []byte{0x80} }
func (f *fakeTech) ClassicType() MifareClassicType { return f.classicType }
func (f *fakeTech) SectorCount() int               { return f.sectors }
func (*fakeTech) BlockIndex(sector int) int        { return sector * 4 }

func (f *fakeTech) Authenticate(_ context.Context, _ int, key []byte, keyA bool) error {
	f.lastKey = append([]byte(nil), key...)
	f.lastKeyA = keyA
	return f.authErr
}

func (f *fakeTech) ReadBlock(_ context.Context, block int) ([]byte, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	if b, ok := f.blocks[block]; ok {
		return b, nil
	}
	return make([]byte, MifareBlockSize), nil
}

func (f *fakeTech) WriteBlock(_ context.Context, block int, data []byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.blocks[block] = append([]byte(nil), data...)
	return nil
}

func (*fakeTech) Increment(context.Context, int, int) error { return nil }
func (*fakeTech) Decrement(context.Context, int, int) error { return nil }
func (*fakeTech) Transfer(context.Context, int) error       { return nil }

func (f *fakeTech) UltralightType() UltralightType { return f.ultralightType }

func (*fakeTech) ReadPages(_ context.Context, offset int) ([]byte, error) {
	out := make([]byte, 16)
	for i := range out {
		out[i] = byte(offset*4 + i)
	}
	return out, nil
}

func (f *fakeTech) WritePage(_ context.Context, _ int, _ []byte) error { return f.writeErr }

func (f *fakeTech) ForumType() int        { return f.forumType }
func (f *fakeTech) MaxSize() int          { return f.maxSize }
func (f *fakeTech) IsWritable() bool      { return f.writable }
func (f *fakeTech) CanMakeReadOnly() bool { return f.canLock }

func (f *fakeTech) CachedMessage() (*NdefMessage, error) { return f.cached, nil }

func (f *fakeTech) ReadMessage(context.Context) (*NdefMessage, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.msg, nil
}

func (f *fakeTech) WriteMessage(_ context.Context, msg *NdefMessage) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.msg = msg
	return nil
}

func (f *fakeTech) MakeReadOnly(context.Context) error {
	if f.lockErr != nil {
		return f.lockErr
	}
	f.writable = false
	return nil
}

func (f *fakeTech) Reconnect(context.Context) error {
	f.reconnects++
	return f.reconnectErr
}

func (f *fakeTech) Format(_ context.Context, msg *NdefMessage) error {
	if f.formatErr != nil {
		return f.formatErr
	}
	f.formatted = msg
	return nil
}

func (f *fakeTech) FormatReadOnly(ctx context.Context, msg *NdefMessage) error {
	if err := f.Format(ctx, msg); err != nil {
		return err
	}
	f.formatLocked = true
	return nil
}

// fakeTag is the payload of raw tags produced by the fake platform.
type fakeTag struct {
	views     map[Technology]*fakeTech
	deriveErr map[Technology]error
	uid       []byte
}

func newFakeTag(uid []byte, techs ...Technology) *fakeTag {
	t := &fakeTag{
		uid:       uid,
		views:     make(map[Technology]*fakeTech),
		deriveErr: make(map[Technology]error),
	}
	for _, tech := range techs {
		t.views[tech] = newFakeTech(tech)
	}
	return t
}

func (t *fakeTag) raw() *RawTag {
	techs := make([]Technology, 0, len(t.views))
	for tech := range t.views {
		techs = append(techs, tech)
	}
	return &RawTag{Payload: t, UID: t.uid, Techs: MaskOf(techs...)}
}

func (t *fakeTag) view(tech Technology) *fakeTech {
	return t.views[tech]
}

// fakePlatform records discovery registrations and serves fakeTag views.
type fakePlatform struct {
	onTag       TagCallback
	watcher     func(RadioState)
	enableErr   error
	settingsErr error
	filter      []Technology
	mode        DispatchMode
	settings    int
	mu          sync.Mutex
	supported   bool
	enabled     bool
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{supported: true, enabled: true}
}

func lookup(raw *RawTag, tech Technology) (*fakeTech, error) {
	t, ok := raw.Payload.(*fakeTag)
	if !ok {
		return nil, errFake
	}
	if err := t.deriveErr[tech]; err != nil {
		return nil, err
	}
	v, ok := t.views[tech]
	if !ok {
		return nil, ErrUnsupportedTechnology
	}
	return v, nil
}

func (*fakePlatform) Ndef(raw *RawTag) (NdefTag, error) { return lookup(raw, TechNdef) }
func (*fakePlatform) NfcA(raw *RawTag) (NfcATag, error) { return lookup(raw, TechNfcA) }
func (*fakePlatform) NfcB(raw *RawTag) (NfcBTag, error) { return lookup(raw, TechNfcB) }
func (*fakePlatform) NfcF(raw *RawTag) (NfcFTag, error) { return lookup(raw, TechNfcF) }
func (*fakePlatform) NfcV(raw *RawTag) (NfcVTag, error) { return lookup(raw, TechNfcV) }

func (*fakePlatform) IsoDep(raw *RawTag) (IsoDepTag, error) { return lookup(raw, TechIsoDep) }

func (*fakePlatform) MifareClassic(raw *RawTag) (MifareClassicTag, error) {
	return lookup(raw, TechMifareClassic)
}

func (*fakePlatform) MifareUltralight(raw *RawTag) (MifareUltralightTag, error) {
	return lookup(raw, TechMifareUltralight)
}

func (*fakePlatform) NdefFormatable(raw *RawTag) (NdefFormatableTag, error) {
	return lookup(raw, TechNdefFormatable)
}

func (p *fakePlatform) EnableForegroundDispatch(filter []Technology, onTag TagCallback) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.enableErr != nil {
		return p.enableErr
	}
	p.filter, p.onTag, p.mode = filter, onTag, DispatchForeground
	return nil
}

func (p *fakePlatform) DisableForegroundDispatch() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onTag, p.mode = nil, DispatchDisabled
	return nil
}

func (p *fakePlatform) EnableReaderMode(filter []Technology, _ ReaderFlag, _ time.Duration, onTag TagCallback) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.enableErr != nil {
		return p.enableErr
	}
	p.filter, p.onTag, p.mode = filter, onTag, DispatchReaderMode
	return nil
}

func (p *fakePlatform) DisableReaderMode() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onTag, p.mode = nil, DispatchDisabled
	return nil
}

// deliver hands raw to the active registration, if any. It reports
// whether a registration received it.
func (p *fakePlatform) deliver(raw *RawTag) bool {
	p.mu.Lock()
	onTag := p.onTag
	p.mu.Unlock()
	if onTag == nil {
		return false
	}
	onTag(raw, nil)
	return true
}

func (p *fakePlatform) IsSupported() bool { return p.supported }

func (p *fakePlatform) IsEnabled() (bool, error) { return p.enabled, nil }

func (p *fakePlatform) WatchState(onChange func(RadioState)) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.watcher = onChange
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.watcher = nil
	}, nil
}

func (p *fakePlatform) setState(state RadioState) {
	p.mu.Lock()
	w := p.watcher
	p.mu.Unlock()
	if w != nil {
		w(state)
	}
}

func (p *fakePlatform) OpenSettings() error {
	p.settings++
	return p.settingsErr
}

// CreateNdefMessage treats data as the payload of one text record.
func (*fakePlatform) CreateNdefMessage(data []byte) (*NdefMessage, error) {
	if len(data) == 0 {
		return nil, errFake
	}
	return &NdefMessage{Records: []NdefRecord{{TNF: 1, Type: []byte("T"), Payload: data}}}, nil
}

var _ Platform = (*fakePlatform)(nil)

func nopLogger() zerolog.Logger {
	return zerolog.Nop()
}

// recordingEmitter keeps every emitted event.
type recordingEmitter struct {
	events []Event
	mu     sync.Mutex
}

func (r *recordingEmitter) Emit(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingEmitter) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// staticRegistration is a fixed Registration for gate tests.
type staticRegistration struct {
	registered bool
	foreground bool
}

func (s staticRegistration) IsRegistered() bool { return s.registered }
func (s staticRegistration) IsForeground() bool { return s.foreground }
