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
	"time"

	"github.com/rs/zerolog"

	"github.com/ZaparooProject/go-nfcmanager/internal/syncutil"
)

// Manager is the application facing NFC surface. It ties the platform
// discovery registration, the single outstanding technology request and
// the notification channel together.
type Manager struct {
	platform   Platform
	host       Host
	ctx        context.Context
	catalog    *Catalog
	translator *Translator
	dispatch   *DispatchController
	gate       *RequestGate
	bus        *EventBus
	cfg        *Config
	cancel     context.CancelFunc
	stopRadio  func()
	log        zerolog.Logger
	mu         syncutil.Mutex
	started    bool
}

// New creates a manager on platform. A nil cfg uses DefaultConfig.
func New(platform Platform, cfg *Config) *Manager {
	cfg = cfg.withDefaults()
	log := cfg.Logger.With().Str("component", "manager").Logger()
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		platform: platform,
		host:     cfg.Host,
		cfg:      cfg,
		bus:      NewEventBus(),
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
	m.catalog = NewCatalog(platform)
	m.translator = NewTranslator(m.catalog, log)
	m.dispatch = NewDispatchController(platform, m.onTag, m.host.IsForeground(), log)
	m.gate = NewRequestGate(m.catalog, m.translator, m.dispatch, EmitterFunc(m.emit), log)
	return m
}

func (m *Manager) onTag(raw *RawTag, err error) {
	m.gate.OnTagDiscovered(m.runContext(), raw, err)
}

// runContext returns the context tag routing runs under. Close ends it and
// the next Start replaces it.
func (m *Manager) runContext() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctx
}

func (m *Manager) emit(event Event) {
	m.bus.Emit(event)
	if m.cfg.Emitter != nil {
		m.cfg.Emitter.Emit(event)
	}
}

// Events returns the bus every notification is published on.
func (m *Manager) Events() *EventBus {
	return m.bus
}

// Start checks for NFC support, subscribes to radio state changes and
// seeds the background cache from the host's launch tag. A closed manager
// can be started again.
func (m *Manager) Start(ctx context.Context) error {
	if !m.platform.IsSupported() {
		m.log.Info().Msg("nfc is not supported on this device")
		return ErrNoRadioSupport
	}

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	if m.ctx.Err() != nil {
		m.ctx, m.cancel = context.WithCancel(context.Background())
	}
	if !m.cfg.DisableRadioWatch {
		stop, err := m.platform.WatchState(m.onRadioState)
		if err != nil {
			m.mu.Unlock()
			return fmt.Errorf("watch radio state: %w", err)
		}
		m.stopRadio = stop
	}
	m.started = true
	m.mu.Unlock()

	m.gate.SeedLaunchTag(ctx, m.host.LaunchTag())
	return nil
}

func (m *Manager) onRadioState(state RadioState) {
	m.log.Debug().Str("state", string(state)).Msg("radio state changed")
	m.emit(Event{Name: EventStateChanged, State: state, At: time.Now()})
}

// Close cancels the pending request, stops discovery and the radio state
// subscription.
func (m *Manager) Close() error {
	m.mu.Lock()
	stop := m.stopRadio
	m.stopRadio = nil
	m.started = false
	cancel := m.cancel
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
	err := errors.Join(m.gate.Cancel(), m.dispatch.Unregister())
	cancel()
	return err
}

// IsSupported reports whether the device has an NFC controller.
func (m *Manager) IsSupported() bool {
	return m.platform.IsSupported()
}

// IsEnabled reports whether the NFC radio is switched on.
func (m *Manager) IsEnabled() (bool, error) {
	if !m.platform.IsSupported() {
		return false, ErrNoRadioSupport
	}
	enabled, err := m.platform.IsEnabled()
	if err != nil {
		return false, fmt.Errorf("query radio state: %w", err)
	}
	return enabled, nil
}

// GoToNfcSetting opens the host's NFC settings. Returns false if the host
// could not open them.
func (m *Manager) GoToNfcSetting() bool {
	if err := m.platform.OpenSettings(); err != nil {
		m.log.Info().Err(err).Msg("could not open nfc settings")
		return false
	}
	return true
}

// Constants returns the constants exposed to the application layer.
func (*Manager) Constants() map[string]int {
	return Constants()
}

// RegisterTagEvent registers for tag discovery. Discovery starts at once
// in the foreground, otherwise on the next OnForeground.
func (m *Manager) RegisterTagEvent(opts RegisterOptions) error {
	return m.dispatch.Register(opts)
}

// UnregisterTagEvent stops discovery, clears the registration and cancels
// any pending technology request.
func (m *Manager) UnregisterTagEvent() error {
	return errors.Join(m.gate.Cancel(), m.dispatch.Unregister())
}

// HasTagEventRegistration reports whether a registration is active.
func (m *Manager) HasTagEventRegistration() bool {
	return m.dispatch.IsRegistered()
}

// DispatchMode returns the active discovery mode.
func (m *Manager) DispatchMode() DispatchMode {
	return m.dispatch.Mode()
}

// OnForeground is called by the host when the application becomes active.
func (m *Manager) OnForeground() error {
	if h, ok := m.host.(interface{ SetForeground(bool) }); ok {
		h.SetForeground(true)
	}
	return m.dispatch.OnForeground()
}

// OnBackground is called by the host when the application is backgrounded.
func (m *Manager) OnBackground() error {
	if h, ok := m.host.(interface{ SetForeground(bool) }); ok {
		h.SetForeground(false)
	}
	return m.dispatch.OnBackground()
}

// OnNewLaunchTag is called by the host when the application is reactivated
// by a tag. The tag is routed like a discovered one.
func (m *Manager) OnNewLaunchTag(raw *RawTag) {
	if raw == nil {
		return
	}
	if h, ok := m.host.(interface{ SetLaunchTag(*RawTag) }); ok {
		h.SetLaunchTag(raw)
	}
	m.gate.OnLaunchTag(m.runContext(), raw)
}

// RequestTechnology waits for the next tag and connects the first of
// techs, in the given order, that the tag supports. Ending ctx cancels the
// request.
func (m *Manager) RequestTechnology(ctx context.Context, techs ...Technology) (Technology, error) {
	tech, _, err := m.request(ctx, techs)
	return tech, err
}

// AcquireTechnology is RequestTechnology with a release bound to this
// request. The release is a no-op once another request has replaced it,
// so it never cancels a request armed by a different caller.
func (m *Manager) AcquireTechnology(
	ctx context.Context, techs ...Technology,
) (tech Technology, release func() error, err error) {
	tech, req, err := m.request(ctx, techs)
	if err != nil {
		return "", nil, err
	}
	return tech, func() error { return m.gate.CancelRequest(req) }, nil
}

func (m *Manager) request(ctx context.Context, techs []Technology) (Technology, *TechnologyRequest, error) {
	req, err := m.gate.Submit(techs)
	if err != nil {
		return "", nil, err
	}
	tech, err := m.wait(ctx, req)
	return tech, req, err
}

func (m *Manager) wait(ctx context.Context, req *TechnologyRequest) (Technology, error) {
	tech, err := req.Completion().Wait(ctx)
	if err != nil && ctx.Err() != nil {
		if req.Completion().Fired() {
			r := req.Completion().Result()
			return r.Tech, r.Err
		}
		if cerr := m.gate.CancelRequest(req); cerr != nil {
			m.log.Debug().Err(cerr).Msg("closing cancelled request")
		}
		return "", fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	}
	return tech, err
}

// HasPendingRequest reports whether a technology request is outstanding,
// connected or still waiting for a tag.
func (m *Manager) HasPendingRequest() bool {
	return m.gate.Pending() != nil
}

// CancelTechnologyRequest cancels the pending technology request, if any.
func (m *Manager) CancelTechnologyRequest() error {
	return m.gate.Cancel()
}

// GetTag returns the event of the tag the current request connected to.
func (m *Manager) GetTag() (*TagEvent, error) {
	s, err := m.session()
	if err != nil {
		return nil, err
	}
	raw := s.Raw()
	if raw == nil {
		return nil, ErrNoTagReference
	}
	return m.translator.ToTagEvent(raw), nil
}

// GetBackgroundTag returns the cached background tag, or nil.
func (m *Manager) GetBackgroundTag() *TagEvent {
	return m.gate.BackgroundTag()
}

// ClearBackgroundTag empties the background tag cache.
func (m *Manager) ClearBackgroundTag() {
	m.gate.ClearBackgroundTag()
}

// GetLaunchTagEvent returns the event of the tag that launched the
// application, or nil.
func (m *Manager) GetLaunchTagEvent() *TagEvent {
	return m.translator.ToTagEvent(m.host.LaunchTag())
}

func (m *Manager) session() (*TagSession, error) {
	s := m.gate.Session()
	if s == nil {
		return nil, ErrNoActiveSession
	}
	return s, nil
}

// Transceive sends data over the connected technology.
func (m *Manager) Transceive(ctx context.Context, data []byte) ([]byte, error) {
	s, err := m.session()
	if err != nil {
		return nil, err
	}
	return s.Transceive(ctx, data)
}

// SetTimeout sets the transceive timeout of the connected technology.
func (m *Manager) SetTimeout(timeout time.Duration) error {
	s, err := m.session()
	if err != nil {
		return err
	}
	return s.SetTimeout(timeout)
}

// GetMaxTransceiveLength returns the largest frame Transceive accepts.
func (m *Manager) GetMaxTransceiveLength() (int, error) {
	s, err := m.session()
	if err != nil {
		return 0, err
	}
	return s.MaxTransceiveLength()
}

// MifareClassicSectorToBlock returns the first block of sector.
func (m *Manager) MifareClassicSectorToBlock(sector int) (int, error) {
	s, err := m.session()
	if err != nil {
		return 0, err
	}
	return s.MifareClassicSectorToBlock(sector)
}

// MifareClassicReadBlock reads one block.
func (m *Manager) MifareClassicReadBlock(ctx context.Context, block int) ([]byte, error) {
	s, err := m.session()
	if err != nil {
		return nil, err
	}
	return s.MifareClassicReadBlock(ctx, block)
}

// MifareClassicWriteBlock writes one block.
func (m *Manager) MifareClassicWriteBlock(ctx context.Context, block int, data []byte) error {
	s, err := m.session()
	if err != nil {
		return err
	}
	return s.MifareClassicWriteBlock(ctx, block, data)
}

// MifareClassicIncrementBlock increments a value block.
func (m *Manager) MifareClassicIncrementBlock(ctx context.Context, block, value int) error {
	s, err := m.session()
	if err != nil {
		return err
	}
	return s.MifareClassicIncrementBlock(ctx, block, value)
}

// MifareClassicDecrementBlock decrements a value block.
func (m *Manager) MifareClassicDecrementBlock(ctx context.Context, block, value int) error {
	s, err := m.session()
	if err != nil {
		return err
	}
	return s.MifareClassicDecrementBlock(ctx, block, value)
}

// MifareClassicTransferBlock commits the value register to block.
func (m *Manager) MifareClassicTransferBlock(ctx context.Context, block int) error {
	s, err := m.session()
	if err != nil {
		return err
	}
	return s.MifareClassicTransferBlock(ctx, block)
}

// MifareClassicGetSectorCount returns the sector count of the tag.
func (m *Manager) MifareClassicGetSectorCount() (int, error) {
	s, err := m.session()
	if err != nil {
		return 0, err
	}
	return s.MifareClassicGetSectorCount()
}

// MifareClassicAuthenticateA authenticates sector with key A.
func (m *Manager) MifareClassicAuthenticateA(ctx context.Context, sector int, key []byte) error {
	s, err := m.session()
	if err != nil {
		return err
	}
	return s.MifareClassicAuthenticateA(ctx, sector, key)
}

// MifareClassicAuthenticateB authenticates sector with key B.
func (m *Manager) MifareClassicAuthenticateB(ctx context.Context, sector int, key []byte) error {
	s, err := m.session()
	if err != nil {
		return err
	}
	return s.MifareClassicAuthenticateB(ctx, sector, key)
}

// MifareUltralightReadPages reads four pages from offset.
func (m *Manager) MifareUltralightReadPages(ctx context.Context, offset int) ([]byte, error) {
	s, err := m.session()
	if err != nil {
		return nil, err
	}
	return s.MifareUltralightReadPages(ctx, offset)
}

// MifareUltralightWritePage writes one page.
func (m *Manager) MifareUltralightWritePage(ctx context.Context, offset int, data []byte) error {
	s, err := m.session()
	if err != nil {
		return err
	}
	return s.MifareUltralightWritePage(ctx, offset, data)
}

// GetNdefMessage reads the NDEF message from the tag.
func (m *Manager) GetNdefMessage(ctx context.Context) (*TagEvent, error) {
	s, err := m.session()
	if err != nil {
		return nil, err
	}
	return s.GetNdefMessage(ctx)
}

// GetCachedNdefMessage returns the NDEF message read at discovery.
func (m *Manager) GetCachedNdefMessage() (*TagEvent, error) {
	s, err := m.session()
	if err != nil {
		return nil, err
	}
	return s.GetCachedNdefMessage()
}

// WriteNdefMessage encodes data as a platform NDEF message and writes it.
func (m *Manager) WriteNdefMessage(ctx context.Context, data []byte, reconnectAfterWrite bool) error {
	s, err := m.session()
	if err != nil {
		return err
	}
	msg, err := m.createMessage("writeNdefMessage", data)
	if err != nil {
		return err
	}
	return s.WriteNdefMessage(ctx, msg, reconnectAfterWrite)
}

// MakeReadOnly locks the tag. Returns false if the tag refused.
func (m *Manager) MakeReadOnly(ctx context.Context) (bool, error) {
	s, err := m.session()
	if err != nil {
		return false, err
	}
	return s.MakeReadOnly(ctx)
}

// GetNdefStatus returns the capacity and lock state of the tag.
func (m *Manager) GetNdefStatus() (*NdefStatus, error) {
	s, err := m.session()
	if err != nil {
		return nil, err
	}
	return s.GetNdefStatus()
}

// FormatNdef formats the tag with data as the initial message.
func (m *Manager) FormatNdef(ctx context.Context, data []byte, readOnly bool) error {
	s, err := m.session()
	if err != nil {
		return err
	}
	msg, err := m.createMessage("formatNdef", data)
	if err != nil {
		return err
	}
	return s.FormatNdef(ctx, msg, readOnly)
}

func (m *Manager) createMessage(op string, data []byte) (*NdefMessage, error) {
	msg, err := m.platform.CreateNdefMessage(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s fail: %w", ErrValidationFailed, op, err)
	}
	return msg, nil
}
