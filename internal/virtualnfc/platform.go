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

package virtualnfc

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	nfcmanager "github.com/ZaparooProject/go-nfcmanager"
	"github.com/ZaparooProject/go-nfcmanager/internal/syncutil"
	"github.com/ZaparooProject/go-nfcmanager/pkg/ndefcodec"
)

// Platform errors
var (
	ErrRadioOff         = errors.New("nfc radio is off")
	ErrUnsupported      = errors.New("nfc is not supported")
	ErrNotTag           = errors.New("raw tag was not produced by this platform")
	ErrTechNotAvailable = errors.New("technology not available on tag")
	ErrAlreadyActive    = errors.New("another discovery registration is active")
)

// DefaultPollInterval is the reader mode poll interval when no presence
// delay is given.
const DefaultPollInterval = 50 * time.Millisecond

type registration struct {
	onTag  nfcmanager.TagCallback
	filter []nfcmanager.Technology
}

// Platform is a simulated OS NFC stack with a single antenna field.
type Platform struct {
	ndefcodec.Codec
	field       *Tag
	foreground  *registration
	poller      *Poller
	watchers    map[int]func(nfcmanager.RadioState)
	settingsErr error
	log         zerolog.Logger
	state       nfcmanager.RadioState
	nextWatch   int
	settings    int
	mu          syncutil.Mutex
	supported   bool
}

// New creates a supported platform with the radio on.
func New(log zerolog.Logger) *Platform {
	return &Platform{
		supported: true,
		state:     nfcmanager.RadioOn,
		watchers:  make(map[int]func(nfcmanager.RadioState)),
		log:       log.With().Str("component", "virtualnfc").Logger(),
	}
}

// SetSupported switches NFC support of the simulated device.
func (p *Platform) SetSupported(supported bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.supported = supported
}

// RawTag builds the discovery result for tag, the way the platform
// reports it to callbacks and launch intents.
func (p *Platform) RawTag(tag *Tag) *nfcmanager.RawTag {
	tag.mu.Lock()
	defer tag.mu.Unlock()
	raw := &nfcmanager.RawTag{
		Payload: tag,
		UID:     tag.UID(),
		Techs:   tag.techsLocked(),
	}
	if raw.Techs.Has(nfcmanager.TechNdef) {
		msg, err := tag.loadNdefLocked()
		if err != nil {
			p.log.Debug().Err(err).Str("uid", nfcmanager.UIDHex(raw.UID)).Msg("pre-parse of NDEF failed")
		}
		raw.Ndef = msg
	}
	return raw
}

// Tap places tag in the field. With foreground dispatch registered and a
// matching filter, the tag is delivered on the calling goroutine. In reader
// mode the poll loop picks it up.
func (p *Platform) Tap(tag *Tag) {
	tag.setPresent(true)
	p.mu.Lock()
	p.field = tag
	reg := p.foreground
	on := p.state == nfcmanager.RadioOn
	p.mu.Unlock()

	if reg == nil || !on || !matches(tag.Techs(), reg.filter) {
		return
	}
	raw := p.RawTag(tag)
	p.log.Debug().Str("uid", nfcmanager.UIDHex(raw.UID)).Msg("foreground dispatch")
	reg.onTag(raw, nil)
}

// Remove takes the tag out of the field.
func (p *Platform) Remove() {
	p.mu.Lock()
	tag := p.field
	p.field = nil
	p.mu.Unlock()
	if tag != nil {
		tag.setPresent(false)
	}
}

// DeliverError reports a discovery failure to the active registration.
func (p *Platform) DeliverError(err error) {
	p.mu.Lock()
	reg := p.foreground
	p.mu.Unlock()
	if reg != nil {
		reg.onTag(nil, err)
	}
}

// Field returns the tag in the field, or nil.
func (p *Platform) Field() *Tag {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.field
}

func matches(techs nfcmanager.TechMask, filter []nfcmanager.Technology) bool {
	if len(filter) == 0 {
		return true
	}
	for _, t := range filter {
		if techs.Has(t) {
			return true
		}
	}
	return false
}

// EnableForegroundDispatch implements nfcmanager.Discovery.
func (p *Platform) EnableForegroundDispatch(filter []nfcmanager.Technology, onTag nfcmanager.TagCallback) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.poller != nil {
		return ErrAlreadyActive
	}
	p.foreground = &registration{filter: filter, onTag: onTag}
	return nil
}

// DisableForegroundDispatch implements nfcmanager.Discovery.
func (p *Platform) DisableForegroundDispatch() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.foreground = nil
	return nil
}

// EnableReaderMode implements nfcmanager.Discovery. The poll loop runs
// every delay, or DefaultPollInterval when delay is zero.
func (p *Platform) EnableReaderMode(
	filter []nfcmanager.Technology, _ nfcmanager.ReaderFlag, delay time.Duration, onTag nfcmanager.TagCallback,
) error {
	p.mu.Lock()
	if p.foreground != nil || p.poller != nil {
		p.mu.Unlock()
		return ErrAlreadyActive
	}
	if delay <= 0 {
		delay = DefaultPollInterval
	}
	poller := NewPoller(p, filter, delay, onTag)
	p.poller = poller
	p.mu.Unlock()

	poller.Start()
	return nil
}

// DisableReaderMode implements nfcmanager.Discovery and waits for the
// poll loop to exit.
func (p *Platform) DisableReaderMode() error {
	p.mu.Lock()
	poller := p.poller
	p.poller = nil
	p.mu.Unlock()
	if poller != nil {
		poller.Stop()
	}
	return nil
}

// Poller returns the active reader mode poll loop, or nil.
func (p *Platform) Poller() *Poller {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.poller
}

// IsSupported implements nfcmanager.Radio.
func (p *Platform) IsSupported() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.supported
}

// IsEnabled implements nfcmanager.Radio.
func (p *Platform) IsEnabled() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.supported {
		return false, ErrUnsupported
	}
	return p.state == nfcmanager.RadioOn, nil
}

func (p *Platform) radioOn() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == nfcmanager.RadioOn
}

// WatchState implements nfcmanager.Radio.
func (p *Platform) WatchState(onChange func(nfcmanager.RadioState)) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.supported {
		return nil, ErrUnsupported
	}
	id := p.nextWatch
	p.nextWatch++
	p.watchers[id] = onChange
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.watchers, id)
	}, nil
}

// SetRadioState moves the radio to state and notifies the watchers.
func (p *Platform) SetRadioState(state nfcmanager.RadioState) {
	p.mu.Lock()
	p.state = state
	watchers := make([]func(nfcmanager.RadioState), 0, len(p.watchers))
	for _, w := range p.watchers {
		watchers = append(watchers, w)
	}
	p.mu.Unlock()

	for _, w := range watchers {
		w(state)
	}
}

// OpenSettings implements nfcmanager.Radio.
func (p *Platform) OpenSettings() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.settingsErr != nil {
		return p.settingsErr
	}
	p.settings++
	return nil
}

// FailOpenSettings makes OpenSettings return err.
func (p *Platform) FailOpenSettings(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settingsErr = err
}

// SettingsOpened returns how often the settings screen was opened.
func (p *Platform) SettingsOpened() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings
}

func (p *Platform) tagOf(raw *nfcmanager.RawTag, tech nfcmanager.Technology) (*Tag, error) {
	if raw == nil {
		return nil, ErrNotTag
	}
	tag, ok := raw.Payload.(*Tag)
	if !ok {
		return nil, ErrNotTag
	}
	if !tag.Techs().Has(tech) {
		return nil, fmt.Errorf("%w: %s", ErrTechNotAvailable, tech)
	}
	return tag, nil
}

// Ndef implements nfcmanager.Deriver. The view caches the message the
// raw tag was discovered with.
func (p *Platform) Ndef(raw *nfcmanager.RawTag) (nfcmanager.NdefTag, error) {
	tag, err := p.tagOf(raw, nfcmanager.TechNdef)
	if err != nil {
		return nil, err
	}
	return &ndefView{conn: conn{tag: tag, radio: p, tech: nfcmanager.TechNdef}, cached: raw.Ndef}, nil
}

// NfcA implements nfcmanager.Deriver.
func (p *Platform) NfcA(raw *nfcmanager.RawTag) (nfcmanager.NfcATag, error) {
	tag, err := p.tagOf(raw, nfcmanager.TechNfcA)
	if err != nil {
		return nil, err
	}
	return &nfcAView{conn{tag: tag, radio: p, tech: nfcmanager.TechNfcA}}, nil
}

// NfcB implements nfcmanager.Deriver.
func (p *Platform) NfcB(raw *nfcmanager.RawTag) (nfcmanager.NfcBTag, error) {
	tag, err := p.tagOf(raw, nfcmanager.TechNfcB)
	if err != nil {
		return nil, err
	}
	return &nfcBView{conn{tag: tag, radio: p, tech: nfcmanager.TechNfcB}}, nil
}

// NfcF implements nfcmanager.Deriver.
func (p *Platform) NfcF(raw *nfcmanager.RawTag) (nfcmanager.NfcFTag, error) {
	tag, err := p.tagOf(raw, nfcmanager.TechNfcF)
	if err != nil {
		return nil, err
	}
	return &nfcFView{conn{tag: tag, radio: p, tech: nfcmanager.TechNfcF}}, nil
}

// NfcV implements nfcmanager.Deriver.
func (p *Platform) NfcV(raw *nfcmanager.RawTag) (nfcmanager.NfcVTag, error) {
	tag, err := p.tagOf(raw, nfcmanager.TechNfcV)
	if err != nil {
		return nil, err
	}
	return &nfcVView{conn{tag: tag, radio: p, tech: nfcmanager.TechNfcV}}, nil
}

// IsoDep implements nfcmanager.Deriver.
func (p *Platform) IsoDep(raw *nfcmanager.RawTag) (nfcmanager.IsoDepTag, error) {
	tag, err := p.tagOf(raw, nfcmanager.TechIsoDep)
	if err != nil {
		return nil, err
	}
	return &isoDepView{conn{tag: tag, radio: p, tech: nfcmanager.TechIsoDep}}, nil
}

// MifareClassic implements nfcmanager.Deriver.
func (p *Platform) MifareClassic(raw *nfcmanager.RawTag) (nfcmanager.MifareClassicTag, error) {
	tag, err := p.tagOf(raw, nfcmanager.TechMifareClassic)
	if err != nil {
		return nil, err
	}
	return &classicView{conn{tag: tag, radio: p, tech: nfcmanager.TechMifareClassic}}, nil
}

// MifareUltralight implements nfcmanager.Deriver.
func (p *Platform) MifareUltralight(raw *nfcmanager.RawTag) (nfcmanager.MifareUltralightTag, error) {
	tag, err := p.tagOf(raw, nfcmanager.TechMifareUltralight)
	if err != nil {
		return nil, err
	}
	return &ultralightView{conn{tag: tag, radio: p, tech: nfcmanager.TechMifareUltralight}}, nil
}

// NdefFormatable implements nfcmanager.Deriver.
func (p *Platform) NdefFormatable(raw *nfcmanager.RawTag) (nfcmanager.NdefFormatableTag, error) {
	tag, err := p.tagOf(raw, nfcmanager.TechNdefFormatable)
	if err != nil {
		return nil, err
	}
	return &formatableView{conn{tag: tag, radio: p, tech: nfcmanager.TechNdefFormatable}}, nil
}

var _ nfcmanager.Platform = (*Platform)(nil)
