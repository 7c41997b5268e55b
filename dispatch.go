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
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ZaparooProject/go-nfcmanager/internal/syncutil"
)

// ReaderFlag selects the radio technology polled in reader mode.
type ReaderFlag uint32

// Reader mode flags.
const (
	FlagReaderNfcA ReaderFlag = 0x1
	FlagReaderNfcB ReaderFlag = 0x2
	FlagReaderNfcF ReaderFlag = 0x4
	FlagReaderNfcV ReaderFlag = 0x8
)

// ReaderModeFilter returns the discovery filter for flags. Exactly one
// recognised flag selects that technology alone; any other value,
// including combinations, falls back to NfcA and NfcB.
func ReaderModeFilter(flags ReaderFlag) []Technology {
	switch flags {
	case FlagReaderNfcA:
		return []Technology{TechNfcA}
	case FlagReaderNfcB:
		return []Technology{TechNfcB}
	case FlagReaderNfcF:
		return []Technology{TechNfcF}
	case FlagReaderNfcV:
		return []Technology{TechNfcV}
	default:
		return []Technology{TechNfcA, TechNfcB}
	}
}

// DispatchMode is the active discovery registration.
type DispatchMode int32

// Dispatch modes.
const (
	DispatchDisabled DispatchMode = iota
	DispatchForeground
	DispatchReaderMode
)

func (m DispatchMode) String() string {
	switch m {
	case DispatchDisabled:
		return "disabled"
	case DispatchForeground:
		return "foreground_dispatch"
	case DispatchReaderMode:
		return "reader_mode"
	default:
		return fmt.Sprintf("DispatchMode(%d)", int32(m))
	}
}

// RegisterOptions configures a tag event registration.
type RegisterOptions struct {
	// ReaderModeEnabled selects reader mode instead of foreground dispatch.
	ReaderModeEnabled bool
	// ReaderModeFlags chooses the polled technology, see ReaderModeFilter.
	ReaderModeFlags ReaderFlag
	// ReaderModeDelay is the presence check delay passed to the platform.
	ReaderModeDelay time.Duration
}

// DispatchController keeps the platform discovery registration in step
// with the registration and foreground state. Discovery only runs while
// the host is in the foreground and a registration exists.
//
// The readable state is atomic so a platform that delivers a tag
// synchronously from inside Enable can query it without deadlocking.
type DispatchController struct {
	discovery  Discovery
	onTag      TagCallback
	log        zerolog.Logger
	opts       RegisterOptions
	filter     []Technology
	mode       atomic.Int32
	registered atomic.Bool
	foreground atomic.Bool
	mu         syncutil.Mutex
}

// NewDispatchController creates a disabled controller delivering tags to
// onTag. foreground is the host state at construction.
func NewDispatchController(
	discovery Discovery, onTag TagCallback, foreground bool, log zerolog.Logger,
) *DispatchController {
	d := &DispatchController{
		discovery: discovery,
		onTag:     onTag,
		log:       log,
	}
	d.foreground.Store(foreground)
	return d
}

// Register stores opts as the active registration and enables discovery
// when the host is in the foreground. Registering again replaces the
// previous registration.
func (d *DispatchController) Register(opts RegisterOptions) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.disableLocked(); err != nil {
		return err
	}
	d.opts = opts
	d.filter = ReaderModeFilter(opts.ReaderModeFlags)
	d.registered.Store(true)
	d.log.Debug().
		Bool("readerMode", opts.ReaderModeEnabled).
		Uint32("flags", uint32(opts.ReaderModeFlags)).
		Strs("filter", techStrings(d.filter)).
		Msg("tag event registered")

	if !d.foreground.Load() {
		return nil
	}
	return d.enableLocked()
}

// Unregister disables discovery and clears the registration.
func (d *DispatchController) Unregister() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.disableLocked()
	d.registered.Store(false)
	d.opts = RegisterOptions{}
	d.filter = nil
	d.log.Debug().Msg("tag event unregistered")
	return err
}

// OnForeground re-enables discovery for an existing registration.
func (d *DispatchController) OnForeground() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.foreground.Store(true)
	if !d.registered.Load() || DispatchMode(d.mode.Load()) != DispatchDisabled {
		return nil
	}
	return d.enableLocked()
}

// OnBackground disables discovery. The registration is kept.
func (d *DispatchController) OnBackground() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.foreground.Store(false)
	return d.disableLocked()
}

// Mode returns the active discovery mode.
func (d *DispatchController) Mode() DispatchMode {
	return DispatchMode(d.mode.Load())
}

// IsRegistered reports whether a tag event registration is active.
func (d *DispatchController) IsRegistered() bool {
	return d.registered.Load()
}

// IsForeground reports the last host state seen by the controller.
func (d *DispatchController) IsForeground() bool {
	return d.foreground.Load()
}

// Filter returns the technologies of the current registration.
func (d *DispatchController) Filter() []Technology {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.filter)
}

// Options returns the current registration options.
func (d *DispatchController) Options() RegisterOptions {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opts
}

func (d *DispatchController) enableLocked() error {
	var (
		mode DispatchMode
		err  error
	)
	if d.opts.ReaderModeEnabled {
		mode = DispatchReaderMode
		d.mode.Store(int32(mode))
		err = d.discovery.EnableReaderMode(d.filter, d.opts.ReaderModeFlags, d.opts.ReaderModeDelay, d.onTag)
	} else {
		mode = DispatchForeground
		d.mode.Store(int32(mode))
		err = d.discovery.EnableForegroundDispatch(d.filter, d.onTag)
	}
	if err != nil {
		d.mode.Store(int32(DispatchDisabled))
		return fmt.Errorf("enable %s: %w", mode, err)
	}
	d.log.Debug().Str("mode", mode.String()).Msg("discovery enabled")
	return nil
}

func (d *DispatchController) disableLocked() error {
	mode := DispatchMode(d.mode.Swap(int32(DispatchDisabled)))
	var err error
	switch mode {
	case DispatchForeground:
		err = d.discovery.DisableForegroundDispatch()
	case DispatchReaderMode:
		err = d.discovery.DisableReaderMode()
	case DispatchDisabled:
		return nil
	}
	if err != nil {
		return fmt.Errorf("disable %s: %w", mode, err)
	}
	d.log.Debug().Str("mode", mode.String()).Msg("discovery disabled")
	return nil
}

func techStrings(techs []Technology) []string {
	out := make([]string, len(techs))
	for i, t := range techs {
		out[i] = t.String()
	}
	return out
}
