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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGate(reg Registration) (*RequestGate, *recordingEmitter) {
	catalog := NewCatalog(newFakePlatform())
	em := &recordingEmitter{}
	return NewRequestGate(catalog, NewTranslator(catalog, nopLogger()), reg, em, nopLogger()), em
}

var activeReg = staticRegistration{registered: true, foreground: true}

func TestRequestGate_SubmitValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		reg     Registration
		wantErr error
		name    string
		prefs   []Technology
	}{
		{name: "no technologies", reg: activeReg, prefs: nil, wantErr: ErrValidationFailed},
		{name: "unknown technology", reg: activeReg, prefs: []Technology{"Bluetooth"}, wantErr: ErrValidationFailed},
		{name: "not registered", reg: staticRegistration{foreground: true}, prefs: []Technology{TechNfcA}, wantErr: ErrNotRegistered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g, _ := newTestGate(tt.reg)
			_, err := g.Submit(tt.prefs)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, g.Pending())
		})
	}
}

func TestRequestGate_AlreadyPending(t *testing.T) {
	t.Parallel()

	g, _ := newTestGate(activeReg)
	req, err := g.Submit([]Technology{TechNfcA})
	require.NoError(t, err)

	_, err = g.Submit([]Technology{TechNdef})
	require.ErrorIs(t, err, ErrAlreadyPending)
	assert.Same(t, req, g.Pending())
}

func TestRequestGate_TagConnectsPendingRequest(t *testing.T) {
	t.Parallel()

	g, em := newTestGate(activeReg)
	req, err := g.Submit([]Technology{TechMifareClassic, TechNfcA})
	require.NoError(t, err)

	g.OnTagDiscovered(context.Background(), newFakeTag(testUID, TechNfcA, TechMifareClassic).raw(), nil)

	tech, err := req.Completion().Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TechMifareClassic, tech)
	assert.Same(t, req.Session(), g.Session())
	assert.Empty(t, em.all(), "a tag consumed by a request is not announced")

	// The connected request stays pending until cancelled
	_, err = g.Submit([]Technology{TechNfcA})
	require.ErrorIs(t, err, ErrAlreadyPending)
}

func TestRequestGate_TagWhileConnectedIsAnnounced(t *testing.T) {
	t.Parallel()

	g, em := newTestGate(activeReg)
	_, err := g.Submit([]Technology{TechNfcA})
	require.NoError(t, err)
	g.OnTagDiscovered(context.Background(), newFakeTag(testUID, TechNfcA).raw(), nil)

	second := []byte{0x01, 0x02, 0x03, 0x04}
	g.OnTagDiscovered(context.Background(), newFakeTag(second, TechNfcA).raw(), nil)

	events := em.all()
	require.Len(t, events, 1)
	assert.Equal(t, EventDiscoverTag, events[0].Name)
	assert.Equal(t, "01020304", events[0].Tag.ID)
	assert.False(t, events[0].At.IsZero())
}

func TestRequestGate_FailedConnectRejectsAndClears(t *testing.T) {
	t.Parallel()

	g, _ := newTestGate(activeReg)
	req, err := g.Submit([]Technology{TechIsoDep})
	require.NoError(t, err)

	g.OnTagDiscovered(context.Background(), newFakeTag(testUID, TechNfcA).raw(), nil)

	_, err = req.Completion().Wait(context.Background())
	require.ErrorIs(t, err, ErrNoTechnologyConnected)
	assert.Nil(t, g.Pending())
	assert.Equal(t, StateClosed, req.Session().State())

	_, err = g.Submit([]Technology{TechNfcA})
	require.NoError(t, err)
}

func TestRequestGate_CancelThenLateTag(t *testing.T) {
	t.Parallel()

	g, em := newTestGate(activeReg)
	req, err := g.Submit([]Technology{TechNfcA})
	require.NoError(t, err)

	require.NoError(t, g.Cancel())
	_, err = req.Completion().Wait(context.Background())
	require.ErrorIs(t, err, ErrCancelled)
	assert.Nil(t, g.Pending())

	tag := newFakeTag(testUID, TechNfcA)
	g.OnTagDiscovered(context.Background(), tag.raw(), nil)

	assert.True(t, req.Completion().Fired())
	_, err = req.Completion().Wait(context.Background())
	require.ErrorIs(t, err, ErrCancelled, "the result never changes after firing")
	assert.False(t, tag.view(TechNfcA).IsConnected())
	require.Len(t, em.all(), 1)
	assert.Equal(t, EventDiscoverTag, em.all()[0].Name)
}

func TestRequestGate_CancelDuringConnect(t *testing.T) {
	t.Parallel()

	g, _ := newTestGate(activeReg)
	req, err := g.Submit([]Technology{TechNfcA})
	require.NoError(t, err)

	tag := newFakeTag(testUID, TechNfcA)
	tag.view(TechNfcA).onConnect = func() {
		require.NoError(t, g.Cancel())
	}
	g.OnTagDiscovered(context.Background(), tag.raw(), nil)

	_, err = req.Completion().Wait(context.Background())
	require.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, 1, tag.view(TechNfcA).closeCount())
	assert.Nil(t, g.Session())
}

func TestRequestGate_CancelWithoutRequest(t *testing.T) {
	t.Parallel()

	g, _ := newTestGate(activeReg)
	require.NoError(t, g.Cancel())
	require.NoError(t, g.CancelRequest(&TechnologyRequest{}))
}

func TestRequestGate_CancelRequestIgnoresStale(t *testing.T) {
	t.Parallel()

	g, _ := newTestGate(activeReg)
	old, err := g.Submit([]Technology{TechNfcA})
	require.NoError(t, err)
	require.NoError(t, g.Cancel())
	current, err := g.Submit([]Technology{TechNfcA})
	require.NoError(t, err)

	require.NoError(t, g.CancelRequest(old))
	assert.Same(t, current, g.Pending())
	assert.False(t, current.Completion().Fired())
}

func TestRequestGate_BackgroundRouting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		reg       staticRegistration
		name      string
		wantEvent EventName
		cached    bool
	}{
		{name: "registered foreground", reg: activeReg, wantEvent: EventDiscoverTag},
		{name: "registered background", reg: staticRegistration{registered: true}, wantEvent: EventDiscoverBackgroundTag, cached: true},
		{name: "unregistered", reg: staticRegistration{foreground: true}, wantEvent: EventDiscoverBackgroundTag, cached: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g, em := newTestGate(tt.reg)
			g.OnTagDiscovered(context.Background(), newFakeTag(testUID, TechNfcA).raw(), nil)

			events := em.all()
			require.Len(t, events, 1)
			assert.Equal(t, tt.wantEvent, events[0].Name)
			if tt.cached {
				require.NotNil(t, g.BackgroundTag())
				assert.Equal(t, UIDHex(testUID), g.BackgroundTag().ID)
			} else {
				assert.Nil(t, g.BackgroundTag())
			}
		})
	}
}

func TestRequestGate_BackgroundCacheReplacedAndCleared(t *testing.T) {
	t.Parallel()

	g, _ := newTestGate(staticRegistration{})
	g.OnTagDiscovered(context.Background(), newFakeTag([]byte{0x01}, TechNfcA).raw(), nil)
	g.OnTagDiscovered(context.Background(), newFakeTag([]byte{0x02}, TechNfcA).raw(), nil)
	assert.Equal(t, "02", g.BackgroundTag().ID)

	g.ClearBackgroundTag()
	assert.Nil(t, g.BackgroundTag())
}

func TestRequestGate_SeedLaunchTag(t *testing.T) {
	t.Parallel()

	g, em := newTestGate(activeReg)
	g.SeedLaunchTag(context.Background(), nil)
	assert.Nil(t, g.BackgroundTag())

	g.SeedLaunchTag(context.Background(), newFakeTag(testUID, TechNfcA).raw())
	require.NotNil(t, g.BackgroundTag())
	assert.Empty(t, em.all(), "seeding does not notify")
}

func TestRequestGate_LaunchTagRouting(t *testing.T) {
	t.Parallel()

	g, em := newTestGate(staticRegistration{registered: true})
	g.OnLaunchTag(context.Background(), newFakeTag(testUID, TechNfcA).raw())

	require.Len(t, em.all(), 1)
	assert.Equal(t, EventDiscoverBackgroundTag, em.all()[0].Name)
	assert.NotNil(t, g.BackgroundTag())
}

func TestRequestGate_DiscoveryErrorsIgnored(t *testing.T) {
	t.Parallel()

	g, em := newTestGate(activeReg)
	req, err := g.Submit([]Technology{TechNfcA})
	require.NoError(t, err)

	g.OnTagDiscovered(context.Background(), nil, errFake)
	g.OnTagDiscovered(context.Background(), nil, nil)

	assert.False(t, req.Completion().Fired())
	assert.Empty(t, em.all())
}

func TestRequestGate_NdefTagEventDetails(t *testing.T) {
	t.Parallel()

	g, em := newTestGate(activeReg)
	tag := newFakeTag(testUID, TechNfcA, TechNdef)
	raw := tag.raw()
	raw.Ndef = textMessage("hello")
	g.OnTagDiscovered(context.Background(), raw, nil)

	events := em.all()
	require.Len(t, events, 1)
	ev := events[0].Tag
	assert.Equal(t, "NFC Forum Type 2", ev.Type)
	assert.Equal(t, 137, ev.MaxSize)
	assert.True(t, ev.IsWritable)
	require.Len(t, ev.NdefMessage, 1)
	assert.Equal(t, []string{"NfcA", "Ndef"}, ev.TechTypes)
}
