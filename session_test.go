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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUID = []byte{0x04, 0xA7, 0x3B, 0x12, 0x55, 0x80, 0x01}

func newSession(prefs ...Technology) *TagSession {
	return NewTagSession(NewCatalog(newFakePlatform()), prefs, nopLogger())
}

func connectedSession(t *testing.T, tag *fakeTag, prefs ...Technology) *TagSession {
	t.Helper()
	s := newSession(prefs...)
	_, err := s.Connect(context.Background(), tag.raw())
	require.NoError(t, err)
	return s
}

func TestTagSession_ConnectFirstMatchInCallerOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		techs []Technology
		prefs []Technology
		want  Technology
	}{
		{
			name:  "first preference supported",
			techs: []Technology{TechNfcA, TechMifareClassic, TechNdef},
			prefs: []Technology{TechNdef, TechNfcA},
			want:  TechNdef,
		},
		{
			name:  "caller order wins over platform order",
			techs: []Technology{TechNfcA, TechMifareClassic},
			prefs: []Technology{TechMifareClassic, TechNfcA},
			want:  TechMifareClassic,
		},
		{
			name:  "unsupported preference skipped",
			techs: []Technology{TechNfcA, TechMifareUltralight},
			prefs: []Technology{TechIsoDep, TechMifareUltralight, TechNfcA},
			want:  TechMifareUltralight,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tag := newFakeTag(testUID, tt.techs...)
			s := newSession(tt.prefs...)

			tech, err := s.Connect(context.Background(), tag.raw())
			require.NoError(t, err)
			assert.Equal(t, tt.want, tech)
			assert.Equal(t, tt.want, s.Technology())
			assert.Equal(t, StateConnected, s.State())
			assert.True(t, tag.view(tt.want).IsConnected())
		})
	}
}

func TestTagSession_ConnectFailureFallsThrough(t *testing.T) {
	t.Parallel()

	tag := newFakeTag(testUID, TechNfcA, TechIsoDep)
	tag.view(TechNfcA).connectErr = errFake
	s := newSession(TechNfcA, TechIsoDep)

	tech, err := s.Connect(context.Background(), tag.raw())
	require.NoError(t, err)
	assert.Equal(t, TechIsoDep, tech)
}

func TestTagSession_ConnectDeriveErrorFallsThrough(t *testing.T) {
	t.Parallel()

	tag := newFakeTag(testUID, TechNdef, TechNfcA)
	tag.deriveErr[TechNdef] = errFake
	s := newSession(TechNdef, TechNfcA)

	tech, err := s.Connect(context.Background(), tag.raw())
	require.NoError(t, err)
	assert.Equal(t, TechNfcA, tech)
}

func TestTagSession_ConnectTotalFailure(t *testing.T) {
	t.Parallel()

	tag := newFakeTag(testUID, TechNfcA)
	tag.view(TechNfcA).connectErr = errFake
	s := newSession(TechIsoDep, TechNfcA)

	_, err := s.Connect(context.Background(), tag.raw())
	require.ErrorIs(t, err, ErrNoTechnologyConnected)
	require.ErrorIs(t, err, errFake)
	require.ErrorIs(t, err, ErrUnsupportedTechnology)
	assert.Equal(t, StateIdle, s.State())
	assert.Empty(t, s.Technology())
	assert.Equal(t, testUID, s.Raw().UID)

	_, err = s.Transceive(context.Background(), []byte{0x30, 0x00})
	require.ErrorIs(t, err, ErrNoActiveSession)
}

func TestTagSession_CloseDuringConnect(t *testing.T) {
	t.Parallel()

	tag := newFakeTag(testUID, TechNfcA)
	s := newSession(TechNfcA)
	tag.view(TechNfcA).onConnect = func() {
		require.NoError(t, s.Close())
	}

	_, err := s.Connect(context.Background(), tag.raw())
	require.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 1, tag.view(TechNfcA).closeCount(), "late handle must be closed")
	assert.Empty(t, s.Technology())
}

func TestTagSession_ConnectAfterClose(t *testing.T) {
	t.Parallel()

	s := newSession(TechNfcA)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Connect(context.Background(), newFakeTag(testUID, TechNfcA).raw())
	require.ErrorIs(t, err, ErrCancelled)
}

func TestTagSession_ConnectTwice(t *testing.T) {
	t.Parallel()

	tag := newFakeTag(testUID, TechNfcA)
	s := connectedSession(t, tag, TechNfcA)

	_, err := s.Connect(context.Background(), tag.raw())
	require.Error(t, err)
	assert.Equal(t, StateConnected, s.State())
}

func TestTagSession_ConnectCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newSession(TechNfcA)

	_, err := s.Connect(ctx, newFakeTag(testUID, TechNfcA).raw())
	require.ErrorIs(t, err, ErrNoTechnologyConnected)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateIdle, s.State())
}

func TestTagSession_CloseReleasesHandle(t *testing.T) {
	t.Parallel()

	tag := newFakeTag(testUID, TechNfcA)
	s := connectedSession(t, tag, TechNfcA)

	require.NoError(t, s.Close())
	assert.Equal(t, StateClosed, s.State())
	assert.False(t, tag.view(TechNfcA).IsConnected())
	_, err := s.MaxTransceiveLength()
	require.ErrorIs(t, err, ErrNoActiveSession)
}

func TestTagSession_Transceive(t *testing.T) {
	t.Parallel()

	t.Run("returns response", func(t *testing.T) {
		t.Parallel()
		tag := newFakeTag(testUID, TechIsoDep)
		s := connectedSession(t, tag, TechIsoDep)

		resp, err := s.Transceive(context.Background(), []byte{0x00, 0xA4, 0x04, 0x00})
		require.NoError(t, err)
		assert.Equal(t, []byte{0x90, 0x00}, resp)
		assert.Equal(t, []byte{0x00, 0xA4, 0x04, 0x00}, tag.view(TechIsoDep).lastSent)
	})

	t.Run("empty response is an error", func(t *testing.T) {
		t.Parallel()
		tag := newFakeTag(testUID, TechNfcA)
		tag.view(TechNfcA).transmit = func([]byte) ([]byte, error) { return nil, nil }
		s := connectedSession(t, tag, TechNfcA)

		_, err := s.Transceive(context.Background(), []byte{0x30, 0x04})
		require.ErrorIs(t, err, ErrEmptyResponse)
		require.ErrorIs(t, err, ErrTransceiveFailed)
		assert.True(t, IsRetryable(err))
	})

	t.Run("platform error is wrapped", func(t *testing.T) {
		t.Parallel()
		tag := newFakeTag(testUID, TechNfcA)
		tag.view(TechNfcA).transmit = func([]byte) ([]byte, error) { return nil, errFake }
		s := connectedSession(t, tag, TechNfcA)

		_, err := s.Transceive(context.Background(), []byte{0x30, 0x04})
		var opErr *OperationError
		require.ErrorAs(t, err, &opErr)
		assert.Equal(t, "transceive", opErr.Op)
		assert.Equal(t, TechNfcA, opErr.Tech)
		require.ErrorIs(t, err, errFake)
	})

	t.Run("NDEF view cannot transceive", func(t *testing.T) {
		t.Parallel()
		tag := newFakeTag(testUID, TechNdef)
		s := connectedSession(t, tag, TechNdef)

		_, err := s.Transceive(context.Background(), []byte{0x00})
		require.ErrorIs(t, err, ErrWrongTechnology)
		assert.Equal(t, StateConnected, s.State())
	})
}

func TestTagSession_SetTimeoutAndMaxLength(t *testing.T) {
	t.Parallel()

	tag := newFakeTag(testUID, TechIsoDep)
	tag.view(TechIsoDep).maxTransmit = 261
	s := connectedSession(t, tag, TechIsoDep)

	require.NoError(t, s.SetTimeout(500*time.Millisecond))
	assert.Equal(t, 500*time.Millisecond, tag.view(TechIsoDep).timeout)

	err := s.SetTimeout(-time.Second)
	require.ErrorIs(t, err, ErrValidationFailed)

	n, err := s.MaxTransceiveLength()
	require.NoError(t, err)
	assert.Equal(t, 261, n)
}

func TestTagSession_Preferences(t *testing.T) {
	t.Parallel()

	prefs := []Technology{TechNfcA, TechNdef}
	s := newSession(prefs...)
	got := s.Preferences()
	got[0] = TechNfcV
	assert.Equal(t, prefs, s.Preferences())
	assert.NotEmpty(t, s.ID())
}

func TestSessionState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", SessionState(42).String())
}
