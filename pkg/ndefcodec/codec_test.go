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

package ndefcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nfcmanager "github.com/ZaparooProject/go-nfcmanager"
)

func TestTextMessage(t *testing.T) {
	t.Parallel()

	msg, err := TextMessage("hello", "")
	require.NoError(t, err)
	require.Len(t, msg.Records, 1)

	rec := msg.Records[0]
	assert.Equal(t, byte(1), rec.TNF)
	assert.Equal(t, []byte(TypeText), rec.Type)
	assert.Equal(t, []byte("\x02enhello"), rec.Payload, "status byte, language code and text")
}

func TestEncodeDecode(t *testing.T) {
	t.Parallel()

	msg, err := URIMessage("https://zaparoo.org")
	require.NoError(t, err)

	data, err := Encode(msg)
	require.NoError(t, err)
	assert.Equal(t, byte(0xC0), data[0]&0xC0, "single record message sets MB and ME")

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)

	text, err := ExtractText(decoded)
	require.NoError(t, err)
	assert.Equal(t, "https://zaparoo.org", text)
}

func TestEncode_Empty(t *testing.T) {
	t.Parallel()

	_, err := Encode(nil)
	require.ErrorIs(t, err, ErrEmptyMessage)
	_, err = Encode(&nfcmanager.NdefMessage{})
	require.ErrorIs(t, err, ErrEmptyMessage)
	_, err = Decode(nil)
	require.ErrorIs(t, err, ErrEmptyMessage)
}

func TestExtractText(t *testing.T) {
	t.Parallel()

	t.Run("first text record", func(t *testing.T) {
		t.Parallel()
		msg, err := TextMessage("**launch.system:snes", "en")
		require.NoError(t, err)
		text, err := ExtractText(msg)
		require.NoError(t, err)
		assert.Equal(t, "**launch.system:snes", text)
	})

	t.Run("skips other records", func(t *testing.T) {
		t.Parallel()
		text, err := TextMessage("second", "en")
		require.NoError(t, err)
		msg := &nfcmanager.NdefMessage{Records: []nfcmanager.NdefRecord{
			{TNF: 2, Type: []byte("application/json"), Payload: []byte(`{}`)},
			text.Records[0],
		}}
		got, err := ExtractText(msg)
		require.NoError(t, err)
		assert.Equal(t, "second", got)
	})

	t.Run("no text", func(t *testing.T) {
		t.Parallel()
		msg := &nfcmanager.NdefMessage{Records: []nfcmanager.NdefRecord{
			{TNF: 2, Type: []byte("application/octet-stream"), Payload: []byte{1, 2, 3}},
		}}
		_, err := ExtractText(msg)
		require.ErrorIs(t, err, ErrNoText)
	})
}

func TestCodec_CreateNdefMessage(t *testing.T) {
	t.Parallel()

	data, err := TextBytes("from bytes")
	require.NoError(t, err)

	var c Codec
	msg, err := c.CreateNdefMessage(data)
	require.NoError(t, err)
	text, err := ExtractText(msg)
	require.NoError(t, err)
	assert.Equal(t, "from bytes", text)

	_, err = c.CreateNdefMessage(nil)
	require.ErrorIs(t, err, ErrEmptyMessage)
}
