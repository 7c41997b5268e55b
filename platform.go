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
	"time"
)

// RawTag is the platform's handle to a discovered tag. Only platforms
// construct RawTags; the manager treats Payload as opaque.
type RawTag struct {
	// Payload is whatever the platform needs to derive technology handles.
	Payload any
	// Ndef is the message pre-parsed by the platform at discovery, if any.
	Ndef *NdefMessage
	// UID is the tag identifier.
	UID []byte
	// Techs is the set of technologies the tag advertises.
	Techs TechMask
}

// TagHandle is the part every platform technology handle has in common.
type TagHandle interface {
	// Connect opens the technology on the tag.
	Connect(ctx context.Context) error
	// IsConnected reports whether Connect succeeded and Close has not run.
	IsConnected() bool
	// Close releases the platform connection.
	Close() error
}

// Transceiver is implemented by every technology that can exchange raw
// frames with the tag.
type Transceiver interface {
	MaxTransmitSize() (int, error)
	SetTimeout(timeout time.Duration) error
	Transmit(ctx context.Context, data []byte) ([]byte, error)
}

// NfcATag is the platform view of an ISO 14443-3A tag.
type NfcATag interface {
	TagHandle
	Transceiver
	SAK() byte
	ATQA() []byte
}

// NfcBTag is the platform view of an ISO 14443-3B tag.
type NfcBTag interface {
	TagHandle
	Transceiver
	ApplicationData() []byte
	ProtocolInfo() []byte
}

// NfcFTag is the platform view of a FeliCa tag.
type NfcFTag interface {
	TagHandle
	Transceiver
	SystemCode() []byte
	Manufacturer() []byte
}

// NfcVTag is the platform view of an ISO 15693 tag.
type NfcVTag interface {
	TagHandle
	Transceiver
	ResponseFlags() byte
	DSFID() byte
}

// IsoDepTag is the platform view of an ISO 14443-4 tag.
type IsoDepTag interface {
	TagHandle
	Transceiver
	HistoricalBytes() []byte
}

// MifareClassicTag is the platform view of a MIFARE Classic tag.
type MifareClassicTag interface {
	TagHandle
	Transceiver
	ClassicType() MifareClassicType
	SectorCount() int
	BlockIndex(sector int) int
	Authenticate(ctx context.Context, sector int, key []byte, keyA bool) error
	ReadBlock(ctx context.Context, block int) ([]byte, error)
	WriteBlock(ctx context.Context, block int, data []byte) error
	Increment(ctx context.Context, block, value int) error
	Decrement(ctx context.Context, block, value int) error
	Transfer(ctx context.Context, block int) error
}

// MifareUltralightTag is the platform view of a MIFARE Ultralight tag.
type MifareUltralightTag interface {
	TagHandle
	Transceiver
	UltralightType() UltralightType
	ReadPages(ctx context.Context, offset int) ([]byte, error)
	WritePage(ctx context.Context, offset int, data []byte) error
}

// NdefTag is the platform view of NDEF formatted content.
type NdefTag interface {
	TagHandle
	// ForumType is the NFC Forum tag type code (1-4, or a vendor code).
	ForumType() int
	MaxSize() int
	IsWritable() bool
	CanMakeReadOnly() bool
	// CachedMessage returns the message read when the tag was discovered.
	CachedMessage() (*NdefMessage, error)
	ReadMessage(ctx context.Context) (*NdefMessage, error)
	WriteMessage(ctx context.Context, msg *NdefMessage) error
	MakeReadOnly(ctx context.Context) error
	Reconnect(ctx context.Context) error
}

// NdefFormatableTag is the platform view of a tag that can be formatted.
type NdefFormatableTag interface {
	TagHandle
	Format(ctx context.Context, msg *NdefMessage) error
	FormatReadOnly(ctx context.Context, msg *NdefMessage) error
}

// Deriver produces technology views of a raw tag. Each call only builds
// the view; it does not connect.
type Deriver interface {
	Ndef(raw *RawTag) (NdefTag, error)
	NfcA(raw *RawTag) (NfcATag, error)
	NfcB(raw *RawTag) (NfcBTag, error)
	NfcF(raw *RawTag) (NfcFTag, error)
	NfcV(raw *RawTag) (NfcVTag, error)
	IsoDep(raw *RawTag) (IsoDepTag, error)
	MifareClassic(raw *RawTag) (MifareClassicTag, error)
	MifareUltralight(raw *RawTag) (MifareUltralightTag, error)
	NdefFormatable(raw *RawTag) (NdefFormatableTag, error)
}

// TagCallback receives tags from the platform discovery stream.
type TagCallback func(raw *RawTag, err error)

// Discovery switches the platform between its two mutually exclusive
// tag discovery registrations.
type Discovery interface {
	EnableForegroundDispatch(filter []Technology, onTag TagCallback) error
	DisableForegroundDispatch() error
	EnableReaderMode(filter []Technology, flags ReaderFlag, delay time.Duration, onTag TagCallback) error
	DisableReaderMode() error
}

// RadioState is the power state of the NFC radio.
type RadioState string

// Radio states.
const (
	RadioOff        RadioState = "off"
	RadioTurningOn  RadioState = "turning_on"
	RadioOn         RadioState = "on"
	RadioTurningOff RadioState = "turning_off"
	RadioUnknown    RadioState = "unknown"
)

// Radio exposes the capability and power state of the NFC controller.
type Radio interface {
	IsSupported() bool
	IsEnabled() (bool, error)
	// WatchState subscribes to radio state changes until stop is called.
	WatchState(onChange func(RadioState)) (stop func(), err error)
	// OpenSettings opens the host's NFC settings screen.
	OpenSettings() error
}

// NdefCodec builds platform NDEF messages from raw bytes.
type NdefCodec interface {
	CreateNdefMessage(data []byte) (*NdefMessage, error)
}

// Platform is everything the manager needs from the OS NFC stack.
type Platform interface {
	Deriver
	Discovery
	Radio
	NdefCodec
}
