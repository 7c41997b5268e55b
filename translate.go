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
	"encoding/hex"
	"strconv"

	"github.com/rs/zerolog"
)

// NdefRecord is a single NDEF record. The manager does not interpret the
// fields beyond copying them.
type NdefRecord struct {
	ID      []byte `json:"id"`
	Type    []byte `json:"type"`
	Payload []byte `json:"payload"`
	TNF     byte   `json:"tnf"`
}

// NdefMessage is an ordered list of NDEF records.
type NdefMessage struct {
	Records []NdefRecord
}

// TagEvent is the technology-agnostic description of a tag delivered to
// the application. The NDEF fields are only set for NDEF-capable tags.
type TagEvent struct {
	ID              string       `json:"id"`
	TechTypes       []string     `json:"techTypes"`
	Type            string       `json:"type,omitempty"`
	NdefMessage     []NdefRecord `json:"ndefMessage,omitempty"`
	MaxSize         int          `json:"maxSize,omitempty"`
	IsWritable      bool         `json:"isWritable,omitempty"`
	CanMakeReadOnly bool         `json:"canMakeReadOnly,omitempty"`
}

// HasNdef reports whether the event carries NDEF details.
func (e *TagEvent) HasNdef() bool {
	return e != nil && e.Type != ""
}

// NdefStatus is the writable state of an NDEF tag.
type NdefStatus struct {
	MaxSize         int  `json:"maxSize"`
	IsWritable      bool `json:"isWritable"`
	CanMakeReadOnly bool `json:"canMakeReadOnly"`
}

// UIDHex renders a UID as lowercase hex, two characters per byte.
func UIDHex(uid []byte) string {
	return hex.EncodeToString(uid)
}

// ForumTypeLabel translates an NFC Forum tag type code to its label.
func ForumTypeLabel(code int) string {
	switch code {
	case 1:
		return "NFC Forum Type 1"
	case 2:
		return "NFC Forum Type 2"
	case 3:
		return "NFC Forum Type 3"
	case 4:
		return "NFC Forum Type 4"
	default:
		return strconv.Itoa(code)
	}
}

// RecordsOf copies the records of msg. A nil message yields no records.
func RecordsOf(msg *NdefMessage) []NdefRecord {
	if msg == nil {
		return []NdefRecord{}
	}
	records := make([]NdefRecord, len(msg.Records))
	for i, r := range msg.Records {
		records[i] = NdefRecord{
			ID:      append([]byte(nil), r.ID...),
			TNF:     r.TNF,
			Type:    append([]byte(nil), r.Type...),
			Payload: append([]byte(nil), r.Payload...),
		}
	}
	return records
}

// Translator converts raw tags into TagEvents.
type Translator struct {
	catalog *Catalog
	log     zerolog.Logger
}

// NewTranslator creates a translator deriving NDEF views through catalog.
func NewTranslator(catalog *Catalog, log zerolog.Logger) *Translator {
	return &Translator{catalog: catalog, log: log}
}

// ToTagEvent builds the event for raw. NDEF details are added when the tag
// advertises NDEF and the view can be derived; a failed derivation falls
// back to the plain event and is only logged.
func (t *Translator) ToTagEvent(raw *RawTag) *TagEvent {
	if raw == nil {
		return nil
	}
	event := PlainTagEvent(raw)
	if !raw.Techs.Has(TechNdef) {
		return event
	}
	h, err := t.catalog.Derive(raw, TechNdef)
	if err != nil {
		t.log.Warn().Err(err).Str("uid", event.ID).Msg("tag advertises NDEF but the view could not be derived")
		return event
	}
	ndefHandle, ok := h.(*NdefHandle)
	if !ok {
		return event
	}
	return NdefTagEvent(ndefHandle.NdefTag, raw, t.log)
}

// PlainTagEvent builds the event without NDEF details.
func PlainTagEvent(raw *RawTag) *TagEvent {
	return &TagEvent{
		ID:        UIDHex(raw.UID),
		TechTypes: raw.Techs.Names(),
	}
}

// NdefTagEvent builds the event including the details of the NDEF view.
// When the platform has no cached message the one pre-parsed on raw is used.
func NdefTagEvent(ndef NdefTag, raw *RawTag, log zerolog.Logger) *TagEvent {
	event := &TagEvent{}
	if raw != nil {
		event = PlainTagEvent(raw)
	}
	event.Type = ForumTypeLabel(ndef.ForumType())
	event.MaxSize = ndef.MaxSize()
	event.IsWritable = ndef.IsWritable()
	event.CanMakeReadOnly = ndef.CanMakeReadOnly()

	msg, err := ndef.CachedMessage()
	if err != nil {
		log.Debug().Err(err).Str("uid", event.ID).Msg("no cached NDEF message")
		msg = nil
	}
	if msg == nil && raw != nil {
		msg = raw.Ndef
	}
	event.NdefMessage = RecordsOf(msg)
	return event
}
