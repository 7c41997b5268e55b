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

// Package ndefcodec converts between NDEF message bytes and the record
// model used by nfcmanager. Parsing and serialisation are done by
// github.com/hsanjuan/go-ndef.
package ndefcodec

import (
	"errors"
	"fmt"

	"github.com/hsanjuan/go-ndef"
	"github.com/hsanjuan/go-ndef/types/generic"

	nfcmanager "github.com/ZaparooProject/go-nfcmanager"
)

// Well-known record types.
const (
	TypeText = "T"
	TypeURI  = "U"
)

// Codec errors.
var (
	ErrEmptyMessage = errors.New("ndefcodec: empty message")
	ErrNoText       = errors.New("ndefcodec: no text or URI record found")
)

// Decode parses an NDEF message.
func Decode(data []byte) (*nfcmanager.NdefMessage, error) {
	if len(data) == 0 {
		return nil, ErrEmptyMessage
	}
	var msg ndef.Message
	if _, err := msg.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("ndefcodec: decode: %w", err)
	}
	return fromNdef(&msg)
}

// Encode serialises msg.
func Encode(msg *nfcmanager.NdefMessage) ([]byte, error) {
	if msg == nil || len(msg.Records) == 0 {
		return nil, ErrEmptyMessage
	}
	out := &ndef.Message{Records: make([]*ndef.Record, 0, len(msg.Records))}
	for _, r := range msg.Records {
		out.Records = append(out.Records, ndef.NewRecord(
			r.TNF, string(r.Type), string(r.ID), generic.New(r.Payload),
		))
	}
	data, err := out.Marshal()
	if err != nil {
		return nil, fmt.Errorf("ndefcodec: encode: %w", err)
	}
	return data, nil
}

func fromNdef(msg *ndef.Message) (*nfcmanager.NdefMessage, error) {
	out := &nfcmanager.NdefMessage{Records: make([]nfcmanager.NdefRecord, 0, len(msg.Records))}
	for i, r := range msg.Records {
		payload, err := r.Payload()
		if err != nil {
			return nil, fmt.Errorf("ndefcodec: record %d payload: %w", i, err)
		}
		var body []byte
		if payload != nil {
			body = payload.Marshal()
		}
		out.Records = append(out.Records, nfcmanager.NdefRecord{
			ID:      []byte(r.ID()),
			TNF:     r.TNF(),
			Type:    []byte(r.Type()),
			Payload: body,
		})
	}
	return out, nil
}

// TextMessage builds a single text record message.
func TextMessage(text, language string) (*nfcmanager.NdefMessage, error) {
	if language == "" {
		language = "en"
	}
	return fromNdef(ndef.NewTextMessage(text, language))
}

// URIMessage builds a single URI record message.
func URIMessage(uri string) (*nfcmanager.NdefMessage, error) {
	return fromNdef(ndef.NewURIMessage(uri))
}

// TextBytes returns the encoded bytes of a single text record message, as
// accepted by Manager.WriteNdefMessage.
func TextBytes(text string) ([]byte, error) {
	data, err := ndef.NewTextMessage(text, "en").Marshal()
	if err != nil {
		return nil, fmt.Errorf("ndefcodec: encode text: %w", err)
	}
	return data, nil
}

// ExtractText returns the value of the first well-known text or URI
// record in msg.
func ExtractText(msg *nfcmanager.NdefMessage) (string, error) {
	data, err := Encode(msg)
	if err != nil {
		return "", err
	}
	var parsed ndef.Message
	if _, err := parsed.Unmarshal(data); err != nil {
		return "", fmt.Errorf("ndefcodec: decode: %w", err)
	}
	for _, r := range parsed.Records {
		if r.TNF() != ndef.NFCForumWellKnownType {
			continue
		}
		if r.Type() != TypeText && r.Type() != TypeURI {
			continue
		}
		payload, err := r.Payload()
		if err != nil {
			return "", fmt.Errorf("ndefcodec: %s payload: %w", r.Type(), err)
		}
		return payload.String(), nil
	}
	return "", ErrNoText
}

// Codec implements nfcmanager.NdefCodec.
type Codec struct{}

// CreateNdefMessage parses data into a message.
func (Codec) CreateNdefMessage(data []byte) (*nfcmanager.NdefMessage, error) {
	return Decode(data)
}

var _ nfcmanager.NdefCodec = Codec{}
