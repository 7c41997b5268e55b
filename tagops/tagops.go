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

// Package tagops provides high level tag operations on top of the
// technology request flow of a Manager. Each operation requests the
// technology it needs, runs with retries and always releases the request.
package tagops

import (
	"context"
	"errors"
	"fmt"

	nfcmanager "github.com/ZaparooProject/go-nfcmanager"
	"github.com/ZaparooProject/go-nfcmanager/pkg/ndefcodec"
	"github.com/rs/zerolog"
)

// Errors
var (
	ErrAuthFailed  = errors.New("authentication failed with all known keys")
	ErrNotWritable = errors.New("tag is not writable")
)

// Manager is the part of *nfcmanager.Manager used by TagOperations.
type Manager interface {
	AcquireTechnology(
		ctx context.Context, techs ...nfcmanager.Technology,
	) (nfcmanager.Technology, func() error, error)
	GetTag() (*nfcmanager.TagEvent, error)
	GetNdefMessage(ctx context.Context) (*nfcmanager.TagEvent, error)
	GetNdefStatus() (*nfcmanager.NdefStatus, error)
	WriteNdefMessage(ctx context.Context, data []byte, reconnectAfterWrite bool) error
	MifareClassicSectorToBlock(sector int) (int, error)
	MifareClassicGetSectorCount() (int, error)
	MifareClassicAuthenticateA(ctx context.Context, sector int, key []byte) error
	MifareClassicReadBlock(ctx context.Context, block int) ([]byte, error)
	MifareUltralightReadPages(ctx context.Context, offset int) ([]byte, error)
}

// Well known MIFARE Classic keys tried when no key is given
var defaultKeys = [][]byte{
	{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
	{0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5},
	{0xD3, 0xF7, 0xD3, 0xF7, 0xD3, 0xF7},
	{0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
}

// TagOperations runs common tag tasks through a Manager
type TagOperations struct {
	mgr   Manager
	retry *RetryConfig
	log   zerolog.Logger
}

// New creates a TagOperations. A nil retry uses DefaultRetryConfig.
func New(mgr Manager, retry *RetryConfig) *TagOperations {
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	return &TagOperations{
		mgr:   mgr,
		retry: retry,
		log:   nfcmanager.Logger().With().Str("component", "tagops").Logger(),
	}
}

// with requests one of techs, runs fn and releases that request only.
func (t *TagOperations) with(
	ctx context.Context, fn func(tech nfcmanager.Technology) error, techs ...nfcmanager.Technology,
) error {
	tech, release, err := t.mgr.AcquireTechnology(ctx, techs...)
	if err != nil {
		return fmt.Errorf("request %v: %w", techs, err)
	}
	defer func() {
		if cerr := release(); cerr != nil {
			t.log.Debug().Err(cerr).Msg("release technology request")
		}
	}()
	return fn(tech)
}

// Identify waits for a tag on any of the radio technologies and returns
// its description.
func (t *TagOperations) Identify(ctx context.Context) (*nfcmanager.TagEvent, error) {
	var event *nfcmanager.TagEvent
	err := t.with(ctx, func(nfcmanager.Technology) error {
		var err error
		event, err = t.mgr.GetTag()
		return err
	}, nfcmanager.TechNfcA, nfcmanager.TechNfcB, nfcmanager.TechNfcF, nfcmanager.TechNfcV)
	return event, err
}

// ReadNDEF waits for an NDEF tag and reads its current message.
func (t *TagOperations) ReadNDEF(ctx context.Context) (*nfcmanager.TagEvent, error) {
	var event *nfcmanager.TagEvent
	err := t.with(ctx, func(nfcmanager.Technology) error {
		return RetryWithConfig(ctx, t.retry, func() error {
			var err error
			event, err = t.mgr.GetNdefMessage(ctx)
			return err
		})
	}, nfcmanager.TechNdef)
	return event, err
}

// ReadText waits for an NDEF tag and returns its first text or URI record.
func (t *TagOperations) ReadText(ctx context.Context) (string, error) {
	event, err := t.ReadNDEF(ctx)
	if err != nil {
		return "", err
	}
	return ndefcodec.ExtractText(&nfcmanager.NdefMessage{Records: event.NdefMessage})
}

// WriteText waits for an NDEF tag and replaces its content with a single
// text record.
func (t *TagOperations) WriteText(ctx context.Context, text string) error {
	data, err := ndefcodec.TextBytes(text)
	if err != nil {
		return err
	}
	return t.with(ctx, func(nfcmanager.Technology) error {
		status, err := t.mgr.GetNdefStatus()
		if err != nil {
			return err
		}
		if !status.IsWritable {
			return ErrNotWritable
		}
		if status.MaxSize > 0 && len(data) > status.MaxSize {
			return fmt.Errorf("message of %d bytes exceeds tag capacity of %d bytes", len(data), status.MaxSize)
		}
		return RetryWithConfig(ctx, t.retry, func() error {
			return t.mgr.WriteNdefMessage(ctx, data, false)
		})
	}, nfcmanager.TechNdef)
}

// DumpSector waits for a MIFARE Classic tag and reads every block of
// sector. With a nil key the well known keys are tried in turn.
func (t *TagOperations) DumpSector(ctx context.Context, sector int, key []byte) ([][]byte, error) {
	var blocks [][]byte
	err := t.with(ctx, func(nfcmanager.Technology) error {
		if err := t.authenticate(ctx, sector, key); err != nil {
			return err
		}
		first, err := t.mgr.MifareClassicSectorToBlock(sector)
		if err != nil {
			return err
		}
		for block := first; block < first+blocksInSector(sector); block++ {
			var data []byte
			err := RetryWithConfig(ctx, t.retry, func() error {
				var err error
				data, err = t.mgr.MifareClassicReadBlock(ctx, block)
				return err
			})
			if err != nil {
				return fmt.Errorf("read block %d: %w", block, err)
			}
			blocks = append(blocks, data)
		}
		return nil
	}, nfcmanager.TechMifareClassic)
	return blocks, err
}

func (t *TagOperations) authenticate(ctx context.Context, sector int, key []byte) error {
	if key != nil {
		return t.mgr.MifareClassicAuthenticateA(ctx, sector, key)
	}
	for _, k := range defaultKeys {
		err := t.mgr.MifareClassicAuthenticateA(ctx, sector, k)
		if err == nil {
			return nil
		}
		if !errors.Is(err, nfcmanager.ErrTransceiveFailed) {
			return err
		}
		t.log.Debug().Int("sector", sector).Err(err).Msg("key rejected")
	}
	return fmt.Errorf("sector %d: %w", sector, ErrAuthFailed)
}

// blocksInSector follows the MIFARE Classic 4K layout: 32 sectors of 4
// blocks followed by 8 sectors of 16 blocks.
func blocksInSector(sector int) int {
	if sector < 32 {
		return 4
	}
	return 16
}

// ReadUltralight waits for a MIFARE Ultralight tag and reads pages
// [startPage, endPage] in chunks of four.
func (t *TagOperations) ReadUltralight(ctx context.Context, startPage, endPage int) ([]byte, error) {
	if endPage < startPage {
		return nil, fmt.Errorf("invalid page range %d-%d", startPage, endPage)
	}
	expected := (endPage - startPage + 1) * 4
	result := make([]byte, 0, expected+12)
	err := t.with(ctx, func(nfcmanager.Technology) error {
		for page := startPage; page <= endPage; page += 4 {
			var data []byte
			err := RetryWithConfig(ctx, t.retry, func() error {
				var err error
				data, err = t.mgr.MifareUltralightReadPages(ctx, page)
				return err
			})
			if err != nil {
				return fmt.Errorf("read pages at %d: %w", page, err)
			}
			result = append(result, data...)
		}
		return nil
	}, nfcmanager.TechMifareUltralight)
	if err != nil {
		return nil, err
	}
	if len(result) > expected {
		result = result[:expected]
	}
	return result, nil
}
