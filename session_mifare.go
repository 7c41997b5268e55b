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
	"fmt"
)

// mifareClassic returns the connected MIFARE Classic view. A tag the
// platform cannot classify is refused the same as a different technology.
func (s *TagSession) mifareClassic(op string) (MifareClassicTag, error) {
	h, err := s.active()
	if err != nil {
		return nil, err
	}
	mc, ok := h.(*MifareClassicHandle)
	if !ok {
		return nil, wrongTechnology(op, h.Technology())
	}
	if mc.ClassicType() == MifareClassicTypeUnknown {
		return nil, fmt.Errorf("%w: %s fail: TYPE_UNKNOWN", ErrWrongTechnology, op)
	}
	return mc.MifareClassicTag, nil
}

// checkSector validates sector against the live sector count, which
// depends on the density of the tag in the field.
func checkSector(op string, tag MifareClassicTag, sector int) error {
	count := tag.SectorCount()
	if sector < 0 || sector >= count {
		return validationError(op, "invalid sector %d (max %d)", sector, count)
	}
	return nil
}

// MifareClassicSectorToBlock returns the first block index of sector.
func (s *TagSession) MifareClassicSectorToBlock(sector int) (int, error) {
	const op = "mifareClassicSectorToBlock"
	tag, err := s.mifareClassic(op)
	if err != nil {
		return 0, err
	}
	if err := checkSector(op, tag, sector); err != nil {
		return 0, err
	}
	return tag.BlockIndex(sector), nil
}

// MifareClassicGetSectorCount returns the number of sectors on the tag.
func (s *TagSession) MifareClassicGetSectorCount() (int, error) {
	tag, err := s.mifareClassic("mifareClassicGetSectorCount")
	if err != nil {
		return 0, err
	}
	return tag.SectorCount(), nil
}

// MifareClassicAuthenticateA authenticates sector with key A.
func (s *TagSession) MifareClassicAuthenticateA(ctx context.Context, sector int, key []byte) error {
	return s.mifareClassicAuthenticate(ctx, "mifareClassicAuthenticateA", sector, key, true)
}

// MifareClassicAuthenticateB authenticates sector with key B.
func (s *TagSession) MifareClassicAuthenticateB(ctx context.Context, sector int, key []byte) error {
	return s.mifareClassicAuthenticate(ctx, "mifareClassicAuthenticateB", sector, key, false)
}

func (s *TagSession) mifareClassicAuthenticate(
	ctx context.Context, op string, sector int, key []byte, keyA bool,
) error {
	tag, err := s.mifareClassic(op)
	if err != nil {
		return err
	}
	if err := checkSector(op, tag, sector); err != nil {
		return err
	}
	if len(key) != MifareKeySize {
		return validationError(op, "invalid key (needs length %d but has %d characters)", MifareKeySize, len(key))
	}
	return NewOperationError(op, TechMifareClassic, tag.Authenticate(ctx, sector, key, keyA))
}

// MifareClassicReadBlock reads one 16 byte block.
func (s *TagSession) MifareClassicReadBlock(ctx context.Context, block int) ([]byte, error) {
	const op = "mifareClassicReadBlock"
	tag, err := s.mifareClassic(op)
	if err != nil {
		return nil, err
	}
	data, err := tag.ReadBlock(ctx, block)
	if err != nil {
		return nil, NewOperationError(op, TechMifareClassic, err)
	}
	return data, nil
}

// MifareClassicWriteBlock writes one block. data must be exactly one
// block long.
func (s *TagSession) MifareClassicWriteBlock(ctx context.Context, block int, data []byte) error {
	const op = "mifareClassicWriteBlock"
	tag, err := s.mifareClassic(op)
	if err != nil {
		return err
	}
	if len(data) != MifareBlockSize {
		return validationError(op, "invalid block size %d (should be %d)", len(data), MifareBlockSize)
	}
	return NewOperationError(op, TechMifareClassic, tag.WriteBlock(ctx, block, data))
}

// MifareClassicIncrementBlock increments the value block by value.
func (s *TagSession) MifareClassicIncrementBlock(ctx context.Context, block, value int) error {
	const op = "mifareClassicIncrementBlock"
	tag, err := s.mifareClassic(op)
	if err != nil {
		return err
	}
	if value < 0 {
		return validationError(op, "negative value %d", value)
	}
	return NewOperationError(op, TechMifareClassic, tag.Increment(ctx, block, value))
}

// MifareClassicDecrementBlock decrements the value block by value.
func (s *TagSession) MifareClassicDecrementBlock(ctx context.Context, block, value int) error {
	const op = "mifareClassicDecrementBlock"
	tag, err := s.mifareClassic(op)
	if err != nil {
		return err
	}
	if value < 0 {
		return validationError(op, "negative value %d", value)
	}
	return NewOperationError(op, TechMifareClassic, tag.Decrement(ctx, block, value))
}

// MifareClassicTransferBlock commits the internal value register to block.
func (s *TagSession) MifareClassicTransferBlock(ctx context.Context, block int) error {
	const op = "mifareClassicTransferBlock"
	tag, err := s.mifareClassic(op)
	if err != nil {
		return err
	}
	return NewOperationError(op, TechMifareClassic, tag.Transfer(ctx, block))
}

func (s *TagSession) mifareUltralight(op string) (MifareUltralightTag, error) {
	h, err := s.active()
	if err != nil {
		return nil, err
	}
	mu, ok := h.(*MifareUltralightHandle)
	if !ok {
		return nil, wrongTechnology(op, h.Technology())
	}
	return mu.MifareUltralightTag, nil
}

// MifareUltralightReadPages reads four pages starting at offset. Page
// bounds are checked by the platform.
func (s *TagSession) MifareUltralightReadPages(ctx context.Context, offset int) ([]byte, error) {
	const op = "mifareUltralightReadPages"
	tag, err := s.mifareUltralight(op)
	if err != nil {
		return nil, err
	}
	data, err := tag.ReadPages(ctx, offset)
	if err != nil {
		return nil, NewOperationError(op, TechMifareUltralight, err)
	}
	return data, nil
}

// MifareUltralightWritePage writes one page at offset.
func (s *TagSession) MifareUltralightWritePage(ctx context.Context, offset int, data []byte) error {
	const op = "mifareUltralightWritePage"
	tag, err := s.mifareUltralight(op)
	if err != nil {
		return err
	}
	return NewOperationError(op, TechMifareUltralight, tag.WritePage(ctx, offset, data))
}
