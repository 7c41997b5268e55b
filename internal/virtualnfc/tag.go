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

// Package virtualnfc is an in-memory NFC stack implementing the
// nfcmanager platform interfaces. Tags are simulated down to their memory
// layout so the manager can be exercised without a radio.
package virtualnfc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	nfcmanager "github.com/ZaparooProject/go-nfcmanager"
	"github.com/ZaparooProject/go-nfcmanager/internal/syncutil"
	"github.com/ZaparooProject/go-nfcmanager/pkg/ndefcodec"
)

// Simulated tag errors
var (
	ErrTagLost       = errors.New("tag was lost")
	ErrNotConnected  = errors.New("technology not connected")
	ErrNotAuthorized = errors.New("sector not authenticated")
	ErrWrongKey      = errors.New("authentication failed: incorrect key")
	ErrReadOnly      = errors.New("tag is read-only")
	ErrOutOfRange    = errors.New("address out of range")
	ErrTooLarge      = errors.New("message does not fit on tag")
	ErrNoResponse    = errors.New("tag did not respond")
	ErrCannotLock    = errors.New("tag cannot be made read-only")
)

// Kind is the simulated tag product.
type Kind int

// Tag kinds.
const (
	KindNTAG213 Kind = iota
	KindUltralightC
	KindMifare1K
	KindMifare4K
	KindIsoDep
	KindIsoDepB
	KindFeliCa
	KindISO15693
)

func (k Kind) String() string {
	switch k {
	case KindNTAG213:
		return "NTAG213"
	case KindUltralightC:
		return "MIFARE Ultralight C"
	case KindMifare1K:
		return "MIFARE Classic 1K"
	case KindMifare4K:
		return "MIFARE Classic 4K"
	case KindIsoDep:
		return "ISO-DEP"
	case KindIsoDepB:
		return "ISO-DEP (Type B)"
	case KindFeliCa:
		return "FeliCa"
	case KindISO15693:
		return "ISO 15693"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Memory geometry
const (
	pageSize       = nfcmanager.MifareUltralightPageSize
	blockSize      = nfcmanager.MifareBlockSize
	ntag213Pages   = 45
	ntagUserStart  = 4
	ntag213UserEnd = 40
	ultralightCEnd = 40
	ultralightCPgs = 48
	mifare1KBlocks = 64
	mifare4KBlocks = 256
	// container tags keep NDEF outside of addressable memory
	containerNdefSize = 2048
)

var defaultKey = []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// Responder answers raw frames sent with Transmit.
type Responder func(data []byte) ([]byte, error)

// Tag is a simulated physical tag.
type Tag struct {
	connectErr  map[nfcmanager.Technology]error
	sectorKeys  map[int][]byte
	responder   Responder
	uid         []byte
	memory      []byte
	ndef        []byte
	kind        Kind
	authSector  int
	valueReg    int32
	mu          syncutil.Mutex
	present     bool
	readOnly    bool
	canLock     bool
	formatted   bool
	valueLoaded bool
}

func newTag(kind Kind, uid []byte, size int) *Tag {
	if uid == nil {
		uid = defaultUID(kind)
	}
	return &Tag{
		kind:       kind,
		uid:        bytes.Clone(uid),
		memory:     make([]byte, size),
		present:    true,
		canLock:    true,
		formatted:  true,
		authSector: -1,
		connectErr: make(map[nfcmanager.Technology]error),
		sectorKeys: make(map[int][]byte),
	}
}

func defaultUID(kind Kind) []byte {
	switch kind {
	case KindMifare1K, KindMifare4K:
		return []byte{0x12, 0x34, 0x56, 0x78}
	case KindFeliCa:
		return []byte{0x01, 0x2E, 0x4C, 0xD3, 0x8A, 0x12, 0x34, 0x56}
	case KindISO15693:
		return []byte{0xE0, 0x04, 0x01, 0x50, 0x12, 0x34, 0x56, 0x78}
	default:
		return []byte{0x04, 0xA7, 0x52, 0x1A, 0x3C, 0x5D, 0x80}
	}
}

// NewNTAG213 creates an NDEF formatted NTAG213 holding an empty message.
func NewNTAG213(uid []byte) *Tag {
	t := newTag(KindNTAG213, uid, ntag213Pages*pageSize)
	t.initUltralight(0x12)
	return t
}

// NewBlankNTAG213 creates an NTAG213 that still has to be NDEF formatted.
func NewBlankNTAG213(uid []byte) *Tag {
	t := newTag(KindNTAG213, uid, ntag213Pages*pageSize)
	copy(t.memory, t.uid)
	t.formatted = false
	return t
}

// NewUltralightC creates an NDEF formatted MIFARE Ultralight C.
func NewUltralightC(uid []byte) *Tag {
	t := newTag(KindUltralightC, uid, ultralightCPgs*pageSize)
	t.initUltralight(0x12)
	return t
}

// NewMifare1K creates a MIFARE Classic 1K with transport keys.
func NewMifare1K(uid []byte) *Tag {
	t := newTag(KindMifare1K, uid, mifare1KBlocks*blockSize)
	t.initClassic()
	return t
}

// NewMifare4K creates a MIFARE Classic 4K with transport keys.
func NewMifare4K(uid []byte) *Tag {
	t := newTag(KindMifare4K, uid, mifare4KBlocks*blockSize)
	t.initClassic()
	return t
}

// NewIsoDep creates an NFC Forum Type 4 tag. Frames are answered with
// status word 90 00 until a responder is set.
func NewIsoDep(uid []byte) *Tag {
	t := newTag(KindIsoDep, uid, 0)
	t.responder = func([]byte) ([]byte, error) { return []byte{0x90, 0x00}, nil }
	return t
}

// NewIsoDepB creates an NFC Forum Type 4 tag on an ISO 14443-3B carrier.
func NewIsoDepB(uid []byte) *Tag {
	t := NewIsoDep(uid)
	t.kind = KindIsoDepB
	return t
}

// NewFeliCa creates an NFC Forum Type 3 tag.
func NewFeliCa(uid []byte) *Tag {
	return newTag(KindFeliCa, uid, 0)
}

// NewISO15693 creates a vicinity tag without NDEF support.
func NewISO15693(uid []byte) *Tag {
	t := newTag(KindISO15693, uid, 0)
	t.formatted = false
	return t
}

func (t *Tag) initUltralight(ccSize byte) {
	copy(t.memory, t.uid)
	// capability container: NDEF magic, version 1.0, data area size, read/write
	copy(t.memory[3*pageSize:], []byte{0xE1, 0x10, ccSize, 0x00})
	tlv, _ := ndefcodec.WrapTLV(nil)
	copy(t.memory[ntagUserStart*pageSize:], tlv)
}

func (t *Tag) initClassic() {
	copy(t.memory, t.uid)
	for sector := 0; sector < t.sectorCount(); sector++ {
		trailer := t.sectorFirstBlock(sector) + t.sectorBlocks(sector) - 1
		off := trailer * blockSize
		copy(t.memory[off:], defaultKey)
		copy(t.memory[off+6:], []byte{0xFF, 0x07, 0x80, 0x69})
		copy(t.memory[off+10:], defaultKey)
		t.sectorKeys[sector] = append(bytes.Clone(defaultKey), defaultKey...)
	}
}

// Kind returns the simulated product.
func (t *Tag) Kind() Kind {
	return t.kind
}

// UID returns a copy of the tag identifier.
func (t *Tag) UID() []byte {
	return bytes.Clone(t.uid)
}

// Techs returns the technologies the tag currently advertises.
func (t *Tag) Techs() nfcmanager.TechMask {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.techsLocked()
}

func (t *Tag) techsLocked() nfcmanager.TechMask {
	var techs []nfcmanager.Technology
	switch t.kind {
	case KindNTAG213, KindUltralightC:
		techs = []nfcmanager.Technology{nfcmanager.TechNfcA, nfcmanager.TechMifareUltralight}
	case KindMifare1K, KindMifare4K:
		techs = []nfcmanager.Technology{nfcmanager.TechNfcA, nfcmanager.TechMifareClassic}
	case KindIsoDep:
		techs = []nfcmanager.Technology{nfcmanager.TechNfcA, nfcmanager.TechIsoDep}
	case KindIsoDepB:
		techs = []nfcmanager.Technology{nfcmanager.TechNfcB, nfcmanager.TechIsoDep}
	case KindFeliCa:
		techs = []nfcmanager.Technology{nfcmanager.TechNfcF}
	case KindISO15693:
		techs = []nfcmanager.Technology{nfcmanager.TechNfcV}
	}
	switch {
	case t.kind == KindMifare1K || t.kind == KindMifare4K || t.kind == KindISO15693:
	case t.formatted:
		techs = append(techs, nfcmanager.TechNdef)
	default:
		techs = append(techs, nfcmanager.TechNdefFormatable)
	}
	return nfcmanager.MaskOf(techs...)
}

// Present reports whether the tag is in the field.
func (t *Tag) Present() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.present
}

func (t *Tag) setPresent(present bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.present = present
	if !present {
		t.authSector = -1
		t.valueLoaded = false
	}
}

// FailConnect makes connecting tech fail with err. A nil err clears it.
func (t *Tag) FailConnect(tech nfcmanager.Technology, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err == nil {
		delete(t.connectErr, tech)
		return
	}
	t.connectErr[tech] = err
}

// SetResponder installs the handler for raw frames.
func (t *Tag) SetResponder(r Responder) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.responder = r
}

// SetCanMakeReadOnly controls whether MakeReadOnly succeeds.
func (t *Tag) SetCanMakeReadOnly(can bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.canLock = can
}

// SetSectorKeys replaces the keys of a MIFARE Classic sector.
func (t *Tag) SetSectorKeys(sector int, keyA, keyB []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if sector < 0 || sector >= t.sectorCount() {
		return fmt.Errorf("%w: sector %d", ErrOutOfRange, sector)
	}
	if len(keyA) != len(defaultKey) || len(keyB) != len(defaultKey) {
		return errors.New("keys must be 6 bytes")
	}
	t.sectorKeys[sector] = append(bytes.Clone(keyA), keyB...)
	return nil
}

// SetNDEFText stores a text record message on the tag.
func (t *Tag) SetNDEFText(text string) error {
	msg, err := ndefcodec.TextMessage(text, "en")
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.storeNdefLocked(msg)
}

// NDEFText returns the first text or URI value stored on the tag.
func (t *Tag) NDEFText() (string, error) {
	t.mu.Lock()
	msg, err := t.loadNdefLocked()
	t.mu.Unlock()
	if err != nil {
		return "", err
	}
	return ndefcodec.ExtractText(msg)
}

// Memory returns a copy of the addressable memory.
func (t *Tag) Memory() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return bytes.Clone(t.memory)
}

func (t *Tag) ndefCapacityLocked() int {
	switch t.kind {
	case KindNTAG213:
		return (ntag213UserEnd - ntagUserStart) * pageSize
	case KindUltralightC:
		return (ultralightCEnd - ntagUserStart) * pageSize
	case KindIsoDep, KindIsoDepB, KindFeliCa:
		return containerNdefSize
	default:
		return 0
	}
}

func (t *Tag) storeNdefLocked(msg *nfcmanager.NdefMessage) error {
	var data []byte
	if msg != nil && len(msg.Records) > 0 {
		var err error
		if data, err = ndefcodec.Encode(msg); err != nil {
			return err
		}
	}
	switch t.kind {
	case KindNTAG213, KindUltralightC:
		tlv, err := ndefcodec.WrapTLV(data)
		if err != nil {
			return err
		}
		if len(tlv) > t.ndefCapacityLocked() {
			return fmt.Errorf("%w: %d bytes, capacity %d", ErrTooLarge, len(tlv), t.ndefCapacityLocked())
		}
		copy(t.memory[ntagUserStart*pageSize:], tlv)
	case KindIsoDep, KindIsoDepB, KindFeliCa:
		if len(data) > t.ndefCapacityLocked() {
			return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
		}
		t.ndef = data
	default:
		return errors.New("tag has no NDEF storage")
	}
	t.formatted = true
	return nil
}

// loadNdefLocked returns the stored message, nil when it is empty.
func (t *Tag) loadNdefLocked() (*nfcmanager.NdefMessage, error) {
	var data []byte
	switch t.kind {
	case KindNTAG213, KindUltralightC:
		user := t.memory[ntagUserStart*pageSize : (ntagUserStart*pageSize)+t.ndefCapacityLocked()]
		var err error
		if data, err = ndefcodec.UnwrapTLV(user); err != nil {
			return nil, err
		}
	case KindIsoDep, KindIsoDepB, KindFeliCa:
		data = t.ndef
	default:
		return nil, errors.New("tag has no NDEF storage")
	}
	if len(data) == 0 {
		return nil, nil
	}
	return ndefcodec.Decode(data)
}

func (t *Tag) sectorCount() int {
	switch t.kind {
	case KindMifare1K:
		return 16
	case KindMifare4K:
		return 40
	default:
		return 0
	}
}

// sectorFirstBlock returns the first block of sector. MIFARE 4K sectors
// 32-39 hold 16 blocks each.
func (t *Tag) sectorFirstBlock(sector int) int {
	if sector < 32 {
		return sector * 4
	}
	return 128 + (sector-32)*16
}

func (t *Tag) sectorBlocks(sector int) int {
	if sector < 32 {
		return 4
	}
	return 16
}

func (t *Tag) blockSector(block int) int {
	if block < 128 {
		return block / 4
	}
	return 32 + (block-128)/16
}

func (t *Tag) isTrailer(block int) bool {
	sector := t.blockSector(block)
	return block == t.sectorFirstBlock(sector)+t.sectorBlocks(sector)-1
}

func (t *Tag) classicBlockLocked(block int) (int, error) {
	if block < 0 || block*blockSize >= len(t.memory) {
		return 0, fmt.Errorf("%w: block %d", ErrOutOfRange, block)
	}
	if t.authSector != t.blockSector(block) {
		return 0, fmt.Errorf("%w: sector %d (block %d)", ErrNotAuthorized, t.blockSector(block), block)
	}
	return block * blockSize, nil
}

// value blocks store the value, its inverse and the value again, followed
// by the address byte pattern.
func encodeValueBlock(value int32, addr byte) []byte {
	out := make([]byte, blockSize)
	v := uint32(value)
	binary.LittleEndian.PutUint32(out[0:], v)
	binary.LittleEndian.PutUint32(out[4:], ^v)
	binary.LittleEndian.PutUint32(out[8:], v)
	out[12], out[13], out[14], out[15] = addr, ^addr, addr, ^addr
	return out
}

func decodeValueBlock(b []byte) (int32, error) {
	v := binary.LittleEndian.Uint32(b[0:])
	if binary.LittleEndian.Uint32(b[4:]) != ^v || binary.LittleEndian.Uint32(b[8:]) != v {
		return 0, errors.New("block is not a value block")
	}
	return int32(v), nil
}

// SetValueBlock formats block as a value block holding value.
func (t *Tag) SetValueBlock(block int, value int32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if block <= 0 || block*blockSize >= len(t.memory) || t.isTrailer(block) {
		return fmt.Errorf("%w: block %d", ErrOutOfRange, block)
	}
	copy(t.memory[block*blockSize:], encodeValueBlock(value, byte(block)))
	return nil
}

// Value decodes the value block at block.
func (t *Tag) Value(block int) (int32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if block < 0 || block*blockSize >= len(t.memory) {
		return 0, fmt.Errorf("%w: block %d", ErrOutOfRange, block)
	}
	return decodeValueBlock(t.memory[block*blockSize : (block+1)*blockSize])
}
