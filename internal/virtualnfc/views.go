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

package virtualnfc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	nfcmanager "github.com/ZaparooProject/go-nfcmanager"
)

// conn is the connection state shared by every technology view.
type conn struct {
	tag       *Tag
	radio     *Platform
	tech      nfcmanager.Technology
	timeout   atomic.Int64
	connected atomic.Bool
}

func (c *conn) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.radio != nil && !c.radio.radioOn() {
		return ErrRadioOff
	}
	c.tag.mu.Lock()
	defer c.tag.mu.Unlock()
	if !c.tag.present {
		return ErrTagLost
	}
	if err := c.tag.connectErr[c.tech]; err != nil {
		return err
	}
	c.connected.Store(true)
	return nil
}

func (c *conn) IsConnected() bool {
	return c.connected.Load()
}

func (c *conn) Close() error {
	c.connected.Store(false)
	return nil
}

// readyLocked checks the view can talk to the tag. Callers hold tag.mu.
func (c *conn) readyLocked() error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	if !c.tag.present {
		return ErrTagLost
	}
	return nil
}

func (c *conn) MaxTransmitSize() (int, error) {
	switch c.tech {
	case nfcmanager.TechIsoDep:
		return 261, nil
	case nfcmanager.TechNfcF:
		return 254, nil
	default:
		return 253, nil
	}
}

func (c *conn) SetTimeout(timeout time.Duration) error {
	c.timeout.Store(int64(timeout))
	return nil
}

// Timeout returns the last timeout set on the view.
func (c *conn) Timeout() time.Duration {
	return time.Duration(c.timeout.Load())
}

func (c *conn) Transmit(ctx context.Context, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.tag.mu.Lock()
	if err := c.readyLocked(); err != nil {
		c.tag.mu.Unlock()
		return nil, err
	}
	responder := c.tag.responder
	if responder == nil && (c.tag.kind == KindNTAG213 || c.tag.kind == KindUltralightC) {
		resp, err := c.tag.ultralightCommandLocked(data)
		c.tag.mu.Unlock()
		return resp, err
	}
	c.tag.mu.Unlock()
	if responder == nil {
		return nil, ErrNoResponse
	}
	return responder(bytes.Clone(data))
}

// ultralightCommandLocked answers the READ and GET_VERSION commands.
func (t *Tag) ultralightCommandLocked(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrNoResponse
	}
	switch data[0] {
	case 0x30:
		if len(data) < 2 {
			return nil, ErrNoResponse
		}
		return t.readPagesLocked(int(data[1]))
	case 0x60:
		if t.kind == KindNTAG213 {
			return []byte{0x00, 0x04, 0x04, 0x02, 0x01, 0x00, 0x0F, 0x03}, nil
		}
		return nil, ErrNoResponse
	default:
		return nil, ErrNoResponse
	}
}

func (t *Tag) pageCount() int {
	return len(t.memory) / pageSize
}

// readPagesLocked returns four pages from offset, wrapping at the end of
// memory the way the READ command does.
func (t *Tag) readPagesLocked(offset int) ([]byte, error) {
	pages := t.pageCount()
	if offset < 0 || offset >= pages {
		return nil, fmt.Errorf("%w: page %d", ErrOutOfRange, offset)
	}
	out := make([]byte, 0, 4*pageSize)
	for i := 0; i < 4; i++ {
		p := (offset + i) % pages
		out = append(out, t.memory[p*pageSize:(p+1)*pageSize]...)
	}
	return out, nil
}

type nfcAView struct{ conn }

func (v *nfcAView) SAK() byte {
	switch v.tag.kind {
	case KindMifare1K:
		return 0x08
	case KindMifare4K:
		return 0x18
	case KindIsoDep:
		return 0x20
	default:
		return 0x00
	}
}

func (v *nfcAView) ATQA() []byte {
	switch v.tag.kind {
	case KindMifare1K:
		return []byte{0x04, 0x00}
	case KindMifare4K:
		return []byte{0x02, 0x00}
	default:
		return []byte{0x44, 0x00}
	}
}

type nfcBView struct{ conn }

func (*nfcBView) ApplicationData() []byte { return []byte{0x00, 0x00, 0x00, 0x00} }
func (*nfcBView) ProtocolInfo() []byte    { return []byte{0x00, 0x81, 0x71} }

type nfcFView struct{ conn }

func (*nfcFView) SystemCode() []byte { return []byte{0x12, 0xFC} }

func (v *nfcFView) Manufacturer() []byte { return bytes.Clone(v.tag.uid) }

type nfcVView struct{ conn }

func (*nfcVView) ResponseFlags() byte { return 0x00 }
func (*nfcVView) DSFID() byte         { return 0x00 }

type isoDepView struct{ conn }

func (*isoDepView) HistoricalBytes() []byte { return []byte{0x80} }

type classicView struct{ conn }

func (*classicView) ClassicType() nfcmanager.MifareClassicType {
	return nfcmanager.MifareClassicTypeClassic
}

func (v *classicView) SectorCount() int {
	return v.tag.sectorCount()
}

func (v *classicView) BlockIndex(sector int) int {
	return v.tag.sectorFirstBlock(sector)
}

func (v *classicView) Authenticate(ctx context.Context, sector int, key []byte, keyA bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := v.tag
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return err
	}
	if sector < 0 || sector >= t.sectorCount() {
		return fmt.Errorf("%w: sector %d", ErrOutOfRange, sector)
	}
	keys := t.sectorKeys[sector]
	expected := keys[6:12]
	if keyA {
		expected = keys[0:6]
	}
	if !bytes.Equal(key, expected) {
		t.authSector = -1
		return ErrWrongKey
	}
	t.authSector = sector
	return nil
}

func (v *classicView) ReadBlock(ctx context.Context, block int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := v.tag
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return nil, err
	}
	off, err := t.classicBlockLocked(block)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(t.memory[off : off+blockSize]), nil
}

func (v *classicView) WriteBlock(ctx context.Context, block int, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := v.tag
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return err
	}
	off, err := t.classicBlockLocked(block)
	if err != nil {
		return err
	}
	if block == 0 {
		return fmt.Errorf("%w: manufacturer block", ErrReadOnly)
	}
	if len(data) != blockSize {
		return fmt.Errorf("block data must be %d bytes, got %d", blockSize, len(data))
	}
	copy(t.memory[off:], data)
	return nil
}

func (v *classicView) Increment(ctx context.Context, block, value int) error {
	return v.loadValue(ctx, block, int32(value))
}

func (v *classicView) Decrement(ctx context.Context, block, value int) error {
	return v.loadValue(ctx, block, -int32(value))
}

// loadValue reads the value block into the transfer register and applies
// delta. Nothing is stored until Transfer.
func (v *classicView) loadValue(ctx context.Context, block int, delta int32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := v.tag
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return err
	}
	off, err := t.classicBlockLocked(block)
	if err != nil {
		return err
	}
	value, err := decodeValueBlock(t.memory[off : off+blockSize])
	if err != nil {
		return fmt.Errorf("block %d: %w", block, err)
	}
	t.valueReg = value + delta
	t.valueLoaded = true
	return nil
}

func (v *classicView) Transfer(ctx context.Context, block int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := v.tag
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return err
	}
	off, err := t.classicBlockLocked(block)
	if err != nil {
		return err
	}
	if !t.valueLoaded {
		return errors.New("no value loaded for transfer")
	}
	copy(t.memory[off:], encodeValueBlock(t.valueReg, byte(block)))
	t.valueLoaded = false
	return nil
}

type ultralightView struct{ conn }

func (v *ultralightView) UltralightType() nfcmanager.UltralightType {
	if v.tag.kind == KindUltralightC {
		return nfcmanager.UltralightTypeUltralightC
	}
	return nfcmanager.UltralightTypeUltralight
}

func (v *ultralightView) ReadPages(ctx context.Context, offset int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.tag.mu.Lock()
	defer v.tag.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return nil, err
	}
	return v.tag.readPagesLocked(offset)
}

func (v *ultralightView) WritePage(ctx context.Context, offset int, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := v.tag
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return err
	}
	if offset < 0 || offset >= t.pageCount() {
		return fmt.Errorf("%w: page %d", ErrOutOfRange, offset)
	}
	if offset < 3 || t.readOnly {
		return fmt.Errorf("%w: page %d", ErrReadOnly, offset)
	}
	if len(data) != pageSize {
		return fmt.Errorf("page data must be %d bytes, got %d", pageSize, len(data))
	}
	copy(t.memory[offset*pageSize:], data)
	return nil
}

type ndefView struct {
	cached *nfcmanager.NdefMessage
	conn
}

func (v *ndefView) ForumType() int {
	switch v.tag.kind {
	case KindFeliCa:
		return 3
	case KindIsoDep, KindIsoDepB:
		return 4
	default:
		return 2
	}
}

func (v *ndefView) MaxSize() int {
	v.tag.mu.Lock()
	defer v.tag.mu.Unlock()
	return v.tag.ndefCapacityLocked()
}

func (v *ndefView) IsWritable() bool {
	v.tag.mu.Lock()
	defer v.tag.mu.Unlock()
	return !v.tag.readOnly
}

func (v *ndefView) CanMakeReadOnly() bool {
	v.tag.mu.Lock()
	defer v.tag.mu.Unlock()
	return v.tag.canLock && !v.tag.readOnly
}

func (v *ndefView) CachedMessage() (*nfcmanager.NdefMessage, error) {
	return v.cached, nil
}

func (v *ndefView) ReadMessage(ctx context.Context) (*nfcmanager.NdefMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.tag.mu.Lock()
	defer v.tag.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return nil, err
	}
	return v.tag.loadNdefLocked()
}

func (v *ndefView) WriteMessage(ctx context.Context, msg *nfcmanager.NdefMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.tag.mu.Lock()
	defer v.tag.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return err
	}
	if v.tag.readOnly {
		return ErrReadOnly
	}
	return v.tag.storeNdefLocked(msg)
}

func (v *ndefView) MakeReadOnly(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.tag.mu.Lock()
	defer v.tag.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return err
	}
	if !v.tag.canLock {
		return ErrCannotLock
	}
	v.tag.readOnly = true
	return nil
}

func (v *ndefView) Reconnect(ctx context.Context) error {
	_ = v.Close()
	return v.Connect(ctx)
}

type formatableView struct{ conn }

func (v *formatableView) Format(ctx context.Context, msg *nfcmanager.NdefMessage) error {
	return v.format(ctx, msg, false)
}

func (v *formatableView) FormatReadOnly(ctx context.Context, msg *nfcmanager.NdefMessage) error {
	return v.format(ctx, msg, true)
}

func (v *formatableView) format(ctx context.Context, msg *nfcmanager.NdefMessage, readOnly bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := v.tag
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return err
	}
	if t.formatted {
		return errors.New("tag is already NDEF formatted")
	}
	if t.kind == KindNTAG213 || t.kind == KindUltralightC {
		copy(t.memory[3*pageSize:], []byte{0xE1, 0x10, 0x12, 0x00})
	}
	if err := t.storeNdefLocked(msg); err != nil {
		return err
	}
	t.readOnly = readOnly
	return nil
}
