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
	"encoding/binary"
	"errors"
	"fmt"
)

// TLV types of the Type 2 tag data area.
const (
	TLVNull          = 0x00
	TLVLockControl   = 0x01
	TLVMemoryControl = 0x02
	TLVNdef          = 0x03
	TLVTerminator    = 0xFE
)

// TLV errors
var (
	ErrTLVTooShort    = errors.New("ndefcodec: TLV data too short")
	ErrTLVLength      = errors.New("ndefcodec: invalid TLV length")
	ErrTLVNoNdef      = errors.New("ndefcodec: NDEF TLV not found")
	ErrMessageTooLong = errors.New("ndefcodec: message too long for a TLV")
)

// WrapTLV places message in an NDEF TLV followed by a terminator, the
// layout used in the data area of Type 2 tags.
func WrapTLV(message []byte) ([]byte, error) {
	n := len(message)
	var out []byte
	switch {
	case n < 0xFF:
		out = append(make([]byte, 0, n+3), TLVNdef, byte(n))
	case n <= 0xFFFF:
		out = append(make([]byte, 0, n+5), TLVNdef, 0xFF, 0, 0)
		binary.BigEndian.PutUint16(out[2:], uint16(n))
	default:
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLong, n)
	}
	out = append(out, message...)
	return append(out, TLVTerminator), nil
}

// UnwrapTLV finds the NDEF TLV in a tag data area and returns its value.
// Null padding, lock and memory control and proprietary TLVs are skipped.
func UnwrapTLV(data []byte) ([]byte, error) {
	offset := 0
	for offset < len(data) {
		typ := data[offset]
		switch {
		case typ == TLVNull:
			offset++
			continue
		case typ == TLVTerminator:
			return nil, ErrTLVNoNdef
		case typ > TLVTerminator:
			offset++
			continue
		}

		start, length, err := tlvLength(data, offset)
		if err != nil {
			return nil, err
		}
		if typ == TLVNdef {
			if start+length > len(data) {
				return nil, fmt.Errorf("%w: NDEF length %d exceeds data size %d",
					ErrTLVLength, length, len(data)-start)
			}
			return data[start : start+length], nil
		}
		offset = start + length
	}
	return nil, ErrTLVNoNdef
}

// tlvLength decodes the length field of the TLV at offset and returns
// where its value starts.
func tlvLength(data []byte, offset int) (start, length int, err error) {
	if offset+1 >= len(data) {
		return 0, 0, ErrTLVTooShort
	}
	if data[offset+1] != 0xFF {
		return offset + 2, int(data[offset+1]), nil
	}
	if offset+3 >= len(data) {
		return 0, 0, fmt.Errorf("%w: incomplete long length at offset %d", ErrTLVLength, offset)
	}
	return offset + 4, int(binary.BigEndian.Uint16(data[offset+2 : offset+4])), nil
}
