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

import "strings"

// Technology identifies one of the mutually exclusive views a physical tag
// can be accessed through.
type Technology string

const (
	// TechNdef is the NDEF formatted content view.
	TechNdef Technology = "Ndef"
	// TechNfcA is the ISO 14443-3A radio view.
	TechNfcA Technology = "NfcA"
	// TechNfcB is the ISO 14443-3B radio view.
	TechNfcB Technology = "NfcB"
	// TechNfcF is the JIS 6319-4 (FeliCa) radio view.
	TechNfcF Technology = "NfcF"
	// TechNfcV is the ISO 15693 radio view.
	TechNfcV Technology = "NfcV"
	// TechIsoDep is the ISO 14443-4 APDU view.
	TechIsoDep Technology = "IsoDep"
	// TechMifareClassic is the MIFARE Classic sector/block view.
	TechMifareClassic Technology = "MifareClassic"
	// TechMifareUltralight is the MIFARE Ultralight page view.
	TechMifareUltralight Technology = "MifareUltralight"
	// TechNdefFormatable is the view used to format a blank tag as NDEF.
	TechNdefFormatable Technology = "NdefFormatable"
)

// AllTechnologies lists every technology in platform code order.
var AllTechnologies = []Technology{
	TechNfcA,
	TechNfcB,
	TechIsoDep,
	TechNfcF,
	TechNfcV,
	TechNdef,
	TechNdefFormatable,
	TechMifareClassic,
	TechMifareUltralight,
}

// String returns the technology name.
func (t Technology) String() string {
	return string(t)
}

// Valid reports whether t is one of the known technologies.
func (t Technology) Valid() bool {
	_, ok := techCodes[t]
	return ok
}

// ParseTechnology resolves a technology by name, ignoring case.
func ParseTechnology(name string) (Technology, bool) {
	for _, tech := range AllTechnologies {
		if strings.EqualFold(string(tech), name) {
			return tech, true
		}
	}
	return "", false
}

// TechMask is the platform technology bitmask carried by a RawTag. Bit n
// is set when the tag supports the technology with platform code n.
type TechMask uint32

// Platform technology codes.
const (
	CodeNfcA             = 1
	CodeNfcB             = 2
	CodeIsoDep           = 3
	CodeNfcF             = 4
	CodeNfcV             = 5
	CodeNdef             = 6
	CodeNdefFormatable   = 7
	CodeMifareClassic    = 8
	CodeMifareUltralight = 9
)

var techCodes = map[Technology]uint{
	TechNfcA:             CodeNfcA,
	TechNfcB:             CodeNfcB,
	TechIsoDep:           CodeIsoDep,
	TechNfcF:             CodeNfcF,
	TechNfcV:             CodeNfcV,
	TechNdef:             CodeNdef,
	TechNdefFormatable:   CodeNdefFormatable,
	TechMifareClassic:    CodeMifareClassic,
	TechMifareUltralight: CodeMifareUltralight,
}

// MaskOf builds a mask containing the given technologies.
func MaskOf(techs ...Technology) TechMask {
	var m TechMask
	for _, t := range techs {
		if code, ok := techCodes[t]; ok {
			m |= 1 << code
		}
	}
	return m
}

// Has reports whether the mask contains tech.
func (m TechMask) Has(tech Technology) bool {
	code, ok := techCodes[tech]
	if !ok {
		return false
	}
	return m&(1<<code) != 0
}

// Technologies expands the mask in platform code order. Bits without a
// known technology are dropped.
func (m TechMask) Technologies() []Technology {
	techs := make([]Technology, 0, len(AllTechnologies))
	for _, t := range AllTechnologies {
		if m.Has(t) {
			techs = append(techs, t)
		}
	}
	return techs
}

// Names returns the technology names of the mask in platform code order.
func (m TechMask) Names() []string {
	techs := m.Technologies()
	names := make([]string, len(techs))
	for i, t := range techs {
		names[i] = string(t)
	}
	return names
}

// MIFARE and Ultralight structural constants.
const (
	MifareBlockSize          = 16
	MifareKeySize            = 6
	MifareUltralightPageSize = 4
)

// UltralightType classifies a MIFARE Ultralight tag.
type UltralightType int

// Ultralight type codes as reported by the platform.
const (
	UltralightTypeUnknown     UltralightType = 0
	UltralightTypeUltralight  UltralightType = 1
	UltralightTypeUltralightC UltralightType = 2
)

// MifareClassicType classifies a MIFARE Classic tag.
type MifareClassicType int

// MIFARE Classic type codes as reported by the platform.
const (
	MifareClassicTypeUnknown MifareClassicType = 0
	MifareClassicTypeClassic MifareClassicType = 1
	MifareClassicTypePlus    MifareClassicType = 2
	MifareClassicTypePro     MifareClassicType = 3
)

// Constraints describes structural limits for a technology. Zero values
// mean the technology imposes no limit of that kind.
type Constraints struct {
	BlockSize int
	KeySize   int
	PageSize  int
}

// ConstraintsFor returns the structural constraints for tech.
func ConstraintsFor(tech Technology) Constraints {
	switch tech {
	case TechMifareClassic:
		return Constraints{BlockSize: MifareBlockSize, KeySize: MifareKeySize}
	case TechMifareUltralight:
		return Constraints{PageSize: MifareUltralightPageSize}
	default:
		return Constraints{}
	}
}

// Constants returns the values the application layer needs to size
// MIFARE payloads, keyed the way the host bridge exposes them.
func Constants() map[string]int {
	return map[string]int{
		"MIFARE_BLOCK_SIZE":              MifareBlockSize,
		"MIFARE_ULTRALIGHT_PAGE_SIZE":    MifareUltralightPageSize,
		"MIFARE_ULTRALIGHT_TYPE":         int(UltralightTypeUltralight),
		"MIFARE_ULTRALIGHT_TYPE_C":       int(UltralightTypeUltralightC),
		"MIFARE_ULTRALIGHT_TYPE_UNKNOWN": int(UltralightTypeUnknown),
	}
}
