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

// Handle is a connected technology view of a tag. The concrete type is
// always one of the *Handle variants in this file, one per Technology, so
// callers switch on the type instead of casting by name.
type Handle interface {
	Technology() Technology
	tag() TagHandle
}

// NdefHandle wraps the NDEF view.
type NdefHandle struct{ NdefTag }

// NfcAHandle wraps the NfcA view.
type NfcAHandle struct{ NfcATag }

// NfcBHandle wraps the NfcB view.
type NfcBHandle struct{ NfcBTag }

// NfcFHandle wraps the NfcF view.
type NfcFHandle struct{ NfcFTag }

// NfcVHandle wraps the NfcV view.
type NfcVHandle struct{ NfcVTag }

// IsoDepHandle wraps the IsoDep view.
type IsoDepHandle struct{ IsoDepTag }

// MifareClassicHandle wraps the MIFARE Classic view.
type MifareClassicHandle struct{ MifareClassicTag }

// MifareUltralightHandle wraps the MIFARE Ultralight view.
type MifareUltralightHandle struct{ MifareUltralightTag }

// NdefFormatableHandle wraps the NdefFormatable view.
type NdefFormatableHandle struct{ NdefFormatableTag }

func (*NdefHandle) Technology() Technology             { return TechNdef }
func (*NfcAHandle) Technology() Technology             { return TechNfcA }
func (*NfcBHandle) Technology() Technology             { return TechNfcB }
func (*NfcFHandle) Technology() Technology             { return TechNfcF }
func (*NfcVHandle) Technology() Technology             { return TechNfcV }
func (*IsoDepHandle) Technology() Technology           { return TechIsoDep }
func (*MifareClassicHandle) Technology() Technology    { return TechMifareClassic }
func (*MifareUltralightHandle) Technology() Technology { return TechMifareUltralight }
func (*NdefFormatableHandle) Technology() Technology   { return TechNdefFormatable }

func (h *NdefHandle) tag() TagHandle             { return h.NdefTag }
func (h *NfcAHandle) tag() TagHandle             { return h.NfcATag }
func (h *NfcBHandle) tag() TagHandle             { return h.NfcBTag }
func (h *NfcFHandle) tag() TagHandle             { return h.NfcFTag }
func (h *NfcVHandle) tag() TagHandle             { return h.NfcVTag }
func (h *IsoDepHandle) tag() TagHandle           { return h.IsoDepTag }
func (h *MifareClassicHandle) tag() TagHandle    { return h.MifareClassicTag }
func (h *MifareUltralightHandle) tag() TagHandle { return h.MifareUltralightTag }
func (h *NdefFormatableHandle) tag() TagHandle   { return h.NdefFormatableTag }

// Handles that can exchange raw frames.
var (
	_ Transceiver = (*NfcAHandle)(nil)
	_ Transceiver = (*NfcBHandle)(nil)
	_ Transceiver = (*NfcFHandle)(nil)
	_ Transceiver = (*NfcVHandle)(nil)
	_ Transceiver = (*IsoDepHandle)(nil)
	_ Transceiver = (*MifareClassicHandle)(nil)
	_ Transceiver = (*MifareUltralightHandle)(nil)
)
