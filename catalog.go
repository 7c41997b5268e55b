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
	"errors"
	"fmt"
)

// DeriveError reports that a technology view could not be produced.
type DeriveError struct {
	Err  error
	Tech Technology
}

func (e *DeriveError) Error() string {
	return fmt.Sprintf("derive %s: %v", e.Tech, e.Err)
}

// Unwrap returns ErrUnsupportedTechnology together with the platform cause
// so both are visible to errors.Is.
func (e *DeriveError) Unwrap() []error {
	if errors.Is(e.Err, ErrUnsupportedTechnology) {
		return []error{e.Err}
	}
	return []error{ErrUnsupportedTechnology, e.Err}
}

type deriveFunc func(d Deriver, raw *RawTag) (Handle, error)

// derivers maps each technology to the platform call producing its view.
var derivers = map[Technology]deriveFunc{
	TechNdef: func(d Deriver, raw *RawTag) (Handle, error) {
		t, err := d.Ndef(raw)
		if err != nil || t == nil {
			return nil, orNilHandle(err)
		}
		return &NdefHandle{t}, nil
	},
	TechNfcA: func(d Deriver, raw *RawTag) (Handle, error) {
		t, err := d.NfcA(raw)
		if err != nil || t == nil {
			return nil, orNilHandle(err)
		}
		return &NfcAHandle{t}, nil
	},
	TechNfcB: func(d Deriver, raw *RawTag) (Handle, error) {
		t, err := d.NfcB(raw)
		if err != nil || t == nil {
			return nil, orNilHandle(err)
		}
		return &NfcBHandle{t}, nil
	},
	TechNfcF: func(d Deriver, raw *RawTag) (Handle, error) {
		t, err := d.NfcF(raw)
		if err != nil || t == nil {
			return nil, orNilHandle(err)
		}
		return &NfcFHandle{t}, nil
	},
	TechNfcV: func(d Deriver, raw *RawTag) (Handle, error) {
		t, err := d.NfcV(raw)
		if err != nil || t == nil {
			return nil, orNilHandle(err)
		}
		return &NfcVHandle{t}, nil
	},
	TechIsoDep: func(d Deriver, raw *RawTag) (Handle, error) {
		t, err := d.IsoDep(raw)
		if err != nil || t == nil {
			return nil, orNilHandle(err)
		}
		return &IsoDepHandle{t}, nil
	},
	TechMifareClassic: func(d Deriver, raw *RawTag) (Handle, error) {
		t, err := d.MifareClassic(raw)
		if err != nil || t == nil {
			return nil, orNilHandle(err)
		}
		return &MifareClassicHandle{t}, nil
	},
	TechMifareUltralight: func(d Deriver, raw *RawTag) (Handle, error) {
		t, err := d.MifareUltralight(raw)
		if err != nil || t == nil {
			return nil, orNilHandle(err)
		}
		return &MifareUltralightHandle{t}, nil
	},
	TechNdefFormatable: func(d Deriver, raw *RawTag) (Handle, error) {
		t, err := d.NdefFormatable(raw)
		if err != nil || t == nil {
			return nil, orNilHandle(err)
		}
		return &NdefFormatableHandle{t}, nil
	},
}

func orNilHandle(err error) error {
	if err != nil {
		return err
	}
	return errors.New("platform returned no handle")
}

// Catalog derives technology handles from raw tags.
type Catalog struct {
	deriver Deriver
}

// NewCatalog creates a catalog backed by the platform deriver.
func NewCatalog(deriver Deriver) *Catalog {
	return &Catalog{deriver: deriver}
}

// Derive produces the tech view of raw without connecting it. The error
// wraps ErrUnsupportedTechnology when the view cannot be produced.
func (c *Catalog) Derive(raw *RawTag, tech Technology) (Handle, error) {
	if raw == nil {
		return nil, &DeriveError{Tech: tech, Err: ErrNoTagReference}
	}
	derive, ok := derivers[tech]
	if !ok {
		return nil, &DeriveError{Tech: tech, Err: fmt.Errorf("%w: unknown technology %q", ErrUnsupportedTechnology, tech)}
	}
	if !raw.Techs.Has(tech) {
		return nil, &DeriveError{Tech: tech, Err: ErrUnsupportedTechnology}
	}
	h, err := derive(c.deriver, raw)
	if err != nil {
		return nil, &DeriveError{Tech: tech, Err: err}
	}
	return h, nil
}
