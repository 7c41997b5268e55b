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
	"errors"
)

func (s *TagSession) ndef(op string) (NdefTag, error) {
	h, err := s.active()
	if err != nil {
		return nil, err
	}
	n, ok := h.(*NdefHandle)
	if !ok {
		return nil, wrongTechnology(op, h.Technology())
	}
	return n.NdefTag, nil
}

// GetNdefMessage reads the current NDEF message from the tag.
func (s *TagSession) GetNdefMessage(ctx context.Context) (*TagEvent, error) {
	const op = "getNdefMessage"
	tag, err := s.ndef(op)
	if err != nil {
		return nil, err
	}
	msg, err := tag.ReadMessage(ctx)
	if err != nil {
		return nil, NewOperationError(op, TechNdef, err)
	}
	return &TagEvent{
		Type:        "NDEF",
		NdefMessage: RecordsOf(msg),
	}, nil
}

// GetCachedNdefMessage returns the tag event built from the message the
// platform read at discovery, without touching the tag.
func (s *TagSession) GetCachedNdefMessage() (*TagEvent, error) {
	tag, err := s.ndef("getCachedNdefMessage")
	if err != nil {
		return nil, err
	}
	return NdefTagEvent(tag, s.Raw(), s.log), nil
}

// WriteNdefMessage writes msg to the tag. With reconnect set the platform
// connection is reset afterwards so the next read sees fresh content.
func (s *TagSession) WriteNdefMessage(ctx context.Context, msg *NdefMessage, reconnect bool) error {
	const op = "writeNdefMessage"
	tag, err := s.ndef(op)
	if err != nil {
		return err
	}
	if msg == nil {
		return validationError(op, "nil message")
	}
	if !tag.IsWritable() {
		s.log.Debug().Msg("writing to a tag that reports read-only")
	}
	if err := tag.WriteMessage(ctx, msg); err != nil {
		return NewOperationError(op, TechNdef, err)
	}
	if reconnect {
		if err := tag.Reconnect(ctx); err != nil {
			return NewOperationError("reconnect", TechNdef, err)
		}
	}
	return nil
}

// MakeReadOnly permanently locks the tag. A refusal by the platform is
// reported as false rather than an error.
func (s *TagSession) MakeReadOnly(ctx context.Context) (bool, error) {
	tag, err := s.ndef("makeReadOnly")
	if err != nil {
		return false, err
	}
	if err := tag.MakeReadOnly(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false, err
		}
		s.log.Info().Err(err).Msg("tag refused read-only lock")
		return false, nil
	}
	return true, nil
}

// GetNdefStatus reports the capacity and lock state of the tag.
func (s *TagSession) GetNdefStatus() (*NdefStatus, error) {
	tag, err := s.ndef("getNdefStatus")
	if err != nil {
		return nil, err
	}
	return &NdefStatus{
		MaxSize:         tag.MaxSize(),
		IsWritable:      tag.IsWritable(),
		CanMakeReadOnly: tag.CanMakeReadOnly(),
	}, nil
}

// FormatNdef formats the tag for NDEF and writes msg as its first message.
// With readOnly set the tag is locked in the same step.
func (s *TagSession) FormatNdef(ctx context.Context, msg *NdefMessage, readOnly bool) error {
	const op = "formatNdef"
	h, err := s.active()
	if err != nil {
		return err
	}
	f, ok := h.(*NdefFormatableHandle)
	if !ok {
		return wrongTechnology(op, h.Technology())
	}
	if readOnly {
		err = f.FormatReadOnly(ctx, msg)
	} else {
		err = f.Format(ctx, msg)
	}
	return NewOperationError(op, TechNdefFormatable, err)
}
