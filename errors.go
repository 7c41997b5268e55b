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
	"fmt"
)

// Error categories for caller handling and retry decisions
var (
	// Capability errors - fatal, not retryable
	ErrNoRadioSupport = errors.New("no nfc support")

	// Caller errors - surfaced immediately, fix the call sequence
	ErrNotRegistered   = errors.New("tag event registration required")
	ErrAlreadyPending  = errors.New("technology request already pending")
	ErrNoActiveSession = errors.New("no tech request available")
	ErrNoTagReference  = errors.New("no tag reference available")

	// Technology errors - the operation does not fit the connected view
	ErrWrongTechnology       = errors.New("operation not supported by connected technology")
	ErrUnsupportedTechnology = errors.New("technology not supported by tag")
	ErrNoTechnologyConnected = errors.New("no requested technology could be connected")

	// Data errors - not retryable
	ErrValidationFailed = errors.New("validation failed")

	// I/O errors - generally transient, the tag may have left the field
	ErrTransceiveFailed = errors.New("transceive fail")
	ErrEmptyResponse    = errors.New("tag returned no data")

	// Request errors
	ErrCancelled = errors.New("cancelled")
)

// OperationError wraps a platform I/O failure with the operation and the
// technology it ran against. It matches ErrTransceiveFailed in errors.Is
// as well as the platform cause.
type OperationError struct {
	Err  error
	Op   string
	Tech Technology
}

func (e *OperationError) Error() string {
	if e.Tech != "" {
		return fmt.Sprintf("%s (%s): %v", e.Op, e.Tech, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes both the transceive category and the platform cause.
func (e *OperationError) Unwrap() []error {
	return []error{ErrTransceiveFailed, e.Err}
}

// NewOperationError wraps a platform error for op. Returns nil for a nil err.
func NewOperationError(op string, tech Technology, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Op: op, Tech: tech, Err: err}
}

// validationError builds an ErrValidationFailed error with a message that
// names the operation and the offending values.
func validationError(op, format string, args ...any) error {
	return fmt.Errorf("%w: %s fail: %s", ErrValidationFailed, op, fmt.Sprintf(format, args...))
}

// IsRetryable returns true if the application may retry the operation,
// typically after the tag is presented again
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, ErrValidationFailed),
		errors.Is(err, ErrWrongTechnology),
		errors.Is(err, ErrCancelled),
		errors.Is(err, ErrNoRadioSupport):
		return false
	case errors.Is(err, ErrTransceiveFailed),
		errors.Is(err, ErrEmptyResponse),
		errors.Is(err, ErrNoTechnologyConnected):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the device cannot do NFC at all and the
// application should stop trying.
func IsFatal(err error) bool {
	return errors.Is(err, ErrNoRadioSupport)
}
