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

import "github.com/rs/zerolog"

// Config holds Manager options
type Config struct {
	// Logger receives the manager's log records. Default: the package logger
	Logger *zerolog.Logger

	// Emitter additionally receives every notification. Subscribers of
	// Manager.Events are served regardless
	Emitter Emitter

	// Host provides the foreground state and the launch tag.
	// Default: a LaunchState in the foreground
	Host Host

	// DisableRadioWatch skips the radio state subscription on Start. By
	// default state changes are emitted as NfcManagerStateChanged
	DisableRadioWatch bool
}

// DefaultConfig returns the default manager configuration
func DefaultConfig() *Config {
	return &Config{}
}

func (c *Config) withDefaults() *Config {
	out := DefaultConfig()
	if c != nil {
		*out = *c
	}
	if out.Logger == nil {
		l := Logger()
		out.Logger = &l
	}
	if out.Host == nil {
		out.Host = NewLaunchState(true)
	}
	return out
}
