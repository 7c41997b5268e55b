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

import "github.com/ZaparooProject/go-nfcmanager/internal/syncutil"

// Host is the application lifecycle collaborator.
type Host interface {
	// IsForeground reports whether the application is in the foreground.
	IsForeground() bool
	// LaunchTag returns the tag that launched or reactivated the
	// application, or nil.
	LaunchTag() *RawTag
}

// LaunchState is a Host whose state is set by the application's lifecycle
// hooks. The zero value is a backgrounded host without a launch tag.
type LaunchState struct {
	tag        *RawTag
	mu         syncutil.RWMutex
	foreground bool
}

// NewLaunchState creates a host state in the given foreground state.
func NewLaunchState(foreground bool) *LaunchState {
	return &LaunchState{foreground: foreground}
}

// IsForeground implements Host.
func (l *LaunchState) IsForeground() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.foreground
}

// LaunchTag implements Host.
func (l *LaunchState) LaunchTag() *RawTag {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tag
}

// SetForeground records a lifecycle transition.
func (l *LaunchState) SetForeground(foreground bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.foreground = foreground
}

// SetLaunchTag records the tag delivered with a launch or reactivation.
func (l *LaunchState) SetLaunchTag(raw *RawTag) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tag = raw
}

// ClearLaunchTag forgets the launch tag.
func (l *LaunchState) ClearLaunchTag() {
	l.SetLaunchTag(nil)
}
