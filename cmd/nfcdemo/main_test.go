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

package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWriteMode(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, &config{writeText: "test text", tapInterval: time.Second})
	require.NoError(t, err)
}

func TestRunWriteMode_EmptyText(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mgr, platform, err := newManager(ctx, &config{})
	require.NoError(t, err)
	defer func() { _ = mgr.Close() }()

	err = runWriteMode(ctx, mgr, platform, &config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be empty")
}

func TestRunReadMode_StopsOnCancel(t *testing.T) {
	t.Parallel()

	for _, readerMode := range []bool{false, true} {
		ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
		err := run(ctx, &config{readerMode: readerMode, tapInterval: 20 * time.Millisecond})
		cancel()
		require.ErrorIs(t, err, context.DeadlineExceeded)
	}
}

func TestDemoTags(t *testing.T) {
	t.Parallel()

	tags := demoTags()
	require.NotEmpty(t, tags)
	text, err := tags[0].NDEFText()
	require.NoError(t, err)
	assert.Equal(t, "**launch.system:snes", text)
}
