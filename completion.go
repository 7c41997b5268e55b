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
	"sync"
)

// Result is the outcome of a technology request.
type Result struct {
	Err  error
	Tech Technology
}

// Completion is a single-slot result that fires at most once. Later
// Resolve or Reject calls are no-ops, which absorbs the race between a
// discovery callback finishing a connect and an explicit cancellation.
type Completion struct {
	done   chan struct{}
	result Result
	once   sync.Once
}

// NewCompletion creates an unfired completion.
func NewCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// Resolve fires the completion with tech. Returns false if it already fired.
func (c *Completion) Resolve(tech Technology) bool {
	return c.fire(Result{Tech: tech})
}

// Reject fires the completion with err. Returns false if it already fired.
func (c *Completion) Reject(err error) bool {
	return c.fire(Result{Err: err})
}

func (c *Completion) fire(r Result) bool {
	fired := false
	c.once.Do(func() {
		c.result = r
		close(c.done)
		fired = true
	})
	return fired
}

// Done is closed once the completion has fired.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Fired reports whether Resolve or Reject has run.
func (c *Completion) Fired() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Result returns the outcome. Only meaningful after Done is closed.
func (c *Completion) Result() Result {
	<-c.done
	return c.result
}

// Wait blocks until the completion fires or ctx ends.
func (c *Completion) Wait(ctx context.Context) (Technology, error) {
	select {
	case <-c.done:
		return c.result.Tech, c.result.Err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
