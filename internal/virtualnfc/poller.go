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

package virtualnfc

import (
	"sync"
	"sync/atomic"
	"time"

	nfcmanager "github.com/ZaparooProject/go-nfcmanager"
)

// PollerMetrics tracks reader mode activity
type PollerMetrics struct {
	PollCycles   int64 // Total number of polling cycles
	TagsDetected int64 // Number of tag arrivals delivered
	TagsRemoved  int64 // Number of tag departures seen
}

// Poller is the reader mode loop. It looks at the field every interval
// and delivers a tag once per arrival, so a tag resting on the antenna is
// not reported again until it has left.
type Poller struct {
	platform *Platform
	onTag    nfcmanager.TagCallback
	stopChan chan struct{}
	last     *Tag
	filter   []nfcmanager.Technology
	wg       sync.WaitGroup
	interval time.Duration
	// Atomic counters for metrics
	pollCycles   int64
	tagsDetected int64
	tagsRemoved  int64
	running      int64 // 0 = stopped, 1 = running
}

// NewPoller creates a stopped poll loop.
func NewPoller(
	platform *Platform, filter []nfcmanager.Technology, interval time.Duration, onTag nfcmanager.TagCallback,
) *Poller {
	return &Poller{
		platform: platform,
		filter:   filter,
		interval: interval,
		onTag:    onTag,
		stopChan: make(chan struct{}, 1),
	}
}

// Start launches the loop. Calling Start on a running poller does nothing.
func (p *Poller) Start() {
	if atomic.CompareAndSwapInt64(&p.running, 0, 1) {
		p.wg.Add(1)
		go p.pollLoop()
	}
}

func (p *Poller) pollLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer func() {
		ticker.Stop()
		atomic.StoreInt64(&p.running, 0)
	}()

	p.performPoll()
	for {
		select {
		case <-ticker.C:
			p.performPoll()
		case <-p.stopChan:
			return
		}
	}
}

// performPoll runs one polling cycle. Only the loop goroutine touches last.
func (p *Poller) performPoll() {
	atomic.AddInt64(&p.pollCycles, 1)

	tag := p.platform.Field()
	if tag != nil && (!p.platform.radioOn() || !tag.Present() || !matches(tag.Techs(), p.filter)) {
		tag = nil
	}
	if tag == nil {
		if p.last != nil {
			atomic.AddInt64(&p.tagsRemoved, 1)
			p.last = nil
		}
		return
	}
	if tag == p.last {
		return
	}
	p.last = tag
	atomic.AddInt64(&p.tagsDetected, 1)
	raw := p.platform.RawTag(tag)
	p.platform.log.Debug().Str("uid", nfcmanager.UIDHex(raw.UID)).Msg("reader mode detected tag")
	p.onTag(raw, nil)
}

// Stop ends the loop and waits for it to exit. It must not be called from
// the tag callback.
func (p *Poller) Stop() {
	select {
	case p.stopChan <- struct{}{}:
	default:
	}
	p.wg.Wait()
}

// Running reports whether the loop goroutine is alive.
func (p *Poller) Running() bool {
	return atomic.LoadInt64(&p.running) == 1
}

// GetMetrics returns current operational metrics
func (p *Poller) GetMetrics() PollerMetrics {
	return PollerMetrics{
		PollCycles:   atomic.LoadInt64(&p.pollCycles),
		TagsDetected: atomic.LoadInt64(&p.tagsDetected),
		TagsRemoved:  atomic.LoadInt64(&p.tagsRemoved),
	}
}
