/*
Copyright 2024 Bridgecast Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package ratelimit implements a sliding-window occupancy counter. Unlike a
// token-bucket limiter it reports by how much a key has exceeded its limit,
// which the filter pipeline uses to escalate repeated violations.
package ratelimit

import (
	"sync"
	"time"
)

const defaultSweepInterval = time.Minute

// RateLimit counts entries per key within a fixed window. A background
// sweep discards entries older than the window independently of Enter
// calls, so idle keys do not pin memory.
type RateLimit struct {
	limit         int
	window        time.Duration
	sweepInterval time.Duration

	mu      sync.Mutex
	entries map[string][]time.Time

	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// Option configures a RateLimit.
type Option func(*RateLimit)

// WithSweepInterval overrides how often stale entries are swept.
func WithSweepInterval(interval time.Duration) Option {
	return func(r *RateLimit) {
		r.sweepInterval = interval
	}
}

// WithClock injects a clock, used by tests to control the window.
func WithClock(now func() time.Time) Option {
	return func(r *RateLimit) {
		r.now = now
	}
}

// New creates a RateLimit allowing limit entries per key within window and
// starts the background sweep.
func New(limit int, window time.Duration, opts ...Option) *RateLimit {
	r := &RateLimit{
		limit:         limit,
		window:        window,
		sweepInterval: defaultSweepInterval,
		entries:       make(map[string][]time.Time),
		now:           time.Now,
		stop:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	go r.sweepLoop()
	return r
}

// Limit returns the configured per-window limit.
func (r *RateLimit) Limit() int {
	return r.limit
}

// Enter records an entry for key and returns by how many entries the key
// now exceeds its limit within the window. Zero means the key is within
// bounds. The just-recorded entry counts toward the occupancy.
func (r *RateLimit) Enter(key string) int {
	now := r.now()
	cutoff := now.Add(-r.window)

	r.mu.Lock()
	defer r.mu.Unlock()

	recent := keepAfter(r.entries[key], cutoff)
	recent = append(recent, now)
	r.entries[key] = recent

	if excess := len(recent) - r.limit; excess > 0 {
		return excess
	}
	return 0
}

// Count returns the current occupancy for key without recording an entry.
func (r *RateLimit) Count(key string) int {
	cutoff := r.now().Add(-r.window)

	r.mu.Lock()
	defer r.mu.Unlock()
	return len(keepAfter(r.entries[key], cutoff))
}

// Stop terminates the background sweep.
func (r *RateLimit) Stop() {
	r.once.Do(func() { close(r.stop) })
}

func (r *RateLimit) sweepLoop() {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *RateLimit) sweep() {
	cutoff := r.now().Add(-r.window)

	r.mu.Lock()
	defer r.mu.Unlock()

	for key, entries := range r.entries {
		kept := keepAfter(entries, cutoff)
		if len(kept) == 0 {
			delete(r.entries, key)
			continue
		}
		r.entries[key] = kept
	}
}

func keepAfter(entries []time.Time, cutoff time.Time) []time.Time {
	kept := entries[:0:0]
	for _, entry := range entries {
		if entry.After(cutoff) {
			kept = append(kept, entry)
		}
	}
	return kept
}
