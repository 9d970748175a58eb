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

package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func TestEnterExcess(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	rl := New(4, 3*time.Second, WithClock(clock.Now))
	defer rl.Stop()

	for i := 0; i < 4; i++ {
		assert.Equal(t, 0, rl.Enter("user:1"), "entry %d should be within the limit", i+1)
		clock.Advance(100 * time.Millisecond)
	}
	assert.Equal(t, 1, rl.Enter("user:1"))
	assert.Equal(t, 2, rl.Enter("user:1"))
}

func TestEnterWindowExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	rl := New(2, 3*time.Second, WithClock(clock.Now))
	defer rl.Stop()

	assert.Equal(t, 0, rl.Enter("user:1"))
	assert.Equal(t, 0, rl.Enter("user:1"))
	assert.Equal(t, 1, rl.Enter("user:1"))

	clock.Advance(3*time.Second + time.Millisecond)
	assert.Equal(t, 0, rl.Enter("user:1"))
	assert.Equal(t, 1, rl.Count("user:1"))
}

func TestEnterKeysIndependent(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	rl := New(1, time.Minute, WithClock(clock.Now))
	defer rl.Stop()

	assert.Equal(t, 0, rl.Enter("user:1"))
	assert.Equal(t, 0, rl.Enter("user:2"))
	assert.Equal(t, 1, rl.Enter("user:1"))
}

func TestSweepDropsIdleKeys(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	rl := New(2, time.Second, WithClock(clock.Now), WithSweepInterval(time.Hour))
	defer rl.Stop()

	rl.Enter("user:1")
	clock.Advance(2 * time.Second)
	rl.sweep()

	rl.mu.Lock()
	_, ok := rl.entries["user:1"]
	rl.mu.Unlock()
	assert.False(t, ok)
}
