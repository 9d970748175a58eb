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

package bridgecast

import (
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/bridgecast/bridgecast/config"
	"github.com/bridgecast/bridgecast/database/mocks"
	"github.com/bridgecast/bridgecast/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRelay builds an engine against a miniredis broker and a mocked
// datasource. The violation window is deliberately small so escalation tests
// do not need dozens of messages.
func newTestRelay(t *testing.T) (*Bridgecast, *mocks.MockDataSource, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	config.MockConfig(&config.Configuration{
		Redis: config.RedisConfig{Dns: mr.Addr()},
		Queue: config.QueueConfig{
			DeliveryQueue:      "bridgecast:delivery",
			SendWorkers:        2,
			EditWorkers:        1,
			PersistWorkers:     1,
			Prefetch:           10,
			MaxDeliveryRetries: 3,
			MaxPublishRetries:  1,
		},
		RateLimit: config.RateLimitConfig{
			Content:   config.WindowConfig{Limit: 4, WindowSec: 3},
			User:      config.WindowConfig{Limit: 6, WindowSec: 3},
			Violation: config.WindowConfig{Limit: 2, WindowSec: 60},
		},
		Relay: config.RelayConfig{HomeGroupID: 42, SystemUsername: "Thibault", AutomuteMinutes: 5},
	})

	mockDS := new(mocks.MockDataSource)
	relay, err := NewBridgecast(mockDS)
	require.NoError(t, err)
	return relay, mockDS, mr
}

// pendingJobs counts the jobs sitting on the delivery queue's pending list.
func pendingJobs(t *testing.T, mr *miniredis.Miniredis) int {
	t.Helper()
	ids, err := mr.List("asynq:{bridgecast:delivery}:pending")
	if err != nil {
		return 0
	}
	return len(ids)
}

func healthyNode(id, streamID int64) *model.Node {
	return &model.Node{
		ID:             id,
		StreamID:       streamID,
		GroupID:        id,
		GroupDiscordID: 9000 + id,
		ChannelID:      1000 + id,
		WebhookID:      100 + id,
		WebhookToken:   fmt.Sprintf("token-%d", id),
	}
}

func TestNewBridgecastAppliesLimiterWindows(t *testing.T) {
	relay, _, _ := newTestRelay(t)

	assert.Equal(t, 4, relay.contentLimiter.Limit())
	assert.Equal(t, 6, relay.userLimiter.Limit())
	assert.Equal(t, 2, relay.violationLimiter.Limit())
	assert.NotNil(t, relay.Queue())
}
