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
	"time"

	"github.com/bridgecast/bridgecast/cache"
	"github.com/bridgecast/bridgecast/config"
	"github.com/bridgecast/bridgecast/database"
	"github.com/bridgecast/bridgecast/internal/ratelimit"
	"github.com/bridgecast/bridgecast/model"
)

// Bridgecast represents the main struct for the relay engine. One instance
// serves both the inbound fan-out path and the delivery worker pools.
type Bridgecast struct {
	queue      *Queue
	cache      cache.Cache
	datasource database.IDataSource
	webhooks   *WebhookClient
	directory  *MemberDirectory

	contentLimiter   *ratelimit.RateLimit
	userLimiter      *ratelimit.RateLimit
	violationLimiter *ratelimit.RateLimit
	logLimiter       *ratelimit.RateLimit

	sendCh    chan *deliveryRequest
	editCh    chan *deliveryRequest
	persistCh chan *model.ResultMessage
}

// logOnceWindow suppresses repeated delivery error logs for the same origin
// message.
const logOnceWindow = time.Minute

// NewBridgecast initializes a new instance of Bridgecast with the provided
// database datasource. It fetches the configuration and initializes the
// cache, broker queue and rate limiters.
//
// Parameters:
// - db database.IDataSource: The datasource for database operations.
//
// Returns:
// - *Bridgecast: A pointer to the newly created Bridgecast instance.
// - error: An error if any of the initialization steps fail.
func NewBridgecast(db database.IDataSource) (*Bridgecast, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	newCache, err := cache.NewCache()
	if err != nil {
		return nil, err
	}
	newQueue := NewQueue(configuration)

	newBridgecast := &Bridgecast{
		datasource: db,
		queue:      newQueue,
		cache:      newCache,
		webhooks:   NewWebhookClient(),
		directory:  NewMemberDirectory(),

		contentLimiter:   newWindowLimiter(configuration.RateLimit.Content),
		userLimiter:      newWindowLimiter(configuration.RateLimit.User),
		violationLimiter: newWindowLimiter(configuration.RateLimit.Violation),
		logLimiter:       ratelimit.New(1, logOnceWindow),

		sendCh:    make(chan *deliveryRequest),
		editCh:    make(chan *deliveryRequest),
		persistCh: make(chan *model.ResultMessage, configuration.Queue.Prefetch),
	}
	return newBridgecast, nil
}

// Queue exposes the broker queue, used by the workers command for
// monitoring.
func (b *Bridgecast) Queue() *Queue {
	return b.queue
}

func newWindowLimiter(w config.WindowConfig) *ratelimit.RateLimit {
	return ratelimit.New(w.Limit, time.Duration(w.WindowSec)*time.Second)
}
