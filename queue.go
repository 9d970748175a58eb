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
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/bridgecast/bridgecast/config"
	redis_db "github.com/bridgecast/bridgecast/internal/redis-db"

	"github.com/bridgecast/bridgecast/model"
	"github.com/cenkalti/backoff/v4"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

const publishBackoffInterval = 500 * time.Millisecond

// Queue represents the broker connection used to hand delivery jobs to the
// worker pools.
type Queue struct {
	mu        sync.Mutex
	client    *asynq.Client
	inspector *asynq.Inspector
	opts      asynq.RedisClientOpt
}

// NewQueue initializes a new Queue instance with the provided configuration.
// A broker that cannot be reached at startup is fatal; reconnects are only
// attempted once the initial connection has been established.
//
// Parameters:
// - conf *config.Configuration: The configuration for the queue.
//
// Returns:
// - *Queue: A pointer to the newly created Queue instance.
func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		client:    client,
		inspector: inspector,
		opts:      queueOptions,
	}
}

// RedisConnOpt returns the broker connection options, used by the workers
// command to build the consumer server against the same broker.
func (q *Queue) RedisConnOpt() asynq.RedisClientOpt {
	return q.opts
}

// PublishJob validates and enqueues one delivery job on the delivery queue.
// A failed enqueue tears down the broker connection and retries on a fresh
// one with constant backoff, up to the configured publish retry cap.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - job *model.DeliveryJob: The delivery job to publish.
//
// Returns:
// - error: An error if the job is invalid or all publish attempts fail.
func (q *Queue) PublishJob(ctx context.Context, job *model.DeliveryJob) error {
	ctx, span := tracer.Start(ctx, "Adding delivery job to broker queue")
	defer span.End()

	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	if err := job.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}

	// The asynq retry budget is zero on purpose: redelivery after a crash is
	// the broker's job, retrying failed webhook calls is the worker's.
	task := asynq.NewTask(cfg.Queue.DeliveryQueue, payload, asynq.Queue(cfg.Queue.DeliveryQueue), asynq.MaxRetry(0))

	operation := func() error {
		q.mu.Lock()
		client := q.client
		q.mu.Unlock()

		_, err := client.EnqueueContext(ctx, task)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"queue": cfg.Queue.DeliveryQueue,
				"node":  job.Target.ID,
			}).WithError(err).Warn("publish failed, reconnecting broker client")
			q.reconnect()
		}
		return err
	}

	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(publishBackoffInterval), uint64(cfg.Queue.MaxPublishRetries))
	return backoff.Retry(operation, backoff.WithContext(bo, ctx))
}

// PendingJobs returns the number of jobs waiting on the delivery queue.
func (q *Queue) PendingJobs() (int, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return 0, err
	}
	info, err := q.inspector.GetQueueInfo(cfg.Queue.DeliveryQueue)
	if err != nil {
		return 0, err
	}
	return info.Pending, nil
}

func (q *Queue) reconnect() {
	q.mu.Lock()
	defer q.mu.Unlock()
	_ = q.client.Close()
	q.client = asynq.NewClient(q.opts)
}
