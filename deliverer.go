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
	"fmt"
	"time"

	"github.com/bridgecast/bridgecast/config"
	"github.com/bridgecast/bridgecast/internal/notification"
	"github.com/bridgecast/bridgecast/model"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// rateLimitPadding is applied to the retry_after hint so a retry does not
// race the window reset on the destination side.
const rateLimitPadding = 1.1

type deliveryRequest struct {
	job  *model.DeliveryJob
	done chan error
}

// StartWorkers launches the send, edit and persistence pools. The pools run
// until ctx is cancelled.
func (b *Bridgecast) StartWorkers(ctx context.Context) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	for i := 0; i < cfg.Queue.SendWorkers; i++ {
		go b.deliveryWorker(ctx, b.sendCh)
	}
	for i := 0; i < cfg.Queue.EditWorkers; i++ {
		go b.deliveryWorker(ctx, b.editCh)
	}
	for i := 0; i < cfg.Queue.PersistWorkers; i++ {
		go b.persistWorker(ctx)
	}

	logrus.WithFields(logrus.Fields{
		"send_workers":    cfg.Queue.SendWorkers,
		"edit_workers":    cfg.Queue.EditWorkers,
		"persist_workers": cfg.Queue.PersistWorkers,
	}).Info("delivery worker pools started")
	return nil
}

// ProcessDeliveryJob is the broker consumer callback. It routes the job into
// its pool by kind and blocks until delivery reaches a terminal state, so
// the task is only acknowledged once the job is finished with. Delivery
// failures are terminal here: the in-pool retry loop has already run, and
// re-running it through a broker redelivery would double the budget.
func (b *Bridgecast) ProcessDeliveryJob(ctx context.Context, task *asynq.Task) error {
	var job model.DeliveryJob
	if err := json.Unmarshal(task.Payload(), &job); err != nil {
		logrus.WithError(err).Error("dropping malformed delivery job")
		return fmt.Errorf("malformed delivery job: %v: %w", err, asynq.SkipRetry)
	}

	var pool chan *deliveryRequest
	switch job.Kind() {
	case model.JobEdit:
		pool = b.editCh
	default:
		pool = b.sendCh
	}

	req := &deliveryRequest{job: &job, done: make(chan error, 1)}
	select {
	case pool <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"node":   job.Target.ID,
				"kind":   job.Kind().String(),
				"origin": job.OriginMessageID(),
			}).WithError(err).Warn("delivery finished unsuccessfully")
		}
		return nil
	case <-ctx.Done():
		// Shutdown before the job finished; leave it unacknowledged so the
		// broker redelivers it to the next worker process.
		return ctx.Err()
	}
}

func (b *Bridgecast) deliveryWorker(ctx context.Context, pool chan *deliveryRequest) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-pool:
			req.done <- b.deliver(ctx, req.job)
		}
	}
}

// deliver runs the bounded retry loop for one job. Rate-limited attempts
// sleep out the hinted window; transport errors burn one retry each; target
// and payload errors end the job immediately.
func (b *Bridgecast) deliver(ctx context.Context, job *model.DeliveryJob) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	retries := 0
	success := false
	var lastErr error
	for !success && retries < cfg.Queue.MaxDeliveryRetries {
		messageID, err := b.webhooks.Execute(ctx, job)
		if err == nil {
			success = true
			b.recordDelivery(job, messageID)
			break
		}
		lastErr = err

		switch e := err.(type) {
		case *RateLimitedError:
			wait := time.Duration(float64(e.RetryAfter) * rateLimitPadding)
			logrus.WithFields(logrus.Fields{
				"node": job.Target.ID,
				"wait": wait.String(),
			}).Debug("delivery rate limited")
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
			retries++
		case *TargetGoneError:
			b.diagnoseNode(ctx, job, model.NodeTargetNotFound)
			return err
		case *TargetForbiddenError:
			b.diagnoseNode(ctx, job, model.NodeTargetNotAuthorized)
			return err
		case *RejectedError:
			logrus.WithFields(logrus.Fields{
				"node":   job.Target.ID,
				"origin": job.OriginMessageID(),
			}).WithError(err).Warn("destination rejected payload, dropping job")
			return err
		default:
			retries++
			b.logDeliveryError(job, err)
		}
	}

	if !success {
		return fmt.Errorf("delivery retries exhausted for node %d: %w", job.Target.ID, lastErr)
	}
	return nil
}

// recordDelivery hands a successful send over to the persistence pool.
// Edits and synthetic messages produce no result rows.
func (b *Bridgecast) recordDelivery(job *model.DeliveryJob, messageID int64) {
	if job.Kind() != model.JobSend || job.Origin.MessageID == nil {
		return
	}
	b.persistCh <- &model.ResultMessage{
		MessageID: messageID,
		NodeID:    job.Target.ID,
		OriginID:  *job.Origin.MessageID,
	}
}

// diagnoseNode records a permanent target failure against the node so it
// drops out of future fan-outs until the webhook is repaired.
func (b *Bridgecast) diagnoseNode(ctx context.Context, job *model.DeliveryJob, status model.NodeStatus) {
	if err := b.datasource.UpdateNodeStatus(ctx, job.Target.ID, status); err != nil {
		notification.NotifyError(err)
		return
	}
	logrus.WithFields(logrus.Fields{
		"node":   job.Target.ID,
		"status": status.String(),
	}).Warn("node marked unhealthy")
}

// logDeliveryError logs a retryable failure at most once per origin message
// per window, so a broken destination does not flood the log with one line
// per retry per node.
func (b *Bridgecast) logDeliveryError(job *model.DeliveryJob, err error) {
	key := fmt.Sprintf("delivery-errors:%d", job.OriginMessageID())
	if b.logLimiter.Enter(key) > 0 {
		return
	}
	logrus.WithFields(logrus.Fields{
		"node":   job.Target.ID,
		"kind":   job.Kind().String(),
		"origin": job.OriginMessageID(),
	}).WithError(err).Error("delivery attempt failed")
}
