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

	"github.com/bridgecast/bridgecast/internal/notification"
	"github.com/bridgecast/bridgecast/model"
	"github.com/sirupsen/logrus"
)

// persistWorker drains the result channel and writes delivery records. The
// delivery itself already happened, so a failed write is reported and the
// worker moves on; the row is lost rather than the pool stalled.
func (b *Bridgecast) persistWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case result := <-b.persistCh:
			b.persistResult(ctx, result)
		}
	}
}

func (b *Bridgecast) persistResult(ctx context.Context, result *model.ResultMessage) {
	if err := b.datasource.CreateResultMessage(ctx, result); err != nil {
		logrus.WithFields(logrus.Fields{
			"origin":  result.OriginID,
			"node":    result.NodeID,
			"message": result.MessageID,
		}).WithError(err).Error("failed to persist delivery result")
		notification.NotifyError(err)
	}
}
