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
	"testing"

	"github.com/bridgecast/bridgecast/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wacul/ptr"
)

func validJob() *model.DeliveryJob {
	return &model.DeliveryJob{
		Type:   model.JobTypeDiscord,
		Target: model.JobTarget{ID: 2, URL: "https://discord.com/api/webhooks/102/token-2"},
		Body:   model.MessageBody{Content: "hello", Username: "alice#0001"},
		Origin: model.JobOrigin{NodeID: ptr.Int64(1), MessageID: ptr.Int64(77)},
	}
}

func TestPublishJobEnqueues(t *testing.T) {
	relay, _, mr := newTestRelay(t)

	err := relay.Queue().PublishJob(context.Background(), validJob())
	require.NoError(t, err)
	assert.Equal(t, 1, pendingJobs(t, mr))
}

func TestPublishJobRejectsUnknownType(t *testing.T) {
	relay, _, mr := newTestRelay(t)

	job := validJob()
	job.Type = "email"
	err := relay.Queue().PublishJob(context.Background(), job)
	assert.Error(t, err)
	assert.Equal(t, 0, pendingJobs(t, mr))
}

func TestPublishJobRejectsTargetWithoutURL(t *testing.T) {
	relay, _, mr := newTestRelay(t)

	job := validJob()
	job.Target.URL = ""
	err := relay.Queue().PublishJob(context.Background(), job)
	assert.Error(t, err)
	assert.Equal(t, 0, pendingJobs(t, mr))
}

func TestPublishJobRequiresMessageIDForEdits(t *testing.T) {
	relay, _, mr := newTestRelay(t)

	job := validJob()
	job.Edit = true
	job.MessageID = nil
	err := relay.Queue().PublishJob(context.Background(), job)
	assert.Error(t, err)
	assert.Equal(t, 0, pendingJobs(t, mr))
}
