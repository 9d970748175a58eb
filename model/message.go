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

package model

import "time"

// OriginMessage is one inbound message that may fan out to many
// destinations. MessageID is the id the source destination assigned to the
// message (zero for synthetic messages).
type OriginMessage struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	MessageID int64     `json:"message_id"`
	NodeID    int64     `json:"node_id"`
	StreamID  int64     `json:"stream_id"`
	Content   string    `json:"content"`
	SentAt    time.Time `json:"sent_at"`

	// Results is populated on demand by the repository, ordered by creation.
	Results []ResultMessage `json:"results,omitempty"`
}

// ResultMessage records one successful delivery of an origin message to one
// node. MessageID is the id assigned by the destination.
//
// There is deliberately no uniqueness constraint on (OriginID, NodeID):
// delivery is at-least-once, and a retry after a partial failure may produce
// a duplicate row. Correlation lookups use the earliest row per node.
type ResultMessage struct {
	ID        int64 `json:"id"`
	MessageID int64 `json:"message_id"`
	NodeID    int64 `json:"node_id"`
	OriginID  int64 `json:"origin_id"`
}

// SentAt derives the delivery time from the destination-assigned id.
func (r *ResultMessage) SentAt() time.Time {
	return SnowflakeTime(r.MessageID)
}

// Delay returns the maximum, minimum and mean delta between the origin's
// sent time and each result delivery. All zero when there are no results.
func (m *OriginMessage) Delay() (max, min, avg time.Duration) {
	if len(m.Results) == 0 {
		return 0, 0, 0
	}

	var total time.Duration
	for i, result := range m.Results {
		delta := result.SentAt().Sub(m.SentAt)
		if i == 0 || delta > max {
			max = delta
		}
		if i == 0 || delta < min {
			min = delta
		}
		total += delta
	}
	return max, min, total / time.Duration(len(m.Results))
}

// ResultForNode returns the earliest recorded delivery of this message to
// the given node, or nil when the message never reached it.
func (m *OriginMessage) ResultForNode(nodeID int64) *ResultMessage {
	for i := range m.Results {
		if m.Results[i].NodeID == nodeID {
			return &m.Results[i]
		}
	}
	return nil
}
