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

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// JobTypeDiscord is the only delivery kind currently emitted. The field is
// kept on the wire for forwards compatibility with other destination kinds.
const JobTypeDiscord = "discord"

// JobKind discriminates how a dequeued delivery job is dispatched.
type JobKind int

const (
	JobSend JobKind = iota
	JobEdit
)

func (k JobKind) String() string {
	if k == JobEdit {
		return "edit"
	}
	return "send"
}

// JobTarget identifies the node a job delivers to.
type JobTarget struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

// JobOrigin correlates a job back to its origin message. Nil fields occur on
// system messages with no stored origin.
type JobOrigin struct {
	NodeID    *int64 `json:"node"`
	MessageID *int64 `json:"message"`
}

// Attachment is a file forwarded with a message. Body carries the raw bytes
// encoded as a latin-1 string, matching the wire format.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
	Body string `json:"body"`
}

// Embed is an opaque destination embed object.
type Embed map[string]interface{}

// MessageBody is the per-destination rendering of a message.
type MessageBody struct {
	Content   string       `json:"content"`
	Username  string       `json:"username"`
	AvatarURL string       `json:"avatar_url"`
	Files     []Attachment `json:"files,omitempty"`
	Embeds    []Embed      `json:"embeds,omitempty"`
}

// DeliveryJob is the broker payload for one delivery to one destination.
// It is created on publish and destroyed on dequeue; the broker's own
// durability decides whether an unacked job is redelivered after a crash.
type DeliveryJob struct {
	Edit      bool        `json:"edit"`
	MessageID *int64      `json:"message_id"`
	Type      string      `json:"type"`
	Target    JobTarget   `json:"target"`
	Body      MessageBody `json:"body"`
	Origin    JobOrigin   `json:"origin"`
}

// Kind maps the wire flag onto the dispatch enum.
func (j *DeliveryJob) Kind() JobKind {
	if j.Edit {
		return JobEdit
	}
	return JobSend
}

// OriginMessageID returns the correlated origin row id, or 0 when absent.
func (j *DeliveryJob) OriginMessageID() int64 {
	if j.Origin.MessageID == nil {
		return 0
	}
	return *j.Origin.MessageID
}

// Validate checks a job before it is published.
func (j DeliveryJob) Validate() error {
	return validation.ValidateStruct(&j,
		validation.Field(&j.Type, validation.Required, validation.In(JobTypeDiscord)),
		validation.Field(&j.Target, validation.Required),
		validation.Field(&j.MessageID, validation.When(j.Edit, validation.Required)),
	)
}

// Validate checks the target endpoint of a job.
func (t JobTarget) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.ID, validation.Required),
		validation.Field(&t.URL, validation.Required, is.URL),
	)
}
