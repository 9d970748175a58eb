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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/bridgecast/bridgecast/internal/request"
	"github.com/bridgecast/bridgecast/model"
)

// defaultRetryAfter is used when a rate-limited response carries no
// retry_after hint.
const defaultRetryAfter = 5 * time.Second

// allowedMentions restricts which mention types the destination resolves.
// Broadcast mentions (@everyone, @here) never ping across the relay;
// resolved user mentions still do.
type allowedMentions struct {
	Parse []string `json:"parse"`
}

var deliveryAllowedMentions = allowedMentions{Parse: []string{"users"}}

// outboundBody is a delivery job body with the relay's mention policy
// attached for the wire.
type outboundBody struct {
	model.MessageBody
	AllowedMentions allowedMentions `json:"allowed_mentions"`
}

// RateLimitedError reports a 429 from the destination. The worker sleeps for
// RetryAfter (padded) before trying again.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("destination rate limited, retry after %s", e.RetryAfter)
}

// TargetGoneError reports that the webhook no longer exists (404).
type TargetGoneError struct {
	Status int
}

func (e *TargetGoneError) Error() string {
	return fmt.Sprintf("webhook target gone (status %d)", e.Status)
}

// TargetForbiddenError reports that the webhook rejected our credentials
// (403).
type TargetForbiddenError struct {
	Status int
}

func (e *TargetForbiddenError) Error() string {
	return fmt.Sprintf("webhook target not authorized (status %d)", e.Status)
}

// RejectedError reports a payload the destination will never accept (400 or
// 413). The job is dropped without retrying.
type RejectedError struct {
	Status int
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("destination rejected payload (status %d)", e.Status)
}

// TransportError covers every other non-success response. These are retried
// up to the delivery cap.
type TransportError struct {
	Status int
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("destination returned status %d", e.Status)
}

// WebhookClient executes delivery jobs against destination webhooks.
type WebhookClient struct {
	http *http.Client
}

func NewWebhookClient() *WebhookClient {
	return &WebhookClient{http: &http.Client{Timeout: 30 * time.Second}}
}

// Execute performs one delivery attempt. For sends it returns the message ID
// the destination assigned; edits return the ID the job already carries.
func (w *WebhookClient) Execute(ctx context.Context, job *model.DeliveryJob) (int64, error) {
	if job.Kind() == model.JobEdit {
		return w.edit(ctx, job)
	}
	return w.send(ctx, job)
}

func (w *WebhookClient) send(ctx context.Context, job *model.DeliveryJob) (int64, error) {
	// wait=true makes the destination return the created message, which is
	// what result persistence correlates on.
	url := job.Target.URL + "?wait=true"

	var req *http.Request
	var err error
	if len(job.Body.Files) > 0 {
		req, err = w.multipartRequest(ctx, url, &job.Body)
	} else {
		payload, marshalErr := request.ToJsonReq(&outboundBody{MessageBody: job.Body, AllowedMentions: deliveryAllowedMentions})
		if marshalErr != nil {
			return 0, marshalErr
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, url, payload)
		if req != nil {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	if err != nil {
		return 0, err
	}

	resp, err := w.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return 0, err
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return 0, err
	}
	messageID, err := strconv.ParseInt(created.ID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("destination returned unparseable message id %q: %w", created.ID, err)
	}
	return messageID, nil
}

// edit rewrites a previously delivered message in place. The destination
// pins the author identity and attachments at creation time, so only the
// mutable fields go on the wire; the username, avatar and files an edit job
// carries are ignored here.
func (w *WebhookClient) edit(ctx context.Context, job *model.DeliveryJob) (int64, error) {
	url := fmt.Sprintf("%s/messages/%d", job.Target.URL, *job.MessageID)

	body := map[string]interface{}{
		"content":          job.Body.Content,
		"allowed_mentions": deliveryAllowedMentions,
	}
	if len(job.Body.Embeds) > 0 {
		body["embeds"] = job.Body.Embeds
	}
	payload, err := request.ToJsonReq(body)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, payload)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return *job.MessageID, nil
}

func (w *WebhookClient) multipartRequest(ctx context.Context, url string, body *model.MessageBody) (*http.Request, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	payload, err := json.Marshal(&outboundBody{MessageBody: *body, AllowedMentions: deliveryAllowedMentions})
	if err != nil {
		return nil, err
	}
	if err := writer.WriteField("payload_json", string(payload)); err != nil {
		return nil, err
	}

	for i, file := range body.Files {
		part, err := writer.CreateFormFile(fmt.Sprintf("file%d", i), file.Name)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(attachmentBytes(file.Body)); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req, nil
}

// attachmentBytes decodes the latin-1 string carried on the wire back into
// raw bytes. Every rune maps to a single byte.
func attachmentBytes(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		out = append(out, byte(r))
	}
	return out
}

func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := defaultRetryAfter
		var hint struct {
			RetryAfter float64 `json:"retry_after"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&hint); err == nil && hint.RetryAfter > 0 {
			retryAfter = time.Duration(hint.RetryAfter * float64(time.Second))
		}
		return &RateLimitedError{RetryAfter: retryAfter}
	case resp.StatusCode == http.StatusNotFound:
		return &TargetGoneError{Status: resp.StatusCode}
	case resp.StatusCode == http.StatusForbidden:
		return &TargetForbiddenError{Status: resp.StatusCode}
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusRequestEntityTooLarge:
		return &RejectedError{Status: resp.StatusCode}
	default:
		return &TransportError{Status: resp.StatusCode}
	}
}
