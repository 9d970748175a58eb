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
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wacul/ptr"

	"github.com/bridgecast/bridgecast/model"
)

func TestExecuteSendWaitsForCreatedMessage(t *testing.T) {
	client := NewWebhookClient()
	httpmock.ActivateNonDefault(client.http)
	t.Cleanup(httpmock.DeactivateAndReset)

	var gotURL string
	var gotBody model.MessageBody
	httpmock.RegisterResponder(http.MethodPost, anyWebhook, func(req *http.Request) (*http.Response, error) {
		gotURL = req.URL.String()
		if err := json.NewDecoder(req.Body).Decode(&gotBody); err != nil {
			return nil, err
		}
		return httpmock.NewStringResponse(200, `{"id": "175928847299117063"}`), nil
	})

	messageID, err := client.Execute(context.Background(), validJob())
	require.NoError(t, err)

	// wait=true makes the destination return the created message, which is
	// what the returned id comes from.
	assert.Equal(t, int64(175928847299117063), messageID)
	assert.True(t, strings.HasSuffix(gotURL, "?wait=true"), gotURL)
	assert.Equal(t, "hello", gotBody.Content)
	assert.Equal(t, "alice#0001", gotBody.Username)
}

func TestExecuteSendWithAttachmentsUsesMultipart(t *testing.T) {
	client := NewWebhookClient()
	httpmock.ActivateNonDefault(client.http)
	t.Cleanup(httpmock.DeactivateAndReset)

	var gotPayload string
	var gotFile []byte
	httpmock.RegisterResponder(http.MethodPost, anyWebhook, func(req *http.Request) (*http.Response, error) {
		if err := req.ParseMultipartForm(1 << 20); err != nil {
			return nil, err
		}
		gotPayload = req.MultipartForm.Value["payload_json"][0]
		file, _, err := req.FormFile("file0")
		if err != nil {
			return nil, err
		}
		defer file.Close()
		buf := make([]byte, 4)
		if _, err := file.Read(buf); err != nil {
			return nil, err
		}
		gotFile = buf
		return httpmock.NewStringResponse(200, `{"id": "903"}`), nil
	})

	job := validJob()
	// Attachment bytes travel as a latin-1 string, so the high byte of the
	// PNG magic arrives as codepoint U+0089.
	job.Body.Files = []model.Attachment{{Name: "cat.png", Body: "\u0089PNG"}}
	_, err := client.Execute(context.Background(), job)
	require.NoError(t, err)

	assert.Contains(t, gotPayload, `"content":"hello"`)
	assert.Contains(t, gotPayload, `"allowed_mentions":{"parse":["users"]}`)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, gotFile)
}

func TestExecuteSendDisablesBroadcastMentions(t *testing.T) {
	client := NewWebhookClient()
	httpmock.ActivateNonDefault(client.http)
	t.Cleanup(httpmock.DeactivateAndReset)

	var gotBody string
	httpmock.RegisterResponder(http.MethodPost, anyWebhook, func(req *http.Request) (*http.Response, error) {
		raw, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		gotBody = string(raw)
		return httpmock.NewStringResponse(200, `{"id": "904"}`), nil
	})

	job := validJob()
	job.Body.Content = "@everyone big news"
	_, err := client.Execute(context.Background(), job)
	require.NoError(t, err)

	// Only resolved user mentions may ping; @everyone and @here stay inert
	// even when the text carries them verbatim.
	assert.Contains(t, gotBody, `"allowed_mentions":{"parse":["users"]}`)
}

func TestExecuteEditSendsOnlyMutableFields(t *testing.T) {
	client := NewWebhookClient()
	httpmock.ActivateNonDefault(client.http)
	t.Cleanup(httpmock.DeactivateAndReset)

	var gotBody map[string]json.RawMessage
	httpmock.RegisterResponder(http.MethodPatch, anyWebhook, func(req *http.Request) (*http.Response, error) {
		if err := json.NewDecoder(req.Body).Decode(&gotBody); err != nil {
			return nil, err
		}
		return httpmock.NewStringResponse(200, `{"id": "888"}`), nil
	})

	job := validJob()
	job.Edit = true
	job.MessageID = ptr.Int64(888)
	messageID, err := client.Execute(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, int64(888), messageID)

	// The destination pins author identity at creation time, so the patch
	// carries the content and the mention policy but no username or avatar.
	assert.Contains(t, gotBody, "content")
	assert.Contains(t, gotBody, "allowed_mentions")
	assert.NotContains(t, gotBody, "username")
	assert.NotContains(t, gotBody, "avatar_url")
}

func TestClassifyStatus(t *testing.T) {
	client := NewWebhookClient()
	httpmock.ActivateNonDefault(client.http)
	t.Cleanup(httpmock.DeactivateAndReset)

	tests := []struct {
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{429, `{"retry_after": 2.5}`, func(t *testing.T, err error) {
			var limited *RateLimitedError
			require.ErrorAs(t, err, &limited)
			assert.Equal(t, 2500*time.Millisecond, limited.RetryAfter)
		}},
		{429, `{}`, func(t *testing.T, err error) {
			var limited *RateLimitedError
			require.ErrorAs(t, err, &limited)
			assert.Equal(t, defaultRetryAfter, limited.RetryAfter)
		}},
		{404, `{}`, func(t *testing.T, err error) {
			var gone *TargetGoneError
			require.ErrorAs(t, err, &gone)
		}},
		{403, `{}`, func(t *testing.T, err error) {
			var forbidden *TargetForbiddenError
			require.ErrorAs(t, err, &forbidden)
		}},
		{413, `{}`, func(t *testing.T, err error) {
			var rejected *RejectedError
			require.ErrorAs(t, err, &rejected)
		}},
		{502, `{}`, func(t *testing.T, err error) {
			var transport *TransportError
			require.ErrorAs(t, err, &transport)
			assert.Equal(t, 502, transport.Status)
		}},
	}

	for _, tt := range tests {
		httpmock.Reset()
		httpmock.RegisterResponder(http.MethodPost, anyWebhook,
			httpmock.NewStringResponder(tt.status, tt.body))
		_, err := client.Execute(context.Background(), validJob())
		tt.check(t, err)
	}
}

func TestExecuteSendRejectsUnparseableMessageID(t *testing.T) {
	client := NewWebhookClient()
	httpmock.ActivateNonDefault(client.http)
	t.Cleanup(httpmock.DeactivateAndReset)
	httpmock.RegisterResponder(http.MethodPost, anyWebhook,
		httpmock.NewStringResponder(200, `{"id": "not-a-snowflake"}`))

	_, err := client.Execute(context.Background(), validJob())
	assert.ErrorContains(t, err, "unparseable message id")
}
