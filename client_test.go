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

	"github.com/brianvoe/gofakeit/v6"
	"github.com/bridgecast/bridgecast/database/mocks"
	"github.com/bridgecast/bridgecast/internal/apierror"
	"github.com/bridgecast/bridgecast/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func mockSendPath(ds *mocks.MockDataSource, origin *model.Node, stream *model.Stream, user *model.User) {
	ds.On("GetNodeByChannel", mock.Anything, origin.ChannelID).Return(origin, nil)
	ds.On("GetStream", mock.Anything, stream.ID).Return(stream, nil)
	ds.On("GetOrCreateUser", mock.Anything, user.DiscordID).Return(user, nil)
	cleanModerationState(ds)
}

func TestSendFansOutToEligibleNodes(t *testing.T) {
	relay, ds, mr := newTestRelay(t)

	originNode := healthyNode(1, 10)
	stream := &model.Stream{ID: 10, Name: "general"}
	user := &model.User{ID: 7, DiscordID: 700}
	mockSendPath(ds, originNode, stream, user)

	unhealthy := healthyNode(3, 10)
	unhealthy.Status = model.NodeTargetNotFound
	groupBanned := healthyNode(4, 10)
	groupBanned.GroupDisabled = true
	ds.On("GetStreamNodes", mock.Anything, stream.ID).Return([]*model.Node{
		originNode,
		healthyNode(2, 10),
		unhealthy,
		groupBanned,
		healthyNode(5, 10),
	}, nil)

	ds.On("CreateOriginMessage", mock.Anything, mock.MatchedBy(func(m *model.OriginMessage) bool {
		return m.Content == "hello everyone" && m.NodeID == 1 && m.StreamID == 10 && m.UserID == 7
	})).Return(&model.OriginMessage{ID: 77}, nil)
	ds.On("AddUserPoints", mock.Anything, user.ID, 1).Return(10, nil)

	err := relay.Send(context.Background(), &InboundMessage{
		MessageID:     175928847299117063,
		ChannelID:     originNode.ChannelID,
		UserDiscordID: user.DiscordID,
		Username:      gofakeit.Username(),
		Discriminator: "0001",
		Content:       "hello everyone",
	})
	require.NoError(t, err)

	// The origin node, the unhealthy node and the group-banned node are all
	// skipped; only nodes 2 and 5 receive a job.
	assert.Equal(t, 2, pendingJobs(t, mr))
}

func TestReplyHeaderLinksEachDestinationToItsOwnDelivery(t *testing.T) {
	reference := &model.OriginMessage{
		ID:        77,
		MessageID: 600,
		NodeID:    1,
		Content:   "original text",
		Results: []model.ResultMessage{
			{MessageID: 888, NodeID: 2, OriginID: 77},
		},
	}
	reply := &ReplyPreview{MessageID: 600, Author: "eve", Content: "original text"}

	// The node the reference arrived on links to the original message.
	header := replyHeader(reference, reply, healthyNode(1, 10))
	assert.Contains(t, header, "https://discord.com/channels/9001/1001/600")
	assert.Contains(t, header, "original text")

	// Other nodes link to their own relayed copy of it.
	header = replyHeader(reference, reply, healthyNode(2, 10))
	assert.Contains(t, header, "https://discord.com/channels/9002/1002/888")

	// A node that never received the referenced message gets no header.
	assert.Empty(t, replyHeader(reference, reply, healthyNode(5, 10)))

	assert.Empty(t, replyHeader(nil, reply, healthyNode(2, 10)))
}

func TestSendReplyToUnknownMessageLeavesBodyUntouched(t *testing.T) {
	relay, ds, mr := newTestRelay(t)

	originNode := healthyNode(1, 10)
	stream := &model.Stream{ID: 10, Name: "general"}
	user := &model.User{ID: 7, DiscordID: 700}
	mockSendPath(ds, originNode, stream, user)
	ds.On("GetStreamNodes", mock.Anything, stream.ID).Return([]*model.Node{originNode, healthyNode(2, 10)}, nil)
	ds.On("GetOriginByDeliveredID", mock.Anything, int64(555)).
		Return((*model.OriginMessage)(nil), apierror.APIError{Code: apierror.ErrNotFound, Message: "Origin message not found"})

	// A reply whose reference was never relayed is delivered without any
	// quote line; the stored origin content is exactly the inbound body.
	ds.On("CreateOriginMessage", mock.Anything, mock.MatchedBy(func(m *model.OriginMessage) bool {
		return m.Content == "replying to that"
	})).Return(&model.OriginMessage{ID: 78}, nil)
	ds.On("AddUserPoints", mock.Anything, user.ID, 1).Return(11, nil)

	err := relay.Send(context.Background(), &InboundMessage{
		MessageID:     175928847299117064,
		ChannelID:     originNode.ChannelID,
		UserDiscordID: user.DiscordID,
		Username:      "alice",
		Discriminator: "0001",
		Content:       "replying to that",
		Reply:         &ReplyPreview{MessageID: 555, Author: "eve", Content: "never delivered anywhere"},
	})
	require.NoError(t, err)
	ds.AssertCalled(t, "CreateOriginMessage", mock.Anything, mock.Anything)
	assert.Equal(t, 1, pendingJobs(t, mr))
}

func TestSendResolvesReplyAgainstStoredDeliveries(t *testing.T) {
	relay, ds, mr := newTestRelay(t)

	originNode := healthyNode(1, 10)
	stream := &model.Stream{ID: 10, Name: "general"}
	user := &model.User{ID: 7, DiscordID: 700}
	mockSendPath(ds, originNode, stream, user)
	ds.On("GetStreamNodes", mock.Anything, stream.ID).Return([]*model.Node{originNode, healthyNode(2, 10), healthyNode(5, 10)}, nil)
	ds.On("GetOriginByDeliveredID", mock.Anything, int64(600)).Return(&model.OriginMessage{
		ID:        70,
		MessageID: 600,
		NodeID:    1,
		Content:   "original text",
		Results:   []model.ResultMessage{{MessageID: 888, NodeID: 2, OriginID: 70}},
	}, nil)

	// The header is per destination, so the stored origin content stays
	// free of it.
	ds.On("CreateOriginMessage", mock.Anything, mock.MatchedBy(func(m *model.OriginMessage) bool {
		return m.Content == "replying to that"
	})).Return(&model.OriginMessage{ID: 78}, nil)
	ds.On("AddUserPoints", mock.Anything, user.ID, 1).Return(11, nil)

	err := relay.Send(context.Background(), &InboundMessage{
		MessageID:     175928847299117066,
		ChannelID:     originNode.ChannelID,
		UserDiscordID: user.DiscordID,
		Username:      "alice",
		Discriminator: "0001",
		Content:       "replying to that",
		Reply:         &ReplyPreview{MessageID: 600, Author: "eve", Content: "original text"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, pendingJobs(t, mr))
}

func TestSendRejectedMessagePublishesNothing(t *testing.T) {
	relay, ds, mr := newTestRelay(t)

	originNode := healthyNode(1, 10)
	ds.On("GetNodeByChannel", mock.Anything, originNode.ChannelID).Return(originNode, nil)
	ds.On("GetStream", mock.Anything, int64(10)).Return(&model.Stream{ID: 10}, nil)
	ds.On("GetOrCreateUser", mock.Anything, int64(700)).Return(&model.User{ID: 7, DiscordID: 700}, nil)
	ds.On("IsUserMuted", mock.Anything, int64(7), mock.Anything).Return(true, nil)

	err := relay.Send(context.Background(), &InboundMessage{
		MessageID:     175928847299117065,
		ChannelID:     originNode.ChannelID,
		UserDiscordID: 700,
		Username:      "alice",
		Discriminator: "0001",
		Content:       "hello",
	})

	var ferr *FilterError
	require.ErrorAs(t, err, &ferr)
	ds.AssertNotCalled(t, "CreateOriginMessage", mock.Anything, mock.Anything)
	assert.Equal(t, 0, pendingJobs(t, mr))
}

func TestUpdateEditsOnlyDeliveredNodes(t *testing.T) {
	relay, ds, mr := newTestRelay(t)

	origin := &model.OriginMessage{
		ID:       77,
		UserID:   7,
		NodeID:   1,
		StreamID: 10,
		Results: []model.ResultMessage{
			{MessageID: 888, NodeID: 2, OriginID: 77},
		},
	}
	ds.On("GetOriginByDeliveredID", mock.Anything, int64(175928847299117063)).Return(origin, nil)
	ds.On("GetStream", mock.Anything, int64(10)).Return(&model.Stream{ID: 10}, nil)
	ds.On("GetUser", mock.Anything, int64(7)).Return(&model.User{ID: 7}, nil)
	cleanModerationState(ds)

	// Node 5 is enabled but never received the original send, so it gets no
	// edit job either.
	ds.On("GetStreamNodes", mock.Anything, int64(10)).Return([]*model.Node{
		healthyNode(1, 10),
		healthyNode(2, 10),
		healthyNode(5, 10),
	}, nil)

	err := relay.Update(context.Background(), &InboundMessage{
		MessageID:     175928847299117063,
		Username:      "alice",
		Discriminator: "0001",
		Content:       "edited content",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, pendingJobs(t, mr))
}

func TestSendSyntheticReachesAllEnabledNodes(t *testing.T) {
	relay, ds, mr := newTestRelay(t)

	unhealthy := healthyNode(3, 10)
	unhealthy.Status = model.NodeTransportError
	ds.On("GetStreamNodes", mock.Anything, int64(10)).Return([]*model.Node{
		healthyNode(1, 10),
		healthyNode(2, 10),
		unhealthy,
	}, nil)

	err := relay.SendSynthetic(context.Background(), &model.Stream{ID: 10}, "scheduled maintenance in five minutes")
	require.NoError(t, err)

	// Synthetic messages have no origin node, so nothing is excluded beyond
	// the disabled node.
	assert.Equal(t, 2, pendingJobs(t, mr))
}

func TestSendSyntheticToSingleNode(t *testing.T) {
	relay, ds, mr := newTestRelay(t)

	err := relay.SendSynthetic(context.Background(), healthyNode(2, 10), "this channel is rate limited")
	require.NoError(t, err)

	assert.Equal(t, 1, pendingJobs(t, mr))
	ds.AssertNotCalled(t, "GetStreamNodes", mock.Anything, mock.Anything)
}

func TestSendSyntheticRejectsUnknownTargetType(t *testing.T) {
	relay, _, mr := newTestRelay(t)

	err := relay.SendSynthetic(context.Background(), int64(10), "lost")
	require.Error(t, err)
	assert.Equal(t, apierror.ErrBadRequest, apierror.Code(err))
	assert.Equal(t, 0, pendingJobs(t, mr))
}
