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
	"fmt"

	"github.com/bridgecast/bridgecast/config"
	"github.com/bridgecast/bridgecast/internal/apierror"
	"github.com/bridgecast/bridgecast/internal/notification"
	"github.com/bridgecast/bridgecast/model"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("Relay fan-out")

// InboundMessage is one message arriving from a source channel, before any
// filtering or transformation.
type InboundMessage struct {
	MessageID     int64
	ChannelID     int64
	UserDiscordID int64
	Username      string
	Discriminator string
	AvatarURL     string
	Content       string
	Attachments   []model.Attachment
	Embeds        []model.Embed
	Reply         *ReplyPreview
}

// ReplyPreview is the quoted message an inbound message replies to.
// MessageID is the delivered message the reply was made against, which may
// be either an original or one of its relayed copies.
type ReplyPreview struct {
	MessageID int64
	Author    string
	Content   string
}

// Send relays one inbound message to every enabled node of its stream except
// the node it arrived on. The message passes the filter pipeline, is stored
// as an origin row, and one delivery job per destination is published.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - msg *InboundMessage: The message to relay.
//
// Returns:
// - error: A *FilterError if the message was rejected, or an error if
// persistence or publishing failed.
func (b *Bridgecast) Send(ctx context.Context, msg *InboundMessage) error {
	ctx, span := tracer.Start(ctx, "Relaying inbound message")
	defer span.End()

	node, err := b.datasource.GetNodeByChannel(ctx, msg.ChannelID)
	if err != nil {
		return err
	}
	stream, err := b.datasource.GetStream(ctx, node.StreamID)
	if err != nil {
		return err
	}
	user, err := b.datasource.GetOrCreateUser(ctx, msg.UserDiscordID)
	if err != nil {
		return err
	}

	if err := b.CheckFilters(ctx, &FilterContext{User: user, Stream: stream, Node: node, Content: msg.Content}); err != nil {
		return err
	}

	b.directory.RecordSeen(msg.Username, msg.Discriminator, msg.UserDiscordID, node.ID)

	content := b.directory.TokenizeMentions(msg.Content)
	reference := b.resolveReference(ctx, msg.Reply)

	origin, err := b.datasource.CreateOriginMessage(ctx, &model.OriginMessage{
		UserID:    user.ID,
		MessageID: msg.MessageID,
		NodeID:    node.ID,
		StreamID:  stream.ID,
		Content:   content,
		SentAt:    model.SnowflakeTime(msg.MessageID),
	})
	if err != nil {
		return err
	}

	if _, err := b.datasource.AddUserPoints(ctx, user.ID, 1); err != nil {
		logrus.WithField("user", user.ID).WithError(err).Warn("failed to award activity points")
	}

	nodes, err := b.resolveTarget(ctx, stream)
	if err != nil {
		return err
	}

	username := PrepareUsername(msg.Username, msg.Discriminator)
	return b.fanOut(ctx, nodes, node.ID, func(n *model.Node) *model.DeliveryJob {
		return &model.DeliveryJob{
			Type:   model.JobTypeDiscord,
			Target: model.JobTarget{ID: n.ID, URL: n.WebhookURL()},
			Body: model.MessageBody{
				Content:   replyHeader(reference, msg.Reply, n) + RenderFor(n, content),
				Username:  username,
				AvatarURL: msg.AvatarURL,
				Files:     msg.Attachments,
				Embeds:    msg.Embeds,
			},
			Origin: model.JobOrigin{NodeID: &node.ID, MessageID: &origin.ID},
		}
	})
}

// resolveReference correlates a reply back to the origin message it quotes.
// An unknown reference is not an error; the reply is simply relayed without
// a quote line.
func (b *Bridgecast) resolveReference(ctx context.Context, reply *ReplyPreview) *model.OriginMessage {
	if reply == nil {
		return nil
	}
	reference, err := b.datasource.GetOriginByDeliveredID(ctx, reply.MessageID)
	if err != nil {
		if !apierror.IsNotFound(err) {
			notification.NotifyError(err)
		}
		return nil
	}
	return reference
}

// replyHeader renders the quote line of a reply for one destination. The
// line links to the delivery of the referenced message at that destination;
// a destination that never received it gets no line at all.
func replyHeader(reference *model.OriginMessage, reply *ReplyPreview, node *model.Node) string {
	if reference == nil || reply == nil {
		return ""
	}
	deliveredID := reference.MessageID
	if node.ID != reference.NodeID {
		result := reference.ResultForNode(node.ID)
		if result == nil {
			return ""
		}
		deliveredID = result.MessageID
	}
	preview := reply.Content
	if preview == "" {
		preview = reference.Content
	}
	if preview == "" {
		preview = "original message"
	}
	return QuoteHeader(reply.Author, preview, node.MessageLink(deliveredID))
}

// Update propagates an edit of an already-relayed message. Only nodes that
// recorded a delivery of the origin receive an edit job; the edited content
// passes the filter pipeline again.
func (b *Bridgecast) Update(ctx context.Context, msg *InboundMessage) error {
	ctx, span := tracer.Start(ctx, "Relaying message edit")
	defer span.End()

	origin, err := b.datasource.GetOriginByDeliveredID(ctx, msg.MessageID)
	if err != nil {
		return err
	}
	stream, err := b.datasource.GetStream(ctx, origin.StreamID)
	if err != nil {
		return err
	}
	user, err := b.datasource.GetUser(ctx, origin.UserID)
	if err != nil {
		return err
	}

	if err := b.CheckFilters(ctx, &FilterContext{User: user, Stream: stream, Content: msg.Content}); err != nil {
		return err
	}

	content := b.directory.TokenizeMentions(msg.Content)
	reference := b.resolveReference(ctx, msg.Reply)

	nodes, err := b.resolveTarget(ctx, stream)
	if err != nil {
		return err
	}

	username := PrepareUsername(msg.Username, msg.Discriminator)
	return b.fanOut(ctx, nodes, origin.NodeID, func(n *model.Node) *model.DeliveryJob {
		result := origin.ResultForNode(n.ID)
		if result == nil {
			// The original send never reached this node; there is nothing
			// to edit there.
			return nil
		}
		return &model.DeliveryJob{
			Edit:      true,
			MessageID: &result.MessageID,
			Type:      model.JobTypeDiscord,
			Target:    model.JobTarget{ID: n.ID, URL: n.WebhookURL()},
			Body: model.MessageBody{
				Content:   replyHeader(reference, msg.Reply, n) + RenderFor(n, content),
				Username:  username,
				AvatarURL: msg.AvatarURL,
				Embeds:    msg.Embeds,
			},
			Origin: model.JobOrigin{NodeID: &origin.NodeID, MessageID: &origin.ID},
		}
	})
}

// SendSynthetic relays a message from the configured system identity to a
// fan-out target: every enabled node of a stream, or one specific node for
// localized notices. Synthetic messages skip filters and are not persisted,
// so their jobs carry no origin correlation.
func (b *Bridgecast) SendSynthetic(ctx context.Context, target interface{}, content string) error {
	ctx, span := tracer.Start(ctx, "Relaying synthetic message")
	defer span.End()

	cfg, err := config.Fetch()
	if err != nil {
		return err
	}
	nodes, err := b.resolveTarget(ctx, target)
	if err != nil {
		return err
	}

	return b.fanOut(ctx, nodes, 0, func(n *model.Node) *model.DeliveryJob {
		return &model.DeliveryJob{
			Type:   model.JobTypeDiscord,
			Target: model.JobTarget{ID: n.ID, URL: n.WebhookURL()},
			Body: model.MessageBody{
				Content:   content,
				Username:  cfg.Relay.SystemUsername,
				AvatarURL: cfg.Relay.SystemAvatarURL,
			},
		}
	})
}

// resolveTarget expands a fan-out target into its candidate nodes. A node
// targets just itself; a stream targets all of its member nodes. Anything
// else is a caller bug.
func (b *Bridgecast) resolveTarget(ctx context.Context, target interface{}) ([]*model.Node, error) {
	switch tg := target.(type) {
	case *model.Node:
		return []*model.Node{tg}, nil
	case *model.Stream:
		return b.datasource.GetStreamNodes(ctx, tg.ID)
	default:
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, fmt.Sprintf("unsupported fan-out target %T", target), nil)
	}
}

// fanOut publishes one job per eligible node concurrently and waits for all
// publishes. Disabled nodes and the origin node are skipped; a nil job from
// the builder skips the node as well.
func (b *Bridgecast) fanOut(ctx context.Context, nodes []*model.Node, excludeNodeID int64, build func(*model.Node) *model.DeliveryJob) error {
	g, ctx := errgroup.WithContext(ctx)
	published := 0
	for _, n := range nodes {
		if n.ID == excludeNodeID || n.Disabled() {
			continue
		}
		job := build(n)
		if job == nil {
			continue
		}
		published++
		g.Go(func() error {
			return b.queue.PublishJob(ctx, job)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"jobs":     published,
		"excluded": excludeNodeID,
	}).Debug("fan-out published")
	return nil
}
