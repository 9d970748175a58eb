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

import "fmt"

// NodeStatus is the delivery health of a node. Anything other than
// NodeHealthy disables the node for fan-out.
type NodeStatus int

const (
	NodeHealthy NodeStatus = iota
	NodeTargetNotFound
	NodeTargetNotAuthorized
	NodeTransportError
)

func (s NodeStatus) String() string {
	switch s {
	case NodeHealthy:
		return "healthy"
	case NodeTargetNotFound:
		return "target_not_found"
	case NodeTargetNotAuthorized:
		return "target_not_authorized"
	case NodeTransportError:
		return "transport_error"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Node binds a stream to one destination channel via webhook credentials.
// GroupDisabled and GroupDiscordID mirror the owning destination group and
// are populated by the repository when the node is loaded.
type Node struct {
	ID             int64      `json:"id"`
	StreamID       int64      `json:"stream_id"`
	GroupID        int64      `json:"group_id"`
	ChannelID      int64      `json:"channel_id"`
	WebhookID      int64      `json:"webhook_id"`
	WebhookToken   string     `json:"-"`
	Status         NodeStatus `json:"status"`
	GroupDisabled  bool       `json:"group_disabled"`
	GroupDiscordID int64      `json:"group_discord_id"`
}

// WebhookURL synthesizes the delivery endpoint from the stored credentials.
func (n *Node) WebhookURL() string {
	return fmt.Sprintf("https://discord.com/api/webhooks/%d/%s", n.WebhookID, n.WebhookToken)
}

// MessageLink synthesizes the jump link to a message delivered on this node.
func (n *Node) MessageLink(messageID int64) string {
	return fmt.Sprintf("https://discord.com/channels/%d/%d/%d", n.GroupDiscordID, n.ChannelID, messageID)
}

// Disabled reports whether the node must be skipped during fan-out: its own
// health is degraded or its destination group is disabled.
func (n *Node) Disabled() bool {
	return n.Status != NodeHealthy || n.GroupDisabled
}
