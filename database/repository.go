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

package database

import (
	"context"
	"time"

	"github.com/bridgecast/bridgecast/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	stream     // Interface for stream-related operations
	node       // Interface for node-related operations
	group      // Interface for group-related operations
	user       // Interface for user-related operations
	infraction // Interface for moderation infraction operations
	blacklist  // Interface for content blacklist operations
	message    // Interface for origin/result message operations
}

// stream defines methods for handling streams.
type stream interface {
	CreateStream(ctx context.Context, stream *model.Stream) (*model.Stream, error) // Creates a new stream
	GetStream(ctx context.Context, id int64) (*model.Stream, error)                // Retrieves a stream with its feature flags
	GetStreamByName(ctx context.Context, name string) (*model.Stream, error)       // Retrieves a stream by its unique name
	UpdateStreamLockdown(ctx context.Context, id int64, level int) error           // Sets the stream lockdown level
}

// node defines methods for handling destination nodes.
type node interface {
	CreateNode(ctx context.Context, node *model.Node) (*model.Node, error)        // Registers a destination node
	GetNode(ctx context.Context, id int64) (*model.Node, error)                   // Retrieves a node by ID
	GetNodeByChannel(ctx context.Context, channelID int64) (*model.Node, error)   // Retrieves a node by destination channel
	GetStreamNodes(ctx context.Context, streamID int64) ([]*model.Node, error)    // Retrieves all nodes of a stream
	UpdateNodeStatus(ctx context.Context, id int64, status model.NodeStatus) error // Records a node health transition
	UpdateNodeWebhook(ctx context.Context, id, webhookID int64, token string) error // Replaces a node's webhook endpoint
}

// group defines methods for handling destination groups.
type group interface {
	CreateGroup(ctx context.Context, group *model.Group) (*model.Group, error)   // Registers a destination group
	GetGroupByDiscordID(ctx context.Context, discordID int64) (*model.Group, error) // Retrieves a group by platform ID
	GetGroupByInviteCode(ctx context.Context, code string) (*model.Group, error) // Resolves an invite code to its group
	UpdateGroupBanned(ctx context.Context, id int64, banned bool) error          // Bans or unbans a group
}

// user defines methods for handling users.
type user interface {
	GetOrCreateUser(ctx context.Context, discordID int64) (*model.User, error) // Retrieves a user, creating the row on first sight
	GetUser(ctx context.Context, id int64) (*model.User, error)                // Retrieves a user with permissions
	AddUserPoints(ctx context.Context, id int64, delta int) (int, error)       // Adjusts activity points, returning the new total
	GrantPermission(ctx context.Context, id int64, permission string) error    // Grants a named permission
}

// infraction defines methods for handling moderation infractions.
type infraction interface {
	CreateInfraction(ctx context.Context, inf *model.Infraction) (*model.Infraction, error) // Records a mute, ban or warning
	IsUserMuted(ctx context.Context, userID int64, at time.Time) (bool, error)              // Checks for an active mute
	IsUserBanned(ctx context.Context, userID int64, at time.Time) (bool, error)             // Checks for an active ban
	ExpireInfraction(ctx context.Context, infractionID string, at time.Time) error          // Ends an infraction early
}

// blacklist defines methods for handling the content blacklist.
type blacklist interface {
	CreateBlacklistEntry(ctx context.Context, entry *model.BlacklistEntry) (*model.BlacklistEntry, error) // Adds a named pattern
	GetBlacklist(ctx context.Context) ([]model.BlacklistEntry, error)                                    // Retrieves all patterns
	DeleteBlacklistEntry(ctx context.Context, name string) error                                         // Removes a pattern by name
}

// message defines methods for handling origin and result messages.
type message interface {
	CreateOriginMessage(ctx context.Context, msg *model.OriginMessage) (*model.OriginMessage, error) // Records an inbound message
	CreateResultMessage(ctx context.Context, result *model.ResultMessage) error                      // Records one delivery of an origin message
	GetOriginMessage(ctx context.Context, id int64) (*model.OriginMessage, error)                    // Retrieves an origin with its results
	GetOriginByDeliveredID(ctx context.Context, messageID int64) (*model.OriginMessage, error)       // Correlates a platform message ID back to its origin
}
