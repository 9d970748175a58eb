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
package mocks

import (
	"context"
	"time"

	"github.com/bridgecast/bridgecast/model"
	"github.com/stretchr/testify/mock"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Stream methods

func (m *MockDataSource) CreateStream(ctx context.Context, stream *model.Stream) (*model.Stream, error) {
	args := m.Called(ctx, stream)
	return args.Get(0).(*model.Stream), args.Error(1)
}

func (m *MockDataSource) GetStream(ctx context.Context, id int64) (*model.Stream, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*model.Stream), args.Error(1)
}

func (m *MockDataSource) GetStreamByName(ctx context.Context, name string) (*model.Stream, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(*model.Stream), args.Error(1)
}

func (m *MockDataSource) UpdateStreamLockdown(ctx context.Context, id int64, level int) error {
	args := m.Called(ctx, id, level)
	return args.Error(0)
}

// Node methods

func (m *MockDataSource) CreateNode(ctx context.Context, node *model.Node) (*model.Node, error) {
	args := m.Called(ctx, node)
	return args.Get(0).(*model.Node), args.Error(1)
}

func (m *MockDataSource) GetNode(ctx context.Context, id int64) (*model.Node, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*model.Node), args.Error(1)
}

func (m *MockDataSource) GetNodeByChannel(ctx context.Context, channelID int64) (*model.Node, error) {
	args := m.Called(ctx, channelID)
	return args.Get(0).(*model.Node), args.Error(1)
}

func (m *MockDataSource) GetStreamNodes(ctx context.Context, streamID int64) ([]*model.Node, error) {
	args := m.Called(ctx, streamID)
	return args.Get(0).([]*model.Node), args.Error(1)
}

func (m *MockDataSource) UpdateNodeStatus(ctx context.Context, id int64, status model.NodeStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockDataSource) UpdateNodeWebhook(ctx context.Context, id, webhookID int64, token string) error {
	args := m.Called(ctx, id, webhookID, token)
	return args.Error(0)
}

// Group methods

func (m *MockDataSource) CreateGroup(ctx context.Context, group *model.Group) (*model.Group, error) {
	args := m.Called(ctx, group)
	return args.Get(0).(*model.Group), args.Error(1)
}

func (m *MockDataSource) GetGroupByDiscordID(ctx context.Context, discordID int64) (*model.Group, error) {
	args := m.Called(ctx, discordID)
	return args.Get(0).(*model.Group), args.Error(1)
}

func (m *MockDataSource) GetGroupByInviteCode(ctx context.Context, code string) (*model.Group, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(*model.Group), args.Error(1)
}

func (m *MockDataSource) UpdateGroupBanned(ctx context.Context, id int64, banned bool) error {
	args := m.Called(ctx, id, banned)
	return args.Error(0)
}

// User methods

func (m *MockDataSource) GetOrCreateUser(ctx context.Context, discordID int64) (*model.User, error) {
	args := m.Called(ctx, discordID)
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockDataSource) GetUser(ctx context.Context, id int64) (*model.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockDataSource) AddUserPoints(ctx context.Context, id int64, delta int) (int, error) {
	args := m.Called(ctx, id, delta)
	return args.Int(0), args.Error(1)
}

func (m *MockDataSource) GrantPermission(ctx context.Context, id int64, permission string) error {
	args := m.Called(ctx, id, permission)
	return args.Error(0)
}

// Infraction methods

func (m *MockDataSource) CreateInfraction(ctx context.Context, inf *model.Infraction) (*model.Infraction, error) {
	args := m.Called(ctx, inf)
	return args.Get(0).(*model.Infraction), args.Error(1)
}

func (m *MockDataSource) IsUserMuted(ctx context.Context, userID int64, at time.Time) (bool, error) {
	args := m.Called(ctx, userID, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockDataSource) IsUserBanned(ctx context.Context, userID int64, at time.Time) (bool, error) {
	args := m.Called(ctx, userID, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockDataSource) ExpireInfraction(ctx context.Context, infractionID string, at time.Time) error {
	args := m.Called(ctx, infractionID, at)
	return args.Error(0)
}

// Blacklist methods

func (m *MockDataSource) CreateBlacklistEntry(ctx context.Context, entry *model.BlacklistEntry) (*model.BlacklistEntry, error) {
	args := m.Called(ctx, entry)
	return args.Get(0).(*model.BlacklistEntry), args.Error(1)
}

func (m *MockDataSource) GetBlacklist(ctx context.Context) ([]model.BlacklistEntry, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.BlacklistEntry), args.Error(1)
}

func (m *MockDataSource) DeleteBlacklistEntry(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

// Message methods

func (m *MockDataSource) CreateOriginMessage(ctx context.Context, msg *model.OriginMessage) (*model.OriginMessage, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(*model.OriginMessage), args.Error(1)
}

func (m *MockDataSource) CreateResultMessage(ctx context.Context, result *model.ResultMessage) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *MockDataSource) GetOriginMessage(ctx context.Context, id int64) (*model.OriginMessage, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*model.OriginMessage), args.Error(1)
}

func (m *MockDataSource) GetOriginByDeliveredID(ctx context.Context, messageID int64) (*model.OriginMessage, error) {
	args := m.Called(ctx, messageID)
	return args.Get(0).(*model.OriginMessage), args.Error(1)
}
