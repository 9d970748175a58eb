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

type InfractionType string

const (
	InfractionMute InfractionType = "mute"
	InfractionBan  InfractionType = "ban"
	InfractionWarn InfractionType = "warn"
)

// Infraction is a moderation record against a user. A nil EndTime means the
// infraction never expires.
type Infraction struct {
	ID        string         `json:"id"`
	Type      InfractionType `json:"type"`
	UserID    int64          `json:"user_id"`
	ModID     int64          `json:"mod_id"`
	StartTime time.Time      `json:"start_time"`
	EndTime   *time.Time     `json:"end_time,omitempty"`
	Reason    string         `json:"reason"`
}

// Active reports whether the infraction is still in force at now.
func (i *Infraction) Active(now time.Time) bool {
	return i.EndTime == nil || i.EndTime.After(now)
}
