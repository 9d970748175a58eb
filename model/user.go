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

import "math"

// PermManageMessages is the message-management capability. Holders bypass
// the filter pipeline entirely.
const PermManageMessages = "MANAGE_MESSAGES"

// User is a relay participant. Permissions are flattened from the user's
// roles by the repository when the user is loaded.
type User struct {
	ID           int64    `json:"id"`
	DiscordID    int64    `json:"discord_id"`
	Language     string   `json:"language"`
	System       bool     `json:"system"`
	SystemName   string   `json:"system_name"`
	SystemAvatar string   `json:"system_avatar"`
	Points       int      `json:"points"`
	Permissions  []string `json:"permissions"`
}

// Level derives the user's level from accumulated points. The curve is the
// inverse of LevelToPoints.
func (u *User) Level() int {
	return PointsToLevel(u.Points)
}

// HasPermission reports whether the user's flattened role permissions
// contain perm.
func (u *User) HasPermission(perm string) bool {
	for _, p := range u.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// PointsToLevel maps points onto a level along a quadratic curve.
func PointsToLevel(points int) int {
	return int(math.Floor((math.Sqrt(float64(625+100*points)) - 25) / 50))
}

// LevelToPoints returns the minimum points required for a level.
func LevelToPoints(level int) int {
	return 25 * level * (1 + level)
}
