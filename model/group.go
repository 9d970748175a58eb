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

// Group is a destination group (one remote community). Banned groups have
// all of their nodes excluded from fan-out. Partnered and Verified mark
// groups whose invite links pass the invite filter; InviteCode is the code
// those links carry.
type Group struct {
	ID         int64  `json:"id"`
	DiscordID  int64  `json:"discord_id"`
	InviteCode string `json:"invite_code"`
	Banned     bool   `json:"banned"`
	Partnered  bool   `json:"partnered"`
	Verified   bool   `json:"verified"`
}
