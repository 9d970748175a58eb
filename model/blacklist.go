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

import "regexp"

// BlacklistEntry is a named content pattern. Entries whose name appears in a
// stream's WHITELIST_<NAME> feature flags are skipped for that stream.
type BlacklistEntry struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
}

// Compile compiles the stored pattern. Invalid patterns are treated as
// non-matching by callers.
func (b *BlacklistEntry) Compile() (*regexp.Regexp, error) {
	return regexp.Compile(b.Pattern)
}
