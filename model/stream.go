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

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"strings"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

// LockdownFull is the sentinel lockdown value that closes a stream entirely.
// A negative lockdown gates senders below the level given by its magnitude;
// a positive value below the sentinel puts each sender on a cooldown of that
// many seconds between messages; zero is open.
const LockdownFull = 9999

const (
	suppressPrefix  = "SUPPRESS_"
	whitelistPrefix = "WHITELIST_"

	passwordSaltLen   = 32
	passwordKeyLen    = 32
	passwordHashIters = 100000
)

// Stream is a logical topic that many destination channels subscribe to.
type Stream struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Language    string    `json:"language"`
	Lockdown    int       `json:"lockdown"`
	Nsfw        bool      `json:"nsfw"`
	Password    []byte    `json:"-"`
	Features    []string  `json:"features"`
	UserID      int64     `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Official reports whether the stream carries the OFFICIAL feature flag.
func (s *Stream) Official() bool {
	for _, feature := range s.Features {
		if feature == "OFFICIAL" {
			return true
		}
	}
	return false
}

// SuppressedFilters returns the filter names disabled on this stream via
// SUPPRESS_<NAME> feature flags.
func (s *Stream) SuppressedFilters() []string {
	suppressed := []string{}
	for _, feature := range s.Features {
		if strings.HasPrefix(feature, suppressPrefix) {
			suppressed = append(suppressed, strings.TrimPrefix(feature, suppressPrefix))
		}
	}
	return suppressed
}

// SuppressedBlacklists returns the blacklist entry names disabled on this
// stream via WHITELIST_<NAME> feature flags.
func (s *Stream) SuppressedBlacklists() []string {
	suppressed := []string{}
	for _, feature := range s.Features {
		if strings.HasPrefix(feature, whitelistPrefix) {
			suppressed = append(suppressed, strings.TrimPrefix(feature, whitelistPrefix))
		}
	}
	return suppressed
}

// SetPassword hashes and stores a stream password. A nil password clears it.
// The stored value is salt followed by the derived key.
func (s *Stream) SetPassword(password string) error {
	if password == "" {
		s.Password = nil
		return nil
	}

	salt := make([]byte, passwordSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	key := pbkdf2.Key([]byte(password), salt, passwordHashIters, passwordKeyLen, sha256.New)
	s.Password = append(salt, key...)
	return nil
}

// CheckPassword verifies a candidate password against the stored hash.
func (s *Stream) CheckPassword(password string) bool {
	if len(s.Password) < passwordSaltLen {
		return false
	}
	salt := s.Password[:passwordSaltLen]
	key := s.Password[passwordSaltLen:]

	candidate := pbkdf2.Key([]byte(password), salt, passwordHashIters, len(key), sha256.New)
	return subtle.ConstantTimeCompare(key, candidate) == 1
}
