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
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/bridgecast/bridgecast/model"
	"github.com/texttheater/golang-levenshtein/levenshtein"
)

const (
	maxUsernameLength = 32
	replyPreviewLimit = 30
	ellipsis          = "…"

	// Names further than this from any directory entry are left untouched.
	maxMentionDistance = 2
)

var (
	// mentionTokenPattern matches the destination-neutral mention token
	// produced at ingest time: <`tag#1234`:node=userid>.
	mentionTokenPattern = regexp.MustCompile("(<(`.+?#\\d{4}`):(\\d+?)=(\\d+?)>)")

	// looseMentionPattern matches free-text @name#discrim references,
	// tolerating a truncation ellipsis and a legacy #0000 tail.
	looseMentionPattern = regexp.MustCompile(`(@(.+?)(?:` + ellipsis + `)?#(\d{4})(?:#0000)?)`)

	mentionEscaper = strings.NewReplacer("@", "@\u200b")
)

// PrepareUsername renders a display name with its discriminator suffix,
// capped at the destination's 32-character username limit.
func PrepareUsername(name, discriminator string) string {
	suffix := "#" + discriminator
	limit := maxUsernameLength - len(suffix)
	runes := []rune(name)
	if len(runes) > limit {
		name = string(runes[:limit-1]) + ellipsis
	}
	return name + suffix
}

// EscapeMentions defuses mention syntax in quoted or previewed text.
func EscapeMentions(s string) string {
	return mentionEscaper.Replace(s)
}

// MentionToken renders a resolved user mention into the token carried in the
// stored origin content. nodeID is the node the mentioned user was last seen
// on, which is where the rendered mention pings.
func MentionToken(tag string, nodeID, userID int64) string {
	return fmt.Sprintf("<`%s`:%d=%d>", tag, nodeID, userID)
}

// QuoteHeader renders the reply preview line prepended to a replying
// message. The preview is mention-escaped, flattened and capped. A non-empty
// link turns the author into a jump link to the quoted delivery; the angle
// brackets keep the destination from unfurling it.
func QuoteHeader(author, preview, link string) string {
	preview = strings.ReplaceAll(preview, "\n", " ")
	preview = EscapeMentions(preview)
	runes := []rune(preview)
	if len(runes) > replyPreviewLimit {
		preview = string(runes[:replyPreviewLimit]) + ellipsis
	}
	author = EscapeMentions(author)
	if link != "" {
		return fmt.Sprintf("> [**%s**](<%s>) %s\n", author, link, preview)
	}
	return fmt.Sprintf("> **%s** %s\n", author, preview)
}

// RenderFor produces the content of a message for one destination node.
// Mention tokens pointing at this node become live mentions; every other
// token degrades to plain text so only the node the user is on pings them.
func RenderFor(node *model.Node, content string) string {
	return mentionTokenPattern.ReplaceAllStringFunc(content, func(m string) string {
		groups := mentionTokenPattern.FindStringSubmatch(m)
		tag := strings.Trim(groups[2], "`")
		nodeID, _ := strconv.ParseInt(groups[3], 10, 64)
		userID, _ := strconv.ParseInt(groups[4], 10, 64)
		if nodeID == node.ID {
			return fmt.Sprintf("<@%d>", userID)
		}
		return "@" + tag
	})
}

// MemberDirectory tracks recently seen members so free-text mentions can be
// resolved opportunistically. It is advisory: a miss leaves the text as-is.
type MemberDirectory struct {
	mu      sync.RWMutex
	entries map[string]directoryEntry
}

type directoryEntry struct {
	Name          string
	Discriminator string
	UserID        int64
	NodeID        int64
}

func NewMemberDirectory() *MemberDirectory {
	return &MemberDirectory{entries: make(map[string]directoryEntry)}
}

// RecordSeen stores or refreshes a member sighting.
func (d *MemberDirectory) RecordSeen(name, discriminator string, userID, nodeID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[directoryKey(name, discriminator)] = directoryEntry{
		Name:          name,
		Discriminator: discriminator,
		UserID:        userID,
		NodeID:        nodeID,
	}
}

// Lookup resolves a possibly misspelled or truncated name to a known member.
// Exact matches win; otherwise the closest name with the same discriminator
// is accepted when it is close enough or the query is a truncation prefix.
func (d *MemberDirectory) Lookup(name, discriminator string) (directoryEntry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if entry, ok := d.entries[directoryKey(name, discriminator)]; ok {
		return entry, true
	}

	query := strings.ToLower(name)
	best := directoryEntry{}
	bestDistance := maxMentionDistance + 1
	found := false
	for _, entry := range d.entries {
		if entry.Discriminator != discriminator {
			continue
		}
		candidate := strings.ToLower(entry.Name)
		if strings.HasPrefix(candidate, query) {
			return entry, true
		}
		distance := levenshtein.DistanceForStrings([]rune(query), []rune(candidate), levenshtein.DefaultOptions)
		if distance < bestDistance {
			best = entry
			bestDistance = distance
			found = true
		}
	}
	return best, found
}

func directoryKey(name, discriminator string) string {
	return strings.ToLower(name) + "#" + discriminator
}

// TokenizeMentions rewrites free-text @name#discrim references into mention
// tokens for every member the directory can resolve.
func (d *MemberDirectory) TokenizeMentions(content string) string {
	return looseMentionPattern.ReplaceAllStringFunc(content, func(m string) string {
		groups := looseMentionPattern.FindStringSubmatch(m)
		entry, ok := d.Lookup(groups[2], groups[3])
		if !ok {
			return m
		}
		tag := fmt.Sprintf("%s#%s", entry.Name, entry.Discriminator)
		return MentionToken(tag, entry.NodeID, entry.UserID)
	})
}
