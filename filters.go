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
	"regexp"
	"time"

	"github.com/bridgecast/bridgecast/config"
	"github.com/bridgecast/bridgecast/internal/apierror"
	"github.com/bridgecast/bridgecast/internal/notification"
	"github.com/bridgecast/bridgecast/model"
	"github.com/sirupsen/logrus"
)

// FilterCode identifies one filter of the pipeline. The codes double as the
// stream feature suffixes that suppress them (SUPPRESS_<code>).
type FilterCode string

const (
	MuteFilter             FilterCode = "MUTE_FILTER"
	BanFilter              FilterCode = "BAN_FILTER"
	GuildBanFilter         FilterCode = "GUILD_BAN_FILTER"
	InviteFilter           FilterCode = "INVITE_FILTER"
	ContentRateLimitFilter FilterCode = "CONTENT_RATELIMIT_FILTER"
	UserRateLimitFilter    FilterCode = "USER_RATELIMIT_FILTER"
	BlacklistFilter        FilterCode = "BLACKLIST_FILTER"
	LockdownFilter         FilterCode = "LOCKDOWN_FILTER"
)

// FilterError reports which filter rejected a message.
type FilterError struct {
	Filter FilterCode
	Reason string
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("%s: %s", e.Filter, e.Reason)
}

// MutedError reports that a filter violation tipped the sender over the
// violation limit. It carries the temporary mute that was created so callers
// can surface the automute distinctly from a plain rejection.
type MutedError struct {
	Infraction *model.Infraction
}

func (e *MutedError) Error() string {
	return fmt.Sprintf("user %d automuted after repeated filter violations", e.Infraction.UserID)
}

var invitePattern = regexp.MustCompile(`(?i)(?:discord\.gg|discord(?:app)?\.com/invite)/(\w+)`)

// FilterContext carries everything the pipeline inspects for one message.
type FilterContext struct {
	User    *model.User
	Stream  *model.Stream
	Node    *model.Node
	Content string
}

type filterCheck struct {
	code  FilterCode
	check func(ctx context.Context, fc *FilterContext) *FilterError
}

// pipeline returns the filter chain in evaluation order. Moderation state
// filters run first; content filters honor per-stream suppression flags. A
// sender holding the message-management permission never enters the pipeline
// at all.
func (b *Bridgecast) pipeline() []filterCheck {
	return []filterCheck{
		{code: MuteFilter, check: b.checkMute},
		{code: BanFilter, check: b.checkBan},
		{code: GuildBanFilter, check: b.checkGuildBan},
		{code: InviteFilter, check: b.checkInvite},
		{code: ContentRateLimitFilter, check: b.checkContentRate},
		{code: UserRateLimitFilter, check: b.checkUserRate},
		{code: BlacklistFilter, check: b.checkBlacklist},
		{code: LockdownFilter, check: b.checkLockdown},
	}
}

// CheckFilters runs the pipeline in order and returns the first violation.
// Every violation counts against the sender's violation window; overflowing
// it creates a temporary mute, surfaced as a *MutedError in place of the
// plain *FilterError.
func (b *Bridgecast) CheckFilters(ctx context.Context, fc *FilterContext) error {
	return b.checkFilters(ctx, fc, true)
}

// PassesFilters reports whether the message would be relayed. Escalation is
// disabled, so call sites that only need a yes/no leave no trace in the
// violation window.
func (b *Bridgecast) PassesFilters(ctx context.Context, fc *FilterContext) bool {
	return b.checkFilters(ctx, fc, false) == nil
}

func (b *Bridgecast) checkFilters(ctx context.Context, fc *FilterContext, autoEscalate bool) error {
	ctx, span := tracer.Start(ctx, "Checking message filters")
	defer span.End()

	if fc.User.HasPermission(model.PermManageMessages) {
		return nil
	}

	suppressed := make(map[string]bool)
	for _, code := range fc.Stream.SuppressedFilters() {
		suppressed[code] = true
	}

	for _, flt := range b.pipeline() {
		if suppressed[string(flt.code)] {
			continue
		}
		if ferr := flt.check(ctx, fc); ferr != nil {
			if autoEscalate {
				// A mute-filter rejection means a mute already stands, so
				// the violation is counted but no new mute is created.
				if inf := b.escalateViolation(ctx, fc, ferr.Filter == MuteFilter); inf != nil {
					return &MutedError{Infraction: inf}
				}
			}
			return ferr
		}
	}
	return nil
}

func (b *Bridgecast) checkMute(ctx context.Context, fc *FilterContext) *FilterError {
	muted, err := b.datasource.IsUserMuted(ctx, fc.User.ID, time.Now())
	if err != nil {
		notification.NotifyError(err)
		return &FilterError{Filter: MuteFilter, Reason: "could not verify mute state"}
	}
	if muted {
		return &FilterError{Filter: MuteFilter, Reason: "user is muted"}
	}
	return nil
}

func (b *Bridgecast) checkBan(ctx context.Context, fc *FilterContext) *FilterError {
	banned, err := b.datasource.IsUserBanned(ctx, fc.User.ID, time.Now())
	if err != nil {
		notification.NotifyError(err)
		return &FilterError{Filter: BanFilter, Reason: "could not verify ban state"}
	}
	if banned {
		return &FilterError{Filter: BanFilter, Reason: "user is banned"}
	}
	return nil
}

func (b *Bridgecast) checkGuildBan(_ context.Context, fc *FilterContext) *FilterError {
	if fc.Node != nil && fc.Node.GroupDisabled {
		return &FilterError{Filter: GuildBanFilter, Reason: "origin group is banned"}
	}
	return nil
}

func (b *Bridgecast) checkInvite(ctx context.Context, fc *FilterContext) *FilterError {
	for _, match := range invitePattern.FindAllStringSubmatch(fc.Content, -1) {
		if b.inviteAllowed(ctx, match[1]) {
			continue
		}
		return &FilterError{Filter: InviteFilter, Reason: "message contains an invite link"}
	}
	return nil
}

// inviteAllowed reports whether an invite code points at the relay's home
// group or a partnered or verified destination. Codes that resolve to no
// known group are disallowed.
func (b *Bridgecast) inviteAllowed(ctx context.Context, code string) bool {
	group, err := b.datasource.GetGroupByInviteCode(ctx, code)
	if err != nil {
		if !apierror.IsNotFound(err) {
			notification.NotifyError(err)
		}
		return false
	}
	if cfg, err := config.Fetch(); err == nil && cfg.Relay.HomeGroupID != 0 && group.ID == cfg.Relay.HomeGroupID {
		return true
	}
	return group.Partnered || group.Verified
}

func (b *Bridgecast) checkContentRate(_ context.Context, fc *FilterContext) *FilterError {
	key := fmt.Sprintf("content:%d:%s", fc.Stream.ID, fc.Content)
	if b.contentLimiter.Enter(key) > 0 {
		return &FilterError{Filter: ContentRateLimitFilter, Reason: "identical message repeated too quickly"}
	}
	return nil
}

func (b *Bridgecast) checkUserRate(_ context.Context, fc *FilterContext) *FilterError {
	key := fmt.Sprintf("user:%d", fc.User.ID)
	if b.userLimiter.Enter(key) > 0 {
		return &FilterError{Filter: UserRateLimitFilter, Reason: "user is sending too quickly"}
	}
	return nil
}

func (b *Bridgecast) checkBlacklist(ctx context.Context, fc *FilterContext) *FilterError {
	entries, err := b.datasource.GetBlacklist(ctx)
	if err != nil {
		notification.NotifyError(err)
		return nil
	}
	whitelisted := make(map[string]bool)
	for _, name := range fc.Stream.SuppressedBlacklists() {
		whitelisted[name] = true
	}
	for i := range entries {
		if whitelisted[entries[i].Name] {
			continue
		}
		pattern, err := entries[i].Compile()
		if err != nil {
			// Creation validates patterns; a bad row is operator error.
			logrus.WithField("blacklist", entries[i].Name).WithError(err).Warn("skipping invalid blacklist pattern")
			continue
		}
		if pattern.MatchString(fc.Content) {
			return &FilterError{Filter: BlacklistFilter, Reason: fmt.Sprintf("matched blacklist %q", entries[i].Name)}
		}
	}
	return nil
}

func (b *Bridgecast) checkLockdown(ctx context.Context, fc *FilterContext) *FilterError {
	lockdown := fc.Stream.Lockdown
	switch {
	case lockdown == 0:
		return nil
	case lockdown >= model.LockdownFull:
		b.lockdownNotice(ctx, fc.Stream)
		return &FilterError{Filter: LockdownFilter, Reason: "stream is fully locked down"}
	case lockdown < 0:
		required := -lockdown
		if fc.User.Level() < required {
			b.lockdownNotice(ctx, fc.Stream)
			return &FilterError{Filter: LockdownFilter, Reason: fmt.Sprintf("stream requires level %d", required)}
		}
		return nil
	default:
		// Positive lockdown is a per-sender cooldown: the first message
		// claims a ticket that expires after that many seconds, and further
		// messages are rejected while it stands.
		key := fmt.Sprintf("lockdown:%d:cooldown:%d", fc.Stream.ID, fc.User.ID)
		claimed, err := b.cache.SetOnce(ctx, key, 1, time.Duration(lockdown)*time.Second)
		if err != nil {
			notification.NotifyError(err)
			return nil
		}
		if !claimed {
			return &FilterError{Filter: LockdownFilter, Reason: fmt.Sprintf("stream allows one message per %d seconds", lockdown)}
		}
		return nil
	}
}

// lockdownNotice announces an active lockdown at most once per stream per
// cooldown window, shared across worker processes through the cache.
func (b *Bridgecast) lockdownNotice(ctx context.Context, stream *model.Stream) {
	claimed, err := b.cache.SetOnce(ctx, fmt.Sprintf("lockdown:%d:notice", stream.ID), 1, time.Minute)
	if err != nil || !claimed {
		return
	}
	if err := b.SendSynthetic(ctx, stream, fmt.Sprintf("**%s** is under lockdown, messages are currently restricted.", stream.Name)); err != nil {
		logrus.WithField("stream", stream.ID).WithError(err).Warn("failed to announce lockdown")
	}
}

// escalateViolation counts a filter violation against the user and automutes
// once the violation window overflows. The created mute is returned; nil
// means the window has room, the user is already muted, or the mute could
// not be recorded.
func (b *Bridgecast) escalateViolation(ctx context.Context, fc *FilterContext, alreadyMuted bool) *model.Infraction {
	key := fmt.Sprintf("violations:%d", fc.User.ID)
	if b.violationLimiter.Enter(key) == 0 {
		return nil
	}
	if alreadyMuted {
		return nil
	}

	cfg, err := config.Fetch()
	if err != nil {
		notification.NotifyError(err)
		return nil
	}
	end := time.Now().Add(time.Duration(cfg.Relay.AutomuteMinutes) * time.Minute)
	inf, err := b.datasource.CreateInfraction(ctx, &model.Infraction{
		Type:    model.InfractionMute,
		UserID:  fc.User.ID,
		EndTime: &end,
		Reason:  "Exceeded filter violation limit",
	})
	if err != nil {
		notification.NotifyError(err)
		return nil
	}
	logrus.WithFields(logrus.Fields{
		"user":    fc.User.ID,
		"stream":  fc.Stream.ID,
		"minutes": cfg.Relay.AutomuteMinutes,
	}).Info("automuted user after repeated filter violations")
	return inf
}
