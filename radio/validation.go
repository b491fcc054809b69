package radio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/himanshub16/upnext-live/logging"
)

// Submit runs a raw submission through validation and, on success, inserts it
// into the queue. It returns the admitted request and its 0-based position.
//
// With bypass set only metadata resolution runs; blocked, duplicate,
// duration and blacklist checks are skipped.
//
// The resolver and identity calls happen without holding the state lock, so
// two submissions may land in the queue in a different order than they were
// submitted. Blocked and duplicate checks are repeated after those calls.
func (r *Radio) Submit(ctx context.Context, raw RawSubmission, bypass bool) (*Request, int, error) {
	raw.Reference = strings.TrimSpace(raw.Reference)
	raw.RequesterName = strings.TrimSpace(raw.RequesterName)
	if raw.Reference == "" || raw.RequesterName == "" {
		return nil, -1, fmt.Errorf("%w: reference and requester are required", ErrInvalidInput)
	}
	if raw.Channel == "" {
		raw.Channel = ChannelDirect
	}
	if !raw.Channel.Valid() {
		return nil, -1, fmt.Errorf("%w: unknown channel %q", ErrInvalidInput, raw.Channel)
	}
	suppliedID := raw.ID != ""
	if !suppliedID {
		raw.ID = r.newID()
	}
	if raw.SubmittedAt.IsZero() {
		raw.SubmittedAt = r.now()
	}

	logger := logging.Ctx(ctx).With().
		Str(logging.FieldRequestID, raw.ID).
		Str(logging.FieldRequester, raw.RequesterName).
		Str(logging.FieldChannel, string(raw.Channel)).
		Logger()
	ctx = logging.WithLogger(ctx, logger)
	logger.Info().Str("reference", raw.Reference).Msg("processing request")

	r.mu.Lock()
	rej := r.precheckLocked(raw, bypass)
	r.mu.Unlock()
	if rej == nil && suppliedID {
		rej = r.checkPlayed(ctx, raw.ID)
	}
	if rej != nil {
		return nil, -1, r.rejectSubmission(ctx, raw, rej)
	}

	meta, err := r.resolver.Resolve(ctx, raw.Reference)
	if err != nil || meta == nil {
		logger.Info().Err(err).Msg("resolver could not handle reference")
		return nil, -1, r.rejectSubmission(ctx, raw, reject(RejectUnresolvable, unresolvableMessage()))
	}

	if !bypass {
		if rej := r.checkDuration(raw.Channel, meta); rej != nil {
			return nil, -1, r.rejectSubmission(ctx, raw, rej)
		}
		r.mu.Lock()
		rej := r.checkBlacklistLocked(meta)
		r.mu.Unlock()
		if rej != nil {
			return nil, -1, r.rejectSubmission(ctx, raw, rej)
		}
	}

	req := r.buildRequest(ctx, raw, meta)

	r.mu.Lock()
	// state may have moved while resolving
	if rej := r.precheckLocked(raw, bypass); rej != nil {
		r.mu.Unlock()
		return nil, -1, r.rejectSubmission(ctx, raw, rej)
	}
	req.AddedAt = r.now()
	position := r.state.insert(*req)
	if err := r.repo.InsertQueueItem(ctx, *req); err != nil {
		logger.Error().Err(err).Msg("failed to persist queue item")
	}
	r.broadcaster.Broadcast(EventNewRequest, *req)
	r.publish(changedPending)
	r.mu.Unlock()

	logger.Info().
		Str("title", req.Title).
		Int("position", position+1).
		Msg("request admitted")
	r.notify(ctx, req.RequesterLogin, admittedMessage(req, position))
	return req, position, nil
}

// precheckLocked runs the checks that depend on mutable state.
func (r *Radio) precheckLocked(raw RawSubmission, bypass bool) *Rejection {
	if _, ok := r.refunded[raw.ID]; ok {
		return reject(RejectAlreadyRefunded, refundedIDMessage())
	}
	if r.state.contains(raw.ID) || r.state.historyIndexOf(raw.ID) >= 0 {
		return reject(RejectDuplicateID, duplicateIDMessage())
	}
	if bypass {
		return nil
	}
	if r.isBlockedLocked(raw.login(), raw.RequesterName) {
		return reject(RejectBlocked, blockedMessage())
	}
	if raw.Channel == ChannelReward && r.state.hasPendingFrom(raw.login(), raw.RequesterName) {
		return reject(RejectDuplicateSlot, duplicateSlotMessage())
	}
	return nil
}

// checkPlayed rejects an event-source ID that already made it into durable
// history, including rows older than the in-memory window.
func (r *Radio) checkPlayed(ctx context.Context, id string) *Rejection {
	_, err := r.repo.GetHistoryItem(ctx, id)
	switch {
	case err == nil:
		return reject(RejectDuplicateID, duplicateIDMessage())
	case errors.Is(err, ErrNotFound):
		return nil
	default:
		l := logging.Ctx(ctx)
		l.Error().Err(err).Msg("failed to check history for duplicate id")
		return nil
	}
}

// checkDuration rejects durations strictly above the channel ceiling.
func (r *Radio) checkDuration(c Channel, meta *Metadata) *Rejection {
	var limit int64
	switch c {
	case ChannelDonation:
		limit = r.limits.MaxDonationDuration
	case ChannelReward:
		limit = r.limits.MaxRewardDuration
	default:
		return nil
	}
	if limit <= 0 || meta.DurationSeconds <= 0 {
		return nil
	}
	if meta.DurationSeconds > limit {
		return reject(RejectDurationExceeded, durationMessage(c, limit))
	}
	return nil
}

func (r *Radio) checkBlacklistLocked(meta *Metadata) *Rejection {
	if match, ok := matchBlacklist(r.blacklist, meta.Title, meta.Author); ok {
		return reject(RejectBlacklisted, blacklistMessage(meta, match))
	}
	return nil
}

// matchBlacklist does case-insensitive substring matching: title patterns
// against the title, author patterns against the author, keywords against both.
func matchBlacklist(items []BlacklistItem, title, author string) (BlacklistItem, bool) {
	title, author = strings.ToLower(title), strings.ToLower(author)
	for _, item := range items {
		pattern := strings.ToLower(item.Pattern)
		if pattern == "" {
			continue
		}
		switch item.Type {
		case BlacklistTitle:
			if strings.Contains(title, pattern) {
				return item, true
			}
		case BlacklistAuthor:
			if strings.Contains(author, pattern) {
				return item, true
			}
		case BlacklistKeyword:
			if strings.Contains(title, pattern) || strings.Contains(author, pattern) {
				return item, true
			}
		}
	}
	return BlacklistItem{}, false
}

// buildRequest merges resolved metadata and best-effort profile information.
func (r *Radio) buildRequest(ctx context.Context, raw RawSubmission, meta *Metadata) *Request {
	req := &Request{
		ID:              raw.ID,
		Reference:       raw.Reference,
		VideoID:         meta.VideoID,
		Title:           meta.Title,
		Author:          meta.Author,
		DurationSeconds: meta.DurationSeconds,
		ThumbnailURL:    meta.ThumbnailURL,
		Requester:       raw.RequesterName,
		RequesterLogin:  raw.login(),
		Channel:         raw.Channel,
		SubmittedAt:     raw.SubmittedAt,
	}
	if raw.Channel == ChannelDonation && raw.Donation != nil {
		d := *raw.Donation
		req.Donation = &d
	}

	if r.identity == nil {
		return req
	}
	profile, err := r.identity.LookupUser(ctx, req.RequesterLogin)
	if err != nil || profile == nil {
		l := logging.Ctx(ctx)
		l.Warn().Err(err).Msg("requester lookup failed, using submitted name")
		return req
	}
	if profile.DisplayName != "" {
		req.Requester = profile.DisplayName
	}
	if profile.Login != "" {
		req.RequesterLogin = strings.ToLower(profile.Login)
	}
	req.RequesterAvatar = profile.AvatarURL
	return req
}

// rejectSubmission logs the rejection and sends exactly one notification.
func (r *Radio) rejectSubmission(ctx context.Context, raw RawSubmission, rej *Rejection) error {
	l := logging.Ctx(ctx)
	l.Info().Str(logging.FieldReason, string(rej.Reason)).Msg("request rejected")
	r.notify(ctx, raw.login(), rej.Message)
	return rej
}

// notify is best-effort: failures are logged and swallowed.
func (r *Radio) notify(ctx context.Context, login, message string) {
	if login == "" {
		return
	}
	if err := r.notifier.Notify(ctx, login, message); err != nil {
		l := logging.Ctx(ctx)
		l.Warn().Err(err).Str("login", login).Msg("notification failed")
	}
}
