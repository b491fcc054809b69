package radio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/himanshub16/upnext-live/logging"
)

const defaultRefundReason = "Refunded by moderator"

// authorize gates every moderator operation on the caller's session.
func (r *Radio) authorize(ctx context.Context, connID string) (context.Context, error) {
	if !r.sessions.IsAuthenticated(connID) {
		l := logging.Ctx(ctx)
		l.Warn().Str(logging.FieldConnID, connID).Msg("unauthorized moderator action attempted")
		return ctx, ErrAuthRequired
	}
	logger := logging.Ctx(ctx).With().Str(logging.FieldConnID, connID).Logger()
	return logging.WithLogger(ctx, logger), nil
}

// SubmitAsModerator queues a request on behalf of a moderator, skipping
// every check except metadata resolution.
func (r *Radio) SubmitAsModerator(ctx context.Context, connID string, raw RawSubmission) (*Request, int, error) {
	ctx, err := r.authorize(ctx, connID)
	if err != nil {
		return nil, -1, err
	}
	return r.Submit(ctx, raw, true)
}

// DeleteFromQueue removes id from the queue without notifying the requester.
// Deleting an id that is not queued reports false.
func (r *Radio) DeleteFromQueue(ctx context.Context, connID, id string) (bool, error) {
	ctx, err := r.authorize(ctx, connID)
	if err != nil {
		return false, err
	}
	l := logging.Ctx(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed, ok := r.state.remove(id)
	if !ok {
		return false, nil
	}
	if err := r.repo.DeleteQueueItem(ctx, id); err != nil {
		l.Error().Err(err).Str(logging.FieldRequestID, id).Msg("failed to delete queue item")
	}
	r.publish(changedPending)
	l.Info().Str(logging.FieldRequestID, id).Str("title", removed.Title).Msg("removed request from queue")
	return true, nil
}

// MarkFinished archives the active request as completed and promotes the next one.
func (r *Radio) MarkFinished(ctx context.Context, connID string) (*Request, error) {
	return r.advance(ctx, connID, StatusCompleted)
}

// Skip archives the active request as skipped and promotes the next one.
func (r *Radio) Skip(ctx context.Context, connID string) (*Request, error) {
	return r.advance(ctx, connID, StatusSkipped)
}

// advance runs archive-then-promote under one hold of the state lock. It is a
// no-op returning nil when nothing is playing.
func (r *Radio) advance(ctx context.Context, connID string, status Status) (*Request, error) {
	ctx, err := r.authorize(ctx, connID)
	if err != nil {
		return nil, err
	}
	l := logging.Ctx(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	finished := r.state.archive(status, now)
	if finished == nil {
		return nil, nil
	}
	next := r.state.promoteNext(now)
	if err := r.repo.Advance(ctx, finished, next); err != nil {
		l.Error().Err(err).Str(logging.FieldRequestID, finished.ID).Msg("failed to persist slot transition")
	}
	r.publish(changedActive | changedPending | changedHistory)

	ev := l.Info().Str(logging.FieldRequestID, finished.ID).Str("status", string(status))
	if next != nil {
		ev = ev.Str("next", next.ID)
	}
	ev.Msg("active request archived")
	return finished, nil
}

// PromoteNext starts the head of the queue when nothing is playing.
func (r *Radio) PromoteNext(ctx context.Context, connID string) (*Request, error) {
	ctx, err := r.authorize(ctx, connID)
	if err != nil {
		return nil, err
	}
	l := logging.Ctx(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.state.promoteNext(r.now())
	if next == nil {
		return nil, nil
	}
	if err := r.repo.Advance(ctx, nil, next); err != nil {
		l.Error().Err(err).Str(logging.FieldRequestID, next.ID).Msg("failed to persist promotion")
	}
	r.publish(changedActive | changedPending)
	l.Info().Str(logging.FieldRequestID, next.ID).Msg("promoted next request")
	return r.state.activeSnapshot(), nil
}

// RefundQueueItem flags a pending request as refunded and removes it. The
// durable write must succeed before anything changes in memory.
func (r *Radio) RefundQueueItem(ctx context.Context, connID, id, reason string) (*Request, error) {
	ctx, err := r.authorize(ctx, connID)
	if err != nil {
		return nil, err
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = defaultRefundReason
	}
	l := logging.Ctx(ctx)

	r.mu.Lock()
	idx := r.state.indexOf(id)
	if idx < 0 {
		_, refunded := r.refunded[id]
		r.mu.Unlock()
		if refunded {
			return nil, fmt.Errorf("%w: request %s was already refunded", ErrNotEligible, id)
		}
		return nil, fmt.Errorf("%w: request %s is not in the queue", ErrNotFound, id)
	}
	item := r.state.pending[idx]
	if item.Refunded {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: request %s was already refunded", ErrNotEligible, id)
	}

	now := r.now()
	if err := r.repo.RefundQueueItem(ctx, id, reason, now); err != nil {
		r.mu.Unlock()
		l.Error().Err(err).Str(logging.FieldRequestID, id).Msg("refund not persisted")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	r.state.remove(id)
	r.refunded[id] = struct{}{}
	r.publish(changedPending)
	r.mu.Unlock()

	item.Refunded = true
	item.RefundReason = reason
	item.RefundedAt = &now

	l.Info().Str(logging.FieldRequestID, id).Str(logging.FieldReason, reason).Msg("refunded queued request")
	r.notify(ctx, item.RequesterLogin, refundMessage(&item, reason))
	return &item, nil
}

// RefundHistoryItem flags an archived request as refunded in place.
func (r *Radio) RefundHistoryItem(ctx context.Context, connID, id, reason string) (*Request, error) {
	ctx, err := r.authorize(ctx, connID)
	if err != nil {
		return nil, err
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = defaultRefundReason
	}
	l := logging.Ctx(ctx)

	r.mu.Lock()
	idx := r.state.historyIndexOf(id)
	var item Request
	if idx >= 0 {
		item = r.state.history[idx]
	} else {
		stored, err := r.repo.GetHistoryItem(ctx, id)
		if err != nil {
			r.mu.Unlock()
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("%w: request %s is not in history", ErrNotFound, id)
			}
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		item = *stored
	}
	if item.Refunded {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: request %s was already refunded", ErrNotEligible, id)
	}

	now := r.now()
	if err := r.repo.RefundHistoryItem(ctx, id, reason, now); err != nil {
		r.mu.Unlock()
		l.Error().Err(err).Str(logging.FieldRequestID, id).Msg("refund not persisted")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	item.Refunded = true
	item.RefundReason = reason
	item.RefundedAt = &now
	if idx >= 0 {
		r.state.history[idx] = item
	}
	r.refunded[id] = struct{}{}
	r.publish(changedHistory)
	r.mu.Unlock()

	l.Info().Str(logging.FieldRequestID, id).Str(logging.FieldReason, reason).Msg("refunded history request")
	r.notify(ctx, item.RequesterLogin, refundMessage(&item, reason))
	return &item, nil
}

// RefundedRequests lists every refunded request, most recent first.
func (r *Radio) RefundedRequests(ctx context.Context, connID string) ([]Request, error) {
	ctx, err := r.authorize(ctx, connID)
	if err != nil {
		return nil, err
	}
	return r.Refunded(ctx)
}

// Refunded lists refunded requests without a session check. Callers gate
// access themselves.
func (r *Radio) Refunded(ctx context.Context) ([]Request, error) {
	items, err := r.repo.RefundedRequests(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return items, nil
}

// BlockUser stops login from submitting. Requests already queued stay.
func (r *Radio) BlockUser(ctx context.Context, connID, login string) error {
	ctx, err := r.authorize(ctx, connID)
	if err != nil {
		return err
	}
	login = strings.ToLower(strings.TrimSpace(login))
	if login == "" {
		return fmt.Errorf("%w: login is required", ErrInvalidInput)
	}
	l := logging.Ctx(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isBlockedLocked(login, "") {
		return nil
	}
	now := r.now()
	user, err := r.repo.AddBlockedUser(ctx, login, now)
	if err != nil {
		l.Error().Err(err).Str("login", login).Msg("failed to persist blocked user")
		user = BlockedUser{ID: r.nextLocalID(), Login: login, AddedAt: now}
	}
	r.blocked = append([]BlockedUser{user}, r.blocked...)
	r.publish(changedBlocked)
	l.Info().Str("login", login).Msg("blocked user")
	return nil
}

func (r *Radio) UnblockUser(ctx context.Context, connID, login string) error {
	ctx, err := r.authorize(ctx, connID)
	if err != nil {
		return err
	}
	login = strings.ToLower(strings.TrimSpace(login))
	l := logging.Ctx(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, u := range r.blocked {
		if strings.EqualFold(u.Login, login) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	if err := r.repo.RemoveBlockedUser(ctx, login); err != nil {
		l.Error().Err(err).Str("login", login).Msg("failed to remove blocked user")
	}
	r.blocked = append(r.blocked[:idx], r.blocked[idx+1:]...)
	r.publish(changedBlocked)
	l.Info().Str("login", login).Msg("unblocked user")
	return nil
}

func (r *Radio) AddBlacklistItem(ctx context.Context, connID, pattern string, typ BlacklistType) (*BlacklistItem, error) {
	ctx, err := r.authorize(ctx, connID)
	if err != nil {
		return nil, err
	}
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || !typ.Valid() {
		return nil, fmt.Errorf("%w: pattern and a valid type are required", ErrInvalidInput)
	}
	l := logging.Ctx(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.blacklist {
		if !strings.EqualFold(r.blacklist[i].Pattern, pattern) {
			continue
		}
		if r.blacklist[i].Type != typ {
			if _, err := r.repo.AddBlacklistItem(ctx, r.blacklist[i].Pattern, typ, r.blacklist[i].AddedAt); err != nil {
				l.Error().Err(err).Str("pattern", pattern).Msg("failed to persist blacklist type change")
			}
			r.blacklist[i].Type = typ
			r.publish(changedBlacklist)
			l.Info().Str("pattern", pattern).Str("type", string(typ)).Msg("changed blacklist item type")
		}
		existing := r.blacklist[i]
		return &existing, nil
	}
	now := r.now()
	item, err := r.repo.AddBlacklistItem(ctx, pattern, typ, now)
	if err != nil {
		l.Error().Err(err).Str("pattern", pattern).Msg("failed to persist blacklist item")
		item = BlacklistItem{ID: r.nextLocalID(), Pattern: pattern, Type: typ, AddedAt: now}
	}
	r.blacklist = append([]BlacklistItem{item}, r.blacklist...)
	r.publish(changedBlacklist)
	l.Info().Str("pattern", pattern).Str("type", string(typ)).Msg("added blacklist item")
	return &item, nil
}

func (r *Radio) RemoveBlacklistItem(ctx context.Context, connID string, id int64) (bool, error) {
	ctx, err := r.authorize(ctx, connID)
	if err != nil {
		return false, err
	}
	l := logging.Ctx(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.blacklist {
		if r.blacklist[i].ID != id {
			continue
		}
		// locally numbered items never reached the database
		if id > 0 {
			if err := r.repo.RemoveBlacklistItem(ctx, id); err != nil {
				l.Error().Err(err).Int64("id", id).Msg("failed to remove blacklist item")
			}
		}
		r.blacklist = append(r.blacklist[:i], r.blacklist[i+1:]...)
		r.publish(changedBlacklist)
		l.Info().Int64("id", id).Msg("removed blacklist item")
		return true, nil
	}
	return false, nil
}

func (r *Radio) SaveSetting(ctx context.Context, connID, key string, value interface{}) error {
	ctx, err := r.authorize(ctx, connID)
	if err != nil {
		return err
	}
	if key = strings.TrimSpace(key); key == "" {
		return fmt.Errorf("%w: setting key is required", ErrInvalidInput)
	}
	l := logging.Ctx(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.repo.SaveSetting(ctx, key, value); err != nil {
		l.Error().Err(err).Str("key", key).Msg("failed to persist setting")
	}
	r.settings[key] = value
	r.publish(changedSettings)
	return nil
}

// nextLocalID numbers in-memory items whose insert failed; they count down
// from -1 so they never collide with database ids.
func (r *Radio) nextLocalID() int64 {
	r.localID--
	return r.localID
}
