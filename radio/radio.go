// this file deals with the global state of the system
package radio

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/himanshub16/upnext-live/logging"
)

// Limits are the per-channel duration ceilings in seconds. Zero disables a
// ceiling; the direct channel is never bounded.
type Limits struct {
	MaxDonationDuration int64
	MaxRewardDuration   int64
	HistoryWindow       int
}

type Options struct {
	Repo        Repository
	Resolver    Resolver
	Notifier    Notifier
	Identity    IdentityLookup
	Broadcaster Broadcaster
	Sessions    *Sessions
	Limits      Limits
	// RewardTitle, when set, restricts redemptions to that reward.
	RewardTitle string
}

// Radio owns the single authoritative queue state. Every mutation goes
// through one of its methods and ends with publish.
type Radio struct {
	mu        sync.Mutex
	state     *queueState
	blacklist []BlacklistItem
	blocked   []BlockedUser
	settings  Settings
	refunded  map[string]struct{}
	localID   int64

	repo        Repository
	resolver    Resolver
	notifier    Notifier
	identity    IdentityLookup
	broadcaster Broadcaster
	sessions    *Sessions
	limits      Limits
	rewardTitle string

	now   func() time.Time
	newID func() string
}

func New(opts Options) *Radio {
	r := &Radio{
		state:       newQueueState(opts.Limits.HistoryWindow),
		blacklist:   make([]BlacklistItem, 0),
		blocked:     make([]BlockedUser, 0),
		settings:    Settings{},
		refunded:    make(map[string]struct{}),
		repo:        opts.Repo,
		resolver:    opts.Resolver,
		notifier:    opts.Notifier,
		identity:    opts.Identity,
		broadcaster: opts.Broadcaster,
		sessions:    opts.Sessions,
		limits:      opts.Limits,
		rewardTitle: strings.TrimSpace(opts.RewardTitle),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       func() string { return uuid.New().String() },
	}
	if r.notifier == nil {
		r.notifier = nopNotifier{}
	}
	if r.broadcaster == nil {
		r.broadcaster = nopBroadcaster{}
	}
	if r.sessions == nil {
		r.sessions = NewSessions(nil)
	}
	return r
}

// Sessions exposes the authenticator shared with the transport layer.
func (r *Radio) Sessions() *Sessions {
	return r.sessions
}

// Load restores state from the repository. A failure here is fatal for startup.
func (r *Radio) Load(ctx context.Context) error {
	queue, err := r.repo.LoadQueue(ctx)
	if err != nil {
		return fmt.Errorf("load queue: %w", err)
	}
	active, err := r.repo.LoadActive(ctx)
	if err != nil {
		return fmt.Errorf("load active: %w", err)
	}
	history, err := r.repo.LoadHistory(ctx, r.state.historyCap)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	refunded, err := r.repo.LoadRefundedIDs(ctx)
	if err != nil {
		return fmt.Errorf("load refunded ids: %w", err)
	}
	blacklist, err := r.repo.LoadBlacklist(ctx)
	if err != nil {
		return fmt.Errorf("load blacklist: %w", err)
	}
	blocked, err := r.repo.LoadBlockedUsers(ctx)
	if err != nil {
		return fmt.Errorf("load blocked users: %w", err)
	}
	settings, err := r.repo.LoadSettings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// rows come back in storage order; re-inserting restores the two bands
	r.state = newQueueState(r.state.historyCap)
	for _, req := range queue {
		r.state.insert(req)
	}
	r.state.active = active
	r.state.history = append(r.state.history, history...)
	for _, id := range refunded {
		r.refunded[id] = struct{}{}
	}
	r.blacklist = append(make([]BlacklistItem, 0, len(blacklist)), blacklist...)
	r.blocked = append(make([]BlockedUser, 0, len(blocked)), blocked...)
	if settings != nil {
		r.settings = settings
	}

	l := logging.L()
	l.Info().
		Int("pending", len(r.state.pending)).
		Bool("active", r.state.active != nil).
		Int("history", len(r.state.history)).
		Int("blacklist", len(r.blacklist)).
		Int("blocked_users", len(r.blocked)).
		Msg("radio state loaded")
	return nil
}

// Snapshot returns a copy of everything an observer can see.
func (r *Radio) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Radio) snapshotLocked() Snapshot {
	return Snapshot{
		Pending:      r.state.pendingSnapshot(),
		Active:       r.state.activeSnapshot(),
		History:      r.state.historySnapshot(),
		Blacklist:    append(make([]BlacklistItem, 0, len(r.blacklist)), r.blacklist...),
		BlockedUsers: append(make([]BlockedUser, 0, len(r.blocked)), r.blocked...),
		Settings:     copySettings(r.settings),
	}
}

// Pending returns the ordered pending queue.
func (r *Radio) Pending() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.pendingSnapshot()
}

// Active returns the currently playing request or nil.
func (r *Radio) Active() *Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.activeSnapshot()
}

// History returns the windowed history, most recent first.
func (r *Radio) History() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.historySnapshot()
}

// Stats computes all-time statistics from durable history.
func (r *Radio) Stats(ctx context.Context) (*Stats, error) {
	stats, err := r.repo.Stats(ctx, r.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return stats, nil
}

func (r *Radio) isBlockedLocked(login, name string) bool {
	for _, u := range r.blocked {
		if (login != "" && strings.EqualFold(u.Login, login)) ||
			(name != "" && strings.EqualFold(u.Login, name)) {
			return true
		}
	}
	return false
}

func copySettings(in Settings) Settings {
	out := make(Settings, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, string) error { return nil }

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(string, interface{}) {}
