package radio

import (
	"context"
	"time"
)

// Repository is the durable store behind the in-memory state.
type Repository interface {
	LoadQueue(ctx context.Context) ([]Request, error)
	LoadActive(ctx context.Context) (*Request, error)
	LoadHistory(ctx context.Context, limit int) ([]Request, error)
	LoadRefundedIDs(ctx context.Context) ([]string, error)

	InsertQueueItem(ctx context.Context, req Request) error
	DeleteQueueItem(ctx context.Context, id string) error
	// RefundQueueItem returns ErrNotFound when no unrefunded row exists.
	RefundQueueItem(ctx context.Context, id, reason string, at time.Time) error

	// Advance archives finished (when non-nil) and moves next (when non-nil)
	// from the queue into the active slot in a single transaction.
	Advance(ctx context.Context, finished *Request, next *Request) error

	GetHistoryItem(ctx context.Context, id string) (*Request, error)
	// RefundHistoryItem returns ErrNotFound when no unrefunded row exists.
	RefundHistoryItem(ctx context.Context, id, reason string, at time.Time) error
	RefundedRequests(ctx context.Context) ([]Request, error)
	Stats(ctx context.Context, now time.Time) (*Stats, error)

	ModerationRepository
	SettingsRepository
}

type ModerationRepository interface {
	LoadBlacklist(ctx context.Context) ([]BlacklistItem, error)
	AddBlacklistItem(ctx context.Context, pattern string, typ BlacklistType, at time.Time) (BlacklistItem, error)
	RemoveBlacklistItem(ctx context.Context, id int64) error

	LoadBlockedUsers(ctx context.Context) ([]BlockedUser, error)
	AddBlockedUser(ctx context.Context, login string, at time.Time) (BlockedUser, error)
	RemoveBlockedUser(ctx context.Context, login string) error
}

type SettingsRepository interface {
	LoadSettings(ctx context.Context) (Settings, error)
	SaveSetting(ctx context.Context, key string, value interface{}) error
}

// Resolver turns a reference into playable metadata.
type Resolver interface {
	Resolve(ctx context.Context, reference string) (*Metadata, error)
	// FindReference extracts the first usable reference from free text.
	FindReference(text string) (string, bool)
}

// Notifier delivers a best-effort message addressed to a requester.
type Notifier interface {
	Notify(ctx context.Context, login, message string) error
}

// IdentityLookup fetches requester profile information.
type IdentityLookup interface {
	LookupUser(ctx context.Context, login string) (*Profile, error)
}

// Broadcaster fans an event out to every connected observer.
type Broadcaster interface {
	Broadcast(event string, payload interface{})
}
