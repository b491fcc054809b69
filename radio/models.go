// this file defines the data structures moving through the request engine
package radio

import (
	"strings"
	"time"
)

// Channel is the intake origin of a request.
type Channel string

const (
	ChannelDirect   Channel = "direct"
	ChannelDonation Channel = "donation"
	ChannelReward   Channel = "reward"
)

// Valid reports whether c is one of the known channels.
func (c Channel) Valid() bool {
	switch c {
	case ChannelDirect, ChannelDonation, ChannelReward:
		return true
	}
	return false
}

// Status is set once a request leaves the active slot.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusSkipped   Status = "skipped"
)

type DonationInfo struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type Request struct {
	ID              string        `json:"id"`
	Reference       string        `json:"reference"`
	VideoID         string        `json:"video_id,omitempty"`
	Title           string        `json:"title"`
	Author          string        `json:"author"`
	DurationSeconds int64         `json:"duration_seconds"`
	ThumbnailURL    string        `json:"thumbnail_url,omitempty"`
	Requester       string        `json:"requester"`
	RequesterLogin  string        `json:"requester_login,omitempty"`
	RequesterAvatar string        `json:"requester_avatar,omitempty"`
	Channel         Channel       `json:"channel"`
	Donation        *DonationInfo `json:"donation,omitempty"`
	SubmittedAt     time.Time     `json:"submitted_at"`
	AddedAt         time.Time     `json:"added_at"`
	StartedAt       *time.Time    `json:"started_at,omitempty"`
	FinishedAt      *time.Time    `json:"finished_at,omitempty"`
	Status          Status        `json:"status,omitempty"`
	Refunded        bool          `json:"refunded"`
	RefundReason    string        `json:"refund_reason,omitempty"`
	RefundedAt      *time.Time    `json:"refunded_at,omitempty"`
}

// IsDonation reports whether the request belongs to the monetary priority band.
func (r *Request) IsDonation() bool {
	return r.Channel == ChannelDonation
}

// RequestedBy matches the requester by login or display name, ignoring case.
func (r *Request) RequestedBy(login, name string) bool {
	if login != "" && strings.EqualFold(r.RequesterLogin, login) {
		return true
	}
	return name != "" && strings.EqualFold(r.Requester, name)
}

// RawSubmission is what every intake path is reduced to before validation.
type RawSubmission struct {
	ID             string
	Reference      string
	RequesterName  string
	RequesterLogin string
	Channel        Channel
	Donation       *DonationInfo
	SubmittedAt    time.Time
}

// login falls back to the lower-cased display name when no handle was given.
func (s RawSubmission) login() string {
	if s.RequesterLogin != "" {
		return strings.ToLower(s.RequesterLogin)
	}
	return strings.ToLower(strings.TrimSpace(s.RequesterName))
}

// BlacklistType selects which resolved field a pattern is matched against.
type BlacklistType string

const (
	BlacklistTitle   BlacklistType = "title"
	BlacklistAuthor  BlacklistType = "author"
	BlacklistKeyword BlacklistType = "keyword"
)

func (t BlacklistType) Valid() bool {
	switch t {
	case BlacklistTitle, BlacklistAuthor, BlacklistKeyword:
		return true
	}
	return false
}

type BlacklistItem struct {
	ID      int64         `json:"id" db:"id"`
	Pattern string        `json:"pattern" db:"pattern"`
	Type    BlacklistType `json:"type" db:"type"`
	AddedAt time.Time     `json:"added_at" db:"added_at"`
}

type BlockedUser struct {
	ID      int64     `json:"id" db:"id"`
	Login   string    `json:"login" db:"login"`
	AddedAt time.Time `json:"added_at" db:"added_at"`
}

// Settings is the free-form settings blob shown to observers.
type Settings map[string]interface{}

// Metadata is what a resolver returns for a reference.
type Metadata struct {
	VideoID         string
	Title           string
	Author          string
	DurationSeconds int64
	ThumbnailURL    string
}

// Profile is best-effort requester identity information.
type Profile struct {
	Login       string
	DisplayName string
	AvatarURL   string
}

type Stats struct {
	TotalPlayed     int64              `json:"total_played"`
	DonationPlayed  int64              `json:"donation_played"`
	RewardPlayed    int64              `json:"reward_played"`
	PlayedToday     int64              `json:"played_today"`
	AverageDuration int64              `json:"average_duration_seconds"`
	DonatedAmounts  map[string]float64 `json:"donated_amounts"`
}

// Snapshot is the full observable state sent to a new observer.
type Snapshot struct {
	Pending      []Request
	Active       *Request
	History      []Request
	Blacklist    []BlacklistItem
	BlockedUsers []BlockedUser
	Settings     Settings
}
