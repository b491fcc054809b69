// Package twitch talks to the Helix API: chat messages addressed to a
// requester and user profile lookups.
package twitch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nicklaw5/helix/v2"

	"github.com/himanshub16/upnext-live/config"
	"github.com/himanshub16/upnext-live/logging"
	"github.com/himanshub16/upnext-live/radio"
)

const defaultBaseURL = "https://api.twitch.tv/helix"

var ErrUserNotFound = errors.New("twitch user not found")

// Client implements radio.Notifier and radio.IdentityLookup.
type Client struct {
	api           *helix.Client
	broadcasterID string
	senderID      string
}

var (
	_ radio.Notifier       = (*Client)(nil)
	_ radio.IdentityLookup = (*Client)(nil)
)

func New(cfg config.TwitchConfig) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	api, err := helix.NewClient(&helix.Options{
		ClientID:        cfg.ClientID,
		UserAccessToken: strings.TrimPrefix(cfg.AccessToken, "oauth:"),
		APIBaseURL:      base,
		HTTPClient:      &http.Client{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create helix client: %w", err)
	}
	return &Client{
		api:           api,
		broadcasterID: cfg.BroadcasterID,
		senderID:      cfg.SenderID,
	}, nil
}

// Notify posts "@login, message" to the broadcaster's chat.
func (c *Client) Notify(ctx context.Context, login, message string) error {
	text := message
	if login != "" {
		text = "@" + login + ", " + message
	}
	resp, err := c.api.SendChatMessage(&helix.SendChatMessageParams{
		BroadcasterID: c.broadcasterID,
		SenderID:      c.senderID,
		Message:       text,
	})
	if err != nil {
		return fmt.Errorf("send chat message: %w", err)
	}
	if err := statusError(resp.ResponseCommon); err != nil {
		return fmt.Errorf("send chat message: %w", err)
	}
	if msgs := resp.Data.Messages; len(msgs) > 0 && !msgs[0].IsSent {
		return fmt.Errorf("chat message %q not sent", msgs[0].MessageID)
	}

	l := logging.Ctx(ctx)
	l.Debug().Str("login", login).Msg("chat message sent")
	return nil
}

// LookupUser fetches the profile for login.
func (c *Client) LookupUser(ctx context.Context, login string) (*radio.Profile, error) {
	login = strings.ToLower(strings.TrimSpace(login))
	if login == "" {
		return nil, ErrUserNotFound
	}
	resp, err := c.api.GetUsers(&helix.UsersParams{Logins: []string{login}})
	if err != nil {
		return nil, fmt.Errorf("lookup user %s: %w", login, err)
	}
	if err := statusError(resp.ResponseCommon); err != nil {
		return nil, fmt.Errorf("lookup user %s: %w", login, err)
	}
	if len(resp.Data.Users) == 0 {
		return nil, ErrUserNotFound
	}
	u := resp.Data.Users[0]

	l := logging.Ctx(ctx)
	l.Debug().Str("login", u.Login).Msg("resolved twitch user")
	return &radio.Profile{
		Login:       u.Login,
		DisplayName: u.DisplayName,
		AvatarURL:   u.ProfileImageURL,
	}, nil
}

// statusError turns a non-2xx helix response into an error. helix only
// returns transport failures from the call itself.
func statusError(rc helix.ResponseCommon) error {
	if rc.StatusCode >= 200 && rc.StatusCode <= 299 {
		return nil
	}
	msg := rc.ErrorMessage
	if msg == "" {
		msg = rc.Error
	}
	return fmt.Errorf("helix status %d: %s", rc.StatusCode, msg)
}
