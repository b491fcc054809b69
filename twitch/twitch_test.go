package twitch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanshub16/upnext-live/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(config.TwitchConfig{
		ClientID:      "cid",
		AccessToken:   "oauth:secret",
		BroadcasterID: "100",
		SenderID:      "200",
		BaseURL:       srv.URL,
	})
	require.NoError(t, err)
	return c
}

func TestNotify(t *testing.T) {
	var got struct {
		BroadcasterID string `json:"broadcaster_id"`
		SenderID      string `json:"sender_id"`
		Message       string `json:"message"`
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/messages", r.URL.Path)
		assert.Equal(t, "cid", r.Header.Get("Client-Id"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"message_id":"m1","is_sent":true}]}`))
	})

	require.NoError(t, c.Notify(context.Background(), "alice", "your song is #2 in the queue"))
	assert.Equal(t, "100", got.BroadcasterID)
	assert.Equal(t, "200", got.SenderID)
	assert.Equal(t, "@alice, your song is #2 in the queue", got.Message)
}

func TestNotify_Dropped(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"message_id":"m2","is_sent":false}]}`))
	})

	err := c.Notify(context.Background(), "alice", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not sent")
}

func TestNotify_HTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"Unauthorized","status":401,"message":"invalid token"}`))
	})

	err := c.Notify(context.Background(), "alice", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestLookupUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("login") != "alice" {
			w.Write([]byte(`{"data":[]}`))
			return
		}
		w.Write([]byte(`{"data":[{"id":"1","login":"alice","display_name":"Alice","profile_image_url":"https://cdn/a.png"}]}`))
	})

	p, err := c.LookupUser(context.Background(), "  Alice ")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Login)
	assert.Equal(t, "Alice", p.DisplayName)
	assert.Equal(t, "https://cdn/a.png", p.AvatarURL)

	_, err = c.LookupUser(context.Background(), "bob")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = c.LookupUser(context.Background(), "")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestLookupUser_HTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Internal Server Error","status":500,"message":""}`))
	})

	_, err := c.LookupUser(context.Background(), "alice")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUserNotFound)
	assert.Contains(t, err.Error(), "500")
}
