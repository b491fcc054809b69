package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 3002, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:3001"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "sqlite://tracklistlive.db", cfg.Database.URL)
	assert.EqualValues(t, 600, cfg.Limits.MaxDonationDuration)
	assert.EqualValues(t, 300, cfg.Limits.MaxRewardDuration)
	assert.Equal(t, 20, cfg.Limits.HistoryWindow)
	assert.Empty(t, cfg.Auth.Moderators)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 25*time.Second, cfg.WebSocket.PingInterval)
	assert.EqualValues(t, 8192, cfg.WebSocket.MaxMessageSize)
	assert.Equal(t, "twitch", cfg.Notifier.Kind)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.StreamElements.Enabled())
	assert.False(t, cfg.Twitch.Enabled())
	assert.True(t, cfg.Auth.UsesDefaultSecret())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SOCKET_PORT", "4000")
	t.Setenv("ADMIN_USERNAMES", "Alice, bob ,,")
	t.Setenv("MAX_DONATION_DURATION_SECONDS", "120")
	t.Setenv("MAX_CHANNEL_POINT_DURATION_SECONDS", "90")
	t.Setenv("DB_URL", "postgres://u:p@localhost/upnext")
	t.Setenv("STREAMELEMENTS_JWT_TOKEN", "tok")
	t.Setenv("STREAMELEMENTS_ACCOUNT_ID", "acct")
	t.Setenv("TARGET_REWARD_TITLE", "Song Request")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, []string{"Alice", "bob"}, cfg.Auth.Moderators)
	assert.EqualValues(t, 120, cfg.Limits.MaxDonationDuration)
	assert.EqualValues(t, 90, cfg.Limits.MaxRewardDuration)
	assert.Equal(t, "postgres://u:p@localhost/upnext", cfg.Database.URL)
	assert.Equal(t, "Song Request", cfg.StreamElements.RewardTitle)
	assert.True(t, cfg.StreamElements.Enabled())
}

func TestJWTSecretFromEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", "a-long-random-value")

	cfg, err := load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "a-long-random-value", cfg.Auth.JWTSecret)
	assert.False(t, cfg.Auth.UsesDefaultSecret())

	assert.True(t, AuthConfig{}.UsesDefaultSecret())
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitList([]string{"a,b", " c "}))
	assert.Empty(t, splitList(nil))
}
