package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/himanshub16/upnext-live/logging"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Limits         LimitsConfig
	Auth           AuthConfig
	YouTube        YouTubeConfig `mapstructure:"youtube"`
	Twitch         TwitchConfig
	Notifier       NotifierConfig
	Redis          RedisConfig
	StreamElements StreamElementsConfig `mapstructure:"streamelements"`
	WebSocket      WebSocketConfig
	Log            logging.Config
}

type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	URL string
}

type LimitsConfig struct {
	MaxDonationDuration int64 `mapstructure:"max_donation_duration"`
	MaxRewardDuration   int64 `mapstructure:"max_reward_duration"`
	HistoryWindow       int   `mapstructure:"history_window"`
}

// DefaultJWTSecret signs admin tokens when JWT_SECRET is unset. Anyone who
// knows it can mint a moderator token.
const DefaultJWTSecret = "secret"

type AuthConfig struct {
	Moderators []string
	JWTSecret  string        `mapstructure:"jwt_secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

type YouTubeConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	MaxRetries uint64 `mapstructure:"max_retries"`
}

type TwitchConfig struct {
	ClientID      string `mapstructure:"client_id"`
	AccessToken   string `mapstructure:"access_token"`
	BroadcasterID string `mapstructure:"broadcaster_id"`
	SenderID      string `mapstructure:"sender_id"`
	BaseURL       string `mapstructure:"base_url"`
}

// Enabled reports whether enough credentials are present to talk to Helix.
// UsesDefaultSecret reports whether tokens are signed with a well-known key.
func (c AuthConfig) UsesDefaultSecret() bool {
	return c.JWTSecret == "" || c.JWTSecret == DefaultJWTSecret
}

func (c TwitchConfig) Enabled() bool {
	return c.ClientID != "" && c.AccessToken != ""
}

type NotifierConfig struct {
	Kind string
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Channel  string
}

type StreamElementsConfig struct {
	JWTToken    string `mapstructure:"jwt_token"`
	AccountID   string `mapstructure:"account_id"`
	RewardTitle string `mapstructure:"reward_title"`
	URL         string
}

// Enabled reports whether the realtime event source should be started.
func (c StreamElementsConfig) Enabled() bool {
	return c.JWTToken != "" && c.AccountID != ""
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

// Load reads ./config/config.yaml when present, then layers environment
// variables on top of the defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	bindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// comma separated env values arrive as a single string
	cfg.Server.AllowedOrigins = splitList(v.GetStringSlice("server.allowed_origins"))
	cfg.Auth.Moderators = splitList(v.GetStringSlice("auth.moderators"))

	cfg.Auth.TokenTTL = parseDuration(v, "auth.token_ttl", 12*time.Hour)
	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 25*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3002)
	v.SetDefault("server.allowed_origins", "http://localhost:3000,http://localhost:3001")
	v.SetDefault("database.url", "sqlite://tracklistlive.db")
	v.SetDefault("limits.max_donation_duration", 600)
	v.SetDefault("limits.max_reward_duration", 300)
	v.SetDefault("limits.history_window", 20)
	v.SetDefault("auth.moderators", "")
	v.SetDefault("auth.jwt_secret", DefaultJWTSecret)
	v.SetDefault("auth.token_ttl", "12h")
	v.SetDefault("youtube.base_url", "https://www.googleapis.com/youtube/v3")
	v.SetDefault("youtube.max_retries", 2)
	v.SetDefault("twitch.base_url", "https://api.twitch.tv/helix")
	v.SetDefault("notifier.kind", "twitch")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "upnext:chat")
	v.SetDefault("streamelements.url", "wss://realtime.streamelements.com/socket.io/?EIO=3&transport=websocket")
	v.SetDefault("websocket.ping_interval", "25s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 8192)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.service_name", "upnext-live")
}

func bindEnv(v *viper.Viper) {
	v.BindEnv("server.port", "SOCKET_PORT")
	v.BindEnv("server.allowed_origins", "ALLOWED_ORIGINS")
	v.BindEnv("database.url", "DB_URL")
	v.BindEnv("limits.max_donation_duration", "MAX_DONATION_DURATION_SECONDS")
	v.BindEnv("limits.max_reward_duration", "MAX_CHANNEL_POINT_DURATION_SECONDS")
	v.BindEnv("auth.moderators", "ADMIN_USERNAMES")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("youtube.api_key", "YOUTUBE_API_KEY")
	v.BindEnv("twitch.client_id", "TWITCH_CLIENT_ID")
	v.BindEnv("twitch.access_token", "TWITCH_BOT_OAUTH_TOKEN")
	v.BindEnv("twitch.broadcaster_id", "TWITCH_BROADCASTER_ID")
	v.BindEnv("twitch.sender_id", "TWITCH_BOT_USER_ID")
	v.BindEnv("notifier.kind", "NOTIFIER")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("streamelements.jwt_token", "STREAMELEMENTS_JWT_TOKEN")
	v.BindEnv("streamelements.account_id", "STREAMELEMENTS_ACCOUNT_ID")
	v.BindEnv("streamelements.reward_title", "TARGET_REWARD_TITLE")
	v.BindEnv("log.level", "LOG_LEVEL")
}

func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return defaultVal
	}
	return d
}
