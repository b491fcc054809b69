// Package notify holds Notifier transports that do not depend on a chat
// platform: a redis pub/sub publisher for an external chat bot and a
// log-only fallback.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/himanshub16/upnext-live/config"
	"github.com/himanshub16/upnext-live/logging"
	"github.com/himanshub16/upnext-live/radio"
)

// Message is the payload published for every notification.
type Message struct {
	Login   string    `json:"login"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisNotifier publishes notifications to a redis channel.
type RedisNotifier struct {
	client  publisher
	closer  func() error
	channel string
	now     func() time.Time
}

var _ radio.Notifier = (*RedisNotifier)(nil)

// NewRedisNotifier connects to redis and verifies the connection.
func NewRedisNotifier(ctx context.Context, cfg config.RedisConfig) (*RedisNotifier, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	l := logging.L()
	l.Info().Str("address", cfg.Address).Str("channel", cfg.Channel).Msg("publishing notifications to redis")
	return &RedisNotifier{
		client:  client,
		closer:  client.Close,
		channel: cfg.Channel,
		now:     time.Now,
	}, nil
}

func (n *RedisNotifier) Notify(ctx context.Context, login, message string) error {
	data, err := json.Marshal(Message{Login: login, Message: message, SentAt: n.now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, data).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

func (n *RedisNotifier) Close() error {
	if n.closer == nil {
		return nil
	}
	return n.closer()
}

// LogNotifier writes notifications to the log instead of delivering them.
type LogNotifier struct{}

var _ radio.Notifier = LogNotifier{}

func (LogNotifier) Notify(ctx context.Context, login, message string) error {
	l := logging.Ctx(ctx)
	l.Info().Str("login", login).Str(logging.FieldText, message).Msg("notification")
	return nil
}
