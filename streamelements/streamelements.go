// Package streamelements consumes tip and redemption events from the
// StreamElements realtime socket (socket.io over websocket, EIO=3).
package streamelements

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/himanshub16/upnext-live/config"
	"github.com/himanshub16/upnext-live/logging"
)

// Tip is a monetary donation.
type Tip struct {
	ID       string
	Username string
	Amount   float64
	Currency string
	Message  string
	At       time.Time
}

// Redemption is a channel points reward redemption.
type Redemption struct {
	ID          string
	Username    string
	RewardTitle string
	Input       string
	At          time.Time
}

// Handler receives decoded events. Calls happen on the read loop, one at a time.
type Handler interface {
	OnTip(ctx context.Context, tip Tip)
	OnRedemption(ctx context.Context, r Redemption)
}

const defaultPingInterval = 25 * time.Second

type Client struct {
	url        string
	accountID  string
	handler    Handler
	dialer     *websocket.Dialer
	newBackOff func() backoff.BackOff
	now        func() time.Time
}

func New(cfg config.StreamElementsConfig, h Handler) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid streamelements url: %w", err)
	}
	q := u.Query()
	q.Set("token", cfg.JWTToken)
	u.RawQuery = q.Encode()

	return &Client{
		url:       u.String(),
		accountID: cfg.AccountID,
		handler:   h,
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 30 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
		now: time.Now,
	}, nil
}

// Run keeps a session open until ctx is cancelled, reconnecting with backoff
// whenever the connection drops.
func (c *Client) Run(ctx context.Context) error {
	bo := backoff.WithContext(c.newBackOff(), ctx)
	err := backoff.RetryNotify(func() error {
		err := c.session(ctx, bo.Reset)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}, bo, func(err error, wait time.Duration) {
		l := logging.L()
		l.Warn().Err(err).Dur("retry_in", wait).Msg("streamelements connection lost, reconnecting")
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// session runs one connection. connected is called once the room is joined.
func (c *Client) session(ctx context.Context, connected func()) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial streamelements: %w", err)
	}
	defer conn.Close()

	var writeMu sync.Mutex
	write := func(frame string) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteMessage(websocket.TextMessage, []byte(frame))
	}

	if err := write("40"); err != nil {
		return err
	}
	if err := write(subscribeFrame(c.accountID)); err != nil {
		return err
	}
	l := logging.L()
	l.Info().Str("account", c.accountID).Msg("connected to streamelements")
	connected()

	done := make(chan struct{})
	defer close(done)
	pings := make(chan time.Duration, 1)
	go func() {
		interval := defaultPingInterval
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-done:
				return
			case d := <-pings:
				if d > 0 && d != interval {
					interval = d
					ticker.Reset(d)
				}
			case <-ticker.C:
				if err := write("2"); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read streamelements: %w", err)
		}
		frame := string(data)
		switch {
		case frame == "2":
			write("3")
		case strings.HasPrefix(frame, "0{"):
			if d, ok := pingInterval(frame[1:]); ok {
				select {
				case pings <- d:
				default:
				}
			}
		case strings.HasPrefix(frame, "42"):
			c.dispatch(ctx, frame)
		}
	}
}

func (c *Client) dispatch(ctx context.Context, frame string) {
	l := logging.L()
	typ, data, ok := parseEvent(frame)
	if !ok {
		return
	}
	switch typ {
	case "tip":
		tip, err := decodeTip(data)
		if err != nil {
			l.Warn().Err(err).Msg("malformed tip event")
			return
		}
		if tip.ID == "" {
			tip.ID = uuid.New().String()
		}
		tip.At = c.now().UTC()
		l.Info().Str("username", tip.Username).Float64("amount", tip.Amount).Str("currency", tip.Currency).Msg("tip received")
		c.handler.OnTip(ctx, tip)
	case "redemption":
		r, err := decodeRedemption(data)
		if err != nil {
			l.Warn().Err(err).Msg("malformed redemption event")
			return
		}
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		r.At = c.now().UTC()
		l.Info().Str("username", r.Username).Str("reward", r.RewardTitle).Msg("redemption received")
		c.handler.OnRedemption(ctx, r)
	default:
		l.Debug().Str("type", typ).Msg("ignoring streamelements event")
	}
}

func subscribeFrame(room string) string {
	payload, _ := json.Marshal([]interface{}{"subscribe", map[string]string{"room": room}})
	return "42" + string(payload)
}

// parseEvent unpacks 42["event",{"type":...,"data":...}].
func parseEvent(frame string) (string, json.RawMessage, bool) {
	if !strings.HasPrefix(frame, "42") {
		return "", nil, false
	}
	var parts []json.RawMessage
	if err := json.Unmarshal([]byte(frame[2:]), &parts); err != nil || len(parts) < 2 {
		return "", nil, false
	}
	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil || name != "event" {
		return "", nil, false
	}
	var ev struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(parts[1], &ev); err != nil || ev.Type == "" {
		return "", nil, false
	}
	return ev.Type, ev.Data, true
}

func pingInterval(open string) (time.Duration, bool) {
	var hs struct {
		PingInterval int64 `json:"pingInterval"`
	}
	if err := json.Unmarshal([]byte(open), &hs); err != nil || hs.PingInterval <= 0 {
		return 0, false
	}
	return time.Duration(hs.PingInterval) * time.Millisecond, true
}

// amount accepts both 5 and "5.00".
type amount float64

func (a *amount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*a = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q", s)
	}
	*a = amount(f)
	return nil
}

func decodeTip(data json.RawMessage) (Tip, error) {
	var raw struct {
		TipID    string `json:"tipId"`
		Username string `json:"username"`
		Amount   amount `json:"amount"`
		Currency string `json:"currency"`
		Message  string `json:"message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Tip{}, err
	}
	if raw.Currency == "" {
		raw.Currency = "USD"
	}
	return Tip{
		ID:       raw.TipID,
		Username: raw.Username,
		Amount:   float64(raw.Amount),
		Currency: raw.Currency,
		Message:  raw.Message,
	}, nil
}

func decodeRedemption(data json.RawMessage) (Redemption, error) {
	var raw struct {
		RedemptionID string `json:"redemptionId"`
		Username     string `json:"username"`
		RewardTitle  string `json:"rewardTitle"`
		Input        string `json:"input"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Redemption{}, err
	}
	return Redemption{
		ID:          raw.RedemptionID,
		Username:    raw.Username,
		RewardTitle: raw.RewardTitle,
		Input:       raw.Input,
	}, nil
}
