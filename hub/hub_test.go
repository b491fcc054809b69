package hub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanshub16/upnext-live/config"
)

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		PingInterval:   time.Second,
		PongWait:       10 * time.Second,
		WriteWait:      5 * time.Second,
		MaxMessageSize: 64 * 1024,
	}
}

func runHub(t *testing.T) *Hub {
	t.Helper()
	h := New()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h
}

func receive(t *testing.T, c *Client) outboundFrame {
	t.Helper()
	select {
	case data, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		var f outboundFrame
		require.NoError(t, json.Unmarshal(data, &f))
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
	return outboundFrame{}
}

type outboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func TestHub_BroadcastReachesEveryClient(t *testing.T) {
	h := runHub(t)
	a := NewClient("a", h, nil, testWSConfig())
	b := NewClient("b", h, nil, testWSConfig())
	h.Register(a)
	h.Register(b)

	h.Broadcast("queueUpdate", []string{"x"})

	for _, c := range []*Client{a, b} {
		f := receive(t, c)
		assert.Equal(t, "queueUpdate", f.Event)
		assert.JSONEq(t, `["x"]`, string(f.Data))
	}
	assert.Equal(t, 2, h.ClientCount())
}

func TestHub_SendToIsPrivate(t *testing.T) {
	h := runHub(t)
	a := NewClient("a", h, nil, testWSConfig())
	b := NewClient("b", h, nil, testWSConfig())
	h.Register(a)
	h.Register(b)

	h.SendTo(a, "pong", nil)
	h.Broadcast("marker", nil)

	assert.Equal(t, "pong", receive(t, a).Event)
	assert.Equal(t, "marker", receive(t, a).Event)
	assert.Equal(t, "marker", receive(t, b).Event)
}

func TestHub_FramesKeepEnqueueOrder(t *testing.T) {
	h := runHub(t)
	a := NewClient("a", h, nil, testWSConfig())
	h.Register(a)

	h.SendTo(a, "first", nil)
	h.Broadcast("second", nil)
	h.SendTo(a, "third", nil)

	assert.Equal(t, "first", receive(t, a).Event)
	assert.Equal(t, "second", receive(t, a).Event)
	assert.Equal(t, "third", receive(t, a).Event)
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	h := runHub(t)
	a := NewClient("a", h, nil, testWSConfig())
	h.Register(a)
	h.Unregister(a)

	select {
	case _, ok := <-a.send:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("send channel was not closed")
	}
	assert.Equal(t, 0, h.ClientCount())

	// a second unregister and a direct send to a gone client are no-ops
	h.Unregister(a)
	h.SendTo(a, "late", nil)
	h.Broadcast("sync", nil)
	require.Eventually(t, func() bool { return len(h.ops) == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_DropsSlowClient(t *testing.T) {
	h := runHub(t)
	slow := &Client{ID: "slow", hub: h, send: make(chan []byte), config: testWSConfig()}
	fast := NewClient("fast", h, nil, testWSConfig())
	h.Register(slow)
	h.Register(fast)

	h.Broadcast("queueUpdate", nil)

	assert.Equal(t, "queueUpdate", receive(t, fast).Event)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	_, ok := <-slow.send
	assert.False(t, ok)
}

func TestHub_RunClosesClientsOnShutdown(t *testing.T) {
	h := New()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()

	a := NewClient("a", h, nil, testWSConfig())
	h.Register(a)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	<-stopped
	_, ok := <-a.send
	assert.False(t, ok)

	// enqueueing after shutdown must not block
	h.Broadcast("after", nil)
}
