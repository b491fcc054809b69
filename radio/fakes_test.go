package radio

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

var errBoom = errors.New("boom")

// memRepo is an in-memory Repository. Set the fail* fields to inject errors.
type memRepo struct {
	mu        sync.Mutex
	queue     []Request
	active    *Request
	history   []Request
	blacklist []BlacklistItem
	blocked   []BlockedUser
	settings  Settings
	nextID    int64

	advances int

	failInsert     error
	failRefund     error
	failModeration error
}

func newMemRepo() *memRepo {
	return &memRepo{settings: Settings{}}
}

func (m *memRepo) LoadQueue(context.Context) ([]Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, 0, len(m.queue))
	for _, q := range m.queue {
		if !q.Refunded {
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *memRepo) LoadActive(context.Context) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil, nil
	}
	a := *m.active
	return &a, nil
}

func (m *memRepo) LoadHistory(_ context.Context, limit int) ([]Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > len(m.history) {
		limit = len(m.history)
	}
	return append([]Request{}, m.history[:limit]...), nil
}

func (m *memRepo) LoadRefundedIDs(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, q := range m.queue {
		if q.Refunded {
			ids = append(ids, q.ID)
		}
	}
	for _, h := range m.history {
		if h.Refunded {
			ids = append(ids, h.ID)
		}
	}
	return ids, nil
}

func (m *memRepo) InsertQueueItem(_ context.Context, req Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert != nil {
		return m.failInsert
	}
	m.queue = append(m.queue, req)
	return nil
}

func (m *memRepo) DeleteQueueItem(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.queue {
		if m.queue[i].ID == id {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memRepo) RefundQueueItem(_ context.Context, id, reason string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRefund != nil {
		return m.failRefund
	}
	for i := range m.queue {
		if m.queue[i].ID == id && !m.queue[i].Refunded {
			m.queue[i].Refunded = true
			m.queue[i].RefundReason = reason
			m.queue[i].RefundedAt = &at
			return nil
		}
	}
	return ErrNotFound
}

func (m *memRepo) Advance(_ context.Context, finished, next *Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advances++
	if finished != nil {
		m.history = append([]Request{*finished}, m.history...)
		m.active = nil
	}
	if next != nil {
		for i := range m.queue {
			if m.queue[i].ID == next.ID {
				m.queue = append(m.queue[:i], m.queue[i+1:]...)
				break
			}
		}
		n := *next
		m.active = &n
	}
	return nil
}

func (m *memRepo) GetHistoryItem(_ context.Context, id string) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.history {
		if m.history[i].ID == id {
			h := m.history[i]
			return &h, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memRepo) RefundHistoryItem(_ context.Context, id, reason string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRefund != nil {
		return m.failRefund
	}
	for i := range m.history {
		if m.history[i].ID == id && !m.history[i].Refunded {
			m.history[i].Refunded = true
			m.history[i].RefundReason = reason
			m.history[i].RefundedAt = &at
			return nil
		}
	}
	return ErrNotFound
}

func (m *memRepo) RefundedRequests(context.Context) ([]Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Request
	for _, h := range m.history {
		if h.Refunded {
			out = append(out, h)
		}
	}
	for _, q := range m.queue {
		if q.Refunded {
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *memRepo) Stats(context.Context, time.Time) (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &Stats{TotalPlayed: int64(len(m.history)), DonatedAmounts: map[string]float64{}}, nil
}

func (m *memRepo) LoadBlacklist(context.Context) ([]BlacklistItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]BlacklistItem{}, m.blacklist...), nil
}

func (m *memRepo) AddBlacklistItem(_ context.Context, pattern string, typ BlacklistType, at time.Time) (BlacklistItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failModeration != nil {
		return BlacklistItem{}, m.failModeration
	}
	for i := range m.blacklist {
		if m.blacklist[i].Pattern == pattern {
			m.blacklist[i].Type = typ
			return m.blacklist[i], nil
		}
	}
	m.nextID++
	item := BlacklistItem{ID: m.nextID, Pattern: pattern, Type: typ, AddedAt: at}
	m.blacklist = append(m.blacklist, item)
	return item, nil
}

func (m *memRepo) RemoveBlacklistItem(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.blacklist {
		if m.blacklist[i].ID == id {
			m.blacklist = append(m.blacklist[:i], m.blacklist[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memRepo) LoadBlockedUsers(context.Context) ([]BlockedUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]BlockedUser{}, m.blocked...), nil
}

func (m *memRepo) AddBlockedUser(_ context.Context, login string, at time.Time) (BlockedUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failModeration != nil {
		return BlockedUser{}, m.failModeration
	}
	m.nextID++
	u := BlockedUser{ID: m.nextID, Login: login, AddedAt: at}
	m.blocked = append(m.blocked, u)
	return u, nil
}

func (m *memRepo) RemoveBlockedUser(_ context.Context, login string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.blocked {
		if m.blocked[i].Login == login {
			m.blocked = append(m.blocked[:i], m.blocked[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memRepo) LoadSettings(context.Context) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copySettings(m.settings), nil
}

func (m *memRepo) SaveSetting(_ context.Context, key string, value interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

// stubResolver resolves references from a fixed table. When hold is set,
// Resolve blocks until it is closed, after signalling on entered.
type stubResolver struct {
	mu      sync.Mutex
	videos  map[string]Metadata
	calls   int
	hold    chan struct{}
	entered chan struct{}
}

func newStubResolver() *stubResolver {
	return &stubResolver{videos: make(map[string]Metadata)}
}

func (s *stubResolver) add(ref, title, author string, seconds int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos[ref] = Metadata{VideoID: ref, Title: title, Author: author, DurationSeconds: seconds}
}

func (s *stubResolver) Resolve(ctx context.Context, ref string) (*Metadata, error) {
	s.mu.Lock()
	s.calls++
	hold, entered := s.hold, s.entered
	meta, ok := s.videos[ref]
	s.mu.Unlock()

	if hold != nil {
		if entered != nil {
			entered <- struct{}{}
		}
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, errors.New("video not found")
	}
	return &meta, nil
}

func (s *stubResolver) FindReference(text string) (string, bool) {
	for _, f := range strings.Fields(text) {
		if strings.HasPrefix(f, "yt:") {
			return f, true
		}
	}
	return "", false
}

type sentMessage struct {
	Login   string
	Message string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, login, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{Login: login, Message: message})
	return n.err
}

func (n *recordingNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage{}, n.sent...)
}

type broadcastEvent struct {
	Event   string
	Payload interface{}
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []broadcastEvent
}

func (b *recordingBroadcaster) Broadcast(event string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcastEvent{Event: event, Payload: payload})
}

func (b *recordingBroadcaster) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.Event
	}
	return out
}

func (b *recordingBroadcaster) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

type stubIdentity struct {
	profiles map[string]Profile
}

func (s stubIdentity) LookupUser(_ context.Context, login string) (*Profile, error) {
	p, ok := s.profiles[login]
	if !ok {
		return nil, errors.New("unknown user")
	}
	return &p, nil
}

type fixture struct {
	radio       *Radio
	repo        *memRepo
	resolver    *stubResolver
	notifier    *recordingNotifier
	broadcaster *recordingBroadcaster
	modConn     string
}

func newFixture(limits Limits) *fixture {
	f := &fixture{
		repo:        newMemRepo(),
		resolver:    newStubResolver(),
		notifier:    &recordingNotifier{},
		broadcaster: &recordingBroadcaster{},
		modConn:     "mod-conn",
	}
	sessions := NewSessions([]string{"ModUser"})
	f.radio = New(Options{
		Repo:        f.repo,
		Resolver:    f.resolver,
		Notifier:    f.notifier,
		Broadcaster: f.broadcaster,
		Sessions:    sessions,
		Limits:      limits,
	})
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var tick int64
	var tickMu sync.Mutex
	f.radio.now = func() time.Time {
		tickMu.Lock()
		defer tickMu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	sessions.Connect(f.modConn)
	sessions.Authenticate(f.modConn, "moduser")
	return f
}

func (f *fixture) submit(id, ref, name string, c Channel) (*Request, int, error) {
	raw := RawSubmission{ID: id, Reference: ref, RequesterName: name, Channel: c}
	if c == ChannelDonation {
		raw.Donation = &DonationInfo{Amount: 5, Currency: "USD"}
	}
	return f.radio.Submit(context.Background(), raw, false)
}

func ids(reqs []Request) []string {
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.ID
	}
	return out
}
