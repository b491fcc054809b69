package radio

import (
	"strings"
	"sync"
	"time"
)

// Session is the ephemeral per-connection moderator state.
type Session struct {
	ConnID        string
	Identity      string
	Authenticated bool
	ConnectedAt   time.Time
}

// Sessions tracks which live connections proved moderator identity.
//
// Authentication is allow-list membership only: no secret is checked, the
// claimed identity is trusted as long as it is on the configured list.
type Sessions struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	moderators map[string]struct{}
}

func NewSessions(moderators []string) *Sessions {
	allow := make(map[string]struct{}, len(moderators))
	for _, m := range moderators {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			allow[m] = struct{}{}
		}
	}
	return &Sessions{
		sessions:   make(map[string]*Session),
		moderators: allow,
	}
}

func (s *Sessions) Connect(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[connID] = &Session{ConnID: connID, ConnectedAt: time.Now()}
}

// Disconnect drops the session entirely; a new connection starts unauthenticated.
func (s *Sessions) Disconnect(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, connID)
}

// Authenticate marks connID as a moderator when identity is allow-listed.
func (s *Sessions) Authenticate(connID, identity string) bool {
	identity = strings.ToLower(strings.TrimSpace(identity))
	if identity == "" {
		return false
	}
	if _, ok := s.moderators[identity]; !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[connID]
	if !ok {
		return false
	}
	sess.Identity = identity
	sess.Authenticated = true
	return true
}

// IsModerator reports whether identity is on the allow-list.
func (s *Sessions) IsModerator(identity string) bool {
	_, ok := s.moderators[strings.ToLower(strings.TrimSpace(identity))]
	return ok
}

func (s *Sessions) IsAuthenticated(connID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[connID]
	return ok && sess.Authenticated
}

// Identity returns the moderator identity bound to connID, if any.
func (s *Sessions) Identity(connID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[connID]
	if !ok || !sess.Authenticated {
		return "", false
	}
	return sess.Identity, true
}

func (s *Sessions) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
