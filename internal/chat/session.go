package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/hundreds/internal/domain"
)

// ErrSessionNotFound is returned for unknown or evicted session IDs.
var ErrSessionNotFound = errors.New("session not found")

// Session owns one transcript. Turns on the same session are serialized.
type Session struct {
	ID        uuid.UUID
	CreatedAt time.Time

	mu         sync.Mutex
	transcript *Transcript
	lastSeen   time.Time
	now        func() time.Time
}

// Turn runs text through h against this session's transcript.
func (s *Session) Turn(ctx context.Context, h TurnHandler, text string) (Reply, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = s.now()
	return h.HandleTurn(ctx, s.transcript, text)
}

// Messages returns a copy of the last n messages, or all when n <= 0.
func (s *Session) Messages(n int) []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Tail(n)
}

// Len returns the transcript length.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Len()
}

// LastSeen returns the time of the last turn, or creation.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// SessionStore keeps sessions in memory. Nothing survives a restart.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	greeting string
	now      func() time.Time
}

// NewSessionStore creates an empty store whose sessions open with greeting.
func NewSessionStore(greeting string) *SessionStore {
	return &SessionStore{
		sessions: make(map[uuid.UUID]*Session),
		greeting: greeting,
		now:      time.Now,
	}
}

// Create opens a new session with a fresh greeting-seeded transcript.
func (s *SessionStore) Create() *Session {
	now := s.now()
	sess := &Session{
		ID:         uuid.New(),
		CreatedAt:  now,
		transcript: NewTranscript(s.greeting),
		lastSeen:   now,
		now:        s.now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

// Get returns the session with id.
func (s *SessionStore) Get(id uuid.UUID) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Delete removes a session. Unknown IDs are ignored.
func (s *SessionStore) Delete(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Evict drops sessions idle for longer than idleFor and returns how many.
func (s *SessionStore) Evict(idleFor time.Duration) int {
	cutoff := s.now().Add(-idleFor)

	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if sess.LastSeen().Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}
