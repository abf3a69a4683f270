package service

import (
	"sync"
	"time"
)

// Flow states, in strict order. No state is skippable.
const (
	StateAwaitingIdentity      = "awaiting_identity"
	StateAwaitingOtp           = "awaiting_otp"
	StateAwaitingSlotSelection = "awaiting_slot_selection"
	StateQueued                = "queued"
)

// Session is the ephemeral per-identity flow state. All durable truth lives
// in the passcode and inventory stores; losing a session only forces the
// caller to restart the flow, it never loses a reservation.
type Session struct {
	Identity         string `json:"identity"`
	DisplayName      string `json:"display_name,omitempty"`
	State            string `json:"state"`
	ReservationID    string `json:"-"`
	ReservationToken string `json:"reservation_token,omitempty"`
}

type sessionEntry struct {
	session   *Session
	expiresAt time.Time
}

// SessionStore keeps flow sessions in memory with TTL eviction, one entry
// per identity.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	ttl      time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	store := &SessionStore{
		sessions: make(map[string]*sessionEntry),
		ttl:      ttl,
		stopCh:   make(chan struct{}),
	}
	go store.cleanup()
	return store
}

func (s *SessionStore) Get(identity string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.sessions[identity]
	if !exists || time.Now().After(entry.expiresAt) {
		return nil, false
	}

	copied := *entry.session
	return &copied, true
}

// Put stores the session and refreshes its TTL. Every successful
// transition goes through here, so active flows stay alive.
func (s *SessionStore) Put(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *session
	s.sessions[session.Identity] = &sessionEntry{
		session:   &copied,
		expiresAt: time.Now().Add(s.ttl),
	}
}

func (s *SessionStore) Delete(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, identity)
}

func (s *SessionStore) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			now := time.Now()
			for identity, entry := range s.sessions {
				if now.After(entry.expiresAt) {
					delete(s.sessions, identity)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

func (s *SessionStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}
