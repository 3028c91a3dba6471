package identity

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/plantops/breakdown-board/internal/domain"
)

// defaultSessionTTL covers a full shift with margin. Sessions are
// process-scoped; a restart logs everyone out.
const defaultSessionTTL = 12 * time.Hour

type session struct {
	actor     domain.Actor
	expiresAt time.Time
}

// sessionStore is an in-memory token map with per-token expiry. Tokens
// are opaque UUIDs; revocation is a map delete, which is the reason this
// is a map and not signed tokens.
type sessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]session
	now      func() time.Time
}

func newSessionStore(ttl time.Duration) *sessionStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &sessionStore{
		ttl:      ttl,
		sessions: make(map[string]session),
		now:      time.Now,
	}
}

// create issues a fresh token for the actor.
func (s *sessionStore) create(actor domain.Actor) string {
	token := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = session{actor: actor, expiresAt: s.now().Add(s.ttl)}
	return token
}

// resolve returns the actor behind a token. Expired tokens are removed
// on sight.
func (s *sessionStore) resolve(token string) (domain.Actor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return domain.Actor{}, false
	}
	if s.now().After(sess.expiresAt) {
		delete(s.sessions, token)
		return domain.Actor{}, false
	}
	return sess.actor, true
}

// revoke deletes a token. Unknown tokens are a no-op.
func (s *sessionStore) revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// revokeActor deletes every session belonging to the given technician
// number, used when an admin deactivates a technician.
func (s *sessionStore) revokeActor(number string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, sess := range s.sessions {
		if sess.actor.Number == number {
			delete(s.sessions, token)
		}
	}
}
