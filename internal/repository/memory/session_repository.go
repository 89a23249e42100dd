package memory

import (
	"sync"
	"time"

	"finance-rag-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

const DefaultSessionTTL = time.Hour

// SessionRepository keeps chat transcripts in process memory. Entries expire
// ttl after their last update.
type SessionRepository struct {
	cache *cache.Cache
	mu    sync.Mutex
}

func NewSessionRepository(ttl time.Duration) *SessionRepository {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionRepository{
		cache: cache.New(ttl, 10*time.Minute),
	}
}

// AppendTurn adds turn to the session, creating it on first use, and returns
// a snapshot of the updated transcript.
func (r *SessionRepository) AppendTurn(sessionID string, turn store.Turn) *store.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if turn.At.IsZero() {
		turn.At = now
	}

	var session *store.Session
	if x, found := r.cache.Get(sessionID); found {
		session = x.(*store.Session).Clone()
	} else {
		session = &store.Session{ID: sessionID, CreatedAt: now}
	}
	session.Turns = append(session.Turns, turn)
	session.UpdatedAt = now

	r.cache.Set(sessionID, session, cache.DefaultExpiration)
	return session.Clone()
}

func (r *SessionRepository) Get(sessionID string) (*store.Session, bool) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*store.Session).Clone(), true
	}
	return nil, false
}

// Delete drops the transcript and reports whether it existed.
func (r *SessionRepository) Delete(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, found := r.cache.Get(sessionID); !found {
		return false
	}
	r.cache.Delete(sessionID)
	return true
}
