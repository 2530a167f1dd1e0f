package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/averlon/storefront/internal/domain/cart"
)

// sessionHeader identifies the shopper session. Each session owns exactly
// one cart Store; the session is the "browser" of the core model, and its
// identity flips between guest and user via the session endpoint.
const sessionHeader = "X-Session-ID"

// sessionIdleTTL is how long an untouched session keeps its Store. The
// header is client-controlled, so without eviction the registry would grow
// for the life of the process. Evicted carts survive in their slots and
// are restored when the session comes back.
const sessionIdleTTL = time.Hour

// ErrNoSession is returned when a cart or checkout request lacks the
// session header.
var ErrNoSession = errors.New("missing " + sessionHeader + " header")

// StoreFactory creates the cart Store for a new session.
type StoreFactory func() *cart.Store

type session struct {
	store    *cart.Store
	lastSeen time.Time
}

// Sessions lazily creates and hands out one cart Store per session id,
// evicting sessions idle past the TTL.
type Sessions struct {
	factory StoreFactory
	idleTTL time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// NewSessions returns an empty registry using factory for new sessions.
func NewSessions(factory StoreFactory) *Sessions {
	return &Sessions{
		factory:  factory,
		idleTTL:  sessionIdleTTL,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// Get returns the Store for the session id, creating and restoring it on
// first use (or first use after eviction).
func (s *Sessions) Get(ctx context.Context, sessionID string) (*cart.Store, error) {
	now := s.now()

	s.mu.Lock()
	s.evictIdleLocked(now)
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &session{store: s.factory()}
		s.sessions[sessionID] = sess
	}
	sess.lastSeen = now
	s.mu.Unlock()

	if !ok {
		if err := sess.store.Restore(ctx); err != nil {
			return nil, errors.Wrap(err, "restore session cart")
		}
	}
	return sess.store, nil
}

func (s *Sessions) evictIdleLocked(now time.Time) {
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) >= s.idleTTL {
			delete(s.sessions, id)
		}
	}
}

// storeFor resolves the cart Store for the request's session header.
func (h *Handler) storeFor(r *http.Request) (*cart.Store, error) {
	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		return nil, ErrNoSession
	}
	return h.sessions.Get(r.Context(), sessionID)
}
