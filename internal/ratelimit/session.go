package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// SessionStore holds a process-wide shared credential (the GUS session id)
// and de-duplicates concurrent renewals so that, under a thundering herd of
// SessionExpired responses, only one request actually re-authenticates while
// the rest wait on its result.
type SessionStore struct {
	mu    sync.RWMutex
	token string
	group singleflight.Group
}

// Get returns the current token, which may be empty if none has been
// obtained yet.
func (s *SessionStore) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Renew invokes authenticate at most once concurrently, regardless of how
// many callers invoke Renew while a renewal is already in flight, and
// returns the freshly obtained token to all of them.
func (s *SessionStore) Renew(ctx context.Context, authenticate func(context.Context) (string, error)) (string, error) {
	v, err, _ := s.group.Do("renew", func() (any, error) {
		token, err := authenticate(ctx)
		if err != nil {
			return "", err
		}
		s.mu.Lock()
		s.token = token
		s.mu.Unlock()
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
