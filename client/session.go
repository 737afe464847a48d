package client

import (
	"context"
	"errors"
	"maps"
	"net/http"
	"sync"
)

// Session is a logged-in caller. Its permission mapping is advisory: it decides
// what to show, while every request is still checked by the server.
type Session struct {
	client *Client

	mu    sync.RWMutex
	token string
	user  User
	perms map[string]bool
}

// Has reports whether the cached mapping contains token. Exact match only.
func (s *Session) Has(token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.perms[token]
}

// Permissions returns a copy of the cached mapping.
func (s *Session) Permissions() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.perms)
}

// User returns the cached account.
func (s *Session) User() User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Token returns the bearer token, empty after Logout.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Refresh reloads the user and replaces the whole mapping from the server.
func (s *Session) Refresh(ctx context.Context) error {
	token := s.Token()
	if token == "" {
		return ErrNotLoggedIn
	}
	var p profile
	if err := s.client.do(ctx, http.MethodGet, "/auth/me", token, nil, &p); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			s.clear()
		}
		return err
	}
	s.replace(token, p.User, p.Permissions)
	return nil
}

// Logout revokes the token server side and empties the cache.
func (s *Session) Logout(ctx context.Context) error {
	token := s.Token()
	if token == "" {
		return nil
	}
	err := s.client.do(ctx, http.MethodPost, "/auth/logout", token, nil, nil)
	s.clear()
	if errors.Is(err, ErrUnauthorized) {
		return nil
	}
	return err
}

// Do sends an authenticated request regardless of the cached mapping. A 403
// surfaces as ErrForbidden and a 401 clears the session.
func (s *Session) Do(ctx context.Context, method, path string, in, out any) error {
	token := s.Token()
	if token == "" {
		return ErrNotLoggedIn
	}
	err := s.client.do(ctx, method, path, token, in, out)
	if errors.Is(err, ErrUnauthorized) {
		s.clear()
	}
	return err
}

// replace installs a fresh snapshot fetched with token. It is dropped when the
// session was logged out or cleared while the request was in flight.
func (s *Session) replace(token string, user User, perms map[string]bool) {
	next := make(map[string]bool, len(perms))
	for token, ok := range perms {
		if ok {
			next[token] = true
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" || s.token != token {
		return
	}
	s.user = user
	s.perms = next
}

func (s *Session) clear() {
	s.mu.Lock()
	s.token = ""
	s.user = User{}
	s.perms = map[string]bool{}
	s.mu.Unlock()
}
