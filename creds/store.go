package creds

import (
	"sync"

	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-session-client/creds/storage"
)

// Store holds the live credential material. All mutations replace whole
// values under one lock, so a reader can never observe a token pair with
// only one half set. The store performs no network calls.
type Store struct {
	strategy Strategy
	storage  storage.Storage

	lock  sync.RWMutex
	token *oauth2.Token // token strategy
	csrf  string        // cookie strategy
}

// NewStore creates a Store for the given strategy. Under the token
// strategy a previously persisted pair is restored from durable storage,
// but only when both halves are present.
func NewStore(strategy Strategy, durable storage.Storage) *Store {
	s := &Store{
		strategy: strategy,
		storage:  durable,
	}

	if strategy == StrategyToken && durable != nil {
		access, okAccess := durable.Get(AccessTokenKey)
		refreshToken, okRefresh := durable.Get(RefreshTokenKey)
		if okAccess && okRefresh {
			s.token = &oauth2.Token{AccessToken: access, RefreshToken: refreshToken, TokenType: "Bearer"}
		}
	}

	return s
}

// Strategy reports the credential strategy the store was built for.
func (s *Store) Strategy() Strategy {
	return s.strategy
}

// Token returns the current token pair, or false when absent.
func (s *Store) Token() (*oauth2.Token, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.token == nil {
		return nil, false
	}
	return s.token, true
}

// SetToken replaces the token pair atomically and persists it. A nil token
// behaves like Clear.
func (s *Store) SetToken(token *oauth2.Token) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.token = token
	if s.storage == nil {
		return
	}
	if token == nil {
		s.storage.Remove(AccessTokenKey)
		s.storage.Remove(RefreshTokenKey)
		return
	}
	s.storage.Set(AccessTokenKey, token.AccessToken)
	s.storage.Set(RefreshTokenKey, token.RefreshToken)
}

// CSRFToken returns the cached CSRF token, or false when none is cached.
func (s *Store) CSRFToken() (string, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.csrf == "" {
		return "", false
	}
	return s.csrf, true
}

// SetCSRFToken caches a CSRF token for subsequent unsafe requests.
func (s *Store) SetCSRFToken(token string) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.csrf = token
}

// Clear removes all credential material, in memory and in durable storage.
func (s *Store) Clear() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.token = nil
	s.csrf = ""
	if s.storage != nil {
		s.storage.Remove(AccessTokenKey)
		s.storage.Remove(RefreshTokenKey)
	}
}
