package memstore

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-biteui-client/session"
)

var (
	_ session.TokenStore = (*Store)(nil)
	_ session.PairStore  = (*Store)(nil)
)

// Store keeps the session tokens in process memory.
type Store struct {
	mu      sync.RWMutex
	access  string
	refresh string
}

func New() *Store {
	return &Store{}
}

// NewWithTokens returns a store preloaded with t.
func NewWithTokens(t session.Tokens) *Store {
	return &Store{access: t.AccessToken, refresh: t.RefreshToken}
}

func (s *Store) AccessToken(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access, nil
}

func (s *Store) SetAccessToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = token
	return nil
}

func (s *Store) ClearAccessToken(ctx context.Context) error {
	return s.SetAccessToken(ctx, "")
}

func (s *Store) RefreshToken(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh, nil
}

func (s *Store) SetRefreshToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = token
	return nil
}

func (s *Store) ClearRefreshToken(ctx context.Context) error {
	return s.SetRefreshToken(ctx, "")
}

func (s *Store) SetTokens(_ context.Context, t session.Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access, s.refresh = t.AccessToken, t.RefreshToken
	return nil
}
