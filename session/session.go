// Package session owns the BiteUI token pair and notifies interested parties
// when a session is established or cleared.
package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-biteui-client/internal/errors"
)

var (
	ErrNoAccessToken  = errors.ErrNoAccessToken
	ErrNoRefreshToken = errors.ErrNoRefreshToken
)

// Reason says why a session was cleared.
type Reason string

const (
	ReasonLogout        Reason = "logout"
	ReasonUnauthorized  Reason = "unauthorized"
	ReasonRefreshFailed Reason = "refresh_failed"
)

// TokenStore persists the two session tokens. An empty string means absent.
// Implementations must be safe for concurrent use and read-after-write
// consistent.
type TokenStore interface {
	AccessToken(ctx context.Context) (string, error)
	SetAccessToken(ctx context.Context, token string) error
	ClearAccessToken(ctx context.Context) error
	RefreshToken(ctx context.Context) (string, error)
	SetRefreshToken(ctx context.Context, token string) error
	ClearRefreshToken(ctx context.Context) error
}

// PairStore is implemented by stores that can replace both tokens in one
// write. Manager uses it for Establish when available.
type PairStore interface {
	SetTokens(ctx context.Context, t Tokens) error
}

// Manager is the single owner of the session. Reads and writes of the token
// pair are serialised so callers never observe a half-updated pair.
type Manager struct {
	mu    sync.RWMutex
	store TokenStore
	sinks []Sink
	log   zerolog.Logger
}

type Option func(*Manager)

func WithSink(s Sink) Option {
	return func(m *Manager) {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) {
		m.log = l
	}
}

func NewManager(store TokenStore, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Tokens returns the current pair. Missing tokens are empty strings.
func (m *Manager) Tokens(ctx context.Context) (Tokens, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokens(ctx)
}

func (m *Manager) tokens(ctx context.Context) (Tokens, error) {
	access, err := m.store.AccessToken(ctx)
	if err != nil {
		return Tokens{}, errors.Wrapf(err, "reading access token")
	}
	refresh, err := m.store.RefreshToken(ctx)
	if err != nil {
		return Tokens{}, errors.Wrapf(err, "reading refresh token")
	}
	return Tokens{AccessToken: access, RefreshToken: refresh}, nil
}

func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	token, err := m.store.AccessToken(ctx)
	return token, errors.Wrapf(err, "reading access token")
}

func (m *Manager) RefreshToken(ctx context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	token, err := m.store.RefreshToken(ctx)
	return token, errors.Wrapf(err, "reading refresh token")
}

// Active reports whether an access token is held.
func (m *Manager) Active(ctx context.Context) bool {
	token, err := m.AccessToken(ctx)
	return err == nil && token != ""
}

// Establish replaces both tokens. An empty refresh token leaves the session
// without refresh capability.
func (m *Manager) Establish(ctx context.Context, t Tokens) error {
	if t.AccessToken == "" {
		return ErrNoAccessToken
	}

	if err := m.establish(ctx, t); err != nil {
		return err
	}

	m.log.Debug().Bool("refreshable", t.RefreshToken != "").Msg("session established")
	for _, s := range m.sinks {
		s.SessionEstablished(ctx)
	}
	return nil
}

func (m *Manager) establish(ctx context.Context, t Tokens) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ps, ok := m.store.(PairStore); ok {
		return errors.Wrapf(ps.SetTokens(ctx, t), "storing tokens")
	}

	prev, err := m.tokens(ctx)
	if err != nil {
		return err
	}
	if err := m.write(ctx, t); err != nil {
		// A failed write must not leave a mixed pair behind.
		if restoreErr := m.write(ctx, prev); restoreErr != nil {
			m.log.Error().Err(restoreErr).Msg("restoring previous session")
		}
		return err
	}
	return nil
}

func (m *Manager) write(ctx context.Context, t Tokens) error {
	var err error
	if t.AccessToken == "" {
		err = m.store.ClearAccessToken(ctx)
	} else {
		err = m.store.SetAccessToken(ctx, t.AccessToken)
	}
	if err != nil {
		return errors.Wrapf(err, "storing access token")
	}
	if t.RefreshToken == "" {
		return errors.Wrapf(m.store.ClearRefreshToken(ctx), "clearing refresh token")
	}
	return errors.Wrapf(m.store.SetRefreshToken(ctx, t.RefreshToken), "storing refresh token")
}

// Clear removes both tokens. It is idempotent and notifies sinks on every
// call. Both tokens are cleared even if the first removal fails.
func (m *Manager) Clear(ctx context.Context, reason Reason) error {
	err := m.clear(ctx)

	m.log.Debug().Str("reason", string(reason)).Msg("session cleared")
	for _, s := range m.sinks {
		s.SessionCleared(ctx, reason)
	}
	return err
}

func (m *Manager) clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	accessErr := m.store.ClearAccessToken(ctx)
	refreshErr := m.store.ClearRefreshToken(ctx)
	if accessErr != nil {
		return errors.Wrapf(accessErr, "clearing access token")
	}
	return errors.Wrapf(refreshErr, "clearing refresh token")
}
