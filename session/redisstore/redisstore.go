package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jrsteele09/go-biteui-client/session"
)

const (
	DefaultPrefix = "biteui:session:"

	accessTokenKey  = "biteui.accessToken"
	refreshTokenKey = "biteui.refreshToken"
)

var (
	_ session.TokenStore = (*Store)(nil)
	_ session.PairStore  = (*Store)(nil)
)

// Store keeps the session tokens in redis so several processes can share one
// session.
type Store struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithTTL expires stored tokens after ttl. Zero keeps them until cleared.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{client: client, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(name string) string {
	return s.prefix + name
}

func (s *Store) get(ctx context.Context, name string) (string, error) {
	v, err := s.client.Get(ctx, s.key(name)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", name, err)
	}
	return v, nil
}

func (s *Store) set(ctx context.Context, name, value string) error {
	if err := s.client.Set(ctx, s.key(name), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", name, err)
	}
	return nil
}

func (s *Store) del(ctx context.Context, name string) error {
	if err := s.client.Del(ctx, s.key(name)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", name, err)
	}
	return nil
}

func (s *Store) AccessToken(ctx context.Context) (string, error) {
	return s.get(ctx, accessTokenKey)
}

func (s *Store) SetAccessToken(ctx context.Context, token string) error {
	return s.set(ctx, accessTokenKey, token)
}

func (s *Store) ClearAccessToken(ctx context.Context) error {
	return s.del(ctx, accessTokenKey)
}

func (s *Store) RefreshToken(ctx context.Context) (string, error) {
	return s.get(ctx, refreshTokenKey)
}

func (s *Store) SetRefreshToken(ctx context.Context, token string) error {
	return s.set(ctx, refreshTokenKey, token)
}

func (s *Store) ClearRefreshToken(ctx context.Context) error {
	return s.del(ctx, refreshTokenKey)
}

// SetTokens replaces both keys in one MULTI/EXEC transaction. An empty token
// deletes its key.
func (s *Store) SetTokens(ctx context.Context, t session.Tokens) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for name, value := range map[string]string{accessTokenKey: t.AccessToken, refreshTokenKey: t.RefreshToken} {
			if value == "" {
				pipe.Del(ctx, s.key(name))
				continue
			}
			pipe.Set(ctx, s.key(name), value, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set tokens: %w", err)
	}
	return nil
}
