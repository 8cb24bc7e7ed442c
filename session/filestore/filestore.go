// Package filestore persists the session tokens in a JSON file so they
// survive process restarts, and can follow changes made by other processes.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-biteui-client/session"
)

var (
	_ session.TokenStore = (*Store)(nil)
	_ session.PairStore  = (*Store)(nil)
)

type document struct {
	AccessToken  string `json:"biteui.accessToken,omitempty"`
	RefreshToken string `json:"biteui.refreshToken,omitempty"`
}

type Store struct {
	path string
	log  zerolog.Logger

	mu  sync.RWMutex
	doc document
}

type Option func(*Store)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// Open loads the token file at path, creating its directory if needed. A
// missing file is an empty session.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	s := &Store{path: filepath.Clean(path), log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return nil, fmt.Errorf("creating token directory: %w", err)
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Path() string {
	return s.path
}

// Reload replaces the cached tokens with the file contents.
func (s *Store) Reload() error {
	doc, err := s.read()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	return nil
}

func (s *Store) read() (document, error) {
	var doc document
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("reading token file: %w", err)
	}
	if len(b) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return doc, fmt.Errorf("decoding token file: %w", err)
	}
	return doc, nil
}

// update applies fn to the cached document and persists the result. The
// cache is only changed when the write succeeds.
func (s *Store) update(fn func(*document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.doc
	fn(&next)
	if err := s.write(next); err != nil {
		return err
	}
	s.doc = next
	return nil
}

func (s *Store) write(doc document) error {
	if doc == (document{}) {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing token file: %w", err)
		}
		return nil
	}

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding token file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".tokens-*.json")
	if err != nil {
		return fmt.Errorf("creating temp token file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp token file: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp token file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing token file: %w", err)
	}
	return nil
}

func (s *Store) AccessToken(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.AccessToken, nil
}

func (s *Store) SetAccessToken(_ context.Context, token string) error {
	return s.update(func(d *document) { d.AccessToken = token })
}

func (s *Store) ClearAccessToken(ctx context.Context) error {
	return s.SetAccessToken(ctx, "")
}

func (s *Store) RefreshToken(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.RefreshToken, nil
}

func (s *Store) SetRefreshToken(_ context.Context, token string) error {
	return s.update(func(d *document) { d.RefreshToken = token })
}

func (s *Store) ClearRefreshToken(ctx context.Context) error {
	return s.SetRefreshToken(ctx, "")
}

// SetTokens replaces both tokens with a single file write.
func (s *Store) SetTokens(_ context.Context, t session.Tokens) error {
	return s.update(func(d *document) {
		*d = document{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken}
	})
}

// Watch reloads the cache whenever the token file changes on disk. The
// watcher is registered before Watch returns; the returned channel receives
// a value after each reload and is closed when ctx is done.
func (s *Store) Watch(ctx context.Context) (<-chan struct{}, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	// The directory is watched since the file itself is replaced by rename.
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watching token directory: %w", err)
	}

	changed := make(chan struct{}, 1)
	go func() {
		defer close(changed)
		defer func() {
			_ = w.Close()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn().Err(err).Str("path", s.path).Msg("token file watcher error")
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != s.path {
					continue
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if err := s.Reload(); err != nil {
					s.log.Warn().Err(err).Str("path", s.path).Msg("reloading token file")
					continue
				}
				select {
				case changed <- struct{}{}:
				default:
				}
			}
		}
	}()
	return changed, nil
}
