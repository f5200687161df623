// Package auth holds the access token the agent uploads with. The token is
// produced by an external login flow and handed over as a JSON file.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/oauth2"
)

// ErrNoCredentials is returned when no usable token is on file.
var ErrNoCredentials = errors.New("auth: no credentials")

// Credentials is the on-disk form: an OAuth2 token plus the account it
// belongs to.
type Credentials struct {
	oauth2.Token
	UserID string `json:"user_id,omitempty"`
}

// FileStore serves credentials from a JSON file and implements
// oauth2.TokenSource.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu    sync.RWMutex
	creds *Credentials
}

// NewFileStore returns a store for path. Call Load to read it.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: path, logger: logger}
}

// Path returns the credentials file location.
func (s *FileStore) Path() string { return s.path }

// Load rereads the file. A missing file clears the cached credentials and
// is not an error.
func (s *FileStore) Load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.set(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading credentials: %w", err)
	}

	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("corrupt credentials file (delete %s to log in again): %w", s.path, err)
	}
	if c.AccessToken == "" {
		s.set(nil)
		return nil
	}
	s.set(&c)
	return nil
}

// Save writes c atomically and updates the cache.
func (s *FileStore) Save(c Credentials) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating auth directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling credentials: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("saving credentials: %w", err)
	}
	s.set(&c)
	return nil
}

// Clear removes the credentials file.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing credentials: %w", err)
	}
	s.set(nil)
	return nil
}

// Token returns the cached token, or ErrNoCredentials when there is none
// or it has expired. There is no refresh; the login flow owns that.
func (s *FileStore) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return nil, ErrNoCredentials
	}
	tok := s.creds.Token
	if !tok.Valid() {
		return nil, fmt.Errorf("%w: token expired at %s", ErrNoCredentials, tok.Expiry.Format("2006-01-02 15:04"))
	}
	return &tok, nil
}

// UserID returns the account id of the cached credentials, or "".
func (s *FileStore) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return ""
	}
	return s.creds.UserID
}

func (s *FileStore) set(c *Credentials) {
	s.mu.Lock()
	s.creds = c
	s.mu.Unlock()
}

// Watch reloads the credentials whenever the file changes, until ctx is
// cancelled. The parent directory is watched so that atomic replacement and
// first creation are both seen.
func (s *FileStore) Watch(ctx context.Context) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating auth directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	name := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				if err := s.Load(); err != nil {
					s.logger.Warn("credentials reload failed", "err", err)
					continue
				}
				s.logger.Info("credentials reloaded", "authenticated", s.hasToken())
			}

		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Debug("credentials watcher error", "err", werr)
		}
	}
}

func (s *FileStore) hasToken() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds != nil
}
