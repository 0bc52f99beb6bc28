// Package tokens owns the persisted session token: a single file-backed
// slot holding the bearer credential between runs.
package tokens

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/jwt"
)

type Store interface {
	Has() bool
	Get() (string, bool)
	Set(token string) error
	Remove() error
	// IsValid checks the embedded expiry against the local clock. It fails
	// closed: a missing token, undecodable JWT, or absent exp claim is false,
	// never an error. The signature is opaque to the client; the backend
	// re-checks it on every request.
	IsValid() bool
	Expiration() (time.Time, bool)
}

var _ Store = (*FileStore)(nil)

// FileStore keeps the token in a single file, written 0600.
type FileStore struct {
	path string
	mu   sync.Mutex

	now func() time.Time
}

func NewFileStore(path string) *FileStore {
	return &FileStore{
		path: path,
		now:  time.Now,
	}
}

// DefaultPath places the token under the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving config dir: %w", err)
	}
	return filepath.Join(dir, "sidequest", "token"), nil
}

func (s *FileStore) Has() bool {
	_, ok := s.Get()
	return ok
}

func (s *FileStore) Get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.With("error", err.Error()).Warn("failed to read token file")
		}
		return "", false
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", false
	}
	return token, true
}

func (s *FileStore) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating token dir: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(token), 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}

// Remove clears the slot. Removing an absent token is not an error.
func (s *FileStore) Remove() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}

func (s *FileStore) IsValid() bool {
	raw, ok := s.Get()
	if !ok {
		return false
	}

	// Parse without signature verification or claim validation; validity
	// here is purely the expiry timestamp against the local clock.
	tok, err := jwt.Parse([]byte(raw))
	if err != nil {
		slog.With("error", err.Error()).Warn("stored token is not a decodable JWT")
		return false
	}
	if _, ok := tok.Get(jwt.ExpirationKey); !ok {
		slog.Warn("stored token is missing the exp claim")
		return false
	}
	return tok.Expiration().After(s.now())
}

func (s *FileStore) Expiration() (time.Time, bool) {
	raw, ok := s.Get()
	if !ok {
		return time.Time{}, false
	}
	tok, err := jwt.Parse([]byte(raw))
	if err != nil {
		return time.Time{}, false
	}
	if _, ok := tok.Get(jwt.ExpirationKey); !ok {
		return time.Time{}, false
	}
	return tok.Expiration(), true
}
