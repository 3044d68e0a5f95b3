// Package session persists the signed-in account between CLI invocations.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/maidige/consultation-admin/internal/domain/clinic"
	"github.com/maidige/consultation-admin/pkg/common/logger"
)

var (
	// ErrNotAuthenticated is returned when no valid session is stored.
	ErrNotAuthenticated = errors.New("not signed in")
	// ErrPermissionDenied is returned when the stored user lacks a permission.
	ErrPermissionDenied = errors.New("permission denied")
)

// DefaultPath returns the default session file location under the user's
// config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "consultadm", "session.json")
}

// State is the persisted session.
type State struct {
	Token   string       `json:"token"`
	User    *clinic.User `json:"user"`
	SavedAt time.Time    `json:"saved_at"`
}

// Store is a file-backed session. It is safe for concurrent use.
type Store struct {
	path string
	now  func() time.Time

	mu    sync.RWMutex
	state State

	logger *logger.Logger
}

// NewStore creates a Store at path and loads any existing session. A missing
// file is an empty session.
func NewStore(path string, logger *logger.Logger) (*Store, error) {
	if path == "" {
		path = DefaultPath()
	}
	s := &Store{
		path:   path,
		now:    time.Now,
		logger: logger.With("component", "session_store"),
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the session file location.
func (s *Store) Path() string { return s.path }

// Load reloads the session from disk.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.mu.Lock()
		s.state = State{}
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("read session %s: %w", s.path, err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("decode session %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	return nil
}

// Save persists token and user. The file is written with 0600 permissions
// and replaced atomically.
func (s *Store) Save(token string, user *clinic.User) error {
	st := State{Token: token, User: user, SavedAt: s.now().UTC()}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*")
	if err != nil {
		return fmt.Errorf("create session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod session file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}

	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	return nil
}

// Clear removes the stored session.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.state = State{}
	s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session %s: %w", s.path, err)
	}
	return nil
}

// ClearOnUnauthorized is installed as the API client's 401 hook.
func (s *Store) ClearOnUnauthorized(ctx context.Context) {
	if err := s.Clear(); err != nil {
		s.logger.Warn(ctx, "Failed to clear session after 401", "err", err)
		return
	}
	s.logger.Info(ctx, "Session expired, signed out")
}

// Token returns the stored bearer token, or "" when none is stored.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

// CurrentUser returns the stored user, or nil.
func (s *Store) CurrentUser() *clinic.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.User
}

// IsAuthenticated reports whether a token is stored and, when it is a JWT
// carrying an exp claim, not yet expired.
func (s *Store) IsAuthenticated() bool {
	tok := s.Token()
	if tok == "" {
		return false
	}
	exp, ok := tokenExpiry(tok)
	if !ok {
		return true
	}
	return s.now().Before(exp)
}

// ExpiresAt returns the token's expiry when it is a JWT with an exp claim.
func (s *Store) ExpiresAt() (time.Time, bool) {
	return tokenExpiry(s.Token())
}

// IsAdmin reports whether the stored user is an administrator.
func (s *Store) IsAdmin() bool { return s.CurrentUser().Admin() }

// HasPermission reports whether the stored user may perform action on
// subject.
func (s *Store) HasPermission(action, subject string) bool {
	return s.CurrentUser().HasPermission(action, subject)
}

// Require returns ErrNotAuthenticated or ErrPermissionDenied unless the
// session is valid and grants action on subject. An empty action only checks
// authentication.
func (s *Store) Require(action, subject string) error {
	if !s.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	if action == "" {
		return nil
	}
	if !s.HasPermission(action, subject) {
		return fmt.Errorf("%w: %s %s", ErrPermissionDenied, action, subject)
	}
	return nil
}

// RequireAdmin returns an error unless the session belongs to an
// administrator.
func (s *Store) RequireAdmin() error {
	if !s.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	if !s.IsAdmin() {
		return fmt.Errorf("%w: administrator only", ErrPermissionDenied)
	}
	return nil
}

// tokenExpiry reads the exp claim without verifying the signature; the
// server remains the authority on validity.
func tokenExpiry(tok string) (time.Time, bool) {
	if tok == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
