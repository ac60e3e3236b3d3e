// Package session persists the CLI login between invocations.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jkdigital/servicehub/internal/app/domain/account"
	"github.com/jkdigital/servicehub/internal/app/domain/ledger"
)

// ErrNoSession is returned when nobody is logged in or the token expired.
var ErrNoSession = errors.New("not logged in")

// Session is the stored login. Exactly one of User and Admin is set.
type Session struct {
	BaseURL   string           `json:"baseUrl"`
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expiresAt"`
	User      *account.Profile `json:"user,omitempty"`
	Admin     string           `json:"admin,omitempty"`
}

// IsAdmin reports whether the session belongs to an administrator.
func (s Session) IsAdmin() bool { return s.Admin != "" }

// Expired reports whether the token is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store reads and writes one session file.
type Store struct {
	path string
	now  func() time.Time
}

// NewStore returns a store backed by path.
func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// DefaultPath is servicehub/session.json under the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "servicehub", "session.json"), nil
}

// Path returns the session file location.
func (s *Store) Path() string { return s.path }

// Load returns the stored session, or ErrNoSession when there is none or it
// has expired.
func (s *Store) Load() (Session, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("read session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, fmt.Errorf("parse session %s: %w", s.path, err)
	}
	if sess.Token == "" || sess.Expired(s.now()) {
		return Session{}, ErrNoSession
	}
	return sess, nil
}

// Save writes sess with owner-only permissions, replacing the file
// atomically.
func (s *Store) Save(sess Session) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*")
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Clear removes the session file. A missing file is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// ApplyBalance records a wallet balance the server reported after a
// mutation so later commands show it without a refresh.
func (s *Store) ApplyBalance(balance float64) error {
	sess, err := s.Load()
	if err != nil {
		return err
	}
	if sess.User == nil {
		return nil
	}
	sess.User.WalletBalance = ledger.Round2(balance)
	return s.Save(sess)
}
