// Package session holds the signed-in user's identity and credentials. A
// Session is passed explicitly to the remote client; nothing reads it from
// global state.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNoSession is returned when no credentials are stored.
var ErrNoSession = errors.New("not signed in")

// Session is the credentials file contents.
type Session struct {
	// OwnerKey scopes every owned collection; it is the account email.
	OwnerKey    string    `yaml:"owner_key"`
	UserID      string    `yaml:"user_id"`
	DisplayName string    `yaml:"display_name,omitempty"`
	Token       string    `yaml:"token"`
	ExpiresAt   time.Time `yaml:"expires_at"`
}

// Valid reports whether the session has a token that has not yet expired.
func (s *Session) Valid(now time.Time) bool {
	return s != nil && s.Token != "" && s.OwnerKey != "" && (s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt))
}

// DefaultPath is the credentials file under the user's config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "brainbox", "credentials.yaml")
}

// Load reads a session from path. A missing file yields ErrNoSession.
func Load(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	var s Session
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse credentials %s: %w", path, err)
	}
	if s.Token == "" {
		return nil, ErrNoSession
	}
	return &s, nil
}

// Save writes the session to path, readable only by the current user.
func Save(path string, s *Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

// Clear removes the credentials file. Clearing a missing file is not an error.
func Clear(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}
	return nil
}
