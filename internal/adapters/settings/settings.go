// Package settings persists the user-editable documents of the overlay:
// manual identity overrides and voice-platform credentials. Both live as
// small JSON files in the per-user configuration directory.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/vaccie/valoverlay-discord/pkg/logger"
)

const (
	appDirName      = "ValorantOverlay"
	overridesFile   = "mapping.json"
	credentialsFile = "config.json"
)

// Credentials holds the voice-platform application credentials entered
// through the dashboard.
type Credentials struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	RedirectURI  string `json:"redirectUri"`
}

// Store reads and writes the settings documents. Access is serialized so
// dashboard writes and correlation-cycle reads never interleave.
type Store struct {
	mu  sync.Mutex
	dir string
	log logger.Logger
}

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithDataDir overrides the directory holding the settings files.
func WithDataDir(dir string) Option {
	return func(s *Store) {
		if dir != "" {
			s.dir = dir
		}
	}
}

// WithLogger sets the logger used by the store.
func WithLogger(log logger.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// NewStore creates a settings store rooted at the user configuration
// directory unless overridden.
func NewStore(opts ...Option) (*Store, error) {
	s := &Store{log: logger.Named("settings")}
	for _, opt := range opts {
		opt(s)
	}
	if s.dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("%w: locate config dir: %w", ErrRead, err)
		}
		s.dir = filepath.Join(base, appDirName)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", ErrWrite, s.dir, err)
	}
	return s, nil
}

// Overrides returns the manual identity overrides keyed by voice display
// name. A missing file yields an empty map.
func (s *Store) Overrides() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := map[string]string{}
	if err := s.read(overridesFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveOverrides replaces the overrides document.
func (s *Store) SaveOverrides(overrides map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if overrides == nil {
		overrides = map[string]string{}
	}
	return s.write(overridesFile, overrides)
}

// Credentials returns the stored voice-platform credentials. A missing
// file yields zero-value credentials.
func (s *Store) Credentials() (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var c Credentials
	if err := s.read(credentialsFile, &c); err != nil {
		return Credentials{}, err
	}
	return c, nil
}

// SaveCredentials replaces the credentials document.
func (s *Store) SaveCredentials(c Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.write(credentialsFile, c)
}

func (s *Store) read(name string, v any) error {
	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRead, name, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRead, name, err)
	}
	return nil
}

func (s *Store) write(name string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWrite, name, err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), raw, 0o644); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWrite, name, err)
	}
	s.log.Debug(context.Background(), "settings saved", logger.String("file", name))
	return nil
}
