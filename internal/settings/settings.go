// Package settings persists user-adjustable runtime state for wakepid.
package settings

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// CurrentSchemaVersion is the current version of the state schema.
const CurrentSchemaVersion = 1

// State contains runtime state shared between wakepid restarts.
// Persisted to ~/.local/share/wakepi/state.json
type State struct {
	// Master (white noise) volume, 0-100
	Volume int `json:"volume"`

	// Version for compatibility
	SchemaVersion int `json:"schema_version"`
}

// DefaultState returns a new State with default values.
func DefaultState() *State {
	return &State{
		Volume:        50,
		SchemaVersion: CurrentSchemaVersion,
	}
}

// DataDir returns the path to the wakepi data directory.
// Uses XDG_DATA_HOME or defaults to ~/.local/share/wakepi.
func DataDir() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "wakepi"), nil
}

// StatePath returns the path to the state file.
func StatePath() (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "state.json"), nil
}

// Store provides thread-safe access to persisted state.
type Store struct {
	mu     sync.Mutex
	logger *slog.Logger
	path   string
	state  *State
}

// NewStore opens the state file at path, creating default state if the file
// doesn't exist or is corrupted.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		logger: logger,
		path:   path,
	}

	state, err := s.load()
	if err != nil {
		return nil, err
	}
	s.state = state

	return s, nil
}

// load reads the state file from disk.
func (s *Store) load() (*State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultState(), nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		// If the file is corrupted, fall back to default state
		s.logger.Warn("state file corrupted, using defaults", "path", s.path, "error", err)
		return DefaultState(), nil
	}

	if state.SchemaVersion == 0 {
		state.SchemaVersion = CurrentSchemaVersion
	}

	return &state, nil
}

// save writes the state to disk atomically. Caller must hold s.mu.
func (s *Store) save() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Write atomically via temp file
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	return os.Rename(tmpPath, s.path)
}

// Volume returns the persisted master volume.
func (s *Store) Volume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Volume
}

// SetVolume updates the persisted master volume and writes it to disk.
func (s *Store) SetVolume(volume int) error {
	if volume < 0 || volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", volume)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Volume = volume
	return s.save()
}
