// Package state persists the supervisor snapshot. Saves replace the file
// atomically so a power cut mid-write leaves either the old or the new
// snapshot on disk, never a torn one.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SnapshotVersion is the current version of the snapshot file format.
const SnapshotVersion = 1

// ErrNoSnapshot is returned by Load when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no state snapshot")

// Snapshot is the persisted supervisor state.
type Snapshot struct {
	// Version is the snapshot file format version.
	Version int `json:"version"`

	// SavedAt is when the snapshot was written.
	SavedAt time.Time `json:"saved_at"`

	// Session identifies the boot that wrote the snapshot.
	Session string `json:"session,omitempty"`

	// Iteration counts main loop passes since boot.
	Iteration uint64 `json:"iteration"`

	// State is the supervisor state name.
	State string `json:"state"`

	PiraOK  bool     `json:"pira_ok"`
	Voltage *float64 `json:"voltage,omitempty"`

	// Frames is how many PiraSmart tags the last read cycle decoded.
	Frames int `json:"frames"`

	// Timers holds the PiraSmart values that have been reported, keyed by tag.
	Timers map[string]uint32 `json:"timers,omitempty"`

	Charging        bool   `json:"charging"`
	ChargingSamples []bool `json:"charging_samples,omitempty"`
	Debug           bool   `json:"debug"`

	ShutdownRequested bool   `json:"shutdown_requested"`
	Hold              string `json:"hold,omitempty"`

	Modules []string `json:"modules,omitempty"`
}

// Store manages the snapshot file.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store writing to path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the snapshot file path.
func (s *Store) Path() string {
	return s.path
}

// Save writes the snapshot via a temp file in the same directory followed by
// a rename. Saving the same snapshot twice yields the same file content.
func (s *Store) Save(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	snap.Version = SnapshotVersion
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close state: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to chmod state: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace state: %w", err)
	}

	return syncDir(dir)
}

// Load reads the snapshot. Returns ErrNoSnapshot if the file doesn't exist.
func (s *Store) Load() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	return snap, nil
}

// Clear removes the snapshot file.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// syncDir flushes the directory entry so the rename survives power loss.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("failed to sync state directory: %w", err)
	}
	return nil
}
