// Package windowstate persists the host window's last position and size.
package windowstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultRecency is how long a saved record stays usable.
const DefaultRecency = 10 * time.Minute

// ErrStale reports a record older than the recency window.
var ErrStale = errors.New("window state is stale")

// Rect is a window placement in screen coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether the rect has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

type record struct {
	Rect
	SavedAt time.Time `json:"saved_at"`
}

// Store reads and writes one state file.
type Store struct {
	path    string
	recency time.Duration
	now     func() time.Time
}

// NewStore returns a store for path. recency <= 0 uses DefaultRecency.
func NewStore(path string, recency time.Duration) *Store {
	if recency <= 0 {
		recency = DefaultRecency
	}
	return &Store{path: path, recency: recency, now: time.Now}
}

// Path returns the state file path.
func (s *Store) Path() string {
	return s.path
}

// Load returns the saved placement. A missing file yields os.ErrNotExist;
// a record older than the recency window yields ErrStale.
func (s *Store) Load() (Rect, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Rect{}, err
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Rect{}, fmt.Errorf("failed to parse window state %s: %w", s.path, err)
	}
	if s.now().Sub(rec.SavedAt) > s.recency {
		return Rect{}, ErrStale
	}
	return rec.Rect, nil
}

// LoadOr returns the saved placement, or fallback when none is usable.
func (s *Store) LoadOr(fallback Rect) Rect {
	r, err := s.Load()
	if err != nil || r.Empty() {
		return fallback
	}
	return r
}

// Save writes r stamped with the current time. The file is replaced
// atomically.
func (s *Store) Save(r Rect) error {
	data, err := json.MarshalIndent(record{Rect: r, SavedAt: s.now().UTC()}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create window state dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write window state: %w", err)
	}
	return os.Rename(tmp, s.path)
}
