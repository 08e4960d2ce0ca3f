// Package store persists the notifier's network blacklist.
//
// Drivers:
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
//   - "file":   single JSON document replaced atomically
//   - "none":   persistence disabled
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrDisabled is returned by Load when persistence is turned off.
var ErrDisabled = errors.New("store disabled")

// Config selects the driver and location.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// backend is a persistence driver. Save replaces the whole set.
type backend interface {
	Load(ctx context.Context) ([]string, error)
	Save(ctx context.Context, ssids []string) error
	Close() error
}

// Store coalesces blacklist writes. Forced writes go straight to the
// backend; other writes are held until Flush.
type Store struct {
	b   backend
	log zerolog.Logger

	mu      sync.Mutex
	pending []string
	dirty   bool
	writes  int
}

// Open initializes the configured driver.
func Open(cfg Config, log zerolog.Logger) (*Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	var (
		b   backend
		err error
	)
	switch driver {
	case "", "none":
	case "file":
		b, err = openFile(cfg)
	case "sqlite", "sqlite3":
		b, err = openSQLite(cfg)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	return &Store{b: b, log: log}, nil
}

// Enabled reports whether a driver is configured.
func (s *Store) Enabled() bool {
	return s.b != nil
}

// Load returns the persisted SSIDs, sorted.
func (s *Store) Load(ctx context.Context) ([]string, error) {
	if s.b == nil {
		return nil, ErrDisabled
	}
	ssids, err := s.b.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load blacklist: %w", err)
	}
	return normalize(ssids), nil
}

// Persist records the full blacklist. With forceFlush the write happens
// now; otherwise it replaces any pending write and waits for Flush.
// It implements notifier.BlacklistStore.
func (s *Store) Persist(ssids []string, forceFlush bool) error {
	if s.b == nil {
		return nil
	}
	s.mu.Lock()
	s.pending = normalize(ssids)
	s.dirty = true
	s.mu.Unlock()

	if forceFlush {
		return s.Flush(context.Background())
	}
	return nil
}

// Flush writes the pending blacklist, if any.
func (s *Store) Flush(ctx context.Context) error {
	if s.b == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	if err := s.b.Save(ctx, s.pending); err != nil {
		return fmt.Errorf("save blacklist: %w", err)
	}
	s.dirty = false
	s.writes++
	s.log.Debug().Int("ssids", len(s.pending)).Msg("blacklist flushed")
	return nil
}

// Dirty reports whether a write is pending.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Writes returns how many backend writes have been made.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Close flushes pending writes and releases the backend.
func (s *Store) Close() error {
	if s.b == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	flushErr := s.Flush(ctx)
	closeErr := s.b.Close()
	return errors.Join(flushErr, closeErr)
}

// normalize trims, drops empties and duplicates, and sorts.
func normalize(ssids []string) []string {
	seen := make(map[string]struct{}, len(ssids))
	out := make([]string, 0, len(ssids))
	for _, s := range ssids {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
