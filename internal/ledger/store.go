package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// Store owns the ledger's durable JSON document. All access goes through
// the mutex: a read-modify-write under concurrent webhook delivery would
// otherwise silently discard the first writer's increment.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store for the ledger file at path. The file is
// created lazily on first write.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the ledger file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the current ledger. A missing or unparsable file yields
// the empty ledger rather than an error: stale display beats a dead
// dashboard.
func (s *Store) Load() *Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// Update applies fn to the current ledger and persists the result. The
// whole read-modify-write holds the lock, and a failed flush fails the
// update.
func (s *Store) Update(fn func(*Ledger) error) (*Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.loadLocked()
	if err := fn(l); err != nil {
		return nil, err
	}
	if err := s.saveLocked(l); err != nil {
		return nil, err
	}
	return l, nil
}

// Ping verifies the ledger's directory is writable. Used by the health
// endpoint.
func (s *Store) Ping() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".health-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func (s *Store) loadLocked() *Ledger {
	empty := &Ledger{Models: make(map[string]*ModelUsage)}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", s.path).Msg("ledger: read failed, starting empty")
		}
		return empty
	}

	var l Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("ledger: corrupt state, starting empty")
		return empty
	}
	if l.Models == nil {
		l.Models = make(map[string]*ModelUsage)
	}
	return &l
}

func (s *Store) saveLocked(l *Ledger) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return fmt.Errorf("ledger dir: %w", err)
	}
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling ledger: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("writing ledger: %w", err)
	}
	return nil
}
