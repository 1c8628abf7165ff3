package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const snapshotVersion = 1

// snapshot is the on-disk format of the identity database.
type snapshot struct {
	Version    int        `json:"version"`
	SavedAt    time.Time  `json:"saved_at"`
	Identities []Identity `json:"identities"`
}

// FileStore is a Store that snapshots the entire identity set to a JSON
// file on every mutation. Full rewrite instead of incremental writes:
// enrollment is rare next to recognition, and a single consistent file
// beats write amplification concerns at roster scale.
type FileStore struct {
	mu         sync.RWMutex
	path       string
	identities map[string]Identity
}

// NewFileStore opens (or creates) a file-backed identity store at path.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:       path,
		identities: make(map[string]Identity),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read identity snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to parse identity snapshot %s: %w", s.path, err)
	}
	for _, ident := range snap.Identities {
		s.identities[ident.ID] = ident
	}
	return nil
}

// save writes the whole identity set atomically (tmp file + rename).
// Callers must hold the write lock.
func (s *FileStore) save() error {
	snap := snapshot{
		Version: snapshotVersion,
		SavedAt: time.Now(),
	}
	for _, ident := range s.identities {
		snap.Identities = append(snap.Identities, ident)
	}
	sort.Slice(snap.Identities, func(i, j int) bool {
		return snap.Identities[i].ID < snap.Identities[j].ID
	})

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal identity snapshot: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write identity snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace identity snapshot: %w", err)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, id string) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ident, ok := s.identities[id]
	if !ok {
		return nil, nil
	}
	return &ident, nil
}

func (s *FileStore) Put(ctx context.Context, ident Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, existed := s.identities[ident.ID]
	s.identities[ident.ID] = ident
	if err := s.save(); err != nil {
		// Keep memory and disk consistent on failure.
		if existed {
			s.identities[ident.ID] = previous
		} else {
			delete(s.identities, ident.ID)
		}
		return err
	}
	return nil
}

func (s *FileStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ident, ok := s.identities[id]
	if !ok {
		return false, nil
	}
	delete(s.identities, id)
	if err := s.save(); err != nil {
		s.identities[id] = ident
		return false, err
	}
	return true, nil
}

func (s *FileStore) List(ctx context.Context) ([]Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Identity, 0, len(s.identities))
	for _, ident := range s.identities {
		out = append(out, ident)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Count returns the number of enrolled identities.
func (s *FileStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.identities)
}
