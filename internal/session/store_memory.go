package session

import (
	"context"
	"sync"
)

// MemoryStore keeps state slices in memory and is safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]map[string][]byte
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]map[string][]byte)}
}

// Load returns the stored slice or ErrNotFound.
func (s *MemoryStore) Load(ctx context.Context, profileID, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	slices, ok := s.profiles[profileID]
	if !ok {
		return nil, ErrNotFound
	}
	value, ok := slices[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Save overwrites the stored slice.
func (s *MemoryStore) Save(ctx context.Context, profileID, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	slices, ok := s.profiles[profileID]
	if !ok {
		slices = make(map[string][]byte)
		s.profiles[profileID] = slices
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	slices[key] = stored
	return nil
}

// Delete removes one slice. Deleting an absent slice is not an error.
func (s *MemoryStore) Delete(ctx context.Context, profileID, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices, ok := s.profiles[profileID]; ok {
		delete(slices, key)
	}
	return nil
}

// Reset removes every slice for the profile.
func (s *MemoryStore) Reset(ctx context.Context, profileID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, profileID)
	return nil
}

var _ Store = (*MemoryStore)(nil)
