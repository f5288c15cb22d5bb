// Package server wires the HTTP surface onto the session coordinators.
package server

import (
	"context"
	"sync"

	"careercatalyst-backend/internal/session"
)

// Manager resolves a Coordinator per profile, constructing each one lazily on
// first use so restored state loads exactly once per process.
type Manager struct {
	factory func(ctx context.Context, profileID string) (*session.Coordinator, error)

	mu     sync.Mutex
	coords map[string]*session.Coordinator
}

// NewManager constructs a Manager around a coordinator factory.
func NewManager(factory func(ctx context.Context, profileID string) (*session.Coordinator, error)) *Manager {
	return &Manager{
		factory: factory,
		coords:  make(map[string]*session.Coordinator),
	}
}

// Coordinator returns the coordinator for profileID, creating it if needed.
func (m *Manager) Coordinator(ctx context.Context, profileID string) (*session.Coordinator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if coord, ok := m.coords[profileID]; ok {
		return coord, nil
	}
	coord, err := m.factory(ctx, profileID)
	if err != nil {
		return nil, err
	}
	m.coords[profileID] = coord
	return coord, nil
}

// Evict drops the cached coordinator for profileID. The next request rebuilds
// it from the store.
func (m *Manager) Evict(profileID string) {
	m.mu.Lock()
	delete(m.coords, profileID)
	m.mu.Unlock()
}
