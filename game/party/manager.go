package party

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// IDAllocator hands out party ids. *cache.Sequence satisfies it.
type IDAllocator interface {
	Next(ctx context.Context) (int64, error)
}

// Manager owns the lifecycle of parties at the central server.
type Manager struct {
	mu      sync.RWMutex
	parties map[int32]*Party // partyID → Party
	ids     IDAllocator
	logger  *zap.Logger
}

// NewManager creates a new party Manager.
func NewManager(ids IDAllocator, logger *zap.Logger) *Manager {
	return &Manager{
		parties: make(map[int32]*Party),
		ids:     ids,
		logger:  logger,
	}
}

// Create allocates an id and registers a new party led by boss.
func (m *Manager) Create(ctx context.Context, boss RemoteUser) (*Party, error) {
	id, err := m.ids.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate party id: %w", err)
	}
	p := New(int32(id), boss)
	m.mu.Lock()
	m.parties[p.ID] = p
	m.mu.Unlock()
	m.logger.Info("party created",
		zap.Int32("party_id", p.ID),
		zap.Int32("boss_id", boss.CharID))
	return p, nil
}

// Get returns the party with the given id, or nil.
func (m *Manager) Get(partyID int32) *Party {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.parties[partyID]
}

// ByMember returns the party charID belongs to, or nil.
func (m *Manager) ByMember(charID int32) *Party {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.parties {
		if p.HasMember(charID) {
			return p
		}
	}
	return nil
}

// Remove unregisters p if it is still the registered party for its id.
func (m *Manager) Remove(p *Party) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.parties[p.ID]; !ok || cur != p {
		return false
	}
	delete(m.parties, p.ID)
	m.logger.Info("party removed", zap.Int32("party_id", p.ID))
	return true
}

// Count returns the number of live parties.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.parties)
}
