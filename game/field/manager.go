package field

import (
	"sync"

	"go.uber.org/zap"
)

// Manager owns the active fields of this channel.
type Manager struct {
	mu     sync.RWMutex
	fields map[int32]*Field
	logger *zap.Logger
}

// NewManager creates an empty Manager.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		fields: make(map[int32]*Field),
		logger: logger,
	}
}

// GetOrCreate returns the field for fieldID, creating it if needed.
func (m *Manager) GetOrCreate(fieldID int32) *Field {
	m.mu.RLock()
	f, ok := m.fields[fieldID]
	m.mu.RUnlock()
	if ok {
		return f
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok = m.fields[fieldID]; ok {
		return f
	}
	f = newField(fieldID, m.logger)
	m.fields[fieldID] = f
	m.logger.Info("field created", zap.Int32("field_id", fieldID))
	return f
}

// Get returns the field for fieldID, or nil if it does not exist.
func (m *Manager) Get(fieldID int32) *Field {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fields[fieldID]
}

// Release drops fieldID when nobody stands in it and it hosts no mini-room.
// Hired merchants keep a field alive after every player has left.
func (m *Manager) Release(fieldID int32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.fields[fieldID]
	if !ok || f.PlayerCount() > 0 || f.MiniRoomCount() > 0 {
		return false
	}
	delete(m.fields, fieldID)
	m.logger.Info("field released", zap.Int32("field_id", fieldID))
	return true
}

// Count returns the number of active fields.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.fields)
}
