package viewer

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/pagelens/pagelens/pkg/ocr"
)

// Manager tracks the live viewer sessions by id.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	bus      *EventBus
}

// NewManager creates a session manager publishing onto bus.
func NewManager(bus *EventBus) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		bus:      bus,
	}
}

// Create starts a new empty session with the given default engine.
func (m *Manager) Create(engine ocr.EngineID) *Session {
	s := NewSession(uuid.New().String(), engine, m.bus)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	return s
}

// Get resolves a session id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	return s, nil
}

// Close shuts one session down and forgets it.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("session not found: %s", id)
	}
	return s.Close()
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll shuts every session down. Used at process shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
