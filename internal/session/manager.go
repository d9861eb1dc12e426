package session

import (
	"sync"

	"docchat/internal/config"
)

// Manager is the id-to-session registry used by the HTTP server. Only the
// registry itself is shared between requests; sessions own their index and
// history exclusively.
type Manager struct {
	cfg       *config.Config
	embedder  Embedder
	generator Generator

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(cfg *config.Config, embedder Embedder, generator Generator) *Manager {
	return &Manager{
		cfg:       cfg,
		embedder:  embedder,
		generator: generator,
		sessions:  make(map[string]*Session),
	}
}

// Create registers a new empty session.
func (m *Manager) Create() (*Session, error) {
	s, err := New(m.cfg, m.embedder, m.generator)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s, nil
}

// Get looks up a session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete removes a session and everything it owns.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}
