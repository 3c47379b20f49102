// Package session maps session ids to independent conversation and
// orchestrator instances. The function registry is shared read-only;
// nothing else crosses session boundaries.
package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/robit-man/gemma3-evaluation-app/pkg/convo"
	"github.com/robit-man/gemma3-evaluation-app/pkg/orchestrator"
)

// Session is one conversation lifetime.
type Session struct {
	ID           string
	Conversation *convo.Conversation
	Orchestrator *orchestrator.Orchestrator
}

// Factory builds the orchestrator owning a freshly created conversation.
type Factory func(conv *convo.Conversation) *orchestrator.Orchestrator

type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	factory  Factory
}

func NewManager(factory Factory) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		factory:  factory,
	}
}

// GetOrCreate returns the session for id, creating it on first use. An
// empty id mints a new session with a generated id.
func (m *Manager) GetOrCreate(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	if s, ok := m.sessions[id]; ok {
		return s
	}
	conv := convo.New()
	s := &Session{
		ID:           id,
		Conversation: conv,
		Orchestrator: m.factory(conv),
	}
	m.sessions[id] = s
	return s
}

// Get returns an existing session, if any.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Reset drops a session; the next GetOrCreate starts a fresh history.
func (m *Manager) Reset(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
