package sessions

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/SofiaChang/shopping-agent/internal/agent"
	"github.com/SofiaChang/shopping-agent/internal/models"
)

// ErrNotFound is returned for unknown or already-closed session IDs.
var ErrNotFound = errors.New("session not found")

// AgentFactory builds one agent (with its own scraper and driver) per
// conversation session.
type AgentFactory func() (*agent.Agent, error)

type session struct {
	mu    sync.Mutex
	agent *agent.Agent
}

// Manager maps conversation session IDs to agents. The agent core is single
// threaded, so each session carries a lock that serializes its turns.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session
	factory  AgentFactory
	logger   *slog.Logger
}

func NewManager(factory AgentFactory, logger *slog.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*session),
		factory:  factory,
		logger:   logger.With("component", "sessions"),
	}
}

// Create opens a new session and returns its ID.
func (m *Manager) Create() (string, error) {
	a, err := m.factory()
	if err != nil {
		return "", err
	}

	id := uuid.New().String()
	m.mu.Lock()
	m.sessions[id] = &session{agent: a}
	m.mu.Unlock()

	m.logger.Info("session created", "session_id", id)
	return id, nil
}

// Handle runs one turn on the session's agent, serialized per session.
func (m *Manager) Handle(ctx context.Context, id, input string) (models.SearchResult, models.Constraints, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return models.SearchResult{}, models.Constraints{}, ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	result, err := s.agent.HandleRequest(ctx, input)
	return result, s.agent.Constraints(), err
}

// Close releases a session's agent and forgets the session.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.agent.Close(); err != nil {
		m.logger.Error("failed to close session agent", "session_id", id, "error", err)
		return err
	}
	m.logger.Info("session closed", "session_id", id)
	return nil
}

// CloseAll releases every live session, used during shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.Close(id); err != nil && !errors.Is(err, ErrNotFound) {
			m.logger.Warn("session close during shutdown failed", "session_id", id, "error", err)
		}
	}
}
