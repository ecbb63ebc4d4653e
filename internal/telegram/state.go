package telegram

import (
	"sync"

	"github.com/digkill/productgenius/internal/models"
)

type SessionState int

const (
	StateIdle SessionState = iota
	StateAwaitingBusiness
	StateAwaitingStyle
	StateAwaitingQuality
	StateAwaitingPhoto
	StateAwaitingPrompt
)

// Session is the generation wizard of one chat.
type Session struct {
	State      SessionState
	Business   models.BusinessType
	Style      models.SceneStyle
	Quality    models.Quality
	Photo      []byte
	Generating bool
}

type StateManager struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

func NewStateManager() *StateManager {
	return &StateManager{
		sessions: make(map[int64]*Session),
	}
}

// Get returns a copy of the chat's session.
func (m *StateManager) Get(chatID int64) Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[chatID]; ok {
		return *session
	}
	return Session{State: StateIdle}
}

func (m *StateManager) Update(chatID int64, fn func(*Session)) Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[chatID]
	if !ok {
		session = &Session{State: StateIdle}
		m.sessions[chatID] = session
	}
	fn(session)
	return *session
}

// Reset clears the wizard but keeps the in-flight marker.
func (m *StateManager) Reset(chatID int64) {
	m.Update(chatID, func(s *Session) {
		*s = Session{State: StateIdle, Generating: s.Generating}
	})
}

// BeginGeneration marks the chat busy. It reports false if a generation is already outstanding.
func (m *StateManager) BeginGeneration(chatID int64) bool {
	started := false
	m.Update(chatID, func(s *Session) {
		if s.Generating {
			return
		}
		s.Generating = true
		started = true
	})
	return started
}

func (m *StateManager) EndGeneration(chatID int64) {
	m.Update(chatID, func(s *Session) {
		s.Generating = false
	})
}
