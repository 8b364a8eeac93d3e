package session

import (
	"context"
	"sync"
	"time"

	"codearena/internal/common"
	"codearena/internal/platform/executor"

	"github.com/google/uuid"
)

// Manager tracks the open sessions of this process, one controller per
// session ID. A participant has at most one live session per contest;
// re-entering replaces the previous one.
type Manager struct {
	contests     ContestSource
	submissions  SubmissionSource
	exec         executor.Client
	store        Store
	loc          *time.Location
	tickInterval time.Duration
	exitGrace    time.Duration

	mu       sync.Mutex
	sessions map[string]*Controller // session ID -> controller
	byOwner  map[ownerKey]string    // (contest, email) -> session ID
}

type ownerKey struct {
	contestID string
	email     string
}

func NewManager(contests ContestSource, submissions SubmissionSource, exec executor.Client, store Store, loc *time.Location, tickInterval, exitGrace time.Duration) *Manager {
	return &Manager{
		contests:     contests,
		submissions:  submissions,
		exec:         exec,
		store:        store,
		loc:          loc,
		tickInterval: tickInterval,
		exitGrace:    exitGrace,
		sessions:     map[string]*Controller{},
		byOwner:      map[ownerKey]string{},
	}
}

// Open builds a controller, lets it attempt entry, and registers it under a
// fresh session ID. Entry refusal propagates unchanged and leaves no
// session behind.
func (m *Manager) Open(ctx context.Context, contestID, email, token string, hooks Hooks) (string, *Controller, error) {
	ctrl := NewController(Config{
		ContestID:    contestID,
		Email:        email,
		Token:        token,
		Contests:     m.contests,
		Submissions:  m.submissions,
		Executor:     m.exec,
		Store:        m.store,
		Hooks:        hooks,
		Location:     m.loc,
		TickInterval: m.tickInterval,
		ExitGrace:    m.exitGrace,
	})
	if err := ctrl.Enter(ctx); err != nil {
		return "", nil, err
	}

	id := uuid.NewString()
	owner := ownerKey{contestID: contestID, email: email}

	m.mu.Lock()
	if prevID, ok := m.byOwner[owner]; ok {
		if prev, ok := m.sessions[prevID]; ok {
			delete(m.sessions, prevID)
			defer prev.Close()
		}
	}
	m.sessions[id] = ctrl
	m.byOwner[owner] = id
	m.mu.Unlock()

	return id, ctrl, nil
}

// Get returns the controller for a session ID, or ErrSessionClosed when it
// no longer exists.
func (m *Manager) Get(sessionID string) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ctrl, ok := m.sessions[sessionID]
	if !ok {
		return nil, common.ErrSessionClosed
	}
	return ctrl, nil
}

// Release closes and forgets a session. Unknown IDs are a no-op; the
// session may already have forced itself out.
func (m *Manager) Release(sessionID string) {
	m.mu.Lock()
	ctrl, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
		for owner, id := range m.byOwner {
			if id == sessionID {
				delete(m.byOwner, owner)
				break
			}
		}
	}
	m.mu.Unlock()
	if ok {
		ctrl.Close()
	}
}

// Shutdown closes every live session, used on process exit.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	controllers := make([]*Controller, 0, len(m.sessions))
	for _, ctrl := range m.sessions {
		controllers = append(controllers, ctrl)
	}
	m.sessions = map[string]*Controller{}
	m.byOwner = map[ownerKey]string{}
	m.mu.Unlock()

	for _, ctrl := range controllers {
		ctrl.Close()
	}
}
