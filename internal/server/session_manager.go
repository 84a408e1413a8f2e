package server

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/michaelbrown/mentor/internal/sandbox"
	"github.com/michaelbrown/mentor/internal/suggest"
)

// ActiveSession is one learner's workspace: the latest run and the
// orchestrator that turns runs into suggestions.
type ActiveSession struct {
	ID           string
	CreatedAt    time.Time
	Orchestrator *suggest.Orchestrator

	runMu     sync.Mutex // one run at a time per session
	mu        sync.Mutex
	code      string
	last      *sandbox.Result
	published uint64
}

// sessionView is the JSON snapshot of a session.
type sessionView struct {
	ID          string               `json:"id"`
	CreatedAt   time.Time            `json:"created_at"`
	Code        string               `json:"code,omitempty"`
	Analyzing   bool                 `json:"analyzing"`
	Generation  uint64               `json:"generation"`
	Published   uint64               `json:"published_generation"`
	Suggestions []suggest.Suggestion `json:"suggestions"`
	Result      *sandbox.Result      `json:"result,omitempty"`
}

// Run executes code and starts a suggestion cycle for it. It returns the
// result and the cycle's generation.
func (as *ActiveSession) Run(engine *sandbox.Engine, code string) (sandbox.Result, uint64) {
	as.runMu.Lock()
	defer as.runMu.Unlock()

	res := engine.Execute(code)
	as.mu.Lock()
	as.code = code
	as.last = &res
	as.mu.Unlock()

	// A heuristic cycle publishes before this returns, through onPublish.
	gen := as.Orchestrator.OnExecutionCompleted(code, res.Errors)
	return res, gen
}

func (as *ActiveSession) onPublish(gen uint64, _ []suggest.Suggestion) {
	as.mu.Lock()
	defer as.mu.Unlock()
	if gen > as.published {
		as.published = gen
	}
}

// View returns a point-in-time snapshot.
func (as *ActiveSession) View() sessionView {
	o := as.Orchestrator
	v := sessionView{
		ID:          as.ID,
		CreatedAt:   as.CreatedAt,
		Analyzing:   o.Analyzing(),
		Generation:  o.Generation(),
		Suggestions: o.Suggestions(),
	}

	as.mu.Lock()
	defer as.mu.Unlock()
	v.Code = as.code
	v.Published = as.published
	if as.last != nil {
		res := *as.last
		v.Result = &res
	}
	return v
}

// SessionManager tracks the live sessions of the web server.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*ActiveSession
	newOrch  func() *suggest.Orchestrator
}

// NewSessionManager creates a new SessionManager. newOrch builds the
// orchestrator each session gets.
func NewSessionManager(newOrch func() *suggest.Orchestrator) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*ActiveSession),
		newOrch:  newOrch,
	}
}

// Create starts a new empty session.
func (sm *SessionManager) Create() *ActiveSession {
	as := &ActiveSession{
		ID:           uuid.New().String(),
		CreatedAt:    time.Now().UTC(),
		Orchestrator: sm.newOrch(),
	}
	as.Orchestrator.OnPublish = as.onPublish

	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.sessions[as.ID] = as
	return as
}

// Get returns an active session if it exists.
func (sm *SessionManager) Get(sessionID string) (*ActiveSession, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	as, ok := sm.sessions[sessionID]
	return as, ok
}

// List returns all sessions, oldest first.
func (sm *SessionManager) List() []*ActiveSession {
	sm.mu.RLock()
	out := make([]*ActiveSession, 0, len(sm.sessions))
	for _, as := range sm.sessions {
		out = append(out, as)
	}
	sm.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Remove removes a session and cancels any in-flight suggestion cycle.
func (sm *SessionManager) Remove(sessionID string) bool {
	sm.mu.Lock()
	as, ok := sm.sessions[sessionID]
	delete(sm.sessions, sessionID)
	sm.mu.Unlock()

	if ok {
		as.Orchestrator.Close()
	}
	return ok
}

// CloseAll cancels all sessions.
func (sm *SessionManager) CloseAll() {
	sm.mu.Lock()
	sessions := sm.sessions
	sm.sessions = make(map[string]*ActiveSession)
	sm.mu.Unlock()

	for _, as := range sessions {
		as.Orchestrator.Close()
	}
}
