// Package workflow drives the booking submission dialog: form input,
// validation, conflict confirmation and save, as a per-user state machine.
package workflow

import (
	"sync"
	"time"

	"stuga/internal/models"
)

// State represents the current state of a booking submission cycle.
type State string

const (
	StateIdle            State = "idle"
	StateFormOpen        State = "form_open"
	StateValidating      State = "validating"
	StateConflictPending State = "conflict_pending"
	StateSaving          State = "saving"
)

// Form holds the values a user has entered for a new booking.
type Form struct {
	Name          string
	StartDate     time.Time
	EndDate       time.Time
	ArrivalTime   string
	DepartureTime string
	Guests        int
}

// Session is one user's booking dialog.
type Session struct {
	UserID    string
	State     State
	Form      Form
	Conflict  *models.Booking // set while a double-booking confirmation is pending
	StartedAt time.Time
	UpdatedAt time.Time
	mu        sync.Mutex
}

// NewSession creates a session in FormOpen with form defaults: name
// prefilled from the user, dates empty, one guest.
func NewSession(user *models.User) *Session {
	now := time.Now()
	return &Session{
		UserID:    user.ID,
		State:     StateFormOpen,
		Form:      Form{Name: user.Name, Guests: 1},
		StartedAt: now,
		UpdatedAt: now,
	}
}

// SetState updates the session state.
func (s *Session) SetState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = state
	s.UpdatedAt = time.Now()
}

// GetState returns the current state.
func (s *Session) GetState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State
}

// IsExpired checks if the session has been idle past the timeout.
func (s *Session) IsExpired(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.UpdatedAt) > timeout
}

// resetForm restores form defaults after a completed cycle, keeping the
// prefilled name.
func (s *Session) resetForm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Form = Form{Name: s.Form.Name, Guests: 1}
	s.Conflict = nil
}

// SessionStore manages dialog sessions keyed by user.
type SessionStore struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	timeout  time.Duration
}

// NewSessionStore creates a session store. Sessions idle longer than
// timeout are treated as abandoned.
func NewSessionStore(timeout time.Duration) *SessionStore {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		timeout:  timeout,
	}
}

// Get returns the user's session, or nil.
func (ss *SessionStore) Get(userID string) *Session {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return ss.sessions[userID]
}

// GetOrCreate returns the existing session or starts a fresh one.
func (ss *SessionStore) GetOrCreate(user *models.User) *Session {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	session, ok := ss.sessions[user.ID]
	if ok && !session.IsExpired(ss.timeout) {
		return session
	}

	session = NewSession(user)
	ss.sessions[user.ID] = session
	return session
}

// Delete removes a session.
func (ss *SessionStore) Delete(userID string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, userID)
}

// Cleanup removes expired sessions and returns how many were dropped.
func (ss *SessionStore) Cleanup() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	removed := 0
	for userID, session := range ss.sessions {
		if session.IsExpired(ss.timeout) {
			delete(ss.sessions, userID)
			removed++
		}
	}
	return removed
}

// FSM holds the allowed state transitions of the booking dialog.
type FSM struct {
	transitions map[State][]State
}

// NewFSM creates the dialog FSM. Cancel is allowed from any non-terminal
// state and leads back to FormOpen or Idle.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[State][]State{
			StateIdle:            {StateFormOpen},
			StateFormOpen:        {StateValidating, StateIdle},
			StateValidating:      {StateConflictPending, StateSaving, StateFormOpen},
			StateConflictPending: {StateSaving, StateFormOpen, StateIdle},
			StateSaving:          {StateIdle},
		},
	}
}

// CanTransition checks if a transition is allowed.
func (f *FSM) CanTransition(from, to State) bool {
	for _, s := range f.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition updates the session state if the transition is allowed.
func (f *FSM) Transition(session *Session, to State) bool {
	if f.CanTransition(session.GetState(), to) {
		session.SetState(to)
		return true
	}
	return false
}
