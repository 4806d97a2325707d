package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"stuga/internal/conflict"
	"stuga/internal/metrics"
	"stuga/internal/models"
	"stuga/internal/store"
)

// ValidationError reports a form problem back to the user; the form stays
// open and nothing is persisted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidationError checks if err is a form validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ErrSaveInFlight is returned when a submission arrives while the previous
// one is still saving; the form's submit action is expected to be disabled
// during Saving, so this is a backstop, not a normal path.
var ErrSaveInFlight = errors.New("a save is already in flight")

// ErrNoConflictPending is returned when a double-booking decision arrives
// without a pending conflict.
var ErrNoConflictPending = errors.New("no conflict awaiting a decision")

// BookingService is the slice of the booking store the workflow needs.
type BookingService interface {
	List(ctx context.Context) ([]models.Booking, bool, error)
	Create(ctx context.Context, booking models.Booking) (*models.Booking, error)
}

// Outcome describes where a submission cycle ended up.
type Outcome struct {
	State    State
	Booking  *models.Booking // set when the booking was saved
	Conflict *models.Booking // set when a double-booking confirmation is pending
	Warning  string          // retryable warning (e.g. saved locally, remote unreachable)
}

// Workflow orchestrates form input, conflict detection and persistence.
// A single submission cycle ends in Idle; the workflow is re-entrant.
type Workflow struct {
	bookings BookingService
	sessions *SessionStore
	fsm      *FSM
	logger   zerolog.Logger
}

func New(bookings BookingService, sessions *SessionStore, logger *zerolog.Logger) *Workflow {
	return &Workflow{
		bookings: bookings,
		sessions: sessions,
		fsm:      NewFSM(),
		logger:   logger.With().Str("component", "workflow").Logger(),
	}
}

// OpenForm starts (or resumes) the user's booking dialog.
func (w *Workflow) OpenForm(user *models.User) *Session {
	return w.sessions.GetOrCreate(user)
}

// Cancel abandons the dialog; the next OpenForm starts fresh.
func (w *Workflow) Cancel(session *Session) {
	session.SetState(StateIdle)
	w.sessions.Delete(session.UserID)
}

// Submit validates the form and either saves directly or parks the session
// in ConflictPending for an explicit double-booking decision.
func (w *Workflow) Submit(ctx context.Context, session *Session, user *models.User, form Form) (*Outcome, error) {
	if session.GetState() == StateSaving {
		return nil, ErrSaveInFlight
	}
	if !w.fsm.Transition(session, StateValidating) {
		return nil, fmt.Errorf("cannot submit from state %s", session.GetState())
	}

	if err := validate(form); err != nil {
		session.SetState(StateFormOpen)
		session.mu.Lock()
		session.Form = form
		session.mu.Unlock()
		return nil, err
	}

	// Conflict check runs against the freshest available list; a stale
	// cached list is still checked rather than skipping detection.
	existing, _, err := w.bookings.List(ctx)
	if err != nil {
		session.SetState(StateFormOpen)
		return nil, err
	}

	candidate := models.DateRange{Start: form.StartDate, End: form.EndDate}
	if hit := conflict.FindConflict(candidate, existing); hit != nil {
		metrics.IncConflictDetected()
		session.mu.Lock()
		session.Form = form
		session.Conflict = hit
		session.mu.Unlock()
		session.SetState(StateConflictPending)

		w.logger.Info().
			Str("user_id", user.ID).
			Str("conflicts_with", hit.ID).
			Msg("booking conflict surfaced to user")
		return &Outcome{State: StateConflictPending, Conflict: hit}, nil
	}

	session.mu.Lock()
	session.Form = form
	session.mu.Unlock()
	return w.save(ctx, session, user, form, false)
}

// AcceptDoubleBooking saves the pending form with the double-booking flag
// set. Both bookings remain listed.
func (w *Workflow) AcceptDoubleBooking(ctx context.Context, session *Session, user *models.User) (*Outcome, error) {
	if session.GetState() != StateConflictPending {
		return nil, ErrNoConflictPending
	}
	session.mu.Lock()
	form := session.Form
	session.mu.Unlock()
	return w.save(ctx, session, user, form, true)
}

// DeclineDoubleBooking returns the user to the form to adjust dates.
func (w *Workflow) DeclineDoubleBooking(session *Session) error {
	if session.GetState() != StateConflictPending {
		return ErrNoConflictPending
	}
	session.mu.Lock()
	session.Conflict = nil
	session.mu.Unlock()
	session.SetState(StateFormOpen)
	return nil
}

func (w *Workflow) save(ctx context.Context, session *Session, user *models.User, form Form, isDouble bool) (*Outcome, error) {
	if !w.fsm.Transition(session, StateSaving) {
		return nil, ErrSaveInFlight
	}

	booking := models.Booking{
		Name:            form.Name,
		StartDate:       form.StartDate,
		EndDate:         form.EndDate,
		ArrivalTime:     form.ArrivalTime,
		DepartureTime:   form.DepartureTime,
		Guests:          form.Guests,
		UserID:          user.ID,
		UserColor:       user.Color,
		IsDoubleBooking: isDouble,
	}

	created, err := w.bookings.Create(ctx, booking)

	// The cycle ends in Idle whether the save was fully remote or locally
	// acknowledged; only a hard failure returns to the form.
	warning := ""
	if err != nil {
		if created == nil || !errors.Is(err, store.ErrRemoteUnavailable) {
			session.SetState(StateFormOpen)
			return nil, err
		}
		warning = "saved locally; the shared calendar will catch up when the connection returns"
	}

	session.SetState(StateIdle)
	session.resetForm()
	w.sessions.Delete(session.UserID)

	return &Outcome{State: StateIdle, Booking: created, Warning: warning}, nil
}

func validate(form Form) error {
	if form.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if form.StartDate.IsZero() {
		return &ValidationError{Field: "start_date", Message: "start date is required"}
	}
	if form.EndDate.IsZero() {
		return &ValidationError{Field: "end_date", Message: "end date is required"}
	}
	if !(models.DateRange{Start: form.StartDate, End: form.EndDate}).IsValid() {
		return &ValidationError{Field: "end_date", Message: "end date must not be before start date"}
	}
	if form.Guests < 1 {
		return &ValidationError{Field: "guests", Message: "at least one guest is required"}
	}
	return nil
}
