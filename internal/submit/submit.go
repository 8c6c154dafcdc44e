// Package submit tracks one in-flight player intent at a time. Submitting
// locks further submissions until the server answers; a failure rolls back
// to the state captured at submission.
package submit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/looplab/fsm"
)

// ErrSubmissionPending is returned when an intent is already in flight.
var ErrSubmissionPending = errors.New("submit: submission pending")

// Lifecycle states
const (
	StateIdle       = "idle"
	StatePending    = "pending"
	StateApplied    = "applied"
	StateRolledBack = "rolled_back"
)

// Lifecycle events
const (
	EventSubmit  = "submit"
	EventSucceed = "succeed"
	EventFail    = "fail"
	EventReset   = "reset"
)

// Outcome reports how a submission ended. On rollback Snapshot holds the
// state captured when it was submitted.
type Outcome[S any] struct {
	Intent   string
	State    string
	Snapshot S
	Err      error
}

// RolledBack reports whether the caller should restore Snapshot
func (o Outcome[S]) RolledBack() bool {
	return o.State == StateRolledBack
}

// Submitter runs the lifecycle Idle -> Pending -> Applied | RolledBack
type Submitter[S any] struct {
	mu       sync.Mutex
	sm       *fsm.FSM
	intent   string
	snapshot S
	logger   *log.Logger
}

func New[S any](logger *log.Logger) *Submitter[S] {
	s := &Submitter[S]{logger: logger.WithPrefix("submit")}
	s.sm = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: EventSubmit, Src: []string{StateIdle, StateApplied, StateRolledBack}, Dst: StatePending},
			{Name: EventSucceed, Src: []string{StatePending}, Dst: StateApplied},
			{Name: EventFail, Src: []string{StatePending}, Dst: StateRolledBack},
			{Name: EventReset, Src: []string{StateApplied, StateRolledBack}, Dst: StateIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) { s.enterState(e) },
		},
	)
	return s
}

func (s *Submitter[S]) enterState(e *fsm.Event) {
	s.logger.Debug("Submission state", "intent", s.intent, "from", e.Src, "to", e.Dst)
}

// State returns the current lifecycle state
func (s *Submitter[S]) State() string {
	return s.sm.Current()
}

// Pending reports whether an intent is in flight
func (s *Submitter[S]) Pending() bool {
	return s.sm.Is(StatePending)
}

// Submit marks intent pending, captures snapshot and calls send. A second
// Submit while one is pending fails with ErrSubmissionPending without
// calling send. The returned outcome carries send's error, if any.
func (s *Submitter[S]) Submit(ctx context.Context, intent string, snapshot S, send func(context.Context) error) Outcome[S] {
	// Transitions must complete even if ctx is cancelled mid-send.
	fsmCtx := context.WithoutCancel(ctx)

	s.mu.Lock()
	if s.sm.Is(StatePending) {
		current := s.intent
		s.mu.Unlock()
		return Outcome[S]{Intent: intent, State: StatePending, Err: fmt.Errorf("%w: %s", ErrSubmissionPending, current)}
	}
	s.intent = intent
	s.snapshot = snapshot
	if err := s.sm.Event(fsmCtx, EventSubmit); err != nil {
		s.mu.Unlock()
		return Outcome[S]{Intent: intent, State: s.sm.Current(), Err: err}
	}
	s.mu.Unlock()

	err := send(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		_ = s.sm.Event(fsmCtx, EventFail)
		s.logger.Warn("Submission failed", "intent", intent, "error", err)
		return Outcome[S]{Intent: intent, State: StateRolledBack, Snapshot: s.snapshot, Err: err}
	}
	_ = s.sm.Event(fsmCtx, EventSucceed)
	s.logger.Debug("Submission accepted", "intent", intent)
	var zero S
	s.snapshot = zero
	return Outcome[S]{Intent: intent, State: StateApplied}
}

// Reset returns a finished lifecycle to Idle. It does nothing while a
// submission is pending.
func (s *Submitter[S]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sm.Can(EventReset) {
		_ = s.sm.Event(context.Background(), EventReset)
	}
}
