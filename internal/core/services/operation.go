package services

import (
	"context"
	"sync"
	"time"

	"github.com/castn/sourceswitch/internal/core/domain"
	"github.com/castn/sourceswitch/internal/core/ports/driving"
	"github.com/google/uuid"
)

// Ensure Operation implements driving.SwitchOperation
var _ driving.SwitchOperation = (*Operation)(nil)

// eventBuffer holds every transition an operation can make
const eventBuffer = 8

// Operation tracks one change-source request through its state machine:
//
//	idle -> searching -> selecting -> fetching_chapters -> completed
//	                                                    \-> failed
//	any state before fetching_chapters -> cancelled
//
// Manual switches go from idle straight to selecting.
type Operation struct {
	id     string
	bookID string
	kind   domain.SwitchKind

	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time

	mu       sync.Mutex
	state    domain.SwitchState
	outcome  *domain.SwitchOutcome
	events   chan domain.SwitchEvent
	done     chan struct{}
	onFinish func(*domain.SwitchOutcome)
}

func newOperation(ctx context.Context, bookID string, kind domain.SwitchKind, now func() time.Time) *Operation {
	ctx, cancel := context.WithCancel(ctx)
	op := &Operation{
		id:     uuid.NewString(),
		bookID: bookID,
		kind:   kind,
		ctx:    ctx,
		cancel: cancel,
		now:    now,
		state:  domain.SwitchStateIdle,
		events: make(chan domain.SwitchEvent, eventBuffer),
		done:   make(chan struct{}),
	}
	op.emitLocked()
	return op
}

// ID returns the operation identifier
func (o *Operation) ID() string { return o.id }

// BookID returns the shelf ID of the book being switched
func (o *Operation) BookID() string { return o.bookID }

// Kind returns manual or auto
func (o *Operation) Kind() domain.SwitchKind { return o.kind }

// State returns the current state
func (o *Operation) State() domain.SwitchState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Events streams state transitions. The channel is buffered for the whole
// life of the operation and closed after the terminal state.
func (o *Operation) Events() <-chan domain.SwitchEvent {
	return o.events
}

// Done is closed once the operation reached a terminal state
func (o *Operation) Done() <-chan struct{} {
	return o.done
}

// Wait blocks until the outcome is known or ctx is done
func (o *Operation) Wait(ctx context.Context) (*domain.SwitchOutcome, error) {
	select {
	case <-o.done:
		return o.Outcome(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Outcome returns the terminal outcome, or nil while still running
func (o *Operation) Outcome() *domain.SwitchOutcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.outcome
}

// Cancel cancels the operation if it has not started fetching chapters.
func (o *Operation) Cancel() bool {
	return o.cancelWith(context.Canceled)
}

// cancelWith moves a cancellable operation to cancelled with cause as reason
func (o *Operation) cancelWith(cause error) bool {
	o.mu.Lock()
	if !o.state.Cancellable() {
		o.mu.Unlock()
		return false
	}
	outcome := &domain.SwitchOutcome{
		OperationID: o.id,
		BookID:      o.bookID,
		Kind:        o.kind,
		State:       domain.SwitchStateCancelled,
		Reason:      cause.Error(),
		Err:         cause,
	}
	o.finishLocked(outcome)
	hook := o.onFinish
	o.mu.Unlock()

	o.cancel()
	if hook != nil {
		hook(outcome)
	}
	return true
}

// transition moves to a non-terminal state. Returns false when the
// operation already ended (typically because it was cancelled).
func (o *Operation) transition(to domain.SwitchState) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.IsTerminal() {
		return false
	}
	o.state = to
	o.emitLocked()
	return true
}

// finish records a terminal outcome. Returns false if one was already set.
func (o *Operation) finish(outcome *domain.SwitchOutcome) bool {
	o.mu.Lock()
	if o.state.IsTerminal() {
		o.mu.Unlock()
		return false
	}
	outcome.OperationID = o.id
	outcome.BookID = o.bookID
	outcome.Kind = o.kind
	o.finishLocked(outcome)
	hook := o.onFinish
	o.mu.Unlock()

	o.cancel()
	if hook != nil {
		hook(outcome)
	}
	return true
}

func (o *Operation) finishLocked(outcome *domain.SwitchOutcome) {
	o.state = outcome.State
	o.outcome = outcome
	o.emitLocked()
	close(o.events)
	close(o.done)
}

func (o *Operation) emitLocked() {
	select {
	case o.events <- domain.SwitchEvent{
		OperationID: o.id,
		BookID:      o.bookID,
		State:       o.state,
		At:          o.now(),
	}:
	default:
	}
}
