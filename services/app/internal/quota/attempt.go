package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"

	apperrors "github.com/bookineo/bookineo/pkg/errors"
	"github.com/bookineo/bookineo/pkg/subscription"
	"github.com/bookineo/bookineo/services/app/internal/gateway"
)

// State of a creation attempt.
type State int

const (
	Idle State = iota
	Checking
	Allowed
	Submitting
	Succeeded
	Denied
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Checking:
		return "checking"
	case Allowed:
		return "allowed"
	case Submitting:
		return "submitting"
	case Succeeded:
		return "succeeded"
	case Denied:
		return "denied"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrInvalidTransition is returned when a step is taken out of order.
var ErrInvalidTransition = errors.New("quota: invalid attempt transition")

// Inserter creates a resource.
type Inserter interface {
	InsertResource(ctx context.Context, kind subscription.Kind, payload gateway.BoxInput) (*gateway.Box, error)
}

// Attempt drives a single creation through
// Idle -> Checking -> Allowed -> Submitting -> Succeeded, or to Denied.
// A failed check or insert returns it to Idle with the error kept in Err.
// Denied and Succeeded are final.
type Attempt struct {
	enforcer *Enforcer
	inserter Inserter
	kind     subscription.Kind

	mu       sync.Mutex
	state    State
	decision Decision
	err      error
}

func NewAttempt(enforcer *Enforcer, inserter Inserter, kind subscription.Kind) *Attempt {
	return &Attempt{enforcer: enforcer, inserter: inserter, kind: kind}
}

func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Err is the error from the last failed step, if any.
func (a *Attempt) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

func (a *Attempt) Decision() Decision {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.decision
}

// Check runs the quota check for identity.
func (a *Attempt) Check(ctx context.Context, identity *gateway.Identity) (Decision, error) {
	if err := a.transition(Idle, Checking); err != nil {
		return Decision{}, err
	}

	d, err := a.enforcer.CheckQuota(ctx, identity, a.kind)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.state = Idle
		a.err = err
		return Decision{}, err
	}
	a.decision = d
	a.err = nil
	if d.Allowed {
		a.state = Allowed
	} else {
		a.state = Denied
	}
	return d, nil
}

// Submit inserts payload. It is only valid after an allowing Check; a
// denied attempt fails with a QUOTA_EXCEEDED error.
func (a *Attempt) Submit(ctx context.Context, payload gateway.BoxInput) (*gateway.Box, error) {
	if err := a.transition(Allowed, Submitting); err != nil {
		if a.State() == Denied {
			return nil, errors.Join(apperrors.QuotaExceeded(a.Decision().Message()), err)
		}
		return nil, err
	}

	box, err := a.inserter.InsertResource(ctx, a.kind, payload)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.state = Idle
		a.err = err
		return nil, err
	}
	a.state = Succeeded
	return box, nil
}

// Abort returns an allowed attempt to Idle without inserting.
func (a *Attempt) Abort(cause error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == Allowed {
		a.state = Idle
		a.err = cause
	}
}

func (a *Attempt) transition(from, to State) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != from {
		return fmt.Errorf("%w: %s -> %s from %s", ErrInvalidTransition, from, to, a.state)
	}
	a.state = to
	return nil
}
