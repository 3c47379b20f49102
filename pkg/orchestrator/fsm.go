package orchestrator

import (
	"sync"
	"time"
)

// State enumerates the per-turn machine of the orchestration loop.
type State int

const (
	StateAwaitingUser State = iota
	StateAwaitingModel
	StateExecutingCalls
	StateDone
	StateFailed
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case StateAwaitingUser:
		return "AWAITING_USER"
	case StateAwaitingModel:
		return "AWAITING_MODEL"
	case StateExecutingCalls:
		return "EXECUTING_CALLS"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// StateChange represents a state transition event.
type StateChange struct {
	FromState State
	ToState   State
	Timestamp time.Time
	Reason    string
}

// StateListener observes orchestrator state changes.
type StateListener interface {
	OnStateChange(event StateChange)
}

// stateMachine guards the turn lifecycle with validated transitions.
type stateMachine struct {
	mu           sync.RWMutex
	currentState State
	listeners    []StateListener
}

func newStateMachine() *stateMachine {
	return &stateMachine{currentState: StateAwaitingUser}
}

func (sm *stateMachine) State() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.currentState
}

// transitionValid checks if a state transition is allowed (lock held).
func (sm *stateMachine) transitionValid(from, to State) bool {
	validTransitions := map[State][]State{
		StateAwaitingUser:   {StateAwaitingModel},
		StateAwaitingModel:  {StateExecutingCalls, StateDone, StateFailed},
		StateExecutingCalls: {StateAwaitingModel, StateFailed},
		StateDone:           {StateAwaitingUser},
		StateFailed:         {StateAwaitingUser},
	}

	allowed, exists := validTransitions[from]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves to a new state with validation.
func (sm *stateMachine) Transition(state State, reason string) error {
	sm.mu.Lock()

	if !sm.transitionValid(sm.currentState, state) {
		sm.mu.Unlock()
		return &InvalidTransitionError{From: sm.currentState, To: state}
	}

	oldState := sm.currentState
	sm.currentState = state

	event := StateChange{
		FromState: oldState,
		ToState:   state,
		Timestamp: time.Now(),
		Reason:    reason,
	}
	listeners := make([]StateListener, len(sm.listeners))
	copy(listeners, sm.listeners)
	sm.mu.Unlock()

	// Notify outside the lock so listeners may query State().
	for _, listener := range listeners {
		listener.OnStateChange(event)
	}
	return nil
}

// AddListener registers a listener for state change events.
func (sm *stateMachine) AddListener(listener StateListener) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.listeners = append(sm.listeners, listener)
}

// InvalidTransitionError represents an invalid state transition attempt.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return "invalid state transition from " + e.From.String() + " to " + e.To.String()
}
