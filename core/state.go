package core

import (
	"errors"
	"fmt"
)

// State is a step of the request dispatcher
type State int

const (
	StateStart State = iota
	StateResolving
	StateBeforeHooks
	StateInvoking
	StateAfterHooks
	StateDone
	StateFaulted
)

var stateNames = [...]string{
	StateStart:       "start",
	StateResolving:   "resolving",
	StateBeforeHooks: "before-hooks",
	StateInvoking:    "invoking",
	StateAfterHooks:  "after-hooks",
	StateDone:        "done",
	StateFaulted:     "faulted",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Error definitions
var (
	ErrRequestCanceled = errors.New("request canceled")
	ErrNoResponse      = errors.New("dispatcher produced no response")
)

// FaultError is a failure raised while the dispatcher was in State
type FaultError struct {
	State State
	Err   error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("fault while %s: %v", e.State, e.Err)
}

func (e *FaultError) Unwrap() error {
	return e.Err
}

// PanicError is a recovered panic
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it was an error
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
