package core

import (
	"errors"
	"fmt"
)

// Tree errors
var (
	ErrAlreadyAdopted     = errors.New("atom already has a parent")
	ErrCycle              = errors.New("adoption would create a cycle")
	ErrNestedBackstage    = errors.New("a backstage cannot be adopted as a child")
	ErrDestroyed          = errors.New("atom is destroyed")
	ErrAlreadyInitialized = errors.New("atom already initialized")
	ErrNotRoot            = errors.New("atom has a parent")
	ErrTeardownStalled    = errors.New("child count did not decrease during teardown")
)

// Wiring errors
var (
	ErrComponentType = errors.New("invalid component field")
	ErrSignalType    = errors.New("invalid signal field")
	ErrTimerMode     = errors.New("timer must set exactly one of frames or seconds")
	ErrUnknownMethod = errors.New("declared method not found")
	ErrHookSignature = errors.New("hook method has the wrong signature")
	ErrNoBackstage   = errors.New("input bindings require a backstage")
)

// Service locator errors
var (
	ErrServiceExists      = errors.New("service already provided")
	ErrServiceNotFound    = errors.New("no provider for service")
	ErrBackstageDestroyed = errors.New("backstage is destroyed")
)

// WiringError reports a malformed declaration on an atom type. It is
// returned from initialization and aborts the atom's subtree.
type WiringError struct {
	Type   string
	Member string
	Err    error
}

func (e *WiringError) Error() string {
	if e.Member != "" {
		return fmt.Sprintf("wiring %s.%s: %v", e.Type, e.Member, e.Err)
	}
	return fmt.Sprintf("wiring %s: %v", e.Type, e.Err)
}

func (e *WiringError) Unwrap() error {
	return e.Err
}
