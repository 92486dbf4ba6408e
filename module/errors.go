package module

import (
	"errors"
	"fmt"
)

// Load errors
var (
	ErrNoContract        = errors.New("no export implements the contract")
	ErrAmbiguousContract = errors.New("more than one export implements the contract")
	ErrArtifactMissing   = errors.New("module artifact not found")
	ErrNilBackstage      = errors.New("module entry produced no backstage")
	ErrUnknownModule     = errors.New("module not registered")
)

// Host errors
var (
	ErrInvalidOptions  = errors.New("invalid module options")
	ErrNothingToSwap   = errors.New("no build is awaiting swap")
	ErrStaleGeneration = errors.New("reference belongs to an unloaded generation")
	ErrHostStopped     = errors.New("module host stopped")
	ErrNoBuilder       = errors.New("module has no builder")
	ErrCannotReopen    = errors.New("loader cannot reopen an artifact")
)

// LoadError reports a load that left the module without a tree. The host
// keeps running with no root for that module.
type LoadError struct {
	Module     string
	Generation uint64
	Err        error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load module %s generation %d: %v", e.Module, e.Generation, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// BuildError carries the build tool output.
type BuildError struct {
	Module string
	Output string
	Err    error
}

func (e *BuildError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("build module %s: %v", e.Module, e.Err)
	}
	return fmt.Sprintf("build module %s: %v\n%s", e.Module, e.Err, e.Output)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// GuestPanic is a panic recovered from guest code at the host boundary.
type GuestPanic struct {
	Module string
	Value  any
	Stack  []byte
}

func (e *GuestPanic) Error() string {
	return fmt.Sprintf("module %s panicked: %v", e.Module, e.Value)
}
