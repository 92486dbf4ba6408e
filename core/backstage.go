package core

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/najoast/stagehand/input"
)

// BackstageAtom is implemented by root atoms, usually by embedding
// Backstage in a user type.
type BackstageAtom interface {
	Atom
	AsBackstage() *Backstage
}

// Backstage is the root of one atom tree. It owns the service locator and
// is the unit a module host rebuilds on reload.
type Backstage struct {
	Node

	instance uuid.UUID
	locator  Locator
	log      *zerolog.Logger
}

// NewBackstage returns an empty root.
func NewBackstage() *Backstage {
	return &Backstage{}
}

// AsBackstage returns the backstage itself.
func (b *Backstage) AsBackstage() *Backstage {
	return b
}

// prepare assigns the instance identity before the first initialization.
func (b *Backstage) prepare() {
	if b.instance == uuid.Nil {
		b.instance = uuid.New()
	}
}

// InstanceID identifies this backstage instance. It is assigned when the
// root is initialized and differs across reload generations.
func (b *Backstage) InstanceID() uuid.UUID {
	return b.instance
}

// SetLogger sets the logger used by the backstage and its services.
func (b *Backstage) SetLogger(l zerolog.Logger) {
	l = l.With().Str("component", "backstage").Logger()
	b.log = &l
}

// Logger returns the backstage logger, a no-op logger if none was set.
func (b *Backstage) Logger() zerolog.Logger {
	if b.log == nil {
		return zerolog.Nop()
	}
	return *b.log
}

// Services returns the locator owned by this backstage.
func (b *Backstage) Services() *Locator {
	return &b.locator
}

// Reaper returns the deferred destruction queue, or nil once the backstage
// has been destroyed.
func (b *Backstage) Reaper() *Reaper {
	r, err := Resolve[*Reaper](b)
	if err != nil {
		return nil
	}
	return r
}

// Input returns the input router service.
func (b *Backstage) Input() *input.Router {
	return MustResolve[*input.Router](b)
}

// Plans returns the wiring plan cache shared by atoms in this tree.
func (b *Backstage) Plans() *PlanCache {
	return MustResolve[*PlanCache](b)
}

// Frame runs one logical tick: the reaper sweep, held input, then the
// update chains and timers of the whole tree. It returns how many atoms
// were reaped.
func (b *Backstage) Frame(dt float64) int {
	if !b.IsValid() {
		return 0
	}
	reaped := 0
	if r := b.Reaper(); r != nil {
		reaped = r.Reap()
	}
	if router, ok := Lookup[*input.Router](b); ok {
		router.ProcessHeld(dt)
	}

	root := b.this
	if root == nil {
		root = b
	}
	ProcessLogicFrame(root, dt)
	return reaped
}
