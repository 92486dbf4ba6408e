package engine

import (
	"github.com/najoast/stagehand/core"
	"github.com/najoast/stagehand/input"
	"github.com/najoast/stagehand/windowstate"
)

// InputSink receives raw device events from a window.
type InputSink interface {
	KeyDown(k input.Key)
	KeyUp(k input.Key)
	ButtonDown(b input.MouseButton)
	ButtonUp(b input.MouseButton)
	Move(axis input.MouseAxis, value float64)
}

// Window is the host window.
type Window interface {
	Bounds() windowstate.Rect
	SetBounds(r windowstate.Rect)
	SetInputSink(sink InputSink)
}

// Renderer draws registered backstages.
type Renderer interface {
	Initialize(w Window) error
	// HotInitialize re-attaches to the window after a module swap without
	// reinitializing the backend.
	HotInitialize(w Window) error
	Register(b *core.Backstage)
	Unregister(b *core.Backstage)
	SetGameplayContext(ctx GameplayContext)
	// DisconnectCallbacks drops every callback that points into guest code.
	DisconnectCallbacks()
}

// Subsystem is a module-level collaborator such as physics.
type Subsystem interface {
	Initialize() error
	Register(b *core.Backstage)
	Unregister(b *core.Backstage)
}

// Supervisor is the part of the engine exposed to guest code. Guests
// resolve it from their backstage with core.Resolve[engine.Supervisor].
type Supervisor interface {
	// ReloadUserModule requests a rebuild and swap of the calling module.
	ReloadUserModule()
	// SetGameplayContext makes b the gameplay context.
	SetGameplayContext(b *core.Backstage)
	// SetGameplayTimeScale scales the frame delta of gameplay trees.
	SetGameplayTimeScale(scale float64)
}

// GameplayContext names the backstage that currently runs gameplay.
type GameplayContext struct {
	Module    string
	Backstage *core.Backstage
}

// Empty reports whether no gameplay tree is set.
func (g GameplayContext) Empty() bool {
	return g.Module == ""
}

type nopRenderer struct{}

func (nopRenderer) Initialize(Window) error { return nil }
func (nopRenderer) HotInitialize(Window) error { return nil }
func (nopRenderer) Register(*core.Backstage) {}
func (nopRenderer) Unregister(*core.Backstage) {}
func (nopRenderer) SetGameplayContext(GameplayContext) {}
func (nopRenderer) DisconnectCallbacks() {}
