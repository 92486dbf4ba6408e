package engine

import (
	"github.com/najoast/stagehand/input"
)

// The engine is the window's input sink. Device events arrive on the
// window's goroutine and are forwarded to the router of every running tree
// on the next frame. Each module receives them through its host, so a
// panicking handler pauses only that module.

func (e *Engine) KeyDown(k input.Key) {
	e.routeInput(func(r *input.Router) { r.KeyDown(k) })
}

func (e *Engine) KeyUp(k input.Key) {
	e.routeInput(func(r *input.Router) { r.KeyUp(k) })
}

func (e *Engine) ButtonDown(b input.MouseButton) {
	e.routeInput(func(r *input.Router) { r.ButtonDown(b) })
}

func (e *Engine) ButtonUp(b input.MouseButton) {
	e.routeInput(func(r *input.Router) { r.ButtonUp(b) })
}

func (e *Engine) Move(axis input.MouseAxis, value float64) {
	e.routeInput(func(r *input.Router) { r.Move(axis, value) })
}

func (e *Engine) routeInput(fn func(r *input.Router)) {
	e.Post(func() {
		for _, h := range e.hosts {
			if err := h.Deliver(fn); err != nil {
				e.log.Warn().Str("module", h.Name()).Msg("input handler panicked")
			}
		}
	})
}
