package core

import "github.com/najoast/stagehand/input"

// Declarer is implemented by atom types that declare hooks, timers and
// input bindings. Declare is called once per type on a zero value, so it
// must not depend on instance state.
type Declarer interface {
	Declare() Declaration
}

// Declaration lists the methods the resolver binds on each instance.
// Methods named OnInit, OnUpdate and OnDestroy are picked up without being
// listed.
type Declaration struct {
	// Init methods take no arguments.
	Init []string
	// Update methods take either no arguments or the frame delta. Both
	// shapes may be mixed and all of them run each tick.
	Update []string
	// Destroy methods take no arguments.
	Destroy []string

	Timers []TimerDecl
	Inputs []InputDecl
}

// TimerDecl binds a method to a periodic timer. Exactly one of Frames and
// Seconds must be set.
type TimerDecl struct {
	Method  string
	Frames  int
	Seconds float64
}

func (d TimerDecl) spec() TimerSpec {
	return TimerSpec{Frames: d.Frames, Seconds: d.Seconds}
}

// InputDecl binds a method to a logical action. The method shape must
// match Arity. Held declarations on one instance that share a Group are
// invoked once per frame with their summed contributions; Group defaults
// to the method name.
type InputDecl struct {
	Method   string
	Action   string
	Phase    input.Phase
	Arity    input.Arity
	Group    string
	Template input.Vec3
}

func (d InputDecl) group() string {
	if d.Group == "" {
		return d.Method
	}
	return d.Group
}

func (d InputDecl) template() input.Vec3 {
	if d.Template == (input.Vec3{}) {
		return input.One
	}
	return d.Template
}

// hooks are the merged callback chains of one atom.
type hooks struct {
	init    []func()
	update  []func(dt float64)
	destroy []func()
}

func (h *hooks) runInit() {
	for _, fn := range h.init {
		fn()
	}
}

func (h *hooks) runUpdate(dt float64) {
	for _, fn := range h.update {
		fn(dt)
	}
}

func (h *hooks) runDestroy() {
	for _, fn := range h.destroy {
		fn()
	}
}
