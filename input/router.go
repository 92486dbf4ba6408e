package input

import (
	"fmt"
	"sync"
)

// Owner is the atom a handler belongs to.
type Owner interface {
	IsBeingDestroyed() bool
}

// BoundAction is one handler bound to an action. Held actions that share
// a Group are folded into a single call per frame.
type BoundAction struct {
	Owner    Owner
	Group    uint64
	Action   string
	Phase    Phase
	Template Vec3
	callback Callback
}

// Arity returns the handler shape.
func (b *BoundAction) Arity() Arity {
	return b.callback.arity
}

type heldGroup struct {
	id       uint64
	owner    Owner
	callback Callback
	members  []*BoundAction
}

// Router dispatches raw input to bound handlers. It is owned by one
// backstage; two backstages never share bindings.
type Router struct {
	mu sync.Mutex

	context   *Context
	held      map[RawInput]bool
	modifiers Modifiers

	pressed  map[string][]*BoundAction
	released map[string][]*BoundAction
	groups   []*heldGroup
	byGroup  map[uint64]*heldGroup

	nextGroup uint64
}

// NewRouter creates a router with an empty default context.
func NewRouter() *Router {
	return &Router{
		context:  NewContext("default"),
		held:     make(map[RawInput]bool),
		pressed:  make(map[string][]*BoundAction),
		released: make(map[string][]*BoundAction),
		byGroup:  make(map[uint64]*heldGroup),
	}
}

// Context returns the active input context.
func (r *Router) Context() *Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.context
}

// SetContext swaps the active input context. Held state is kept so a key
// held across the swap releases cleanly.
func (r *Router) SetContext(c *Context) {
	if c == nil {
		c = NewContext("default")
	}
	r.mu.Lock()
	r.context = c
	r.mu.Unlock()
}

// Modifiers returns the active modifier set.
func (r *Router) Modifiers() Modifiers {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.modifiers
}

// SetModifiers overrides the active modifier set.
func (r *Router) SetModifiers(m Modifiers) {
	r.mu.Lock()
	r.modifiers = m
	r.mu.Unlock()
}

// NewGroup allocates a held-group id.
func (r *Router) NewGroup() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextGroup++
	return r.nextGroup
}

// Bind registers a handler. For PhaseHeld, every BoundAction created with
// the same group must carry the same callback; the first one wins.
func (r *Router) Bind(owner Owner, phase Phase, action string, group uint64, template Vec3, cb Callback) (*BoundAction, error) {
	if owner == nil {
		return nil, ErrNilOwner
	}
	if action == "" {
		return nil, ErrEmptyAction
	}

	ba := &BoundAction{
		Owner:    owner,
		Group:    group,
		Action:   action,
		Phase:    phase,
		Template: template,
		callback: cb,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch phase {
	case PhasePressed:
		r.pressed[action] = appendCopy(r.pressed[action], ba)
	case PhaseReleased:
		r.released[action] = appendCopy(r.released[action], ba)
	case PhaseHeld:
		g, ok := r.byGroup[group]
		if !ok {
			g = &heldGroup{id: group, owner: owner, callback: cb}
			r.byGroup[group] = g
			r.groups = appendGroup(r.groups, g)
		}
		g.members = append(g.members, ba)
	default:
		return nil, fmt.Errorf("unknown input phase %d", phase)
	}
	return ba, nil
}

// Unbind removes every handler owned by owner and returns how many were removed.
func (r *Router) Unbind(owner Owner) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for action, list := range r.pressed {
		kept, n := filterOwner(list, owner)
		removed += n
		r.pressed[action] = kept
	}
	for action, list := range r.released {
		kept, n := filterOwner(list, owner)
		removed += n
		r.released[action] = kept
	}

	groups := make([]*heldGroup, 0, len(r.groups))
	for _, g := range r.groups {
		if g.owner == owner {
			removed += len(g.members)
			delete(r.byGroup, g.id)
			continue
		}
		groups = append(groups, g)
	}
	r.groups = groups
	return removed
}

// Len returns the number of bound handlers across all phases.
func (r *Router) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, list := range r.pressed {
		n += len(list)
	}
	for _, list := range r.released {
		n += len(list)
	}
	for _, g := range r.groups {
		n += len(g.members)
	}
	return n
}

// IsHeld reports whether raw is currently down.
func (r *Router) IsHeld(raw RawInput) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.held[raw]
}

// KeyDown forwards a key press.
func (r *Router) KeyDown(k Key) {
	r.Press(KeyInput(k))
}

// KeyUp forwards a key release.
func (r *Router) KeyUp(k Key) {
	r.Release(KeyInput(k))
}

// ButtonDown forwards a mouse button press.
func (r *Router) ButtonDown(b MouseButton) {
	r.Press(ButtonInput(b))
}

// ButtonUp forwards a mouse button release.
func (r *Router) ButtonUp(b MouseButton) {
	r.Release(ButtonInput(b))
}

// Press handles the transition of raw to down. Repeats while already held
// are ignored.
func (r *Router) Press(raw RawInput) {
	r.mu.Lock()
	if r.held[raw] {
		r.mu.Unlock()
		return
	}
	r.held[raw] = true
	if raw.Device == DeviceKey {
		r.modifiers |= modifierFor(Key(raw.Code))
	}
	calls := r.collect(r.pressed, raw, 1)
	r.mu.Unlock()

	dispatch(calls)
}

// Release handles the transition of raw to up.
func (r *Router) Release(raw RawInput) {
	r.mu.Lock()
	if !r.held[raw] {
		r.mu.Unlock()
		return
	}
	delete(r.held, raw)
	calls := r.collect(r.released, raw, 1)
	if raw.Device == DeviceKey {
		r.modifiers &^= modifierFor(Key(raw.Code))
	}
	r.mu.Unlock()

	dispatch(calls)
}

// Move reports motion on a mouse axis. Pressed handlers of matching
// actions receive weight*value.
func (r *Router) Move(axis MouseAxis, value float64) {
	r.mu.Lock()
	calls := r.collect(r.pressed, AxisInput(axis), value)
	r.mu.Unlock()

	dispatch(calls)
}

// ProcessHeld runs once per frame. Each held group whose actions have at
// least one held raw input is invoked exactly once with the sum of its
// members' contributions. Scalar handlers are scaled by dt.
func (r *Router) ProcessHeld(dt float64) {
	r.mu.Lock()
	var calls []pendingCall
	for _, g := range r.groups {
		if g.owner.IsBeingDestroyed() {
			continue
		}

		var sum Vec3
		active := false
		for _, ba := range g.members {
			for _, b := range r.context.Bindings(ba.Action) {
				if !r.held[b.Input] || !r.modifiers.Contains(b.Modifiers) {
					continue
				}
				active = true
				contribution := ba.Template.Mul(b.Weight)
				if g.callback.arity == ArityScalar {
					contribution = contribution.Scale(dt)
				}
				sum = sum.Add(contribution)
			}
		}
		if active {
			calls = append(calls, pendingCall{callback: g.callback, value: sum})
		}
	}
	r.mu.Unlock()

	dispatch(calls)
}

// Dispose drops every binding and all held state.
func (r *Router) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pressed = make(map[string][]*BoundAction)
	r.released = make(map[string][]*BoundAction)
	r.groups = nil
	r.byGroup = make(map[uint64]*heldGroup)
	r.held = make(map[RawInput]bool)
	r.modifiers = 0
}

type pendingCall struct {
	callback Callback
	value    Vec3
}

// collect resolves raw against the active context and snapshots the
// handlers to call. Handlers run after the lock is released so they may
// bind, unbind or swap contexts.
func (r *Router) collect(table map[string][]*BoundAction, raw RawInput, scale float64) []pendingCall {
	var calls []pendingCall
	for _, m := range r.context.MatchBindings(raw, r.modifiers) {
		for _, ba := range table[m.Action] {
			if ba.Owner.IsBeingDestroyed() {
				continue
			}
			value := ba.Template.Mul(m.Binding.Weight).Scale(scale)
			calls = append(calls, pendingCall{callback: ba.callback, value: value})
		}
	}
	return calls
}

func dispatch(calls []pendingCall) {
	for _, c := range calls {
		c.callback.Invoke(c.value)
	}
}

func appendCopy(list []*BoundAction, ba *BoundAction) []*BoundAction {
	next := make([]*BoundAction, len(list), len(list)+1)
	copy(next, list)
	return append(next, ba)
}

func appendGroup(list []*heldGroup, g *heldGroup) []*heldGroup {
	next := make([]*heldGroup, len(list), len(list)+1)
	copy(next, list)
	return append(next, g)
}

func filterOwner(list []*BoundAction, owner Owner) ([]*BoundAction, int) {
	kept := make([]*BoundAction, 0, len(list))
	for _, ba := range list {
		if ba.Owner != owner {
			kept = append(kept, ba)
		}
	}
	return kept, len(list) - len(kept)
}
