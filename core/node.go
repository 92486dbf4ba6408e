package core

import (
	"fmt"
	"reflect"
	"slices"
	"sync/atomic"

	"github.com/najoast/stagehand/signal"
)

// Atom is implemented by every tree node through an embedded Node.
type Atom interface {
	AsNode() *Node
}

// idCounter hands out atom identities.
var idCounter uint64

// Node is the embeddable state of an atom. The zero value is a detached,
// uninitialized atom.
type Node struct {
	this      Atom
	id        uint64
	name      string
	parent    Atom
	children  []Atom
	backstage *Backstage

	state          LifecycleState
	tickingPaused  bool
	beingDestroyed bool

	hooks         hooks
	timers        []*Timer
	subscriptions []signal.Subscription
}

// AsNode returns the node itself.
func (n *Node) AsNode() *Node {
	return n
}

// ID returns the atom identity, assigned on first attachment.
func (n *Node) ID() uint64 {
	return n.id
}

// Name returns the atom name. Unnamed atoms report their type name.
func (n *Node) Name() string {
	if n.name == "" && n.this != nil {
		return typeName(reflect.TypeOf(n.this))
	}
	return n.name
}

// SetName sets the atom name.
func (n *Node) SetName(name string) {
	n.name = name
}

// String returns a readable form such as "Player#12".
func (n *Node) String() string {
	return fmt.Sprintf("%s#%d", n.Name(), n.id)
}

// Parent returns the non-owning back reference, or nil for a root.
func (n *Node) Parent() Atom {
	return n.parent
}

// Children returns a snapshot of the children in insertion order.
func (n *Node) Children() []Atom {
	out := make([]Atom, len(n.children))
	copy(out, n.children)
	return out
}

// ChildCount returns the number of children.
func (n *Node) ChildCount() int {
	return len(n.children)
}

// Backstage returns the root that owns this atom's tree.
func (n *Node) Backstage() *Backstage {
	return n.backstage
}

// State returns the lifecycle state.
func (n *Node) State() LifecycleState {
	return n.state
}

// IsTicking reports whether the update chain runs each frame.
func (n *Node) IsTicking() bool {
	return !n.tickingPaused
}

// SetTicking enables or disables the update chain. Children are unaffected.
func (n *Node) SetTicking(on bool) {
	n.tickingPaused = !on
}

// IsBeingDestroyed reports whether destruction was requested. It never
// reverts to false.
func (n *Node) IsBeingDestroyed() bool {
	return n.beingDestroyed
}

// IsValid reports whether the atom has not started teardown.
func (n *Node) IsValid() bool {
	return n.state < StateDestroying
}

// Track records a subscription so it is disposed with the atom.
func (n *Node) Track(sub signal.Subscription) {
	if n.state >= StateDestroying {
		sub.Dispose()
		return
	}
	n.subscriptions = append(n.subscriptions, sub)
}

// Untrack forgets a subscription that was disposed before the atom.
func (n *Node) Untrack(sub signal.Subscription) {
	for i, s := range n.subscriptions {
		if s == sub {
			n.subscriptions = slices.Delete(n.subscriptions, i, i+1)
			return
		}
	}
}

// Timers returns the timers registered on the atom.
func (n *Node) Timers() []*Timer {
	out := make([]*Timer, len(n.timers))
	copy(out, n.timers)
	return out
}

// initialized reports whether adoption should initialize new children
// right away.
func (n *Node) initialized() bool {
	return n.state == StateInitializing || n.state == StateReady
}

// bind records the atom's interface value and identity.
func bind(a Atom) *Node {
	n := a.AsNode()
	if n.this == nil {
		n.this = a
	}
	if n.id == 0 {
		n.id = atomic.AddUint64(&idCounter, 1)
	}
	if b, ok := a.(BackstageAtom); ok {
		n.backstage = b.AsBackstage()
	}
	return n
}

func typeName(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
