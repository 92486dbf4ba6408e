package core

import (
	"errors"
	"fmt"

	"github.com/najoast/stagehand/input"
)

// AdoptChild appends child to parent. If parent is already initialized the
// child is initialized immediately, so atoms created at runtime go live
// without a separate flush. A child that fails wiring is detached again
// and the error is returned.
func AdoptChild(parent, child Atom) error {
	p := bind(parent)
	if _, ok := child.(BackstageAtom); ok {
		return ErrNestedBackstage
	}
	c := bind(child)

	if c.parent != nil {
		return fmt.Errorf("%w: %s", ErrAlreadyAdopted, c)
	}
	if p.state >= StateDestroying || c.state >= StateDestroying {
		return ErrDestroyed
	}
	for a := parent; a != nil; a = a.AsNode().parent {
		if a.AsNode() == c {
			return ErrCycle
		}
	}

	attach(p, parent, child)

	if p.initialized() && c.state == StateUninitialized {
		if err := initialize(child); err != nil {
			detach(child)
			return err
		}
	}
	return nil
}

// attach links child under parent without initializing it.
func attach(p *Node, parent, child Atom) {
	c := child.AsNode()
	p.children = append(p.children, child)
	c.parent = parent
	c.backstage = p.backstage
}

// detach unlinks a from its parent and clears its backstage reference.
func detach(a Atom) {
	n := a.AsNode()
	if n.parent != nil {
		p := n.parent.AsNode()
		for i, c := range p.children {
			if c.AsNode() == n {
				p.children = append(p.children[:i:i], p.children[i+1:]...)
				break
			}
		}
		n.parent = nil
	}
	n.backstage = nil
}

// Initialize initializes a root atom and its whole subtree. A Backstage is
// its own root; any other parentless atom may be initialized standalone.
func Initialize(root Atom) error {
	n := bind(root)
	if n.parent != nil {
		return ErrNotRoot
	}
	if n.state != StateUninitialized {
		return ErrAlreadyInitialized
	}
	if b, ok := root.(BackstageAtom); ok {
		b.AsBackstage().prepare()
	}
	return initialize(root)
}

// initialize runs the wiring resolver on a itself, marks it initialized,
// initializes every current child, then fires its init chain. A child
// whose wiring fails is detached; its error is returned after a finishes initializing.
func initialize(a Atom) error {
	n := bind(a)

	if err := resolve(a); err != nil {
		unwire(a)
		return err
	}
	n.state = StateInitializing

	var childErrs []error
	for _, child := range n.Children() {
		c := child.AsNode()
		if c.parent == nil || c.parent.AsNode() != n || c.state != StateUninitialized {
			continue
		}
		c.backstage = n.backstage
		if err := initialize(child); err != nil {
			detach(child)
			childErrs = append(childErrs, err)
		}
	}

	n.hooks.runInit()
	if n.state == StateInitializing {
		n.state = StateReady
	}
	return errors.Join(childErrs...)
}

// ProcessLogicFrame runs the update chain of a ticking atom, including its
// timers, then recurses into a snapshot of its children.
func ProcessLogicFrame(a Atom, dt float64) {
	n := a.AsNode()
	if n.state != StateReady {
		return
	}
	if !n.tickingPaused {
		n.hooks.runUpdate(dt)
		n.tickTimers(dt)
	}
	for _, child := range n.Children() {
		ProcessLogicFrame(child, dt)
	}
}

// FreeImmediately destroys a synchronously: children first, then its own
// destroy chain, then it is detached. A child that survives its own
// teardown is a programming error and panics.
func FreeImmediately(a Atom) {
	n := bind(a)
	if n.state >= StateDestroying {
		return
	}
	n.beingDestroyed = true
	n.state = StateDestroying

	for len(n.children) > 0 {
		before := len(n.children)
		FreeImmediately(n.children[0])
		if len(n.children) >= before {
			panic(fmt.Errorf("%w: %s", ErrTeardownStalled, n))
		}
	}

	n.hooks.runDestroy()
	unwire(a)

	if b, ok := a.(BackstageAtom); ok {
		b.AsBackstage().locator.disposeAll()
	}

	detach(a)
	n.state = StateDestroyed
}

// QueueFree marks a for destruction and hands it to the reaper. Nothing is
// torn down until the next sweep. A detached atom has no reaper and is
// freed immediately.
func QueueFree(a Atom) {
	n := bind(a)
	if n.beingDestroyed || n.state >= StateDestroying {
		return
	}
	n.beingDestroyed = true

	var reaper *Reaper
	if n.backstage != nil {
		reaper = n.backstage.Reaper()
	}
	if reaper == nil {
		FreeImmediately(a)
		return
	}
	reaper.Condemn(a)
}

// unwire releases everything the resolver bound to a: subscriptions,
// input handlers and timers.
func unwire(a Atom) {
	n := a.AsNode()
	subs := n.subscriptions
	n.subscriptions = nil
	for _, sub := range subs {
		sub.Dispose()
	}
	n.timers = nil

	if n.backstage != nil {
		if router, ok := Lookup[*input.Router](n.backstage); ok {
			router.Unbind(n)
		}
	}
}

// ParentOf walks up from a and returns the nearest ancestor of type T.
func ParentOf[T any](a Atom) (T, bool) {
	for p := a.AsNode().parent; p != nil; p = p.AsNode().parent {
		if v, ok := p.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Walk visits root and its descendants in tree order. Returning false from
// fn skips that atom's children.
func Walk(root Atom, fn func(Atom) bool) {
	if !fn(root) {
		return
	}
	for _, child := range root.AsNode().Children() {
		Walk(child, fn)
	}
}

// FindFirst returns the first atom of type T in tree order. When several
// match, the earliest one wins; there is no priority.
func FindFirst[T any](root Atom) (T, bool) {
	var found T
	ok := false
	Walk(root, func(a Atom) bool {
		if ok {
			return false
		}
		if v, match := a.(T); match && a.AsNode().IsValid() {
			found, ok = v, true
			return false
		}
		return true
	})
	return found, ok
}
