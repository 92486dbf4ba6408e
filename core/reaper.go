package core

// Reaper holds atoms condemned by QueueFree until the next sweep.
type Reaper struct {
	condemned []Atom
}

// Condemn queues a for destruction. Queuing twice has no effect.
func (r *Reaper) Condemn(a Atom) {
	n := a.AsNode()
	for _, c := range r.condemned {
		if c.AsNode() == n {
			return
		}
	}
	r.condemned = append(r.condemned, a)
}

// Condemned returns a snapshot of the queue in condemnation order.
func (r *Reaper) Condemned() []Atom {
	out := make([]Atom, len(r.condemned))
	copy(out, r.condemned)
	return out
}

// Len returns the number of queued atoms.
func (r *Reaper) Len() int {
	return len(r.condemned)
}

// Reap frees every queued atom that is still valid and returns how many
// were freed. Atoms already torn down with an ancestor are skipped. Atoms
// condemned while reaping wait for the next sweep.
func (r *Reaper) Reap() int {
	batch := r.condemned
	r.condemned = nil

	freed := 0
	for _, a := range batch {
		if !a.AsNode().IsValid() {
			continue
		}
		FreeImmediately(a)
		freed++
	}
	return freed
}

// Dispose drops anything still queued when the Backstage goes away.
func (r *Reaper) Dispose() {
	r.condemned = nil
}
