package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// journal collects lifecycle events across atoms in call order.
type journal struct {
	events []string
}

func (j *journal) add(e string) {
	if j != nil {
		j.events = append(j.events, e)
	}
}

// tracer is an atom that records its lifecycle and counts updates.
type tracer struct {
	Node

	j     *journal
	label string
	inits int
	ticks int
	total float64
}

func newTracer(j *journal, label string) *tracer {
	p := &tracer{j: j, label: label}
	p.SetName(label)
	return p
}

func (*tracer) Declare() Declaration {
	return Declaration{Update: []string{"Tick", "Advance"}}
}

func (p *tracer) OnInit() {
	p.inits++
	p.j.add("init:" + p.label)
}

func (p *tracer) Tick() {
	p.ticks++
}

func (p *tracer) Advance(dt float64) {
	p.total += dt
}

func (p *tracer) OnDestroy() {
	p.j.add("destroy:" + p.label)
}

func readyStage(t *testing.T) *Backstage {
	t.Helper()
	b := NewBackstage()
	require.NoError(t, Initialize(b))
	return b
}
