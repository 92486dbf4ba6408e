package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/najoast/stagehand/core"
	"github.com/najoast/stagehand/input"
	"github.com/najoast/stagehand/module"
	"github.com/najoast/stagehand/windowstate"
)

type player struct {
	core.Node
	jumps int
}

func (*player) Declare() core.Declaration {
	return core.Declaration{Inputs: []core.InputDecl{{Method: "Jump", Action: "jump"}}}
}

func (p *player) Jump() { p.jumps++ }

type arena struct {
	core.Backstage
	Player *player `atom:"component"`

	elapsed float64
	sup     Supervisor
}

func (a *arena) OnInit() {
	a.sup, _ = core.Resolve[Supervisor](&a.Backstage)
}

func (a *arena) OnUpdate(dt float64) { a.elapsed += dt }

type bomb struct {
	core.Backstage
}

func (b *bomb) OnUpdate() { panic("boom") }

// clumsy trips over its own jump handler.
type clumsyPlayer struct {
	core.Node
	tries int
}

func (*clumsyPlayer) Declare() core.Declaration {
	return core.Declaration{Inputs: []core.InputDecl{{Method: "Jump", Action: "jump"}}}
}

func (p *clumsyPlayer) Jump() {
	p.tries++
	panic("tripped")
}

type clumsy struct {
	core.Backstage
	Player *clumsyPlayer `atom:"component"`

	elapsed float64
}

func (c *clumsy) OnUpdate(dt float64) { c.elapsed += dt }

type fakeRenderer struct {
	registered map[*core.Backstage]bool
	calls      []string
	gameplay   GameplayContext
	hot        int
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{registered: make(map[*core.Backstage]bool)}
}

func (r *fakeRenderer) Initialize(Window) error {
	r.calls = append(r.calls, "initialize")
	return nil
}

func (r *fakeRenderer) HotInitialize(Window) error {
	r.hot++
	r.calls = append(r.calls, "hot")
	return nil
}

func (r *fakeRenderer) Register(b *core.Backstage) {
	r.registered[b] = true
	r.calls = append(r.calls, "register")
}

func (r *fakeRenderer) Unregister(b *core.Backstage) {
	delete(r.registered, b)
	r.calls = append(r.calls, "unregister")
}

func (r *fakeRenderer) SetGameplayContext(ctx GameplayContext) {
	r.gameplay = ctx
}

func (r *fakeRenderer) DisconnectCallbacks() {
	r.calls = append(r.calls, "disconnect")
}

type fakePhysics struct {
	live map[*core.Backstage]bool
}

func (p *fakePhysics) Initialize() error {
	p.live = make(map[*core.Backstage]bool)
	return nil
}

func (p *fakePhysics) Register(b *core.Backstage) { p.live[b] = true }
func (p *fakePhysics) Unregister(b *core.Backstage) { delete(p.live, b) }

type fakeWindow struct {
	bounds windowstate.Rect
	sink   InputSink
}

func (w *fakeWindow) Bounds() windowstate.Rect { return w.bounds }
func (w *fakeWindow) SetBounds(r windowstate.Rect) { w.bounds = r }
func (w *fakeWindow) SetInputSink(sink InputSink) { w.sink = sink }

func arenaExports(uint64) []any {
	return []any{module.EntryFunc(func() core.BackstageAtom { return &arena{} })}
}

func bombExports(uint64) []any {
	return []any{module.EntryFunc(func() core.BackstageAtom { return &bomb{} })}
}

func clumsyExports(uint64) []any {
	return []any{module.EntryFunc(func() core.BackstageAtom { return &clumsy{} })}
}

// newTestEngine registers each named module with the registry loader.
// Names starting with "bomb" get a panicking tree, names starting with
// "clumsy" a tree whose jump handler panics.
func newTestEngine(t *testing.T, opts Options, names ...string) *Engine {
	t.Helper()
	opts.Logger = zerolog.Nop()
	e := New(opts)

	reg := module.NewRegistryLoader()
	for _, name := range names {
		exports := arenaExports
		switch {
		case strings.HasPrefix(name, "bomb"):
			exports = bombExports
		case strings.HasPrefix(name, "clumsy"):
			exports = clumsyExports
		}
		reg.Register(name, exports)
		_, err := e.NewModule(module.Options{Name: name, Loader: reg, CacheDir: t.TempDir()})
		require.NoError(t, err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.Stop(ctx)
	})
	return e
}

func arenaOf(t *testing.T, e *Engine, name string) *arena {
	t.Helper()
	h, ok := e.Module(name)
	require.True(t, ok)
	a, ok := h.Root().(*arena)
	require.True(t, ok, "root is %T", h.Root())
	return a
}

func jumpContext(t *testing.T) *input.Context {
	t.Helper()
	ctx := input.NewContext("test")
	require.NoError(t, ctx.Bind("jump", input.Bind(input.KeyInput(input.KeySpace), 0)))
	return ctx
}
