package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testOwner struct {
	destroyed bool
}

func (o *testOwner) IsBeingDestroyed() bool {
	return o.destroyed
}

func mustCallback(t *testing.T, arity Arity, fn any) Callback {
	t.Helper()
	cb, err := NewCallback(arity, fn)
	require.NoError(t, err)
	return cb
}

func TestNewCallbackRejectsArityMismatch(t *testing.T) {
	tests := []struct {
		name  string
		arity Arity
		fn    any
		ok    bool
	}{
		{"none", ArityNone, func() {}, true},
		{"scalar", ArityScalar, func(float64) {}, true},
		{"vec2", ArityVec2, func(Vec2) {}, true},
		{"vec3", ArityVec3, func(Vec3) {}, true},
		{"scalar declared none given", ArityScalar, func() {}, false},
		{"vec2 declared scalar given", ArityVec2, func(float64) {}, false},
		{"extra params", ArityNone, func(int, int) {}, false},
		{"nil", ArityNone, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCallback(tt.arity, tt.fn)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrArityMismatch)
			}
		})
	}
}

func TestContextMatchModifiers(t *testing.T) {
	ctx := NewContext("test")
	require.NoError(t, ctx.Bind("jump", Bind(KeyInput(KeySpace), 0)))
	require.NoError(t, ctx.Bind("save", Bind(KeyInput(KeyS), ModControl)))
	require.NoError(t, ctx.Bind("down", Bind(KeyInput(KeyS), 0)))

	assert.Equal(t, []string{"jump"}, ctx.Match(KeyInput(KeySpace), ModShift|ModAlt))
	assert.Equal(t, []string{"down"}, ctx.Match(KeyInput(KeyS), 0))
	assert.Equal(t, []string{"save", "down"}, ctx.Match(KeyInput(KeyS), ModControl|ModShift))
	assert.Empty(t, ctx.Match(KeyInput(KeyQ), 0))
	assert.ErrorIs(t, ctx.Bind(""), ErrEmptyAction)
}

func TestPressHeldReleaseTransitions(t *testing.T) {
	r := NewRouter()
	ctx := NewContext("test")
	require.NoError(t, ctx.Bind("fire", Bind(KeyInput(KeyF), 0)))
	r.SetContext(ctx)

	owner := &testOwner{}
	var pressed, released int
	var heldDelta float64
	heldCalls := 0

	_, err := r.Bind(owner, PhasePressed, "fire", 0, One, mustCallback(t, ArityNone, func() { pressed++ }))
	require.NoError(t, err)
	_, err = r.Bind(owner, PhaseReleased, "fire", 0, One, mustCallback(t, ArityNone, func() { released++ }))
	require.NoError(t, err)
	_, err = r.Bind(owner, PhaseHeld, "fire", r.NewGroup(), One, mustCallback(t, ArityScalar, func(dt float64) {
		heldCalls++
		heldDelta += dt
	}))
	require.NoError(t, err)

	r.KeyDown(KeyF)
	assert.Equal(t, 1, pressed)
	assert.Equal(t, 0, released)
	assert.Equal(t, 0, heldCalls)

	// Auto-repeat is not a new press.
	r.KeyDown(KeyF)
	assert.Equal(t, 1, pressed)

	r.ProcessHeld(0.25)
	assert.Equal(t, 1, heldCalls)
	assert.InDelta(t, 0.25, heldDelta, 1e-9)

	r.KeyUp(KeyF)
	assert.Equal(t, 1, released)

	r.ProcessHeld(0.25)
	assert.Equal(t, 1, heldCalls)
}

func directionalContext(t *testing.T) *Context {
	t.Helper()
	ctx := NewContext("move")
	require.NoError(t, ctx.Bind("move",
		Bind(KeyInput(KeyUp), 0).WithWeight(Vec3{0, 1, 0}),
		Bind(KeyInput(KeyDown), 0).WithWeight(Vec3{0, -1, 0}),
		Bind(KeyInput(KeyLeft), 0).WithWeight(Vec3{-1, 0, 0}),
		Bind(KeyInput(KeyRight), 0).WithWeight(Vec3{1, 0, 0}),
	))
	return ctx
}

func TestHeldAggregation(t *testing.T) {
	r := NewRouter()
	r.SetContext(directionalContext(t))

	var calls []Vec2
	_, err := r.Bind(&testOwner{}, PhaseHeld, "move", r.NewGroup(), One,
		mustCallback(t, ArityVec2, func(v Vec2) { calls = append(calls, v) }))
	require.NoError(t, err)

	for _, k := range []Key{KeyUp, KeyDown, KeyLeft, KeyRight} {
		r.KeyDown(k)
	}
	r.ProcessHeld(1.0 / 60)
	require.Len(t, calls, 1)
	assert.Equal(t, Vec2{0, 0}, calls[0])

	for _, k := range []Key{KeyDown, KeyLeft, KeyRight} {
		r.KeyUp(k)
	}
	r.ProcessHeld(1.0 / 60)
	require.Len(t, calls, 2)
	assert.Equal(t, Vec2{0, 1}, calls[1])
}

func TestHeldGroupAcrossActions(t *testing.T) {
	r := NewRouter()
	ctx := NewContext("split")
	require.NoError(t, ctx.Bind("up", Bind(KeyInput(KeyW), 0)))
	require.NoError(t, ctx.Bind("right", Bind(KeyInput(KeyD), 0)))
	r.SetContext(ctx)

	owner := &testOwner{}
	group := r.NewGroup()
	var calls []Vec2
	cb := mustCallback(t, ArityVec2, func(v Vec2) { calls = append(calls, v) })
	_, err := r.Bind(owner, PhaseHeld, "up", group, Vec3{0, 1, 0}, cb)
	require.NoError(t, err)
	_, err = r.Bind(owner, PhaseHeld, "right", group, Vec3{1, 0, 0}, cb)
	require.NoError(t, err)

	r.KeyDown(KeyW)
	r.KeyDown(KeyD)
	r.ProcessHeld(0.1)

	require.Len(t, calls, 1)
	assert.Equal(t, Vec2{1, 1}, calls[0])
}

func TestMultiBindingDiscretePresses(t *testing.T) {
	r := NewRouter()
	ctx := NewContext("alt")
	require.NoError(t, ctx.Bind("confirm",
		Bind(KeyInput(KeyA), 0),
		Bind(KeyInput(KeyB), 0),
		Bind(KeyInput(KeyC), 0),
		Bind(KeyInput(KeyD), 0),
	))
	r.SetContext(ctx)

	count := 0
	_, err := r.Bind(&testOwner{}, PhasePressed, "confirm", 0, One, mustCallback(t, ArityNone, func() { count++ }))
	require.NoError(t, err)

	for _, k := range []Key{KeyA, KeyB, KeyC, KeyD} {
		r.KeyDown(k)
		r.KeyUp(k)
	}
	assert.Equal(t, 4, count)
}

func TestModifierKeysTrackedFromPresses(t *testing.T) {
	r := NewRouter()
	ctx := NewContext("mods")
	require.NoError(t, ctx.Bind("save", Bind(KeyInput(KeyS), ModControl)))
	r.SetContext(ctx)

	saves := 0
	_, err := r.Bind(&testOwner{}, PhasePressed, "save", 0, One, mustCallback(t, ArityNone, func() { saves++ }))
	require.NoError(t, err)

	r.KeyDown(KeyS)
	r.KeyUp(KeyS)
	assert.Equal(t, 0, saves)

	r.KeyDown(KeyLeftControl)
	assert.True(t, r.Modifiers().Contains(ModControl))
	r.KeyDown(KeyS)
	assert.Equal(t, 1, saves)

	r.KeyUp(KeyS)
	r.KeyUp(KeyLeftControl)
	assert.Equal(t, Modifiers(0), r.Modifiers())
}

func TestAxisMotion(t *testing.T) {
	r := NewRouter()
	ctx := NewContext("look")
	require.NoError(t, ctx.Bind("yaw", Bind(AxisInput(AxisX), 0).WithWeight(Vec3{0.5, 0, 0})))
	r.SetContext(ctx)

	var got float64
	_, err := r.Bind(&testOwner{}, PhasePressed, "yaw", 0, One, mustCallback(t, ArityScalar, func(v float64) { got += v }))
	require.NoError(t, err)

	r.Move(AxisX, 10)
	assert.InDelta(t, 5.0, got, 1e-9)
	assert.False(t, r.IsHeld(AxisInput(AxisX)))
}

func TestUnbindAndDestroyedOwners(t *testing.T) {
	r := NewRouter()
	r.SetContext(directionalContext(t))

	alive := &testOwner{}
	dying := &testOwner{}
	var aliveCalls, dyingCalls int

	_, err := r.Bind(alive, PhaseHeld, "move", r.NewGroup(), One, mustCallback(t, ArityNone, func() { aliveCalls++ }))
	require.NoError(t, err)
	_, err = r.Bind(dying, PhaseHeld, "move", r.NewGroup(), One, mustCallback(t, ArityNone, func() { dyingCalls++ }))
	require.NoError(t, err)
	_, err = r.Bind(dying, PhasePressed, "move", 0, One, mustCallback(t, ArityNone, func() { dyingCalls++ }))
	require.NoError(t, err)

	dying.destroyed = true
	r.KeyDown(KeyUp)
	r.ProcessHeld(0.1)
	assert.Equal(t, 1, aliveCalls)
	assert.Equal(t, 0, dyingCalls)

	assert.Equal(t, 2, r.Unbind(dying))
	assert.Equal(t, 1, r.Len())

	r.Dispose()
	assert.Equal(t, 0, r.Len())
	assert.False(t, r.IsHeld(KeyInput(KeyUp)))
}

func TestBindValidation(t *testing.T) {
	r := NewRouter()
	cb := mustCallback(t, ArityNone, func() {})

	_, err := r.Bind(nil, PhasePressed, "x", 0, One, cb)
	assert.ErrorIs(t, err, ErrNilOwner)

	_, err = r.Bind(&testOwner{}, PhasePressed, "", 0, One, cb)
	assert.ErrorIs(t, err, ErrEmptyAction)
}
