package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/najoast/stagehand/config"
	"github.com/najoast/stagehand/core"
	"github.com/najoast/stagehand/input"
	"github.com/najoast/stagehand/module"
	"github.com/najoast/stagehand/windowstate"
)

func TestStartRegistersLoadedTrees(t *testing.T) {
	r := newFakeRenderer()
	phys := &fakePhysics{}
	e := newTestEngine(t, Options{
		Config:     config.EngineConfig{GameplayModule: "arena"},
		Renderer:   r,
		Subsystems: []Subsystem{phys},
	}, "arena", "tools")
	require.NoError(t, e.Start(t.Context()))

	arenaHost, _ := e.Module("arena")
	toolsHost, _ := e.Module("tools")
	assert.True(t, r.registered[arenaHost.Backstage()])
	assert.True(t, r.registered[toolsHost.Backstage()])
	assert.True(t, phys.live[arenaHost.Backstage()])
	assert.Equal(t, "initialize", r.calls[0])

	assert.Equal(t, "arena", r.gameplay.Module)
	assert.Same(t, arenaHost.Backstage(), e.GameplayContext().Backstage)

	require.NotNil(t, arenaOf(t, e, "arena").sup, "supervisor resolved from the locator")
	assert.ErrorIs(t, e.Start(t.Context()), ErrStarted)
}

func TestNewModuleValidation(t *testing.T) {
	e := newTestEngine(t, Options{}, "arena")

	_, err := e.NewModule(module.Options{Name: "arena", Loader: module.NewRegistryLoader(), CacheDir: t.TempDir()})
	assert.ErrorIs(t, err, ErrDuplicateModule)

	require.NoError(t, e.Start(t.Context()))
	_, err = e.NewModule(module.Options{Name: "late", Loader: module.NewRegistryLoader(), CacheDir: t.TempDir()})
	assert.ErrorIs(t, err, ErrStarted)
	assert.Len(t, e.Modules(), 1)
}

func TestTimeScaleAppliesToGameplayModule(t *testing.T) {
	e := newTestEngine(t, Options{Config: config.EngineConfig{GameplayModule: "arena"}}, "arena", "tools")
	require.NoError(t, e.Start(t.Context()))

	arenaOf(t, e, "arena").sup.SetGameplayTimeScale(0.5)
	e.Tick(0.2)

	assert.InDelta(t, 0.1, arenaOf(t, e, "arena").elapsed, 1e-9)
	assert.InDelta(t, 0.2, arenaOf(t, e, "tools").elapsed, 1e-9)
	assert.Equal(t, uint64(1), e.Frames())

	e.SetGameplayTimeScale(-3)
	assert.Equal(t, 0.0, e.TimeScale())
}

func TestTimeScaleWithoutGameplayContextAppliesEverywhere(t *testing.T) {
	e := newTestEngine(t, Options{Config: config.EngineConfig{TimeScale: 2}}, "arena", "tools")
	require.NoError(t, e.Start(t.Context()))

	e.Tick(0.25)
	assert.InDelta(t, 0.5, arenaOf(t, e, "arena").elapsed, 1e-9)
	assert.InDelta(t, 0.5, arenaOf(t, e, "tools").elapsed, 1e-9)
}

func TestGuestRequestedReloadSwapsTree(t *testing.T) {
	r := newFakeRenderer()
	phys := &fakePhysics{}
	e := newTestEngine(t, Options{
		Config:     config.EngineConfig{GameplayModule: "arena"},
		Renderer:   r,
		Subsystems: []Subsystem{phys},
	}, "arena")
	require.NoError(t, e.Start(t.Context()))

	h, _ := e.Module("arena")
	first := h.Backstage()
	arenaOf(t, e, "arena").sup.ReloadUserModule()

	e.Tick(0.1)
	assert.Same(t, first, h.Backstage(), "swap waits for the next frame")
	assert.Equal(t, module.StateAwaitingSwap, h.State())

	r.calls = nil
	e.Tick(0.1)
	second := h.Backstage()
	require.NotNil(t, second)
	assert.NotSame(t, first, second)
	assert.Equal(t, uint64(2), h.Generation())

	assert.Equal(t, []string{"unregister", "hot", "register"}, r.calls)
	assert.False(t, r.registered[first])
	assert.True(t, r.registered[second])
	assert.False(t, phys.live[first])
	assert.True(t, phys.live[second])

	assert.Same(t, second, e.GameplayContext().Backstage)
	assert.Same(t, second, r.gameplay.Backstage)
	assert.InDelta(t, 0.1, arenaOf(t, e, "arena").elapsed, 1e-9, "new tree ticked in the swap frame")
}

func TestGuestSetsGameplayContext(t *testing.T) {
	r := newFakeRenderer()
	e := newTestEngine(t, Options{Renderer: r}, "arena", "tools")
	require.NoError(t, e.Start(t.Context()))
	assert.True(t, e.GameplayContext().Empty())

	tools := arenaOf(t, e, "tools")
	tools.sup.SetGameplayContext(&tools.Backstage)

	assert.Equal(t, "tools", e.GameplayContext().Module)
	assert.Same(t, &tools.Backstage, r.gameplay.Backstage)
}

func TestPanickingModuleDoesNotStopOthers(t *testing.T) {
	e := newTestEngine(t, Options{Config: config.EngineConfig{Cooldown: time.Hour}}, "bomb", "arena")
	require.NoError(t, e.Start(t.Context()))

	e.Tick(0.1)
	e.Tick(0.1)

	bombHost, _ := e.Module("bomb")
	assert.True(t, bombHost.InCooldown())
	assert.InDelta(t, 0.2, arenaOf(t, e, "arena").elapsed, 1e-9)
}

func TestWindowInputReachesTrees(t *testing.T) {
	w := &fakeWindow{}
	e := newTestEngine(t, Options{Window: w}, "arena")
	e.SetInputContext(jumpContext(t))
	require.NoError(t, e.Start(t.Context()))
	require.NotNil(t, w.sink)

	p := arenaOf(t, e, "arena").Player
	require.NotNil(t, p)

	w.sink.KeyDown(input.KeySpace)
	assert.Equal(t, 0, p.jumps, "input waits for the frame loop")
	e.Tick(0.016)
	assert.Equal(t, 1, p.jumps)

	w.sink.KeyUp(input.KeySpace)
	w.sink.KeyDown(input.KeySpace)
	e.Tick(0.016)
	assert.Equal(t, 2, p.jumps)
}

func TestPanickingInputHandlerIsContained(t *testing.T) {
	e := newTestEngine(t, Options{}, "clumsy", "arena")
	e.SetInputContext(jumpContext(t))
	require.NoError(t, e.Start(t.Context()))

	h, ok := e.Module("clumsy")
	require.True(t, ok)
	c, ok := h.Root().(*clumsy)
	require.True(t, ok)
	good := arenaOf(t, e, "arena")

	e.KeyDown(input.KeySpace)
	require.NotPanics(t, func() { e.Tick(0.1) })

	assert.Equal(t, 1, c.Player.tries)
	assert.True(t, h.InCooldown())
	assert.Zero(t, c.elapsed)
	assert.Equal(t, 1, good.Player.jumps)
	assert.InDelta(t, 0.1, good.elapsed, 1e-9)

	e.KeyUp(input.KeySpace)
	e.KeyDown(input.KeySpace)
	e.Tick(0.1)
	assert.Equal(t, 1, c.Player.tries, "no input during cooldown")
	assert.Equal(t, 2, good.Player.jumps)
	assert.Equal(t, uint64(2), e.Frames())
}

func TestApplyConfig(t *testing.T) {
	e := newTestEngine(t, Options{}, "arena")
	require.NoError(t, e.Start(t.Context()))

	keymap := filepath.Join(t.TempDir(), "keys.yaml")
	require.NoError(t, os.WriteFile(keymap, []byte("name: remapped\nactions:\n  jump:\n    - key: J\n"), 0o644))

	cfg := config.DefaultConfig()
	cfg.Engine.FrameRate = 30
	cfg.Engine.TimeScale = 0.25
	cfg.Input.Keymap = keymap
	e.ApplyConfig(cfg)

	assert.Equal(t, time.Second/30, e.FrameInterval())
	assert.Equal(t, 1.0, e.TimeScale(), "applied on the next frame")

	e.Tick(0.016)
	assert.Equal(t, 0.25, e.TimeScale())

	h, _ := e.Module("arena")
	router, ok := core.Lookup[*input.Router](h.Backstage())
	require.True(t, ok)
	assert.Equal(t, "remapped", router.Context().Name())
}

func TestApplyConfigKeepsKeymapOnError(t *testing.T) {
	e := newTestEngine(t, Options{}, "arena")
	e.SetInputContext(jumpContext(t))
	require.NoError(t, e.Start(t.Context()))

	cfg := config.DefaultConfig()
	cfg.Input.Keymap = filepath.Join(t.TempDir(), "missing.yaml")
	e.ApplyConfig(cfg)
	e.Tick(0.016)

	h, _ := e.Module("arena")
	assert.Equal(t, "test", h.Backstage().Input().Context().Name())
}

func TestWindowStateRestoredAndSaved(t *testing.T) {
	store := windowstate.NewStore(filepath.Join(t.TempDir(), "window.json"), 0)
	saved := windowstate.Rect{X: 10, Y: 20, Width: 800, Height: 600}
	require.NoError(t, store.Save(saved))

	w := &fakeWindow{}
	e := newTestEngine(t, Options{Window: w, WindowState: store})
	require.NoError(t, e.Start(t.Context()))
	assert.Equal(t, saved, w.bounds)

	w.bounds = windowstate.Rect{X: 1, Y: 2, Width: 1024, Height: 768}
	require.NoError(t, e.Stop(t.Context()))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, w.bounds, got)
}

func TestStopOrder(t *testing.T) {
	r := newFakeRenderer()
	e := newTestEngine(t, Options{Renderer: r}, "arena")
	require.NoError(t, e.Start(t.Context()))

	r.calls = nil
	require.NoError(t, e.Stop(t.Context()))
	assert.Equal(t, []string{"disconnect", "unregister"}, r.calls)
	assert.Empty(t, r.registered)

	h, _ := e.Module("arena")
	assert.Nil(t, h.Root())
	assert.NoError(t, e.Stop(t.Context()), "second stop is a no-op")
}

func TestRunDrivesFramesUntilCancelled(t *testing.T) {
	e := newTestEngine(t, Options{Config: config.EngineConfig{FrameRate: 500}}, "arena")
	assert.ErrorIs(t, e.Run(t.Context()), ErrNotStarted)
	require.NoError(t, e.Start(t.Context()))

	taskDone := make(chan struct{})
	e.Go(func(ctx context.Context) error {
		<-ctx.Done()
		close(taskDone)
		return nil
	})

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	require.Eventually(t, func() bool { return e.Frames() >= 3 }, 5*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return")
	}
	<-taskDone
}

func TestRunStopsOnTaskError(t *testing.T) {
	e := newTestEngine(t, Options{Config: config.EngineConfig{FrameRate: 500}}, "arena")
	require.NoError(t, e.Start(t.Context()))

	boom := errors.New("watcher died")
	e.Go(func(context.Context) error { return boom })

	assert.ErrorIs(t, e.Run(t.Context()), boom)
}
