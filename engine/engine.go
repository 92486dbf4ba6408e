package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/najoast/stagehand/config"
	"github.com/najoast/stagehand/core"
	"github.com/najoast/stagehand/input"
	"github.com/najoast/stagehand/metric"
	"github.com/najoast/stagehand/module"
	"github.com/najoast/stagehand/windowstate"
)

// Options configures an Engine.
type Options struct {
	Config config.EngineConfig

	Window     Window
	Renderer   Renderer
	Subsystems []Subsystem

	// WindowState restores the window placement on Start and saves it on
	// Stop. Optional.
	WindowState *windowstate.Store

	Metrics *metric.Metrics
	Logger  zerolog.Logger
}

// Engine ticks guest modules on a single frame loop.
type Engine struct {
	opts     Options
	log      zerolog.Logger
	renderer Renderer

	hosts  []*module.Host
	byName map[string]*module.Host

	mu    sync.Mutex
	posts []func()

	interval  atomic.Int64
	timeScale float64
	gameplay  GameplayContext
	inputCtx  *input.Context
	frames    atomic.Uint64

	tasks   []func(ctx context.Context) error
	started bool
	stopped bool
}

// New creates an engine with no modules.
func New(opts Options) *Engine {
	e := &Engine{
		opts:      opts,
		log:       opts.Logger.With().Str("component", "engine").Logger(),
		renderer:  opts.Renderer,
		byName:    make(map[string]*module.Host),
		timeScale: 1,
	}
	if e.renderer == nil {
		e.renderer = nopRenderer{}
	}
	if opts.Config.TimeScale > 0 {
		e.timeScale = opts.Config.TimeScale
	}
	e.interval.Store(int64(opts.Config.FrameInterval()))
	return e
}

// NewModule creates a host for a guest module and adds it to the tick
// order. Every tree the host loads gets the engine Supervisor as a service
// and the current input context before it is initialized.
func (e *Engine) NewModule(opts module.Options) (*module.Host, error) {
	if e.started {
		return nil, ErrStarted
	}
	if _, ok := e.byName[opts.Name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateModule, opts.Name)
	}

	opts.Logger = e.opts.Logger
	if opts.Metrics == nil {
		opts.Metrics = e.opts.Metrics
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = e.opts.Config.Cooldown
	}

	sup := &supervisor{engine: e, module: opts.Name}
	guestSetup := opts.Setup
	opts.Setup = func(b *core.Backstage) error {
		if err := core.Provide[Supervisor](b, sup); err != nil {
			return err
		}
		if e.inputCtx != nil {
			b.Input().SetContext(e.inputCtx)
		}
		if guestSetup != nil {
			return guestSetup(b)
		}
		return nil
	}

	h, err := module.NewHost(opts)
	if err != nil {
		return nil, err
	}
	sup.host = h
	e.hosts = append(e.hosts, h)
	e.byName[h.Name()] = h
	return h, nil
}

// Module returns the named host.
func (e *Engine) Module(name string) (*module.Host, bool) {
	h, ok := e.byName[name]
	return h, ok
}

// Modules returns the hosts in tick order.
func (e *Engine) Modules() []*module.Host {
	return append([]*module.Host(nil), e.hosts...)
}

// Go adds a background task that Run starts next to the frame loop. A task
// returning an error stops the loop.
func (e *Engine) Go(task func(ctx context.Context) error) {
	e.tasks = append(e.tasks, task)
}

// Post queues fn to run on the frame loop at the start of the next Tick.
// It is safe to call from any goroutine.
func (e *Engine) Post(fn func()) {
	e.mu.Lock()
	e.posts = append(e.posts, fn)
	e.mu.Unlock()
}

func (e *Engine) drain() {
	e.mu.Lock()
	posts := e.posts
	e.posts = nil
	e.mu.Unlock()

	for _, fn := range posts {
		fn()
	}
}

// Start restores the window, initializes the renderer and subsystems, then
// starts every module and registers the trees that loaded.
func (e *Engine) Start(ctx context.Context) error {
	if e.started {
		return ErrStarted
	}
	e.started = true

	if w := e.opts.Window; w != nil {
		e.restoreWindow(w)
		w.SetInputSink(e)
	}
	if err := e.renderer.Initialize(e.opts.Window); err != nil {
		return fmt.Errorf("failed to initialize renderer: %w", err)
	}
	for _, s := range e.opts.Subsystems {
		if err := s.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize subsystem: %w", err)
		}
	}

	for _, h := range e.hosts {
		if err := h.Start(ctx); err != nil {
			return fmt.Errorf("failed to start module %s: %w", h.Name(), err)
		}
		e.register(h.Backstage())
	}

	if name := e.opts.Config.GameplayModule; name != "" && e.gameplay.Empty() {
		if h, ok := e.byName[name]; ok {
			e.setGameplay(GameplayContext{Module: name, Backstage: h.Backstage()})
		}
	}

	e.log.Info().Int("modules", len(e.hosts)).Dur("frame", e.FrameInterval()).Msg("engine started")
	return nil
}

func (e *Engine) restoreWindow(w Window) {
	if e.opts.WindowState == nil {
		return
	}
	r, err := e.opts.WindowState.Load()
	switch {
	case err == nil && !r.Empty():
		w.SetBounds(r)
	case err != nil && !errors.Is(err, os.ErrNotExist):
		e.log.Debug().Err(err).Msg("ignoring saved window state")
	}
}

// Tick runs one frame: queued posts, module build and swap checks, then
// every module's tree. dt is in seconds.
func (e *Engine) Tick(dt float64) {
	started := time.Now()
	e.drain()

	for _, h := range e.hosts {
		if h.Update() {
			e.reload(h)
		}
	}

	for _, h := range e.hosts {
		d := dt
		if e.scaled(h) {
			d = dt * e.timeScale
		}
		// guest panics are logged and turned into a cooldown by the host
		_ = h.Tick(d)
	}

	e.frames.Add(1)
	e.opts.Metrics.RecordFrame(time.Since(started))
}

// scaled reports whether h runs on gameplay time. With no gameplay context
// every module does.
func (e *Engine) scaled(h *module.Host) bool {
	return e.gameplay.Empty() || e.gameplay.Module == h.Name()
}

// reload swaps h to its pending generation and moves the renderer and
// subsystems over to the new tree.
func (e *Engine) reload(h *module.Host) {
	e.unregister(h.Backstage())

	if err := h.Swap(); err != nil {
		e.log.Warn().Err(err).Str("module", h.Name()).Msg("module has no tree after reload")
	}
	if err := e.renderer.HotInitialize(e.opts.Window); err != nil {
		e.log.Error().Err(err).Msg("renderer failed to re-attach")
	}
	e.register(h.Backstage())

	if e.gameplay.Module == h.Name() {
		e.setGameplay(GameplayContext{Module: h.Name(), Backstage: h.Backstage()})
	}
}

func (e *Engine) register(b *core.Backstage) {
	if b == nil {
		return
	}
	e.renderer.Register(b)
	for _, s := range e.opts.Subsystems {
		s.Register(b)
	}
}

func (e *Engine) unregister(b *core.Backstage) {
	if b == nil {
		return
	}
	for i := len(e.opts.Subsystems) - 1; i >= 0; i-- {
		e.opts.Subsystems[i].Unregister(b)
	}
	e.renderer.Unregister(b)
}

// Run drives the frame loop and the background tasks until ctx is done or
// a task fails. Start must have been called.
func (e *Engine) Run(ctx context.Context) error {
	if !e.started {
		return ErrNotStarted
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, task := range e.tasks {
		g.Go(func() error { return task(ctx) })
	}
	g.Go(func() error { return e.loop(ctx) })
	return g.Wait()
}

func (e *Engine) loop(ctx context.Context) error {
	interval := e.FrameInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			e.Tick(now.Sub(last).Seconds())
			last = now

			if next := e.FrameInterval(); next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

// FrameInterval returns the target duration of one frame.
func (e *Engine) FrameInterval() time.Duration {
	return time.Duration(e.interval.Load())
}

// Frames returns the number of completed ticks.
func (e *Engine) Frames() uint64 {
	return e.frames.Load()
}

// SetGameplayContext makes ctx the gameplay context and forwards it to the
// renderer.
func (e *Engine) SetGameplayContext(ctx GameplayContext) {
	e.setGameplay(ctx)
}

func (e *Engine) setGameplay(ctx GameplayContext) {
	e.gameplay = ctx
	e.renderer.SetGameplayContext(ctx)
}

// GameplayContext returns the current gameplay context.
func (e *Engine) GameplayContext() GameplayContext {
	return e.gameplay
}

// SetGameplayTimeScale sets the delta multiplier for gameplay trees.
// Negative scales are clamped to zero.
func (e *Engine) SetGameplayTimeScale(scale float64) {
	if scale < 0 {
		scale = 0
	}
	e.timeScale = scale
}

// TimeScale returns the gameplay delta multiplier.
func (e *Engine) TimeScale() float64 {
	return e.timeScale
}

// SetInputContext installs ctx on every running tree and on trees loaded
// later.
func (e *Engine) SetInputContext(ctx *input.Context) {
	e.inputCtx = ctx
	for _, b := range e.backstages() {
		b.Input().SetContext(ctx)
	}
}

// ApplyConfig applies the reloadable parts of cfg: frame rate, gameplay
// time scale and keymap. The keymap file is read on the calling goroutine;
// the rest is posted to the frame loop.
func (e *Engine) ApplyConfig(cfg *config.Config) {
	var keymap *input.Context
	if path := cfg.Input.Keymap; path != "" {
		ctx, err := input.LoadKeymap(path)
		if err != nil {
			e.log.Error().Err(err).Str("keymap", path).Msg("keeping current keymap")
		} else {
			keymap = ctx
		}
	}
	e.interval.Store(int64(cfg.Engine.FrameInterval()))

	scale := cfg.Engine.TimeScale
	e.Post(func() {
		e.SetGameplayTimeScale(scale)
		if keymap != nil {
			e.SetInputContext(keymap)
		}
		e.log.Info().Float64("time_scale", scale).Msg("configuration applied")
	})
}

func (e *Engine) backstages() []*core.Backstage {
	out := make([]*core.Backstage, 0, len(e.hosts))
	for _, h := range e.hosts {
		if b := h.Backstage(); b != nil {
			out = append(out, b)
		}
	}
	return out
}

// Stop saves the window placement, drops renderer callbacks into guest
// code and stops every module in reverse order.
func (e *Engine) Stop(ctx context.Context) error {
	if e.stopped {
		return nil
	}
	e.stopped = true

	if w := e.opts.Window; w != nil && e.opts.WindowState != nil {
		if err := e.opts.WindowState.Save(w.Bounds()); err != nil {
			e.log.Warn().Err(err).Msg("failed to save window state")
		}
	}

	e.renderer.DisconnectCallbacks()

	var errs []error
	for i := len(e.hosts) - 1; i >= 0; i-- {
		h := e.hosts[i]
		e.unregister(h.Backstage())
		if err := h.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("module %s: %w", h.Name(), err))
		}
	}
	e.log.Info().Uint64("frames", e.frames.Load()).Msg("engine stopped")
	return errors.Join(errs...)
}

type supervisor struct {
	engine *Engine
	module string
	host   *module.Host
}

func (s *supervisor) ReloadUserModule() {
	s.host.MarkDirty()
}

func (s *supervisor) SetGameplayContext(b *core.Backstage) {
	s.engine.SetGameplayContext(GameplayContext{Module: s.module, Backstage: b})
}

func (s *supervisor) SetGameplayTimeScale(scale float64) {
	s.engine.SetGameplayTimeScale(scale)
}
