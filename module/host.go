package module

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/najoast/stagehand/core"
	"github.com/najoast/stagehand/input"
	"github.com/najoast/stagehand/metric"
)

// DefaultCooldown is how long a module stays paused after a guest panic.
const DefaultCooldown = 5 * time.Second

// Options configures a Host.
type Options struct {
	Name string

	// SourceRoot is watched for changes and is the build directory. Relative
	// paths, here and in Artifact and CacheDir, resolve against the working
	// directory when the host is created.
	SourceRoot string
	// SourceExt selects the watched files. Defaults to ".go".
	SourceExt string
	// Artifact is the build output. Modules without an artifact are opened
	// by name, which only a registry loader supports.
	Artifact string
	// CacheDir receives timestamped copies of each artifact.
	CacheDir string

	Cooldown time.Duration
	Watch    bool

	Builder Builder
	Loader  Loader
	Logger  zerolog.Logger
	Metrics *metric.Metrics

	// Setup runs on every new root before it is initialized, typically to
	// provide host services to the guest.
	Setup func(b *core.Backstage) error

	// Clock overrides time.Now.
	Clock func() time.Time
}

func (o *Options) normalize() error {
	if o.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidOptions)
	}
	if o.SourceExt == "" {
		o.SourceExt = ".go"
	}
	if o.Cooldown <= 0 {
		o.Cooldown = DefaultCooldown
	}
	if o.Loader == nil {
		o.Loader = PluginLoader{}
	}
	if o.Builder == nil && o.SourceRoot != "" && o.Artifact != "" {
		o.Builder = CommandBuilder{}
	}
	if o.Watch && o.SourceRoot == "" {
		return fmt.Errorf("%w: watching %s needs a source root", ErrInvalidOptions, o.Name)
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	for _, p := range []*string{&o.SourceRoot, &o.Artifact, &o.CacheDir} {
		if *p == "" {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidOptions, *p, err)
		}
		*p = abs
	}
	return nil
}

// pendingBuild is an artifact waiting for Swap. A zero gen means the
// artifact was not built for a particular attempt.
type pendingBuild struct {
	artifact string
	gen      uint64
}

// Host owns one guest module. Every method except the handle check and
// MarkDirty must be called from the frame loop goroutine; the background
// build only ever flips flags the frame loop polls.
type Host struct {
	opts    Options
	session string
	log     zerolog.Logger
	cache   *ArtifactCache
	watcher *SourceWatcher

	dirty     atomic.Bool
	compiling atomic.Bool
	awaiting  atomic.Bool

	mu      sync.Mutex
	pending pendingBuild
	lastErr error

	// attempts numbers every build and every load. A number is never
	// reused, so it can name a plugin path.
	attempts   atomic.Uint64
	generation atomic.Uint64
	live       atomic.Uint64
	loading    bool
	boundary   Boundary
	root       core.BackstageAtom

	cooldownUntil time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	builds  sync.WaitGroup
	started bool
}

// NewHost validates opts and creates an unloaded host.
func NewHost(opts Options) (*Host, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	cache, err := NewArtifactCache(opts.CacheDir)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Host{
		opts:    opts,
		session: uuid.NewString(),
		log:    opts.Logger.With().Str("component", "module").Str("module", opts.Name).Logger(),
		cache:  cache,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Name returns the module name.
func (h *Host) Name() string {
	return h.opts.Name
}

// Start begins watching sources and performs the initial load. A missing
// artifact schedules a build instead. Load failures are logged and leave
// the host running without a tree.
func (h *Host) Start(ctx context.Context) error {
	if h.started {
		return fmt.Errorf("module %s already started", h.opts.Name)
	}
	h.started = true
	go func() {
		select {
		case <-ctx.Done():
			h.cancel()
		case <-h.ctx.Done():
		}
	}()

	if h.opts.Watch {
		w, err := NewSourceWatcher(h.opts.SourceRoot, h.opts.SourceExt, func(string) { h.MarkDirty() }, h.log)
		if err != nil {
			return err
		}
		if err := w.Start(); err != nil {
			return err
		}
		h.watcher = w
	}

	if h.opts.Artifact != "" {
		if _, err := os.Stat(h.opts.Artifact); err != nil {
			if h.opts.Builder == nil {
				h.fail(&LoadError{Module: h.opts.Name, Generation: h.attempts.Load() + 1,
					Err: fmt.Errorf("%w: %s", ErrArtifactMissing, h.opts.Artifact)})
				return nil
			}
			h.log.Info().Str("artifact", h.opts.Artifact).Msg("no artifact yet, scheduling build")
			h.MarkDirty()
			return nil
		}
	}

	_ = h.load(h.opts.Artifact, h.attempts.Add(1), Handoff{Module: h.opts.Name})
	return nil
}

// MarkDirty requests a rebuild. It is safe to call from any goroutine.
func (h *Host) MarkDirty() {
	h.dirty.Store(true)
}

// Update advances the build state machine and reports whether a new
// generation is ready to swap. It never blocks on a build.
func (h *Host) Update() bool {
	if h.compiling.Load() {
		return false
	}
	if h.dirty.Load() {
		if h.opts.Builder == nil {
			h.dirty.Store(false)
			if !h.canReopen() {
				h.mu.Lock()
				h.lastErr = fmt.Errorf("%w: %s cannot reload without a rebuild", ErrNoBuilder, h.opts.Name)
				h.mu.Unlock()
				h.log.Warn().Msg("reload requested but module has no builder")
				return false
			}
			h.mu.Lock()
			h.pending = pendingBuild{artifact: h.opts.Artifact}
			h.mu.Unlock()
			h.awaiting.Store(true)
			return false
		}
		h.startBuild()
		return false
	}
	return h.awaiting.Load()
}

// NeedsReload reports whether a swap is pending.
func (h *Host) NeedsReload() bool {
	return !h.compiling.Load() && h.awaiting.Load()
}

func (h *Host) startBuild() {
	h.dirty.Store(false)
	h.compiling.Store(true)

	req := BuildRequest{
		Module:     h.opts.Name,
		SourceRoot: h.opts.SourceRoot,
		Output:     h.opts.Artifact,
		Generation: h.attempts.Add(1),
		Session:    h.session,
	}
	h.log.Info().Uint64("generation", req.Generation).Msg("build started")

	h.builds.Add(1)
	go func() {
		defer h.builds.Done()
		defer h.compiling.Store(false)

		started := time.Now()
		artifact, err := h.opts.Builder.Build(h.ctx, req)
		h.opts.Metrics.RecordBuild(h.opts.Name, err)
		if err != nil {
			h.mu.Lock()
			h.lastErr = err
			h.mu.Unlock()
			h.log.Error().Err(err).Msg("build failed, keeping last good build")
			return
		}

		h.log.Info().Dur("took", time.Since(started)).Str("artifact", artifact).Msg("build finished")
		h.mu.Lock()
		h.pending = pendingBuild{artifact: artifact, gen: req.Generation}
		h.mu.Unlock()
		h.awaiting.Store(true)
	}()
}

// Swap replaces the running tree with one built by the pending
// generation. The old root is asked for its handoff state, freed, and its
// boundary closed before the new one is opened. A failed load leaves the
// module without a tree and is returned as a *LoadError.
func (h *Host) Swap() error {
	if !h.awaiting.Load() || h.compiling.Load() {
		return ErrNothingToSwap
	}
	h.awaiting.Store(false)

	h.mu.Lock()
	next := h.pending
	h.pending = pendingBuild{}
	h.mu.Unlock()

	gen := next.gen
	if gen == 0 {
		gen = h.attempts.Add(1)
	}
	handoff := h.unload()
	return h.load(next.artifact, gen, handoff)
}

// Reload swaps to a fresh generation of the current artifact without
// building. Only loaders that can reopen an artifact support it; a plugin
// module has to be rebuilt instead.
func (h *Host) Reload() error {
	if !h.canReopen() {
		return fmt.Errorf("%w: %s", ErrCannotReopen, h.opts.Name)
	}
	handoff := h.unload()
	return h.load(h.opts.Artifact, h.attempts.Add(1), handoff)
}

func (h *Host) canReopen() bool {
	r, ok := h.opts.Loader.(Reopener)
	return ok && r.CanReopen()
}

func (h *Host) load(artifact string, gen uint64, handoff Handoff) (err error) {
	loadID := uuid.New()
	log := h.log.With().Uint64("generation", gen).Str("load", loadID.String()).Logger()

	h.loading = true
	defer func() { h.loading = false }()

	var b Boundary
	defer func() {
		if r := recover(); r != nil {
			err = &GuestPanic{Module: h.opts.Name, Value: r, Stack: debug.Stack()}
		}
		if err == nil {
			return
		}
		if h.root != nil {
			h.freeRoot(h.root)
			h.root = nil
		}
		if b != nil {
			_ = b.Close()
		}
		if !errors.As(err, new(*LoadError)) {
			err = &LoadError{Module: h.opts.Name, Generation: gen, Err: err}
		}
		h.fail(err)
	}()

	path := artifact
	if artifact != "" {
		if path, err = h.cache.Store(h.opts.Name, artifact); err != nil {
			return err
		}
	}

	if b, err = h.opts.Loader.Open(h.ctx, OpenRequest{Module: h.opts.Name, Path: path, Generation: gen}); err != nil {
		return err
	}
	entry, err := Locate[Entry](b)
	if err != nil {
		return err
	}
	root := entry.NewBackstage()
	if root == nil {
		return ErrNilBackstage
	}
	h.root = root

	bs := root.AsBackstage()
	bs.SetLogger(log)
	if h.opts.Setup != nil {
		if err := h.opts.Setup(bs); err != nil {
			return fmt.Errorf("setup: %w", err)
		}
	}
	if imp, ok := root.(StateImporter); ok {
		if err := imp.ImportState(handoff); err != nil {
			return fmt.Errorf("import state: %w", err)
		}
	}
	if err := core.Initialize(root); err != nil {
		return err
	}

	h.boundary = b
	h.generation.Store(gen)
	h.live.Store(gen)
	h.mu.Lock()
	h.lastErr = nil
	h.mu.Unlock()
	h.opts.Metrics.RecordReload(h.opts.Name, gen)
	if path != "" {
		if err := h.cache.Prune(h.opts.Name, path); err != nil {
			log.Debug().Err(err).Msg("failed to prune artifact cache")
		}
	}
	log.Info().Str("backstage", bs.InstanceID().String()).Msg("module loaded")
	return nil
}

func (h *Host) fail(err error) {
	h.mu.Lock()
	h.lastErr = err
	h.mu.Unlock()
	h.opts.Metrics.RecordLoadFailure(h.opts.Name)
	h.log.Error().Err(err).Msg("module load failed, continuing without a tree")
}

// Unload frees the running tree, closes its boundary and forces a
// collection so nothing from the old generation stays reachable.
func (h *Host) Unload() {
	h.unload()
}

func (h *Host) unload() Handoff {
	handoff := Handoff{Module: h.opts.Name, Generation: h.generation.Load()}
	if h.root == nil {
		return handoff
	}
	root := h.root

	func() {
		defer func() {
			if r := recover(); r != nil {
				h.log.Error().Interface("panic", r).Msg("state export panicked")
			}
		}()
		exported, err := encodeHandoff(h.opts.Name, handoff.Generation, root)
		if err != nil {
			h.log.Warn().Err(err).Msg("state export failed, next generation starts fresh")
			return
		}
		handoff = exported
	}()

	h.live.Store(0)
	h.root = nil
	h.freeRoot(root)
	if h.boundary != nil {
		if err := h.boundary.Close(); err != nil {
			h.log.Warn().Err(err).Msg("failed to close module boundary")
		}
		h.boundary = nil
	}
	runtime.GC()
	h.log.Info().Uint64("generation", handoff.Generation).Msg("module unloaded")
	return handoff
}

func (h *Host) freeRoot(root core.BackstageAtom) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("teardown panicked")
		}
	}()
	core.FreeImmediately(root)
}

// Tick runs one frame of the module tree. A guest panic is recovered,
// logged with its stack and turned into a cooldown; it is returned as a
// *GuestPanic.
func (h *Host) Tick(dt float64) (err error) {
	root := h.root
	if root == nil || h.InCooldown() {
		return nil
	}

	defer h.contain(&err)

	reaped := root.AsBackstage().Frame(dt)
	if h.opts.Metrics != nil {
		h.opts.Metrics.RecordTree(h.opts.Name, countAtoms(root), reaped)
	}
	return nil
}

// Deliver hands a device event to the tree's input router, if it has one.
// Handlers run under the same containment as Tick, and a module in
// cooldown receives no input.
func (h *Host) Deliver(fn func(r *input.Router)) (err error) {
	root := h.root
	if root == nil || h.InCooldown() {
		return nil
	}
	r, ok := core.Lookup[*input.Router](root.AsBackstage())
	if !ok {
		return nil
	}

	defer h.contain(&err)
	fn(r)
	return nil
}

// contain recovers a guest panic into a cooldown. It must be deferred
// directly.
func (h *Host) contain(err *error) {
	r := recover()
	if r == nil {
		return
	}
	gp := &GuestPanic{Module: h.opts.Name, Value: r, Stack: debug.Stack()}
	h.cooldownUntil = h.opts.Clock().Add(h.opts.Cooldown)
	h.opts.Metrics.RecordGuestPanic(h.opts.Name)
	h.opts.Metrics.RecordCooldown(h.opts.Name, true)
	h.log.Error().
		Interface("panic", r).
		Bytes("stack", gp.Stack).
		Dur("cooldown", h.opts.Cooldown).
		Msg("guest panicked, pausing module")
	*err = gp
}

// InCooldown reports whether the module is paused after a guest panic.
func (h *Host) InCooldown() bool {
	if h.cooldownUntil.IsZero() {
		return false
	}
	if h.opts.Clock().Before(h.cooldownUntil) {
		return true
	}
	h.cooldownUntil = time.Time{}
	h.opts.Metrics.RecordCooldown(h.opts.Name, false)
	h.log.Info().Msg("cooldown over, resuming module")
	return false
}

func countAtoms(root core.Atom) int {
	n := 0
	core.Walk(root, func(core.Atom) bool {
		n++
		return true
	})
	return n
}

// State returns the current phase of the host.
func (h *Host) State() State {
	switch {
	case h.compiling.Load():
		return StateBuilding
	case h.awaiting.Load():
		return StateAwaitingSwap
	case h.dirty.Load():
		return StateDirty
	case h.loading:
		return StateLoading
	case h.root != nil:
		return StateLoaded
	default:
		return StateUnloaded
	}
}

// Root returns the running root, or nil when the module has no tree.
func (h *Host) Root() core.BackstageAtom {
	return h.root
}

// Backstage returns the running backstage, or nil.
func (h *Host) Backstage() *core.Backstage {
	if h.root == nil {
		return nil
	}
	return h.root.AsBackstage()
}

// Generation returns the last successfully loaded generation.
func (h *Host) Generation() uint64 {
	return h.generation.Load()
}

func (h *Host) isLive(gen uint64) bool {
	return gen != 0 && h.live.Load() == gen
}

// LastError returns the most recent build or load error. A successful
// load clears it.
func (h *Host) LastError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

// CacheDir returns the directory holding artifact copies.
func (h *Host) CacheDir() string {
	return h.cache.Dir()
}

// Stop stops watching, waits for an in-flight build and unloads the tree.
func (h *Host) Stop(ctx context.Context) error {
	h.cancel()

	var errs []error
	if h.watcher != nil {
		errs = append(errs, h.watcher.Stop())
		h.watcher = nil
	}

	done := make(chan struct{})
	go func() {
		h.builds.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("%w: build still running: %v", ErrHostStopped, ctx.Err()))
	}

	h.unload()
	return errors.Join(errs...)
}
