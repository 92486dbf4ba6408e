package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/najoast/stagehand/config"
	"github.com/najoast/stagehand/engine"
	"github.com/najoast/stagehand/input"
	"github.com/najoast/stagehand/metric"
	"github.com/najoast/stagehand/module"
	"github.com/najoast/stagehand/windowstate"
)

// ShutdownTimeout bounds a graceful shutdown
const ShutdownTimeout = 30 * time.Second

// Options configures an Application
type Options struct {
	Config *config.Config
	// ConfigFile is watched for changes when set
	ConfigFile string
	Logger     zerolog.Logger

	// Registry serves modules configured with the registry loader
	Registry *module.RegistryLoader

	Window     engine.Window
	Renderer   engine.Renderer
	Subsystems []engine.Subsystem
}

// Application is the assembled host process
type Application struct {
	cfg       *config.Config
	log       zerolog.Logger
	metrics   *metric.Registry
	engine    *engine.Engine
	engineSvc *EngineService
	lifecycle *LifecycleManager

	mu      sync.Mutex
	running bool
}

// NewApplication builds the engine, its modules and the services around
// it from opts. Nothing is started
func NewApplication(opts Options) (*Application, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	log := opts.Logger

	app := &Application{
		cfg:       cfg,
		log:       log.With().Str("component", "app").Logger(),
		metrics:   metric.NewRegistry(),
		lifecycle: NewLifecycleManager(log),
	}

	var store *windowstate.Store
	if cfg.Window.StateFile != "" {
		store = windowstate.NewStore(cfg.Window.StateFile, cfg.Window.Recency)
	}
	app.engine = engine.New(engine.Options{
		Config:      cfg.Engine,
		Window:      opts.Window,
		Renderer:    opts.Renderer,
		Subsystems:  opts.Subsystems,
		WindowState: store,
		Metrics:     app.metrics.Metrics,
		Logger:      log,
	})

	if path := cfg.Input.Keymap; path != "" {
		ctx, err := input.LoadKeymap(path)
		if err != nil {
			return nil, &ApplicationError{Operation: "configure", Service: "input", Err: err}
		}
		app.engine.SetInputContext(ctx)
	}

	for _, mc := range cfg.Modules {
		mopts, err := ModuleOptions(mc, opts.Registry)
		if err != nil {
			return nil, &ApplicationError{Operation: "configure", Service: "engine", Err: err}
		}
		if _, err := app.engine.NewModule(mopts); err != nil {
			return nil, &ApplicationError{Operation: "configure", Service: "engine", Err: err}
		}
	}

	if err := app.registerServices(opts); err != nil {
		return nil, err
	}
	return app, nil
}

// registerServices registers metrics, engine and config watcher so they
// start in that order
func (app *Application) registerServices(opts Options) error {
	var engineDeps []string
	if app.cfg.Monitor.Enabled {
		server := metric.NewServer(app.cfg.Monitor.Address, app.cfg.Monitor.Path, app.metrics, opts.Logger)
		if err := app.lifecycle.Register(NewMetricsService(server)); err != nil {
			return err
		}
		engineDeps = append(engineDeps, "metrics")
	}

	app.engineSvc = NewEngineService(app.engine)
	if err := app.lifecycle.Register(app.engineSvc, engineDeps...); err != nil {
		return err
	}

	if opts.ConfigFile != "" {
		watcher, err := config.NewWatcher(opts.ConfigFile, config.NewLoader(), opts.Logger)
		if err != nil {
			return &ApplicationError{Operation: "configure", Service: "config", Err: err}
		}
		watcher.OnConfigChange(func(_, next *config.Config) {
			app.engine.ApplyConfig(next)
		})
		if err := app.lifecycle.Register(NewConfigService(watcher), "engine"); err != nil {
			return err
		}
	}
	return nil
}

// Run starts every service and blocks until ctx is done, the process gets
// SIGINT or SIGTERM, or the frame loop fails. It then shuts down
func (app *Application) Run(ctx context.Context) error {
	app.mu.Lock()
	if app.running {
		app.mu.Unlock()
		return fmt.Errorf("application is already running")
	}
	app.running = true
	app.mu.Unlock()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.lifecycle.Start(ctx); err != nil {
		app.mu.Lock()
		app.running = false
		app.mu.Unlock()
		return err
	}
	app.log.Info().Strs("services", app.lifecycle.Services()).Msg("application started")

	var runErr error
	select {
	case <-ctx.Done():
		app.log.Info().Msg("shutting down")
	case <-app.engineSvc.Done():
		runErr = app.engineSvc.Err()
		app.log.Error().Err(runErr).Msg("frame loop stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()
	return errors.Join(runErr, app.Shutdown(shutdownCtx))
}

// Shutdown stops every service in reverse start order
func (app *Application) Shutdown(ctx context.Context) error {
	app.mu.Lock()
	if !app.running {
		app.mu.Unlock()
		return nil
	}
	app.running = false
	app.mu.Unlock()

	if err := app.lifecycle.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop services: %w", err)
	}
	app.log.Info().Msg("application stopped")
	return nil
}

// Engine returns the engine
func (app *Application) Engine() *engine.Engine {
	return app.engine
}

// Metrics returns the metrics registry
func (app *Application) Metrics() *metric.Registry {
	return app.metrics
}

// Lifecycle returns the lifecycle manager
func (app *Application) Lifecycle() *LifecycleManager {
	return app.lifecycle
}

// Health reports every service
func (app *Application) Health(ctx context.Context) map[string]HealthStatus {
	return app.lifecycle.Health(ctx)
}
