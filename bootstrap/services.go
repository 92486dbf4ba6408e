package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/najoast/stagehand/config"
	"github.com/najoast/stagehand/engine"
	"github.com/najoast/stagehand/metric"
	"github.com/najoast/stagehand/module"
)

// EngineService runs the engine frame loop in the background. The loop
// outlives the start context; Stop cancels it
type EngineService struct {
	engine *engine.Engine
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewEngineService wraps e
func NewEngineService(e *engine.Engine) *EngineService {
	return &EngineService{engine: e}
}

func (s *EngineService) Name() string { return "engine" }

// Start loads every module and starts the frame loop
func (s *EngineService) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := s.engine.Start(runCtx); err != nil {
		cancel()
		return errors.Join(err, s.engine.Stop(ctx))
	}

	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.err = s.engine.Run(runCtx)
	}()
	return nil
}

// Done is closed when the frame loop returns
func (s *EngineService) Done() <-chan struct{} {
	return s.done
}

// Err returns the frame loop error once Done is closed
func (s *EngineService) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Stop ends the frame loop and unloads every module
func (s *EngineService) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
		select {
		case <-s.done:
		case <-ctx.Done():
			return fmt.Errorf("frame loop did not stop: %w", ctx.Err())
		}
	}
	return s.engine.Stop(ctx)
}

// Health is degraded while any module has never loaded or its last build
// or load failed. It only reads state that is safe off the frame loop
func (s *EngineService) Health(context.Context) (HealthStatus, error) {
	generations := make(map[string]any)
	var failing []string
	for _, h := range s.engine.Modules() {
		generations[h.Name()] = h.Generation()
		if h.Generation() == 0 || h.LastError() != nil {
			failing = append(failing, h.Name())
		}
	}

	status := HealthStatus{
		State: HealthHealthy,
		Data: map[string]any{
			"frames":      s.engine.Frames(),
			"generations": generations,
		},
	}
	if len(failing) > 0 {
		status.State = HealthDegraded
		status.Message = fmt.Sprintf("modules with errors: %v", failing)
	}
	return status, nil
}

// MetricsService serves Prometheus metrics
type MetricsService struct {
	server *metric.Server
}

func NewMetricsService(server *metric.Server) *MetricsService {
	return &MetricsService{server: server}
}

func (s *MetricsService) Name() string { return "metrics" }

func (s *MetricsService) Start(ctx context.Context) error {
	return s.server.Start(ctx)
}

func (s *MetricsService) Stop(ctx context.Context) error {
	return s.server.Stop(ctx)
}

func (s *MetricsService) Health(context.Context) (HealthStatus, error) {
	addr := s.server.Addr()
	if addr == "" {
		return HealthStatus{State: HealthStopped}, nil
	}
	return HealthStatus{State: HealthHealthy, Data: map[string]any{"addr": addr}}, nil
}

// ConfigService watches the configuration file
type ConfigService struct {
	watcher *config.Watcher
}

func NewConfigService(w *config.Watcher) *ConfigService {
	return &ConfigService{watcher: w}
}

func (s *ConfigService) Name() string { return "config" }

func (s *ConfigService) Start(context.Context) error {
	return s.watcher.Start()
}

func (s *ConfigService) Stop(context.Context) error {
	return s.watcher.Stop()
}

func (s *ConfigService) Health(context.Context) (HealthStatus, error) {
	return HealthStatus{State: HealthHealthy}, nil
}

// ModuleOptions converts a module configuration into host options
// registry serves modules configured with the registry loader
func ModuleOptions(mc config.ModuleConfig, registry *module.RegistryLoader) (module.Options, error) {
	opts := module.Options{
		Name:       mc.Name,
		SourceRoot: mc.SourceRoot,
		SourceExt:  mc.SourceExt,
		Artifact:   mc.Artifact,
		CacheDir:   mc.CacheDir,
		Watch:      mc.Watch,
	}

	switch mc.Loader {
	case config.LoaderPlugin, "":
		opts.Loader = module.PluginLoader{}
	case config.LoaderRegistry:
		if registry == nil {
			return module.Options{}, fmt.Errorf("module %s uses the registry loader but no registry was provided", mc.Name)
		}
		opts.Loader = registry
	default:
		return module.Options{}, fmt.Errorf("%w: %s", config.ErrInvalidLoader, mc.Loader)
	}

	if len(mc.BuildCommand) > 0 {
		opts.Builder = module.CommandBuilder{Command: mc.BuildCommand}
	}
	return opts, nil
}
