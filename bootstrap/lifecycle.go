package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds each service start and stop
const DefaultTimeout = 30 * time.Second

var (
	ErrAlreadyStarted   = errors.New("lifecycle manager already started")
	ErrCircularDeps     = errors.New("circular service dependency")
	ErrUnknownDep       = errors.New("dependency is not registered")
	ErrDuplicateService = errors.New("service is already registered")
)

// LifecycleManager starts services in dependency order and stops them in
// reverse. Services without a dependency between them start in
// registration order
type LifecycleManager struct {
	mu           sync.RWMutex
	names        []string
	services     map[string]Service
	dependencies map[string][]string
	startOrder   []string
	started      bool

	listeners []func(LifecycleEvent)
	timeout   time.Duration
	log       zerolog.Logger
}

// NewLifecycleManager creates an empty manager
func NewLifecycleManager(log zerolog.Logger) *LifecycleManager {
	return &LifecycleManager{
		services:     make(map[string]Service),
		dependencies: make(map[string][]string),
		timeout:      DefaultTimeout,
		log:          log.With().Str("component", "lifecycle").Logger(),
	}
}

// Register registers a service with optional dependencies
func (lm *LifecycleManager) Register(service Service, deps ...string) error {
	if service == nil {
		return fmt.Errorf("service cannot be nil")
	}
	name := service.Name()
	if name == "" {
		return fmt.Errorf("service name cannot be empty")
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()

	if lm.started {
		return fmt.Errorf("cannot register %s: %w", name, ErrAlreadyStarted)
	}
	if _, exists := lm.services[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateService, name)
	}

	lm.names = append(lm.names, name)
	lm.services[name] = service
	lm.dependencies[name] = deps
	lm.emit(LifecycleEvent{Type: EventRegistered, Service: name})
	return nil
}

// Start starts all services in dependency order. When a service fails the
// ones already started are stopped again
func (lm *LifecycleManager) Start(ctx context.Context) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if lm.started {
		return ErrAlreadyStarted
	}

	order, err := lm.calculateStartOrder()
	if err != nil {
		return err
	}

	for _, name := range order {
		svc := lm.services[name]
		lm.emit(LifecycleEvent{Type: EventStarting, Service: name})

		startCtx, cancel := context.WithTimeout(ctx, lm.timeout)
		err := svc.Start(startCtx)
		cancel()

		if err != nil {
			lm.emit(LifecycleEvent{Type: EventStartFailed, Service: name, Error: err})
			stopErr := lm.stopStarted(context.WithoutCancel(ctx))
			return errors.Join(&ApplicationError{Operation: "start", Service: name, Err: err}, stopErr)
		}

		lm.startOrder = append(lm.startOrder, name)
		lm.emit(LifecycleEvent{Type: EventStarted, Service: name})
	}

	lm.started = true
	return nil
}

// Stop stops all started services in reverse order
func (lm *LifecycleManager) Stop(ctx context.Context) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if !lm.started {
		return nil
	}
	lm.started = false
	return lm.stopStarted(ctx)
}

func (lm *LifecycleManager) stopStarted(ctx context.Context) error {
	var errs []error
	for i := len(lm.startOrder) - 1; i >= 0; i-- {
		name := lm.startOrder[i]
		lm.emit(LifecycleEvent{Type: EventStopping, Service: name})

		stopCtx, cancel := context.WithTimeout(ctx, lm.timeout)
		err := lm.services[name].Stop(stopCtx)
		cancel()

		if err != nil {
			errs = append(errs, &ApplicationError{Operation: "stop", Service: name, Err: err})
			lm.emit(LifecycleEvent{Type: EventStopFailed, Service: name, Error: err})
			continue
		}
		lm.emit(LifecycleEvent{Type: EventStopped, Service: name})
	}
	lm.startOrder = nil
	return errors.Join(errs...)
}

// Health returns the health status of all services
func (lm *LifecycleManager) Health(ctx context.Context) map[string]HealthStatus {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	health := make(map[string]HealthStatus, len(lm.services))
	for name, svc := range lm.services {
		healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		status, err := svc.Health(healthCtx)
		cancel()

		if err != nil {
			status = HealthStatus{State: HealthUnhealthy, Message: err.Error()}
		}
		if status.LastCheck.IsZero() {
			status.LastCheck = time.Now()
		}
		health[name] = status
	}
	return health
}

// Services returns the registered service names in registration order
func (lm *LifecycleManager) Services() []string {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return append([]string(nil), lm.names...)
}

// AddListener adds a lifecycle event listener. Listeners run synchronously
// on the goroutine driving Start or Stop
func (lm *LifecycleManager) AddListener(listener func(LifecycleEvent)) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.listeners = append(lm.listeners, listener)
}

// SetTimeout sets the timeout for service operations
func (lm *LifecycleManager) SetTimeout(timeout time.Duration) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.timeout = timeout
}

// IsStarted returns true if the lifecycle manager has been started
func (lm *LifecycleManager) IsStarted() bool {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return lm.started
}

// calculateStartOrder is Kahn's algorithm with registration order breaking
// ties
func (lm *LifecycleManager) calculateStartOrder() ([]string, error) {
	inDegree := make(map[string]int, len(lm.names))
	dependents := make(map[string][]string, len(lm.names))

	for _, name := range lm.names {
		for _, dep := range lm.dependencies[name] {
			if _, ok := lm.services[dep]; !ok {
				return nil, fmt.Errorf("%w: %s needs %s", ErrUnknownDep, name, dep)
			}
			dependents[dep] = append(dependents[dep], name)
			inDegree[name]++
		}
	}

	done := make(map[string]bool, len(lm.names))
	order := make([]string, 0, len(lm.names))
	for len(order) < len(lm.names) {
		progressed := false
		for _, name := range lm.names {
			if done[name] || inDegree[name] > 0 {
				continue
			}
			done[name] = true
			order = append(order, name)
			for _, d := range dependents[name] {
				inDegree[d]--
			}
			progressed = true
			break
		}
		if !progressed {
			return nil, ErrCircularDeps
		}
	}
	return order, nil
}

func (lm *LifecycleManager) emit(event LifecycleEvent) {
	event.Timestamp = time.Now()

	ev := lm.log.Debug()
	if event.Error != nil {
		ev = lm.log.Error().Err(event.Error)
	}
	ev.Str("service", event.Service).Msg(string(event.Type))

	for _, listener := range lm.listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					lm.log.Error().Interface("panic", r).Msg("lifecycle listener panicked")
				}
			}()
			listener(event)
		}()
	}
}
