package core

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/najoast/stagehand/input"
)

// ServiceFactory creates a service for one Backstage.
type ServiceFactory func(b *Backstage) (any, error)

// ServiceInitializer is implemented by services that need their Backstage
// once constructed through the zero-value fallback.
type ServiceInitializer interface {
	InitService(b *Backstage) error
}

// Disposer is implemented by services that release resources when their
// Backstage is destroyed.
type Disposer interface {
	Dispose()
}

var (
	factoriesMu sync.RWMutex
	factories   = make(map[reflect.Type]ServiceFactory)
)

// RegisterFactory installs the process-wide constructor for services of
// type T. It replaces any earlier factory for T.
func RegisterFactory[T any](factory func(b *Backstage) (T, error)) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[t] = func(b *Backstage) (any, error) {
		return factory(b)
	}
}

func factoryFor(t reflect.Type) (ServiceFactory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[t]
	return f, ok
}

func init() {
	RegisterFactory(func(*Backstage) (*input.Router, error) {
		return input.NewRouter(), nil
	})
	RegisterFactory(func(*Backstage) (*Reaper, error) {
		return &Reaper{}, nil
	})
	RegisterFactory(func(*Backstage) (*PlanCache, error) {
		return NewPlanCache(), nil
	})
}

// Locator holds the per-Backstage singletons keyed by type. Services are
// created on first lookup and disposed in reverse creation order.
type Locator struct {
	mu        sync.RWMutex
	instances map[reflect.Type]any
	order     []reflect.Type
	disposed  bool
}

func (l *Locator) get(t reflect.Type) (any, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.disposed {
		return nil, false, ErrBackstageDestroyed
	}
	v, ok := l.instances[t]
	return v, ok, nil
}

func (l *Locator) put(t reflect.Type, v any) (any, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.disposed {
		return nil, ErrBackstageDestroyed
	}
	if l.instances == nil {
		l.instances = make(map[reflect.Type]any)
	}
	// A factory may have resolved the same type re-entrantly.
	if existing, ok := l.instances[t]; ok {
		return existing, nil
	}
	l.instances[t] = v
	l.order = append(l.order, t)
	return v, nil
}

// Len returns the number of live services.
func (l *Locator) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.instances)
}

func (l *Locator) disposeAll() {
	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		return
	}
	l.disposed = true
	order := l.order
	instances := l.instances
	l.order = nil
	l.instances = nil
	l.mu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		if d, ok := instances[order[i]].(Disposer); ok {
			d.Dispose()
		}
	}
}

// Provide registers an already constructed service on b.
func Provide[T any](b *Backstage, svc T) error {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if _, ok, err := b.locator.get(t); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("%w: %s", ErrServiceExists, t)
	}
	_, err := b.locator.put(t, svc)
	return err
}

// Resolve returns the service of type T on b, creating it on first use.
// Types without a registered factory are built from their zero value when
// T is a pointer to a struct.
func Resolve[T any](b *Backstage) (T, error) {
	var zero T
	if b == nil {
		return zero, ErrNoBackstage
	}
	t := reflect.TypeOf((*T)(nil)).Elem()

	v, ok, err := b.locator.get(t)
	if err != nil {
		return zero, err
	}
	if !ok {
		if v, err = construct(b, t); err != nil {
			return zero, err
		}
		if v, err = b.locator.put(t, v); err != nil {
			return zero, err
		}
		l := b.Logger()
		l.Debug().Str("service", t.String()).Msg("service created")
	}

	svc, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("service %s has type %T", t, v)
	}
	return svc, nil
}

// Lookup returns the service of type T only if it already exists.
func Lookup[T any](b *Backstage) (T, bool) {
	var zero T
	if b == nil {
		return zero, false
	}
	v, ok, err := b.locator.get(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil || !ok {
		return zero, false
	}
	svc, ok := v.(T)
	return svc, ok
}

// MustResolve is Resolve for services that cannot fail to construct.
func MustResolve[T any](b *Backstage) T {
	svc, err := Resolve[T](b)
	if err != nil {
		panic(err)
	}
	return svc
}

func construct(b *Backstage, t reflect.Type) (any, error) {
	if factory, ok := factoryFor(t); ok {
		v, err := factory(b)
		if err != nil {
			return nil, fmt.Errorf("failed to create service %s: %w", t, err)
		}
		return v, nil
	}
	if t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, t)
	}
	v := reflect.New(t.Elem()).Interface()
	if si, ok := v.(ServiceInitializer); ok {
		if err := si.InitService(b); err != nil {
			return nil, fmt.Errorf("failed to create service %s: %w", t, err)
		}
	}
	return v, nil
}
