package module

import (
	"context"
	"fmt"
	"sync"
)

// OpenRequest identifies one load of a module.
type OpenRequest struct {
	Module     string
	Path       string
	Generation uint64
}

// Boundary is one opened generation of a module. Exports are the values
// the guest published; nothing in them may be shared with another
// generation.
type Boundary interface {
	Exports() []any
	Generation() uint64
	Close() error
}

// Loader opens artifacts into boundaries.
type Loader interface {
	Open(ctx context.Context, req OpenRequest) (Boundary, error)
}

// Reopener is implemented by loaders that can open the same artifact
// again under a new generation. Go plugins cannot: the runtime refuses a
// second plugin with a plugin path it has already loaded.
type Reopener interface {
	CanReopen() bool
}

// Locate returns the single export implementing C.
func Locate[C any](b Boundary) (C, error) {
	var (
		found C
		count int
	)
	for _, e := range b.Exports() {
		if c, ok := e.(C); ok {
			found = c
			count++
		}
	}
	var zero C
	switch count {
	case 0:
		return zero, fmt.Errorf("%w: %T", ErrNoContract, (*C)(nil))
	case 1:
		return found, nil
	default:
		return zero, fmt.Errorf("%w: %d matches for %T", ErrAmbiguousContract, count, (*C)(nil))
	}
}

// boundary is the plain Boundary used by both loaders.
type boundary struct {
	gen     uint64
	mu      sync.Mutex
	exports []any
}

func (b *boundary) Exports() []any {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]any, len(b.exports))
	copy(out, b.exports)
	return out
}

func (b *boundary) Generation() uint64 {
	return b.gen
}

// Close drops the boundary's references to guest values so they become
// unreachable once the host lets go of its tree.
func (b *boundary) Close() error {
	b.mu.Lock()
	b.exports = nil
	b.mu.Unlock()
	return nil
}

// ExportsFunc produces the exports of one generation.
type ExportsFunc func(gen uint64) []any

// RegistryLoader serves modules linked into the host binary. Each Open
// calls the module's factory again, so every generation gets fresh values.
type RegistryLoader struct {
	mu      sync.RWMutex
	modules map[string]ExportsFunc
	opened  map[string]int
}

// NewRegistryLoader creates an empty registry.
func NewRegistryLoader() *RegistryLoader {
	return &RegistryLoader{
		modules: make(map[string]ExportsFunc),
		opened:  make(map[string]int),
	}
}

// Register installs or replaces the factory for a module.
func (l *RegistryLoader) Register(module string, exports ExportsFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.modules[module] = exports
}

// Opened returns how many times a module has been opened.
func (l *RegistryLoader) Opened(module string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.opened[module]
}

// CanReopen implements Reopener. Every open calls the factory again.
func (l *RegistryLoader) CanReopen() bool {
	return true
}

// Open implements Loader.
func (l *RegistryLoader) Open(ctx context.Context, req OpenRequest) (Boundary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	factory, ok := l.modules[req.Module]
	if ok {
		l.opened[req.Module]++
	}
	l.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, req.Module)
	}
	return &boundary{gen: req.Generation, exports: factory(req.Generation)}, nil
}
