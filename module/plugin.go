package module

import (
	"context"
	"fmt"
	"plugin"
)

// ExportsSymbol is the symbol a plugin module defines. It is either a
// variable of type []any or a func() []any.
const ExportsSymbol = "Exports"

// PluginLoader opens artifacts built with -buildmode=plugin. Each
// generation must be built with a distinct plugin path so the runtime
// treats it as a new package set.
type PluginLoader struct{}

// Open implements Loader.
func (PluginLoader) Open(ctx context.Context, req OpenRequest) (Boundary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := plugin.Open(req.Path)
	if err != nil {
		return nil, fmt.Errorf("open plugin %s: %w", req.Path, err)
	}
	sym, err := p.Lookup(ExportsSymbol)
	if err != nil {
		return nil, fmt.Errorf("plugin %s: %w", req.Path, err)
	}

	var exports []any
	switch v := sym.(type) {
	case *[]any:
		exports = append(exports, (*v)...)
	case func() []any:
		exports = v()
	default:
		return nil, fmt.Errorf("plugin %s: symbol %s has type %T", req.Path, ExportsSymbol, sym)
	}
	return &boundary{gen: req.Generation, exports: exports}, nil
}
