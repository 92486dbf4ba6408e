package input

import "fmt"

// Arity is the declared parameter shape of a handler.
type Arity uint8

const (
	ArityNone Arity = iota
	ArityScalar
	ArityVec2
	ArityVec3
)

// String returns the string representation of Arity.
func (a Arity) String() string {
	switch a {
	case ArityNone:
		return "none"
	case ArityScalar:
		return "scalar"
	case ArityVec2:
		return "vec2"
	case ArityVec3:
		return "vec3"
	default:
		return "unknown"
	}
}

// Callback is a handler in one of the closed set of shapes.
type Callback struct {
	arity  Arity
	none   func()
	scalar func(float64)
	vec2   func(Vec2)
	vec3   func(Vec3)
}

// NewCallback checks fn against the declared arity. A mismatch is
// reported as ErrArityMismatch instead of failing on first invocation.
func NewCallback(arity Arity, fn any) (Callback, error) {
	cb := Callback{arity: arity}
	ok := false
	switch arity {
	case ArityNone:
		cb.none, ok = fn.(func())
	case ArityScalar:
		cb.scalar, ok = fn.(func(float64))
	case ArityVec2:
		cb.vec2, ok = fn.(func(Vec2))
	case ArityVec3:
		cb.vec3, ok = fn.(func(Vec3))
	default:
		return Callback{}, fmt.Errorf("%w: unknown arity %d", ErrArityMismatch, arity)
	}
	if !ok || fn == nil {
		return Callback{}, fmt.Errorf("%w: declared %s, got %T", ErrArityMismatch, arity, fn)
	}
	return cb, nil
}

// Arity returns the callback shape.
func (c Callback) Arity() Arity {
	return c.arity
}

// Invoke calls the handler with v narrowed to its shape.
func (c Callback) Invoke(v Vec3) {
	switch c.arity {
	case ArityNone:
		c.none()
	case ArityScalar:
		c.scalar(v.X)
	case ArityVec2:
		c.vec2(v.XY())
	case ArityVec3:
		c.vec3(v)
	}
}
