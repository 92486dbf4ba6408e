package module

// Handle is a reference to a value that belongs to one generation of a
// module. After the module reloads, Get reports ErrStaleGeneration instead
// of returning a value from the unloaded generation.
type Handle[T any] struct {
	host  *Host
	gen   uint64
	value T
}

// NewHandle ties v to the host's current generation.
func NewHandle[T any](h *Host, v T) Handle[T] {
	return Handle[T]{host: h, gen: h.Generation(), value: v}
}

// Generation returns the generation the handle was issued in.
func (h Handle[T]) Generation() uint64 {
	return h.gen
}

// Get returns the value while its generation is still loaded.
func (h Handle[T]) Get() (T, error) {
	var zero T
	if h.host == nil || !h.host.isLive(h.gen) {
		return zero, ErrStaleGeneration
	}
	return h.value, nil
}
