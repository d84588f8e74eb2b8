package cache

// ScopedKeyer wraps a Keyer with a prefix for namespace isolation.
// This keeps concurrent pipelines (for example per-project runs sharing one
// Redis instance) from colliding on cache keys.
//
// Example usage:
//
//	// Project-specific keys
//	projKeyer := NewScopedKeyer(NewDefaultKeyer(), "proj:wing-lo:")
//
//	// Global keys
//	globalKeyer := NewDefaultKeyer()
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// TopologyKey generates a prefixed key for topology caching.
func (k *ScopedKeyer) TopologyKey(topoHash string) string {
	return k.prefix + k.inner.TopologyKey(topoHash)
}

// MeshKey generates a prefixed key for mesh caching.
func (k *ScopedKeyer) MeshKey(topoHash string, opts MeshKeyOpts) string {
	return k.prefix + k.inner.MeshKey(topoHash, opts)
}
