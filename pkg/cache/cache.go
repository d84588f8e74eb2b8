// Package cache provides caching interfaces and implementations for mesh
// pipeline results.
//
// The package defines a Cache interface with pluggable backends (file-based,
// Redis, null) and a Keyer interface for deterministic cache key generation.
// Keys hash the full set of inputs that determine a result, so a cache hit is
// only possible when the topology, refinement and meshing options all match.
package cache

import (
	"context"
	"time"
)

// Cache is the storage interface for serialized pipeline results.
type Cache interface {
	// Get retrieves a value. The second return value reports whether the
	// key was found; an expired or absent key is a miss, not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with a time-to-live. A non-positive ttl stores
	// the value without expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Default TTLs per cached artifact kind.
//
// Topology validation is cheap to recompute but immutable for a given input,
// so it keeps the longest TTL. Meshes are the expensive artifact and the one
// the pipeline actually reuses across runs.
const (
	// TTLTopology is the TTL for validated topology fingerprints.
	TTLTopology = 7 * 24 * time.Hour

	// TTLMesh is the TTL for assembled meshes.
	TTLMesh = 24 * time.Hour
)

// MeshKeyOpts captures every meshing option that changes the resulting mesh.
// Two runs with equal topology hashes and equal MeshKeyOpts produce
// byte-identical meshes, so they may share a cache entry.
type MeshKeyOpts struct {
	Order         int   `json:"order"`
	CornerBalance bool  `json:"corner_balance"`
	Levels        []int `json:"levels"`
	Ranks         int   `json:"ranks"`
}

// Keyer generates cache keys for the pipeline's cacheable stages.
type Keyer interface {
	// TopologyKey generates a key for a validated topology, identified by
	// the hash of its canonical encoding.
	TopologyKey(topoHash string) string

	// MeshKey generates a key for an assembled mesh. The key covers the
	// topology hash and all meshing options.
	MeshKey(topoHash string, opts MeshKeyOpts) string
}

// DefaultKeyer is the standard key generation strategy.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// TopologyKey generates a key for topology caching.
// Format: topo:<hash>
func (k *DefaultKeyer) TopologyKey(topoHash string) string {
	return "topo:" + topoHash
}

// MeshKey generates a key for mesh caching.
// Format: mesh:<sha256(topoHash, opts)>
func (k *DefaultKeyer) MeshKey(topoHash string, opts MeshKeyOpts) string {
	return hashKey("mesh", topoHash, opts)
}

// Ensure DefaultKeyer implements Keyer.
var _ Keyer = (*DefaultKeyer)(nil)
