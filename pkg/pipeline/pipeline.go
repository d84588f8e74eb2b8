// Package pipeline provides the core mesh build pipeline for Forestmesh.
//
// This package implements the complete topology → refine → balance → number →
// assemble pipeline that can be used by CLI and embedding components. By
// centralizing this logic, we ensure consistent behavior across all entry
// points and avoid code duplication.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Topology: Validate the block connectivity of the case
//  2. Forest: Refine, 2:1-balance and optionally repartition the trees,
//     then number the nodes, once per rank of an in-process world
//  3. Assemble: Merge the per-rank meshes into one global mesh
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{
//	    Nodes:  6,
//	    Blocks: [][]int32{{0, 1, 2, 3}, {1, 4, 3, 5}},
//	    Levels: []int{2, 0},
//	    Order:  2,
//	}
//	result, err := runner.Execute(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	mesh := result.Mesh
package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/meshforge/forestmesh/pkg/cache"
	"github.com/meshforge/forestmesh/pkg/errors"
	"github.com/meshforge/forestmesh/pkg/forest"
	"github.com/meshforge/forestmesh/pkg/octant"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and Embedders
// =============================================================================

const (
	// DefaultOrder is the default element order (bilinear elements).
	DefaultOrder = 2

	// DefaultRanks is the default number of in-process ranks.
	DefaultRanks = 1
)

// Stage names reported to observability hooks.
const (
	StageTopology = "topology"
	StageForest   = "forest"
	StageAssemble = "assemble"
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for one mesh build. The toml tags match
// the case-file format loaded by [LoadCase]; the json tags give the canonical
// encoding hashed for cache keys.
type Options struct {
	// Topology: the block graph of the domain.
	Name   string    `toml:"name" json:"name,omitempty"`
	Nodes  int       `toml:"nodes" json:"nodes"`
	Blocks [][]int32 `toml:"blocks" json:"blocks"`

	// Refinement: either one uniform level or one level per block.
	UniformLevel int   `toml:"uniform_level" json:"uniform_level,omitempty"`
	Levels       []int `toml:"levels" json:"levels,omitempty"`

	// Meshing options. FaceOnly restricts 2:1 balancing to face neighbors;
	// corners are included by default.
	Order    int  `toml:"order" json:"order,omitempty"`
	FaceOnly bool `toml:"face_only" json:"face_only,omitempty"`

	// Execution options. Partition rebalances tree ownership by leaf count
	// before numbering.
	Ranks     int  `toml:"ranks" json:"ranks,omitempty"`
	Partition bool `toml:"partition" json:"partition,omitempty"`
	Refresh   bool `toml:"-" json:"-"`

	// Runtime options (not serialized)
	Logger *log.Logger `toml:"-" json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// LoadCase reads a TOML case file into Options. Unknown keys are rejected so
// that a typo in a case file fails loudly instead of silently using a
// default.
func LoadCase(path string) (Options, error) {
	var opts Options
	md, err := toml.DecodeFile(path, &opts)
	if err != nil {
		return Options{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Options{}, fmt.Errorf("parse %s: unknown key %q", path, undecoded[0].String())
	}
	return opts, nil
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Mesh is the assembled global mesh.
	Mesh *forest.Mesh

	// TopoHash is the content hash of the canonical topology encoding.
	TopoHash string

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks whether the mesh came from cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	NumElements  int
	NumNodes     int32
	NumDependent int32
	ForestTime   time.Duration
	TotalTime    time.Duration
}

// CacheInfo tracks cache hits for the pipeline.
type CacheInfo struct {
	MeshHit bool // Whether the mesh came from cache
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks required fields and applies defaults for the
// full pipeline. This method is idempotent - calling it multiple times has
// the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Nodes <= 0 {
		return fmt.Errorf("nodes must be positive, got %d", o.Nodes)
	}
	if len(o.Blocks) == 0 {
		return fmt.Errorf("at least one block is required")
	}
	for b, conn := range o.Blocks {
		if len(conn) != 4 {
			return fmt.Errorf("block %d has %d corner nodes, want 4", b, len(conn))
		}
	}
	if o.Levels != nil && len(o.Levels) != len(o.Blocks) {
		return fmt.Errorf("levels has %d entries for %d blocks", len(o.Levels), len(o.Blocks))
	}
	for b, l := range o.resolvedLevels() {
		if l < 0 || l > octant.MaxLevel {
			return fmt.Errorf("block %d level %d outside [0, %d]", b, l, octant.MaxLevel)
		}
	}

	if o.Order == 0 {
		o.Order = DefaultOrder
	}
	if err := errors.ValidateMeshOrder(o.Order); err != nil {
		return err
	}
	if o.Ranks == 0 {
		o.Ranks = DefaultRanks
	}
	if o.Ranks < 0 {
		return fmt.Errorf("ranks must be positive, got %d", o.Ranks)
	}

	// Logger default
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	o.validated = true
	return nil
}

// resolvedLevels returns the per-block refinement levels, expanding
// UniformLevel when Levels is unset.
func (o *Options) resolvedLevels() []int {
	if o.Levels != nil {
		return o.Levels
	}
	levels := make([]int, len(o.Blocks))
	for b := range levels {
		levels[b] = o.UniformLevel
	}
	return levels
}

// BlockConn converts the case-file block lists into the fixed-width corner
// arrays expected by topology.New. ValidateAndSetDefaults must have checked
// the widths.
func (o *Options) BlockConn() [][4]int32 {
	conn := make([][4]int32, len(o.Blocks))
	for b, nodes := range o.Blocks {
		copy(conn[b][:], nodes)
	}
	return conn
}

// TopologyHash returns the content hash of the canonical topology encoding.
// It covers only the block graph, not refinement or meshing options, so it
// identifies the domain across runs.
func (o *Options) TopologyHash() (string, error) {
	data, err := json.Marshal(struct {
		Nodes  int       `json:"nodes"`
		Blocks [][]int32 `json:"blocks"`
	}{o.Nodes, o.Blocks})
	if err != nil {
		return "", fmt.Errorf("encode topology: %w", err)
	}
	return cache.Hash(data), nil
}

// MeshKeyOpts returns cache key options covering every input that changes
// the assembled mesh.
func (o *Options) MeshKeyOpts() cache.MeshKeyOpts {
	return cache.MeshKeyOpts{
		Order:         o.Order,
		CornerBalance: !o.FaceOnly,
		Levels:        o.resolvedLevels(),
		Ranks:         o.Ranks,
	}
}
