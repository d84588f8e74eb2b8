package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/meshforge/forestmesh/pkg/cache"
	"github.com/meshforge/forestmesh/pkg/comm"
	"github.com/meshforge/forestmesh/pkg/forest"
	"github.com/meshforge/forestmesh/pkg/meshio"
	"github.com/meshforge/forestmesh/pkg/observability"
	"github.com/meshforge/forestmesh/pkg/topology"
)

// Runner encapsulates pipeline execution with caching.
//
// The Runner is stateless except for the cache and logger - it doesn't store
// pipeline results. Multiple goroutines can safely use the same Runner with
// different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete topology → forest → assemble pipeline with
// caching. Each run gets a fresh id in its log lines so concurrent builds
// can be told apart.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	logger := r.Logger.With("run", uuid.New().String())
	start := time.Now()

	result := &Result{}
	topoHash, err := opts.TopologyHash()
	if err != nil {
		return nil, err
	}
	result.TopoHash = topoHash

	// Try cache first (unless refresh requested)
	cacheKey := r.Keyer.MeshKey(topoHash, opts.MeshKeyOpts())
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			if m, err := meshio.ReadJSON(bytes.NewReader(data)); err == nil {
				observability.Cache().OnCacheHit(ctx, "mesh")
				result.Mesh = m
				result.CacheInfo.MeshHit = true
				result.Stats = Stats{
					NumElements:  m.NumElements,
					NumNodes:     m.NumNodes,
					NumDependent: m.NumDependent,
					TotalTime:    time.Since(start),
				}
				logger.Info("mesh loaded from cache",
					"elements", m.NumElements,
					"nodes", m.NumNodes)
				return result, nil
			}
			// Undecodable entry; fall through to rebuild
		}
		observability.Cache().OnCacheMiss(ctx, "mesh")
	}

	// Stage 1: Topology
	conn, err := r.buildTopology(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("topology: %w", err)
	}
	logger.Info("validated topology",
		"blocks", conn.NumBlocks(),
		"edges", conn.NumEdges())

	// Stage 2: Forest, one rank per goroutine
	forestStart := time.Now()
	parts, err := r.buildForest(ctx, conn, opts)
	result.Stats.ForestTime = time.Since(forestStart)
	if err != nil {
		return nil, fmt.Errorf("forest: %w", err)
	}
	logger.Info("built forest",
		"ranks", opts.Ranks,
		"duration", result.Stats.ForestTime)

	// Stage 3: Assemble
	mesh, err := r.assemble(ctx, parts)
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}
	result.Mesh = mesh
	result.Stats.NumElements = mesh.NumElements
	result.Stats.NumNodes = mesh.NumNodes
	result.Stats.NumDependent = mesh.NumDependent
	result.Stats.TotalTime = time.Since(start)

	logger.Info("assembled mesh",
		"elements", mesh.NumElements,
		"nodes", mesh.NumNodes,
		"dependent", mesh.NumDependent,
		"duration", result.Stats.TotalTime)

	// Cache the result
	var buf bytes.Buffer
	if err := meshio.WriteJSON(mesh, &buf); err == nil {
		if err := r.Cache.Set(ctx, cacheKey, buf.Bytes(), cache.TTLMesh); err == nil {
			observability.Cache().OnCacheSet(ctx, "mesh", buf.Len())
		}
	}

	return result, nil
}

// buildTopology validates the case's block graph.
func (r *Runner) buildTopology(ctx context.Context, opts Options) (*topology.Connectivity, error) {
	observability.Pipeline().OnStageStart(ctx, StageTopology)
	start := time.Now()
	conn, err := topology.New(opts.Nodes, opts.BlockConn())
	observability.Pipeline().OnStageComplete(ctx, StageTopology, time.Since(start), err)
	return conn, err
}

// buildForest refines, balances, optionally repartitions and numbers the
// forest on an in-process world, returning one mesh per rank.
func (r *Runner) buildForest(ctx context.Context, conn *topology.Connectivity, opts Options) ([]*forest.Mesh, error) {
	observability.Pipeline().OnStageStart(ctx, StageForest)
	start := time.Now()

	world, err := comm.NewLocalWorld(opts.Ranks)
	if err != nil {
		observability.Pipeline().OnStageComplete(ctx, StageForest, time.Since(start), err)
		return nil, err
	}
	parts := make([]*forest.Mesh, opts.Ranks)
	err = world.Run(ctx, func(c comm.Communicator) error {
		f, err := forest.New(conn, c, forest.Options{
			MeshOrder: opts.Order,
			Logger:    opts.Logger,
		})
		if err != nil {
			return err
		}
		if err := f.CreateTreesRefined(opts.resolvedLevels()); err != nil {
			return err
		}
		if err := f.Balance(ctx, !opts.FaceOnly); err != nil {
			return err
		}
		if opts.Partition {
			if err := f.Repartition(ctx, nil); err != nil {
				return err
			}
		}
		if err := f.CreateNodes(ctx); err != nil {
			return err
		}
		m, err := f.GetMesh()
		if err != nil {
			return err
		}
		parts[c.Rank()] = m
		return nil
	})
	observability.Pipeline().OnStageComplete(ctx, StageForest, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return parts, nil
}

// assemble merges the per-rank meshes into one global mesh.
func (r *Runner) assemble(ctx context.Context, parts []*forest.Mesh) (*forest.Mesh, error) {
	observability.Pipeline().OnStageStart(ctx, StageAssemble)
	start := time.Now()
	mesh, err := MergeMeshes(parts)
	observability.Pipeline().OnStageComplete(ctx, StageAssemble, time.Since(start), err)
	return mesh, err
}

// MergeMeshes concatenates per-rank meshes into one global mesh. Parts must
// be in rank order: node ids are already global, element blocks follow the
// block ordering across ranks, and dependent id ranges are contiguous.
func MergeMeshes(parts []*forest.Mesh) (*forest.Mesh, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("no meshes to merge")
	}
	merged := &forest.Mesh{
		Order:        parts[0].Order,
		NumNodes:     parts[0].NumNodes,
		NumDependent: parts[0].NumDependent,
		ElemPtr:      []int32{0},
		DepPtr:       []int32{0},
	}
	nextDep := int32(0)
	for i, p := range parts {
		if p == nil {
			return nil, fmt.Errorf("rank %d produced no mesh", i)
		}
		if p.Order != merged.Order || p.NumNodes != merged.NumNodes || p.NumDependent != merged.NumDependent {
			return nil, fmt.Errorf("rank %d mesh disagrees on global counts", i)
		}
		if p.DepOffset != nextDep {
			return nil, fmt.Errorf("rank %d dependent ids start at %d, want %d", i, p.DepOffset, nextDep)
		}
		nextDep += int32(len(p.DepPtr) - 1)

		connBase := int32(len(merged.Conn))
		merged.Conn = append(merged.Conn, p.Conn...)
		for _, ptr := range p.ElemPtr[1:] {
			merged.ElemPtr = append(merged.ElemPtr, connBase+ptr)
		}

		depBase := int32(len(merged.DepConn))
		merged.DepConn = append(merged.DepConn, p.DepConn...)
		merged.DepWeights = append(merged.DepWeights, p.DepWeights...)
		for _, ptr := range p.DepPtr[1:] {
			merged.DepPtr = append(merged.DepPtr, depBase+ptr)
		}
	}
	if nextDep != merged.NumDependent {
		return nil, fmt.Errorf("merged meshes cover %d dependent nodes, want %d", nextDep, merged.NumDependent)
	}
	merged.NumElements = len(merged.ElemPtr) - 1
	return merged, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}
