// Package pkg provides the core libraries for Forestmesh adaptive meshing.
//
// # Overview
//
// Forestmesh builds 2:1-balanced adaptive quadtree meshes over multi-block
// domains and numbers their nodes for finite-element assembly, including the
// interpolation stencils of hanging nodes. The pkg directory is organized
// into three main areas:
//
//  1. Core domain logic - octants, trees, topology, the distributed forest
//  2. Infrastructure - communication, caching, errors, observability
//  3. Orchestration - the build pipeline and mesh serialization
//
// # Architecture
//
// The typical data flow through Forestmesh:
//
//	TOML case file (block graph + refinement)
//	         ↓
//	    [topology] package (validate block connectivity)
//	         ↓
//	    [tree] package (refine and balance each block's quadtree)
//	         ↓
//	    [forest] package (cross-block balance, partition, number nodes)
//	         ↓
//	    JSON mesh output (elements + hanging-node stencils)
//
// # Quick Start
//
// Build a mesh over two blocks sharing an edge:
//
//	import (
//	    "context"
//	    "github.com/meshforge/forestmesh/pkg/comm"
//	    "github.com/meshforge/forestmesh/pkg/forest"
//	    "github.com/meshforge/forestmesh/pkg/topology"
//	)
//
//	// 1. Describe the domain
//	conn, _ := topology.New(6, [][4]int32{{0, 1, 2, 3}, {1, 4, 3, 5}})
//
//	// 2. Build the forest on a single in-process rank
//	world, _ := comm.NewLocalWorld(1)
//	f, _ := forest.New(conn, world.Comm(0), forest.Options{})
//	_ = f.CreateTreesRefined([]int{2, 0})
//	_ = f.Balance(context.Background(), true)
//	_ = f.CreateNodes(context.Background())
//
//	// 3. Assemble the mesh
//	mesh, _ := f.GetMesh()
//
// # Main Packages
//
// ## Core Domain Logic
//
// [octant] - The linearized quadtree element: integer anchor coordinates on a
// fixed lattice, level, and the space-filling-curve comparators that order
// whole trees.
//
// [stencil] - Interpolation stencil utilities: index/weight pairs, duplicate
// merging, and partition-of-unity checks.
//
// [topology] - The immutable block connectivity graph: corner and edge
// incidence, and coordinate transforms between neighboring block frames.
//
// [tree] - One block's quadtree: refinement, coarsening, 2:1 balancing, and
// per-block node enumeration.
//
// [forest] - The distributed forest of trees: cross-block balancing,
// repartitioning by leaf weight, global node numbering, and mesh assembly.
//
// ## Infrastructure
//
// [comm] - Synchronous collectives (exchange, all-gather, all-reduce) over an
// in-process world of ranks, with opcode checks that surface mismatched
// collective sequences.
//
// [cache] - Mesh artifact caching with file, Redis, and null backends, keyed
// by content hashes of the build inputs.
//
// [errors] - Structured error codes (CONNECTIVITY_INVALID, COMM_MISMATCH,
// STENCIL_DEGENERATE, ...) carried across package boundaries.
//
// [observability] - Global hook registry for balance rounds, exchanges,
// repartitions, numbering, pipeline stages, and cache traffic.
//
// ## Orchestration
//
// [pipeline] - Complete build pipeline (topology → forest → assemble) used by
// the CLI and embedders. Ensures consistent behavior across all entry points.
//
// [meshio] - JSON export and import of assembled meshes.
//
// [buildinfo] - Build-time version metadata injected via ldflags.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...             # All tests
//	go test ./pkg/forest/...      # Specific package
//	go test -run TestBalance      # Specific behavior
//
// [octant]: https://pkg.go.dev/github.com/meshforge/forestmesh/pkg/octant
// [stencil]: https://pkg.go.dev/github.com/meshforge/forestmesh/pkg/stencil
// [topology]: https://pkg.go.dev/github.com/meshforge/forestmesh/pkg/topology
// [tree]: https://pkg.go.dev/github.com/meshforge/forestmesh/pkg/tree
// [forest]: https://pkg.go.dev/github.com/meshforge/forestmesh/pkg/forest
// [comm]: https://pkg.go.dev/github.com/meshforge/forestmesh/pkg/comm
// [cache]: https://pkg.go.dev/github.com/meshforge/forestmesh/pkg/cache
// [errors]: https://pkg.go.dev/github.com/meshforge/forestmesh/pkg/errors
// [observability]: https://pkg.go.dev/github.com/meshforge/forestmesh/pkg/observability
// [pipeline]: https://pkg.go.dev/github.com/meshforge/forestmesh/pkg/pipeline
// [meshio]: https://pkg.go.dev/github.com/meshforge/forestmesh/pkg/meshio
// [buildinfo]: https://pkg.go.dev/github.com/meshforge/forestmesh/pkg/buildinfo
package pkg
