// Package meshio provides JSON import and export for assembled meshes.
//
// The format is a single JSON object mirroring [forest.Mesh]: element
// connectivity in compressed-row form plus the dependent-node interpolation
// tables. It is meant for handing meshes to downstream solvers and for
// caching, and round-trips exactly through [WriteJSON] and [ReadJSON].
//
// # Format
//
// A mesh with two linear elements and one dependent node looks like:
//
//	{
//	  "order": 2,
//	  "num_nodes": 6,
//	  "num_dependent": 1,
//	  "elem_ptr": [0, 4, 8],
//	  "conn": [0, 1, 3, 4, 1, 2, 4, -1],
//	  "dep_offset": 0,
//	  "dep_ptr": [0, 2],
//	  "dep_conn": [2, 5],
//	  "dep_weights": [0.5, 0.5]
//	}
//
// Connectivity entries are independent node ids in [0, num_nodes), or
// -(dep+1) for the dependent node with global id dep. The dependent node with
// global id dep_offset+k interpolates from the ids and weights in the slice
// dep_ptr[k]:dep_ptr[k+1] of dep_conn and dep_weights.
//
// [ReadJSON] validates structure (monotone pointer arrays, ids in range,
// matching table lengths) so a decoded mesh is safe to index.
package meshio
