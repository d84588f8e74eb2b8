// Package stencil builds interpolation stencils for dependent (hanging)
// mesh nodes. A stencil expresses a dependent node's value as a weighted
// combination of independent nodes; for a conforming interpolation the
// merged weights must sum to exactly one.
package stencil

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrDegenerate is returned by CheckPartitionOfUnity when merged weights do
// not sum to one within tolerance. This indicates a connectivity or
// balancing bug upstream; weights are never silently renormalized.
var ErrDegenerate = errors.New("stencil weights do not sum to one")

// DefaultTolerance is the partition-of-unity tolerance used when the caller
// does not configure one.
const DefaultTolerance = 1e-12

// IndexWeight is one (independent node, weight) contribution to a dependent
// node's interpolation stencil.
type IndexWeight struct {
	Index  int32
	Weight float64
}

// UniqueSort sorts entries by index and merges runs with equal index by
// summing their weights. It returns the shortened slice, reusing the input
// backing array. Duplicate contributions arise when several coarse
// neighbors contribute to the same independent node.
func UniqueSort(entries []IndexWeight) []IndexWeight {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Index < entries[j].Index })

	j := 0
	for i := 0; i < len(entries); i, j = i+1, j+1 {
		if i != j {
			entries[j] = entries[i]
		}
		for i+1 < len(entries) && entries[i].Index == entries[i+1].Index {
			entries[j].Weight += entries[i+1].Weight
			i++
		}
	}
	return entries[:j]
}

// CheckPartitionOfUnity verifies that the merged weights sum to one within
// tol. A non-positive tol selects DefaultTolerance. The error carries the
// observed sum so the failure can be reproduced.
func CheckPartitionOfUnity(entries []IndexWeight, tol float64) error {
	if tol <= 0 {
		tol = DefaultTolerance
	}
	sum := 0.0
	for _, e := range entries {
		sum += e.Weight
	}
	if math.Abs(sum-1.0) > tol {
		return fmt.Errorf("%w: sum = %.17g over %d entries", ErrDegenerate, sum, len(entries))
	}
	return nil
}
