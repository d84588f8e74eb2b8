package meshio

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/meshforge/forestmesh/pkg/forest"
)

// ReadJSON decodes a JSON mesh from r.
//
// ReadJSON returns an error if:
//   - The JSON is malformed or invalid
//   - A pointer array is not monotone or does not span its data array
//   - A connectivity entry references a node or dependent id out of range
//   - The dependent tables have mismatched lengths
//
// The returned mesh is independent of r and can be modified safely after
// ReadJSON returns. ReadJSON does not close r.
func ReadJSON(r io.Reader) (*forest.Mesh, error) {
	var data mesh
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	if data.Order < 2 {
		return nil, fmt.Errorf("order %d must be at least 2", data.Order)
	}
	if data.NumNodes < 0 || data.NumDependent < 0 {
		return nil, fmt.Errorf("negative node counts (%d, %d)", data.NumNodes, data.NumDependent)
	}

	if err := checkPtr("elem_ptr", data.ElemPtr, len(data.Conn)); err != nil {
		return nil, err
	}
	width := int32(data.Order * data.Order)
	for i := 0; i+1 < len(data.ElemPtr); i++ {
		if data.ElemPtr[i+1]-data.ElemPtr[i] != width {
			return nil, fmt.Errorf("element %d has %d nodes, want %d for order %d",
				i, data.ElemPtr[i+1]-data.ElemPtr[i], width, data.Order)
		}
	}
	for i, v := range data.Conn {
		if v >= 0 && v < data.NumNodes {
			continue
		}
		if v < 0 && -v-1 < data.NumDependent {
			continue
		}
		return nil, fmt.Errorf("conn[%d] = %d is out of range", i, v)
	}

	if err := checkPtr("dep_ptr", data.DepPtr, len(data.DepConn)); err != nil {
		return nil, err
	}
	if len(data.DepWeights) != len(data.DepConn) {
		return nil, fmt.Errorf("dep_weights has %d entries, dep_conn has %d",
			len(data.DepWeights), len(data.DepConn))
	}
	if data.DepOffset < 0 || data.DepOffset+int32(len(data.DepPtr)-1) > data.NumDependent {
		return nil, fmt.Errorf("dependent range [%d, %d) exceeds %d dependent nodes",
			data.DepOffset, data.DepOffset+int32(len(data.DepPtr)-1), data.NumDependent)
	}
	for i, v := range data.DepConn {
		if v < 0 || v >= data.NumNodes {
			return nil, fmt.Errorf("dep_conn[%d] = %d is out of range", i, v)
		}
	}

	return &forest.Mesh{
		Order:        data.Order,
		NumNodes:     data.NumNodes,
		NumDependent: data.NumDependent,
		NumElements:  len(data.ElemPtr) - 1,
		ElemPtr:      data.ElemPtr,
		Conn:         data.Conn,
		DepOffset:    data.DepOffset,
		DepPtr:       data.DepPtr,
		DepConn:      data.DepConn,
		DepWeights:   data.DepWeights,
	}, nil
}

// checkPtr validates a compressed-row pointer array: it must start at 0, be
// nondecreasing, and end at the length of the array it indexes.
func checkPtr(name string, ptr []int32, dataLen int) error {
	if len(ptr) == 0 {
		return fmt.Errorf("%s is empty", name)
	}
	if ptr[0] != 0 {
		return fmt.Errorf("%s must start at 0, got %d", name, ptr[0])
	}
	for i := 1; i < len(ptr); i++ {
		if ptr[i] < ptr[i-1] {
			return fmt.Errorf("%s decreases at index %d", name, i)
		}
	}
	if int(ptr[len(ptr)-1]) != dataLen {
		return fmt.Errorf("%s ends at %d, data has %d entries", name, ptr[len(ptr)-1], dataLen)
	}
	return nil
}

// ImportJSON reads a JSON file at path and returns the decoded mesh.
//
// ImportJSON opens the file, decodes it using [ReadJSON], and closes the
// file. The error wraps the underlying cause with the file path for context.
func ImportJSON(path string) (*forest.Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSON(f)
}
