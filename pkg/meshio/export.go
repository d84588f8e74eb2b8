package meshio

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/meshforge/forestmesh/pkg/forest"
)

type mesh struct {
	Order        int       `json:"order"`
	NumNodes     int32     `json:"num_nodes"`
	NumDependent int32     `json:"num_dependent"`
	ElemPtr      []int32   `json:"elem_ptr"`
	Conn         []int32   `json:"conn"`
	DepOffset    int32     `json:"dep_offset"`
	DepPtr       []int32   `json:"dep_ptr"`
	DepConn      []int32   `json:"dep_conn,omitempty"`
	DepWeights   []float64 `json:"dep_weights,omitempty"`
}

// WriteJSON encodes a mesh as JSON and writes it to w.
// The output can be re-imported with [ReadJSON] for round-trip processing.
func WriteJSON(m *forest.Mesh, w io.Writer) error {
	out := mesh{
		Order:        m.Order,
		NumNodes:     m.NumNodes,
		NumDependent: m.NumDependent,
		ElemPtr:      m.ElemPtr,
		Conn:         m.Conn,
		DepOffset:    m.DepOffset,
		DepPtr:       m.DepPtr,
		DepConn:      m.DepConn,
		DepWeights:   m.DepWeights,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportJSON writes a mesh to a JSON file at path.
// This is a convenience wrapper around [WriteJSON] for file-based output.
func ExportJSON(m *forest.Mesh, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteJSON(m, f)
}
