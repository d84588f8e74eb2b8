package meshio

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshforge/forestmesh/pkg/forest"
)

func sampleMesh() *forest.Mesh {
	return &forest.Mesh{
		Order:        2,
		NumNodes:     6,
		NumDependent: 1,
		NumElements:  2,
		ElemPtr:      []int32{0, 4, 8},
		Conn:         []int32{0, 1, 3, 4, 1, 2, 4, -1},
		DepOffset:    0,
		DepPtr:       []int32{0, 2},
		DepConn:      []int32{2, 5},
		DepWeights:   []float64{0.5, 0.5},
	}
}

func TestRoundTrip(t *testing.T) {
	m := sampleMesh()

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(m, &buf))

	got, err := ReadJSON(&buf)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestRoundTripFile(t *testing.T) {
	m := sampleMesh()
	path := filepath.Join(t.TempDir(), "mesh.json")

	require.NoError(t, ExportJSON(m, path))
	got, err := ImportJSON(path)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestReadJSONRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"malformed", `{"order": 2,`, "decode"},
		{"low order", `{"order": 1, "elem_ptr": [0], "dep_ptr": [0]}`, "order 1"},
		{
			"bad element width",
			`{"order": 2, "num_nodes": 3, "elem_ptr": [0, 3], "conn": [0, 1, 2], "dep_ptr": [0]}`,
			"want 4 for order 2",
		},
		{
			"elem_ptr not starting at 0",
			`{"order": 2, "num_nodes": 4, "elem_ptr": [1, 5], "conn": [0, 1, 2, 3], "dep_ptr": [0]}`,
			"elem_ptr must start at 0",
		},
		{
			"decreasing dep_ptr",
			`{"order": 2, "num_nodes": 4, "num_dependent": 2, "elem_ptr": [0, 4],
			  "conn": [0, 1, 2, 3], "dep_ptr": [0, 2, 1], "dep_conn": [0], "dep_weights": [1]}`,
			"dep_ptr decreases",
		},
		{
			"node id out of range",
			`{"order": 2, "num_nodes": 3, "elem_ptr": [0, 4], "conn": [0, 1, 2, 3], "dep_ptr": [0]}`,
			"conn[3] = 3",
		},
		{
			"dependent id out of range",
			`{"order": 2, "num_nodes": 4, "num_dependent": 0, "elem_ptr": [0, 4],
			  "conn": [0, 1, 2, -1], "dep_ptr": [0]}`,
			"conn[3] = -1",
		},
		{
			"mismatched weights",
			`{"order": 2, "num_nodes": 4, "num_dependent": 1, "elem_ptr": [0, 4],
			  "conn": [0, 1, 2, 3], "dep_ptr": [0, 2], "dep_conn": [0, 1], "dep_weights": [0.5]}`,
			"dep_weights has 1",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadJSON(strings.NewReader(tc.in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestImportJSONMissingFile(t *testing.T) {
	_, err := ImportJSON(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open")
}
