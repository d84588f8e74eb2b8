package cli

import (
	"github.com/spf13/cobra"

	"github.com/meshforge/forestmesh/pkg/pipeline"
	"github.com/meshforge/forestmesh/pkg/topology"
)

// checkCommand creates the check command, which validates a case file
// without building anything.
func (c *CLI) checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <case.toml>",
		Short: "Validate a case file and its block topology",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCheck(args[0])
		},
	}
}

// runCheck loads and validates the case file and reports the derived
// topology: block, edge and boundary counts.
func (c *CLI) runCheck(path string) error {
	opts, err := pipeline.LoadCase(path)
	if err != nil {
		return err
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return err
	}

	conn, err := topology.New(opts.Nodes, opts.BlockConn())
	if err != nil {
		return err
	}

	boundary := 0
	for b := 0; b < conn.NumBlocks(); b++ {
		for e := 0; e < 4; e++ {
			if _, _, _, ok := conn.EdgeNeighbor(int32(b), e); !ok {
				boundary++
			}
		}
	}

	c.Logger.Infof("%s is valid", path)
	c.Logger.Infof("  blocks: %d", conn.NumBlocks())
	c.Logger.Infof("  corner nodes: %d", conn.NumNodes())
	c.Logger.Infof("  edges: %d (%d on the domain boundary)", conn.NumEdges(), boundary)
	return nil
}
