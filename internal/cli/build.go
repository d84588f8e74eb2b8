package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/meshforge/forestmesh/pkg/meshio"
	"github.com/meshforge/forestmesh/pkg/pipeline"
)

// buildOpts holds the command-line flags for the build command.
// Flags override the corresponding case-file settings when set.
type buildOpts struct {
	ranks     int    // in-process rank count override
	order     int    // element order override
	partition bool   // repartition trees by leaf count before numbering
	faceOnly  bool   // balance across faces only, not corners
	refresh   bool   // bypass mesh cache
	output    string // output file path (stdout if empty)
	noCache   bool   // disable caching entirely
	redisURL  string // use a Redis cache instead of the file cache
}

// buildCommand creates the build command.
//
// Default options come from the case file; the mesh is written as JSON to
// --output or stdout.
func (c *CLI) buildCommand() *cobra.Command {
	var opts buildOpts

	cmd := &cobra.Command{
		Use:   "build <case.toml>",
		Short: "Build a mesh from a TOML case file",
		Long: `Build a 2:1-balanced adaptive mesh from a TOML case file.

The case file describes the block topology, per-block refinement levels and
meshing options. Results are cached by content, so rebuilding an unchanged
case is instant.

Examples:
  forestmesh build wing.toml                  # Mesh to stdout
  forestmesh build wing.toml -o wing.json     # Mesh to file
  forestmesh build wing.toml --ranks 4        # Four in-process ranks
  forestmesh build wing.toml --order 3        # Quadratic elements`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBuild(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.ranks, "ranks", 0, "number of in-process ranks (overrides case file)")
	cmd.Flags().IntVar(&opts.order, "order", 0, "element order, 2 or 3 (overrides case file)")
	cmd.Flags().BoolVar(&opts.partition, "partition", false, "repartition trees by leaf count before numbering")
	cmd.Flags().BoolVar(&opts.faceOnly, "face-only", false, "balance across faces only, not corners")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "bypass mesh cache")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (stdout if empty)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().StringVar(&opts.redisURL, "redis", "", "Redis URL for a shared cache (e.g. redis://localhost:6379/0)")

	return cmd
}

// runBuild loads the case file, runs the pipeline and writes the mesh.
func (c *CLI) runBuild(ctx context.Context, path string, opts buildOpts) error {
	caseOpts, err := pipeline.LoadCase(path)
	if err != nil {
		return err
	}
	if opts.ranks > 0 {
		caseOpts.Ranks = opts.ranks
	}
	if opts.order > 0 {
		caseOpts.Order = opts.order
	}
	caseOpts.Partition = caseOpts.Partition || opts.partition
	caseOpts.FaceOnly = caseOpts.FaceOnly || opts.faceOnly
	caseOpts.Refresh = opts.refresh
	caseOpts.Logger = c.Logger

	runner, err := c.newRunner(ctx, opts.noCache, opts.redisURL)
	if err != nil {
		return err
	}
	defer runner.Close()

	c.Logger.Infof("Building %s", path)
	prog := newProgress(c.Logger)
	result, err := runner.Execute(ctx, caseOpts)
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("Built %d elements with %d nodes", result.Mesh.NumElements, result.Mesh.NumNodes)
	if result.CacheInfo.MeshHit {
		msg += " (cached)"
	}
	prog.done(msg)

	return c.writeMesh(result, opts.output)
}

// writeMesh serializes the mesh as JSON to the specified path (or stdout if empty).
func (c *CLI) writeMesh(result *pipeline.Result, path string) error {
	out, err := openOutput(path)
	if err != nil {
		return err
	}
	defer out.Close()

	if err := meshio.WriteJSON(result.Mesh, out); err != nil {
		return err
	}
	if path != "" {
		c.Logger.Infof("Wrote mesh to %s", path)
	}
	return nil
}

// nopCloser wraps an io.Writer with a no-op Close method.
// It is used to make os.Stdout compatible with io.WriteCloser.
type nopCloser struct{ io.Writer }

// Close implements io.Closer with a no-op.
func (nopCloser) Close() error { return nil }

// openOutput returns a WriteCloser for the given path.
// If path is empty, it returns os.Stdout wrapped in nopCloser.
// Otherwise, it creates the file at path, overwriting if it exists.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}
