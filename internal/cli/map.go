package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/canopyviz/canopy/pkg/mergetree"
	"github.com/canopyviz/canopy/pkg/pipeline"
	"github.com/canopyviz/canopy/pkg/resmap"
)

// mapOpts holds the command-line flags for the map command.
type mapOpts struct {
	resolutions string // comma-separated resolution list
	formats     string // comma-separated output formats
	output      string // output directory for artifacts
	config      string // explicit config file path
	document    string // stitched document JSON to start from
	minSize     int    // drop clusters smaller than this
	detailed    bool   // add merge values and rungs to node labels
	annotate    bool   // add side notes for unaccounted mass
	noCache     bool   // disable caching
	refresh     bool   // bypass the cache for this run
}

// newMapCmd creates the map command for assembling resolution maps.
func newMapCmd() *cobra.Command {
	var opts mapOpts

	cmd := &cobra.Command{
		Use:   "map [stream.tsv]",
		Short: "Assemble clusterings into a leveled resolution map",
		Long: `Assemble clusterings into a leveled resolution map.

The map command runs the full pipeline: it cuts the merge stream at the
requested resolutions, stitches the clusterings into a containment graph,
places every cluster on a rung derived from its merge value, and renders the
result. Clusters smaller than --min-size are silently dropped; their mass is
reported as unaccounted on the retained parents.

With --document the cut is skipped: the stitched node/link document from an
earlier run (the json artifact) is read back and only the layout and render
stages run.

Supported formats are dot (default), svg, and json.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.document != "" {
				if len(args) > 0 {
					return fmt.Errorf("--document replaces the stream argument; pass one or the other")
				}
				return runMapFromDocument(cmd.Context(), opts)
			}
			if len(args) == 0 {
				return fmt.Errorf("merge stream argument or --document required")
			}
			return runMap(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.resolutions, "resolutions", "r", "", "resolution(s) to cut at (comma-separated)")
	cmd.Flags().StringVarP(&opts.formats, "format", "f", "", "output format(s): dot (default), svg, json (comma-separated)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output directory for artifacts (default: current directory)")
	cmd.Flags().StringVar(&opts.config, "config", "", "config file (default: canopy.toml if present)")
	cmd.Flags().StringVar(&opts.document, "document", "", "stitched document JSON from an earlier run (skips the cut)")
	cmd.Flags().IntVar(&opts.minSize, "min-size", 0, "drop clusters smaller than this from the map")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show merge values and rungs in node labels")
	cmd.Flags().BoolVar(&opts.annotate, "annotate", false, "annotate nodes with unaccounted mass")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "recompute even if cached")

	return cmd
}

// runMap executes the full pipeline and writes the rendered artifacts.
func runMap(ctx context.Context, input string, opts mapOpts) error {
	logger := loggerFromContext(ctx)

	resolutions, err := parseResolutions(opts.resolutions)
	if err != nil {
		return err
	}

	formats := parseFormats(opts.formats)
	if len(formats) == 0 {
		formats = []string{pipeline.FormatDOT}
	}
	if err := pipeline.ValidateFormats(formats); err != nil {
		return err
	}

	popts := pipeline.Options{
		StreamPath:  input,
		Resolutions: resolutions,
		MinSize:     opts.minSize,
		OutputDir:   opts.output,
		Formats:     formats,
		Detailed:    opts.detailed,
		Annotate:    opts.annotate,
		Refresh:     opts.refresh,
		Logger:      logger,
	}
	cfg, found, err := loadConfig(opts.config)
	if err != nil {
		return err
	}
	if found {
		cfg.apply(&popts)
	}

	runner, err := newRunner(opts.noCache, logger)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, "Assembling resolution map...")
	spinner.Start()

	result, err := runner.Execute(ctx, popts)
	if err != nil {
		spinner.StopWithError("Map failed")
		return fmt.Errorf("map: %w", err)
	}
	spinner.Stop()

	printSuccess("Mapped %s", input)
	printStats(result.Stats.ItemCount, result.Stats.ClusterCount, result.CacheInfo.CutHit)
	if result.DroppedNodes > 0 {
		printWarning("Dropped %d clusters and %d links below min size", result.DroppedNodes, result.DroppedLinks)
	}

	return writeArtifacts(result.Artifacts, popts.Formats, popts.OutputDir)
}

// runMapFromDocument reruns layout and render on a stitched document from an
// earlier run, without touching the merge stream or the cache.
func runMapFromDocument(ctx context.Context, opts mapOpts) error {
	formats := parseFormats(opts.formats)
	if len(formats) == 0 {
		formats = []string{pipeline.FormatDOT}
	}
	if err := pipeline.ValidateFormats(formats); err != nil {
		return err
	}
	for _, f := range formats {
		if f == pipeline.FormatTSV {
			return fmt.Errorf("format tsv needs the clusterings; rerun from the merge stream: %w", mergetree.ErrConfig)
		}
	}

	doc, err := resmap.ReadDocumentFile(opts.document)
	if err != nil {
		return fmt.Errorf("map: %w", err)
	}
	res, err := resmap.Assign(doc, resmap.Options{MinSize: opts.minSize})
	if err != nil {
		return fmt.Errorf("map: %w", err)
	}
	dot := resmap.ToDOT(res.Graph, resmap.DotOptions{Detailed: opts.detailed, Annotate: opts.annotate})

	artifacts := map[string][]byte{pipeline.FormatDOT: []byte(dot)}
	for _, f := range formats {
		switch f {
		case pipeline.FormatJSON:
			var buf bytes.Buffer
			if err := resmap.WriteDocument(doc, &buf); err != nil {
				return fmt.Errorf("map: %w", err)
			}
			artifacts[f] = buf.Bytes()
		case pipeline.FormatSVG:
			svg, err := resmap.RenderSVG(ctx, dot)
			if err != nil {
				return fmt.Errorf("map: %w", err)
			}
			artifacts[f] = svg
		}
	}

	printSuccess("Mapped %s", opts.document)
	if res.DroppedNodes > 0 {
		printWarning("Dropped %d clusters and %d links below min size", res.DroppedNodes, res.DroppedLinks)
	}
	return writeArtifacts(artifacts, formats, opts.output)
}

// writeArtifacts writes rendered artifacts as map.<format> files.
func writeArtifacts(artifacts map[string][]byte, formats []string, dir string) error {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	for _, format := range formats {
		data, ok := artifacts[format]
		if !ok {
			continue
		}
		path := filepath.Join(dir, "map."+format)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		printFile(path)
	}
	return nil
}
