package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/canopyviz/canopy/pkg/pipeline"
)

// cutOpts holds the command-line flags for the cut command.
type cutOpts struct {
	resolutions string // comma-separated resolution list
	output      string // directory for cluster files
	config      string // explicit config file path
	noCache     bool   // disable caching
	refresh     bool   // bypass the cache for this run
}

// newCutCmd creates the cut command for extracting flat clusterings.
func newCutCmd() *cobra.Command {
	opts := cutOpts{output: "."}

	cmd := &cobra.Command{
		Use:   "cut [stream.tsv]",
		Short: "Cut a merge stream into cluster files at chosen resolutions",
		Long: `Cut a merge stream into cluster files at chosen resolutions.

The cut command builds the merge forest from an ordered merge stream and
extracts one flat clustering per resolution. Each clustering is written to
clusters.<R>.tsv in the output directory, one cluster per line with its size,
normalized quality, and members.

Resolutions are processed coarsest first; clusterings at finer resolutions
always nest inside the coarser ones. Results are cached locally for faster
subsequent runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCut(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.resolutions, "resolutions", "r", "", "resolution(s) to cut at (comma-separated)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", opts.output, "output directory for cluster files")
	cmd.Flags().StringVar(&opts.config, "config", "", "config file (default: canopy.toml if present)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "recompute even if cached")

	return cmd
}

// runCut executes the cut pipeline and reports the written files.
func runCut(ctx context.Context, input string, opts cutOpts) error {
	logger := loggerFromContext(ctx)

	resolutions, err := parseResolutions(opts.resolutions)
	if err != nil {
		return err
	}

	popts := pipeline.Options{
		StreamPath:  input,
		Resolutions: resolutions,
		OutputDir:   opts.output,
		Formats:     []string{pipeline.FormatTSV},
		Refresh:     opts.refresh,
		Logger:      logger,
	}
	cfg, found, err := loadConfig(opts.config)
	if err != nil {
		return err
	}
	if found {
		cfg.apply(&popts)
		popts.Formats = []string{pipeline.FormatTSV}
	}

	runner, err := newRunner(opts.noCache, logger)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	p := newProgress(logger)
	spinner := newSpinnerWithContext(ctx, "Cutting merge stream...")
	spinner.Start()

	result, err := runner.Execute(ctx, popts)
	if err != nil {
		spinner.StopWithError("Cut failed")
		return fmt.Errorf("cut: %w", err)
	}
	spinner.Stop()
	p.done(fmt.Sprintf("Cut %d clusters at %d resolutions", result.Stats.ClusterCount, len(result.Clusterings)))

	printSuccess("Cut %s", input)
	printStats(result.Stats.ItemCount, result.Stats.ClusterCount, result.CacheInfo.CutHit)
	for _, path := range result.ClusterFiles {
		printFile(path)
	}
	return nil
}
