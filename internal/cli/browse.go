package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/canopyviz/canopy/pkg/clusters"
	"github.com/canopyviz/canopy/pkg/mergetree"
	"github.com/canopyviz/canopy/pkg/pipeline"
)

// newBrowseCmd creates the browse command for exploring clusterings.
func newBrowseCmd() *cobra.Command {
	var (
		resolutionsStr string
		clustersDir    string
		noCache        bool
	)

	cmd := &cobra.Command{
		Use:   "browse [stream.tsv]",
		Short: "Explore clusterings in an interactive terminal UI",
		Long: `Explore clusterings in an interactive terminal UI.

The browse command cuts the merge stream at the requested resolutions and
opens a terminal UI for paging through the resulting clusters: their sizes,
quality scores, and members. Use the arrow keys to switch resolutions and
scroll through clusters.

With --clusters-dir the cut is skipped: the clusters.<R>.tsv files written by
an earlier cut run are read back instead of a merge stream.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolutions, err := parseResolutions(resolutionsStr)
			if err != nil {
				return err
			}
			if clustersDir != "" {
				if len(args) > 0 {
					return fmt.Errorf("--clusters-dir replaces the stream argument; pass one or the other")
				}
				return runBrowseFiles(cmd.Context(), clustersDir, resolutions)
			}
			if len(args) == 0 {
				return fmt.Errorf("merge stream argument or --clusters-dir required")
			}
			return runBrowse(cmd.Context(), args[0], resolutions, noCache)
		},
	}

	cmd.Flags().StringVarP(&resolutionsStr, "resolutions", "r", "", "resolution(s) to cut at (comma-separated)")
	cmd.Flags().StringVar(&clustersDir, "clusters-dir", "", "directory of clusters.<R>.tsv files from an earlier cut")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

// loadClusterings reads the clusterings for the given resolutions back from
// their clusters.<R>.tsv files, in descending resolution order.
func loadClusterings(dir string, resolutions []int) ([]mergetree.Clustering, error) {
	rs, err := mergetree.NormalizeResolutions(resolutions)
	if err != nil {
		return nil, err
	}
	out := make([]mergetree.Clustering, 0, len(rs))
	for _, r := range rs {
		c, err := clusters.ReadFile(dir, r)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// runBrowseFiles opens the TUI on clusterings read back from files.
func runBrowseFiles(ctx context.Context, dir string, resolutions []int) error {
	clusterings, err := loadClusterings(dir, resolutions)
	if err != nil {
		return fmt.Errorf("browse: %w", err)
	}
	model := NewBrowseModel(clusterings)
	if _, err := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("browse: %w", err)
	}
	return nil
}

// runBrowse cuts the stream and hands the result to the TUI.
func runBrowse(ctx context.Context, input string, resolutions []int, noCache bool) error {
	logger := loggerFromContext(ctx)

	runner, err := newRunner(noCache, logger)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, "Cutting merge stream...")
	spinner.Start()

	result, err := runner.Execute(ctx, pipeline.Options{
		StreamPath:  input,
		Resolutions: resolutions,
		Formats:     []string{pipeline.FormatDOT},
		Logger:      logger,
	})
	if err != nil {
		spinner.StopWithError("Cut failed")
		return fmt.Errorf("browse: %w", err)
	}
	spinner.Stop()

	model := NewBrowseModel(result.Clusterings)
	if _, err := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("browse: %w", err)
	}
	return nil
}
