package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/canopyviz/canopy/pkg/cache"
	"github.com/canopyviz/canopy/pkg/mergetree"
	"github.com/canopyviz/canopy/pkg/pipeline"
)

// appName is the application name used for directories and display.
const appName = "canopy"

// newRunner creates a pipeline runner for CLI use.
func newRunner(noCache bool, logger *log.Logger) (*pipeline.Runner, error) {
	c, err := newCache(noCache)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(c, nil, logger), nil
}

func newCache(noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// cacheDir returns the cache directory using XDG standard (~/.cache/canopy/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// parseResolutions parses a comma-separated resolution list (e.g. "100,50,25").
func parseResolutions(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid resolution %q: %w", p, mergetree.ErrConfig)
		}
		out = append(out, n)
	}
	return out, nil
}

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
