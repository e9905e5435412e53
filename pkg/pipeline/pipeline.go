// Package pipeline provides the core clustering pipeline for Canopy.
//
// This package implements the complete build → cut → map → render pipeline
// that can be used by CLI and API components. By centralizing this logic, we
// ensure consistent behavior across all entry points and avoid code
// duplication.
//
// # Architecture
//
// The pipeline consists of four stages:
//
//  1. Build: Parse a merge stream into an immutable forest
//  2. Cut: Extract flat clusterings at the requested resolutions
//  3. Map: Stitch the clusterings into a leveled resolution map
//  4. Render: Generate output in various formats (TSV, JSON, DOT, SVG)
//
// Each stage can be run independently or as part of the complete pipeline.
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{
//	    StreamPath:  "merges.tsv",
//	    Resolutions: []int{100, 50, 25},
//	    Formats:     []string{"tsv", "svg"},
//	}
//	result, err := runner.Execute(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svg := result.Artifacts["svg"]
package pipeline

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/canopyviz/canopy/pkg/cache"
	"github.com/canopyviz/canopy/pkg/mergetree"
)

// Format constants for output formats.
const (
	FormatTSV  = "tsv"
	FormatJSON = "json"
	FormatDOT  = "dot"
	FormatSVG  = "svg"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatTSV:  true,
	FormatJSON: true,
	FormatDOT:  true,
	FormatSVG:  true,
}

// DefaultFormats is used when no formats are requested.
var DefaultFormats = []string{FormatTSV, FormatDOT}

// Options contains all configuration for the clustering pipeline.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Build options. Exactly one of StreamPath and Stream must be set:
	// the CLI passes a path, the API passes the uploaded bytes.
	StreamPath string `json:"stream_path,omitempty"`
	Stream     []byte `json:"stream,omitempty"`

	// Cut options
	Resolutions []int `json:"resolutions"`

	// Map options
	MinSize int `json:"min_size,omitempty"`

	// Render options
	Formats  []string `json:"formats,omitempty"`
	Detailed bool     `json:"detailed,omitempty"`
	Annotate bool     `json:"annotate,omitempty"`

	// OutputDir receives cluster files and artifacts when set.
	OutputDir string `json:"output_dir,omitempty"`

	// Refresh bypasses the cache for this run.
	Refresh bool `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// RunID uniquely identifies this execution.
	RunID string

	// Clusterings holds the cut output per resolution, coarsest first.
	Clusterings []mergetree.Clustering

	// StreamHash is the content hash of the input stream.
	StreamHash string

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	// ClusterFiles lists cluster file paths written to OutputDir.
	ClusterFiles []string

	// DroppedNodes and DroppedLinks count map entries removed by the
	// min-size filter.
	DroppedNodes int
	DroppedLinks int

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	ItemCount    int
	ClusterCount int
	CutTime      time.Duration
	MapTime      time.Duration
	RenderTime   time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	CutHit    bool // Whether the cut result came from cache
	MapHit    bool // Whether the assembled map came from cache
	RenderHit bool // Whether all artifacts came from cache
}

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return fmt.Errorf("%w: invalid format %q (must be one of: tsv, json, dot, svg)", mergetree.ErrConfig, format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// ValidateAndSetDefaults checks required fields and applies defaults for the
// full pipeline. This method is idempotent - calling it multiple times has
// the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.StreamPath == "" && len(o.Stream) == 0 {
		return fmt.Errorf("%w: stream path or stream content is required", mergetree.ErrConfig)
	}
	if o.StreamPath != "" && len(o.Stream) > 0 {
		return fmt.Errorf("%w: stream path and stream content are mutually exclusive", mergetree.ErrConfig)
	}
	if _, err := mergetree.NormalizeResolutions(o.Resolutions); err != nil {
		return err
	}
	if o.MinSize < 0 {
		return fmt.Errorf("%w: min size must not be negative", mergetree.ErrConfig)
	}
	if len(o.Formats) == 0 {
		o.Formats = DefaultFormats
	}
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// HasFormat reports whether a format was requested.
func (o *Options) HasFormat(format string) bool {
	for _, f := range o.Formats {
		if f == format {
			return true
		}
	}
	return false
}

// CutKeyOpts returns cache key options for the cut stage.
func (o *Options) CutKeyOpts() cache.CutKeyOpts {
	normalized, _ := mergetree.NormalizeResolutions(o.Resolutions)
	return cache.CutKeyOpts{Resolutions: normalized}
}

// MapKeyOpts returns cache key options for the map stage.
func (o *Options) MapKeyOpts() cache.MapKeyOpts {
	return cache.MapKeyOpts{
		MinSize:  o.MinSize,
		Detailed: o.Detailed,
		Annotate: o.Annotate,
	}
}

// streamBytes loads the merge stream from the configured source.
func (o *Options) streamBytes() ([]byte, error) {
	if len(o.Stream) > 0 {
		return o.Stream, nil
	}
	data, err := os.ReadFile(o.StreamPath)
	if err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	return data, nil
}
