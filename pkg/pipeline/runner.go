package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/canopyviz/canopy/pkg/cache"
	"github.com/canopyviz/canopy/pkg/clusters"
	"github.com/canopyviz/canopy/pkg/mergetree"
	"github.com/canopyviz/canopy/pkg/observability"
	"github.com/canopyviz/canopy/pkg/resmap"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API can use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// cutRecord is the cacheable form of one cluster.
type cutRecord struct {
	Size    int      `json:"size"`
	Quality float64  `json:"quality"`
	Items   []string `json:"items"`
}

// cutLevel is the cacheable form of one clustering.
type cutLevel struct {
	Resolution int         `json:"resolution"`
	Clusters   []cutRecord `json:"clusters"`
}

// cutPayload bundles everything the later stages need, so a cut cache hit
// skips the forest build entirely.
type cutPayload struct {
	ItemCount int             `json:"item_count"`
	Levels    []cutLevel      `json:"levels"`
	Document  resmap.Document `json:"document"`
}

// mapPayload is the cacheable output of the map stage.
type mapPayload struct {
	DOT          string `json:"dot"`
	DroppedNodes int    `json:"dropped_nodes"`
	DroppedLinks int    `json:"dropped_links"`
}

// Execute runs the complete build → cut → map → render pipeline with caching.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	r.applyLogger(&opts)

	stream, err := opts.streamBytes()
	if err != nil {
		return nil, err
	}

	result := &Result{
		RunID:      uuid.NewString(),
		StreamHash: cache.Hash(stream),
		Artifacts:  make(map[string][]byte),
	}

	// Stage 1+2: Build and cut
	cutStart := time.Now()
	payload, cutHit, err := r.cutWithCacheInfo(ctx, stream, result.StreamHash, opts)
	if err != nil {
		return nil, fmt.Errorf("cut: %w", err)
	}
	result.Stats.CutTime = time.Since(cutStart)
	result.Stats.ItemCount = payload.ItemCount
	result.CacheInfo.CutHit = cutHit
	result.Clusterings = payload.clusterings()
	for _, c := range result.Clusterings {
		result.Stats.ClusterCount += len(c.Clusters)
	}

	r.Logger.Info("cut forest",
		"items", payload.ItemCount,
		"resolutions", len(payload.Levels),
		"clusters", result.Stats.ClusterCount,
		"cached", cutHit,
		"duration", result.Stats.CutTime)

	if opts.HasFormat(FormatTSV) && opts.OutputDir != "" {
		for _, c := range result.Clusterings {
			path, err := clusters.WriteFile(c, opts.OutputDir)
			if err != nil {
				return nil, fmt.Errorf("write clusters: %w", err)
			}
			result.ClusterFiles = append(result.ClusterFiles, path)
		}
	}

	// Stage 3: Map
	mapStart := time.Now()
	mp, mapHit, err := r.assembleWithCacheInfo(ctx, payload.Document, opts)
	if err != nil {
		return nil, fmt.Errorf("map: %w", err)
	}
	result.Stats.MapTime = time.Since(mapStart)
	result.CacheInfo.MapHit = mapHit
	result.DroppedNodes = mp.DroppedNodes
	result.DroppedLinks = mp.DroppedLinks

	r.Logger.Info("assembled resolution map",
		"nodes", len(payload.Document.Nodes),
		"dropped_nodes", mp.DroppedNodes,
		"dropped_links", mp.DroppedLinks,
		"cached", mapHit,
		"duration", result.Stats.MapTime)

	// Stage 4: Render
	renderStart := time.Now()
	renderHit, err := r.render(ctx, payload.Document, mp.DOT, opts, result)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Stats.RenderTime = time.Since(renderStart)
	result.CacheInfo.RenderHit = renderHit

	r.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// cutWithCacheInfo builds the forest and cuts it, with caching, and returns
// cache hit info.
func (r *Runner) cutWithCacheInfo(ctx context.Context, stream []byte, streamHash string, opts Options) (cutPayload, bool, error) {
	cacheKey := r.Keyer.CutKey(streamHash, opts.CutKeyOpts())

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			var payload cutPayload
			if err := json.Unmarshal(data, &payload); err == nil {
				observability.Cache().OnCacheHit(ctx, "cut")
				return payload, true, nil
			}
		}
		observability.Cache().OnCacheMiss(ctx, "cut")
	}

	source := opts.StreamPath
	if source == "" {
		source = "inline"
	}

	buildStart := time.Now()
	observability.Pipeline().OnBuildStart(ctx, source)
	forest, err := mergetree.Build(bytes.NewReader(stream))
	observability.Pipeline().OnBuildComplete(ctx, source, forestItems(forest), time.Since(buildStart), err)
	if err != nil {
		return cutPayload{}, false, err
	}

	cutStart := time.Now()
	observability.Pipeline().OnCutStart(ctx, opts.Resolutions)
	clusterings, err := mergetree.Cut(forest, opts.Resolutions)
	observability.Pipeline().OnCutComplete(ctx, opts.Resolutions, countClusters(clusterings), time.Since(cutStart), err)
	if err != nil {
		return cutPayload{}, false, err
	}

	doc, err := resmap.Stitch(clusterings)
	if err != nil {
		return cutPayload{}, false, err
	}

	payload := newCutPayload(forest, clusterings, doc)
	if data, err := json.Marshal(payload); err == nil {
		_ = r.Cache.Set(ctx, cacheKey, data, cache.TTLCut)
		observability.Cache().OnCacheSet(ctx, "cut", len(data))
	}
	return payload, false, nil
}

// assembleWithCacheInfo assigns rungs and emits DOT, with caching, and
// returns cache hit info.
func (r *Runner) assembleWithCacheInfo(ctx context.Context, doc resmap.Document, opts Options) (mapPayload, bool, error) {
	docData, err := json.Marshal(doc)
	if err != nil {
		return mapPayload{}, false, fmt.Errorf("serialize document for cache key: %w", err)
	}
	cacheKey := r.Keyer.MapKey(cache.Hash(docData), opts.MapKeyOpts())

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			var mp mapPayload
			if err := json.Unmarshal(data, &mp); err == nil {
				observability.Cache().OnCacheHit(ctx, "map")
				return mp, true, nil
			}
		}
		observability.Cache().OnCacheMiss(ctx, "map")
	}

	assigned, err := resmap.Assign(doc, resmap.Options{MinSize: opts.MinSize})
	if err != nil {
		return mapPayload{}, false, err
	}
	mp := mapPayload{
		DOT: resmap.ToDOT(assigned.Graph, resmap.DotOptions{
			Detailed: opts.Detailed,
			Annotate: opts.Annotate,
		}),
		DroppedNodes: assigned.DroppedNodes,
		DroppedLinks: assigned.DroppedLinks,
	}

	if data, err := json.Marshal(mp); err == nil {
		_ = r.Cache.Set(ctx, cacheKey, data, cache.TTLMap)
		observability.Cache().OnCacheSet(ctx, "map", len(data))
	}
	return mp, false, nil
}

// render fills result.Artifacts for the requested formats. Only the SVG is
// cached; TSV, JSON, and DOT are cheap enough to regenerate.
func (r *Runner) render(ctx context.Context, doc resmap.Document, dot string, opts Options, result *Result) (bool, error) {
	observability.Pipeline().OnRenderStart(ctx, opts.Formats)
	start := time.Now()

	if opts.HasFormat(FormatJSON) {
		var buf bytes.Buffer
		if err := resmap.WriteDocument(doc, &buf); err != nil {
			observability.Pipeline().OnRenderComplete(ctx, opts.Formats, time.Since(start), err)
			return false, err
		}
		result.Artifacts[FormatJSON] = buf.Bytes()
	}
	if opts.HasFormat(FormatDOT) {
		result.Artifacts[FormatDOT] = []byte(dot)
	}

	renderHit := false
	if opts.HasFormat(FormatSVG) {
		cacheKey := r.Keyer.ArtifactKey(cache.Hash([]byte(dot)), cache.ArtifactKeyOpts{
			Format:   FormatSVG,
			Detailed: opts.Detailed,
			Annotate: opts.Annotate,
		})
		if !opts.Refresh {
			if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
				observability.Cache().OnCacheHit(ctx, "artifact")
				result.Artifacts[FormatSVG] = data
				renderHit = true
			}
		}
		if !renderHit {
			svg, err := resmap.RenderSVG(ctx, dot)
			if err != nil {
				observability.Pipeline().OnRenderComplete(ctx, opts.Formats, time.Since(start), err)
				return false, err
			}
			result.Artifacts[FormatSVG] = svg
			_ = r.Cache.Set(ctx, cacheKey, svg, cache.TTLArtifact)
			observability.Cache().OnCacheSet(ctx, "artifact", len(svg))
		}
	}

	observability.Pipeline().OnRenderComplete(ctx, opts.Formats, time.Since(start), nil)
	return renderHit, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

func newCutPayload(f *mergetree.Forest, clusterings []mergetree.Clustering, doc resmap.Document) cutPayload {
	payload := cutPayload{ItemCount: f.ItemCount(), Document: doc}
	for _, c := range clusterings {
		level := cutLevel{Resolution: c.Resolution}
		for _, cl := range c.Clusters {
			level.Clusters = append(level.Clusters, cutRecord{
				Size:    cl.Size,
				Quality: cl.Quality,
				Items:   cl.Items,
			})
		}
		payload.Levels = append(payload.Levels, level)
	}
	return payload
}

// clusterings reconstructs the cut output from the cacheable form. The
// clusters carry no forest nodes, which is fine for writing and display.
func (p cutPayload) clusterings() []mergetree.Clustering {
	out := make([]mergetree.Clustering, 0, len(p.Levels))
	for _, level := range p.Levels {
		c := mergetree.Clustering{Resolution: level.Resolution}
		for _, rec := range level.Clusters {
			c.Clusters = append(c.Clusters, mergetree.Cluster{
				Size:    rec.Size,
				Quality: rec.Quality,
				Items:   rec.Items,
			})
		}
		out = append(out, c)
	}
	return out
}

func forestItems(f *mergetree.Forest) int {
	if f == nil {
		return 0
	}
	return f.ItemCount()
}

func countClusters(clusterings []mergetree.Clustering) int {
	n := 0
	for _, c := range clusterings {
		n += len(c.Clusters)
	}
	return n
}
