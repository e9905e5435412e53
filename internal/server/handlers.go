package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/canopyviz/canopy/pkg/cache"
	"github.com/canopyviz/canopy/pkg/mergetree"
	"github.com/canopyviz/canopy/pkg/pipeline"
)

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// uploadResponse is returned by POST /v1/streams.
type uploadResponse struct {
	Hash string `json:"hash"`
	Size int    `json:"size"`
}

// handleUploadStream stores a merge stream under its content hash so later
// cut and map calls can reference it with ?stream=<hash>.
func (s *Server) handleUploadStream(w http.ResponseWriter, r *http.Request) {
	stream, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxStreamBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "stream too large")
		return
	}
	if len(stream) == 0 {
		writeError(w, http.StatusBadRequest, "empty stream body")
		return
	}

	hash := cache.Hash(stream)
	key := s.runner.Keyer.ForestKey(hash)
	if err := s.runner.Cache.Set(r.Context(), key, stream, cache.TTLStream); err != nil {
		writeError(w, http.StatusInternalServerError, "store stream: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{Hash: hash, Size: len(stream)})
}

// clusterPayload mirrors one cluster in cut responses.
type clusterPayload struct {
	Size    int      `json:"size"`
	Quality float64  `json:"quality"`
	Items   []string `json:"items"`
}

// clusteringPayload mirrors one resolution level in cut responses.
type clusteringPayload struct {
	Resolution int              `json:"resolution"`
	Clusters   []clusterPayload `json:"clusters"`
}

// cutResponse is returned by POST /v1/cut.
type cutResponse struct {
	RunID       string              `json:"run_id"`
	StreamHash  string              `json:"stream_hash"`
	ItemCount   int                 `json:"item_count"`
	Cached      bool                `json:"cached"`
	Clusterings []clusteringPayload `json:"clusterings"`
}

// handleCut cuts a merge stream at the requested resolutions.
func (s *Server) handleCut(w http.ResponseWriter, r *http.Request) {
	opts, ok := s.pipelineOptions(w, r)
	if !ok {
		return
	}
	opts.Formats = []string{pipeline.FormatDOT}

	result, err := s.runner.Execute(r.Context(), opts)
	if err != nil {
		writePipelineError(w, err)
		return
	}

	resp := cutResponse{
		RunID:      result.RunID,
		StreamHash: result.StreamHash,
		ItemCount:  result.Stats.ItemCount,
		Cached:     result.CacheInfo.CutHit,
	}
	for _, c := range result.Clusterings {
		level := clusteringPayload{Resolution: c.Resolution}
		for _, cl := range c.Clusters {
			level.Clusters = append(level.Clusters, clusterPayload{
				Size:    cl.Size,
				Quality: cl.Quality,
				Items:   cl.Items,
			})
		}
		resp.Clusterings = append(resp.Clusterings, level)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleMap assembles a resolution map and returns it in the requested
// format (dot, svg, or json).
func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	opts, ok := s.pipelineOptions(w, r)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = pipeline.FormatDOT
	}
	if err := pipeline.ValidateFormat(format); err != nil || format == pipeline.FormatTSV {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid format %q (must be one of: dot, svg, json)", format))
		return
	}
	opts.Formats = []string{format}

	if v := r.URL.Query().Get("min_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid min_size")
			return
		}
		opts.MinSize = n
	}
	opts.Detailed = r.URL.Query().Get("detailed") == "true"
	opts.Annotate = r.URL.Query().Get("annotate") == "true"

	result, err := s.runner.Execute(r.Context(), opts)
	if err != nil {
		writePipelineError(w, err)
		return
	}

	contentTypes := map[string]string{
		pipeline.FormatDOT:  "text/vnd.graphviz",
		pipeline.FormatSVG:  "image/svg+xml",
		pipeline.FormatJSON: "application/json",
	}
	w.Header().Set("Content-Type", contentTypes[format])
	w.WriteHeader(http.StatusOK)
	w.Write(result.Artifacts[format])
}

// pipelineOptions assembles pipeline options from the request: the stream
// (body or ?stream=<hash>) and the resolution list. Writes an error response
// and returns ok=false when the request is invalid.
func (s *Server) pipelineOptions(w http.ResponseWriter, r *http.Request) (pipeline.Options, bool) {
	var opts pipeline.Options

	resolutions, err := parseResolutions(r.URL.Query().Get("resolutions"))
	if err != nil {
		writePipelineError(w, err)
		return opts, false
	}
	opts.Resolutions = resolutions
	opts.Refresh = r.URL.Query().Get("refresh") == "true"

	if hash := r.URL.Query().Get("stream"); hash != "" {
		key := s.runner.Keyer.ForestKey(hash)
		stream, hit, err := s.runner.Cache.Get(r.Context(), key)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "load stream: "+err.Error())
			return opts, false
		}
		if !hit {
			writeError(w, http.StatusNotFound, "unknown stream hash")
			return opts, false
		}
		opts.Stream = stream
		return opts, true
	}

	stream, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxStreamBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "stream too large")
		return opts, false
	}
	if len(stream) == 0 {
		writeError(w, http.StatusBadRequest, "merge stream required (body or ?stream=<hash>)")
		return opts, false
	}
	opts.Stream = stream
	return opts, true
}

// parseResolutions parses a comma-separated resolution list. Errors carry
// [mergetree.ErrConfig] so callers classify them as client mistakes.
func parseResolutions(s string) ([]int, error) {
	if s == "" {
		return nil, fmt.Errorf("resolutions query parameter is required: %w", mergetree.ErrConfig)
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

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writePipelineError maps pipeline errors to HTTP statuses: configuration
// problems are the client's fault, malformed streams are unprocessable, and
// anything else is a server error.
func writePipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, mergetree.ErrConfig):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, mergetree.ErrInvalidStream),
		errors.Is(err, mergetree.ErrDanglingReference),
		errors.Is(err, mergetree.ErrDuplicateRoot):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
