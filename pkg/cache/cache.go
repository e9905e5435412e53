// Package cache provides pluggable caching for pipeline stages.
//
// Builds, cuts, and rendered maps are all deterministic functions of their
// inputs, so every stage output can be cached under a content-derived key.
// Backends implement the Cache interface; keys are generated by a Keyer so
// that callers never assemble key strings by hand.
package cache

import (
	"context"
	"time"
)

// Default TTLs per pipeline stage. Streams and cut results are content
// addressed and never go stale; the TTLs just bound cache growth.
const (
	TTLStream   = 7 * 24 * time.Hour
	TTLCut      = 7 * 24 * time.Hour
	TTLMap      = 24 * time.Hour
	TTLArtifact = 24 * time.Hour
)

// Cache is a generic byte cache with TTL support.
type Cache interface {
	// Get retrieves a value. The second return reports whether the key was
	// found; an expired or corrupt entry is a miss, not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A non-positive ttl means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// CutKeyOpts are the parameters that change a cut result for a given stream.
type CutKeyOpts struct {
	Resolutions []int `json:"resolutions"`
}

// MapKeyOpts are the parameters that change an assembled resolution map.
type MapKeyOpts struct {
	MinSize  int  `json:"min_size"`
	Detailed bool `json:"detailed,omitempty"`
	Annotate bool `json:"annotate,omitempty"`
}

// ArtifactKeyOpts are the parameters that change a rendered artifact.
type ArtifactKeyOpts struct {
	Format   string `json:"format"`
	Detailed bool   `json:"detailed"`
	Annotate bool   `json:"annotate"`
}

// Keyer generates cache keys for pipeline stage outputs.
type Keyer interface {
	// ForestKey keys a built forest by the stream's content hash.
	ForestKey(streamHash string) string

	// CutKey keys a cut result by stream hash and cut parameters.
	CutKey(streamHash string, opts CutKeyOpts) string

	// MapKey keys a stitched and assigned map by cut hash and map parameters.
	MapKey(cutHash string, opts MapKeyOpts) string

	// ArtifactKey keys a rendered artifact by map hash and render parameters.
	ArtifactKey(mapHash string, opts ArtifactKeyOpts) string
}

// DefaultKeyer generates deterministic keys by hashing the inputs together
// with the stage options.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// ForestKey generates a key for a built forest.
func (k *DefaultKeyer) ForestKey(streamHash string) string {
	return "forest:" + streamHash
}

// CutKey generates a key for a cut result.
func (k *DefaultKeyer) CutKey(streamHash string, opts CutKeyOpts) string {
	return hashKey("cut", streamHash, opts)
}

// MapKey generates a key for an assigned resolution map.
func (k *DefaultKeyer) MapKey(cutHash string, opts MapKeyOpts) string {
	return hashKey("map", cutHash, opts)
}

// ArtifactKey generates a key for a rendered artifact.
func (k *DefaultKeyer) ArtifactKey(mapHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", mapHash, opts)
}

// Ensure DefaultKeyer implements Keyer.
var _ Keyer = (*DefaultKeyer)(nil)
