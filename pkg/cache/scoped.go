package cache

// ScopedKeyer wraps a Keyer with a prefix for namespace isolation. The
// server uses this to keep per-deployment caches separate when they share
// one Redis instance.
//
// Example usage:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "prod:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// ForestKey generates a prefixed key for a built forest.
func (k *ScopedKeyer) ForestKey(streamHash string) string {
	return k.prefix + k.inner.ForestKey(streamHash)
}

// CutKey generates a prefixed key for a cut result.
func (k *ScopedKeyer) CutKey(streamHash string, opts CutKeyOpts) string {
	return k.prefix + k.inner.CutKey(streamHash, opts)
}

// MapKey generates a prefixed key for an assigned resolution map.
func (k *ScopedKeyer) MapKey(cutHash string, opts MapKeyOpts) string {
	return k.prefix + k.inner.MapKey(cutHash, opts)
}

// ArtifactKey generates a prefixed key for a rendered artifact.
func (k *ScopedKeyer) ArtifactKey(mapHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(mapHash, opts)
}
