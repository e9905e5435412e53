package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	// Get always returns miss
	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit {
		t.Error("NullCache.Get should always return miss")
	}
	if data != nil {
		t.Error("NullCache.Get should return nil data")
	}

	// Set does nothing (no error)
	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}

	// Still a miss after Set
	_, hit, _ = c.Get(ctx, "key")
	if hit {
		t.Error("NullCache should not store data")
	}

	// Delete does nothing (no error)
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	defer c.Close()

	// Miss before Set
	_, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit {
		t.Error("expected miss before Set")
	}

	// Set then hit
	if err := c.Set(ctx, "key", []byte("value"), 0); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !hit || string(data) != "value" {
		t.Errorf("Get = %q hit=%v, want value/true", data, hit)
	}

	// Delete then miss
	if err := c.Delete(ctx, "key"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	_, hit, _ = c.Get(ctx, "key")
	if hit {
		t.Error("expected miss after Delete")
	}

	// Deleting a missing key is not an error
	if err := c.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete missing key: %v", err)
	}
}

func TestFileCacheStageLayout(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, err := NewFileCache(dir)
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	defer c.Close()

	// Entries land in a subdirectory named after the key's stage prefix.
	if err := c.Set(ctx, "cut:abc123", []byte("payload"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "cut"))
	if err != nil {
		t.Fatalf("read cut subdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("cut subdir has %d entries, want 1", len(entries))
	}

	// Prefix-less keys fall back to misc.
	if err := c.Set(ctx, "bare", []byte("payload"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := os.ReadDir(filepath.Join(dir, "misc")); err != nil {
		t.Fatalf("read misc subdir: %v", err)
	}
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	defer c.Close()

	if err := c.Set(ctx, "key", []byte("value"), time.Nanosecond); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	_, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit {
		t.Error("expired entry should be a miss")
	}
}

func TestHash(t *testing.T) {
	// Test determinism
	h1 := Hash([]byte("hello"))
	h2 := Hash([]byte("hello"))
	if h1 != h2 {
		t.Error("Hash should be deterministic")
	}

	// Test different inputs produce different hashes
	h3 := Hash([]byte("world"))
	if h1 == h3 {
		t.Error("Different inputs should produce different hashes")
	}

	// Test hash length (SHA-256 produces 64 hex chars)
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	// ForestKey is the stream hash with a stage prefix
	if got := k.ForestKey("abc123"); got != "forest:abc123" {
		t.Errorf("ForestKey unexpected: %s", got)
	}

	// CutKey should include the resolutions in the hash
	ck1 := k.CutKey("abc123", CutKeyOpts{Resolutions: []int{100, 50}})
	ck2 := k.CutKey("abc123", CutKeyOpts{Resolutions: []int{100, 25}})
	if ck1 == ck2 {
		t.Error("Different resolutions should produce different keys")
	}

	// MapKey
	mk1 := k.MapKey("hash123", MapKeyOpts{MinSize: 5})
	mk2 := k.MapKey("hash123", MapKeyOpts{MinSize: 10})
	if mk1 == mk2 {
		t.Error("Different MapKeyOpts should produce different keys")
	}

	// ArtifactKey
	ak1 := k.ArtifactKey("hash123", ArtifactKeyOpts{Format: "svg"})
	ak2 := k.ArtifactKey("hash123", ArtifactKeyOpts{Format: "dot"})
	if ak1 == ak2 {
		t.Error("Different ArtifactKeyOpts should produce different keys")
	}

	// Same inputs produce the same key
	if ck1 != k.CutKey("abc123", CutKeyOpts{Resolutions: []int{100, 50}}) {
		t.Error("CutKey should be deterministic")
	}
}

func TestScopedKeyer(t *testing.T) {
	inner := NewDefaultKeyer()
	scoped := NewScopedKeyer(inner, "prod:")

	// All keys should be prefixed
	if got := scoped.ForestKey("abc"); got != "prod:forest:abc" {
		t.Errorf("ScopedKeyer ForestKey unexpected: %s", got)
	}
	ck := scoped.CutKey("abc", CutKeyOpts{})
	if !strings.HasPrefix(ck, "prod:cut:") {
		t.Errorf("ScopedKeyer CutKey should be prefixed: %s", ck)
	}
}

func TestScopedKeyerNilInner(t *testing.T) {
	// Should use DefaultKeyer when inner is nil
	scoped := NewScopedKeyer(nil, "prefix:")
	if got := scoped.ForestKey("abc"); got != "prefix:forest:abc" {
		t.Errorf("Unexpected key with nil inner: %s", got)
	}
}

func TestRetryableError(t *testing.T) {
	// Retryable(nil) returns nil
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should be nil")
	}

	base := errors.New("boom")
	wrapped := Retryable(base)
	if !IsRetryable(wrapped) {
		t.Error("wrapped error should be retryable")
	}
	if IsRetryable(base) {
		t.Error("unwrapped error should not be retryable")
	}
	if !errors.Is(wrapped, base) {
		t.Error("wrapped error should unwrap to the base error")
	}
}

func TestRetryWithBackoffNonRetryable(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), func() error {
		calls++
		return errors.New("fatal")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry for non-retryable errors)", calls)
	}
}
