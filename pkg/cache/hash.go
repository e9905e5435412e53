package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Hash returns the full hex SHA-256 digest of data. Merge streams are
// content-addressed by this digest; every derived cache key embeds it, so
// identical streams share cached cuts regardless of where they came from.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// hashKey builds a stage-scoped cache key: the stage prefix followed by the
// digest of the JSON-marshaled parts. The parts carry the upstream content
// hash plus the stage's options, so two runs with the same inputs map to
// the same key and any option change misses.
func hashKey(stage string, parts ...any) string {
	data, _ := json.Marshal(parts)
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s", stage, hex.EncodeToString(sum[:]))
}
