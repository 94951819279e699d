// Package cache stores fully assembled assistant responses keyed by a
// deterministic fingerprint of (model, prompt). Entries are content-addressed
// and shared across owners; concurrent writers to the same key race with
// last-write-wins semantics, which is fine because equal inputs derive equal
// values.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Store is the narrow contract the orchestrator depends on. A failing Get is
// indistinguishable from a miss at the call site; a failing Set is logged and
// dropped. The cache must never fail a stream.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Fingerprint derives the cache key for a (model, prompt) pair. The digest is
// byte-exact: whitespace, case and Unicode differences all produce distinct
// keys. Owner identity is intentionally excluded so identical prompts share
// one entry across tenants.
func Fingerprint(modelID, prompt string) string {
	h := sha256.New()
	h.Write([]byte(modelID))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	return "chat:response:" + hex.EncodeToString(h.Sum(nil))
}

// New creates a redis-backed store when an address is configured, otherwise
// in-process.
func New(ctx context.Context, backend, redisAddr string) (Store, error) {
	if strings.EqualFold(strings.TrimSpace(backend), "redis") {
		return NewRedisStore(ctx, redisAddr)
	}
	return NewMemoryStore(), nil
}
