// Package cache provides proof caching keyed by payload content. Proof
// generation is deterministic for a given circuit and payload, so a cache
// hit skips the whole witness/prove pipeline.
//
// Caching is wired in as middleware inside the execution context, where
// blocking on a network round trip is fine. It never runs on the submit
// path. Backends: Redis and Memory.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

const keyPrefix = "provepool:proof:"

// Cache stores generated proofs keyed by payload digest.
type Cache interface {
	// Get returns the cached proof and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores a proof under the key.
	Put(ctx context.Context, key string, proof []byte) error

	// Name identifies the backend in logs.
	Name() string
}

// Key derives the cache key for a payload: a prefixed hex SHA-256 of the
// payload bytes.
func Key(payload []byte) string {
	sum := sha256.Sum256(payload)
	return keyPrefix + hex.EncodeToString(sum[:])
}
