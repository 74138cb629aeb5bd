// Package config holds the process-wide tunables for the storage engine.
// There is no CLI or environment variable layer; callers that want
// different values construct a Config directly.
package config

import "time"

// Name of the database process.
const DBName = "latchkv"

// Prompt string for interactive tooling; nothing in this module prints it.
const Prompt = DBName + "> "

// Config bundles the tunables every core component is built from.
type Config struct {
	// PageSize is the fixed size, in bytes, of every page on disk and in
	// the buffer pool.
	PageSize int
	// BufferPoolFrames is the number of frames the buffer pool manages.
	BufferPoolFrames int
	// ReplacerK is the K in LRU-K: the number of historical accesses
	// tracked per frame before backward-k-distance becomes finite.
	ReplacerK int
	// HashBucketSize is the maximum number of entries in a single
	// extendible-hash-table bucket before it must split.
	HashBucketSize int
	// DeadlockDetectionInterval is how often the lock manager's
	// background goroutine rebuilds the wait-for graph and looks for
	// cycles.
	DeadlockDetectionInterval time.Duration
}

// Default returns the configuration used by tests and the stress harness.
func Default() Config {
	return Config{
		PageSize:                  4096,
		BufferPoolFrames:          64,
		ReplacerK:                 2,
		HashBucketSize:            4,
		DeadlockDetectionInterval: 50 * time.Millisecond,
	}
}
