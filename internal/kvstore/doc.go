// Package kvstore provides the small-blob key-value capability used to persist
// feed history across restarts.
//
// Backends:
//   - memory: process-local map, for tests and ephemeral runs
//   - badger: embedded on-disk store (in-memory when no directory is set)
//   - redis: shared store, keys namespaced with a prefix
//   - postgres: single table of (key, value, updated_at)
//
// Every backend stores opaque bytes; callers own the encoding.
package kvstore
