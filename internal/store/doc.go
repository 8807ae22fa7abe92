// Package store provides SQLite-backed durable storage for the causal
// chain ledger.
//
// The store is an append-only log of actions plus derived caches:
//   - actions: the hash-linked ledger rows, ordered by the logical seq
//   - producers: value/resource content hash -> producing action
//   - edges: derived dependency edges (rebuildable, never ledger truth)
//   - checkpoints: open suspension records for paused lineages
//
// Ordering uses the seq INTEGER logical clock, never timestamps, so that
// replay produces identical results regardless of wall time. All queries
// ORDER BY seq ASC for deterministic results.
//
// Appends are idempotent per (lineage, idempotency_key, kind): re-issuing
// an effect request during replay lands on the existing row instead of
// recording a duplicate. A concurrent writer racing the same seq slot
// surfaces as ErrTailMoved, which the chain retries against the refreshed
// tail.
//
// Database configuration:
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON
//
// All hashes are computed in internal/ir via RFC 8785 canonical JSON and
// SHA-256 with domain separation.
package store
