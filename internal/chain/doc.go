// Package chain is the append gateway to the causal ledger.
//
// All writes go through Chain.Append: it validates the draft, resolves the
// structural parent, assigns a sequence from the logical clock, computes
// the chain hash, detects dependency edges, and persists everything in one
// transaction. Nothing else writes actions.
//
// Appends within a lineage are serialized by a per-lineage lock. Across
// lineages the global sequence is claimed optimistically; a lost race
// surfaces from the store as a moved tail and is retried with a fresh
// sequence before giving up with an APPEND_CONFLICT.
//
// Drafts carrying an idempotency key are deduplicated per (lineage, key,
// kind): a retry with an identical payload returns the original action, a
// retry with a different payload is an IDEMPOTENCY_VIOLATION.
package chain
