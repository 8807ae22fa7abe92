// Package replay implements checkpoint, resume, and cancellation for
// paused lineages.
//
// Idempotency here is STRUCTURAL, not a special replay mode. Resume runs
// the exact same append path as live execution; the ledger's idempotency
// keys absorb re-issued effects, so resuming twice (or resuming a
// checkpoint whose effects partially landed before a crash) converges on
// the same final chain.
//
// A resume first proves the ledger it is about to extend: the hash chain
// is verified from genesis to the checkpoint's frontier, and the recorded
// environment hash must match the snapshot. Verification failure is an
// INTEGRITY error; a pending effect whose recorded payload no longer
// matches what the checkpoint would re-issue is a REPLAY_DIVERGENCE.
package replay
