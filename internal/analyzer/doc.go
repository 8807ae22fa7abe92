// Package analyzer derives causal structure from the ledger.
//
// Two relations exist between actions. The structural parent link is part
// of the hash chain and immutable. Dependency edges are derived: an action
// that consumes a value (or touches a resource) depends on the most recent
// earlier action that produced that value (or touched that resource).
// Matching is by domain-separated content hash via the producer index, so
// detection cost scales with an action's inputs, not with ledger size.
//
// Derived edges are a cache. RebuildEdges reconstructs them from actions
// and producers alone; nothing in this package is ledger truth.
package analyzer
