// Package ir defines the canonical record types of the causal chain.
//
// This package contains type definitions and pure functions only. All other
// internal packages import ir; ir imports nothing internal. This keeps the
// record model the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere - floats break hash determinism; use int64
//     (CostMicros carries cost in micro-units for the same reason)
//   - Ordering uses the logical Sequence counter, never wall-clock time;
//     Timestamp is informational and excluded from the chain hash
//   - All JSON tags use snake_case
//   - Hashes are SHA-256 over RFC 8785 canonical JSON with domain separation
package ir
