package ir

// Checkpoint captures everything needed to resume a paused lineage:
// the frontier (leaf action ids at suspension), an opaque snapshot of the
// orchestrator's pure-evaluation environment plus its hash, and the
// idempotency keys of effects that were requested but not yet resolved.
//
// A checkpoint is created on suspension and marked consumed on successful
// resume. A stale unconsumed checkpoint is evidence of an abandoned
// execution.
type Checkpoint struct {
	CheckpointID string   `json:"checkpoint_id"`
	Lineage      string   `json:"lineage"`
	Frontier     []string `json:"frontier"`
	EnvSnapshot  []byte   `json:"env_snapshot,omitempty"`
	EnvHash      string   `json:"env_hash"`
	Pending      []string `json:"pending"`
	CreatedSeq   int64    `json:"created_seq"`
	Consumed     bool     `json:"consumed"`
}
