package ir

// Relationship classifies an auxiliary causal edge.
type Relationship string

const (
	RelDependsOn Relationship = "DependsOn"
	RelEnables   Relationship = "Enables"
	RelConflicts Relationship = "Conflicts"
	RelParallel  Relationship = "Parallel"
)

// Valid reports whether r is a known relationship.
func (r Relationship) Valid() bool {
	switch r {
	case RelDependsOn, RelEnables, RelConflicts, RelParallel:
		return true
	}
	return false
}

// ChainEdge is an auxiliary causal link between two actions. Edges are NOT
// hash-chained and not ledger truth: they are always reconstructible from
// the actions themselves, so the store treats them as a materialized view.
// Cross-plan references are permitted here; never as a structural parent.
type ChainEdge struct {
	FromActionID string       `json:"from_action_id"`
	ToActionID   string       `json:"to_action_id"`
	Relationship Relationship `json:"relationship"`
	Weight       int64        `json:"weight"`
}
