package analyzer

import (
	"context"
	"fmt"

	"github.com/arclabs/causalchain/internal/ir"
	"github.com/arclabs/causalchain/internal/store"
)

// Analyzer performs dependency detection and causal graph traversal over a
// store. It holds no state of its own; all methods read the store directly.
type Analyzer struct {
	store *store.Store
}

// New creates an Analyzer over the given store.
func New(s *store.Store) *Analyzer {
	return &Analyzer{store: s}
}

// Dependencies detects the dependency edges of a draft being appended at
// the given sequence. Each consumed argument value and each declared
// resource links the new action to the most recent earlier producer of the
// same content hash. Self-links and duplicate targets collapse.
func (an *Analyzer) Dependencies(ctx context.Context, actionID string, d ir.Draft, seq int64) ([]ir.ChainEdge, error) {
	hashes := make([]string, 0, len(d.Args)+len(d.Resources))
	for _, arg := range d.Args {
		h, err := ir.ValueHash(arg)
		if err != nil {
			return nil, fmt.Errorf("hash arg: %w", err)
		}
		hashes = append(hashes, h)
	}
	for _, r := range d.Resources {
		hashes = append(hashes, ir.ResourceHash(r))
	}

	seen := make(map[string]bool)
	var edges []ir.ChainEdge
	for _, h := range hashes {
		p, ok, err := an.store.LatestProducerBefore(ctx, h, seq)
		if err != nil {
			return nil, err
		}
		if !ok || p.ActionID == actionID || seen[p.ActionID] {
			continue
		}
		seen[p.ActionID] = true
		edges = append(edges, ir.ChainEdge{
			FromActionID: actionID,
			ToActionID:   p.ActionID,
			Relationship: ir.RelDependsOn,
			Weight:       1,
		})
	}
	return edges, nil
}

// Producers returns the producer index entries a stored action contributes:
// one per produced result value and one per touched resource. Later
// producers of the same hash shadow earlier ones at lookup time.
func Producers(a ir.Action) ([]store.ProducerEntry, error) {
	var entries []store.ProducerEntry
	for _, v := range a.Result {
		h, err := ir.ValueHash(v)
		if err != nil {
			return nil, fmt.Errorf("hash result of %s: %w", a.ActionID, err)
		}
		entries = append(entries, store.ProducerEntry{
			ValueHash: h,
			ActionID:  a.ActionID,
			Seq:       a.Sequence,
		})
	}
	for _, r := range a.Resources {
		entries = append(entries, store.ProducerEntry{
			ValueHash: ir.ResourceHash(r),
			ActionID:  a.ActionID,
			Seq:       a.Sequence,
		})
	}
	return entries, nil
}

// RebuildEdges reconstructs the derived edges of a lineage from scratch,
// re-running append-time detection for every action in order.
func (an *Analyzer) RebuildEdges(ctx context.Context, lineage string) error {
	return an.store.RebuildEdges(ctx, lineage, func(a ir.Action) ([]ir.ChainEdge, error) {
		return an.Dependencies(ctx, a.ActionID, a.Draft(), a.Sequence)
	})
}
