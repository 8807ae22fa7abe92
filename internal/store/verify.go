package store

import (
	"context"
	"fmt"

	"github.com/arclabs/causalchain/internal/ir"
)

// DivergenceError reports the first action whose stored hash no longer
// matches a recomputation over its stored fields, or whose parent link is
// broken. Everything before Seq verified clean.
type DivergenceError struct {
	ActionID string
	Seq      int64
	Detail   string
}

func (e DivergenceError) Error() string {
	return fmt.Sprintf("chain diverges at action %s (seq %d): %s", e.ActionID, e.Seq, e.Detail)
}

// VerifyLineage recomputes every hash of a lineage from its genesis root.
// Returns nil when the chain is intact, DivergenceError at the first broken
// link otherwise.
func (s *Store) VerifyLineage(ctx context.Context, lineage string) error {
	return s.VerifyRange(ctx, lineage, 0, 0)
}

// VerifyRange verifies a lineage's chain over seq in [fromSeq, toSeq]
// (toSeq 0 means the current tail). When fromSeq falls mid-chain the parent
// hash of the first action in range is taken on trust; a full-trust check
// starts from 0.
func (s *Store) VerifyRange(ctx context.Context, lineage string, fromSeq, toSeq int64) error {
	actions, err := s.ActionsInRange(ctx, lineage, fromSeq, toSeq)
	if err != nil {
		return err
	}

	// Stored hash of each action in the range, for parent lookups. Parents
	// outside the range are fetched individually.
	seen := make(map[string]string, len(actions))
	for _, a := range actions {
		seen[a.ActionID] = a.Hash
	}

	for _, a := range actions {
		parentHash := ir.GenesisSeed
		if a.ParentActionID != "" {
			if h, ok := seen[a.ParentActionID]; ok {
				parentHash = h
			} else {
				parent, err := s.ActionByID(ctx, a.ParentActionID)
				if err != nil {
					return DivergenceError{
						ActionID: a.ActionID,
						Seq:      a.Sequence,
						Detail:   fmt.Sprintf("parent %s not found", a.ParentActionID),
					}
				}
				parentHash = parent.Hash
				seen[parent.ActionID] = parent.Hash
			}
		}

		want, err := ir.ActionHash(a.Draft(), a.Sequence, parentHash)
		if err != nil {
			return fmt.Errorf("verify %s: %w", a.ActionID, err)
		}
		if want != a.Hash {
			return DivergenceError{
				ActionID: a.ActionID,
				Seq:      a.Sequence,
				Detail:   fmt.Sprintf("stored hash %s, recomputed %s", a.Hash, want),
			}
		}
	}
	return nil
}

// RebuildEdges drops and reconstructs the derived edges table for a lineage
// from the actions and producers tables. Edges are a cache, never truth;
// this repairs them after corruption or a detection-logic upgrade.
//
// The rebuild re-runs producer lookups exactly as append-time detection
// did: each consumed value or declared resource links back to its most
// recent producer with a lower seq.
func (s *Store) RebuildEdges(ctx context.Context, lineage string, detect func(a ir.Action) ([]ir.ChainEdge, error)) error {
	actions, err := s.LineageActions(ctx, lineage)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rebuild tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM edges WHERE from_action_id IN
		(SELECT action_id FROM actions WHERE lineage = ?)`, lineage,
	); err != nil {
		return fmt.Errorf("clear edges for %s: %w", lineage, err)
	}

	for _, a := range actions {
		edges, err := detect(a)
		if err != nil {
			return fmt.Errorf("rebuild edges for %s: %w", a.ActionID, err)
		}
		for _, e := range edges {
			if _, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO edges (from_action_id, to_action_id, relationship, weight)
				VALUES (?, ?, ?, ?)`,
				e.FromActionID, e.ToActionID, string(e.Relationship), e.Weight,
			); err != nil {
				return fmt.Errorf("insert rebuilt edge: %w", err)
			}
		}
	}
	return tx.Commit()
}
