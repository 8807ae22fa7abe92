package chain

import (
	"context"

	"github.com/arclabs/causalchain/internal/ir"
)

// AttachProvenance records supplementary attestation for an existing
// action. The ledger is append-only, so the attachment is itself a new
// ProvenanceAttached action parented on the target; readers merge
// attachments over the target's own provenance in append order.
func (c *Chain) AttachProvenance(ctx context.Context, actionID string, attestation ir.VObject) (ir.Action, error) {
	target, err := c.store.ActionByID(ctx, actionID)
	if err != nil {
		return ir.Action{}, NewNotFoundError("action", actionID)
	}

	d := ir.NewDraft(ir.KindProvenanceAttached, target.PlanID, target.IntentID).
		WithParent(target.ActionID).
		WithStep(target.StepID)
	d.Provenance = attestation
	return c.Append(ctx, d)
}

// EffectiveProvenance returns an action's provenance with every later
// ProvenanceAttached child merged in, in append order. Later attachments
// win on key collisions; the stored action is never mutated.
func (c *Chain) EffectiveProvenance(ctx context.Context, actionID string) (ir.VObject, error) {
	target, err := c.store.ActionByID(ctx, actionID)
	if err != nil {
		return nil, NewNotFoundError("action", actionID)
	}

	merged := make(ir.VObject, len(target.Provenance))
	for k, v := range target.Provenance {
		merged[k] = v
	}

	children, err := c.store.Children(ctx, actionID)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		if child.Kind != ir.KindProvenanceAttached {
			continue
		}
		for k, v := range child.Provenance {
			merged[k] = v
		}
	}
	return merged, nil
}
