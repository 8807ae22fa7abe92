package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arclabs/causalchain/internal/analyzer"
	"github.com/arclabs/causalchain/internal/ir"
	"github.com/arclabs/causalchain/internal/store"
)

// Append validates a draft and persists it as the next action of its
// lineage. On success the fully-assigned action is returned.
//
// A draft whose idempotency key already exists in the lineage with an
// identical payload returns the original action and appends nothing. The
// same key with a different payload is an IDEMPOTENCY_VIOLATION.
func (c *Chain) Append(ctx context.Context, d ir.Draft) (ir.Action, error) {
	if violations := d.Validate(); len(violations) > 0 {
		return ir.Action{}, NewInvalidDraftError(d.PlanID, violations)
	}
	lineage := d.PlanID

	lock := c.lineageLock(lineage)
	lock.Lock()
	defer lock.Unlock()

	if existing, done, err := c.dedupe(ctx, lineage, d); done || err != nil {
		return existing, err
	}

	parentHash, err := c.resolveParent(ctx, lineage, d)
	if err != nil {
		return ir.Action{}, err
	}

	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		seq := c.clock.Next()
		a, err := c.buildAction(d, seq, parentHash)
		if err != nil {
			return ir.Action{}, err
		}

		edges, err := c.analyzer.Dependencies(ctx, a.ActionID, d, seq)
		if err != nil {
			return ir.Action{}, fmt.Errorf("detect dependencies: %w", err)
		}
		producers, err := analyzer.Producers(a)
		if err != nil {
			return ir.Action{}, err
		}

		err = c.store.InsertAction(ctx, a, producers, edges)
		switch {
		case err == nil:
			c.metrics.recordAppend(a)
			c.notify(AppendEvent{
				ActionID: a.ActionID,
				Lineage:  lineage,
				Kind:     string(a.Kind),
				Sequence: a.Sequence,
			})
			slog.Debug("action appended",
				"action_id", a.ActionID,
				"lineage", lineage,
				"kind", a.Kind,
				"seq", a.Sequence,
				"deps", len(edges))
			return a, nil

		case errors.Is(err, store.ErrTailMoved):
			// Another lineage claimed the slot. Advance past the store's
			// view and retry with a fresh sequence.
			lastErr = err
			last, seqErr := c.store.LastSeq(ctx)
			if seqErr != nil {
				return ir.Action{}, fmt.Errorf("reseed clock: %w", seqErr)
			}
			c.clock.AdvanceTo(last)
			continue

		case errors.Is(err, store.ErrDuplicateKey):
			// Raced another writer on the same key; resolve like a
			// pre-checked duplicate.
			existing, done, dupErr := c.dedupe(ctx, lineage, d)
			if dupErr != nil {
				return ir.Action{}, dupErr
			}
			if done {
				return existing, nil
			}
			return ir.Action{}, fmt.Errorf("duplicate key vanished during append: %w", err)

		default:
			return ir.Action{}, fmt.Errorf("append to %s: %w", lineage, err)
		}
	}

	slog.Warn("append conflict", "lineage", lineage, "attempts", c.retries)
	return ir.Action{}, NewAppendConflictError(lineage, c.retries, lastErr)
}

// dedupe resolves a keyed draft against the existing ledger. done=true
// means the caller returns existing without appending.
func (c *Chain) dedupe(ctx context.Context, lineage string, d ir.Draft) (existing ir.Action, done bool, err error) {
	if d.IdempotencyKey == "" {
		return ir.Action{}, false, nil
	}
	prior, ok, err := c.store.ActionByIdempotencyKey(ctx, lineage, d.IdempotencyKey, d.Kind)
	if err != nil {
		return ir.Action{}, false, err
	}
	if !ok {
		return ir.Action{}, false, nil
	}

	wantPayload, err := ir.PayloadHash(d)
	if err != nil {
		return ir.Action{}, false, err
	}
	priorPayload, err := ir.PayloadHash(prior.Draft())
	if err != nil {
		return ir.Action{}, false, err
	}
	if wantPayload != priorPayload {
		return ir.Action{}, false, NewIdempotencyViolationError(lineage, d.IdempotencyKey, prior.ActionID)
	}

	c.metrics.recordDedup(prior)
	c.notify(AppendEvent{
		ActionID:     prior.ActionID,
		Lineage:      lineage,
		Kind:         string(prior.Kind),
		Sequence:     prior.Sequence,
		Deduplicated: true,
	})
	slog.Debug("append deduplicated",
		"action_id", prior.ActionID,
		"lineage", lineage,
		"idempotency_key", d.IdempotencyKey)
	return prior, true, nil
}

// resolveParent returns the parent hash linking the draft into the chain:
// GenesisSeed for a lineage root, the parent's stored hash otherwise. Root
// drafts are rejected when the lineage already exists; non-root parents
// must exist and belong to the same lineage.
func (c *Chain) resolveParent(ctx context.Context, lineage string, d ir.Draft) (string, error) {
	if d.Kind.Root() {
		_, exists, err := c.store.Tail(ctx, lineage)
		if err != nil {
			return "", err
		}
		if exists {
			return "", NewInvalidDraftError(lineage, []ir.DraftError{{
				Field:   "plan_id",
				Message: fmt.Sprintf("lineage %s already started", lineage),
			}})
		}
		return ir.GenesisSeed, nil
	}

	parent, err := c.store.ActionByID(ctx, d.ParentActionID)
	if errors.Is(err, store.ErrNotFound) {
		return "", NewNotFoundError("parent action", d.ParentActionID)
	}
	if err != nil {
		return "", err
	}
	if parent.Lineage() != lineage {
		return "", NewInvalidDraftError(lineage, []ir.DraftError{{
			Field:   "parent_action_id",
			Message: fmt.Sprintf("parent belongs to lineage %s", parent.Lineage()),
		}})
	}
	if parent.Kind.Terminal() && !d.Kind.Amendment() {
		return "", NewInvalidDraftError(lineage, []ir.DraftError{{
			Field:   "parent_action_id",
			Message: fmt.Sprintf("parent is terminal (%s)", parent.Kind),
		}})
	}
	return parent.Hash, nil
}

func (c *Chain) buildAction(d ir.Draft, seq int64, parentHash string) (ir.Action, error) {
	hash, err := ir.ActionHash(d, seq, parentHash)
	if err != nil {
		return ir.Action{}, err
	}
	return ir.Action{
		ActionID:       c.idGen.Generate(),
		ParentActionID: d.ParentActionID,
		PlanID:         d.PlanID,
		IntentID:       d.IntentID,
		StepID:         d.StepID,
		Kind:           d.Kind,
		FunctionName:   d.FunctionName,
		Args:           d.Args,
		Result:         d.Result,
		Success:        d.Success,
		Error:          d.Error,
		CostMicros:     d.CostMicros,
		DurationMS:     d.DurationMS,
		Sequence:       seq,
		Hash:           hash,
		IdempotencyKey: d.IdempotencyKey,
		Resources:      d.Resources,
		Provenance:     d.Provenance,
		Timestamp:      c.now(),
	}, nil
}
