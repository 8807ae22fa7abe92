package replay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arclabs/causalchain/internal/chain"
	"github.com/arclabs/causalchain/internal/ir"
	"github.com/arclabs/causalchain/internal/store"
)

// Controller drives checkpoint, resume, and cancel against one chain.
type Controller struct {
	chain *chain.Chain
	store *store.Store
	idGen chain.IDGenerator
}

// Option configures a Controller.
type Option func(*Controller)

// WithIDGenerator replaces the checkpoint id generator. Tests use
// chain.NewFixedGenerator.
func WithIDGenerator(g chain.IDGenerator) Option {
	return func(c *Controller) { c.idGen = g }
}

// New creates a Controller over a chain.
func New(c *chain.Chain, opts ...Option) *Controller {
	ctl := &Controller{
		chain: c,
		store: c.Store(),
		idGen: chain.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(ctl)
	}
	return ctl
}

// Checkpoint suspends a lineage: it records the current frontier (leaf
// actions), the opaque environment snapshot with its hash, and the
// idempotency keys of every unresolved Yield. The lineage itself is not
// locked; a checkpoint is a consistent cut, not a lease.
func (c *Controller) Checkpoint(ctx context.Context, lineage string, envSnapshot []byte) (ir.Checkpoint, error) {
	tail, ok, err := c.store.Tail(ctx, lineage)
	if err != nil {
		return ir.Checkpoint{}, err
	}
	if !ok {
		return ir.Checkpoint{}, &chain.ChainError{
			Code:    chain.ErrCodeNotFound,
			Message: "lineage has no actions",
			Lineage: lineage,
		}
	}

	actions, err := c.store.LineageActions(ctx, lineage)
	if err != nil {
		return ir.Checkpoint{}, err
	}

	cp := ir.Checkpoint{
		CheckpointID: c.idGen.Generate(),
		Lineage:      lineage,
		Frontier:     frontierOf(actions),
		EnvSnapshot:  envSnapshot,
		EnvHash:      ir.EnvHash(envSnapshot),
		Pending:      pendingKeys(actions),
		CreatedSeq:   tail.Sequence,
	}
	if err := c.store.PutCheckpoint(ctx, cp); err != nil {
		return ir.Checkpoint{}, err
	}

	slog.Info("checkpoint created",
		"checkpoint_id", cp.CheckpointID,
		"lineage", lineage,
		"frontier", len(cp.Frontier),
		"pending", len(cp.Pending))
	return cp, nil
}

// EffectResult resolves one pending effect at resume time.
type EffectResult struct {
	Result     ir.VArray
	Failed     bool
	Error      string
	CostMicros int64
	DurationMS int64
}

// ResumeReport describes what a resume did.
type ResumeReport struct {
	CheckpointID string      `json:"checkpoint_id"`
	Lineage      string      `json:"lineage"`
	Resumed      []ir.Action `json:"resumed"`

	// Deduplicated counts pending effects that were already recorded
	// (a previous resume got there first).
	Deduplicated int `json:"deduplicated"`
}

// Resume completes a suspended lineage. The ledger is verified from
// genesis to the checkpoint bound, the environment snapshot is checked
// against its recorded hash, and every pending effect is re-issued as a
// Resume action with the supplied result. Effects already recorded are
// absorbed by their idempotency key, so calling Resume twice is safe and
// converges on the same chain.
//
// Every pending key must have an entry in results; a missing entry fails
// before anything is appended.
func (c *Controller) Resume(ctx context.Context, checkpointID string, results map[string]EffectResult) (ResumeReport, error) {
	cp, err := c.store.Checkpoint(ctx, checkpointID)
	if errors.Is(err, store.ErrNotFound) {
		return ResumeReport{}, &chain.ChainError{
			Code:    chain.ErrCodeNotFound,
			Message: fmt.Sprintf("checkpoint %s not found", checkpointID),
		}
	}
	if err != nil {
		return ResumeReport{}, err
	}

	for _, key := range cp.Pending {
		if _, ok := results[key]; !ok {
			return ResumeReport{}, &chain.ChainError{
				Code:    chain.ErrCodeReplayDivergence,
				Message: fmt.Sprintf("no result supplied for pending effect %q", key),
				Lineage: cp.Lineage,
				Details: map[string]string{"idempotency_key": key},
			}
		}
	}

	if err := c.verifyCheckpoint(ctx, cp); err != nil {
		return ResumeReport{}, err
	}

	report := ResumeReport{CheckpointID: cp.CheckpointID, Lineage: cp.Lineage}
	for _, key := range cp.Pending {
		yield, ok, err := c.store.ActionByIdempotencyKey(ctx, cp.Lineage, key, ir.KindYield)
		if err != nil {
			return report, err
		}
		if !ok {
			return report, &chain.ChainError{
				Code:    chain.ErrCodeReplayDivergence,
				Message: fmt.Sprintf("pending effect %q has no recorded Yield", key),
				Lineage: cp.Lineage,
				Details: map[string]string{"idempotency_key": key},
			}
		}

		res := results[key]
		d := ir.NewDraft(ir.KindResume, cp.Lineage, yield.IntentID).
			WithParent(yield.ActionID).
			WithStep(yield.StepID).
			WithFunction(yield.FunctionName).
			WithIdempotencyKey(key).
			WithCost(res.CostMicros, res.DurationMS)
		if res.Failed {
			d = d.WithError(res.Error)
		} else {
			d = d.WithResult(res.Result...)
		}

		already, wasThere, err := c.store.ActionByIdempotencyKey(ctx, cp.Lineage, key, ir.KindResume)
		if err != nil {
			return report, err
		}

		a, err := c.chain.Append(ctx, d)
		if chain.IsIdempotencyViolation(err) {
			// The recorded Resume does not match what this checkpoint
			// would re-issue: two executions disagree about history.
			return report, &chain.ChainError{
				Code:    chain.ErrCodeReplayDivergence,
				Message: fmt.Sprintf("recorded effect %q diverges from resume payload", key),
				Lineage: cp.Lineage,
				Details: map[string]string{"idempotency_key": key},
			}
		}
		if err != nil {
			return report, err
		}
		if wasThere && already.ActionID == a.ActionID {
			report.Deduplicated++
		}
		report.Resumed = append(report.Resumed, a)
	}

	if err := c.store.ConsumeCheckpoint(ctx, cp.CheckpointID); err != nil {
		return report, err
	}

	slog.Info("checkpoint resumed",
		"checkpoint_id", cp.CheckpointID,
		"lineage", cp.Lineage,
		"resumed", len(report.Resumed),
		"deduplicated", report.Deduplicated)
	return report, nil
}

// Cancel abandons a suspended lineage: every pending effect is closed with
// a Cancelled action carrying the reason, and the checkpoint is consumed.
// Like Resume, cancellation is idempotent.
func (c *Controller) Cancel(ctx context.Context, checkpointID, reason string) (ResumeReport, error) {
	cp, err := c.store.Checkpoint(ctx, checkpointID)
	if errors.Is(err, store.ErrNotFound) {
		return ResumeReport{}, &chain.ChainError{
			Code:    chain.ErrCodeNotFound,
			Message: fmt.Sprintf("checkpoint %s not found", checkpointID),
		}
	}
	if err != nil {
		return ResumeReport{}, err
	}

	report := ResumeReport{CheckpointID: cp.CheckpointID, Lineage: cp.Lineage}
	for _, key := range cp.Pending {
		yield, ok, err := c.store.ActionByIdempotencyKey(ctx, cp.Lineage, key, ir.KindYield)
		if err != nil {
			return report, err
		}
		if !ok {
			continue
		}
		a, err := c.chain.Append(ctx, ir.NewDraft(ir.KindCancelled, cp.Lineage, yield.IntentID).
			WithParent(yield.ActionID).
			WithStep(yield.StepID).
			WithIdempotencyKey(key).
			WithError(reason))
		if err != nil {
			return report, err
		}
		report.Resumed = append(report.Resumed, a)
	}

	if err := c.store.ConsumeCheckpoint(ctx, cp.CheckpointID); err != nil {
		return report, err
	}
	slog.Info("checkpoint cancelled",
		"checkpoint_id", cp.CheckpointID,
		"lineage", cp.Lineage,
		"reason", reason)
	return report, nil
}

// verifyCheckpoint proves the ledger prefix and environment a resume is
// about to trust. Any failure here is a replay divergence: the lineage can
// no longer be resumed, only abandoned.
func (c *Controller) verifyCheckpoint(ctx context.Context, cp ir.Checkpoint) error {
	if err := c.store.VerifyRange(ctx, cp.Lineage, 0, cp.CreatedSeq); err != nil {
		var div store.DivergenceError
		actionID := ""
		if errors.As(err, &div) {
			actionID = div.ActionID
		}
		return chain.NewReplayDivergenceError(cp.Lineage, actionID, err)
	}
	if got := ir.EnvHash(cp.EnvSnapshot); got != cp.EnvHash {
		return &chain.ChainError{
			Code:    chain.ErrCodeReplayDivergence,
			Message: "environment snapshot does not match recorded hash",
			Lineage: cp.Lineage,
			Details: map[string]string{"want": cp.EnvHash, "got": got},
		}
	}
	for _, id := range cp.Frontier {
		if _, err := c.store.ActionByID(ctx, id); err != nil {
			return chain.NewReplayDivergenceError(cp.Lineage, id, err)
		}
	}
	return nil
}

// frontierOf returns the leaf actions of a lineage: every action no other
// action names as its structural parent.
func frontierOf(actions []ir.Action) []string {
	hasChild := make(map[string]bool)
	for _, a := range actions {
		if a.ParentActionID != "" {
			hasChild[a.ParentActionID] = true
		}
	}
	var leaves []string
	for _, a := range actions {
		if !hasChild[a.ActionID] {
			leaves = append(leaves, a.ActionID)
		}
	}
	return leaves
}

// pendingKeys returns the idempotency keys of Yields with no completing
// Resume or Cancelled record.
func pendingKeys(actions []ir.Action) []string {
	resolved := make(map[string]bool)
	for _, a := range actions {
		if a.Kind == ir.KindResume || a.Kind == ir.KindCancelled {
			resolved[a.IdempotencyKey] = true
		}
	}
	var keys []string
	for _, a := range actions {
		if a.Kind == ir.KindYield && !resolved[a.IdempotencyKey] {
			keys = append(keys, a.IdempotencyKey)
		}
	}
	return keys
}
