package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/arclabs/causalchain/internal/ir"
)

// ErrTailMoved reports that another writer claimed the sequence slot this
// append targeted. The caller re-reads the tail and retries with a fresh
// sequence and parent hash.
var ErrTailMoved = errors.New("store: tail moved")

// ErrDuplicateKey reports that an action with the same (lineage,
// idempotency_key, kind) already exists. The caller loads the existing row
// and decides whether the retry is benign or a violation.
var ErrDuplicateKey = errors.New("store: idempotency key already recorded")

// ProducerEntry links a content hash to the action that produced it.
type ProducerEntry struct {
	ValueHash string
	ActionID  string
	Seq       int64
}

// InsertAction persists a fully-built action together with its producer
// index entries and derived dependency edges, atomically.
//
// The action's Sequence, Hash, and ActionID must already be assigned. A
// UNIQUE violation on the sequence slot or action id maps to ErrTailMoved;
// a violation of the idempotency index maps to ErrDuplicateKey.
func (s *Store) InsertAction(ctx context.Context, a ir.Action, producers []ProducerEntry, edges []ir.ChainEdge) error {
	args, err := marshalValues(a.Args)
	if err != nil {
		return fmt.Errorf("insert action %s: %w", a.ActionID, err)
	}
	result, err := marshalValues(a.Result)
	if err != nil {
		return fmt.Errorf("insert action %s: %w", a.ActionID, err)
	}
	resources, err := marshalStrings(a.Resources)
	if err != nil {
		return fmt.Errorf("insert action %s: %w", a.ActionID, err)
	}
	provenance, err := marshalProvenance(a.Provenance)
	if err != nil {
		return fmt.Errorf("insert action %s: %w", a.ActionID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO actions (
			seq, action_id, lineage, parent_action_id, plan_id, intent_id,
			step_id, kind, function_name, args, result, success, error,
			cost_micros, duration_ms, idempotency_key, resources, provenance,
			hash, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Sequence, a.ActionID, a.Lineage(), a.ParentActionID, a.PlanID, a.IntentID,
		a.StepID, string(a.Kind), a.FunctionName, args, result, boolToInt(a.Success), a.Error,
		a.CostMicros, a.DurationMS, a.IdempotencyKey, resources, provenance,
		a.Hash, a.Timestamp,
	)
	if err != nil {
		return classifyInsertErr(err)
	}

	for _, p := range producers {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO producers (value_hash, action_id, seq)
			VALUES (?, ?, ?)`,
			p.ValueHash, p.ActionID, p.Seq,
		); err != nil {
			return fmt.Errorf("insert producer %s: %w", p.ValueHash, err)
		}
	}

	for _, e := range edges {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO edges (from_action_id, to_action_id, relationship, weight)
			VALUES (?, ?, ?, ?)`,
			e.FromActionID, e.ToActionID, string(e.Relationship), e.Weight,
		); err != nil {
			return fmt.Errorf("insert edge %s->%s: %w", e.FromActionID, e.ToActionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return classifyInsertErr(err)
	}
	return nil
}

// classifyInsertErr maps sqlite constraint failures onto the two append
// outcomes the chain distinguishes. Anything else is passed through.
func classifyInsertErr(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}
	switch sqliteErr.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		if strings.Contains(sqliteErr.Error(), "idempotency_key") {
			return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
		}
		return fmt.Errorf("%w: %v", ErrTailMoved, err)
	}
	return err
}

// Tail returns the most recent action in a lineage. ok is false when the
// lineage has no actions yet.
func (s *Store) Tail(ctx context.Context, lineage string) (ir.Action, bool, error) {
	row := s.db.QueryRowContext(ctx, selectAction+`
		WHERE lineage = ? ORDER BY seq DESC LIMIT 1`, lineage)
	a, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Action{}, false, nil
	}
	if err != nil {
		return ir.Action{}, false, fmt.Errorf("tail of %s: %w", lineage, err)
	}
	return a, true, nil
}

// LastSeq returns the highest assigned sequence across all lineages, or 0
// for an empty store. The chain seeds its logical clock from it at open.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM actions`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

// ActionByIdempotencyKey loads the existing action for (lineage, key, kind).
// ok is false when no such action exists.
func (s *Store) ActionByIdempotencyKey(ctx context.Context, lineage, key string, kind ir.Kind) (ir.Action, bool, error) {
	row := s.db.QueryRowContext(ctx, selectAction+`
		WHERE lineage = ? AND idempotency_key = ? AND kind = ?`, lineage, key, string(kind))
	a, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Action{}, false, nil
	}
	if err != nil {
		return ir.Action{}, false, fmt.Errorf("action by key %s/%s: %w", lineage, key, err)
	}
	return a, true, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
