package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/arclabs/causalchain/internal/ir"
)

// ErrNotFound reports that the requested row does not exist.
var ErrNotFound = errors.New("store: not found")

const selectAction = `
	SELECT seq, action_id, lineage, parent_action_id, plan_id, intent_id,
	       step_id, kind, function_name, args, result, success, error,
	       cost_micros, duration_ms, idempotency_key, resources, provenance,
	       hash, timestamp
	FROM actions`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAction(row rowScanner) (ir.Action, error) {
	var (
		a         ir.Action
		lineage   string
		kind      string
		args      string
		result    string
		success   int
		resources string
		prov      string
	)
	err := row.Scan(
		&a.Sequence, &a.ActionID, &lineage, &a.ParentActionID, &a.PlanID, &a.IntentID,
		&a.StepID, &kind, &a.FunctionName, &args, &result, &success, &a.Error,
		&a.CostMicros, &a.DurationMS, &a.IdempotencyKey, &resources, &prov,
		&a.Hash, &a.Timestamp,
	)
	if err != nil {
		return ir.Action{}, err
	}
	a.Kind = ir.Kind(kind)
	a.Success = success != 0
	if a.Args, err = unmarshalValues(args); err != nil {
		return ir.Action{}, fmt.Errorf("action %s: %w", a.ActionID, err)
	}
	if a.Result, err = unmarshalValues(result); err != nil {
		return ir.Action{}, fmt.Errorf("action %s: %w", a.ActionID, err)
	}
	if a.Resources, err = unmarshalStrings(resources); err != nil {
		return ir.Action{}, fmt.Errorf("action %s: %w", a.ActionID, err)
	}
	if a.Provenance, err = unmarshalProvenance(prov); err != nil {
		return ir.Action{}, fmt.Errorf("action %s: %w", a.ActionID, err)
	}
	_ = lineage // derived from plan_id on the way back out
	return a, nil
}

func scanActions(rows *sql.Rows) ([]ir.Action, error) {
	defer rows.Close()
	var actions []ir.Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// ActionByID loads one action by its id.
func (s *Store) ActionByID(ctx context.Context, actionID string) (ir.Action, error) {
	row := s.db.QueryRowContext(ctx, selectAction+` WHERE action_id = ?`, actionID)
	a, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Action{}, fmt.Errorf("action %s: %w", actionID, ErrNotFound)
	}
	if err != nil {
		return ir.Action{}, fmt.Errorf("action %s: %w", actionID, err)
	}
	return a, nil
}

// ActionBySeq loads one action by its sequence number.
func (s *Store) ActionBySeq(ctx context.Context, seq int64) (ir.Action, error) {
	row := s.db.QueryRowContext(ctx, selectAction+` WHERE seq = ?`, seq)
	a, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Action{}, fmt.Errorf("seq %d: %w", seq, ErrNotFound)
	}
	if err != nil {
		return ir.Action{}, fmt.Errorf("seq %d: %w", seq, err)
	}
	return a, nil
}

// Children returns the direct structural children of an action, in append
// order.
func (s *Store) Children(ctx context.Context, actionID string) ([]ir.Action, error) {
	rows, err := s.db.QueryContext(ctx, selectAction+`
		WHERE parent_action_id = ? ORDER BY seq ASC`, actionID)
	if err != nil {
		return nil, fmt.Errorf("children of %s: %w", actionID, err)
	}
	return scanActions(rows)
}

// LineageActions returns every action of a lineage in append order.
func (s *Store) LineageActions(ctx context.Context, lineage string) ([]ir.Action, error) {
	rows, err := s.db.QueryContext(ctx, selectAction+`
		WHERE lineage = ? ORDER BY seq ASC`, lineage)
	if err != nil {
		return nil, fmt.Errorf("lineage %s: %w", lineage, err)
	}
	return scanActions(rows)
}

// ActionsInRange returns actions with seq in [fromSeq, toSeq] for one
// lineage, in append order. A toSeq of 0 means no upper bound.
func (s *Store) ActionsInRange(ctx context.Context, lineage string, fromSeq, toSeq int64) ([]ir.Action, error) {
	q := selectAction + ` WHERE lineage = ? AND seq >= ?`
	args := []any{lineage, fromSeq}
	if toSeq > 0 {
		q += ` AND seq <= ?`
		args = append(args, toSeq)
	}
	q += ` ORDER BY seq ASC`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("range %s [%d,%d]: %w", lineage, fromSeq, toSeq, err)
	}
	return scanActions(rows)
}

// RecentActions returns the n most recently appended actions across all
// lineages, oldest first. n <= 0 returns nil.
func (s *Store) RecentActions(ctx context.Context, n int) ([]ir.Action, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, selectAction+`
		WHERE seq IN (SELECT seq FROM actions ORDER BY seq DESC LIMIT ?)
		ORDER BY seq ASC`, n)
	if err != nil {
		return nil, fmt.Errorf("recent actions: %w", err)
	}
	return scanActions(rows)
}

// ListLineages returns every lineage id, ordered by first append.
func (s *Store) ListLineages(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT lineage FROM actions GROUP BY lineage ORDER BY MIN(seq) ASC`)
	if err != nil {
		return nil, fmt.Errorf("list lineages: %w", err)
	}
	defer rows.Close()
	var lineages []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, err
		}
		lineages = append(lineages, l)
	}
	return lineages, rows.Err()
}

// LatestProducerBefore returns the most recent producer of a content hash
// with seq strictly below the given bound. ok is false when no producer
// precedes the bound.
func (s *Store) LatestProducerBefore(ctx context.Context, valueHash string, beforeSeq int64) (ProducerEntry, bool, error) {
	var p ProducerEntry
	err := s.db.QueryRowContext(ctx, `
		SELECT value_hash, action_id, seq FROM producers
		WHERE value_hash = ? AND seq < ?
		ORDER BY seq DESC LIMIT 1`, valueHash, beforeSeq,
	).Scan(&p.ValueHash, &p.ActionID, &p.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return ProducerEntry{}, false, nil
	}
	if err != nil {
		return ProducerEntry{}, false, fmt.Errorf("producer of %s: %w", valueHash, err)
	}
	return p, true, nil
}

// EdgesFrom returns outgoing dependency edges of an action.
func (s *Store) EdgesFrom(ctx context.Context, actionID string) ([]ir.ChainEdge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT from_action_id, to_action_id, relationship, weight
		FROM edges WHERE from_action_id = ?
		ORDER BY to_action_id, relationship`, actionID)
	if err != nil {
		return nil, fmt.Errorf("edges from %s: %w", actionID, err)
	}
	return scanEdges(rows)
}

// EdgesTo returns incoming dependency edges of an action.
func (s *Store) EdgesTo(ctx context.Context, actionID string) ([]ir.ChainEdge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT from_action_id, to_action_id, relationship, weight
		FROM edges WHERE to_action_id = ?
		ORDER BY from_action_id, relationship`, actionID)
	if err != nil {
		return nil, fmt.Errorf("edges to %s: %w", actionID, err)
	}
	return scanEdges(rows)
}

func scanEdges(rows *sql.Rows) ([]ir.ChainEdge, error) {
	defer rows.Close()
	var edges []ir.ChainEdge
	for rows.Next() {
		var e ir.ChainEdge
		var rel string
		if err := rows.Scan(&e.FromActionID, &e.ToActionID, &rel, &e.Weight); err != nil {
			return nil, err
		}
		e.Relationship = ir.Relationship(rel)
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
