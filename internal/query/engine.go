package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/arclabs/causalchain/internal/ir"
	"github.com/arclabs/causalchain/internal/store"
)

// Engine executes compiled filters against a store.
type Engine struct {
	store *store.Store
}

// New creates a query engine over the given store.
func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// Run compiles and executes a filter, returning matching actions in
// sequence order.
func (e *Engine) Run(ctx context.Context, f Filter) ([]ir.Action, error) {
	q, params, err := f.Compile()
	if err != nil {
		return nil, err
	}
	rows, err := e.store.Query(ctx, q, params...)
	if err != nil {
		return nil, fmt.Errorf("run filter: %w", err)
	}
	return collectActions(rows)
}

// Subtree returns an action and all its structural descendants in sequence
// order, using a recursive CTE over the parent link. untilSeq bounds the
// read as a snapshot; 0 means unbounded.
func (e *Engine) Subtree(ctx context.Context, actionID string, untilSeq int64) ([]ir.Action, error) {
	q := `
		WITH RECURSIVE subtree(id) AS (
			SELECT action_id FROM actions WHERE action_id = ?
			UNION
			SELECT a.action_id FROM actions a
			JOIN subtree s ON a.parent_action_id = s.id
		)
		` + selectColumns + `
		FROM actions WHERE action_id IN (SELECT id FROM subtree)`
	params := []any{actionID}
	if untilSeq > 0 {
		q += ` AND seq <= ?`
		params = append(params, untilSeq)
	}
	q += ` ORDER BY seq ASC`

	rows, err := e.store.Query(ctx, q, params...)
	if err != nil {
		return nil, fmt.Errorf("subtree of %s: %w", actionID, err)
	}
	actions, err := collectActions(rows)
	if err != nil {
		return nil, err
	}
	if len(actions) == 0 {
		return nil, fmt.Errorf("subtree of %s: %w", actionID, store.ErrNotFound)
	}
	return actions, nil
}

// SlowNodes returns function-bearing actions that took at least thresholdMS
// (0 means any duration), slowest first, capped at limit (0 means 10).
// Lineage restricts the scan when non-empty. Ties break on seq for
// deterministic output.
func (e *Engine) SlowNodes(ctx context.Context, lineage string, thresholdMS int64, limit int) ([]ir.Action, error) {
	if limit <= 0 {
		limit = 10
	}
	q := selectColumns + ` FROM actions WHERE function_name <> ''`
	var params []any
	if lineage != "" {
		q += ` AND lineage = ?`
		params = append(params, lineage)
	}
	if thresholdMS > 0 {
		q += ` AND duration_ms >= ?`
		params = append(params, thresholdMS)
	}
	q += ` ORDER BY duration_ms DESC, seq ASC LIMIT ?`
	params = append(params, limit)

	rows, err := e.store.Query(ctx, q, params...)
	if err != nil {
		return nil, fmt.Errorf("slow nodes: %w", err)
	}
	return collectActions(rows)
}

// FunctionCost is one row of the per-function cost aggregate.
type FunctionCost struct {
	FunctionName    string `json:"function_name"`
	Calls           int64  `json:"calls"`
	Failures        int64  `json:"failures"`
	TotalCostMicros int64  `json:"total_cost_micros"`
	TotalDurationMS int64  `json:"total_duration_ms"`
}

// CostByFunction aggregates recorded cost and duration per function name
// over a lineage (all lineages when empty). Output is ordered by total
// cost descending, name ascending on ties.
func (e *Engine) CostByFunction(ctx context.Context, lineage string) ([]FunctionCost, error) {
	q := `
		SELECT function_name,
		       COUNT(*),
		       SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END),
		       SUM(cost_micros),
		       SUM(duration_ms)
		FROM actions
		WHERE function_name <> ''`
	var params []any
	if lineage != "" {
		q += ` AND lineage = ?`
		params = append(params, lineage)
	}
	q += `
		GROUP BY function_name
		ORDER BY SUM(cost_micros) DESC, function_name ASC`

	rows, err := e.store.Query(ctx, q, params...)
	if err != nil {
		return nil, fmt.Errorf("cost by function: %w", err)
	}
	defer rows.Close()

	var out []FunctionCost
	for rows.Next() {
		var fc FunctionCost
		if err := rows.Scan(&fc.FunctionName, &fc.Calls, &fc.Failures,
			&fc.TotalCostMicros, &fc.TotalDurationMS); err != nil {
			return nil, err
		}
		out = append(out, fc)
	}
	return out, rows.Err()
}

func collectActions(rows *sql.Rows) ([]ir.Action, error) {
	defer rows.Close()
	var actions []ir.Action
	for rows.Next() {
		a, err := scanActionRow(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

func scanActionRow(rows *sql.Rows) (ir.Action, error) {
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
	err := rows.Scan(
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
	if args != "" && args != "[]" {
		if err := json.Unmarshal([]byte(args), &a.Args); err != nil {
			return ir.Action{}, fmt.Errorf("scan %s args: %w", a.ActionID, err)
		}
	}
	if result != "" && result != "[]" {
		if err := json.Unmarshal([]byte(result), &a.Result); err != nil {
			return ir.Action{}, fmt.Errorf("scan %s result: %w", a.ActionID, err)
		}
	}
	if resources != "" && resources != "[]" {
		if err := json.Unmarshal([]byte(resources), &a.Resources); err != nil {
			return ir.Action{}, fmt.Errorf("scan %s resources: %w", a.ActionID, err)
		}
	}
	if prov != "" && prov != "{}" {
		if err := json.Unmarshal([]byte(prov), &a.Provenance); err != nil {
			return ir.Action{}, fmt.Errorf("scan %s provenance: %w", a.ActionID, err)
		}
	}
	return a, nil
}
