package query

import (
	"fmt"
	"strings"

	"github.com/arclabs/causalchain/internal/ir"
)

// Filter selects ledger actions. Zero-valued fields are not constrained.
type Filter struct {
	// Lineage restricts to one lineage.
	Lineage string

	// PlanID / IntentID / StepID restrict by ownership reference.
	PlanID   string
	IntentID string
	StepID   string

	// Kinds restricts to the listed kinds.
	Kinds []ir.Kind

	// FunctionName restricts to one symbolic operation name.
	FunctionName string

	// OnlyFailures keeps only unsuccessful actions.
	OnlyFailures bool

	// MinCostMicros / MinDurationMS keep actions at or above the bound.
	MinCostMicros int64
	MinDurationMS int64

	// SinceSeq / UntilSeq bound the sequence range inclusively. UntilSeq
	// makes the read a snapshot read: results never change once the bound
	// is in the past.
	SinceSeq int64
	UntilSeq int64

	// Limit caps the number of rows; 0 means unlimited.
	Limit int
}

// Validate rejects filters that cannot compile.
func (f Filter) Validate() error {
	for _, k := range f.Kinds {
		if !k.Valid() {
			return fmt.Errorf("filter: unknown kind %q", k)
		}
	}
	if f.SinceSeq < 0 || f.UntilSeq < 0 {
		return fmt.Errorf("filter: sequence bounds must be non-negative")
	}
	if f.UntilSeq > 0 && f.SinceSeq > f.UntilSeq {
		return fmt.Errorf("filter: since_seq %d exceeds until_seq %d", f.SinceSeq, f.UntilSeq)
	}
	if f.Limit < 0 {
		return fmt.Errorf("filter: limit must be non-negative")
	}
	return nil
}

// Compile converts the filter to parameterized SQL over the actions table.
// Every query orders by seq ASC for deterministic results.
func (f Filter) Compile() (string, []any, error) {
	if err := f.Validate(); err != nil {
		return "", nil, err
	}

	var conds []string
	var params []any
	add := func(cond string, vals ...any) {
		conds = append(conds, cond)
		params = append(params, vals...)
	}

	if f.Lineage != "" {
		add("lineage = ?", f.Lineage)
	}
	if f.PlanID != "" {
		add("plan_id = ?", f.PlanID)
	}
	if f.IntentID != "" {
		add("intent_id = ?", f.IntentID)
	}
	if f.StepID != "" {
		add("step_id = ?", f.StepID)
	}
	if len(f.Kinds) > 0 {
		placeholders := strings.Repeat("?, ", len(f.Kinds))
		vals := make([]any, len(f.Kinds))
		for i, k := range f.Kinds {
			vals[i] = string(k)
		}
		add(fmt.Sprintf("kind IN (%s)", placeholders[:len(placeholders)-2]), vals...)
	}
	if f.FunctionName != "" {
		add("function_name = ?", f.FunctionName)
	}
	if f.OnlyFailures {
		conds = append(conds, "success = 0")
	}
	if f.MinCostMicros > 0 {
		add("cost_micros >= ?", f.MinCostMicros)
	}
	if f.MinDurationMS > 0 {
		add("duration_ms >= ?", f.MinDurationMS)
	}
	if f.SinceSeq > 0 {
		add("seq >= ?", f.SinceSeq)
	}
	if f.UntilSeq > 0 {
		add("seq <= ?", f.UntilSeq)
	}

	sql := selectColumns + " FROM actions"
	if len(conds) > 0 {
		sql += " WHERE " + strings.Join(conds, " AND ")
	}
	sql += " ORDER BY seq ASC"
	if f.Limit > 0 {
		sql += " LIMIT ?"
		params = append(params, f.Limit)
	}
	return sql, params, nil
}

const selectColumns = `SELECT seq, action_id, lineage, parent_action_id, plan_id, intent_id,
	step_id, kind, function_name, args, result, success, error,
	cost_micros, duration_ms, idempotency_key, resources, provenance,
	hash, timestamp`
