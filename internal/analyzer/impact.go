package analyzer

import (
	"context"
	"sort"

	"github.com/arclabs/causalchain/internal/ir"
)

// DefaultMaxDepth bounds graph traversals. Chains are shallow in practice;
// the bound guards against pathological ledgers, not normal use.
const DefaultMaxDepth = 64

// ImpactNode is one action reached by forward impact traversal.
type ImpactNode struct {
	Action ir.Action `json:"action"`
	Depth  int       `json:"depth"`
}

// ImpactReport lists everything downstream of a start action: its
// structural descendants plus every action that transitively depends on it.
type ImpactReport struct {
	Start    string       `json:"start"`
	Affected []ImpactNode `json:"affected"`

	// CascadeRisks are affected actions whose only dependency edge points
	// at the start action. If the start action's output was wrong, these
	// have no other input that could have corrected them.
	CascadeRisks []string `json:"cascade_risks,omitempty"`
}

// Impact computes the forward blast radius of an action: breadth-first over
// structural children and incoming dependency edges (actions that depend on
// a frontier node), up to maxDepth levels. maxDepth <= 0 means
// DefaultMaxDepth. The start action itself is not listed as affected.
func (an *Analyzer) Impact(ctx context.Context, actionID string, maxDepth int) (ImpactReport, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	start, err := an.store.ActionByID(ctx, actionID)
	if err != nil {
		return ImpactReport{}, err
	}

	report := ImpactReport{Start: start.ActionID}
	visited := map[string]bool{start.ActionID: true}
	frontier := []string{start.ActionID}

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			succ, err := an.successors(ctx, id)
			if err != nil {
				return ImpactReport{}, err
			}
			for _, s := range succ {
				if visited[s] {
					continue
				}
				visited[s] = true
				a, err := an.store.ActionByID(ctx, s)
				if err != nil {
					return ImpactReport{}, err
				}
				report.Affected = append(report.Affected, ImpactNode{Action: a, Depth: depth})
				next = append(next, s)
			}
		}
		frontier = next
	}

	sort.SliceStable(report.Affected, func(i, j int) bool {
		return report.Affected[i].Action.Sequence < report.Affected[j].Action.Sequence
	})

	for _, node := range report.Affected {
		risk, err := an.isCascadeRisk(ctx, node.Action.ActionID, start.ActionID)
		if err != nil {
			return ImpactReport{}, err
		}
		if risk {
			report.CascadeRisks = append(report.CascadeRisks, node.Action.ActionID)
		}
	}
	return report, nil
}

// successors returns the forward neighbors of an action: structural
// children and dependents (actions whose dependency edges point here).
func (an *Analyzer) successors(ctx context.Context, actionID string) ([]string, error) {
	children, err := an.store.Children(ctx, actionID)
	if err != nil {
		return nil, err
	}
	incoming, err := an.store.EdgesTo(ctx, actionID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(children)+len(incoming))
	for _, c := range children {
		ids = append(ids, c.ActionID)
	}
	for _, e := range incoming {
		if e.Relationship == ir.RelDependsOn {
			ids = append(ids, e.FromActionID)
		}
	}
	return ids, nil
}

func (an *Analyzer) isCascadeRisk(ctx context.Context, actionID, startID string) (bool, error) {
	deps, err := an.store.EdgesFrom(ctx, actionID)
	if err != nil {
		return false, err
	}
	var dependsOn []ir.ChainEdge
	for _, e := range deps {
		if e.Relationship == ir.RelDependsOn {
			dependsOn = append(dependsOn, e)
		}
	}
	return len(dependsOn) == 1 && dependsOn[0].ToActionID == startID, nil
}

// CauseNode is one action reached by backward cause traversal.
type CauseNode struct {
	Action ir.Action `json:"action"`
	Depth  int       `json:"depth"`
}

// Causes computes the backward explanation of an action: every action that
// transitively produced one of its inputs, in ledger order. Only dependency
// edges are followed; structural ancestry is the trace's job. The queried
// action itself is not listed.
func (an *Analyzer) Causes(ctx context.Context, actionID string, maxDepth int) ([]CauseNode, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	start, err := an.store.ActionByID(ctx, actionID)
	if err != nil {
		return nil, err
	}

	var causes []CauseNode
	visited := map[string]bool{start.ActionID: true}
	frontier := []ir.Action{start}

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []ir.Action
		for _, a := range frontier {
			pred, err := an.predecessors(ctx, a)
			if err != nil {
				return nil, err
			}
			for _, id := range pred {
				if visited[id] {
					continue
				}
				visited[id] = true
				p, err := an.store.ActionByID(ctx, id)
				if err != nil {
					return nil, err
				}
				causes = append(causes, CauseNode{Action: p, Depth: depth})
				next = append(next, p)
			}
		}
		frontier = next
	}

	sort.SliceStable(causes, func(i, j int) bool {
		return causes[i].Action.Sequence < causes[j].Action.Sequence
	})
	return causes, nil
}

func (an *Analyzer) predecessors(ctx context.Context, a ir.Action) ([]string, error) {
	outgoing, err := an.store.EdgesFrom(ctx, a.ActionID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range outgoing {
		if e.Relationship == ir.RelDependsOn {
			ids = append(ids, e.ToActionID)
		}
	}
	return ids, nil
}
