package chain

import (
	"sync"

	"github.com/arclabs/causalchain/internal/ir"
)

// FunctionStats aggregates the recorded calls of one function name.
type FunctionStats struct {
	Calls           int64 `json:"calls"`
	Failures        int64 `json:"failures"`
	TotalCostMicros int64 `json:"total_cost_micros"`
	TotalDurationMS int64 `json:"total_duration_ms"`
}

// Snapshot is a point-in-time copy of the append counters.
type Snapshot struct {
	Appends      int64                    `json:"appends"`
	Deduplicated int64                    `json:"deduplicated"`
	ByKind       map[string]int64         `json:"by_kind"`
	ByFunction   map[string]FunctionStats `json:"by_function"`
}

// Metrics counts appends in-process. Counters reset on restart; durable
// aggregates come from the ledger itself, not from here.
type Metrics struct {
	mu           sync.Mutex
	appends      int64
	deduplicated int64
	byKind       map[string]int64
	byFunction   map[string]FunctionStats
}

// NewMetrics creates zeroed counters.
func NewMetrics() *Metrics {
	return &Metrics{
		byKind:     make(map[string]int64),
		byFunction: make(map[string]FunctionStats),
	}
}

func (m *Metrics) recordAppend(a ir.Action) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appends++
	m.byKind[string(a.Kind)]++
	if a.FunctionName != "" {
		fs := m.byFunction[a.FunctionName]
		fs.Calls++
		if !a.Success {
			fs.Failures++
		}
		fs.TotalCostMicros += a.CostMicros
		fs.TotalDurationMS += a.DurationMS
		m.byFunction[a.FunctionName] = fs
	}
}

func (m *Metrics) recordDedup(a ir.Action) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deduplicated++
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{
		Appends:      m.appends,
		Deduplicated: m.deduplicated,
		ByKind:       make(map[string]int64, len(m.byKind)),
		ByFunction:   make(map[string]FunctionStats, len(m.byFunction)),
	}
	for k, v := range m.byKind {
		s.ByKind[k] = v
	}
	for k, v := range m.byFunction {
		s.ByFunction[k] = v
	}
	return s
}
