package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/arclabs/causalchain/internal/analyzer"
	"github.com/arclabs/causalchain/internal/ir"
	"github.com/arclabs/causalchain/internal/store"
)

// DefaultMaxAppendRetries bounds how often a lost sequence race is retried
// before the append fails with APPEND_CONFLICT.
const DefaultMaxAppendRetries = 8

// Chain is the append gateway to the ledger.
//
// Thread-safety model:
//   - Append(), AttachProvenance(): safe from any goroutine; appends within
//     one lineage serialize on a per-lineage lock
//   - Verify(), read paths: safe from any goroutine
type Chain struct {
	store    *store.Store
	analyzer *analyzer.Analyzer
	clock    *Clock
	idGen    IDGenerator
	now      func() int64
	metrics  *Metrics
	sinks    []EventSink
	retries  int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option allows configuration of chain parameters.
type Option func(*Chain)

// WithIDGenerator replaces the production UUIDv7 generator.
// Tests use NewFixedGenerator for reproducible ids.
func WithIDGenerator(g IDGenerator) Option {
	return func(c *Chain) { c.idGen = g }
}

// WithNow replaces the wall-clock source for the informational timestamp.
// The timestamp never feeds a hash, so this only affects display.
func WithNow(now func() int64) Option {
	return func(c *Chain) { c.now = now }
}

// WithMaxAppendRetries sets the sequence-race retry budget.
func WithMaxAppendRetries(n int) Option {
	return func(c *Chain) { c.retries = n }
}

// WithSink registers an event sink. Sinks run synchronously after each
// durable append.
func WithSink(s EventSink) Option {
	return func(c *Chain) { c.sinks = append(c.sinks, s) }
}

// Open creates a Chain over the store, seeding the logical clock from the
// store's last assigned sequence so that restarts continue the same
// monotonic order.
func Open(ctx context.Context, s *store.Store, opts ...Option) (*Chain, error) {
	last, err := s.LastSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("open chain: %w", err)
	}

	c := &Chain{
		store:    s,
		analyzer: analyzer.New(s),
		clock:    NewClockAt(last),
		idGen:    UUIDv7Generator{},
		now:      func() int64 { return time.Now().UnixMilli() },
		metrics:  NewMetrics(),
		retries:  DefaultMaxAppendRetries,
		locks:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(c)
	}

	slog.Debug("chain opened", "last_seq", last)
	return c, nil
}

// Store exposes the underlying store for read paths (query, replay).
func (c *Chain) Store() *store.Store {
	return c.store
}

// Analyzer exposes the dependency analyzer bound to this chain's store.
func (c *Chain) Analyzer() *analyzer.Analyzer {
	return c.analyzer
}

// Metrics exposes the in-process append counters.
func (c *Chain) Metrics() *Metrics {
	return c.metrics
}

// Get loads one action by id, mapping a missing row to NOT_FOUND.
func (c *Chain) Get(ctx context.Context, actionID string) (ir.Action, error) {
	a, err := c.store.ActionByID(ctx, actionID)
	if errors.Is(err, store.ErrNotFound) {
		return ir.Action{}, NewNotFoundError("action", actionID)
	}
	return a, err
}

// Tail returns the highest-sequence action of a lineage. ok is false when
// the lineage has no actions yet.
func (c *Chain) Tail(ctx context.Context, lineage string) (ir.Action, bool, error) {
	return c.store.Tail(ctx, lineage)
}

// Verify recomputes every hash of a lineage from its genesis root and
// returns an INTEGRITY error at the first broken link.
func (c *Chain) Verify(ctx context.Context, lineage string) error {
	if err := c.store.VerifyLineage(ctx, lineage); err != nil {
		var actionID string
		var div store.DivergenceError
		if errors.As(err, &div) {
			actionID = div.ActionID
		}
		return NewIntegrityError(lineage, actionID, err)
	}
	return nil
}

// VerifyRange is Verify restricted to seq in [fromSeq, toSeq]. A toSeq of 0
// means unbounded; a fromSeq above the lineage root still recomputes the
// link into the preceding action.
func (c *Chain) VerifyRange(ctx context.Context, lineage string, fromSeq, toSeq int64) error {
	if err := c.store.VerifyRange(ctx, lineage, fromSeq, toSeq); err != nil {
		var actionID string
		var div store.DivergenceError
		if errors.As(err, &div) {
			actionID = div.ActionID
		}
		return NewIntegrityError(lineage, actionID, err)
	}
	return nil
}

// SummarizeRecent renders the last n appends as one line each, oldest
// first. Debugging aid, not a stable format.
func (c *Chain) SummarizeRecent(ctx context.Context, n int) (string, error) {
	actions, err := c.store.RecentActions(ctx, n)
	if err != nil {
		return "", fmt.Errorf("summarize recent: %w", err)
	}
	var b strings.Builder
	for _, a := range actions {
		fmt.Fprintf(&b, "action %s: seq=%d kind=%s intent=%s plan=%s ts=%d\n",
			a.ActionID, a.Sequence, a.Kind, a.IntentID, a.PlanID, a.Timestamp)
	}
	return b.String(), nil
}

// lineageLock returns the append lock for a lineage, creating it on first
// use. Locks are never removed; lineage cardinality is modest.
func (c *Chain) lineageLock(lineage string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[lineage]
	if !ok {
		l = &sync.Mutex{}
		c.locks[lineage] = l
	}
	return l
}

func (c *Chain) notify(ev AppendEvent) {
	for _, s := range c.sinks {
		s.ActionAppended(ev)
	}
}
