package uph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"uph-engine/internal/storage"
)

var ErrRegistryUnavailable = errors.New("registry unavailable")

type CycleFeed interface {
	ListCycles(ctx context.Context, states []string, afterID int64, limit int) ([]storage.WorkCycleRecord, error)
}

type OrderRegistry interface {
	GetOrders(ctx context.Context, moNumbers []string) (map[string]storage.ManufacturingOrder, error)
}

type OperatorRegistry interface {
	ResolveOperators(ctx context.Context, names []string) (map[string]storage.Operator, error)
}

type Options struct {
	States   []string
	PageSize int
	Workers  int
	Now      func() time.Time
}

type Engine struct {
	log         *slog.Logger
	feed        CycleFeed
	orders      OrderRegistry
	operators   OperatorRegistry
	opts        Options
	methodology atomic.Pointer[Methodology]
}

func NewEngine(log *slog.Logger, feed CycleFeed, orders OrderRegistry, operators OperatorRegistry, m Methodology, opts Options) *Engine {
	if opts.PageSize <= 0 {
		opts.PageSize = 5000
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	e := &Engine{
		log:       log,
		feed:      feed,
		orders:    orders,
		operators: operators,
		opts:      opts,
	}
	e.methodology.Store(&m)

	return e
}

// SetMethodology replaces the thresholds used by the next run.
// A run in progress keeps the methodology it started with.
func (e *Engine) SetMethodology(m Methodology) {
	e.methodology.Store(&m)
}

func (e *Engine) Methodology() Methodology {
	return *e.methodology.Load()
}

// Now is the clock the engine evaluates windows against.
func (e *Engine) Now() time.Time {
	return e.opts.Now().UTC().Truncate(time.Second)
}

type partitionResult struct {
	aggregates []storage.MOAggregate
	rejections []storage.RejectedAggregate
	unmapped   []IngestRejection
	names      []string
}

// Run rebuilds every derived value from the raw feed. Per-record and
// per-aggregate problems are counted and excluded; feed or registry
// failures abort the run with ErrRegistryUnavailable.
func (e *Engine) Run(ctx context.Context, windows []int) (*storage.Snapshot, error) {
	const op = "service.uph.Engine.Run"

	m := e.Methodology()
	now := e.Now()
	counters := storage.RejectionCounters{}

	cycles, read, err := e.ingest(ctx, counters)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var orders map[string]storage.ManufacturingOrder
	if mos := moNumbers(cycles); len(mos) > 0 {
		orders, err = e.orders.GetOrders(ctx, mos)
		if err != nil {
			return nil, fmt.Errorf("%s: mo registry: %w: %w", op, ErrRegistryUnavailable, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	partitions, operatorIDs := partitionByOperator(cycles)
	results := make([]partitionResult, len(operatorIDs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, id := range operatorIDs {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			results[i] = processPartition(partitions[id], orders, m)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	snapshot := &storage.Snapshot{
		Run: storage.Run{
			MethodologyVersion: m.Version,
			ComputedAt:         now,
			CyclesRead:         read,
		},
		Counters: counters,
		Windows:  uniqueWindows(windows),
	}

	unmapped := make(map[string]struct{})
	for _, res := range results {
		snapshot.Aggregates = append(snapshot.Aggregates, res.aggregates...)
		snapshot.Rejections = append(snapshot.Rejections, res.rejections...)
		for _, r := range res.unmapped {
			counters.Add(r.Reason, 1)
		}
		for _, name := range res.names {
			unmapped[name] = struct{}{}
		}
	}

	for name := range unmapped {
		e.log.Warn("work center has no category", slog.String("op", op), slog.String("workcenter", name))
	}

	for _, r := range snapshot.Rejections {
		if r.Reason == storage.ReasonCorruptedDuplicate {
			counters.Add(r.Reason, r.CycleCount)
		} else {
			counters.Add(r.Reason, 1)
		}
		e.log.Info("aggregate rejected",
			slog.String("op", op),
			slog.String("mo", r.MONumber),
			slog.Int64("operator_id", r.OperatorID),
			slog.String("category", string(r.Category)),
			slog.Float64("value", r.Value),
			slog.String("reason", string(r.Reason)),
		)
	}

	sortAggregates(snapshot.Aggregates)
	sortRejections(snapshot.Rejections)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, w := range uniqueWindows(windows) {
		snapshot.Statistics = append(snapshot.Statistics, Summarize(snapshot.Aggregates, w, Filter{}, now)...)
	}

	e.log.Info("uph pipeline finished",
		slog.String("op", op),
		slog.String("methodology", m.Version),
		slog.Int("cycles_read", read),
		slog.Int("cycles_kept", len(cycles)),
		slog.Int("aggregates", len(snapshot.Aggregates)),
		slog.Int("rejections", len(snapshot.Rejections)),
		slog.Int("statistics", len(snapshot.Statistics)),
	)

	return snapshot, nil
}

// ingest pages through the feed, resolving operator names once per page.
func (e *Engine) ingest(ctx context.Context, counters storage.RejectionCounters) ([]storage.CanonicalCycle, int, error) {
	var (
		cycles  []storage.CanonicalCycle
		afterID int64
		read    int
	)
	operators := make(map[string]storage.Operator)

	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		page, err := e.feed.ListCycles(ctx, e.opts.States, afterID, e.opts.PageSize)
		if err != nil {
			return nil, 0, fmt.Errorf("cycle feed: %w: %w", ErrRegistryUnavailable, err)
		}
		if len(page) == 0 {
			break
		}
		read += len(page)
		afterID = page[len(page)-1].ID

		var missing []string
		for _, name := range operatorNames(page) {
			if _, ok := operators[name]; !ok {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			resolved, err := e.operators.ResolveOperators(ctx, missing)
			if err != nil {
				return nil, 0, fmt.Errorf("operator registry: %w: %w", ErrRegistryUnavailable, err)
			}
			for name, operator := range resolved {
				operators[name] = operator
			}
		}

		canonical, rejected := Normalize(page, operators)
		for _, r := range rejected {
			counters.Add(r.Reason, 1)
			e.log.Debug("cycle rejected", slog.Int64("cycle_id", r.CycleID), slog.String("reason", string(r.Reason)))
		}
		cycles = append(cycles, canonical...)

		if len(page) < e.opts.PageSize {
			break
		}
	}

	return cycles, read, nil
}

func processPartition(cycles []storage.CanonicalCycle, orders map[string]storage.ManufacturingOrder, m Methodology) partitionResult {
	var res partitionResult

	clean, corrupted := DetectCorruption(cycles, m)
	for i := range corrupted {
		if mo, ok := orders[corrupted[i].MONumber]; ok {
			corrupted[i].ProductName = mo.ProductName
			corrupted[i].Quantity = mo.Quantity
			corrupted[i].MOCreatedAt = timePtr(mo.CreatedAt)
		}
	}
	res.rejections = append(res.rejections, corrupted...)

	categorized, unmapped, names := Categorize(clean)
	res.unmapped = unmapped
	res.names = names

	aggregates, missing := AggregateByMO(categorized, orders)
	res.rejections = append(res.rejections, missing...)

	kept, outliers := FilterOutliers(aggregates, m)
	res.rejections = append(res.rejections, outliers...)
	res.aggregates = kept

	return res
}

func partitionByOperator(cycles []storage.CanonicalCycle) (map[int64][]storage.CanonicalCycle, []int64) {
	parts := make(map[int64][]storage.CanonicalCycle)
	for _, c := range cycles {
		parts[c.OperatorID] = append(parts[c.OperatorID], c)
	}

	ids := make([]int64, 0, len(parts))
	for id := range parts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return parts, ids
}

func uniqueWindows(windows []int) []int {
	seen := make(map[int]struct{})
	var out []int
	for _, w := range windows {
		if _, ok := seen[w]; ok || w <= 0 {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	sort.Ints(out)
	return out
}

func sortAggregates(aggs []storage.MOAggregate) {
	sort.Slice(aggs, func(i, j int) bool {
		if aggs[i].MONumber != aggs[j].MONumber {
			return aggs[i].MONumber < aggs[j].MONumber
		}
		if aggs[i].OperatorID != aggs[j].OperatorID {
			return aggs[i].OperatorID < aggs[j].OperatorID
		}
		return aggs[i].Category < aggs[j].Category
	})
}

func sortRejections(rs []storage.RejectedAggregate) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].MONumber != rs[j].MONumber {
			return rs[i].MONumber < rs[j].MONumber
		}
		if rs[i].OperatorID != rs[j].OperatorID {
			return rs[i].OperatorID < rs[j].OperatorID
		}
		if rs[i].Category != rs[j].Category {
			return rs[i].Category < rs[j].Category
		}
		if rs[i].Reason != rs[j].Reason {
			return rs[i].Reason < rs[j].Reason
		}
		return rs[i].Value < rs[j].Value
	})
}
