// Package app implements CorrelationTracker: per-pool price history,
// a lazily recomputed Pearson correlation matrix, and speculative
// re-check hints emitted when a pool's price moves significantly.
package app

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	correlationDomain "github.com/fd1az/arbdetectd/business/correlation/domain"
	pooldomain "github.com/fd1az/arbdetectd/business/pool/domain"
	"github.com/fd1az/arbdetectd/internal/clock"
	"github.com/fd1az/arbdetectd/internal/logger"
)

const (
	tracerName = "github.com/fd1az/arbdetectd/business/correlation/app"
	meterName  = "github.com/fd1az/arbdetectd/business/correlation/app"

	// minHistoryForCorrelation is the minimum aligned-sample count
	// before a pair's correlation is computed at all.
	minHistoryForCorrelation = 10

	// sameDexPairScore and baseTokenPeerScore are the implicit
	// correlations returned from queries without ever being stored.
	sameDexPairScore   = 0.95
	baseTokenPeerScore = 0.6

	// topNHints bounds the speculative re-check fan-out per update.
	topNHints = 5
)

// Config holds CorrelationTracker tunables.
type Config struct {
	HistoryCap        int
	Epsilon           float64
	MaxHistoryAgeMs   int64
	Threshold         float64
	RecomputeInterval time.Duration
}

// DefaultConfig returns spec defaults.
func DefaultConfig() Config {
	return Config{
		HistoryCap:        100,
		Epsilon:           0.001,
		MaxHistoryAgeMs:   30000,
		Threshold:         0.7,
		RecomputeInterval: 60 * time.Second,
	}
}

type trackerMetrics struct {
	recorded     metric.Int64Counter
	recomputes   metric.Int64Counter
	hintsEmitted metric.Int64Counter
}

// RecheckHint is CorrelatedRecheckHint: a speculative signal that
// target_pool is worth re-evaluating because source_pool just moved.
type RecheckHint struct {
	SourcePool pooldomain.PoolKey
	TargetPool pooldomain.PoolKey
	Score      float64
	Reason     string // statistical | same_pair | base_token
}

const (
	ReasonStatistical = "statistical"
	ReasonSamePair    = "same_pair"
	ReasonBaseToken   = "base_token"
)

// Tracker exclusively owns PriceHistory and the CorrelationMatrix.
type Tracker struct {
	cfg   Config
	clock clock.Clock

	mu         sync.RWMutex
	histories  map[pooldomain.PoolKey]*correlationDomain.History
	matrix     *correlationDomain.Matrix
	pairOf     map[pooldomain.PoolKey]pooldomain.PairKey
	baseTokens map[pooldomain.PoolKey][2]string // tokenA, tokenB symbols for base-token peer lookup

	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *trackerMetrics
}

// NewTracker builds an empty Tracker.
func NewTracker(cfg Config, clk clock.Clock, log logger.LoggerInterface) *Tracker {
	t := &Tracker{
		cfg:        cfg,
		clock:      clk,
		histories:  make(map[pooldomain.PoolKey]*correlationDomain.History),
		matrix:     correlationDomain.NewMatrix(cfg.Threshold),
		pairOf:     make(map[pooldomain.PoolKey]pooldomain.PairKey),
		baseTokens: make(map[pooldomain.PoolKey][2]string),
		logger:     log,
		tracer:     otel.Tracer(tracerName),
	}
	_ = t.initMetrics()
	return t
}

func (t *Tracker) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	t.metrics = &trackerMetrics{}
	if t.metrics.recorded, err = meter.Int64Counter("correlation_points_recorded_total"); err != nil {
		return err
	}
	if t.metrics.recomputes, err = meter.Int64Counter("correlation_recomputes_total"); err != nil {
		return err
	}
	if t.metrics.hintsEmitted, err = meter.Int64Counter("correlation_hints_emitted_total"); err != nil {
		return err
	}
	return nil
}

// Record appends a new price observation for poolKey (subject to the
// epsilon gate) and, if recorded, returns speculative re-check hints
// for correlated pools. pair and tokenASymbol/tokenBSymbol identify
// the pool for the implicit-correlation rules.
func (t *Tracker) Record(ctx context.Context, poolKey pooldomain.PoolKey, pair pooldomain.PairKey, tokenASymbol, tokenBSymbol string, price float64, wallMs int64, block uint64) []RecheckHint {
	t.mu.Lock()
	h, ok := t.histories[poolKey]
	if !ok {
		h = correlationDomain.NewHistory(poolKey, t.cfg.HistoryCap, t.cfg.Epsilon, t.cfg.MaxHistoryAgeMs)
		t.histories[poolKey] = h
		t.pairOf[poolKey] = pair
		t.baseTokens[poolKey] = [2]string{tokenASymbol, tokenBSymbol}
	}
	recorded := h.Record(price, wallMs, block)
	t.mu.Unlock()

	if !recorded {
		return nil
	}
	t.metrics.recorded.Add(ctx, 1)

	hints := t.correlatedPools(poolKey)
	if len(hints) > 0 {
		t.metrics.hintsEmitted.Add(ctx, int64(len(hints)))
	}
	return hints
}

// correlatedPools implements correlated_pools(P) = matrix_neighbors ∪
// same_pair_other_dexes(0.95) ∪ base_token_peers(0.6), limited to the
// top N by score. Implicit correlations are computed from live
// metadata and never stored in the matrix.
func (t *Tracker) correlatedPools(source pooldomain.PoolKey) []RecheckHint {
	t.mu.RLock()
	defer t.mu.RUnlock()

	seen := make(map[pooldomain.PoolKey]bool)
	var hints []RecheckHint

	for _, n := range t.matrix.Neighbors(source) {
		if seen[n.PoolKey] {
			continue
		}
		seen[n.PoolKey] = true
		hints = append(hints, RecheckHint{SourcePool: source, TargetPool: n.PoolKey, Score: n.Score, Reason: ReasonStatistical})
	}

	sourcePair := t.pairOf[source]
	sourceTokens := t.baseTokens[source]

	for key, pair := range t.pairOf {
		if key == source || seen[key] {
			continue
		}
		if pair == sourcePair {
			seen[key] = true
			hints = append(hints, RecheckHint{SourcePool: source, TargetPool: key, Score: sameDexPairScore, Reason: ReasonSamePair})
			continue
		}
		tokens := t.baseTokens[key]
		if sharesToken(sourceTokens, tokens) {
			seen[key] = true
			hints = append(hints, RecheckHint{SourcePool: source, TargetPool: key, Score: baseTokenPeerScore, Reason: ReasonBaseToken})
		}
	}

	sort.Slice(hints, func(i, j int) bool { return hints[i].Score > hints[j].Score })
	if len(hints) > topNHints {
		hints = hints[:topNHints]
	}
	return hints
}

func sharesToken(a, b [2]string) bool {
	return a[0] == b[0] || a[0] == b[1] || a[1] == b[0] || a[1] == b[1]
}

// Recompute rebuilds the correlation matrix from current histories,
// pruning stale points first. Intended to run on cfg.RecomputeInterval.
func (t *Tracker) Recompute(ctx context.Context) {
	ctx, span := t.tracer.Start(ctx, "correlation_tracker.recompute")
	defer span.End()

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now().UnixMilli()
	for _, h := range t.histories {
		h.PruneOlderThan(now)
	}

	keys := make([]pooldomain.PoolKey, 0, len(t.histories))
	for k := range t.histories {
		keys = append(keys, k)
	}

	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			a, b := keys[i], keys[j]
			rho, ok := pearson(t.histories[a].Returns(), t.histories[b].Returns())
			if !ok {
				continue
			}
			t.matrix.Set(a, b, rho)
		}
	}

	t.metrics.recomputes.Add(ctx, 1)
}

// pearson computes the Pearson correlation coefficient over two
// return series aligned by block number (intersection only), per:
//
//	ρ = (nΣab - ΣaΣb) / sqrt((nΣa² - (Σa)²)(nΣb² - (Σb)²))
func pearson(a, b map[uint64]float64) (float64, bool) {
	var sumA, sumB, sumAB, sumA2, sumB2 float64
	n := 0

	for block, ra := range a {
		rb, ok := b[block]
		if !ok {
			continue
		}
		n++
		sumA += ra
		sumB += rb
		sumAB += ra * rb
		sumA2 += ra * ra
		sumB2 += rb * rb
	}

	if n < minHistoryForCorrelation {
		return 0, false
	}

	nf := float64(n)
	denomA := nf*sumA2 - sumA*sumA
	denomB := nf*sumB2 - sumB*sumB
	if denomA <= 0 || denomB <= 0 {
		return 0, false
	}

	rho := (nf*sumAB - sumA*sumB) / math.Sqrt(denomA*denomB)
	if math.IsNaN(rho) || math.IsInf(rho, 0) {
		return 0, false
	}
	return rho, true
}

// Export returns a snapshot of the matrix for warm-start persistence.
func (t *Tracker) Export() []correlationDomain.Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.matrix.Export()
}

// Import restores a previously exported matrix snapshot.
func (t *Tracker) Import(entries []correlationDomain.Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.matrix.Import(entries)
}

// RunScheduledRecompute blocks, recomputing the matrix on
// cfg.RecomputeInterval until ctx is cancelled.
func (t *Tracker) RunScheduledRecompute(ctx context.Context) {
	ticker := t.clock.NewTicker(t.cfg.RecomputeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			t.Recompute(ctx)
		}
	}
}
