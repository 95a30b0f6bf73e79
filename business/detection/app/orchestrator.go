package app

import (
	"context"
	"math/big"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	detdomain "github.com/fd1az/arbdetectd/business/detection/domain"
	poolapp "github.com/fd1az/arbdetectd/business/pool/app"
	pooldomain "github.com/fd1az/arbdetectd/business/pool/domain"
	"github.com/fd1az/arbdetectd/internal/clock"
	"github.com/fd1az/arbdetectd/internal/config"
	"github.com/fd1az/arbdetectd/internal/logger"
)

const (
	stateIdle int32 = iota
	stateProcessing

	latencyWindowSize  = 256
	slowCycleMs        = 200
	fallbackGasPriceUSD = 3
)

// stableSymbols peg to $1 without needing a fallback table entry.
var stableSymbols = map[string]bool{"USDT": true, "USDC": true, "BUSD": true, "DAI": true}

// OrchestratorConfig bundles every tunable a detection cycle needs
// that isn't owned by one of the sub-detectors.
type OrchestratorConfig struct {
	BaseTokenSymbols          []string
	NativeGasTokenSymbol      string
	ChainID                   uint64
	MinLiquidityUSD           decimal.Decimal
	MinLiquidityTriangularUSD decimal.Decimal
	MaxTradeSizeUSD           decimal.Decimal
	EstimatedGasLimit         uint64
	CooldownWindow            time.Duration
	TriangularEnabled         bool
	StaticGasFallbackWei      *big.Int
}

type orchestratorMetrics struct {
	cyclesRun           metric.Int64Counter
	reentrantDropped    metric.Int64Counter
	opportunitiesByKind metric.Int64Counter
	cycleLatencyMs      metric.Float64Histogram
}

// DetectionOrchestrator drives one full detection cycle: snapshot the
// pool store, price gas, fan out to both detectors, score risk, rank,
// and dedup. Re-entrant triggers are dropped rather than queued (P11):
// a cycle already in flight means the snapshot it's working from is at
// least as fresh as a new trigger would see.
type DetectionOrchestrator struct {
	cfg        OrchestratorConfig
	store      *poolapp.ReserveStore
	crossDex   *CrossDexDetector
	triangular *TriangularDetector
	riskScorer *RiskScorer
	gasFeed    GasFeed
	clock      clock.Clock
	logger     logger.LoggerInterface
	tracer     trace.Tracer
	metrics    *orchestratorMetrics

	state int32 // atomic: stateIdle | stateProcessing

	mu         sync.Mutex
	cooldown   map[string]time.Time
	kindCounts map[detdomain.Kind]int64

	eventsReceived   int64
	eventsProcessed  int64
	blocksProcessed  int64
	reentrantDropped int64

	latency *detdomain.LatencyTracker
}

// NewDetectionOrchestrator wires the two detectors, the risk scorer,
// and a gas feed into one cycle driver.
func NewDetectionOrchestrator(
	cfg OrchestratorConfig,
	store *poolapp.ReserveStore,
	crossDex *CrossDexDetector,
	triangular *TriangularDetector,
	riskScorer *RiskScorer,
	gasFeed GasFeed,
	clk clock.Clock,
	log logger.LoggerInterface,
) *DetectionOrchestrator {
	o := &DetectionOrchestrator{
		cfg:        cfg,
		store:      store,
		crossDex:   crossDex,
		triangular: triangular,
		riskScorer: riskScorer,
		gasFeed:    gasFeed,
		clock:      clk,
		logger:     log,
		tracer:     otel.Tracer(tracerName),
		cooldown:   make(map[string]time.Time),
		kindCounts: make(map[detdomain.Kind]int64),
		latency:    detdomain.NewLatencyTracker(latencyWindowSize, slowCycleMs),
	}
	_ = o.initMetrics()
	return o
}

func (o *DetectionOrchestrator) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	o.metrics = &orchestratorMetrics{}

	if o.metrics.cyclesRun, err = meter.Int64Counter("detection_cycles_total",
		metric.WithDescription("Detection cycles run to completion")); err != nil {
		return err
	}
	if o.metrics.reentrantDropped, err = meter.Int64Counter("detection_reentrant_dropped_total",
		metric.WithDescription("Triggers dropped because a cycle was already in flight")); err != nil {
		return err
	}
	if o.metrics.opportunitiesByKind, err = meter.Int64Counter("detection_opportunities_total",
		metric.WithDescription("Opportunities emitted, by kind")); err != nil {
		return err
	}
	if o.metrics.cycleLatencyMs, err = meter.Float64Histogram("detection_cycle_latency_ms",
		metric.WithDescription("Detection cycle wall-clock duration"),
		metric.WithUnit("ms")); err != nil {
		return err
	}
	return nil
}

// Detect runs one detection cycle over the current pool snapshot and
// returns its surviving opportunities, ranked by expected value
// descending and deduplicated against the per-pair-set cooldown.
func (o *DetectionOrchestrator) Detect(ctx context.Context, blockNumber uint64, source detdomain.Source) []detdomain.Opportunity {
	if !atomic.CompareAndSwapInt32(&o.state, stateIdle, stateProcessing) {
		atomic.AddInt64(&o.reentrantDropped, 1)
		o.metrics.reentrantDropped.Add(ctx, 1)
		return nil
	}
	defer atomic.StoreInt32(&o.state, stateIdle)

	start := o.clock.Now()
	ctx, span := o.tracer.Start(ctx, "detection_orchestrator.detect",
		trace.WithAttributes(attribute.Int64("block_number", int64(blockNumber)), attribute.String("source", string(source))))
	defer span.End()

	atomic.AddInt64(&o.eventsReceived, 1)
	if source == detdomain.SourceBlock {
		atomic.AddInt64(&o.blocksProcessed, 1)
	}

	snapshot := o.store.Snapshot()
	if len(snapshot) == 0 {
		return nil
	}

	tokenByAddress, tokenBySymbol := indexTokens(snapshot)
	priceResolver := nativeUSDPriceResolver()
	gasCostUSD := o.gasCostUSD(ctx, priceResolver, tokenBySymbol)

	crossDexOpps := o.runCrossDex(ctx, snapshot, priceResolver, gasCostUSD)
	triOpps, crossTriOpps := o.runTriangular(ctx, snapshot, tokenByAddress, tokenBySymbol, priceResolver)

	opps := assembleOpportunities(blockNumber, o.clock.Now().UnixMilli(), source, crossDexOpps, triOpps, crossTriOpps)
	for i := range opps {
		opps[i].Risk = o.riskScorer.Score(o.riskInputFor(&opps[i], gasCostUSD, source))
	}

	sort.Slice(opps, func(i, j int) bool {
		return opps[i].Risk.ExpectedValueUSD.GreaterThan(opps[j].Risk.ExpectedValueUSD)
	})

	now := o.clock.Now()
	surviving := o.dedup(opps, now)

	elapsed := o.clock.Since(start)
	o.latency.Record(float64(elapsed.Milliseconds()))
	o.metrics.cycleLatencyMs.Record(ctx, float64(elapsed.Milliseconds()))
	o.metrics.cyclesRun.Add(ctx, 1)
	atomic.AddInt64(&o.eventsProcessed, 1)

	o.mu.Lock()
	for _, opp := range surviving {
		o.kindCounts[opp.Kind]++
	}
	o.mu.Unlock()
	if len(surviving) > 0 {
		o.metrics.opportunitiesByKind.Add(ctx, int64(len(surviving)))
	}

	return surviving
}

func (o *DetectionOrchestrator) runCrossDex(
	ctx context.Context,
	snapshot []pooldomain.Pool,
	priceResolver func(pooldomain.Token) (decimal.Decimal, bool),
	gasCostUSD decimal.Decimal,
) []detdomain.CrossDexDetails {
	byPair := make(map[pooldomain.PairKey][]pooldomain.Pool)
	for _, p := range snapshot {
		byPair[p.Pair] = append(byPair[p.Pair], p)
	}

	var out []detdomain.CrossDexDetails
	for _, pools := range byPair {
		out = append(out, o.crossDex.Detect(ctx, pools, priceResolver, gasCostUSD)...)
	}
	return out
}

func (o *DetectionOrchestrator) runTriangular(
	ctx context.Context,
	snapshot []pooldomain.Pool,
	tokenByAddress map[common.Address]pooldomain.Token,
	tokenBySymbol map[string]common.Address,
	priceResolver func(pooldomain.Token) (decimal.Decimal, bool),
) ([]detdomain.TriangularDetails, []detdomain.CrossDexTriangularDetails) {
	if !o.cfg.TriangularEnabled {
		return nil, nil
	}

	baseTokens := resolveBaseTokens(o.cfg.BaseTokenSymbols, tokenBySymbol)
	if len(baseTokens) == 0 {
		return nil, nil
	}

	tokenOf := func(addr common.Address) (pooldomain.Token, bool) {
		t, ok := tokenByAddress[addr]
		return t, ok
	}

	byDex := make(map[string][]pooldomain.Pool)
	for _, p := range snapshot {
		byDex[p.DexName] = append(byDex[p.DexName], p)
	}

	var singleDex []detdomain.TriangularDetails
	for dexName, pools := range byDex {
		g := poolapp.BuildGraph(pools, dexName, priceResolver)
		cycles := g.FindCycles3(baseTokens, o.cfg.MinLiquidityTriangularUSD)
		found, _ := o.triangular.Detect(ctx, cycles, tokenOf, priceResolver)
		singleDex = append(singleDex, found...)
	}

	merged := poolapp.BuildMergedGraph(snapshot, priceResolver)
	mergedCycles := merged.FindCycles3(baseTokens, o.cfg.MinLiquidityTriangularUSD)
	_, crossDex := o.triangular.Detect(ctx, mergedCycles, tokenOf, priceResolver)

	return singleDex, crossDex
}

// gasCostUSD prices EstimatedGasLimit at the current gas price, falling
// back to a static configured price (and a fixed small USD estimate if
// even the native token's USD price is unknown) on any feed failure.
func (o *DetectionOrchestrator) gasCostUSD(
	ctx context.Context,
	priceResolver func(pooldomain.Token) (decimal.Decimal, bool),
	tokenBySymbol map[string]common.Address,
) decimal.Decimal {
	wei, source, err := o.gasFeed.GasPriceWei(ctx)
	if err != nil {
		o.logger.Warn(ctx, "gas feed unavailable, using static fallback", "error", err)
		wei = o.cfg.StaticGasFallbackWei
		source = "static_fallback"
	}
	if wei == nil {
		return decimal.NewFromInt(fallbackGasPriceUSD)
	}

	nativeUSD, ok := config.NativeUSDFallback[o.cfg.NativeGasTokenSymbol]
	if !ok {
		return decimal.NewFromInt(fallbackGasPriceUSD)
	}

	gc := detdomain.NewGasCost(o.cfg.ChainID, o.cfg.NativeGasTokenSymbol, o.cfg.EstimatedGasLimit, wei, nativeUSD)

	o.logger.Debug(ctx, "gas price resolved", "source", source, "cost_usd", gc.TotalUSD.String())
	return gc.TotalUSD
}

func (o *DetectionOrchestrator) riskInputFor(opp *detdomain.Opportunity, gasCostUSD decimal.Decimal, source detdomain.Source) ScoreInput {
	netProfit := opp.NetProfitUSD()
	tradeSize := opp.TradeSizeUSD()

	var spreadPercent, minLiquidity decimal.Decimal
	switch opp.Kind {
	case detdomain.KindCrossDex:
		minLiquidity = o.cfg.MinLiquidityUSD
		if !opp.CrossDex.SellPrice.IsZero() {
			spreadPercent = opp.CrossDex.BuyPrice.Sub(opp.CrossDex.SellPrice).Div(opp.CrossDex.SellPrice).Mul(decimal.NewFromInt(100))
		}
	case detdomain.KindTriangular:
		minLiquidity = o.cfg.MinLiquidityTriangularUSD
		spreadPercent = opp.Triangular.NetROIPercent
	case detdomain.KindCrossDexTriangular:
		minLiquidity = o.cfg.MinLiquidityTriangularUSD
		spreadPercent = opp.CrossDexTriangular.NetROIPercent
	}

	stability := 1.0
	if !minLiquidity.IsZero() {
		ratio, _ := tradeSize.Div(minLiquidity).Float64()
		stability = clamp01(1 - ratio)
	}
	slippage := 1.0
	if !o.cfg.MaxTradeSizeUSD.IsZero() {
		ratio, _ := tradeSize.Div(o.cfg.MaxTradeSizeUSD).Float64()
		slippage = clamp01(1 - ratio)
	}

	return ScoreInput{
		NetProfitUSD:        netProfit,
		GasCostUSD:          gasCostUSD,
		TradeSizeUSD:        tradeSize,
		MinLiquidityUSD:     minLiquidity,
		SpreadPercent:       spreadPercent,
		TimingScore:         timingScoreFor(source),
		PriceStabilityScore: stability,
		SlippageScore:       slippage,
	}
}

// dedup drops repeats of the same (source_pool_set, kind) within the
// cooldown window, keeping the first (highest-ranked, since opps is
// already sorted) occurrence of each. This is a sink-side rate limit,
// not a detection filter: a cooled-down opportunity was real, just
// already reported.
func (o *DetectionOrchestrator) dedup(opps []detdomain.Opportunity, now time.Time) []detdomain.Opportunity {
	o.mu.Lock()
	defer o.mu.Unlock()

	seen := make(map[string]bool, len(opps))
	out := make([]detdomain.Opportunity, 0, len(opps))
	for _, opp := range opps {
		key := opp.DedupKey()
		if seen[key] {
			continue
		}
		seen[key] = true

		if last, ok := o.cooldown[key]; ok && now.Sub(last) < o.cfg.CooldownWindow {
			continue
		}
		o.cooldown[key] = now
		out = append(out, opp)
	}
	return out
}

// Stats returns an immutable snapshot of cycle counters and latency
// percentiles.
func (o *DetectionOrchestrator) Stats() detdomain.Stats {
	p50, p95, p99 := o.latency.Percentiles()

	o.mu.Lock()
	kindCounts := make(map[detdomain.Kind]int64, len(o.kindCounts))
	for k, v := range o.kindCounts {
		kindCounts[k] = v
	}
	o.mu.Unlock()

	return detdomain.Stats{
		EventsReceived:      atomic.LoadInt64(&o.eventsReceived),
		EventsProcessed:     atomic.LoadInt64(&o.eventsProcessed),
		BlocksProcessed:     atomic.LoadInt64(&o.blocksProcessed),
		ReentrantDropped:    atomic.LoadInt64(&o.reentrantDropped),
		OpportunitiesByKind: kindCounts,
		LatencyP50Ms:        p50,
		LatencyP95Ms:        p95,
		LatencyP99Ms:        p99,
		SlowCycleCount:      o.latency.SlowCount(),
	}
}

func timingScoreFor(source detdomain.Source) float64 {
	switch source {
	case detdomain.SourceBlock:
		return 0.8
	case detdomain.SourceSyncEvent:
		return 0.6
	case detdomain.SourceCorrelationPredictive:
		return 0.5
	default:
		return 0.5
	}
}

func nativeUSDPriceResolver() func(pooldomain.Token) (decimal.Decimal, bool) {
	return func(t pooldomain.Token) (decimal.Decimal, bool) {
		if stableSymbols[t.Symbol] {
			return decimal.NewFromInt(1), true
		}
		if p, ok := config.NativeUSDFallback[t.Symbol]; ok {
			return p, true
		}
		return decimal.Zero, false
	}
}

func indexTokens(pools []pooldomain.Pool) (map[common.Address]pooldomain.Token, map[string]common.Address) {
	byAddress := make(map[common.Address]pooldomain.Token)
	bySymbol := make(map[string]common.Address)
	for _, p := range pools {
		byAddress[p.TokenA.Address] = p.TokenA
		byAddress[p.TokenB.Address] = p.TokenB
		bySymbol[p.TokenA.Symbol] = p.TokenA.Address
		bySymbol[p.TokenB.Symbol] = p.TokenB.Address
	}
	return byAddress, bySymbol
}

func resolveBaseTokens(symbols []string, bySymbol map[string]common.Address) []common.Address {
	out := make([]common.Address, 0, len(symbols))
	for _, sym := range symbols {
		if addr, ok := bySymbol[sym]; ok {
			out = append(out, addr)
		}
	}
	return out
}

func assembleOpportunities(
	blockNumber uint64,
	nowMs int64,
	source detdomain.Source,
	crossDex []detdomain.CrossDexDetails,
	triangular []detdomain.TriangularDetails,
	crossDexTriangular []detdomain.CrossDexTriangularDetails,
) []detdomain.Opportunity {
	out := make([]detdomain.Opportunity, 0, len(crossDex)+len(triangular)+len(crossDexTriangular))

	for i := range crossDex {
		out = append(out, detdomain.Opportunity{
			Kind: detdomain.KindCrossDex, BlockNumber: blockNumber, DetectedAtWallMs: nowMs,
			Source: source, CrossDex: &crossDex[i],
		})
	}
	for i := range triangular {
		out = append(out, detdomain.Opportunity{
			Kind: detdomain.KindTriangular, BlockNumber: blockNumber, DetectedAtWallMs: nowMs,
			Source: source, Triangular: &triangular[i],
		})
	}
	for i := range crossDexTriangular {
		out = append(out, detdomain.Opportunity{
			Kind: detdomain.KindCrossDexTriangular, BlockNumber: blockNumber, DetectedAtWallMs: nowMs,
			Source: source, CrossDexTriangular: &crossDexTriangular[i],
		})
	}
	return out
}
