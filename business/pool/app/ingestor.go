package app

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arbdetectd/business/pool/domain"
	"github.com/fd1az/arbdetectd/internal/clock"
	"github.com/fd1az/arbdetectd/internal/logger"
)

type ingestorMetrics struct {
	received  metric.Int64Counter
	decoded   metric.Int64Counter
	dropped   metric.Int64Counter
	debounced metric.Int64Counter
	emitted   metric.Int64Counter
}

// IngestorConfig holds EventIngestor tunables.
type IngestorConfig struct {
	DebounceWindow time.Duration // default 100ms, per spec's debounce_ms
}

// DefaultIngestorConfig returns spec defaults.
func DefaultIngestorConfig() IngestorConfig {
	return IngestorConfig{DebounceWindow: 100 * time.Millisecond}
}

// EventIngestor decodes raw Sync logs, resolves the emitting pair
// against a static catalog, debounces per-pool bursts (oldest state in
// a window wins), and emits normalized ReserveUpdate values.
//
// Failures (malformed payload, unknown pair, debounced duplicate) are
// counted and dropped, never propagated, per the ingestor's non-fatal
// failure semantics.
type EventIngestor struct {
	cfg     IngestorConfig
	catalog PoolCatalog
	clock   clock.Clock

	mu       sync.Mutex
	lastSeen map[domain.PoolKey]time.Time

	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *ingestorMetrics
}

// NewEventIngestor builds an ingestor bound to a pool catalog.
func NewEventIngestor(cfg IngestorConfig, catalog PoolCatalog, clk clock.Clock, log logger.LoggerInterface) *EventIngestor {
	ing := &EventIngestor{
		cfg:      cfg,
		catalog:  catalog,
		clock:    clk,
		lastSeen: make(map[domain.PoolKey]time.Time),
		logger:   log,
		tracer:   otel.Tracer(tracerName),
	}
	_ = ing.initMetrics()
	return ing
}

func (e *EventIngestor) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	e.metrics = &ingestorMetrics{}

	if e.metrics.received, err = meter.Int64Counter("pool_events_received_total"); err != nil {
		return err
	}
	if e.metrics.decoded, err = meter.Int64Counter("pool_events_decoded_total"); err != nil {
		return err
	}
	if e.metrics.dropped, err = meter.Int64Counter("pool_events_dropped_total"); err != nil {
		return err
	}
	if e.metrics.debounced, err = meter.Int64Counter("pool_events_debounced_total"); err != nil {
		return err
	}
	if e.metrics.emitted, err = meter.Int64Counter("pool_events_emitted_total"); err != nil {
		return err
	}
	return nil
}

// Run consumes raw logs until the channel closes or ctx is cancelled,
// sending normalized updates to out. out is never closed by Run; the
// caller owns its lifecycle.
func (e *EventIngestor) Run(ctx context.Context, in <-chan domain.RawSyncLog, out chan<- domain.ReserveUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-in:
			if !ok {
				return
			}
			e.process(ctx, raw, out)
		}
	}
}

func (e *EventIngestor) process(ctx context.Context, raw domain.RawSyncLog, out chan<- domain.ReserveUpdate) {
	ctx, span := e.tracer.Start(ctx, "event_ingestor.process")
	defer span.End()

	e.metrics.received.Add(ctx, 1)

	entry, ok := e.catalog.Lookup(raw.PairAddress.Hex())
	if !ok {
		e.metrics.dropped.Add(ctx, 1)
		e.logger.Debug(ctx, "dropping sync log for unregistered pair", "pair_address", raw.PairAddress.Hex())
		return
	}

	reserveA, reserveB, err := domain.DecodeSyncPayload(raw.Data)
	if err != nil {
		e.metrics.dropped.Add(ctx, 1)
		e.logger.Warn(ctx, "dropping malformed sync payload", "pair_address", raw.PairAddress.Hex(), "error", err)
		return
	}
	e.metrics.decoded.Add(ctx, 1)

	pair := domain.NewPairKey(entry.TokenA.Address, entry.TokenB.Address)
	poolKey := domain.NewPoolKey(pair, entry.DexName)

	if e.debounced(poolKey) {
		e.metrics.debounced.Add(ctx, 1)
		e.logger.Debug(ctx, "debounced sync update", "pool_key", string(poolKey))
		return
	}

	update := domain.ReserveUpdate{
		PoolKey:     poolKey,
		Pair:        pair,
		DexName:     entry.DexName,
		PairAddress: common.HexToAddress(entry.PairAddress),
		SwapFeeBps:  entry.SwapFeeBps,
		TokenA:      entry.TokenA,
		TokenB:      entry.TokenB,
		ReserveA:    reserveA,
		ReserveB:    reserveB,
		Block:       raw.BlockNumber,
		TxHash:      raw.TxHash,
		WallMs:      raw.WallMs,
	}

	select {
	case out <- update:
		e.metrics.emitted.Add(ctx, 1)
	case <-ctx.Done():
	}
}

// debounced reports whether poolKey was seen within the debounce
// window, and if not, records the current observation as the new
// window start. Oldest state wins: the first event in a burst is the
// one that is emitted, later ones within the window are dropped.
func (e *EventIngestor) debounced(poolKey domain.PoolKey) bool {
	now := e.clock.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	last, seen := e.lastSeen[poolKey]
	if seen && now.Sub(last) < e.cfg.DebounceWindow {
		return true
	}
	e.lastSeen[poolKey] = now
	return false
}
