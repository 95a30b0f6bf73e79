package app

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arbdetectd/business/pool/domain"
	"github.com/fd1az/arbdetectd/internal/logger"
)

const (
	tracerName = "github.com/fd1az/arbdetectd/business/pool/app"
	meterName  = "github.com/fd1az/arbdetectd/business/pool/app"
)

type storeMetrics struct {
	upserts       metric.Int64Counter
	invalidations metric.Int64Counter
	poolCount     metric.Int64Gauge
}

// ReserveStore is the single authoritative owner of Pool state. It is
// safe for concurrent readers; writes are expected from a single writer
// per chain (EventIngestor and the block handler), per spec.md §5.
type ReserveStore struct {
	mu    sync.RWMutex
	pools map[domain.PoolKey]domain.Pool

	subMu       sync.Mutex
	subscribers []chan domain.Pool

	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *storeMetrics
}

// NewReserveStore creates an empty store.
func NewReserveStore(log logger.LoggerInterface) *ReserveStore {
	s := &ReserveStore{
		pools:  make(map[domain.PoolKey]domain.Pool),
		logger: log,
		tracer: otel.Tracer(tracerName),
	}
	_ = s.initMetrics()
	return s
}

// Subscribe registers a new listener for every successful Upsert and
// returns its receive-only channel. Used by the correlation context to
// feed price observations without coupling ReserveStore to it. Slow
// subscribers drop updates rather than block the writer.
func (s *ReserveStore) Subscribe(buffer int) <-chan domain.Pool {
	ch := make(chan domain.Pool, buffer)
	s.subMu.Lock()
	s.subscribers = append(s.subscribers, ch)
	s.subMu.Unlock()
	return ch
}

func (s *ReserveStore) notify(p domain.Pool) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- p:
		default:
		}
	}
}

func (s *ReserveStore) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	s.metrics = &storeMetrics{}

	if s.metrics.upserts, err = meter.Int64Counter("pool_store_upserts_total",
		metric.WithDescription("Total pool reserve upserts")); err != nil {
		return err
	}
	if s.metrics.invalidations, err = meter.Int64Counter("pool_store_invalidations_total",
		metric.WithDescription("Total pools invalidated for staleness")); err != nil {
		return err
	}
	if s.metrics.poolCount, err = meter.Int64Gauge("pool_store_pool_count",
		metric.WithDescription("Current number of tracked pools")); err != nil {
		return err
	}
	return nil
}

// Upsert atomically replaces a pool's reserves and updates its
// lastUpdateBlock, returning the prior snapshot (if any). Fails with
// apperror.CodeInvalidReserves (or apperror.CodeInvalidFeeRange for the
// swap fee) if the new state violates the pool invariants.
func (s *ReserveStore) Upsert(ctx context.Context, next domain.Pool) (*domain.Pool, error) {
	ctx, span := s.tracer.Start(ctx, "reserve_store.upsert",
		trace.WithAttributes(attribute.String("pool_key", string(next.Key))))
	defer span.End()

	if err := next.Validate(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.mu.Lock()
	old, existed := s.pools[next.Key]
	s.pools[next.Key] = next
	count := len(s.pools)
	s.mu.Unlock()

	s.metrics.upserts.Add(ctx, 1)
	s.metrics.poolCount.Record(ctx, int64(count))

	s.logger.Debug(ctx, "pool upserted", "pool_key", string(next.Key), "block", next.LastUpdateBlock)
	s.notify(next.Clone())

	if !existed {
		return nil, nil
	}
	oldCopy := old.Clone()
	return &oldCopy, nil
}

// Get returns a value-copy snapshot of the pool, or false if unknown.
func (s *ReserveStore) Get(key domain.PoolKey) (domain.Pool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pools[key]
	if !ok {
		return domain.Pool{}, false
	}
	return p.Clone(), true
}

// Price returns the current mid-price for a pool, per domain.Pool.Price.
func (s *ReserveStore) Price(key domain.PoolKey) (decimal.Decimal, bool) {
	p, ok := s.Get(key)
	if !ok {
		return decimal.Decimal{}, false
	}
	return p.Price()
}

// Snapshot returns a value-copy of every tracked pool, for detectors
// that need a consistent full-store read.
func (s *ReserveStore) Snapshot() []domain.Pool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Pool, 0, len(s.pools))
	for _, p := range s.pools {
		out = append(out, p.Clone())
	}
	return out
}

// ByPair returns value-copies of every pool for the given pair, across
// all DEXes that list it.
func (s *ReserveStore) ByPair(pair domain.PairKey) []domain.Pool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Pool
	for _, p := range s.pools {
		if p.Pair == pair {
			out = append(out, p.Clone())
		}
	}
	return out
}

// InvalidateOlderThan removes pools whose lastUpdateBlock is older than
// currentBlock - retentionWindow, returning the count removed.
func (s *ReserveStore) InvalidateOlderThan(ctx context.Context, currentBlock uint64, retentionWindow uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cutoff uint64
	if currentBlock > retentionWindow {
		cutoff = currentBlock - retentionWindow
	}

	removed := 0
	for k, p := range s.pools {
		if p.LastUpdateBlock < cutoff {
			delete(s.pools, k)
			removed++
		}
	}
	if removed > 0 {
		s.metrics.invalidations.Add(ctx, int64(removed))
		s.logger.Info(ctx, "invalidated stale pools", "count", removed, "cutoff_block", cutoff)
	}
	return removed
}
