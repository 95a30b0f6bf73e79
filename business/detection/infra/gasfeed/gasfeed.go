// Package gasfeed implements app.GasFeed over an Ethereum RPC client,
// grounded on the blockchain context's GasOracle: a short-TTL cache in
// front of a circuit-breaker-wrapped RPC call, falling back to a
// static configured price on any failure rather than blocking a
// detection cycle.
package gasfeed

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arbdetectd/internal/apperror"
	"github.com/fd1az/arbdetectd/internal/cache"
	"github.com/fd1az/arbdetectd/internal/circuitbreaker"
	"github.com/fd1az/arbdetectd/internal/logger"
	"github.com/fd1az/arbdetectd/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/arbdetectd/business/detection/infra/gasfeed"
	meterName  = "github.com/fd1az/arbdetectd/business/detection/infra/gasfeed"

	cacheKey      = "current"
	cacheSweepTTL = 5 * time.Minute
	sourceRPC     = "rpc"
	sourceStatic  = "static_fallback"

	// rpcRequestsPerMinute caps SuggestGasPrice calls well below any
	// public RPC provider's per-IP limit; a short cache TTL combined
	// with a detection cycle per block would otherwise hammer the node
	// during a burst of Sync events.
	rpcRequestsPerMinute = 120
)

type feedMetrics struct {
	fetches     metric.Int64Counter
	cacheHits   metric.Int64Counter
	cacheMisses metric.Int64Counter
	fallbacks   metric.Int64Counter
}

// Feed implements app.GasFeed: SuggestGasPrice through a TTL cache and
// a circuit breaker, falling back to a static price when the breaker
// is open or the RPC call fails.
type Feed struct {
	client      *ethclient.Client
	cacheTTL    time.Duration
	staticPrice *big.Int

	priceCache *cache.Cache[string, *big.Int]
	cb         *circuitbreaker.CircuitBreaker[*big.Int]
	limiter    *ratelimit.Limiter

	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *feedMetrics
}

// New builds a Feed bound to client, caching fetched prices for ttl
// and falling back to staticPrice (wei) on failure.
func New(client *ethclient.Client, ttl time.Duration, staticPrice *big.Int, log logger.LoggerInterface) *Feed {
	f := &Feed{
		client:      client,
		cacheTTL:    ttl,
		staticPrice: staticPrice,
		priceCache:  cache.New[string, *big.Int](cacheSweepTTL),
		cb:          circuitbreaker.New[*big.Int](circuitbreaker.DefaultConfig("detection-gas-feed")),
		limiter:     ratelimit.New(rpcRequestsPerMinute),
		logger:      log,
		tracer:      otel.Tracer(tracerName),
	}
	_ = f.initMetrics()
	return f
}

func (f *Feed) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	f.metrics = &feedMetrics{}

	if f.metrics.fetches, err = meter.Int64Counter("detection_gas_feed_fetches_total"); err != nil {
		return err
	}
	if f.metrics.cacheHits, err = meter.Int64Counter("detection_gas_feed_cache_hits_total"); err != nil {
		return err
	}
	if f.metrics.cacheMisses, err = meter.Int64Counter("detection_gas_feed_cache_misses_total"); err != nil {
		return err
	}
	if f.metrics.fallbacks, err = meter.Int64Counter("detection_gas_feed_fallbacks_total"); err != nil {
		return err
	}
	return nil
}

// GasPriceWei implements app.GasFeed.
func (f *Feed) GasPriceWei(ctx context.Context) (*big.Int, string, error) {
	ctx, span := f.tracer.Start(ctx, "gas_feed.get_price")
	defer span.End()

	if price, found := f.priceCache.Get(ctx, cacheKey); found {
		f.metrics.cacheHits.Add(ctx, 1)
		return price, sourceRPC, nil
	}
	f.metrics.cacheMisses.Add(ctx, 1)
	f.metrics.fetches.Add(ctx, 1)

	if f.client == nil {
		return f.fallback(ctx, span, apperror.New(apperror.CodeGasFeedUnavailable, apperror.WithContext("gas feed RPC client not connected")))
	}

	if !f.limiter.Allow() {
		return f.fallback(ctx, span, apperror.New(apperror.CodeGasFeedUnavailable, apperror.WithContext("gas feed RPC rate limit exceeded")))
	}

	wei, err := f.cb.Execute(func() (*big.Int, error) {
		return f.client.SuggestGasPrice(ctx)
	})
	if err != nil {
		return f.fallback(ctx, span, apperror.New(apperror.CodeGasFeedUnavailable, apperror.WithCause(err)))
	}

	f.priceCache.Set(ctx, cacheKey, wei, f.cacheTTL)
	span.SetAttributes(attribute.String("wei", wei.String()))
	span.SetStatus(codes.Ok, "fetched")
	return wei, sourceRPC, nil
}

// fallback logs once at warn and returns the static configured price,
// per the adapter's transient-external failure policy: never block a
// detection cycle on an unavailable gas feed.
func (f *Feed) fallback(ctx context.Context, span trace.Span, cause error) (*big.Int, string, error) {
	f.metrics.fallbacks.Add(ctx, 1)
	span.RecordError(cause)
	span.SetStatus(codes.Error, "falling back to static price")
	f.logger.Warn(ctx, "gas feed unavailable, using static fallback price", "error", cause)
	return f.staticPrice, sourceStatic, nil
}

// Close releases the background cache sweep goroutine.
func (f *Feed) Close() error {
	f.priceCache.Close()
	return nil
}
