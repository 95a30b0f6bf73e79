// Package evmsync adapts a chain RPC endpoint into the pool context's
// LogSource and BlockSource ports: a WebSocket-primary, HTTP-fallback
// subscription to Sync event logs and block headers.
package evmsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arbdetectd/business/pool/domain"
	"github.com/fd1az/arbdetectd/internal/apperror"
	"github.com/fd1az/arbdetectd/internal/circuitbreaker"
	"github.com/fd1az/arbdetectd/internal/logger"
)

const (
	tracerName = "github.com/fd1az/arbdetectd/business/pool/infra/evmsync"
	meterName  = "github.com/fd1az/arbdetectd/business/pool/infra/evmsync"
)

// Config holds subscriber tunables.
type Config struct {
	WSURL          string
	HTTPURL        string
	PollInterval   time.Duration
	ReconnectDelay time.Duration
	BufferSize     int
	PairAddresses  []common.Address // filter set for the Sync log subscription
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(wsURL, httpURL string, pairs []common.Address) Config {
	return Config{
		WSURL:          wsURL,
		HTTPURL:        httpURL,
		PollInterval:   3 * time.Second,
		ReconnectDelay: 5 * time.Second,
		BufferSize:     256,
		PairAddresses:  pairs,
	}
}

type subscriberMetrics struct {
	logsReceived     metric.Int64Counter
	blocksReceived   metric.Int64Counter
	subscribeErrors  metric.Int64Counter
	connectionState  metric.Int64Gauge
	httpFallbackUsed metric.Int64Counter
}

// Subscriber implements app.LogSource and app.BlockSource over
// go-ethereum, falling back from WebSocket to HTTP polling on
// disconnect, same as the chain's block-header subscriber.
type Subscriber struct {
	cfg    Config
	logger logger.LoggerInterface

	wsClient   *ethclient.Client
	httpClient *ethclient.Client
	clientMu   sync.RWMutex

	usingHTTP  atomic.Bool
	lastBlock  atomic.Uint64
	reconnects atomic.Int32
	closed     atomic.Bool
	done       chan struct{}

	logs   chan domain.RawSyncLog
	blocks chan domain.BlockTick

	logCB   *circuitbreaker.CircuitBreaker[[]types.Log]
	blockCB *circuitbreaker.CircuitBreaker[*types.Header]

	tracer  trace.Tracer
	metrics *subscriberMetrics
}

// New creates a Subscriber.
func New(cfg Config, log logger.LoggerInterface) (*Subscriber, error) {
	s := &Subscriber{
		cfg:    cfg,
		logger: log,
		done:   make(chan struct{}),
		logs:   make(chan domain.RawSyncLog, cfg.BufferSize),
		blocks: make(chan domain.BlockTick, cfg.BufferSize),
		tracer: otel.Tracer(tracerName),
	}
	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	s.initCircuitBreakers()
	return s, nil
}

func (s *Subscriber) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	s.metrics = &subscriberMetrics{}

	if s.metrics.logsReceived, err = meter.Int64Counter("evmsync_logs_received_total"); err != nil {
		return err
	}
	if s.metrics.blocksReceived, err = meter.Int64Counter("evmsync_blocks_received_total"); err != nil {
		return err
	}
	if s.metrics.subscribeErrors, err = meter.Int64Counter("evmsync_subscribe_errors_total"); err != nil {
		return err
	}
	if s.metrics.connectionState, err = meter.Int64Gauge("evmsync_connection_state"); err != nil {
		return err
	}
	if s.metrics.httpFallbackUsed, err = meter.Int64Counter("evmsync_http_fallback_total"); err != nil {
		return err
	}
	return nil
}

func (s *Subscriber) initCircuitBreakers() {
	logCfg := circuitbreaker.DefaultConfig("evmsync-logs")
	logCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		s.logger.Info(context.Background(), "circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
	}
	s.logCB = circuitbreaker.New[[]types.Log](logCfg)

	blockCfg := circuitbreaker.DefaultConfig("evmsync-blocks")
	blockCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		s.logger.Info(context.Background(), "circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
	}
	s.blockCB = circuitbreaker.New[*types.Header](blockCfg)
}

func (s *Subscriber) connectWS(ctx context.Context) error {
	if s.cfg.WSURL == "" {
		return errors.New("ws url not configured")
	}
	client, err := ethclient.DialContext(ctx, s.cfg.WSURL)
	if err != nil {
		return fmt.Errorf("dial ws: %w", err)
	}
	s.clientMu.Lock()
	s.wsClient = client
	s.clientMu.Unlock()
	return nil
}

func (s *Subscriber) connectHTTP(ctx context.Context) error {
	if s.cfg.HTTPURL == "" {
		return errors.New("http url not configured")
	}
	client, err := ethclient.DialContext(ctx, s.cfg.HTTPURL)
	if err != nil {
		return fmt.Errorf("dial http: %w", err)
	}
	s.clientMu.Lock()
	s.httpClient = client
	s.clientMu.Unlock()
	return nil
}

// logFilter returns the Sync event topic; ethereumFilterQuery combines
// it with the configured pair addresses.
func (s *Subscriber) logFilter() common.Hash {
	return common.HexToHash(domain.SyncTopic)
}

// Subscribe implements app.LogSource, streaming decoded-as-raw Sync logs.
func (s *Subscriber) Subscribe(ctx context.Context) (<-chan domain.RawSyncLog, error) {
	ctx, span := s.tracer.Start(ctx, "evmsync.subscribe_logs")
	defer span.End()

	if s.closed.Load() {
		return nil, errors.New("subscriber is closed")
	}

	if err := s.connectWS(ctx); err != nil {
		s.logger.Warn(ctx, "ws connection failed for log subscription, trying http poll", "error", err)
		if err := s.connectHTTP(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "both connections failed")
			return nil, apperror.New(apperror.CodeEthereumConnectionFailed, apperror.WithCause(err))
		}
		s.usingHTTP.Store(true)
		go s.runLogPoller(ctx)
	} else {
		go s.runLogSubscription(ctx)
	}

	span.SetStatus(codes.Ok, "subscribed")
	return s.logs, nil
}

// subscribeBlocks is the block-tick subscription entry point, exposed
// to the app.BlockSource port through the BlockAdapter wrapper below.
func (s *Subscriber) subscribeBlocks(ctx context.Context) (<-chan domain.BlockTick, error) {
	ctx, span := s.tracer.Start(ctx, "evmsync.subscribe_blocks")
	defer span.End()

	s.clientMu.RLock()
	haveWS := s.wsClient != nil
	s.clientMu.RUnlock()

	if !haveWS {
		if err := s.connectWS(ctx); err != nil {
			if err := s.connectHTTP(ctx); err != nil {
				span.RecordError(err)
				return nil, apperror.New(apperror.CodeEthereumConnectionFailed, apperror.WithCause(err))
			}
			go s.runBlockPoller(ctx)
			span.SetStatus(codes.Ok, "subscribed via http poll")
			return s.blocks, nil
		}
	}

	go s.runBlockSubscription(ctx)
	span.SetStatus(codes.Ok, "subscribed")
	return s.blocks, nil
}

func (s *Subscriber) runLogSubscription(ctx context.Context) {
	s.clientMu.RLock()
	client := s.wsClient
	s.clientMu.RUnlock()
	if client == nil {
		s.handleLogDisconnect(ctx)
		return
	}

	topic := s.logFilter()
	query := ethereumFilterQuery(s.cfg.PairAddresses, topic)
	logsCh := make(chan types.Log, s.cfg.BufferSize)
	sub, err := client.SubscribeFilterLogs(ctx, query, logsCh)
	if err != nil {
		s.logger.Error(ctx, "subscribe filter logs failed", "error", err)
		s.metrics.subscribeErrors.Add(ctx, 1)
		s.handleLogDisconnect(ctx)
		return
	}
	s.logger.Info(ctx, "subscribed to sync logs via ws")

	for {
		select {
		case <-s.done:
			sub.Unsubscribe()
			return
		case <-ctx.Done():
			sub.Unsubscribe()
			return
		case err := <-sub.Err():
			if err != nil {
				s.logger.Error(ctx, "log subscription error", "error", err)
				s.metrics.subscribeErrors.Add(ctx, 1)
			}
			s.handleLogDisconnect(ctx)
			return
		case lg := <-logsCh:
			s.emitLog(ctx, lg)
		}
	}
}

func (s *Subscriber) emitLog(ctx context.Context, lg types.Log) {
	raw := domain.RawSyncLog{
		PairAddress: lg.Address,
		Data:        lg.Data,
		BlockNumber: lg.BlockNumber,
		TxHash:      lg.TxHash,
		WallMs:      time.Now().UnixMilli(),
	}
	select {
	case s.logs <- raw:
		s.metrics.logsReceived.Add(ctx, 1)
	default:
		s.logger.Warn(ctx, "sync log dropped, buffer full", "pair", lg.Address.Hex())
	}
}

func (s *Subscriber) handleLogDisconnect(ctx context.Context) {
	if s.closed.Load() {
		return
	}
	s.reconnects.Add(1)
	time.Sleep(s.cfg.ReconnectDelay)
	if s.closed.Load() {
		return
	}
	if err := s.connectWS(ctx); err != nil {
		s.logger.Warn(ctx, "ws reconnect failed, switching to http poll", "error", err)
		if s.httpClient == nil {
			if err := s.connectHTTP(ctx); err != nil {
				s.logger.Error(ctx, "http fallback connection failed", "error", err)
				return
			}
		}
		s.usingHTTP.Store(true)
		s.metrics.httpFallbackUsed.Add(ctx, 1)
		go s.runLogPoller(ctx)
		return
	}
	s.usingHTTP.Store(false)
	go s.runLogSubscription(ctx)
}

func (s *Subscriber) runLogPoller(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	var lastBlock uint64
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			lastBlock = s.pollLogs(ctx, lastBlock)
		}
	}
}

func (s *Subscriber) pollLogs(ctx context.Context, fromBlock uint64) uint64 {
	s.clientMu.RLock()
	client := s.httpClient
	s.clientMu.RUnlock()
	if client == nil {
		return fromBlock
	}

	topic := s.logFilter()
	query := ethereumFilterQuery(s.cfg.PairAddresses, topic)

	logs, err := s.logCB.Execute(func() ([]types.Log, error) {
		return client.FilterLogs(ctx, query)
	})
	if err != nil {
		s.logger.Error(ctx, "http log poll failed", "error", err)
		s.metrics.subscribeErrors.Add(ctx, 1)
		return fromBlock
	}

	max := fromBlock
	for _, lg := range logs {
		if lg.BlockNumber <= fromBlock {
			continue
		}
		s.emitLog(ctx, lg)
		if lg.BlockNumber > max {
			max = lg.BlockNumber
		}
	}
	return max
}

func (s *Subscriber) runBlockSubscription(ctx context.Context) {
	s.clientMu.RLock()
	client := s.wsClient
	s.clientMu.RUnlock()
	if client == nil {
		return
	}

	headers := make(chan *types.Header, s.cfg.BufferSize)
	sub, err := client.SubscribeNewHead(ctx, headers)
	if err != nil {
		s.logger.Error(ctx, "subscribe new head failed", "error", err)
		s.metrics.subscribeErrors.Add(ctx, 1)
		go s.runBlockPoller(ctx)
		return
	}

	for {
		select {
		case <-s.done:
			sub.Unsubscribe()
			return
		case <-ctx.Done():
			sub.Unsubscribe()
			return
		case err := <-sub.Err():
			if err != nil {
				s.logger.Error(ctx, "block subscription error", "error", err)
			}
			go s.runBlockPoller(ctx)
			return
		case h := <-headers:
			if h == nil {
				continue
			}
			s.emitBlock(ctx, h.Number.Uint64())
		}
	}
}

func (s *Subscriber) runBlockPoller(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.clientMu.RLock()
			client := s.httpClient
			s.clientMu.RUnlock()
			if client == nil {
				continue
			}
			header, err := s.blockCB.Execute(func() (*types.Header, error) {
				return client.HeaderByNumber(ctx, nil)
			})
			if err != nil {
				s.logger.Error(ctx, "http block poll failed", "error", err)
				continue
			}
			if header.Number.Uint64() <= s.lastBlock.Load() {
				continue
			}
			s.emitBlock(ctx, header.Number.Uint64())
		}
	}
}

func (s *Subscriber) emitBlock(ctx context.Context, number uint64) {
	s.lastBlock.Store(number)
	tick := domain.BlockTick{BlockNumber: number, WallMs: time.Now().UnixMilli()}
	select {
	case s.blocks <- tick:
		s.metrics.blocksReceived.Add(ctx, 1)
	default:
		s.logger.Warn(ctx, "block tick dropped, buffer full", "number", number)
	}
}

// Close releases both connections and stops all loops.
func (s *Subscriber) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.done)
	s.clientMu.Lock()
	if s.wsClient != nil {
		s.wsClient.Close()
	}
	if s.httpClient != nil {
		s.httpClient.Close()
	}
	s.clientMu.Unlock()
	return nil
}

// LogAdapter exposes Subscriber as an app.LogSource.
type LogAdapter struct{ *Subscriber }

// Subscribe implements app.LogSource.
func (a LogAdapter) Subscribe(ctx context.Context) (<-chan domain.RawSyncLog, error) {
	return a.Subscriber.Subscribe(ctx)
}

// BlockAdapter exposes Subscriber as an app.BlockSource.
type BlockAdapter struct{ *Subscriber }

// Subscribe implements app.BlockSource.
func (a BlockAdapter) Subscribe(ctx context.Context) (<-chan domain.BlockTick, error) {
	return a.Subscriber.subscribeBlocks(ctx)
}
