// Package pool implements the pool bounded context: reserve state,
// Sync event ingestion, and the per-DEX exchange graph.
package pool

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/arbdetectd/business/pool/app"
	pooldi "github.com/fd1az/arbdetectd/business/pool/di"
	"github.com/fd1az/arbdetectd/business/pool/domain"
	"github.com/fd1az/arbdetectd/business/pool/infra/evmsync"
	"github.com/fd1az/arbdetectd/business/pool/infra/staticcatalog"
	"github.com/fd1az/arbdetectd/internal/clock"
	"github.com/fd1az/arbdetectd/internal/config"
	"github.com/fd1az/arbdetectd/internal/di"
	"github.com/fd1az/arbdetectd/internal/logger"
	"github.com/fd1az/arbdetectd/internal/monolith"
)

// Module implements the pool bounded context.
type Module struct{}

// RegisterServices wires the catalog, reserve store, event ingestor,
// and chain sync adapter into the container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, pooldi.PoolCatalog, func(sr di.ServiceRegistry) app.PoolCatalog {
		cfg := sr.Get("config").(*config.Config)
		return staticcatalog.New(cfg.Detection.Pools)
	})

	di.RegisterToken(c, pooldi.ReserveStore, func(sr di.ServiceRegistry) *app.ReserveStore {
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewReserveStore(log)
	})

	di.RegisterToken(c, pooldi.EventIngestor, func(sr di.ServiceRegistry) *app.EventIngestor {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		catalog := pooldi.GetPoolCatalog(sr)
		ingestorCfg := app.IngestorConfig{DebounceWindow: cfg.Detection.DebounceWindow()}
		return app.NewEventIngestor(ingestorCfg, catalog, clock.System{}, log)
	})

	di.RegisterToken(c, pooldi.LogSource, func(sr di.ServiceRegistry) app.LogSource {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		catalog := pooldi.GetPoolCatalog(sr)

		subCfg := evmsync.DefaultConfig(cfg.Ethereum.WebSocketURL, cfg.Ethereum.HTTPURL, pairAddresses(catalog))
		sub, err := evmsync.New(subCfg, log)
		if err != nil {
			panic("failed to create evmsync subscriber: " + err.Error())
		}
		return evmsync.LogAdapter{Subscriber: sub}
	})

	di.RegisterToken(c, pooldi.BlockSource, func(sr di.ServiceRegistry) app.BlockSource {
		// Reuse the same underlying subscriber instance as LogSource so
		// both streams share one chain connection.
		logSource := pooldi.GetLogSource(sr)
		adapter := logSource.(evmsync.LogAdapter)
		return evmsync.BlockAdapter{Subscriber: adapter.Subscriber}
	})

	return nil
}

// pairAddresses extracts the pair address set from the catalog for the
// log subscription filter.
func pairAddresses(catalog app.PoolCatalog) []common.Address {
	var out []common.Address
	for _, entry := range catalog.All() {
		out = append(out, common.HexToAddress(entry.PairAddress))
	}
	return out
}

// Startup subscribes to logs and blocks and starts the ingestor loop,
// feeding ReserveStore.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	sr := mono.Services()

	logSource := pooldi.GetLogSource(sr)
	blockSource := pooldi.GetBlockSource(sr)
	ingestor := pooldi.GetEventIngestor(sr)
	store := pooldi.GetReserveStore(sr)

	rawLogs, err := logSource.Subscribe(ctx)
	if err != nil {
		return err
	}
	blockTicks, err := blockSource.Subscribe(ctx)
	if err != nil {
		return err
	}

	updates := make(chan domain.ReserveUpdate, 256)
	go ingestor.Run(ctx, rawLogs, updates)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case u := <-updates:
				applyUpdate(ctx, store, u)
			}
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case tick := <-blockTicks:
				store.InvalidateOlderThan(ctx, tick.BlockNumber, staleRetentionWindow)
			}
		}
	}()

	log.Info(ctx, "pool module started")
	return nil
}

// staleRetentionWindow is the number of blocks a pool may go without an
// update before InvalidateOlderThan drops it.
const staleRetentionWindow = 10000

// applyUpdate converts a normalized ReserveUpdate into the next Pool
// snapshot and upserts it. Validation failures are dropped, never
// propagated: Upsert records the error on its trace span, and nothing
// is logged here.
func applyUpdate(ctx context.Context, store *app.ReserveStore, u domain.ReserveUpdate) {
	next := domain.Pool{
		Key:              u.PoolKey,
		Pair:             u.Pair,
		TokenA:           u.TokenA,
		TokenB:           u.TokenB,
		DexName:          u.DexName,
		PairAddress:      u.PairAddress,
		SwapFee:          staticcatalog.SwapFeeDecimal(u.SwapFeeBps),
		ReserveA:         u.ReserveA,
		ReserveB:         u.ReserveB,
		LastUpdateBlock:  u.Block,
		LastUpdateWallMs: u.WallMs,
	}
	if _, err := store.Upsert(ctx, next); err != nil {
		return
	}
}
