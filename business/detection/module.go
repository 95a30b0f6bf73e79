// Package detection implements the detection bounded context: the
// cross-DEX and triangular detectors, MEV/competition risk scoring,
// and the orchestrator that drives one full cycle per block or Sync
// event.
package detection

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/fd1az/arbdetectd/business/detection/app"
	detectiondi "github.com/fd1az/arbdetectd/business/detection/di"
	detdomain "github.com/fd1az/arbdetectd/business/detection/domain"
	"github.com/fd1az/arbdetectd/business/detection/infra/gasfeed"
	pooldi "github.com/fd1az/arbdetectd/business/pool/di"
	"github.com/fd1az/arbdetectd/internal/clock"
	"github.com/fd1az/arbdetectd/internal/config"
	"github.com/fd1az/arbdetectd/internal/di"
	"github.com/fd1az/arbdetectd/internal/logger"
	"github.com/fd1az/arbdetectd/internal/monolith"
)

// Module implements the detection bounded context.
type Module struct{}

// RegisterServices wires the gas feed, risk scorer, both detectors,
// and the orchestrator into the container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, detectiondi.GasFeed, func(sr di.ServiceRegistry) app.GasFeed {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		client, _ := sr.Get("ethClient").(*ethclient.Client)
		return gasfeed.New(client, cfg.Detection.GasCacheTTL(), cfg.Detection.StaticGasPriceWei(), log)
	})

	di.RegisterToken(c, detectiondi.RiskScorer, func(sr di.ServiceRegistry) *app.RiskScorer {
		return app.NewRiskScorer()
	})

	di.RegisterToken(c, detectiondi.CrossDexDetector, func(sr di.ServiceRegistry) *app.CrossDexDetector {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewCrossDexDetector(app.CrossDexConfig{
			MinProfitPercent: cfg.Detection.MinProfitPercentDecimal(),
			FlashLoanFee:     cfg.Detection.FlashLoanFeeDecimal(),
			MinLiquidityUSD:  decimal.NewFromFloat(cfg.Detection.MinLiquidityUSD),
			MinTradeSizeUSD:  decimal.NewFromFloat(cfg.Detection.MinTradeSizeUSD),
			MaxTradeSizeUSD:  decimal.NewFromFloat(cfg.Detection.MaxTradeSizeUSD),
		}, log)
	})

	di.RegisterToken(c, detectiondi.TriangularDetector, func(sr di.ServiceRegistry) *app.TriangularDetector {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewTriangularDetector(app.TriangularConfig{
			MinProfitPercent: cfg.Detection.MinProfitPercentDecimal(),
			MinTradeSizeUSD:  decimal.NewFromFloat(cfg.Detection.MinTradeSizeUSD),
			MaxTradeSizeUSD:  decimal.NewFromFloat(cfg.Detection.MaxTradeSizeUSD),
		}, log)
	})

	di.RegisterToken(c, detectiondi.Orchestrator, func(sr di.ServiceRegistry) *app.DetectionOrchestrator {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		store := pooldi.GetReserveStore(sr)
		gasFeed := detectiondi.GetGasFeed(sr)
		riskScorer := detectiondi.GetRiskScorer(sr)
		crossDex := detectiondi.GetCrossDexDetector(sr)
		triangular := detectiondi.GetTriangularDetector(sr)

		orchCfg := app.OrchestratorConfig{
			BaseTokenSymbols:          cfg.Detection.BaseTokens,
			NativeGasTokenSymbol:      cfg.Detection.NativeGasTokenSymbol,
			ChainID:                   cfg.Ethereum.ChainID,
			MinLiquidityUSD:           decimal.NewFromFloat(cfg.Detection.MinLiquidityUSD),
			MinLiquidityTriangularUSD: decimal.NewFromFloat(cfg.Detection.MinLiquidityTriangularUSD),
			MaxTradeSizeUSD:           decimal.NewFromFloat(cfg.Detection.MaxTradeSizeUSD),
			EstimatedGasLimit:         cfg.Detection.EstimatedGasLimit,
			CooldownWindow:            cfg.Detection.CooldownWindow(),
			TriangularEnabled:         cfg.Detection.TriangularEnabled,
			StaticGasFallbackWei:      cfg.Detection.StaticGasPriceWei(),
		}
		return app.NewDetectionOrchestrator(orchCfg, store, crossDex, triangular, riskScorer, gasFeed, clock.System{}, log)
	})

	return nil
}

// Startup drives the orchestrator from both the per-block and the
// per-event path: a new block runs a full cycle, and a pool update
// (Sync event) runs one too, re-entrant triggers dropping per P11.
// Opportunities are logged at info; wiring an execution sink is left
// to the caller of this module (none is implemented, per the
// detection-only scope of this repository).
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	sr := mono.Services()

	orchestrator := detectiondi.GetOrchestrator(sr)
	store := pooldi.GetReserveStore(sr)
	blockSource := pooldi.GetBlockSource(sr)

	blockTicks, err := blockSource.Subscribe(ctx)
	if err != nil {
		return err
	}

	updates := store.Subscribe(256)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case tick := <-blockTicks:
				emit(ctx, log, orchestrator.Detect(ctx, tick.BlockNumber, detdomain.SourceBlock))
			}
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case p := <-updates:
				emit(ctx, log, orchestrator.Detect(ctx, p.LastUpdateBlock, detdomain.SourceSyncEvent))
			}
		}
	}()

	log.Info(ctx, "detection module started")
	return nil
}

func emit(ctx context.Context, log logger.LoggerInterface, opps []detdomain.Opportunity) {
	for i := range opps {
		o := &opps[i]
		log.Info(ctx, "arbitrage opportunity detected",
			"kind", string(o.Kind),
			"source", string(o.Source),
			"block", o.BlockNumber,
			"net_profit_usd", o.NetProfitUSD().String(),
			"recommendation", string(o.Risk.Recommendation),
		)
	}
}
