// Package correlation implements the correlation bounded context:
// per-pool price history, a periodically recomputed Pearson
// correlation matrix, and speculative re-check hints for detection.
package correlation

import (
	"context"

	"github.com/fd1az/arbdetectd/business/correlation/app"
	correlationdi "github.com/fd1az/arbdetectd/business/correlation/di"
	pooldi "github.com/fd1az/arbdetectd/business/pool/di"
	"github.com/fd1az/arbdetectd/internal/clock"
	"github.com/fd1az/arbdetectd/internal/config"
	"github.com/fd1az/arbdetectd/internal/di"
	"github.com/fd1az/arbdetectd/internal/logger"
	"github.com/fd1az/arbdetectd/internal/monolith"
)

// Module implements the correlation bounded context.
type Module struct{}

// RegisterServices wires the CorrelationTracker into the container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, correlationdi.Tracker, func(sr di.ServiceRegistry) *app.Tracker {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		trackerCfg := app.DefaultConfig()
		trackerCfg.HistoryCap = cfg.Detection.CorrelationHistoryLength
		trackerCfg.Threshold = cfg.Detection.CorrelationThreshold
		trackerCfg.RecomputeInterval = cfg.Detection.CorrelationUpdatePeriod()

		return app.NewTracker(trackerCfg, clock.System{}, log)
	})
	return nil
}

// Startup subscribes to pool state changes, feeds them into the
// tracker's price history, and starts the periodic recompute loop.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	sr := mono.Services()

	tracker := correlationdi.GetTracker(sr)
	store := pooldi.GetReserveStore(sr)

	updates := store.Subscribe(256)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case p := <-updates:
				price, ok := p.Price()
				if !ok {
					continue
				}
				priceF, _ := price.Float64()
				tracker.Record(ctx, p.Key, p.Pair, p.TokenA.Symbol, p.TokenB.Symbol, priceF, p.LastUpdateWallMs, p.LastUpdateBlock)
			}
		}
	}()

	go tracker.RunScheduledRecompute(ctx)

	log.Info(ctx, "correlation module started")
	return nil
}
