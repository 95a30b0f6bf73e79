package app

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	detdomain "github.com/fd1az/arbdetectd/business/detection/domain"
	optapp "github.com/fd1az/arbdetectd/business/optimizer/app"
	poolapp "github.com/fd1az/arbdetectd/business/pool/app"
	pooldomain "github.com/fd1az/arbdetectd/business/pool/domain"
	"github.com/fd1az/arbdetectd/internal/logger"
)

// TriangularConfig bounds TriangularDetector's viability gate and the
// optimizer's search window.
type TriangularConfig struct {
	MinProfitPercent decimal.Decimal
	MinTradeSizeUSD  decimal.Decimal
	MaxTradeSizeUSD  decimal.Decimal
}

type triangularMetrics struct {
	cyclesEvaluated            metric.Int64Counter
	opportunitiesFound         metric.Int64Counter
	crossDexOpportunitiesFound metric.Int64Counter
}

// TriangularDetector finds profitable 3-hop cycles base -> mid1 ->
// mid2 -> base, either confined to one DEX or spanning several.
type TriangularDetector struct {
	cfg     TriangularConfig
	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *triangularMetrics
}

// NewTriangularDetector builds a TriangularDetector.
func NewTriangularDetector(cfg TriangularConfig, log logger.LoggerInterface) *TriangularDetector {
	d := &TriangularDetector{cfg: cfg, logger: log, tracer: otel.Tracer(tracerName)}
	_ = d.initMetrics()
	return d
}

func (d *TriangularDetector) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	d.metrics = &triangularMetrics{}

	if d.metrics.cyclesEvaluated, err = meter.Int64Counter("triangular_cycles_evaluated_total",
		metric.WithDescription("3-hop cycles evaluated")); err != nil {
		return err
	}
	if d.metrics.opportunitiesFound, err = meter.Int64Counter("triangular_opportunities_found_total",
		metric.WithDescription("Single-DEX triangular opportunities found")); err != nil {
		return err
	}
	if d.metrics.crossDexOpportunitiesFound, err = meter.Int64Counter("cross_dex_triangular_opportunities_found_total",
		metric.WithDescription("Cross-DEX triangular opportunities found")); err != nil {
		return err
	}
	return nil
}

// Detect evaluates every 3-hop cycle for profitability: cycle_product
// gate, then the optimizer over the shared base-token input. Cycles
// whose three hops are all on the same DEX are returned as
// TriangularDetails; any other cycle (at least one hop differs) is
// returned as CrossDexTriangularDetails. tokenOf resolves a vertex
// address to its Token (for decimals); nativeUSDPrice prices the base
// token in USD for the search-bound conversion.
func (d *TriangularDetector) Detect(
	ctx context.Context,
	cycles []poolapp.Cycle3,
	tokenOf func(common.Address) (pooldomain.Token, bool),
	nativeUSDPrice func(pooldomain.Token) (decimal.Decimal, bool),
) (singleDex []detdomain.TriangularDetails, crossDex []detdomain.CrossDexTriangularDetails) {
	ctx, span := d.tracer.Start(ctx, "triangular_detector.detect")
	defer span.End()

	for _, cyc := range cycles {
		d.metrics.cyclesEvaluated.Add(ctx, 1)

		r1, r2, r3 := cyc.Hop1.Price, cyc.Hop2.Price, cyc.Hop3.Price
		g1 := decimal.NewFromInt(1).Sub(cyc.Hop1.SwapFee)
		g2 := decimal.NewFromInt(1).Sub(cyc.Hop2.SwapFee)
		g3 := decimal.NewFromInt(1).Sub(cyc.Hop3.SwapFee)
		cycleProduct := r1.Mul(r2).Mul(r3).Mul(g1).Mul(g2).Mul(g3)

		profitPercent := cycleProduct.Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100))
		if profitPercent.LessThan(d.cfg.MinProfitPercent) {
			continue
		}

		baseToken, ok := tokenOf(cyc.Base)
		if !ok {
			continue
		}
		baseUSD, ok := nativeUSDPrice(baseToken)
		if !ok || baseUSD.IsZero() {
			continue
		}

		xMin := usdToTokenUnits(d.cfg.MinTradeSizeUSD, baseUSD, baseToken.Decimals)
		xMax := usdToTokenUnits(d.cfg.MaxTradeSizeUSD, baseUSD, baseToken.Decimals)

		result := optapp.Triangular(optapp.TriangularInput{
			Hop1: optapp.Leg{ReserveIn: cyc.Hop1.ReserveIn, ReserveOut: cyc.Hop1.ReserveOut, FeeBps: feeBps(cyc.Hop1.SwapFee)},
			Hop2: optapp.Leg{ReserveIn: cyc.Hop2.ReserveIn, ReserveOut: cyc.Hop2.ReserveOut, FeeBps: feeBps(cyc.Hop2.SwapFee)},
			Hop3: optapp.Leg{ReserveIn: cyc.Hop3.ReserveIn, ReserveOut: cyc.Hop3.ReserveOut, FeeBps: feeBps(cyc.Hop3.SwapFee)},
			XMin: xMin,
			XMax: xMax,
		})
		if result.NonFinite || result.NetProfit.LessThanOrEqual(decimal.Zero) {
			continue
		}

		tradeSizeUSD := tokenUnitsToUSD(result.OptimalInput, baseUSD, baseToken.Decimals)
		netProfitUSD := tokenUnitsToUSD(result.NetProfit.BigInt(), baseUSD, baseToken.Decimals)
		if netProfitUSD.LessThanOrEqual(decimal.NewFromInt(1)) {
			continue
		}

		netROIPercent := decimal.Zero
		if !tradeSizeUSD.IsZero() {
			netROIPercent = netProfitUSD.Div(tradeSizeUSD).Mul(decimal.NewFromInt(100))
		}

		sameDex := cyc.Hop1.DexName == cyc.Hop2.DexName && cyc.Hop2.DexName == cyc.Hop3.DexName
		pools := [3]pooldomain.PoolKey{cyc.Hop1.PoolKey, cyc.Hop2.PoolKey, cyc.Hop3.PoolKey}

		if sameDex {
			d.metrics.opportunitiesFound.Add(ctx, 1)
			singleDex = append(singleDex, detdomain.TriangularDetails{
				BaseToken:          cyc.Base,
				Mid1:               cyc.Mid1,
				Mid2:               cyc.Mid2,
				DexName:            cyc.Hop1.DexName,
				Pools:              pools,
				PathRates:          [3]decimal.Decimal{r1, r2, r3},
				CycleProduct:       cycleProduct,
				OptimalInputAmount: result.OptimalInput,
				TradeSizeUSD:       tradeSizeUSD,
				NetProfitUSD:       netProfitUSD,
				NetROIPercent:      netROIPercent,
			})
			continue
		}

		d.metrics.crossDexOpportunitiesFound.Add(ctx, 1)
		crossDex = append(crossDex, detdomain.CrossDexTriangularDetails{
			Path:               [4]common.Address{cyc.Base, cyc.Mid1, cyc.Mid2, cyc.Base},
			DexPath:            [3]string{cyc.Hop1.DexName, cyc.Hop2.DexName, cyc.Hop3.DexName},
			Pools:              pools,
			PerHopFees:         [3]decimal.Decimal{cyc.Hop1.SwapFee, cyc.Hop2.SwapFee, cyc.Hop3.SwapFee},
			CycleProduct:       cycleProduct,
			OptimalInputAmount: result.OptimalInput,
			TradeSizeUSD:       tradeSizeUSD,
			NetProfitUSD:       netProfitUSD,
			NetROIPercent:      netROIPercent,
		})
	}

	return singleDex, crossDex
}
