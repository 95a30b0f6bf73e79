// Package app contains the detection context's services: the two
// opportunity detectors, the risk scorer, and the orchestrator that
// ties them to a block/event-driven detection cycle.
package app

import (
	"context"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	detdomain "github.com/fd1az/arbdetectd/business/detection/domain"
	optapp "github.com/fd1az/arbdetectd/business/optimizer/app"
	pooldomain "github.com/fd1az/arbdetectd/business/pool/domain"
	"github.com/fd1az/arbdetectd/internal/logger"
)

const (
	tracerName = "github.com/fd1az/arbdetectd/business/detection/app"
	meterName  = "github.com/fd1az/arbdetectd/business/detection/app"
)

// CrossDexConfig bounds CrossDexDetector's viability gate and the
// optimizer's search window.
type CrossDexConfig struct {
	MinProfitPercent decimal.Decimal
	FlashLoanFee     decimal.Decimal
	MinLiquidityUSD  decimal.Decimal
	MinTradeSizeUSD  decimal.Decimal
	MaxTradeSizeUSD  decimal.Decimal
}

type crossDexMetrics struct {
	groupsEvaluated    metric.Int64Counter
	opportunitiesFound metric.Int64Counter
}

// CrossDexDetector finds a profitable buy-low/sell-high spread between
// pools that list the same pair on different DEXes.
type CrossDexDetector struct {
	cfg     CrossDexConfig
	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *crossDexMetrics
}

// NewCrossDexDetector builds a CrossDexDetector.
func NewCrossDexDetector(cfg CrossDexConfig, log logger.LoggerInterface) *CrossDexDetector {
	d := &CrossDexDetector{cfg: cfg, logger: log, tracer: otel.Tracer(tracerName)}
	_ = d.initMetrics()
	return d
}

func (d *CrossDexDetector) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	d.metrics = &crossDexMetrics{}

	if d.metrics.groupsEvaluated, err = meter.Int64Counter("cross_dex_groups_evaluated_total",
		metric.WithDescription("Same-pair pool groups evaluated for a cross-DEX spread")); err != nil {
		return err
	}
	if d.metrics.opportunitiesFound, err = meter.Int64Counter("cross_dex_opportunities_found_total",
		metric.WithDescription("Cross-DEX opportunities that passed the viability gate")); err != nil {
		return err
	}
	return nil
}

// Detect evaluates one pair's pools (across every DEX that lists it)
// for a profitable round trip: spread-filter, buy/sell selection,
// viability gate, then the optimizer. pools must all share a PairKey;
// returns nil if no candidate survives. gasCostUSD is the estimated
// cost of the two swaps at the current gas price.
func (d *CrossDexDetector) Detect(
	ctx context.Context,
	pools []pooldomain.Pool,
	nativeUSDPrice func(pooldomain.Token) (decimal.Decimal, bool),
	gasCostUSD decimal.Decimal,
) []detdomain.CrossDexDetails {
	ctx, span := d.tracer.Start(ctx, "cross_dex_detector.detect")
	defer span.End()

	if len(pools) < 2 {
		return nil
	}
	d.metrics.groupsEvaluated.Add(ctx, 1)

	prices := make([]decimal.Decimal, len(pools))
	liquidity := make([]decimal.Decimal, len(pools))
	for i, p := range pools {
		price, ok := p.Price()
		if !ok {
			return nil
		}
		prices[i] = price

		liq := decimal.Zero
		if usd, ok := nativeUSDPrice(p.TokenA); ok {
			liq = p.LiquidityUSD(usd)
		}
		liquidity[i] = liq
	}

	// Pool.Price() is tokenB received per tokenA spent on a marginal
	// swap, so tokenB is cheapest (most received per A) at the
	// highest-priced pool: that is where the buy (A->B) hop runs. The
	// lowest-priced pool yields the most A back per B, so the sell
	// (B->A) hop runs there.
	buyIdx, sellIdx := 0, 0
	for i := 1; i < len(pools); i++ {
		if prices[i].GreaterThan(prices[buyIdx]) {
			buyIdx = i
		}
		if prices[i].LessThan(prices[sellIdx]) {
			sellIdx = i
		}
	}
	if buyIdx == sellIdx {
		return nil
	}

	buy, sell := pools[buyIdx], pools[sellIdx]
	buyPrice, sellPrice := prices[buyIdx], prices[sellIdx]
	if sellPrice.IsZero() {
		return nil
	}

	spreadPercent := buyPrice.Sub(sellPrice).Div(sellPrice).Mul(decimal.NewFromInt(100))
	totalFeePercent := buy.SwapFee.Add(sell.SwapFee).Mul(decimal.NewFromInt(100))
	if spreadPercent.LessThanOrEqual(totalFeePercent.Add(d.cfg.MinProfitPercent)) {
		return nil
	}

	if liquidity[buyIdx].LessThan(d.cfg.MinLiquidityUSD) || liquidity[sellIdx].LessThan(d.cfg.MinLiquidityUSD) {
		return nil
	}

	tokenAUSD, ok := nativeUSDPrice(buy.TokenA)
	if !ok || tokenAUSD.IsZero() {
		return nil
	}

	xMin := usdToTokenUnits(d.cfg.MinTradeSizeUSD, tokenAUSD, buy.TokenA.Decimals)
	xMax := usdToTokenUnits(d.cfg.MaxTradeSizeUSD, tokenAUSD, buy.TokenA.Decimals)

	result := optapp.TwoPool(optapp.TwoPoolInput{
		Buy:          optapp.Leg{ReserveIn: buy.ReserveA, ReserveOut: buy.ReserveB, FeeBps: feeBps(buy.SwapFee)},
		Sell:         optapp.Leg{ReserveIn: sell.ReserveB, ReserveOut: sell.ReserveA, FeeBps: feeBps(sell.SwapFee)},
		XMin:         xMin,
		XMax:         xMax,
		FlashLoanFee: d.cfg.FlashLoanFee,
	})
	if result.NonFinite || result.NetProfit.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	tradeSizeUSD := tokenUnitsToUSD(result.OptimalInput, tokenAUSD, buy.TokenA.Decimals)
	grossProfitUSD := tokenUnitsToUSD(result.NetProfit.BigInt(), tokenAUSD, buy.TokenA.Decimals)
	netProfitUSD := grossProfitUSD.Sub(gasCostUSD)
	if netProfitUSD.LessThanOrEqual(decimal.NewFromInt(1)) {
		return nil
	}

	netROIPercent := decimal.Zero
	if !tradeSizeUSD.IsZero() {
		netROIPercent = netProfitUSD.Div(tradeSizeUSD).Mul(decimal.NewFromInt(100))
	}

	d.metrics.opportunitiesFound.Add(ctx, 1)
	span.SetAttributes(
		attribute.String("buy_dex", buy.DexName),
		attribute.String("sell_dex", sell.DexName),
		attribute.String("net_profit_usd", netProfitUSD.String()),
	)

	return []detdomain.CrossDexDetails{{
		PairKey:            buy.Pair,
		BuyDex:             buy.DexName,
		SellDex:            sell.DexName,
		BuyPool:            buy.Key,
		SellPool:           sell.Key,
		BuyPrice:           buyPrice,
		SellPrice:          sellPrice,
		OptimalInputAmount: result.OptimalInput,
		TradeSizeUSD:       tradeSizeUSD,
		GrossProfitUSD:     grossProfitUSD,
		GasCostUSD:         gasCostUSD,
		NetProfitUSD:       netProfitUSD,
		NetROIPercent:      netROIPercent,
	}}
}
