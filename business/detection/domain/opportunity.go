// Package domain holds the detection context's output types: the
// three-variant Opportunity union and its embedded RiskReport.
package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	pooldomain "github.com/fd1az/arbdetectd/business/pool/domain"
)

// Kind discriminates the three opportunity variants.
type Kind string

const (
	KindCrossDex           Kind = "cross_dex"
	KindTriangular         Kind = "triangular"
	KindCrossDexTriangular Kind = "cross_dex_triangular"
)

// Source identifies what triggered detection of an opportunity.
type Source string

const (
	SourceBlock                 Source = "block"
	SourceSyncEvent             Source = "sync_event"
	SourceCorrelationPredictive Source = "correlation_predictive"
	SourceDifferential          Source = "differential"
)

// CrossDexDetails is the CrossDex variant: buy on one pool, sell on
// another, same pair.
type CrossDexDetails struct {
	PairKey            pooldomain.PairKey
	BuyDex             string
	SellDex            string
	BuyPool            pooldomain.PoolKey
	SellPool           pooldomain.PoolKey
	BuyPrice           decimal.Decimal
	SellPrice          decimal.Decimal
	OptimalInputAmount *big.Int
	TradeSizeUSD       decimal.Decimal
	GrossProfitUSD     decimal.Decimal
	GasCostUSD         decimal.Decimal
	NetProfitUSD       decimal.Decimal
	NetROIPercent      decimal.Decimal
}

// TriangularDetails is the Triangular variant: a 3-hop cycle confined
// to a single DEX.
type TriangularDetails struct {
	BaseToken          common.Address
	Mid1               common.Address
	Mid2               common.Address
	DexName            string
	Pools              [3]pooldomain.PoolKey
	PathRates          [3]decimal.Decimal
	CycleProduct       decimal.Decimal
	OptimalInputAmount *big.Int
	TradeSizeUSD       decimal.Decimal
	NetProfitUSD       decimal.Decimal
	NetROIPercent      decimal.Decimal
}

// CrossDexTriangularDetails is the CrossDexTriangular variant: the
// same 3-hop cycle shape, but the hops are not all on the same DEX.
type CrossDexTriangularDetails struct {
	Path               [4]common.Address
	DexPath            [3]string
	Pools              [3]pooldomain.PoolKey
	PerHopFees         [3]decimal.Decimal
	CycleProduct       decimal.Decimal
	OptimalInputAmount *big.Int
	TradeSizeUSD       decimal.Decimal
	NetProfitUSD       decimal.Decimal
	NetROIPercent      decimal.Decimal
}

// Opportunity is the tagged union emitted by DetectionOrchestrator.
// Exactly one of CrossDex / Triangular / CrossDexTriangular is set,
// selected by Kind.
type Opportunity struct {
	Kind               Kind
	BlockNumber        uint64
	DetectedAtWallMs   int64
	Source             Source
	CrossDex           *CrossDexDetails
	Triangular         *TriangularDetails
	CrossDexTriangular *CrossDexTriangularDetails
	Risk               RiskReport
}

// NetProfitUSD dispatches to the set variant's net profit field.
func (o *Opportunity) NetProfitUSD() decimal.Decimal {
	switch o.Kind {
	case KindCrossDex:
		return o.CrossDex.NetProfitUSD
	case KindTriangular:
		return o.Triangular.NetProfitUSD
	case KindCrossDexTriangular:
		return o.CrossDexTriangular.NetProfitUSD
	default:
		return decimal.Zero
	}
}

// TradeSizeUSD dispatches to the set variant's trade size field.
func (o *Opportunity) TradeSizeUSD() decimal.Decimal {
	switch o.Kind {
	case KindCrossDex:
		return o.CrossDex.TradeSizeUSD
	case KindTriangular:
		return o.Triangular.TradeSizeUSD
	case KindCrossDexTriangular:
		return o.CrossDexTriangular.TradeSizeUSD
	default:
		return decimal.Zero
	}
}

// SourcePoolKeys returns the pool set the opportunity was derived
// from, used as half of the dedup key (source_pool_set, kind).
func (o *Opportunity) SourcePoolKeys() []pooldomain.PoolKey {
	switch o.Kind {
	case KindCrossDex:
		return []pooldomain.PoolKey{o.CrossDex.BuyPool, o.CrossDex.SellPool}
	case KindTriangular:
		return o.Triangular.Pools[:]
	case KindCrossDexTriangular:
		return o.CrossDexTriangular.Pools[:]
	default:
		return nil
	}
}

// DedupKey identifies an opportunity for the orchestrator's
// sort+dedup pass: (source_pool_set, opportunity_type). Pool keys are
// sorted so hop order doesn't produce spurious duplicates.
func (o *Opportunity) DedupKey() string {
	pools := append([]pooldomain.PoolKey(nil), o.SourcePoolKeys()...)
	sortPoolKeys(pools)
	key := string(o.Kind)
	for _, p := range pools {
		key += "|" + string(p)
	}
	return key
}

func sortPoolKeys(keys []pooldomain.PoolKey) {
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
}

// RiskLevel classifies aggregate MEV exposure.
type RiskLevel string

const (
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
	RiskExtreme RiskLevel = "extreme"
)

// CompetitionLevel classifies how contested an opportunity is likely
// to be by other searchers.
type CompetitionLevel string

const (
	CompetitionLow      CompetitionLevel = "low"
	CompetitionModerate CompetitionLevel = "moderate"
	CompetitionMedium   CompetitionLevel = "medium"
	CompetitionHigh     CompetitionLevel = "high"
)

// Recommendation is RiskScorer's final verdict.
type Recommendation string

const (
	RecommendExecute            Recommendation = "EXECUTE"
	RecommendExecuteWithCaution Recommendation = "EXECUTE_WITH_CAUTION"
	RecommendEvaluate           Recommendation = "EVALUATE"
	RecommendSkip               Recommendation = "SKIP"
)

// RiskReport is embedded in every Opportunity.
type RiskReport struct {
	FrontrunRisk       float64
	SandwichRisk       float64
	BackrunRisk        float64
	RiskFactor         float64
	RiskLevel          RiskLevel
	CompetitionLevel   CompetitionLevel
	CompetitionScore   float64
	ExpectedMEVLossUSD decimal.Decimal
	SuccessProbability float64
	ExpectedValueUSD   decimal.Decimal
	Recommendation     Recommendation
}

// MEVAdjustedScore is the ranking key used when ExpectedValueUSD is
// unavailable (e.g. success probability could not be computed):
// net_profit_usd * (1 - risk_factor) / max(0.1, competition_score).
func MEVAdjustedScore(netProfitUSD decimal.Decimal, risk RiskReport) decimal.Decimal {
	denom := risk.CompetitionScore
	if denom < 0.1 {
		denom = 0.1
	}
	factor := decimal.NewFromFloat(1 - risk.RiskFactor).Div(decimal.NewFromFloat(denom))
	return netProfitUSD.Mul(factor)
}
