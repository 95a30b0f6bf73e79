package app

import (
	"github.com/shopspring/decimal"

	"github.com/fd1az/arbdetectd/business/detection/domain"
)

// RiskScorer computes MEV/competition risk and success probability
// for a candidate opportunity. It is pure: every input it needs is
// passed explicitly, mirroring ProfitOptimizer's no-port design.
type RiskScorer struct{}

// NewRiskScorer creates a RiskScorer. It holds no state.
func NewRiskScorer() *RiskScorer {
	return &RiskScorer{}
}

// ScoreInput bundles everything RiskScorer needs about a candidate;
// fields not applicable to a given opportunity kind are left zero.
type ScoreInput struct {
	NetProfitUSD    decimal.Decimal
	GasCostUSD      decimal.Decimal
	TradeSizeUSD    decimal.Decimal
	MinLiquidityUSD decimal.Decimal
	SpreadPercent   decimal.Decimal

	// Success-probability inputs, each pre-scored to [0,1] by the
	// caller (the orchestrator has the context — block timing,
	// recent competing fills, price stability window — to produce
	// these; RiskScorer only combines them).
	TimingScore         float64
	PriceStabilityScore float64
	SlippageScore       float64
}

// Score computes the full RiskReport for one candidate.
func (s *RiskScorer) Score(in ScoreInput) domain.RiskReport {
	frontrun := frontrunRisk(in.NetProfitUSD)
	sandwich := sandwichRisk(in.TradeSizeUSD)
	backrun := backrunRisk(in.TradeSizeUSD, in.MinLiquidityUSD)

	riskFactor := aggregateRisk(frontrun, sandwich, backrun)
	riskLevel := classifyRisk(riskFactor)

	competitionLevel, competitionScore := classifyCompetition(in.SpreadPercent)

	mevLoss := in.NetProfitUSD.Mul(decimal.NewFromFloat(riskFactor))

	competitionScoreForSuccess := 1 - competitionScore // lower competition -> higher success
	profitScore := profitabilityScore(in.NetProfitUSD)
	successProbability := successProbability(
		in.TimingScore,
		competitionScoreForSuccess,
		1-riskFactor, // mev component: less MEV risk -> higher success
		in.PriceStabilityScore,
		in.SlippageScore,
		profitScore,
	)

	gasCostSigned := in.GasCostUSD
	ev := expectedValue(in.NetProfitUSD, gasCostSigned, mevLoss, successProbability)

	recommendation := recommend(successProbability, riskLevel, in.NetProfitUSD, 0)

	return domain.RiskReport{
		FrontrunRisk:       frontrun,
		SandwichRisk:       sandwich,
		BackrunRisk:        backrun,
		RiskFactor:         riskFactor,
		RiskLevel:          riskLevel,
		CompetitionLevel:   competitionLevel,
		CompetitionScore:   competitionScore,
		ExpectedMEVLossUSD: mevLoss,
		SuccessProbability: successProbability,
		ExpectedValueUSD:   ev,
		Recommendation:     recommendation,
	}
}

func frontrunRisk(netProfitUSD decimal.Decimal) float64 {
	switch {
	case netProfitUSD.GreaterThan(decimal.NewFromInt(50)):
		return 0.6
	case netProfitUSD.GreaterThan(decimal.NewFromInt(20)):
		return 0.4
	case netProfitUSD.GreaterThan(decimal.NewFromInt(5)):
		return 0.2
	default:
		return 0
	}
}

func sandwichRisk(tradeSizeUSD decimal.Decimal) float64 {
	switch {
	case tradeSizeUSD.GreaterThan(decimal.NewFromInt(5000)):
		return 0.5
	case tradeSizeUSD.GreaterThan(decimal.NewFromInt(2000)):
		return 0.3
	case tradeSizeUSD.GreaterThan(decimal.NewFromInt(1000)):
		return 0.15
	default:
		return 0
	}
}

func backrunRisk(tradeSizeUSD, minLiquidityUSD decimal.Decimal) float64 {
	if minLiquidityUSD.IsZero() {
		return 0
	}
	impact := tradeSizeUSD.Div(minLiquidityUSD)
	switch {
	case impact.GreaterThan(decimal.NewFromFloat(0.05)):
		return 0.4
	case impact.GreaterThan(decimal.NewFromFloat(0.02)):
		return 0.2
	default:
		return 0
	}
}

func aggregateRisk(frontrun, sandwich, backrun float64) float64 {
	risk := 0.4*frontrun + 0.35*sandwich + 0.25*backrun
	if risk > 1 {
		return 1
	}
	return risk
}

func classifyRisk(riskFactor float64) domain.RiskLevel {
	switch {
	case riskFactor > 0.4:
		return domain.RiskHigh
	case riskFactor > 0.2:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

func classifyCompetition(spreadPercent decimal.Decimal) (domain.CompetitionLevel, float64) {
	switch {
	case spreadPercent.GreaterThan(decimal.NewFromInt(2)):
		return domain.CompetitionHigh, 0.9
	case spreadPercent.GreaterThan(decimal.NewFromInt(1)):
		return domain.CompetitionMedium, 0.7
	case spreadPercent.GreaterThan(decimal.NewFromFloat(0.5)):
		return domain.CompetitionModerate, 0.5
	default:
		return domain.CompetitionLow, 0.3
	}
}

// profitabilityScore maps net profit to [0,1] for the success-
// probability "profit" component: $0 scores 0, $100+ saturates at 1.
func profitabilityScore(netProfitUSD decimal.Decimal) float64 {
	f, _ := netProfitUSD.Div(decimal.NewFromInt(100)).Float64()
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// successProbability combines the six weighted components per
// spec.md §4.8: timing(0.15), competition(0.25), mev(0.20),
// price_stability(0.15), slippage(0.15), profit(0.10).
func successProbability(timing, competition, mev, priceStability, slippage, profit float64) float64 {
	p := 0.15*timing + 0.25*competition + 0.20*mev + 0.15*priceStability + 0.15*slippage + 0.10*profit
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

func expectedValue(netProfitUSD, gasCostUSD, mevLossUSD decimal.Decimal, p float64) decimal.Decimal {
	prob := decimal.NewFromFloat(p)
	oneMinusProb := decimal.NewFromFloat(1 - p)
	return netProfitUSD.Mul(prob).Sub(gasCostUSD.Mul(oneMinusProb)).Sub(mevLossUSD.Mul(prob))
}

// recommend applies spec.md §4.8's threshold table. competitorCount is
// reserved for an external competing-bot counter; 0 disables that
// branch until the orchestrator wires a real estimate.
func recommend(p float64, riskLevel domain.RiskLevel, netProfitUSD decimal.Decimal, competitorCount int) domain.Recommendation {
	if competitorCount > 5 || riskLevel == domain.RiskExtreme || p < 0.3 {
		return domain.RecommendSkip
	}
	if p >= 0.7 && riskLevel != domain.RiskHigh {
		return domain.RecommendExecute
	}
	if p >= 0.5 && netProfitUSD.GreaterThan(decimal.NewFromInt(10)) {
		return domain.RecommendExecuteWithCaution
	}
	return domain.RecommendEvaluate
}
