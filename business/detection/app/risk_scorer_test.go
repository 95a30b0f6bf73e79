package app

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbdetectd/business/detection/domain"
)

func decUSD(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestRiskScorer_Score(t *testing.T) {
	tests := []struct {
		name               string
		in                 ScoreInput
		wantRiskLevel      domain.RiskLevel
		wantCompetition    domain.CompetitionLevel
		wantRecommendation domain.Recommendation
		wantProbability    float64
		wantEV             float64
		tolerance          float64
	}{
		{
			name: "low risk low competition executes",
			in: ScoreInput{
				NetProfitUSD:        decUSD(15),
				GasCostUSD:          decUSD(1),
				TradeSizeUSD:        decUSD(500),
				MinLiquidityUSD:     decUSD(50000),
				SpreadPercent:       decUSD(0.3),
				TimingScore:         0.8,
				PriceStabilityScore: 0.9,
				SlippageScore:       0.9,
			},
			wantRiskLevel:      domain.RiskLow,
			wantCompetition:    domain.CompetitionLow,
			wantRecommendation: domain.RecommendExecute,
			wantProbability:    0.764,
			wantEV:             10.3072,
			tolerance:          0.0005,
		},
		{
			name: "thin edge high competition skips",
			in: ScoreInput{
				NetProfitUSD:        decUSD(2),
				GasCostUSD:          decUSD(0.5),
				TradeSizeUSD:        decUSD(6000),
				MinLiquidityUSD:     decUSD(50000),
				SpreadPercent:       decUSD(3),
				TimingScore:         0.1,
				PriceStabilityScore: 0.1,
				SlippageScore:       0.1,
			},
			wantRiskLevel:      domain.RiskMedium,
			wantCompetition:    domain.CompetitionHigh,
			wantRecommendation: domain.RecommendSkip,
			wantProbability:    0.217,
			wantEV:             -0.0768,
			tolerance:          0.0005,
		},
		{
			name: "moderate profit moderate risk executes with caution",
			in: ScoreInput{
				NetProfitUSD:        decUSD(25),
				GasCostUSD:          decUSD(2),
				TradeSizeUSD:        decUSD(1500),
				MinLiquidityUSD:     decUSD(100000),
				SpreadPercent:       decUSD(1.5),
				TimingScore:         0.6,
				PriceStabilityScore: 0.6,
				SlippageScore:       0.6,
			},
			wantRiskLevel:      domain.RiskMedium,
			wantCompetition:    domain.CompetitionMedium,
			wantRecommendation: domain.RecommendExecuteWithCaution,
			wantProbability:    0.5275,
			wantEV:             9.4402,
			tolerance:          0.001,
		},
	}

	s := NewRiskScorer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := s.Score(tt.in)

			if report.RiskLevel != tt.wantRiskLevel {
				t.Errorf("RiskLevel = %v, want %v", report.RiskLevel, tt.wantRiskLevel)
			}
			if report.CompetitionLevel != tt.wantCompetition {
				t.Errorf("CompetitionLevel = %v, want %v", report.CompetitionLevel, tt.wantCompetition)
			}
			if report.Recommendation != tt.wantRecommendation {
				t.Errorf("Recommendation = %v, want %v", report.Recommendation, tt.wantRecommendation)
			}
			if diff := report.SuccessProbability - tt.wantProbability; diff > tt.tolerance || diff < -tt.tolerance {
				t.Errorf("SuccessProbability = %v, want %v (tolerance %v)", report.SuccessProbability, tt.wantProbability, tt.tolerance)
			}
			evFloat, _ := report.ExpectedValueUSD.Float64()
			if diff := evFloat - tt.wantEV; diff > tt.tolerance*10 || diff < -tt.tolerance*10 {
				t.Errorf("ExpectedValueUSD = %v, want %v", evFloat, tt.wantEV)
			}
		})
	}
}

func TestRiskScorer_recommendSkipsAboveCompetitorThreshold(t *testing.T) {
	got := recommend(0.9, domain.RiskLow, decUSD(100), 6)
	if got != domain.RecommendSkip {
		t.Errorf("recommend with 6 competitors = %v, want Skip", got)
	}
}

func TestRiskScorer_recommendSkipsOnExtremeRisk(t *testing.T) {
	got := recommend(0.9, domain.RiskExtreme, decUSD(100), 0)
	if got != domain.RecommendSkip {
		t.Errorf("recommend with RiskExtreme = %v, want Skip", got)
	}
}

func TestRiskScorer_backrunRiskZeroLiquidity(t *testing.T) {
	if r := backrunRisk(decUSD(1000), decimal.Zero); r != 0 {
		t.Errorf("backrunRisk with zero liquidity = %v, want 0", r)
	}
}

func TestRiskScorer_aggregateRiskClampsToOne(t *testing.T) {
	if r := aggregateRisk(1, 1, 1); r != 1 {
		t.Errorf("aggregateRisk(1,1,1) = %v, want 1", r)
	}
}
