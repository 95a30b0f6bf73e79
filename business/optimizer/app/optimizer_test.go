package app

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func TestTwoPool_FindsProfitableInput(t *testing.T) {
	// Pool A: 100 tokenX / 100 tokenY (underpriced Y)
	// Pool B: 100 tokenY / 120 tokenX (sell Y back into X at a premium)
	in := TwoPoolInput{
		Buy:          Leg{ReserveIn: big.NewInt(100_000_000), ReserveOut: big.NewInt(100_000_000), FeeBps: 30},
		Sell:         Leg{ReserveIn: big.NewInt(100_000_000), ReserveOut: big.NewInt(120_000_000), FeeBps: 30},
		XMin:         big.NewInt(1),
		XMax:         big.NewInt(10_000_000),
		FlashLoanFee: decimal.NewFromFloat(0.0025),
	}

	result := TwoPool(in)

	if result.NetProfit.LessThanOrEqual(decimal.Zero) {
		t.Fatalf("expected a profitable cycle, got net profit %s at input %s", result.NetProfit, result.OptimalInput)
	}
	if result.OptimalInput.Cmp(in.XMin) < 0 || result.OptimalInput.Cmp(in.XMax) > 0 {
		t.Fatalf("optimal input %s out of bounds [%s, %s]", result.OptimalInput, in.XMin, in.XMax)
	}
}

func TestTwoPool_NoArbitrageYieldsZero(t *testing.T) {
	// Identical pools on both legs: any round trip loses to fees.
	leg := Leg{ReserveIn: big.NewInt(1_000_000), ReserveOut: big.NewInt(1_000_000), FeeBps: 30}
	in := TwoPoolInput{
		Buy:          leg,
		Sell:         Leg{ReserveIn: big.NewInt(1_000_000), ReserveOut: big.NewInt(1_000_000), FeeBps: 30},
		XMin:         big.NewInt(1),
		XMax:         big.NewInt(500_000),
		FlashLoanFee: decimal.NewFromFloat(0.0025),
	}

	result := TwoPool(in)
	if result.NetProfit.GreaterThan(decimal.Zero) {
		t.Errorf("expected no profitable input, got %s at %s", result.NetProfit, result.OptimalInput)
	}
}

func TestTwoPool_DegenerateBoundsReturnsZeroResult(t *testing.T) {
	in := TwoPoolInput{
		Buy:  Leg{ReserveIn: big.NewInt(100), ReserveOut: big.NewInt(100), FeeBps: 30},
		Sell: Leg{ReserveIn: big.NewInt(100), ReserveOut: big.NewInt(100), FeeBps: 30},
		XMin: big.NewInt(100),
		XMax: big.NewInt(10),
	}

	result := TwoPool(in)
	if result.OptimalInput.Sign() != 0 || !result.NetProfit.IsZero() {
		t.Errorf("expected zero result for degenerate bounds, got input %s profit %s", result.OptimalInput, result.NetProfit)
	}
}

func TestGridPointsIn_SpansBounds(t *testing.T) {
	min := big.NewInt(10)
	max := big.NewInt(1000)

	points := gridPointsIn(min, max)
	if len(points) != gridPoints {
		t.Fatalf("expected %d points, got %d", gridPoints, len(points))
	}
	if points[0].Cmp(min) != 0 {
		t.Errorf("first point = %s, want %s", points[0], min)
	}
	if points[len(points)-1].Cmp(max) != 0 {
		t.Errorf("last point = %s, want %s", points[len(points)-1], max)
	}
}
