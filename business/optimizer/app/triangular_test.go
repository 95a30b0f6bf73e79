package app

import (
	"math/big"
	"testing"
)

func TestTriangular_FindsProfitableCycle(t *testing.T) {
	// base->mid1 1:1, mid1->mid2 1:1, mid2->base skewed so the cycle
	// returns more base than it spent.
	in := TriangularInput{
		Hop1: Leg{ReserveIn: big.NewInt(1_000_000), ReserveOut: big.NewInt(1_000_000), FeeBps: 30},
		Hop2: Leg{ReserveIn: big.NewInt(1_000_000), ReserveOut: big.NewInt(1_000_000), FeeBps: 30},
		Hop3: Leg{ReserveIn: big.NewInt(1_000_000), ReserveOut: big.NewInt(1_100_000), FeeBps: 30},
		XMin: big.NewInt(1),
		XMax: big.NewInt(500_000),
	}

	result := Triangular(in)
	if result.NetProfit.Sign() <= 0 {
		t.Fatalf("expected a profitable cycle, got net profit %s at input %s", result.NetProfit, result.OptimalInput)
	}
}

func TestTriangular_NoArbitrageYieldsZero(t *testing.T) {
	leg := Leg{ReserveIn: big.NewInt(1_000_000), ReserveOut: big.NewInt(1_000_000), FeeBps: 30}
	in := TriangularInput{
		Hop1: leg,
		Hop2: leg,
		Hop3: leg,
		XMin: big.NewInt(1),
		XMax: big.NewInt(500_000),
	}

	result := Triangular(in)
	if result.NetProfit.Sign() > 0 {
		t.Errorf("expected no profitable cycle with matching reserves and fees, got %s", result.NetProfit)
	}
}

func TestTriangular_DegenerateBoundsReturnsZeroResult(t *testing.T) {
	leg := Leg{ReserveIn: big.NewInt(1_000), ReserveOut: big.NewInt(1_000), FeeBps: 30}
	in := TriangularInput{
		Hop1: leg,
		Hop2: leg,
		Hop3: leg,
		XMin: big.NewInt(1000),
		XMax: big.NewInt(1),
	}

	result := Triangular(in)
	if result.OptimalInput.Sign() != 0 || !result.NetProfit.IsZero() {
		t.Errorf("expected zero result for degenerate bounds, got input %s profit %s", result.OptimalInput, result.NetProfit)
	}
}
