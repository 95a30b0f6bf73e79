package app

import (
	"math/big"

	"github.com/shopspring/decimal"

	optdomain "github.com/fd1az/arbdetectd/business/optimizer/domain"
)

// TriangularInput bounds and describes a 3-hop cycle base -> mid1 ->
// mid2 -> base. Each hop may carry its own fee (cross-DEX triangular).
type TriangularInput struct {
	Hop1 Leg
	Hop2 Leg
	Hop3 Leg
	XMin *big.Int
	XMax *big.Int
}

// Triangular finds the input amount in [XMin, XMax] maximizing
// P(x) = out_3(x) - x, via grid search with early exit once profit
// starts decreasing after an increase (the function is unimodal for a
// constant-product cycle).
func Triangular(in TriangularInput) Result {
	if in.XMin == nil || in.XMax == nil || in.XMax.Cmp(in.XMin) <= 0 {
		return zeroResult()
	}

	profitAt := func(x *big.Int) decimal.Decimal {
		return triangularProfit(x, in)
	}

	points := gridPointsIn(in.XMin, in.XMax)

	best := points[0]
	bestProfit := profitAt(best)
	increasing := false

	for i := 1; i < len(points); i++ {
		p := profitAt(points[i])
		if p.GreaterThan(bestProfit) {
			best, bestProfit = points[i], p
			increasing = true
			continue
		}
		if increasing {
			break
		}
	}

	best, bestProfit = goldenSectionRefine(best, in.XMin, in.XMax, profitAt)

	if bestProfit.IsZero() && best.Sign() == 0 {
		return zeroResult()
	}
	return Result{OptimalInput: best, NetProfit: bestProfit}
}

func triangularProfit(x *big.Int, in TriangularInput) decimal.Decimal {
	if x.Sign() <= 0 {
		return decimal.Zero
	}
	h1 := optdomain.Out(x, in.Hop1.ReserveIn, in.Hop1.ReserveOut, in.Hop1.FeeBps)
	h2 := optdomain.Out(h1, in.Hop2.ReserveIn, in.Hop2.ReserveOut, in.Hop2.FeeBps)
	h3 := optdomain.Out(h2, in.Hop3.ReserveIn, in.Hop3.ReserveOut, in.Hop3.FeeBps)

	profit := decimal.NewFromBigInt(h3, 0).Sub(decimal.NewFromBigInt(x, 0))
	f, _ := profit.Float64()
	if isNonFinite(f) {
		return decimal.Zero
	}
	return profit
}
