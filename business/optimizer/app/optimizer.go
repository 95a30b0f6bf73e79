// Package app implements ProfitOptimizer: given a set of AMM legs,
// search for the input amount that maximizes net profit after fees
// and the flash-loan premium. The optimizer is pure — it never reads
// ReserveStore, a catalog, or wall time; every input is passed in.
package app

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	optdomain "github.com/fd1az/arbdetectd/business/optimizer/domain"
)

// safeIntegerThreshold mirrors the platform safe-integer boundary
// (2^53): reserves beyond this cannot round-trip through float64
// without losing precision, so the analytical seed is skipped above it.
var safeIntegerThreshold = new(big.Int).Lsh(big.NewInt(1), 53)

const (
	gridPoints          = 50
	goldenIterations    = 5
	goldenWindowPercent = 0.20
)

var goldenRatio = (math.Sqrt(5) - 1) / 2

// Leg is one AMM hop: reserves and swap fee in basis points.
type Leg struct {
	ReserveIn  *big.Int
	ReserveOut *big.Int
	FeeBps     int64
}

// TwoPoolInput bounds and describes a buy-then-sell cycle: buy token B
// with token A on Buy, sell token B for token A on Sell.
type TwoPoolInput struct {
	Buy          Leg
	Sell         Leg
	XMin         *big.Int
	XMax         *big.Int
	FlashLoanFee decimal.Decimal // phi, e.g. 0.0025
}

// Result is the optimizer's output: the argmax input and the profit
// it realizes, both in the input token's smallest unit. Per the
// optimizer's fail-closed numeric rule, a sampled input whose profit
// is non-finite scores zero profit; TwoPool and Triangular never set
// NonFinite themselves.
type Result struct {
	OptimalInput *big.Int
	NetProfit    decimal.Decimal
	NonFinite    bool
}

// zeroResult is returned whenever bounds are degenerate or search
// cannot proceed; it represents "no profitable trade found" rather
// than an error, consistent with the fail-closed numeric rule.
func zeroResult() Result {
	return Result{OptimalInput: big.NewInt(0), NetProfit: decimal.Zero}
}

// TwoPool finds the input amount in [XMin, XMax] maximizing
// P(x) = out(out(x; buy), sell) - x*(1+phi).
func TwoPool(in TwoPoolInput) Result {
	if in.XMin == nil || in.XMax == nil || in.XMax.Cmp(in.XMin) <= 0 {
		return zeroResult()
	}

	profitAt := func(x *big.Int) decimal.Decimal {
		return twoPoolProfit(x, in)
	}

	best := in.XMin
	bestProfit := profitAt(best)

	if seed, ok := analyticalSeed(in); ok {
		if p := profitAt(seed); p.GreaterThan(bestProfit) {
			best, bestProfit = seed, p
		}
	}

	for _, x := range gridPointsIn(in.XMin, in.XMax) {
		p := profitAt(x)
		if p.GreaterThan(bestProfit) {
			best, bestProfit = x, p
		}
	}

	best, bestProfit = goldenSectionRefine(best, in.XMin, in.XMax, profitAt)

	if bestProfit.IsZero() && best.Sign() == 0 {
		return zeroResult()
	}
	return Result{OptimalInput: best, NetProfit: bestProfit}
}

func twoPoolProfit(x *big.Int, in TwoPoolInput) decimal.Decimal {
	if x.Sign() <= 0 {
		return decimal.Zero
	}
	mid := optdomain.Out(x, in.Buy.ReserveIn, in.Buy.ReserveOut, in.Buy.FeeBps)
	out := optdomain.Out(mid, in.Sell.ReserveIn, in.Sell.ReserveOut, in.Sell.FeeBps)

	cost := decimal.NewFromBigInt(x, 0).Mul(decimal.NewFromInt(1).Add(in.FlashLoanFee))
	profit := decimal.NewFromBigInt(out, 0).Sub(cost)

	f, _ := profit.Float64()
	if isNonFinite(f) {
		return decimal.Zero
	}
	return profit
}

// isNonFinite reports whether f is NaN or infinite, the trigger for
// this package's fail-closed numeric rule.
func isNonFinite(f float64) bool {
	return math.IsNaN(f) || math.IsInf(f, 0)
}

// analyticalSeed computes the closed-form optimum for two constant
// product pools, skipping when any reserve exceeds the safe-integer
// threshold (the computation itself is float64-based).
func analyticalSeed(in TwoPoolInput) (*big.Int, bool) {
	for _, r := range []*big.Int{in.Buy.ReserveIn, in.Buy.ReserveOut, in.Sell.ReserveIn, in.Sell.ReserveOut} {
		if r == nil || r.CmpAbs(safeIntegerThreshold) > 0 {
			return nil, false
		}
	}

	rInBuy, _ := new(big.Float).SetInt(in.Buy.ReserveIn).Float64()
	rOutBuy, _ := new(big.Float).SetInt(in.Buy.ReserveOut).Float64()
	rInSell, _ := new(big.Float).SetInt(in.Sell.ReserveIn).Float64()
	rOutSell, _ := new(big.Float).SetInt(in.Sell.ReserveOut).Float64()

	gammaBuy := float64(optdomain.FeeBpsDenominator-in.Buy.FeeBps) / optdomain.FeeBpsDenominator
	gammaSell := float64(optdomain.FeeBpsDenominator-in.Sell.FeeBps) / optdomain.FeeBpsDenominator

	product := rInBuy * rOutBuy * rInSell * rOutSell * gammaBuy * gammaSell
	if product < 0 || math.IsNaN(product) || math.IsInf(product, 0) {
		return nil, false
	}

	seed := math.Sqrt(product) - rInBuy*math.Sqrt(gammaBuy*gammaSell)
	if math.IsNaN(seed) || math.IsInf(seed, 0) || seed <= 0 {
		return nil, false
	}

	rounded, _ := big.NewFloat(seed).Int(nil)
	if rounded.Cmp(in.XMin) < 0 {
		rounded = new(big.Int).Set(in.XMin)
	}
	if rounded.Cmp(in.XMax) > 0 {
		rounded = new(big.Int).Set(in.XMax)
	}
	return rounded, true
}

// gridPointsIn returns gridPoints evenly spaced integer samples in
// [min, max] inclusive.
func gridPointsIn(min, max *big.Int) []*big.Int {
	span := new(big.Int).Sub(max, min)
	out := make([]*big.Int, 0, gridPoints)
	for i := 0; i < gridPoints; i++ {
		step := new(big.Int).Mul(span, big.NewInt(int64(i)))
		step.Div(step, big.NewInt(gridPoints-1))
		x := new(big.Int).Add(min, step)
		out = append(out, x)
	}
	return out
}

// goldenSectionRefine narrows a ±20% window around seed over 5
// iterations using the golden-section rule, clamped to [lo, hi].
func goldenSectionRefine(seed, lo, hi *big.Int, profitAt func(*big.Int) decimal.Decimal) (*big.Int, decimal.Decimal) {
	seedF := new(big.Float).SetInt(seed)
	seedVal, _ := seedF.Float64()
	if seedVal <= 0 {
		return seed, profitAt(seed)
	}

	windowLo := seedVal * (1 - goldenWindowPercent)
	windowHi := seedVal * (1 + goldenWindowPercent)

	loF, _ := new(big.Float).SetInt(lo).Float64()
	hiF, _ := new(big.Float).SetInt(hi).Float64()
	if windowLo < loF {
		windowLo = loF
	}
	if windowHi > hiF {
		windowHi = hiF
	}
	if windowHi <= windowLo {
		return seed, profitAt(seed)
	}

	a, b := windowLo, windowHi
	c := b - goldenRatio*(b-a)
	d := a + goldenRatio*(b-a)

	toInt := func(v float64) *big.Int {
		r, _ := big.NewFloat(v).Int(nil)
		return r
	}

	fc := profitAt(toInt(c))
	fd := profitAt(toInt(d))

	for i := 0; i < goldenIterations; i++ {
		if fc.GreaterThan(fd) {
			b = d
			d = c
			fd = fc
			c = b - goldenRatio*(b-a)
			fc = profitAt(toInt(c))
		} else {
			a = c
			c = d
			fc = fd
			d = a + goldenRatio*(b-a)
			fd = profitAt(toInt(d))
		}
	}

	best := toInt((a + b) / 2)
	bestProfit := profitAt(best)

	seedProfit := profitAt(seed)
	if seedProfit.GreaterThan(bestProfit) {
		return seed, seedProfit
	}
	return best, bestProfit
}
