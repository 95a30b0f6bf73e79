package app

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// feeBps converts a decimal swap fee (e.g. 0.003) to basis points
// (30), the unit optimizer.Leg expects.
func feeBps(fee decimal.Decimal) int64 {
	bps := fee.Mul(decimal.NewFromInt(10000))
	f, _ := bps.Float64()
	return int64(f)
}

// usdToTokenUnits converts a USD amount into a token's smallest unit,
// given that token's USD price. Used to translate the configured
// min/max trade size (USD) into the optimizer's search bounds.
func usdToTokenUnits(usd, usdPrice decimal.Decimal, decimals uint8) *big.Int {
	if usdPrice.IsZero() {
		return big.NewInt(0)
	}
	tokens := usd.Div(usdPrice)
	scaled := tokens.Mul(decimal.NewFromBigInt(big.NewInt(1), int32(decimals)))
	return scaled.BigInt()
}

// tokenUnitsToUSD is usdToTokenUnits's inverse, used to price an
// optimizer result back into USD.
func tokenUnitsToUSD(amount *big.Int, usdPrice decimal.Decimal, decimals uint8) decimal.Decimal {
	norm := decimal.NewFromBigInt(amount, -int32(decimals))
	return norm.Mul(usdPrice)
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
