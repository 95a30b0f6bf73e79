// Package domain holds the pure constant-product AMM math shared by
// the two-pool and triangular profit optimizers.
package domain

import "math/big"

// FeeBpsDenominator is the basis-point scale swap fees are expressed
// in (e.g. a 0.3% fee is 30 basis points out of 10000).
const FeeBpsDenominator = 10000

// Out computes the constant-product AMM output for input x against a
// pool with reserves (rIn, rOut) and swap fee feeBps (basis points):
//
//	out(x) = floor((x * (10000 - feeBps) * rOut) / (rIn*10000 + x*(10000 - feeBps)))
//
// All arithmetic is exact integer arithmetic; x, rIn, rOut must be
// non-negative. Returns zero if rIn and rOut are both zero (no
// liquidity) or x is non-positive.
func Out(x, rIn, rOut *big.Int, feeBps int64) *big.Int {
	if x.Sign() <= 0 || rIn.Sign() < 0 || rOut.Sign() < 0 {
		return big.NewInt(0)
	}
	gammaBps := big.NewInt(FeeBpsDenominator - feeBps)
	if gammaBps.Sign() <= 0 {
		return big.NewInt(0)
	}

	numerator := new(big.Int).Mul(x, gammaBps)
	numerator.Mul(numerator, rOut)

	denominator := new(big.Int).Mul(rIn, big.NewInt(FeeBpsDenominator))
	xGamma := new(big.Int).Mul(x, gammaBps)
	denominator.Add(denominator, xGamma)

	if denominator.Sign() == 0 {
		return big.NewInt(0)
	}

	result := new(big.Int).Div(numerator, denominator)
	return result
}
