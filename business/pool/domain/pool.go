package domain

import (
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/arbdetectd/internal/apperror"
)

// MaxUint112 bounds the reserves field: Sync payloads encode each side as
// a uint112, matching the on-chain AMM's packed storage slot.
var MaxUint112 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 112), big.NewInt(1))

// PairKey identifies a token pair independent of which DEX lists it,
// built from the two token addresses in canonical (lower-first) order.
type PairKey string

// NewPairKey canonicalizes tokenA/tokenB into a stable pair identity.
func NewPairKey(a, b common.Address) PairKey {
	if common.BytesToHash(a.Bytes()).Big().Cmp(common.BytesToHash(b.Bytes()).Big()) > 0 {
		a, b = b, a
	}
	return PairKey(a.Hex() + "-" + b.Hex())
}

// PoolKey identifies one specific pool: a pair on a specific DEX.
type PoolKey string

// NewPoolKey builds a PoolKey from a pair and DEX name.
func NewPoolKey(pair PairKey, dexName string) PoolKey {
	return PoolKey(string(pair) + "@" + dexName)
}

// Pool is the authoritative snapshot of one AMM pool's reserves and
// metadata. Mutated exclusively by the pool context's ReserveStore /
// EventIngestor; every other component receives value copies.
type Pool struct {
	Key         PoolKey
	Pair        PairKey
	TokenA      Token
	TokenB      Token
	DexName     string
	PairAddress common.Address
	SwapFee     decimal.Decimal // e.g. 0.003 for 0.3%

	ReserveA *big.Int // uint112, token A smallest unit
	ReserveB *big.Int // uint112, token B smallest unit

	LastUpdateBlock  uint64
	LastUpdateWallMs int64
}

// Validate enforces the Data Model invariants: non-negative reserves,
// reserveA = 0 iff reserveB = 0, fee in [0, 0.01], reserves within
// uint112 bounds.
func (p *Pool) Validate() error {
	if p.ReserveA == nil || p.ReserveB == nil {
		return apperror.New(apperror.CodeInvalidReserves, apperror.WithContext("nil reserves"))
	}
	if p.ReserveA.Sign() < 0 || p.ReserveB.Sign() < 0 {
		return apperror.New(apperror.CodeInvalidReserves, apperror.WithContext("negative reserves"))
	}
	if p.ReserveA.Cmp(MaxUint112) > 0 || p.ReserveB.Cmp(MaxUint112) > 0 {
		return apperror.New(apperror.CodeInvalidReserves, apperror.WithContext("reserve exceeds uint112"))
	}
	if (p.ReserveA.Sign() == 0) != (p.ReserveB.Sign() == 0) {
		return apperror.New(apperror.CodeInvalidReserves, apperror.WithContext("one reserve zero, the other not"))
	}
	if p.SwapFee.IsNegative() || p.SwapFee.GreaterThan(decimal.NewFromFloat(0.01)) {
		return apperror.New(apperror.CodeInvalidFeeRange, apperror.WithContext(p.SwapFee.String()))
	}
	return nil
}

// Price returns the mid-price as units of token B per unit of token A,
// (reserveB / 10^decB) / (reserveA / 10^decA), or false if reserveA is
// zero or the result is non-finite (P1).
func (p *Pool) Price() (decimal.Decimal, bool) {
	if p.ReserveA == nil || p.ReserveA.Sign() == 0 {
		return decimal.Zero, false
	}
	normA := decimal.NewFromBigInt(p.ReserveA, -int32(p.TokenA.Decimals))
	normB := decimal.NewFromBigInt(p.ReserveB, -int32(p.TokenB.Decimals))
	if normA.IsZero() {
		return decimal.Zero, false
	}
	price := normB.Div(normA)
	f, _ := price.Float64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return price, true
}

// Clone returns a deep value copy safe to hand to readers across a
// detection cycle.
func (p *Pool) Clone() Pool {
	cp := *p
	if p.ReserveA != nil {
		cp.ReserveA = new(big.Int).Set(p.ReserveA)
	}
	if p.ReserveB != nil {
		cp.ReserveB = new(big.Int).Set(p.ReserveB)
	}
	return cp
}

// LiquidityUSD estimates pool liquidity in USD as 2x the USD value of
// reserveA, given an external USD price for token A. Used by viability
// gates (spec's min_liquidity_usd).
func (p *Pool) LiquidityUSD(tokenAUSDPrice decimal.Decimal) decimal.Decimal {
	normA := decimal.NewFromBigInt(p.ReserveA, -int32(p.TokenA.Decimals))
	return normA.Mul(tokenAUSDPrice).Mul(decimal.NewFromInt(2))
}
