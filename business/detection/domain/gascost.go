package domain

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbdetectd/internal/asset"
)

// GasCost is the estimated cost of a candidate's on-chain execution,
// denominated in the chain's native asset (WBNB, WMATIC, WAVAX, ...)
// and converted to USD for ranking alongside profit.
type GasCost struct {
	GasLimit    uint64
	GasPrice    asset.Amount // wei per gas unit
	TotalNative asset.Amount // GasLimit * GasPrice
	TotalUSD    decimal.Decimal
}

// NewGasCost prices gasLimit at gasPriceWei on chainID's native asset
// (symbol is display-only; the value is always an 18-decimal wei
// amount, true of every EVM chain's native coin) and converts the
// total to USD at nativeUSDPrice.
func NewGasCost(chainID uint64, symbol string, gasLimit uint64, gasPriceWei *big.Int, nativeUSDPrice decimal.Decimal) GasCost {
	native := asset.NewAssetWithName(asset.NewNativeAssetID(chainID), symbol, symbol, 18)

	gasPrice := asset.NewAmount(native, gasPriceWei)
	totalWei := new(big.Int).Mul(gasPriceWei, big.NewInt(int64(gasLimit)))
	totalNative := asset.NewAmount(native, totalWei)

	totalUSD := totalNative.ToDecimal().Mul(nativeUSDPrice)

	return GasCost{
		GasLimit:    gasLimit,
		GasPrice:    gasPrice,
		TotalNative: totalNative,
		TotalUSD:    totalUSD,
	}
}
