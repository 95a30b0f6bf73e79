package app

import (
	"context"
	"math/big"
)

// GasFeed supplies the current network gas price for cost estimation.
// Implementations are expected to cache aggressively (block time is
// the natural TTL) and fail over to a static configured price rather
// than block detection when the chain RPC is unavailable.
type GasFeed interface {
	GasPriceWei(ctx context.Context) (wei *big.Int, source string, err error)
}
