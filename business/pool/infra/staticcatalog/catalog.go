// Package staticcatalog implements the pool context's PoolCatalog port
// over a statically configured pool list. The core never discovers
// pools on its own; every pair it tracks must be named in config.
package staticcatalog

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/arbdetectd/business/pool/app"
	"github.com/fd1az/arbdetectd/business/pool/domain"
	"github.com/fd1az/arbdetectd/internal/config"
)

// Catalog resolves a pair address to its pool metadata using the
// configured pool list, built once at startup.
type Catalog struct {
	byAddress map[string]app.CatalogEntry
	entries   []app.CatalogEntry
}

// New builds a Catalog from configured pools.
func New(pools []config.PoolConfig) *Catalog {
	c := &Catalog{byAddress: make(map[string]app.CatalogEntry, len(pools))}

	for _, p := range pools {
		entry := app.CatalogEntry{
			PairAddress: p.PairAddress,
			TokenA: domain.Token{
				Symbol:   p.TokenASymbol,
				Address:  common.HexToAddress(p.TokenAAddress),
				Decimals: p.TokenADecimals,
			},
			TokenB: domain.Token{
				Symbol:   p.TokenBSymbol,
				Address:  common.HexToAddress(p.TokenBAddress),
				Decimals: p.TokenBDecimals,
			},
			DexName:    p.DexName,
			SwapFeeBps: p.SwapFeeBps,
		}
		key := strings.ToLower(p.PairAddress)
		c.byAddress[key] = entry
		c.entries = append(c.entries, entry)
	}

	return c
}

// Lookup implements app.PoolCatalog.
func (c *Catalog) Lookup(pairAddress string) (app.CatalogEntry, bool) {
	entry, ok := c.byAddress[strings.ToLower(pairAddress)]
	return entry, ok
}

// All implements app.PoolCatalog.
func (c *Catalog) All() []app.CatalogEntry {
	out := make([]app.CatalogEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// SwapFeeDecimal converts a CatalogEntry's basis-point fee to a
// decimal fraction, e.g. 30 -> 0.003.
func SwapFeeDecimal(bps int) decimal.Decimal {
	return decimal.NewFromInt(int64(bps)).Div(decimal.NewFromInt(10000))
}
