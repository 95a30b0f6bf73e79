package app

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/arbdetectd/business/pool/domain"
)

// Edge is one directed exchange rate in a per-DEX graph: selling one
// unit of the source vertex's token yields Price units of the
// destination vertex's token, drawn from a specific pool.
type Edge struct {
	To           common.Address
	Price        decimal.Decimal
	ReserveIn    *big.Int
	ReserveOut   *big.Int
	LiquidityUSD decimal.Decimal
	SwapFee      decimal.Decimal
	PairAddress  common.Address
	PoolKey      domain.PoolKey
	DexName      string
}

// Graph is a directed, per-DEX graph over the token set: vertices are
// token addresses, edges are synthesized both ways (A→B from the
// pool's native orientation, B→A as its inverse).
type Graph struct {
	DexName string
	edges   map[common.Address][]Edge
}

// BuildGraph constructs one per-DEX graph from a ReserveStore
// snapshot, filtered to pools on dexName. Construction is
// O(pairs-on-dex): one pass over the snapshot, two edges emitted per
// pool.
func BuildGraph(pools []domain.Pool, dexName string, nativeUSDPrice func(domain.Token) (decimal.Decimal, bool)) *Graph {
	g := &Graph{DexName: dexName, edges: make(map[common.Address][]Edge)}

	for _, p := range pools {
		if p.DexName != dexName {
			continue
		}
		price, ok := p.Price()
		if !ok {
			continue
		}

		liqUSD := decimal.Zero
		if priceA, ok := nativeUSDPrice(p.TokenA); ok {
			liqUSD = p.LiquidityUSD(priceA)
		}

		// A -> B: selling A yields B at `price` (B per A).
		g.addEdge(p.TokenA.Address, Edge{
			To:           p.TokenB.Address,
			Price:        price,
			ReserveIn:    p.ReserveA,
			ReserveOut:   p.ReserveB,
			LiquidityUSD: liqUSD,
			SwapFee:      p.SwapFee,
			PairAddress:  p.PairAddress,
			PoolKey:      p.Key,
			DexName:      p.DexName,
		})

		// B -> A: the inverse rate, reserves swapped.
		inv := decimal.Zero
		if !price.IsZero() {
			inv = decimal.NewFromInt(1).Div(price)
		}
		g.addEdge(p.TokenB.Address, Edge{
			To:           p.TokenA.Address,
			Price:        inv,
			ReserveIn:    p.ReserveB,
			ReserveOut:   p.ReserveA,
			LiquidityUSD: liqUSD,
			SwapFee:      p.SwapFee,
			PairAddress:  p.PairAddress,
			PoolKey:      p.Key,
			DexName:      p.DexName,
		})
	}

	return g
}

// BuildMergedGraph constructs one graph spanning every DEX in pools,
// each edge tagged with its originating DexName. Used for cross-DEX
// triangular cycle enumeration, where a cycle's three hops may each
// come from a different DEX.
func BuildMergedGraph(pools []domain.Pool, nativeUSDPrice func(domain.Token) (decimal.Decimal, bool)) *Graph {
	byDex := make(map[string][]domain.Pool)
	for _, p := range pools {
		byDex[p.DexName] = append(byDex[p.DexName], p)
	}

	merged := &Graph{DexName: "*", edges: make(map[common.Address][]Edge)}
	for dexName, dexPools := range byDex {
		sub := BuildGraph(dexPools, dexName, nativeUSDPrice)
		for vertex, edges := range sub.edges {
			merged.edges[vertex] = append(merged.edges[vertex], edges...)
		}
	}
	return merged
}

func (g *Graph) addEdge(from common.Address, e Edge) {
	g.edges[from] = append(g.edges[from], e)
}

// Neighbors returns the outbound edges from vertex.
func (g *Graph) Neighbors(vertex common.Address) []Edge {
	return g.edges[vertex]
}

// HasVertex reports whether vertex has any outbound edge.
func (g *Graph) HasVertex(vertex common.Address) bool {
	_, ok := g.edges[vertex]
	return ok
}

// Cycle3 is one 3-hop cycle base -> mid1 -> mid2 -> base found by
// FindCycles3.
type Cycle3 struct {
	Base common.Address
	Mid1 common.Address
	Mid2 common.Address
	Hop1 Edge // base -> mid1
	Hop2 Edge // mid1 -> mid2
	Hop3 Edge // mid2 -> base
}

// FindCycles3 enumerates every length-3 cycle starting and ending at a
// vertex in baseTokens, with every hop's liquidity at or above
// minLiquidityUSD. Each cycle is yielded exactly once; no rotations of
// the same cycle are produced: a cycle passing through several base
// tokens is reported only from the one listed first in baseTokens.
// Complexity is O(|base| × |vertices|^2).
func (g *Graph) FindCycles3(baseTokens []common.Address, minLiquidityUSD decimal.Decimal) []Cycle3 {
	var out []Cycle3

	baseRank := make(map[common.Address]int, len(baseTokens))
	for i, b := range baseTokens {
		if _, dup := baseRank[b]; !dup {
			baseRank[b] = i
		}
	}
	earlierBase := func(v common.Address, rank int) bool {
		r, ok := baseRank[v]
		return ok && r < rank
	}

	for i, base := range baseTokens {
		if !g.HasVertex(base) || baseRank[base] != i {
			continue
		}
		for _, hop1 := range g.Neighbors(base) {
			if hop1.To == base || earlierBase(hop1.To, i) || hop1.LiquidityUSD.LessThan(minLiquidityUSD) {
				continue
			}
			mid1 := hop1.To

			for _, hop2 := range g.Neighbors(mid1) {
				if hop2.To == base || hop2.To == mid1 || earlierBase(hop2.To, i) || hop2.LiquidityUSD.LessThan(minLiquidityUSD) {
					continue
				}
				mid2 := hop2.To

				for _, hop3 := range g.Neighbors(mid2) {
					if hop3.To != base || hop3.LiquidityUSD.LessThan(minLiquidityUSD) {
						continue
					}
					out = append(out, Cycle3{
						Base: base,
						Mid1: mid1,
						Mid2: mid2,
						Hop1: hop1,
						Hop2: hop2,
						Hop3: hop3,
					})
				}
			}
		}
	}

	return out
}
