// Package app contains the pool context's application services and the
// ports it depends on from external collaborators.
package app

import (
	"context"

	"github.com/fd1az/arbdetectd/business/pool/domain"
)

// LogSource streams raw, un-decoded Sync logs. A concrete adapter
// (business/pool/infra/evmsync) implements this over a chain RPC/WS
// connection; the pool context never dials a node itself.
type LogSource interface {
	Subscribe(ctx context.Context) (<-chan domain.RawSyncLog, error)
}

// BlockSource streams block ticks driving the block-path of detection.
type BlockSource interface {
	Subscribe(ctx context.Context) (<-chan domain.BlockTick, error)
}

// PoolCatalog is the static configuration mapping pair address to pool
// metadata. The pool context does not discover pools itself.
type PoolCatalog interface {
	Lookup(pairAddress string) (CatalogEntry, bool)
	All() []CatalogEntry
}

// CatalogEntry is one statically configured pool.
type CatalogEntry struct {
	PairAddress string
	TokenA      domain.Token
	TokenB      domain.Token
	DexName     string
	SwapFeeBps  int
}
