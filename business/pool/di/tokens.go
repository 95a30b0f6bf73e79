// Package di contains dependency injection tokens and accessors for the
// pool bounded context.
package di

import (
	"github.com/fd1az/arbdetectd/business/pool/app"
	"github.com/fd1az/arbdetectd/internal/di"
)

// DI tokens for the pool module.
const (
	ReserveStore  = "pool.ReserveStore"
	EventIngestor = "pool.EventIngestor"
	PoolCatalog   = "pool.PoolCatalog"
	LogSource     = "pool.LogSource"
	BlockSource   = "pool.BlockSource"
)

// GetReserveStore fetches the shared ReserveStore. Other contexts
// (correlation, detection) read pool state exclusively through it.
func GetReserveStore(sr di.ServiceRegistry) *app.ReserveStore {
	return di.MustGetTyped[*app.ReserveStore](sr, ReserveStore)
}

// GetEventIngestor fetches the event decode/debounce service.
func GetEventIngestor(sr di.ServiceRegistry) *app.EventIngestor {
	return di.MustGetTyped[*app.EventIngestor](sr, EventIngestor)
}

// GetPoolCatalog fetches the static pair->pool metadata lookup.
func GetPoolCatalog(sr di.ServiceRegistry) app.PoolCatalog {
	return di.MustGetTyped[app.PoolCatalog](sr, PoolCatalog)
}

// GetLogSource fetches the raw Sync log stream adapter.
func GetLogSource(sr di.ServiceRegistry) app.LogSource {
	return di.MustGetTyped[app.LogSource](sr, LogSource)
}

// GetBlockSource fetches the block tick stream adapter.
func GetBlockSource(sr di.ServiceRegistry) app.BlockSource {
	return di.MustGetTyped[app.BlockSource](sr, BlockSource)
}
