package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SyncTopic is keccak256("Sync(uint112,uint112)"), the log topic the
// event source filters on.
const SyncTopic = "0x1c411e9a96e071241c2f21f7726b17ae89e3cab4c78be50e062b03a9fffbbad1"

// RawSyncLog is the external shape delivered by the log source: an
// undecoded Sync event.
type RawSyncLog struct {
	PairAddress common.Address
	Data        []byte // >= 64 bytes: reserve0 || reserve1, each 32-byte big-endian
	BlockNumber uint64
	TxHash      common.Hash
	WallMs      int64
}

// ReserveUpdate is the normalized event EventIngestor emits downstream
// after decode, pair resolution, and debounce.
type ReserveUpdate struct {
	PoolKey     PoolKey
	Pair        PairKey
	DexName     string
	PairAddress common.Address
	SwapFeeBps  int
	TokenA      Token
	TokenB      Token
	ReserveA    *big.Int
	ReserveB    *big.Int
	Block       uint64
	TxHash      common.Hash
	WallMs      int64
}

// BlockTick is the per-block input driving the block-path of detection.
type BlockTick struct {
	BlockNumber uint64
	WallMs      int64
}
