package evmsync

import (
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// ethereumFilterQuery builds the log filter matching the Sync topic on
// the given pair addresses. An empty addresses slice matches the topic
// across all contracts, useful for factory-wide discovery setups.
func ethereumFilterQuery(addresses []common.Address, topic common.Hash) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		Addresses: addresses,
		Topics:    [][]common.Hash{{topic}},
	}
}
