// Package domain contains the core types owned by the pool context:
// tokens, pools, and the normalized reserve-update event.
package domain

import "github.com/ethereum/go-ethereum/common"

// Token identifies an ERC20 (or native) asset by its on-chain address.
// Symbol is display-only; Address is identity.
type Token struct {
	Symbol   string
	Address  common.Address
	Decimals uint8
}

// Key returns the address-based identity string used as a graph vertex
// and map key.
func (t Token) Key() string {
	return t.Address.Hex()
}

// String returns the display symbol.
func (t Token) String() string {
	return t.Symbol
}
