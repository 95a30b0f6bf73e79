package domain

import (
	"math/big"

	"github.com/fd1az/arbdetectd/internal/apperror"
)

// DecodeSyncPayload decodes a Sync(uint112,uint112) log data payload:
// two 32-byte big-endian words, each holding a right-aligned 112-bit
// reserve. Returns apperror.CodeMalformedSyncPayload if data is too
// short or either reserve exceeds uint112.
func DecodeSyncPayload(data []byte) (reserve0, reserve1 *big.Int, err error) {
	const wordLen = 32
	if len(data) < 2*wordLen {
		return nil, nil, apperror.New(apperror.CodeMalformedSyncPayload,
			apperror.WithContext("payload shorter than 64 bytes"))
	}

	r0 := new(big.Int).SetBytes(data[0:wordLen])
	r1 := new(big.Int).SetBytes(data[wordLen : 2*wordLen])

	if r0.Cmp(MaxUint112) > 0 || r1.Cmp(MaxUint112) > 0 {
		return nil, nil, apperror.New(apperror.CodeMalformedSyncPayload,
			apperror.WithContext("reserve exceeds uint112"))
	}

	return r0, r1, nil
}

// EncodeSyncPayload is the inverse of DecodeSyncPayload: it packs two
// reserves into a 64-byte Sync payload, each right-aligned in its word.
func EncodeSyncPayload(reserve0, reserve1 *big.Int) []byte {
	const wordLen = 32
	out := make([]byte, 2*wordLen)
	r0 := reserve0.Bytes()
	r1 := reserve1.Bytes()
	copy(out[wordLen-len(r0):wordLen], r0)
	copy(out[2*wordLen-len(r1):2*wordLen], r1)
	return out
}
