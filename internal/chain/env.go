// Package chain carries the per-call context supplied by the hosting runtime.
package chain

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Env is what the host tells a call about itself: who sent it and where in
// the chain it executes.
type Env struct {
	Height  uint64
	TxIndex uint32
	Sender  string
}

// Entropy mixes block height and transaction ordinal into a 64-bit value.
// It is not known to the sender when the call is signed, but it is neither
// secret nor unbiasable: a fairness aid, never a security primitive.
func (e Env) Entropy() uint64 {
	var buf [12]byte
	binary.BigEndian.PutUint64(buf[:8], e.Height)
	binary.BigEndian.PutUint32(buf[8:], e.TxIndex)
	return xxhash.Sum64(buf[:])
}
