package types

import (
	"encoding/binary"
	"fmt"
)

// OutPointSize is the length of an outpoint's fixed binary form.
const OutPointSize = HashSize + 4

// OutPoint references a specific output cell of a transaction.
type OutPoint struct {
	TxHash Hash   `json:"tx_hash"`
	Index  uint32 `json:"index"`
}

// IsZero returns true if the outpoint has a zero tx hash and zero index.
func (o OutPoint) IsZero() bool {
	return o.TxHash.IsZero() && o.Index == 0
}

// String returns "txhash:index" in hex.
func (o OutPoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxHash.String(), o.Index)
}

// Bytes returns the fixed binary form: tx_hash(32) | index(4, LE).
func (o OutPoint) Bytes() []byte {
	buf := make([]byte, 0, OutPointSize)
	buf = append(buf, o.TxHash[:]...)
	return binary.LittleEndian.AppendUint32(buf, o.Index)
}
