// Package crypto provides cryptographic primitives for the cell ledger.
package crypto

import (
	"encoding/binary"

	"github.com/Klingon-tech/klingnet-udt/pkg/types"
	"github.com/zeebo/blake3"
)

// Blake160Size is the length of a truncated lock-args hash.
const Blake160Size = 20

// Hash computes a BLAKE3-256 hash of the input data.
func Hash(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// HashConcat hashes the concatenation of several byte slices without
// building an intermediate buffer.
func HashConcat(parts ...[]byte) types.Hash {
	h := blake3.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out types.Hash
	h.Sum(out[:0])
	return out
}

// ScriptHash returns the hash of a script's canonical encoding. A cell's
// lock hash is the ScriptHash of its lock script.
func ScriptHash(s types.Script) types.Hash {
	return Hash(s.Bytes())
}

// Blake160 returns the first 20 bytes of Hash(data).
func Blake160(data []byte) []byte {
	h := Hash(data)
	out := make([]byte, Blake160Size)
	copy(out, h[:Blake160Size])
	return out
}

// MethodPath derives the 8-byte selector of a named method:
// the first 8 bytes of Hash(name), read as a little-endian u64.
func MethodPath(name string) uint64 {
	h := Hash([]byte(name))
	return binary.LittleEndian.Uint64(h[:8])
}
