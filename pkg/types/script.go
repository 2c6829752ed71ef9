package types

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/Klingon-tech/klingnet-udt/pkg/wire"
	"google.golang.org/protobuf/encoding/protowire"
)

// HashType selects how a script's CodeHash is matched against code cells.
type HashType uint8

const (
	HashTypeData  HashType = 0 // Match data hash of the code cell
	HashTypeType  HashType = 1 // Match type script hash of the code cell
	HashTypeData1 HashType = 2 // Data hash, VM version 1
	HashTypeData2 HashType = 4 // Data hash, VM version 2
)

// String returns a human-readable name for the hash type.
func (ht HashType) String() string {
	switch ht {
	case HashTypeData:
		return "data"
	case HashTypeType:
		return "type"
	case HashTypeData1:
		return "data1"
	case HashTypeData2:
		return "data2"
	default:
		return "unknown"
	}
}

// Valid reports whether ht is one of the defined hash types.
func (ht HashType) Valid() bool {
	switch ht {
	case HashTypeData, HashTypeType, HashTypeData1, HashTypeData2:
		return true
	}
	return false
}

// ParseHashType parses the names returned by String.
func ParseHashType(s string) (HashType, error) {
	for _, ht := range []HashType{HashTypeData, HashTypeType, HashTypeData1, HashTypeData2} {
		if ht.String() == s {
			return ht, nil
		}
	}
	return 0, fmt.Errorf("unknown hash type %q", s)
}

// TypeIDCodeHash is the well-known code hash of the type-id script:
// "TYPE_ID" right-aligned in 32 bytes.
var TypeIDCodeHash = Hash{
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 'T', 'Y', 'P', 'E', '_', 'I', 'D',
}

// TypeIDArgsSize is the length of type-id script args.
const TypeIDArgsSize = HashSize

// Script is an authorization policy. As a cell's lock it decides who may
// spend the cell; as a cell's type it gives the cell an asset identity.
type Script struct {
	CodeHash Hash     `json:"code_hash"`
	HashType HashType `json:"hash_type"`
	Args     []byte   `json:"args"`
}

// TypeIDScript returns the type-id script carrying args.
func TypeIDScript(args []byte) Script {
	return Script{
		CodeHash: TypeIDCodeHash,
		HashType: HashTypeType,
		Args:     bytes.Clone(args),
	}
}

// Equal reports whether both scripts match byte for byte.
func (s Script) Equal(o Script) bool {
	return s.CodeHash == o.CodeHash && s.HashType == o.HashType && bytes.Equal(s.Args, o.Args)
}

// Clone returns a deep copy of the script.
func (s Script) Clone() Script {
	s.Args = bytes.Clone(s.Args)
	return s
}

// String returns "codehash/hashtype/args" in hex.
func (s Script) String() string {
	return fmt.Sprintf("%s/%s/%s", s.CodeHash, s.HashType, hex.EncodeToString(s.Args))
}

// Wire field numbers.
const (
	scriptFieldCodeHash protowire.Number = 1
	scriptFieldHashType protowire.Number = 2
	scriptFieldArgs     protowire.Number = 3
)

// AppendBinary appends the canonical encoding of the script to b.
func (s Script) AppendBinary(b []byte) ([]byte, error) {
	return s.AppendWire(b), nil
}

// AppendWire appends the canonical encoding of the script.
func (s Script) AppendWire(b []byte) []byte {
	b = wire.AppendBytes(b, scriptFieldCodeHash, s.CodeHash[:])
	b = wire.AppendVarint(b, scriptFieldHashType, uint64(s.HashType))
	return wire.AppendBytes(b, scriptFieldArgs, s.Args)
}

// MarshalBinary returns the canonical encoding of the script.
func (s Script) MarshalBinary() ([]byte, error) {
	return s.AppendWire(nil), nil
}

// Bytes returns the canonical encoding of the script.
func (s Script) Bytes() []byte {
	return s.AppendWire(nil)
}

// UnmarshalBinary decodes a canonical script encoding.
func (s *Script) UnmarshalBinary(data []byte) error {
	var out Script
	var seenCode, seenType, seenArgs bool
	err := wire.Walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case scriptFieldCodeHash:
			if seenCode {
				return 0, wire.Duplicate(num)
			}
			seenCode = true
			v, n, err := wire.Bytes(num, typ, b)
			if err != nil {
				return 0, err
			}
			h, err := BytesToHash(v)
			if err != nil {
				return 0, fmt.Errorf("%w: code_hash: %v", wire.ErrMalformed, err)
			}
			out.CodeHash = h
			return n, nil
		case scriptFieldHashType:
			if seenType {
				return 0, wire.Duplicate(num)
			}
			seenType = true
			v, n, err := wire.Varint(num, typ, b)
			if err != nil {
				return 0, err
			}
			if v > 0xff || !HashType(v).Valid() {
				return 0, fmt.Errorf("%w: hash_type %d", wire.ErrMalformed, v)
			}
			out.HashType = HashType(v)
			return n, nil
		case scriptFieldArgs:
			if seenArgs {
				return 0, wire.Duplicate(num)
			}
			seenArgs = true
			v, n, err := wire.Bytes(num, typ, b)
			if err != nil {
				return 0, err
			}
			out.Args = bytes.Clone(v)
			return n, nil
		default:
			return 0, wire.Unknown(num)
		}
	})
	if err != nil {
		return err
	}
	if !seenCode {
		return wire.Missing("code_hash")
	}
	if !seenType {
		return wire.Missing("hash_type")
	}
	*s = out
	return nil
}

// ScriptFromHex decodes a hex (optionally 0x-prefixed) script encoding.
func ScriptFromHex(s string) (Script, error) {
	b, err := DecodeHex(s)
	if err != nil {
		return Script{}, err
	}
	var script Script
	if err := script.UnmarshalBinary(b); err != nil {
		return Script{}, err
	}
	return script, nil
}

// scriptJSON is the JSON representation of a Script with hex-encoded args.
type scriptJSON struct {
	CodeHash Hash   `json:"code_hash"`
	HashType string `json:"hash_type"`
	Args     string `json:"args"`
}

// MarshalJSON encodes the script with hex-encoded args.
func (s Script) MarshalJSON() ([]byte, error) {
	return json.Marshal(scriptJSON{
		CodeHash: s.CodeHash,
		HashType: s.HashType.String(),
		Args:     hex.EncodeToString(s.Args),
	})
}

// UnmarshalJSON decodes a script with hex-encoded args.
func (s *Script) UnmarshalJSON(data []byte) error {
	var j scriptJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	ht, err := ParseHashType(j.HashType)
	if err != nil {
		return err
	}
	s.CodeHash = j.CodeHash
	s.HashType = ht
	s.Args = nil
	if j.Args != "" {
		b, err := hex.DecodeString(j.Args)
		if err != nil {
			return err
		}
		s.Args = b
	}
	return nil
}

// EncodeScriptVec encodes an ordered list of scripts.
func EncodeScriptVec(scripts []Script) []byte {
	var b []byte
	for _, s := range scripts {
		b = wire.AppendMessage(b, 1, s.AppendWire)
	}
	return b
}

// DecodeScriptVec decodes an ordered list of scripts.
func DecodeScriptVec(data []byte) ([]Script, error) {
	scripts := []Script{}
	err := wire.Walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 {
			return 0, wire.Unknown(num)
		}
		v, n, err := wire.Bytes(num, typ, b)
		if err != nil {
			return 0, err
		}
		var s Script
		if err := s.UnmarshalBinary(v); err != nil {
			return 0, fmt.Errorf("script %d: %w", len(scripts), err)
		}
		scripts = append(scripts, s)
		return n, nil
	})
	if err != nil {
		return nil, err
	}
	return scripts, nil
}
