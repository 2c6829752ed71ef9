// Package tx defines transaction drafts, their binary codec and builder.
package tx

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/Klingon-tech/klingnet-udt/pkg/crypto"
	"github.com/Klingon-tech/klingnet-udt/pkg/types"
	"github.com/Klingon-tech/klingnet-udt/pkg/wire"
	"google.golang.org/protobuf/encoding/protowire"
)

// Transaction is a (possibly unfinished) ledger transaction.
// OutputsData[i] is the data payload of Outputs[i].
type Transaction struct {
	Version     uint32             `json:"version"`
	CellDeps    []types.CellDep    `json:"cell_deps"`
	HeaderDeps  []types.Hash       `json:"header_deps"`
	Inputs      []types.CellInput  `json:"inputs"`
	Outputs     []types.CellOutput `json:"outputs"`
	OutputsData [][]byte           `json:"outputs_data"`
	Witnesses   [][]byte           `json:"witnesses"`
}

// Wire field numbers.
const (
	fieldVersion     protowire.Number = 1
	fieldCellDeps    protowire.Number = 2
	fieldHeaderDeps  protowire.Number = 3
	fieldInputs      protowire.Number = 4
	fieldOutputs     protowire.Number = 5
	fieldOutputsData protowire.Number = 6
	fieldWitnesses   protowire.Number = 7
)

// Clone returns a deep copy that shares no memory with tx.
func (tx *Transaction) Clone() *Transaction {
	if tx == nil {
		return &Transaction{}
	}
	out := &Transaction{
		Version:     tx.Version,
		CellDeps:    slices.Clone(tx.CellDeps),
		HeaderDeps:  slices.Clone(tx.HeaderDeps),
		Inputs:      slices.Clone(tx.Inputs),
		OutputsData: cloneBytesVec(tx.OutputsData),
		Witnesses:   cloneBytesVec(tx.Witnesses),
	}
	if tx.Outputs != nil {
		out.Outputs = make([]types.CellOutput, len(tx.Outputs))
		for i, o := range tx.Outputs {
			out.Outputs[i] = o.Clone()
		}
	}
	return out
}

func cloneBytesVec(v [][]byte) [][]byte {
	if v == nil {
		return nil
	}
	out := make([][]byte, len(v))
	for i, b := range v {
		out[i] = bytes.Clone(b)
		if out[i] == nil {
			out[i] = []byte{}
		}
	}
	return out
}

// appendRaw appends every field except witnesses.
func (tx *Transaction) appendRaw(b []byte) []byte {
	b = wire.AppendVarint(b, fieldVersion, uint64(tx.Version))
	for _, d := range tx.CellDeps {
		b = wire.AppendMessage(b, fieldCellDeps, d.AppendWire)
	}
	for _, h := range tx.HeaderDeps {
		b = wire.AppendBytes(b, fieldHeaderDeps, h[:])
	}
	for _, in := range tx.Inputs {
		b = wire.AppendMessage(b, fieldInputs, in.AppendWire)
	}
	for _, o := range tx.Outputs {
		b = wire.AppendMessage(b, fieldOutputs, o.AppendWire)
	}
	for _, d := range tx.OutputsData {
		b = wire.AppendBytes(b, fieldOutputsData, d)
	}
	return b
}

// AppendBinary appends the canonical encoding of the transaction to b.
func (tx *Transaction) AppendBinary(b []byte) ([]byte, error) {
	b = tx.appendRaw(b)
	for _, w := range tx.Witnesses {
		b = wire.AppendBytes(b, fieldWitnesses, w)
	}
	return b, nil
}

// MarshalBinary returns the canonical encoding of the transaction.
func (tx *Transaction) MarshalBinary() ([]byte, error) {
	return tx.AppendBinary(nil)
}

// Bytes returns the canonical encoding of the transaction.
func (tx *Transaction) Bytes() []byte {
	b, _ := tx.AppendBinary(nil)
	return b
}

// Hash computes the transaction hash: BLAKE3 of the canonical encoding
// without witnesses, so that signatures can live in the witnesses.
func (tx *Transaction) Hash() types.Hash {
	return crypto.Hash(tx.appendRaw(nil))
}

// UnmarshalBinary decodes a canonical transaction encoding.
func (tx *Transaction) UnmarshalBinary(data []byte) error {
	var out Transaction
	var seenVersion bool
	err := wire.Walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == fieldVersion {
			if seenVersion {
				return 0, wire.Duplicate(num)
			}
			seenVersion = true
			v, n, err := wire.Varint(num, typ, b)
			if err != nil {
				return 0, err
			}
			if v > 0xffffffff {
				return 0, fmt.Errorf("%w: version %d overflows u32", wire.ErrMalformed, v)
			}
			out.Version = uint32(v)
			return n, nil
		}

		v, n, err := wire.Bytes(num, typ, b)
		if err != nil {
			return 0, err
		}
		switch num {
		case fieldCellDeps:
			var d types.CellDep
			if err := d.UnmarshalBinary(v); err != nil {
				return 0, fmt.Errorf("cell_dep %d: %w", len(out.CellDeps), err)
			}
			out.CellDeps = append(out.CellDeps, d)
		case fieldHeaderDeps:
			h, err := types.BytesToHash(v)
			if err != nil {
				return 0, fmt.Errorf("%w: header_dep %d: %v", wire.ErrMalformed, len(out.HeaderDeps), err)
			}
			out.HeaderDeps = append(out.HeaderDeps, h)
		case fieldInputs:
			var in types.CellInput
			if err := in.UnmarshalBinary(v); err != nil {
				return 0, fmt.Errorf("input %d: %w", len(out.Inputs), err)
			}
			out.Inputs = append(out.Inputs, in)
		case fieldOutputs:
			var o types.CellOutput
			if err := o.UnmarshalBinary(v); err != nil {
				return 0, fmt.Errorf("output %d: %w", len(out.Outputs), err)
			}
			out.Outputs = append(out.Outputs, o)
		case fieldOutputsData:
			out.OutputsData = append(out.OutputsData, bytes.Clone(v))
		case fieldWitnesses:
			out.Witnesses = append(out.Witnesses, bytes.Clone(v))
		default:
			return 0, wire.Unknown(num)
		}
		return n, nil
	})
	if err != nil {
		return err
	}
	*tx = out
	return nil
}

// Decode decodes a canonical transaction encoding.
func Decode(data []byte) (*Transaction, error) {
	var t Transaction
	if err := t.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return &t, nil
}

// DecodeHex decodes a hex (optionally 0x-prefixed) transaction encoding.
func DecodeHex(s string) (*Transaction, error) {
	b, err := types.DecodeHex(s)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return Decode(b)
}
