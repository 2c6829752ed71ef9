package types

import (
	"encoding/binary"
	"fmt"

	"github.com/Klingon-tech/klingnet-udt/pkg/wire"
	"google.golang.org/protobuf/encoding/protowire"
)

// CellOutput is the non-data part of a cell.
type CellOutput struct {
	Capacity uint64  `json:"capacity"`
	Lock     Script  `json:"lock"`
	Type     *Script `json:"type,omitempty"`
}

// Clone returns a deep copy of the output.
func (o CellOutput) Clone() CellOutput {
	o.Lock = o.Lock.Clone()
	if o.Type != nil {
		t := o.Type.Clone()
		o.Type = &t
	}
	return o
}

// HasType reports whether the cell carries exactly the given type script.
func (o CellOutput) HasType(s Script) bool {
	return o.Type != nil && o.Type.Equal(s)
}

const (
	outputFieldCapacity protowire.Number = 1
	outputFieldLock     protowire.Number = 2
	outputFieldType     protowire.Number = 3
)

// AppendWire appends the canonical encoding of the output.
func (o CellOutput) AppendWire(b []byte) []byte {
	b = wire.AppendVarint(b, outputFieldCapacity, o.Capacity)
	b = wire.AppendMessage(b, outputFieldLock, o.Lock.AppendWire)
	if o.Type != nil {
		b = wire.AppendMessage(b, outputFieldType, o.Type.AppendWire)
	}
	return b
}

// UnmarshalBinary decodes a canonical output encoding.
func (o *CellOutput) UnmarshalBinary(data []byte) error {
	var out CellOutput
	var seenCap, seenLock bool
	err := wire.Walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case outputFieldCapacity:
			if seenCap {
				return 0, wire.Duplicate(num)
			}
			seenCap = true
			v, n, err := wire.Varint(num, typ, b)
			out.Capacity = v
			return n, err
		case outputFieldLock:
			if seenLock {
				return 0, wire.Duplicate(num)
			}
			seenLock = true
			v, n, err := wire.Bytes(num, typ, b)
			if err != nil {
				return 0, err
			}
			if err := out.Lock.UnmarshalBinary(v); err != nil {
				return 0, fmt.Errorf("lock: %w", err)
			}
			return n, nil
		case outputFieldType:
			if out.Type != nil {
				return 0, wire.Duplicate(num)
			}
			v, n, err := wire.Bytes(num, typ, b)
			if err != nil {
				return 0, err
			}
			var s Script
			if err := s.UnmarshalBinary(v); err != nil {
				return 0, fmt.Errorf("type: %w", err)
			}
			out.Type = &s
			return n, nil
		default:
			return 0, wire.Unknown(num)
		}
	})
	if err != nil {
		return err
	}
	if !seenLock {
		return wire.Missing("lock")
	}
	*o = out
	return nil
}

// CellInputSize is the length of a cell input's identity bytes.
const CellInputSize = 8 + OutPointSize

// CellInput consumes a live cell.
type CellInput struct {
	Since          uint64   `json:"since"`
	PreviousOutput OutPoint `json:"previous_output"`
}

// Bytes returns the identity bytes of the input:
// since(8, LE) | tx_hash(32) | index(4, LE).
func (in CellInput) Bytes() []byte {
	buf := make([]byte, 0, CellInputSize)
	buf = binary.LittleEndian.AppendUint64(buf, in.Since)
	return append(buf, in.PreviousOutput.Bytes()...)
}

const (
	inputFieldSince    protowire.Number = 1
	inputFieldPrevious protowire.Number = 2

	outPointFieldTxHash protowire.Number = 1
	outPointFieldIndex  protowire.Number = 2
)

// AppendWire appends the canonical encoding of the input.
func (in CellInput) AppendWire(b []byte) []byte {
	b = wire.AppendVarint(b, inputFieldSince, in.Since)
	return wire.AppendMessage(b, inputFieldPrevious, in.PreviousOutput.AppendWire)
}

// UnmarshalBinary decodes a canonical input encoding.
func (in *CellInput) UnmarshalBinary(data []byte) error {
	var out CellInput
	var seenSince, seenPrev bool
	err := wire.Walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case inputFieldSince:
			if seenSince {
				return 0, wire.Duplicate(num)
			}
			seenSince = true
			v, n, err := wire.Varint(num, typ, b)
			out.Since = v
			return n, err
		case inputFieldPrevious:
			if seenPrev {
				return 0, wire.Duplicate(num)
			}
			seenPrev = true
			v, n, err := wire.Bytes(num, typ, b)
			if err != nil {
				return 0, err
			}
			return n, out.PreviousOutput.UnmarshalBinary(v)
		default:
			return 0, wire.Unknown(num)
		}
	})
	if err != nil {
		return err
	}
	if !seenPrev {
		return wire.Missing("previous_output")
	}
	*in = out
	return nil
}

// AppendWire appends the canonical encoding of the outpoint.
func (o OutPoint) AppendWire(b []byte) []byte {
	b = wire.AppendBytes(b, outPointFieldTxHash, o.TxHash[:])
	return wire.AppendVarint(b, outPointFieldIndex, uint64(o.Index))
}

// UnmarshalBinary decodes a canonical outpoint encoding.
func (o *OutPoint) UnmarshalBinary(data []byte) error {
	var out OutPoint
	var seenHash, seenIndex bool
	err := wire.Walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case outPointFieldTxHash:
			if seenHash {
				return 0, wire.Duplicate(num)
			}
			seenHash = true
			v, n, err := wire.Bytes(num, typ, b)
			if err != nil {
				return 0, err
			}
			h, err := BytesToHash(v)
			if err != nil {
				return 0, fmt.Errorf("%w: tx_hash: %v", wire.ErrMalformed, err)
			}
			out.TxHash = h
			return n, nil
		case outPointFieldIndex:
			if seenIndex {
				return 0, wire.Duplicate(num)
			}
			seenIndex = true
			v, n, err := wire.Varint(num, typ, b)
			if err != nil {
				return 0, err
			}
			if v > 0xffffffff {
				return 0, fmt.Errorf("%w: index %d overflows u32", wire.ErrMalformed, v)
			}
			out.Index = uint32(v)
			return n, nil
		default:
			return 0, wire.Unknown(num)
		}
	})
	if err != nil {
		return err
	}
	if !seenHash {
		return wire.Missing("tx_hash")
	}
	*o = out
	return nil
}

// DepType says how a cell dependency is interpreted.
type DepType uint8

const (
	DepTypeCode     DepType = 0 // The referenced cell itself is the dependency
	DepTypeDepGroup DepType = 1 // The referenced cell lists further outpoints
)

// String returns a human-readable name for the dep type.
func (d DepType) String() string {
	switch d {
	case DepTypeCode:
		return "code"
	case DepTypeDepGroup:
		return "dep_group"
	default:
		return "unknown"
	}
}

// CellDep references a live cell that the transaction reads without
// consuming it.
type CellDep struct {
	OutPoint OutPoint `json:"out_point"`
	DepType  DepType  `json:"dep_type"`
}

const (
	depFieldOutPoint protowire.Number = 1
	depFieldDepType  protowire.Number = 2
)

// AppendWire appends the canonical encoding of the dependency.
func (d CellDep) AppendWire(b []byte) []byte {
	b = wire.AppendMessage(b, depFieldOutPoint, d.OutPoint.AppendWire)
	return wire.AppendVarint(b, depFieldDepType, uint64(d.DepType))
}

// UnmarshalBinary decodes a canonical dependency encoding.
func (d *CellDep) UnmarshalBinary(data []byte) error {
	var out CellDep
	var seenOP, seenType bool
	err := wire.Walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case depFieldOutPoint:
			if seenOP {
				return 0, wire.Duplicate(num)
			}
			seenOP = true
			v, n, err := wire.Bytes(num, typ, b)
			if err != nil {
				return 0, err
			}
			return n, out.OutPoint.UnmarshalBinary(v)
		case depFieldDepType:
			if seenType {
				return 0, wire.Duplicate(num)
			}
			seenType = true
			v, n, err := wire.Varint(num, typ, b)
			if err != nil {
				return 0, err
			}
			if v > uint64(DepTypeDepGroup) {
				return 0, fmt.Errorf("%w: dep_type %d", wire.ErrMalformed, v)
			}
			out.DepType = DepType(v)
			return n, nil
		default:
			return 0, wire.Unknown(num)
		}
	})
	if err != nil {
		return err
	}
	if !seenOP {
		return wire.Missing("out_point")
	}
	*d = out
	return nil
}
