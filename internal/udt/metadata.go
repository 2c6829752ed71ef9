package udt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/Klingon-tech/klingnet-udt/internal/ledger"
	"github.com/Klingon-tech/klingnet-udt/internal/log"
	"github.com/Klingon-tech/klingnet-udt/pkg/crypto"
	"github.com/Klingon-tech/klingnet-udt/pkg/tx"
	"github.com/Klingon-tech/klingnet-udt/pkg/types"
	"github.com/Klingon-tech/klingnet-udt/pkg/wire"
	"google.golang.org/protobuf/encoding/protowire"
)

// Metadata describes a token. One metadata cell exists per token; it is
// typed by the type-id script whose args are the token script's args.
type Metadata struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	Icon     string `json:"icon"`
}

const (
	metaFieldName     protowire.Number = 1
	metaFieldSymbol   protowire.Number = 2
	metaFieldDecimals protowire.Number = 3
	metaFieldIcon     protowire.Number = 4
)

// Bytes returns the canonical encoding stored as metadata cell data.
func (m Metadata) Bytes() []byte {
	b := wire.AppendString(nil, metaFieldName, m.Name)
	b = wire.AppendString(b, metaFieldSymbol, m.Symbol)
	b = wire.AppendVarint(b, metaFieldDecimals, uint64(m.Decimals))
	return wire.AppendString(b, metaFieldIcon, m.Icon)
}

// MarshalBinary returns the canonical encoding.
func (m Metadata) MarshalBinary() ([]byte, error) {
	return m.Bytes(), nil
}

// UnmarshalBinary decodes metadata. All four fields must be present
// exactly once and strings must be valid UTF-8.
func (m *Metadata) UnmarshalBinary(data []byte) error {
	var out Metadata
	seen := make(map[protowire.Number]bool, 4)
	err := wire.Walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if seen[num] {
			return 0, wire.Duplicate(num)
		}
		seen[num] = true

		switch num {
		case metaFieldName, metaFieldSymbol, metaFieldIcon:
			v, n, err := wire.Bytes(num, typ, b)
			if err != nil {
				return 0, err
			}
			if !utf8.Valid(v) {
				return 0, fmt.Errorf("%w: field %d is not UTF-8", wire.ErrMalformed, num)
			}
			switch num {
			case metaFieldName:
				out.Name = string(v)
			case metaFieldSymbol:
				out.Symbol = string(v)
			default:
				out.Icon = string(v)
			}
			return n, nil
		case metaFieldDecimals:
			v, n, err := wire.Varint(num, typ, b)
			if err != nil {
				return 0, err
			}
			if v > 255 {
				return 0, fmt.Errorf("%w: decimals %d", wire.ErrMalformed, v)
			}
			out.Decimals = uint8(v)
			return n, nil
		default:
			return 0, wire.Unknown(num)
		}
	})
	if err != nil {
		return err
	}
	for i, name := range []string{"name", "symbol", "decimals", "icon"} {
		if !seen[protowire.Number(i+1)] {
			return wire.Missing(name)
		}
	}
	*m = out
	return nil
}

// DecodeMetadata decodes metadata cell data.
func DecodeMetadata(data []byte) (Metadata, error) {
	var m Metadata
	err := m.UnmarshalBinary(data)
	return m, err
}

// TypeIDArgs derives the args of a new type-id script from the first
// input of the creating transaction and its output count before the
// type-id cell is appended.
func TypeIDArgs(firstInput types.CellInput, outputCount uint32) types.Hash {
	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], outputCount)
	return crypto.HashConcat(firstInput.Bytes(), count[:])
}

// CreateTx appends the metadata cell for a new token to draft. The cell
// is locked by owner and typed by a fresh type-id script; the token
// script of the new token carries the same args.
func (m Metadata) CreateTx(draft *tx.Transaction, owner types.Script) (*tx.Transaction, error) {
	if draft == nil || len(draft.Inputs) == 0 {
		return nil, ErrInvalidTransactionInputs
	}
	args := TypeIDArgs(draft.Inputs[0], uint32(len(draft.Outputs)))
	typeID := types.TypeIDScript(args[:])

	log.UDT.Debug().
		Str("type_id_args", args.String()).
		Str("symbol", m.Symbol).
		Msg("Creating metadata cell")

	return tx.Extend(draft).
		AddOutput(types.CellOutput{Lock: owner, Type: &typeID}, m.Bytes()).
		Build(), nil
}

// SearchOutPoint finds the metadata cell of the running token anywhere in
// the live cell set. The token script's args are the type-id args.
func SearchOutPoint(acc ledger.Accessor) (types.OutPoint, error) {
	typeID := types.TypeIDScript(acc.Script().Args)
	op, err := acc.FindOutPointByType(typeID)
	if errors.Is(err, ledger.ErrCellNotFound) {
		return types.OutPoint{}, fmt.Errorf("%w: %v", ErrConfigNotFound, err)
	}
	if err != nil {
		return types.OutPoint{}, err
	}
	return op, nil
}

// LoadMetadata reads and decodes the running token's metadata by
// self-search.
func LoadMetadata(acc ledger.Accessor) (Metadata, error) {
	op, err := SearchOutPoint(acc)
	if err != nil {
		return Metadata{}, err
	}
	data, err := acc.CellDataByOutPoint(op)
	if errors.Is(err, ledger.ErrCellNotFound) {
		return Metadata{}, fmt.Errorf("%w: %v", ErrConfigNotFound, err)
	}
	if err != nil {
		return Metadata{}, err
	}
	m, err := DecodeMetadata(data)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrConfigInvalidFormat, err)
	}
	return m, nil
}

// ConfigCell is a metadata cell found in the current transaction.
type ConfigCell struct {
	Source ledger.Source
	Index  int
	Output types.CellOutput
	Data   []byte
}

// FindConfigCell looks for the cell typed by the type-id script with
// typeIDArgs among the cells of src in the current transaction. It
// returns nil when there is none.
func FindConfigCell(acc ledger.Accessor, typeIDArgs []byte, src ledger.Source) (*ConfigCell, error) {
	target := types.TypeIDScript(typeIDArgs)
	for i := 0; ; i++ {
		typ, err := acc.CellType(i, src)
		if errors.Is(err, ledger.ErrIndexOutOfBound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if typ == nil || !typ.Equal(target) {
			continue
		}

		out, err := acc.Cell(i, src)
		if err != nil {
			return nil, err
		}
		data, err := acc.CellData(i, src)
		if err != nil {
			return nil, err
		}
		return &ConfigCell{Source: src, Index: i, Output: out, Data: data}, nil
	}
}
