// Package ledger gives token scripts a read-only view of one transaction
// and of the live cell set it is validated against.
package ledger

import (
	"errors"

	"github.com/Klingon-tech/klingnet-udt/pkg/types"
)

// Ledger errors.
var (
	// ErrIndexOutOfBound marks the end of an enumeration. Loops over a
	// Source stop on it; it is not a failure.
	ErrIndexOutOfBound = errors.New("index out of bound")
	// ErrCellNotFound is returned when a chain-wide lookup has no match.
	ErrCellNotFound        = errors.New("cell not found")
	ErrDepGroupUnsupported = errors.New("dep group cell deps are not supported")
	ErrSnapshotMismatch    = errors.New("resolved cells do not match transaction")
)

// Source selects which cells of the transaction an index refers to.
type Source uint8

const (
	SourceInput       Source = iota + 1 // Every consumed cell
	SourceOutput                        // Every created cell
	SourceCellDep                       // Every referenced dependency cell
	SourceGroupInput                    // Consumed cells whose type is the running script
	SourceGroupOutput                   // Created cells whose type is the running script
)

// String returns a human-readable name for the source.
func (s Source) String() string {
	switch s {
	case SourceInput:
		return "input"
	case SourceOutput:
		return "output"
	case SourceCellDep:
		return "cell_dep"
	case SourceGroupInput:
		return "group_input"
	case SourceGroupOutput:
		return "group_output"
	default:
		return "unknown"
	}
}

// Cell is a live cell: its location, its output and its data.
type Cell struct {
	OutPoint types.OutPoint   `json:"out_point"`
	Output   types.CellOutput `json:"output"`
	Data     []byte           `json:"data"`
}

// Clone returns a deep copy of the cell.
func (c Cell) Clone() Cell {
	c.Output = c.Output.Clone()
	c.Data = append([]byte{}, c.Data...)
	return c
}

// ChainIndex answers lookups over the live cell set.
type ChainIndex interface {
	// FindOutPointByType returns the location of the live cell whose type
	// script equals script, or ErrCellNotFound.
	FindOutPointByType(script types.Script) (types.OutPoint, error)
	// CellDataByOutPoint returns the data of a live cell, or ErrCellNotFound.
	CellDataByOutPoint(op types.OutPoint) ([]byte, error)
}

// Accessor is everything a token script may read while it runs.
// Index-based methods return ErrIndexOutOfBound once index passes the
// last cell of src.
type Accessor interface {
	ChainIndex

	// Script returns the script being executed.
	Script() types.Script
	Cell(index int, src Source) (types.CellOutput, error)
	CellData(index int, src Source) ([]byte, error)
	CellLockHash(index int, src Source) (types.Hash, error)
	// CellType returns nil when the cell has no type script.
	CellType(index int, src Source) (*types.Script, error)
}

// ForEachCell calls fn for every cell of src in index order and stops
// cleanly at exhaustion.
func ForEachCell(acc Accessor, src Source, fn func(index int, out types.CellOutput) error) error {
	for i := 0; ; i++ {
		out, err := acc.Cell(i, src)
		if errors.Is(err, ErrIndexOutOfBound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(i, out); err != nil {
			return err
		}
	}
}
