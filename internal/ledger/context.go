package ledger

import (
	"bytes"
	"fmt"

	"github.com/Klingon-tech/klingnet-udt/pkg/crypto"
	"github.com/Klingon-tech/klingnet-udt/pkg/tx"
	"github.com/Klingon-tech/klingnet-udt/pkg/types"
)

// Context is an immutable Accessor over one resolved transaction, seen
// from one running script.
type Context struct {
	script  types.Script
	inputs  []Cell
	outputs []Cell
	deps    []Cell

	groupInputs  []int
	groupOutputs []int

	chain ChainIndex
}

// NewContext builds the view of draft for script. inputs[i] must be the
// cell consumed by draft.Inputs[i] and deps[i] the cell referenced by
// draft.CellDeps[i]. A nil draft gives a script-level context with no
// transaction cells. chain may be nil, in which case chain-wide lookups
// find nothing.
func NewContext(script types.Script, draft *tx.Transaction, inputs, deps []Cell, chain ChainIndex) (*Context, error) {
	c := &Context{script: script.Clone(), chain: chain}
	if draft == nil {
		if len(inputs) != 0 || len(deps) != 0 {
			return nil, fmt.Errorf("%w: cells given without a transaction", ErrSnapshotMismatch)
		}
		return c, nil
	}

	if len(inputs) != len(draft.Inputs) {
		return nil, fmt.Errorf("%w: %d inputs, %d resolved", ErrSnapshotMismatch, len(draft.Inputs), len(inputs))
	}
	if len(deps) != len(draft.CellDeps) {
		return nil, fmt.Errorf("%w: %d cell deps, %d resolved", ErrSnapshotMismatch, len(draft.CellDeps), len(deps))
	}
	if err := draft.CheckOutputsData(); err != nil {
		return nil, err
	}

	for i, in := range inputs {
		if in.OutPoint != draft.Inputs[i].PreviousOutput {
			return nil, fmt.Errorf("%w: input %d resolves %s, want %s", ErrSnapshotMismatch, i, in.OutPoint, draft.Inputs[i].PreviousOutput)
		}
		c.inputs = append(c.inputs, in.Clone())
		if in.Output.HasType(script) {
			c.groupInputs = append(c.groupInputs, i)
		}
	}
	for i, d := range deps {
		if d.OutPoint != draft.CellDeps[i].OutPoint {
			return nil, fmt.Errorf("%w: cell dep %d resolves %s, want %s", ErrSnapshotMismatch, i, d.OutPoint, draft.CellDeps[i].OutPoint)
		}
		c.deps = append(c.deps, d.Clone())
	}

	txHash := draft.Hash()
	for i, out := range draft.Outputs {
		cell := Cell{
			OutPoint: types.OutPoint{TxHash: txHash, Index: uint32(i)},
			Output:   out,
			Data:     draft.OutputsData[i],
		}
		c.outputs = append(c.outputs, cell.Clone())
		if out.HasType(script) {
			c.groupOutputs = append(c.groupOutputs, i)
		}
	}
	return c, nil
}

// Script returns the script being executed.
func (c *Context) Script() types.Script {
	return c.script.Clone()
}

func (c *Context) cell(index int, src Source) (*Cell, error) {
	var cells []Cell
	switch src {
	case SourceInput:
		cells = c.inputs
	case SourceOutput:
		cells = c.outputs
	case SourceCellDep:
		cells = c.deps
	case SourceGroupInput, SourceGroupOutput:
		cells, group := c.inputs, c.groupInputs
		if src == SourceGroupOutput {
			cells, group = c.outputs, c.groupOutputs
		}
		if index < 0 || index >= len(group) {
			return nil, ErrIndexOutOfBound
		}
		return &cells[group[index]], nil
	default:
		return nil, fmt.Errorf("unknown source %d", src)
	}

	if index < 0 || index >= len(cells) {
		return nil, ErrIndexOutOfBound
	}
	return &cells[index], nil
}

// Cell returns a copy of the output part of a cell.
func (c *Context) Cell(index int, src Source) (types.CellOutput, error) {
	cell, err := c.cell(index, src)
	if err != nil {
		return types.CellOutput{}, err
	}
	return cell.Output.Clone(), nil
}

// CellData returns a copy of a cell's data.
func (c *Context) CellData(index int, src Source) ([]byte, error) {
	cell, err := c.cell(index, src)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(cell.Data), nil
}

// CellLockHash returns the script hash of a cell's lock.
func (c *Context) CellLockHash(index int, src Source) (types.Hash, error) {
	cell, err := c.cell(index, src)
	if err != nil {
		return types.Hash{}, err
	}
	return crypto.ScriptHash(cell.Output.Lock), nil
}

// CellType returns a copy of a cell's type script, or nil.
func (c *Context) CellType(index int, src Source) (*types.Script, error) {
	cell, err := c.cell(index, src)
	if err != nil {
		return nil, err
	}
	if cell.Output.Type == nil {
		return nil, nil
	}
	s := cell.Output.Type.Clone()
	return &s, nil
}

// FindOutPointByType searches the live cell set.
func (c *Context) FindOutPointByType(script types.Script) (types.OutPoint, error) {
	if c.chain == nil {
		return types.OutPoint{}, ErrCellNotFound
	}
	return c.chain.FindOutPointByType(script)
}

// CellDataByOutPoint reads a live cell's data from the chain index.
func (c *Context) CellDataByOutPoint(op types.OutPoint) ([]byte, error) {
	if c.chain == nil {
		return nil, ErrCellNotFound
	}
	return c.chain.CellDataByOutPoint(op)
}
