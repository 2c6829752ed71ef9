package tx

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-udt/pkg/types"
)

// Limits on transaction shape.
const (
	MaxInputs   = 1024
	MaxOutputs  = 1024
	MaxCellDeps = 256
)

// Validation errors.
var (
	ErrNoInputs            = errors.New("transaction has no inputs")
	ErrOutputsDataMismatch = errors.New("outputs and outputs data differ in length")
	ErrDuplicateInput      = errors.New("duplicate input")
	ErrTooManyInputs       = errors.New("too many inputs")
	ErrTooManyOutputs      = errors.New("too many outputs")
	ErrTooManyCellDeps     = errors.New("too many cell deps")
)

// CheckOutputsData verifies that every output has exactly one data entry.
func (tx *Transaction) CheckOutputsData() error {
	if len(tx.Outputs) != len(tx.OutputsData) {
		return fmt.Errorf("%w: %d outputs, %d data", ErrOutputsDataMismatch, len(tx.Outputs), len(tx.OutputsData))
	}
	return nil
}

// Validate checks transaction structure. It does NOT check that inputs
// exist (that requires the cell store).
func (tx *Transaction) Validate() error {
	if len(tx.Inputs) == 0 {
		return ErrNoInputs
	}
	if len(tx.Inputs) > MaxInputs {
		return fmt.Errorf("%w: %d inputs, max %d", ErrTooManyInputs, len(tx.Inputs), MaxInputs)
	}
	if len(tx.Outputs) > MaxOutputs {
		return fmt.Errorf("%w: %d outputs, max %d", ErrTooManyOutputs, len(tx.Outputs), MaxOutputs)
	}
	if len(tx.CellDeps) > MaxCellDeps {
		return fmt.Errorf("%w: %d cell deps, max %d", ErrTooManyCellDeps, len(tx.CellDeps), MaxCellDeps)
	}
	if err := tx.CheckOutputsData(); err != nil {
		return err
	}

	seen := make(map[types.OutPoint]bool, len(tx.Inputs))
	for i, in := range tx.Inputs {
		if seen[in.PreviousOutput] {
			return fmt.Errorf("input %d: %w", i, ErrDuplicateInput)
		}
		seen[in.PreviousOutput] = true
	}
	return nil
}
