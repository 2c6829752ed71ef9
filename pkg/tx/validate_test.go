package tx

import (
	"errors"
	"testing"

	"github.com/Klingon-tech/klingnet-udt/pkg/types"
)

func TestValidate_Valid(t *testing.T) {
	if err := sampleTx().Validate(); err != nil {
		t.Errorf("valid tx should pass: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Transaction)
		want   error
	}{
		{"no inputs", func(tx *Transaction) { tx.Inputs = nil }, ErrNoInputs},
		{"missing data", func(tx *Transaction) { tx.OutputsData = tx.OutputsData[:1] }, ErrOutputsDataMismatch},
		{"extra data", func(tx *Transaction) { tx.OutputsData = append(tx.OutputsData, []byte{}) }, ErrOutputsDataMismatch},
		{"duplicate input", func(tx *Transaction) { tx.Inputs = append(tx.Inputs, tx.Inputs[0]) }, ErrDuplicateInput},
		{"too many inputs", func(tx *Transaction) {
			tx.Inputs = make([]types.CellInput, MaxInputs+1)
			for i := range tx.Inputs {
				tx.Inputs[i].PreviousOutput.Index = uint32(i)
			}
		}, ErrTooManyInputs},
		{"too many outputs", func(tx *Transaction) {
			tx.Outputs = make([]types.CellOutput, MaxOutputs+1)
			tx.OutputsData = make([][]byte, MaxOutputs+1)
		}, ErrTooManyOutputs},
		{"too many deps", func(tx *Transaction) { tx.CellDeps = make([]types.CellDep, MaxCellDeps+1) }, ErrTooManyCellDeps},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := sampleTx()
			tt.mutate(tx)
			if err := tx.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
