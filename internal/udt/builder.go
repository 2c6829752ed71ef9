package udt

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-udt/internal/log"
	"github.com/Klingon-tech/klingnet-udt/pkg/tx"
	"github.com/Klingon-tech/klingnet-udt/pkg/types"
)

// appendOutputs adds one token cell per lock. Capacity is left at zero;
// the caller fills in capacity and fees before submitting.
func (t *Token) appendOutputs(b *tx.Builder, locks []types.Script, amounts []types.Amount) error {
	if len(locks) != len(amounts) {
		return fmt.Errorf("%w: %d locks, %d amounts", ErrArgsInvalid, len(locks), len(amounts))
	}
	for i, lock := range locks {
		typ := t.script
		b.AddOutput(types.CellOutput{Capacity: 0, Lock: lock, Type: &typ}, amounts[i].Bytes())
	}
	return nil
}

// Transfer extends draft with token outputs. It does not check balances;
// conservation is verified when the finished transaction is validated.
func (t *Token) Transfer(draft *tx.Transaction, locks []types.Script, amounts []types.Amount) (*tx.Transaction, error) {
	log.UDT.Debug().Int("outputs", len(locks)).Msg("Entered transfer")

	b := tx.Extend(draft)
	if err := t.appendOutputs(b, locks, amounts); err != nil {
		return nil, err
	}
	return b.Build(), nil
}

// Mint extends draft with token outputs and a cell dep on the token's
// metadata cell, found by self-search. Permission is checked only when
// the finished transaction is validated.
func (t *Token) Mint(draft *tx.Transaction, locks []types.Script, amounts []types.Amount) (*tx.Transaction, error) {
	log.UDT.Debug().Int("outputs", len(locks)).Msg("Entered mint")

	b := tx.Extend(draft)
	if err := t.appendOutputs(b, locks, amounts); err != nil {
		return nil, err
	}
	op, err := SearchOutPoint(t.acc)
	if err != nil {
		return nil, err
	}
	b.AddCellDep(types.CellDep{OutPoint: op, DepType: types.DepTypeCode})
	return b.Build(), nil
}
