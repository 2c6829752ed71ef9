package udt

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-udt/internal/ledger"
	"github.com/Klingon-tech/klingnet-udt/internal/log"
	"github.com/Klingon-tech/klingnet-udt/pkg/types"
)

// CollectInputsAmount sums the amounts of the token's group inputs.
func CollectInputsAmount(acc ledger.Accessor) (types.Amount, error) {
	return collectAmount(acc, ledger.SourceGroupInput)
}

// CollectOutputsAmount sums the amounts of the token's group outputs.
func CollectOutputsAmount(acc ledger.Accessor) (types.Amount, error) {
	return collectAmount(acc, ledger.SourceGroupOutput)
}

func collectAmount(acc ledger.Accessor, src ledger.Source) (types.Amount, error) {
	var total types.Amount
	for i := 0; ; i++ {
		data, err := acc.CellData(i, src)
		if errors.Is(err, ledger.ErrIndexOutOfBound) {
			return total, nil
		}
		if err != nil {
			return types.Amount{}, err
		}
		a, err := types.AmountFromBytes(data)
		if err != nil {
			return types.Amount{}, fmt.Errorf("%w: %s %d has %d bytes", ErrEncoding, src, i, len(data))
		}
		if total, err = total.Add(a); err != nil {
			return types.Amount{}, fmt.Errorf("sum %s: %w", src, err)
		}
	}
}

// CheckOwnerMode reports whether any input of the transaction is locked
// by the script hashing to owner.
func CheckOwnerMode(acc ledger.Accessor, owner types.Hash) (bool, error) {
	for i := 0; ; i++ {
		h, err := acc.CellLockHash(i, ledger.SourceInput)
		if errors.Is(err, ledger.ErrIndexOutOfBound) {
			log.UDT.Debug().Bool("owner_mode", false).Msg("Checked owner mode")
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if h == owner {
			log.UDT.Debug().Bool("owner_mode", true).Int("input", i).Msg("Checked owner mode")
			return true, nil
		}
	}
}
