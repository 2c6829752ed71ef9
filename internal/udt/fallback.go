package udt

import (
	"errors"

	"github.com/Klingon-tech/klingnet-udt/internal/ledger"
	"github.com/Klingon-tech/klingnet-udt/internal/log"
	"github.com/Klingon-tech/klingnet-udt/pkg/types"
)

// Fallback verifies a transaction when the script runs without a method
// call. The balance delta decides the path: less in than out is a mint,
// equal is a transfer, more in than out is rejected.
func Fallback(acc ledger.Accessor) error {
	var lockHashes []types.Hash
	for _, src := range []ledger.Source{ledger.SourceInput, ledger.SourceOutput} {
		for i := 0; ; i++ {
			h, err := acc.CellLockHash(i, src)
			if errors.Is(err, ledger.ErrIndexOutOfBound) {
				break
			}
			if err != nil {
				return err
			}
			lockHashes = append(lockHashes, h)
		}
	}

	in, err := CollectInputsAmount(acc)
	if err != nil {
		return err
	}
	out, err := CollectOutputsAmount(acc)
	if err != nil {
		return err
	}

	log.UDT.Debug().
		Int("lock_hashes", len(lockHashes)).
		Str("inputs_amount", in.String()).
		Str("outputs_amount", out.String()).
		Msg("Entered fallback")

	tok := New(acc)
	switch in.Cmp(out) {
	case -1:
		return tok.VerifyMint()
	case 0:
		return tok.VerifyTransfer()
	default:
		return ErrInsufficientBalance
	}
}
