package udt

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-udt/internal/ledger"
	"github.com/Klingon-tech/klingnet-udt/internal/log"
	"github.com/Klingon-tech/klingnet-udt/pkg/crypto"
	"github.com/Klingon-tech/klingnet-udt/pkg/types"
)

// VerifyTransfer succeeds iff the group inputs hold at least as many
// tokens as the group outputs. Any excess is burned.
func (t *Token) VerifyTransfer() error {
	in, err := CollectInputsAmount(t.acc)
	if err != nil {
		return err
	}
	out, err := CollectOutputsAmount(t.acc)
	if err != nil {
		return err
	}

	log.UDT.Debug().
		Str("inputs_amount", in.String()).
		Str("outputs_amount", out.String()).
		Msg("Verifying transfer")

	if in.Cmp(out) < 0 {
		return fmt.Errorf("%w: inputs %s < outputs %s", ErrInsufficientBalance, in, out)
	}
	return nil
}

// VerifyMint succeeds iff the transaction spends a cell locked by the
// owner of the token's metadata cell. The metadata cell is searched in the
// cell deps first and then in the outputs, so a transaction may create a
// token and mint it at once.
func (t *Token) VerifyMint() error {
	args := t.script.Args
	if len(args) != types.TypeIDArgsSize {
		return fmt.Errorf("%w: got %d", ErrInvalidPolicyArgs, len(args))
	}

	cell, err := FindConfigCell(t.acc, args, ledger.SourceCellDep)
	if err != nil {
		return err
	}
	if cell == nil {
		if cell, err = FindConfigCell(t.acc, args, ledger.SourceOutput); err != nil {
			return err
		}
	}
	if cell == nil {
		return ErrConfigNotFound
	}

	if _, err := DecodeMetadata(cell.Data); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigInvalidFormat, err)
	}

	owner := crypto.ScriptHash(cell.Output.Lock)
	log.UDT.Debug().
		Str("source", cell.Source.String()).
		Str("owner_lock_hash", owner.String()).
		Msg("Verifying mint")

	ok, err := CheckOwnerMode(t.acc, owner)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoMintPermission
	}
	return nil
}
