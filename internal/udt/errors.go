package udt

import (
	"errors"

	"github.com/Klingon-tech/klingnet-udt/internal/ledger"
	"github.com/Klingon-tech/klingnet-udt/pkg/types"
)

// Token script errors.
var (
	ErrArgsInvalid              = errors.New("invalid method arguments")
	ErrMethodNotFound           = errors.New("method not found")
	ErrDecode                   = errors.New("malformed call argument")
	ErrEncoding                 = errors.New("cell data is not a 16-byte amount")
	ErrInsufficientBalance      = errors.New("insufficient balance")
	ErrNoMintPermission         = errors.New("no mint permission")
	ErrConfigNotFound           = errors.New("metadata cell not found")
	ErrConfigInvalidFormat      = errors.New("metadata cell data is malformed")
	ErrInvalidTransactionInputs = errors.New("transaction has no inputs")
	ErrInvalidPolicyArgs        = errors.New("token script args must be 32 bytes")
	ErrAmountOverflow           = types.ErrAmountOverflow
)

// Exit codes returned by Main.
const (
	ExitOK                       int8 = 0
	ExitIndexOutOfBound          int8 = 1
	ExitItemMissing              int8 = 2
	ExitLengthNotEnough          int8 = 3
	ExitEncoding                 int8 = 4
	ExitMethodNotFound           int8 = 5
	ExitArgsInvalid              int8 = 6
	ExitDecode                   int8 = 7
	ExitInsufficientBalance      int8 = 8
	ExitNoMintPermission         int8 = 9
	ExitConfigNotFound           int8 = 10
	ExitConfigInvalidFormat      int8 = 11
	ExitInvalidTransactionInputs int8 = 12
	ExitInvalidPolicyArgs        int8 = 13
	ExitAmountOverflow           int8 = 14
	ExitUnknown                  int8 = -1
)

var exitCodes = []struct {
	err  error
	code int8
}{
	// Token errors first: they may wrap a ledger error as their cause.
	{ErrEncoding, ExitEncoding},
	{ErrMethodNotFound, ExitMethodNotFound},
	{ErrArgsInvalid, ExitArgsInvalid},
	{ErrDecode, ExitDecode},
	{ErrInsufficientBalance, ExitInsufficientBalance},
	{ErrNoMintPermission, ExitNoMintPermission},
	{ErrConfigNotFound, ExitConfigNotFound},
	{ErrConfigInvalidFormat, ExitConfigInvalidFormat},
	{ErrInvalidTransactionInputs, ExitInvalidTransactionInputs},
	{ErrInvalidPolicyArgs, ExitInvalidPolicyArgs},
	{ErrAmountOverflow, ExitAmountOverflow},
	{ledger.ErrIndexOutOfBound, ExitIndexOutOfBound},
	{ledger.ErrCellNotFound, ExitItemMissing},
	{ledger.ErrSnapshotMismatch, ExitLengthNotEnough},
}

// ExitCode maps an error to the process exit status. nil maps to 0 and
// errors outside the taxonomy map to -1.
func ExitCode(err error) int8 {
	if err == nil {
		return ExitOK
	}
	for _, e := range exitCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return ExitUnknown
}
