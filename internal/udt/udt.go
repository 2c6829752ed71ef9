// Package udt implements a fungible token script: the rich method
// surface used to build transactions and the verification run when a
// transaction carrying the token is validated.
package udt

import (
	"github.com/Klingon-tech/klingnet-udt/internal/ledger"
	"github.com/Klingon-tech/klingnet-udt/pkg/tx"
	"github.com/Klingon-tech/klingnet-udt/pkg/types"
)

// UDT is the method set of a fungible token.
type UDT interface {
	Name() (string, error)
	Symbol() (string, error)
	Decimals() (uint8, error)
	Icon() (string, error)

	// Transfer and Mint extend draft (nil starts a fresh one) with one
	// output per lock carrying the matching amount.
	Transfer(draft *tx.Transaction, locks []types.Script, amounts []types.Amount) (*tx.Transaction, error)
	Mint(draft *tx.Transaction, locks []types.Script, amounts []types.Amount) (*tx.Transaction, error)

	VerifyTransfer() error
	VerifyMint() error
}

// Token is the UDT bound to one running script and its ledger view.
type Token struct {
	acc    ledger.Accessor
	script types.Script
}

var _ UDT = (*Token)(nil)

// New returns the token run by acc.Script().
func New(acc ledger.Accessor) *Token {
	return &Token{acc: acc, script: acc.Script()}
}

// Script returns the token's type script.
func (t *Token) Script() types.Script {
	return t.script.Clone()
}

// Name returns the token name from its metadata cell.
func (t *Token) Name() (string, error) {
	m, err := LoadMetadata(t.acc)
	if err != nil {
		return "", err
	}
	return m.Name, nil
}

// Symbol returns the token symbol from its metadata cell.
func (t *Token) Symbol() (string, error) {
	m, err := LoadMetadata(t.acc)
	if err != nil {
		return "", err
	}
	return m.Symbol, nil
}

// Decimals returns the token decimals from its metadata cell.
func (t *Token) Decimals() (uint8, error) {
	m, err := LoadMetadata(t.acc)
	if err != nil {
		return 0, err
	}
	return m.Decimals, nil
}

// Icon returns the token icon from its metadata cell.
func (t *Token) Icon() (string, error) {
	m, err := LoadMetadata(t.acc)
	if err != nil {
		return "", err
	}
	return m.Icon, nil
}
