package tx

import (
	"bytes"
	"fmt"

	"github.com/Klingon-tech/klingnet-udt/pkg/crypto"
	"github.com/Klingon-tech/klingnet-udt/pkg/types"
)

// Builder extends a transaction draft. It works on a private copy, so the
// draft it started from is never modified and every Build returns a new
// value.
type Builder struct {
	tx *Transaction
}

// NewBuilder starts a fresh draft with empty defaults.
func NewBuilder() *Builder {
	return &Builder{tx: &Transaction{}}
}

// Extend starts from a copy of base. A nil base behaves like NewBuilder.
func Extend(base *Transaction) *Builder {
	return &Builder{tx: base.Clone()}
}

// SetVersion sets the transaction version.
func (b *Builder) SetVersion(v uint32) *Builder {
	b.tx.Version = v
	return b
}

// AddCellDep appends a cell dependency.
func (b *Builder) AddCellDep(dep types.CellDep) *Builder {
	b.tx.CellDeps = append(b.tx.CellDeps, dep)
	return b
}

// AddHeaderDep appends a header dependency.
func (b *Builder) AddHeaderDep(h types.Hash) *Builder {
	b.tx.HeaderDeps = append(b.tx.HeaderDeps, h)
	return b
}

// AddInput appends an input consuming prev.
func (b *Builder) AddInput(prev types.OutPoint) *Builder {
	b.tx.Inputs = append(b.tx.Inputs, types.CellInput{PreviousOutput: prev})
	return b
}

// AddOutput appends an output together with its data, keeping Outputs and
// OutputsData the same length.
func (b *Builder) AddOutput(out types.CellOutput, data []byte) *Builder {
	d := bytes.Clone(data)
	if d == nil {
		d = []byte{}
	}
	b.tx.Outputs = append(b.tx.Outputs, out.Clone())
	b.tx.OutputsData = append(b.tx.OutputsData, d)
	return b
}

// AddWitness appends a witness.
func (b *Builder) AddWitness(w []byte) *Builder {
	b.tx.Witnesses = append(b.tx.Witnesses, bytes.Clone(w))
	return b
}

// Sign appends the key's witness over the current transaction hash.
// Witnesses are not part of the hash, so several keys may sign in turn.
func (b *Builder) Sign(key *crypto.PrivateKey) error {
	hash := b.tx.Hash()
	w, err := key.Witness(hash[:])
	if err != nil {
		return fmt.Errorf("sign tx: %w", err)
	}
	b.tx.Witnesses = append(b.tx.Witnesses, w)
	return nil
}

// Build returns a copy of the constructed transaction. It does NOT
// validate; call Validate separately.
func (b *Builder) Build() *Transaction {
	return b.tx.Clone()
}
