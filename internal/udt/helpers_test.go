package udt

import (
	"bytes"
	"testing"

	"github.com/Klingon-tech/klingnet-udt/internal/ledger"
	"github.com/Klingon-tech/klingnet-udt/internal/storage"
	"github.com/Klingon-tech/klingnet-udt/pkg/tx"
	"github.com/Klingon-tech/klingnet-udt/pkg/types"
)

var udtCodeHash = types.Hash{0xC0, 0xDE}

var testMeta = Metadata{
	Name:     "Test UDT",
	Symbol:   "TEST",
	Decimals: 8,
	Icon:     "https://example.com/icon.png",
}

func lockScript(b byte) types.Script {
	return types.Script{CodeHash: types.Hash{0xAA}, HashType: types.HashTypeType, Args: bytes.Repeat([]byte{b}, 20)}
}

var (
	ownerLock    = lockScript(1)
	userALock    = lockScript(2)
	userBLock    = lockScript(3)
	strangerLock = lockScript(4)
)

func tokenScript(args []byte) types.Script {
	return types.Script{CodeHash: udtCodeHash, HashType: types.HashTypeType, Args: args}
}

func plainCell(txByte byte, lock types.Script) ledger.Cell {
	return ledger.Cell{
		OutPoint: types.OutPoint{TxHash: types.Hash{txByte}},
		Output:   types.CellOutput{Capacity: 1000, Lock: lock},
		Data:     []byte{},
	}
}

func tokenCell(txByte byte, index uint32, lock, token types.Script, amount uint64) ledger.Cell {
	return ledger.Cell{
		OutPoint: types.OutPoint{TxHash: types.Hash{txByte}, Index: index},
		Output:   types.CellOutput{Capacity: 100, Lock: lock, Type: &token},
		Data:     types.NewAmount(amount).Bytes(),
	}
}

// fixture is a cell store holding one created token: its metadata cell
// (locked by ownerLock), a plain owner cell and a plain stranger cell.
type fixture struct {
	store        *ledger.Store
	token        types.Script
	metaOutPoint types.OutPoint
	ownerCell    types.OutPoint
	strangerCell types.OutPoint
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := ledger.NewStore(storage.NewMemory())

	genesis := plainCell(0x01, ownerLock)
	stranger := plainCell(0x02, strangerLock)
	for _, c := range []*ledger.Cell{&genesis, &stranger} {
		if err := store.Put(c); err != nil {
			t.Fatal(err)
		}
	}

	draft := tx.NewBuilder().
		AddInput(genesis.OutPoint).
		AddOutput(types.CellOutput{Capacity: 500, Lock: ownerLock}, nil).
		Build()
	created, err := testMeta.CreateTx(draft, ownerLock)
	if err != nil {
		t.Fatalf("CreateTx: %v", err)
	}
	if err := store.Apply(created); err != nil {
		t.Fatalf("Apply create: %v", err)
	}

	h := created.Hash()
	return &fixture{
		store:        store,
		token:        tokenScript(created.Outputs[1].Type.Args),
		metaOutPoint: types.OutPoint{TxHash: h, Index: 1},
		ownerCell:    types.OutPoint{TxHash: h, Index: 0},
		strangerCell: stranger.OutPoint,
	}
}

// scriptContext is the view of a rich call made outside any transaction.
func (f *fixture) scriptContext(t *testing.T) *ledger.Context {
	t.Helper()
	ctx, err := ledger.NewContext(f.token, nil, nil, nil, f.store)
	if err != nil {
		t.Fatal(err)
	}
	return ctx
}

func (f *fixture) resolve(t *testing.T, draft *tx.Transaction) *ledger.Context {
	t.Helper()
	ctx, err := ledger.Resolve(f.store, draft, f.token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return ctx
}

// amountContext builds a transaction view where the group inputs and
// outputs of token hold the given amounts.
func amountContext(t *testing.T, token types.Script, ins, outs []uint64) *ledger.Context {
	t.Helper()
	var inputs []ledger.Cell
	b := tx.NewBuilder()
	for i, a := range ins {
		c := tokenCell(0x10, uint32(i), userALock, token, a)
		inputs = append(inputs, c)
		b.AddInput(c.OutPoint)
	}
	for _, a := range outs {
		b.AddOutput(types.CellOutput{Lock: userBLock, Type: &token}, types.NewAmount(a).Bytes())
	}
	ctx, err := ledger.NewContext(token, b.Build(), inputs, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return ctx
}

func amounts(vals ...uint64) []types.Amount {
	out := make([]types.Amount, len(vals))
	for i, v := range vals {
		out[i] = types.NewAmount(v)
	}
	return out
}

// failingAccessor returns err from every CellData call.
type failingAccessor struct {
	ledger.Accessor
	err error
}

func (f failingAccessor) CellData(int, ledger.Source) ([]byte, error) {
	return nil, f.err
}
