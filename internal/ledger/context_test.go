package ledger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Klingon-tech/klingnet-udt/pkg/crypto"
	"github.com/Klingon-tech/klingnet-udt/pkg/tx"
	"github.com/Klingon-tech/klingnet-udt/pkg/types"
)

func lockScript(b byte) types.Script {
	return types.Script{CodeHash: types.Hash{0xAA}, HashType: types.HashTypeType, Args: bytes.Repeat([]byte{b}, 20)}
}

func tokenScript(b byte) types.Script {
	return types.Script{CodeHash: types.Hash{0xBB}, HashType: types.HashTypeType, Args: bytes.Repeat([]byte{b}, 32)}
}

func tokenCell(txByte byte, index uint32, owner byte, token types.Script, amount uint64) Cell {
	return Cell{
		OutPoint: types.OutPoint{TxHash: types.Hash{txByte}, Index: index},
		Output:   types.CellOutput{Capacity: 100, Lock: lockScript(owner), Type: &token},
		Data:     types.NewAmount(amount).Bytes(),
	}
}

func plainCell(txByte byte, index uint32, owner byte) Cell {
	return Cell{
		OutPoint: types.OutPoint{TxHash: types.Hash{txByte}, Index: index},
		Output:   types.CellOutput{Capacity: 100, Lock: lockScript(owner)},
		Data:     []byte{},
	}
}

// testContext builds a transaction with two inputs of token A, one plain
// input, one dep, and outputs of token A, token B and a plain cell.
func testContext(t *testing.T) (*Context, *tx.Transaction) {
	t.Helper()
	a, b := tokenScript(1), tokenScript(2)
	inputs := []Cell{tokenCell(0x01, 0, 1, a, 10), plainCell(0x02, 0, 2), tokenCell(0x03, 1, 3, a, 5)}
	deps := []Cell{plainCell(0x04, 0, 4)}

	builder := tx.NewBuilder()
	for _, in := range inputs {
		builder.AddInput(in.OutPoint)
	}
	for _, d := range deps {
		builder.AddCellDep(types.CellDep{OutPoint: d.OutPoint})
	}
	builder.
		AddOutput(types.CellOutput{Lock: lockScript(5), Type: &b}, types.NewAmount(1).Bytes()).
		AddOutput(types.CellOutput{Lock: lockScript(6), Type: &a}, types.NewAmount(15).Bytes()).
		AddOutput(types.CellOutput{Lock: lockScript(7)}, nil)
	draft := builder.Build()

	ctx, err := NewContext(a, draft, inputs, deps, nil)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	return ctx, draft
}

func count(t *testing.T, acc Accessor, src Source) int {
	t.Helper()
	n := 0
	if err := ForEachCell(acc, src, func(int, types.CellOutput) error { n++; return nil }); err != nil {
		t.Fatalf("ForEachCell(%s): %v", src, err)
	}
	return n
}

func TestContext_Counts(t *testing.T) {
	ctx, _ := testContext(t)
	tests := []struct {
		src  Source
		want int
	}{
		{SourceInput, 3},
		{SourceOutput, 3},
		{SourceCellDep, 1},
		{SourceGroupInput, 2},
		{SourceGroupOutput, 1},
	}
	for _, tt := range tests {
		t.Run(tt.src.String(), func(t *testing.T) {
			if got := count(t, ctx, tt.src); got != tt.want {
				t.Errorf("%s count = %d, want %d", tt.src, got, tt.want)
			}
		})
	}
}

func TestContext_GroupData(t *testing.T) {
	ctx, _ := testContext(t)

	d, err := ctx.CellData(1, SourceGroupInput)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(d, types.NewAmount(5).Bytes()) {
		t.Errorf("group input 1 data = %x", d)
	}
	d, err = ctx.CellData(0, SourceGroupOutput)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(d, types.NewAmount(15).Bytes()) {
		t.Errorf("group output 0 data = %x", d)
	}
	if _, err := ctx.CellData(2, SourceGroupInput); !errors.Is(err, ErrIndexOutOfBound) {
		t.Errorf("past group end = %v, want ErrIndexOutOfBound", err)
	}
	if _, err := ctx.CellData(-1, SourceInput); !errors.Is(err, ErrIndexOutOfBound) {
		t.Errorf("negative index = %v, want ErrIndexOutOfBound", err)
	}
}

func TestContext_LockHashAndType(t *testing.T) {
	ctx, _ := testContext(t)

	h, err := ctx.CellLockHash(1, SourceInput)
	if err != nil {
		t.Fatal(err)
	}
	if h != crypto.ScriptHash(lockScript(2)) {
		t.Error("lock hash should be the script hash of the lock")
	}

	typ, err := ctx.CellType(1, SourceInput)
	if err != nil || typ != nil {
		t.Errorf("plain cell type = %v, %v; want nil", typ, err)
	}
	typ, err = ctx.CellType(0, SourceOutput)
	if err != nil || typ == nil || !typ.Equal(tokenScript(2)) {
		t.Errorf("output 0 type = %v, %v", typ, err)
	}
}

func TestContext_Immutable(t *testing.T) {
	ctx, draft := testContext(t)

	draft.OutputsData[1][0] = 0xFF
	d, _ := ctx.CellData(1, SourceOutput)
	if d[0] == 0xFF {
		t.Error("context should not share memory with the draft")
	}

	d[0] = 0xEE
	again, _ := ctx.CellData(1, SourceOutput)
	if again[0] == 0xEE {
		t.Error("CellData should return a copy")
	}

	s := ctx.Script()
	s.Args[0] = 0
	if ctx.Script().Args[0] != 1 {
		t.Error("Script should return a copy")
	}
}

func TestContext_OutputOutPoints(t *testing.T) {
	ctx, draft := testContext(t)
	if len(ctx.outputs) != 3 {
		t.Fatalf("outputs = %d", len(ctx.outputs))
	}
	if ctx.outputs[2].OutPoint != (types.OutPoint{TxHash: draft.Hash(), Index: 2}) {
		t.Errorf("output outpoint = %s", ctx.outputs[2].OutPoint)
	}
}

func TestNewContext_Mismatch(t *testing.T) {
	a := tokenScript(1)
	draft := tx.NewBuilder().AddInput(types.OutPoint{TxHash: types.Hash{0x01}}).Build()

	tests := []struct {
		name   string
		inputs []Cell
	}{
		{"missing input", nil},
		{"wrong outpoint", []Cell{plainCell(0x09, 0, 1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewContext(a, draft, tt.inputs, nil, nil); !errors.Is(err, ErrSnapshotMismatch) {
				t.Errorf("expected ErrSnapshotMismatch, got %v", err)
			}
		})
	}

	bad := draft.Clone()
	bad.Outputs = append(bad.Outputs, types.CellOutput{Lock: lockScript(1)})
	if _, err := NewContext(a, bad, []Cell{plainCell(0x01, 0, 1)}, nil, nil); !errors.Is(err, tx.ErrOutputsDataMismatch) {
		t.Errorf("expected ErrOutputsDataMismatch, got %v", err)
	}
}

func TestContext_ScriptLevel(t *testing.T) {
	ctx, err := NewContext(tokenScript(1), nil, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if count(t, ctx, SourceInput) != 0 || count(t, ctx, SourceGroupOutput) != 0 {
		t.Error("script-level context should have no cells")
	}
	if _, err := ctx.FindOutPointByType(tokenScript(1)); !errors.Is(err, ErrCellNotFound) {
		t.Errorf("FindOutPointByType without chain = %v, want ErrCellNotFound", err)
	}
	if _, err := ctx.CellDataByOutPoint(types.OutPoint{}); !errors.Is(err, ErrCellNotFound) {
		t.Errorf("CellDataByOutPoint without chain = %v, want ErrCellNotFound", err)
	}
}

func TestForEachCell_PropagatesError(t *testing.T) {
	ctx, _ := testContext(t)
	boom := errors.New("boom")
	calls := 0
	err := ForEachCell(ctx, SourceInput, func(int, types.CellOutput) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Errorf("err=%v calls=%d", err, calls)
	}
}
