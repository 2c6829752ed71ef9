package ledger

import (
	"errors"
	"testing"

	"github.com/Klingon-tech/klingnet-udt/internal/storage"
	"github.com/Klingon-tech/klingnet-udt/pkg/crypto"
	"github.com/Klingon-tech/klingnet-udt/pkg/tx"
	"github.com/Klingon-tech/klingnet-udt/pkg/types"
)

func TestStore_PutGetDelete(t *testing.T) {
	s := NewStore(storage.NewMemory())
	c := tokenCell(0x01, 2, 1, tokenScript(1), 42)

	if err := s.Put(&c); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(c.OutPoint)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Output.HasType(tokenScript(1)) || !got.Output.Lock.Equal(lockScript(1)) {
		t.Errorf("Get = %+v", got)
	}
	if ok, _ := s.Has(c.OutPoint); !ok {
		t.Error("Has = false after Put")
	}

	if err := s.Delete(c.OutPoint); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(c.OutPoint); !errors.Is(err, ErrCellNotFound) {
		t.Errorf("Get after delete = %v, want ErrCellNotFound", err)
	}
	if _, err := s.FindOutPointByType(tokenScript(1)); !errors.Is(err, ErrCellNotFound) {
		t.Error("type index entry should be removed with the cell")
	}
	if cells, _ := s.ByLock(crypto.ScriptHash(lockScript(1))); len(cells) != 0 {
		t.Error("lock index entry should be removed with the cell")
	}
	if err := s.Delete(c.OutPoint); err != nil {
		t.Errorf("deleting a missing cell should not error: %v", err)
	}
}

func TestStore_FindOutPointByType(t *testing.T) {
	s := NewStore(storage.NewMemory())
	meta := types.TypeIDScript(make([]byte, 32))
	c := Cell{
		OutPoint: types.OutPoint{TxHash: types.Hash{0x07}, Index: 1},
		Output:   types.CellOutput{Lock: lockScript(1), Type: &meta},
		Data:     []byte("metadata"),
	}
	s.Put(&c)
	other := tokenCell(0x08, 0, 1, tokenScript(1), 1)
	s.Put(&other)

	op, err := s.FindOutPointByType(meta)
	if err != nil {
		t.Fatal(err)
	}
	if op != c.OutPoint {
		t.Errorf("FindOutPointByType = %s, want %s", op, c.OutPoint)
	}
	data, err := s.CellDataByOutPoint(op)
	if err != nil || string(data) != "metadata" {
		t.Errorf("CellDataByOutPoint = %q, %v", data, err)
	}

	if _, err := s.FindOutPointByType(types.TypeIDScript(make([]byte, 31))); !errors.Is(err, ErrCellNotFound) {
		t.Errorf("different args should not match: %v", err)
	}
}

func TestStore_ApplyAndBalance(t *testing.T) {
	s := NewStore(storage.NewMemory())
	token := tokenScript(1)
	owner := crypto.ScriptHash(lockScript(1))

	genesis := tokenCell(0x01, 0, 1, token, 20000000000)
	s.Put(&genesis)

	bal, err := s.Balance(owner, token)
	if err != nil || bal.String() != "20000000000" {
		t.Fatalf("initial balance = %s, %v", bal, err)
	}

	spend := tx.NewBuilder().
		AddInput(genesis.OutPoint).
		AddOutput(types.CellOutput{Lock: lockScript(2), Type: &token}, types.NewAmount(10000000000).Bytes()).
		AddOutput(types.CellOutput{Lock: lockScript(1), Type: &token}, types.NewAmount(10000000000).Bytes()).
		Build()
	if err := s.Apply(spend); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if ok, _ := s.Has(genesis.OutPoint); ok {
		t.Error("consumed input should be gone")
	}
	for _, lock := range []byte{1, 2} {
		bal, err := s.Balance(crypto.ScriptHash(lockScript(lock)), token)
		if err != nil || bal.String() != "10000000000" {
			t.Errorf("lock %d balance = %s, %v", lock, bal, err)
		}
	}
	out, err := s.Get(types.OutPoint{TxHash: spend.Hash(), Index: 1})
	if err != nil || !out.Output.Lock.Equal(lockScript(1)) {
		t.Errorf("output 1 = %+v, %v", out, err)
	}

	// Spending the same input again must fail and write nothing.
	if err := s.Apply(spend); !errors.Is(err, ErrCellNotFound) {
		t.Errorf("double spend = %v, want ErrCellNotFound", err)
	}

	n := 0
	s.ForEach(func(*Cell) error { n++; return nil })
	if n != 2 {
		t.Errorf("live cells = %d, want 2", n)
	}
}

func TestStore_ApplyRejectsBadDraft(t *testing.T) {
	s := NewStore(storage.NewMemory())
	c := plainCell(0x01, 0, 1)
	s.Put(&c)

	dup := tx.NewBuilder().AddInput(c.OutPoint).AddInput(c.OutPoint).Build()
	if err := s.Apply(dup); !errors.Is(err, tx.ErrDuplicateInput) {
		t.Errorf("duplicate input = %v", err)
	}
	mismatch := tx.NewBuilder().AddInput(c.OutPoint).Build()
	mismatch.Outputs = append(mismatch.Outputs, types.CellOutput{Lock: lockScript(1)})
	if err := s.Apply(mismatch); !errors.Is(err, tx.ErrOutputsDataMismatch) {
		t.Errorf("outputs data mismatch = %v", err)
	}
	if ok, _ := s.Has(c.OutPoint); !ok {
		t.Error("a rejected apply should leave the input live")
	}
}

func TestStore_BalanceMalformed(t *testing.T) {
	s := NewStore(storage.NewMemory())
	c := tokenCell(0x01, 0, 1, tokenScript(1), 1)
	c.Data = []byte{1, 2, 3}
	s.Put(&c)

	if _, err := s.Balance(crypto.ScriptHash(lockScript(1)), tokenScript(1)); !errors.Is(err, types.ErrAmountLength) {
		t.Errorf("expected ErrAmountLength, got %v", err)
	}
	// Other token types are ignored.
	if bal, err := s.Balance(crypto.ScriptHash(lockScript(1)), tokenScript(2)); err != nil || !bal.IsZero() {
		t.Errorf("other token balance = %s, %v", bal, err)
	}
}

func TestStore_Badger(t *testing.T) {
	db, err := storage.NewBadger(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	s := NewStore(storage.NewPrefixDB(db, []byte("devnet/")))

	c := tokenCell(0x01, 0, 1, tokenScript(1), 7)
	if err := s.Put(&c); err != nil {
		t.Fatal(err)
	}
	op, err := s.FindOutPointByType(tokenScript(1))
	if err != nil || op != c.OutPoint {
		t.Errorf("FindOutPointByType = %s, %v", op, err)
	}
}

func TestResolve(t *testing.T) {
	s := NewStore(storage.NewMemory())
	token := tokenScript(1)
	in := tokenCell(0x01, 0, 1, token, 10)
	dep := plainCell(0x02, 0, 9)
	s.Put(&in)
	s.Put(&dep)

	draft := tx.NewBuilder().
		AddInput(in.OutPoint).
		AddCellDep(types.CellDep{OutPoint: dep.OutPoint}).
		AddOutput(types.CellOutput{Lock: lockScript(2), Type: &token}, types.NewAmount(10).Bytes()).
		Build()

	ctx, err := Resolve(s, draft, token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if count(t, ctx, SourceGroupInput) != 1 || count(t, ctx, SourceCellDep) != 1 {
		t.Error("resolved context has wrong cells")
	}
	if _, err := ctx.FindOutPointByType(token); err != nil {
		t.Errorf("resolved context should search the store: %v", err)
	}

	group := draft.Clone()
	group.CellDeps[0].DepType = types.DepTypeDepGroup
	if _, err := Resolve(s, group, token); !errors.Is(err, ErrDepGroupUnsupported) {
		t.Errorf("dep group = %v, want ErrDepGroupUnsupported", err)
	}

	missing := tx.Extend(draft).AddInput(types.OutPoint{TxHash: types.Hash{0x99}}).Build()
	if _, err := Resolve(s, missing, token); !errors.Is(err, ErrCellNotFound) {
		t.Errorf("missing input = %v, want ErrCellNotFound", err)
	}
}
