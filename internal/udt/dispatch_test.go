package udt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/Klingon-tech/klingnet-udt/internal/ledger"
	"github.com/Klingon-tech/klingnet-udt/pkg/crypto"
	"github.com/Klingon-tech/klingnet-udt/pkg/tx"
	"github.com/Klingon-tech/klingnet-udt/pkg/types"
)

func run(t *testing.T, acc ledger.Accessor, args ...string) ([]byte, error) {
	t.Helper()
	var buf bytes.Buffer
	err := NewDispatcher().Run(acc, args, &buf)
	if err != nil && buf.Len() != 0 {
		t.Errorf("failed call wrote %d bytes", buf.Len())
	}
	return buf.Bytes(), err
}

func TestDispatch_Metadata(t *testing.T) {
	f := newFixture(t)
	ctx := f.scriptContext(t)

	tests := []struct {
		method string
		want   []byte
	}{
		{MethodName, []byte("Test UDT")},
		{MethodSymbol, []byte("TEST")},
		{MethodDecimals, []byte{8}},
		{MethodIcon, []byte("https://example.com/icon.png")},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			got, err := run(t, ctx, tt.method)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("%s = %q, want %q", tt.method, got, tt.want)
			}

			byPath, err := run(t, ctx, PathHex(crypto.MethodPath(tt.method)))
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(byPath, tt.want) {
				t.Errorf("%s by path = %q", tt.method, byPath)
			}
		})
	}
}

func TestDispatch_MetadataMissing(t *testing.T) {
	ctx := amountContext(t, tokenScript(make([]byte, 32)), nil, nil)
	_, err := run(t, ctx, MethodName)
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestDispatch_PathHex(t *testing.T) {
	for _, name := range NewDispatcher().Methods() {
		p := PathHex(crypto.MethodPath(name))
		if len(p) != 18 || p[:2] != "0x" {
			t.Errorf("%s: path %q", name, p)
		}
		h := crypto.Hash([]byte(name))
		want := "0x" + fmt.Sprintf("%x", h[:8])
		if p != want {
			t.Errorf("%s: path %s, want %s", name, p, want)
		}
	}
}

func TestDispatch_UnknownMethod(t *testing.T) {
	ctx := amountContext(t, tokenScript(make([]byte, 32)), nil, nil)
	for _, sel := range []string{"UDT.burn", "0x0000000000000000", "udt.name"} {
		if _, err := run(t, ctx, sel); !errors.Is(err, ErrMethodNotFound) {
			t.Errorf("%q: expected ErrMethodNotFound, got %v", sel, err)
		}
	}
}

func TestDispatch_NoArgsRunsFallback(t *testing.T) {
	token := tokenScript(make([]byte, 32))
	if _, err := run(t, amountContext(t, token, []uint64{5}, []uint64{5})); err != nil {
		t.Errorf("balanced fallback: %v", err)
	}
	if _, err := run(t, amountContext(t, token, []uint64{5}, []uint64{1})); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestDispatch_Transfer(t *testing.T) {
	f := newFixture(t)
	ctx := f.scriptContext(t)

	base := tx.NewBuilder().AddInput(f.strangerCell).Build()
	locks := types.EncodeHex(types.EncodeScriptVec([]types.Script{userALock, userBLock}))
	amts := types.EncodeHex(types.EncodeAmountVec(amounts(7, 9)))

	out, err := run(t, ctx, MethodTransfer, types.EncodeHex(base.Bytes()), locks, amts)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	got, err := tx.Decode(out)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got.Inputs) != 1 || len(got.Outputs) != 2 {
		t.Fatalf("response shape: %d inputs, %d outputs", len(got.Inputs), len(got.Outputs))
	}
	if !bytes.Equal(got.OutputsData[1], types.NewAmount(9).Bytes()) {
		t.Errorf("second output data = %x", got.OutputsData[1])
	}

	// An empty draft argument starts a fresh transaction.
	out, err = run(t, ctx, MethodTransfer, "", locks, amts)
	if err != nil {
		t.Fatalf("transfer without draft: %v", err)
	}
	if got, err := tx.Decode(out); err != nil || len(got.Inputs) != 0 || len(got.Outputs) != 2 {
		t.Errorf("fresh transfer = %+v, %v", got, err)
	}
}

func TestDispatch_Mint(t *testing.T) {
	f := newFixture(t)
	ctx := f.scriptContext(t)

	base := tx.NewBuilder().AddInput(f.ownerCell).Build()
	locks := types.EncodeHex(types.EncodeScriptVec([]types.Script{userBLock}))
	amts := types.EncodeHex(types.EncodeAmountVec(amounts(20_000_000_000)))

	out, err := run(t, ctx, PathHex(crypto.MethodPath(MethodMint)), types.EncodeHex(base.Bytes()), locks, amts)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	draft, err := tx.Decode(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(draft.CellDeps) != 1 || draft.CellDeps[0].OutPoint != f.metaOutPoint {
		t.Fatalf("cell deps = %+v", draft.CellDeps)
	}
	if err := Fallback(f.resolve(t, draft)); err != nil {
		t.Errorf("minted draft does not verify: %v", err)
	}
}

// raggedDraft has two outputs but only one data entry.
func raggedDraft() *tx.Transaction {
	d := tx.NewBuilder().
		AddInput(types.OutPoint{TxHash: types.Hash{0x44}}).
		AddOutput(types.CellOutput{Lock: userALock}, nil).
		AddOutput(types.CellOutput{Lock: userBLock}, nil).
		Build()
	d.OutputsData = d.OutputsData[:1]
	return d
}

func TestDispatch_BuildArgErrors(t *testing.T) {
	ctx := amountContext(t, tokenScript(make([]byte, 32)), nil, nil)
	locks := types.EncodeHex(types.EncodeScriptVec([]types.Script{userALock}))
	twoLocks := types.EncodeHex(types.EncodeScriptVec([]types.Script{userALock, userBLock}))
	amts := types.EncodeHex(types.EncodeAmountVec(amounts(1)))
	ragged := types.EncodeHex(raggedDraft().Bytes())

	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"missing args", []string{MethodTransfer, ""}, ErrArgsInvalid},
		{"empty locks", []string{MethodTransfer, "", "", amts}, ErrArgsInvalid},
		{"empty amounts", []string{MethodTransfer, "", locks, ""}, ErrArgsInvalid},
		{"bad draft hex", []string{MethodTransfer, "zz", locks, amts}, ErrDecode},
		{"bad draft", []string{MethodTransfer, "0xff", locks, amts}, ErrDecode},
		{"bad locks", []string{MethodTransfer, "", "0x0a01ff", amts}, ErrDecode},
		{"bad amounts", []string{MethodTransfer, "", locks, "0x02000000"}, ErrDecode},
		{"amount count mismatch", []string{MethodTransfer, "", locks, "0x0200000001000000000000000000000000000000"}, ErrDecode},
		{"length mismatch", []string{MethodTransfer, "", twoLocks, amts}, ErrArgsInvalid},
		{"mint length mismatch", []string{MethodMint, "", twoLocks, amts}, ErrArgsInvalid},
		{"draft outputs without data", []string{MethodTransfer, ragged, locks, amts}, ErrDecode},
		{"mint draft outputs without data", []string{MethodMint, ragged, locks, amts}, ErrDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, ctx, tt.args...)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDispatch_Create(t *testing.T) {
	ctx := amountContext(t, tokenScript(make([]byte, 32)), nil, nil)
	base := tx.NewBuilder().AddInput(types.OutPoint{TxHash: types.Hash{0x44}}).Build()
	owner := types.EncodeHex(ownerLock.Bytes())
	meta := types.EncodeHex(testMeta.Bytes())

	out, err := run(t, ctx, MethodCreate, types.EncodeHex(base.Bytes()), owner, meta)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	want, err := testMeta.CreateTx(base, ownerLock)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, want.Bytes()) {
		t.Error("create response differs from CreateTx")
	}

	noInputs := types.EncodeHex(tx.NewBuilder().Build().Bytes())
	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"missing args", []string{MethodCreate, noInputs}, ErrArgsInvalid},
		{"no inputs", []string{MethodCreate, noInputs, owner, meta}, ErrInvalidTransactionInputs},
		{"bad owner", []string{MethodCreate, types.EncodeHex(base.Bytes()), "0xff", meta}, ErrDecode},
		{"bad metadata", []string{MethodCreate, types.EncodeHex(base.Bytes()), owner, "0x0a"}, ErrDecode},
		{"outputs without data", []string{MethodCreate, types.EncodeHex(raggedDraft().Bytes()), owner, meta}, ErrDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, ctx, tt.args...); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func u64Hex(v uint64) string {
	return types.EncodeHex(binary.LittleEndian.AppendUint64(nil, v))
}

func TestDispatch_SSRI(t *testing.T) {
	ctx := amountContext(t, tokenScript(make([]byte, 32)), nil, nil)
	d := NewDispatcher()
	n := len(d.Methods())

	if got, err := run(t, ctx, MethodVersion); err != nil || !bytes.Equal(got, []byte{Version}) {
		t.Errorf("version = %x, %v", got, err)
	}

	all, err := run(t, ctx, MethodGetMethods, u64Hex(0), u64Hex(0))
	if err != nil {
		t.Fatal(err)
	}
	if int(binary.LittleEndian.Uint32(all)) != n || len(all) != 4+8*n {
		t.Fatalf("get_methods returned %d bytes for %d methods", len(all), n)
	}
	var paths []uint64
	for off := 4; off < len(all); off += 8 {
		paths = append(paths, binary.LittleEndian.Uint64(all[off:]))
	}
	if !slices.IsSorted(paths) {
		t.Error("method paths should be sorted")
	}
	if !slices.Contains(paths, crypto.MethodPath(MethodTransfer)) {
		t.Error("transfer path missing")
	}

	page, err := run(t, ctx, MethodGetMethods, u64Hex(2), u64Hex(3))
	if err != nil {
		t.Fatal(err)
	}
	if binary.LittleEndian.Uint32(page) != 3 || !bytes.Equal(page[4:], all[4+16:4+40]) {
		t.Errorf("page = %x", page)
	}
	if tail, err := run(t, ctx, MethodGetMethods, u64Hex(uint64(n+5)), u64Hex(1)); err != nil || !bytes.Equal(tail, []byte{0, 0, 0, 0}) {
		t.Errorf("offset past end = %x, %v", tail, err)
	}

	query := binary.LittleEndian.AppendUint32(nil, 2)
	query = binary.LittleEndian.AppendUint64(query, crypto.MethodPath(MethodName))
	query = binary.LittleEndian.AppendUint64(query, crypto.MethodPath("UDT.burn"))
	has, err := run(t, ctx, MethodHasMethods, types.EncodeHex(query))
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{2, 0, 0, 0, 1, 0}; !bytes.Equal(has, want) {
		t.Errorf("has_methods = %x, want %x", has, want)
	}

	argErrors := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"get_methods missing limit", []string{MethodGetMethods, u64Hex(0)}, ErrArgsInvalid},
		{"get_methods short offset", []string{MethodGetMethods, "0x00", u64Hex(0)}, ErrDecode},
		{"has_methods missing", []string{MethodHasMethods}, ErrArgsInvalid},
		{"has_methods short", []string{MethodHasMethods, "0x0100"}, ErrDecode},
		{"has_methods count mismatch", []string{MethodHasMethods, "0x01000000"}, ErrDecode},
	}
	for _, tt := range argErrors {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, ctx, tt.args...); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestMain_ExitCodes(t *testing.T) {
	f := newFixture(t)
	token := tokenScript(make([]byte, 32))

	tests := []struct {
		name string
		acc  ledger.Accessor
		args []string
		want int8
	}{
		{"ok", f.scriptContext(t), []string{MethodSymbol}, ExitOK},
		{"fallback ok", amountContext(t, token, []uint64{1}, []uint64{1}), nil, ExitOK},
		{"unknown method", f.scriptContext(t), []string{"nope"}, ExitMethodNotFound},
		{"bad args", f.scriptContext(t), []string{MethodTransfer}, ExitArgsInvalid},
		{"decode", f.scriptContext(t), []string{MethodTransfer, "zz", "00", "00"}, ExitDecode},
		{"insufficient", amountContext(t, token, []uint64{3}, []uint64{1}), nil, ExitInsufficientBalance},
		{"config not found", amountContext(t, token, nil, nil), []string{MethodName}, ExitConfigNotFound},
		{"policy args", amountContext(t, tokenScript(nil), nil, []uint64{1}), nil, ExitInvalidPolicyArgs},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if got := Main(tt.acc, tt.args, &buf); got != tt.want {
				t.Errorf("Main = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int8
	}{
		{nil, ExitOK},
		{ledger.ErrIndexOutOfBound, ExitIndexOutOfBound},
		{ledger.ErrCellNotFound, ExitItemMissing},
		{ledger.ErrSnapshotMismatch, ExitLengthNotEnough},
		{ErrEncoding, ExitEncoding},
		{fmt.Errorf("wrapped: %w", ErrNoMintPermission), ExitNoMintPermission},
		{fmt.Errorf("%w: %v", ErrConfigNotFound, ledger.ErrCellNotFound), ExitConfigNotFound},
		{types.ErrAmountOverflow, ExitAmountOverflow},
		{errors.New("something else"), ExitUnknown},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
