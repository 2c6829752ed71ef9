package udt

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/Klingon-tech/klingnet-udt/internal/ledger"
	"github.com/Klingon-tech/klingnet-udt/internal/log"
	"github.com/Klingon-tech/klingnet-udt/pkg/crypto"
	"github.com/Klingon-tech/klingnet-udt/pkg/tx"
	"github.com/Klingon-tech/klingnet-udt/pkg/types"
)

// Method names understood by the dispatcher.
const (
	MethodName       = "UDT.name"
	MethodSymbol     = "UDT.symbol"
	MethodDecimals   = "UDT.decimals"
	MethodIcon       = "UDT.icon"
	MethodTransfer   = "UDT.transfer"
	MethodMint       = "UDT.mint"
	MethodCreate     = "SSRIUDT.create"
	MethodVersion    = "SSRI.version"
	MethodGetMethods = "SSRI.get_methods"
	MethodHasMethods = "SSRI.has_methods"
)

// Version is returned by SSRI.version.
const Version byte = 0

// handler runs one method. args[0] is the method selector.
type handler func(tok *Token, args []string) ([]byte, error)

// Dispatcher routes call arguments to token methods.
type Dispatcher struct {
	methods map[string]handler
	paths   map[string]string // "0x" + hex path -> name
	sorted  []uint64          // method paths in ascending order
}

// NewDispatcher returns a dispatcher with the full method table.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		methods: make(map[string]handler),
		paths:   make(map[string]string),
	}
	d.register(MethodName, func(tok *Token, _ []string) ([]byte, error) {
		s, err := tok.Name()
		return []byte(s), err
	})
	d.register(MethodSymbol, func(tok *Token, _ []string) ([]byte, error) {
		s, err := tok.Symbol()
		return []byte(s), err
	})
	d.register(MethodDecimals, func(tok *Token, _ []string) ([]byte, error) {
		v, err := tok.Decimals()
		if err != nil {
			return nil, err
		}
		return []byte{v}, nil
	})
	d.register(MethodIcon, func(tok *Token, _ []string) ([]byte, error) {
		s, err := tok.Icon()
		return []byte(s), err
	})
	d.register(MethodTransfer, func(tok *Token, args []string) ([]byte, error) {
		draft, locks, amounts, err := parseBuildArgs(args)
		if err != nil {
			return nil, err
		}
		out, err := tok.Transfer(draft, locks, amounts)
		if err != nil {
			return nil, err
		}
		return out.Bytes(), nil
	})
	d.register(MethodMint, func(tok *Token, args []string) ([]byte, error) {
		draft, locks, amounts, err := parseBuildArgs(args)
		if err != nil {
			return nil, err
		}
		out, err := tok.Mint(draft, locks, amounts)
		if err != nil {
			return nil, err
		}
		return out.Bytes(), nil
	})
	d.register(MethodCreate, func(_ *Token, args []string) ([]byte, error) {
		return create(args)
	})
	d.register(MethodVersion, func(*Token, []string) ([]byte, error) {
		return []byte{Version}, nil
	})
	d.register(MethodGetMethods, func(_ *Token, args []string) ([]byte, error) {
		return d.getMethods(args)
	})
	d.register(MethodHasMethods, func(_ *Token, args []string) ([]byte, error) {
		return d.hasMethods(args)
	})
	return d
}

func (d *Dispatcher) register(name string, h handler) {
	path := crypto.MethodPath(name)
	d.methods[name] = h
	d.paths[PathHex(path)] = name
	i, _ := slices.BinarySearch(d.sorted, path)
	d.sorted = slices.Insert(d.sorted, i, path)
}

// PathHex formats a method path the way callers pass it: "0x" followed by
// the path's 8 little-endian bytes in hex.
func PathHex(path uint64) string {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], path)
	return "0x" + hex.EncodeToString(b[:])
}

// Methods returns the registered method names in sorted order.
func (d *Dispatcher) Methods() []string {
	names := make([]string, 0, len(d.methods))
	for name := range d.methods {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// lookup resolves a method name or method path.
func (d *Dispatcher) lookup(sel string) (string, handler, bool) {
	if h, ok := d.methods[sel]; ok {
		return sel, h, true
	}
	if name, ok := d.paths[strings.ToLower(sel)]; ok {
		return name, d.methods[name], true
	}
	return "", nil, false
}

// Run executes one invocation. With no arguments it runs the fallback
// verification; otherwise args[0] selects a method and its result is
// written to w. Nothing is written on failure.
func (d *Dispatcher) Run(acc ledger.Accessor, args []string, w io.Writer) error {
	if len(args) == 0 {
		return Fallback(acc)
	}

	name, h, ok := d.lookup(args[0])
	if !ok {
		return fmt.Errorf("%w: %q", ErrMethodNotFound, args[0])
	}
	log.UDT.Debug().Str("method", name).Int("args", len(args)-1).Msg("Dispatching method")

	res, err := h(New(acc), args)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if _, err := w.Write(res); err != nil {
		return fmt.Errorf("%s: write response: %w", name, err)
	}
	return nil
}

// Main is the process entry point: it runs the invocation and returns the
// exit status.
func (d *Dispatcher) Main(acc ledger.Accessor, args []string, w io.Writer) int8 {
	err := d.Run(acc, args, w)
	code := ExitCode(err)
	if err != nil {
		log.UDT.Debug().Err(err).Int8("code", code).Msg("Invocation failed")
	}
	return code
}

// Main runs one invocation with the default dispatcher.
func Main(acc ledger.Accessor, args []string, w io.Writer) int8 {
	return defaultDispatcher.Main(acc, args, w)
}

var defaultDispatcher = NewDispatcher()

func decodeArg(s string, what string) ([]byte, error) {
	b, err := types.DecodeHex(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, what, err)
	}
	return b, nil
}

// decodeDraft decodes a hex draft. Every output must have its data entry,
// or appended outputs would pair with the wrong data.
func decodeDraft(s string) (*tx.Transaction, error) {
	b, err := decodeArg(s, "draft")
	if err != nil {
		return nil, err
	}
	draft, err := tx.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("%w: draft: %v", ErrDecode, err)
	}
	if err := draft.CheckOutputsData(); err != nil {
		return nil, fmt.Errorf("%w: draft: %v", ErrDecode, err)
	}
	return draft, nil
}

// parseBuildArgs decodes the arguments of transfer and mint:
// [method, draft hex (may be empty), ScriptVec hex, AmountVec hex].
func parseBuildArgs(args []string) (*tx.Transaction, []types.Script, []types.Amount, error) {
	if len(args) < 4 || args[2] == "" || args[3] == "" {
		return nil, nil, nil, fmt.Errorf("%w: need draft, locks and amounts", ErrArgsInvalid)
	}

	var draft *tx.Transaction
	if args[1] != "" {
		var err error
		if draft, err = decodeDraft(args[1]); err != nil {
			return nil, nil, nil, err
		}
	}

	b, err := decodeArg(args[2], "locks")
	if err != nil {
		return nil, nil, nil, err
	}
	locks, err := types.DecodeScriptVec(b)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: locks: %v", ErrDecode, err)
	}

	if b, err = decodeArg(args[3], "amounts"); err != nil {
		return nil, nil, nil, err
	}
	amounts, err := types.DecodeAmountVec(b)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: amounts: %v", ErrDecode, err)
	}

	if len(locks) != len(amounts) {
		return nil, nil, nil, fmt.Errorf("%w: %d locks, %d amounts", ErrArgsInvalid, len(locks), len(amounts))
	}
	return draft, locks, amounts, nil
}

// create decodes [method, draft hex, owner lock hex, metadata hex] and
// appends the metadata cell.
func create(args []string) ([]byte, error) {
	if len(args) < 4 {
		return nil, fmt.Errorf("%w: need draft, owner lock and metadata", ErrArgsInvalid)
	}
	draft, err := decodeDraft(args[1])
	if err != nil {
		return nil, err
	}
	b, err := decodeArg(args[2], "owner lock")
	if err != nil {
		return nil, err
	}
	var owner types.Script
	if err := owner.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("%w: owner lock: %v", ErrDecode, err)
	}
	if b, err = decodeArg(args[3], "metadata"); err != nil {
		return nil, err
	}
	meta, err := DecodeMetadata(b)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", ErrDecode, err)
	}

	out, err := meta.CreateTx(draft, owner)
	if err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func decodeU64Arg(args []string, i int, what string) (uint64, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("%w: missing %s", ErrArgsInvalid, what)
	}
	b, err := decodeArg(args[i], what)
	if err != nil {
		return 0, err
	}
	if len(b) != 8 {
		return 0, fmt.Errorf("%w: %s must be 8 bytes, got %d", ErrDecode, what, len(b))
	}
	return binary.LittleEndian.Uint64(b), nil
}

// getMethods returns count(u32 LE) followed by up to limit method paths
// (u64 LE) starting at offset. A limit of 0 means no limit.
func (d *Dispatcher) getMethods(args []string) ([]byte, error) {
	offset, err := decodeU64Arg(args, 1, "offset")
	if err != nil {
		return nil, err
	}
	limit, err := decodeU64Arg(args, 2, "limit")
	if err != nil {
		return nil, err
	}

	paths := d.sorted
	if offset >= uint64(len(paths)) {
		paths = nil
	} else {
		paths = paths[offset:]
	}
	if limit > 0 && limit < uint64(len(paths)) {
		paths = paths[:limit]
	}

	out := binary.LittleEndian.AppendUint32(nil, uint32(len(paths)))
	for _, p := range paths {
		out = binary.LittleEndian.AppendUint64(out, p)
	}
	return out, nil
}

// hasMethods takes count(u32 LE) followed by count method paths and
// returns count followed by one 0/1 byte per path.
func (d *Dispatcher) hasMethods(args []string) ([]byte, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("%w: missing method paths", ErrArgsInvalid)
	}
	b, err := decodeArg(args[1], "method paths")
	if err != nil {
		return nil, err
	}
	if len(b) < 4 {
		return nil, fmt.Errorf("%w: method paths: missing count", ErrDecode)
	}
	count := binary.LittleEndian.Uint32(b)
	body := b[4:]
	if uint64(len(body)) != uint64(count)*8 {
		return nil, fmt.Errorf("%w: method paths: count %d, %d bytes", ErrDecode, count, len(body))
	}

	out := binary.LittleEndian.AppendUint32(nil, count)
	for off := 0; off < len(body); off += 8 {
		_, found := slices.BinarySearch(d.sorted, binary.LittleEndian.Uint64(body[off:]))
		if found {
			out = append(out, 1)
		} else {
			out = append(out, 0)
		}
	}
	return out, nil
}
