package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/Klingon-tech/klingnet-udt/config"
	"github.com/Klingon-tech/klingnet-udt/internal/ledger"
	"github.com/Klingon-tech/klingnet-udt/internal/log"
	"github.com/Klingon-tech/klingnet-udt/internal/storage"
	"github.com/Klingon-tech/klingnet-udt/internal/udt"
	"github.com/Klingon-tech/klingnet-udt/internal/validator"
	"github.com/Klingon-tech/klingnet-udt/internal/wallet"
	"github.com/Klingon-tech/klingnet-udt/pkg/crypto"
	"github.com/Klingon-tech/klingnet-udt/pkg/tx"
	"github.com/Klingon-tech/klingnet-udt/pkg/types"
)

// Command errors.
var (
	errNoPlainCell      = errors.New("no plain cell to spend")
	errFaucetDisabled   = errors.New("faucet is only available on testnet")
	errPasswordMismatch = errors.New("passwords do not match")
)

// defaultKeyName names the key keygen derives when none is given.
const defaultKeyName = "owner"

// app carries what every command needs.
type app struct {
	cfg       *config.Config
	db        *storage.PrefixDB
	store     *ledger.Store
	validator *validator.Validator
	out       io.Writer

	readPassword func(prompt string) ([]byte, error)
	keyParams    wallet.EncryptionParams
}

// newApp scopes inner to the configured network and builds the store and
// validator over it.
func newApp(cfg *config.Config, inner storage.DB, out io.Writer) *app {
	db := storage.NewPrefixDB(inner, []byte(string(cfg.Network)+"/"))
	store := ledger.NewStore(db)
	return &app{
		cfg:       cfg,
		db:        db,
		store:     store,
		validator: validator.New(store, cfg.UDT.CodeHash, cfg.UDT.HashType, cfg.Lock.CodeHash),
		out:       out,
		keyParams: wallet.DefaultParams(),
	}
}

func (a *app) dispatch(cmd string, args []string) error {
	switch cmd {
	case "call":
		return a.cmdCall(args)
	case "verify":
		return a.cmdVerify(args)
	case "submit":
		return a.cmdSubmit(args)
	case "create":
		return a.cmdCreate(args)
	case "mint":
		return a.cmdMint(args)
	case "transfer":
		return a.cmdTransfer(args)
	case "balance":
		return a.cmdBalance(args)
	case "cells":
		return a.cmdCells(args)
	case "faucet":
		return a.cmdFaucet(args)
	case "keygen":
		return a.cmdKeygen(args)
	case "keys":
		return a.cmdKeys(args)
	case "reset":
		return a.cmdReset()
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func needArgs(args []string, n int, usage string) error {
	if len(args) < n {
		return fmt.Errorf("%w: udtctl %s", errUsage, usage)
	}
	return nil
}

// ── Script helpers ──────────────────────────────────────────────────────

func (a *app) tokenScript(argsHex string) (types.Script, error) {
	args, err := types.DecodeHex(argsHex)
	if err != nil {
		return types.Script{}, fmt.Errorf("token args: %w", err)
	}
	return a.cfg.UDT.Script(args), nil
}

func (a *app) lockScript(argsHex string) (types.Script, error) {
	args, err := types.DecodeHex(argsHex)
	if err != nil {
		return types.Script{}, fmt.Errorf("lock args: %w", err)
	}
	return types.Script{CodeHash: a.cfg.Lock.CodeHash, HashType: types.HashTypeType, Args: args}, nil
}

// ── Rich calls and validation ───────────────────────────────────────────

func (a *app) cmdCall(args []string) error {
	if err := needArgs(args, 2, "call <token-args> <method|path> [args...]"); err != nil {
		return err
	}
	script, err := a.tokenScript(args[0])
	if err != nil {
		return err
	}
	res, err := a.validator.Call(script, args[1:])
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, types.EncodeHex(res))
	return nil
}

func (a *app) cmdVerify(args []string) error {
	if err := needArgs(args, 2, "verify <token-args> <draft-hex>"); err != nil {
		return err
	}
	script, err := a.tokenScript(args[0])
	if err != nil {
		return err
	}
	draft, err := tx.DecodeHex(args[1])
	if err != nil {
		return fmt.Errorf("%w: draft: %v", udt.ErrDecode, err)
	}
	ctx, err := ledger.Resolve(a.store, draft, script)
	if err != nil {
		return err
	}
	if err := udt.Fallback(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "ok")
	return nil
}

func (a *app) cmdSubmit(args []string) error {
	if err := needArgs(args, 1, "submit <draft-hex>"); err != nil {
		return err
	}
	draft, err := tx.DecodeHex(args[0])
	if err != nil {
		return fmt.Errorf("%w: draft: %v", udt.ErrDecode, err)
	}
	h, err := a.validator.Submit(draft)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "tx: %s\n", h)
	return nil
}

// ── Owner operations ────────────────────────────────────────────────────

// ownerKey prompts for the keystore password and re-derives a stored key.
func (a *app) ownerKey(ksName, keyName string) (*wallet.HDKey, error) {
	ks, err := wallet.NewKeystore(a.cfg.KeystoreDir())
	if err != nil {
		return nil, err
	}
	password, err := a.readPassword(fmt.Sprintf("Password for %s: ", ksName))
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	seed, err := ks.Load(ksName, password)
	if err != nil {
		return nil, err
	}
	defer clear(seed)
	return ks.Key(ksName, keyName, seed)
}

// plainCell returns the first live cell held by lock with no type script.
func (a *app) plainCell(lock types.Script) (*ledger.Cell, error) {
	cells, err := a.store.ByLock(crypto.ScriptHash(lock))
	if err != nil {
		return nil, err
	}
	for _, c := range cells {
		if c.Output.Type == nil {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: lock %s", errNoPlainCell, lock)
}

// ownerDraft spends one plain cell of lock back to lock. The spent input
// proves ownership to the token script.
func (a *app) ownerDraft(lock types.Script) (*tx.Transaction, error) {
	cell, err := a.plainCell(lock)
	if err != nil {
		return nil, err
	}
	return tx.NewBuilder().
		AddInput(cell.OutPoint).
		AddOutput(types.CellOutput{Capacity: cell.Output.Capacity, Lock: lock}, cell.Data).
		Build(), nil
}

// signAndSubmit appends the key's witness and submits the transaction.
func (a *app) signAndSubmit(t *tx.Transaction, key *wallet.HDKey) (types.Hash, error) {
	signer, err := key.Signer()
	if err != nil {
		return types.Hash{}, err
	}
	defer signer.Zero()

	b := tx.Extend(t)
	if err := b.Sign(signer); err != nil {
		return types.Hash{}, err
	}
	return a.validator.Submit(b.Build())
}

func (a *app) cmdCreate(args []string) error {
	if err := needArgs(args, 6, "create <keystore> <key> <name> <symbol> <decimals> <icon>"); err != nil {
		return err
	}
	decimals, err := strconv.ParseUint(args[4], 10, 8)
	if err != nil {
		return fmt.Errorf("decimals: %w", err)
	}
	meta := udt.Metadata{Name: args[2], Symbol: args[3], Decimals: uint8(decimals), Icon: args[5]}

	key, err := a.ownerKey(args[0], args[1])
	if err != nil {
		return err
	}
	lock := key.LockScript(a.cfg.Lock.CodeHash)
	draft, err := a.ownerDraft(lock)
	if err != nil {
		return err
	}
	created, err := meta.CreateTx(draft, lock)
	if err != nil {
		return err
	}
	h, err := a.signAndSubmit(created, key)
	if err != nil {
		return err
	}

	tokenArgs := created.Outputs[len(created.Outputs)-1].Type.Args
	log.CLI.Info().Str("symbol", meta.Symbol).Str("tx_hash", h.String()).Msg("Token created")
	fmt.Fprintf(a.out, "token: %s\ntx: %s\n", types.EncodeHex(tokenArgs), h)
	return nil
}

// build runs a transfer or mint rich call and decodes the result.
func (a *app) build(script types.Script, method string, draft *tx.Transaction, locks []types.Script, amounts []types.Amount) (*tx.Transaction, error) {
	res, err := a.validator.Call(script, []string{
		method,
		types.EncodeHex(draft.Bytes()),
		types.EncodeHex(types.EncodeScriptVec(locks)),
		types.EncodeHex(types.EncodeAmountVec(amounts)),
	})
	if err != nil {
		return nil, err
	}
	return tx.Decode(res)
}

func (a *app) cmdMint(args []string) error {
	if err := needArgs(args, 5, "mint <keystore> <key> <token-args> <lock-args> <amount>"); err != nil {
		return err
	}
	script, err := a.tokenScript(args[2])
	if err != nil {
		return err
	}
	to, err := a.lockScript(args[3])
	if err != nil {
		return err
	}
	amount, err := types.ParseAmount(args[4])
	if err != nil {
		return err
	}

	key, err := a.ownerKey(args[0], args[1])
	if err != nil {
		return err
	}
	draft, err := a.ownerDraft(key.LockScript(a.cfg.Lock.CodeHash))
	if err != nil {
		return err
	}
	minted, err := a.build(script, udt.MethodMint, draft, []types.Script{to}, []types.Amount{amount})
	if err != nil {
		return err
	}
	h, err := a.signAndSubmit(minted, key)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "tx: %s\n", h)
	return nil
}

// tokenCells lists the cells of token held by lock.
func (a *app) tokenCells(lock, token types.Script) ([]wallet.TokenCell, error) {
	cells, err := a.store.ByLock(crypto.ScriptHash(lock))
	if err != nil {
		return nil, err
	}
	var out []wallet.TokenCell
	for _, c := range cells {
		if !c.Output.HasType(token) {
			continue
		}
		amt, err := types.AmountFromBytes(c.Data)
		if err != nil {
			return nil, fmt.Errorf("cell %s: %w", c.OutPoint, udt.ErrEncoding)
		}
		out = append(out, wallet.TokenCell{OutPoint: c.OutPoint, Amount: amt})
	}
	return out, nil
}

func (a *app) cmdTransfer(args []string) error {
	if err := needArgs(args, 5, "transfer <keystore> <key> <token-args> <lock-args> <amount>"); err != nil {
		return err
	}
	script, err := a.tokenScript(args[2])
	if err != nil {
		return err
	}
	to, err := a.lockScript(args[3])
	if err != nil {
		return err
	}
	amount, err := types.ParseAmount(args[4])
	if err != nil {
		return err
	}

	key, err := a.ownerKey(args[0], args[1])
	if err != nil {
		return err
	}
	from := key.LockScript(a.cfg.Lock.CodeHash)
	cells, err := a.tokenCells(from, script)
	if err != nil {
		return err
	}
	sel, err := wallet.SelectCells(cells, amount)
	if err != nil {
		return fmt.Errorf("%w: %w", udt.ErrInsufficientBalance, err)
	}

	b := tx.NewBuilder()
	for _, c := range sel.Inputs {
		b.AddInput(c.OutPoint)
	}
	locks := []types.Script{to}
	amounts := []types.Amount{amount}
	if !sel.Change.IsZero() {
		locks = append(locks, from)
		amounts = append(amounts, sel.Change)
	}
	transfer, err := a.build(script, udt.MethodTransfer, b.Build(), locks, amounts)
	if err != nil {
		return err
	}
	h, err := a.signAndSubmit(transfer, key)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "tx: %s\n", h)
	return nil
}

// ── Queries ─────────────────────────────────────────────────────────────

func (a *app) cmdBalance(args []string) error {
	if err := needArgs(args, 2, "balance <token-args> <lock-args>"); err != nil {
		return err
	}
	script, err := a.tokenScript(args[0])
	if err != nil {
		return err
	}
	lock, err := a.lockScript(args[1])
	if err != nil {
		return err
	}
	total, err := a.store.Balance(crypto.ScriptHash(lock), script)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, total)
	return nil
}

func (a *app) cmdCells(args []string) error {
	if err := needArgs(args, 1, "cells <lock-args>"); err != nil {
		return err
	}
	lock, err := a.lockScript(args[0])
	if err != nil {
		return err
	}
	cells, err := a.store.ByLock(crypto.ScriptHash(lock))
	if err != nil {
		return err
	}
	for _, c := range cells {
		typ := "-"
		if c.Output.Type != nil {
			typ = c.Output.Type.String()
		}
		fmt.Fprintf(a.out, "%s  capacity=%d  type=%s  data=%s\n",
			c.OutPoint, c.Output.Capacity, typ, types.EncodeHex(c.Data))
	}
	return nil
}

// ── Dev store maintenance ───────────────────────────────────────────────

func (a *app) cmdFaucet(args []string) error {
	if err := needArgs(args, 2, "faucet <lock-args> <capacity>"); err != nil {
		return err
	}
	if a.cfg.Network != config.Testnet {
		return errFaucetDisabled
	}
	lock, err := a.lockScript(args[0])
	if err != nil {
		return err
	}
	capacity, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("capacity: %w", err)
	}

	nonce := binary.LittleEndian.AppendUint64(nil, uint64(time.Now().UnixNano()))
	op := types.OutPoint{TxHash: crypto.HashConcat([]byte("faucet"), lock.Args, nonce)}
	cell := &ledger.Cell{OutPoint: op, Output: types.CellOutput{Capacity: capacity, Lock: lock}}
	if err := a.store.Put(cell); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "cell: %s\n", op)
	return nil
}

func (a *app) cmdReset() error {
	if err := a.db.DeleteAll(); err != nil {
		return err
	}
	log.CLI.Info().Str("network", string(a.cfg.Network)).Msg("Cell store reset")
	fmt.Fprintln(a.out, "ok")
	return nil
}

// ── Keys ────────────────────────────────────────────────────────────────

func (a *app) cmdKeygen(args []string) error {
	if err := needArgs(args, 1, "keygen <keystore> [key]"); err != nil {
		return err
	}
	ksName, keyName := args[0], defaultKeyName
	if len(args) > 1 {
		keyName = args[1]
	}

	ks, err := wallet.NewKeystore(a.cfg.KeystoreDir())
	if err != nil {
		return err
	}
	names, err := ks.List()
	if err != nil {
		return err
	}

	var seed []byte
	if !slices.Contains(names, ksName) {
		seed, err = a.createKeystore(ks, ksName)
	} else {
		var password []byte
		if password, err = a.readPassword(fmt.Sprintf("Password for %s: ", ksName)); err == nil {
			seed, err = ks.Load(ksName, password)
		}
	}
	if err != nil {
		return err
	}
	defer clear(seed)

	_, entry, err := ks.NewKey(ksName, keyName, seed)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "key: %s\nlock args: 0x%s\n", entry.Name, entry.LockArgs)
	return nil
}

// createKeystore generates a mnemonic, prints it and seals its seed.
func (a *app) createKeystore(ks *wallet.Keystore, name string) ([]byte, error) {
	mnemonic, err := wallet.GenerateMnemonic()
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(a.out, "Mnemonic (write this down!):\n  %s\n\n", mnemonic)

	password, err := a.readPassword("Enter password: ")
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	confirm, err := a.readPassword("Confirm password: ")
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	if !bytes.Equal(password, confirm) {
		return nil, errPasswordMismatch
	}

	seed, err := wallet.SeedFromMnemonic(mnemonic, "")
	if err != nil {
		return nil, err
	}
	if err := ks.Create(name, seed, password, a.keyParams); err != nil {
		return nil, err
	}
	return seed, nil
}

func (a *app) cmdKeys(args []string) error {
	if err := needArgs(args, 1, "keys <keystore>"); err != nil {
		return err
	}
	ks, err := wallet.NewKeystore(a.cfg.KeystoreDir())
	if err != nil {
		return err
	}
	keys, err := ks.Keys(args[0])
	if err != nil {
		return err
	}
	for _, k := range keys {
		fmt.Fprintf(a.out, "%-12s m/44'/8888'/%d'/0/%d  0x%s\n", k.Name, k.Account, k.Index, k.LockArgs)
	}
	return nil
}
