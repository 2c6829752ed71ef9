// Package validator checks whole transactions against the live cell set
// by running the token script once per token group, then applies them.
package validator

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/Klingon-tech/klingnet-udt/internal/ledger"
	"github.com/Klingon-tech/klingnet-udt/internal/log"
	"github.com/Klingon-tech/klingnet-udt/internal/udt"
	"github.com/Klingon-tech/klingnet-udt/pkg/crypto"
	"github.com/Klingon-tech/klingnet-udt/pkg/tx"
	"github.com/Klingon-tech/klingnet-udt/pkg/types"
)

// DefaultMaxTxSize is the maximum encoded transaction size in bytes.
const DefaultMaxTxSize = 100_000

// Validator errors.
var (
	ErrValidation = errors.New("transaction failed validation")
	ErrTooLarge   = errors.New("transaction too large")
	ErrMissingSig = errors.New("input missing signature")
	ErrInvalidSig = errors.New("invalid signature")
)

// Policy holds acceptance limits that sit outside the token rules.
type Policy struct {
	MaxTxSize int // Maximum encoded size, 0 = unlimited.
}

// DefaultPolicy returns a policy with default limits.
func DefaultPolicy() *Policy {
	return &Policy{MaxTxSize: DefaultMaxTxSize}
}

// Check validates a transaction against policy rules.
func (p *Policy) Check(t *tx.Transaction) error {
	if size := len(t.Bytes()); p.MaxTxSize > 0 && size > p.MaxTxSize {
		return fmt.Errorf("%w: %d bytes, max %d", ErrTooLarge, size, p.MaxTxSize)
	}
	return nil
}

// GroupError reports the token group that rejected a transaction.
type GroupError struct {
	Script types.Script
	Code   int8
	Err    error
}

func (e *GroupError) Error() string {
	return fmt.Sprintf("token %s: %v (exit %d)", e.Script, e.Err, e.Code)
}

func (e *GroupError) Unwrap() error {
	return e.Err
}

// Validator runs token verification for transactions against a store.
type Validator struct {
	mu           sync.Mutex
	store        *ledger.Store
	codeHash     types.Hash
	hashType     types.HashType
	lockCodeHash types.Hash
	policy       *Policy
	dispatcher   *udt.Dispatcher
}

// New returns a validator for token scripts with the given code hash and
// hash type. Inputs locked by lockCodeHash must be signed by the key their
// lock args name.
func New(store *ledger.Store, codeHash types.Hash, hashType types.HashType, lockCodeHash types.Hash) *Validator {
	return &Validator{
		store:        store,
		codeHash:     codeHash,
		hashType:     hashType,
		lockCodeHash: lockCodeHash,
		policy:       DefaultPolicy(),
		dispatcher:   udt.NewDispatcher(),
	}
}

// SetPolicy replaces the acceptance policy.
func (v *Validator) SetPolicy(p *Policy) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.policy = p
}

// isToken reports whether s is run by the token code.
func (v *Validator) isToken(s *types.Script) bool {
	return s != nil && s.CodeHash == v.codeHash && s.HashType == v.hashType
}

// Groups returns the distinct token scripts typing the resolved inputs and
// the outputs of draft, in first-seen order.
func (v *Validator) Groups(draft *tx.Transaction) ([]types.Script, error) {
	var groups []types.Script
	add := func(s *types.Script) {
		if !v.isToken(s) {
			return
		}
		for _, g := range groups {
			if g.Equal(*s) {
				return
			}
		}
		groups = append(groups, s.Clone())
	}

	for i, in := range draft.Inputs {
		c, err := v.store.Get(in.PreviousOutput)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		add(c.Output.Type)
	}
	for _, out := range draft.Outputs {
		add(out.Type)
	}
	return groups, nil
}

// checkLocks requires a valid witness for every distinct signature lock
// among the inputs. Inputs under other lock code are not checked here.
func (v *Validator) checkLocks(draft *tx.Transaction) error {
	txHash := draft.Hash()
	checked := make(map[types.Hash]bool)
	for i, in := range draft.Inputs {
		c, err := v.store.Get(in.PreviousOutput)
		if err != nil {
			return fmt.Errorf("%w: input %d: %w", ErrValidation, i, err)
		}
		lock := c.Output.Lock
		if lock.CodeHash != v.lockCodeHash {
			continue
		}
		lockHash := crypto.ScriptHash(lock)
		if checked[lockHash] {
			continue
		}
		if err := verifyLock(txHash, draft.Witnesses, lock.Args); err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
		checked[lockHash] = true
	}
	return nil
}

// verifyLock looks for a witness over txHash made by the owner of
// lockArgs. A witness carrying the right key with a bad signature is
// ErrInvalidSig; no witness for the key at all is ErrMissingSig.
func verifyLock(txHash types.Hash, witnesses [][]byte, lockArgs []byte) error {
	result := ErrMissingSig
	for _, w := range witnesses {
		err := crypto.VerifyWitness(txHash[:], w, lockArgs)
		if err == nil {
			return nil
		}
		if errors.Is(err, crypto.ErrWitnessInvalid) {
			result = ErrInvalidSig
		}
	}
	return result
}

// Validate checks draft structurally and runs the token script, without
// call arguments, for each token group it touches. The first failing group
// aborts validation with a *GroupError.
func (v *Validator) Validate(draft *tx.Transaction) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.validate(draft)
}

func (v *Validator) validate(draft *tx.Transaction) error {
	if err := draft.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := v.policy.Check(draft); err != nil {
		return err
	}
	if err := v.checkLocks(draft); err != nil {
		return err
	}

	groups, err := v.Groups(draft)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	txHash := draft.Hash()
	logger := log.Validator.With().Str("tx_hash", txHash.String()).Logger()
	logger.Debug().Int("groups", len(groups)).Msg("Validating transaction")

	for _, script := range groups {
		ctx, err := ledger.Resolve(v.store, draft, script)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrValidation, err)
		}
		if err := v.dispatcher.Run(ctx, nil, io.Discard); err != nil {
			gerr := &GroupError{Script: script, Code: udt.ExitCode(err), Err: err}
			logger.Warn().Err(err).Int8("code", gerr.Code).Str("script", script.String()).Msg("Token group rejected")
			return gerr
		}
	}
	return nil
}

// Submit validates draft and applies it to the store.
func (v *Validator) Submit(draft *tx.Transaction) (types.Hash, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.validate(draft); err != nil {
		return types.Hash{}, err
	}
	if err := v.store.Apply(draft); err != nil {
		return types.Hash{}, err
	}
	h := draft.Hash()
	log.Validator.Info().Str("tx_hash", h.String()).Int("outputs", len(draft.Outputs)).Msg("Transaction applied")
	return h, nil
}

// Call runs a rich call for the token script outside any transaction and
// returns the response bytes.
func (v *Validator) Call(script types.Script, args []string) ([]byte, error) {
	ctx, err := ledger.NewContext(script, nil, nil, nil, v.store)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := v.dispatcher.Run(ctx, args, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
