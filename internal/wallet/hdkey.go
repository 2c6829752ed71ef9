package wallet

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-udt/pkg/crypto"
	"github.com/Klingon-tech/klingnet-udt/pkg/types"
	"github.com/tyler-smith/go-bip32"
)

// Derivation path m/44'/CoinType'/account'/0/index.
const (
	PurposeBIP44 = bip32.FirstHardenedChild + 44
	// CoinType is a placeholder; no coin type is registered for this ledger.
	CoinType = bip32.FirstHardenedChild + 8888
)

// HDKey is a BIP-32 key.
type HDKey struct {
	key *bip32.Key
}

// NewMasterKey creates the master key of a 64-byte seed.
func NewMasterKey(seed []byte) (*HDKey, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	return &HDKey{key: master}, nil
}

// DerivePath derives a key along a sequence of child indices.
func (k *HDKey) DerivePath(indices ...uint32) (*HDKey, error) {
	current := k.key
	for _, idx := range indices {
		child, err := current.NewChildKey(idx)
		if err != nil {
			return nil, fmt.Errorf("derive child %d: %w", idx, err)
		}
		current = child
	}
	return &HDKey{key: current}, nil
}

// DeriveOwner derives the lock key at m/44'/8888'/account'/0/index.
func (k *HDKey) DeriveOwner(account, index uint32) (*HDKey, error) {
	return k.DerivePath(PurposeBIP44, CoinType, bip32.FirstHardenedChild+account, 0, index)
}

// PrivateKeyBytes returns the raw 32-byte private key, or nil for a
// public-only key.
func (k *HDKey) PrivateKeyBytes() []byte {
	if !k.key.IsPrivate {
		return nil
	}
	// bip32 stores private keys as 33 bytes with a leading zero.
	raw := k.key.Key
	if len(raw) == 33 && raw[0] == 0 {
		return raw[1:]
	}
	return raw
}

// PublicKeyBytes returns the compressed 33-byte public key.
func (k *HDKey) PublicKeyBytes() []byte {
	return k.key.PublicKey().Key
}

// Signer returns the signing key.
func (k *HDKey) Signer() (*crypto.PrivateKey, error) {
	priv := k.PrivateKeyBytes()
	if priv == nil {
		return nil, fmt.Errorf("cannot create signer from public key")
	}
	return crypto.PrivateKeyFromBytes(priv)
}

// LockArgs returns Blake160 of the public key.
func (k *HDKey) LockArgs() []byte {
	return crypto.Blake160(k.PublicKeyBytes())
}

// LockScript returns the lock script run by codeHash that this key
// unlocks.
func (k *HDKey) LockScript(codeHash types.Hash) types.Script {
	return types.Script{CodeHash: codeHash, HashType: types.HashTypeType, Args: k.LockArgs()}
}

// IsPrivate reports whether the key holds a private key.
func (k *HDKey) IsPrivate() bool {
	return k.key.IsPrivate
}

// Depth returns the derivation depth, 0 for the master key.
func (k *HDKey) Depth() uint8 {
	return k.key.Depth
}

// Neuter returns a public-only copy.
func (k *HDKey) Neuter() *HDKey {
	return &HDKey{key: k.key.PublicKey()}
}
