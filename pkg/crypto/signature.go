package crypto

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"
)

// Witness layout: a 64-byte Schnorr signature followed by the 33-byte
// compressed public key of the signer.
const (
	SignatureSize = 64
	PublicKeySize = 33
	WitnessSize   = SignatureSize + PublicKeySize
)

// Witness errors.
var (
	ErrWitnessSize     = errors.New("witness has wrong size")
	ErrWitnessLockArgs = errors.New("witness key does not match lock args")
	ErrWitnessInvalid  = errors.New("witness signature is invalid")
)

// PrivateKey wraps a secp256k1 private key for Schnorr signing.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// GenerateKey creates a new random secp256k1 private key.
func GenerateKey() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes creates a PrivateKey from a 32-byte secret.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(b))
	}
	key := secp256k1.PrivKeyFromBytes(b)
	return &PrivateKey{key: key}, nil
}

// Sign produces a Schnorr signature over a 32-byte hash.
func (pk *PrivateKey) Sign(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}
	sig, err := schnorr.Sign(pk.key, hash)
	if err != nil {
		return nil, fmt.Errorf("schnorr sign: %w", err)
	}
	return sig.Serialize(), nil
}

// PublicKey returns the compressed 33-byte public key.
func (pk *PrivateKey) PublicKey() []byte {
	return pk.key.PubKey().SerializeCompressed()
}

// LockArgs returns the lock script args that identify this key's owner:
// Blake160 of the compressed public key.
func (pk *PrivateKey) LockArgs() []byte {
	return Blake160(pk.PublicKey())
}

// Witness signs txHash and returns the signature followed by the public
// key, the form a lock script expects in the transaction witnesses.
func (pk *PrivateKey) Witness(txHash []byte) ([]byte, error) {
	sig, err := pk.Sign(txHash)
	if err != nil {
		return nil, err
	}
	w := make([]byte, 0, WitnessSize)
	w = append(w, sig...)
	return append(w, pk.PublicKey()...), nil
}

// Serialize returns the 32-byte private key scalar.
func (pk *PrivateKey) Serialize() []byte {
	return pk.key.Serialize()
}

// Zero securely zeroes the private key memory.
func (pk *PrivateKey) Zero() {
	pk.key.Zero()
}

// VerifySignature checks a Schnorr signature against a 32-byte hash
// and a compressed public key. Returns false on any error.
func VerifySignature(hash, signature, publicKey []byte) bool {
	pubKey, err := secp256k1.ParsePubKey(publicKey)
	if err != nil {
		return false
	}
	sig, err := schnorr.ParseSignature(signature)
	if err != nil {
		return false
	}
	return sig.Verify(hash, pubKey)
}

// VerifyWitness checks that w carries a valid signature over txHash made
// by the key whose lock args are lockArgs.
func VerifyWitness(txHash, w, lockArgs []byte) error {
	if len(w) != WitnessSize {
		return fmt.Errorf("%w: %d bytes", ErrWitnessSize, len(w))
	}
	sig, pub := w[:SignatureSize], w[SignatureSize:]
	if !bytes.Equal(Blake160(pub), lockArgs) {
		return ErrWitnessLockArgs
	}
	if !VerifySignature(txHash, sig, pub) {
		return ErrWitnessInvalid
	}
	return nil
}
