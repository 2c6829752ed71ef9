package wallet

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Keystore errors.
var (
	ErrKeystoreExists   = errors.New("keystore already exists")
	ErrKeystoreNotFound = errors.New("keystore not found")
	ErrKeyExists        = errors.New("key already exists")
	ErrKeyNotFound      = errors.New("key not found")
)

const keystoreVersion = 1

// keystoreFile is the on-disk JSON format of one keystore.
type keystoreFile struct {
	Version       int        `json:"version"`
	CreatedAt     time.Time  `json:"created_at"`
	EncryptedSeed []byte     `json:"encrypted_seed"`
	Keys          []KeyEntry `json:"keys"`
	NextIndex     uint32     `json:"next_index"`
}

// KeyEntry records one derived owner key.
type KeyEntry struct {
	Name     string `json:"name"`
	Account  uint32 `json:"account"`
	Index    uint32 `json:"index"`
	LockArgs string `json:"lock_args"` // hex
}

// Keystore manages encrypted seeds in a directory, one file per name.
type Keystore struct {
	path string
}

// NewKeystore opens the keystore directory, creating it if needed.
func NewKeystore(path string) (*Keystore, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	return &Keystore{path: path}, nil
}

func (ks *Keystore) filePath(name string) string {
	return filepath.Join(ks.path, name+".keys")
}

// Create seals seed under password as a new keystore.
func (ks *Keystore) Create(name string, seed, password []byte, params EncryptionParams) error {
	path := ks.filePath(name)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %q", ErrKeystoreExists, name)
	}

	sealed, err := Encrypt(seed, password, params)
	if err != nil {
		return fmt.Errorf("encrypt seed: %w", err)
	}
	return ks.writeFile(path, &keystoreFile{
		Version:       keystoreVersion,
		CreatedAt:     time.Now().UTC(),
		EncryptedSeed: sealed,
		Keys:          []KeyEntry{},
	})
}

// Load decrypts a keystore's seed.
func (ks *Keystore) Load(name string, password []byte) ([]byte, error) {
	kf, err := ks.readFile(name)
	if err != nil {
		return nil, err
	}
	seed, err := Decrypt(kf.EncryptedSeed, password)
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore %q: %w", name, err)
	}
	return seed, nil
}

// NewKey derives the next owner key of account 0 from seed, records it
// under keyName and returns it.
func (ks *Keystore) NewKey(name, keyName string, seed []byte) (*HDKey, KeyEntry, error) {
	kf, err := ks.readFile(name)
	if err != nil {
		return nil, KeyEntry{}, err
	}
	for _, k := range kf.Keys {
		if k.Name == keyName {
			return nil, KeyEntry{}, fmt.Errorf("%w: %q", ErrKeyExists, keyName)
		}
	}

	master, err := NewMasterKey(seed)
	if err != nil {
		return nil, KeyEntry{}, err
	}
	key, err := master.DeriveOwner(0, kf.NextIndex)
	if err != nil {
		return nil, KeyEntry{}, err
	}

	entry := KeyEntry{Name: keyName, Account: 0, Index: kf.NextIndex, LockArgs: hex.EncodeToString(key.LockArgs())}
	kf.Keys = append(kf.Keys, entry)
	kf.NextIndex++
	if err := ks.writeFile(ks.filePath(name), kf); err != nil {
		return nil, KeyEntry{}, err
	}
	return key, entry, nil
}

// Key re-derives a recorded owner key from seed.
func (ks *Keystore) Key(name, keyName string, seed []byte) (*HDKey, error) {
	kf, err := ks.readFile(name)
	if err != nil {
		return nil, err
	}
	for _, k := range kf.Keys {
		if k.Name != keyName {
			continue
		}
		master, err := NewMasterKey(seed)
		if err != nil {
			return nil, err
		}
		return master.DeriveOwner(k.Account, k.Index)
	}
	return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, keyName)
}

// Keys returns the recorded owner keys of a keystore.
func (ks *Keystore) Keys(name string) ([]KeyEntry, error) {
	kf, err := ks.readFile(name)
	if err != nil {
		return nil, err
	}
	return kf.Keys, nil
}

// List returns the names of all keystores in the directory.
func (ks *Keystore) List() ([]string, error) {
	entries, err := os.ReadDir(ks.path)
	if err != nil {
		return nil, fmt.Errorf("read keystore dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".keys") {
			names = append(names, strings.TrimSuffix(e.Name(), ".keys"))
		}
	}
	return names, nil
}

// Delete removes a keystore file.
func (ks *Keystore) Delete(name string) error {
	err := os.Remove(ks.filePath(name))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %q", ErrKeystoreNotFound, name)
	}
	return err
}

func (ks *Keystore) writeFile(path string, kf *keystoreFile) error {
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal keystore: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write keystore: %w", err)
	}
	return nil
}

func (ks *Keystore) readFile(name string) (*keystoreFile, error) {
	data, err := os.ReadFile(ks.filePath(name))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %q", ErrKeystoreNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read keystore: %w", err)
	}
	var kf keystoreFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parse keystore: %w", err)
	}
	if kf.Version != keystoreVersion {
		return nil, fmt.Errorf("unsupported keystore version: %d", kf.Version)
	}
	return &kf, nil
}
