package config

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-udt/internal/log"
)

// Validate checks cfg for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("datadir must not be empty")
	}
	switch cfg.Store.Backend {
	case BackendBadger, BackendMemory:
	default:
		return fmt.Errorf("store.backend must be %q or %q", BackendBadger, BackendMemory)
	}
	if cfg.UDT.CodeHash.IsZero() {
		return fmt.Errorf("udt.codehash must be set")
	}
	if !cfg.UDT.HashType.Valid() {
		return fmt.Errorf("udt.hashtype %d is not a known hash type", cfg.UDT.HashType)
	}
	if cfg.Lock.CodeHash.IsZero() {
		return fmt.Errorf("lock.codehash must be set")
	}
	if cfg.UDT.CodeHash == cfg.Lock.CodeHash {
		return fmt.Errorf("udt.codehash and lock.codehash must differ")
	}
	if !log.ValidLevel(cfg.Log.Level) {
		return fmt.Errorf("log.level %q is not a known level", cfg.Log.Level)
	}
	return nil
}
