package config

import "github.com/Klingon-tech/klingnet-udt/pkg/types"

// DefaultMainnet returns the default configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		Store: StoreConfig{
			Backend: BackendBadger,
		},
		UDT: UDTConfig{
			CodeHash: DefaultUDTCodeHash,
			HashType: types.HashTypeType,
		},
		Lock: LockConfig{
			CodeHash: DefaultLockCodeHash,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	return cfg
}

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	default:
		return DefaultMainnet()
	}
}
