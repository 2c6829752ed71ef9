package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/Klingon-tech/klingnet-udt/pkg/types"
)

// LoadFile loads settings from a .conf file.
// Format: key = value (one per line, # for comments). A missing file
// yields no settings.
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		values[key] = value
	}
	return values, scanner.Err()
}

// ApplyFileConfig applies file settings to cfg.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets one setting by key. Unknown keys are ignored.
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	case "network":
		cfg.Network = NetworkType(value)
	case "datadir":
		cfg.DataDir = value

	case "store.backend":
		cfg.Store.Backend = strings.ToLower(value)

	case "udt.codehash":
		h, err := types.HexToHash(value)
		if err != nil {
			return err
		}
		cfg.UDT.CodeHash = h
	case "udt.hashtype":
		ht, err := types.ParseHashType(strings.ToLower(value))
		if err != nil {
			return err
		}
		cfg.UDT.HashType = ht
	case "lock.codehash":
		h, err := types.HexToHash(value)
		if err != nil {
			return err
		}
		cfg.Lock.CodeHash = h

	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)
	}
	return nil
}

func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// WriteDefaultConfig writes a commented default config file.
func WriteDefaultConfig(path string, network NetworkType) error {
	content := `# udtctl configuration

# Network: mainnet or testnet
network = ` + string(network) + `

# Data directory (default: ~/.klingnet-udt)
# datadir = ~/.klingnet-udt

# ============================================================================
# Cell store
# ============================================================================

# Backend: badger (persistent) or memory (discarded on exit)
store.backend = badger

# ============================================================================
# Scripts
# ============================================================================

# Code hash and hash type of the token script
udt.codehash = ` + DefaultUDTCodeHash.String() + `
udt.hashtype = type

# Code hash of the lock script owner keys unlock
lock.codehash = ` + DefaultLockCodeHash.String() + `

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
