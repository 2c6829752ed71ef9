// Package config handles udtctl configuration.
//
// Settings are resolved from defaults, then the config file in the data
// directory, then command-line flags.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/Klingon-tech/klingnet-udt/pkg/crypto"
	"github.com/Klingon-tech/klingnet-udt/pkg/types"
)

// NetworkType names the ledger a data directory belongs to.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// Store backends.
const (
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// Well-known script code hashes of this ledger.
var (
	DefaultUDTCodeHash  = crypto.Hash([]byte("klingnet.script.udt.v1"))
	DefaultLockCodeHash = crypto.Hash([]byte("klingnet.script.lock.schnorr.v1"))
)

// Config holds udtctl settings.
type Config struct {
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	Store StoreConfig
	UDT   UDTConfig
	Lock  LockConfig
	Log   LogConfig
}

// StoreConfig selects the live cell store backend.
type StoreConfig struct {
	Backend string `conf:"store.backend"`
}

// UDTConfig identifies the token script code.
type UDTConfig struct {
	CodeHash types.Hash     `conf:"udt.codehash"`
	HashType types.HashType `conf:"udt.hashtype"`
}

// Script returns the token script with the given args.
func (u UDTConfig) Script(args []byte) types.Script {
	return types.Script{CodeHash: u.CodeHash, HashType: u.HashType, Args: args}
}

// LockConfig identifies the lock script code owner keys unlock.
type LockConfig struct {
	CodeHash types.Hash `conf:"lock.codehash"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.klingnet-udt
//	macOS:   ~/Library/Application Support/KlingnetUDT
//	Windows: %APPDATA%\KlingnetUDT
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".klingnet-udt"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "KlingnetUDT")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "KlingnetUDT")
		}
		return filepath.Join(home, "AppData", "Roaming", "KlingnetUDT")
	default:
		return filepath.Join(home, ".klingnet-udt")
	}
}

// NetworkDir returns the network-specific data directory.
func (c *Config) NetworkDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// StoreDir returns the badger directory of the cell store.
func (c *Config) StoreDir() string {
	return filepath.Join(c.NetworkDir(), "cells")
}

// KeystoreDir returns the owner keystore directory.
func (c *Config) KeystoreDir() string {
	return filepath.Join(c.NetworkDir(), "keystore")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "udtctl.conf")
}
