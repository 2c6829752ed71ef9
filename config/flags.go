package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Klingon-tech/klingnet-udt/pkg/types"
)

// Version is the udtctl release.
const Version = "0.1.0"

// Flags holds parsed global command-line flags.
type Flags struct {
	Help    bool
	Version bool

	Network string
	Testnet bool
	DataDir string
	Config  string

	Backend      string
	UDTCodeHash  string
	UDTHashType  string
	LockCodeHash string

	LogLevel string
	LogFile  string
	LogJSON  bool

	// Subcommand and its arguments.
	Args []string

	SetLogJSON bool
}

// ParseFlags parses the global flags in args. Parsing stops at the first
// non-flag argument, which starts the subcommand.
func ParseFlags(args []string) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("udtctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")

	fs.StringVar(&f.Network, "network", "", "Network type (mainnet or testnet)")
	fs.BoolVar(&f.Testnet, "testnet", false, "Shorthand for --network=testnet")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")

	fs.StringVar(&f.Backend, "store", "", "Cell store backend (badger or memory)")
	fs.StringVar(&f.UDTCodeHash, "udt-codehash", "", "Token script code hash")
	fs.StringVar(&f.UDTHashType, "udt-hashtype", "", "Token script hash type")
	fs.StringVar(&f.LockCodeHash, "lock-codehash", "", "Lock script code hash")

	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (trace, debug, info, warn, error, off)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if f.Testnet {
		f.Network = string(Testnet)
	}
	f.SetLogJSON = isFlagSet(fs, "log-json")
	f.Args = fs.Args()
	return f, nil
}

// ApplyFlags applies command-line flags to cfg.
func ApplyFlags(cfg *Config, f *Flags) error {
	if f.Network != "" {
		cfg.Network = NetworkType(f.Network)
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	if f.Backend != "" {
		cfg.Store.Backend = strings.ToLower(f.Backend)
	}
	if f.UDTCodeHash != "" {
		h, err := types.HexToHash(f.UDTCodeHash)
		if err != nil {
			return fmt.Errorf("--udt-codehash: %w", err)
		}
		cfg.UDT.CodeHash = h
	}
	if f.UDTHashType != "" {
		ht, err := types.ParseHashType(strings.ToLower(f.UDTHashType))
		if err != nil {
			return fmt.Errorf("--udt-hashtype: %w", err)
		}
		cfg.UDT.HashType = ht
	}
	if f.LockCodeHash != "" {
		h, err := types.HexToHash(f.LockCodeHash)
		if err != nil {
			return fmt.Errorf("--lock-codehash: %w", err)
		}
		cfg.Lock.CodeHash = h
	}

	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
	return nil
}

func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// PrintUsage writes the global usage text.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, `udtctl - fungible token tool for the Klingnet cell ledger

Usage:
  udtctl [global options] <command> [arguments]

Commands:
  call <token-args> <method|path> [args...]   Run a rich call, print the hex response
  verify <token-args> <draft-hex>             Run the fallback check for one token
  submit <draft-hex>                          Validate every token group and apply
  create <keystore> <key> <name> <symbol> <decimals> <icon>
                                              Create a token owned by a stored key
  mint <keystore> <key> <token-args> <lock-args> <amount>
  transfer <keystore> <key> <token-args> <lock-args> <amount>
  balance <token-args> <lock-args>            Token balance of a lock
  cells <lock-args>                           List live cells of a lock
  faucet <lock-args> <capacity>               Create a plain cell (dev stores only)
  keygen <keystore> [key]                     Create a keystore or derive a key
  keys <keystore>                             List derived keys
  reset                                       Delete every cell of the network

Global Options:
  --network        Network type: mainnet (default) or testnet
  --testnet        Shorthand for --network=testnet
  --datadir        Data directory (default: ~/.klingnet-udt)
  --config, -c     Config file path (default: <datadir>/udtctl.conf)
  --store          Cell store backend: badger (default) or memory
  --udt-codehash   Token script code hash (hex)
  --udt-hashtype   Token script hash type: data, type, data1, data2
  --lock-codehash  Lock script code hash (hex)
  --log-level      Log level: trace, debug, info, warn, error, off
  --log-file       Log file path (default: stderr)
  --log-json       Output logs as JSON
  --version        Show version information
`)
}

// Load resolves configuration from args with the following precedence:
// 1. Default values
// 2. Config file
// 3. Command-line flags
//
// Data directories and a default config file are created on first use.
func Load(args []string) (*Config, *Flags, error) {
	flags, err := ParseFlags(args)
	if err != nil {
		return nil, nil, err
	}
	if flags.Help || flags.Version {
		return nil, flags, nil
	}

	network := Mainnet
	if strings.EqualFold(flags.Network, string(Testnet)) {
		network = Testnet
	}
	cfg := Default(network)
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	if err := EnsureDataDirs(cfg); err != nil {
		return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}
	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, nil, fmt.Errorf("applying config file: %w", err)
	}

	if err := ApplyFlags(cfg, flags); err != nil {
		return nil, nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, flags, nil
}

// EnsureDataDirs creates the data directories and a default config file
// if they do not exist. It is safe to call on every start.
func EnsureDataDirs(cfg *Config) error {
	for _, dir := range []string{cfg.DataDir, cfg.NetworkDir(), cfg.KeystoreDir(), cfg.LogsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}
	return nil
}
