// udtctl creates, mints, transfers and inspects fungible tokens on a local
// Klingnet cell store.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Klingon-tech/klingnet-udt/config"
	"github.com/Klingon-tech/klingnet-udt/internal/log"
	"github.com/Klingon-tech/klingnet-udt/internal/storage"
	"github.com/Klingon-tech/klingnet-udt/internal/udt"
	"golang.org/x/term"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one udtctl invocation and returns the process exit status.
func run(args []string, stdout, stderr io.Writer) int {
	cfg, flags, err := config.Load(args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitStatus(err)
	}
	if flags.Help {
		config.PrintUsage(stdout)
		return 0
	}
	if flags.Version {
		fmt.Fprintf(stdout, "udtctl %s\n", config.Version)
		return 0
	}
	if len(flags.Args) == 0 {
		config.PrintUsage(stderr)
		return exitStatus(errUsage)
	}

	if err := log.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		fmt.Fprintf(stderr, "Error: init logging: %v\n", err)
		return exitStatus(err)
	}

	inner, err := openDB(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitStatus(err)
	}
	defer inner.Close()

	a := newApp(cfg, inner, stdout)
	a.readPassword = readPassword
	if err := a.dispatch(flags.Args[0], flags.Args[1:]); err != nil {
		status := exitStatus(err)
		log.CLI.Debug().Err(err).Int("status", status).Str("command", flags.Args[0]).Msg("Command failed")
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return status
	}
	return 0
}

// openDB opens the database the configured backend names.
func openDB(cfg *config.Config) (storage.DB, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return storage.NewMemory(), nil
	default:
		db, err := storage.NewBadger(cfg.StoreDir())
		if err != nil {
			return nil, fmt.Errorf("open cell store %s: %w", cfg.StoreDir(), err)
		}
		return db, nil
	}
}

// exitStatus maps an error to a process exit status. Token script errors
// keep their code; anything else exits with the status of an unknown
// error.
func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	return int(uint8(udt.ExitCode(err)))
}

var errUsage = errors.New("usage")

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}
