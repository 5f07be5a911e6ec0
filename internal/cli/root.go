package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tokenlabs/dipprobe/internal/config"
	"github.com/tokenlabs/dipprobe/internal/dfx"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Runner overrides the dfx toolchain, used by tests to substitute a
	// simulated ledger. Nil selects the real executable.
	Runner dfx.Runner

	v *viper.Viper
}

// NewRootOptions creates options backed by the default configuration
// source. Tests construct these directly to wire a subcommand without
// the root command's flag plumbing.
func NewRootOptions() *RootOptions {
	return &RootOptions{Format: "text", v: config.New()}
}

// Viper exposes the resolved configuration source, mainly for tests.
func (o *RootOptions) Viper() *viper.Viper { return o.v }

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the dipprobe CLI.
func NewRootCommand() *cobra.Command {
	opts := NewRootOptions()

	cmd := &cobra.Command{
		Use:   "dipprobe",
		Short: "Smoke-test harness for DIP20 token canisters",
		Long: `dipprobe drives a deployed DIP20 token canister through the dfx
toolchain: it provisions throwaway identities, deploys the token,
exercises transfers and allowances, and records every call in a run log.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if err := bindConfigFlags(opts.v, cmd); err != nil {
				return err
			}
			setupLogging(opts.Verbose)
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Configuration flags; unset flags fall back to DIPPROBE_* environment
	// variables and then to defaults.
	pf.String("network", config.NetworkLocal, "target network (local|ic)")
	pf.String("canister", "token", "dfx.json name of the token canister")
	pf.String("dfx-binary", "dfx", "dfx executable")
	pf.String("project-dir", ".", "directory holding dfx.json")
	pf.Duration("call-timeout", 0, "per-call toolchain timeout (0 = default)")
	pf.String("database", "dipprobe.db", "run-log SQLite path")
	pf.String("cap-canister", "", "history-log canister principal (skips discovery)")
	pf.Bool("fresh-identities", false, "provision identities in a throwaway per-run scope")

	cmd.AddCommand(NewSmokeCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewDeployCommand(opts))
	cmd.AddCommand(NewCallCommand(opts))
	cmd.AddCommand(NewIdentityCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewSpecCommand(opts))

	return cmd
}

// bindConfigFlags layers explicitly set command-line flags over the
// environment-backed configuration.
func bindConfigFlags(v *viper.Viper, cmd *cobra.Command) error {
	for _, key := range []string{
		"network", "canister", "dfx-binary", "project-dir",
		"call-timeout", "database", "cap-canister", "fresh-identities",
	} {
		f := cmd.Flags().Lookup(key)
		if f == nil {
			continue
		}
		if f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind flag %s: %w", key, err)
			}
		}
	}
	return nil
}

func setupLogging(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(h))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
