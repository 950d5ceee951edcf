// Package cmd wires the saw CLI: wallet management commands plus the run
// command that schedules agent loops.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ayonic/Solana-Agent-Wallet/internal/config"
)

var (
	flagConfig  string
	flagVerbose bool
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "saw",
		Short: "Autonomous agent wallets for Solana",
		Long: "saw runs independent agents, each holding an encrypted Solana keypair,\n" +
			"issuing policy-gated transfers on a fixed decision cadence.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if flagVerbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "config file path")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	root.AddCommand(walletCmd())
	root.AddCommand(runCmd())
	root.AddCommand(versionCmd())
	return root
}

// Execute runs the CLI.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the saw version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("saw", Version)
		},
	}
}

// resolveConfigPath picks the config file: --config flag, then SAW_CONFIG,
// then the default path.
func resolveConfigPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	if env := os.Getenv("SAW_CONFIG"); env != "" {
		return env
	}
	return config.DefaultPath
}
