package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ayonic/Solana-Agent-Wallet/internal/chain"
	"github.com/ayonic/Solana-Agent-Wallet/internal/config"
	"github.com/ayonic/Solana-Agent-Wallet/internal/keystore"
	"github.com/ayonic/Solana-Agent-Wallet/internal/metrics"
	"github.com/ayonic/Solana-Agent-Wallet/internal/wallet"
)

// loadConfig reads the resolved config file or exits with a usable error.
func loadConfig() *config.Config {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// openRegistry builds the keystore and wallet registry from config.
func openRegistry(cfg *config.Config) (*keystore.Store, *wallet.Registry) {
	store, err := keystore.New(cfg.KeystoreDir, config.Secret())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening keystore: %v\n", err)
		os.Exit(1)
	}
	registry := wallet.NewRegistry(store, chain.NewRPC(cfg.RPCEndpoint), cfg.DataDir, metrics.Nop{})
	return store, registry
}

// agentConfigFor returns the config block for an agent ID, if present.
func agentConfigFor(cfg *config.Config, agentID string) (config.AgentConfig, bool) {
	for _, a := range cfg.Agents {
		if a.ID == agentID {
			return a, true
		}
	}
	return config.AgentConfig{}, false
}

// printJSON renders v as indented JSON on stdout.
func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
		os.Exit(1)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
