// Package config loads the JSON5 configuration file that describes the
// keystore location, RPC endpoint and the set of agents to run. The wallet
// encryption secret is never part of the file; it comes from the
// SAW_WALLET_SECRET environment variable.
package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/titanous/json5"

	"github.com/ayonic/Solana-Agent-Wallet/internal/wallet"
)

// SecretEnv is the environment variable holding the keystore secret.
const SecretEnv = "SAW_WALLET_SECRET"

// DefaultPath is where Load looks when no --config flag is given.
const DefaultPath = "saw.json5"

// Config is the top-level configuration.
type Config struct {
	KeystoreDir string        `json:"keystoreDir"`
	DataDir     string        `json:"dataDir"`
	AuditLog    string        `json:"auditLog"`
	RPCEndpoint string        `json:"rpcEndpoint"`
	Agents      []AgentConfig `json:"agents"`
}

// AgentConfig describes one agent: its identity, cadence, spend policy and
// trading venue. SOL amounts are converted to lamports at load time.
type AgentConfig struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`

	IntervalMS int64  `json:"intervalMs,omitempty"` // cycle cadence, default 30000
	CronExpr   string `json:"cron,omitempty"`       // overrides intervalMs
	MaxCycles  int    `json:"maxCycles,omitempty"`  // 0 = unbounded

	MinBalanceSOL     float64 `json:"minBalanceSol,omitempty"`
	MaxPerTransferSOL float64 `json:"maxPerTransferSol,omitempty"`
	MaxDailySOL       float64 `json:"maxDailySol,omitempty"`

	Trader       string  `json:"trader,omitempty"`       // "simulated" (default) or "jupiter"
	Counterparty string  `json:"counterparty,omitempty"` // simulated: sink account
	TokenMint    string  `json:"tokenMint,omitempty"`    // jupiter: asset traded against SOL
	TradeSOL     float64 `json:"tradeSol,omitempty"`     // clip size per trade
	BuyBias      float64 `json:"buyBias,omitempty"`
	HoldBias     float64 `json:"holdBias,omitempty"`

	FundOnCreateSOL float64 `json:"fundOnCreateSol,omitempty"` // devnet airdrop for new wallets
}

// Load reads and validates a config file, applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := json5.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.KeystoreDir == "" {
		c.KeystoreDir = "data/keystore"
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.AuditLog == "" {
		c.AuditLog = "data/audit.log"
	}
	if c.RPCEndpoint == "" {
		c.RPCEndpoint = rpc.DevNet_RPC
	}
	for i := range c.Agents {
		a := &c.Agents[i]
		if a.IntervalMS <= 0 && a.CronExpr == "" {
			a.IntervalMS = 30_000
		}
		if a.Trader == "" {
			a.Trader = "simulated"
		}
	}
}

func (c *Config) validate() error {
	seen := make(map[string]bool)
	for _, a := range c.Agents {
		if a.ID == "" {
			return fmt.Errorf("agent with empty id")
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate agent id %q", a.ID)
		}
		seen[a.ID] = true

		switch a.Trader {
		case "simulated":
			if a.Counterparty == "" {
				return fmt.Errorf("agent %s: simulated trader requires a counterparty", a.ID)
			}
		case "jupiter":
			if a.TokenMint == "" {
				return fmt.Errorf("agent %s: jupiter trader requires a tokenMint", a.ID)
			}
		default:
			return fmt.Errorf("agent %s: unknown trader %q", a.ID, a.Trader)
		}
	}
	return nil
}

// Secret returns the keystore secret from the environment. Empty means the
// keystore falls back to its insecure development default.
func Secret() string {
	return os.Getenv(SecretEnv)
}

// Interval returns the agent's cycle cadence as a duration.
func (a AgentConfig) Interval() time.Duration {
	return time.Duration(a.IntervalMS) * time.Millisecond
}

// Limits converts the agent's SOL-denominated policy into lamports.
func (a AgentConfig) Limits() wallet.Limits {
	return wallet.Limits{
		MaxPerTransfer: SolToLamports(a.MaxPerTransferSOL),
		MaxDailyTotal:  SolToLamports(a.MaxDailySOL),
	}
}

// SolToLamports converts a SOL amount to lamports, rounding to the nearest
// lamport.
func SolToLamports(sol float64) uint64 {
	if sol <= 0 {
		return 0
	}
	return uint64(math.Round(sol * float64(solana.LAMPORTS_PER_SOL)))
}

// LamportsToSol renders lamports as SOL for display.
func LamportsToSol(lamports uint64) float64 {
	return float64(lamports) / float64(solana.LAMPORTS_PER_SOL)
}
