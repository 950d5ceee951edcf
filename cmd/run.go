package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/ayonic/Solana-Agent-Wallet/internal/agentloop"
	"github.com/ayonic/Solana-Agent-Wallet/internal/chain"
	"github.com/ayonic/Solana-Agent-Wallet/internal/config"
	"github.com/ayonic/Solana-Agent-Wallet/internal/keystore"
	"github.com/ayonic/Solana-Agent-Wallet/internal/metrics"
	"github.com/ayonic/Solana-Agent-Wallet/internal/strategy"
	"github.com/ayonic/Solana-Agent-Wallet/internal/trader"
	"github.com/ayonic/Solana-Agent-Wallet/internal/wallet"
	"github.com/ayonic/Solana-Agent-Wallet/pkg/events"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run all configured agent loops until interrupted",
		Run: func(cmd *cobra.Command, args []string) {
			runAgents()
		},
	}
}

func runAgents() {
	cfg := loadConfig()
	if len(cfg.Agents) == 0 {
		fatalf("no agents configured")
	}

	store, err := keystore.New(cfg.KeystoreDir, config.Secret())
	if err != nil {
		fatalf("open keystore: %v", err)
	}

	sink := metrics.Log{}
	client := chain.NewRPC(cfg.RPCEndpoint)
	registry := wallet.NewRegistry(store, client, cfg.DataDir, sink)

	audit, err := agentloop.OpenAuditLog(cfg.AuditLog)
	if err != nil {
		fatalf("open audit log: %v", err)
	}
	defer audit.Close()

	bus := events.NewBus()
	bus.Subscribe("console", func(ev events.Event) {
		slog.Info("agent event",
			"agent", ev.AgentID, "type", ev.Type, "cycle", ev.Cycle,
			"detail", ev.Detail, "error", ev.Err)
	})

	// One agent stopping (e.g. maxCycles reached) is reported here so the
	// process can exit once every loop is done.
	stopped := make(chan string, len(cfg.Agents))
	bus.Subscribe("lifecycle", func(ev events.Event) {
		if ev.Type == events.TypeStopped {
			stopped <- ev.AgentID
		}
	})

	loops := make([]*agentloop.Loop, 0, len(cfg.Agents))
	for _, agentCfg := range cfg.Agents {
		loop, err := buildAgent(cfg, agentCfg, store, registry, bus, audit, sink)
		if err != nil {
			fatalf("agent %s: %v", agentCfg.ID, err)
		}
		loops = append(loops, loop)
	}

	// Hot-apply spend-limit changes without restarting loops.
	watcher, err := config.NewWatcher(resolveConfigPath())
	if err != nil {
		slog.Warn("config watcher unavailable", "error", err)
	} else {
		watcher.OnChange(func(next *config.Config) {
			for _, a := range next.Agents {
				if w, ok := registry.Get(a.ID); ok {
					w.SetLimits(a.Limits())
				}
			}
		})
		if werr := watcher.Start(); werr != nil {
			slog.Warn("config watcher unavailable", "error", werr)
		} else {
			defer watcher.Stop()
		}
	}

	for _, loop := range loops {
		if err := loop.Start(); err != nil {
			fatalf("start loop: %v", err)
		}
	}
	slog.Info("all agents running", "count", len(loops), "rpc", cfg.RPCEndpoint)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	remaining := len(loops)
	for remaining > 0 {
		select {
		case sig := <-sigChan:
			slog.Info("shutting down", "signal", sig.String())
			for _, loop := range loops {
				loop.Stop()
			}
			// Give in-flight cycles a moment to settle at the boundary.
			time.Sleep(500 * time.Millisecond)
			return
		case agentID := <-stopped:
			remaining--
			slog.Info("agent finished", "agent", agentID, "remaining", remaining)
		}
	}
	slog.Info("all agents finished")
}

// buildAgent wires one agent: wallet, trader, strategy and loop.
func buildAgent(cfg *config.Config, agentCfg config.AgentConfig, store *keystore.Store,
	registry *wallet.Registry, bus *events.Bus, audit *agentloop.AuditLog, sink metrics.Sink) (*agentloop.Loop, error) {

	isNew := !store.Has(agentCfg.ID)
	w, err := registry.LoadOrCreate(agentCfg.ID, agentCfg.Label, agentCfg.Limits())
	if err != nil {
		return nil, err
	}

	if isNew && agentCfg.FundOnCreateSOL > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
		if _, err := w.RequestFunding(ctx, config.SolToLamports(agentCfg.FundOnCreateSOL)); err != nil {
			slog.Warn("initial funding failed, continuing unfunded", "agent", agentCfg.ID, "error", err)
		}
		cancel()
	}

	var t trader.Trader
	switch agentCfg.Trader {
	case "simulated":
		counterparty, err := solana.PublicKeyFromBase58(agentCfg.Counterparty)
		if err != nil {
			return nil, fmt.Errorf("invalid counterparty %q: %w", agentCfg.Counterparty, err)
		}
		t = trader.NewSimulated(w, counterparty, sink)
	case "jupiter":
		t = trader.NewJupiter(w, trader.JupiterConfig{TokenMint: agentCfg.TokenMint}, sink)
	default:
		return nil, fmt.Errorf("unknown trader %q", agentCfg.Trader)
	}

	strat := &strategy.Random{
		Wallet:        w,
		Trader:        t,
		TradeLamports: config.SolToLamports(agentCfg.TradeSOL),
		BuyBias:       agentCfg.BuyBias,
		HoldBias:      agentCfg.HoldBias,
	}

	return agentloop.New(agentloop.Config{
		AgentID:    agentCfg.ID,
		Interval:   agentCfg.Interval(),
		CronExpr:   agentCfg.CronExpr,
		MaxCycles:  agentCfg.MaxCycles,
		MinBalance: config.SolToLamports(agentCfg.MinBalanceSOL),
	}, agentloop.Deps{
		Balancer: w,
		Observer: strat,
		Decider:  strat,
		Actor:    strat,
		Bus:      bus,
		Audit:    audit,
		Metrics:  sink,
	})
}
