// Package strategy ships a reference strategy wiring for the loop's
// Observer/Decider/Actor extension points. Real strategies live outside this
// module; Random exists so the run command has something to schedule and so
// the wiring pattern is documented in code.
package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/ayonic/Solana-Agent-Wallet/internal/agentloop"
	"github.com/ayonic/Solana-Agent-Wallet/internal/trader"
	"github.com/ayonic/Solana-Agent-Wallet/internal/wallet"
)

// Random observes the wallet balance and flips a weighted coin each cycle:
// hold, buy, or sell a fixed clip through the trader.
type Random struct {
	Wallet        *wallet.Wallet
	Trader        trader.Trader
	TradeLamports uint64
	BuyBias       float64 // probability a non-hold cycle buys (default 0.5)
	HoldBias      float64 // probability a cycle does nothing (default 0.2)
}

var _ agentloop.Observer = (*Random)(nil)
var _ agentloop.Decider = (*Random)(nil)
var _ agentloop.Actor = (*Random)(nil)

func (r *Random) Observe(ctx context.Context) (agentloop.WorldState, error) {
	balance, err := r.Wallet.Balance(ctx)
	if err != nil {
		return nil, err
	}
	stats := r.Trader.Stats()
	return agentloop.WorldState{
		"balance":    balance,
		"tradeCount": stats.TradeCount,
		"netFlow":    stats.NetFlow,
	}, nil
}

func (r *Random) Decide(_ context.Context, ws agentloop.WorldState) (*agentloop.Action, error) {
	holdBias := r.HoldBias
	if holdBias <= 0 {
		holdBias = 0.2
	}
	buyBias := r.BuyBias
	if buyBias <= 0 {
		buyBias = 0.5
	}

	if rand.Float64() < holdBias {
		return nil, nil
	}

	kind := "sell"
	if rand.Float64() < buyBias {
		kind = "buy"
	}
	return &agentloop.Action{Kind: kind, Amount: r.TradeLamports}, nil
}

func (r *Random) Act(ctx context.Context, action agentloop.Action) error {
	var ok bool
	switch action.Kind {
	case "buy":
		_, ok = r.Trader.Buy(ctx, action.Amount)
	case "sell":
		_, ok = r.Trader.Sell(ctx, action.Amount)
	default:
		return fmt.Errorf("unknown action kind %q", action.Kind)
	}

	// ok=false means the trader decided no trade could happen. That's a
	// normal outcome of a cycle, not an error.
	if !ok {
		slog.Info("strategy: no trade occurred", "agent", r.Wallet.AgentID(), "kind", action.Kind)
	}
	return nil
}
