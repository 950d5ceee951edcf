package trader

import (
	"context"
	"log/slog"

	"github.com/gagliardetto/solana-go"

	"github.com/ayonic/Solana-Agent-Wallet/internal/metrics"
	"github.com/ayonic/Solana-Agent-Wallet/internal/wallet"
)

// Simulated stands in a plain transfer to a fixed counterparty for a real
// swap. It exercises the full custody path, from policy check through
// submission and the spend ledger, without needing a liquidity venue.
type Simulated struct {
	statsTracker
	wallet       *wallet.Wallet
	counterparty solana.PublicKey
	sink         metrics.Sink
}

// NewSimulated creates a simulated trader that transfers to counterparty.
func NewSimulated(w *wallet.Wallet, counterparty solana.PublicKey, sink metrics.Sink) *Simulated {
	if sink == nil {
		sink = metrics.Nop{}
	}
	return &Simulated{wallet: w, counterparty: counterparty, sink: sink}
}

func (s *Simulated) Buy(ctx context.Context, lamports uint64) (solana.Signature, bool) {
	sig, ok := s.execute(ctx, "buy", lamports)
	if ok {
		s.recordBuy(lamports)
	}
	return sig, ok
}

func (s *Simulated) Sell(ctx context.Context, amount uint64) (solana.Signature, bool) {
	sig, ok := s.execute(ctx, "sell", amount)
	if ok {
		s.recordSell(amount)
	}
	return sig, ok
}

func (s *Simulated) execute(ctx context.Context, side string, lamports uint64) (solana.Signature, bool) {
	balance, err := s.wallet.Balance(ctx)
	if err != nil {
		slog.Warn("simulated trader: balance check failed, skipping trade",
			"agent", s.wallet.AgentID(), "side", side, "error", err)
		return solana.Signature{}, false
	}
	if balance < lamports {
		slog.Warn("simulated trader: insufficient balance, skipping trade",
			"agent", s.wallet.AgentID(), "side", side, "balance", balance, "lamports", lamports)
		return solana.Signature{}, false
	}

	sig, err := s.wallet.Transfer(ctx, s.counterparty, lamports)
	if err != nil {
		slog.Warn("simulated trader: transfer refused, no trade occurred",
			"agent", s.wallet.AgentID(), "side", side, "lamports", lamports, "error", err)
		return solana.Signature{}, false
	}

	s.sink.TradeExecuted(s.wallet.AgentID(), side, lamports)
	return sig, true
}
