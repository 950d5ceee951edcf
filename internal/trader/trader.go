// Package trader turns abstract buy/sell intents into signed transfers
// through a wallet. Two implementations exist behind one interface: a
// simulated venue that stands in a plain transfer, and Jupiter swaps on the
// live venue. A trade that cannot happen (insufficient balance, policy
// rejection, venue error) reports ok=false and is never fatal; callers
// treat it as "no trade occurred" and move on.
package trader

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// Trader executes trades for one agent.
type Trader interface {
	// Buy spends lamports acquiring the target asset. ok=false means no
	// trade occurred.
	Buy(ctx context.Context, lamports uint64) (solana.Signature, bool)

	// Sell disposes of the target asset (amount in the asset's base units).
	// ok=false means no trade occurred.
	Sell(ctx context.Context, amount uint64) (solana.Signature, bool)

	// Stats returns cumulative trade counters.
	Stats() Stats
}

// Stats are cumulative per-trader counters.
type Stats struct {
	TradeCount      int    `json:"tradeCount"`
	TotalBuyVolume  uint64 `json:"totalBuyVolume"`
	TotalSellVolume uint64 `json:"totalSellVolume"`
	NetFlow         int64  `json:"netFlow"` // buys minus sells
}

// statsTracker is the shared counter implementation embedded by both
// variants.
type statsTracker struct {
	mu    sync.Mutex
	stats Stats
}

func (t *statsTracker) recordBuy(lamports uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.TradeCount++
	t.stats.TotalBuyVolume += lamports
	t.stats.NetFlow += int64(lamports)
}

func (t *statsTracker) recordSell(amount uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.TradeCount++
	t.stats.TotalSellVolume += amount
	t.stats.NetFlow -= int64(amount)
}

func (t *statsTracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}
