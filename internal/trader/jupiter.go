package trader

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/ayonic/Solana-Agent-Wallet/internal/metrics"
	"github.com/ayonic/Solana-Agent-Wallet/internal/wallet"
)

// wrappedSOLMint is the mint address Jupiter uses for native SOL.
const wrappedSOLMint = "So11111111111111111111111111111111111111112"

// DefaultJupiterURL is the public Jupiter v6 quote API.
const DefaultJupiterURL = "https://quote-api.jup.ag/v6"

// JupiterConfig configures a live-venue trader.
type JupiterConfig struct {
	BaseURL     string        // quote API base, DefaultJupiterURL if empty
	TokenMint   string        // the asset traded against SOL
	SlippageBps int           // quote slippage tolerance, default 50
	Timeout     time.Duration // per-request HTTP timeout, default 15s
}

// Jupiter obtains a quote and an unsigned swap transaction from the venue,
// then hands the transaction to the wallet to sign and submit. Every venue
// or network error is logged and collapses to "no trade occurred".
type Jupiter struct {
	statsTracker
	wallet *wallet.Wallet
	cfg    JupiterConfig
	http   *http.Client
	sink   metrics.Sink
}

// NewJupiter creates a live-venue trader for the given token mint.
func NewJupiter(w *wallet.Wallet, cfg JupiterConfig, sink metrics.Sink) *Jupiter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultJupiterURL
	}
	if cfg.SlippageBps <= 0 {
		cfg.SlippageBps = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if sink == nil {
		sink = metrics.Nop{}
	}
	return &Jupiter{
		wallet: w,
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		sink:   sink,
	}
}

func (j *Jupiter) Buy(ctx context.Context, lamports uint64) (solana.Signature, bool) {
	sig, ok := j.swap(ctx, "buy", wrappedSOLMint, j.cfg.TokenMint, lamports)
	if ok {
		j.recordBuy(lamports)
	}
	return sig, ok
}

func (j *Jupiter) Sell(ctx context.Context, amount uint64) (solana.Signature, bool) {
	sig, ok := j.swap(ctx, "sell", j.cfg.TokenMint, wrappedSOLMint, amount)
	if ok {
		j.recordSell(amount)
	}
	return sig, ok
}

func (j *Jupiter) swap(ctx context.Context, side, inputMint, outputMint string, amount uint64) (solana.Signature, bool) {
	agentID := j.wallet.AgentID()

	quote, err := j.fetchQuote(ctx, inputMint, outputMint, amount)
	if err != nil {
		slog.Warn("jupiter: quote failed, no trade occurred",
			"agent", agentID, "side", side, "amount", amount, "error", err)
		return solana.Signature{}, false
	}

	rawTx, err := j.fetchSwapTransaction(ctx, quote)
	if err != nil {
		slog.Warn("jupiter: swap transaction failed, no trade occurred",
			"agent", agentID, "side", side, "error", err)
		return solana.Signature{}, false
	}

	sig, err := j.wallet.SignAndSubmit(ctx, rawTx)
	if err != nil {
		slog.Warn("jupiter: submission failed, no trade occurred",
			"agent", agentID, "side", side, "error", err)
		return solana.Signature{}, false
	}

	j.sink.TradeExecuted(agentID, side, amount)
	slog.Info("jupiter: swap confirmed", "agent", agentID, "side", side, "amount", amount, "sig", sig.String())
	return sig, true
}

// fetchQuote returns the venue's quote response verbatim; it is passed back
// to the swap endpoint untouched.
func (j *Jupiter) fetchQuote(ctx context.Context, inputMint, outputMint string, amount uint64) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("inputMint", inputMint)
	params.Set("outputMint", outputMint)
	params.Set("amount", strconv.FormatUint(amount, 10))
	params.Set("slippageBps", strconv.Itoa(j.cfg.SlippageBps))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.cfg.BaseURL+"/quote?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	body, err := j.do(req)
	if err != nil {
		return nil, fmt.Errorf("quote: %w", err)
	}
	return body, nil
}

// fetchSwapTransaction exchanges a quote for an unsigned, serialized
// transaction.
func (j *Jupiter) fetchSwapTransaction(ctx context.Context, quote json.RawMessage) ([]byte, error) {
	pub, err := j.wallet.PublicKey()
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]any{
		"quoteResponse":    quote,
		"userPublicKey":    pub.String(),
		"wrapAndUnwrapSol": true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.cfg.BaseURL+"/swap", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := j.do(req)
	if err != nil {
		return nil, fmt.Errorf("swap: %w", err)
	}

	var out struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("swap: parse response: %w", err)
	}
	if out.SwapTransaction == "" {
		return nil, fmt.Errorf("swap: venue returned no transaction")
	}

	rawTx, err := base64.StdEncoding.DecodeString(out.SwapTransaction)
	if err != nil {
		return nil, fmt.Errorf("swap: decode transaction: %w", err)
	}
	return rawTx, nil
}

func (j *Jupiter) do(req *http.Request) ([]byte, error) {
	resp, err := j.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("venue returned %s: %s", resp.Status, truncate(string(body), 200))
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
