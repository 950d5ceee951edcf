package chain

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// confirmPollInterval is how often ConfirmTransaction polls signature status.
const confirmPollInterval = 500 * time.Millisecond

// RPC is the Client implementation backed by a Solana JSON-RPC endpoint.
type RPC struct {
	client *rpc.Client
}

// NewRPC connects to a Solana RPC endpoint, e.g. rpc.DevNet_RPC.
func NewRPC(endpoint string) *RPC {
	return &RPC{client: rpc.New(endpoint)}
}

func (c *RPC) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	out, err := c.client.GetBalance(ctx, account, rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("get balance for %s: %w", account, err)
	}
	return out.Value, nil
}

func (c *RPC) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	out, err := c.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("get latest blockhash: %w", err)
	}
	return out.Value.Blockhash, nil
}

func (c *RPC) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentProcessed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}
	return sig, nil
}

// ConfirmTransaction polls signature status until the transaction reaches
// confirmed (or better) commitment. The caller bounds the wait via ctx.
func (c *RPC) ConfirmTransaction(ctx context.Context, sig solana.Signature) error {
	ticker := time.NewTicker(confirmPollInterval)
	defer ticker.Stop()

	for {
		out, err := c.client.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			slog.Debug("chain: signature status poll failed", "sig", sig, "error", err)
		} else if len(out.Value) > 0 && out.Value[0] != nil {
			status := out.Value[0]
			if status.Err != nil {
				return fmt.Errorf("transaction %s failed on chain: %v", sig, status.Err)
			}
			switch status.ConfirmationStatus {
			case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("confirm %s: %w", sig, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *RPC) RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error) {
	sig, err := c.client.RequestAirdrop(ctx, account, lamports, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("request airdrop: %w", err)
	}
	return sig, nil
}
