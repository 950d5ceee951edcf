// Package chain narrows the Solana RPC surface to exactly what the wallet
// needs. The wallet and traders depend on the Client interface, never on the
// RPC client directly, so tests can substitute a stub that records calls.
package chain

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// Client is the minimal venue surface consumed by wallets.
type Client interface {
	// Balance returns the account's lamport balance at finalized commitment.
	Balance(ctx context.Context, account solana.PublicKey) (uint64, error)

	// LatestBlockhash returns a recent blockhash for transaction assembly.
	LatestBlockhash(ctx context.Context) (solana.Hash, error)

	// SendTransaction submits a fully signed transaction.
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)

	// ConfirmTransaction blocks until the signature is confirmed, errors, or
	// the context is done.
	ConfirmTransaction(ctx context.Context, sig solana.Signature) error

	// RequestAirdrop asks a dev/test-network faucet for lamports.
	RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error)
}
