// Package wallet implements the per-agent signing authority: it owns one
// decrypted keypair, gates every outgoing transfer against spend policy, and
// keeps a local transaction history. Wallets are constructed exclusively by
// the Registry, which wires up the keystore, chain client and spend ledger.
package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/google/uuid"

	"github.com/ayonic/Solana-Agent-Wallet/internal/chain"
	"github.com/ayonic/Solana-Agent-Wallet/internal/keystore"
	"github.com/ayonic/Solana-Agent-Wallet/internal/ledger"
	"github.com/ayonic/Solana-Agent-Wallet/internal/metrics"
)

// TxKind classifies a transaction record.
type TxKind string

const (
	KindTransfer TxKind = "transfer"
	KindFund     TxKind = "fund"
	KindCustom   TxKind = "custom"
)

// TxStatus is the lifecycle of a transaction record. Records move from
// pending to exactly one of confirmed or failed and are never mutated after
// that.
type TxStatus string

const (
	StatusPending   TxStatus = "pending"
	StatusConfirmed TxStatus = "confirmed"
	StatusFailed    TxStatus = "failed"
)

// TransactionRecord is one entry in the wallet's local history.
type TransactionRecord struct {
	ID          string    `json:"id"`
	Signature   string    `json:"signature,omitempty"`
	Kind        TxKind    `json:"kind"`
	Lamports    uint64    `json:"lamports"`
	Counterpart string    `json:"counterpart,omitempty"`
	Status      TxStatus  `json:"status"`
	Err         string    `json:"error,omitempty"`
	Time        time.Time `json:"ts"`
}

// Limits holds the spend policy for one wallet. Zero means unlimited.
type Limits struct {
	MaxPerTransfer uint64 // lamports per single transfer
	MaxDailyTotal  uint64 // lamports per UTC day
}

// Summary is the wallet's public snapshot for listings and dashboards.
type Summary struct {
	AgentID      string    `json:"agentId"`
	Label        string    `json:"label,omitempty"`
	PublicKey    string    `json:"publicKey"`
	TxCount      int       `json:"txCount"`
	LastActivity time.Time `json:"lastActivity,omitzero"`
}

// Wallet is one agent's signing authority.
//
// Wallet is not re-entrant for Transfer: the spend-limit check and the
// ledger increment are not atomic across concurrent callers. One agent loop
// drives one wallet, so calls arrive sequentially; anything else must
// serialize Transfer itself.
type Wallet struct {
	agentID string
	label   string
	store   *keystore.Store
	client  chain.Client
	ledger  *ledger.Ledger
	sink    metrics.Sink

	mu      sync.Mutex
	key     solana.PrivateKey // decrypted lazily, held for process lifetime
	limits  Limits
	history []TransactionRecord
}

// newWallet is package-private: the Registry is the only constructor.
func newWallet(agentID, label string, store *keystore.Store, client chain.Client, led *ledger.Ledger, limits Limits, sink metrics.Sink) *Wallet {
	if sink == nil {
		sink = metrics.Nop{}
	}
	return &Wallet{
		agentID: agentID,
		label:   label,
		store:   store,
		client:  client,
		ledger:  led,
		limits:  limits,
		sink:    sink,
	}
}

// AgentID returns the owning agent's identity.
func (w *Wallet) AgentID() string { return w.agentID }

// PublicKey returns the wallet's public identity. It reads metadata only; no
// private material is decrypted.
func (w *Wallet) PublicKey() (solana.PublicKey, error) {
	s, err := w.store.PublicKey(w.agentID)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBase58(s)
}

// Limits returns the current spend policy.
func (w *Wallet) Limits() Limits {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.limits
}

// SetLimits replaces the spend policy. Used by config hot-reload; takes
// effect on the next Transfer.
func (w *Wallet) SetLimits(limits Limits) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.limits = limits
	slog.Info("wallet: limits updated",
		"agent", w.agentID,
		"maxPerTransfer", limits.MaxPerTransfer,
		"maxDailyTotal", limits.MaxDailyTotal)
}

// Balance reads the wallet's lamport balance, retrying transient failures
// with exponential backoff (200ms, 400ms) before giving up.
func (w *Wallet) Balance(ctx context.Context) (uint64, error) {
	pub, err := w.PublicKey()
	if err != nil {
		return 0, err
	}

	var balance uint64
	err = withBackoff(ctx, balanceAttempts, balanceBackoffBase, func() error {
		var inner error
		balance, inner = w.client.Balance(ctx, pub)
		return inner
	})
	if err != nil {
		return 0, fmt.Errorf("agent %s after %d attempts: %w: %v", w.agentID, balanceAttempts, ErrQuery, err)
	}
	return balance, nil
}

// Transfer sends lamports to another account. The spend policy is checked
// strictly before any network call: a rejected transfer makes zero chain
// calls and leaves no transaction record. A confirmed transfer is recorded
// and counted against the daily ledger; a failed one is recorded and not
// counted.
func (w *Wallet) Transfer(ctx context.Context, to solana.PublicKey, lamports uint64) (solana.Signature, error) {
	if err := w.checkPolicy(lamports); err != nil {
		w.sink.TransferRejected(w.agentID, err.Error())
		return solana.Signature{}, err
	}

	key, err := w.loadKey()
	if err != nil {
		return solana.Signature{}, err
	}
	from := key.PublicKey()

	rec := w.appendRecord(TransactionRecord{
		Kind:        KindTransfer,
		Lamports:    lamports,
		Counterpart: to.String(),
	})

	sig, err := w.sendTransfer(ctx, key, from, to, lamports)
	if err != nil {
		w.completeRecord(rec, solana.Signature{}, err)
		return solana.Signature{}, fmt.Errorf("agent %s transfer of %d lamports to %s: %w: %v",
			w.agentID, lamports, to, ErrSubmission, err)
	}

	w.completeRecord(rec, sig, nil)
	w.sink.TransferConfirmed(w.agentID, lamports)

	// The transfer is already confirmed on chain at this point; a failed
	// ledger write under-counts today's spend rather than blocking the
	// wallet. A crash in this window has the same effect.
	if err := w.ledger.RecordSpend(lamports); err != nil {
		slog.Error("wallet: spend confirmed but ledger write failed",
			"agent", w.agentID, "lamports", lamports, "error", err)
	}

	slog.Info("wallet: transfer confirmed",
		"agent", w.agentID, "to", to.String(), "lamports", lamports, "sig", sig.String())
	return sig, nil
}

// SignAndSubmit decodes an externally prepared unsigned transaction (as
// produced by a swap venue), signs it with the wallet's key and submits it.
// The spend policy does not apply: the caller prepared the payload and is
// responsible for its amounts.
func (w *Wallet) SignAndSubmit(ctx context.Context, rawTx []byte) (solana.Signature, error) {
	key, err := w.loadKey()
	if err != nil {
		return solana.Signature{}, err
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(rawTx))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("agent %s: decode transaction: %w: %v", w.agentID, ErrSubmission, err)
	}

	rec := w.appendRecord(TransactionRecord{Kind: KindCustom})

	if _, err := tx.Sign(w.signerFor(key)); err != nil {
		w.completeRecord(rec, solana.Signature{}, err)
		return solana.Signature{}, fmt.Errorf("agent %s: sign transaction: %w: %v", w.agentID, ErrSubmission, err)
	}

	sig, err := w.submit(ctx, tx)
	if err != nil {
		w.completeRecord(rec, solana.Signature{}, err)
		return solana.Signature{}, fmt.Errorf("agent %s: %w: %v", w.agentID, ErrSubmission, err)
	}

	w.completeRecord(rec, sig, nil)
	slog.Info("wallet: custom transaction confirmed", "agent", w.agentID, "sig", sig.String())
	return sig, nil
}

// RequestFunding asks the network faucet to top up the wallet. Dev/test
// networks only; inbound funds never touch the spend ledger.
func (w *Wallet) RequestFunding(ctx context.Context, lamports uint64) (solana.Signature, error) {
	pub, err := w.PublicKey()
	if err != nil {
		return solana.Signature{}, err
	}

	rec := w.appendRecord(TransactionRecord{
		Kind:        KindFund,
		Lamports:    lamports,
		Counterpart: "faucet",
	})

	sig, err := w.client.RequestAirdrop(ctx, pub, lamports)
	if err == nil {
		err = w.client.ConfirmTransaction(ctx, sig)
	}
	if err != nil {
		w.completeRecord(rec, solana.Signature{}, err)
		return solana.Signature{}, fmt.Errorf("agent %s funding request: %w: %v", w.agentID, ErrSubmission, err)
	}

	w.completeRecord(rec, sig, nil)
	slog.Info("wallet: funding confirmed", "agent", w.agentID, "lamports", lamports, "sig", sig.String())
	return sig, nil
}

// History returns a snapshot copy of the wallet's transaction records.
func (w *Wallet) History() []TransactionRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]TransactionRecord, len(w.history))
	copy(out, w.history)
	return out
}

// Summary returns the wallet's public snapshot.
func (w *Wallet) Summary() Summary {
	pub, err := w.store.PublicKey(w.agentID)
	if err != nil {
		pub = ""
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	s := Summary{
		AgentID:   w.agentID,
		Label:     w.label,
		PublicKey: pub,
		TxCount:   len(w.history),
	}
	if n := len(w.history); n > 0 {
		s.LastActivity = w.history[n-1].Time
	}
	return s
}

// --- Policy ---

func (w *Wallet) checkPolicy(lamports uint64) error {
	w.mu.Lock()
	limits := w.limits
	w.mu.Unlock()

	if limits.MaxPerTransfer > 0 && lamports > limits.MaxPerTransfer {
		return fmt.Errorf("transfer of %d lamports exceeds the per-transaction limit of %d lamports: %w",
			lamports, limits.MaxPerTransfer, ErrPolicy)
	}

	if limits.MaxDailyTotal > 0 {
		// Subtraction instead of spent+lamports: the sum can wrap uint64.
		spent := w.ledger.TodaySpent()
		if spent >= limits.MaxDailyTotal || lamports > limits.MaxDailyTotal-spent {
			return fmt.Errorf("daily spend limit reached: %d lamports already spent today, %d more would exceed the cap of %d: %w",
				spent, lamports, limits.MaxDailyTotal, ErrPolicy)
		}
	}
	return nil
}

// --- Transaction plumbing ---

func (w *Wallet) sendTransfer(ctx context.Context, key solana.PrivateKey, from, to solana.PublicKey, lamports uint64) (solana.Signature, error) {
	blockhash, err := w.client.LatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, err
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(lamports, from, to).Build(),
		},
		blockhash,
		solana.TransactionPayer(from),
	)
	if err != nil {
		return solana.Signature{}, err
	}

	if _, err := tx.Sign(w.signerFor(key)); err != nil {
		return solana.Signature{}, err
	}

	return w.submit(ctx, tx)
}

func (w *Wallet) submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := w.client.SendTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, err
	}
	if err := w.client.ConfirmTransaction(ctx, sig); err != nil {
		return solana.Signature{}, err
	}
	return sig, nil
}

func (w *Wallet) signerFor(key solana.PrivateKey) func(solana.PublicKey) *solana.PrivateKey {
	pub := key.PublicKey()
	return func(k solana.PublicKey) *solana.PrivateKey {
		if k.Equals(pub) {
			return &key
		}
		return nil
	}
}

// loadKey decrypts the credential on first use and keeps it for the process
// lifetime. The keystore itself never caches decrypted material.
func (w *Wallet) loadKey() (solana.PrivateKey, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.key != nil {
		return w.key, nil
	}
	key, err := w.store.Load(w.agentID)
	if err != nil {
		return nil, err
	}
	w.key = key
	return key, nil
}

// --- History records ---

// appendRecord adds a pending record and returns its ID.
func (w *Wallet) appendRecord(rec TransactionRecord) string {
	rec.ID = uuid.NewString()
	rec.Status = StatusPending
	rec.Time = time.Now().UTC()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.history = append(w.history, rec)
	return rec.ID
}

// completeRecord transitions a pending record to confirmed or failed.
func (w *Wallet) completeRecord(id string, sig solana.Signature, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range w.history {
		if w.history[i].ID != id {
			continue
		}
		if err != nil {
			w.history[i].Status = StatusFailed
			w.history[i].Err = err.Error()
		} else {
			w.history[i].Status = StatusConfirmed
			w.history[i].Signature = sig.String()
		}
		return
	}
}
