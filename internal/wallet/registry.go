package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/ayonic/Solana-Agent-Wallet/internal/chain"
	"github.com/ayonic/Solana-Agent-Wallet/internal/keystore"
	"github.com/ayonic/Solana-Agent-Wallet/internal/ledger"
	"github.com/ayonic/Solana-Agent-Wallet/internal/metrics"
)

// Registry creates and tracks one Wallet per agent identity. It is the only
// component allowed to construct wallets: creation generates and stores a
// fresh keypair, loading reattaches to an existing credential, and both wire
// up the agent's private spend-ledger file.
type Registry struct {
	store   *keystore.Store
	client  chain.Client
	dataDir string
	sink    metrics.Sink

	mu      sync.Mutex
	wallets map[string]*Wallet
}

// NewRegistry creates a registry. Ledger files live under dataDir/ledger,
// one per agent, so agents never contend on a shared file.
func NewRegistry(store *keystore.Store, client chain.Client, dataDir string, sink metrics.Sink) *Registry {
	if sink == nil {
		sink = metrics.Nop{}
	}
	return &Registry{
		store:   store,
		client:  client,
		dataDir: dataDir,
		sink:    sink,
		wallets: make(map[string]*Wallet),
	}
}

// Create generates a fresh keypair for agentID, stores it encrypted, and
// returns the new wallet. Fails with keystore.ErrExists if the agent already
// has a credential.
func (r *Registry) Create(agentID, label string, limits Limits) (*Wallet, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate keypair for %s: %w", agentID, err)
	}

	meta, err := r.store.Save(agentID, key, label)
	if err != nil {
		return nil, err
	}

	w, err := r.attach(agentID, label, limits)
	if err != nil {
		return nil, err
	}
	slog.Info("registry: wallet created", "agent", agentID, "publicKey", meta.PublicKey)
	return w, nil
}

// Load reattaches to an existing credential. Fails with keystore.ErrNotFound
// if the agent has none. Loading an already-attached wallet returns the
// existing instance with the given limits applied; its label stays whatever
// the first attach set.
func (r *Registry) Load(agentID string, limits Limits) (*Wallet, error) {
	pub, err := r.store.PublicKey(agentID)
	if err != nil {
		return nil, err
	}

	label := ""
	if list, lerr := r.store.List(); lerr == nil {
		for _, m := range list {
			if m.AgentID == agentID {
				label = m.Label
				break
			}
		}
	}

	w, err := r.attach(agentID, label, limits)
	if err != nil {
		return nil, err
	}
	slog.Info("registry: wallet loaded", "agent", agentID, "publicKey", pub)
	return w, nil
}

// LoadOrCreate loads the agent's wallet, creating a credential on first use.
func (r *Registry) LoadOrCreate(agentID, label string, limits Limits) (*Wallet, error) {
	if r.store.Has(agentID) {
		return r.Load(agentID, limits)
	}
	return r.Create(agentID, label, limits)
}

// Get returns a previously created or loaded wallet.
func (r *Registry) Get(agentID string) (*Wallet, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[agentID]
	return w, ok
}

// All returns every wallet currently attached to the registry.
func (r *Registry) All() []*Wallet {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Wallet, 0, len(r.wallets))
	for _, w := range r.wallets {
		out = append(out, w)
	}
	return out
}

// Balances takes a batch balance snapshot. A wallet whose query fails is
// logged and omitted instead of failing the whole snapshot.
func (r *Registry) Balances(ctx context.Context) map[string]uint64 {
	out := make(map[string]uint64)
	for _, w := range r.All() {
		balance, err := w.Balance(ctx)
		if err != nil {
			slog.Warn("registry: balance snapshot failed", "agent", w.AgentID(), "error", err)
			continue
		}
		out[w.AgentID()] = balance
	}
	return out
}

// Delete retires an agent: removes its credential artifacts and detaches the
// wallet. The ledger file is kept for audit.
func (r *Registry) Delete(agentID string) error {
	if err := r.store.Delete(agentID); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.wallets, agentID)
	r.mu.Unlock()

	slog.Info("registry: wallet deleted", "agent", agentID)
	return nil
}

func (r *Registry) attach(agentID, label string, limits Limits) (*Wallet, error) {
	led, err := ledger.Open(r.ledgerPath(agentID))
	if err != nil {
		return nil, fmt.Errorf("open ledger for %s: %w", agentID, err)
	}

	w := newWallet(agentID, label, r.store, r.client, led, limits, r.sink)

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.wallets[agentID]; ok {
		existing.SetLimits(limits)
		return existing, nil
	}
	r.wallets[agentID] = w
	return w, nil
}

func (r *Registry) ledgerPath(agentID string) string {
	return filepath.Join(r.dataDir, "ledger", agentID+".json")
}
