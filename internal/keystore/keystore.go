// Package keystore persists one Solana keypair per agent, encrypted at rest
// with AES-256-GCM. Each agent owns two artifacts under the store directory:
// <agentID>.key (encrypted private key) and <agentID>.json (plaintext
// metadata). Private key material is decrypted on demand and never cached by
// the store.
package keystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/gagliardetto/solana-go"
)

var (
	// ErrNotFound means no credential exists for the agent ID.
	ErrNotFound = errors.New("credential not found")

	// ErrIntegrity means the authentication tag did not verify: the blob was
	// tampered with or the store was opened with a different secret.
	ErrIntegrity = errors.New("credential integrity check failed")

	// ErrExists means a credential is already stored for the agent ID.
	// Credentials are never overwritten in place.
	ErrExists = errors.New("credential already exists")

	// ErrStorage wraps durable-write failures.
	ErrStorage = errors.New("keystore storage failure")
)

// insecureDefaultSecret is used when no secret is supplied. It exists so
// local development works out of the box; anything real must set one.
const insecureDefaultSecret = "insecure-dev-secret-change-me"

var agentIDRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// Metadata is the plaintext companion record for a stored credential.
type Metadata struct {
	AgentID   string    `json:"agentId"`
	PublicKey string    `json:"publicKey"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store encrypts and persists agent keypairs under a single directory.
type Store struct {
	dir    string
	secret string
}

// New opens (or creates) a keystore directory. The directory is restricted
// to the owner. An empty secret falls back to a known development default,
// which is loudly flagged and must never be used outside local testing.
func New(dir, secret string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create keystore dir %s: %w: %v", dir, ErrStorage, err)
	}
	if secret == "" {
		slog.Warn("keystore: no encryption secret configured, using INSECURE development default",
			"dir", dir,
			"hint", "set SAW_WALLET_SECRET to a high-entropy value")
		secret = insecureDefaultSecret
	}
	return &Store{dir: dir, secret: secret}, nil
}

// Save encrypts and persists a keypair for agentID. Fails with ErrExists if
// the agent already has a credential.
func (s *Store) Save(agentID string, key solana.PrivateKey, label string) (Metadata, error) {
	if !agentIDRe.MatchString(agentID) {
		return Metadata{}, fmt.Errorf("invalid agent ID %q", agentID)
	}
	if s.Has(agentID) {
		return Metadata{}, fmt.Errorf("agent %s: %w", agentID, ErrExists)
	}

	blob, err := encrypt(s.secret, key)
	if err != nil {
		return Metadata{}, fmt.Errorf("encrypt credential for %s: %w", agentID, err)
	}

	meta := Metadata{
		AgentID:   agentID,
		PublicKey: key.PublicKey().String(),
		Label:     label,
		CreatedAt: time.Now().UTC(),
	}
	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return Metadata{}, err
	}

	if err := os.WriteFile(s.keyPath(agentID), blob, 0o600); err != nil {
		return Metadata{}, fmt.Errorf("write credential for %s: %w: %v", agentID, ErrStorage, err)
	}
	if err := os.WriteFile(s.metaPath(agentID), metaBytes, 0o600); err != nil {
		// Don't leave a key blob without its metadata record.
		os.Remove(s.keyPath(agentID))
		return Metadata{}, fmt.Errorf("write metadata for %s: %w: %v", agentID, ErrStorage, err)
	}

	slog.Info("keystore: credential stored", "agent", agentID, "publicKey", meta.PublicKey)
	return meta, nil
}

// Load decrypts and returns the agent's private key.
func (s *Store) Load(agentID string) (solana.PrivateKey, error) {
	blob, err := os.ReadFile(s.keyPath(agentID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("agent %s: %w", agentID, ErrNotFound)
		}
		return nil, fmt.Errorf("read credential for %s: %w: %v", agentID, ErrStorage, err)
	}

	plain, err := decrypt(s.secret, blob)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", agentID, err)
	}
	return solana.PrivateKey(plain), nil
}

// Delete removes both credential artifacts. Deleting an absent credential is
// not an error.
func (s *Store) Delete(agentID string) error {
	for _, path := range []string{s.keyPath(agentID), s.metaPath(agentID)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete %s: %w: %v", path, ErrStorage, err)
		}
	}
	return nil
}

// Has reports whether a credential exists for the agent ID.
func (s *Store) Has(agentID string) bool {
	_, err := os.Stat(s.keyPath(agentID))
	return err == nil
}

// PublicKey returns the agent's public identity without touching private
// material.
func (s *Store) PublicKey(agentID string) (string, error) {
	meta, err := s.readMeta(agentID)
	if err != nil {
		return "", err
	}
	return meta.PublicKey, nil
}

// List returns metadata for every stored credential, sorted by the
// filesystem's directory order.
func (s *Store) List() ([]Metadata, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read keystore dir: %w: %v", ErrStorage, err)
	}

	var metas []Metadata
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		agentID := entry.Name()[:len(entry.Name())-len(".json")]
		meta, err := s.readMeta(agentID)
		if err != nil {
			slog.Warn("keystore: skipping unreadable metadata", "agent", agentID, "error", err)
			continue
		}
		metas = append(metas, meta)
	}
	return metas, nil
}

func (s *Store) readMeta(agentID string) (Metadata, error) {
	data, err := os.ReadFile(s.metaPath(agentID))
	if err != nil {
		if os.IsNotExist(err) {
			return Metadata{}, fmt.Errorf("agent %s: %w", agentID, ErrNotFound)
		}
		return Metadata{}, fmt.Errorf("read metadata for %s: %w: %v", agentID, ErrStorage, err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("parse metadata for %s: %v", agentID, err)
	}
	return meta, nil
}

func (s *Store) keyPath(agentID string) string {
	return filepath.Join(s.dir, agentID+".key")
}

func (s *Store) metaPath(agentID string) string {
	return filepath.Join(s.dir, agentID+".json")
}
