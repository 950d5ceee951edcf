// Package ledger tracks cumulative daily spend per agent so the wallet can
// enforce a rolling daily cap across restarts. One JSON file per agent maps
// a UTC day key ("2006-01-02") to lamports spent that day.
//
// Day keys are always UTC. A local-time key would silently shift the
// effective cap boundary whenever the host timezone changes.
package ledger

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const dayFormat = "2006-01-02"

// Ledger is the durable per-agent spend counter. Safe for concurrent use by
// a single agent's wallet; the backing file is private to one agent, so no
// cross-agent coordination is needed.
type Ledger struct {
	path string

	mu    sync.Mutex
	spent map[string]uint64 // day key → cumulative lamports
	now   func() time.Time  // overridable in tests
}

// Open loads the ledger file for an agent, creating the parent directory if
// needed. A corrupt or unreadable file is treated as an empty ledger: the
// cap fails open rather than blocking the agent.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}

	l := &Ledger{
		path:  path,
		spent: make(map[string]uint64),
		now:   time.Now,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("ledger: unreadable file, starting empty", "path", path, "error", err)
		}
		return l, nil
	}
	if err := json.Unmarshal(data, &l.spent); err != nil {
		slog.Warn("ledger: corrupt file, starting empty", "path", path, "error", err)
		l.spent = make(map[string]uint64)
	}
	return l, nil
}

// TodaySpent returns the cumulative lamports recorded for the current UTC
// day. A brand-new day has no entry and reads as zero.
func (l *Ledger) TodaySpent() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.spent[l.dayKey()]
}

// RecordSpend adds lamports to today's entry and synchronously writes the
// ledger back to disk before returning. The write happens inline so that a
// restart immediately after a confirmed transfer still sees the spend.
func (l *Ledger) RecordSpend(lamports uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.spent[l.dayKey()] += lamports
	return l.saveLocked()
}

func (l *Ledger) saveLocked() error {
	data, err := json.MarshalIndent(l.spent, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(l.path, data, 0o600); err != nil {
		return fmt.Errorf("write ledger %s: %w", l.path, err)
	}
	return nil
}

func (l *Ledger) dayKey() string {
	return l.now().UTC().Format(dayFormat)
}
