package agentloop

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ayonic/Solana-Agent-Wallet/pkg/events"
)

// AuditLog is the shared append-only record of loop activity: one JSON
// object per line, each tagged with agent identity, event type, cycle number
// and timestamp. Appends from concurrent loops are serialized; the file is
// opened O_APPEND so a crash can truncate at most the final line.
type AuditLog struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// OpenAuditLog opens (or creates) the audit log at path.
func OpenAuditLog(path string) (*AuditLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit log %s: %w", path, err)
	}
	return &AuditLog{path: path, file: file}, nil
}

// Append writes one event as a JSON line.
func (a *AuditLog) Append(ev events.Event) error {
	line, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	_, err = a.file.Write(append(line, '\n'))
	return err
}

// Close flushes and closes the underlying file.
func (a *AuditLog) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}

// ReadAuditLog replays the audit file, optionally filtered to one agent
// (empty agentID returns everything). Unparseable lines, such as a line
// truncated by a crash, are skipped, not fatal.
func ReadAuditLog(path, agentID string) ([]events.Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var out []events.Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var ev events.Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		if agentID == "" || ev.AgentID == agentID {
			out = append(out, ev)
		}
	}
	return out, scanner.Err()
}
