// Package audit implements the hash-chained, append-only audit ledger
// (spec.md §4.A). Every tool execution accepted by the Executor produces
// exactly one entry, success or failure.
package audit

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/aios/autonomy-core/internal/logging"
)

var log = logging.For("audit")

// Genesis is the literal seed of the hash chain.
const Genesis = "genesis"

// Entry is one persisted audit record.
type Entry struct {
	Seq         int64
	ExecutionID string
	ToolName    string
	AgentID     string
	TaskID      string
	Reason      string
	Success     bool
	DurationMs  int64
	Timestamp   string // RFC3339 UTC, hashed verbatim
	PrevHash    string
	Hash        string
}

// Ledger is the hash-chained append-only ledger. All callers serialize on a
// single mutex; the chain has no other isolation requirement (spec.md §4.A).
type Ledger struct {
	mu       sync.Mutex
	db       *sql.DB
	lastHash string
}

// Open rehydrates the ledger's running hash from the most recently persisted
// entry, or seeds it at Genesis if the table is empty.
func Open(db *sql.DB) (*Ledger, error) {
	l := &Ledger{db: db, lastHash: Genesis}
	row := db.QueryRow(`SELECT hash FROM audit_log ORDER BY seq DESC LIMIT 1`)
	var hash string
	switch err := row.Scan(&hash); err {
	case nil:
		l.lastHash = hash
	case sql.ErrNoRows:
		// empty chain — stay at Genesis
	default:
		return nil, fmt.Errorf("audit: rehydrate last hash: %w", err)
	}
	return l, nil
}

// Record appends one audit entry and advances the running hash. Write
// failures are logged and do NOT advance last_hash, so the next call still
// chains from the last successfully persisted entry (spec.md §4.A, §7
// persistence-error policy).
func (l *Ledger) Record(executionID, toolName, agentID, taskID, reason string, success bool, durationMs int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	hash := computeHash(l.lastHash, executionID, toolName, agentID, timestamp)

	_, err := l.db.Exec(
		`INSERT INTO audit_log (execution_id, tool_name, agent_id, task_id, reason, success, duration_ms, timestamp, prev_hash, hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		executionID, toolName, agentID, taskID, reason, boolToInt(success), durationMs, timestamp, l.lastHash, hash,
	)
	if err != nil {
		log.Error().Err(err).Str("execution_id", executionID).Msg("audit write failed, chain not advanced")
		return
	}
	l.lastHash = hash
	log.Info().
		Str("tool", toolName).
		Str("agent", agentID).
		Bool("success", success).
		Int64("duration_ms", durationMs).
		Msg("recorded")
}

// LastHash returns the current running hash (for tests/introspection).
func (l *Ledger) LastHash() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastHash
}

// VerifyChain recomputes every hash in insertion order and compares it
// against the stored value (spec.md §8 property 3).
func (l *Ledger) VerifyChain() (bool, error) {
	rows, err := l.db.Query(
		`SELECT execution_id, tool_name, agent_id, timestamp, prev_hash, hash FROM audit_log ORDER BY seq ASC`,
	)
	if err != nil {
		return false, fmt.Errorf("audit: verify query: %w", err)
	}
	defer rows.Close()

	expectedPrev := Genesis
	for rows.Next() {
		var executionID, toolName, agentID, timestamp, prevHash, storedHash string
		if err := rows.Scan(&executionID, &toolName, &agentID, &timestamp, &prevHash, &storedHash); err != nil {
			return false, fmt.Errorf("audit: verify scan: %w", err)
		}
		if prevHash != expectedPrev {
			return false, nil
		}
		computed := computeHash(prevHash, executionID, toolName, agentID, timestamp)
		if computed != storedHash {
			return false, nil
		}
		expectedPrev = storedHash
	}
	return true, rows.Err()
}

// All returns every entry in insertion order (for introspection/tests).
func (l *Ledger) All() ([]Entry, error) {
	rows, err := l.db.Query(
		`SELECT seq, execution_id, tool_name, agent_id, task_id, reason, success, duration_ms, timestamp, prev_hash, hash
		 FROM audit_log ORDER BY seq ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var success int
		if err := rows.Scan(&e.Seq, &e.ExecutionID, &e.ToolName, &e.AgentID, &e.TaskID, &e.Reason, &success, &e.DurationMs, &e.Timestamp, &e.PrevHash, &e.Hash); err != nil {
			return nil, err
		}
		e.Success = success != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func computeHash(prevHash, executionID, toolName, agentID, timestamp string) string {
	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write([]byte(executionID))
	h.Write([]byte(toolName))
	h.Write([]byte(agentID))
	h.Write([]byte(timestamp))
	return hex.EncodeToString(h.Sum(nil))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
