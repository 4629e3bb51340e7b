// Package backup implements the pre-execution file snapshot used by the
// Tool Executor to make fs.* operations reversible (spec.md §4.C). A backup
// is taken before a risky fs.* call runs and can be rolled back on failure,
// or purged once it ages past the retention window.
package backup

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aios/autonomy-core/internal/logging"
)

var log = logging.For("backup")

type entry struct {
	executionID string
	toolName    string
	backupPath  string // empty if nothing was backed up
	inputJSON   []byte
	createdAt   time.Time
}

// Manager tracks one backup per in-flight execution id, keyed until rollback
// or purge removes it. Safe for concurrent use by the Executor's pipeline.
type Manager struct {
	mu        sync.Mutex
	backupDir string
	entries   map[string]entry
}

// New creates (if necessary) backupDir and returns an empty Manager.
// Failure to create the directory is logged, not fatal — matching the
// teacher's tolerant startup posture for auxiliary directories.
func New(backupDir string) *Manager {
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		log.Warn().Err(err).Str("dir", backupDir).Msg("could not create backup directory")
	}
	return &Manager{backupDir: backupDir, entries: make(map[string]entry)}
}

// pathInput is the shape every fs.* tool input carries its target path in.
type pathInput struct {
	Path string `json:"path"`
}

// CreateBackup snapshots the target of an fs.* tool call before it runs. For
// any other tool namespace it still records the input for later inspection
// but copies no file. Returns the generated backup id.
func (m *Manager) CreateBackup(executionID, toolName string, inputJSON []byte) string {
	backupID := uuid.NewString()

	var backupPath string
	if hasPrefix(toolName, "fs.") {
		backupPath = m.backupFileFromInput(inputJSON, backupID)
	}

	m.mu.Lock()
	m.entries[executionID] = entry{
		executionID: executionID,
		toolName:    toolName,
		backupPath:  backupPath,
		inputJSON:   inputJSON,
		createdAt:   time.Now().UTC(),
	}
	m.mu.Unlock()

	log.Info().Str("backup_id", backupID).Str("tool", toolName).Msg("created backup")
	return backupID
}

func (m *Manager) backupFileFromInput(inputJSON []byte, backupID string) string {
	var in pathInput
	if err := json.Unmarshal(inputJSON, &in); err != nil || in.Path == "" {
		return ""
	}
	if _, err := os.Stat(in.Path); err != nil {
		return ""
	}
	dst := filepath.Join(m.backupDir, backupID)
	if err := copyFile(in.Path, dst); err != nil {
		log.Warn().Err(err).Str("path", in.Path).Msg("could not snapshot file for backup")
		return ""
	}
	return dst
}

// Rollback restores the backed-up file for executionID and discards the
// backup entry. Returns false (no error) if there is nothing to roll back —
// either the execution id is unknown or the tool wasn't a file operation.
func (m *Manager) Rollback(executionID string) (bool, error) {
	m.mu.Lock()
	e, ok := m.entries[executionID]
	if ok {
		delete(m.entries, executionID)
	}
	m.mu.Unlock()

	if !ok || e.backupPath == "" {
		return false, nil
	}

	var in pathInput
	if err := json.Unmarshal(e.inputJSON, &in); err != nil || in.Path == "" {
		return false, nil
	}
	if _, err := os.Stat(e.backupPath); err != nil {
		return false, nil
	}
	if err := copyFile(e.backupPath, in.Path); err != nil {
		return false, err
	}
	if err := os.Remove(e.backupPath); err != nil {
		return false, err
	}
	log.Info().Str("tool", e.toolName).Str("path", in.Path).Msg("rolled back")
	return true, nil
}

// CleanupOld purges backup entries (and their files) older than maxAge.
func (m *Manager) CleanupOld(maxAge time.Duration) {
	cutoff := time.Now().UTC().Add(-maxAge)

	m.mu.Lock()
	var stale []string
	for id, e := range m.entries {
		if e.createdAt.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	removed := make([]entry, 0, len(stale))
	for _, id := range stale {
		removed = append(removed, m.entries[id])
		delete(m.entries, id)
	}
	m.mu.Unlock()

	for _, e := range removed {
		if e.backupPath != "" {
			if err := os.Remove(e.backupPath); err != nil && !os.IsNotExist(err) {
				log.Warn().Err(err).Str("path", e.backupPath).Msg("failed to purge stale backup file")
			}
		}
	}
}

// Count returns the number of tracked in-flight backup entries (tests,
// introspection).
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
