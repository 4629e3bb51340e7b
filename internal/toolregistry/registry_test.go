package toolregistry

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/require"

	"github.com/aios/autonomy-core/internal/audit"
	"github.com/aios/autonomy-core/internal/backup"
	"github.com/aios/autonomy-core/internal/capability"
)

func newTestExecutor(t *testing.T) (*Registry, *Executor) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE audit_log (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		execution_id TEXT, tool_name TEXT, agent_id TEXT, task_id TEXT,
		reason TEXT, success INTEGER, duration_ms INTEGER, timestamp TEXT,
		prev_hash TEXT, hash TEXT)`)
	require.NoError(t, err)

	ledger, err := audit.Open(db)
	require.NoError(t, err)

	checker := capability.New()
	checker.RegisterAgent("test-agent", []string{"fs_read", "fs_write"})

	backupMgr := backup.New(t.TempDir())
	reg := NewRegistry()
	exec := NewExecutor(reg, checker, backupMgr, ledger, nil)
	return reg, exec
}

func TestExecute_UnknownToolFails(t *testing.T) {
	_, exec := newTestExecutor(t)
	resp := exec.Execute(context.Background(), ExecuteRequest{ToolName: "fs.read", AgentID: "test-agent"})
	require.False(t, resp.Success)
	require.Contains(t, resp.Error, "unknown tool")
}

func TestExecute_PermissionDenied(t *testing.T) {
	reg, exec := newTestExecutor(t)
	reg.Register(Definition{Name: "process.kill", Handler: func(context.Context, json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`{}`), nil
	}})

	resp := exec.Execute(context.Background(), ExecuteRequest{ToolName: "process.kill", AgentID: "test-agent"})
	require.False(t, resp.Success)
	require.Contains(t, resp.Error, "permission denied")
}

func TestExecute_SuccessRecordsAudit(t *testing.T) {
	reg, exec := newTestExecutor(t)
	reg.Register(Definition{Name: "fs.read", Handler: func(context.Context, json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`{"content":"hi"}`), nil
	}})

	resp := exec.Execute(context.Background(), ExecuteRequest{ToolName: "fs.read", AgentID: "test-agent"})
	require.True(t, resp.Success)
	require.JSONEq(t, `{"content":"hi"}`, string(resp.OutputJSON))

	entries, err := exec.ledger.All()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, entries[0].Success)
}

func TestExecute_ReversibleToolCreatesBackup(t *testing.T) {
	dir := t.TempDir()
	target := dir + "/file.txt"
	require.NoError(t, writeFile(target, "original"))

	reg, exec := newTestExecutor(t)
	reg.Register(Definition{Name: "fs.write", Reversible: true, Handler: func(context.Context, json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`{}`), nil
	}})

	input, _ := json.Marshal(map[string]string{"path": target})
	resp := exec.Execute(context.Background(), ExecuteRequest{ToolName: "fs.write", AgentID: "test-agent", InputJSON: input})
	require.True(t, resp.Success)
	require.Equal(t, 1, exec.backupMgr.Count())
}

func TestExecute_HandlerErrorRollsBackReversibleTool(t *testing.T) {
	dir := t.TempDir()
	target := dir + "/file.txt"
	require.NoError(t, writeFile(target, "original"))

	reg, exec := newTestExecutor(t)
	reg.Register(Definition{Name: "fs.write", Reversible: true, Handler: func(context.Context, json.RawMessage) (json.RawMessage, error) {
		return nil, errBoom
	}})

	input, _ := json.Marshal(map[string]string{"path": target})
	resp := exec.Execute(context.Background(), ExecuteRequest{ToolName: "fs.write", AgentID: "test-agent", InputJSON: input})
	require.False(t, resp.Success)
	require.Equal(t, 0, exec.backupMgr.Count())
}

func TestRegistry_RegisterGetList(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Definition{Name: "fs.read"})
	reg.Register(Definition{Name: "fs.write"})

	_, ok := reg.Get("fs.read")
	require.True(t, ok)
	require.Equal(t, []string{"fs.read", "fs.write"}, reg.List())

	reg.Unregister("fs.read")
	_, ok = reg.Get("fs.read")
	require.False(t, ok)
}

var errBoom = &boomError{}

type boomError struct{}

func (*boomError) Error() string { return "boom" }

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
