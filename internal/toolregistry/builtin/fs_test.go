package builtin

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aios/autonomy-core/internal/toolregistry"
)

func newFSRegistry(t *testing.T) (*toolregistry.Registry, string) {
	t.Helper()
	dir := t.TempDir()
	reg := toolregistry.NewRegistry()
	RegisterFS(reg, dir)
	return reg, dir
}

func TestFSWriteThenRead(t *testing.T) {
	reg, _ := newFSRegistry(t)

	writeDef, _ := reg.Get("fs.write")
	input, _ := json.Marshal(map[string]string{"path": "note.txt", "content": "hello"})
	_, err := writeDef.Handler(context.Background(), input)
	require.NoError(t, err)

	readDef, _ := reg.Get("fs.read")
	out, err := readDef.Handler(context.Background(), json.RawMessage(`{"path":"note.txt"}`))
	require.NoError(t, err)

	var result map[string]string
	require.NoError(t, json.Unmarshal(out, &result))
	require.Equal(t, "hello", result["content"])
}

func TestFSRead_RejectsPathEscape(t *testing.T) {
	reg, _ := newFSRegistry(t)
	readDef, _ := reg.Get("fs.read")

	_, err := readDef.Handler(context.Background(), json.RawMessage(`{"path":"../../etc/passwd"}`))
	require.Error(t, err)
}

func TestFSList_ReportsEntries(t *testing.T) {
	reg, dir := newFSRegistry(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))

	listDef, _ := reg.Get("fs.list")
	out, err := listDef.Handler(context.Background(), json.RawMessage(`{"path":"."}`))
	require.NoError(t, err)
	require.Contains(t, string(out), "a.txt")
}

func TestFSDelete_RemovesFile(t *testing.T) {
	reg, dir := newFSRegistry(t)
	target := filepath.Join(dir, "gone.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	deleteDef, _ := reg.Get("fs.delete")
	_, err := deleteDef.Handler(context.Background(), json.RawMessage(`{"path":"gone.txt"}`))
	require.NoError(t, err)

	_, statErr := os.Stat(target)
	require.True(t, os.IsNotExist(statErr))
}

func TestFSWrite_RejectsOversizedContent(t *testing.T) {
	reg, _ := newFSRegistry(t)
	writeDef, _ := reg.Get("fs.write")

	big := make([]byte, maxWriteSize+1)
	input, _ := json.Marshal(map[string]string{"path": "big.txt", "content": string(big)})
	_, err := writeDef.Handler(context.Background(), input)
	require.Error(t, err)
}
