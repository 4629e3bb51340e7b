package plugin

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeMeta(t *testing.T, dir, name string, meta Metadata) {
	t.Helper()
	data, err := json.Marshal(meta)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), data, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".sh"), []byte("#!/bin/sh\necho {}\n"), 0o755))
}

func TestScanDir_MissingDirReturnsEmpty(t *testing.T) {
	defs, errs := ScanDir(filepath.Join(t.TempDir(), "nope"))
	require.Nil(t, defs)
	require.Nil(t, errs)
}

func TestScanDir_PairsScriptAndMetadata(t *testing.T) {
	dir := t.TempDir()
	writeMeta(t, dir, "greet", Metadata{ToolName: "plugin.greet", Description: "says hi"})

	defs, errs := ScanDir(dir)
	require.Empty(t, errs)
	require.Len(t, defs, 1)
	require.Equal(t, "plugin.greet", defs[0].ToolName)
	require.Equal(t, filepath.Join(dir, "greet.sh"), defs[0].ScriptPath)
}

func TestScanDir_SidecarWithoutScriptSkipped(t *testing.T) {
	dir := t.TempDir()
	data, _ := json.Marshal(Metadata{ToolName: "plugin.orphan"})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orphan.json"), data, 0o644))

	defs, _ := ScanDir(dir)
	require.Empty(t, defs)
}

func TestScanDir_MissingToolNameErrors(t *testing.T) {
	dir := t.TempDir()
	data, _ := json.Marshal(Metadata{})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), data, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.sh"), []byte(""), 0o755))

	defs, errs := ScanDir(dir)
	require.Empty(t, defs)
	require.Len(t, errs, 1)
}

func TestApplyOutputMode_Pipe(t *testing.T) {
	out, err := ApplyOutputMode(Pipe, json.RawMessage(`{"a":1}`), json.RawMessage(`{"b":2}`))
	require.NoError(t, err)
	require.JSONEq(t, `{"b":2}`, string(out))
}

func TestApplyOutputMode_MergePrefersPrevOutput(t *testing.T) {
	out, err := ApplyOutputMode(Merge, json.RawMessage(`{"a":1,"b":1}`), json.RawMessage(`{"b":2}`))
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1,"b":2}`, string(out))
}

func TestApplyOutputMode_MergeInvalidInputErrors(t *testing.T) {
	_, err := ApplyOutputMode(Merge, json.RawMessage(`not json`), json.RawMessage(`{}`))
	require.Error(t, err)
}
