package plugin

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aios/autonomy-core/internal/toolregistry"
)

func TestManager_ResolveUnknownPluginReturnsFalse(t *testing.T) {
	m := NewManager(t.TempDir())
	_, ok := m.Resolve("plugin.missing")
	require.False(t, ok)
}

func TestManager_ResolveNonPluginPrefixReturnsFalse(t *testing.T) {
	m := NewManager(t.TempDir())
	_, ok := m.Resolve("fs.read")
	require.False(t, ok)
}

func TestManager_ResolveKnownPluginReturnsHandler(t *testing.T) {
	dir := t.TempDir()
	writeMeta(t, dir, "greet", Metadata{ToolName: "plugin.greet", TimeoutMS: 2000})

	m := NewManager(dir)
	handler, ok := m.Resolve("plugin.greet")
	require.True(t, ok)
	require.NotNil(t, handler)
}

func TestManager_NextLinksEmptyWhenNoChain(t *testing.T) {
	dir := t.TempDir()
	writeMeta(t, dir, "greet", Metadata{ToolName: "plugin.greet"})

	m := NewManager(dir)
	links, err := m.NextLinks("plugin.greet", json.RawMessage(`{}`), json.RawMessage(`{}`))
	require.NoError(t, err)
	require.Empty(t, links)
}

func TestManager_NextLinksFollowsChain(t *testing.T) {
	dir := t.TempDir()
	writeMeta(t, dir, "first", Metadata{
		ToolName:    "plugin.first",
		NextPlugins: []string{"plugin.second"},
		OutputMode:  Pipe,
	})

	m := NewManager(dir)
	links, err := m.NextLinks("plugin.first", json.RawMessage(`{"x":1}`), json.RawMessage(`{"y":2}`))
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, "plugin.second", links[0].ToolName)
	require.JSONEq(t, `{"y":2}`, string(links[0].Input))
}

func TestManager_RescanRegistersNewPlugins(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)
	reg := toolregistry.NewRegistry()
	require.NoError(t, m.Rescan(reg))
	require.Empty(t, reg.List())

	writeMeta(t, dir, "greet", Metadata{ToolName: "plugin.greet"})
	require.NoError(t, m.Rescan(reg))
	require.Equal(t, []string{"plugin.greet"}, reg.List())
}

func TestCreateHandler_WritesScriptAndMetadata(t *testing.T) {
	dir := t.TempDir()
	handler := CreateHandler(dir)

	req := CreateRequest{
		ToolName:   "plugin.echo",
		ScriptBody: "#!/bin/sh\ncat\n",
		ScriptExt:  "sh",
	}
	input, _ := json.Marshal(req)
	out, err := handler(context.Background(), input)
	require.NoError(t, err)

	var result map[string]string
	require.NoError(t, json.Unmarshal(out, &result))
	require.Equal(t, filepath.Join(dir, "echo.sh"), result["script_path"])

	m := NewManager(dir)
	_, ok := m.Resolve("plugin.echo")
	require.True(t, ok)
}

func TestCreateHandler_MissingFieldsErrors(t *testing.T) {
	handler := CreateHandler(t.TempDir())
	_, err := handler(context.Background(), json.RawMessage(`{}`))
	require.Error(t, err)
}
