package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aios/autonomy-core/internal/sandbox"
	"github.com/aios/autonomy-core/internal/toolregistry"
)

// Manager scans pluginDir for script+metadata pairs and implements
// toolregistry.PluginResolver: subprocess dispatch for unregistered
// plugin.<x> tools, next_plugins chaining, and the plugin-creation
// meta-tool's rescan.
type Manager struct {
	mu        sync.RWMutex
	pluginDir string
	byName    map[string]*Metadata // keyed by tool_name
}

// NewManager creates a Manager and performs an initial scan of pluginDir.
// A missing directory is not an error — it simply yields no plugins yet.
func NewManager(pluginDir string) *Manager {
	m := &Manager{pluginDir: pluginDir, byName: make(map[string]*Metadata)}
	m.rescanLocked()
	return m
}

func (m *Manager) rescanLocked() {
	defs, _ := ScanDir(m.pluginDir)
	byName := make(map[string]*Metadata, len(defs))
	for _, d := range defs {
		byName[d.ToolName] = d
	}
	m.byName = byName
}

// Resolve implements toolregistry.PluginResolver.
func (m *Manager) Resolve(toolName string) (toolregistry.Handler, bool) {
	if !strings.HasPrefix(toolName, "plugin.") {
		return nil, false
	}
	m.mu.RLock()
	meta, ok := m.byName[toolName]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}

	return func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		return sandbox.Run(ctx, meta.ScriptPath, input, meta.TimeoutMS)
	}, true
}

// NextLinks implements toolregistry.PluginResolver.
func (m *Manager) NextLinks(toolName string, input, output json.RawMessage) ([]toolregistry.ChainLink, error) {
	m.mu.RLock()
	meta, ok := m.byName[toolName]
	m.mu.RUnlock()
	if !ok || len(meta.NextPlugins) == 0 {
		return nil, nil
	}

	links := make([]toolregistry.ChainLink, 0, len(meta.NextPlugins))
	for _, next := range meta.NextPlugins {
		nextInput, err := ApplyOutputMode(meta.OutputMode, input, output)
		if err != nil {
			return nil, fmt.Errorf("plugin %q chain to %q: %w", toolName, next, err)
		}
		links = append(links, toolregistry.ChainLink{ToolName: next, Input: nextInput})
	}
	return links, nil
}

// Rescan implements toolregistry.PluginResolver: re-reads pluginDir and
// registers every discovered plugin's subprocess handler directly in reg,
// so lookups hit the fast path instead of Resolve on every call.
func (m *Manager) Rescan(reg *toolregistry.Registry) error {
	m.mu.Lock()
	m.rescanLocked()
	metas := make([]*Metadata, 0, len(m.byName))
	for _, meta := range m.byName {
		metas = append(metas, meta)
	}
	m.mu.Unlock()

	for _, meta := range metas {
		meta := meta
		reg.Register(toolregistry.Definition{
			Name:       meta.ToolName,
			Reversible: false,
			Handler: func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
				return sandbox.Run(ctx, meta.ScriptPath, input, meta.TimeoutMS)
			},
		})
	}
	return nil
}

// CreateRequest is the plugin.create meta-tool's input shape.
type CreateRequest struct {
	ToolName     string   `json:"tool_name"`
	Description  string   `json:"description"`
	ScriptBody   string   `json:"script_body"`
	ScriptExt    string   `json:"script_ext"`
	Capabilities []string `json:"capabilities"`
	Author       string   `json:"author"`
	TimeoutMS    int      `json:"timeout_ms"`
	NextPlugins  []string `json:"next_plugins"`
	OutputMode   string   `json:"output_mode"`
}

// CreateHandler builds the plugin.create handler: it writes a new script +
// metadata sidecar into pluginDir. The executor's step-6 rescan discovers
// it on the next successful plugin.create call; no language-level code
// generation or sandbox-internal isolation is implemented here, matching
// the narrow-interface boundary spec.md §1 draws around plugin creation.
func CreateHandler(pluginDir string) toolregistry.Handler {
	return func(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
		var req CreateRequest
		if err := json.Unmarshal(input, &req); err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}
		if req.ToolName == "" || req.ScriptBody == "" {
			return nil, fmt.Errorf("tool_name and script_body are required")
		}
		name := strings.TrimPrefix(req.ToolName, "plugin.")
		ext := req.ScriptExt
		if ext == "" {
			ext = "sh"
		}
		outputMode := OutputMode(req.OutputMode)
		if outputMode != Pipe && outputMode != Merge {
			outputMode = Pipe
		}

		if err := os.MkdirAll(pluginDir, 0o755); err != nil {
			return nil, fmt.Errorf("create plugin dir: %w", err)
		}

		scriptPath := filepath.Join(pluginDir, name+"."+ext)
		if err := os.WriteFile(scriptPath, []byte(req.ScriptBody), 0o755); err != nil {
			return nil, fmt.Errorf("write script: %w", err)
		}

		meta := Metadata{
			ToolName:     req.ToolName,
			Description:  req.Description,
			Capabilities: req.Capabilities,
			Author:       req.Author,
			CreatedAt:    time.Now().UTC().Format(time.RFC3339),
			TimeoutMS:    req.TimeoutMS,
			NextPlugins:  req.NextPlugins,
			OutputMode:   outputMode,
		}
		data, err := json.MarshalIndent(meta, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
		metaPath := filepath.Join(pluginDir, name+".json")
		if err := os.WriteFile(metaPath, data, 0o644); err != nil {
			return nil, fmt.Errorf("write metadata: %w", err)
		}

		return json.Marshal(map[string]string{"tool_name": req.ToolName, "script_path": scriptPath})
	}
}
