// Package plugin implements plugin directory scanning and metadata, and the
// post-success chaining step of the Tool Executor (spec.md §4.D, §6).
// Adapted from the teacher's internal/skill loader: a skill directory of
// entry-script-plus-metadata becomes a plugin directory of
// script-plus-JSON-sidecar.
package plugin

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OutputMode controls how a chained plugin receives the previous plugin's
// output (spec.md §4.D step 6).
type OutputMode string

const (
	Pipe  OutputMode = "pipe"
	Merge OutputMode = "merge"
)

// Metadata is the parsed `<name>.json` sidecar that sits next to a plugin's
// script file, exactly per spec.md §6.
type Metadata struct {
	ToolName     string     `json:"tool_name"`
	Description  string     `json:"description"`
	Capabilities []string   `json:"capabilities"`
	Dependencies []string   `json:"dependencies"`
	Author       string     `json:"author"`
	CreatedAt    string     `json:"created_at"`
	TimeoutMS    int        `json:"timeout_ms"`
	NextPlugins  []string   `json:"next_plugins"`
	OutputMode   OutputMode `json:"output_mode"`

	// ScriptPath is set by ScanDir to the resolved script file, not part of
	// the JSON schema.
	ScriptPath string `json:"-"`
}

// ScanDir scans pluginDir for `<name>.json` sidecars, pairing each with its
// script file of the same base name. A sidecar with no matching script, or
// a script with no sidecar, is silently skipped — mirroring the teacher's
// "no skill.yaml → silently skip" tolerance. If pluginDir does not exist an
// empty slice is returned, not an error.
func ScanDir(pluginDir string) ([]*Metadata, []error) {
	entries, err := os.ReadDir(pluginDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, []error{fmt.Errorf("plugin: scan %q: %w", pluginDir, err)}
	}

	var defs []*Metadata
	var errs []error

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}

		name := strings.TrimSuffix(e.Name(), ".json")
		scriptPath, ok := findScript(pluginDir, name)
		if !ok {
			continue // sidecar with no script — not a plugin yet
		}

		data, err := os.ReadFile(filepath.Join(pluginDir, e.Name()))
		if err != nil {
			errs = append(errs, fmt.Errorf("plugin: read %q: %w", e.Name(), err))
			continue
		}

		var meta Metadata
		if err := json.Unmarshal(data, &meta); err != nil {
			errs = append(errs, fmt.Errorf("plugin: parse %q: %w", e.Name(), err))
			continue
		}
		if meta.ToolName == "" {
			errs = append(errs, fmt.Errorf("plugin %q: tool_name is required", name))
			continue
		}

		meta.ScriptPath = scriptPath
		defs = append(defs, &meta)
	}

	return defs, errs
}

// findScript looks for any file in dir named "<name>.<ext>" (excluding
// .json) and returns its path.
func findScript(dir, name string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		base := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if base == name && !strings.HasSuffix(e.Name(), ".json") {
			return filepath.Join(dir, e.Name()), true
		}
	}
	return "", false
}

// ApplyOutputMode computes the next input for a chained plugin per spec.md
// §4.D step 6: pipe passes prevOutput straight through; merge produces the
// object-union of originalInput and prevOutput, with prevOutput's keys
// taking precedence on conflict.
func ApplyOutputMode(mode OutputMode, originalInput, prevOutput json.RawMessage) (json.RawMessage, error) {
	if mode == Pipe {
		return prevOutput, nil
	}

	merged := map[string]any{}
	if len(originalInput) > 0 {
		if err := json.Unmarshal(originalInput, &merged); err != nil {
			return nil, fmt.Errorf("plugin: merge: invalid original input: %w", err)
		}
	}
	var prev map[string]any
	if len(prevOutput) > 0 {
		if err := json.Unmarshal(prevOutput, &prev); err != nil {
			return nil, fmt.Errorf("plugin: merge: invalid previous output: %w", err)
		}
	}
	for k, v := range prev {
		merged[k] = v
	}
	return json.Marshal(merged)
}
