package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	gopsprocess "github.com/shirou/gopsutil/v4/process"

	"github.com/aios/autonomy-core/internal/toolregistry"
)

const (
	spawnTimeout   = 30 * time.Second
	maxOutputChars = 8000
)

// dangerousPatterns mirrors the teacher's shell-tool blocklist: a
// best-effort guard against accidental damage from LLM-generated commands,
// not a security boundary.
var dangerousPatterns = []string{
	"rm -rf /", "rm -r -f /", "rm --recursive", "rm -rf ~",
	"mkfs", "dd if=",
	"shutdown", "reboot", "halt", "init 0", "init 6",
	":(){:|:&};:",
}

func isDangerous(cmd string) bool {
	lower := strings.ToLower(cmd)
	for _, p := range dangerousPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// RegisterProcess wires process.list/spawn/kill against the host via
// gopsutil (list/kill) and os/exec (spawn).
func RegisterProcess(reg *toolregistry.Registry) {
	reg.Register(toolregistry.Definition{Name: "process.list", Reversible: false, Handler: processList})
	reg.Register(toolregistry.Definition{Name: "process.spawn", Reversible: false, Handler: processSpawn})
	reg.Register(toolregistry.Definition{Name: "process.kill", Reversible: false, Handler: processKill})
}

func processList(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
	procs, err := gopsprocess.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	type procInfo struct {
		PID  int32  `json:"pid"`
		Name string `json:"name"`
	}
	out := make([]procInfo, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		out = append(out, procInfo{PID: p.Pid, Name: name})
	}
	return json.Marshal(map[string]any{"processes": out})
}

func processSpawn(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var a struct {
		Command string   `json:"command"`
		Args    []string `json:"args"`
	}
	if err := json.Unmarshal(input, &a); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if a.Command == "" {
		return nil, fmt.Errorf("command is required")
	}
	full := a.Command
	if len(a.Args) > 0 {
		full += " " + strings.Join(a.Args, " ")
	}
	if isDangerous(full) {
		return nil, fmt.Errorf("blocked: command matches a destructive pattern")
	}

	spawnCtx, cancel := context.WithTimeout(ctx, spawnTimeout)
	defer cancel()

	cmd := exec.CommandContext(spawnCtx, a.Command, a.Args...)
	output, runErr := cmd.CombinedOutput()
	text := string(output)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	if len(text) > maxOutputChars {
		text = text[:maxOutputChars] + "...(truncated)"
	}

	result := map[string]any{"output": text}
	if runErr != nil {
		result["error"] = runErr.Error()
	}
	return json.Marshal(result)
}

func processKill(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var a struct {
		PID int32 `json:"pid"`
	}
	if err := json.Unmarshal(input, &a); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	p, err := gopsprocess.NewProcessWithContext(ctx, a.PID)
	if err != nil {
		return nil, fmt.Errorf("no such process: %d", a.PID)
	}
	if err := p.KillWithContext(ctx); err != nil {
		return nil, fmt.Errorf("kill failed: %w", err)
	}
	return json.Marshal(map[string]any{"killed": a.PID})
}
