package builtin

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/aios/autonomy-core/internal/toolregistry"
)

// secSeverity mirrors the teacher's MCP script scanner severities
// (internal/mcp.ScanSeverity), generalized here to arbitrary scanned files
// rather than only Python MCP skill scripts.
type secSeverity string

const (
	secCritical secSeverity = "critical"
	secWarn     secSeverity = "warn"
)

// secFinding is one static-analysis hit.
type secFinding struct {
	Rule     string      `json:"rule"`
	Severity secSeverity `json:"severity"`
	Line     int         `json:"line"`
	Snippet  string      `json:"snippet"`
}

type secLineRule struct {
	name     string
	severity secSeverity
	pattern  *regexp.Regexp
}

// secLineRules flags dynamic-execution and process-spawn patterns across the
// shell/Python idioms the host's scripts and plugins are written in.
var secLineRules = []secLineRule{
	{"dangerous-exec", secCritical, regexp.MustCompile(`\b(subprocess\.|os\.system\s*\(|os\.popen\s*\(|exec\.Command)`)},
	{"dynamic-code", secCritical, regexp.MustCompile(`\b(exec|eval|compile)\s*\(`)},
	{"dynamic-import", secCritical, regexp.MustCompile(`\b(__import__|importlib\.import_module)\s*\(`)},
	{"curl-pipe-shell", secWarn, regexp.MustCompile(`curl[^|]*\|\s*(sh|bash)`)},
}

// RegisterSec wires sec.check_perms (filesystem permission audit) and
// sec.audit_query (static source scan) against arbitrary target paths.
func RegisterSec(reg *toolregistry.Registry) {
	reg.Register(toolregistry.Definition{Name: "sec.check_perms", Reversible: false, Handler: secCheckPerms})
	reg.Register(toolregistry.Definition{Name: "sec.audit_query", Reversible: false, Handler: secAuditQuery})
}

func secCheckPerms(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
	var a struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(input, &a); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	info, err := os.Stat(a.Path)
	if err != nil {
		return nil, fmt.Errorf("stat failed: %w", err)
	}
	mode := info.Mode()
	worldWritable := mode.Perm()&0o002 != 0
	setuid := mode&os.ModeSetuid != 0

	return json.Marshal(map[string]any{
		"path":           a.Path,
		"mode":           mode.String(),
		"world_writable": worldWritable,
		"setuid":         setuid,
	})
}

func secAuditQuery(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
	var a struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(input, &a); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}

	var findings []secFinding
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "#") {
			continue
		}
		for _, rule := range secLineRules {
			if rule.pattern.MatchString(line) {
				findings = append(findings, secFinding{
					Rule: rule.name, Severity: rule.severity, Line: lineNum, Snippet: stripped,
				})
			}
		}
	}

	hasCritical := false
	for _, f := range findings {
		if f.Severity == secCritical {
			hasCritical = true
			break
		}
	}
	return json.Marshal(map[string]any{"findings": findings, "has_critical": hasCritical})
}
