package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/aios/autonomy-core/internal/toolregistry"
)

const gitTimeout = 10 * time.Second

// allowedGitCommands is the read-only git subcommand whitelist, adapted
// from the teacher's git_info tool.
var allowedGitCommands = map[string]bool{
	"status": true, "diff": true, "log": true, "branch": true, "show": true,
}

// RegisterGit wires git.status and git.log against workspaceDir, a supplemental
// namespace recovered from the original source's `git` handler table
// (spec.md §4.H's keyword map expects a git.* target for VCS-flavored
// goals even though §4.D's own namespace list omits it).
func RegisterGit(reg *toolregistry.Registry, workspaceDir string) {
	reg.Register(toolregistry.Definition{Name: "git.status", Reversible: false, Handler: gitStatus(workspaceDir)})
	reg.Register(toolregistry.Definition{Name: "git.log", Reversible: false, Handler: gitCommand(workspaceDir, "log")})
}

func gitStatus(workspaceDir string) toolregistry.Handler {
	return gitCommand(workspaceDir, "status")
}

func gitCommand(workspaceDir, subcommand string) toolregistry.Handler {
	return func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		if !allowedGitCommands[subcommand] {
			return nil, fmt.Errorf("git subcommand %q is not allowed", subcommand)
		}
		var a struct {
			Args string `json:"args"`
		}
		if err := json.Unmarshal(input, &a); err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}

		args := []string{subcommand}
		if a.Args != "" {
			args = append(args, strings.Fields(a.Args)...)
		}

		gitCtx, cancel := context.WithTimeout(ctx, gitTimeout)
		defer cancel()

		cmd := exec.CommandContext(gitCtx, "git", args...)
		cmd.Dir = workspaceDir
		output, err := cmd.CombinedOutput()
		if err != nil {
			return nil, fmt.Errorf("git %s failed: %w", subcommand, err)
		}
		return json.Marshal(map[string]string{"output": string(output)})
	}
}
