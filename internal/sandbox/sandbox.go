// Package sandbox runs a plugin script as a subprocess: stdin carries the
// JSON input, stdout carries the JSON output (spec.md §4.D step 4). This is
// the narrowest interface satisfying the executor's contract — no
// namespace/cgroup isolation is implemented, since "subprocess sandbox
// internals" is a named out-of-scope external collaborator (spec.md §1).
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"
)

// defaultTimeout applies when a plugin's metadata does not specify one.
const defaultTimeout = 30 * time.Second

// Run executes scriptPath with input on stdin and returns its stdout,
// bounded by timeoutMS (or defaultTimeout when timeoutMS <= 0). The child
// inherits the parent's environment, giving it network access and a
// writable /tmp per spec.md §4.D step 4; no further isolation is applied.
func Run(ctx context.Context, scriptPath string, input json.RawMessage, timeoutMS int) (json.RawMessage, error) {
	timeout := defaultTimeout
	if timeoutMS > 0 {
		timeout = time.Duration(timeoutMS) * time.Millisecond
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, scriptPath)
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("sandbox: %s timed out after %s", scriptPath, timeout)
		}
		return nil, fmt.Errorf("sandbox: %s failed: %w (stderr: %s)", scriptPath, err, stderr.String())
	}

	out := stdout.Bytes()
	if !json.Valid(out) {
		return nil, fmt.Errorf("sandbox: %s did not produce valid JSON on stdout", scriptPath)
	}
	return json.RawMessage(out), nil
}
