// Package autonomy implements the Autonomy Loop (spec.md §4.K), the single
// cooperative driver that advances one ready task per tick. The tick is
// modeled as an internal/core.Flow graph over per-phase nodes, the same
// generic node/flow engine the teacher's agent decision loop
// (internal/agent.BuildAgentFlow) uses for its ReAct cycle, repointed here
// at SelectTask/Route/Heuristic/Infer/ExecuteTools/Settle phases instead of
// decide/tool/think/answer.
package autonomy

import (
	"encoding/json"

	"github.com/aios/autonomy-core/internal/goalstore"
	"github.com/aios/autonomy-core/internal/inference"
	"github.com/aios/autonomy-core/internal/respparse"
)

// TickState is the per-tick scratch state threaded through the flow's
// nodes. It is rebuilt fresh for every tick; nothing here survives across
// ticks.
type TickState struct {
	Task  *goalstore.Task
	Goal  *goalstore.Goal
	Level string

	RoutedAgent string

	InferResult inference.Result
	ToolCalls   []respparse.ToolCall
	ToolResults []respparse.ToolResult
}

// extractPreferredProvider reads the opaque "preferred_provider" key out of
// a goal's metadata blob (spec.md §4.K step 6); absent or malformed
// metadata yields "".
func extractPreferredProvider(metadata []byte) string {
	if len(metadata) == 0 {
		return ""
	}
	var m map[string]any
	if err := json.Unmarshal(metadata, &m); err != nil {
		return ""
	}
	provider, _ := m["preferred_provider"].(string)
	return provider
}

func decodeToolOutput(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}
