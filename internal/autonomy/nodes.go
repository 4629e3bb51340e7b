package autonomy

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/aios/autonomy-core/internal/agentrouter"
	"github.com/aios/autonomy-core/internal/core"
	"github.com/aios/autonomy-core/internal/goalstore"
	"github.com/aios/autonomy-core/internal/inference"
	"github.com/aios/autonomy-core/internal/respparse"
	"github.com/aios/autonomy-core/internal/resultagg"
	"github.com/aios/autonomy-core/internal/taskplanner"
	"github.com/aios/autonomy-core/internal/toolregistry"
)

// Local flow actions, layered on top of core's generic ones — the same way
// internal/agent adds ActionTool/ActionThink/ActionAnswer to core's
// baseline set for its own decision loop.
const (
	actionHeuristic core.Action = "heuristic"
	actionInfer     core.Action = "infer"
)

// --- SelectTaskNode ---------------------------------------------------

type selectItem struct{ task *goalstore.Task }

type selectOut struct {
	task  *goalstore.Task
	goal  *goalstore.Goal
	level string
}

// selectTaskNode implements spec.md §4.K steps 1-4: pick the next ready
// task and mark it in progress.
type selectTaskNode struct{ orc *Orchestrator }

func (n *selectTaskNode) Prep(state *TickState) []selectItem {
	task := n.orc.Planner.NextTask()
	if task == nil {
		return nil
	}
	return []selectItem{{task: task}}
}

func (n *selectTaskNode) Exec(ctx context.Context, item selectItem) (selectOut, error) {
	goal := n.orc.Goals.GetGoal(item.task.GoalID)
	level := taskplanner.NormalizeIntelligenceLevel(item.task.IntelligenceLevel)
	return selectOut{task: item.task, goal: goal, level: level}, nil
}

func (n *selectTaskNode) ExecFallback(err error) selectOut { return selectOut{} }

func (n *selectTaskNode) Post(state *TickState, prepRes []selectItem, execResults ...selectOut) core.Action {
	if len(execResults) == 0 || execResults[0].goal == nil {
		return core.ActionEnd
	}
	out := execResults[0]
	state.Task = out.task
	state.Goal = out.goal
	state.Level = out.level

	n.orc.Planner.MarkInProgress(out.task.ID)
	n.orc.Goals.UpdateTaskStatus(out.goal.ID, out.task.ID, goalstore.TaskInProgress)
	return core.ActionContinue
}

// --- RouteNode ----------------------------------------------------------

type routeItem struct {
	taskID        string
	requiredTools []string
}

type routeOut struct{ agentID string }

// routeNode implements spec.md §4.K step 5: route by required tools to a
// registered worker agent, if any matches.
type routeNode struct{ orc *Orchestrator }

func (n *routeNode) Prep(state *TickState) []routeItem {
	return []routeItem{{taskID: state.Task.ID, requiredTools: state.Task.RequiredTools}}
}

func (n *routeNode) Exec(ctx context.Context, item routeItem) (routeOut, error) {
	agentID := n.orc.AgentRouter.RouteTask(agentrouter.Task{ID: item.taskID, RequiredTools: item.requiredTools})
	return routeOut{agentID: agentID}, nil
}

func (n *routeNode) ExecFallback(err error) routeOut { return routeOut{} }

func (n *routeNode) Post(state *TickState, prepRes []routeItem, execResults ...routeOut) core.Action {
	var agentID string
	if len(execResults) > 0 {
		agentID = execResults[0].agentID
	}
	if agentID != "" {
		n.orc.AgentRouter.AssignTask(agentID, state.Task.ID)
		n.orc.DecisionLog.LogDecision(
			"task_routing:"+state.Task.ID, []string{agentID}, agentID,
			"agent capabilities matched required tools", state.Level, "",
		)
		state.RoutedAgent = agentID
		return core.ActionEnd
	}
	if state.Level == taskplanner.Reactive {
		return actionHeuristic
	}
	return actionInfer
}

// --- HeuristicNode --------------------------------------------------------

type heuristicItem struct{ description string }
type heuristicOut struct{ outputJSON []byte }

// heuristicNode implements spec.md §4.K step 6 "reactive": complete the
// task immediately without consulting the inference router.
type heuristicNode struct{ orc *Orchestrator }

func (n *heuristicNode) Prep(state *TickState) []heuristicItem {
	return []heuristicItem{{description: state.Task.Description}}
}

func (n *heuristicNode) Exec(ctx context.Context, item heuristicItem) (heuristicOut, error) {
	out, _ := json.Marshal(map[string]string{
		"message": "completed via heuristic",
		"summary": "Acknowledged: " + item.description,
	})
	return heuristicOut{outputJSON: out}, nil
}

func (n *heuristicNode) ExecFallback(err error) heuristicOut {
	out, _ := json.Marshal(map[string]string{"error": err.Error()})
	return heuristicOut{outputJSON: out}
}

func (n *heuristicNode) Post(state *TickState, prepRes []heuristicItem, execResults ...heuristicOut) core.Action {
	out := execResults[0]
	n.orc.Planner.CompleteTask(state.Task.ID, out.outputJSON)
	n.orc.Goals.CompleteTask(state.Goal.ID, state.Task.ID)
	n.orc.Aggregator.RecordResult(state.Goal.ID, resultagg.TaskResult{
		TaskID: state.Task.ID, Success: true, OutputJSON: out.outputJSON,
	})
	n.orc.DecisionLog.LogDecision(
		"task_completion:"+state.Task.ID, nil, "heuristic_complete",
		"reactive task completed without inference", state.Level, "",
	)
	return core.ActionContinue
}

// --- InferNode ------------------------------------------------------------

type inferItem struct {
	prompt            string
	system            string
	preferredProvider string
	taskID            string
}

type inferOut struct {
	result inference.Result
	err    error
}

// inferNode implements spec.md §4.K step 6 "operational/tactical/strategic"
// plus step 7 handle_ai_result's parse-and-branch logic.
type inferNode struct{ orc *Orchestrator }

const autonomyAgentID = "autonomy-loop"

func (n *inferNode) Prep(state *TickState) []inferItem {
	preferred := extractPreferredProvider(state.Goal.Metadata)

	var preferredProvider string
	if state.Level == taskplanner.Strategic {
		preferredProvider = preferred // "" lets the router's remote priority list decide
	} else if preferred != "" {
		preferredProvider = preferred
	} else {
		preferredProvider = inference.Local
	}

	return []inferItem{{
		prompt:            buildTaskPrompt(state.Task, state.Goal),
		system:            buildSystemPrompt(state.Level, n.orc.toolNames()),
		preferredProvider: preferredProvider,
		taskID:            state.Task.ID,
	}}
}

func (n *inferNode) Exec(ctx context.Context, item inferItem) (inferOut, error) {
	result, err := n.orc.Inference.Route(ctx, inference.Request{
		Prompt:            item.prompt,
		SystemPrompt:      item.system,
		MaxTokens:         1024,
		Temperature:       0.3,
		PreferredProvider: item.preferredProvider,
		RequestingAgent:   autonomyAgentID,
		TaskID:            item.taskID,
		AllowFallback:     true,
	})
	return inferOut{result: result, err: err}, err
}

func (n *inferNode) ExecFallback(err error) inferOut { return inferOut{err: err} }

func (n *inferNode) Post(state *TickState, prepRes []inferItem, execResults ...inferOut) core.Action {
	if len(execResults) == 0 || execResults[0].err != nil {
		errMsg := "inference failed"
		if len(execResults) > 0 && execResults[0].err != nil {
			errMsg = execResults[0].err.Error()
		}
		n.failTask(state, errMsg)
		return core.ActionContinue
	}

	result := execResults[0].result
	state.InferResult = result

	toolCalls := respparse.ParseToolCalls(result.Text)
	if len(toolCalls) == 0 {
		// Never auto-complete on zero tool calls (spec.md §4.K step 7).
		message := respparse.ParseClarification(result.Text)
		if message == "" {
			message = respparse.ExtractDisplayText(result.Text)
		}
		if message == "" {
			message = result.Text
		}
		n.orc.Goals.AddMessage(state.Goal.ID, goalstore.SenderAI, message)
		n.orc.Planner.MarkAwaitingInput(state.Task.ID)
		n.orc.Goals.UpdateTaskStatus(state.Goal.ID, state.Task.ID, goalstore.TaskAwaitingInput)
		return core.ActionContinue
	}

	state.ToolCalls = toolCalls
	return core.ActionTool
}

func (n *inferNode) failTask(state *TickState, errMsg string) {
	n.orc.Planner.FailTask(state.Task.ID, errMsg)
	n.orc.Goals.UpdateTaskStatus(state.Goal.ID, state.Task.ID, goalstore.TaskFailed)
	n.orc.Goals.AddMessage(state.Goal.ID, goalstore.SenderSystem, "Task failed: "+errMsg)
	n.orc.Aggregator.RecordResult(state.Goal.ID, resultagg.TaskResult{
		TaskID: state.Task.ID, Success: false, Error: errMsg,
	})
	n.orc.DecisionLog.LogDecision("inference:"+state.Task.ID, nil, "failed", errMsg, state.Level, "")
}

// --- ExecuteToolsNode -------------------------------------------------

type executeItem struct {
	call   respparse.ToolCall
	taskID string
}

type executeOut struct {
	toolResult respparse.ToolResult
}

// executeToolsNode implements spec.md §4.K step 7's "otherwise" branch:
// run every requested tool call sequentially through the Executor.
type executeToolsNode struct{ orc *Orchestrator }

func (n *executeToolsNode) Prep(state *TickState) []executeItem {
	items := make([]executeItem, len(state.ToolCalls))
	for i, c := range state.ToolCalls {
		items[i] = executeItem{call: c, taskID: state.Task.ID}
	}
	return items
}

func (n *executeToolsNode) Exec(ctx context.Context, item executeItem) (executeOut, error) {
	resp := n.orc.Executor.Execute(ctx, toolregistry.ExecuteRequest{
		ToolName:  item.call.ToolName,
		AgentID:   autonomyAgentID,
		TaskID:    item.taskID,
		InputJSON: item.call.InputJSON,
	})
	return executeOut{toolResult: respparse.ToolResult{
		Tool:    item.call.ToolName,
		Success: resp.Success,
		Output:  decodeToolOutput(resp.OutputJSON),
		Error:   resp.Error,
	}}, nil
}

func (n *executeToolsNode) ExecFallback(err error) executeOut {
	return executeOut{toolResult: respparse.ToolResult{Success: false, Error: err.Error()}}
}

func (n *executeToolsNode) Post(state *TickState, prepRes []executeItem, execResults ...executeOut) core.Action {
	state.ToolResults = make([]respparse.ToolResult, len(execResults))
	var failed []string
	for i, r := range execResults {
		state.ToolResults[i] = r.toolResult
		if !r.toolResult.Success {
			failed = append(failed, r.toolResult.Tool+": "+r.toolResult.Error)
		}
	}

	if len(failed) > 0 {
		errMsg := strings.Join(failed, "; ")
		n.orc.Planner.FailTask(state.Task.ID, errMsg)
		n.orc.Goals.UpdateTaskStatus(state.Goal.ID, state.Task.ID, goalstore.TaskFailed)
		n.orc.Goals.AddMessage(state.Goal.ID, goalstore.SenderSystem, "Task failed: "+errMsg)
		n.orc.Aggregator.RecordResult(state.Goal.ID, resultagg.TaskResult{
			TaskID: state.Task.ID, Success: false, Error: errMsg,
			TokensUsed: state.InferResult.TokensUsed, ModelUsed: state.InferResult.ModelUsed,
		})
		n.orc.DecisionLog.LogDecision(
			"tool_execution:"+state.Task.ID, nil, "failed", errMsg, state.Level, state.InferResult.ModelUsed,
		)
		return core.ActionContinue
	}

	summary := respparse.BuildCompletionSummary(state.InferResult.Text, state.ToolResults)
	n.orc.Goals.AddMessage(state.Goal.ID, goalstore.SenderAI, summary)
	n.orc.Goals.AddMessage(state.Goal.ID, goalstore.SenderSystem, "Task completed")

	outputJSON, _ := json.Marshal(map[string]any{"summary": summary, "model": state.InferResult.ModelUsed})
	n.orc.Planner.CompleteTask(state.Task.ID, outputJSON)
	n.orc.Goals.CompleteTask(state.Goal.ID, state.Task.ID)
	n.orc.Aggregator.RecordResult(state.Goal.ID, resultagg.TaskResult{
		TaskID: state.Task.ID, Success: true, OutputJSON: outputJSON,
		TokensUsed: state.InferResult.TokensUsed, ModelUsed: state.InferResult.ModelUsed,
	})
	n.orc.DecisionLog.LogDecision(
		"tool_execution:"+state.Task.ID, nil, "success", "all tool calls succeeded",
		state.Level, state.InferResult.ModelUsed,
	)
	return core.ActionContinue
}

// --- SettleNode -------------------------------------------------------

// settleNode implements spec.md §4.K step 8, run at the tail of every
// branch so goal-progress bookkeeping happens on every tick regardless of
// how the task's work was handled.
type settleNode struct{ orc *Orchestrator }

func (n *settleNode) Prep(state *TickState) []struct{} { return []struct{}{{}} }

func (n *settleNode) Exec(ctx context.Context, _ struct{}) (struct{}, error) { return struct{}{}, nil }

func (n *settleNode) ExecFallback(err error) struct{} { return struct{}{} }

func (n *settleNode) Post(state *TickState, prepRes []struct{}, execResults ...struct{}) core.Action {
	n.orc.settleGoals()
	return core.ActionEnd
}

// buildFlow assembles the tick's node graph:
//
//	SelectTaskNode ──┬── (no ready task) → end
//	                 └── RouteNode ──┬── (routed to worker) → end
//	                                 ├── heuristic → HeuristicNode ──→ SettleNode
//	                                 └── infer     → InferNode ──┬── (no tool calls) → SettleNode
//	                                                              └── ActionTool → ExecuteToolsNode → SettleNode
func buildFlow(orc *Orchestrator) core.Workflow[TickState] {
	sel := core.NewNode[TickState, selectItem, selectOut](&selectTaskNode{orc: orc}, 0)
	route := core.NewNode[TickState, routeItem, routeOut](&routeNode{orc: orc}, 0)
	heuristic := core.NewNode[TickState, heuristicItem, heuristicOut](&heuristicNode{orc: orc}, 0)
	infer := core.NewNode[TickState, inferItem, inferOut](&inferNode{orc: orc}, 1)
	execTools := core.NewNode[TickState, executeItem, executeOut](&executeToolsNode{orc: orc}, 0)
	settle := core.NewNode[TickState, struct{}, struct{}](&settleNode{orc: orc}, 0)

	sel.AddSuccessor(route, core.ActionContinue)
	route.AddSuccessor(heuristic, actionHeuristic)
	route.AddSuccessor(infer, actionInfer)
	heuristic.AddSuccessor(settle, core.ActionContinue)
	infer.AddSuccessor(execTools, core.ActionTool)
	infer.AddSuccessor(settle, core.ActionContinue)
	execTools.AddSuccessor(settle, core.ActionContinue)

	return core.NewFlow[TickState](sel)
}
