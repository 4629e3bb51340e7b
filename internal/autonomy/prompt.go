package autonomy

import (
	"strings"

	"github.com/aios/autonomy-core/internal/goalstore"
	"github.com/aios/autonomy-core/internal/taskplanner"
)

// buildSystemPrompt tells the model which tools exist and the exact JSON
// shape the response parser (internal/respparse) expects back, scaled to
// the task's intelligence level.
func buildSystemPrompt(level string, toolNames []string) string {
	var b strings.Builder
	b.WriteString("You are the autonomy core's task executor. ")
	switch level {
	case taskplanner.Strategic:
		b.WriteString("This is a strategic task: think carefully about the full plan before acting. ")
	case taskplanner.Tactical:
		b.WriteString("This is a tactical task: pick the most direct sequence of tool calls. ")
	default:
		b.WriteString("Handle this task as efficiently as possible. ")
	}
	b.WriteString("Available tools: ")
	if len(toolNames) == 0 {
		b.WriteString("(none registered). ")
	} else {
		b.WriteString(strings.Join(toolNames, ", "))
		b.WriteString(". ")
	}
	b.WriteString(
		"Respond with a single JSON object. To invoke tools, use " +
			`{"tool_calls":[{"tool":"<name>","input":{...}}]}. ` +
			"If you need more information before proceeding, use " +
			`{"needs_clarification":true,"questions":["..."]}. ` +
			"Otherwise respond with your reasoning in a \"reasoning\" or \"result\" field.",
	)
	return b.String()
}

// buildTaskPrompt renders the task description plus recent conversation
// context the model needs to decide what to do next.
func buildTaskPrompt(task *goalstore.Task, goal *goalstore.Goal) string {
	var b strings.Builder
	b.WriteString("Goal: ")
	b.WriteString(goal.Description)
	b.WriteString("\nTask: ")
	b.WriteString(task.Description)
	if len(task.RequiredTools) > 0 {
		b.WriteString("\nLikely relevant tool namespaces: ")
		b.WriteString(strings.Join(task.RequiredTools, ", "))
	}
	return b.String()
}
