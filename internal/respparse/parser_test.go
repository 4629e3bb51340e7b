package respparse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractJSON_DirectParse(t *testing.T) {
	got := ExtractJSON(`{"foo": "bar"}`)
	require.Equal(t, "bar", got["foo"])
}

func TestExtractJSON_FencedBlock(t *testing.T) {
	text := "Here is my answer:\n```json\n{\"foo\": \"bar\"}\n```\nThanks."
	got := ExtractJSON(text)
	require.Equal(t, "bar", got["foo"])
}

func TestExtractJSON_BraceScan(t *testing.T) {
	text := `Sure, the result is {"foo": {"nested": 1}, "bar": 2} as requested.`
	got := ExtractJSON(text)
	require.Equal(t, float64(2), got["bar"])
}

func TestExtractJSON_Unparseable(t *testing.T) {
	require.Nil(t, ExtractJSON("not json at all"))
}

func TestParseToolCalls_Basic(t *testing.T) {
	text := `{"tool_calls": [{"tool": "fs.read_file", "input": {"path": "/etc/hosts"}}]}`
	calls := ParseToolCalls(text)
	require.Len(t, calls, 1)
	require.Equal(t, "fs.read_file", calls[0].ToolName)
	require.Contains(t, string(calls[0].InputJSON), "/etc/hosts")
}

func TestParseToolCalls_MissingInputDefaultsEmpty(t *testing.T) {
	text := `{"tool_calls": [{"tool": "monitor.status"}]}`
	calls := ParseToolCalls(text)
	require.Len(t, calls, 1)
	require.Equal(t, "{}", string(calls[0].InputJSON))
}

func TestParseToolCalls_SkipsEmptyToolName(t *testing.T) {
	text := `{"tool_calls": [{"tool": "", "input": {}}, {"tool": "fs.list_dir", "input": {}}]}`
	calls := ParseToolCalls(text)
	require.Len(t, calls, 1)
	require.Equal(t, "fs.list_dir", calls[0].ToolName)
}

func TestParseToolCalls_UnparseableReturnsEmpty(t *testing.T) {
	require.Empty(t, ParseToolCalls("garbage, not json"))
}

func TestParseToolCalls_NoToolCallsKeyReturnsEmpty(t *testing.T) {
	require.Empty(t, ParseToolCalls(`{"reasoning": "just thinking"}`))
}

func TestParseClarification_WithQuestions(t *testing.T) {
	text := `{"needs_clarification": true, "questions": ["Which host?", "What port?"]}`
	got := ParseClarification(text)
	require.Equal(t, "1. Which host?\n2. What port?", got)
}

func TestParseClarification_WithReasoningFallback(t *testing.T) {
	text := `{"needs_clarification": true, "reasoning": "I need more detail"}`
	require.Equal(t, "I need more detail", ParseClarification(text))
}

func TestParseClarification_DefaultPrompt(t *testing.T) {
	text := `{"needs_clarification": true}`
	require.Equal(t, "I need more information to proceed with this task.", ParseClarification(text))
}

func TestParseClarification_NotClarifyingReturnsEmpty(t *testing.T) {
	require.Empty(t, ParseClarification(`{"needs_clarification": false}`))
	require.Empty(t, ParseClarification(`{"tool_calls": []}`))
}

func TestExtractDisplayText_PrependsProseBeforeJSON(t *testing.T) {
	text := "Response:\nI checked the config first.\n{\"reasoning\": \"do the thing\"}"
	got := ExtractDisplayText(text)
	require.Contains(t, got, "I checked the config first.")
	require.Contains(t, got, "do the thing")
}

func TestExtractDisplayText_EmptyInput(t *testing.T) {
	require.Empty(t, ExtractDisplayText("   "))
}

func TestExtractDisplayText_NoJSONReturnsEmpty(t *testing.T) {
	require.Empty(t, ExtractDisplayText("just some prose with no structure"))
}

func TestBuildCompletionSummary_CombinesReasoningAndToolResults(t *testing.T) {
	text := `{"reasoning": "Checked the service and restarted it"}`
	results := []ToolResult{
		{Tool: "service.restart", Success: true, Output: map[string]any{"message": "restarted nginx"}},
		{Tool: "fs.write_file", Success: false, Error: "permission denied"},
	}
	summary := BuildCompletionSummary(text, results)
	require.Contains(t, summary, "Checked the service and restarted it")
	require.Contains(t, summary, "**service.restart**: restarted nginx")
	require.Contains(t, summary, "**fs.write_file** failed: permission denied")
}

func TestBuildCompletionSummary_TruncatesToTotalLimit(t *testing.T) {
	longReasoning := strings.Repeat("a", 5000)
	text := `{"reasoning": "` + longReasoning + `"}`
	summary := BuildCompletionSummary(text, nil)
	require.LessOrEqual(t, len([]rune(summary)), totalSummaryLimit+3) // +3 for "..."
}

func TestSummarizeToolOutput_FSNamespace(t *testing.T) {
	require.Equal(t, "OK (/tmp/x)", summarizeToolOutput("fs.write_file", map[string]any{"path": "/tmp/x"}))
	require.Equal(t, "OK", summarizeToolOutput("fs.write_file", map[string]any{}))
}

func TestSummarizeToolOutput_PluginResult(t *testing.T) {
	got := summarizeToolOutput("plugin.weather", map[string]any{"result": "sunny"})
	require.Equal(t, "'weather' returned: sunny", got)
}

func TestSummarizeToolOutput_NilOutput(t *testing.T) {
	require.Equal(t, "completed successfully", summarizeToolOutput("fs.read_file", nil))
}

func TestSummarizeToolOutput_DefaultMessageField(t *testing.T) {
	got := summarizeToolOutput("monitor.cpu", map[string]any{"message": "cpu at 12%"})
	require.Equal(t, "cpu at 12%", got)
}
