// Package respparse extracts structured meaning — tool-call plans,
// clarification requests, human-readable summaries — out of free-form
// model output (spec.md §4.M).
package respparse

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/aios/autonomy-core/internal/logging"
	"github.com/aios/autonomy-core/internal/util"
)

var log = logging.For("respparse")

// perToolSummaryLimit and totalSummaryLimit bound how much of a completion
// summary ever reaches the user — large plugin output or HTTP bodies must
// never flood the goal's message thread.
const (
	perToolSummaryLimit = 300
	totalSummaryLimit   = 3000
)

// ToolCall is one requested tool invocation extracted from a model response.
type ToolCall struct {
	ToolName  string
	InputJSON []byte
}

// ToolResult is the shape build_completion_summary consumes: one tool's
// execution outcome for display purposes.
type ToolResult struct {
	Tool    string
	Success bool
	Output  any
	Error   string
}

// ExtractJSON tries, in order: a direct parse of the trimmed text, the
// contents of the first fenced code block, then a brace-depth scan from the
// first '{' to its match. Returns nil if nothing parses.
func ExtractJSON(text string) map[string]any {
	trimmed := strings.TrimSpace(text)

	var direct map[string]any
	if err := json.Unmarshal([]byte(trimmed), &direct); err == nil {
		return direct
	}

	if fenced := extractFenced(trimmed); fenced != "" {
		var v map[string]any
		if err := json.Unmarshal([]byte(fenced), &v); err == nil {
			return v
		}
	}

	if braced := extractBraced(trimmed); braced != "" {
		var v map[string]any
		if err := json.Unmarshal([]byte(braced), &v); err == nil {
			return v
		}
	}

	return nil
}

func extractFenced(text string) string {
	fenceStart := strings.Index(text, "```")
	if fenceStart < 0 {
		return ""
	}
	after := text[fenceStart+3:]
	jsonStart := 0
	if i := strings.IndexByte(after, '\n'); i >= 0 {
		jsonStart = i + 1
	}
	content := after[jsonStart:]
	fenceEnd := strings.Index(content, "```")
	if fenceEnd < 0 {
		return ""
	}
	return strings.TrimSpace(content[:fenceEnd])
}

func extractBraced(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	candidate := text[start:]
	depth := 0
	for i, ch := range candidate {
		switch ch {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return candidate[:i+1]
			}
		}
	}
	return ""
}

// ParseToolCalls looks for a "tool_calls" array and returns every element
// with a non-empty "tool" string; a missing "input" object defaults to {}.
// Parse failures are logged with a length and preview, never the full text.
func ParseToolCalls(responseText string) []ToolCall {
	parsed := ExtractJSON(responseText)
	if parsed == nil {
		preview := util.TruncateRunes(responseText, 200)
		log.Warn().Int("len", len(responseText)).Str("preview", preview).Msg("parse_tool_calls: JSON extraction failed")
		return nil
	}

	rawCalls, ok := parsed["tool_calls"].([]any)
	if !ok {
		return nil
	}

	var calls []ToolCall
	for _, raw := range rawCalls {
		tc, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		toolName, _ := tc["tool"].(string)
		if toolName == "" {
			continue
		}
		input := tc["input"]
		if input == nil {
			input = map[string]any{}
		}
		inputBytes, err := json.Marshal(input)
		if err != nil {
			continue
		}
		calls = append(calls, ToolCall{ToolName: toolName, InputJSON: inputBytes})
	}
	return calls
}

// ParseClarification recognizes needs_clarification=true responses and
// returns the human-facing clarification text, or "" if the response isn't
// asking for clarification.
func ParseClarification(responseText string) string {
	parsed := ExtractJSON(responseText)
	if parsed == nil {
		return ""
	}
	needsClarification, _ := parsed["needs_clarification"].(bool)
	if !needsClarification {
		return ""
	}

	if questions, ok := parsed["questions"].([]any); ok {
		var lines []string
		for i, q := range questions {
			if s, ok := q.(string); ok {
				lines = append(lines, strconv.Itoa(i+1)+". "+s)
			}
		}
		if len(lines) > 0 {
			return strings.Join(lines, "\n")
		}
	}

	if reasoning, ok := parsed["reasoning"].(string); ok && reasoning != "" {
		return reasoning
	}

	return "I need more information to proceed with this task."
}

// jsonToReadable renders the subset of fields an AI response commonly
// carries ("reasoning", "result", "questions", "steps") as plain text.
func jsonToReadable(parsed map[string]any) string {
	var parts []string

	if reasoning, ok := parsed["reasoning"].(string); ok && reasoning != "" {
		parts = append(parts, reasoning)
	}
	if result, ok := parsed["result"].(string); ok && result != "" {
		parts = append(parts, result)
	}
	if questions, ok := parsed["questions"].([]any); ok {
		var lines []string
		for i, q := range questions {
			if s, ok := q.(string); ok {
				lines = append(lines, strconv.Itoa(i+1)+". "+s)
			}
		}
		if len(lines) > 0 {
			parts = append(parts, strings.Join(lines, "\n"))
		}
	}
	if needsClarification, ok := parsed["needs_clarification"].(bool); ok && needsClarification && len(parts) == 0 {
		parts = append(parts, "I need some more information before I can proceed:")
	}
	if steps, ok := parsed["steps"].([]any); ok {
		var lines []string
		for i, s := range steps {
			if str, ok := s.(string); ok {
				lines = append(lines, strconv.Itoa(i+1)+". "+str)
			}
		}
		if len(lines) > 0 {
			parts = append(parts, strings.Join(lines, "\n"))
		}
	}

	return strings.Join(parts, "\n\n")
}

// ExtractDisplayText pulls a human-readable message out of a model
// response, prepending any prose that appeared before an embedded JSON
// blob.
func ExtractDisplayText(responseText string) string {
	text := strings.TrimSpace(responseText)
	if text == "" {
		return ""
	}

	parsed := ExtractJSON(text)
	if parsed == nil {
		return ""
	}
	readable := jsonToReadable(parsed)
	if readable == "" {
		return ""
	}

	bracePos := strings.IndexByte(text, '{')
	if bracePos < 0 {
		return readable
	}

	before := text[:bracePos]
	var keep []string
	for _, line := range strings.Split(before, "\n") {
		t := strings.ToLower(strings.TrimSpace(line))
		if t == "" || strings.HasPrefix(t, "```") || strings.HasPrefix(t, "response") ||
			strings.HasPrefix(t, "json") || strings.HasPrefix(t, "here") {
			continue
		}
		keep = append(keep, strings.TrimSpace(line))
	}
	prose := strings.Join(keep, "\n")
	if prose == "" {
		return readable
	}
	return prose + "\n\n" + readable
}

// summarizeToolOutput produces a brief, namespace-aware one-line summary of
// a tool's output, never the raw payload.
func summarizeToolOutput(toolName string, output any) string {
	if output == nil {
		return "completed successfully"
	}
	obj, _ := output.(map[string]any)

	if strings.HasPrefix(toolName, "plugin.create") {
		name, _ := obj["name"].(string)
		if name == "" {
			name, _ = obj["plugin_name"].(string)
		}
		desc, _ := obj["description"].(string)
		switch {
		case name != "" && desc != "":
			return "Created plugin '" + name + "' — " + desc
		case name != "":
			return "Created plugin '" + name + "'"
		default:
			return "Plugin created successfully"
		}
	}
	if strings.HasPrefix(toolName, "plugin.") {
		pluginName := strings.TrimPrefix(toolName, "plugin.")
		if result, ok := obj["result"]; ok {
			s := stringify(result)
			s = util.TruncateRunes(s, perToolSummaryLimit)
			return "'" + pluginName + "' returned: " + s
		}
		return "'" + pluginName + "' completed successfully"
	}

	switch {
	case strings.HasPrefix(toolName, "fs."):
		if path, ok := obj["path"].(string); ok && path != "" {
			return "OK (" + path + ")"
		}
		return "OK"
	case strings.HasPrefix(toolName, "web."):
		url, _ := obj["url"].(string)
		status := obj["status"]
		if status == nil {
			status = obj["status_code"]
		}
		var body string
		if b, ok := obj["body"].(string); ok {
			body = b
		}
		var sb strings.Builder
		if url != "" {
			sb.WriteString(url)
		}
		if status != nil {
			sb.WriteString(" (status: " + stringify(status) + ")")
		}
		if body != "" {
			sb.WriteString(" [" + strconv.Itoa(len(body)) + " chars]")
		}
		if sb.Len() == 0 {
			return "OK"
		}
		return sb.String()
	case strings.HasPrefix(toolName, "service.") || strings.HasPrefix(toolName, "process."):
		if msg, ok := obj["message"].(string); ok && msg != "" {
			return msg
		}
		return "OK"
	default:
		for _, key := range []string{"message", "result", "status", "output"} {
			if val, ok := obj[key]; ok {
				return util.TruncateRunes(stringify(val), 200)
			}
		}
		return "completed successfully"
	}
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// BuildCompletionSummary combines the model's reasoning with brief per-tool
// summaries, posted back to the goal as an "ai" message. Truncated so large
// generated output never floods the user's view.
func BuildCompletionSummary(responseText string, toolResults []ToolResult) string {
	var parts []string

	if parsed := ExtractJSON(responseText); parsed != nil {
		var readableParts []string
		if reasoning, ok := parsed["reasoning"].(string); ok && reasoning != "" {
			readableParts = append(readableParts, reasoning)
		}
		if result, ok := parsed["result"].(string); ok && result != "" {
			readableParts = append(readableParts, result)
		}
		if len(readableParts) == 0 {
			if readable := jsonToReadable(parsed); readable != "" {
				readableParts = append(readableParts, readable)
			}
		}
		parts = append(parts, readableParts...)
	}

	for _, tr := range toolResults {
		name := tr.Tool
		if name == "" {
			name = "unknown"
		}
		if tr.Success {
			summary := summarizeToolOutput(name, tr.Output)
			parts = append(parts, "**"+name+"**: "+summary)
		} else {
			errMsg := tr.Error
			if errMsg == "" {
				errMsg = "unknown error"
			}
			parts = append(parts, "**"+name+"** failed: "+errMsg)
		}
	}

	combined := strings.Join(parts, "\n\n")
	return util.TruncateRunes(combined, totalSummaryLimit)
}
