// Package api holds the wire types external collaborators — worker agents,
// operator tooling, a future UI — exchange with the autonomy core's
// management HTTP surface (spec.md §6). Grounded on tarsy's pkg/api
// response-DTO convention (plain exported structs with json tags, one per
// endpoint), kept separate from internal/management so a Go-based worker
// agent can import just the wire contract without pulling in the server.
package api

import (
	"encoding/json"

	"github.com/aios/autonomy-core/internal/goalstore"
)

// SubmitGoalRequest is the body of POST /goals. Metadata, if present, is
// stored verbatim as the goal's opaque metadata blob (spec.md §4.G
// set_metadata) — the recognized key "preferred_provider" steers §4.K step
// 6's operational/tactical backend selection.
type SubmitGoalRequest struct {
	Description string          `json:"description"`
	Priority    int             `json:"priority"`
	Source      string          `json:"source"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// SetMetadataRequest is the body of PUT /goals/{id}/metadata.
type SetMetadataRequest struct {
	Metadata json.RawMessage `json:"metadata"`
}

// MetadataResponse is returned by GET /goals/{id}/metadata.
type MetadataResponse struct {
	Metadata json.RawMessage `json:"metadata"`
}

// SubmitGoalResponse is returned by POST /goals.
type SubmitGoalResponse struct {
	GoalID string `json:"goal_id"`
}

// PostMessageRequest is the body of POST /goals/{id}/messages.
type PostMessageRequest struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

// GoalDetail is returned by GET /goals/{id}.
type GoalDetail struct {
	Goal     *goalstore.Goal      `json:"goal"`
	Tasks    []*goalstore.Task    `json:"tasks"`
	Messages []*goalstore.Message `json:"messages"`
	Progress float64              `json:"progress"`
}

// GoalList is returned by GET /goals.
type GoalList struct {
	Goals []*goalstore.Goal `json:"goals"`
	Total int               `json:"total"`
}

// RegisterAgentRequest is the body of POST /agents/register.
type RegisterAgentRequest struct {
	AgentID        string   `json:"agent_id"`
	AgentType      string   `json:"agent_type"`
	Capabilities   []string `json:"capabilities"`
	ToolNamespaces []string `json:"tool_namespaces"`
	Endpoint       string   `json:"endpoint"`
}

// HeartbeatRequest is the body of POST /agents/{id}/heartbeat.
type HeartbeatRequest struct {
	Status string `json:"status"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status       string `json:"status"`
	UptimeSecs   int64  `json:"uptime_seconds"`
	ActiveGoals  int    `json:"active_goals"`
	ActiveAgents int    `json:"active_agents"`
}

// ErrorResponse is the error body shape for every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}
