// Package agentrouter tracks registered worker agents and routes tasks to
// them by capability, health, and load (spec.md §4.I).
package agentrouter

import (
	"strings"
	"sync"
	"time"
)

// HeartbeatTimeout is how long an agent may go without a heartbeat before
// it's considered dead.
const HeartbeatTimeout = 15 * time.Second

// Registration is what a worker agent submits when it joins the fleet.
type Registration struct {
	AgentID        string
	AgentType      string
	Capabilities   []string
	ToolNamespaces []string
	Endpoint       string // informational only; dispatch happens outside the core
	RegisteredAt   int64
}

// Task is a task as the router needs to see it to make a routing decision.
type Task struct {
	ID            string
	RequiredTools []string
}

type trackedAgent struct {
	registration  Registration
	lastHeartbeat time.Time
	status        string // "idle" | "busy"
	currentTask   string
	tasksDone     int
	tasksFailed   int
}

// Router routes tasks to the best available agent and tracks fleet health.
type Router struct {
	mu     sync.RWMutex
	agents map[string]*trackedAgent
}

// New returns an empty Router.
func New() *Router {
	return &Router{agents: make(map[string]*trackedAgent)}
}

// RegisterAgent adds or replaces an agent's registration, resetting its
// heartbeat and marking it idle.
func (r *Router) RegisterAgent(reg Registration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[reg.AgentID] = &trackedAgent{
		registration:  reg,
		lastHeartbeat: time.Now(),
		status:        "idle",
	}
}

// UnregisterAgent removes an agent from the fleet.
func (r *Router) UnregisterAgent(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, agentID)
}

// UpdateHeartbeat refreshes an agent's liveness and status; a no-op for
// unknown agent ids.
func (r *Router) UpdateHeartbeat(agentID, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.agents[agentID]; ok {
		a.lastHeartbeat = time.Now()
		a.status = status
	}
}

func (r *Router) isHealthy(a *trackedAgent) bool {
	return time.Since(a.lastHeartbeat) < HeartbeatTimeout
}

// RouteTask picks the best agent for task, or "" if none qualifies. Tasks
// with no required tools never route to an agent — they fall through to AI
// inference, which knows the actual tool names to call.
func (r *Router) RouteTask(task Task) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(task.RequiredTools) == 0 {
		return ""
	}

	type candidate struct {
		id    string
		agent *trackedAgent
	}

	matches := func(a *trackedAgent) bool {
		for _, tool := range task.RequiredTools {
			if containsStr(a.registration.ToolNamespaces, tool) {
				return true
			}
			for _, cap := range a.registration.Capabilities {
				if containsSubstr(cap, tool) {
					return true
				}
			}
		}
		return false
	}

	var candidates []candidate
	for id, a := range r.agents {
		if !r.isHealthy(a) {
			continue
		}
		if a.status != "idle" || a.currentTask != "" {
			continue
		}
		if matches(a) {
			candidates = append(candidates, candidate{id, a})
		}
	}

	if len(candidates) == 0 {
		// Fall back to busy-but-capable agents — queue behind their current work.
		for id, a := range r.agents {
			if !r.isHealthy(a) {
				continue
			}
			for _, tool := range task.RequiredTools {
				if containsStr(a.registration.ToolNamespaces, tool) {
					candidates = append(candidates, candidate{id, a})
					break
				}
			}
		}
	}

	if len(candidates) == 0 {
		return ""
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		bIdle := c.agent.status == "idle"
		bestIdle := best.agent.status == "idle"
		if bIdle && !bestIdle {
			best = c
			continue
		}
		if bIdle == bestIdle && c.agent.tasksDone > best.agent.tasksDone {
			best = c
		}
	}
	return best.id
}

// AssignTask marks agentID busy with taskID; a no-op for unknown agents.
func (r *Router) AssignTask(agentID, taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.agents[agentID]; ok {
		a.currentTask = taskID
		a.status = "busy"
	}
}

// TaskCompleted frees agentID and records whether its last task succeeded.
func (r *Router) TaskCompleted(agentID string, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[agentID]
	if !ok {
		return
	}
	a.currentTask = ""
	a.status = "idle"
	if success {
		a.tasksDone++
	} else {
		a.tasksFailed++
	}
}

// ListAgents returns a snapshot of every registered agent's registration as
// submitted; live status is reported separately by AgentStatus.
func (r *Router) ListAgents() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Registration, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a.registration)
	}
	return out
}

// AgentStatus reports the live status string ("idle"/"busy") for an agent,
// or "" if unknown.
func (r *Router) AgentStatus(agentID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.agents[agentID]; ok {
		return a.status
	}
	return ""
}

// ActiveAgentCount returns how many registered agents have a live heartbeat.
func (r *Router) ActiveAgentCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, a := range r.agents {
		if r.isHealthy(a) {
			n++
		}
	}
	return n
}

// AssignedTask returns the task id currently assigned to agentID, if any.
func (r *Router) AssignedTask(agentID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.agents[agentID]; ok {
		return a.currentTask
	}
	return ""
}

// DeadAgents returns the ids of agents whose heartbeat has lapsed.
func (r *Router) DeadAgents() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var dead []string
	for id, a := range r.agents {
		if !r.isHealthy(a) {
			dead = append(dead, id)
		}
	}
	return dead
}

func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsSubstr(haystack, needle string) bool {
	return needle != "" && strings.Contains(haystack, needle)
}
