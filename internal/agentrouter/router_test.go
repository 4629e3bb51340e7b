package agentrouter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func makeRegistration(id, agentType string, tools ...string) Registration {
	return Registration{
		AgentID:        id,
		AgentType:      agentType,
		ToolNamespaces: tools,
	}
}

func TestRegisterAndList(t *testing.T) {
	r := New()
	r.RegisterAgent(makeRegistration("agent-1", "system", "fs", "process"))

	agents := r.ListAgents()
	require.Len(t, agents, 1)
	require.Equal(t, "agent-1", agents[0].AgentID)
}

func TestRouteTask(t *testing.T) {
	r := New()
	r.RegisterAgent(makeRegistration("sys-1", "system", "fs", "process"))
	r.RegisterAgent(makeRegistration("net-1", "network", "net", "firewall"))

	got := r.RouteTask(Task{ID: "task-1", RequiredTools: []string{"fs"}})
	require.Equal(t, "sys-1", got)
}

func TestUnregisterAgent(t *testing.T) {
	r := New()
	r.RegisterAgent(makeRegistration("agent-1", "system", "fs"))
	require.Equal(t, 1, r.ActiveAgentCount())

	r.UnregisterAgent("agent-1")
	require.Equal(t, 0, r.ActiveAgentCount())
	require.Empty(t, r.ListAgents())
}

func TestUnregisterNonexistentDoesNotPanic(t *testing.T) {
	r := New()
	require.NotPanics(t, func() { r.UnregisterAgent("nonexistent") })
}

func TestUpdateHeartbeat(t *testing.T) {
	r := New()
	r.RegisterAgent(makeRegistration("agent-1", "system", "fs"))
	r.UpdateHeartbeat("agent-1", "busy")
	require.Equal(t, "busy", r.AgentStatus("agent-1"))
}

func TestUpdateHeartbeatNonexistentIsNoop(t *testing.T) {
	r := New()
	require.NotPanics(t, func() { r.UpdateHeartbeat("nonexistent", "idle") })
}

func TestRouteTaskNoToolsRequiredNeverMatches(t *testing.T) {
	r := New()
	r.RegisterAgent(makeRegistration("agent-1", "system", "fs"))

	got := r.RouteTask(Task{ID: "task-1"})
	require.Empty(t, got)
}

func TestRouteTaskNoMatchingAgent(t *testing.T) {
	r := New()
	r.RegisterAgent(makeRegistration("agent-1", "system", "fs"))

	got := r.RouteTask(Task{ID: "task-1", RequiredTools: []string{"net"}})
	require.Empty(t, got)
}

func TestRoutePrefersIdleAgent(t *testing.T) {
	r := New()
	r.RegisterAgent(makeRegistration("agent-1", "system", "fs"))
	r.RegisterAgent(makeRegistration("agent-2", "system", "fs"))

	r.AssignTask("agent-1", "task-x")

	got := r.RouteTask(Task{ID: "task-1", RequiredTools: []string{"fs"}})
	require.Equal(t, "agent-2", got)
}

func TestAssignTask(t *testing.T) {
	r := New()
	r.RegisterAgent(makeRegistration("agent-1", "system", "fs"))
	r.AssignTask("agent-1", "task-1")

	require.Equal(t, "busy", r.AgentStatus("agent-1"))
	require.Equal(t, "task-1", r.AssignedTask("agent-1"))
}

func TestTaskCompletedSuccess(t *testing.T) {
	r := New()
	r.RegisterAgent(makeRegistration("agent-1", "system", "fs"))
	r.AssignTask("agent-1", "task-1")

	r.TaskCompleted("agent-1", true)
	require.Equal(t, "idle", r.AgentStatus("agent-1"))
	require.Empty(t, r.AssignedTask("agent-1"))
}

func TestTaskCompletedFailure(t *testing.T) {
	r := New()
	r.RegisterAgent(makeRegistration("agent-1", "system", "fs"))
	r.AssignTask("agent-1", "task-1")

	r.TaskCompleted("agent-1", false)
	require.Equal(t, "idle", r.AgentStatus("agent-1"))
}

func TestActiveAgentCount(t *testing.T) {
	r := New()
	r.RegisterAgent(makeRegistration("agent-1", "system", "fs"))
	r.RegisterAgent(makeRegistration("agent-2", "system", "net"))

	require.Equal(t, 2, r.ActiveAgentCount())
}

func TestDeadAgentsEmptyByDefault(t *testing.T) {
	r := New()
	require.Empty(t, r.DeadAgents())
}

func TestRoutePrefersExperiencedAgent(t *testing.T) {
	r := New()
	r.RegisterAgent(makeRegistration("agent-new", "system", "fs"))
	r.RegisterAgent(makeRegistration("agent-exp", "system", "fs"))

	r.AssignTask("agent-exp", "prior-task")
	r.TaskCompleted("agent-exp", true)
	for i := 0; i < 9; i++ {
		r.AssignTask("agent-exp", "prior-task")
		r.TaskCompleted("agent-exp", true)
	}

	got := r.RouteTask(Task{ID: "task-1", RequiredTools: []string{"fs"}})
	require.Equal(t, "agent-exp", got)
}
