package decisionlog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogAndRetrieve(t *testing.T) {
	l := New()
	id := l.LogDecision("route_task", []string{"agent-1", "agent-2"}, "agent-1",
		"Agent-1 has matching capabilities and is idle", "operational", "heuristic")

	require.NotEmpty(t, id)
	require.Len(t, l.Recent(1), 1)
}

func TestUpdateOutcome(t *testing.T) {
	l := New()
	id := l.LogDecision("route_task", []string{"agent-1"}, "agent-1", "Only candidate", "reactive", "heuristic")
	l.UpdateOutcome(id, "success: task completed in 50ms")

	recent := l.Recent(1)
	require.Equal(t, "success: task completed in 50ms", recent[0].Outcome)
}

func TestRecentReturnsNewestFirst(t *testing.T) {
	l := New()
	id1 := l.LogDecision("ctx_1", []string{"a"}, "a", "first decision", "reactive", "heuristic")
	id2 := l.LogDecision("ctx_2", []string{"b"}, "b", "second decision", "reactive", "heuristic")

	recent := l.Recent(2)
	require.Len(t, recent, 2)
	require.Equal(t, id2, recent[0].ID)
	require.Equal(t, id1, recent[1].ID)
}

func TestRecentLimitedCount(t *testing.T) {
	l := New()
	for i := 0; i < 10; i++ {
		l.LogDecision("ctx", nil, "agent", "reason", "reactive", "heuristic")
	}
	require.Len(t, l.Recent(3), 3)
}

func TestGetByContext(t *testing.T) {
	l := New()
	l.LogDecision("route_task", []string{"a"}, "a", "reason", "reactive", "heuristic")
	l.LogDecision("select_model", []string{"b"}, "b", "reason", "tactical", "tinyllama")
	l.LogDecision("route_task", []string{"c"}, "c", "reason", "operational", "heuristic")

	require.Len(t, l.ByContext("route_task"), 2)
	require.Len(t, l.ByContext("select_model"), 1)
	require.Empty(t, l.ByContext("nonexistent"))
}

func TestSuccessRate(t *testing.T) {
	l := New()
	for i := 0; i < 4; i++ {
		id := l.LogDecision("route_task", []string{"a"}, "a", "reason", "reactive", "heuristic")
		if i < 3 {
			l.UpdateOutcome(id, "success")
		} else {
			l.UpdateOutcome(id, "failed")
		}
	}

	require.InDelta(t, 0.75, l.SuccessRate("route_task"), 0.0001)
}

func TestSuccessRateNoOutcomes(t *testing.T) {
	l := New()
	l.LogDecision("route_task", []string{"a"}, "a", "reason", "reactive", "heuristic")
	require.Equal(t, 0.0, l.SuccessRate("route_task"))
}

func TestSuccessRateNoMatchingContext(t *testing.T) {
	l := New()
	require.Equal(t, 0.0, l.SuccessRate("nonexistent"))
}

func TestSuccessRateOkOutcome(t *testing.T) {
	l := New()
	id := l.LogDecision("deploy", []string{"a"}, "a", "reason", "tactical", "mistral")
	l.UpdateOutcome(id, "ok: deployed")
	require.Equal(t, 1.0, l.SuccessRate("deploy"))
}

func TestUpdateOutcomeNonexistentIsNoop(t *testing.T) {
	l := New()
	require.NotPanics(t, func() { l.UpdateOutcome("nonexistent-id", "success") })
}

func TestCapacityTrimming(t *testing.T) {
	l := New()
	for i := 0; i < 10005; i++ {
		l.LogDecision("ctx", nil, "agent", "reason", "reactive", "heuristic")
	}
	require.LessOrEqual(t, l.Count(), MaxEntries)
}

func TestDecisionRecordFields(t *testing.T) {
	l := New()
	id := l.LogDecision("task_routing", []string{"agent-1", "agent-2", "agent-3"}, "agent-2",
		"Agent-2 has the best capabilities", "operational", "tinyllama")

	d := l.Recent(1)[0]
	require.Equal(t, id, d.ID)
	require.Equal(t, "task_routing", d.Context)
	require.Len(t, d.Options, 3)
	require.Equal(t, "agent-2", d.Chosen)
	require.Equal(t, "Agent-2 has the best capabilities", d.Reasoning)
	require.Equal(t, "operational", d.IntelligenceLevel)
	require.Equal(t, "tinyllama", d.ModelUsed)
	require.Empty(t, d.Outcome)
	require.Greater(t, d.Timestamp, int64(0))
}
