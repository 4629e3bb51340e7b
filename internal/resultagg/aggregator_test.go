package resultagg

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordAndCheck(t *testing.T) {
	a := New()
	a.RecordResult("goal-1", TaskResult{TaskID: "task-1", Success: true, DurationMS: 100, TokensUsed: 50, ModelUsed: "tinyllama"})

	require.True(t, a.IsGoalComplete("goal-1", 1))
	require.False(t, a.HasFailures("goal-1"))
	require.Equal(t, 50, a.TotalTokens("goal-1"))
}

func TestGoalSummary(t *testing.T) {
	a := New()
	a.RecordResult("goal-1", TaskResult{TaskID: "task-1", Success: true, DurationMS: 100, TokensUsed: 50, ModelUsed: "tinyllama"})
	a.RecordResult("goal-1", TaskResult{TaskID: "task-2", Success: false, Error: "timeout", DurationMS: 5000, TokensUsed: 0, ModelUsed: "mistral"})

	summary := a.GetGoalSummary("goal-1")
	require.Equal(t, 2, summary.TotalTasks)
	require.Equal(t, 1, summary.Succeeded)
	require.Equal(t, 1, summary.Failed)
	require.False(t, summary.OverallSuccess)
}

func TestIsGoalCompleteNotEnoughTasks(t *testing.T) {
	a := New()
	a.RecordResult("goal-1", TaskResult{TaskID: "task-1", Success: true, DurationMS: 100, TokensUsed: 50, ModelUsed: "tinyllama"})

	require.False(t, a.IsGoalComplete("goal-1", 2))
	require.True(t, a.IsGoalComplete("goal-1", 1))
}

func TestIsGoalCompleteNonexistent(t *testing.T) {
	a := New()
	require.False(t, a.IsGoalComplete("nonexistent", 1))
}

func TestHasFailuresNoResults(t *testing.T) {
	a := New()
	require.False(t, a.HasFailures("nonexistent"))
}

func TestHasFailuresAllSuccess(t *testing.T) {
	a := New()
	for i := 0; i < 3; i++ {
		a.RecordResult("goal-1", TaskResult{TaskID: fmt.Sprintf("task-%d", i), Success: true, DurationMS: 100, TokensUsed: 50, ModelUsed: "tinyllama"})
	}
	require.False(t, a.HasFailures("goal-1"))
}

func TestTotalTokensMultipleResults(t *testing.T) {
	a := New()
	a.RecordResult("goal-1", TaskResult{TaskID: "task-1", Success: true, DurationMS: 100, TokensUsed: 50, ModelUsed: "tinyllama"})
	a.RecordResult("goal-1", TaskResult{TaskID: "task-2", Success: true, DurationMS: 200, TokensUsed: 75, ModelUsed: "mistral"})

	require.Equal(t, 125, a.TotalTokens("goal-1"))
	require.Equal(t, 0, a.TotalTokens("nonexistent"))
}

func TestTotalDurationMS(t *testing.T) {
	a := New()
	a.RecordResult("goal-1", TaskResult{TaskID: "task-1", Success: true, DurationMS: 100, TokensUsed: 50, ModelUsed: "tinyllama"})
	a.RecordResult("goal-1", TaskResult{TaskID: "task-2", Success: true, DurationMS: 200, TokensUsed: 50, ModelUsed: "tinyllama"})

	require.Equal(t, int64(300), a.TotalDurationMS("goal-1"))
	require.Equal(t, int64(0), a.TotalDurationMS("nonexistent"))
}

func TestGoalSummaryAllSuccess(t *testing.T) {
	a := New()
	for i := 0; i < 3; i++ {
		a.RecordResult("goal-1", TaskResult{TaskID: fmt.Sprintf("task-%d", i), Success: true, DurationMS: 100, TokensUsed: 50, ModelUsed: "tinyllama"})
	}

	summary := a.GetGoalSummary("goal-1")
	require.Equal(t, 3, summary.TotalTasks)
	require.Equal(t, 3, summary.Succeeded)
	require.Equal(t, 0, summary.Failed)
	require.True(t, summary.OverallSuccess)
	require.Equal(t, 150, summary.TotalTokens)
	require.Equal(t, int64(300), summary.TotalDurationMS)
}

func TestGoalSummaryModelsUsedDedup(t *testing.T) {
	a := New()
	for i := 0; i < 2; i++ {
		a.RecordResult("goal-1", TaskResult{TaskID: fmt.Sprintf("task-%d", i), Success: true, DurationMS: 100, TokensUsed: 50, ModelUsed: "tinyllama"})
	}
	a.RecordResult("goal-1", TaskResult{TaskID: "task-3", Success: true, DurationMS: 100, TokensUsed: 50, ModelUsed: "mistral"})

	summary := a.GetGoalSummary("goal-1")
	require.Len(t, summary.ModelsUsed, 2)
	require.Contains(t, summary.ModelsUsed, "tinyllama")
	require.Contains(t, summary.ModelsUsed, "mistral")
}

func TestGoalSummaryNonexistent(t *testing.T) {
	a := New()
	summary := a.GetGoalSummary("nonexistent")
	require.Zero(t, summary.TotalTasks)
	require.Zero(t, summary.Succeeded)
	require.Zero(t, summary.Failed)
	require.False(t, summary.OverallSuccess)
}

func TestClearGoal(t *testing.T) {
	a := New()
	a.RecordResult("goal-1", TaskResult{TaskID: "task-1", Success: true, DurationMS: 100, TokensUsed: 50, ModelUsed: "tinyllama"})

	require.True(t, a.IsGoalComplete("goal-1", 1))
	a.ClearGoal("goal-1")
	require.False(t, a.IsGoalComplete("goal-1", 1))
}

func TestClearNonexistentGoal(t *testing.T) {
	a := New()
	require.NotPanics(t, func() { a.ClearGoal("nonexistent") })
}

func TestMultipleGoalsIsolation(t *testing.T) {
	a := New()
	a.RecordResult("goal-1", TaskResult{TaskID: "task-1", Success: true, DurationMS: 100, TokensUsed: 50, ModelUsed: "tinyllama"})
	a.RecordResult("goal-2", TaskResult{TaskID: "task-2", Success: false, Error: "fail", DurationMS: 200, TokensUsed: 100, ModelUsed: "mistral"})

	require.False(t, a.HasFailures("goal-1"))
	require.True(t, a.HasFailures("goal-2"))
	require.Equal(t, 50, a.TotalTokens("goal-1"))
	require.Equal(t, 100, a.TotalTokens("goal-2"))
}
