// Package resultagg collects per-task execution results and determines
// when a goal's tasks have all finished (spec.md §4.L).
package resultagg

import (
	"sync"

	"github.com/aios/autonomy-core/internal/logging"
)

var log = logging.For("resultagg")

// TaskResult is one task's finished execution outcome.
type TaskResult struct {
	TaskID     string
	Success    bool
	OutputJSON []byte
	Error      string
	DurationMS int64
	TokensUsed int
	ModelUsed  string
}

// Summary is the aggregated view of a goal's task results.
type Summary struct {
	TotalTasks      int
	Succeeded       int
	Failed          int
	TotalTokens     int
	TotalDurationMS int64
	ModelsUsed      []string
	OverallSuccess  bool
}

// Aggregator stores task results keyed by goal and computes completion and
// summary views over them.
type Aggregator struct {
	mu      sync.Mutex
	results map[string][]TaskResult
}

// New returns an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{results: make(map[string][]TaskResult)}
}

// RecordResult appends result to goalID's result list.
func (a *Aggregator) RecordResult(goalID string, result TaskResult) {
	log.Info().Str("task_id", result.TaskID).Bool("success", result.Success).
		Int("tokens", result.TokensUsed).Str("model", result.ModelUsed).Msg("task completed")

	a.mu.Lock()
	defer a.mu.Unlock()
	a.results[goalID] = append(a.results[goalID], result)
}

// IsGoalComplete reports whether goalID has at least expectedTasks recorded
// results.
func (a *Aggregator) IsGoalComplete(goalID string, expectedTasks int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.results[goalID]) >= expectedTasks
}

// HasFailures reports whether any recorded result for goalID failed.
func (a *Aggregator) HasFailures(goalID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range a.results[goalID] {
		if !r.Success {
			return true
		}
	}
	return false
}

// TotalTokens sums tokens used across goalID's recorded results.
func (a *Aggregator) TotalTokens(goalID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	var total int
	for _, r := range a.results[goalID] {
		total += r.TokensUsed
	}
	return total
}

// TotalDurationMS sums duration across goalID's recorded results.
func (a *Aggregator) TotalDurationMS(goalID string) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	var total int64
	for _, r := range a.results[goalID] {
		total += r.DurationMS
	}
	return total
}

// GetGoalSummary aggregates every recorded result for goalID. An unknown
// goal id yields a zero-value Summary with OverallSuccess false.
func (a *Aggregator) GetGoalSummary(goalID string) Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	results, ok := a.results[goalID]
	if !ok {
		return Summary{}
	}

	var succeeded, tokens int
	var duration int64
	seenModels := make(map[string]struct{})
	var models []string
	for _, r := range results {
		if r.Success {
			succeeded++
		}
		tokens += r.TokensUsed
		duration += r.DurationMS
		if _, seen := seenModels[r.ModelUsed]; !seen {
			seenModels[r.ModelUsed] = struct{}{}
			models = append(models, r.ModelUsed)
		}
	}
	failed := len(results) - succeeded

	return Summary{
		TotalTasks:      len(results),
		Succeeded:       succeeded,
		Failed:          failed,
		TotalTokens:     tokens,
		TotalDurationMS: duration,
		ModelsUsed:      models,
		OverallSuccess:  failed == 0,
	}
}

// ClearGoal discards goalID's recorded results, freeing memory once a goal
// has terminated.
func (a *Aggregator) ClearGoal(goalID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.results, goalID)
}
