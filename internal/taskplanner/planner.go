// Package taskplanner classifies goal complexity and decomposes a goal's
// description into a task DAG (spec.md §4.H). It also holds the working set
// of pending tasks the autonomy loop pulls from on each tick.
package taskplanner

import (
	"strings"
	"sync"
	"time"

	"github.com/aios/autonomy-core/internal/goalstore"
	"github.com/aios/autonomy-core/internal/ids"
	"github.com/aios/autonomy-core/internal/logging"
)

var log = logging.For("taskplanner")

// Intelligence levels, in increasing order of reasoning power required.
const (
	Reactive    = "reactive"
	Operational = "operational"
	Tactical    = "tactical"
	Strategic   = "strategic"
)

// NormalizeIntelligenceLevel maps an arbitrary string to a known level,
// defaulting to Operational — the original source's own fallback for any
// value it doesn't recognize.
func NormalizeIntelligenceLevel(s string) string {
	switch s {
	case Reactive, Operational, Tactical, Strategic:
		return s
	default:
		return Operational
	}
}

// Task is an alias of the shared Goal Store task shape; the planner and the
// store operate on the same entity (spec.md §3 ownership: Task belongs to
// Goal Store, but the planner holds its own working copy for DAG readiness
// checks until the task terminates).
type Task = goalstore.Task

// Planner tracks the DAG of tasks the autonomy loop has not yet finished.
type Planner struct {
	mu     sync.RWMutex
	tasks  map[string]*Task // task id -> task
	byGoal map[string][]string
	order  []string // task ids in registration order, for deterministic selection
}

// New returns an empty Planner.
func New() *Planner {
	return &Planner{
		tasks:  make(map[string]*Task),
		byGoal: make(map[string][]string),
	}
}

// LoadPersistedTasks seeds the planner with tasks recovered from the Goal
// Store at startup (spec.md §4.G get_all_resumable_tasks feeding §4.H).
// Tasks are appended in the order given, which GetAllResumableTasks sorts
// by created_at then task id, so restart rehydration is itself
// deterministic.
func (p *Planner) LoadPersistedTasks(tasks []*Task) {
	if len(tasks) == 0 {
		return
	}
	p.mu.Lock()
	for _, t := range tasks {
		p.tasks[t.ID] = t
		p.byGoal[t.GoalID] = append(p.byGoal[t.GoalID], t.ID)
		p.order = append(p.order, t.ID)
	}
	p.mu.Unlock()
	log.Info().Int("count", len(tasks)).Msg("loaded persisted tasks")
}

// DecomposeGoal classifies description's complexity and produces its task
// breakdown, registering every produced task in the planner's working set.
func (p *Planner) DecomposeGoal(goalID, description string) []*Task {
	level := ClassifyComplexity(description)

	var tasks []*Task
	switch level {
	case Reactive:
		tasks = []*Task{p.heuristicDecompose(goalID, description)}
	case Operational:
		tasks = []*Task{p.singleTaskDecompose(goalID, description, level)}
	default: // Tactical, Strategic
		tasks = p.aiDecompose(goalID, description, level)
	}

	p.mu.Lock()
	for _, t := range tasks {
		p.tasks[t.ID] = t
		p.byGoal[goalID] = append(p.byGoal[goalID], t.ID)
		p.order = append(p.order, t.ID)
	}
	p.mu.Unlock()

	return tasks
}

func (p *Planner) aiDecompose(goalID, description, level string) []*Task {
	now := time.Now().UTC().Unix()
	steps := analyzeGoalSteps(description)
	if len(steps) == 0 {
		return []*Task{p.singleTaskDecompose(goalID, description, level)}
	}

	tasks := make([]*Task, 0, len(steps))
	var prevID string
	for i, step := range steps {
		taskID := ids.Task()
		var dependsOn []string
		if prevID != "" {
			dependsOn = []string{prevID}
		}
		taskLevel := level
		if i == 0 {
			// First step is usually information gathering — simpler.
			taskLevel = Operational
		}
		tasks = append(tasks, &Task{
			ID:                taskID,
			GoalID:            goalID,
			Description:       step.description,
			Status:            goalstore.TaskPending,
			IntelligenceLevel: taskLevel,
			RequiredTools:     step.tools,
			DependsOn:         dependsOn,
			CreatedAt:         now,
		})
		prevID = taskID
	}
	return tasks
}

type step struct {
	description string
	tools       []string
}

// analyzeGoalSteps recognizes a handful of multi-step playbooks by keyword;
// goals outside these playbooks fall back to single-task decomposition.
func analyzeGoalSteps(description string) []step {
	d := strings.ToLower(description)

	if strings.Contains(d, "restart") || strings.Contains(d, "deploy") {
		service := extractServiceName(d)
		return []step{
			{"Check current status of " + service, []string{"service", "monitor"}},
			{"Stop " + service + " gracefully", []string{"service"}},
			{"Start " + service + " and verify", []string{"service", "monitor"}},
		}
	}
	if strings.Contains(d, "security") || strings.Contains(d, "audit") {
		return []step{
			{"Gather system security configuration", []string{"sec", "fs"}},
			{"Analyze security posture and vulnerabilities", []string{"sec"}},
			{"Generate security report with recommendations", []string{"fs"}},
		}
	}
	if strings.Contains(d, "install") || strings.Contains(d, "setup") {
		return []step{
			{"Check prerequisites for: " + description, []string{"pkg", "fs"}},
			{"Install: " + description, []string{"pkg"}},
			{"Verify installation and configure", []string{"service", "fs"}},
		}
	}
	if strings.Contains(d, "network") || strings.Contains(d, "connectivity") {
		return []step{
			{"Check network interfaces and routing", []string{"net"}},
			{"Test DNS resolution and connectivity", []string{"net"}},
			{"Diagnose and apply fixes", []string{"net", "firewall"}},
		}
	}
	return nil
}

var knownServices = []string{
	"nginx", "apache", "postgres", "mysql", "redis", "docker",
	"ssh", "systemd", "cron", "mongodb", "elasticsearch",
}

func extractServiceName(descLower string) string {
	for _, svc := range knownServices {
		if strings.Contains(descLower, svc) {
			return svc
		}
	}
	return "the service"
}

// ClassifyComplexity maps a goal description to the intelligence level
// needed to handle it (spec.md §4.H keyword heuristics).
func ClassifyComplexity(description string) string {
	d := strings.ToLower(description)

	if containsAny(d, "status", "health", "uptime", "ping") {
		return Reactive
	}
	if (strings.Contains(d, "email") || strings.Contains(d, "mail")) &&
		(strings.Contains(d, "send") || strings.Contains(d, "@")) {
		return Reactive
	}
	if strings.Contains(d, "call ") || strings.Contains(d, "execute ") || strings.Contains(d, "run ") {
		if containsAny(d, "fs.", "process.", "service.", "net.", "monitor.", "email.", "pkg.", "sec.") {
			return Reactive
		}
	}
	if containsAny(d, "analyze", "plan", "design", "security audit", "architecture") {
		return Strategic
	}
	if containsAny(d, "read file", "list", "check disk", "log") {
		return Operational
	}
	return Tactical
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func (p *Planner) heuristicDecompose(goalID, description string) *Task {
	return &Task{
		ID:                ids.Task(),
		GoalID:            goalID,
		Description:       description,
		Status:            goalstore.TaskPending,
		IntelligenceLevel: Reactive,
		CreatedAt:         time.Now().UTC().Unix(),
	}
}

func (p *Planner) singleTaskDecompose(goalID, description, level string) *Task {
	return &Task{
		ID:                ids.Task(),
		GoalID:            goalID,
		Description:       description,
		Status:            goalstore.TaskPending,
		IntelligenceLevel: level,
		RequiredTools:     InferRequiredTools(description),
		CreatedAt:         time.Now().UTC().Unix(),
	}
}

// InferRequiredTools guesses the tool namespaces a task's description
// implies it will need, by keyword (spec.md §4.H).
func InferRequiredTools(description string) []string {
	d := strings.ToLower(description)
	var tools []string

	if strings.Contains(d, "file") || hasWord(d, "read") || hasWord(d, "write") ||
		strings.Contains(d, "directory") || strings.Contains(d, "disk") {
		tools = append(tools, "fs")
	}
	if strings.Contains(d, "process") || hasWord(d, "kill") || hasWord(d, "spawn") {
		tools = append(tools, "process")
	}
	if hasWord(d, "service") || hasWord(d, "restart") || hasWord(d, "systemctl") {
		tools = append(tools, "service")
	}
	if strings.Contains(d, "network") || strings.Contains(d, "firewall") || hasWord(d, "dns") || hasWord(d, "ping") {
		tools = append(tools, "net")
	}
	if hasWord(d, "install") || hasWord(d, "package") || hasWord(d, "apt") {
		tools = append(tools, "pkg")
	}
	if strings.Contains(d, "security") || strings.Contains(d, "permission") || hasWord(d, "audit") || strings.Contains(d, "vulnerab") {
		tools = append(tools, "sec")
	}
	if strings.Contains(d, "plugin") || strings.Contains(d, "script") {
		tools = append(tools, "plugin")
	}
	if strings.Contains(d, "email") || strings.Contains(d, "smtp") || strings.Contains(d, "mail") || strings.Contains(d, "newsletter") {
		tools = append(tools, "email")
	}
	if strings.Contains(d, "monitor") || hasWord(d, "cpu") || hasWord(d, "memory") || strings.Contains(d, "metric") {
		tools = append(tools, "monitor")
	}
	if strings.Contains(d, "container") || strings.Contains(d, "podman") || strings.Contains(d, "docker") {
		tools = append(tools, "container")
	}
	if containsAny(d, "git ", "commit", "branch", "merge", "clone") {
		tools = append(tools, "git")
	}
	return tools
}

func hasWord(text, word string) bool {
	isSep := func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_')
	}
	for _, w := range strings.FieldsFunc(text, isSep) {
		if w == word {
			return true
		}
	}
	return false
}

// PendingTaskCount returns how many tracked tasks are still pending.
func (p *Planner) PendingTaskCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var n int
	for _, id := range p.order {
		if t, ok := p.tasks[id]; ok && t.Status == goalstore.TaskPending {
			n++
		}
	}
	return n
}

// MarkInProgress transitions a task to in_progress and stamps started_at.
func (p *Planner) MarkInProgress(taskID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.tasks[taskID]; ok {
		t.Status = goalstore.TaskInProgress
		t.StartedAt = time.Now().UTC().Unix()
	}
}

// MarkAwaitingInput transitions a task to awaiting_input.
func (p *Planner) MarkAwaitingInput(taskID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.tasks[taskID]; ok {
		t.Status = goalstore.TaskAwaitingInput
	}
}

// ResumeTask re-queues an awaiting_input task as pending.
func (p *Planner) ResumeTask(taskID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.tasks[taskID]; ok {
		t.Status = goalstore.TaskPending
	}
}

// CompleteTask marks a task completed with its output.
func (p *Planner) CompleteTask(taskID string, output []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.tasks[taskID]; ok {
		t.Status = goalstore.TaskCompleted
		t.OutputJSON = output
		t.CompletedAt = time.Now().UTC().Unix()
	}
}

// FailTask marks a task failed with an error message.
func (p *Planner) FailTask(taskID, errMsg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.tasks[taskID]; ok {
		t.Status = goalstore.TaskFailed
		t.Error = errMsg
		t.CompletedAt = time.Now().UTC().Unix()
	}
}

// GetTask returns a task by id, or nil if unknown.
func (p *Planner) GetTask(taskID string) *Task {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tasks[taskID]
}

// GetTasksForGoal returns every tracked task belonging to goalID.
func (p *Planner) GetTasksForGoal(goalID string) []*Task {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := p.byGoal[goalID]
	out := make([]*Task, 0, len(ids))
	for _, id := range ids {
		if t, ok := p.tasks[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

// NextTask returns the first pending task whose dependencies are all
// completed, or nil if none is ready. Candidates are walked in
// registration order (p.order), not map iteration order, so the choice is
// reproducible across runs given identical input (spec.md §4.H, §5).
func (p *Planner) NextTask() *Task {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, id := range p.order {
		t, ok := p.tasks[id]
		if !ok || t.Status != goalstore.TaskPending {
			continue
		}
		if p.dependenciesSatisfiedLocked(t) {
			return t
		}
	}
	return nil
}

func (p *Planner) dependenciesSatisfiedLocked(t *Task) bool {
	for _, depID := range t.DependsOn {
		dep, ok := p.tasks[depID]
		if !ok {
			continue // unknown dependency treated as satisfied, matching original source
		}
		if dep.Status != goalstore.TaskCompleted {
			return false
		}
	}
	return true
}
