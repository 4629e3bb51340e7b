package goalstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aios/autonomy-core/internal/ids"
	"github.com/aios/autonomy-core/internal/logging"
)

var log = logging.For("goalstore")

// Store is the in-memory cache fronting the durable goals/tasks/messages
// tables. All mutations update the cache first, then persist; a durable
// write failure is logged and does not roll back the cache (spec.md §7
// persistence-error policy — the in-memory state stays authoritative for
// the running process; the next write of the same row supersedes it).
type Store struct {
	mu       sync.RWMutex
	db       *sql.DB
	goals    map[string]*Goal
	tasks    map[string][]*Task    // goal id -> ordered tasks
	messages map[string][]*Message // goal id -> ordered messages
}

// Open builds a Store backed by db, rehydrating every goal, task, and
// message already persisted.
func Open(db *sql.DB) (*Store, error) {
	s := &Store{
		db:       db,
		goals:    make(map[string]*Goal),
		tasks:    make(map[string][]*Task),
		messages: make(map[string][]*Message),
	}
	if err := s.rehydrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) rehydrate() error {
	goalRows, err := s.db.Query(`SELECT id, description, priority, source, status, created_at, updated_at, metadata FROM goals`)
	if err != nil {
		return fmt.Errorf("goalstore: rehydrate goals: %w", err)
	}
	defer goalRows.Close()
	for goalRows.Next() {
		g := &Goal{}
		if err := goalRows.Scan(&g.ID, &g.Description, &g.Priority, &g.Source, &g.Status, &g.CreatedAt, &g.UpdatedAt, &g.Metadata); err != nil {
			return fmt.Errorf("goalstore: scan goal: %w", err)
		}
		s.goals[g.ID] = g
		if _, ok := s.tasks[g.ID]; !ok {
			s.tasks[g.ID] = nil
		}
	}
	if err := goalRows.Err(); err != nil {
		return err
	}

	taskRows, err := s.db.Query(`SELECT id, goal_id, description, intelligence_level, required_tools, depends_on, status, input_json, output_json, assigned_agent, created_at, started_at, completed_at, error FROM tasks ORDER BY goal_id, seq ASC`)
	if err != nil {
		return fmt.Errorf("goalstore: rehydrate tasks: %w", err)
	}
	defer taskRows.Close()
	for taskRows.Next() {
		t := &Task{}
		var toolsJSON, depsJSON string
		if err := taskRows.Scan(&t.ID, &t.GoalID, &t.Description, &t.IntelligenceLevel, &toolsJSON, &depsJSON, &t.Status, &t.InputJSON, &t.OutputJSON, &t.AssignedAgent, &t.CreatedAt, &t.StartedAt, &t.CompletedAt, &t.Error); err != nil {
			return fmt.Errorf("goalstore: scan task: %w", err)
		}
		_ = json.Unmarshal([]byte(toolsJSON), &t.RequiredTools)
		_ = json.Unmarshal([]byte(depsJSON), &t.DependsOn)
		s.tasks[t.GoalID] = append(s.tasks[t.GoalID], t)
	}
	if err := taskRows.Err(); err != nil {
		return err
	}

	msgRows, err := s.db.Query(`SELECT id, goal_id, sender, content, timestamp FROM goal_messages ORDER BY goal_id, seq ASC`)
	if err != nil {
		return fmt.Errorf("goalstore: rehydrate messages: %w", err)
	}
	defer msgRows.Close()
	for msgRows.Next() {
		m := &Message{}
		if err := msgRows.Scan(&m.ID, &m.GoalID, &m.Sender, &m.Content, &m.Timestamp); err != nil {
			return fmt.Errorf("goalstore: scan message: %w", err)
		}
		s.messages[m.GoalID] = append(s.messages[m.GoalID], m)
	}
	if err := msgRows.Err(); err != nil {
		return err
	}

	log.Info().Int("goals", len(s.goals)).Msg("goal store rehydrated")
	return nil
}

// Submit creates a new goal in pending status and appends the initial
// system message "Goal submitted: <description>".
func (s *Store) Submit(description string, priority int, source string) string {
	now := time.Now().UTC().Unix()
	goal := &Goal{
		ID:          ids.Goal(),
		Description: description,
		Priority:    priority,
		Source:      source,
		Status:      GoalPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	msg := &Message{
		ID:        ids.Message(),
		GoalID:    goal.ID,
		Sender:    SenderSystem,
		Content:   "Goal submitted: " + description,
		Timestamp: now,
	}

	s.mu.Lock()
	s.goals[goal.ID] = goal
	s.tasks[goal.ID] = nil
	s.messages[goal.ID] = []*Message{msg}
	s.mu.Unlock()

	s.persistGoal(goal)
	s.persistMessage(msg, 0)

	log.Info().Str("goal_id", goal.ID).Msg("goal submitted")
	return goal.ID
}

func (s *Store) persistGoal(g *Goal) {
	_, err := s.db.Exec(
		`INSERT INTO goals (id, description, priority, source, status, created_at, updated_at, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET description=excluded.description, priority=excluded.priority,
		   source=excluded.source, status=excluded.status, updated_at=excluded.updated_at, metadata=excluded.metadata`,
		g.ID, g.Description, g.Priority, g.Source, g.Status, g.CreatedAt, g.UpdatedAt, g.Metadata,
	)
	if err != nil {
		log.Error().Err(err).Str("goal_id", g.ID).Msg("failed to persist goal")
	}
}

func (s *Store) persistTask(t *Task, seq int) {
	toolsJSON, _ := json.Marshal(t.RequiredTools)
	depsJSON, _ := json.Marshal(t.DependsOn)
	_, err := s.db.Exec(
		`INSERT INTO tasks (id, goal_id, description, intelligence_level, required_tools, depends_on, status, input_json, output_json, assigned_agent, created_at, started_at, completed_at, error, seq)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status=excluded.status, output_json=excluded.output_json,
		   assigned_agent=excluded.assigned_agent, started_at=excluded.started_at,
		   completed_at=excluded.completed_at, error=excluded.error`,
		t.ID, t.GoalID, t.Description, t.IntelligenceLevel, string(toolsJSON), string(depsJSON),
		t.Status, t.InputJSON, t.OutputJSON, t.AssignedAgent, t.CreatedAt, t.StartedAt, t.CompletedAt, t.Error, seq,
	)
	if err != nil {
		log.Error().Err(err).Str("task_id", t.ID).Msg("failed to persist task")
	}
}

func (s *Store) persistMessage(m *Message, seq int) {
	_, err := s.db.Exec(
		`INSERT INTO goal_messages (id, goal_id, sender, content, timestamp, seq) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.GoalID, m.Sender, m.Content, m.Timestamp, seq,
	)
	if err != nil {
		log.Error().Err(err).Str("message_id", m.ID).Msg("failed to persist message")
	}
}

// AddTasks appends tasks to a goal's task list. No-op if the goal is unknown.
func (s *Store) AddTasks(goalID string, tasks []*Task) {
	s.mu.Lock()
	existing, ok := s.goals[goalID]
	if !ok {
		s.mu.Unlock()
		return
	}
	_ = existing
	baseSeq := len(s.tasks[goalID])
	s.tasks[goalID] = append(s.tasks[goalID], tasks...)
	s.mu.Unlock()

	for i, t := range tasks {
		s.persistTask(t, baseSeq+i)
	}
}

// UpdateTaskStatus transitions a task's status in place.
func (s *Store) UpdateTaskStatus(goalID, taskID, status string) {
	s.mu.Lock()
	var found *Task
	for _, t := range s.tasks[goalID] {
		if t.ID == taskID {
			t.Status = status
			found = t
			break
		}
	}
	s.mu.Unlock()
	if found != nil {
		s.persistTask(found, 0)
	}
}

// CompleteTask marks a task completed and stamps completed_at.
func (s *Store) CompleteTask(goalID, taskID string) {
	s.mu.Lock()
	var found *Task
	for _, t := range s.tasks[goalID] {
		if t.ID == taskID {
			t.Status = TaskCompleted
			t.CompletedAt = time.Now().UTC().Unix()
			found = t
			break
		}
	}
	s.mu.Unlock()
	if found != nil {
		s.persistTask(found, 0)
	}
}

// UpdateGoalStatus transitions a goal's status in place.
func (s *Store) UpdateGoalStatus(goalID, status string) {
	s.mu.Lock()
	g, ok := s.goals[goalID]
	if ok {
		g.Status = status
		g.UpdatedAt = time.Now().UTC().Unix()
	}
	s.mu.Unlock()
	if ok {
		s.persistGoal(g)
	}
}

// SetMetadata replaces a goal's opaque metadata blob (spec.md §4.G
// set_metadata), persisted alongside the goal's other fields.
func (s *Store) SetMetadata(goalID string, data []byte) error {
	s.mu.Lock()
	g, ok := s.goals[goalID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("goalstore: goal not found: %s", goalID)
	}
	g.Metadata = data
	g.UpdatedAt = time.Now().UTC().Unix()
	s.mu.Unlock()
	s.persistGoal(g)
	return nil
}

// GetMetadata returns a goal's opaque metadata blob (spec.md §4.G
// get_metadata), or nil if the goal is unknown or has none set.
func (s *Store) GetMetadata(goalID string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.goals[goalID]
	if !ok {
		return nil
	}
	return g.Metadata
}

// AddMessage appends a message to a goal's conversation thread.
func (s *Store) AddMessage(goalID, sender, content string) string {
	msg := &Message{
		ID:        ids.Message(),
		GoalID:    goalID,
		Sender:    sender,
		Content:   content,
		Timestamp: time.Now().UTC().Unix(),
	}
	s.mu.Lock()
	seq := len(s.messages[goalID])
	s.messages[goalID] = append(s.messages[goalID], msg)
	s.mu.Unlock()
	s.persistMessage(msg, seq)
	return msg.ID
}

// GetMessages returns a defensive copy of a goal's messages in order.
func (s *Store) GetMessages(goalID string) []*Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.messages[goalID]
	out := make([]*Message, len(src))
	copy(out, src)
	return out
}

// GetTasks returns a defensive copy of a goal's tasks in order.
func (s *Store) GetTasks(goalID string) []*Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.tasks[goalID]
	out := make([]*Task, len(src))
	copy(out, src)
	return out
}

// GetGoal returns the goal, or nil if unknown.
func (s *Store) GetGoal(goalID string) *Goal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.goals[goalID]
}

// CalculateProgress returns the percentage of a goal's tasks that are
// completed, or 0 if the goal has no tasks.
func (s *Store) CalculateProgress(goalID string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tasks := s.tasks[goalID]
	if len(tasks) == 0 {
		return 0
	}
	var completed int
	for _, t := range tasks {
		if t.Status == TaskCompleted {
			completed++
		}
	}
	return float64(completed) / float64(len(tasks)) * 100
}

// Cancel sets a goal to cancelled and cancels every non-completed task
// within it.
func (s *Store) Cancel(goalID string) error {
	s.mu.Lock()
	g, ok := s.goals[goalID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("goalstore: goal not found: %s", goalID)
	}
	g.Status = GoalCancelled
	g.UpdatedAt = time.Now().UTC().Unix()

	var toCancel []*Task
	for _, t := range s.tasks[goalID] {
		if t.Status != TaskCompleted {
			t.Status = TaskCancelled
			toCancel = append(toCancel, t)
		}
	}
	s.mu.Unlock()

	s.persistGoal(g)
	for _, t := range toCancel {
		s.persistTask(t, 0)
	}
	log.Info().Str("goal_id", goalID).Msg("goal cancelled")
	return nil
}

// ListGoals returns goals matching statusFilter (or all, if empty), sorted
// by priority ascending then created_at descending, with limit/offset
// pagination, plus the total matching count before pagination.
func (s *Store) ListGoals(statusFilter string, limit, offset int) ([]*Goal, int) {
	s.mu.RLock()
	matched := make([]*Goal, 0, len(s.goals))
	for _, g := range s.goals {
		if statusFilter == "" || g.Status == statusFilter {
			matched = append(matched, g)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority < matched[j].Priority
		}
		return matched[i].CreatedAt > matched[j].CreatedAt
	})

	total := len(matched)
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return nil, total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total
}

// GetAllResumableTasks returns every task in {pending, awaiting_input}
// across all goals; any task found in_progress is reset to pending first
// (spec.md §3 restart rule) and included too. The result is sorted by
// created_at then task id so restart rehydration feeds the Task Planner a
// deterministic order (spec.md §4.H, §5) instead of Go's randomized map
// iteration order over goals.
func (s *Store) GetAllResumableTasks() []*Task {
	s.mu.Lock()
	var resumable []*Task
	var toPersist []*Task
	for _, tasks := range s.tasks {
		for _, t := range tasks {
			switch t.Status {
			case TaskPending, TaskAwaitingInput:
				resumable = append(resumable, t)
			case TaskInProgress:
				t.Status = TaskPending
				resumable = append(resumable, t)
				toPersist = append(toPersist, t)
			}
		}
	}
	s.mu.Unlock()

	sort.Slice(resumable, func(i, j int) bool {
		if resumable[i].CreatedAt != resumable[j].CreatedAt {
			return resumable[i].CreatedAt < resumable[j].CreatedAt
		}
		return resumable[i].ID < resumable[j].ID
	})

	for _, t := range toPersist {
		s.persistTask(t, 0)
	}
	return resumable
}

// ActiveGoalCount returns the number of goals not yet in a terminal state.
func (s *Store) ActiveGoalCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	for _, g := range s.goals {
		if !isTerminalGoalStatus(g.Status) {
			n++
		}
	}
	return n
}
