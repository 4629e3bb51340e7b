// Package goalstore fronts the durable goals/tasks/goal_messages tables
// with an in-memory cache (spec.md §3, §4.G), the same RWMutex-guarded map
// idiom the teacher uses for its session store, generalized from ephemeral
// chat sessions to durable goal/task state.
package goalstore

// Goal status values (spec.md §3). Transitions form a DAG: pending →
// in_progress → {completed|failed|cancelled}; terminal states are never
// mutated again except by pruning.
const (
	GoalPending    = "pending"
	GoalInProgress = "in_progress"
	GoalCompleted  = "completed"
	GoalFailed     = "failed"
	GoalCancelled  = "cancelled"
)

// Task status values (spec.md §3).
const (
	TaskPending       = "pending"
	TaskInProgress    = "in_progress"
	TaskAwaitingInput = "awaiting_input"
	TaskCompleted     = "completed"
	TaskFailed        = "failed"
	TaskCancelled     = "cancelled"
)

// Message senders (spec.md §3).
const (
	SenderUser   = "user"
	SenderAI     = "ai"
	SenderSystem = "system"
)

// Goal is the top-level unit of work a user or scheduler submits.
type Goal struct {
	ID          string
	Description string
	Priority    int
	Source      string
	Status      string
	CreatedAt   int64
	UpdatedAt   int64
	Metadata    []byte // opaque; recognized key "preferred_provider" -> string
}

// Task is one step of a goal's decomposition, tracked as a node in a DAG via
// DependsOn.
type Task struct {
	ID                string
	GoalID            string
	Description       string
	IntelligenceLevel string
	RequiredTools     []string
	DependsOn         []string
	Status            string
	InputJSON         []byte
	OutputJSON        []byte
	AssignedAgent     string
	CreatedAt         int64
	StartedAt         int64
	CompletedAt       int64
	Error             string
}

// Message is one entry in a goal's append-only conversation thread.
type Message struct {
	ID        string
	GoalID    string
	Sender    string
	Content   string
	Timestamp int64
}

func isTerminalGoalStatus(status string) bool {
	switch status {
	case GoalCompleted, GoalFailed, GoalCancelled:
		return true
	default:
		return false
	}
}
