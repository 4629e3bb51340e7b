package autonomy

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/aios/autonomy-core/internal/agentrouter"
	"github.com/aios/autonomy-core/internal/audit"
	"github.com/aios/autonomy-core/internal/backup"
	"github.com/aios/autonomy-core/internal/budget"
	"github.com/aios/autonomy-core/internal/capability"
	"github.com/aios/autonomy-core/internal/decisionlog"
	"github.com/aios/autonomy-core/internal/goalstore"
	"github.com/aios/autonomy-core/internal/inference"
	"github.com/aios/autonomy-core/internal/resultagg"
	"github.com/aios/autonomy-core/internal/storage"
	"github.com/aios/autonomy-core/internal/taskplanner"
	"github.com/aios/autonomy-core/internal/toolregistry"
)

// fakeProvider is a scripted inference.Provider, letting each test dictate
// exactly what the model "said" without any network dependency.
type fakeProvider struct {
	name      string
	available bool
	text      string
	err       error
}

func (p *fakeProvider) Name() string      { return p.name }
func (p *fakeProvider) Available() bool   { return p.available }
func (p *fakeProvider) Infer(ctx context.Context, req inference.Request) (inference.Result, error) {
	if p.err != nil {
		return inference.Result{}, p.err
	}
	return inference.Result{Text: p.text, TokensUsed: 10, ModelUsed: p.name + "-model"}, nil
}

type testHarness struct {
	orc     *Orchestrator
	goals   *goalstore.Store
	planner *taskplanner.Planner
}

func newHarness(t *testing.T, responseText string) *testHarness {
	t.Helper()
	db, err := storage.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	goals, err := goalstore.Open(db)
	require.NoError(t, err)

	planner := taskplanner.New()
	router := agentrouter.New()
	agg := resultagg.New()
	dlog := decisionlog.New()

	ledger, err := audit.Open(db)
	require.NoError(t, err)
	checker := capability.New()
	checker.RegisterAgent(autonomyAgentID, []string{"fs_read", "fs_write"})
	backupMgr := backup.New(t.TempDir())
	reg := toolregistry.NewRegistry()
	reg.Register(toolregistry.Definition{
		Name:       "fs.read",
		Reversible: false,
		Handler: func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			return json.RawMessage(`{"content":"ok"}`), nil
		},
	})
	exec := toolregistry.NewExecutor(reg, checker, backupMgr, ledger, nil)

	budgetMgr, err := budget.New(db, map[string]float64{})
	require.NoError(t, err)
	local := &fakeProvider{name: inference.Local, available: true, text: responseText}
	inferRouter := inference.NewRouter([]inference.Provider{local}, budgetMgr)

	orc := New(goals, planner, router, agg, dlog, exec, inferRouter, prometheus.NewRegistry(), nil)
	return &testHarness{orc: orc, goals: goals, planner: planner}
}

func (h *testHarness) submitGoal(t *testing.T, description string) string {
	t.Helper()
	goalID := h.goals.Submit(description, 1, "test")
	tasks := h.planner.DecomposeGoal(goalID, description)
	require.NotEmpty(t, tasks)
	h.goals.AddTasks(goalID, tasks)
	return goalID
}

func TestTick_NoActiveGoalsIsNoop(t *testing.T) {
	h := newHarness(t, "")
	h.orc.Tick(context.Background())
}

func TestTick_ReactiveTaskCompletesViaHeuristic(t *testing.T) {
	h := newHarness(t, "")
	goalID := h.submitGoal(t, "check service status")

	h.orc.Tick(context.Background())

	goal := h.goals.GetGoal(goalID)
	require.Equal(t, goalstore.GoalCompleted, goal.Status)
	tasks := h.goals.GetTasks(goalID)
	require.Len(t, tasks, 1)
	require.Equal(t, goalstore.TaskCompleted, tasks[0].Status)
}

func TestTick_OperationalTaskWithToolCallCompletes(t *testing.T) {
	resp := `{"reasoning":"reading the file","tool_calls":[{"tool":"fs.read","input":{"path":"a.txt"}}]}`
	h := newHarness(t, resp)
	goalID := h.submitGoal(t, "read file a.txt and summarize it")

	h.orc.Tick(context.Background())

	goal := h.goals.GetGoal(goalID)
	require.Equal(t, goalstore.GoalCompleted, goal.Status)

	msgs := h.goals.GetMessages(goalID)
	var sawCompletion bool
	for _, m := range msgs {
		if m.Sender == goalstore.SenderSystem && m.Content == "Task completed" {
			sawCompletion = true
		}
	}
	require.True(t, sawCompletion)
}

func TestTick_ZeroToolCallsAwaitsInput(t *testing.T) {
	resp := `{"needs_clarification":true,"questions":["Which directory?"]}`
	h := newHarness(t, resp)
	goalID := h.submitGoal(t, "summarize the quarterly report data")

	h.orc.Tick(context.Background())

	tasks := h.goals.GetTasks(goalID)
	require.Len(t, tasks, 1)
	require.Equal(t, goalstore.TaskAwaitingInput, tasks[0].Status)

	goal := h.goals.GetGoal(goalID)
	require.NotEqual(t, goalstore.GoalCompleted, goal.Status)
}

type boomError struct{}

func (boomError) Error() string { return "boom" }

func TestTick_InferenceFailureFailsTask(t *testing.T) {
	h := newHarness(t, "")
	goalID := h.goals.Submit("install nginx and verify it", 1, "test")
	tasks := h.planner.DecomposeGoal(goalID, "install nginx and verify it")
	h.goals.AddTasks(goalID, tasks)

	db2, err := storage.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { db2.Close() })
	budgetMgr, err := budget.New(db2, map[string]float64{})
	require.NoError(t, err)

	failing := &fakeProvider{name: inference.Local, available: true, err: boomError{}}
	h.orc.Inference = inference.NewRouter([]inference.Provider{failing}, budgetMgr)

	h.orc.Tick(context.Background())

	goal := h.goals.GetGoal(goalID)
	require.NotEqual(t, goalstore.GoalCompleted, goal.Status)
	gotTasks := h.goals.GetTasks(goalID)
	require.Equal(t, goalstore.TaskFailed, gotTasks[0].Status)
}
