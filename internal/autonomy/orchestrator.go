package autonomy

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aios/autonomy-core/internal/agentrouter"
	"github.com/aios/autonomy-core/internal/core"
	"github.com/aios/autonomy-core/internal/decisionlog"
	"github.com/aios/autonomy-core/internal/goalstore"
	"github.com/aios/autonomy-core/internal/inference"
	"github.com/aios/autonomy-core/internal/logging"
	"github.com/aios/autonomy-core/internal/resultagg"
	"github.com/aios/autonomy-core/internal/toolregistry"
)

var log = logging.For("autonomy")

// DefaultTickInterval is the driver's wake cadence (spec.md §4.K: "default
// 500 ms").
const DefaultTickInterval = 500 * time.Millisecond

// Orchestrator is the single owned aggregate spec.md §9 calls out under
// "Global mutable state": one struct holding every component the tick
// touches, guarded by one read/write latch acquired exclusively for the
// full tick — directly modeled on the teacher's AgentState discipline ("NOT
// goroutine-safe... guaranteed by Flow.Run", internal/agent/state.go),
// generalized from one flow run to one tick. The latch is a *sync.RWMutex,
// not a private sync.Mutex, because spec.md §5 requires the management HTTP
// surface to serialize against the driver "via the same read/write
// discipline" — callers share this exact lock via WriteLock.
type Orchestrator struct {
	mu *sync.RWMutex

	Goals       *goalstore.Store
	Planner     taskPlanner
	AgentRouter *agentrouter.Router
	Aggregator  *resultagg.Aggregator
	DecisionLog *decisionlog.Logger
	Executor    *toolregistry.Executor
	Inference   *inference.Router

	metrics *Metrics
	flow    core.Workflow[TickState]
}

// taskPlanner is the subset of *taskplanner.Planner the orchestrator needs,
// narrowed to an interface so tests can substitute a fake without wiring a
// full planner.
type taskPlanner interface {
	NextTask() *goalstore.Task
	MarkInProgress(taskID string)
	MarkAwaitingInput(taskID string)
	CompleteTask(taskID string, output []byte)
	FailTask(taskID, errMsg string)
	PendingTaskCount() int
}

// New wires every component into one Orchestrator and builds its tick flow.
// registerer may be nil, in which case prometheus.DefaultRegisterer is used.
// lock may be nil, in which case the Orchestrator gets a private lock of its
// own; pass a shared *sync.RWMutex when another component (the management
// HTTP surface) must serialize its own writes against this driver's ticks.
func New(
	goals *goalstore.Store,
	planner taskPlanner,
	router *agentrouter.Router,
	agg *resultagg.Aggregator,
	dlog *decisionlog.Logger,
	exec *toolregistry.Executor,
	inf *inference.Router,
	registerer prometheus.Registerer,
	lock *sync.RWMutex,
) *Orchestrator {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	if lock == nil {
		lock = &sync.RWMutex{}
	}
	orc := &Orchestrator{
		mu:          lock,
		Goals:       goals,
		Planner:     planner,
		AgentRouter: router,
		Aggregator:  agg,
		DecisionLog: dlog,
		Executor:    exec,
		Inference:   inf,
		metrics:     NewMetrics(registerer),
	}
	orc.flow = buildFlow(orc)
	return orc
}

// WriteLock returns the orchestrator's read/write latch, so callers that
// mutate goal, task, or agent state outside of a tick (the management HTTP
// surface) can serialize against Tick using the exact same lock (spec.md
// §5).
func (orc *Orchestrator) WriteLock() *sync.RWMutex {
	return orc.mu
}

// toolNames lists every tool available to the prompt builder, in-process
// and plugin-backed alike.
func (orc *Orchestrator) toolNames() []string {
	if orc.Executor == nil {
		return nil
	}
	return orc.Executor.Registry().List()
}

// Tick runs exactly one iteration of the autonomy loop under the exclusive
// write latch spec.md §5 requires. Ticks never overlap: a caller invoking
// Tick concurrently from two goroutines simply serializes on mu.
func (orc *Orchestrator) Tick(ctx context.Context) {
	orc.mu.Lock()
	defer orc.mu.Unlock()

	start := time.Now()
	defer func() { orc.metrics.observeTick(time.Since(start)) }()

	orc.metrics.ActiveGoals.Set(float64(orc.Goals.ActiveGoalCount()))
	orc.metrics.PendingTasks.Set(float64(orc.Planner.PendingTaskCount()))

	if orc.Goals.ActiveGoalCount() == 0 {
		return
	}

	state := &TickState{}
	if ctx.Err() != nil {
		return
	}
	orc.flow.Run(ctx, state)
}

// Run drives the tick loop on a timer until ctx is cancelled (spec.md §4.K
// scheduling model / §5 cancellation). tickInterval <= 0 uses
// DefaultTickInterval.
func (orc *Orchestrator) Run(ctx context.Context, tickInterval time.Duration) {
	if tickInterval <= 0 {
		tickInterval = DefaultTickInterval
	}
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	log.Info().Dur("interval", tickInterval).Msg("autonomy loop starting")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("autonomy loop stopped")
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			orc.Tick(ctx)
		}
	}
}

// settleGoals implements spec.md §4.K step 8: after the tick's main work,
// promote pending goals with partial progress and close out fully-completed
// ones.
func (orc *Orchestrator) settleGoals() {
	pending, _ := orc.Goals.ListGoals(goalstore.GoalPending, 1<<30, 0)
	inProgress, _ := orc.Goals.ListGoals(goalstore.GoalInProgress, 1<<30, 0)

	for _, g := range append(pending, inProgress...) {
		progress := orc.Goals.CalculateProgress(g.ID)
		switch {
		case progress >= 100:
			orc.Goals.UpdateGoalStatus(g.ID, goalstore.GoalCompleted)
			orc.DecisionLog.LogDecision("goal_completion:"+g.ID, nil, "completed", "all tasks completed", "", "")
			orc.Aggregator.ClearGoal(g.ID)
		case progress > 0 && g.Status == goalstore.GoalPending:
			orc.Goals.UpdateGoalStatus(g.ID, goalstore.GoalInProgress)
		}
	}
}
