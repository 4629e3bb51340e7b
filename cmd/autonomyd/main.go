// Command autonomyd is the autonomy core's process entrypoint: it wires
// every component built under internal/ into one running service (the
// Autonomy Loop ticking in the background, the management HTTP surface in
// the foreground), mirroring the teacher's cmd/omega/main.go wiring style —
// env-driven construction, fail-fast on missing required dependencies,
// best-effort/log-and-continue on optional ones.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aios/autonomy-core/internal/agentrouter"
	"github.com/aios/autonomy-core/internal/audit"
	"github.com/aios/autonomy-core/internal/autonomy"
	"github.com/aios/autonomy-core/internal/backup"
	"github.com/aios/autonomy-core/internal/budget"
	"github.com/aios/autonomy-core/internal/capability"
	"github.com/aios/autonomy-core/internal/config"
	"github.com/aios/autonomy-core/internal/decisionlog"
	"github.com/aios/autonomy-core/internal/goalstore"
	"github.com/aios/autonomy-core/internal/inference"
	"github.com/aios/autonomy-core/internal/inference/providers"
	"github.com/aios/autonomy-core/internal/logging"
	"github.com/aios/autonomy-core/internal/management"
	"github.com/aios/autonomy-core/internal/plugin"
	"github.com/aios/autonomy-core/internal/resultagg"
	"github.com/aios/autonomy-core/internal/storage"
	"github.com/aios/autonomy-core/internal/taskplanner"
	"github.com/aios/autonomy-core/internal/toolregistry"
	"github.com/aios/autonomy-core/internal/toolregistry/builtin"
)

func main() {
	config.LoadEnv()
	logging.Init()

	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║           autonomy-core               ║")
	fmt.Println("║   goals → tasks → tools, unattended   ║")
	fmt.Println("╚══════════════════════════════════════╝")

	workspaceDir := os.Getenv("WORKSPACE_DIR")
	if workspaceDir == "" {
		workspaceDir, _ = os.Getwd()
	}
	if info, err := os.Stat(workspaceDir); err != nil || !info.IsDir() {
		log.Fatalf("WORKSPACE_DIR %q does not exist or is not a directory", workspaceDir)
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = filepath.Join(workspaceDir, "autonomy.db")
	}
	db, err := storage.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open storage at %q: %v", dbPath, err)
	}
	defer db.Close()

	goals, err := goalstore.Open(db)
	if err != nil {
		log.Fatalf("failed to open goal store: %v", err)
	}
	ledger, err := audit.Open(db)
	if err != nil {
		log.Fatalf("failed to open audit ledger: %v", err)
	}

	budgets := parseBudgets(os.Getenv("PROVIDER_BUDGETS"))
	budgetMgr, err := budget.New(db, budgets)
	if err != nil {
		log.Fatalf("failed to open budget manager: %v", err)
	}

	planner := taskplanner.New()
	router := agentrouter.New()
	agg := resultagg.New()
	dlog := decisionlog.New()
	checker := capability.New()

	backupDir := os.Getenv("BACKUP_DIR")
	if backupDir == "" {
		backupDir = filepath.Join(workspaceDir, "backups")
	}
	backupMgr := backup.New(backupDir)
	purgeEvery, maxAge := time.Hour, 24*time.Hour
	if d, err := time.ParseDuration(os.Getenv("BACKUP_PURGE_INTERVAL")); err == nil && d > 0 {
		purgeEvery = d
	}
	if d, err := time.ParseDuration(os.Getenv("BACKUP_MAX_AGE")); err == nil && d > 0 {
		maxAge = d
	}
	go func() {
		for range time.Tick(purgeEvery) {
			backupMgr.CleanupOld(maxAge)
		}
	}()

	registry := toolregistry.NewRegistry()
	builtin.RegisterFS(registry, workspaceDir)
	builtin.RegisterGit(registry, workspaceDir)
	builtin.RegisterProcess(registry)
	builtin.RegisterNet(registry)
	builtin.RegisterMonitor(registry)
	builtin.RegisterSec(registry)
	builtin.RegisterService(registry, systemdSupervisor{})
	builtin.RegisterContainer(registry, dockerSupervisor{})
	builtin.RegisterPkg(registry, aptPackageManager{})
	builtin.RegisterEmail(registry, builtin.NoopEmailSender{})

	pluginDir := os.Getenv("PLUGIN_DIR")
	if pluginDir == "" {
		pluginDir = filepath.Join(workspaceDir, "plugins")
	}
	pluginMgr := plugin.NewManager(pluginDir)
	registry.Register(toolregistry.Definition{
		Name:       "plugin.create",
		Reversible: false,
		Handler:    plugin.CreateHandler(pluginDir),
	})

	executor := toolregistry.NewExecutor(registry, checker, backupMgr, ledger, pluginMgr)
	fmt.Printf("tools: %d registered\n", len(registry.List()))

	inferRouter := buildInferenceRouter(budgetMgr)

	registerer := prometheus.DefaultRegisterer

	// stateLock is the single read/write latch spec.md §5 requires: the
	// autonomy loop holds it exclusively for a full tick, and the
	// management HTTP surface below shares it so a goal/task/agent mutation
	// from an HTTP handler never interleaves with a tick in flight.
	var stateLock sync.RWMutex
	orc := autonomy.New(goals, planner, router, agg, dlog, executor, inferRouter, registerer, &stateLock)

	tickInterval := autonomy.DefaultTickInterval
	if v := os.Getenv("TICK_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			tickInterval = time.Duration(n) * time.Millisecond
		} else {
			log.Printf("invalid TICK_INTERVAL_MS=%q, using default %v", v, tickInterval)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go orc.Run(ctx, tickInterval)
	fmt.Printf("autonomy loop: tick every %v\n", tickInterval)

	mgmtServer := management.NewServer(goals, planner, router, registerer, &stateLock)
	if err := mgmtServer.Start(); err != nil {
		log.Fatalf("management server error: %v", err)
	}
}

// parseBudgets reads PROVIDER_BUDGETS as comma-separated provider=amount
// pairs, e.g. "remote-a=50,remote-b=20". Unparseable entries are skipped
// with a warning rather than failing startup.
func parseBudgets(raw string) map[string]float64 {
	budgets := make(map[string]float64)
	if raw == "" {
		return budgets
	}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			log.Printf("invalid PROVIDER_BUDGETS entry %q, skipping", pair)
			continue
		}
		amount, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			log.Printf("invalid PROVIDER_BUDGETS amount %q for %q, skipping", v, k)
			continue
		}
		budgets[strings.TrimSpace(k)] = amount
	}
	return budgets
}

// buildInferenceRouter constructs the four provider adapters spec.md §4.E
// names concretely. Remote adapters never fail construction — they just
// report Available()==false when unconfigured — but the local runtime
// adapter can fail to build its HTTP client, which is fatal since every
// intelligence level ultimately falls back to it.
func buildInferenceRouter(budgetMgr *budget.Manager) *inference.Router {
	local, err := providers.NewLocal()
	if err != nil {
		log.Fatalf("failed to initialize local inference provider: %v", err)
	}
	all := []inference.Provider{
		local,
		providers.NewAnthropic(),
		providers.NewOpenAI(),
		providers.NewBedrock(),
	}
	return inference.NewRouter(all, budgetMgr)
}
