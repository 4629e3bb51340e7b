// Package toolregistry implements the Tool Registry & Executor (spec.md
// §4.D): every tool namespace is wired as an in-process
// `bytes → result` handler, dispatched through a capability check,
// pre-execution backup, and append-only audit entry.
package toolregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aios/autonomy-core/internal/audit"
	"github.com/aios/autonomy-core/internal/backup"
	"github.com/aios/autonomy-core/internal/capability"
	"github.com/aios/autonomy-core/internal/ids"
	"github.com/aios/autonomy-core/internal/logging"
)

var log = logging.For("toolregistry")

// Handler executes one tool call against raw JSON input, returning raw JSON
// output. It is the "dynamic dispatch" closure shape spec.md §9 mandates —
// every namespace handler, built-in or plugin-backed, has this shape.
type Handler func(ctx context.Context, input json.RawMessage) (json.RawMessage, error)

// Definition describes one registered tool: its handler plus the metadata
// the Executor's pipeline needs (reversibility drives the backup step).
type Definition struct {
	Name       string
	Reversible bool
	Handler    Handler
}

// Registry holds the handler table. Safe for concurrent use; Register is
// expected at startup and plugin rescans, Get/List during execution.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Definition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Definition)}
}

// Register adds or overwrites a tool definition.
func (r *Registry) Register(def Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[def.Name]; exists {
		log.Warn().Str("tool", def.Name).Msg("overwriting existing tool registration")
	}
	r.tools[def.Name] = def
}

// Unregister removes a tool definition by name. The executor and the plugin
// rescan do not call it; a rescan only adds or overwrites entries.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get retrieves a tool definition by name.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.tools[name]
	return d, ok
}

// List returns all registered tool names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ChainLink is one post-success plugin chain target: the next tool to
// invoke and the input it should receive (spec.md §4.D step 6).
type ChainLink struct {
	ToolName string
	Input    json.RawMessage
}

// PluginResolver is the executor's view of the plugin subsystem
// (internal/plugin), kept as an interface here so toolregistry never
// imports plugin — plugin imports toolregistry instead.
type PluginResolver interface {
	// Resolve returns the subprocess-backed handler for a plugin.<x> tool
	// name not found in the in-process registry, if a matching script
	// exists.
	Resolve(toolName string) (Handler, bool)
	// NextLinks returns the chained tool calls triggered by a successful
	// execution of toolName, given its original input and output.
	NextLinks(toolName string, input, output json.RawMessage) ([]ChainLink, error)
	// Rescan is invoked after the plugin-creation meta-tool succeeds.
	Rescan(reg *Registry) error
}

// pluginCreateToolName is the meta-tool whose success triggers a rescan
// (spec.md §4.D step 6).
const pluginCreateToolName = "plugin.create"

// Executor runs tools through the full pipeline: validate → check
// permissions → backup → execute → audit (spec.md §4.D).
type Executor struct {
	registry  *Registry
	checker   *capability.Checker
	backupMgr *backup.Manager
	ledger    *audit.Ledger
	plugins   PluginResolver
}

// Registry returns the underlying tool table, e.g. so callers can list
// registered tool names for a prompt without duplicating the registration.
func (e *Executor) Registry() *Registry { return e.registry }

// NewExecutor wires a Registry to the capability checker, backup manager,
// and audit ledger it must consult on every call. plugins may be nil if the
// deployment has no plugin subsystem wired.
func NewExecutor(registry *Registry, checker *capability.Checker, backupMgr *backup.Manager, ledger *audit.Ledger, plugins PluginResolver) *Executor {
	return &Executor{registry: registry, checker: checker, backupMgr: backupMgr, ledger: ledger, plugins: plugins}
}

// ExecuteRequest is one inbound tool invocation.
type ExecuteRequest struct {
	ToolName  string
	AgentID   string
	TaskID    string
	InputJSON json.RawMessage
}

// ExecuteResponse is the pipeline's outcome.
type ExecuteResponse struct {
	ExecutionID string
	Success     bool
	OutputJSON  json.RawMessage
	Error       string
	DurationMS  int64
}

// Execute runs the five-step pipeline for one tool call.
func (e *Executor) Execute(ctx context.Context, req ExecuteRequest) ExecuteResponse {
	executionID := ids.Execution()
	start := time.Now()

	// 1. Validate: tool must exist in-process, or resolve to a plugin
	// script fallback.
	def, ok := e.registry.Get(req.ToolName)
	var handler Handler
	if ok {
		handler = def.Handler
	} else if e.plugins != nil {
		if pluginHandler, resolved := e.plugins.Resolve(req.ToolName); resolved {
			handler = pluginHandler
			ok = true
		}
	}
	if !ok {
		resp := ExecuteResponse{
			ExecutionID: executionID,
			Success:     false,
			Error:       fmt.Sprintf("unknown tool: %s", req.ToolName),
			DurationMS:  time.Since(start).Milliseconds(),
		}
		e.record(executionID, req, resp)
		return resp
	}

	// 2. Check permissions.
	check := e.checker.Check(req.AgentID, req.ToolName)
	if !check.Allowed {
		resp := ExecuteResponse{
			ExecutionID: executionID,
			Success:     false,
			Error:       fmt.Sprintf("permission denied: %s", check.Reason),
			DurationMS:  time.Since(start).Milliseconds(),
		}
		e.record(executionID, req, resp)
		return resp
	}

	// 3. Pre-execution backup for reversible tools.
	var backupID string
	if def.Reversible {
		backupID = e.backupMgr.CreateBackup(executionID, req.ToolName, req.InputJSON)
	}

	// 4. Execute.
	output, err := handler(ctx, req.InputJSON)
	resp := ExecuteResponse{
		ExecutionID: executionID,
		DurationMS:  time.Since(start).Milliseconds(),
	}
	if err != nil {
		resp.Success = false
		resp.Error = err.Error()
		if backupID != "" {
			if _, rbErr := e.backupMgr.Rollback(executionID); rbErr != nil {
				log.Warn().Err(rbErr).Str("execution_id", executionID).Msg("rollback after failed execution did not complete")
			}
		}
	} else {
		resp.Success = true
		resp.OutputJSON = output
	}

	// 5. Audit — every accepted call produces exactly one entry.
	e.record(executionID, req, resp)

	// 6. Post-success side effects: plugin-creation rescan, plugin chaining.
	if resp.Success && e.plugins != nil {
		if req.ToolName == pluginCreateToolName {
			if err := e.plugins.Rescan(e.registry); err != nil {
				log.Warn().Err(err).Msg("plugin rescan after plugin.create failed")
			}
		}
		e.runChain(ctx, req, resp)
	}

	return resp
}

// runChain follows a plugin's next_plugins chain, if any. Chain failures do
// not unwind earlier successes; each link is its own audited execution
// (spec.md §4.D step 6).
func (e *Executor) runChain(ctx context.Context, req ExecuteRequest, resp ExecuteResponse) {
	links, err := e.plugins.NextLinks(req.ToolName, req.InputJSON, resp.OutputJSON)
	if err != nil {
		log.Warn().Err(err).Str("tool", req.ToolName).Msg("could not compute plugin chain links")
		return
	}
	for _, link := range links {
		e.Execute(ctx, ExecuteRequest{
			ToolName:  link.ToolName,
			AgentID:   req.AgentID,
			TaskID:    req.TaskID,
			InputJSON: link.Input,
		})
	}
}

func (e *Executor) record(executionID string, req ExecuteRequest, resp ExecuteResponse) {
	reason := resp.Error
	if reason == "" {
		reason = "ok"
	}
	e.ledger.Record(executionID, req.ToolName, req.AgentID, req.TaskID, reason, resp.Success, resp.DurationMS)
}
