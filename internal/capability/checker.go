// Package capability implements capability-based access control for tool
// execution (spec.md §4.B): every tool call is checked against the
// requesting agent's registered capability set before the Executor runs it.
package capability

import (
	"fmt"

	"github.com/aios/autonomy-core/internal/logging"
)

var log = logging.For("capability")

// RiskLevel classifies the blast radius of a tool operation.
type RiskLevel int

const (
	Low RiskLevel = iota
	Medium
	High
	Critical
)

func (r RiskLevel) String() string {
	switch r {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// Requirement is the set of capabilities a tool pattern demands, plus the
// risk level reported back to callers (e.g. for audit entries).
type Requirement struct {
	ToolPattern  string
	Capabilities []string
	Risk         RiskLevel
}

// Result is the outcome of a single Check call.
type Result struct {
	Allowed bool
	Reason  string
	Risk    RiskLevel
	Missing []string
}

// Checker validates agent capabilities against tool requirements. It is
// built once at startup with the default agent/tool tables and is safe for
// concurrent read-only use thereafter; RegisterAgent mutates it and is only
// expected to run during setup or from the agent router on registration.
type Checker struct {
	agentCaps    map[string]map[string]struct{}
	requirements map[string]Requirement
}

// New builds a Checker pre-seeded with the built-in agents and the full
// tool-to-capability requirement table.
func New() *Checker {
	c := &Checker{
		agentCaps:    make(map[string]map[string]struct{}),
		requirements: make(map[string]Requirement),
	}
	c.registerDefaultRequirements()
	c.registerDefaultAgents()
	return c
}

// allCapabilities is the full capability superset held by the internal
// autonomy-loop agent, which acts on behalf of the AI OS itself.
var allCapabilities = []string{
	"fs_read", "fs_write", "fs_delete", "fs_permissions",
	"process_read", "process_manage",
	"service_read", "service_manage",
	"net_read", "net_write", "net_scan",
	"firewall_read", "firewall_manage",
	"pkg_read", "pkg_manage",
	"sec_read", "sec_manage",
	"monitor_read",
	"hw_read",
	"git_read", "git_write",
	"code_gen",
	"self_read", "self_update",
	"plugin_read", "plugin_manage", "plugin_execute",
	"container_read", "container_manage",
	"email_send",
}

func (c *Checker) registerDefaultAgents() {
	c.RegisterAgent("autonomy-loop", allCapabilities)
	c.RegisterAgent("system-agent", []string{"monitor_read", "service_read", "service_manage", "process_read"})
	c.RegisterAgent("network-agent", []string{"net_read", "net_write", "net_scan", "firewall_read", "firewall_manage"})
	c.RegisterAgent("security-agent", []string{"sec_read", "sec_manage", "net_read", "net_scan", "process_read", "monitor_read", "fs_read"})
	c.RegisterAgent("monitoring-agent", []string{"monitor_read", "net_read", "process_read", "fs_read"})
	c.RegisterAgent("storage-agent", []string{"fs_read", "fs_write", "fs_delete", "fs_permissions", "monitor_read", "process_manage"})
	c.RegisterAgent("package-agent", []string{"pkg_read", "pkg_manage"})
	c.RegisterAgent("learning-agent", []string{"monitor_read", "process_read", "fs_read"})
	c.RegisterAgent("task-agent", allCapabilities)
	c.RegisterAgent("creator-agent", []string{"fs_read", "fs_write", "code_gen", "git_read", "git_write", "process_manage", "plugin_read", "plugin_manage", "plugin_execute"})
	c.RegisterAgent("web-agent", []string{"net_read", "net_write", "fs_read", "fs_write"})
	log.Info().Int("count", 11).Msg("registered default agents")
}

func (c *Checker) registerDefaultRequirements() {
	reqs := []Requirement{
		{"fs.read", []string{"fs_read"}, Low},
		{"fs.list", []string{"fs_read"}, Low},
		{"fs.stat", []string{"fs_read"}, Low},
		{"fs.search", []string{"fs_read"}, Low},
		{"fs.disk_usage", []string{"fs_read"}, Low},
		{"fs.write", []string{"fs_write"}, Medium},
		{"fs.mkdir", []string{"fs_write"}, Medium},
		{"fs.copy", []string{"fs_write"}, Medium},
		{"fs.move", []string{"fs_write"}, Medium},
		{"fs.symlink", []string{"fs_write"}, Medium},
		{"fs.delete", []string{"fs_write", "fs_delete"}, High},
		{"fs.chmod", []string{"fs_write", "fs_permissions"}, High},
		{"fs.chown", []string{"fs_write", "fs_permissions"}, High},

		{"process.list", []string{"process_read"}, Low},
		{"process.info", []string{"process_read"}, Low},
		{"process.spawn", []string{"process_manage"}, Medium},
		{"process.kill", []string{"process_manage"}, High},
		{"process.signal", []string{"process_manage"}, Medium},
		{"process.cgroup", []string{"process_manage"}, High},

		{"service.list", []string{"service_read"}, Low},
		{"service.status", []string{"service_read"}, Low},
		{"service.start", []string{"service_manage"}, Medium},
		{"service.stop", []string{"service_manage"}, High},
		{"service.restart", []string{"service_manage"}, Medium},

		{"net.interfaces", []string{"net_read"}, Low},
		{"net.ping", []string{"net_read"}, Low},
		{"net.dns", []string{"net_read"}, Low},
		{"net.http_get", []string{"net_read"}, Low},
		{"net.port_scan", []string{"net_read", "net_scan"}, Medium},

		{"firewall.rules", []string{"firewall_read"}, Low},
		{"firewall.add_rule", []string{"firewall_manage"}, Critical},
		{"firewall.delete_rule", []string{"firewall_manage"}, Critical},

		{"pkg.list_installed", []string{"pkg_read"}, Low},
		{"pkg.search", []string{"pkg_read"}, Low},
		{"pkg.query", []string{"pkg_read"}, Low},
		{"pkg.install", []string{"pkg_manage"}, High},
		{"pkg.remove", []string{"pkg_manage"}, High},
		{"pkg.update", []string{"pkg_manage"}, High},

		{"sec.check_perms", []string{"sec_read"}, Low},
		{"sec.audit_query", []string{"sec_read"}, Low},
		{"sec.grant", []string{"sec_manage"}, Critical},
		{"sec.revoke", []string{"sec_manage"}, Critical},
		{"sec.audit", []string{"sec_read"}, Low},
		{"sec.scan", []string{"sec_read"}, Medium},
		{"sec.cert_generate", []string{"sec_manage"}, High},
		{"sec.cert_rotate", []string{"sec_manage"}, Critical},
		{"sec.file_integrity", []string{"sec_read"}, Low},
		{"sec.scan_rootkits", []string{"sec_read"}, Medium},

		{"monitor.cpu", []string{"monitor_read"}, Low},
		{"monitor.memory", []string{"monitor_read"}, Low},
		{"monitor.disk", []string{"monitor_read"}, Low},
		{"monitor.network", []string{"monitor_read"}, Low},
		{"monitor.logs", []string{"monitor_read"}, Low},
		{"monitor.ebpf_trace", []string{"monitor_read"}, Medium},
		{"monitor.fs_watch", []string{"monitor_read"}, Low},

		{"hw.info", []string{"hw_read"}, Low},

		{"web.http_request", []string{"net_read", "net_write"}, Medium},
		{"web.scrape", []string{"net_read"}, Low},
		{"web.webhook", []string{"net_write"}, Medium},
		{"web.download", []string{"net_read", "fs_write"}, Medium},
		{"web.api_call", []string{"net_read", "net_write"}, Medium},

		{"git.init", []string{"git_write"}, Low},
		{"git.clone", []string{"git_write", "net_read"}, Medium},
		{"git.add", []string{"git_write"}, Low},
		{"git.commit", []string{"git_write"}, Low},
		{"git.push", []string{"git_write", "net_write"}, High},
		{"git.pull", []string{"git_write", "net_read"}, Medium},
		{"git.branch", []string{"git_write"}, Low},
		{"git.status", []string{"git_read"}, Low},
		{"git.log", []string{"git_read"}, Low},
		{"git.diff", []string{"git_read"}, Low},

		{"code.scaffold", []string{"fs_write", "code_gen"}, Medium},
		{"code.generate", []string{"code_gen"}, Medium},

		{"self.inspect", []string{"self_read"}, Low},
		{"self.health", []string{"self_read"}, Low},
		{"self.update", []string{"self_update"}, Critical},
		{"self.rebuild", []string{"self_update"}, Critical},

		{"container.create", []string{"container_manage"}, High},
		{"container.start", []string{"container_manage"}, Medium},
		{"container.stop", []string{"container_manage"}, Medium},
		{"container.list", []string{"container_read"}, Low},
		{"container.status", []string{"container_read"}, Low},
		{"container.exec", []string{"container_manage"}, High},
		{"container.logs", []string{"container_read"}, Low},

		{"email.send", []string{"email_send"}, Medium},

		{"plugin.create", []string{"plugin_manage", "fs_write"}, High},
		{"plugin.list", []string{"plugin_read"}, Low},
		{"plugin.delete", []string{"plugin_manage"}, High},
		{"plugin.install_deps", []string{"plugin_manage", "pkg_manage"}, High},
		{"plugin.from_template", []string{"plugin_manage", "fs_write"}, Medium},
	}
	for _, r := range reqs {
		c.requirements[r.ToolPattern] = r
	}
}

// RegisterAgent (re)registers the capability set for an agent id, overwriting
// any previous registration. The agent router calls this when an external
// agent registers itself (spec.md §4.I).
func (c *Checker) RegisterAgent(agentID string, capabilities []string) {
	set := make(map[string]struct{}, len(capabilities))
	for _, cap := range capabilities {
		set[cap] = struct{}{}
	}
	c.agentCaps[agentID] = set
	log.Info().Str("agent", agentID).Int("capabilities", len(capabilities)).Msg("registered agent capabilities")
}

// Check validates whether agentID may invoke toolName (spec.md §4.B policy):
//  1. known tool + agent holds every required capability → allow
//  2. unknown tool under the "plugin." namespace → allow iff the agent holds
//     plugin_execute, at Medium risk
//  3. anything else → deny, at Critical risk for unknown non-plugin tools
func (c *Checker) Check(agentID, toolName string) Result {
	req, known := c.requirements[toolName]
	if !known {
		if hasPrefix(toolName, "plugin.") {
			if c.agentHas(agentID, "plugin_execute") {
				return Result{
					Allowed: true,
					Reason:  "dynamic plugin tool — agent has plugin_execute capability",
					Risk:    Medium,
				}
			}
			return Result{
				Allowed: false,
				Reason:  fmt.Sprintf("dynamic plugin tool %s requires plugin_execute capability", toolName),
				Risk:    Medium,
				Missing: []string{"plugin_execute"},
			}
		}
		log.Warn().Str("tool", toolName).Msg("no capability requirement defined")
		return Result{
			Allowed: false,
			Reason:  fmt.Sprintf("no capability requirement defined for tool: %s", toolName),
			Risk:    Critical,
		}
	}

	caps, registered := c.agentCaps[agentID]
	if !registered {
		log.Warn().Str("agent", agentID).Msg("agent has no registered capabilities")
		return Result{
			Allowed: false,
			Reason:  fmt.Sprintf("agent %s has no registered capabilities", agentID),
			Risk:    req.Risk,
			Missing: req.Capabilities,
		}
	}

	var missing []string
	for _, cap := range req.Capabilities {
		if _, ok := caps[cap]; !ok {
			missing = append(missing, cap)
		}
	}
	if len(missing) == 0 {
		return Result{Allowed: true, Reason: "all required capabilities present", Risk: req.Risk}
	}
	return Result{
		Allowed: false,
		Reason:  fmt.Sprintf("agent %s missing capabilities: %v", agentID, missing),
		Risk:    req.Risk,
		Missing: missing,
	}
}

// RiskLevel returns the configured risk level for a known tool, or Critical
// for any tool without a registered requirement.
func (c *Checker) RiskLevel(toolName string) RiskLevel {
	if req, ok := c.requirements[toolName]; ok {
		return req.Risk
	}
	return Critical
}

func (c *Checker) agentHas(agentID, cap string) bool {
	caps, ok := c.agentCaps[agentID]
	if !ok {
		return false
	}
	_, ok = caps[cap]
	return ok
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
