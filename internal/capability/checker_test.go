package capability

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheck_AllowedWithCapability(t *testing.T) {
	c := New()
	c.RegisterAgent("agent-1", []string{"fs_read"})

	result := c.Check("agent-1", "fs.read")
	require.True(t, result.Allowed)
	require.Empty(t, result.Missing)
}

func TestCheck_DeniedMissingCapability(t *testing.T) {
	c := New()
	c.RegisterAgent("agent-1", []string{"fs_read"})

	result := c.Check("agent-1", "fs.write")
	require.False(t, result.Allowed)
	require.Contains(t, result.Missing, "fs_write")
}

func TestCheck_UnknownAgentDenied(t *testing.T) {
	c := New()
	result := c.Check("unknown-agent", "fs.read")
	require.False(t, result.Allowed)
}

func TestCheck_UnknownToolDeniedAtCriticalRisk(t *testing.T) {
	c := New()
	c.RegisterAgent("agent-1", []string{"fs_read"})

	result := c.Check("agent-1", "unknown.tool")
	require.False(t, result.Allowed)
	require.Equal(t, Critical, result.Risk)
}

func TestRiskLevel(t *testing.T) {
	c := New()
	require.Equal(t, Low, c.RiskLevel("fs.read"))
	require.Equal(t, High, c.RiskLevel("fs.delete"))
	require.Equal(t, Critical, c.RiskLevel("firewall.add_rule"))
	require.Equal(t, Critical, c.RiskLevel("unknown"))
}

func TestCheck_MultipleRequiredCapabilities(t *testing.T) {
	c := New()
	c.RegisterAgent("agent-1", []string{"fs_write"})

	result := c.Check("agent-1", "fs.delete")
	require.False(t, result.Allowed)
	require.Contains(t, result.Missing, "fs_delete")

	c.RegisterAgent("agent-2", []string{"fs_write", "fs_delete"})
	result = c.Check("agent-2", "fs.delete")
	require.True(t, result.Allowed)
}

func TestCheck_AutonomyLoopHasAllCapabilities(t *testing.T) {
	c := New()
	for _, tool := range []string{"fs.read", "fs.delete", "pkg.install", "plugin.create", "self.update", "sec.grant", "container.create", "monitor.ebpf_trace", "process.cgroup"} {
		result := c.Check("autonomy-loop", tool)
		require.Truef(t, result.Allowed, "expected autonomy-loop allowed for %s: %s", tool, result.Reason)
	}
}

func TestCheck_PluginFallbackAllowedWithExecuteCapability(t *testing.T) {
	c := New()
	c.RegisterAgent("agent-x", []string{"plugin_execute"})

	result := c.Check("agent-x", "plugin.my_custom_tool")
	require.True(t, result.Allowed)
	require.Equal(t, Medium, result.Risk)
}

func TestCheck_PluginFallbackDeniedWithoutExecuteCapability(t *testing.T) {
	c := New()
	c.RegisterAgent("agent-y", []string{"fs_read"})

	result := c.Check("agent-y", "plugin.some_tool")
	require.False(t, result.Allowed)
	require.Contains(t, result.Missing, "plugin_execute")
}

func TestRiskLevel_SecurityTools(t *testing.T) {
	c := New()
	require.Equal(t, Critical, c.RiskLevel("sec.grant"))
	require.Equal(t, Critical, c.RiskLevel("sec.revoke"))
	require.Equal(t, Low, c.RiskLevel("sec.audit"))
	require.Equal(t, Medium, c.RiskLevel("sec.scan"))
	require.Equal(t, High, c.RiskLevel("sec.cert_generate"))
	require.Equal(t, Critical, c.RiskLevel("sec.cert_rotate"))
}

func TestRiskLevel_ContainerTools(t *testing.T) {
	c := New()
	require.Equal(t, High, c.RiskLevel("container.create"))
	require.Equal(t, Medium, c.RiskLevel("container.start"))
	require.Equal(t, Low, c.RiskLevel("container.list"))
	require.Equal(t, High, c.RiskLevel("container.exec"))
}

func TestRiskLevelString(t *testing.T) {
	require.Equal(t, "low", Low.String())
	require.Equal(t, "medium", Medium.String())
	require.Equal(t, "high", High.String())
	require.Equal(t, "critical", Critical.String())
}
