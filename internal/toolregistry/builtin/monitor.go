package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/aios/autonomy-core/internal/toolregistry"
)

const cpuSampleInterval = 500 * time.Millisecond

// RegisterMonitor wires monitor.cpu/memory/disk against gopsutil host
// telemetry, the same library other_examples/manifests/rcourtman-Pulse uses
// for host metrics in a comparable single-process Go service.
func RegisterMonitor(reg *toolregistry.Registry) {
	reg.Register(toolregistry.Definition{Name: "monitor.cpu", Reversible: false, Handler: monitorCPU})
	reg.Register(toolregistry.Definition{Name: "monitor.memory", Reversible: false, Handler: monitorMemory})
	reg.Register(toolregistry.Definition{Name: "monitor.disk", Reversible: false, Handler: monitorDisk})
}

func monitorCPU(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
	percents, err := cpu.PercentWithContext(ctx, cpuSampleInterval, false)
	if err != nil {
		return nil, fmt.Errorf("cpu sample failed: %w", err)
	}
	var overall float64
	if len(percents) > 0 {
		overall = percents[0]
	}
	return json.Marshal(map[string]any{"percent": overall})
}

func monitorMemory(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("memory sample failed: %w", err)
	}
	return json.Marshal(map[string]any{
		"total_bytes": v.Total,
		"used_bytes":  v.Used,
		"percent":     v.UsedPercent,
	})
}

func monitorDisk(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var a struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(input, &a); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	path := a.Path
	if path == "" {
		path = "/"
	}
	u, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("disk sample failed: %w", err)
	}
	return json.Marshal(map[string]any{
		"path":        path,
		"total_bytes": u.Total,
		"used_bytes":  u.Used,
		"percent":     u.UsedPercent,
	})
}
