package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"github.com/aios/autonomy-core/internal/toolregistry"
)

const pingTimeout = 5 * time.Second

// RegisterNet wires net.ping/dns against the host network stack.
func RegisterNet(reg *toolregistry.Registry) {
	reg.Register(toolregistry.Definition{Name: "net.ping", Reversible: false, Handler: netPing})
	reg.Register(toolregistry.Definition{Name: "net.dns", Reversible: false, Handler: netDNS})
}

func netPing(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var a struct {
		Host  string `json:"host"`
		Count int    `json:"count"`
	}
	if err := json.Unmarshal(input, &a); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if a.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	count := a.Count
	if count <= 0 {
		count = 3
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout*time.Duration(count))
	defer cancel()

	countFlag := "-c"
	if runtime.GOOS == "windows" {
		countFlag = "-n"
	}
	cmd := exec.CommandContext(pingCtx, "ping", countFlag, strconv.Itoa(count), a.Host)
	output, err := cmd.CombinedOutput()
	result := map[string]any{"output": string(output), "reachable": err == nil}
	return json.Marshal(result)
}

func netDNS(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var a struct {
		Host string `json:"host"`
	}
	if err := json.Unmarshal(input, &a); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if a.Host == "" {
		return nil, fmt.Errorf("host is required")
	}

	resolver := &net.Resolver{}
	addrs, err := resolver.LookupHost(ctx, a.Host)
	if err != nil {
		return nil, fmt.Errorf("dns lookup failed: %w", err)
	}
	return json.Marshal(map[string]any{"host": a.Host, "addresses": addrs})
}
