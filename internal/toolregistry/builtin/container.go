package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aios/autonomy-core/internal/toolregistry"
)

// ContainerSupervisor abstracts the container runtime (Docker, containerd,
// ...); mount/spawn/reap is out of scope per spec.md §1, so only a status
// query is wired.
type ContainerSupervisor interface {
	Status(ctx context.Context, name string) (string, error)
}

// RegisterContainer wires container.status against sup.
func RegisterContainer(reg *toolregistry.Registry, sup ContainerSupervisor) {
	reg.Register(toolregistry.Definition{Name: "container.status", Reversible: false, Handler: containerStatus(sup)})
}

func containerStatus(sup ContainerSupervisor) toolregistry.Handler {
	return func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		var a struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(input, &a); err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}
		status, err := sup.Status(ctx, a.Name)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]string{"name": a.Name, "status": status})
	}
}
