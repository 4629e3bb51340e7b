package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aios/autonomy-core/internal/toolregistry"
)

// ServiceSupervisor abstracts the real init daemon (systemd, launchd, ...),
// a named out-of-scope external collaborator per spec.md §1. Production
// wiring supplies a concrete implementation; tests supply a fake.
type ServiceSupervisor interface {
	Status(ctx context.Context, name string) (string, error)
	Restart(ctx context.Context, name string) error
}

// RegisterService wires service.status/restart against sup.
func RegisterService(reg *toolregistry.Registry, sup ServiceSupervisor) {
	reg.Register(toolregistry.Definition{Name: "service.status", Reversible: false, Handler: serviceStatus(sup)})
	reg.Register(toolregistry.Definition{Name: "service.restart", Reversible: true, Handler: serviceRestart(sup)})
}

func serviceStatus(sup ServiceSupervisor) toolregistry.Handler {
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

func serviceRestart(sup ServiceSupervisor) toolregistry.Handler {
	return func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		var a struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(input, &a); err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}
		if err := sup.Restart(ctx, a.Name); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]string{"name": a.Name, "result": "restarted"})
	}
}
