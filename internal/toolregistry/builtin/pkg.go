package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aios/autonomy-core/internal/toolregistry"
)

// PackageManager abstracts the host package manager (apt, yum, brew, ...),
// a named out-of-scope external collaborator per spec.md §1.
type PackageManager interface {
	Query(ctx context.Context, name string) (installed bool, version string, err error)
	Install(ctx context.Context, name string) error
}

// RegisterPkg wires pkg.query/install against mgr.
func RegisterPkg(reg *toolregistry.Registry, mgr PackageManager) {
	reg.Register(toolregistry.Definition{Name: "pkg.query", Reversible: false, Handler: pkgQuery(mgr)})
	reg.Register(toolregistry.Definition{Name: "pkg.install", Reversible: true, Handler: pkgInstall(mgr)})
}

func pkgQuery(mgr PackageManager) toolregistry.Handler {
	return func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		var a struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(input, &a); err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}
		installed, version, err := mgr.Query(ctx, a.Name)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]any{"name": a.Name, "installed": installed, "version": version})
	}
}

func pkgInstall(mgr PackageManager) toolregistry.Handler {
	return func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		var a struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(input, &a); err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}
		if err := mgr.Install(ctx, a.Name); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]string{"name": a.Name, "result": "installed"})
	}
}
