// Package builtin wires the concrete namespace handlers for the Tool
// Registry (spec.md §4.D): fs, process, service, net, pkg, sec, monitor,
// email, container.
package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/aios/autonomy-core/internal/toolregistry"
)

const (
	maxFileSize  = 1 << 20 // 1MB read limit
	maxWriteSize = 1 << 20 // reject oversized content before touching disk
	maxListItems = 200
)

// RegisterFS wires fs.read/write/list/delete against workspaceDir, the
// sandbox root every path argument is validated against.
func RegisterFS(reg *toolregistry.Registry, workspaceDir string) {
	reg.Register(toolregistry.Definition{Name: "fs.read", Reversible: false, Handler: fsRead(workspaceDir)})
	reg.Register(toolregistry.Definition{Name: "fs.write", Reversible: true, Handler: fsWrite(workspaceDir)})
	reg.Register(toolregistry.Definition{Name: "fs.list", Reversible: false, Handler: fsList(workspaceDir)})
	reg.Register(toolregistry.Definition{Name: "fs.delete", Reversible: true, Handler: fsDelete(workspaceDir)})
}

type pathArgs struct {
	Path string `json:"path"`
}

func fsRead(workspaceDir string) toolregistry.Handler {
	return func(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
		var a pathArgs
		if err := json.Unmarshal(input, &a); err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}
		path, err := safeResolvePath(a.Path, workspaceDir)
		if err != nil {
			return nil, err
		}

		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("stat failed: %w", err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory, use fs.list", path)
		}
		if info.Size() > maxFileSize {
			return nil, fmt.Errorf("file too large (%d bytes), limit %d", info.Size(), maxFileSize)
		}

		data, err := io.ReadAll(io.LimitReader(f, maxFileSize))
		if err != nil {
			return nil, fmt.Errorf("read failed: %w", err)
		}
		return json.Marshal(map[string]string{"content": string(data)})
	}
}

func fsWrite(workspaceDir string) toolregistry.Handler {
	return func(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
		var a struct {
			Path    string `json:"path"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal(input, &a); err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}
		if len(a.Content) > maxWriteSize {
			return nil, fmt.Errorf("content too large (%d bytes), limit %d", len(a.Content), maxWriteSize)
		}
		path, err := safeResolvePath(a.Path, workspaceDir)
		if err != nil {
			return nil, err
		}

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir failed: %w", err)
		}
		if err := os.WriteFile(path, []byte(a.Content), 0o644); err != nil {
			return nil, fmt.Errorf("write failed: %w", err)
		}
		return json.Marshal(map[string]any{"path": path, "bytes_written": len(a.Content)})
	}
}

func fsList(workspaceDir string) toolregistry.Handler {
	return func(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
		var a pathArgs
		if err := json.Unmarshal(input, &a); err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}
		path, err := safeResolvePath(a.Path, workspaceDir)
		if err != nil {
			return nil, err
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("directory not found: %s", path)
		}

		type item struct {
			Name  string `json:"name"`
			IsDir bool   `json:"is_dir"`
			Size  int64  `json:"size"`
		}
		items := make([]item, 0, len(entries))
		for i, e := range entries {
			if i >= maxListItems {
				break
			}
			info, _ := e.Info()
			var size int64
			if info != nil {
				size = info.Size()
			}
			items = append(items, item{Name: e.Name(), IsDir: e.IsDir(), Size: size})
		}
		return json.Marshal(map[string]any{"entries": items, "truncated": len(entries) > maxListItems})
	}
}

func fsDelete(workspaceDir string) toolregistry.Handler {
	return func(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
		var a pathArgs
		if err := json.Unmarshal(input, &a); err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}
		path, err := safeResolvePath(a.Path, workspaceDir)
		if err != nil {
			return nil, err
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("delete failed: %w", err)
		}
		return json.Marshal(map[string]string{"deleted": path})
	}
}

// safeResolvePath resolves path within workspaceDir, rejecting traversal and
// symlink-escape the same way the original file tools did.
func safeResolvePath(path, workspaceDir string) (string, error) {
	var resolved string
	if filepath.IsAbs(path) {
		resolved = filepath.Clean(path)
	} else if workspaceDir != "" {
		resolved = filepath.Clean(filepath.Join(workspaceDir, path))
	} else {
		resolved = filepath.Clean(path)
	}

	if workspaceDir == "" {
		return resolved, nil
	}

	absWorkspace, err := filepath.Abs(workspaceDir)
	if err != nil {
		return "", fmt.Errorf("cannot resolve workspace dir: %w", err)
	}
	realWorkspace, err := filepath.EvalSymlinks(absWorkspace)
	if err != nil {
		realWorkspace = absWorkspace
	}

	absResolved, err := filepath.Abs(resolved)
	if err != nil {
		return "", fmt.Errorf("cannot resolve target path: %w", err)
	}
	realResolved, _ := resolveExisting(absResolved)

	if runtime.GOOS == "windows" {
		realWorkspace = strings.ToLower(realWorkspace)
		realResolved = strings.ToLower(realResolved)
	}

	if realResolved != realWorkspace && !strings.HasPrefix(realResolved, realWorkspace+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %q escapes workspace %q", path, workspaceDir)
	}
	return resolved, nil
}

func resolveExisting(path string) (string, error) {
	if real, err := filepath.EvalSymlinks(path); err == nil {
		return real, nil
	}
	if real, err := filepath.EvalSymlinks(filepath.Dir(path)); err == nil {
		return filepath.Join(real, filepath.Base(path)), nil
	}
	return path, nil
}
