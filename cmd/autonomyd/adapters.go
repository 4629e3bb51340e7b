package main

import (
	"context"
	"os/exec"
	"strings"
)

// systemdSupervisor implements builtin.ServiceSupervisor over the systemctl
// CLI, grounded on the teacher's exec.CommandContext idiom
// (internal/tool/builtin/shell.go) rather than a systemd D-Bus client —
// no repo in the retrieved corpus imports one.
type systemdSupervisor struct{}

func (systemdSupervisor) Status(ctx context.Context, name string) (string, error) {
	out, err := exec.CommandContext(ctx, "systemctl", "is-active", name).Output()
	status := strings.TrimSpace(string(out))
	if err != nil && status == "" {
		return "unknown", err
	}
	return status, nil
}

func (systemdSupervisor) Restart(ctx context.Context, name string) error {
	return exec.CommandContext(ctx, "systemctl", "restart", name).Run()
}

// dockerSupervisor implements builtin.ContainerSupervisor over the docker
// CLI for the same reason: the corpus never imports a Docker SDK client.
type dockerSupervisor struct{}

func (dockerSupervisor) Status(ctx context.Context, name string) (string, error) {
	out, err := exec.CommandContext(ctx, "docker", "inspect", "-f", "{{.State.Status}}", name).Output()
	status := strings.TrimSpace(string(out))
	if err != nil && status == "" {
		return "unknown", err
	}
	return status, nil
}

// aptPackageManager implements builtin.PackageManager over dpkg-query/apt.
type aptPackageManager struct{}

func (aptPackageManager) Query(ctx context.Context, name string) (bool, string, error) {
	out, err := exec.CommandContext(ctx, "dpkg-query", "-W", "-f=${Version}", name).Output()
	version := strings.TrimSpace(string(out))
	if err != nil || version == "" {
		return false, "", nil
	}
	return true, version, nil
}

func (aptPackageManager) Install(ctx context.Context, name string) error {
	return exec.CommandContext(ctx, "apt-get", "install", "-y", name).Run()
}
