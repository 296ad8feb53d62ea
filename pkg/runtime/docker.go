package runtime

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// Docker drives containers through the docker CLI. Handles are container ids.
type Docker struct {
	binary     string
	socketPath string
	cmd        Commander
}

// NewDocker returns a docker runtime, socketPath may be empty to use the CLI default
func NewDocker(binary, socketPath string, cmd Commander) *Docker {
	if binary == "" {
		binary = "docker"
	}
	if cmd == nil {
		cmd = ShellCommander{}
	}
	return &Docker{binary: binary, socketPath: socketPath, cmd: cmd}
}

func (d *Docker) run(ctx context.Context, args ...string) (string, error) {
	if d.socketPath != "" {
		args = append([]string{"--host", "unix://" + d.socketPath}, args...)
	}
	return d.cmd.Run(ctx, d.binary, args...)
}

// Resolve derive the container id of the named container
func (d *Docker) Resolve(ctx context.Context, ref string) (string, error) {
	out, err := d.run(ctx, "inspect", "--format", "{{.Id}}", ref)
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(out)
	if id == "" {
		return "", errors.Errorf("container %v not found", ref)
	}
	return id, nil
}

// Kill sends SIGKILL, the container gets no chance to shut down gracefully
func (d *Docker) Kill(ctx context.Context, handle string) error {
	_, err := d.run(ctx, "kill", "--signal", "SIGKILL", handle)
	return err
}

func (d *Docker) Stop(ctx context.Context, handle string) error {
	_, err := d.run(ctx, "stop", handle)
	return err
}

func (d *Docker) Start(ctx context.Context, handle string) error {
	_, err := d.run(ctx, "start", handle)
	return err
}

func (d *Docker) Restart(ctx context.Context, handle string) error {
	_, err := d.run(ctx, "restart", handle)
	return err
}

// Exec runs command inside the container and returns its stdout
func (d *Docker) Exec(ctx context.Context, handle string, command []string) (string, error) {
	if len(command) == 0 {
		return "", errors.Errorf("no command provided for container %v", handle)
	}
	return d.run(ctx, append([]string{"exec", handle}, command...)...)
}
