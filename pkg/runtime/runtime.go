// Package runtime is the capability used to apply faults and remediations.
// Every operation is keyed by an opaque handle resolved once at startup.
package runtime

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
)

// Runtime kills, stops, starts, restarts and execs into the unit behind a handle
type Runtime interface {
	// Resolve turns an operator-supplied reference into a stable handle
	Resolve(ctx context.Context, ref string) (string, error)
	Kill(ctx context.Context, handle string) error
	Stop(ctx context.Context, handle string) error
	Start(ctx context.Context, handle string) error
	Restart(ctx context.Context, handle string) error
	Exec(ctx context.Context, handle string, command []string) (string, error)
}

// Commander runs a host binary and returns its standard output
type Commander interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ShellCommander runs commands through os/exec
type ShellCommander struct{}

// Run executes the command, the error carries the command's stderr
func (ShellCommander) Run(ctx context.Context, name string, args ...string) (string, error) {
	var out, errOut bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		return "", errors.Errorf("unable to run command '%s %s', err: %v; error output: %v", name, strings.Join(args, " "), err, strings.TrimSpace(errOut.String()))
	}
	return out.String(), nil
}

// IsNotFound reports whether err says the unit behind a handle is gone.
// Retrying an operation that failed this way cannot succeed.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if k8serrors.IsNotFound(errors.Cause(err)) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such container")
}
