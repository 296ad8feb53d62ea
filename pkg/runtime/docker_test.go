package runtime

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCommander struct {
	calls  []string
	output string
	err    error
}

func (r *recordingCommander) Run(ctx context.Context, name string, args ...string) (string, error) {
	r.calls = append(r.calls, name+" "+strings.Join(args, " "))
	return r.output, r.err
}

func TestDockerCommands(t *testing.T) {
	cmd := &recordingCommander{output: "abc123\n"}
	d := NewDocker("", "/var/run/docker.sock", cmd)
	ctx := context.Background()

	id, err := d.Resolve(ctx, "auth-service")
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)

	require.NoError(t, d.Kill(ctx, id))
	require.NoError(t, d.Stop(ctx, id))
	require.NoError(t, d.Start(ctx, id))
	require.NoError(t, d.Restart(ctx, id))
	_, err = d.Exec(ctx, id, []string{"pkill", "-9", "stress-ng"})
	require.NoError(t, err)

	host := "docker --host unix:///var/run/docker.sock "
	assert.Equal(t, []string{
		host + "inspect --format {{.Id}} auth-service",
		host + "kill --signal SIGKILL abc123",
		host + "stop abc123",
		host + "start abc123",
		host + "restart abc123",
		host + "exec abc123 pkill -9 stress-ng",
	}, cmd.calls)
}

func TestDockerResolveFailures(t *testing.T) {
	ctx := context.Background()

	empty := NewDocker("docker", "", &recordingCommander{output: "  \n"})
	_, err := empty.Resolve(ctx, "ghost")
	assert.Error(t, err)

	failing := NewDocker("docker", "", &recordingCommander{err: errors.New("No such object: ghost")})
	_, err = failing.Resolve(ctx, "ghost")
	assert.Error(t, err)

	_, err = failing.Exec(ctx, "abc", nil)
	assert.Error(t, err)
}
