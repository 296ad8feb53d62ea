package targets

import (
	"context"
	"errors"
	"testing"

	"github.com/resiliencelab/chaos-go/pkg/cerrors"
	"github.com/resiliencelab/chaos-go/pkg/chaostest"
	"github.com/resiliencelab/chaos-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	rt := chaostest.NewFakeRuntime()
	r := NewRegistry(
		[]types.ServiceTarget{{Name: "api-gateway", RuntimeRef: "gw-container"}, {Name: "auth-service"}},
		[]types.DatastoreTarget{{Name: "postgres"}},
		[]string{"api-gateway"},
	)

	require.NoError(t, r.Resolve(context.Background(), rt))

	gw, ok := r.Service("api-gateway")
	require.True(t, ok)
	assert.Equal(t, chaostest.Handle("gw-container"), gw.Handle)
	auth, _ := r.Service("auth-service")
	assert.Equal(t, chaostest.Handle("auth-service"), auth.Handle)
	pg, ok := r.Datastore("postgres")
	require.True(t, ok)
	assert.Equal(t, chaostest.Handle("postgres"), pg.Handle)
	assert.True(t, r.IsCritical("api-gateway"))
	assert.False(t, r.IsCritical("auth-service"))
}

func TestResolveFailureAborts(t *testing.T) {
	rt := chaostest.NewFakeRuntime()
	rt.Errors["resolve:redis"] = errors.New("no such container")
	r := NewRegistry(chaostest.Services("api-gateway"), []types.DatastoreTarget{{Name: "redis"}}, nil)

	err := r.Resolve(context.Background(), rt)
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrorTypeTargetResolution, cerrors.GetErrorType(err))
	assert.Contains(t, err.Error(), "redis")
}

func TestExpand(t *testing.T) {
	r := NewRegistry(chaostest.Services("a", "b", "c"), nil, nil)

	tests := []struct {
		name    string
		radius  []string
		want    []string
		unknown []string
	}{
		{name: "explicit", radius: []string{"b", "a"}, want: []string{"b", "a"}},
		{name: "all", radius: []string{types.AllServices}, want: []string{"a", "b", "c"}},
		{name: "all with duplicates", radius: []string{"c", types.AllServices, "a"}, want: []string{"c", "a", "b"}},
		{name: "unknown", radius: []string{"a", "ghost"}, want: []string{"a"}, unknown: []string{"ghost"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, unknown := r.Expand(tt.radius)
			var names []string
			for _, s := range got {
				names = append(names, s.Name)
			}
			assert.Equal(t, tt.want, names)
			assert.Equal(t, tt.unknown, unknown)
		})
	}
}

func TestServicesReturnsCopy(t *testing.T) {
	r := NewRegistry(chaostest.Services("a"), nil, nil)
	services := r.Services()
	services[0].Name = "mutated"
	_, ok := r.Service("a")
	assert.True(t, ok)
}
