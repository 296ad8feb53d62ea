package faultflags

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/resiliencelab/chaos-go/pkg/chaostest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	values map[string]interface{}
	ttls   map[string]time.Duration
	err    error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]interface{}{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.values[key] = value
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			delete(f.values, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisStoreSetAndClear(t *testing.T) {
	client := newFakeRedis()
	store := NewRedisStore(client, "")
	target := chaostest.Services("airtable-gateway")[0]
	ctx := context.Background()

	flag := Flag{Service: target.Name, Dependency: "airtable-api", FailureRate: 0.5, LatencyMS: 2000}
	require.NoError(t, store.Set(ctx, target, flag, 30*time.Second))

	key := "chaos:fault:airtable-gateway:airtable-api"
	require.Contains(t, client.values, key)
	assert.Equal(t, 30*time.Second, client.ttls[key])

	var stored Flag
	require.NoError(t, json.Unmarshal([]byte(client.values[key].(string)), &stored))
	assert.Equal(t, 0.5, stored.FailureRate)
	assert.Equal(t, 2000, stored.LatencyMS)

	require.NoError(t, store.Clear(ctx, target, "airtable-api"))
	assert.NotContains(t, client.values, key)
	require.NoError(t, store.Clear(ctx, target, "airtable-api"), "clearing twice is fine")
}

func TestRedisStoreErrors(t *testing.T) {
	client := newFakeRedis()
	client.err = errors.New("connection refused")
	store := NewRedisStore(client, "custom:")
	target := chaostest.Services("svc")[0]

	assert.Equal(t, "custom:svc:dep", store.Key("svc", "dep"))
	assert.Error(t, store.Set(context.Background(), target, Flag{Dependency: "dep"}, time.Second))
	assert.Error(t, store.Clear(context.Background(), target, "dep"))
}

func TestFileStore(t *testing.T) {
	rt := chaostest.NewFakeRuntime()
	store := NewFileStore(rt, "/var/run/faults/")
	target := chaostest.Services("airtable-gateway")[0]
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, target, Flag{Service: target.Name, Dependency: "airtable-api", FailureRate: 1}, 10*time.Second))
	require.NoError(t, store.Clear(ctx, target, "airtable-api"))

	execs := rt.Execs(target.Handle)
	require.Len(t, execs, 2)
	assert.True(t, strings.HasPrefix(execs[0], "sh -c mkdir -p '/var/run/faults'"))
	assert.Contains(t, execs[0], `"failure_rate":1`)
	assert.Contains(t, execs[0], "sleep 10")
	assert.Equal(t, "rm -f /var/run/faults/airtable-api.json", execs[1])
}

func TestFileStoreExecFailure(t *testing.T) {
	rt := chaostest.NewFakeRuntime()
	rt.Errors["exec"] = errors.New("container not running")
	store := NewFileStore(rt, "")
	target := chaostest.Services("svc")[0]

	assert.Error(t, store.Set(context.Background(), target, Flag{Dependency: "dep"}, 0))
	assert.Error(t, store.Clear(context.Background(), target, "dep"))
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `'it'\''s'`, quote("it's"))
}
