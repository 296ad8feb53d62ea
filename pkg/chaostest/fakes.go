// Package chaostest provides in-memory runtimes, probes and samplers for tests.
package chaostest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/resiliencelab/chaos-go/pkg/metrics"
	"github.com/resiliencelab/chaos-go/pkg/types"
)

// Handle is the handle FakeRuntime resolves a reference to
func Handle(ref string) string {
	return "handle-" + ref
}

// FakeRuntime records every runtime call as "op:handle"
type FakeRuntime struct {
	mu    sync.Mutex
	calls []string

	// Errors fails a call, keyed by "op" or "op:handle"
	Errors map[string]error
	// ExecOutput is returned by every successful Exec
	ExecOutput string
	// OnCall observes every call after it was recorded
	OnCall func(op, handle string)
}

// NewFakeRuntime returns a runtime where every operation succeeds
func NewFakeRuntime() *FakeRuntime {
	return &FakeRuntime{Errors: map[string]error{}}
}

func (f *FakeRuntime) record(op, handle string) error {
	f.mu.Lock()
	f.calls = append(f.calls, op+":"+handle)
	err := f.Errors[op+":"+handle]
	if err == nil {
		err = f.Errors[op]
	}
	hook := f.OnCall
	f.mu.Unlock()
	if hook != nil {
		hook(op, handle)
	}
	return err
}

// Calls returns the recorded calls in order
func (f *FakeRuntime) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallsOf returns the recorded calls of one operation
func (f *FakeRuntime) CallsOf(op string) []string {
	var out []string
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, op+":") {
			out = append(out, c)
		}
	}
	return out
}

// Count returns how many times op was called on handle
func (f *FakeRuntime) Count(op, handle string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == op+":"+handle {
			n++
		}
	}
	return n
}

func (f *FakeRuntime) Resolve(ctx context.Context, ref string) (string, error) {
	if err := f.record("resolve", ref); err != nil {
		return "", err
	}
	return Handle(ref), nil
}

func (f *FakeRuntime) Kill(ctx context.Context, handle string) error {
	return f.record("kill", handle)
}

func (f *FakeRuntime) Stop(ctx context.Context, handle string) error {
	return f.record("stop", handle)
}

func (f *FakeRuntime) Start(ctx context.Context, handle string) error {
	return f.record("start", handle)
}

func (f *FakeRuntime) Restart(ctx context.Context, handle string) error {
	return f.record("restart", handle)
}

func (f *FakeRuntime) Exec(ctx context.Context, handle string, command []string) (string, error) {
	if err := f.record("exec", handle); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[len(f.calls)-1] = "exec:" + handle + ":" + strings.Join(command, " ")
	return f.ExecOutput, nil
}

// Execs returns the commands passed to Exec on handle
func (f *FakeRuntime) Execs(handle string) []string {
	var out []string
	prefix := "exec:" + handle + ":"
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			out = append(out, strings.TrimPrefix(c, prefix))
		}
	}
	return out
}

// FakeChecker serves health from an in-memory table, unknown services are unhealthy
type FakeChecker struct {
	mu        sync.Mutex
	healthy   map[string]bool
	healthyAt map[string]time.Time
	latency   map[string]time.Duration
	checks    map[string]int
}

// NewFakeChecker returns a checker reporting the given services healthy
func NewFakeChecker(healthy ...string) *FakeChecker {
	f := &FakeChecker{
		healthy:   map[string]bool{},
		healthyAt: map[string]time.Time{},
		latency:   map[string]time.Duration{},
		checks:    map[string]int{},
	}
	for _, name := range healthy {
		f.healthy[name] = true
	}
	return f
}

// Set fixes the health of a service
func (f *FakeChecker) Set(name string, healthy bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.healthyAt, name)
	f.healthy[name] = healthy
}

// HealthyAfter reports the service unhealthy until d from now has elapsed
func (f *FakeChecker) HealthyAfter(name string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthy[name] = false
	f.healthyAt[name] = time.Now().Add(d)
}

// SetLatency sets the latency reported for a service
func (f *FakeChecker) SetLatency(name string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latency[name] = d
}

// Checks returns how many times a service was probed
func (f *FakeChecker) Checks(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks[name]
}

func (f *FakeChecker) Check(ctx context.Context, target types.ServiceTarget) (bool, time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks[target.Name]++
	if at, ok := f.healthyAt[target.Name]; ok && !time.Now().Before(at) {
		delete(f.healthyAt, target.Name)
		f.healthy[target.Name] = true
	}
	if ctx.Err() != nil {
		return false, 0
	}
	latency, ok := f.latency[target.Name]
	if !ok {
		latency = 10 * time.Millisecond
	}
	return f.healthy[target.Name], latency
}

// FakeHostSampler returns fixed host stats
type FakeHostSampler struct {
	mu    sync.Mutex
	stats metrics.HostStats
	err   error
}

// NewFakeHostSampler returns a sampler reporting stats
func NewFakeHostSampler(stats metrics.HostStats) *FakeHostSampler {
	return &FakeHostSampler{stats: stats}
}

// Set replaces the reported stats
func (f *FakeHostSampler) Set(stats metrics.HostStats) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats = stats
}

// Fail makes every following sample return err
func (f *FakeHostSampler) Fail(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = errors.New(reason)
}

func (f *FakeHostSampler) Sample(ctx context.Context) (metrics.HostStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats, f.err
}

// Services builds service targets named after names with resolved fake handles
func Services(names ...string) []types.ServiceTarget {
	out := make([]types.ServiceTarget, 0, len(names))
	for _, name := range names {
		out = append(out, types.ServiceTarget{
			Name:       name,
			BaseURL:    "http://" + name + ":8000",
			RuntimeRef: name,
			Handle:     Handle(name),
		})
	}
	return out
}

// Datastores builds datastore targets named after names with resolved fake handles
func Datastores(names ...string) []types.DatastoreTarget {
	out := make([]types.DatastoreTarget, 0, len(names))
	for _, name := range names {
		out = append(out, types.DatastoreTarget{Name: name, RuntimeRef: name, Handle: Handle(name)})
	}
	return out
}
