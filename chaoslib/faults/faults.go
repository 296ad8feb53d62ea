// Package faults applies the six fault kinds against registered targets and
// drives their remediation.
package faults

import (
	"context"
	"sync"
	"time"

	"github.com/resiliencelab/chaos-go/pkg/faultflags"
	"github.com/resiliencelab/chaos-go/pkg/probe"
	"github.com/resiliencelab/chaos-go/pkg/runtime"
	"github.com/resiliencelab/chaos-go/pkg/stress"
	"github.com/resiliencelab/chaos-go/pkg/targets"
)

// DefaultPollInterval is how often recovery is re-checked
const DefaultPollInterval = 5 * time.Second

// Config is shared by the injector and the recovery controller
type Config struct {
	Runtime  runtime.Runtime
	Registry *targets.Registry
	Checker  probe.Checker
	Flags    faultflags.Store

	StressMode stress.Mode
	// HelperPath is the chaos-runner binary inside targets, used in helper stress mode
	HelperPath string
	// DependencyChain is restarted in order when recovering from a cascading failure
	DependencyChain []string

	PollInterval time.Duration
	RetryTimes   uint
	RetryWait    time.Duration
}

func (c *Config) setDefaults() {
	if c.StressMode == "" {
		c.StressMode = stress.ModeStressNG
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.RetryTimes == 0 {
		c.RetryTimes = 3
	}
	if c.RetryWait <= 0 {
		c.RetryWait = 2 * time.Second
	}
}

// New returns the injector and the recovery controller of one suite.
// They share the background tasks started by asynchronous faults.
func New(cfg Config) (*Injector, *Recovery) {
	cfg.setDefaults()
	bg := &tasks{cancels: map[string][]context.CancelFunc{}}
	return &Injector{cfg: cfg, tasks: bg}, &Recovery{cfg: cfg, tasks: bg}
}

// tasks tracks fire-and-forget fault work per experiment
type tasks struct {
	mu      sync.Mutex
	cancels map[string][]context.CancelFunc
	wg      sync.WaitGroup
}

// spawn runs fn detached from the caller's cancellation, bounded by limit
func (t *tasks) spawn(parent context.Context, key string, limit time.Duration, fn func(ctx context.Context)) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), limit)
	t.mu.Lock()
	t.cancels[key] = append(t.cancels[key], cancel)
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer cancel()
		fn(ctx)
	}()
}

// cancel stops the pending tasks of one experiment
func (t *tasks) cancel(key string) {
	t.mu.Lock()
	cancels := t.cancels[key]
	delete(t.cancels, key)
	t.mu.Unlock()
	for _, c := range cancels {
		c()
	}
}

func (t *tasks) cancelAll() {
	t.mu.Lock()
	all := t.cancels
	t.cancels = map[string][]context.CancelFunc{}
	t.mu.Unlock()
	for _, cancels := range all {
		for _, c := range cancels {
			c()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
