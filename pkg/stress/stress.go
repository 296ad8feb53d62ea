// Package stress is the resource-exhaustion workload. The workload always
// receives an explicit deadline at its own entry point, so it ends on time
// even when nobody is left to kill it.
package stress

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/resiliencelab/chaos-go/pkg/log"
)

// Options describes one workload run
type Options struct {
	Until      time.Time
	CPUWorkers int
	MemoryMB   int
}

// Validate checks the workload is bounded
func (o Options) Validate() error {
	if o.Until.IsZero() {
		return errors.Errorf("stress needs a deadline")
	}
	if o.CPUWorkers < 0 || o.MemoryMB < 0 {
		return errors.Errorf("cpu workers and memory must not be negative")
	}
	return nil
}

// pageSize is the stride used to touch allocated memory
const pageSize = 4096

// Run burns CPUWorkers cores and holds MemoryMB of resident memory until the
// deadline passes or ctx is cancelled, whichever comes first
func Run(ctx context.Context, opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	ctx, cancel := context.WithDeadline(ctx, opts.Until)
	defer cancel()

	log.Infof("[Chaos]: Stressing %v cpu workers and %vMB memory until %v", opts.CPUWorkers, opts.MemoryMB, opts.Until.Format(time.RFC3339))

	var ballast []byte
	if opts.MemoryMB > 0 {
		ballast = make([]byte, opts.MemoryMB<<20)
		for i := 0; i < len(ballast); i += pageSize {
			ballast[i] = 1
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < opts.CPUWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			burn(ctx)
		}()
	}
	<-ctx.Done()
	wg.Wait()
	runtime.KeepAlive(ballast)

	log.Info("[Chaos]: Stress workload finished")
	return nil
}

func burn(ctx context.Context) {
	x := 1
	for {
		for i := 0; i < 100000; i++ {
			x = x*31 + i
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}
