package probe

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/resiliencelab/chaos-go/pkg/cerrors"
	"github.com/resiliencelab/chaos-go/pkg/log"
	"github.com/resiliencelab/chaos-go/pkg/types"
)

// HTTPProbe issues GET {base_url}/health with a hard timeout
type HTTPProbe struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPProbe returns a probe bounded by timeout, DefaultTimeout when zero
func NewHTTPProbe(timeout time.Duration) *HTTPProbe {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPProbe{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Check runs one health request without retries, any failure is reported as unhealthy
func (p *HTTPProbe) Check(ctx context.Context, target types.ServiceTarget) (bool, time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.HealthEndpoint(), nil)
	if err != nil {
		logProbeFailure(target, err.Error())
		return false, time.Since(start)
	}
	resp, err := p.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		logProbeFailure(target, err.Error())
		return false, latency
	}
	defer resp.Body.Close()
	// drain so the connection can be reused by the next tick
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		logProbeFailure(target, "unexpected status "+resp.Status)
		return false, latency
	}
	return true, latency
}

func logProbeFailure(target types.ServiceTarget, reason string) {
	log.Debugf("[Probe]: %v", cerrors.Probe{Target: target.Name, Reason: reason}.Error())
}
