// Package probe implements the liveness check every other component builds on.
package probe

import (
	"context"
	"time"

	"github.com/resiliencelab/chaos-go/pkg/types"
)

// DefaultTimeout bounds a single health request
const DefaultTimeout = 5 * time.Second

// Checker reports whether a service is healthy and how long the check took.
// Implementations never return transport errors, an unreachable service is just unhealthy.
type Checker interface {
	Check(ctx context.Context, target types.ServiceTarget) (bool, time.Duration)
}
