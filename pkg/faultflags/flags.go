// Package faultflags stores the injected-fault toggles services consult before
// calling an external dependency. Setting a flag injects the fault, clearing it recovers.
package faultflags

import (
	"context"
	"encoding/json"
	"time"

	"github.com/resiliencelab/chaos-go/pkg/types"
)

// Flag makes calls from Service to Dependency fail at FailureRate with LatencyMS of added latency
type Flag struct {
	Service     string    `json:"service"`
	Dependency  string    `json:"dependency"`
	FailureRate float64   `json:"failure_rate"`
	LatencyMS   int       `json:"latency_ms"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Encode returns the JSON form services read
func (f Flag) Encode() (string, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Store sets and clears fault flags. Flags expire on their own after ttl.
type Store interface {
	Set(ctx context.Context, target types.ServiceTarget, flag Flag, ttl time.Duration) error
	Clear(ctx context.Context, target types.ServiceTarget, dependency string) error
}
