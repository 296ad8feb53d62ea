package cerrors

import (
	"fmt"
	"testing"

	"github.com/palantir/stacktrace"
	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestGetRootCauseAndErrorCode(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantReason string
		wantType   ErrorType
	}{
		{
			name:       "typed error propagated with stacktrace",
			err:        stacktrace.Propagate(Injection{Experiment: "kill-auth", Fault: "service_failure", Target: "auth-service", Reason: "no such container"}, "inject"),
			wantReason: "[kill-auth]: failed to inject service_failure on 'auth-service', no such container",
			wantType:   ErrorTypeInjection,
		},
		{
			name:       "plain error",
			err:        fmt.Errorf("boom"),
			wantReason: "boom",
			wantType:   ErrorTypeNonUserFriendly,
		},
		{
			name:       "generic without phase",
			err:        Generic{Reason: "bad input"},
			wantReason: "bad input",
			wantType:   ErrorTypeGeneric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, errType := GetRootCauseAndErrorCode(tt.err)
			assert.Equal(t, tt.wantReason, reason)
			assert.Equal(t, tt.wantType, errType)
		})
	}
}

func TestGetErrorTypeUnwraps(t *testing.T) {
	err := pkgerrors.Wrap(Recovery{Experiment: "e", Fault: "f", Target: "t", Reason: "r"}, "while recovering")
	assert.Equal(t, ErrorTypeRecovery, GetErrorType(err))
	assert.True(t, IsUserFriendly(err))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(stacktrace.Propagate(FatalSuite{Reason: "no targets registered"}, "baseline")))
	assert.False(t, IsFatal(Injection{}))
	assert.False(t, IsFatal(nil))
}
