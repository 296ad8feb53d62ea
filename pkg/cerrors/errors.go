package cerrors

import (
	"errors"

	"github.com/palantir/stacktrace"
)

type ErrorType string

const (
	ErrorTypeNonUserFriendly  ErrorType = "NON_USER_FRIENDLY_ERROR"
	ErrorTypeGeneric          ErrorType = "GENERIC_ERROR"
	ErrorTypeProbe            ErrorType = "PROBE_ERROR"
	ErrorTypeInjection        ErrorType = "INJECTION_ERROR"
	ErrorTypeRecovery         ErrorType = "RECOVERY_ERROR"
	ErrorTypeFatalSuite       ErrorType = "FATAL_SUITE_ERROR"
	ErrorTypeTargetResolution ErrorType = "TARGET_RESOLUTION_ERROR"
	ErrorTypePanic            ErrorType = "HARNESS_PANIC_ERROR"
)

type userFriendly interface {
	UserFriendly() bool
	ErrorType() ErrorType
}

// IsUserFriendly returns true if err is marked as safe to present in the report
func IsUserFriendly(err error) bool {
	var ufe userFriendly
	return errors.As(err, &ufe) && ufe.UserFriendly()
}

// GetErrorType returns the type of error if the error is user-friendly
func GetErrorType(err error) ErrorType {
	var ufe userFriendly
	if errors.As(err, &ufe) {
		return ufe.ErrorType()
	}
	return ErrorTypeNonUserFriendly
}

// IsFatal reports whether err must abort the whole suite
func IsFatal(err error) bool {
	return err != nil && GetErrorType(stacktrace.RootCause(err)) == ErrorTypeFatalSuite
}

func GetRootCauseAndErrorCode(err error) (string, ErrorType) {
	rootCause := stacktrace.RootCause(err)
	errorType := GetErrorType(rootCause)
	if !IsUserFriendly(rootCause) {
		return err.Error(), errorType
	}
	return rootCause.Error(), errorType
}
