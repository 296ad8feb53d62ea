package cerrors

import "fmt"

type Generic struct {
	Phase  string
	Reason string
}

func (e Generic) Error() string {
	if e.Phase == "" {
		return e.Reason
	}
	return fmt.Sprintf("[%s]: %s", e.Phase, e.Reason)
}

func (e Generic) UserFriendly() bool {
	return true
}

func (e Generic) ErrorType() ErrorType {
	return ErrorTypeGeneric
}

// Panic carries a recovered panic out of the experiment harness
type Panic struct {
	Reason string
}

func (e Panic) Error() string {
	return e.Reason
}

func (e Panic) UserFriendly() bool {
	return true
}

func (e Panic) ErrorType() ErrorType {
	return ErrorTypePanic
}

// Probe is never returned to callers of the health probe; it only shapes the debug log line
type Probe struct {
	Target string
	Reason string
}

func (e Probe) Error() string {
	return fmt.Sprintf("health probe for '%s' failed, %s", e.Target, e.Reason)
}

func (e Probe) UserFriendly() bool {
	return true
}

func (e Probe) ErrorType() ErrorType {
	return ErrorTypeProbe
}

type Injection struct {
	Experiment string
	Fault      string
	Target     string
	Reason     string
}

func (e Injection) Error() string {
	return fmt.Sprintf("[%s]: failed to inject %s on '%s', %s", e.Experiment, e.Fault, e.Target, e.Reason)
}

func (e Injection) UserFriendly() bool {
	return true
}

func (e Injection) ErrorType() ErrorType {
	return ErrorTypeInjection
}

type Recovery struct {
	Experiment string
	Fault      string
	Target     string
	Reason     string
}

func (e Recovery) Error() string {
	return fmt.Sprintf("[%s]: failed to revert %s on '%s', %s", e.Experiment, e.Fault, e.Target, e.Reason)
}

func (e Recovery) UserFriendly() bool {
	return true
}

func (e Recovery) ErrorType() ErrorType {
	return ErrorTypeRecovery
}

// FatalSuite aborts the entire suite, e.g. when the baseline cannot be established
type FatalSuite struct {
	Reason string
}

func (e FatalSuite) Error() string {
	return fmt.Sprintf("chaos suite aborted, %s", e.Reason)
}

func (e FatalSuite) UserFriendly() bool {
	return true
}

func (e FatalSuite) ErrorType() ErrorType {
	return ErrorTypeFatalSuite
}

type TargetResolution struct {
	Target string
	Reason string
}

func (e TargetResolution) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("target resolution failed, %s", e.Reason)
	}
	return fmt.Sprintf("target '%s' resolution failed, %s", e.Target, e.Reason)
}

func (e TargetResolution) UserFriendly() bool {
	return true
}

func (e TargetResolution) ErrorType() ErrorType {
	return ErrorTypeTargetResolution
}
