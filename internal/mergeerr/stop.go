package mergeerr

import (
	"errors"
	"fmt"
)

// Exit codes of precondition failures.
const (
	ExitBranchIsBase       = 18
	ExitBranchExists       = 19
	ExitRemoteMissing      = 20
	ExitTagExists          = 21
	ExitInvalidTag         = 22
	ExitNotFastForwardable = 23
	ExitNoCommonAncestor   = 24
)

// StopError is returned when a precondition of an operation is not met.
// The process terminates with Code and prints Msg, the operation is not
// retried.
type StopError struct {
	Code int
	Msg  string
}

func NewStopError(code int, format string, a ...any) *StopError {
	return &StopError{
		Code: code,
		Msg:  fmt.Sprintf(format, a...),
	}
}

func (e *StopError) Error() string {
	return e.Msg
}

// ExitCode returns the process exit code for err.
// It is 0 for a nil error, StopError.Code if err wraps a StopError and 1
// otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var stopErr *StopError
	if errors.As(err, &stopErr) {
		return stopErr.Code
	}

	return 1
}
