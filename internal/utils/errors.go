package utils

import "fmt"

// OpError wraps an operation name, a human-facing message, and the underlying
// error from a collaborator call.
type OpError struct {
	Op  string
	Msg string
	Err error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// NewOpError constructs an OpError.
func NewOpError(op, msg string, err error) error {
	return &OpError{Op: op, Msg: msg, Err: err}
}
