package batch

import (
	"errors"
	"fmt"
)

// Rejection reasons.
var (
	ErrInvalidTransition = errors.New("operation not allowed in current phase")
	ErrUnknownItem       = errors.New("unknown item")
	ErrInvalidIndex      = errors.New("index out of range")
	ErrDuplicateItem     = errors.New("duplicate item id")
	ErrDuplicateOutcome  = errors.New("save outcome already reported")
	ErrInvalidPatch      = errors.New("invalid item patch")
)

// RejectionError describes an operation the session refused. State is
// unchanged whenever one is returned.
type RejectionError struct {
	Err    error
	Detail string
	Op     Operation
	Phase  Phase
}

func (e *RejectionError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s rejected in phase %s: %v (%s)", e.Op, e.Phase, e.Err, e.Detail)
	}
	return fmt.Sprintf("%s rejected in phase %s: %v", e.Op, e.Phase, e.Err)
}

func (e *RejectionError) Unwrap() error {
	return e.Err
}

// Result is returned by every session operation.
type Result struct {
	Err   error
	Op    Operation
	Phase Phase
}

// OK reports whether the operation was applied.
func (r Result) OK() bool {
	return r.Err == nil
}

// Rejected reports whether the operation was refused for the given reason.
func (r Result) Rejected(reason error) bool {
	return r.Err != nil && errors.Is(r.Err, reason)
}
