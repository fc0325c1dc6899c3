package portal

import (
	"errors"
	"fmt"
)

// ErrorKind classifies portal failures for scheduling decisions
type ErrorKind int

const (
	// KindNetwork covers timeouts, connection failures, DNS failures and
	// unexpected probe statuses
	KindNetwork ErrorKind = iota + 1

	// KindParse means the portal page did not have a recognizable shape
	KindParse

	// KindRejected means the portal itself refused the login
	KindRejected

	// KindVerification means the login request completed but the
	// connectivity probe still sees the portal
	KindVerification
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindParse:
		return "parse"
	case KindRejected:
		return "rejected"
	case KindVerification:
		return "verification"
	default:
		return "unknown"
	}
}

// Error is returned by every network-facing operation in this package
type Error struct {
	Kind ErrorKind
	Op   string // e.g. "detect", "login", "logout"
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the ErrorKind of err, or 0 if err is not a portal error
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
