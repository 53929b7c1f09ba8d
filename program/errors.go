package program

import "errors"

// Kind is a stable category for programmatic error handling.
//
// Every rejection is terminal for the operation; Kind tells a caller whether
// a corrected request could succeed (Malformed, BusinessRule) or never will
// (Binding, Ownership). Branch on Kind/RuleID, not on Error() text.
type Kind string

const (
	KindMalformed     Kind = "Malformed"
	KindAuthorization Kind = "Authorization"
	KindOwnership     Kind = "Ownership"
	KindStructural    Kind = "Structural"
	KindBinding       Kind = "Binding"
	KindBusinessRule  Kind = "BusinessRule"
	KindArithmetic    Kind = "Arithmetic"
	KindInternal      Kind = "Internal"
)

// Error is the program's structured error type.
//
// RuleID names the failed check (e.g., ATTEST-ACCT-001, ATTEST-EXP-001).
// Message is intended for humans; do not match on it.
type Error struct {
	Kind    Kind
	RuleID  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return e.RuleID + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.RuleID + ": " + e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func newError(kind Kind, ruleID, msg string) error {
	return &Error{Kind: kind, RuleID: ruleID, Message: msg}
}

func wrapError(kind Kind, ruleID, msg string, cause error) error {
	if cause == nil {
		return newError(kind, ruleID, msg)
	}
	return &Error{Kind: kind, RuleID: ruleID, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// RuleID returns the stable RuleID for a structured error, or "" if unknown.
func RuleID(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.RuleID
}

// KindOf returns the Kind of a structured error, or "" if err is not one.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}
