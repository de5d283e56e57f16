package leaf

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a leaf failure for retry filtering and for the
// suggestion attached to the final report.
type ErrorKind string

const (
	KindNetwork   ErrorKind = "network"
	KindTimeout   ErrorKind = "timeout"
	KindParsing   ErrorKind = "parsing"
	KindAssertion ErrorKind = "assertion"
	KindBusiness  ErrorKind = "business"
	KindSystem    ErrorKind = "system"
)

// Error is the structured failure a leaf operation returns. Partial
// holds whatever response was received before the failure, set
// deliberately by the leaf rather than recovered by inspection.
type Error struct {
	Kind    ErrorKind
	Message string
	Partial *Response
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a leaf error with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a kind and message to an underlying error.
func WrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithPartial attaches the response received before the failure.
func (e *Error) WithPartial(resp *Response) *Error {
	e.Partial = resp
	return e
}

// KindOf extracts the taxonomy kind from any error: a *Error's own
// kind, or KindSystem for everything else.
func KindOf(err error) ErrorKind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindSystem
}

// PartialOf recovers the partial response carried by an error chain,
// if any.
func PartialOf(err error) *Response {
	var le *Error
	if errors.As(err, &le) {
		return le.Partial
	}
	return nil
}
