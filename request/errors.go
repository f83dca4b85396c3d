package request

import (
	"fmt"
)

// Fixed codes for failures raised before dispatch
const (
	CodeOverridden = 2
	CodeDuplicate  = 3
)

type errKind int

const (
	kindBusiness errKind = iota
	kindMalformedURL
	kindDuplicate
	kindOverridden
	kindBadFormat
	kindTimeout
	kindAborted
	kindTransport
	kindConfig
)

// Error is a rejected call. Code and Message are the extracted business
// values or the fixed values of a pipeline failure.
type Error struct {
	Code    any
	Message string
	// URL is the originating URL, attached when the call asked for a toast
	URL string
	// Class is the errno-like transport classification, if any
	Class string
	Cause error

	kind errKind
}

// Sentinel errors for errors.Is. Codes on returned errors may differ from
// the sentinel where the configured error code applies.
var (
	ErrMalformedURL = &Error{Message: "malformed url", kind: kindMalformedURL}
	ErrDuplicate    = &Error{Code: CodeDuplicate, Message: "duplicate request", kind: kindDuplicate}
	ErrOverridden   = &Error{Code: CodeOverridden, Message: "request overridden", kind: kindOverridden}
	ErrBadFormat    = &Error{Message: "bad format", kind: kindBadFormat}
	ErrTimeout      = &Error{Message: "request timeout", kind: kindTimeout}
	ErrAborted      = &Error{Message: "request aborted", kind: kindAborted}
)

// Error implements the error interface
func (e *Error) Error() string {
	if e.Code == nil {
		return e.Message
	}
	return fmt.Sprintf("%s (code %v)", e.Message, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors of the same pipeline classification. Business
// failures only match themselves.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.kind == kindBusiness {
		return false
	}
	return t.kind == e.kind
}

// IsBusiness reports whether the server answered with a non-success code
func (e *Error) IsBusiness() bool {
	return e.kind == kindBusiness
}

// IsTransport reports whether the transport itself failed
func (e *Error) IsTransport() bool {
	return e.kind == kindTransport || e.kind == kindTimeout
}

func newError(kind errKind, code any, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause, kind: kind}
}

func duplicateError() *Error {
	return newError(kindDuplicate, CodeDuplicate, ErrDuplicate.Message, nil)
}

func overriddenError() *Error {
	return newError(kindOverridden, CodeOverridden, ErrOverridden.Message, nil)
}

// AbortedError returns an error matching ErrAborted with the given code
func AbortedError(code any, cause error) *Error {
	return newError(kindAborted, code, ErrAborted.Message, cause)
}
