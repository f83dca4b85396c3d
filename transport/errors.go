package transport

import (
	"errors"
	"fmt"

	"github.com/bassosimone/errclass"
)

// Common errors
var (
	// ErrNoFile indicates an upload request without a path or reader
	ErrNoFile = errors.New("upload has no file")
	// ErrStatus indicates the server answered with a failure status
	ErrStatus = errors.New("unexpected status")
)

// Error is a failed transport call. Response is set when the server answered
// but the call still counts as failed.
type Error struct {
	Method   string
	URL      string
	Class    string
	Response *Response
	Err      error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Response != nil {
		return fmt.Sprintf("%s %s: status %d: %v", e.Method, e.URL, e.Response.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether the call failed on a deadline
func (e *Error) IsTimeout() bool {
	return e.Class == errclass.ETIMEDOUT
}

// HasResponse reports whether the server answered
func (e *Error) HasResponse() bool {
	return e.Response != nil
}

// Classify maps err to a short errno-like label such as ETIMEDOUT
func Classify(err error) string {
	if err == nil {
		return ""
	}
	return errclass.New(err)
}

func newError(method, url string, err error, resp *Response) *Error {
	return &Error{
		Method:   method,
		URL:      url,
		Class:    Classify(err),
		Response: resp,
		Err:      err,
	}
}
