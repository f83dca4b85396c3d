package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// Transport performs the network side of a call
type Transport interface {
	// Do sends a request and returns the response. A response is returned for
	// any status the transport does not itself treat as a failure.
	Do(ctx context.Context, req *Request) (*Response, error)
	// Upload streams a file as multipart form data, reporting progress
	Upload(ctx context.Context, req *UploadRequest, progress ProgressFunc) (*Response, error)
}

// ProgressFunc receives the bytes sent so far and the total size
type ProgressFunc func(sent, total int64)

// Request is the fully resolved, transport-ready call. Query parameters are
// already part of URL; Body is set only for body-bearing methods.
type Request struct {
	URL         string
	Method      string
	Header      map[string]string
	Body        map[string]any
	ContentType string
	Timeout     time.Duration
}

// Clone returns a copy of r with its own header and body maps
func (r *Request) Clone() *Request {
	out := *r
	if r.Header != nil {
		out.Header = make(map[string]string, len(r.Header))
		for k, v := range r.Header {
			out.Header[k] = v
		}
	}
	if r.Body != nil {
		out.Body = make(map[string]any, len(r.Body))
		for k, v := range r.Body {
			out.Body[k] = v
		}
	}
	return &out
}

// UploadRequest describes a single file transfer. The file is read from
// Reader when set, otherwise from Path.
type UploadRequest struct {
	URL      string
	Header   map[string]string
	Field    string
	Path     string
	Name     string
	Reader   io.Reader
	Size     int64
	FormData map[string]string
	Timeout  time.Duration
}

// Response is what the transport hands back
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Data is the body as json.RawMessage when it holds valid JSON,
	// otherwise the body as a string
	Data any
}

// NewResponse builds a Response and sniffs its Data
func NewResponse(status int, header http.Header, body []byte) *Response {
	resp := &Response{StatusCode: status, Header: header, Body: body}
	if len(body) > 0 && gjson.ValidBytes(body) {
		resp.Data = json.RawMessage(body)
	} else {
		resp.Data = string(body)
	}
	return resp
}
