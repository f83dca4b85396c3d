// Package reqconfig holds the layered request configuration and its merge rules.
package reqconfig

import (
	"github.com/s0up4200/reqflow/field"
)

// Content types understood by the request body encoder
const (
	ContentTypeJSON = "application/json"
	ContentTypeForm = "application/x-www-form-urlencoded"
)

// Config is the full request configuration tree
type Config struct {
	Request RequestConfig
	Result  ResultConfig
	Upload  UploadConfig
}

// RequestConfig shapes outgoing requests
type RequestConfig struct {
	// Origin is the scheme and host, without a trailing slash
	Origin Resolver[string]
	// Path is the common path prefix joined after Origin
	Path string
	// ContentType selects the body encoding for body-bearing methods
	ContentType string
	// Header is merged under per-call headers
	Header Resolver[map[string]string]
	// Data is merged under per-call data, placed in the body or the query by method
	Data Resolver[map[string]any]
	// GetData always goes to the query string, even for body-bearing methods
	GetData Resolver[map[string]any]
}

// ResultConfig decodes responses
type ResultConfig struct {
	// SuccessCode is compared loosely against the extracted code
	SuccessCode any
	// ErrorCode is reported for failures raised by the pipeline itself
	ErrorCode any
	Code      field.Descriptor
	Message   field.Descriptor
	Data      field.Descriptor
}

// UploadConfig shapes file uploads
type UploadConfig struct {
	// API is the upload endpoint; it may carry its own query string
	API string
	// RequestField is the multipart field name of the file
	RequestField string
	// ResultField is extracted from a successful upload response
	ResultField field.Descriptor
}

// Defaults returns the built-in configuration
func Defaults() Config {
	return Config{
		Request: RequestConfig{
			Origin:      Literal(""),
			Path:        "api",
			ContentType: ContentTypeJSON,
			Header:      Literal(map[string]string{}),
			Data:        Literal(map[string]any{}),
			GetData:     Literal(map[string]any{}),
		},
		Result: ResultConfig{
			SuccessCode: 200,
			ErrorCode:   500,
			Code:        field.Key("code"),
			Message:     field.Key("message"),
			Data:        field.Key("data"),
		},
		Upload: UploadConfig{
			API:          "",
			RequestField: "file",
			ResultField:  field.Key("image"),
		},
	}
}

// Clone returns a deep copy. Literal maps are copied, computed resolvers
// and descriptors are shared since they are immutable.
func (c Config) Clone() Config {
	out := c
	out.Request.Header = cloneResolver(c.Request.Header)
	out.Request.Data = cloneResolver(c.Request.Data)
	out.Request.GetData = cloneResolver(c.Request.GetData)
	return out
}

func cloneResolver[V any](r Resolver[map[string]V]) Resolver[map[string]V] {
	s, ok := r.(Static[map[string]V])
	if !ok || s.Value == nil {
		return r
	}
	return Static[map[string]V]{Value: cloneMap(s.Value)}
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue deep-copies nested maps and slices held in an interface
func cloneValue[V any](v V) V {
	switch t := any(v).(type) {
	case map[string]any:
		return any(cloneMap(t)).(V)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return any(out).(V)
	default:
		return v
	}
}
