package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Option configures an HTTP transport
type Option func(*HTTP)

// WithHTTPClient sets the underlying http.Client
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTP) {
		if c != nil {
			h.client = c
		}
	}
}

// WithLogger sets the logger used for request tracing
func WithLogger(logger zerolog.Logger) Option {
	return func(h *HTTP) {
		h.logger = logger
	}
}

// WithUserAgent sets the User-Agent header sent when the call has none
func WithUserAgent(ua string) Option {
	return func(h *HTTP) {
		h.userAgent = ua
	}
}

// WithFailOnStatus makes responses with a status of 400 or above fail with
// an *Error that still carries the response
func WithFailOnStatus(fail bool) Option {
	return func(h *HTTP) {
		h.failOnStatus = fail
	}
}

// HTTP is a Transport backed by net/http
type HTTP struct {
	client       *http.Client
	logger       zerolog.Logger
	userAgent    string
	failOnStatus bool
}

var _ Transport = (*HTTP)(nil)

// NewHTTP creates an HTTP transport
func NewHTTP(opts ...Option) *HTTP {
	h := &HTTP{
		client:    &http.Client{},
		logger:    zerolog.Nop(),
		userAgent: "reqflow",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Do implements Transport
func (h *HTTP) Do(ctx context.Context, r *Request) (*Response, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	method := strings.ToUpper(r.Method)
	if method == "" {
		method = http.MethodGet
	}

	body, contentType, err := encodeBody(r)
	if err != nil {
		return nil, newError(method, r.URL, fmt.Errorf("failed to encode body: %w", err), nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.URL, body)
	if err != nil {
		return nil, newError(method, r.URL, fmt.Errorf("failed to create request: %w", err), nil)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	h.applyHeaders(req, r.Header)

	return h.send(req)
}

// Upload implements Transport
func (h *HTTP) Upload(ctx context.Context, r *UploadRequest, progress ProgressFunc) (*Response, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	src, size, name, err := openUpload(r)
	if err != nil {
		return nil, newError(http.MethodPost, r.URL, err, nil)
	}
	defer src.Close()

	field := r.Field
	if field == "" {
		field = "file"
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeMultipart(mw, field, name, r.FormData, &countingReader{
			r:        src,
			total:    size,
			progress: progress,
		})
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, pr)
	if err != nil {
		pr.CloseWithError(err)
		return nil, newError(http.MethodPost, r.URL, fmt.Errorf("failed to create request: %w", err), nil)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	h.applyHeaders(req, r.Header)

	resp, err := h.send(req)
	if err != nil {
		pr.CloseWithError(err)
	}
	return resp, err
}

func (h *HTTP) applyHeaders(req *http.Request, header map[string]string) {
	for k, v := range header {
		req.Header.Set(k, v)
	}
	if req.Header.Get("User-Agent") == "" && h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
}

func (h *HTTP) send(req *http.Request) (*Response, error) {
	start := time.Now()

	h.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Msg("Sending request")

	resp, err := h.client.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return nil, newError(req.Method, req.URL.String(), err, nil)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(req.Method, req.URL.String(), fmt.Errorf("failed to read response body: %w", err), nil)
	}

	out := NewResponse(resp.StatusCode, resp.Header, body)

	h.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Dur("duration", time.Since(start)).
		Msg("Received response")

	if h.failOnStatus && resp.StatusCode >= http.StatusBadRequest {
		return nil, newError(req.Method, req.URL.String(), ErrStatus, out)
	}
	return out, nil
}

func encodeBody(r *Request) (io.Reader, string, error) {
	if r.Body == nil {
		return nil, "", nil
	}

	contentType := r.ContentType
	if contentType == "" {
		contentType = "application/json"
	}

	if strings.Contains(contentType, "x-www-form-urlencoded") {
		return strings.NewReader(EncodeQuery(r.Body)), contentType, nil
	}

	data, err := json.Marshal(r.Body)
	if err != nil {
		return nil, "", err
	}
	return bytes.NewReader(data), contentType, nil
}

func openUpload(r *UploadRequest) (io.ReadCloser, int64, string, error) {
	if r.Reader != nil {
		name := r.Name
		if name == "" {
			name = "file"
		}
		return io.NopCloser(r.Reader), r.Size, name, nil
	}
	if r.Path == "" {
		return nil, 0, "", ErrNoFile
	}

	f, err := os.Open(r.Path)
	if err != nil {
		return nil, 0, "", fmt.Errorf("failed to open file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, "", fmt.Errorf("failed to stat file: %w", err)
	}

	name := r.Name
	if name == "" {
		name = filepath.Base(r.Path)
	}
	return f, info.Size(), name, nil
}

func writeMultipart(mw *multipart.Writer, field, name string, form map[string]string, src io.Reader) error {
	for k, v := range form {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile(field, name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, src); err != nil {
		return err
	}
	return mw.Close()
}

// countingReader reports progress as the file is consumed
type countingReader struct {
	r        io.Reader
	sent     int64
	total    int64
	progress ProgressFunc
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.sent += int64(n)
		if c.progress != nil {
			c.progress(c.sent, c.total)
		}
	}
	return n, err
}
